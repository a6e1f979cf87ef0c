package directory

import (
	"context"
	"sync"
)

// Sample is an in-memory source seeded with demo records. It stands in
// for the real collector in development and in tests.
type Sample struct {
	mu      sync.RWMutex
	records []Record
}

// NewSample returns a source seeded with a small organization: two
// teams, a two-level reporting chain inside analytics.
func NewSample() *Sample {
	return &Sample{records: []Record{
		{UID: "amira.k", Name: "Amira Khan", Email: "amira.khan@example.com", Phone: "+1-415-555-0141", EmployeeID: "E-1001", Team: "analytics", Title: "Head of Analytics", Location: "San Francisco"},
		{UID: "bob.t", Name: "Bob Tanaka", Email: "bob.tanaka@example.com", Phone: "+1-415-555-0118", EmployeeID: "E-1002", Team: "analytics", ManagerUID: "amira.k", Title: "Data Analyst", Location: "San Francisco"},
		{UID: "cara.v", Name: "Cara Vance", Email: "cara.vance@example.com", Phone: "+44-20-7946-0822", EmployeeID: "E-1003", Team: "analytics", ManagerUID: "amira.k", Title: "Analytics Lead", Location: "London"},
		{UID: "dan.o", Name: "Dan Okafor", Email: "dan.okafor@example.com", Phone: "+44-20-7946-0959", EmployeeID: "E-1004", Team: "analytics", ManagerUID: "cara.v", Title: "Junior Analyst", Location: "London"},
		{UID: "elena.s", Name: "Elena Sorokina", Email: "elena.sorokina@example.com", Phone: "+49-30-555-0177", EmployeeID: "E-2001", Team: "platform", Title: "Platform Lead", Location: "Berlin"},
		{UID: "farid.m", Name: "Farid Musayev", Email: "farid.musayev@example.com", Phone: "+49-30-555-0102", EmployeeID: "E-2002", Team: "platform", ManagerUID: "elena.s", Title: "SRE", Location: "Berlin"},
		{UID: "grace.l", Name: "Grace Lim", Email: "grace.lim@example.com", Phone: "+65-6555-0133", EmployeeID: "E-2003", Team: "platform", ManagerUID: "elena.s", Title: "Backend Engineer", Location: "Singapore"},
	}}
}

// NewSampleWith builds a source over caller-provided records.
func NewSampleWith(records []Record) *Sample {
	s := &Sample{records: make([]Record, len(records))}
	copy(s.records, records)
	return s
}

// FetchRecords returns records matching q in stable seed order.
func (s *Sample) FetchRecords(ctx context.Context, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
