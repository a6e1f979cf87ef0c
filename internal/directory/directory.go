// Package directory is the read-only view of the organizational data
// source. Records come from an external collector; this service only
// consumes them and never writes back.
package directory

import "context"

// Record is one person as exported by the directory collector.
// ManagerUID references another record's UID, empty at the top of a
// reporting chain.
type Record struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	EmployeeID string `json:"employee_id"`
	Team       string `json:"team"`
	ManagerUID string `json:"manager"`
	Title      string `json:"title"`
	Location   string `json:"location"`
}

// Query narrows a fetch. Zero value means every record.
type Query struct {
	Team string
	UIDs []string
}

// Source hands out raw, unmasked records. Callers are expected to run
// the result through the access mediator before it leaves the process.
type Source interface {
	FetchRecords(ctx context.Context, q Query) ([]Record, error)
}

// Matches reports whether the record satisfies the query.
func (q Query) Matches(r Record) bool {
	if q.Team != "" && r.Team != q.Team {
		return false
	}
	if len(q.UIDs) > 0 {
		found := false
		for _, uid := range q.UIDs {
			if uid == r.UID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
