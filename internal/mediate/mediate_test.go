package mediate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"orggate/internal/audit"
	"orggate/internal/auth"
	"orggate/internal/directory"
	"orggate/internal/policy"
	"orggate/internal/session"
)

type memSink struct {
	mu      sync.Mutex
	entries []audit.Entry
	fail    error
}

func (s *memSink) Append(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *memSink) byOutcome(outcome string) []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	mediator *Mediator
	sessions *session.Manager
	sink     *memSink
	fp       string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	sink := &memSink{}
	sessions, err := session.NewManager("unit-test-secret", &memSink{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(sessions.Stop)
	masker, err := policy.NewMasker("unit-test-salt")
	if err != nil {
		t.Fatalf("NewMasker: %v", err)
	}
	mediator, err := NewMediator(sessions, directory.NewSample(), masker, sink, opts...)
	if err != nil {
		t.Fatalf("NewMediator: %v", err)
	}
	return &harness{
		mediator: mediator,
		sessions: sessions,
		sink:     sink,
		fp:       session.Fingerprint("10.0.0.9", "test-agent"),
	}
}

func (h *harness) login(t *testing.T, role policy.Role, uid, team string) string {
	t.Helper()
	user := &auth.User{
		ID: "u-" + uid, Email: uid + "@example.com", Name: uid,
		Role: role, UID: uid, Team: team, Status: auth.StatusActive,
	}
	token, _, err := h.sessions.Issue(context.Background(), user, h.fp)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestDenyEmitsExactlyOneAuditEntry(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, policy.RoleViewer, "bob.t", "analytics")

	records, err := h.mediator.Export(context.Background(), token, h.fp, directory.Query{})
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if records != nil {
		t.Fatalf("deny must return no data, got %d records", len(records))
	}
	failures := h.sink.byOutcome(audit.OutcomeFailure)
	if len(failures) != 1 {
		t.Fatalf("expected exactly one failure entry, got %d", len(failures))
	}
	if failures[0].Target != string(policy.CapExportData) {
		t.Fatalf("expected capability as target, got %q", failures[0].Target)
	}
	if len(h.sink.entries) != 1 {
		t.Fatalf("deny must emit exactly one entry total, got %d", len(h.sink.entries))
	}
}

func TestManagerScopeOmitsOtherTeams(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, policy.RoleManager, "amira.k", "analytics")

	records, err := h.mediator.FetchMasked(context.Background(), token, h.fp, directory.Query{})
	if err != nil {
		t.Fatalf("FetchMasked: %v", err)
	}
	// Self, two direct reports, one indirect report. Platform team is
	// omitted outright rather than returned masked.
	want := map[string]bool{"amira.k": true, "bob.t": true, "cara.v": true, "dan.o": true}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for _, r := range records {
		if !want[r.UID] {
			t.Fatalf("record %s is outside the manager's scope", r.UID)
		}
	}
}

func TestViewerSeesOwnTeamMasked(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, policy.RoleViewer, "bob.t", "analytics")

	records, err := h.mediator.FetchMasked(context.Background(), token, h.fp, directory.Query{})
	if err != nil {
		t.Fatalf("FetchMasked: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 analytics records, got %d", len(records))
	}
	for _, r := range records {
		if r.Team != "analytics" {
			t.Fatalf("record %s leaked from team %s", r.UID, r.Team)
		}
		if strings.Contains(r.Email, ".") && !strings.Contains(r.Email, "***") {
			t.Fatalf("email not partially masked: %q", r.Email)
		}
		if !strings.HasPrefix(r.Phone, "***-***-") {
			t.Fatalf("phone not fully masked: %q", r.Phone)
		}
		if strings.HasPrefix(r.EmployeeID, "E-") {
			t.Fatalf("employee id not hashed: %q", r.EmployeeID)
		}
	}

	successes := h.sink.byOutcome(audit.OutcomeSuccess)
	if len(successes) != 1 {
		t.Fatalf("masking must be audited, got %d success entries", len(successes))
	}
	if successes[0].Detail["masked_fields"] == "" {
		t.Fatal("expected masked_fields detail on the access entry")
	}
}

func TestAdminSeesEverythingUnmasked(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, policy.RoleAdmin, "root", "ops")

	records, err := h.mediator.FetchMasked(context.Background(), token, h.fp, directory.Query{})
	if err != nil {
		t.Fatalf("FetchMasked: %v", err)
	}
	if len(records) != 7 {
		t.Fatalf("expected all 7 records, got %d", len(records))
	}
	for _, r := range records {
		if strings.Contains(r.Email, "***") || strings.HasPrefix(r.Phone, "***") {
			t.Fatalf("admin record %s was masked", r.UID)
		}
	}
}

func TestAuditorCannotFetchRecords(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, policy.RoleAuditor, "aud.x", "compliance")

	if _, err := h.mediator.FetchMasked(context.Background(), token, h.fp, directory.Query{}); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied for auditor record fetch, got %v", err)
	}
}

func TestInvalidTokenIsNotDenied(t *testing.T) {
	h := newHarness(t)
	_, err := h.mediator.Authorize(context.Background(), "not-a-token", h.fp, policy.CapViewTeamData)
	if !errors.Is(err, session.ErrInvalid) {
		t.Fatalf("expected session.ErrInvalid, got %v", err)
	}
	if errors.Is(err, ErrDenied) {
		t.Fatal("invalid session must not be reported as a capability denial")
	}
}

func TestAuditFailureAbortsDeny(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, policy.RoleViewer, "bob.t", "analytics")
	h.sink.fail = audit.ErrWriteFailure

	_, err := h.mediator.Export(context.Background(), token, h.fp, directory.Query{})
	if !errors.Is(err, audit.ErrWriteFailure) {
		t.Fatalf("expected audit write failure to surface, got %v", err)
	}
}

func TestSuccessLoggingIsOptIn(t *testing.T) {
	h := newHarness(t, WithSuccessLogging(true))
	token := h.login(t, policy.RoleAdmin, "root", "ops")

	if _, err := h.mediator.Authorize(context.Background(), token, h.fp, policy.CapViewAllData); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	successes := h.sink.byOutcome(audit.OutcomeSuccess)
	if len(successes) != 1 {
		t.Fatalf("expected one success entry with verbose logging, got %d", len(successes))
	}
}
