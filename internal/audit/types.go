package audit

import (
	"context"
	"errors"
	"time"
)

// ErrWriteFailure means an audit append could not be committed even after
// retries. The operation that triggered the append must fail with it;
// sensitive actions do not proceed unrecorded.
var ErrWriteFailure = errors.New("audit: write failure")

// ActorSystem is recorded when no authenticated user caused the event.
const ActorSystem = "system"

// Action kinds recorded by the subsystem.
const (
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionAccess     = "access"
	ActionExport     = "export"
	ActionSecurity   = "security"
	ActionAuditQuery = "audit_query"
	ActionCorrection = "correction"
)

// Outcomes of an audited action.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one immutable audit record. Hash covers the entry content and
// the previous entry's hash, forming a tamper-evident chain.
type Entry struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Actor      string            `json:"actor"`
	Action     string            `json:"action"`
	Target     string            `json:"target"`
	Outcome    string            `json:"outcome"`
	Detail     map[string]string `json:"detail,omitempty"`
	// CorrectsID references the entry this one corrects. Corrections are
	// new entries; the original is never rewritten.
	CorrectsID string `json:"corrects_id,omitempty"`
	PrevHash   string `json:"prev_hash"`
	Hash       string `json:"hash"`
}

// Sink is the append side of the audit log. Every component that makes
// authorization-relevant decisions takes a Sink explicitly, so audit
// completeness is part of the wiring contract rather than ambient logging.
type Sink interface {
	Append(ctx context.Context, entry *Entry) error
}

// Filter narrows a Query. Zero values mean "no constraint".
type Filter struct {
	Actor  string
	Action string
	Since  time.Time
	Until  time.Time
	Limit  int
}
