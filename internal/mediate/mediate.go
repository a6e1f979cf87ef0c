// Package mediate sits between a caller's token and the directory data.
// It validates the session, checks the role's capabilities, scopes the
// record set, and masks sensitive fields before anything leaves the
// service. Every deny, omission, and masking decision is audited.
package mediate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"orggate/internal/audit"
	"orggate/internal/directory"
	"orggate/internal/obs"
	"orggate/internal/policy"
	"orggate/internal/session"
)

// ErrDenied means the session is valid but its role lacks the required
// capability. Distinct from session.ErrInvalid so callers can tell
// "re-authenticate" from "not allowed".
var ErrDenied = fmt.Errorf("mediate: authorization denied")

// Mediator produces authorization decisions and masked record sets.
type Mediator struct {
	sessions   *session.Manager
	source     directory.Source
	masker     *policy.Masker
	sink       audit.Sink
	logSuccess bool
}

// Option configures a Mediator.
type Option func(*Mediator)

// WithSuccessLogging also audits fully successful accesses, at the cost
// of audit volume. Denials, omissions, and masking are always audited.
func WithSuccessLogging(enabled bool) Option {
	return func(m *Mediator) { m.logSuccess = enabled }
}

// NewMediator wires the mediator. The audit sink is mandatory; an
// authorization path without an audit record is a bug, not an option.
func NewMediator(sessions *session.Manager, source directory.Source, masker *policy.Masker, sink audit.Sink, opts ...Option) (*Mediator, error) {
	if sessions == nil || source == nil || masker == nil || sink == nil {
		return nil, fmt.Errorf("mediate: sessions, source, masker and sink are all required")
	}
	m := &Mediator{sessions: sessions, source: source, masker: masker, sink: sink}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Authorize validates the token and checks that the session's role holds
// capability. A deny writes exactly one audit entry with the capability
// as target; if that entry cannot be written the caller still gets an
// error, just the audit one.
func (m *Mediator) Authorize(ctx context.Context, token, fingerprint string, capability policy.Capability) (*session.Session, error) {
	sess, err := m.sessions.Validate(ctx, token, fingerprint)
	if err != nil {
		return nil, err
	}
	if !policy.HasCapability(sess.Role, capability) {
		obs.AuthorizationDenials.Inc()
		entry := &audit.Entry{
			Actor:   sess.Email,
			Action:  audit.ActionAccess,
			Target:  string(capability),
			Outcome: audit.OutcomeFailure,
			Detail:  map[string]string{"role": string(sess.Role)},
		}
		if aerr := m.sink.Append(ctx, entry); aerr != nil {
			return nil, aerr
		}
		return nil, fmt.Errorf("capability %s for role %s: %w", capability, sess.Role, ErrDenied)
	}
	if m.logSuccess {
		entry := &audit.Entry{
			Actor:   sess.Email,
			Action:  audit.ActionAccess,
			Target:  string(capability),
			Outcome: audit.OutcomeSuccess,
			Detail:  map[string]string{"role": string(sess.Role)},
		}
		if aerr := m.sink.Append(ctx, entry); aerr != nil {
			return nil, aerr
		}
	}
	return sess, nil
}

// FetchMasked returns the records the caller may see, scoped to the
// role and with the role's masking profile applied field by field.
// Records outside the caller's scope are omitted entirely, never
// returned in masked form.
func (m *Mediator) FetchMasked(ctx context.Context, token, fingerprint string, q directory.Query) ([]directory.Record, error) {
	sess, err := m.Authorize(ctx, token, fingerprint, policy.CapViewTeamData)
	if err != nil {
		return nil, err
	}
	return m.fetch(ctx, sess, q, audit.ActionAccess)
}

// Export is FetchMasked behind the export capability, audited as an
// export so bulk extraction stays distinguishable in the log.
func (m *Mediator) Export(ctx context.Context, token, fingerprint string, q directory.Query) ([]directory.Record, error) {
	sess, err := m.Authorize(ctx, token, fingerprint, policy.CapExportData)
	if err != nil {
		return nil, err
	}
	return m.fetch(ctx, sess, q, audit.ActionExport)
}

func (m *Mediator) fetch(ctx context.Context, sess *session.Session, q directory.Query, action string) ([]directory.Record, error) {
	records, err := m.source.FetchRecords(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mediate: fetch records: %w", err)
	}

	scoped, omitted := m.scope(sess, records)

	maskedFields := map[string]struct{}{}
	out := make([]directory.Record, 0, len(scoped))
	for _, r := range scoped {
		out = append(out, m.maskRecord(sess.Role, r, maskedFields))
	}

	if omitted > 0 || len(maskedFields) > 0 || action == audit.ActionExport || m.logSuccess {
		detail := map[string]string{
			"role":     string(sess.Role),
			"returned": strconv.Itoa(len(out)),
			"omitted":  strconv.Itoa(omitted),
		}
		if len(maskedFields) > 0 {
			detail["masked_fields"] = joinSorted(maskedFields)
		}
		if q.Team != "" {
			detail["query_team"] = q.Team
		}
		entry := &audit.Entry{
			Actor:   sess.Email,
			Action:  action,
			Target:  "directory_records",
			Outcome: audit.OutcomeSuccess,
			Detail:  detail,
		}
		if aerr := m.sink.Append(ctx, entry); aerr != nil {
			return nil, aerr
		}
	}
	return out, nil
}

// scope filters records down to what the session's role may see at all.
// view-all-data sees everything; a manager sees themself, their direct
// reports and one indirect level; a viewer sees their own team.
func (m *Mediator) scope(sess *session.Session, records []directory.Record) (kept []directory.Record, omitted int) {
	if policy.HasCapability(sess.Role, policy.CapViewAllData) {
		return records, 0
	}
	switch sess.Role {
	case policy.RoleManager:
		allowed := map[string]struct{}{sess.UID: {}}
		direct := map[string]struct{}{}
		for _, r := range records {
			if r.ManagerUID == sess.UID {
				allowed[r.UID] = struct{}{}
				direct[r.UID] = struct{}{}
			}
		}
		for _, r := range records {
			if _, ok := direct[r.ManagerUID]; ok {
				allowed[r.UID] = struct{}{}
			}
		}
		for _, r := range records {
			if _, ok := allowed[r.UID]; ok {
				kept = append(kept, r)
			} else {
				omitted++
			}
		}
	case policy.RoleViewer:
		for _, r := range records {
			if r.Team == sess.Team {
				kept = append(kept, r)
			} else {
				omitted++
			}
		}
	default:
		omitted = len(records)
	}
	return kept, omitted
}

// maskRecord applies the role's masking profile to every field of one
// record and accumulates the names of fields that were transformed.
func (m *Mediator) maskRecord(role policy.Role, r directory.Record, touched map[string]struct{}) directory.Record {
	apply := func(field, value string) string {
		masked := m.masker.Apply(role, field, value)
		if masked != value {
			touched[field] = struct{}{}
		}
		return masked
	}
	return directory.Record{
		UID:        apply(policy.FieldUID, r.UID),
		Name:       apply(policy.FieldName, r.Name),
		Email:      apply(policy.FieldEmail, r.Email),
		Phone:      apply(policy.FieldPhone, r.Phone),
		EmployeeID: apply(policy.FieldEmployeeID, r.EmployeeID),
		Team:       apply(policy.FieldTeam, r.Team),
		ManagerUID: apply(policy.FieldManager, r.ManagerUID),
		Title:      apply(policy.FieldTitle, r.Title),
		Location:   apply(policy.FieldLocation, r.Location),
	}
}

func joinSorted(set map[string]struct{}) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
