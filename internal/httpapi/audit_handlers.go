package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"orggate/internal/audit"
	"orggate/internal/policy"
)

const maxAuditPageSize = 1000

func (a *API) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	sess, err := a.mediator.Authorize(r.Context(), token, fingerprint(r), policy.CapViewAuditLog)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}

	filter, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.auditLog.Query(r.Context(), filter)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}

	// Reading the audit trail is itself a sensitive action.
	queryEntry := &audit.Entry{
		Actor:   sess.Email,
		Action:  audit.ActionAuditQuery,
		Target:  "audit_log",
		Outcome: audit.OutcomeSuccess,
		Detail: map[string]string{
			"returned": strconv.Itoa(len(entries)),
		},
	}
	if aerr := a.auditLog.Append(r.Context(), queryEntry); aerr != nil {
		handleAccessError(w, r, aerr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func auditFilterFromQuery(r *http.Request) (audit.Filter, error) {
	var f audit.Filter
	q := r.URL.Query()
	f.Actor = q.Get("actor")
	f.Action = q.Get("action")

	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("since must be an RFC3339 timestamp")
		}
		f.Since = t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("until must be an RFC3339 timestamp")
		}
		f.Until = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditPageSize {
			return f, errors.New("limit must be between 1 and 1000")
		}
		f.Limit = n
	}
	return f, nil
}
