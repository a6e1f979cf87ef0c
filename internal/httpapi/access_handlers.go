package httpapi

import (
	"errors"
	"net/http"

	"orggate/internal/directory"
	"orggate/internal/mediate"
	"orggate/internal/policy"
)

type authorizeRequest struct {
	Capability string `json:"capability"`
}

type authorizeResponse struct {
	Allow bool   `json:"allow"`
	Role  string `json:"role,omitempty"`
	Error string `json:"error,omitempty"`
}

func (a *API) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	var req authorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	capability, err := policy.ParseCapability(req.Capability)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.mediator.Authorize(r.Context(), token, fingerprint(r), capability)
	if err != nil {
		if errors.Is(err, mediate.ErrDenied) {
			writeJSON(w, http.StatusForbidden, authorizeResponse{
				Allow: false,
				Error: "authorization denied",
			})
			return
		}
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{Allow: true, Role: string(sess.Role)})
}

func (a *API) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	q := directory.Query{Team: r.URL.Query().Get("team")}
	records, err := a.mediator.FetchMasked(r.Context(), token, fingerprint(r), q)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	q := directory.Query{Team: r.URL.Query().Get("team")}
	records, err := a.mediator.Export(r.Context(), token, fingerprint(r), q)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="records.json"`)
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}
