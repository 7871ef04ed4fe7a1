package httpadapter

import (
	"fmt"
	"net/http"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

// overrideBody may repeat the application id from the path; a different id
// is rejected rather than silently ignored.
type overrideBody struct {
	ApplicationID   string                  `json:"application_id,omitempty"`
	NewDecision     domain.OverrideDecision `json:"new_decision"`
	Reason          string                  `json:"reason"`
	ExpectedVersion int                     `json:"expected_version,omitempty"`
}

// overrideResponse is the updated decision record plus the application
// version a follow-up override can pin.
type overrideResponse struct {
	ApplicationID string `json:"application_id"`
	Version       int    `json:"version"`
	domain.DecisionRecord
}

func (rt *Router) overrideDecision(w http.ResponseWriter, r *http.Request, operator string) {
	if rt.svc.Overrides == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	var body overrideBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if body.ApplicationID != "" && body.ApplicationID != id {
		writeError(w, r, domain.WrapError(domain.ErrIntegrityViolation, "override decision",
			fmt.Errorf("body application_id %q does not match path id %q", body.ApplicationID, id)))
		return
	}

	app, err := rt.svc.Overrides.Override(r.Context(), domain.OverrideRequest{
		ApplicationID:   id,
		NewDecision:     body.NewDecision,
		Reason:          body.Reason,
		Actor:           operator,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordOverride(serviceName, string(app.CurrentDecision()))
	}
	res := overrideResponse{ApplicationID: app.ID, Version: app.Version}
	if app.Decision != nil {
		res.DecisionRecord = *app.Decision
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) listAudit(w http.ResponseWriter, r *http.Request, _ string) {
	if rt.svc.Applications == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	entries, err := rt.svc.Applications.ListAudit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (rt *Router) reloadReferences(w http.ResponseWriter, r *http.Request, operator string) {
	if rt.svc.References == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	if err := rt.svc.References.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "operator": operator})
}
