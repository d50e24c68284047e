package handlers

import (
	"net/http"

	"courierly/internal/pkg/errors"
	"courierly/internal/platform/audit"
)

// AuditHandler exposes the caller's own configuration change history.
type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(auditLogger *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: auditLogger}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.ListByActor(callerID(r), 100)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
