package handler

import (
	"log/slog"
	"net/http"

	"github.com/microsservicos/events-service/internal/model"
	"github.com/microsservicos/events-service/internal/service"
)

// RegistrationHandler holds the HTTP handlers for the registration ledger.
type RegistrationHandler struct {
	svc *service.RegistrationService
	log *slog.Logger
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService, log *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, log: log}
}

// Register handles POST /api/events/{id}/register. The registrant is the
// authenticated caller; their identity snapshot comes from the token, not
// the request body.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	reg, err := h.svc.Admit(r.Context(), eventID, model.RegisterUserRequest{
		UserID:    identity.UserID,
		UserEmail: identity.Email,
		UserName:  identity.Name,
	}, identity)
	if err != nil {
		respondError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// RegisterUser handles POST /api/events/{id}/register-user (admin only).
// The admin registers another user; the admission decision is the same as
// for self-registration, only registered_by records the admin.
func (h *RegistrationHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req model.RegisterUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.Admit(r.Context(), eventID, req, identity)
	if err != nil {
		respondError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// RegisterUserByEmail handles POST /api/events/{id}/register-by-email
// (admin only). The user is resolved through the user directory, created
// there if necessary, then admitted normally.
func (h *RegistrationHandler) RegisterUserByEmail(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req model.RegisterUserByEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.AdmitByEmail(r.Context(), eventID, req, identity)
	if err != nil {
		respondError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// ListByEvent handles GET /api/events/{id}/registrations (admin only).
func (h *RegistrationHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	regs, err := h.svc.EventRegistrations(r.Context(), eventID)
	if err != nil {
		respondError(h.log, w, err)
		return
	}
	if regs == nil {
		regs = []model.RegistrationResponse{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// MyEvents handles GET /api/my-events, listing the caller's registrations.
func (h *RegistrationHandler) MyEvents(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	regs, err := h.svc.UserRegistrations(r.Context(), identity.UserID)
	if err != nil {
		respondError(h.log, w, err)
		return
	}
	if regs == nil {
		regs = []model.RegistrationResponse{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// MarkAttendance handles POST /api/registrations/{id}/attendance (admin only).
func (h *RegistrationHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	var req model.AttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Attended == nil {
		writeError(w, http.StatusBadRequest, "attended is required")
		return
	}

	reg, err := h.svc.MarkAttendance(r.Context(), id, *req.Attended)
	if err != nil {
		respondError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// Cancel handles DELETE /api/registrations/{id}. Only the registration's
// owner may cancel through this route.
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid registration id")
		return
	}
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	if err := h.svc.Cancel(r.Context(), id, identity); err != nil {
		respondError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelByAdmin handles DELETE /api/admin/registrations/{id} (admin only).
// No ownership check applies.
func (h *RegistrationHandler) CancelByAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	if err := h.svc.CancelByAdmin(r.Context(), id); err != nil {
		respondError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
