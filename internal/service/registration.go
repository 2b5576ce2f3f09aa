package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/microsservicos/events-service/internal/model"
	"github.com/microsservicos/events-service/internal/storage"
)

// ErrUserDirectory wraps failures talking to the user directory.
var ErrUserDirectory = errors.New("user directory unavailable")

// UserDirectory resolves users by email for the admin register-by-email
// flow. FindByEmail returns (nil, nil) when no user exists.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, name, email string) (*model.User, error)
}

// RegistrationService owns the registration ledger operations: admission,
// attendance marking, cancellation, and the read-only query surface.
//
// The admission decision itself (capacity and uniqueness under concurrent
// calls) is delegated to the store, which runs it inside a per-event
// critical section. Admin-initiated registrations flow through the same
// decision; the admin role never bypasses capacity or uniqueness.
type RegistrationService struct {
	events        storage.EventStore
	registrations storage.RegistrationStore
	users         UserDirectory
	validate      *validator.Validate
}

// NewRegistrationService constructs a RegistrationService. users may be nil
// when the register-by-email flow is not exposed.
func NewRegistrationService(
	events storage.EventStore,
	registrations storage.RegistrationStore,
	users UserDirectory,
) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		users:         users,
		validate:      validator.New(),
	}
}

// Admit runs the admission decision for a user and persists the resulting
// registration. actor is the authenticated caller; for self-registration it
// equals the registrant, for admin registration it is the admin performing
// it. Rejections are storage.ErrEventNotFound, storage.ErrEventInactive,
// storage.ErrAlreadyRegistered and storage.ErrCapacityExceeded; all are
// terminal for this call.
func (s *RegistrationService) Admit(ctx context.Context, eventID uuid.UUID, req model.RegisterUserRequest, actor model.Identity) (*model.RegistrationResponse, error) {
	req.UserEmail = strings.TrimSpace(strings.ToLower(req.UserEmail))
	req.UserName = strings.TrimSpace(req.UserName)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	reg := &model.Registration{
		ID:           uuid.New(),
		EventID:      eventID,
		UserID:       req.UserID,
		UserEmail:    req.UserEmail,
		UserName:     req.UserName,
		RegisteredAt: time.Now().UTC(),
		Attended:     false,
		RegisteredBy: actor.UserID,
	}

	if err := s.registrations.Admit(ctx, reg); err != nil {
		return nil, err
	}
	return s.toResponse(ctx, reg), nil
}

// AdmitByEmail resolves (or creates) the registrant through the user
// directory, then runs the regular admission decision.
func (s *RegistrationService) AdmitByEmail(ctx context.Context, eventID uuid.UUID, req model.RegisterUserByEmailRequest, actor model.Identity) (*model.RegistrationResponse, error) {
	req.UserEmail = strings.TrimSpace(strings.ToLower(req.UserEmail))
	req.UserName = strings.TrimSpace(req.UserName)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := s.users.FindByEmail(ctx, req.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserDirectory, err)
	}
	if user == nil {
		user, err = s.users.Create(ctx, req.UserName, req.UserEmail)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUserDirectory, err)
		}
	}

	return s.Admit(ctx, eventID, model.RegisterUserRequest{
		UserID:    user.ID,
		UserEmail: user.Email,
		UserName:  user.Name,
	}, actor)
}

// MarkAttendance toggles the attended flag on a registration. Marking an
// already-attended registration attended again is not an error; marking it
// not attended clears the attendance timestamp regardless of prior state.
func (s *RegistrationService) MarkAttendance(ctx context.Context, registrationID uuid.UUID, attended bool) (*model.RegistrationResponse, error) {
	reg, err := s.registrations.SetAttendance(ctx, registrationID, attended)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, reg), nil
}

// Cancel removes a registration on behalf of its owner. ErrForbidden is
// returned when the caller does not own the registration; the registration
// is left intact in that case.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID uuid.UUID, actor model.Identity) error {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return err
	}
	if reg.UserID != actor.UserID {
		return ErrForbidden
	}
	return s.registrations.Delete(ctx, registrationID)
}

// CancelByAdmin removes a registration without an ownership check.
func (s *RegistrationService) CancelByAdmin(ctx context.Context, registrationID uuid.UUID) error {
	if _, err := s.registrations.GetByID(ctx, registrationID); err != nil {
		return err
	}
	return s.registrations.Delete(ctx, registrationID)
}

// EventRegistrations lists all registrations for an event, oldest first.
// A vanished event is tolerated: the listing succeeds with event-derived
// fields absent.
func (s *RegistrationService) EventRegistrations(ctx context.Context, eventID uuid.UUID) ([]model.RegistrationResponse, error) {
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event registrations: %w", err)
	}
	return s.toResponses(ctx, regs), nil
}

// UserRegistrations lists all of a user's registrations, oldest first.
// Registrations whose event has since been deactivated are still returned,
// with a nil event name.
func (s *RegistrationService) UserRegistrations(ctx context.Context, userID uuid.UUID) ([]model.RegistrationResponse, error) {
	regs, err := s.registrations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user registrations: %w", err)
	}
	return s.toResponses(ctx, regs), nil
}

// eventName resolves the display name for a registration's parent event.
// Deactivated or missing events yield nil: the registration stays
// queryable, the event is simply no longer visible to the caller.
func (s *RegistrationService) eventName(ctx context.Context, eventID uuid.UUID) *string {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil || !event.Active {
		return nil
	}
	return &event.Name
}

func (s *RegistrationService) toResponse(ctx context.Context, reg *model.Registration) *model.RegistrationResponse {
	return &model.RegistrationResponse{
		Registration: *reg,
		EventName:    s.eventName(ctx, reg.EventID),
	}
}

func (s *RegistrationService) toResponses(ctx context.Context, regs []model.Registration) []model.RegistrationResponse {
	responses := make([]model.RegistrationResponse, 0, len(regs))
	for i := range regs {
		responses = append(responses, *s.toResponse(ctx, &regs[i]))
	}
	return responses
}
