// Package storage declares the persistence contracts for the event catalog
// and the registration ledger, plus the sentinel errors every backend maps
// its failures onto. Backends live in subpackages (postgres, memory).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/microsservicos/events-service/internal/model"
)

// ErrEventNotFound is returned when the referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrEventInactive is returned when admission targets a deactivated event.
var ErrEventInactive = errors.New("event is inactive")

// ErrAlreadyRegistered is returned when a live registration already exists
// for the same (event, user) pair.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// ErrCapacityExceeded is returned when the event has no remaining capacity.
var ErrCapacityExceeded = errors.New("event has reached maximum capacity")

// ErrRegistrationNotFound is returned when the referenced registration
// does not exist.
var ErrRegistrationNotFound = errors.New("registration not found")

// EventStore persists event catalog entries.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	Update(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	ListActive(ctx context.Context) ([]model.Event, error)
	ListUpcoming(ctx context.Context, after time.Time) ([]model.Event, error)
	// Deactivate is the soft delete: it flips Active to false so the event
	// stops accepting admissions while existing registrations keep a valid
	// reference.
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// RegistrationStore persists the registration ledger. Occupancy is always
// derived by counting ledger rows; no backend keeps a separate counter.
type RegistrationStore interface {
	// Admit atomically performs the check-and-insert admission: it verifies
	// the event exists and is active, that no live registration exists for
	// (reg.EventID, reg.UserID), and that the derived registered count is
	// below the event's capacity, then inserts reg. The checks and the
	// insert are serialized per event so concurrent admissions cannot
	// overshoot capacity or double-register a user. Failures map onto
	// ErrEventNotFound, ErrEventInactive, ErrAlreadyRegistered and
	// ErrCapacityExceeded.
	Admit(ctx context.Context, reg *model.Registration) error

	GetByID(ctx context.Context, id uuid.UUID) (*model.Registration, error)

	// SetAttendance toggles the attended flag. AttendedAt is set to now on
	// a transition to true and cleared on a transition to false; marking an
	// already-attended registration attended again is not an error.
	SetAttendance(ctx context.Context, id uuid.UUID, attended bool) (*model.Registration, error)

	// Delete removes the registration permanently. Cancellation keeps no
	// history.
	Delete(ctx context.Context, id uuid.UUID) error

	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Registration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Registration, error)

	// CountByEvent returns the derived occupancy for an event.
	CountByEvent(ctx context.Context, eventID uuid.UUID) (model.Occupancy, error)
}
