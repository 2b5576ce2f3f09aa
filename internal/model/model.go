// Package model defines the core domain types for the event registration service.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RoleAdmin is the role claim value that unlocks administrative routes.
const RoleAdmin = "ADMIN"

// Event represents a capacity-bounded event managed by the catalog.
// Events are never physically deleted; deactivation (Active=false) blocks
// new admissions while keeping existing registrations referable.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EventDate   time.Time `json:"event_date"`
	Location    string    `json:"location"`
	MaxCapacity *int      `json:"max_capacity"` // nil means unbounded
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Unbounded reports whether the event has no capacity limit.
func (e *Event) Unbounded() bool {
	return e.MaxCapacity == nil
}

// Registration is a live ledger entry tying a user to an event.
// At most one live registration exists per (EventID, UserID) pair.
type Registration struct {
	ID           uuid.UUID  `json:"id"`
	EventID      uuid.UUID  `json:"event_id"`
	UserID       uuid.UUID  `json:"user_id"`
	UserEmail    string     `json:"user_email"`
	UserName     string     `json:"user_name"`
	RegisteredAt time.Time  `json:"registered_at"`
	Attended     bool       `json:"attended"`
	AttendedAt   *time.Time `json:"attended_at"` // set iff Attended
	RegisteredBy uuid.UUID  `json:"registered_by"`
}

// Occupancy is the derived live view of an event's registrations.
// It is always computed from the ledger, never stored.
type Occupancy struct {
	RegisteredCount int64 `json:"registered_count"`
	AttendedCount   int64 `json:"attended_count"`
}

// EventResponse is an Event enriched with its derived occupancy.
type EventResponse struct {
	Event
	Occupancy
}

// RegistrationResponse is a Registration enriched with the parent event's
// name. EventName is nil when the event is no longer visible to the caller;
// the registration itself stays queryable regardless.
type RegistrationResponse struct {
	Registration
	EventName *string `json:"event_name"`
}

// User is a user-service account as returned by the user directory.
type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Identity describes the authenticated caller, extracted from the bearer token.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Role   string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CreateEventRequest is the payload for creating an event.
type CreateEventRequest struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	Location    string    `json:"location" validate:"required,max=200"`
	MaxCapacity *int      `json:"max_capacity" validate:"omitempty,gt=0"`
}

// UpdateEventRequest is the payload for updating an event's metadata.
// All fields are overwritten, matching create semantics.
type UpdateEventRequest struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	Location    string    `json:"location" validate:"required,max=200"`
	MaxCapacity *int      `json:"max_capacity" validate:"omitempty,gt=0"`
}

// RegisterUserRequest is the payload for an admin registering another user.
// UserEmail and UserName are captured as an immutable snapshot on the
// registration; they are not re-synced if the user's profile changes later.
type RegisterUserRequest struct {
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	UserEmail string    `json:"user_email" validate:"required,email"`
	UserName  string    `json:"user_name" validate:"required,max=200"`
}

// RegisterUserByEmailRequest registers a user identified only by email.
// The user is resolved (or created) through the user directory first.
type RegisterUserByEmailRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
	UserName  string `json:"user_name" validate:"required,max=200"`
}

// AttendanceRequest is the payload for marking attendance on a registration.
type AttendanceRequest struct {
	Attended *bool `json:"attended" validate:"required"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
