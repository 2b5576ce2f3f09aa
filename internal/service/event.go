// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the storage layer.
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

// ErrInvalidInput marks request-validation failures. Handlers map it to a
// 400 response; the wrapped message explains which field was rejected.
var ErrInvalidInput = errors.New("invalid input")

// ErrForbidden is returned when a caller tries to cancel a registration
// they do not own.
var ErrForbidden = errors.New("not allowed to cancel this registration")

// EventService orchestrates event catalog operations. Occupancy figures on
// its responses are derived from the registration ledger on every read.
type EventService struct {
	events        storage.EventStore
	registrations storage.RegistrationStore
	validate      *validator.Validate
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events storage.EventStore, registrations storage.RegistrationStore) *EventService {
	return &EventService{
		events:        events,
		registrations: registrations,
		validate:      validator.New(),
	}
}

// Create validates the request and inserts a new active event.
func (s *EventService) Create(ctx context.Context, req model.CreateEventRequest) (*model.EventResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	event := &model.Event{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		EventDate:   req.EventDate,
		Location:    req.Location,
		MaxCapacity: req.MaxCapacity,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &model.EventResponse{Event: *event}, nil
}

// Update overwrites an event's metadata.
func (s *EventService) Update(ctx context.Context, id uuid.UUID, req model.UpdateEventRequest) (*model.EventResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	event.Name = req.Name
	event.Description = req.Description
	event.EventDate = req.EventDate
	event.Location = req.Location
	event.MaxCapacity = req.MaxCapacity
	event.UpdatedAt = time.Now().UTC()

	if err := s.events.Update(ctx, event); err != nil {
		return nil, err
	}
	return s.toResponse(ctx, event)
}

// Get returns a single event with its derived occupancy.
func (s *EventService) Get(ctx context.Context, id uuid.UUID) (*model.EventResponse, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, event)
}

// ListActive returns all active events, most recent event date first.
func (s *EventService) ListActive(ctx context.Context) ([]model.EventResponse, error) {
	events, err := s.events.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return s.toResponses(ctx, events)
}

// ListUpcoming returns active events that have not happened yet, soonest first.
func (s *EventService) ListUpcoming(ctx context.Context) ([]model.EventResponse, error) {
	events, err := s.events.ListUpcoming(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return s.toResponses(ctx, events)
}

// Deactivate soft-deletes an event. Existing registrations stay intact and
// queryable; only new admissions are blocked.
func (s *EventService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.events.Deactivate(ctx, id)
}

// Occupancy returns the derived registration and attendance counts for an
// event, or storage.ErrEventNotFound when the event does not exist.
func (s *EventService) Occupancy(ctx context.Context, id uuid.UUID) (model.Occupancy, error) {
	if _, err := s.events.GetByID(ctx, id); err != nil {
		return model.Occupancy{}, err
	}
	occ, err := s.registrations.CountByEvent(ctx, id)
	if err != nil {
		return model.Occupancy{}, fmt.Errorf("event occupancy: %w", err)
	}
	return occ, nil
}

func (s *EventService) toResponse(ctx context.Context, event *model.Event) (*model.EventResponse, error) {
	occ, err := s.registrations.CountByEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("event occupancy: %w", err)
	}
	return &model.EventResponse{Event: *event, Occupancy: occ}, nil
}

func (s *EventService) toResponses(ctx context.Context, events []model.Event) ([]model.EventResponse, error) {
	responses := make([]model.EventResponse, 0, len(events))
	for i := range events {
		resp, err := s.toResponse(ctx, &events[i])
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}
