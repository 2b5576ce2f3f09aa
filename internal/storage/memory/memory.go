// Package memory implements the event and registration stores in process
// memory. It backs the test suite and DB-less local runs, and upholds the
// same admission guarantees as the postgres backend: the check-and-insert
// runs inside a per-event critical section.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/microsservicos/events-service/internal/model"
	"github.com/microsservicos/events-service/internal/storage"
)

type core struct {
	mu     sync.RWMutex
	events map[uuid.UUID]model.Event
	regs   map[uuid.UUID]model.Registration

	// admission critical sections, one per event
	admitMu    map[uuid.UUID]*sync.Mutex
	admitGuard sync.Mutex
}

// New constructs the shared in-memory state and returns the two store views
// over it.
func New() (*EventStore, *RegistrationStore) {
	c := &core{
		events:  make(map[uuid.UUID]model.Event),
		regs:    make(map[uuid.UUID]model.Registration),
		admitMu: make(map[uuid.UUID]*sync.Mutex),
	}
	return &EventStore{c: c}, &RegistrationStore{c: c}
}

func (c *core) eventLock(eventID uuid.UUID) *sync.Mutex {
	c.admitGuard.Lock()
	defer c.admitGuard.Unlock()
	mu, ok := c.admitMu[eventID]
	if !ok {
		mu = &sync.Mutex{}
		c.admitMu[eventID] = mu
	}
	return mu
}

// EventStore is the in-memory event catalog.
type EventStore struct {
	c *core
}

// Create inserts a new event.
func (s *EventStore) Create(_ context.Context, event *model.Event) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.events[event.ID] = *event
	return nil
}

// Update overwrites an event's metadata.
func (s *EventStore) Update(_ context.Context, event *model.Event) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if _, ok := s.c.events[event.ID]; !ok {
		return storage.ErrEventNotFound
	}
	s.c.events[event.ID] = *event
	return nil
}

// GetByID returns a single event or storage.ErrEventNotFound.
func (s *EventStore) GetByID(_ context.Context, id uuid.UUID) (*model.Event, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	event, ok := s.c.events[id]
	if !ok {
		return nil, storage.ErrEventNotFound
	}
	return &event, nil
}

// ListActive returns all active events ordered by event date descending.
func (s *EventStore) ListActive(_ context.Context) ([]model.Event, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	var events []model.Event
	for _, e := range s.c.events {
		if e.Active {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].EventDate.After(events[j].EventDate)
	})
	return events, nil
}

// ListUpcoming returns active events dated after the given instant, soonest first.
func (s *EventStore) ListUpcoming(_ context.Context, after time.Time) ([]model.Event, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	var events []model.Event
	for _, e := range s.c.events {
		if e.Active && e.EventDate.After(after) {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].EventDate.Before(events[j].EventDate)
	})
	return events, nil
}

// Deactivate soft-deletes an event.
func (s *EventStore) Deactivate(_ context.Context, id uuid.UUID) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	event, ok := s.c.events[id]
	if !ok {
		return storage.ErrEventNotFound
	}
	event.Active = false
	event.UpdatedAt = time.Now().UTC()
	s.c.events[id] = event
	return nil
}

// RegistrationStore is the in-memory registration ledger.
type RegistrationStore struct {
	c *core
}

// Admit performs the check-and-insert admission inside the event's critical
// section, so concurrent admissions for the same event run one at a time.
func (s *RegistrationStore) Admit(_ context.Context, reg *model.Registration) error {
	lock := s.c.eventLock(reg.EventID)
	lock.Lock()
	defer lock.Unlock()

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	event, ok := s.c.events[reg.EventID]
	if !ok {
		return storage.ErrEventNotFound
	}
	if !event.Active {
		return storage.ErrEventInactive
	}

	var count int
	for _, r := range s.c.regs {
		if r.EventID != reg.EventID {
			continue
		}
		if r.UserID == reg.UserID {
			return storage.ErrAlreadyRegistered
		}
		count++
	}
	if event.MaxCapacity != nil && count >= *event.MaxCapacity {
		return storage.ErrCapacityExceeded
	}

	s.c.regs[reg.ID] = *reg
	return nil
}

// GetByID returns a single registration or storage.ErrRegistrationNotFound.
func (s *RegistrationStore) GetByID(_ context.Context, id uuid.UUID) (*model.Registration, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	reg, ok := s.c.regs[id]
	if !ok {
		return nil, storage.ErrRegistrationNotFound
	}
	return &reg, nil
}

// SetAttendance toggles the attended flag, keeping AttendedAt present iff
// attended.
func (s *RegistrationStore) SetAttendance(_ context.Context, id uuid.UUID, attended bool) (*model.Registration, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	reg, ok := s.c.regs[id]
	if !ok {
		return nil, storage.ErrRegistrationNotFound
	}
	reg.Attended = attended
	if attended {
		now := time.Now().UTC()
		reg.AttendedAt = &now
	} else {
		reg.AttendedAt = nil
	}
	s.c.regs[id] = reg
	return &reg, nil
}

// Delete removes a registration permanently.
func (s *RegistrationStore) Delete(_ context.Context, id uuid.UUID) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if _, ok := s.c.regs[id]; !ok {
		return storage.ErrRegistrationNotFound
	}
	delete(s.c.regs, id)
	return nil
}

// ListByEvent returns all registrations for an event, oldest first.
func (s *RegistrationStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]model.Registration, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	var regs []model.Registration
	for _, r := range s.c.regs {
		if r.EventID == eventID {
			regs = append(regs, r)
		}
	}
	sortByRegisteredAt(regs)
	return regs, nil
}

// ListByUser returns all of a user's registrations, oldest first.
func (s *RegistrationStore) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Registration, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	var regs []model.Registration
	for _, r := range s.c.regs {
		if r.UserID == userID {
			regs = append(regs, r)
		}
	}
	sortByRegisteredAt(regs)
	return regs, nil
}

// CountByEvent computes the derived occupancy for an event.
func (s *RegistrationStore) CountByEvent(_ context.Context, eventID uuid.UUID) (model.Occupancy, error) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()
	var occ model.Occupancy
	for _, r := range s.c.regs {
		if r.EventID != eventID {
			continue
		}
		occ.RegisteredCount++
		if r.Attended {
			occ.AttendedCount++
		}
	}
	return occ, nil
}

func sortByRegisteredAt(regs []model.Registration) {
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
	})
}
