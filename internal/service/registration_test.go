package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsservicos/events-service/internal/model"
	"github.com/microsservicos/events-service/internal/service"
	"github.com/microsservicos/events-service/internal/storage"
	"github.com/microsservicos/events-service/internal/storage/memory"
)

func newServices(t *testing.T) (*service.EventService, *service.RegistrationService) {
	t.Helper()
	events, registrations := memory.New()
	return service.NewEventService(events, registrations),
		service.NewRegistrationService(events, registrations, nil)
}

func createEvent(t *testing.T, svc *service.EventService, maxCapacity *int) *model.EventResponse {
	t.Helper()
	event, err := svc.Create(context.Background(), model.CreateEventRequest{
		Name:        gofakeit.Sentence(3),
		Description: gofakeit.Sentence(8),
		EventDate:   time.Now().Add(48 * time.Hour),
		Location:    gofakeit.City(),
		MaxCapacity: maxCapacity,
	})
	require.NoError(t, err)
	return event
}

func newIdentity() model.Identity {
	return model.Identity{
		UserID: uuid.New(),
		Email:  gofakeit.Email(),
		Name:   gofakeit.Name(),
	}
}

func registrantOf(id model.Identity) model.RegisterUserRequest {
	return model.RegisterUserRequest{
		UserID:    id.UserID,
		UserEmail: id.Email,
		UserName:  id.Name,
	}
}

func intPtr(n int) *int { return &n }

func TestAdmit_HappyPath(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, intPtr(10))
	user := newIdentity()

	reg, err := regSvc.Admit(ctx, event.ID, registrantOf(user), user)
	require.NoError(t, err)

	assert.Equal(t, event.ID, reg.EventID)
	assert.Equal(t, user.UserID, reg.UserID)
	assert.Equal(t, user.UserID, reg.RegisteredBy)
	assert.False(t, reg.Attended)
	assert.Nil(t, reg.AttendedAt)
	assert.False(t, reg.RegisteredAt.IsZero())
	require.NotNil(t, reg.EventName)
	assert.Equal(t, event.Name, *reg.EventName)

	occ, err := eventSvc.Occupancy(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), occ.RegisteredCount)
	assert.Equal(t, int64(0), occ.AttendedCount)
}

func TestAdmit_EventNotFound(t *testing.T) {
	_, regSvc := newServices(t)
	user := newIdentity()

	_, err := regSvc.Admit(context.Background(), uuid.New(), registrantOf(user), user)
	require.ErrorIs(t, err, storage.ErrEventNotFound)
}

func TestAdmit_EventInactive(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)
	require.NoError(t, eventSvc.Deactivate(ctx, event.ID))

	user := newIdentity()
	_, err := regSvc.Admit(ctx, event.ID, registrantOf(user), user)
	require.ErrorIs(t, err, storage.ErrEventInactive)
}

func TestAdmit_Duplicate(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, intPtr(10))
	user := newIdentity()

	_, err := regSvc.Admit(ctx, event.ID, registrantOf(user), user)
	require.NoError(t, err)

	_, err = regSvc.Admit(ctx, event.ID, registrantOf(user), user)
	require.ErrorIs(t, err, storage.ErrAlreadyRegistered)

	occ, err := eventSvc.Occupancy(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), occ.RegisteredCount)
}

func TestAdmit_CapacityLifecycle(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, intPtr(2))
	userA, userB, userC := newIdentity(), newIdentity(), newIdentity()

	regA, err := regSvc.Admit(ctx, event.ID, registrantOf(userA), userA)
	require.NoError(t, err)

	_, err = regSvc.Admit(ctx, event.ID, registrantOf(userB), userB)
	require.NoError(t, err)

	// Third admission on a two-seat event is rejected.
	_, err = regSvc.Admit(ctx, event.ID, registrantOf(userC), userC)
	require.ErrorIs(t, err, storage.ErrCapacityExceeded)

	occ, err := eventSvc.Occupancy(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), occ.RegisteredCount)

	// Cancelling frees the seat for the previously rejected user.
	require.NoError(t, regSvc.Cancel(ctx, regA.ID, userA))

	_, err = regSvc.Admit(ctx, event.ID, registrantOf(userC), userC)
	require.NoError(t, err)

	occ, err = eventSvc.Occupancy(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), occ.RegisteredCount)
}

func TestAdmit_UnboundedCapacity(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)

	for range 50 {
		user := newIdentity()
		_, err := regSvc.Admit(ctx, event.ID, registrantOf(user), user)
		require.NoError(t, err)
	}

	occ, err := eventSvc.Occupancy(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), occ.RegisteredCount)
}

func TestAdmit_InvalidInput(t *testing.T) {
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)
	user := newIdentity()

	req := registrantOf(user)
	req.UserEmail = "not-an-email"
	_, err := regSvc.Admit(context.Background(), event.ID, req, user)
	require.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestAdmit_AdminDoesNotBypassInvariants(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, intPtr(1))
	admin := newIdentity()
	admin.Role = model.RoleAdmin

	attendee := newIdentity()
	reg, err := regSvc.Admit(ctx, event.ID, registrantOf(attendee), admin)
	require.NoError(t, err)
	assert.Equal(t, admin.UserID, reg.RegisteredBy)
	assert.Equal(t, attendee.UserID, reg.UserID)

	// Capacity and uniqueness hold for admin-initiated admissions too.
	_, err = regSvc.Admit(ctx, event.ID, registrantOf(attendee), admin)
	require.ErrorIs(t, err, storage.ErrAlreadyRegistered)

	other := newIdentity()
	_, err = regSvc.Admit(ctx, event.ID, registrantOf(other), admin)
	require.ErrorIs(t, err, storage.ErrCapacityExceeded)
}

func TestAdmit_ConcurrentSeatsNeverOvershoot(t *testing.T) {
	ctx := context.Background()
	const seats = 5
	const contenders = 50

	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, intPtr(seats))

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := newIdentity()
			_, err := regSvc.Admit(ctx, event.ID, registrantOf(user), user)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var admitted, rejected int
	for err := range results {
		if err == nil {
			admitted++
			continue
		}
		require.ErrorIs(t, err, storage.ErrCapacityExceeded)
		rejected++
	}
	assert.Equal(t, seats, admitted)
	assert.Equal(t, contenders-seats, rejected)

	occ, err := eventSvc.Occupancy(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(seats), occ.RegisteredCount)
}

func TestAdmit_ConcurrentSameUserAdmitsOnce(t *testing.T) {
	ctx := context.Background()
	const attempts = 20

	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)
	user := newIdentity()

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := regSvc.Admit(ctx, event.ID, registrantOf(user), user)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var admitted int
	for err := range results {
		if err == nil {
			admitted++
			continue
		}
		require.ErrorIs(t, err, storage.ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, admitted)
}

func TestMarkAttendance_Toggle(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)
	user := newIdentity()

	reg, err := regSvc.Admit(ctx, event.ID, registrantOf(user), user)
	require.NoError(t, err)

	marked, err := regSvc.MarkAttendance(ctx, reg.ID, true)
	require.NoError(t, err)
	assert.True(t, marked.Attended)
	require.NotNil(t, marked.AttendedAt)

	// Marking attended again is idempotent.
	marked, err = regSvc.MarkAttendance(ctx, reg.ID, true)
	require.NoError(t, err)
	assert.True(t, marked.Attended)
	require.NotNil(t, marked.AttendedAt)

	occ, err := eventSvc.Occupancy(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), occ.AttendedCount)

	// Unmarking clears the timestamp.
	unmarked, err := regSvc.MarkAttendance(ctx, reg.ID, false)
	require.NoError(t, err)
	assert.False(t, unmarked.Attended)
	assert.Nil(t, unmarked.AttendedAt)

	occ, err = eventSvc.Occupancy(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), occ.AttendedCount)
}

func TestMarkAttendance_NotFound(t *testing.T) {
	_, regSvc := newServices(t)
	_, err := regSvc.MarkAttendance(context.Background(), uuid.New(), true)
	require.ErrorIs(t, err, storage.ErrRegistrationNotFound)
}

func TestCancel_OwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)
	owner, stranger := newIdentity(), newIdentity()

	reg, err := regSvc.Admit(ctx, event.ID, registrantOf(owner), owner)
	require.NoError(t, err)

	err = regSvc.Cancel(ctx, reg.ID, stranger)
	require.ErrorIs(t, err, service.ErrForbidden)

	// The registration survives the forbidden attempt.
	regs, err := regSvc.UserRegistrations(ctx, owner.UserID)
	require.NoError(t, err)
	require.Len(t, regs, 1)

	require.NoError(t, regSvc.Cancel(ctx, reg.ID, owner))

	regs, err = regSvc.UserRegistrations(ctx, owner.UserID)
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestCancelByAdmin_NoOwnershipCheck(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)
	owner := newIdentity()

	reg, err := regSvc.Admit(ctx, event.ID, registrantOf(owner), owner)
	require.NoError(t, err)

	require.NoError(t, regSvc.CancelByAdmin(ctx, reg.ID))
	require.ErrorIs(t, regSvc.CancelByAdmin(ctx, reg.ID), storage.ErrRegistrationNotFound)
}

func TestUserRegistrations_TolerateDeactivatedEvent(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)
	user := newIdentity()

	_, err := regSvc.Admit(ctx, event.ID, registrantOf(user), user)
	require.NoError(t, err)

	require.NoError(t, eventSvc.Deactivate(ctx, event.ID))

	regs, err := regSvc.UserRegistrations(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, event.ID, regs[0].EventID)
	assert.Nil(t, regs[0].EventName)
}

func TestEventRegistrations_ListsInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	eventSvc, regSvc := newServices(t)
	event := createEvent(t, eventSvc, nil)

	first, second := newIdentity(), newIdentity()
	_, err := regSvc.Admit(ctx, event.ID, registrantOf(first), first)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = regSvc.Admit(ctx, event.ID, registrantOf(second), second)
	require.NoError(t, err)

	regs, err := regSvc.EventRegistrations(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, first.UserID, regs[0].UserID)
	assert.Equal(t, second.UserID, regs[1].UserID)
}
