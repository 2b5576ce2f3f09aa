package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsservicos/events-service/internal/model"
	"github.com/microsservicos/events-service/internal/service"
	"github.com/microsservicos/events-service/internal/storage/memory"
)

// fakeDirectory is an in-process stand-in for the user service.
type fakeDirectory struct {
	users   map[string]*model.User
	created int
}

func (f *fakeDirectory) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return f.users[email], nil
}

func (f *fakeDirectory) Create(_ context.Context, name, email string) (*model.User, error) {
	user := &model.User{ID: uuid.New(), Name: name, Email: email}
	f.users[email] = user
	f.created++
	return user, nil
}

func TestAdmitByEmail_ExistingUser(t *testing.T) {
	ctx := context.Background()
	events, registrations := memory.New()
	eventSvc := service.NewEventService(events, registrations)

	existing := &model.User{ID: uuid.New(), Name: "Ana Costa", Email: "ana@example.com"}
	dir := &fakeDirectory{users: map[string]*model.User{existing.Email: existing}}
	regSvc := service.NewRegistrationService(events, registrations, dir)

	event := createEvent(t, eventSvc, nil)
	admin := newIdentity()
	admin.Role = model.RoleAdmin

	reg, err := regSvc.AdmitByEmail(ctx, event.ID, model.RegisterUserByEmailRequest{
		UserEmail: "ANA@example.com", // email is normalised before lookup
		UserName:  existing.Name,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, reg.UserID)
	assert.Equal(t, admin.UserID, reg.RegisteredBy)
	assert.Zero(t, dir.created)
}

func TestAdmitByEmail_ProvisionsUnknownUser(t *testing.T) {
	ctx := context.Background()
	events, registrations := memory.New()
	eventSvc := service.NewEventService(events, registrations)

	dir := &fakeDirectory{users: map[string]*model.User{}}
	regSvc := service.NewRegistrationService(events, registrations, dir)

	event := createEvent(t, eventSvc, nil)
	admin := newIdentity()
	admin.Role = model.RoleAdmin

	reg, err := regSvc.AdmitByEmail(ctx, event.ID, model.RegisterUserByEmailRequest{
		UserEmail: "novo@example.com",
		UserName:  "Novo Participante",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, dir.created)
	assert.Equal(t, "novo@example.com", reg.UserEmail)
	require.NotNil(t, dir.users["novo@example.com"])
	assert.Equal(t, dir.users["novo@example.com"].ID, reg.UserID)
}

func TestAdmitByEmail_InvalidEmail(t *testing.T) {
	events, registrations := memory.New()
	regSvc := service.NewRegistrationService(events, registrations, &fakeDirectory{users: map[string]*model.User{}})

	_, err := regSvc.AdmitByEmail(context.Background(), uuid.New(), model.RegisterUserByEmailRequest{
		UserEmail: "not-an-email",
		UserName:  "X",
	}, newIdentity())
	require.ErrorIs(t, err, service.ErrInvalidInput)
}
