// Package postgres implements the event and registration stores on
// PostgreSQL using pgx directly (no ORM).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microsservicos/events-service/internal/model"
	"github.com/microsservicos/events-service/internal/storage"
)

// uniqueViolation is the PostgreSQL error code raised when the
// (event_id, user_id) unique index rejects an insert.
const uniqueViolation = "23505"

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	// Sensible pool defaults for a small service.
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			pingErr := pool.Ping(ctx)
			if pingErr == nil {
				return pool, nil
			}
			err = pingErr
			pool.Close()
		}
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// EventStore persists event catalog entries.
type EventStore struct {
	db *pgxpool.Pool
}

// NewEventStore constructs an EventStore.
func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, name, description, event_date, location, max_capacity, active, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.EventDate, &e.Location,
		&e.MaxCapacity, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (s *EventStore) Create(ctx context.Context, event *model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (id, name, description, event_date, location, max_capacity, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.Name, event.Description, event.EventDate, event.Location,
		event.MaxCapacity, event.Active, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update overwrites an event's metadata.
func (s *EventStore) Update(ctx context.Context, event *model.Event) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE events
		 SET name = $2, description = $3, event_date = $4, location = $5, max_capacity = $6, updated_at = $7
		 WHERE id = $1`,
		event.ID, event.Name, event.Description, event.EventDate, event.Location,
		event.MaxCapacity, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrEventNotFound
	}
	return nil
}

// GetByID returns a single event or storage.ErrEventNotFound.
func (s *EventStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	event, err := scanEvent(s.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListActive returns all active events ordered by event date descending.
func (s *EventStore) ListActive(ctx context.Context) ([]model.Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE active ORDER BY event_date DESC`)
}

// ListUpcoming returns active events whose date is after the given instant,
// soonest first.
func (s *EventStore) ListUpcoming(ctx context.Context, after time.Time) ([]model.Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE active AND event_date > $1 ORDER BY event_date ASC`,
		after)
}

func (s *EventStore) list(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Deactivate soft-deletes an event. The row stays in place so existing
// registrations keep a valid reference.
func (s *EventStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE events SET active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrEventNotFound
	}
	return nil
}

// RegistrationStore persists the registration ledger.
type RegistrationStore struct {
	db *pgxpool.Pool
}

// NewRegistrationStore constructs a RegistrationStore.
func NewRegistrationStore(db *pgxpool.Pool) *RegistrationStore {
	return &RegistrationStore{db: db}
}

const registrationColumns = `id, event_id, user_id, user_email, user_name, registered_at, attended, attended_at, registered_by`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.UserEmail, &reg.UserName,
		&reg.RegisteredAt, &reg.Attended, &reg.AttendedAt, &reg.RegisteredBy)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Admit performs the concurrency-safe check-and-insert admission inside a
// single transaction.
//
// A naive "read count, compare, insert" lets two concurrent admissions both
// observe free capacity and both insert, overbooking the event. SELECT …
// FOR UPDATE on the event row takes a row-level exclusive lock for the
// duration of the transaction, so admissions for the same event run one at
// a time; the unique index on (event_id, user_id) backstops the duplicate
// check in case a registration sneaks in through another code path.
func (s *RegistrationStore) Admit(ctx context.Context, reg *model.Registration) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock the event row; this serializes admissions per event.
	var active bool
	var maxCapacity *int
	err = tx.QueryRow(ctx,
		`SELECT active, max_capacity FROM events WHERE id = $1 FOR UPDATE`,
		reg.EventID,
	).Scan(&active, &maxCapacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = storage.ErrEventNotFound
			return err
		}
		return fmt.Errorf("lock event row: %w", err)
	}
	if !active {
		err = storage.ErrEventInactive
		return err
	}

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_registrations WHERE event_id = $1 AND user_id = $2)`,
		reg.EventID, reg.UserID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		err = storage.ErrAlreadyRegistered
		return err
	}

	// Occupancy is derived: count live rows under the lock rather than
	// trusting a stored counter that could drift.
	if maxCapacity != nil {
		var count int64
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`,
			reg.EventID,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		if count >= int64(*maxCapacity) {
			err = storage.ErrCapacityExceeded
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO event_registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		reg.ID, reg.EventID, reg.UserID, reg.UserEmail, reg.UserName,
		reg.RegisteredAt, reg.Attended, reg.AttendedAt, reg.RegisteredBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = storage.ErrAlreadyRegistered
			return err
		}
		return fmt.Errorf("insert registration: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a single registration or storage.ErrRegistrationNotFound.
func (s *RegistrationStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	reg, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM event_registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// SetAttendance toggles the attended flag in a single row update, keeping
// attended_at present iff attended.
func (s *RegistrationStore) SetAttendance(ctx context.Context, id uuid.UUID, attended bool) (*model.Registration, error) {
	reg, err := scanRegistration(s.db.QueryRow(ctx,
		`UPDATE event_registrations
		 SET attended = $2, attended_at = CASE WHEN $2 THEN now() ELSE NULL END
		 WHERE id = $1
		 RETURNING `+registrationColumns,
		id, attended))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("set attendance: %w", err)
	}
	return reg, nil
}

// Delete removes a registration permanently.
func (s *RegistrationStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM event_registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrRegistrationNotFound
	}
	return nil
}

// ListByEvent returns all registrations for an event, oldest first.
func (s *RegistrationStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Registration, error) {
	return s.list(ctx,
		`SELECT `+registrationColumns+` FROM event_registrations WHERE event_id = $1 ORDER BY registered_at ASC`,
		eventID)
}

// ListByUser returns all of a user's registrations, oldest first.
func (s *RegistrationStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Registration, error) {
	return s.list(ctx,
		`SELECT `+registrationColumns+` FROM event_registrations WHERE user_id = $1 ORDER BY registered_at ASC`,
		userID)
}

func (s *RegistrationStore) list(ctx context.Context, query string, args ...any) ([]model.Registration, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// CountByEvent computes the derived occupancy for an event.
func (s *RegistrationStore) CountByEvent(ctx context.Context, eventID uuid.UUID) (model.Occupancy, error) {
	var occ model.Occupancy
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE attended)
		 FROM event_registrations WHERE event_id = $1`,
		eventID,
	).Scan(&occ.RegisteredCount, &occ.AttendedCount)
	if err != nil {
		return model.Occupancy{}, fmt.Errorf("count registrations: %w", err)
	}
	return occ, nil
}
