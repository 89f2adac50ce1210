package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roomline/backend/internal/models"
)

const (
	pgExclusionViolation  = "23P01"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
)

// Repository persists bookings in PostgreSQL. It implements Store: creates
// and updates run in a transaction, and the bookings_no_overlap exclusion
// constraint turns a lost conflict race into ErrTimeConflict at commit time.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a bookings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bookingColumns = `b.id, b.room_id, b.user_id, u.email, b.title, b.start_time, b.end_time, r.name, u.name`

const bookingJoin = ` FROM bookings b
	JOIN rooms r ON b.room_id = r.id
	JOIN users u ON b.user_id = u.id`

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.RoomID, &b.UserID, &b.UserEmail, &b.Title, &b.StartTime, &b.EndTime, &b.RoomName, &b.UserName)
	if err != nil {
		return nil, mapError(err)
	}
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	return &b, nil
}

// List returns all bookings with room and owner names, ordered by start time.
func (r *Repository) List(ctx context.Context) ([]models.Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+bookingJoin+` ORDER BY b.start_time`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListByRoom returns the bookings for one room. The result is the snapshot
// the conflict detector evaluates.
func (r *Repository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+bookingJoin+` WHERE b.room_id = $1 ORDER BY b.start_time`, roomID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// GetByID returns one booking.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+bookingJoin+` WHERE b.id = $1`, id))
}

// Create provisions the owning user (idempotently, keyed on the email
// uniqueness constraint) and inserts the booking in one transaction.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*models.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Upsert instead of check-then-insert: concurrent provisioning of the
	// same email must not produce duplicate rows, and DO UPDATE keeps
	// RETURNING populated for the existing row.
	var userID uuid.UUID
	err = tx.QueryRow(ctx, `INSERT INTO users (name, email)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id`, params.OwnerName, params.OwnerEmail).Scan(&userID)
	if err != nil {
		return nil, mapError(err)
	}

	var bookingID uuid.UUID
	err = tx.QueryRow(ctx, `INSERT INTO bookings (room_id, user_id, title, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, params.RoomID, userID, params.Title, params.Start, params.End).Scan(&bookingID)
	if err != nil {
		return nil, mapError(err)
	}

	booking, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+bookingJoin+` WHERE b.id = $1`, bookingID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err)
	}
	return booking, nil
}

// Update rewrites a booking's title and interval. The exclusion constraint
// rejects reschedules that overlap another booking.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title string, start, end time.Time) (*models.Booking, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE bookings
		SET title = $1, start_time = $2, end_time = $3, updated_at = NOW()
		WHERE id = $4`, title, start, end, id)
	if err != nil {
		return nil, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a booking.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectBookings(rows pgx.Rows) ([]models.Booking, error) {
	var list []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.RoomID, &b.UserID, &b.UserEmail, &b.Title, &b.StartTime, &b.EndTime, &b.RoomName, &b.UserName); err != nil {
			return nil, err
		}
		b.StartTime = b.StartTime.UTC()
		b.EndTime = b.EndTime.UTC()
		list = append(list, b)
	}
	return list, rows.Err()
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrTimeConflict
		case pgCheckViolation:
			return ErrInvalidTimeRange
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
