package rooms

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roomline/backend/internal/models"
)

// ErrNotFound indicates no room matched.
var ErrNotFound = errors.New("room not found")

// Repository handles room persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a rooms repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roomColumns = `id, name, description, capacity, created_at, updated_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Capacity, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// List returns all rooms ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.Capacity, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, room)
	}
	return list, rows.Err()
}

// GetByID returns a room by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

// Create inserts a room.
func (r *Repository) Create(ctx context.Context, name, description string, capacity *int) (*models.Room, error) {
	return scanRoom(r.pool.QueryRow(ctx, `INSERT INTO rooms (name, description, capacity)
		VALUES ($1, $2, $3)
		RETURNING `+roomColumns, name, description, capacity))
}

// Update rewrites a room's attributes.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description string, capacity *int) (*models.Room, error) {
	return scanRoom(r.pool.QueryRow(ctx, `UPDATE rooms
		SET name = $1, description = $2, capacity = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+roomColumns, name, description, capacity, id))
}

// Delete removes a room. Bookings and room permissions cascade with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
