// Package permissions stores per-room delegated roles keyed by user email.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roomline/backend/internal/models"
)

// Repository handles room permission persistence. It implements
// authz.PermissionStore; RoleFor reads the current row at decision time so
// authorization never acts on a request-start snapshot.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a permissions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RoleFor returns the delegated role for (roomID, email), if any.
func (r *Repository) RoleFor(ctx context.Context, roomID uuid.UUID, email string) (models.RoomRole, bool, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM room_permissions
		WHERE room_id = $1 AND user_email = $2`, roomID, normalize(email)).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup room permission: %w", err)
	}
	return models.RoomRole(role), true, nil
}

// List returns the permission entries for one room.
func (r *Repository) List(ctx context.Context, roomID uuid.UUID) ([]models.RoomPermission, error) {
	rows, err := r.pool.Query(ctx, `SELECT room_id, user_email, role FROM room_permissions
		WHERE room_id = $1 ORDER BY user_email`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.RoomPermission
	for rows.Next() {
		var p models.RoomPermission
		var role string
		if err := rows.Scan(&p.RoomID, &p.UserEmail, &role); err != nil {
			return nil, err
		}
		p.Role = models.RoomRole(role)
		list = append(list, p)
	}
	return list, rows.Err()
}

// Upsert grants or overwrites the delegated role for (roomID, email) and
// lazily provisions a user row for the email, both in one transaction.
func (r *Repository) Upsert(ctx context.Context, roomID uuid.UUID, email string, role models.RoomRole) (*models.RoomPermission, error) {
	email = normalize(email)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO users (name, email)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING`, nameFromEmail(email), email)
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}

	var p models.RoomPermission
	var roleStr string
	err = tx.QueryRow(ctx, `INSERT INTO room_permissions (room_id, user_email, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_email) DO UPDATE SET role = EXCLUDED.role
		RETURNING room_id, user_email, role`, roomID, email, string(role)).Scan(&p.RoomID, &p.UserEmail, &roleStr)
	if err != nil {
		return nil, fmt.Errorf("upsert permission: %w", err)
	}
	p.Role = models.RoomRole(roleStr)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &p, nil
}

// Remove deletes the permission entry for (roomID, email). Removing an
// absent entry is a no-op.
func (r *Repository) Remove(ctx context.Context, roomID uuid.UUID, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM room_permissions
		WHERE room_id = $1 AND user_email = $2`, roomID, normalize(email))
	return err
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
