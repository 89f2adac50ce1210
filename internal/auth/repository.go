package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roomline/backend/internal/models"
	"github.com/roomline/backend/pkg/utils"
)

var (
	// ErrUserExists indicates the email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrNotFound indicates no user matched.
	ErrNotFound = errors.New("user not found")
)

const pgUniqueViolation = "23505"

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, name, email, COALESCE(password, ''), role, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Create inserts a new user. The email uniqueness constraint is authoritative:
// a concurrent registration for the same address surfaces as ErrUserExists.
func (r *Repository) Create(ctx context.Context, name, email, passwordHash string, role models.GlobalRole) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (name, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, name, email, passwordHash, string(role))
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// EnsureAdmin seeds the bootstrap admin account. If the user exists it is
// promoted to admin and given a password only when it has none.
func (r *Repository) EnsureAdmin(ctx context.Context, name, email, password string) error {
	existing, err := r.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	if existing == nil {
		_, err = r.pool.Exec(ctx, `INSERT INTO users (name, email, password, role)
			VALUES ($1, $2, $3, 'admin')
			ON CONFLICT (email) DO NOTHING`, name, email, hash)
		return err
	}

	if existing.Password == "" {
		if _, err := r.pool.Exec(ctx, `UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2`, hash, existing.ID); err != nil {
			return err
		}
	}
	if existing.Role != models.RoleAdmin {
		if _, err := r.pool.Exec(ctx, `UPDATE users SET role = 'admin', updated_at = NOW() WHERE id = $1`, existing.ID); err != nil {
			return err
		}
	}
	return nil
}
