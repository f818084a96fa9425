package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rayaadinda/kp-inventory/internal/models"
)

var ErrDuplicateEmail = errors.New("email already registered")

// userRow is a user with its password hash.
type userRow struct {
	models.User
	PasswordHash string `db:"password_hash"`
}

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, string, error)
	Create(ctx context.Context, u models.User, passwordHash string) (*models.User, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// FindByEmail returns the user and their password hash. Emails compare
// case-insensitively.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		"SELECT id, name, email, role, password_hash FROM users WHERE lower(email) = lower(?)", strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	return &row.User, row.PasswordHash, nil
}

func (r *userRepository) Create(ctx context.Context, u models.User, passwordHash string) (*models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleStaff
	}
	_, err := r.db.ExecContext(ctx, "INSERT INTO users (id, name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Name, u.Email, passwordHash, u.Role)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}
