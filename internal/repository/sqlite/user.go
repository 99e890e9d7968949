package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/model"
	"github.com/sakif/nutrilog/internal/repository"
)

// UserRepo implements repository.UserRepository over the shared pool.
type UserRepo struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id, email, name, password_hash, google_id,
	target_calories, target_protein, target_carbs, target_fat, created_at, updated_at`

// Create inserts a new user, assigning ID and timestamps.
// A duplicate email violates the UNIQUE constraint and surfaces as a
// Conflict so the register handler can return 409.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.GoogleID,
		user.Targets.Calories,
		user.Targets.Protein,
		user.Targets.Carbs,
		user.Targets.Fat,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepo) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.getBy(ctx, "google_id", googleID)
}

func (r *UserRepo) getBy(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User
	err := r.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.GoogleID,
		&user.Targets.Calories,
		&user.Targets.Protein,
		&user.Targets.Carbs,
		&user.Targets.Fat,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return &user, nil
}

// Update persists the mutable user fields (name, targets, google link).
func (r *UserRepo) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	res, err := r.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, google_id = ?,
		     target_calories = ?, target_protein = ?, target_carbs = ?, target_fat = ?,
		     updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.GoogleID,
		user.Targets.Calories,
		user.Targets.Protein,
		user.Targets.Carbs,
		user.Targets.Fat,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// isUniqueViolation sniffs the driver error text for a UNIQUE failure.
// modernc.org/sqlite doesn't export typed constraint errors through
// database/sql, so matching the message is the practical option.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
