package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/shared"
)

const userColumns = `id, sequence, external_id, display_name, email, avatar_url, created_at, updated_at`

type UserRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a generated ID and sequence.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	user.ID = shared.GenerateID()
	user.Sequence = sequence
	user.CreatedAt, user.UpdatedAt = now, now

	query := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :sequence, :external_id, :display_name, :email, :avatar_url, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, user); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.getBy(ctx, "external_id", externalID)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`
	if err := sqlx.GetContext(ctx, r.db, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, value)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Update writes the profile fields of an existing user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	user.UpdatedAt = time.Now().UTC()

	query := `UPDATE users SET display_name = :display_name, email = :email, avatar_url = :avatar_url, updated_at = :updated_at
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res, shared.ErrUserNotFound, user.ID)
}

// GetOrCreate returns the user with user.ExternalID, creating it from user when absent.
//
// The returned bool is true when a row was inserted.
func (r *UserRepository) GetOrCreate(ctx context.Context, user *models.User) (*models.User, bool, error) {
	existing, err := r.GetByExternalID(ctx, user.ExternalID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrUserNotFound) {
		return nil, false, err
	}

	if err := r.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// requireRow turns a zero-row result into notFound.
func requireRow(res sql.Result, notFound error, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
