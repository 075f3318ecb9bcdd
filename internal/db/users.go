package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetUser returns the user with the given subject id, or nil if absent.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := db.pool.QueryRow(ctx,
		`SELECT id, email, first_name, last_name, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user. created is false when the id already existed,
// in which case the row is left untouched.
func (db *DB) CreateUser(ctx context.Context, u *User) (created bool, err error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO users (id, email, first_name, last_name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		u.ID, u.Email, u.FirstName, u.LastName,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteUser removes a user and, through the foreign key, their resumes.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
