package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noahpengding/peng-finance/internal/domain"
)

// CreateUser inserts a user row. Username is unique.
func (s *Storage) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email, token)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, user.Username, user.PasswordHash, user.Email, user.Token).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("CreateUser: inserting user: %w", err)
	}
	return nil
}

// GetUser returns the user by username, or nil when unknown.
func (s *Storage) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, email, token
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetUser: query: %w", err)
	}
	return &u, nil
}

// UpdateUserToken stores the user's current session token.
func (s *Storage) UpdateUserToken(ctx context.Context, username, token string) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE users SET token = $1 WHERE username = $2
	`, token, username)
	if err != nil {
		return fmt.Errorf("UpdateUserToken: exec: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("UpdateUserToken: user %q not found", username)
	}
	return nil
}

// ListUsers returns every user, for snapshot export.
func (s *Storage) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, username, password_hash, email, token
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: query: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Token); err != nil {
			return nil, fmt.Errorf("ListUsers: scanning row: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
