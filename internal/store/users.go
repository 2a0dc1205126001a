package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
)

// CreateUser inserts a user record. A missing ID is assigned automatically.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, card_id)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.CardID)
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByCardID looks up a user by the canonical card identifier.
// Returns model.ErrNotFound when no user carries the identifier.
func (s *Store) GetUserByCardID(ctx context.Context, cardID string) (model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, card_id FROM users WHERE card_id = ?
	`, cardID).Scan(&u.ID, &u.Name, &u.Email, &u.CardID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user with card %s: %w", cardID, model.ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user by card: %w", err)
	}
	return u, nil
}
