package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bizpadi-api/internal/models"
)

const clientColumns = `client_id, user_id, name, email, phone_number, address, created_at, updated_at`

// CreateClient inserts a new client
func (s *Store) CreateClient(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (client_id, user_id, name, email, phone_number, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		client.ID, client.OwnerID, client.Name, client.Email, client.PhoneNumber, client.Address,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", translateError(err))
	}
	return nil
}

// GetClient retrieves a client owned by ownerID
func (s *Store) GetClient(ctx context.Context, ownerID, clientID string) (*models.Client, error) {
	var client models.Client
	err := s.db.GetContext(ctx, &client,
		"SELECT "+clientColumns+" FROM clients WHERE client_id = $1 AND user_id = $2",
		clientID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", translateError(err))
	}
	return &client, nil
}

// UpdateClient rewrites a client's contact fields
func (s *Store) UpdateClient(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients
		SET name = $1, email = $2, phone_number = $3, address = $4, updated_at = NOW()
		WHERE client_id = $5 AND user_id = $6
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		client.Name, client.Email, client.PhoneNumber, client.Address, client.ID, client.OwnerID,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("client %s: %w", client.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update client: %w", translateError(err))
	}
	return nil
}

// DeleteClient removes a client
func (s *Store) DeleteClient(ctx context.Context, ownerID, clientID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM clients WHERE client_id = $1 AND user_id = $2", clientID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", translateError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("client %s: %w", clientID, ErrNotFound)
	}
	return nil
}
