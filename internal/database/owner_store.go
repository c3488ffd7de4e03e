package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// OwnerStore reads owner records, mainly for notification contact lookup
type OwnerStore struct {
	db *DB
}

// NewOwnerStore creates a new owner store
func NewOwnerStore(db *DB) *OwnerStore {
	return &OwnerStore{db: db}
}

// GetByID retrieves an owner; returns nil when absent
func (s *OwnerStore) GetByID(ctx context.Context, ownerID string) (*models.Owner, error) {
	var o models.Owner
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(email, ''), display_name, created_at
		FROM owners WHERE id = $1`, ownerID).
		Scan(&o.ID, &o.Email, &o.DisplayName, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return &o, nil
}

// Create inserts a new owner
func (s *OwnerStore) Create(ctx context.Context, owner *models.Owner) (*models.Owner, error) {
	var o models.Owner
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO owners (email, display_name)
		VALUES (NULLIF($1, ''), $2)
		RETURNING id, COALESCE(email, ''), display_name, created_at`,
		owner.Email, owner.DisplayName).
		Scan(&o.ID, &o.Email, &o.DisplayName, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create owner: %w", err)
	}
	return &o, nil
}
