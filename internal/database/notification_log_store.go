package database

import (
	"context"
	"fmt"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// NotificationLogStore is the append-only audit trail of delivery attempts
type NotificationLogStore struct {
	db *DB
}

// NewNotificationLogStore creates a new notification log store
func NewNotificationLogStore(db *DB) *NotificationLogStore {
	return &NotificationLogStore{db: db}
}

// Append records a delivery attempt. Entries are never updated or deleted.
func (s *NotificationLogStore) Append(ctx context.Context, entry *models.NotificationLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_log (listing_id, owner_id, action_type, recipient, delivered)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ListingID, entry.OwnerID, string(entry.ActionType), entry.Recipient, entry.Delivered)
	if err != nil {
		return fmt.Errorf("append notification log: %w", err)
	}
	return nil
}

// ListByOwner returns an owner's delivery history, newest first
func (s *NotificationLogStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.NotificationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_id, owner_id, action_type, recipient, delivered, created_at
		FROM notification_log
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notification log: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationLogEntry
	for rows.Next() {
		var e models.NotificationLogEntry
		if err := rows.Scan(&e.ID, &e.ListingID, &e.OwnerID, &e.ActionType, &e.Recipient, &e.Delivered, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification log row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
