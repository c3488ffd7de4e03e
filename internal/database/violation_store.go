package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// ViolationStore is the violation ledger. The partial unique index on
// (listing_id) WHERE status='pending' makes the upsert atomic: concurrent
// scans of one listing can never create two pending rows.
type ViolationStore struct {
	db *DB
}

// NewViolationStore creates a new violation store
func NewViolationStore(db *DB) *ViolationStore {
	return &ViolationStore{db: db}
}

const violationColumns = `id, listing_id, owner_id, severity, score, violations_json, COALESCE(action_taken, ''), status, COALESCE(resolved_by, ''), COALESCE(resolution_reason, ''), resolved_at, created_at, updated_at`

func scanViolation(row interface{ Scan(...interface{}) error }) (*models.ViolationRecord, error) {
	var v models.ViolationRecord
	var severity int
	var resolvedAt sql.NullTime
	err := row.Scan(&v.ID, &v.ListingID, &v.OwnerID, &severity, &v.Score, &v.ViolationsJSON,
		&v.ActionTaken, &v.Status, &v.ResolvedBy, &v.ResolvedReason, &resolvedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Severity = models.Severity(severity)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		v.ResolvedAt = &t
	}
	return &v, nil
}

// Upsert records a flagged scan. If a pending record exists for the listing
// it is updated in place; otherwise a new pending record is inserted.
func (s *ViolationStore) Upsert(ctx context.Context, rec *models.ViolationRecord) (*models.ViolationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO violations (listing_id, owner_id, severity, score, violations_json, action_taken, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), 'pending')
		ON CONFLICT (listing_id) WHERE status = 'pending'
		DO UPDATE SET
			severity = EXCLUDED.severity,
			score = EXCLUDED.score,
			violations_json = EXCLUDED.violations_json,
			action_taken = EXCLUDED.action_taken,
			updated_at = NOW()
		RETURNING `+violationColumns,
		rec.ListingID, rec.OwnerID, int(rec.Severity), rec.Score, rec.ViolationsJSON, string(rec.ActionTaken))

	stored, err := scanViolation(row)
	if err != nil {
		return nil, fmt.Errorf("upsert violation: %w", err)
	}
	return stored, nil
}

// Resolve transitions a violation from pending to resolved, recording the
// acting admin, the final action, and the stated reason. This is the only
// way out of pending.
func (s *ViolationStore) Resolve(ctx context.Context, violationID string, action models.Action, admin, reason string) (*models.ViolationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE violations
		SET status = 'resolved',
		    action_taken = $2,
		    resolved_by = $3,
		    resolution_reason = NULLIF($4, ''),
		    resolved_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+violationColumns,
		violationID, string(action), admin, reason)

	resolved, err := scanViolation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve violation: %w", err)
	}
	return resolved, nil
}

// GetByID retrieves a violation record; returns nil when absent
func (s *ViolationStore) GetByID(ctx context.Context, violationID string) (*models.ViolationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+violationColumns+` FROM violations WHERE id = $1`, violationID)
	v, err := scanViolation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get violation: %w", err)
	}
	return v, nil
}

// GetPendingByListing retrieves the pending record for a listing, if any
func (s *ViolationStore) GetPendingByListing(ctx context.Context, listingID string) (*models.ViolationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+violationColumns+` FROM violations
		WHERE listing_id = $1 AND status = 'pending'`, listingID)
	v, err := scanViolation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending violation: %w", err)
	}
	return v, nil
}

// PriorViolationCount counts all violation records for an owner
func (s *ViolationStore) PriorViolationCount(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM violations WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count prior violations: %w", err)
	}
	return count, nil
}

// ListPending returns pending violations, most severe first
func (s *ViolationStore) ListPending(ctx context.Context, limit int) ([]models.ViolationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+violationColumns+` FROM violations
		WHERE status = 'pending'
		ORDER BY severity DESC, created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending violations: %w", err)
	}
	defer rows.Close()

	var out []models.ViolationRecord
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan violation row: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
