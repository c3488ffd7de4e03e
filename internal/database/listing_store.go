package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// ListingStore reads and writes listings in PostgreSQL. Scan orchestration
// only ever reads; writes exist for the submission path and for seeding.
type ListingStore struct {
	db *DB
}

// NewListingStore creates a new listing store
func NewListingStore(db *DB) *ListingStore {
	return &ListingStore{db: db}
}

const listingColumns = `id, owner_id, COALESCE(category_id, ''), title, description, image_paths, status, created_at, updated_at`

func scanListing(row interface{ Scan(...interface{}) error }) (*models.Listing, error) {
	var l models.Listing
	var imagePaths []byte
	err := row.Scan(&l.ID, &l.OwnerID, &l.CategoryID, &l.Title, &l.Description, &imagePaths, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(imagePaths) > 0 {
		if err := json.Unmarshal(imagePaths, &l.ImagePaths); err != nil {
			return nil, fmt.Errorf("decode image paths: %w", err)
		}
	}
	return &l, nil
}

// Create inserts a new listing
func (s *ListingStore) Create(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	paths, err := json.Marshal(listing.ImagePaths)
	if err != nil {
		return nil, fmt.Errorf("encode image paths: %w", err)
	}

	status := listing.Status
	if status == "" {
		status = models.ListingActive
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO listings (owner_id, category_id, title, description, image_paths, status)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING `+listingColumns,
		listing.OwnerID, listing.CategoryID, listing.Title, listing.Description, paths, status)

	created, err := scanListing(row)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return created, nil
}

// Get retrieves a listing by ID; returns nil when absent
func (s *ListingStore) Get(ctx context.Context, id string) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

// ListIncremental returns listings created or updated since the given time
func (s *ListingStore) ListIncremental(ctx context.Context, since time.Time) ([]models.Listing, error) {
	return s.list(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE updated_at >= $1 AND status != 'deleted'
		ORDER BY updated_at ASC`, since)
}

// ListPriority returns the listings most in need of review: those with the
// most severe pending violations first, oldest first within a tier.
func (s *ListingStore) ListPriority(ctx context.Context, limit int) ([]models.Listing, error) {
	return s.list(ctx, `
		SELECT l.id, l.owner_id, COALESCE(l.category_id, ''), l.title, l.description, l.image_paths, l.status, l.created_at, l.updated_at
		FROM listings l
		LEFT JOIN violations v ON v.listing_id = l.id AND v.status = 'pending'
		WHERE l.status != 'deleted'
		ORDER BY COALESCE(v.severity, 0) DESC, l.created_at ASC
		LIMIT $1`, limit)
}

// ListAll returns up to limit non-deleted listings, oldest first
func (s *ListingStore) ListAll(ctx context.Context, limit int) ([]models.Listing, error) {
	return s.list(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE status != 'deleted'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
}

// ListByOwner returns an owner's non-deleted listings
func (s *ListingStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Listing, error) {
	return s.list(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE owner_id = $1 AND status != 'deleted'
		ORDER BY created_at ASC
		LIMIT $2`, ownerID, limit)
}

// ListByCategory returns a category's non-deleted listings
func (s *ListingStore) ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.Listing, error) {
	return s.list(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE category_id = $1 AND status != 'deleted'
		ORDER BY created_at ASC
		LIMIT $2`, categoryID, limit)
}

// RecentListingCount counts an owner's listings created since the given time
func (s *ListingStore) RecentListingCount(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM listings WHERE owner_id = $1 AND created_at >= $2`,
		ownerID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent listings: %w", err)
	}
	return count, nil
}

// DuplicateExists reports whether the owner already has another listing with
// identical title and description.
func (s *ListingStore) DuplicateExists(ctx context.Context, ownerID, title, description, excludeListingID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM listings
			WHERE owner_id = $1 AND title = $2 AND description = $3
			  AND id != $4 AND status != 'deleted'
		)`, ownerID, title, description, excludeListingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate listing: %w", err)
	}
	return exists, nil
}

func (s *ListingStore) list(ctx context.Context, query string, args ...interface{}) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
