package database

import (
	"context"
	"testing"

	"github.com/openclassifieds/gatekeeper/internal/models"
	"github.com/openclassifieds/gatekeeper/internal/testutil"
)

func seedListing(t *testing.T, db *DB) (*models.Owner, *models.Listing) {
	t.Helper()
	ctx := context.Background()

	owner, err := NewOwnerStore(db).Create(ctx, &models.Owner{Email: "owner@example.com", DisplayName: "Test Owner"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	listing, err := NewListingStore(db).Create(ctx, &models.Listing{
		OwnerID:     owner.ID,
		Title:       "Test listing",
		Description: "A listing used in store tests.",
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return owner, listing
}

func TestViolationUpsertIsIdempotentPerListing(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()
	tdb.Cleanup(ctx)
	defer tdb.Cleanup(ctx)

	db := &DB{DB: tdb.DB}
	store := NewViolationStore(db)
	owner, listing := seedListing(t, db)

	first, err := store.Upsert(ctx, &models.ViolationRecord{
		ListingID:      listing.ID,
		OwnerID:        owner.ID,
		Severity:       models.SeverityMedium,
		Score:          60,
		ViolationsJSON: `{"issues":["first scan"]}`,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Status != models.ViolationPending {
		t.Errorf("status = %s, want pending", first.Status)
	}

	second, err := store.Upsert(ctx, &models.ViolationRecord{
		ListingID:      listing.ID,
		OwnerID:        owner.ID,
		Severity:       models.SeverityCritical,
		Score:          20,
		ViolationsJSON: `{"issues":["second scan"]}`,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second upsert created a new row: %s != %s", second.ID, first.ID)
	}
	if second.Severity != models.SeverityCritical {
		t.Errorf("severity = %v, want critical after re-scan", second.Severity)
	}

	count, err := store.PriorViolationCount(ctx, owner.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("violation count = %d, want 1", count)
	}
}

func TestViolationResolveLifecycle(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()
	tdb.Cleanup(ctx)
	defer tdb.Cleanup(ctx)

	db := &DB{DB: tdb.DB}
	store := NewViolationStore(db)
	owner, listing := seedListing(t, db)

	pending, err := store.Upsert(ctx, &models.ViolationRecord{
		ListingID:      listing.ID,
		OwnerID:        owner.ID,
		Severity:       models.SeverityHigh,
		Score:          40,
		ViolationsJSON: `{}`,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resolved, err := store.Resolve(ctx, pending.ID, models.ActionDelete, "admin-1", "confirmed prohibited item")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved == nil {
		t.Fatalf("resolve returned nil for a pending violation")
	}
	if resolved.Status != models.ViolationResolved {
		t.Errorf("status = %s, want resolved", resolved.Status)
	}
	if resolved.ActionTaken != models.ActionDelete {
		t.Errorf("action = %s, want delete", resolved.ActionTaken)
	}
	if resolved.ResolvedBy != "admin-1" || resolved.ResolvedAt == nil {
		t.Errorf("resolution audit fields missing: %+v", resolved)
	}
	if resolved.ResolvedReason != "confirmed prohibited item" {
		t.Errorf("ResolvedReason = %q, want the stated reason", resolved.ResolvedReason)
	}

	// Resolving twice is a no-op signalled by nil.
	again, err := store.Resolve(ctx, pending.ID, models.ActionWarn, "admin-2", "")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again != nil {
		t.Errorf("second resolve = %+v, want nil", again)
	}

	// A later scan can open a fresh pending record for the same listing.
	fresh, err := store.Upsert(ctx, &models.ViolationRecord{
		ListingID:      listing.ID,
		OwnerID:        owner.ID,
		Severity:       models.SeverityMedium,
		Score:          55,
		ViolationsJSON: `{}`,
	})
	if err != nil {
		t.Fatalf("upsert after resolve: %v", err)
	}
	if fresh.ID == pending.ID {
		t.Errorf("upsert after resolve reused the resolved row")
	}

	count, err := store.PriorViolationCount(ctx, owner.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("violation count = %d, want 2 (resolved + fresh pending)", count)
	}
}

func TestGetPendingByListing(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()
	tdb.Cleanup(ctx)
	defer tdb.Cleanup(ctx)

	db := &DB{DB: tdb.DB}
	store := NewViolationStore(db)
	owner, listing := seedListing(t, db)

	got, err := store.GetPendingByListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil before any violation", got)
	}

	if _, err := store.Upsert(ctx, &models.ViolationRecord{
		ListingID: listing.ID, OwnerID: owner.ID,
		Severity: models.SeverityLow, Score: 80, ViolationsJSON: `{}`,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err = store.GetPendingByListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if got == nil || got.ListingID != listing.ID {
		t.Errorf("got %+v, want pending record for listing", got)
	}
}
