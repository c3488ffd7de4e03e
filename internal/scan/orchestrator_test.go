package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
	"github.com/openclassifieds/gatekeeper/internal/patterns"
	"github.com/openclassifieds/gatekeeper/internal/rules"
	"github.com/openclassifieds/gatekeeper/internal/scorer"
)

type fakeSource struct {
	listings []models.Listing
	gotLimit int
	gotSince time.Time
}

func (f *fakeSource) Get(ctx context.Context, id string) (*models.Listing, error) {
	for i := range f.listings {
		if f.listings[i].ID == id {
			return &f.listings[i], nil
		}
	}
	return nil, nil
}

func (f *fakeSource) ListIncremental(ctx context.Context, since time.Time) ([]models.Listing, error) {
	f.gotSince = since
	return f.listings, nil
}

func (f *fakeSource) ListPriority(ctx context.Context, limit int) ([]models.Listing, error) {
	return f.listings, nil
}

func (f *fakeSource) ListAll(ctx context.Context, limit int) ([]models.Listing, error) {
	f.gotLimit = limit
	return f.listings, nil
}

func (f *fakeSource) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.listings {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSource) ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.listings {
		if l.CategoryID == categoryID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeLedger struct {
	upserts   map[string]int
	priors    map[string]int
	failOwner string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{upserts: map[string]int{}, priors: map[string]int{}}
}

func (f *fakeLedger) Upsert(ctx context.Context, rec *models.ViolationRecord) (*models.ViolationRecord, error) {
	if rec.OwnerID == f.failOwner {
		return nil, errors.New("ledger write failed")
	}
	f.upserts[rec.ListingID]++
	stored := *rec
	stored.ID = "v-" + rec.ListingID
	stored.Status = models.ViolationPending
	return &stored, nil
}

func (f *fakeLedger) PriorViolationCount(ctx context.Context, ownerID string) (int, error) {
	return f.priors[ownerID], nil
}

type fakeReportStore struct {
	saved []*models.ScanReport
}

func (f *fakeReportStore) Save(ctx context.Context, report *models.ScanReport) error {
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeReportStore) Latest(ctx context.Context) (*models.ScanReport, error) {
	if len(f.saved) == 0 {
		return nil, nil
	}
	return f.saved[len(f.saved)-1], nil
}

type emptyHistory struct{}

func (emptyHistory) PriorViolationCount(ctx context.Context, ownerID string) (int, error) {
	return 0, nil
}

func (emptyHistory) RecentListingCount(ctx context.Context, ownerID string, since time.Time) (int, error) {
	return 0, nil
}

func (emptyHistory) DuplicateExists(ctx context.Context, ownerID, title, description, excludeListingID string) (bool, error) {
	return false, nil
}

func newTestOrchestrator(source ListingSource, ledger Ledger, reports ReportStore) *Orchestrator {
	logger := logging.New(logging.LevelError)
	sc := scorer.New(rules.Default(), logger)
	analyzer := patterns.New(emptyHistory{}, logger)
	return New(source, sc, analyzer, ledger, reports, logger)
}

func cleanListing(id, owner string) models.Listing {
	return models.Listing{ID: id, OwnerID: owner, Title: "Garden chair", Description: "Sturdy wooden chair in good condition."}
}

func unsafeListing(id, owner string) models.Listing {
	return models.Listing{ID: id, OwnerID: owner, Title: "guns for sale", Description: "cash only, no questions asked"}
}

func TestRunFullScanSeparatesCleanFromFlagged(t *testing.T) {
	source := &fakeSource{listings: []models.Listing{
		cleanListing("l1", "o1"),
		unsafeListing("l2", "o2"),
		cleanListing("l3", "o3"),
	}}
	ledger := newFakeLedger()
	reports := &fakeReportStore{}
	o := newTestOrchestrator(source, ledger, reports)

	report, err := o.Run(context.Background(), ModeFull, Params{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.TotalScanned != 3 {
		t.Errorf("TotalScanned = %d, want 3", report.TotalScanned)
	}
	if report.CleanCount != 2 {
		t.Errorf("CleanCount = %d, want 2", report.CleanCount)
	}
	if len(report.Flagged) != 1 {
		t.Fatalf("Flagged = %d entries, want 1", len(report.Flagged))
	}
	flagged := report.Flagged[0]
	if flagged.ListingID != "l2" {
		t.Errorf("flagged listing = %s, want l2", flagged.ListingID)
	}
	if flagged.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", flagged.Severity)
	}
	if flagged.Recommendation == nil || flagged.Recommendation.PrimaryAction != models.ActionDelete {
		t.Errorf("recommendation = %+v, want primary delete for first offense", flagged.Recommendation)
	}
	if report.Statistics.Critical != 1 {
		t.Errorf("Statistics.Critical = %d, want 1", report.Statistics.Critical)
	}
	if ledger.upserts["l2"] != 1 {
		t.Errorf("upserts for l2 = %d, want 1", ledger.upserts["l2"])
	}
	if ledger.upserts["l1"] != 0 {
		t.Errorf("clean listing l1 was recorded in the ledger")
	}
	if len(reports.saved) != 1 {
		t.Errorf("saved %d reports, want 1", len(reports.saved))
	}
}

func TestRunIsolatesPerListingFailures(t *testing.T) {
	source := &fakeSource{listings: []models.Listing{
		unsafeListing("l1", "bad-owner"),
		unsafeListing("l2", "o2"),
	}}
	ledger := newFakeLedger()
	ledger.failOwner = "bad-owner"
	o := newTestOrchestrator(source, ledger, &fakeReportStore{})

	report, err := o.Run(context.Background(), ModeFull, Params{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", report.ErrorCount)
	}
	if len(report.Errors) != 1 {
		t.Errorf("Errors = %v, want 1 entry", report.Errors)
	}
	if report.TotalScanned != 1 {
		t.Errorf("TotalScanned = %d, want 1 (failed listing excluded)", report.TotalScanned)
	}
	if ledger.upserts["l2"] != 1 {
		t.Errorf("l2 was not recorded despite the earlier failure")
	}
}

func TestRunRescanIsIdempotentOnLedger(t *testing.T) {
	source := &fakeSource{listings: []models.Listing{unsafeListing("l1", "o1")}}
	ledger := newFakeLedger()
	o := newTestOrchestrator(source, ledger, &fakeReportStore{})

	for i := 0; i < 3; i++ {
		if _, err := o.Run(context.Background(), ModeFull, Params{}); err != nil {
			t.Fatalf("Run #%d error: %v", i+1, err)
		}
	}

	// Every scan upserts the same pending record; the fake counts calls and
	// the real store collapses them onto one row.
	if ledger.upserts["l1"] != 3 {
		t.Errorf("upserts = %d, want 3 calls targeting one pending record", ledger.upserts["l1"])
	}
}

func TestRunSingleMode(t *testing.T) {
	source := &fakeSource{listings: []models.Listing{
		cleanListing("l1", "o1"),
		unsafeListing("l2", "o2"),
	}}
	o := newTestOrchestrator(source, newFakeLedger(), &fakeReportStore{})

	report, err := o.Run(context.Background(), ModeSingle, Params{ListingID: "l2"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.TotalScanned != 1 {
		t.Errorf("TotalScanned = %d, want 1", report.TotalScanned)
	}
	if len(report.Flagged) != 1 {
		t.Errorf("Flagged = %d, want 1", len(report.Flagged))
	}

	if _, err := o.Run(context.Background(), ModeSingle, Params{}); err == nil {
		t.Errorf("Run(single) without listing_id did not error")
	}
	if _, err := o.Run(context.Background(), ModeSingle, Params{ListingID: "missing"}); err == nil {
		t.Errorf("Run(single) with unknown listing did not error")
	}
}

func TestRunByOwnerMode(t *testing.T) {
	source := &fakeSource{listings: []models.Listing{
		cleanListing("l1", "o1"),
		cleanListing("l2", "o2"),
		cleanListing("l3", "o1"),
	}}
	o := newTestOrchestrator(source, newFakeLedger(), &fakeReportStore{})

	report, err := o.Run(context.Background(), ModeByOwner, Params{OwnerID: "o1"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.TotalScanned != 2 {
		t.Errorf("TotalScanned = %d, want 2", report.TotalScanned)
	}
}

func TestSetDefaultsControlWorkingSet(t *testing.T) {
	source := &fakeSource{}
	o := newTestOrchestrator(source, newFakeLedger(), &fakeReportStore{})
	o.SetDefaults(25, 6)

	if _, err := o.Run(context.Background(), ModeFull, Params{}); err != nil {
		t.Fatalf("Run(full) error: %v", err)
	}
	if source.gotLimit != 25 {
		t.Errorf("full scan limit = %d, want configured default 25", source.gotLimit)
	}

	if _, err := o.Run(context.Background(), ModeIncremental, Params{}); err != nil {
		t.Fatalf("Run(incremental) error: %v", err)
	}
	if source.gotSince.Before(time.Now().Add(-7*time.Hour)) || source.gotSince.After(time.Now().Add(-5*time.Hour)) {
		t.Errorf("incremental window start = %v, want roughly 6h ago", source.gotSince)
	}

	// Explicit params override the configured defaults.
	if _, err := o.Run(context.Background(), ModeFull, Params{Limit: 3}); err != nil {
		t.Fatalf("Run(full, limit) error: %v", err)
	}
	if source.gotLimit != 3 {
		t.Errorf("full scan limit = %d, want explicit 3", source.gotLimit)
	}
}

func TestRunUnknownModeErrors(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{}, newFakeLedger(), &fakeReportStore{})

	if _, err := o.Run(context.Background(), Mode("bogus"), Params{}); err == nil {
		t.Errorf("Run(bogus) did not error")
	}
}

func TestPriorViolationsRaiseRecommendation(t *testing.T) {
	source := &fakeSource{listings: []models.Listing{unsafeListing("l1", "recidivist")}}
	ledger := newFakeLedger()
	ledger.priors["recidivist"] = 2
	o := newTestOrchestrator(source, ledger, &fakeReportStore{})

	report, err := o.Run(context.Background(), ModeFull, Params{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(report.Flagged) != 1 {
		t.Fatalf("Flagged = %d, want 1", len(report.Flagged))
	}
	if report.Flagged[0].Recommendation.PrimaryAction != models.ActionBan {
		t.Errorf("PrimaryAction = %s, want ban for critical with 2 priors", report.Flagged[0].Recommendation.PrimaryAction)
	}
}
