// Package scan drives re-scoring of the existing listing corpus and
// assembles aggregate reports. The orchestrator only proposes actions;
// committing one is a separate, admin-confirmed step.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/classify"
	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
	"github.com/openclassifieds/gatekeeper/internal/patterns"
	"github.com/openclassifieds/gatekeeper/internal/scorer"
)

// Mode selects the working set for a scan
type Mode string

const (
	ModeSingle      Mode = "single"
	ModeIncremental Mode = "incremental"
	ModePriority    Mode = "priority"
	ModeFull        Mode = "full"
	ModeByOwner     Mode = "owner"
	ModeByCategory  Mode = "category"
)

// Params narrows the working set for the chosen mode
type Params struct {
	ListingID  string `json:"listing_id,omitempty"`
	SinceHours int    `json:"since_hours,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
}

// ListingSource provides the listing corpus for each scan mode
type ListingSource interface {
	Get(ctx context.Context, id string) (*models.Listing, error)
	ListIncremental(ctx context.Context, since time.Time) ([]models.Listing, error)
	ListPriority(ctx context.Context, limit int) ([]models.Listing, error)
	ListAll(ctx context.Context, limit int) ([]models.Listing, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Listing, error)
	ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.Listing, error)
}

// Ledger records flagged scans and answers owner history queries
type Ledger interface {
	Upsert(ctx context.Context, rec *models.ViolationRecord) (*models.ViolationRecord, error)
	PriorViolationCount(ctx context.Context, ownerID string) (int, error)
}

// ReportStore persists finished reports
type ReportStore interface {
	Save(ctx context.Context, report *models.ScanReport) error
	Latest(ctx context.Context) (*models.ScanReport, error)
}

// AutoApplyPolicy decides whether a recommendation may be applied without an
// admin. The default policy always declines; enforcement stays manual.
type AutoApplyPolicy interface {
	ShouldAutoApply(severity models.Severity, rec *models.Recommendation) bool
}

// NoAutoApply is the default policy: every action waits for admin confirmation
type NoAutoApply struct{}

// ShouldAutoApply always returns false
func (NoAutoApply) ShouldAutoApply(models.Severity, *models.Recommendation) bool { return false }

// Orchestrator runs the score → analyze → classify → recommend pipeline
// over a working set
type Orchestrator struct {
	source       ListingSource
	scorer       *scorer.Scorer
	analyzer     *patterns.Analyzer
	ledger       Ledger
	reports      ReportStore
	policy       AutoApplyPolicy
	defaultLimit int
	defaultSince time.Duration
	logger       *logging.Logger
}

// New creates a scan orchestrator
func New(source ListingSource, sc *scorer.Scorer, analyzer *patterns.Analyzer, ledger Ledger, reports ReportStore, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		source:       source,
		scorer:       sc,
		analyzer:     analyzer,
		ledger:       ledger,
		reports:      reports,
		policy:       NoAutoApply{},
		defaultLimit: 500,
		defaultSince: 24 * time.Hour,
		logger:       logger,
	}
}

// SetDefaults overrides the fallback working-set limit and the incremental
// lookback window. Zero or negative values keep the current defaults.
func (o *Orchestrator) SetDefaults(limit, sinceHours int) {
	if limit > 0 {
		o.defaultLimit = limit
	}
	if sinceHours > 0 {
		o.defaultSince = time.Duration(sinceHours) * time.Hour
	}
}

// SetPolicy overrides the auto-apply policy. Off by default.
func (o *Orchestrator) SetPolicy(policy AutoApplyPolicy) {
	if policy != nil {
		o.policy = policy
	}
}

// Run scans the working set selected by mode and persists the report.
// A failure on one listing is recorded on that listing only; the scan of
// the remaining listings always continues.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, params Params) (*models.ScanReport, error) {
	candidates, err := o.collect(ctx, mode, params)
	if err != nil {
		return nil, err
	}

	report := &models.ScanReport{
		Mode:      string(mode),
		Flagged:   []models.FlaggedListing{},
		StartedAt: time.Now().UTC(),
	}

	for i := range candidates {
		listing := &candidates[i]
		if err := o.scanOne(ctx, listing, report); err != nil {
			report.ErrorCount++
			report.Errors = append(report.Errors, fmt.Sprintf("listing %s: %v", listing.ID, err))
			o.logger.Warn("listing scan failed, continuing",
				logging.WithField("listing_id", listing.ID),
				logging.WithField("error", err.Error()))
			continue
		}
		report.TotalScanned++
	}
	report.FinishedAt = time.Now().UTC()

	if err := o.reports.Save(ctx, report); err != nil {
		o.logger.Error("failed to persist scan report", logging.WithField("error", err.Error()))
	}

	o.logger.Info("scan finished",
		logging.WithFields(map[string]interface{}{
			"mode":    mode,
			"scanned": report.TotalScanned,
			"clean":   report.CleanCount,
			"flagged": len(report.Flagged),
			"errors":  report.ErrorCount,
		}))
	return report, nil
}

// Latest returns the last persisted report
func (o *Orchestrator) Latest(ctx context.Context) (*models.ScanReport, error) {
	return o.reports.Latest(ctx)
}

func (o *Orchestrator) collect(ctx context.Context, mode Mode, params Params) ([]models.Listing, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = o.defaultLimit
	}

	switch mode {
	case ModeSingle:
		if params.ListingID == "" {
			return nil, fmt.Errorf("single scan requires listing_id")
		}
		listing, err := o.source.Get(ctx, params.ListingID)
		if err != nil {
			return nil, fmt.Errorf("load listing: %w", err)
		}
		if listing == nil {
			return nil, fmt.Errorf("listing %s not found", params.ListingID)
		}
		return []models.Listing{*listing}, nil
	case ModeIncremental:
		since := o.defaultSince
		if params.SinceHours > 0 {
			since = time.Duration(params.SinceHours) * time.Hour
		}
		return o.source.ListIncremental(ctx, time.Now().Add(-since))
	case ModePriority:
		return o.source.ListPriority(ctx, limit)
	case ModeFull:
		return o.source.ListAll(ctx, limit)
	case ModeByOwner:
		if params.OwnerID == "" {
			return nil, fmt.Errorf("owner scan requires owner_id")
		}
		return o.source.ListByOwner(ctx, params.OwnerID, limit)
	case ModeByCategory:
		if params.CategoryID == "" {
			return nil, fmt.Errorf("category scan requires category_id")
		}
		return o.source.ListByCategory(ctx, params.CategoryID, limit)
	default:
		return nil, fmt.Errorf("unknown scan mode %q", mode)
	}
}

func (o *Orchestrator) scanOne(ctx context.Context, listing *models.Listing, report *models.ScanReport) error {
	score := o.scorer.Score(ctx, listing.Title, listing.Description, listing.ImagePaths)
	pattern := o.analyzer.Analyze(ctx, listing)
	severity := classify.Classify(score, pattern)

	if severity == models.SeverityLow {
		report.CleanCount++
		return nil
	}

	priors, err := o.ledger.PriorViolationCount(ctx, listing.OwnerID)
	if err != nil {
		return fmt.Errorf("owner history: %w", err)
	}
	rec := classify.Recommend(severity, priors, score, pattern)

	detail, err := json.Marshal(models.ViolationDetail{
		Issues:   score.Issues,
		Warnings: score.Warnings,
		Flags:    score.Flags,
		RedFlags: pattern.RedFlags,
	})
	if err != nil {
		return fmt.Errorf("encode violation detail: %w", err)
	}

	if _, err := o.ledger.Upsert(ctx, &models.ViolationRecord{
		ListingID:      listing.ID,
		OwnerID:        listing.OwnerID,
		Severity:       severity,
		Score:          score.Score,
		ViolationsJSON: string(detail),
	}); err != nil {
		return fmt.Errorf("record violation: %w", err)
	}

	if o.policy.ShouldAutoApply(severity, rec) {
		// Intentionally a no-op beyond logging: enforcement is a product
		// decision gated behind the policy, manual confirmation remains
		// the default path.
		o.logger.Info("auto-apply policy matched, leaving action for admin confirmation",
			logging.WithField("listing_id", listing.ID),
			logging.WithField("action", rec.PrimaryAction))
	}

	report.Flagged = append(report.Flagged, models.FlaggedListing{
		ListingID:      listing.ID,
		Severity:       severity,
		Score:          score.Score,
		Recommendation: rec,
	})
	switch severity {
	case models.SeverityCritical:
		report.Statistics.Critical++
	case models.SeverityHigh:
		report.Statistics.High++
	case models.SeverityMedium:
		report.Statistics.Medium++
	default:
		report.Statistics.Low++
	}
	return nil
}
