// Package patterns detects behavioral red flags by comparing a listing
// against the submitter's history.
package patterns

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
)

const (
	repeatOffenderBonus  = 40
	priorViolationBonus  = 10
	repeatOffenderFloor  = 3
	velocityBonus        = 20
	velocityWindowHour   = time.Hour
	velocityListingLimit = 5
	duplicateBonus       = 25
	contactLeakBonus     = 15
	contactDigitRunLen   = 9
	externalLinkBonus    = 10
)

var (
	digitRunRe = regexp.MustCompile(`\d(?:[ \-.()]?\d){8,}`)
	linkRe     = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

// HistoryStore provides read-only access to prior records for an owner
type HistoryStore interface {
	PriorViolationCount(ctx context.Context, ownerID string) (int, error)
	RecentListingCount(ctx context.Context, ownerID string, since time.Time) (int, error)
	DuplicateExists(ctx context.Context, ownerID, title, description, excludeListingID string) (bool, error)
}

// Analyzer computes behavioral pattern scores against historical records
type Analyzer struct {
	history HistoryStore
	logger  *logging.Logger
}

// New creates a pattern analyzer backed by the given history store
func New(history HistoryStore, logger *logging.Logger) *Analyzer {
	return &Analyzer{history: history, logger: logger}
}

// Analyze sums behavioral bonuses for the listing. History store failures
// skip the affected check; analysis is best-effort and read-only.
func (a *Analyzer) Analyze(ctx context.Context, listing *models.Listing) *models.PatternResult {
	result := &models.PatternResult{}

	priors, err := a.history.PriorViolationCount(ctx, listing.OwnerID)
	if err != nil {
		a.logger.Warn("prior violation lookup failed, skipping repeat-offender check",
			logging.WithField("owner_id", listing.OwnerID), logging.WithField("error", err.Error()))
	} else if priors > repeatOffenderFloor {
		result.PatternScore += repeatOffenderBonus
		result.RedFlags = append(result.RedFlags, fmt.Sprintf("repeat offender: %d prior violations", priors))
	} else if priors > 0 {
		result.PatternScore += priorViolationBonus * priors
		result.RedFlags = append(result.RedFlags, fmt.Sprintf("%d prior violations on record", priors))
	}

	recent, err := a.history.RecentListingCount(ctx, listing.OwnerID, time.Now().Add(-velocityWindowHour))
	if err != nil {
		a.logger.Warn("recent listing lookup failed, skipping velocity check",
			logging.WithField("owner_id", listing.OwnerID), logging.WithField("error", err.Error()))
	} else if recent > velocityListingLimit {
		result.PatternScore += velocityBonus
		result.RedFlags = append(result.RedFlags, fmt.Sprintf("high submission velocity: %d listings in the last hour", recent))
	}

	dup, err := a.history.DuplicateExists(ctx, listing.OwnerID, listing.Title, listing.Description, listing.ID)
	if err != nil {
		a.logger.Warn("duplicate lookup failed, skipping duplicate check",
			logging.WithField("owner_id", listing.OwnerID), logging.WithField("error", err.Error()))
	} else if dup {
		result.PatternScore += duplicateBonus
		result.RedFlags = append(result.RedFlags, "duplicate content: identical title and description already listed by this owner")
	}

	if digitRunRe.MatchString(listing.Description) {
		result.PatternScore += contactLeakBonus
		result.RedFlags = append(result.RedFlags, "contact info embedded in description text")
	}

	if linkRe.MatchString(listing.Description) {
		result.PatternScore += externalLinkBonus
		result.RedFlags = append(result.RedFlags, "external link in description text")
	}

	return result
}
