package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RiskLevel buckets a score into a coarse risk tier
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Flags attached to a ScoreResult when specific rule categories fire
const (
	FlagViolence    = "violence"
	FlagAbusive     = "abusive"
	FlagIllegal     = "illegal"
	FlagObfuscation = "obfuscation"
	FlagSpam        = "spam"
	FlagManualImage = "manual_image_review"
)

// ScoreResult is the outcome of one safety scoring pass over a listing.
// It is computed once and never mutated.
type ScoreResult struct {
	Safe             bool      `json:"safe"`
	Score            int       `json:"score"`
	Issues           []string  `json:"issues"`
	Warnings         []string  `json:"warnings"`
	Flags            []string  `json:"flags"`
	Confidence       int       `json:"confidence"`
	RiskLevel        RiskLevel `json:"risk_level"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
}

// HasFlag reports whether the result carries the given flag
func (r *ScoreResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasCriticalFlag reports whether a category that forces critical risk fired
func (r *ScoreResult) HasCriticalFlag() bool {
	return r.HasFlag(FlagViolence) || r.HasFlag(FlagIllegal) || r.HasFlag(FlagAbusive)
}

// PatternResult is the outcome of behavioral pattern analysis
type PatternResult struct {
	RedFlags     []string `json:"red_flags"`
	PatternScore int      `json:"pattern_score"`
}

// Severity is the ordinal risk tier assigned to a flagged listing
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalJSON renders severity as its lowercase name
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the name or the ordinal value
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch name {
		case "low":
			*s = SeverityLow
		case "medium":
			*s = SeverityMedium
		case "high":
			*s = SeverityHigh
		case "critical":
			*s = SeverityCritical
		default:
			return fmt.Errorf("unknown severity %q", name)
		}
		return nil
	}
	var ord int
	if err := json.Unmarshal(data, &ord); err != nil {
		return err
	}
	if ord < int(SeverityLow) || ord > int(SeverityCritical) {
		return fmt.Errorf("severity out of range: %d", ord)
	}
	*s = Severity(ord)
	return nil
}

// Action is a moderation action against a listing or its owner
type Action string

const (
	ActionWarn    Action = "warn"
	ActionPause   Action = "pause"
	ActionDelete  Action = "delete"
	ActionBan     Action = "ban"
	ActionReport  Action = "report"
	ActionApprove Action = "approve"
)

// IsValidAction reports whether the action name is known
func IsValidAction(a Action) bool {
	switch a {
	case ActionWarn, ActionPause, ActionDelete, ActionBan, ActionReport, ActionApprove:
		return true
	}
	return false
}

// Urgency describes how quickly an admin should act on a recommendation
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyImmediate Urgency = "immediate"
)

// Recommendation is a proposed moderation action with an auditable rationale
type Recommendation struct {
	PrimaryAction    Action   `json:"primary_action"`
	AllActions       []Action `json:"all_actions"`
	Urgency          Urgency  `json:"urgency"`
	Reasoning        []string `json:"reasoning"`
	SuggestedMessage string   `json:"suggested_message"`
}

// FlaggedListing is one flagged entry in a scan report
type FlaggedListing struct {
	ListingID      string          `json:"listing_id"`
	Severity       Severity        `json:"severity"`
	Score          int             `json:"score"`
	Recommendation *Recommendation `json:"recommendation"`
}

// ScanStatistics aggregates flagged listings by severity
type ScanStatistics struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// ScanReport is the aggregate output of one orchestrated scan
type ScanReport struct {
	Mode         string           `json:"mode"`
	TotalScanned int              `json:"total_scanned"`
	CleanCount   int              `json:"clean_count"`
	ErrorCount   int              `json:"error_count"`
	Errors       []string         `json:"errors,omitempty"`
	Flagged      []FlaggedListing `json:"flagged"`
	Statistics   ScanStatistics   `json:"statistics"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}
