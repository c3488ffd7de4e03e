package scorer

import (
	"context"
	"testing"

	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
)

func newTestScorer() *Scorer {
	return New(nil, logging.New(logging.LevelError))
}

func hasString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func TestScoreCleanListing(t *testing.T) {
	s := newTestScorer()

	result := s.Score(context.Background(), "Vintage oak bookshelf", "Solid oak bookshelf in great condition, five shelves, minor wear on one corner.", nil)

	if result.Score != 100 {
		t.Fatalf("Score = %d, want 100", result.Score)
	}
	if !result.Safe {
		t.Errorf("Safe = false, want true")
	}
	if result.RiskLevel != models.RiskLow {
		t.Errorf("RiskLevel = %s, want %s", result.RiskLevel, models.RiskLow)
	}
	if result.Confidence != 95 {
		t.Errorf("Confidence = %d, want 95", result.Confidence)
	}
	if len(result.Flags) != 0 {
		t.Errorf("Flags = %v, want empty", result.Flags)
	}
}

func TestScoreViolentTermWithSuspiciousPhrases(t *testing.T) {
	s := newTestScorer()

	result := s.Score(context.Background(), "Selling guns", "cash only, no questions asked", nil)

	// 30 for the violent term plus 10 for each suspicious phrase.
	if result.Score != 50 {
		t.Fatalf("Score = %d, want 50", result.Score)
	}
	if result.Safe {
		t.Errorf("Safe = true, want false")
	}
	if result.RiskLevel != models.RiskCritical {
		t.Errorf("RiskLevel = %s, want %s (violence flag forces critical)", result.RiskLevel, models.RiskCritical)
	}
	if !result.HasFlag(models.FlagViolence) {
		t.Errorf("Flags = %v, want violence flag", result.Flags)
	}
	if len(result.Warnings) != 2 {
		t.Errorf("Warnings = %v, want 2 entries", result.Warnings)
	}
}

func TestScoreCriticalFlagOverridesModerateScore(t *testing.T) {
	s := newTestScorer()

	// A single illegal term leaves the numeric score at 65, inside the
	// high band, but the illegal flag must force critical.
	result := s.Score(context.Background(), "Brand new cocaine", "great quality", nil)

	if result.Score != 65 {
		t.Fatalf("Score = %d, want 65", result.Score)
	}
	if result.RiskLevel != models.RiskCritical {
		t.Errorf("RiskLevel = %s, want %s", result.RiskLevel, models.RiskCritical)
	}
	if result.Safe {
		t.Errorf("Safe = true, want false")
	}
	if !result.HasFlag(models.FlagIllegal) {
		t.Errorf("Flags = %v, want illegal flag", result.Flags)
	}
}

func TestScoreAllowPhraseSuppressesIllegalMatch(t *testing.T) {
	s := newTestScorer()

	result := s.Score(context.Background(), "Fake flowers for weddings", "Beautiful fake flowers, look completely real.", nil)

	if result.Score != 100 {
		t.Fatalf("Score = %d, want 100 (allow phrase should suppress the match), issues: %v", result.Score, result.Issues)
	}
	if !result.Safe {
		t.Errorf("Safe = false, want true")
	}
	if result.HasFlag(models.FlagIllegal) {
		t.Errorf("Flags = %v, illegal flag should be suppressed", result.Flags)
	}
}

func TestScoreSuffixVariants(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name  string
		title string
	}{
		{"plural", "stabs for sale"},
		{"gerund", "stabbing tool"},
		{"past tense", "stabbed once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Score(context.Background(), tt.title, "", nil)
			if !result.HasFlag(models.FlagViolence) {
				t.Errorf("Score(%q) flags = %v, want violence flag", tt.title, result.Flags)
			}
		})
	}
}

func TestScoreLeetspeakObfuscation(t *testing.T) {
	s := newTestScorer()

	result := s.Score(context.Background(), "p1stol for sale", "", nil)

	if !result.HasFlag(models.FlagViolence) {
		t.Fatalf("Flags = %v, want violence flag", result.Flags)
	}
	if !result.HasFlag(models.FlagObfuscation) {
		t.Errorf("Flags = %v, want obfuscation flag", result.Flags)
	}
	if result.RiskLevel != models.RiskCritical {
		t.Errorf("RiskLevel = %s, want %s", result.RiskLevel, models.RiskCritical)
	}
}

func TestScoreDedupesRepeatedTerm(t *testing.T) {
	s := newTestScorer()

	// The same token hitting twice must count once.
	result := s.Score(context.Background(), "knife knife knife", "", nil)

	if len(result.Issues) != 1 {
		t.Fatalf("Issues = %v, want exactly 1", result.Issues)
	}
	if result.Score != 70 {
		t.Errorf("Score = %d, want 70", result.Score)
	}
}

func TestScoreHTMLMarkupStripped(t *testing.T) {
	s := newTestScorer()

	result := s.Score(context.Background(), "Table", "<p>Selling a <b>pistol</b> holster stand</p>", nil)

	if !result.HasFlag(models.FlagViolence) {
		t.Errorf("Flags = %v, want violence flag from markup content", result.Flags)
	}
}

func TestScoreSpamHeavyListing(t *testing.T) {
	s := newTestScorer()

	result := s.Score(context.Background(),
		"FREE MONEY act now limited time",
		"make money fast!!!! click here 100% free risk free guaranteed income work from home double your moneyyyyy",
		nil)

	if !result.HasFlag(models.FlagSpam) {
		t.Fatalf("Flags = %v, want spam flag", result.Flags)
	}
	if result.Safe {
		t.Errorf("Safe = true, want false (score %d)", result.Score)
	}
}

func TestRepeatedRuns(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"normal listing text", 0},
		{"aaa", 0},
		{"aaaa", 1},
		{"aaaaaaaa", 1},
		{"soooooo cheap", 1},
		{"wowwww!!!! deal", 2},
		{"buy now\nnnnn", 1},
	}

	for _, tt := range tests {
		if got := repeatedRuns(tt.text); got != tt.want {
			t.Errorf("repeatedRuns(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSpamScoreCountsCharacterRuns(t *testing.T) {
	s := newTestScorer()

	base := s.spamScore("plain chair", "plain chair")
	withRuns := s.spamScore("plain chairrrr", "plain chairrrr")
	if withRuns != base+15 {
		t.Errorf("spamScore with one run = %d, want %d", withRuns, base+15)
	}
}

func TestScoreMissingImageDegradesToWarning(t *testing.T) {
	s := newTestScorer()

	result := s.Score(context.Background(), "Old chair", "Comfortable armchair.", []string{"/nonexistent/image.jpg"})

	if result.Score != 100 {
		t.Fatalf("Score = %d, want 100 (unreadable image is a warning only)", result.Score)
	}
	if len(result.Warnings) == 0 {
		t.Errorf("Warnings empty, want unreadable-image warning")
	}
}

func TestScoreConfidenceFloor(t *testing.T) {
	s := newTestScorer()

	result := s.Score(context.Background(),
		"gun rifle pistol firearm grenade explosive murder assault machete knife",
		"drugs cocaine heroin meth stolen pirated laundering",
		nil)

	if result.Confidence != 60 {
		t.Errorf("Confidence = %d, want floor of 60", result.Confidence)
	}
	if result.Score != 0 {
		t.Errorf("Score = %d, want 0", result.Score)
	}
}

func TestCriticalOnly(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name     string
		title    string
		desc     string
		wantSafe bool
	}{
		{"clean", "Garden table", "Sturdy wooden garden table.", true},
		{"violent term", "Cheap guns", "pickup today", false},
		{"illegal term", "Stolen bikes", "many models", false},
		{"spam only passes", "act now limited time free money", "click here!!!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.CriticalOnly(tt.title, tt.desc)
			if result.Safe != tt.wantSafe {
				t.Errorf("CriticalOnly(%q) safe = %v, want %v (issues %v)", tt.title, result.Safe, tt.wantSafe, result.Issues)
			}
			if !tt.wantSafe && result.RiskLevel != models.RiskCritical {
				t.Errorf("RiskLevel = %s, want %s", result.RiskLevel, models.RiskCritical)
			}
			if !tt.wantSafe && result.Score != 0 {
				t.Errorf("Score = %d, want 0", result.Score)
			}
		})
	}
}

func TestRiskLevelBands(t *testing.T) {
	tests := []struct {
		score int
		want  models.RiskLevel
	}{
		{100, models.RiskLow},
		{85, models.RiskLow},
		{84, models.RiskMedium},
		{70, models.RiskMedium},
		{69, models.RiskHigh},
		{50, models.RiskHigh},
		{49, models.RiskCritical},
		{0, models.RiskCritical},
	}

	for _, tt := range tests {
		if got := riskLevel(tt.score); got != tt.want {
			t.Errorf("riskLevel(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestCapsRatioIssue(t *testing.T) {
	if issue := capsRatioIssue("SELLING EVERYTHING MUST GO TODAY"); issue == "" {
		t.Errorf("capsRatioIssue returned empty for all-caps text")
	}
	if issue := capsRatioIssue("Selling a nice couch in good shape"); issue != "" {
		t.Errorf("capsRatioIssue = %q, want empty for normal text", issue)
	}
	// Short shouty strings stay under the length floor.
	if issue := capsRatioIssue("WOW NICE"); issue != "" {
		t.Errorf("capsRatioIssue = %q, want empty below length floor", issue)
	}
}
