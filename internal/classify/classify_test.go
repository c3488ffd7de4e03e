package classify

import (
	"strings"
	"testing"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		score   *models.ScoreResult
		pattern *models.PatternResult
		want    models.Severity
	}{
		{
			name:    "critical risk level",
			score:   &models.ScoreResult{Score: 40, RiskLevel: models.RiskCritical},
			pattern: &models.PatternResult{},
			want:    models.SeverityCritical,
		},
		{
			name:    "violence flag forces critical at decent score",
			score:   &models.ScoreResult{Score: 70, RiskLevel: models.RiskMedium, Flags: []string{models.FlagViolence}},
			pattern: &models.PatternResult{},
			want:    models.SeverityCritical,
		},
		{
			name:    "illegal flag forces critical",
			score:   &models.ScoreResult{Score: 65, RiskLevel: models.RiskHigh, Flags: []string{models.FlagIllegal}},
			pattern: &models.PatternResult{},
			want:    models.SeverityCritical,
		},
		{
			name:    "low score is high severity",
			score:   &models.ScoreResult{Score: 45, RiskLevel: models.RiskHigh},
			pattern: &models.PatternResult{},
			want:    models.SeverityHigh,
		},
		{
			name:    "strong pattern score is high severity",
			score:   &models.ScoreResult{Score: 90, RiskLevel: models.RiskLow},
			pattern: &models.PatternResult{PatternScore: 55},
			want:    models.SeverityHigh,
		},
		{
			name:    "moderate score is medium severity",
			score:   &models.ScoreResult{Score: 60, RiskLevel: models.RiskHigh},
			pattern: &models.PatternResult{},
			want:    models.SeverityMedium,
		},
		{
			name:    "red flags alone are medium severity",
			score:   &models.ScoreResult{Score: 95, RiskLevel: models.RiskLow},
			pattern: &models.PatternResult{PatternScore: 10, RedFlags: []string{"external link in description text"}},
			want:    models.SeverityMedium,
		},
		{
			name:    "clean listing is low severity",
			score:   &models.ScoreResult{Score: 100, RiskLevel: models.RiskLow},
			pattern: &models.PatternResult{},
			want:    models.SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.score, tt.pattern)
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRecommendActions(t *testing.T) {
	score := &models.ScoreResult{Score: 20, Issues: []string{`prohibited violent term: "guns"`}}
	pattern := &models.PatternResult{}

	tests := []struct {
		name        string
		severity    models.Severity
		priors      int
		wantPrimary models.Action
		wantUrgency models.Urgency
		wantInAll   models.Action
	}{
		{"critical repeat offender", models.SeverityCritical, 2, models.ActionBan, models.UrgencyImmediate, models.ActionDelete},
		{"critical first offense", models.SeverityCritical, 0, models.ActionDelete, models.UrgencyImmediate, models.ActionReport},
		{"high with long record", models.SeverityHigh, 3, models.ActionBan, models.UrgencyHigh, models.ActionDelete},
		{"high first offense", models.SeverityHigh, 0, models.ActionDelete, models.UrgencyHigh, models.ActionWarn},
		{"medium with a prior", models.SeverityMedium, 1, models.ActionDelete, models.UrgencyMedium, models.ActionDelete},
		{"medium first offense", models.SeverityMedium, 0, models.ActionPause, models.UrgencyMedium, models.ActionWarn},
		{"low severity", models.SeverityLow, 5, models.ActionWarn, models.UrgencyLow, models.ActionWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(tt.severity, tt.priors, score, pattern)

			if rec.PrimaryAction != tt.wantPrimary {
				t.Errorf("PrimaryAction = %s, want %s", rec.PrimaryAction, tt.wantPrimary)
			}
			if rec.Urgency != tt.wantUrgency {
				t.Errorf("Urgency = %s, want %s", rec.Urgency, tt.wantUrgency)
			}
			found := false
			for _, a := range rec.AllActions {
				if a == tt.wantInAll {
					found = true
				}
			}
			if !found {
				t.Errorf("AllActions = %v, want it to contain %s", rec.AllActions, tt.wantInAll)
			}
		})
	}
}

func TestRecommendReasoningNamesConcreteFindings(t *testing.T) {
	score := &models.ScoreResult{
		Score:  30,
		Issues: []string{`prohibited violent term: "guns"`},
		Flags:  []string{models.FlagViolence},
	}
	pattern := &models.PatternResult{RedFlags: []string{"repeat offender: 4 prior violations"}}

	rec := Recommend(models.SeverityCritical, 4, score, pattern)

	joined := strings.Join(rec.Reasoning, "\n")
	for _, want := range []string{"guns", "violence", "repeat offender", "4 prior violation"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Reasoning %v missing %q", rec.Reasoning, want)
		}
	}
	if rec.SuggestedMessage == "" {
		t.Errorf("SuggestedMessage is empty")
	}
	if !strings.Contains(rec.SuggestedMessage, "guns") {
		t.Errorf("SuggestedMessage %q does not cite the concrete issue", rec.SuggestedMessage)
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !(models.SeverityLow < models.SeverityMedium &&
		models.SeverityMedium < models.SeverityHigh &&
		models.SeverityHigh < models.SeverityCritical) {
		t.Fatalf("severity constants are not ordered low < medium < high < critical")
	}
}
