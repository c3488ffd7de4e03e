// Package classify derives severity tiers and action recommendations from
// scoring and pattern analysis output.
package classify

import (
	"fmt"
	"strings"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// Classify maps a score and pattern result onto a severity tier.
// Rules are evaluated top-down; the first match wins.
func Classify(score *models.ScoreResult, pattern *models.PatternResult) models.Severity {
	switch {
	case score.RiskLevel == models.RiskCritical ||
		score.HasFlag(models.FlagViolence) || score.HasFlag(models.FlagIllegal):
		return models.SeverityCritical
	case score.Score < 50 || pattern.PatternScore > 50:
		return models.SeverityHigh
	case score.Score < 70 || pattern.PatternScore > 30 || len(pattern.RedFlags) > 0:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Recommend builds a moderation recommendation from severity and the
// owner's prior violation count. Reasoning always names the concrete
// issues that fired so an admin can audit the decision.
func Recommend(severity models.Severity, priorViolations int, score *models.ScoreResult, pattern *models.PatternResult) *models.Recommendation {
	rec := &models.Recommendation{}

	switch severity {
	case models.SeverityCritical:
		rec.Urgency = models.UrgencyImmediate
		if priorViolations >= 2 {
			rec.PrimaryAction = models.ActionBan
			rec.AllActions = []models.Action{models.ActionBan, models.ActionDelete}
		} else {
			rec.PrimaryAction = models.ActionDelete
			rec.AllActions = []models.Action{models.ActionDelete, models.ActionReport}
		}
	case models.SeverityHigh:
		rec.Urgency = models.UrgencyHigh
		if priorViolations >= 3 {
			rec.PrimaryAction = models.ActionBan
			rec.AllActions = []models.Action{models.ActionBan, models.ActionDelete}
		} else {
			rec.PrimaryAction = models.ActionDelete
			rec.AllActions = []models.Action{models.ActionDelete, models.ActionWarn}
		}
	case models.SeverityMedium:
		rec.Urgency = models.UrgencyMedium
		if priorViolations >= 1 {
			rec.PrimaryAction = models.ActionDelete
			rec.AllActions = []models.Action{models.ActionDelete}
		} else {
			rec.PrimaryAction = models.ActionPause
			rec.AllActions = []models.Action{models.ActionPause, models.ActionWarn}
		}
	default:
		rec.Urgency = models.UrgencyLow
		rec.PrimaryAction = models.ActionWarn
		rec.AllActions = []models.Action{models.ActionWarn}
	}

	rec.Reasoning = buildReasoning(severity, priorViolations, score, pattern)
	rec.SuggestedMessage = buildMessage(severity, score, pattern)
	return rec
}

func buildReasoning(severity models.Severity, priors int, score *models.ScoreResult, pattern *models.PatternResult) []string {
	reasoning := []string{fmt.Sprintf("severity %s at safety score %d", severity, score.Score)}
	for _, issue := range score.Issues {
		reasoning = append(reasoning, "issue: "+issue)
	}
	for _, flag := range score.Flags {
		reasoning = append(reasoning, "flag: "+flag)
	}
	for _, rf := range pattern.RedFlags {
		reasoning = append(reasoning, "pattern: "+rf)
	}
	if priors > 0 {
		reasoning = append(reasoning, fmt.Sprintf("owner has %d prior violation(s)", priors))
	}
	return reasoning
}

func buildMessage(severity models.Severity, score *models.ScoreResult, pattern *models.PatternResult) string {
	var b strings.Builder

	switch severity {
	case models.SeverityCritical:
		b.WriteString("Your listing was found to contain content that seriously violates our marketplace policies.")
	case models.SeverityHigh:
		b.WriteString("Your listing violates our marketplace policies and cannot remain published as submitted.")
	case models.SeverityMedium:
		b.WriteString("Your listing raised policy concerns that need to be addressed before it can stay active.")
	default:
		b.WriteString("Your listing raised minor policy concerns. Please review the points below.")
	}

	n := 0
	writeItem := func(item string) {
		n++
		fmt.Fprintf(&b, "\n%d. %s", n, item)
	}
	for _, issue := range score.Issues {
		writeItem(issue)
	}
	for _, rf := range pattern.RedFlags {
		writeItem(rf)
	}
	if n == 0 {
		for _, w := range score.Warnings {
			writeItem(w)
		}
	}

	return b.String()
}
