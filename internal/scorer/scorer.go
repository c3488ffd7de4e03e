// Package scorer implements the rule-based safety scoring of listing content.
// Scoring is deterministic: it starts from 100 and subtracts penalties for
// vocabulary hits, spam heuristics, and best-effort image checks.
package scorer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
	"github.com/openclassifieds/gatekeeper/internal/rules"
)

const (
	safeScoreFloor    = 70
	confidenceStart   = 95
	confidenceFloor   = 60
	confidencePerHit  = 5
	obfuscationExtra  = 10
	maxImagesPerScore = 5
)

// Scorer scores listing text and images against the active rule table
type Scorer struct {
	table  *rules.Table
	logger *logging.Logger
}

// New creates a scorer using the given rule table
func New(table *rules.Table, logger *logging.Logger) *Scorer {
	if table == nil {
		table = rules.Default()
	}
	return &Scorer{table: table, logger: logger}
}

// Score runs the full scoring pass over a listing's text and images
func (s *Scorer) Score(ctx context.Context, title, description string, imagePaths []string) *models.ScoreResult {
	start := time.Now()

	raw := title + " " + stripMarkup(description)
	lower := strings.ToLower(raw)
	tokens := tokenize(lower)

	var (
		penalty  int
		issues   []string
		warnings []string
		flags    = map[string]bool{}
	)

	// Vocabulary categories. Obfuscated variants score higher than plain
	// hits because they indicate deliberate evasion.
	p, is := s.matchCategory(tokens, lower, rules.KindViolent, models.FlagViolence, flags)
	penalty += p
	issues = append(issues, is...)

	p, is = s.matchVariants(tokens, lower, flags)
	penalty += p
	issues = append(issues, is...)

	p, is = s.matchCategory(tokens, lower, rules.KindAbusive, models.FlagAbusive, flags)
	penalty += p
	issues = append(issues, is...)

	p, is = s.matchIllegal(tokens, lower, flags)
	penalty += p
	issues = append(issues, is...)

	// Spam heuristics contribute a scaled penalty once the composite
	// spam score crosses 50.
	spamScore := s.spamScore(raw, lower)
	if spamScore >= 50 {
		penalty += spamScore / 2
		issues = append(issues, fmt.Sprintf("spam characteristics detected (spam score %d)", spamScore))
		flags[models.FlagSpam] = true
	}

	if capsIssue := capsRatioIssue(raw); capsIssue != "" {
		penalty += capsPenalty
		issues = append(issues, capsIssue)
	}

	if sp, warn := s.sentimentPenalty(tokens, raw); warn != "" {
		penalty += sp
		warnings = append(warnings, warn)
	}

	sp, ws := s.suspiciousSignals(lower)
	penalty += sp
	warnings = append(warnings, ws...)

	if len(imagePaths) > 0 {
		paths := imagePaths
		if len(paths) > maxImagesPerScore {
			paths = paths[:maxImagesPerScore]
		}
		for _, path := range paths {
			ir := checkImage(path)
			penalty += ir.penalty
			issues = append(issues, ir.issues...)
			warnings = append(warnings, ir.warnings...)
			for _, f := range ir.flags {
				flags[f] = true
			}
		}
	}

	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	result := &models.ScoreResult{
		Score:            score,
		Issues:           issues,
		Warnings:         warnings,
		Flags:            sortedFlags(flags),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
	result.RiskLevel = riskLevel(score)
	if result.HasCriticalFlag() {
		// A violence/illegal/abusive hit forces critical regardless of
		// the numeric score.
		result.RiskLevel = models.RiskCritical
	}
	result.Safe = score >= safeScoreFloor && result.RiskLevel != models.RiskCritical
	result.Confidence = confidence(len(issues))

	_ = ctx
	return result
}

// CriticalOnly runs the reduced fast-track check: only the violent and
// illegal word lists, no spam or image heuristics. Used under heavy load.
func (s *Scorer) CriticalOnly(title, description string) *models.ScoreResult {
	start := time.Now()

	lower := strings.ToLower(title + " " + stripMarkup(description))
	tokens := tokenize(lower)

	var issues []string
	flags := map[string]bool{}

	_, is := s.matchCategory(tokens, lower, rules.KindViolent, models.FlagViolence, flags)
	issues = append(issues, is...)
	_, is = s.matchIllegal(tokens, lower, flags)
	issues = append(issues, is...)

	result := &models.ScoreResult{
		Issues:           issues,
		Flags:            sortedFlags(flags),
		Confidence:       confidence(len(issues)),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
	if len(issues) > 0 {
		result.Score = 0
		result.RiskLevel = models.RiskCritical
		result.Safe = false
	} else {
		result.Score = 100
		result.RiskLevel = models.RiskLow
		result.Safe = true
	}
	return result
}

// matchCategory matches a word-list kind against the tokens, appending one
// issue per distinct matched token.
func (s *Scorer) matchCategory(tokens []string, lower string, kind rules.Kind, flag string, flags map[string]bool) (int, []string) {
	var penalty int
	var issues []string

	matched := map[string]bool{}
	for _, rule := range s.table.ByKind(kind) {
		tok, obfuscated, ok := matchRule(tokens, lower, rule.Pattern)
		if !ok || matched[tok] {
			continue
		}
		matched[tok] = true
		penalty += rule.Weight
		issues = append(issues, fmt.Sprintf("prohibited %s term: %q", categoryName(kind), tok))
		flags[flag] = true

		// A hit that only appears after unicode/leetspeak folding came
		// through deliberate evasion; penalize that on top.
		if obfuscated {
			penalty += obfuscationExtra
			flags[models.FlagObfuscation] = true
		}
	}
	return penalty, issues
}

// matchVariants matches the explicit obfuscated-variant list
func (s *Scorer) matchVariants(tokens []string, lower string, flags map[string]bool) (int, []string) {
	var penalty int
	var issues []string

	for _, rule := range s.table.ByKind(rules.KindViolentVariant) {
		if _, _, ok := matchRule(tokens, lower, rule.Pattern); !ok {
			continue
		}
		penalty += rule.Weight
		issues = append(issues, fmt.Sprintf("obfuscated prohibited term: %q", rule.Pattern))
		flags[models.FlagViolence] = true
		flags[models.FlagObfuscation] = true
	}
	return penalty, issues
}

// matchIllegal matches the illegal word list, honoring the allow-phrase
// suppressions for known-legitimate usages.
func (s *Scorer) matchIllegal(tokens []string, lower string, flags map[string]bool) (int, []string) {
	var penalty int
	var issues []string

	allow := s.table.Patterns(rules.KindAllowPhrase)
	matched := map[string]bool{}
	for _, rule := range s.table.ByKind(rules.KindIllegal) {
		tok, obfuscated, ok := matchRule(tokens, lower, rule.Pattern)
		if !ok || matched[tok] {
			continue
		}
		if allowSuppresses(allow, lower, rule.Pattern) {
			continue
		}
		matched[tok] = true
		penalty += rule.Weight
		issues = append(issues, fmt.Sprintf("prohibited illegal-goods term: %q", tok))
		flags[models.FlagIllegal] = true
		if obfuscated {
			penalty += obfuscationExtra
			flags[models.FlagObfuscation] = true
		}
	}
	return penalty, issues
}

// allowSuppresses reports whether an allow-phrase containing the pattern
// appears in the text, legitimizing this specific match.
func allowSuppresses(allow []string, lower, pattern string) bool {
	for _, phrase := range allow {
		if strings.Contains(phrase, pattern) && strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func categoryName(kind rules.Kind) string {
	switch kind {
	case rules.KindViolent:
		return "violent"
	case rules.KindAbusive:
		return "abusive"
	case rules.KindIllegal:
		return "illegal"
	}
	return string(kind)
}

func riskLevel(score int) models.RiskLevel {
	switch {
	case score >= 85:
		return models.RiskLow
	case score >= 70:
		return models.RiskMedium
	case score >= 50:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

func confidence(issueCount int) int {
	c := confidenceStart - confidencePerHit*issueCount
	if c < confidenceFloor {
		return confidenceFloor
	}
	return c
}

func sortedFlags(flags map[string]bool) []string {
	out := make([]string, 0, len(flags))
	for f := range flags {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
