package scorer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/openclassifieds/gatekeeper/internal/rules"
)

const (
	capsPenalty      = 10
	capsRatioMax     = 0.7
	capsLengthFloor  = 20
	sentimentTrigger = 20
	sentimentMaxPen  = 15
)

var (
	phoneRunRe = regexp.MustCompile(`\d(?:[ \-.()]?\d){6,}`)
	urlRe      = regexp.MustCompile(`https?://|www\.`)
)

// repeatedRuns counts runs of four or more identical characters.
// RE2 has no backreferences, so this is a plain rune scan.
func repeatedRuns(s string) int {
	runs, count := 0, 0
	var prev rune
	for _, r := range s {
		if r == prev {
			count++
		} else {
			prev, count = r, 1
		}
		if count == 4 {
			runs++
		}
	}
	return runs
}

// spamScore computes a 0-100 composite from the classic spam signals:
// repeated character runs, punctuation density, known spam phrases,
// shouted words, and digit density.
func (s *Scorer) spamScore(raw, lower string) int {
	score := 0

	if runs := repeatedRuns(lower); runs > 0 {
		score += 15 * runs
	}

	if density(raw, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }) > 0.2 {
		score += 20
	}

	for _, rule := range s.table.ByKind(rules.KindSpamPhrase) {
		if strings.Contains(lower, rule.Pattern) {
			score += rule.Weight
		}
	}

	caps := 0
	for _, word := range strings.Fields(raw) {
		if len(word) >= 3 && word == strings.ToUpper(word) && strings.IndexFunc(word, unicode.IsLetter) >= 0 {
			caps++
		}
	}
	if caps > 3 {
		add := caps * 5
		if add > 25 {
			add = 25
		}
		score += add
	}

	if density(raw, unicode.IsDigit) > 0.3 {
		score += 15
	}

	if score > 100 {
		score = 100
	}
	return score
}

func density(s string, match func(rune) bool) float64 {
	if len(s) == 0 {
		return 0
	}
	total, hits := 0, 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if match(r) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// capsRatioIssue flags text that is mostly uppercase. Short titles are
// exempt so "FPV KIT" style names don't get punished.
func capsRatioIssue(raw string) string {
	letters, upper := 0, 0
	for _, r := range raw {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters <= capsLengthFloor {
		return ""
	}
	ratio := float64(upper) / float64(letters)
	if ratio > capsRatioMax {
		return fmt.Sprintf("excessive capitalization (%.0f%% uppercase)", ratio*100)
	}
	return ""
}

// sentimentPenalty scores negative-affect words and shouted punctuation.
// This only ever produces a warning, never an unsafe verdict on its own.
func (s *Scorer) sentimentPenalty(tokens []string, raw string) (int, string) {
	negative := 0
	negWords := map[string]bool{}
	for _, rule := range s.table.ByKind(rules.KindNegative) {
		negWords[rule.Pattern] = true
	}
	for _, tok := range tokens {
		if negWords[tok] {
			negative++
		}
	}

	exclaims := strings.Count(raw, "!")
	excess := exclaims - 3
	if excess < 0 {
		excess = 0
	}

	score := negative*10 + excess*5
	if score <= sentimentTrigger {
		return 0, ""
	}

	pen := (score-sentimentTrigger)/2 + 5
	if pen > sentimentMaxPen {
		pen = sentimentMaxPen
	}
	return pen, fmt.Sprintf("strongly negative tone (sentiment score %d)", score)
}

// suspiciousSignals adds bounded warning penalties for fixed suspicious
// phrases, multiple phone-number-like digit runs, and excess URLs.
func (s *Scorer) suspiciousSignals(lower string) (int, []string) {
	var penalty int
	var warnings []string

	for _, rule := range s.table.ByKind(rules.KindSuspicious) {
		if strings.Contains(lower, rule.Pattern) {
			penalty += rule.Weight
			warnings = append(warnings, fmt.Sprintf("suspicious phrase: %q", rule.Pattern))
		}
	}

	if runs := len(phoneRunRe.FindAllString(lower, -1)); runs >= 2 {
		penalty += 10
		warnings = append(warnings, fmt.Sprintf("%d phone-number-like digit runs", runs))
	}

	if urls := len(urlRe.FindAllString(lower, -1)); urls > 2 {
		penalty += 10
		warnings = append(warnings, fmt.Sprintf("%d external links", urls))
	}

	return penalty, warnings
}
