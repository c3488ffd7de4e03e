// Package rules holds the versioned safety rule tables used by the scorer.
// Tables can be loaded from an external JSON file so word and phrase lists
// are updatable without a redeploy.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Kind tags what a rule matches and how the scorer treats a hit
type Kind string

const (
	KindViolent        Kind = "violent"
	KindViolentVariant Kind = "violent-variant"
	KindAbusive        Kind = "abusive"
	KindIllegal        Kind = "illegal"
	KindSpamPhrase     Kind = "spam-phrase"
	KindSuspicious     Kind = "suspicious-phrase"
	KindNegative       Kind = "negative-word"
	KindAllowPhrase    Kind = "allow-phrase"
)

// Rule is one entry in a rule table. Weight is the penalty applied on a hit;
// allow-phrases carry zero weight and suppress matches instead.
type Rule struct {
	Pattern string `json:"pattern"`
	Kind    Kind   `json:"kind"`
	Weight  int    `json:"weight"`
}

// Table is a versioned set of rules
type Table struct {
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`

	byKind map[Kind][]Rule
}

// Load reads a rule table from a JSON file. An empty path returns the
// built-in defaults.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(t.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}

	t.index()
	return &t, nil
}

// ByKind returns the rules tagged with the given kind
func (t *Table) ByKind(kind Kind) []Rule {
	if t.byKind == nil {
		t.index()
	}
	return t.byKind[kind]
}

// Patterns returns just the patterns for a kind
func (t *Table) Patterns(kind Kind) []string {
	rs := t.ByKind(kind)
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Pattern)
	}
	return out
}

func (t *Table) index() {
	t.byKind = make(map[Kind][]Rule)
	for _, r := range t.Rules {
		t.byKind[r.Kind] = append(t.byKind[r.Kind], r)
	}
}

// Default returns the built-in rule table
func Default() *Table {
	t := &Table{Version: "builtin-1"}

	add := func(kind Kind, weight int, patterns ...string) {
		for _, p := range patterns {
			t.Rules = append(t.Rules, Rule{Pattern: p, Kind: kind, Weight: weight})
		}
	}

	add(KindViolent, 30,
		"gun", "guns", "rifle", "pistol", "firearm", "ammunition", "ammo",
		"grenade", "explosive", "kill", "murder", "assault", "attack",
		"weapon", "knife", "machete", "stab", "shoot")
	add(KindViolentVariant, 40,
		"g u n", "gvn", "r1fle", "p1stol", "k1ll", "sh00t", "w3apon", "kn1fe")
	add(KindAbusive, 25,
		"idiot", "stupid", "moron", "loser", "trash", "scum", "bastard",
		"harass", "threat", "threaten")
	add(KindIllegal, 35,
		"drugs", "cocaine", "heroin", "meth", "counterfeit", "fake",
		"stolen", "unlicensed", "untraceable", "laundering", "pirated")
	add(KindAllowPhrase, 0,
		"fake flowers", "fake plants", "fake fur", "fake leather", "faux fake")
	add(KindSpamPhrase, 15,
		"act now", "limited time", "free money", "guaranteed income",
		"work from home", "click here", "100% free", "risk free",
		"double your", "make money fast")
	add(KindSuspicious, 10,
		"cash only", "no questions asked", "wire transfer only",
		"meet in private", "off the books", "no receipt", "untraceable payment")
	add(KindNegative, 0,
		"hate", "awful", "terrible", "horrible", "worst", "angry",
		"furious", "disgusting", "useless", "garbage")

	t.index()
	return t
}
