// Package rules implements the interpretation engine for HTP drawings:
// per-type rule tables over detected objects, missing-object rules,
// relative-size comparison against a reference object, behavioral signals
// and step-2 follow-up questions.
package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/drawmind/htp-server/pkg/htp"
)

//go:embed tables/object-evaluation-rules.json
var defaultTableJSON []byte

// Rule maps one detected object condition to an interpretive meaning.
// Position is either a specific zone label or "any". The area range is
// inclusive on both ends. Rules with WhenMissing set (or a zero area
// range, for compatibility with older tables) apply when the label was
// NOT detected at all.
type Rule struct {
	Label       string  `json:"label"`
	Position    string  `json:"position"`
	AreaMin     float64 `json:"area_min"`
	AreaMax     float64 `json:"area_max"`
	MinCount    int     `json:"min_count,omitempty"`
	WhenMissing bool    `json:"when_missing,omitempty"`
	Meaning     string  `json:"meaning"`
}

// Missing reports whether this is a missing-object rule.
func (r Rule) Missing() bool {
	return r.WhenMissing || (r.AreaMin == 0 && r.AreaMax == 0)
}

// matches reports whether the rule applies to a detected object with the
// given position, area ratio and per-label count.
func (r Rule) matches(label, position string, areaRatio float64, count int) bool {
	if r.Missing() || r.Label != label {
		return false
	}
	if r.Position != "any" && r.Position != position {
		return false
	}
	if areaRatio < r.AreaMin || areaRatio > r.AreaMax {
		return false
	}
	if r.MinCount > 0 && count < r.MinCount {
		return false
	}
	return true
}

// TypeRules is the rule set for one drawing type. ReferenceLabel names the
// anchor object used by the relative-size comparison.
type TypeRules struct {
	ReferenceLabel string `json:"reference_label"`
	Rules          []Rule `json:"rules"`
}

// Table maps drawing types to their ordered rule lists. Loaded once and
// read-only at runtime; rule order decides which rule wins.
type Table map[htp.DrawingType]TypeRules

// DefaultTable returns the rule table embedded in the binary.
func DefaultTable() Table {
	table, err := parseTable(defaultTableJSON)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here
		// is a build defect.
		panic(fmt.Sprintf("rules: embedded table invalid: %v", err))
	}
	return table
}

// LoadTable reads a rule table from a JSON file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	return parseTable(data)
}

func parseTable(data []byte) (Table, error) {
	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	return table, nil
}
