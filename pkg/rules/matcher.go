package rules

import (
	"github.com/drawmind/htp-server/pkg/geometry"
	"github.com/drawmind/htp-server/pkg/htp"
)

// NoInterpretation is attached to detected objects no rule covers.
const NoInterpretation = "해석 기준 없음"

// Step-2 branching thresholds: at or below this many detected objects the
// drawing is routed to the follow-up question step.
var defaultStepThresholds = map[htp.DrawingType]int{
	htp.TypeHouse:        10,
	htp.TypeTree:         7,
	htp.TypePersonMale:   8,
	htp.TypePersonFemale: 8,
}

// Matcher interprets detector output against a rule table. It is immutable
// after construction so tables can be swapped in tests without touching disk.
type Matcher struct {
	table      Table
	classifier *geometry.Classifier
	relative   RelativeConfig
	questions  QuestionSet
	thresholds map[htp.DrawingType]int
}

// NewMatcher creates a Matcher over the given table using the default
// classifier, relative-size thresholds and embedded question set.
func NewMatcher(table Table) *Matcher {
	return NewMatcherWithConfig(table, geometry.New(), DefaultRelativeConfig(), DefaultQuestions())
}

// NewMatcherWithConfig creates a fully customized Matcher.
func NewMatcherWithConfig(table Table, classifier *geometry.Classifier, relative RelativeConfig, questions QuestionSet) *Matcher {
	return &Matcher{
		table:      table,
		classifier: classifier,
		relative:   relative,
		questions:  questions,
		thresholds: defaultStepThresholds,
	}
}

// rulesFor returns the rule set for a drawing type. Person variants fall
// back to a shared "person" entry when the table has no specific one.
func (m *Matcher) rulesFor(typ htp.DrawingType) TypeRules {
	if tr, ok := m.table[typ]; ok {
		return tr
	}
	if typ.IsPerson() {
		return m.table[htp.DrawingType("person")]
	}
	return TypeRules{}
}

// Match enriches one classified object with the meaning of the first rule
// satisfying label, position and area range. Table order decides ties.
func (m *Matcher) Match(typ htp.DrawingType, desc geometry.Descriptor, count int) htp.Interpretation {
	entry := htp.Interpretation{
		Label:     desc.Label,
		AreaRatio: desc.AreaRatio,
		Position:  desc.Position,
		Meaning:   NoInterpretation,
	}
	for _, rule := range m.rulesFor(typ).Rules {
		if rule.matches(desc.Label, desc.Position, desc.AreaRatio, count) {
			entry.Meaning = rule.Meaning
			break
		}
	}
	return entry
}

// missingObjects emits one entry per missing-object rule whose label was
// not detected, at most once per label.
func (m *Matcher) missingObjects(typ htp.DrawingType, labelCounts map[string]int) []htp.Interpretation {
	var out []htp.Interpretation
	seen := make(map[string]bool)
	for _, rule := range m.rulesFor(typ).Rules {
		if !rule.Missing() || seen[rule.Label] {
			continue
		}
		if labelCounts[rule.Label] == 0 {
			out = append(out, htp.Interpretation{
				Label:   rule.Label + " (미표현)",
				Meaning: rule.Meaning,
			})
			seen[rule.Label] = true
		}
	}
	return out
}

// BehaviorInput carries the drawing-process signals recorded by the canvas.
type BehaviorInput struct {
	EraseCount int
	ResetCount int
	PenUsage   map[string]int
}

// Analyze runs the full interpretation of one detection result: absolute
// rule matching, relative-size comparison, missing-object rules, behavior
// signals and the step-2 branch decision.
func (m *Matcher) Analyze(typ htp.DrawingType, detection *htp.DetectionResult, behavior BehaviorInput) *htp.Analysis {
	var objects []htp.DetectedObject
	if detection != nil {
		objects = detection.Objects
	}
	descs := m.classifier.ClassifyAll(objects)

	labelCounts := make(map[string]int)
	for _, d := range descs {
		labelCounts[d.Label]++
	}

	entries := make([]htp.Interpretation, 0, len(descs))
	for _, d := range descs {
		entries = append(entries, m.Match(typ, d, labelCounts[d.Label]))
	}
	entries = append(entries, m.compareRelative(typ, descs)...)
	entries = append(entries, m.missingObjects(typ, labelCounts)...)
	entries = append(entries, interpretBehavior(behavior)...)

	analysis := &htp.Analysis{
		Step:        1,
		DrawingType: typ,
		Entries:     dedupe(entries),
	}

	if threshold, ok := m.thresholds[typ]; ok && len(descs) <= threshold {
		analysis.Step = 2
		analysis.ExtraQuestion = m.questions.Pick(typ, labelCounts)
	}
	return analysis
}

// dedupe removes repeated (label, meaning) pairs, keeping first occurrences.
func dedupe(entries []htp.Interpretation) []htp.Interpretation {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		key := e.Label + "::" + e.Meaning
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
