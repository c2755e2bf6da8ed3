package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/drawmind/htp-server/pkg/htp"
)

//go:embed tables/step2-questions.json
var defaultQuestionsJSON []byte

// TypeQuestions holds the step-2 follow-up questions for one drawing type.
// Conditional questions are keyed by trigger: "<label>_missing" fires when
// the label was not detected, "<label>_low" when at most one instance was.
type TypeQuestions struct {
	Conditional map[string][]string `json:"conditional"`
	LowObjects  []string            `json:"low_objects"`
}

// QuestionSet maps drawing-type keys (person variants share "person") to
// their question pools.
type QuestionSet map[string]TypeQuestions

// DefaultQuestions returns the embedded question set.
func DefaultQuestions() QuestionSet {
	set, err := parseQuestions(defaultQuestionsJSON)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded question set invalid: %v", err))
	}
	return set
}

// LoadQuestions reads a question set from a JSON file.
func LoadQuestions(path string) (QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question set: %w", err)
	}
	return parseQuestions(data)
}

func parseQuestions(data []byte) (QuestionSet, error) {
	var set QuestionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse question set: %w", err)
	}
	return set, nil
}

func questionKey(typ htp.DrawingType) string {
	if typ.IsPerson() {
		return "person"
	}
	return string(typ)
}

func (q QuestionSet) forType(typ htp.DrawingType) TypeQuestions {
	if tq, ok := q[string(typ)]; ok {
		return tq
	}
	return q[questionKey(typ)]
}

// Pick selects one follow-up question from the triggers satisfied by the
// detected label counts, falling back to a random low-object question.
func (q QuestionSet) Pick(typ htp.DrawingType, labelCounts map[string]int) string {
	tq := q.forType(typ)

	var candidates []string
	for _, key := range sortedKeys(tq.Conditional) {
		label, kind, ok := splitTrigger(key)
		if !ok {
			continue
		}
		count := labelCounts[label]
		if (kind == "missing" && count == 0) || (kind == "low" && count <= 1) {
			candidates = append(candidates, tq.Conditional[key]...)
		}
	}

	if len(candidates) == 0 {
		candidates = tq.LowObjects
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.Intn(len(candidates))]
}

// PickForMissing selects a question from already-derived missing trigger
// keys, preferring the first conditional hit; used when re-deriving a
// question from a stored analysis.
func (q QuestionSet) PickForMissing(typ htp.DrawingType, missingKeys []string) string {
	tq := q.forType(typ)
	for _, key := range missingKeys {
		if qs := tq.Conditional[key]; len(qs) > 0 {
			return qs[0]
		}
	}
	if len(tq.LowObjects) > 0 {
		return tq.LowObjects[rand.Intn(len(tq.LowObjects))]
	}
	return ""
}

func splitTrigger(key string) (label, kind string, ok bool) {
	i := strings.LastIndex(key, "_")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	label, kind = key[:i], key[i+1:]
	if kind != "missing" && kind != "low" {
		return "", "", false
	}
	return label, kind, true
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
