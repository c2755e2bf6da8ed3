// Package htp defines the domain model shared across the HTP analysis
// server: test sessions, uploaded drawings, detector output and the
// interpretation records derived from it.
package htp

import "time"

// DrawingType identifies one of the drawings a session is expected to submit.
type DrawingType string

const (
	TypeHouse        DrawingType = "house"
	TypeTree         DrawingType = "tree"
	TypePersonMale   DrawingType = "person_male"
	TypePersonFemale DrawingType = "person_female"
)

// RequiredTypes lists the drawing types a session must complete before the
// session-wide summary is synthesized.
var RequiredTypes = []DrawingType{TypeHouse, TypeTree, TypePersonMale, TypePersonFemale}

// Valid reports whether t is one of the known drawing types.
func (t DrawingType) Valid() bool {
	switch t {
	case TypeHouse, TypeTree, TypePersonMale, TypePersonFemale:
		return true
	}
	return false
}

// IsPerson reports whether t is one of the person drawing variants.
func (t DrawingType) IsPerson() bool {
	return t == TypePersonMale || t == TypePersonFemale
}

// Status tracks a drawing through its analysis pipeline.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// DetectedObject is one labeled bounding box returned by the external
// detector. Coordinates are pixels in the detector's reference frame.
type DetectedObject struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

// DetectionResult is the raw detector response for one drawing. It is
// stored verbatim and never mutated after receipt.
type DetectionResult struct {
	Type    string           `json:"type"`
	Objects []DetectedObject `json:"objects"`
}

// Interpretation is one entry of the analysis array: an object (or
// behavioral signal) paired with its interpretive meaning. Entries derived
// from detected objects carry the geometric descriptor; relative-size,
// missing-object and behavior entries carry only label and meaning.
type Interpretation struct {
	Label     string  `json:"label"`
	AreaRatio float64 `json:"areaRatio,omitempty"`
	Position  string  `json:"position,omitempty"`
	Meaning   string  `json:"meaning"`
}

// Analysis is the rule-engine output for one drawing.
type Analysis struct {
	Step          int              `json:"step"`
	DrawingType   DrawingType      `json:"drawingType"`
	Entries       []Interpretation `json:"analysis"`
	ExtraQuestion string           `json:"extraQuestion,omitempty"`
}

// ColorProfile is the result of the step-2 color analysis of a drawing.
type ColorProfile struct {
	Step      int      `json:"step"`
	Colors    []string `json:"colors"`
	Narrative string   `json:"analysis"`
}

// DrawingResult aggregates everything the pipeline stored for a drawing.
type DrawingResult struct {
	Detection *DetectionResult `json:"yolo,omitempty"`
	Analysis  *Analysis        `json:"analysis,omitempty"`
	Summary   string           `json:"summary,omitempty"`
	Colors    *ColorProfile    `json:"colorAnalysis,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Drawing is one submitted image owned by a session. Status moves strictly
// forward; a re-upload creates a new Drawing rather than resetting one.
type Drawing struct {
	ID         string         `json:"id"`
	Type       DrawingType    `json:"type"`
	Filename   string         `json:"filename"`
	Path       string         `json:"path"`
	EraseCount int            `json:"erase_count"`
	ResetCount int            `json:"reset_count"`
	Duration   int            `json:"duration"`
	PenUsage   map[string]int `json:"pen_usage,omitempty"`
	Status     Status         `json:"status"`
	Result     *DrawingResult `json:"result,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Session is one test run by one user. PasswordHash is a bcrypt hash and
// never leaves the server.
type Session struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Gender           string    `json:"gender"`
	Birth            string    `json:"birth"`
	PasswordHash     string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	Drawings         []Drawing `json:"drawings"`
	OverallSummary   string    `json:"overall_summary,omitempty"`
	DiagnosisSummary string    `json:"diagnosis_summary,omitempty"`
}

// DrawingByType returns the session's drawing with exactly the given type,
// or nil when the session has none.
func (s *Session) DrawingByType(typ DrawingType) *Drawing {
	for i := range s.Drawings {
		if s.Drawings[i].Type == typ {
			return &s.Drawings[i]
		}
	}
	return nil
}

// FullyAnalyzed reports whether every required drawing type has reached
// done status.
func (s *Session) FullyAnalyzed() bool {
	for _, typ := range RequiredTypes {
		d := s.DrawingByType(typ)
		if d == nil || d.Status != StatusDone {
			return false
		}
	}
	return true
}

// AggregateSummary is the once-per-session synthesis of all per-drawing
// narratives.
type AggregateSummary struct {
	OverallSummary   string            `json:"overall_summary"`
	DiagnosisSummary string            `json:"diagnosis_summary"`
	PerDrawing       map[string]string `json:"per_drawing,omitempty"`
}
