// Package colors implements the step-2 color profile analysis: every
// sufficiently opaque pixel is bucketed to the nearest of ten palette
// colors, usage ratios are computed and filtered for noise, and the top
// colors are mapped to canned interpretive phrases.
package colors

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"

	"github.com/drawmind/htp-server/pkg/htp"
)

//go:embed tables/color-meaning.json
var defaultMeaningsJSON []byte

// PaletteColor is one named anchor color.
type PaletteColor struct {
	Name    string
	R, G, B uint8
}

// Config holds the palette, the meaning lookup and the filter thresholds.
type Config struct {
	Palette  []PaletteColor
	Meanings map[string]string
	// Pixels with 8-bit alpha below this are background and not counted.
	AlphaThreshold uint8
	// Drop the white bucket entirely when it dominates above this share.
	WhiteDominance float64
	// Drop pink entries below this share; tablet smudges register as
	// faint pink traces.
	PinkNoiseFloor float64
	// Keep at most this many colors after filtering.
	TopN int

	WhiteName string
	PinkName  string
}

// DefaultConfig returns the production palette and thresholds.
func DefaultConfig() Config {
	return Config{
		Palette: []PaletteColor{
			{Name: "빨강", R: 255, G: 0, B: 0},
			{Name: "분홍", R: 255, G: 105, B: 180},
			{Name: "주황", R: 255, G: 165, B: 0},
			{Name: "노랑", R: 255, G: 255, B: 0},
			{Name: "초록", R: 0, G: 255, B: 0},
			{Name: "파랑", R: 0, G: 0, B: 255},
			{Name: "보라", R: 128, G: 0, B: 128},
			{Name: "갈색", R: 139, G: 69, B: 19},
			{Name: "검정", R: 0, G: 0, B: 0},
			{Name: "흰색", R: 255, G: 255, B: 255},
		},
		Meanings:       DefaultMeanings(),
		AlphaThreshold: 128,
		WhiteDominance: 0.6,
		PinkNoiseFloor: 0.01,
		TopN:           3,
		WhiteName:      "흰색",
		PinkName:       "분홍",
	}
}

// DefaultMeanings returns the embedded color-meaning lookup.
func DefaultMeanings() map[string]string {
	meanings, err := parseMeanings(defaultMeaningsJSON)
	if err != nil {
		panic(fmt.Sprintf("colors: embedded meaning table invalid: %v", err))
	}
	return meanings
}

// LoadMeanings reads a color-meaning lookup from a JSON file.
func LoadMeanings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read color meanings: %w", err)
	}
	return parseMeanings(data)
}

func parseMeanings(data []byte) (map[string]string, error) {
	var meanings map[string]string
	if err := json.Unmarshal(data, &meanings); err != nil {
		return nil, fmt.Errorf("failed to parse color meanings: %w", err)
	}
	return meanings, nil
}

// Analyzer buckets image pixels to the nearest palette color and derives a
// color profile narrative.
type Analyzer struct {
	config Config
}

// New creates an Analyzer with the default palette and thresholds.
func New() *Analyzer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an Analyzer with a custom configuration.
func NewWithConfig(config Config) *Analyzer {
	return &Analyzer{config: config}
}

// NoColorData is the narrative used when the image has no countable pixels.
const NoColorData = "이미지에서 유효한 색상을 찾을 수 없습니다."

// colorShare pairs a palette color name with its usage ratio.
type colorShare struct {
	name  string
	ratio float64
}

// AnalyzeImage computes the color profile of a rasterized drawing.
func (a *Analyzer) AnalyzeImage(img image.Image) htp.ColorProfile {
	counts := a.countPixels(img)

	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return htp.ColorProfile{Step: 2, Colors: []string{}, Narrative: NoColorData}
	}

	shares := a.rankShares(counts, total)
	shares = a.filterShares(shares)

	top := make([]string, 0, a.config.TopN)
	for _, s := range shares {
		top = append(top, s.name)
		if len(top) == a.config.TopN {
			break
		}
	}

	return htp.ColorProfile{
		Step:      2,
		Colors:    top,
		Narrative: a.narrative(top),
	}
}

// countPixels buckets every sufficiently opaque pixel; translucent pixels
// are excluded entirely, not classified.
func (a *Analyzer) countPixels(img image.Image) map[string]int {
	counts := make(map[string]int, len(a.config.Palette))
	bounds := img.Bounds()
	alphaCutoff := uint32(a.config.AlphaThreshold) << 8

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, alpha := img.At(x, y).RGBA()
			if alpha < alphaCutoff {
				continue
			}
			name := a.closest(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			counts[name]++
		}
	}
	return counts
}

// closest finds the palette color with the smallest squared RGB distance.
func (a *Analyzer) closest(r, g, b uint8) string {
	best := a.config.Palette[0].Name
	bestDist := int64(1) << 62
	for _, p := range a.config.Palette {
		dr := int64(r) - int64(p.R)
		dg := int64(g) - int64(p.G)
		db := int64(b) - int64(p.B)
		dist := dr*dr + dg*dg + db*db
		if dist < bestDist {
			bestDist = dist
			best = p.Name
		}
	}
	return best
}

// rankShares orders color shares by ratio, descending. Ties keep palette
// order so repeated runs over the same counts rank identically.
func (a *Analyzer) rankShares(counts map[string]int, total int) []colorShare {
	shares := make([]colorShare, 0, len(counts))
	for _, p := range a.config.Palette {
		if c, ok := counts[p.Name]; ok && c > 0 {
			shares = append(shares, colorShare{name: p.Name, ratio: float64(c) / float64(total)})
		}
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].ratio > shares[j].ratio
	})
	return shares
}

// filterShares applies the noise policy in order: dominant white dropped
// above the dominance threshold, then faint pink traces.
func (a *Analyzer) filterShares(shares []colorShare) []colorShare {
	if len(shares) > 0 && shares[0].name == a.config.WhiteName && shares[0].ratio > a.config.WhiteDominance {
		shares = shares[1:]
	}
	out := shares[:0]
	for _, s := range shares {
		if s.name == a.config.PinkName && s.ratio < a.config.PinkNoiseFloor {
			continue
		}
		out = append(out, s)
	}
	return out
}

// narrative concatenates the canned meaning phrases of the surviving top
// colors into the step-2 interpretation sentence.
func (a *Analyzer) narrative(top []string) string {
	var sb strings.Builder
	sb.WriteString("2단계 검사에서 ")
	if len(top) == 0 {
		sb.WriteString("뚜렷한 색상 경향을 찾을 수 없습니다.")
		return sb.String()
	}

	sb.WriteString(strings.Join(top, ", "))
	sb.WriteString(" 색상이 주로 사용되어, ")
	meanings := make([]string, 0, len(top))
	for _, name := range top {
		if m, ok := a.config.Meanings[name]; ok && m != "" {
			meanings = append(meanings, m)
		}
	}
	sb.WriteString(strings.Join(meanings, ", "))
	sb.WriteString(" 경향이 나타났습니다.")
	return sb.String()
}
