// Package geometry converts raw detector bounding boxes into normalized
// descriptors: an area ratio against the reference frame and one of nine
// coarse position labels derived from the box center.
package geometry

import (
	"fmt"
	"math"

	"github.com/drawmind/htp-server/pkg/htp"
)

// Classifier computes position and size descriptors for detected objects.
type Classifier struct {
	config Config
}

// Config holds the reference frame and zone thresholds for classification.
type Config struct {
	FrameWidth  int
	FrameHeight int
	// Zone boundaries as fractions of the frame. A center below Lower
	// falls into the first zone, above Upper into the last.
	LowerZone float64
	UpperZone float64
}

// DefaultConfig matches the detector's 1280x1280 reference frame with
// tripartite zones at 33% and 66%.
func DefaultConfig() Config {
	return Config{
		FrameWidth:  1280,
		FrameHeight: 1280,
		LowerZone:   0.33,
		UpperZone:   0.66,
	}
}

// New creates a Classifier for the default reference frame.
func New() *Classifier {
	return &Classifier{config: DefaultConfig()}
}

// NewWithConfig creates a Classifier with a custom frame and thresholds.
func NewWithConfig(config Config) *Classifier {
	return &Classifier{config: config}
}

// Descriptor is the normalized view of one bounding box.
type Descriptor struct {
	Label     string
	AreaRatio float64
	Position  string
	W         float64
	H         float64
	Cx        float64
	Cy        float64
}

// Classify computes the descriptor for one detected object. It is total:
// degenerate boxes are not rejected, their abnormal ratios simply propagate
// because detector output is trusted upstream.
func (c *Classifier) Classify(obj htp.DetectedObject) Descriptor {
	frameArea := float64(c.config.FrameWidth) * float64(c.config.FrameHeight)
	areaRatio := obj.W * obj.H / frameArea

	cx := obj.X + obj.W/2
	cy := obj.Y + obj.H/2

	xZone := zone(cx, float64(c.config.FrameWidth), c.config.LowerZone, c.config.UpperZone, "left", "center", "right")
	yZone := zone(cy, float64(c.config.FrameHeight), c.config.LowerZone, c.config.UpperZone, "top", "middle", "bottom")

	return Descriptor{
		Label:     obj.Label,
		AreaRatio: roundRatio(areaRatio),
		Position:  fmt.Sprintf("%s-%s", yZone, xZone),
		W:         obj.W,
		H:         obj.H,
		Cx:        cx,
		Cy:        cy,
	}
}

// ClassifyAll computes descriptors for a full detection result, preserving
// input order.
func (c *Classifier) ClassifyAll(objects []htp.DetectedObject) []Descriptor {
	out := make([]Descriptor, 0, len(objects))
	for _, obj := range objects {
		out = append(out, c.Classify(obj))
	}
	return out
}

// Positions lists the nine valid position labels.
func Positions() []string {
	out := make([]string, 0, 9)
	for _, y := range []string{"top", "middle", "bottom"} {
		for _, x := range []string{"left", "center", "right"} {
			out = append(out, y+"-"+x)
		}
	}
	return out
}

func zone(center, extent, lower, upper float64, lo, mid, hi string) string {
	if center < extent*lower {
		return lo
	}
	if center > extent*upper {
		return hi
	}
	return mid
}

// roundRatio truncates the ratio to 4 decimal places so matching and
// display stay stable across runs.
func roundRatio(r float64) float64 {
	return math.Round(r*10000) / 10000
}
