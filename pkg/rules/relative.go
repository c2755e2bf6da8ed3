package rules

import (
	"fmt"

	"github.com/drawmind/htp-server/pkg/geometry"
	"github.com/drawmind/htp-server/pkg/htp"
)

// RelativeConfig holds the size-ratio thresholds for comparison against the
// type's reference object. Ratios strictly between Lower and Upper are a
// deliberate dead zone and produce no meaning.
type RelativeConfig struct {
	Lower float64
	Upper float64
}

// DefaultRelativeConfig returns the tuned production thresholds.
func DefaultRelativeConfig() RelativeConfig {
	return RelativeConfig{Lower: 0.3, Upper: 0.7}
}

const (
	smallerMeaningFmt = "기준 대상(%s)에 비해 작게 표현되어 위축되거나 부차적으로 인식될 가능성이 있습니다."
	largerMeaningFmt  = "기준 대상(%s)에 비해 크게 표현되어 강조되거나 중요한 의미를 지닐 가능성이 있습니다."
)

// compareRelative emits qualitative size meanings for every non-anchor
// object relative to the type's reference object. Without an anchor in the
// input the result is empty; that is not an error.
func (m *Matcher) compareRelative(typ htp.DrawingType, descs []geometry.Descriptor) []htp.Interpretation {
	refLabel := m.rulesFor(typ).ReferenceLabel
	if refLabel == "" {
		return nil
	}

	var anchor *geometry.Descriptor
	for i := range descs {
		if descs[i].Label == refLabel {
			anchor = &descs[i]
			break
		}
	}
	if anchor == nil {
		return nil
	}
	anchorArea := anchor.W * anchor.H
	if anchorArea <= 0 {
		return nil
	}

	var out []htp.Interpretation
	for _, d := range descs {
		if d.Label == refLabel {
			continue
		}
		ratio := d.W * d.H / anchorArea
		switch {
		case ratio < m.relative.Lower:
			out = append(out, htp.Interpretation{
				Label:   d.Label,
				Meaning: fmt.Sprintf(smallerMeaningFmt, refLabel),
			})
		case ratio > m.relative.Upper:
			out = append(out, htp.Interpretation{
				Label:   d.Label,
				Meaning: fmt.Sprintf(largerMeaningFmt, refLabel),
			})
		}
	}
	return out
}
