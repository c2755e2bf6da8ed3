package rules

import "github.com/drawmind/htp-server/pkg/htp"

// Canned interpretations for drawing-process behavior. The bucket
// boundaries (0 / up to 2 / more) mirror the counseling rubric the rule
// tables were tuned against.

const (
	eraseLabel = "지우기 사용"
	resetLabel = "리셋 사용"
	penLabel   = "펜 굵기 사용"
)

var eraseMeanings = [3]string{
	"지우기 한 번의 시도로 그림을 완성한 모습에서 자신감과 안정된 정서를 엿볼 수 있습니다.",
	"그림을 수정한 흔적이 적당히 관찰되며, 세밀한 자기조절과 완성도를 추구하는 태도가 보입니다.",
	"지우는 횟수가 많아 신중하거나 불안정한 심리 상태가 일부 반영되었을 가능성이 있습니다.",
}

var resetMeanings = [3]string{
	"한 번도 새로 그리려 하지 않고 흐름을 유지하며 완성한 점은 계획성과 자기 확신을 보여줍니다.",
	"처음부터 다시 그린 횟수가 적당하여, 조정과 개선을 통해 완성도를 높이려는 노력이 엿보입니다.",
	"여러 번 다시 그린 모습은 불안감이나 완벽주의적 경향을 시사할 수 있습니다.",
}

var penMeanings = map[string]string{
	"thin":   "가는 선을 주로 사용하여 섬세하고 신중한 성향을 보이며, 내면의 세부 표현에 집중하는 경향이 있습니다.",
	"normal": "보통 굵기의 선을 주로 사용하여 안정적이고 조화로운 심리 상태를 반영합니다.",
	"thick":  "굵은 선을 주로 사용하여 자기표현이 강하고 에너지 넘치는 태도를 나타냅니다.",
}

// penOrder breaks count ties deterministically.
var penOrder = []string{"thin", "normal", "thick"}

func bucket(count int) int {
	switch {
	case count == 0:
		return 0
	case count <= 2:
		return 1
	default:
		return 2
	}
}

// interpretBehavior converts erase/reset counts and pen usage statistics
// into interpretation entries.
func interpretBehavior(in BehaviorInput) []htp.Interpretation {
	out := []htp.Interpretation{
		{Label: eraseLabel, Meaning: eraseMeanings[bucket(in.EraseCount)]},
		{Label: resetLabel, Meaning: resetMeanings[bucket(in.ResetCount)]},
	}

	if dominant := dominantPen(in.PenUsage); dominant != "" {
		if meaning, ok := penMeanings[dominant]; ok {
			out = append(out, htp.Interpretation{Label: penLabel, Meaning: meaning})
		}
	}
	return out
}

func dominantPen(usage map[string]int) string {
	best, bestCount := "", 0
	for _, name := range penOrder {
		if count := usage[name]; count > bestCount {
			best, bestCount = name, count
		}
	}
	if bestCount == 0 {
		return ""
	}
	return best
}
