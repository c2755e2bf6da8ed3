package summarizer

import (
	"fmt"
	"strings"

	"github.com/drawmind/htp-server/pkg/htp"
)

const drawingSystemPrompt = "너는 HTP 상담 보고서 작성자다. " +
	"최종 요약에는 객체명/부분명/좌표/면적 수치를 절대 노출하지 마라. " +
	"과장/단정 금지, 중복 제거, 따뜻하고 차분한 한국어를 사용하라. " +
	"집은 정서적 안정감, 나무는 성장과 내면 에너지, 사람은 자기 표현과 자아 동일시를 중심으로 서술하라. " +
	"임상명칭과 진단명은 사용하지 말고 가설 어조를 유지하라."

const overallSystemPrompt = "너는 HTP(집-나무-사람) 검사 종합 보고서를 작성하는 전문 상담가다. " +
	"그림별 요약을 바탕으로 성격, 정서, 대인관계 특성을 종합 해석하라. " +
	"객체명을 직접 언급하지 말고 심리적 의미를 중심으로 설명하며, " +
	"따뜻하고 객관적인 톤으로 단정이나 병리적 표현을 피하라. " +
	"personalized_overall은 200~300자 분량의 한 문단으로 작성하고, 오로지 JSON만 반환하라."

const diagnosisSystemPrompt = "너는 HTP 검사 결과를 바탕으로 '진단 필요 여부 요약'만 한 문장으로 작성하는 전문가다. " +
	"아래 중 하나만 출력하라:\n" +
	"- 전문가의 상담이 필요하지 않습니다.\n" +
	"- 전문가와의 상담이 권장됩니다.\n" +
	"- 전문가의 즉각적인 상담이 필요합니다.\n" +
	"문장은 단 한 줄로만 출력하고 이유나 근거는 작성하지 마라."

const colorRefineSystemPrompt = "너는 아동 HTP 검사 보고서 편집자다. " +
	"색채 해석 문장을 자연스럽고 짧게 다듬어라. " +
	"문장은 3~5문장 이내로 요약하며 '2단계 그림에서는~'으로 시작하라. " +
	"핵심 의미만 남기고 반복되는 표현은 제거하되 단정은 피하라."

func openingRule(name string) string {
	if name != "" {
		return fmt.Sprintf("첫 문장은 반드시 %q님은 으로 시작하라.", name)
	}
	return "첫 문장은 내담자의 특성을 한 문장으로 요약하라."
}

// buildDrawingPrompt assembles the per-drawing summary request: the meaning
// bullets from the rule engine plus the behavioral signals, without
// exposing object names in the final narrative.
func buildDrawingPrompt(in DrawingInput, user UserContext) string {
	var bullets []string
	var behaviors []string
	missing := 0
	for _, e := range in.Analysis {
		switch {
		case strings.Contains(e.Label, "(미표현)"):
			missing++
		case e.Label == "지우기 사용" || e.Label == "리셋 사용" || e.Label == "펜 굵기 사용":
			behaviors = append(behaviors, "- "+e.Meaning)
		case e.Meaning != "" && !strings.Contains(e.Meaning, "해석 기준 없음"):
			bullets = append(bullets, "- "+e.Meaning)
		}
	}

	signals := []string{
		fmt.Sprintf("지우기 %d회", in.EraseCount),
		fmt.Sprintf("리셋 %d회", in.ResetCount),
	}
	if missing > 0 {
		signals = append([]string{fmt.Sprintf("누락 요소 %d개(객체명 비공개)", missing)}, signals...)
	}
	if len(behaviors) > 0 {
		signals = append(signals, "행동 해석\n"+strings.Join(behaviors, "\n"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "대상 그림 유형: %s\n", in.Type)
	sb.WriteString(openingRule(user.Name) + "\n")
	sb.WriteString("- 인식된 요소는 직접 명칭을 말하지 말고 간접 표현을 사용하라.\n")
	sb.WriteString("- 행동 신호는 서술 속에 부드럽게 녹여라.\n\n")
	sb.WriteString("[해석 근거(객체명 비노출)]\n")
	if len(bullets) > 0 {
		sb.WriteString(strings.Join(bullets, "\n"))
	} else {
		sb.WriteString("(없음)")
	}
	sb.WriteString("\n\n[추가 신호]\n")
	sb.WriteString(strings.Join(signals, "\n"))
	sb.WriteString("\n\n이 재료를 바탕으로 상담자에게 전달할 한 문단 요약을 작성하라.")
	return sb.String()
}

// perDrawingKey maps drawing types to the keys used in the aggregate JSON.
func perDrawingKey(typ htp.DrawingType) string {
	switch typ {
	case htp.TypePersonMale:
		return "person_man"
	case htp.TypePersonFemale:
		return "person_woman"
	default:
		return string(typ)
	}
}

// buildOverallPrompt assembles the session-wide synthesis request from the
// finished per-drawing summaries.
func buildOverallPrompt(summaries []DrawingSummary, user UserContext) string {
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("- %s: %s", perDrawingKey(s.Type), s.Summary))
	}

	var sb strings.Builder
	sb.WriteString("아래 그림별 종합 요약을 바탕으로 전체 해석을 JSON으로 작성하라.\n\n")
	sb.WriteString("요구 스키마:\n")
	sb.WriteString(`{"personalized_overall": string, "per_drawing": {"house"?: string, "tree"?: string, "person_man"?: string, "person_woman"?: string}}` + "\n\n")
	sb.WriteString(openingRule(user.Name) + "\n")
	sb.WriteString("특정 객체명, 위치, 수치 언급 금지. 중복된 의미는 자연스럽게 통합하라.\n\n")
	sb.WriteString("[그림별 종합 요약]\n")
	if len(lines) > 0 {
		sb.WriteString(strings.Join(lines, "\n"))
	} else {
		sb.WriteString("(없음)")
	}
	return sb.String()
}
