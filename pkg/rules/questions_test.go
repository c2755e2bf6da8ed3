package rules

import (
	"testing"

	"github.com/drawmind/htp-server/pkg/htp"
)

// houseCounts returns label counts where every question trigger label is
// present except the listed ones.
func houseCounts(missing ...string) map[string]int {
	counts := map[string]int{"집벽": 1, "울타리": 1, "굴뚝": 1, "창문": 2, "문": 1, "길": 1}
	for _, label := range missing {
		delete(counts, label)
	}
	return counts
}

func TestPickConditionalTrigger(t *testing.T) {
	qs := DefaultQuestions()
	got := qs.Pick(htp.TypeHouse, houseCounts("문"))
	if got != "이 집에 들어가려면 어디로 들어가야 할까요?" {
		t.Errorf("unexpected question %q", got)
	}
}

func TestPickFallsBackToLowObjects(t *testing.T) {
	qs := DefaultQuestions()
	low := make(map[string]bool)
	for _, q := range qs["house"].LowObjects {
		low[q] = true
	}
	// All triggers satisfied, so the pick must come from the generic pool.
	got := qs.Pick(htp.TypeHouse, houseCounts())
	if !low[got] {
		t.Errorf("question %q not from the low-object pool", got)
	}
}

func TestPickLowTrigger(t *testing.T) {
	qs := DefaultQuestions()
	counts := map[string]int{"나무": 1, "뿌리": 1, "가지": 2, "나뭇잎": 1, "열매": 1}
	got := qs.Pick(htp.TypeTree, counts)
	if got != "이 나무에 열매가 더 열린다면 어떤 열매일까요?" {
		t.Errorf("low trigger should fire at count 1, got %q", got)
	}
}

func TestPickPersonVariantKey(t *testing.T) {
	qs := DefaultQuestions()
	counts := map[string]int{"사람": 1, "머리": 1, "코": 1, "입": 1, "손": 1, "다리": 1, "발": 1}
	got := qs.Pick(htp.TypePersonFemale, counts)
	if got != "이 사람은 지금 무엇을 바라보고 있을까요?" {
		t.Errorf("person variant did not resolve the shared pool, got %q", got)
	}
}

func TestPickForMissing(t *testing.T) {
	qs := DefaultQuestions()
	got := qs.PickForMissing(htp.TypeHouse, []string{"길_missing", "문_missing"})
	if got != "이 집까지 가는 길은 어떤 모습일까요?" {
		t.Errorf("expected the first conditional hit, got %q", got)
	}

	// Unknown keys fall back to the generic pool.
	got = qs.PickForMissing(htp.TypeHouse, []string{"굴뚝_low"})
	if got == "" {
		t.Error("expected a fallback question")
	}
}

func TestSplitTrigger(t *testing.T) {
	tests := []struct {
		key       string
		wantLabel string
		wantKind  string
		wantOK    bool
	}{
		{"문_missing", "문", "missing", true},
		{"열매_low", "열매", "low", true},
		{"문_unknown", "", "", false},
		{"_missing", "", "", false},
		{"plain", "", "", false},
	}
	for _, tt := range tests {
		label, kind, ok := splitTrigger(tt.key)
		if label != tt.wantLabel || kind != tt.wantKind || ok != tt.wantOK {
			t.Errorf("splitTrigger(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.key, label, kind, ok, tt.wantLabel, tt.wantKind, tt.wantOK)
		}
	}
}
