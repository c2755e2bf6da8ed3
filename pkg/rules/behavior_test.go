package rules

import "testing"

func TestBucket(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{0, 0}, {1, 1}, {2, 1}, {3, 2}, {10, 2},
	}
	for _, tt := range tests {
		if got := bucket(tt.count); got != tt.want {
			t.Errorf("bucket(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestDominantPen(t *testing.T) {
	tests := []struct {
		name  string
		usage map[string]int
		want  string
	}{
		{"empty", nil, ""},
		{"all zero", map[string]int{"thin": 0, "thick": 0}, ""},
		{"clear winner", map[string]int{"thin": 2, "normal": 9, "thick": 1}, "normal"},
		{"tie keeps order", map[string]int{"thin": 5, "thick": 5}, "thin"},
		{"unknown keys ignored", map[string]int{"brush": 20, "thick": 1}, "thick"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dominantPen(tt.usage); got != tt.want {
				t.Errorf("dominantPen(%v) = %q, want %q", tt.usage, got, tt.want)
			}
		})
	}
}

func TestInterpretBehaviorAlwaysEmitsEraseAndReset(t *testing.T) {
	out := interpretBehavior(BehaviorInput{})
	if len(out) != 2 {
		t.Fatalf("got %d entries, want 2", len(out))
	}
	if out[0].Label != eraseLabel || out[1].Label != resetLabel {
		t.Errorf("unexpected labels: %q, %q", out[0].Label, out[1].Label)
	}

	out = interpretBehavior(BehaviorInput{PenUsage: map[string]int{"thin": 1}})
	if len(out) != 3 || out[2].Label != penLabel {
		t.Errorf("pen entry missing: %+v", out)
	}
}
