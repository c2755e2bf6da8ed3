package geometry

import (
	"testing"

	"github.com/drawmind/htp-server/pkg/htp"
)

func TestClassify(t *testing.T) {
	c := New()

	tests := []struct {
		name      string
		obj       htp.DetectedObject
		wantRatio float64
		wantPos   string
	}{
		{
			name:      "centered box",
			obj:       htp.DetectedObject{Label: "집벽", X: 100, Y: 100, W: 800, H: 800},
			wantRatio: 0.3906,
			wantPos:   "middle-center",
		},
		{
			name:      "top left corner",
			obj:       htp.DetectedObject{Label: "굴뚝", X: 0, Y: 0, W: 100, H: 100},
			wantRatio: 0.0061,
			wantPos:   "top-left",
		},
		{
			name:      "bottom right corner",
			obj:       htp.DetectedObject{Label: "길", X: 1100, Y: 1100, W: 180, H: 180},
			wantRatio: 0.0198,
			wantPos:   "bottom-right",
		},
		{
			name:      "full frame",
			obj:       htp.DetectedObject{Label: "나무", X: 0, Y: 0, W: 1280, H: 1280},
			wantRatio: 1,
			wantPos:   "middle-center",
		},
		{
			name:      "zero size box",
			obj:       htp.DetectedObject{Label: "점", X: 640, Y: 640, W: 0, H: 0},
			wantRatio: 0,
			wantPos:   "middle-center",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.obj)
			if got.AreaRatio != tt.wantRatio {
				t.Errorf("AreaRatio = %v, want %v", got.AreaRatio, tt.wantRatio)
			}
			if got.Position != tt.wantPos {
				t.Errorf("Position = %q, want %q", got.Position, tt.wantPos)
			}
			if got.Label != tt.obj.Label {
				t.Errorf("Label = %q, want %q", got.Label, tt.obj.Label)
			}
		})
	}
}

func TestZoneBoundaries(t *testing.T) {
	c := New()

	tests := []struct {
		center float64
		want   string
	}{
		{422, "top-left"},
		{423, "middle-center"},
		{844, "middle-center"},
		{845, "bottom-right"},
	}
	for _, tt := range tests {
		got := c.Classify(htp.DetectedObject{X: tt.center, Y: tt.center, W: 0, H: 0})
		if got.Position != tt.want {
			t.Errorf("center %v: got %q, want %q", tt.center, got.Position, tt.want)
		}
	}
}

func TestClassifyAllPreservesOrder(t *testing.T) {
	c := New()
	objects := []htp.DetectedObject{
		{Label: "b", X: 0, Y: 0, W: 10, H: 10},
		{Label: "a", X: 0, Y: 0, W: 10, H: 10},
		{Label: "b", X: 0, Y: 0, W: 10, H: 10},
	}
	descs := c.ClassifyAll(objects)
	if len(descs) != 3 {
		t.Fatalf("got %d descriptors, want 3", len(descs))
	}
	for i, d := range descs {
		if d.Label != objects[i].Label {
			t.Errorf("descs[%d].Label = %q, want %q", i, d.Label, objects[i].Label)
		}
	}
}

func TestPositions(t *testing.T) {
	got := Positions()
	if len(got) != 9 {
		t.Fatalf("got %d positions, want 9", len(got))
	}
	seen := make(map[string]bool)
	for _, p := range got {
		seen[p] = true
	}
	for _, want := range []string{"top-left", "middle-center", "bottom-right"} {
		if !seen[want] {
			t.Errorf("missing position %q", want)
		}
	}
}

func TestCustomFrame(t *testing.T) {
	c := NewWithConfig(Config{FrameWidth: 100, FrameHeight: 100, LowerZone: 0.33, UpperZone: 0.66})
	got := c.Classify(htp.DetectedObject{X: 0, Y: 0, W: 50, H: 50})
	if got.AreaRatio != 0.25 {
		t.Errorf("AreaRatio = %v, want 0.25", got.AreaRatio)
	}
	if got.Position != "top-left" {
		t.Errorf("Position = %q, want top-left", got.Position)
	}
}
