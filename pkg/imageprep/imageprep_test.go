package imageprep

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 180, G: 90, B: 40, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := testImage(40, 30)

	for _, ext := range []string{"png", ".png", "jpg", "jpeg", "webp"} {
		t.Run(ext, func(t *testing.T) {
			data, err := Encode(src, ext, 90)
			if err != nil {
				t.Fatalf("Encode(%q) failed: %v", ext, err)
			}
			img, _, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != 40 || b.Dy() != 30 {
				t.Errorf("bounds = %dx%d, want 40x30", b.Dx(), b.Dy())
			}
		})
	}
}

func TestDecodeReportsFormat(t *testing.T) {
	data, err := Encode(testImage(8, 8), "webp", 80)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	_, format, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if format != "webp" {
		t.Errorf("format = %q, want webp", format)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode([]byte("not an image")); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	if _, err := Encode(testImage(4, 4), "tiff", 90); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"jpeg", ".jpg"},
		{"png", ".png"},
		{"webp", ".webp"},
		{"", ".png"},
	}
	for _, tt := range tests {
		if got := ExtensionFor(tt.format); got != tt.want {
			t.Errorf("ExtensionFor(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func writeImageFile(t *testing.T, img image.Image) string {
	t.Helper()
	data, err := Encode(img, "png", 90)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write image file: %v", err)
	}
	return path
}

func TestLoadImage(t *testing.T) {
	path := writeImageFile(t, testImage(16, 16))
	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}

	if _, err := LoadImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestPrepareForDetectorDownscales(t *testing.T) {
	path := writeImageFile(t, testImage(200, 100))

	data, err := PrepareForDetector(path, 50, 90)
	if err != nil {
		t.Fatalf("PrepareForDetector failed: %v", err)
	}
	img, format, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("bounds = %dx%d, want 50x25", b.Dx(), b.Dy())
	}
}

func TestPrepareForDetectorKeepsSmallImages(t *testing.T) {
	path := writeImageFile(t, testImage(30, 20))

	data, err := PrepareForDetector(path, 100, 90)
	if err != nil {
		t.Fatalf("PrepareForDetector failed: %v", err)
	}
	img, _, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Errorf("bounds = %dx%d, want 30x20", b.Dx(), b.Dy())
	}
}
