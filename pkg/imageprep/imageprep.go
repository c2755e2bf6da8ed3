// Package imageprep loads and normalizes uploaded drawings before they are
// handed to the color analyzer or the external detector.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Decode decodes raw upload bytes into an image. WebP is handled by the
// registered decoder; jpeg/png/gif via the stdlib.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// LoadImage loads an image from disk.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// PrepareForDetector loads a stored drawing and re-encodes it as JPEG with
// the long side capped at maxSide pixels. maxSide 0 keeps the original
// dimensions. The detector expects its own fixed reference frame, so large
// tablet exports are downscaled before upload.
func PrepareForDetector(path string, maxSide, quality int) ([]byte, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}

	if maxSide > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > maxSide || bounds.Dy() > maxSide {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image for detector: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode writes img in the format implied by ext ("jpg", "png", "webp").
func Encode(img image.Image, ext string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", ext)
	}
	return buf.Bytes(), nil
}

// ExtensionFor maps a decoded format name to a file extension.
func ExtensionFor(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".png"
	default:
		return "." + format
	}
}
