// Package detector wraps the external YOLO object-detection service. The
// service is a black box that accepts image bytes and returns labeled
// bounding boxes in its fixed 1280x1280 reference frame.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/drawmind/htp-server/pkg/htp"
)

// Client detects objects in an uploaded drawing.
type Client interface {
	Detect(ctx context.Context, typ htp.DrawingType, filename string, image []byte) (*htp.DetectionResult, error)
}

// HTTPClient talks to the YOLO service over HTTP multipart uploads.
type HTTPClient struct {
	baseURL    string
	fieldName  string
	httpClient *http.Client
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithFieldName overrides the multipart field the service expects.
func WithFieldName(name string) Option {
	return func(c *HTTPClient) { c.fieldName = name }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient creates a detector client for the given service base URL.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		fieldName:  "image",
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect uploads the drawing to /analyze/{type} and parses the detection
// response. Any transport or parse failure is returned as an error; the
// caller decides what it means for the drawing's pipeline.
func (c *HTTPClient) Detect(ctx context.Context, typ htp.DrawingType, filename string, image []byte) (*htp.DetectionResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(c.fieldName, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart request: %w", err)
	}

	url := fmt.Sprintf("%s/analyze/%s", c.baseURL, typ)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result htp.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse detector response: %w", err)
	}
	return &result, nil
}
