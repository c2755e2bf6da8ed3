// Package config holds the application configuration: server addresses,
// external service endpoints and the paths of the interpretation tables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the full server configuration.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Store      StoreConfig      `json:"store"`
	Detector   DetectorConfig   `json:"detector"`
	Summarizer SummarizerConfig `json:"summarizer"`
	Rules      RulesConfig      `json:"rules"`
	Analysis   AnalysisConfig   `json:"analysis"`
	Report     ReportConfig     `json:"report"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig holds the HTTP listener and upload storage settings.
type ServerConfig struct {
	Addr      string `json:"addr"`
	UploadDir string `json:"upload_dir"`
}

// StoreConfig holds the session database location.
type StoreConfig struct {
	Path string `json:"path"`
}

// DetectorConfig holds the external YOLO service settings.
type DetectorConfig struct {
	BaseURL        string `json:"base_url"`
	FieldName      string `json:"field_name"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// Uploads with a longer side than this are downscaled before
	// detector submission; 0 disables downscaling.
	MaxImageSide int `json:"max_image_side"`
	JPEGQuality  int `json:"jpeg_quality"`
}

// SummarizerConfig selects and configures the narrative backend.
type SummarizerConfig struct {
	// Backend is "openai" or "ollama".
	Backend string `json:"backend"`
	Model   string `json:"model"`
	// APIKey falls back to OPENAI_API_KEY when empty.
	APIKey    string `json:"api_key,omitempty"`
	OllamaURL string `json:"ollama_url,omitempty"`
}

// RulesConfig points at the interpretation tables. Empty paths select the
// tables embedded in the binary.
type RulesConfig struct {
	TablePath         string `json:"table_path,omitempty"`
	QuestionsPath     string `json:"questions_path,omitempty"`
	ColorMeaningsPath string `json:"color_meanings_path,omitempty"`
}

// AnalysisConfig overrides the tuned analysis thresholds. Zero values keep
// the built-in defaults.
type AnalysisConfig struct {
	FrameWidth  int     `json:"frame_width,omitempty"`
	FrameHeight int     `json:"frame_height,omitempty"`
	LowerZone   float64 `json:"lower_zone,omitempty"`
	UpperZone   float64 `json:"upper_zone,omitempty"`

	RelativeLower float64 `json:"relative_lower,omitempty"`
	RelativeUpper float64 `json:"relative_upper,omitempty"`

	WhiteDominance float64 `json:"white_dominance,omitempty"`
	PinkNoiseFloor float64 `json:"pink_noise_floor,omitempty"`
}

// ReportConfig holds the external PDF renderer settings.
type ReportConfig struct {
	PythonPath string `json:"python_path"`
	ScriptPath string `json:"script_path"`
	OutputDir  string `json:"output_dir"`
}

// LoggingConfig selects the logger flavor.
type LoggingConfig struct {
	Development bool `json:"development"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":5000",
			UploadDir: "./uploads",
		},
		Store: StoreConfig{
			Path: "./data/htp.db",
		},
		Detector: DetectorConfig{
			BaseURL:        "http://127.0.0.1:8000",
			FieldName:      "image",
			TimeoutSeconds: 30,
			MaxImageSide:   1280,
			JPEGQuality:    90,
		},
		Summarizer: SummarizerConfig{
			Backend:   "openai",
			Model:     "gpt-4o-mini",
			OllamaURL: "http://localhost:11434",
		},
		Report: ReportConfig{
			PythonPath: "python3",
			ScriptPath: "./scripts/report_generator.py",
			OutputDir:  "./uploads/reports",
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// OpenAIKey resolves the API key from config or environment.
func (c *Config) OpenAIKey() string {
	if c.Summarizer.APIKey != "" {
		return c.Summarizer.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Server.UploadDir == "" {
		return fmt.Errorf("server.upload_dir cannot be empty")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	if c.Detector.BaseURL == "" {
		return fmt.Errorf("detector.base_url cannot be empty")
	}
	if c.Detector.TimeoutSeconds <= 0 {
		return fmt.Errorf("detector.timeout_seconds must be positive")
	}
	if c.Detector.JPEGQuality < 1 || c.Detector.JPEGQuality > 100 {
		return fmt.Errorf("detector.jpeg_quality must be between 1 and 100")
	}
	switch c.Summarizer.Backend {
	case "openai", "ollama":
	default:
		return fmt.Errorf("summarizer.backend must be openai or ollama, got %q", c.Summarizer.Backend)
	}
	if c.Summarizer.Backend == "ollama" && c.Summarizer.OllamaURL == "" {
		return fmt.Errorf("summarizer.ollama_url cannot be empty for the ollama backend")
	}
	return nil
}
