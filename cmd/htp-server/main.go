// Command htp-server runs the HTP drawing-analysis backend: it accepts
// drawing uploads, coordinates the external detector and the LLM
// summarizer, and serves analysis results and reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/drawmind/htp-server/internal/config"
	"github.com/drawmind/htp-server/internal/pipeline"
	"github.com/drawmind/htp-server/internal/report"
	"github.com/drawmind/htp-server/internal/server"
	"github.com/drawmind/htp-server/internal/store"
	"github.com/drawmind/htp-server/internal/utils"
	"github.com/drawmind/htp-server/pkg/colors"
	"github.com/drawmind/htp-server/pkg/detector"
	"github.com/drawmind/htp-server/pkg/geometry"
	"github.com/drawmind/htp-server/pkg/rules"
	"github.com/drawmind/htp-server/pkg/summarizer"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to JSON config file")
		addr       = flag.String("addr", "", "listen address (overrides config)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := utils.EnsureDir(cfg.Server.UploadDir); err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	matcher, err := buildMatcher(cfg)
	if err != nil {
		return err
	}
	colorAnalyzer, err := buildColorAnalyzer(cfg)
	if err != nil {
		return err
	}
	questions, err := buildQuestions(cfg)
	if err != nil {
		return err
	}

	sum, err := buildSummarizer(cfg)
	if err != nil {
		return err
	}

	det := detector.NewHTTPClient(
		cfg.Detector.BaseURL,
		time.Duration(cfg.Detector.TimeoutSeconds)*time.Second,
		detector.WithFieldName(cfg.Detector.FieldName),
	)

	pl := pipeline.NewWithConfig(st, det, sum, matcher, logger, pipeline.Config{
		Timeout:      5 * time.Minute,
		MaxImageSide: cfg.Detector.MaxImageSide,
		JPEGQuality:  cfg.Detector.JPEGQuality,
	})

	renderer := report.New(report.Config{
		PythonPath: cfg.Report.PythonPath,
		ScriptPath: cfg.Report.ScriptPath,
		OutputDir:  cfg.Report.OutputDir,
	})

	srv := server.New(st, pl, colorAnalyzer, questions, sum, renderer, cfg.Server.UploadDir, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	// Drain in-flight analyses before closing the store.
	pl.Wait()
	return nil
}

func buildMatcher(cfg *config.Config) (*rules.Matcher, error) {
	table := rules.DefaultTable()
	if cfg.Rules.TablePath != "" {
		loaded, err := rules.LoadTable(cfg.Rules.TablePath)
		if err != nil {
			return nil, err
		}
		table = loaded
	}
	questions, err := buildQuestions(cfg)
	if err != nil {
		return nil, err
	}

	geomCfg := geometry.DefaultConfig()
	if cfg.Analysis.FrameWidth > 0 {
		geomCfg.FrameWidth = cfg.Analysis.FrameWidth
	}
	if cfg.Analysis.FrameHeight > 0 {
		geomCfg.FrameHeight = cfg.Analysis.FrameHeight
	}
	if cfg.Analysis.LowerZone > 0 {
		geomCfg.LowerZone = cfg.Analysis.LowerZone
	}
	if cfg.Analysis.UpperZone > 0 {
		geomCfg.UpperZone = cfg.Analysis.UpperZone
	}

	relCfg := rules.DefaultRelativeConfig()
	if cfg.Analysis.RelativeLower > 0 {
		relCfg.Lower = cfg.Analysis.RelativeLower
	}
	if cfg.Analysis.RelativeUpper > 0 {
		relCfg.Upper = cfg.Analysis.RelativeUpper
	}

	return rules.NewMatcherWithConfig(table, geometry.NewWithConfig(geomCfg), relCfg, questions), nil
}

func buildQuestions(cfg *config.Config) (rules.QuestionSet, error) {
	if cfg.Rules.QuestionsPath != "" {
		return rules.LoadQuestions(cfg.Rules.QuestionsPath)
	}
	return rules.DefaultQuestions(), nil
}

func buildColorAnalyzer(cfg *config.Config) (*colors.Analyzer, error) {
	colorCfg := colors.DefaultConfig()
	if cfg.Rules.ColorMeaningsPath != "" {
		meanings, err := colors.LoadMeanings(cfg.Rules.ColorMeaningsPath)
		if err != nil {
			return nil, err
		}
		colorCfg.Meanings = meanings
	}
	if cfg.Analysis.WhiteDominance > 0 {
		colorCfg.WhiteDominance = cfg.Analysis.WhiteDominance
	}
	if cfg.Analysis.PinkNoiseFloor > 0 {
		colorCfg.PinkNoiseFloor = cfg.Analysis.PinkNoiseFloor
	}
	return colors.NewWithConfig(colorCfg), nil
}

func buildSummarizer(cfg *config.Config) (summarizer.Client, error) {
	switch cfg.Summarizer.Backend {
	case "openai":
		return summarizer.NewOpenAIClient(cfg.OpenAIKey(), cfg.Summarizer.Model)
	case "ollama":
		return summarizer.NewOllamaClient(cfg.Summarizer.OllamaURL, cfg.Summarizer.Model)
	default:
		return nil, fmt.Errorf("unknown summarizer backend %q", cfg.Summarizer.Backend)
	}
}
