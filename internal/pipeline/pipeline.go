// Package pipeline runs the asynchronous analysis of uploaded drawings:
// detector call, rule interpretation, narrative summary, result storage,
// and the once-per-session aggregate synthesis.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/drawmind/htp-server/internal/store"
	"github.com/drawmind/htp-server/pkg/detector"
	"github.com/drawmind/htp-server/pkg/htp"
	"github.com/drawmind/htp-server/pkg/imageprep"
	"github.com/drawmind/htp-server/pkg/rules"
	"github.com/drawmind/htp-server/pkg/summarizer"
)

// Config bounds the per-drawing pipeline run.
type Config struct {
	// Timeout caps one drawing's full analysis, detector and LLM calls
	// included.
	Timeout time.Duration
	// MaxImageSide and JPEGQuality control detector image preparation.
	MaxImageSide int
	JPEGQuality  int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Minute,
		MaxImageSide: 1280,
		JPEGQuality:  90,
	}
}

// Pipeline orchestrates drawing analysis. Enqueue returns immediately; the
// work happens on a goroutine per drawing.
type Pipeline struct {
	store      *store.Store
	detector   detector.Client
	summarizer summarizer.Client
	matcher    *rules.Matcher
	config     Config
	logger     *zap.Logger

	// aggregate collapses concurrent session-completion triggers so the
	// overall synthesis runs at most once per session.
	aggregate singleflight.Group
	wg        sync.WaitGroup
}

// New creates a Pipeline with the default configuration.
func New(st *store.Store, det detector.Client, sum summarizer.Client, matcher *rules.Matcher, logger *zap.Logger) *Pipeline {
	return NewWithConfig(st, det, sum, matcher, logger, DefaultConfig())
}

// NewWithConfig creates a fully customized Pipeline.
func NewWithConfig(st *store.Store, det detector.Client, sum summarizer.Client, matcher *rules.Matcher, logger *zap.Logger, config Config) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Pipeline{
		store:      st,
		detector:   det,
		summarizer: sum,
		matcher:    matcher,
		config:     config,
		logger:     logger,
	}
}

// Enqueue schedules a drawing for analysis and returns immediately.
func (p *Pipeline) Enqueue(sessionID string, drawing *htp.Drawing) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
		defer cancel()
		p.run(ctx, sessionID, drawing)
	}()
}

// Wait blocks until all enqueued drawings have finished. Used on shutdown
// and in tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context, sessionID string, drawing *htp.Drawing) {
	log := p.logger.With(
		zap.String("session_id", sessionID),
		zap.String("drawing_id", drawing.ID),
		zap.String("type", string(drawing.Type)),
	)

	if err := p.store.UpdateDrawingStatus(ctx, drawing.ID, htp.StatusProcessing); err != nil {
		log.Error("failed to mark drawing processing", zap.Error(err))
		return
	}
	log.Info("analysis started")

	result, err := p.analyze(ctx, sessionID, drawing, log)
	if err != nil {
		log.Error("analysis failed", zap.Error(err))
		p.fail(ctx, drawing.ID, err, log)
		return
	}

	// Terminal writes must land even when the analysis deadline has
	// already expired; otherwise the drawing is stuck in processing.
	persistCtx, cancel := persistContext(ctx)
	defer cancel()
	if err := p.store.SetDrawingResult(persistCtx, drawing.ID, htp.StatusDone, result); err != nil {
		log.Error("failed to store drawing result", zap.Error(err))
		return
	}
	log.Info("analysis finished")

	// The aggregation makes its own LLM call, so it gets a full analysis
	// window rather than the short persist window.
	aggCtx, aggCancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.Timeout)
	defer aggCancel()
	p.maybeAggregate(aggCtx, sessionID, log)
}

// analyze produces the drawing result. Detector and rule failures are
// fatal for the drawing; a summarizer failure only leaves the summary
// empty.
func (p *Pipeline) analyze(ctx context.Context, sessionID string, drawing *htp.Drawing, log *zap.Logger) (*htp.DrawingResult, error) {
	image, err := imageprep.PrepareForDetector(drawing.Path, p.config.MaxImageSide, p.config.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("image preparation failed: %w", err)
	}

	detection, err := p.detector.Detect(ctx, drawing.Type, drawing.Filename, image)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	log.Info("detection finished", zap.Int("objects", len(detection.Objects)))

	analysis := p.matcher.Analyze(drawing.Type, detection, rules.BehaviorInput{
		EraseCount: drawing.EraseCount,
		ResetCount: drawing.ResetCount,
		PenUsage:   drawing.PenUsage,
	})

	result := &htp.DrawingResult{
		Detection: detection,
		Analysis:  analysis,
	}

	user := p.userContext(ctx, sessionID)
	summary, err := p.summarizer.SummarizeDrawing(ctx, summarizer.DrawingInput{
		Type:       drawing.Type,
		Analysis:   analysis.Entries,
		EraseCount: drawing.EraseCount,
		ResetCount: drawing.ResetCount,
	}, user)
	if err != nil {
		// The structured analysis is still valuable without a narrative.
		log.Warn("drawing summary failed", zap.Error(err))
	} else {
		result.Summary = summary
	}
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, drawingID string, cause error, log *zap.Logger) {
	persistCtx, cancel := persistContext(ctx)
	defer cancel()

	result := &htp.DrawingResult{Error: cause.Error()}
	if err := p.store.SetDrawingResult(persistCtx, drawingID, htp.StatusError, result); err != nil {
		log.Error("failed to record drawing error", zap.Error(err))
	}
}

// persistContext detaches from the analysis deadline (which may already
// have expired, e.g. a detector call that timed out) while still bounding
// the store write.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

func (p *Pipeline) userContext(ctx context.Context, sessionID string) summarizer.UserContext {
	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return summarizer.UserContext{}
	}
	return summarizer.UserContext{Name: sess.Name, Gender: sess.Gender}
}

// maybeAggregate synthesizes the session-wide summary once all required
// drawings are done. Singleflight collapses concurrent completions of the
// last two drawings; the conditional store write guards against a retry
// after an earlier synthesis already landed.
func (p *Pipeline) maybeAggregate(ctx context.Context, sessionID string, log *zap.Logger) {
	_, err, _ := p.aggregate.Do(sessionID, func() (any, error) {
		sess, err := p.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if !sess.FullyAnalyzed() || sess.OverallSummary != "" {
			return nil, nil
		}

		summaries := make([]summarizer.DrawingSummary, 0, len(htp.RequiredTypes))
		for _, typ := range htp.RequiredTypes {
			d := sess.DrawingByType(typ)
			if d == nil || d.Result == nil {
				continue
			}
			summaries = append(summaries, summarizer.DrawingSummary{
				Type:    typ,
				Summary: d.Result.Summary,
			})
		}

		agg, err := p.summarizer.SynthesizeOverall(ctx, summaries, summarizer.UserContext{
			Name:   sess.Name,
			Gender: sess.Gender,
		})
		if err != nil {
			return nil, fmt.Errorf("overall synthesis failed: %w", err)
		}

		won, err := p.store.SetAggregate(ctx, sessionID, agg)
		if err != nil {
			return nil, err
		}
		if won {
			log.Info("session aggregate stored")
		}
		return nil, nil
	})
	if err != nil {
		log.Error("session aggregation failed", zap.Error(err))
	}
}
