// Package pipeline orchestrates a processing run: extraction, preview
// rendering, the two AI passes, and session persistence, plus the
// post-processing operations that mutate a stored run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/deckvoice/deckvoice/internal/deck"
	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/narrate"
	"github.com/deckvoice/deckvoice/internal/observability"
	"github.com/deckvoice/deckvoice/internal/render"
	"github.com/deckvoice/deckvoice/internal/session"
	"github.com/deckvoice/deckvoice/internal/storage"
)

// Service wires the pipeline stages together.
type Service struct {
	extractor *deck.Extractor
	renderer  *render.Renderer
	engine    *narrate.Engine
	store     session.Store
	blobs     storage.Blob
	progress  *domain.ProgressStore
	logger    *observability.Logger

	renderEnabled bool
}

// NewService creates the pipeline service. renderer and blobs may be nil:
// without a renderer slides carry no previews, and without blob storage
// source decks are not retained (notes-injected exports then fail with
// SourceDeckUnavailable).
func NewService(
	extractor *deck.Extractor,
	renderer *render.Renderer,
	engine *narrate.Engine,
	store session.Store,
	blobs storage.Blob,
	progress *domain.ProgressStore,
	logger *observability.Logger,
) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		extractor:     extractor,
		renderer:      renderer,
		engine:        engine,
		store:         store,
		blobs:         blobs,
		progress:      progress,
		logger:        logger.WithComponent("pipeline"),
		renderEnabled: renderer != nil,
	}
}

// Process runs the full pipeline over an uploaded deck and stores the
// resulting run. Validation failures surface before any AI call is made.
func (s *Service) Process(ctx context.Context, data []byte, filename string, cfg domain.Configuration) (*domain.ProcessingRun, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	reporter := s.reporter(runID)
	logger := s.logger.WithRun(runID.String())

	run, err := s.process(ctx, runID, data, filename, cfg, reporter, logger)
	if err != nil {
		reporter.Report(domain.StageFailed, 100, err.Error())
		return nil, err
	}

	reporter.Report(domain.StageComplete, 100, "")
	return run, nil
}

func (s *Service) process(
	ctx context.Context,
	runID uuid.UUID,
	data []byte,
	filename string,
	cfg domain.Configuration,
	reporter domain.ProgressReporter,
	logger *observability.Logger,
) (*domain.ProcessingRun, error) {
	started := time.Now()
	logger.Info().Str("filename", filename).Int("bytes", len(data)).Msg("Starting processing run")

	reporter.Report(domain.StageExtracting, 5, "extracting slides")
	slides, err := s.extractor.Extract(data)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("slides", len(slides)).Msg("Extracted slides")

	workDir, err := os.MkdirTemp("", "deckvoice-run-")
	if err != nil {
		return nil, domain.InternalError("create work directory", err)
	}
	defer os.RemoveAll(workDir)

	if s.renderEnabled {
		reporter.Report(domain.StageRendering, 15, "rendering slide previews")
		if err := s.renderPreviews(ctx, data, filename, workDir, slides, logger); err != nil {
			return nil, err
		}
	}

	reporter.Report(domain.StageRewriting, 30, "rewriting slide content")
	if err := s.engine.RewriteSlides(ctx, slides, cfg); err != nil {
		return nil, err
	}

	failed := 0
	for i := range slides {
		if slides[i].RewriteFailed {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn().Int("failed", failed).Msg("Run continues with partially failed rewrites")
	}

	reporter.Report(domain.StageNarrating, 60, "generating narration flow")
	if err := s.engine.GenerateNarrations(ctx, slides, cfg); err != nil {
		return nil, err
	}

	if cfg.EnableAIPolishing {
		reporter.Report(domain.StagePolishing, 90, "polishing narration")
	}

	// Previews live in the run's work directory and are deleted with it;
	// refs are cleared so stored runs never point at purged files.
	for i := range slides {
		slides[i].ImageRef = ""
	}

	sourceRef := ""
	if s.blobs != nil {
		sourceRef = runID.String() + ".pptx"
		if err := s.blobs.Put(ctx, sourceRef, data); err != nil {
			logger.Warn().Err(err).Msg("Could not retain source deck, notes-injected export will be unavailable")
			sourceRef = ""
		}
	}

	run := &domain.ProcessingRun{
		ID:        runID,
		Config:    cfg,
		Slides:    slides,
		SourceRef: sourceRef,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, run); err != nil {
		return nil, err
	}

	logger.Info().
		Int("slides", len(slides)).
		Int("rewrite_failures", failed).
		Dur("elapsed", time.Since(started)).
		Msg("Processing run complete")
	return run, nil
}

func (s *Service) renderPreviews(ctx context.Context, data []byte, filename string, workDir string, slides []domain.Slide, logger *observability.Logger) error {
	name := filepath.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = "deck.pptx"
	}
	pptxPath := filepath.Join(workDir, name)
	if err := os.WriteFile(pptxPath, data, 0o600); err != nil {
		return domain.InternalError("stage deck for rendering", err)
	}

	refs, err := s.renderer.RenderPreviews(ctx, pptxPath, workDir, len(slides))
	if err != nil {
		return err
	}

	rendered := 0
	for i := range slides {
		slides[i].ImageRef = refs[i]
		if refs[i] != "" {
			rendered++
		}
	}
	logger.Info().Int("rendered", rendered).Int("slides", len(slides)).Msg("Rendered previews")
	return nil
}

// RetryNarration re-runs the narration stage alone on a stored run, keeping
// extraction and rewrite results. The run mutates atomically: the stored
// narrations change only if the whole stage succeeds.
func (s *Service) RetryNarration(ctx context.Context, runID uuid.UUID) (*domain.ProcessingRun, error) {
	reporter := s.reporter(runID)
	reporter.Report(domain.StageNarrating, 60, "regenerating narration flow")

	run, err := s.store.Mutate(ctx, runID, func(run *domain.ProcessingRun) error {
		return s.engine.GenerateNarrations(ctx, run.Slides, run.Config)
	})
	if err != nil {
		reporter.Report(domain.StageFailed, 100, err.Error())
		return nil, err
	}

	reporter.Report(domain.StageComplete, 100, "")
	return run, nil
}

// RefineSlide applies an instruction to one slide's narration. index is
// 1-based. Only that slide's narration_paragraph changes; mutations on the
// same run are serialized by the session store.
func (s *Service) RefineSlide(ctx context.Context, runID uuid.UUID, index int, instruction string) (*domain.ProcessingRun, error) {
	return s.store.Mutate(ctx, runID, func(run *domain.ProcessingRun) error {
		if index < 1 || index > len(run.Slides) {
			return domain.InvalidFormatError(fmt.Sprintf("slide index %d out of range 1..%d", index, len(run.Slides)), nil)
		}
		slide := run.Slides[index-1]

		narration, err := s.engine.RefineSlide(ctx, slide, instruction, run.Config)
		if err != nil {
			return err
		}

		run.Slides[index-1].NarrationParagraph = narration
		return nil
	})
}

// GlobalRewrite regenerates every narration from one instruction. The whole
// run is held exclusively for the duration of the AI call, so a concurrent
// single-slide refine can never interleave with the batch result. On
// SlideCountMismatch nothing is written.
func (s *Service) GlobalRewrite(ctx context.Context, runID uuid.UUID, instruction string) (*domain.ProcessingRun, error) {
	return s.store.Mutate(ctx, runID, func(run *domain.ProcessingRun) error {
		narrations, err := s.engine.GlobalRewrite(ctx, run.Slides, instruction, run.Config)
		if err != nil {
			return err
		}

		for i := range run.Slides {
			run.Slides[i].NarrationParagraph = narrations[i]
		}
		return nil
	})
}

// GetRun returns a copy of a stored run.
func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (*domain.ProcessingRun, error) {
	return s.store.Get(ctx, runID)
}

// DeleteRun removes a run, its progress record, and its retained source
// deck.
func (s *Service) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return err
	}

	if s.blobs != nil && run.SourceRef != "" {
		if err := s.blobs.Delete(ctx, run.SourceRef); err != nil {
			s.logger.Warn().Str("run", runID.String()).Err(err).Msg("Could not delete retained source deck")
		}
	}
	if s.progress != nil {
		s.progress.Clear(runID.String())
	}
	return s.store.Delete(ctx, runID)
}

// Progress returns the latest progress snapshot for a run.
func (s *Service) Progress(runID uuid.UUID) (domain.ProgressSnapshot, bool) {
	if s.progress == nil {
		return domain.ProgressSnapshot{}, false
	}
	return s.progress.Get(runID.String())
}

// ProgressObserver registers a callback invoked on every progress update
// across all runs. Used by interactive callers that want live updates instead
// of polling.
func (s *Service) ProgressObserver(fn func(stage string, percent int, detail string)) {
	if s.progress == nil {
		return
	}
	s.progress.Observe(domain.ProgressFunc(fn))
}

func (s *Service) reporter(runID uuid.UUID) domain.ProgressReporter {
	if s.progress == nil {
		return domain.NopReporter
	}
	return s.progress.Reporter(runID.String())
}
