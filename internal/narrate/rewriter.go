// Package narrate runs the AI passes that turn extracted slides into a
// narration script: a per-slide rewrite pass, a sequential cross-slide
// narration pass, and post-hoc refinement operations.
package narrate

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/llm"
	"github.com/deckvoice/deckvoice/internal/observability"
)

// Engine drives all AI passes for a processing run.
type Engine struct {
	generator         llm.Generator
	concurrency       int
	notesContextRunes int
	logger            *observability.Logger
}

// NewEngine creates an engine. concurrency bounds the rewrite-pass fan-out;
// notesContextRunes caps how much of a slide's speaker notes is fed into
// narration prompts.
func NewEngine(generator llm.Generator, concurrency, notesContextRunes int, logger *observability.Logger) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Engine{
		generator:         generator,
		concurrency:       concurrency,
		notesContextRunes: notesContextRunes,
		logger:            logger.WithComponent("narrate"),
	}
}

type rewriteResponse struct {
	RewrittenContent string `json:"rewritten_content"`
}

// RewriteSlides runs the first pass: one independent AI call per slide,
// producing RewrittenContent in place. Slides are mutually independent here,
// so calls fan out with bounded concurrency. A failed slide is flagged with
// RewriteFailed and keeps its original text as content; the pass still
// succeeds and only context cancellation aborts it.
func (e *Engine) RewriteSlides(ctx context.Context, slides []domain.Slide, cfg domain.Configuration) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range slides {
		slide := &slides[i]
		g.Go(func() error {
			if strings.TrimSpace(slide.RawText) == "" && slide.ImageRef == "" {
				slide.RewrittenContent = placeholderContent
				return nil
			}

			content, err := e.rewriteSlide(ctx, slide, cfg)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn().
					Int("slide", slide.Index).
					Err(err).
					Msg("Slide rewrite failed, falling back to original text")
				slide.RewriteFailed = true
				// Narration still needs something to work from.
				slide.RewrittenContent = strings.TrimSpace(slide.RawText)
				return nil
			}

			slide.RewrittenContent = content
			return nil
		})
	}

	return g.Wait()
}

func (e *Engine) rewriteSlide(ctx context.Context, slide *domain.Slide, cfg domain.Configuration) (string, error) {
	prompt := buildRewritePrompt(slide.RawText, slide.ImageRef != "", cfg)

	var raw string
	var err error
	if slide.ImageRef != "" {
		raw, err = e.generator.GenerateWithImage(ctx, prompt, slide.ImageRef)
	} else {
		raw, err = e.generator.Generate(ctx, prompt)
	}
	if err != nil {
		return "", err
	}

	var resp rewriteResponse
	if err := llm.DecodeObject(raw, &resp); err != nil {
		return "", domain.ProviderError("rewrite response is not valid JSON", err)
	}
	if strings.TrimSpace(resp.RewrittenContent) == "" {
		return "", domain.ProviderError("rewrite response has empty rewritten_content", nil)
	}

	return unescapeNarration(resp.RewrittenContent), nil
}
