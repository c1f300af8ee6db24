package narrate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/llm"
)

type narrationResponse struct {
	Narration string `json:"narration"`
}

type polishInput struct {
	SlideNumber      int    `json:"slide_number"`
	CurrentNarration string `json:"current_narration"`
}

type polishResponse struct {
	SlideNumber      int    `json:"slide_number"`
	RefinedNarration string `json:"refined_narration"`
}

// GenerateNarrations runs the second pass: one AI call per slide, strictly in
// index order, feeding each call the previous narrations as rolling context.
// This pass is sequential by contract; slide N's narration depends on the
// narrations before it. A slide whose call fails falls back to its rewritten
// content so every slide ends up with a paragraph. Context cancellation
// aborts the pass.
func (e *Engine) GenerateNarrations(ctx context.Context, slides []domain.Slide, cfg domain.Configuration) error {
	total := len(slides)
	narrations := make([]string, 0, total)

	for i := range slides {
		slide := &slides[i]
		content := slide.RewrittenContent
		if strings.TrimSpace(content) == "" {
			content = placeholderContent
		}

		notes := ""
		if cfg.UseContextualNotes {
			notes = e.truncateNotes(slide.SpeakerNotes)
		}

		narration, err := e.narrateSlide(ctx, slide.Index, total, content, notes, narrations, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn().
				Int("slide", slide.Index).
				Err(err).
				Msg("Narration call failed, falling back to rewritten content")
			narration = content
		}

		narrations = append(narrations, narration)
		slide.NarrationParagraph = narration
	}

	if cfg.EnableAIPolishing {
		if err := e.polishNarrations(ctx, slides, cfg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn().Err(err).Msg("Polishing pass failed, keeping unpolished narrations")
		}
	}

	return nil
}

func (e *Engine) narrateSlide(ctx context.Context, slideNumber, total int, content, notes string, prev []string, cfg domain.Configuration) (string, error) {
	prompt := buildNarrationPrompt(slideNumber, total, content, notes, prev, cfg)

	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	var resp narrationResponse
	if err := llm.DecodeObject(raw, &resp); err != nil {
		return "", domain.ProviderError("narration response is not valid JSON", err)
	}
	if strings.TrimSpace(resp.Narration) == "" {
		return "", domain.ProviderError("narration response has empty narration", nil)
	}

	narration := unescapeNarration(resp.Narration)
	if cfg.Length.Mode == domain.LengthFixed {
		narration = e.enforceFixedLength(ctx, narration, cfg)
	}
	return narration, nil
}

// enforceFixedLength checks a fixed-mode narration against the word bounds
// and makes one corrective call when it lands outside them. The original
// narration survives if the correction fails or comes back empty.
func (e *Engine) enforceFixedLength(ctx context.Context, narration string, cfg domain.Configuration) string {
	words := len(strings.Fields(narration))
	if words >= cfg.Length.MinWords && words <= cfg.Length.MaxWords {
		return narration
	}

	e.logger.Debug().
		Int("words", words).
		Int("min", cfg.Length.MinWords).
		Int("max", cfg.Length.MaxWords).
		Msg("Narration outside fixed length bounds, requesting correction")

	raw, err := e.generator.Generate(ctx, buildLengthCorrectionPrompt(narration, words, cfg.Length))
	if err != nil {
		e.logger.Warn().Err(err).Msg("Length correction call failed, keeping narration")
		return narration
	}

	var resp narrationResponse
	if err := llm.DecodeObject(raw, &resp); err != nil || strings.TrimSpace(resp.Narration) == "" {
		e.logger.Warn().Msg("Length correction response unusable, keeping narration")
		return narration
	}
	return unescapeNarration(resp.Narration)
}

// polishNarrations smooths all narrations in one whole-deck call. Results are
// applied per slide_number; a slide missing from the response keeps its
// current narration, so per-slide boundaries always survive polishing.
func (e *Engine) polishNarrations(ctx context.Context, slides []domain.Slide, cfg domain.Configuration) error {
	input := make([]polishInput, 0, len(slides))
	for i := range slides {
		input = append(input, polishInput{
			SlideNumber:      slides[i].Index,
			CurrentNarration: slides[i].NarrationParagraph,
		})
	}

	inputJSON, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return domain.InternalError("marshal polish input", err)
	}

	raw, err := e.generator.Generate(ctx, buildPolishPrompt(string(inputJSON), cfg))
	if err != nil {
		return err
	}

	var refined []polishResponse
	if err := llm.DecodeArray(raw, &refined); err != nil {
		return domain.ProviderError("polish response is not a valid JSON array", err)
	}

	byNumber := make(map[int]string, len(refined))
	for _, r := range refined {
		if strings.TrimSpace(r.RefinedNarration) != "" {
			byNumber[r.SlideNumber] = unescapeNarration(r.RefinedNarration)
		}
	}

	polished := 0
	for i := range slides {
		if n, ok := byNumber[slides[i].Index]; ok {
			slides[i].NarrationParagraph = n
			polished++
		} else {
			e.logger.Warn().Int("slide", slides[i].Index).Msg("No polished narration for slide, keeping original")
		}
	}

	e.logger.Info().Int("polished", polished).Int("slides", len(slides)).Msg("Polishing pass applied")
	return nil
}

func (e *Engine) truncateNotes(notes string) string {
	if e.notesContextRunes <= 0 {
		return notes
	}
	runes := []rune(notes)
	if len(runes) <= e.notesContextRunes {
		return notes
	}
	return string(runes[:e.notesContextRunes])
}
