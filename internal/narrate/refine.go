package narrate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/llm"
)

type refineResponse struct {
	RewrittenNarration string `json:"rewritten_narration"`
}

type globalRewriteResponse struct {
	SlideNumber        int    `json:"slide_number"`
	RewrittenNarration string `json:"rewritten_narration"`
}

// RefineSlide applies a free-text instruction to one slide's narration and
// returns the replacement paragraph. The slide itself is not mutated; the
// caller decides when to write the result back.
func (e *Engine) RefineSlide(ctx context.Context, slide domain.Slide, instruction string, cfg domain.Configuration) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", domain.EmptyInstructionError()
	}

	notes := ""
	if cfg.UseContextualNotes {
		notes = e.truncateNotes(slide.SpeakerNotes)
	}

	prompt := buildRefinePrompt(slide.NarrationParagraph, slide.RewrittenContent, notes, instruction, cfg)
	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	var resp refineResponse
	if err := llm.DecodeObject(raw, &resp); err != nil {
		return "", domain.ProviderError("refine response is not valid JSON", err)
	}
	if strings.TrimSpace(resp.RewrittenNarration) == "" {
		return "", domain.ProviderError("refine response has empty rewritten_narration", nil)
	}

	e.logger.Info().Int("slide", slide.Index).Msg("Refined single slide narration")
	return unescapeNarration(resp.RewrittenNarration), nil
}

// GlobalRewrite regenerates every narration in one whole-deck call driven by
// a user instruction. The result is all-or-nothing: unless the response
// covers every input slide exactly, a SlideCountMismatch error is returned
// and no narration is replaced. Slides are not mutated; the ordered
// replacement sequence is returned for the caller to apply.
func (e *Engine) GlobalRewrite(ctx context.Context, slides []domain.Slide, instruction string, cfg domain.Configuration) ([]string, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, domain.EmptyInstructionError()
	}

	input := make([]polishInput, 0, len(slides))
	for i := range slides {
		input = append(input, polishInput{
			SlideNumber:      slides[i].Index,
			CurrentNarration: slides[i].NarrationParagraph,
		})
	}

	inputJSON, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, domain.InternalError("marshal global rewrite input", err)
	}

	raw, err := e.generator.Generate(ctx, buildGlobalRewritePrompt(string(inputJSON), instruction, cfg))
	if err != nil {
		return nil, err
	}

	var rewritten []globalRewriteResponse
	if err := llm.DecodeArray(raw, &rewritten); err != nil {
		return nil, domain.ProviderError("global rewrite response is not a valid JSON array", err)
	}

	// An empty narration counts as missing so the mismatch check rejects it.
	byNumber := make(map[int]string, len(rewritten))
	for _, r := range rewritten {
		if strings.TrimSpace(r.RewrittenNarration) == "" {
			continue
		}
		byNumber[r.SlideNumber] = r.RewrittenNarration
	}

	if len(byNumber) != len(slides) {
		return nil, domain.SlideCountMismatchError(len(byNumber), len(slides))
	}

	result := make([]string, len(slides))
	for i := range slides {
		narration, ok := byNumber[slides[i].Index]
		if !ok {
			return nil, domain.SlideCountMismatchError(len(byNumber), len(slides))
		}
		result[i] = unescapeNarration(narration)
	}

	e.logger.Info().Int("slides", len(slides)).Msg("Global rewrite produced full replacement sequence")
	return result, nil
}
