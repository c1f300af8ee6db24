package export

import (
	"context"

	"github.com/deckvoice/deckvoice/internal/deck"
	"github.com/deckvoice/deckvoice/internal/domain"
)

// sourceWithNotesArtifact fetches the original uploaded deck and writes each
// slide's narration into its speaker notes. Fails with SourceDeckUnavailable
// when the deck was never retained or has been purged.
func (e *Exporter) sourceWithNotesArtifact(ctx context.Context, run *domain.ProcessingRun) ([]byte, error) {
	if e.blobs == nil || run.SourceRef == "" {
		return nil, domain.SourceDeckUnavailableError(run.ID.String())
	}

	original, err := e.blobs.Get(ctx, run.SourceRef)
	if err != nil {
		return nil, err
	}

	narrations := make(map[int]string, len(run.Slides))
	for _, slide := range run.Slides {
		narrations[slide.Index] = slide.NarrationParagraph
	}

	injected, err := deck.InjectNotes(original, narrations)
	if err != nil {
		return nil, domain.InvalidFormatError("source deck could not be rewritten", err)
	}

	e.logger.Info().Str("run", run.ID.String()).Int("slides", len(run.Slides)).Msg("Injected narration into source deck notes")
	return injected, nil
}
