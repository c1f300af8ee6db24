package export

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/deckvoice/deckvoice/internal/domain"
)

type structuredExport struct {
	RunID         string               `json:"run_id"`
	TotalSlides   int                  `json:"total_slides"`
	Configuration domain.Configuration `json:"configuration"`
	Slides        []domain.Slide       `json:"slides"`
}

// structuredArtifact renders the full run state as indented JSON. The shape
// matches the domain types, so a structured export can be decoded back into
// the same slide sequence.
func structuredArtifact(run *domain.ProcessingRun) ([]byte, error) {
	out := structuredExport{
		RunID:         run.ID.String(),
		TotalSlides:   len(run.Slides),
		Configuration: run.Config,
		Slides:        run.Slides,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, domain.InternalError("marshal structured export", err)
	}
	return data, nil
}

// DecodeStructured parses a structured export back into a run, so artifacts
// can be regenerated in other formats without reprocessing the deck.
func DecodeStructured(data []byte) (*domain.ProcessingRun, error) {
	var in structuredExport
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, domain.InvalidFormatError("not a structured narration export", err)
	}
	if len(in.Slides) == 0 {
		return nil, domain.InvalidFormatError("structured export has no slides", nil)
	}
	id, err := uuid.Parse(in.RunID)
	if err != nil {
		id = uuid.New()
	}
	return &domain.ProcessingRun{
		ID:     id,
		Config: in.Configuration,
		Slides: in.Slides,
	}, nil
}
