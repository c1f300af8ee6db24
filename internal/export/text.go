package export

import (
	"fmt"
	"strings"

	"github.com/deckvoice/deckvoice/internal/domain"
)

// slideSeparator divides per-slide sections in the text export. A fixed
// delimiter keeps the artifact round-trippable by downstream tooling.
const slideSeparator = "\n\n---\n\n"

// textArtifact renders the narration script as plain text, one [SLIDE n]
// section per slide in index order.
func textArtifact(run *domain.ProcessingRun) []byte {
	sections := make([]string, 0, len(run.Slides))
	for _, slide := range run.Slides {
		sections = append(sections, fmt.Sprintf("[SLIDE %d]\n%s", slide.Index, slide.NarrationParagraph))
	}
	return []byte(strings.Join(sections, slideSeparator) + "\n")
}
