// Package deck parses uploaded presentation files into ordered slide records.
package deck

import (
	"strconv"
	"strings"

	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/observability"
)

// Extractor turns a presentation file into Slide records with raw text and
// speaker notes populated. AI fields stay empty; preview images are attached
// by the caller after rendering.
type Extractor struct {
	maxSlides    int
	maxFileBytes int64
	logger       *observability.Logger
}

// NewExtractor creates an extractor with the given input limits.
func NewExtractor(maxSlides int, maxFileBytes int64, logger *observability.Logger) *Extractor {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Extractor{
		maxSlides:    maxSlides,
		maxFileBytes: maxFileBytes,
		logger:       logger.WithComponent("deck"),
	}
}

// Extract parses deck bytes into an ordered slide sequence. The whole run is
// rejected, never truncated, when the deck exceeds the slide or size limits.
func (e *Extractor) Extract(data []byte) ([]domain.Slide, error) {
	if int64(len(data)) > e.maxFileBytes {
		return nil, domain.FileTooLargeError(int64(len(data)), e.maxFileBytes)
	}

	c, err := openContainer(data)
	if err != nil {
		return nil, domain.InvalidFormatError("file is not a well-formed presentation", err)
	}

	parts, err := c.slideParts()
	if err != nil {
		return nil, domain.InvalidFormatError("file is not a well-formed presentation", err)
	}

	if len(parts) > e.maxSlides {
		return nil, domain.TooManySlidesError(len(parts), e.maxSlides)
	}

	slides := make([]domain.Slide, 0, len(parts))
	for i, part := range parts {
		index := i + 1

		slideData, err := c.read(part)
		if err != nil {
			return nil, domain.InvalidFormatError("file is not a well-formed presentation", err)
		}
		rawText, err := partText(slideData)
		if err != nil {
			return nil, domain.InvalidFormatError("file is not a well-formed presentation", err)
		}

		notes := ""
		if notesName := c.notesPart(part); notesName != "" {
			notesData, err := c.read(notesName)
			if err == nil {
				if text, err := partText(notesData); err == nil {
					notes = trimSlideNumberLine(text, index)
				}
			}
		}

		slides = append(slides, domain.Slide{
			Index:        index,
			RawText:      rawText,
			SpeakerNotes: notes,
		})
	}

	e.logger.Info().
		Int("slides", len(slides)).
		Msg("Extracted presentation")

	return slides, nil
}

// SlideCount reports the number of slides without building records, so
// callers can validate cheaply.
func (e *Extractor) SlideCount(data []byte) (int, error) {
	c, err := openContainer(data)
	if err != nil {
		return 0, domain.InvalidFormatError("file is not a well-formed presentation", err)
	}
	parts, err := c.slideParts()
	if err != nil {
		return 0, domain.InvalidFormatError("file is not a well-formed presentation", err)
	}
	return len(parts), nil
}

// trimSlideNumberLine drops a redundant first line holding only the slide
// number, which the notes placeholder duplicates. Only the first line is
// considered; trailing lines stay exactly as authored, even when the last
// line happens to match the slide number.
func trimSlideNumberLine(notes string, index int) string {
	lines := strings.Split(notes, "\n")
	number := strconv.Itoa(index)

	if len(lines) > 0 && strings.TrimSpace(lines[0]) == number {
		lines = lines[1:]
	}

	return strings.Join(lines, "\n")
}
