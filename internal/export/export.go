// Package export turns a processed run into downloadable artifacts: plain
// text, structured JSON, a Word document, or the original deck with
// narration injected as speaker notes.
package export

import (
	"context"
	"fmt"

	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/observability"
	"github.com/deckvoice/deckvoice/internal/storage"
)

// Format selects the export artifact shape.
type Format string

const (
	// FormatText is a concatenation of [SLIDE n] sections separated by a
	// horizontal rule, parseable back into per-slide paragraphs.
	FormatText Format = "text"
	// FormatStructured is the full run state as JSON.
	FormatStructured Format = "structured"
	// FormatDocument is a Word document, one section per slide.
	FormatDocument Format = "document"
	// FormatSourceWithNotes is the original deck with narration written into
	// each slide's speaker notes.
	FormatSourceWithNotes Format = "source-with-notes"
)

// ParseFormat validates a format string from a request.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatStructured, FormatDocument, FormatSourceWithNotes:
		return Format(s), nil
	default:
		return "", domain.InvalidFormatError(fmt.Sprintf("unrecognized export format %q", s), nil)
	}
}

// Artifact is a generated export ready to serve.
type Artifact struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Exporter generates artifacts from run state. The blob store supplies the
// original deck for notes-injected exports.
type Exporter struct {
	blobs  storage.Blob
	logger *observability.Logger
}

// NewExporter creates an exporter. blobs may be nil when the deployment
// never retains source decks; notes-injected exports then always fail with
// SourceDeckUnavailable.
func NewExporter(blobs storage.Blob, logger *observability.Logger) *Exporter {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Exporter{blobs: blobs, logger: logger.WithComponent("export")}
}

// Export builds the requested artifact from the run's current slide state.
func (e *Exporter) Export(ctx context.Context, run *domain.ProcessingRun, format Format) (*Artifact, error) {
	switch format {
	case FormatText:
		return &Artifact{
			Data:        textArtifact(run),
			ContentType: "text/plain; charset=utf-8",
			Filename:    fmt.Sprintf("%s_narration.txt", run.ID),
		}, nil

	case FormatStructured:
		data, err := structuredArtifact(run)
		if err != nil {
			return nil, err
		}
		return &Artifact{
			Data:        data,
			ContentType: "application/json",
			Filename:    fmt.Sprintf("%s_narration.json", run.ID),
		}, nil

	case FormatDocument:
		data, err := docxArtifact(run)
		if err != nil {
			return nil, err
		}
		return &Artifact{
			Data:        data,
			ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Filename:    fmt.Sprintf("%s_narration.docx", run.ID),
		}, nil

	case FormatSourceWithNotes:
		data, err := e.sourceWithNotesArtifact(ctx, run)
		if err != nil {
			return nil, err
		}
		return &Artifact{
			Data:        data,
			ContentType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
			Filename:    fmt.Sprintf("%s_with_narration.pptx", run.ID),
		}, nil

	default:
		return nil, domain.InvalidFormatError(fmt.Sprintf("unrecognized export format %q", format), nil)
	}
}
