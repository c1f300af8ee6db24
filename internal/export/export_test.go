package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckvoice/deckvoice/internal/domain"
)

// memBlob is an in-memory Blob for tests.
type memBlob struct {
	objects map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (m *memBlob) Put(ctx context.Context, key string, data []byte) error {
	m.objects[key] = data
	return nil
}

func (m *memBlob) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.SourceDeckUnavailableError(key)
	}
	return data, nil
}

func (m *memBlob) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func exportTestRun() *domain.ProcessingRun {
	return &domain.ProcessingRun{
		ID:     uuid.New(),
		Config: domain.DefaultConfiguration(),
		Slides: []domain.Slide{
			{Index: 1, RawText: "one", NarrationParagraph: "Welcome to the deck."},
			{Index: 2, RawText: "two", NarrationParagraph: "Here are the numbers.\nThey look good."},
			{Index: 3, RawText: "three", NarrationParagraph: "Thanks for listening."},
		},
		CreatedAt: time.Now(),
	}
}

func TestParseFormat(t *testing.T) {
	for _, valid := range []string{"text", "structured", "document", "source-with-notes"} {
		format, err := ParseFormat(valid)
		require.NoError(t, err)
		assert.Equal(t, Format(valid), format)
	}

	_, err := ParseFormat("pdf")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidFormat, domain.KindOf(err))
}

func TestExporter_Export_Text(t *testing.T) {
	run := exportTestRun()

	artifact, err := NewExporter(nil, nil).Export(context.Background(), run, FormatText)

	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", artifact.ContentType)
	assert.Equal(t, run.ID.String()+"_narration.txt", artifact.Filename)

	text := string(artifact.Data)
	assert.Contains(t, text, "[SLIDE 1]\nWelcome to the deck.")
	assert.Contains(t, text, "[SLIDE 3]\nThanks for listening.")

	// Sections split cleanly back into per-slide paragraphs.
	sections := strings.Split(strings.TrimSuffix(text, "\n"), "\n\n---\n\n")
	assert.Len(t, sections, 3)
}

func TestExporter_Export_Structured(t *testing.T) {
	run := exportTestRun()

	artifact, err := NewExporter(nil, nil).Export(context.Background(), run, FormatStructured)

	require.NoError(t, err)
	assert.Equal(t, "application/json", artifact.ContentType)

	var decoded struct {
		RunID       string         `json:"run_id"`
		TotalSlides int            `json:"total_slides"`
		Slides      []domain.Slide `json:"slides"`
	}
	require.NoError(t, json.Unmarshal(artifact.Data, &decoded))
	assert.Equal(t, run.ID.String(), decoded.RunID)
	assert.Equal(t, 3, decoded.TotalSlides)
	require.Len(t, decoded.Slides, 3)
	assert.Equal(t, "Here are the numbers.\nThey look good.", decoded.Slides[1].NarrationParagraph)
}

func TestDecodeStructured_RoundTrip(t *testing.T) {
	run := exportTestRun()

	artifact, err := NewExporter(nil, nil).Export(context.Background(), run, FormatStructured)
	require.NoError(t, err)

	decoded, err := DecodeStructured(artifact.Data)

	require.NoError(t, err)
	assert.Equal(t, run.ID, decoded.ID)
	require.Len(t, decoded.Slides, 3)
	assert.Equal(t, run.Slides[1].NarrationParagraph, decoded.Slides[1].NarrationParagraph)
}

func TestDecodeStructured_Invalid(t *testing.T) {
	_, err := DecodeStructured([]byte("not json"))
	assert.Equal(t, domain.KindInvalidFormat, domain.KindOf(err))

	_, err = DecodeStructured([]byte(`{"run_id": "", "slides": []}`))
	assert.Equal(t, domain.KindInvalidFormat, domain.KindOf(err))
}

func TestExporter_Export_Document(t *testing.T) {
	run := exportTestRun()

	artifact, err := NewExporter(nil, nil).Export(context.Background(), run, FormatDocument)

	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", artifact.ContentType)

	zr, err := zip.NewReader(bytes.NewReader(artifact.Data), int64(len(artifact.Data)))
	require.NoError(t, err)

	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		parts[f.Name] = string(data)
	}

	require.Contains(t, parts, "[Content_Types].xml")
	require.Contains(t, parts, "word/document.xml")

	document := parts["word/document.xml"]
	assert.Contains(t, document, "Slide 1")
	assert.Contains(t, document, "Welcome to the deck.")
	assert.Contains(t, document, "Here are the numbers.")
	assert.Contains(t, document, "They look good.")
}

func TestExporter_Export_SourceWithNotes_NoBlobStore(t *testing.T) {
	run := exportTestRun()
	run.SourceRef = "somewhere.pptx"

	_, err := NewExporter(nil, nil).Export(context.Background(), run, FormatSourceWithNotes)

	require.Error(t, err)
	assert.Equal(t, domain.KindSourceDeckUnavailable, domain.KindOf(err))
}

func TestExporter_Export_SourceWithNotes_MissingSourceRef(t *testing.T) {
	run := exportTestRun()
	run.SourceRef = ""

	_, err := NewExporter(newMemBlob(), nil).Export(context.Background(), run, FormatSourceWithNotes)

	require.Error(t, err)
	assert.Equal(t, domain.KindSourceDeckUnavailable, domain.KindOf(err))
}

func TestExporter_Export_SourceWithNotes_PurgedDeck(t *testing.T) {
	run := exportTestRun()
	run.SourceRef = "purged.pptx"

	_, err := NewExporter(newMemBlob(), nil).Export(context.Background(), run, FormatSourceWithNotes)

	require.Error(t, err)
	assert.Equal(t, domain.KindSourceDeckUnavailable, domain.KindOf(err))
}
