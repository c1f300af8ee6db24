package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckvoice/deckvoice/internal/deck"
	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/export"
	"github.com/deckvoice/deckvoice/internal/narrate"
	"github.com/deckvoice/deckvoice/internal/session"
)

// buildDeck assembles a minimal PPTX container with the given slide texts; an
// empty string yields a slide without text.
func buildDeck(t *testing.T, texts ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	contentTypes := `<?xml version="1.0"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`
	for i := range texts {
		contentTypes += fmt.Sprintf(`
<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	contentTypes += "\n</Types>"
	write("[Content_Types].xml", contentTypes)

	presentation := `<?xml version="1.0"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><p:sldIdLst>`
	presRels := `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`
	for i := range texts {
		presentation += fmt.Sprintf(`<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+1)
		presRels += fmt.Sprintf(`<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, i+1, i+1)
	}
	presentation += `</p:sldIdLst></p:presentation>`
	presRels += `</Relationships>`
	write("ppt/presentation.xml", presentation)
	write("ppt/_rels/presentation.xml.rels", presRels)

	for i, text := range texts {
		body := `<?xml version="1.0"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree>`
		if text != "" {
			body += fmt.Sprintf(`<p:sp><p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`, text)
		}
		body += `</p:spTree></p:cSld></p:sld>`
		write(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), body)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// scriptedGenerator answers rewrite and narration prompts with recognizable
// JSON. Safe for concurrent use.
type scriptedGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	var out []byte
	switch {
	case strings.Contains(prompt, "refined_narration"):
		out, _ = json.Marshal(polishResponses(prompt))
	case strings.Contains(prompt, "rewritten_narration"):
		out, _ = json.Marshal(map[string]string{"rewritten_narration": "refined narration"})
	case strings.Contains(prompt, "rewritten_content"):
		out, _ = json.Marshal(map[string]string{"rewritten_content": "rewritten slide content"})
	default:
		out, _ = json.Marshal(map[string]string{"narration": "spoken narration paragraph"})
	}
	return string(out), nil
}

func (g *scriptedGenerator) GenerateWithImage(ctx context.Context, prompt, imagePath string) (string, error) {
	return g.Generate(ctx, prompt)
}

var slideNumberPattern = regexp.MustCompile(`"slide_number":\s*(\d+)`)

// polishResponses echoes a refined narration for every slide number present
// in the polish prompt's input payload.
func polishResponses(prompt string) []map[string]any {
	seen := make(map[int]bool)
	var out []map[string]any
	for _, m := range slideNumberPattern.FindAllStringSubmatch(prompt, -1) {
		n, _ := strconv.Atoi(m[1])
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, map[string]any{
			"slide_number":      n,
			"refined_narration": "polished narration",
		})
	}
	return out
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// memBlob is an in-memory Blob for tests.
type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (m *memBlob) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memBlob) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.SourceDeckUnavailableError(key)
	}
	return data, nil
}

func (m *memBlob) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type testEnv struct {
	service   *Service
	exporter  *export.Exporter
	generator *scriptedGenerator
	blobs     *memBlob
	store     *session.MemoryStore
}

func newTestEnv(t *testing.T, maxSlides int, maxBytes int64) *testEnv {
	t.Helper()

	generator := &scriptedGenerator{}
	blobs := newMemBlob()
	store := session.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })

	extractor := deck.NewExtractor(maxSlides, maxBytes, nil)
	engine := narrate.NewEngine(generator, 2, 500, nil)
	progress := domain.NewProgressStore()
	service := NewService(extractor, nil, engine, store, blobs, progress, nil)

	return &testEnv{
		service:   service,
		exporter:  export.NewExporter(blobs, nil),
		generator: generator,
		blobs:     blobs,
		store:     store,
	}
}

func TestService_Process_FullPipeline(t *testing.T) {
	env := newTestEnv(t, 50, 1<<20)
	data := buildDeck(t, "Intro", "", "Summary")

	run, err := env.service.Process(context.Background(), data, "quarterly.pptx", domain.DefaultConfiguration())

	require.NoError(t, err)
	require.Len(t, run.Slides, 3)

	// Rewrite skips the empty slide: 2 rewrite calls, 3 narration calls,
	// then one whole-deck polish call.
	assert.Equal(t, 6, env.generator.callCount())

	assert.Equal(t, "rewritten slide content", run.Slides[0].RewrittenContent)
	assert.Equal(t, "[No slide text]", run.Slides[1].RewrittenContent)
	for _, slide := range run.Slides {
		assert.Equal(t, "polished narration", slide.NarrationParagraph)
		assert.Empty(t, slide.ImageRef)
	}

	// The run is stored and the source deck retained.
	stored, err := env.service.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, stored.ID)
	assert.NotEmpty(t, stored.SourceRef)

	snap, ok := env.service.Progress(run.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StageComplete, snap.Stage)
}

func TestService_Process_OversizedFileMakesNoProviderCalls(t *testing.T) {
	env := newTestEnv(t, 50, 64)
	data := buildDeck(t, "Intro")

	_, err := env.service.Process(context.Background(), data, "big.pptx", domain.DefaultConfiguration())

	require.Error(t, err)
	assert.Equal(t, domain.KindFileTooLarge, domain.KindOf(err))
	assert.Equal(t, 0, env.generator.callCount())
}

func TestService_Process_InvalidConfiguration(t *testing.T) {
	env := newTestEnv(t, 50, 1<<20)
	cfg := domain.DefaultConfiguration()
	cfg.Length = domain.LengthPolicy{Mode: domain.LengthFixed, MinWords: 100, MaxWords: 50}

	_, err := env.service.Process(context.Background(), buildDeck(t, "Intro"), "deck.pptx", cfg)

	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidFormat, domain.KindOf(err))
	assert.Equal(t, 0, env.generator.callCount())
}

func TestService_RefineSlide_UpdatesOnlyTargetSlide(t *testing.T) {
	env := newTestEnv(t, 50, 1<<20)
	run, err := env.service.Process(context.Background(), buildDeck(t, "One", "Two"), "deck.pptx", domain.DefaultConfiguration())
	require.NoError(t, err)

	refined, err := env.service.RefineSlide(context.Background(), run.ID, 2, "make it shorter")

	require.NoError(t, err)
	assert.Equal(t, "polished narration", refined.Slides[0].NarrationParagraph)
	assert.Equal(t, "refined narration", refined.Slides[1].NarrationParagraph)

	stored, err := env.service.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "refined narration", stored.Slides[1].NarrationParagraph)
}

func TestService_RefineSlide_IndexOutOfRange(t *testing.T) {
	env := newTestEnv(t, 50, 1<<20)
	run, err := env.service.Process(context.Background(), buildDeck(t, "One"), "deck.pptx", domain.DefaultConfiguration())
	require.NoError(t, err)

	_, err = env.service.RefineSlide(context.Background(), run.ID, 5, "tweak")

	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidFormat, domain.KindOf(err))
}

func TestService_Export_SourceWithNotes_EndToEnd(t *testing.T) {
	env := newTestEnv(t, 50, 1<<20)
	run, err := env.service.Process(context.Background(), buildDeck(t, "Intro", "Summary"), "deck.pptx", domain.DefaultConfiguration())
	require.NoError(t, err)

	artifact, err := env.exporter.Export(context.Background(), run, export.FormatSourceWithNotes)
	require.NoError(t, err)

	// The exported deck carries the narration as speaker notes.
	extractor := deck.NewExtractor(50, 1<<20, nil)
	slides, err := extractor.Extract(artifact.Data)
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, "Intro", slides[0].RawText)
	assert.Equal(t, "polished narration", slides[0].SpeakerNotes)
	assert.Equal(t, "polished narration", slides[1].SpeakerNotes)
}

func TestService_DeleteRun_PurgesSourceDeck(t *testing.T) {
	env := newTestEnv(t, 50, 1<<20)
	run, err := env.service.Process(context.Background(), buildDeck(t, "One"), "deck.pptx", domain.DefaultConfiguration())
	require.NoError(t, err)
	require.NotEmpty(t, run.SourceRef)

	require.NoError(t, env.service.DeleteRun(context.Background(), run.ID))

	_, err = env.service.GetRun(context.Background(), run.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindRunNotFound, domain.KindOf(err))

	_, err = env.blobs.Get(context.Background(), run.SourceRef)
	require.Error(t, err)

	_, ok := env.service.Progress(run.ID)
	assert.False(t, ok)
}
