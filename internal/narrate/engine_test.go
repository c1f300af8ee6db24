package narrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckvoice/deckvoice/internal/domain"
)

// fakeGenerator scripts responses by inspecting the prompt. Safe for
// concurrent use; records every prompt it sees.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.respond(prompt)
}

func (f *fakeGenerator) GenerateWithImage(ctx context.Context, prompt, imagePath string) (string, error) {
	return f.Generate(ctx, prompt)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func rewriteJSON(content string) (string, error) {
	out, err := json.Marshal(map[string]string{"rewritten_content": content})
	return string(out), err
}

func narrationJSON(narration string) (string, error) {
	out, err := json.Marshal(map[string]string{"narration": narration})
	return string(out), err
}

func newTestEngine(gen *fakeGenerator) *Engine {
	return NewEngine(gen, 3, 500, nil)
}

// testCfg returns the default configuration with polishing off, for tests
// that are not exercising the polish pass.
func testCfg() domain.Configuration {
	cfg := domain.DefaultConfiguration()
	cfg.EnableAIPolishing = false
	return cfg
}

func testSlides(texts ...string) []domain.Slide {
	slides := make([]domain.Slide, len(texts))
	for i, text := range texts {
		slides[i] = domain.Slide{Index: i + 1, RawText: text}
	}
	return slides
}

func TestEngine_RewriteSlides_AllSucceed(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return rewriteJSON("rewritten")
	}}
	slides := testSlides("Intro", "Body", "Summary")

	err := newTestEngine(gen).RewriteSlides(context.Background(), slides, domain.DefaultConfiguration())

	require.NoError(t, err)
	assert.Equal(t, 3, gen.callCount())
	for _, slide := range slides {
		assert.Equal(t, "rewritten", slide.RewrittenContent)
		assert.False(t, slide.RewriteFailed)
	}
}

func TestEngine_RewriteSlides_EmptySlideSkipsCall(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return rewriteJSON("rewritten")
	}}
	slides := testSlides("Intro", "", "Summary")

	err := newTestEngine(gen).RewriteSlides(context.Background(), slides, domain.DefaultConfiguration())

	require.NoError(t, err)
	assert.Equal(t, 2, gen.callCount())
	assert.Equal(t, "[No slide text]", slides[1].RewrittenContent)
	assert.False(t, slides[1].RewriteFailed)
}

func TestEngine_RewriteSlides_PartialFailure(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Slide two") {
			return "", fmt.Errorf("provider timeout")
		}
		return rewriteJSON("rewritten")
	}}
	slides := testSlides("Slide one", "Slide two", "Slide three")

	err := newTestEngine(gen).RewriteSlides(context.Background(), slides, domain.DefaultConfiguration())

	require.NoError(t, err)
	assert.False(t, slides[0].RewriteFailed)
	assert.True(t, slides[1].RewriteFailed)
	// The failed slide keeps its original text so narration has something
	// real to work from.
	assert.Equal(t, "Slide two", slides[1].RewrittenContent)
	assert.False(t, slides[2].RewriteFailed)
}

func TestEngine_RewriteSlides_CancelledContext(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return rewriteJSON("rewritten")
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestEngine(gen).RewriteSlides(ctx, testSlides("One", "Two"), domain.DefaultConfiguration())

	require.ErrorIs(t, err, context.Canceled)
}

func TestEngine_RewriteSlides_UnescapesLiterals(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return `{"rewritten_content": "first\\n\\nsecond"}`, nil
	}}
	slides := testSlides("Content")

	err := newTestEngine(gen).RewriteSlides(context.Background(), slides, domain.DefaultConfiguration())

	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond", slides[0].RewrittenContent)
}

func TestEngine_GenerateNarrations_SequentialWithContext(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return narrationJSON("narration")
	}}
	slides := testSlides("One", "Two", "Three")
	for i := range slides {
		slides[i].RewrittenContent = fmt.Sprintf("content %d", i+1)
	}

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, testCfg())

	require.NoError(t, err)
	require.Equal(t, 3, gen.callCount())

	// First call has no prior narrations; later calls carry them.
	assert.Contains(t, gen.prompts[0], "[No previous narrations available]")
	assert.NotContains(t, gen.prompts[1], "[No previous narrations available]")
	assert.Contains(t, gen.prompts[2], "content 3")
	for _, slide := range slides {
		assert.Equal(t, "narration", slide.NarrationParagraph)
	}
}

func TestEngine_GenerateNarrations_FallbackOnFailure(t *testing.T) {
	calls := 0
	gen := &fakeGenerator{}
	gen.respond = func(prompt string) (string, error) {
		calls++
		if calls == 2 {
			return "", fmt.Errorf("provider error")
		}
		return narrationJSON("narration")
	}
	slides := testSlides("One", "Two", "Three")
	for i := range slides {
		slides[i].RewrittenContent = fmt.Sprintf("content %d", i+1)
	}

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, testCfg())

	require.NoError(t, err)
	assert.Equal(t, "narration", slides[0].NarrationParagraph)
	assert.Equal(t, "content 2", slides[1].NarrationParagraph)
	assert.Equal(t, "narration", slides[2].NarrationParagraph)
}

func TestEngine_GenerateNarrations_NarratesFailedRewriteFromRawText(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return narrationJSON("narration")
	}}
	slides := testSlides("Quarterly revenue breakdown")
	slides[0].RewriteFailed = true
	slides[0].RewrittenContent = slides[0].RawText

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, testCfg())

	require.NoError(t, err)
	assert.Contains(t, gen.prompts[0], "Quarterly revenue breakdown")
	assert.NotContains(t, gen.prompts[0], "[No slide text]")
}

func fixedLengthCfg(min, max int) domain.Configuration {
	cfg := testCfg()
	cfg.Length = domain.LengthPolicy{Mode: domain.LengthFixed, MinWords: min, MaxWords: max}
	return cfg
}

func TestEngine_GenerateNarrations_FixedLengthWithinBounds(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return narrationJSON("a narration of exactly six words")
	}}
	slides := testSlides("One")
	slides[0].RewrittenContent = "content"

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, fixedLengthCfg(5, 10))

	require.NoError(t, err)
	assert.Equal(t, 1, gen.callCount())
	assert.Equal(t, "a narration of exactly six words", slides[0].NarrationParagraph)
}

func TestEngine_GenerateNarrations_FixedLengthCorrection(t *testing.T) {
	gen := &fakeGenerator{}
	gen.respond = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Rewrite it to fit that range") {
			return narrationJSON("one two three four five six")
		}
		return narrationJSON("too short")
	}
	slides := testSlides("One")
	slides[0].RewrittenContent = "content"

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, fixedLengthCfg(5, 10))

	require.NoError(t, err)
	assert.Equal(t, 2, gen.callCount())
	assert.Contains(t, gen.prompts[1], "too short")
	assert.Equal(t, "one two three four five six", slides[0].NarrationParagraph)
}

func TestEngine_GenerateNarrations_FixedLengthCorrectionFailureKeepsNarration(t *testing.T) {
	gen := &fakeGenerator{}
	gen.respond = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Rewrite it to fit that range") {
			return "", fmt.Errorf("provider error")
		}
		return narrationJSON("too short")
	}
	slides := testSlides("One")
	slides[0].RewrittenContent = "content"

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, fixedLengthCfg(5, 10))

	require.NoError(t, err)
	assert.Equal(t, 2, gen.callCount())
	assert.Equal(t, "too short", slides[0].NarrationParagraph)
}

func TestEngine_GenerateNarrations_NotesToggle(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return narrationJSON("narration")
	}}
	slides := testSlides("One")
	slides[0].RewrittenContent = "content"
	slides[0].SpeakerNotes = "secret presenter reminder"

	cfg := testCfg()
	cfg.UseContextualNotes = false

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, cfg)

	require.NoError(t, err)
	assert.NotContains(t, gen.prompts[0], "secret presenter reminder")

	gen2 := &fakeGenerator{respond: gen.respond}
	cfg.UseContextualNotes = true
	err = newTestEngine(gen2).GenerateNarrations(context.Background(), slides, cfg)

	require.NoError(t, err)
	assert.Contains(t, gen2.prompts[0], "secret presenter reminder")
}

func TestEngine_GenerateNarrations_PolishingApplied(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "current_narration") {
			// Polish pass: refine slides 1 and 3 only.
			return `[
				{"slide_number": 1, "refined_narration": "polished one"},
				{"slide_number": 3, "refined_narration": "polished three"}
			]`, nil
		}
		return narrationJSON("draft")
	}}
	slides := testSlides("One", "Two", "Three")
	for i := range slides {
		slides[i].RewrittenContent = "content"
	}

	cfg := domain.DefaultConfiguration()
	cfg.EnableAIPolishing = true

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, cfg)

	require.NoError(t, err)
	assert.Equal(t, "polished one", slides[0].NarrationParagraph)
	assert.Equal(t, "draft", slides[1].NarrationParagraph)
	assert.Equal(t, "polished three", slides[2].NarrationParagraph)
}

func TestEngine_GenerateNarrations_PolishingFailureKeepsDrafts(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "current_narration") {
			return "", fmt.Errorf("polish unavailable")
		}
		return narrationJSON("draft")
	}}
	slides := testSlides("One", "Two")
	for i := range slides {
		slides[i].RewrittenContent = "content"
	}

	cfg := domain.DefaultConfiguration()
	cfg.EnableAIPolishing = true

	err := newTestEngine(gen).GenerateNarrations(context.Background(), slides, cfg)

	require.NoError(t, err)
	assert.Equal(t, "draft", slides[0].NarrationParagraph)
	assert.Equal(t, "draft", slides[1].NarrationParagraph)
}

func TestEngine_RefineSlide_Success(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return `{"rewritten_narration": "sharper narration"}`, nil
	}}
	slide := domain.Slide{Index: 2, NarrationParagraph: "old narration", RewrittenContent: "content"}

	result, err := newTestEngine(gen).RefineSlide(context.Background(), slide, "make it punchier", domain.DefaultConfiguration())

	require.NoError(t, err)
	assert.Equal(t, "sharper narration", result)
	assert.Contains(t, gen.prompts[0], "make it punchier")
	assert.Contains(t, gen.prompts[0], "old narration")
}

func TestEngine_RefineSlide_EmptyInstruction(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		t.Fatal("no call expected")
		return "", nil
	}}

	_, err := newTestEngine(gen).RefineSlide(context.Background(), domain.Slide{Index: 1}, "   ", domain.DefaultConfiguration())

	require.Error(t, err)
	assert.Equal(t, domain.KindEmptyInstruction, domain.KindOf(err))
}

func TestEngine_GlobalRewrite_Success(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return `[
			{"slide_number": 1, "rewritten_narration": "new one"},
			{"slide_number": 2, "rewritten_narration": "new two"}
		]`, nil
	}}
	slides := testSlides("One", "Two")
	slides[0].NarrationParagraph = "old one"
	slides[1].NarrationParagraph = "old two"

	result, err := newTestEngine(gen).GlobalRewrite(context.Background(), slides, "shorter everywhere", domain.DefaultConfiguration())

	require.NoError(t, err)
	assert.Equal(t, []string{"new one", "new two"}, result)
	// Input slides stay untouched; the caller applies the sequence.
	assert.Equal(t, "old one", slides[0].NarrationParagraph)
	assert.Equal(t, "old two", slides[1].NarrationParagraph)
}

func TestEngine_GlobalRewrite_SlideCountMismatch(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return `[{"slide_number": 1, "rewritten_narration": "only one"}]`, nil
	}}
	slides := testSlides("One", "Two")
	slides[0].NarrationParagraph = "old one"
	slides[1].NarrationParagraph = "old two"

	_, err := newTestEngine(gen).GlobalRewrite(context.Background(), slides, "rewrite", domain.DefaultConfiguration())

	require.Error(t, err)
	assert.Equal(t, domain.KindSlideCountMismatch, domain.KindOf(err))
	assert.Equal(t, "old one", slides[0].NarrationParagraph)
}

func TestEngine_GlobalRewrite_EmptyNarrationRejected(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		return `[
			{"slide_number": 1, "rewritten_narration": "new one"},
			{"slide_number": 2, "rewritten_narration": "   "}
		]`, nil
	}}
	slides := testSlides("One", "Two")
	slides[0].NarrationParagraph = "old one"
	slides[1].NarrationParagraph = "old two"

	_, err := newTestEngine(gen).GlobalRewrite(context.Background(), slides, "rewrite", domain.DefaultConfiguration())

	require.Error(t, err)
	assert.Equal(t, domain.KindSlideCountMismatch, domain.KindOf(err))
	assert.Equal(t, "old two", slides[1].NarrationParagraph)
}

func TestEngine_GlobalRewrite_EmptyInstruction(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		t.Fatal("no call expected")
		return "", nil
	}}

	_, err := newTestEngine(gen).GlobalRewrite(context.Background(), testSlides("One"), "", domain.DefaultConfiguration())

	require.Error(t, err)
	assert.Equal(t, domain.KindEmptyInstruction, domain.KindOf(err))
}
