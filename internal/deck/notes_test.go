package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectNotes_ReplacesExistingNotes(t *testing.T) {
	data := (&deckBuilder{}).
		addSlideWithNotes([]string{"Agenda"}, []string{"old reminder"}).
		build(t)

	out, err := InjectNotes(data, map[int]string{1: "New narration for slide one."})
	require.NoError(t, err)

	slides, err := newTestExtractor(50, 1<<20).Extract(out)
	require.NoError(t, err)
	require.Len(t, slides, 1)
	assert.Equal(t, "Agenda", slides[0].RawText)
	assert.Equal(t, "New narration for slide one.", slides[0].SpeakerNotes)
}

func TestInjectNotes_MintsMissingNotesPart(t *testing.T) {
	data := (&deckBuilder{}).
		addSlide("No notes here").
		build(t)

	out, err := InjectNotes(data, map[int]string{1: "Fresh narration."})
	require.NoError(t, err)

	slides, err := newTestExtractor(50, 1<<20).Extract(out)
	require.NoError(t, err)
	require.Len(t, slides, 1)
	assert.Equal(t, "Fresh narration.", slides[0].SpeakerNotes)

	// The minted part must be registered in content types.
	c, err := openContainer(out)
	require.NoError(t, err)
	ct, err := c.parseContentTypes()
	require.NoError(t, err)

	found := false
	for _, override := range ct.Overrides {
		if override.PartName == "/ppt/notesSlides/notesSlide1.xml" {
			found = true
			assert.Equal(t, notesSlideContentType, override.ContentType)
		}
	}
	assert.True(t, found, "minted notesSlide missing from [Content_Types].xml")
}

func TestInjectNotes_LeavesOtherSlidesAlone(t *testing.T) {
	data := (&deckBuilder{}).
		addSlideWithNotes([]string{"One"}, []string{"keep me"}).
		addSlide("Two").
		build(t)

	out, err := InjectNotes(data, map[int]string{2: "Only slide two changes."})
	require.NoError(t, err)

	slides, err := newTestExtractor(50, 1<<20).Extract(out)
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, "keep me", slides[0].SpeakerNotes)
	assert.Equal(t, "Only slide two changes.", slides[1].SpeakerNotes)
}

func TestInjectNotes_MultilineAndEscaping(t *testing.T) {
	data := (&deckBuilder{}).
		addSlide("Metrics").
		build(t)

	narration := "Revenue <doubled> & costs fell.\nSecond paragraph."
	out, err := InjectNotes(data, map[int]string{1: narration})
	require.NoError(t, err)

	slides, err := newTestExtractor(50, 1<<20).Extract(out)
	require.NoError(t, err)
	assert.Equal(t, narration, slides[0].SpeakerNotes)
}

func TestRelativeTarget(t *testing.T) {
	assert.Equal(t, "../notesSlides/notesSlide1.xml", relativeTarget("ppt/slides/slide1.xml", "ppt/notesSlides/notesSlide1.xml"))
	assert.Equal(t, "../slides/slide1.xml", relativeTarget("ppt/notesSlides/notesSlide1.xml", "ppt/slides/slide1.xml"))
	assert.Equal(t, "../notesMasters/notesMaster1.xml", relativeTarget("ppt/notesSlides/notesSlide1.xml", "ppt/notesMasters/notesMaster1.xml"))
}
