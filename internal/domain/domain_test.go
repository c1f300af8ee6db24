package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTooManySlides, KindOf(TooManySlidesError(120, 100)))
	assert.Equal(t, KindFileTooLarge, KindOf(FileTooLargeError(1<<30, 50<<20)))
	assert.Equal(t, KindEmptyInstruction, KindOf(EmptyInstructionError()))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("plain error")))
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", SlideCountMismatchError(3, 5))
	assert.Equal(t, KindSlideCountMismatch, KindOf(err))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ProviderError("model timeout", nil)))
	assert.False(t, Retryable(InvalidFormatError("bad deck", nil)))
	assert.False(t, Retryable(EmptyInstructionError()))
	assert.False(t, Retryable(fmt.Errorf("plain error")))
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ProviderError("model unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provider_error")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConfiguration_Validate_Defaults(t *testing.T) {
	require.NoError(t, DefaultConfiguration().Validate())
}

func TestConfiguration_Validate_Tone(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Tone = "Sarcastic"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Equal(t, KindInvalidFormat, KindOf(err))
}

func TestConfiguration_Validate_FixedLength(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Length = LengthPolicy{Mode: LengthFixed, MinWords: 80, MaxWords: 120}
	require.NoError(t, cfg.Validate())

	cfg.Length = LengthPolicy{Mode: LengthFixed, MinWords: 0, MaxWords: 120}
	require.Error(t, cfg.Validate())

	cfg.Length = LengthPolicy{Mode: LengthFixed, MinWords: 120, MaxWords: 80}
	require.Error(t, cfg.Validate())

	cfg.Length = LengthPolicy{Mode: "adaptive"}
	require.Error(t, cfg.Validate())
}

func TestParseTone(t *testing.T) {
	tone, err := ParseTone("professional")
	require.NoError(t, err)
	assert.Equal(t, ToneProfessional, tone)

	tone, err = ParseTone("Friendly")
	require.NoError(t, err)
	assert.Equal(t, ToneFriendly, tone)

	_, err = ParseTone("shouty")
	require.Error(t, err)
	assert.Equal(t, KindInvalidFormat, KindOf(err))
}

func TestParseAudienceLevel(t *testing.T) {
	level, err := ParseAudienceLevel("executive")
	require.NoError(t, err)
	assert.Equal(t, AudienceExecutive, level)

	_, err = ParseAudienceLevel("toddlers")
	require.Error(t, err)
}

func TestProcessingRun_Clone(t *testing.T) {
	run := &ProcessingRun{
		Config: DefaultConfiguration(),
		Slides: []Slide{
			{Index: 1, NarrationParagraph: "original"},
		},
	}

	clone := run.Clone()
	clone.Slides[0].NarrationParagraph = "mutated"

	assert.Equal(t, "original", run.Slides[0].NarrationParagraph)
}
