// Package domain holds the core data model shared across the DeckVoice pipeline.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Slide is one page of a processed deck. Index is 1-based and stable for the
// lifetime of a run. SpeakerNotes is passthrough from the source deck and is
// never written by any AI pass; only RewrittenContent and NarrationParagraph
// are generated fields.
type Slide struct {
	Index              int    `json:"index"`
	RawText            string `json:"raw_text"`
	SpeakerNotes       string `json:"speaker_notes"`
	ImageRef           string `json:"image_reference,omitempty"`
	RewrittenContent   string `json:"rewritten_content"`
	NarrationParagraph string `json:"narration_paragraph"`
	RewriteFailed      bool   `json:"rewrite_failed,omitempty"`
}

// ProcessingRun is one upload-and-process invocation. It owns its slide
// sequence exclusively; slides are never added or removed after creation, only
// their generated fields change.
type ProcessingRun struct {
	ID        uuid.UUID     `json:"run_id"`
	Config    Configuration `json:"configuration"`
	Slides    []Slide       `json:"slides"`
	SourceRef string        `json:"source_reference,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Clone returns a deep copy so stored runs can be handed out without sharing
// the slide slice.
func (r *ProcessingRun) Clone() *ProcessingRun {
	cp := *r
	cp.Slides = make([]Slide, len(r.Slides))
	copy(cp.Slides, r.Slides)
	return &cp
}

// Tone controls the wording register of generated text.
type Tone string

const (
	ToneProfessional   Tone = "Professional"
	ToneFriendly       Tone = "Friendly"
	ToneSales          Tone = "Sales"
	ToneTechnical      Tone = "Technical"
	ToneConversational Tone = "Conversational"
	ToneBold           Tone = "Bold"
	ToneAcademic       Tone = "Academic"
	TonePersuasive     Tone = "Persuasive"
)

// AudienceLevel controls vocabulary complexity.
type AudienceLevel string

const (
	AudienceGeneral   AudienceLevel = "General"
	AudienceExecutive AudienceLevel = "Executive"
	AudienceTechnical AudienceLevel = "Technical"
	AudienceJunior    AudienceLevel = "Junior"
	AudienceExpert    AudienceLevel = "Expert"
)

// LengthMode selects how per-slide narration length is decided.
type LengthMode string

const (
	LengthDynamic LengthMode = "dynamic"
	LengthFixed   LengthMode = "fixed"
)

// LengthPolicy bounds narration length. MinWords/MaxWords apply only in fixed
// mode.
type LengthPolicy struct {
	Mode     LengthMode `json:"mode"`
	MinWords int        `json:"min_words,omitempty"`
	MaxWords int        `json:"max_words,omitempty"`
}

// Configuration is the per-run snapshot of generation options. Refinement
// calls reuse it unless overridden.
type Configuration struct {
	Tone               Tone          `json:"tone"`
	AudienceLevel      AudienceLevel `json:"audience_level"`
	Length             LengthPolicy  `json:"length_policy"`
	UseContextualNotes bool          `json:"use_contextual_notes"`
	EnableAIPolishing  bool          `json:"enable_ai_polishing"`
	CustomInstructions string        `json:"custom_instructions,omitempty"`
}

var validTones = map[Tone]bool{
	ToneProfessional: true, ToneFriendly: true, ToneSales: true,
	ToneTechnical: true, ToneConversational: true, ToneBold: true,
	ToneAcademic: true, TonePersuasive: true,
}

var validAudiences = map[AudienceLevel]bool{
	AudienceGeneral: true, AudienceExecutive: true, AudienceTechnical: true,
	AudienceJunior: true, AudienceExpert: true,
}

// DefaultConfiguration returns the options used when a field is left unset.
func DefaultConfiguration() Configuration {
	return Configuration{
		Tone:               ToneProfessional,
		AudienceLevel:      AudienceGeneral,
		Length:             LengthPolicy{Mode: LengthDynamic},
		UseContextualNotes: true,
		EnableAIPolishing:  true,
	}
}

// Validate rejects unrecognized option values rather than passing them through
// to prompts silently.
func (c Configuration) Validate() error {
	if !validTones[c.Tone] {
		return InvalidFormatError(fmt.Sprintf("unrecognized tone %q", c.Tone), nil)
	}
	if !validAudiences[c.AudienceLevel] {
		return InvalidFormatError(fmt.Sprintf("unrecognized audience level %q", c.AudienceLevel), nil)
	}
	switch c.Length.Mode {
	case LengthDynamic:
	case LengthFixed:
		if c.Length.MinWords <= 0 || c.Length.MaxWords < c.Length.MinWords {
			return InvalidFormatError(
				fmt.Sprintf("fixed length policy requires 0 < min_words <= max_words, got [%d, %d]",
					c.Length.MinWords, c.Length.MaxWords), nil)
		}
	default:
		return InvalidFormatError(fmt.Sprintf("unrecognized length mode %q", c.Length.Mode), nil)
	}
	return nil
}

// ParseTone maps a request string onto a recognized Tone.
func ParseTone(s string) (Tone, error) {
	if strings.TrimSpace(s) == "" {
		return ToneProfessional, nil
	}
	t := Tone(normalizeOption(s))
	if !validTones[t] {
		return "", InvalidFormatError(fmt.Sprintf("unrecognized tone %q", s), nil)
	}
	return t, nil
}

// ParseAudienceLevel maps a request string onto a recognized AudienceLevel.
func ParseAudienceLevel(s string) (AudienceLevel, error) {
	if strings.TrimSpace(s) == "" {
		return AudienceGeneral, nil
	}
	a := AudienceLevel(normalizeOption(s))
	if !validAudiences[a] {
		return "", InvalidFormatError(fmt.Sprintf("unrecognized audience level %q", s), nil)
	}
	return a, nil
}

// normalizeOption canonicalizes a single-word option value to Titlecase.
func normalizeOption(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
