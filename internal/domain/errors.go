package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers. Validation and logic-guard kinds are
// never retried; KindProvider is transient and may succeed on retry.
type Kind string

const (
	KindInvalidFormat         Kind = "invalid_format"
	KindTooManySlides         Kind = "too_many_slides"
	KindFileTooLarge          Kind = "file_too_large"
	KindProvider              Kind = "provider_error"
	KindSlideCountMismatch    Kind = "slide_count_mismatch"
	KindEmptyInstruction      Kind = "empty_instruction"
	KindSourceDeckUnavailable Kind = "source_deck_unavailable"
	KindRunNotFound           Kind = "run_not_found"
	KindInternal              Kind = "internal"
)

// Error is a classified error carrying a machine-readable kind and a
// human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Constructors, one per taxonomy entry.

func InvalidFormatError(message string, err error) *Error {
	return NewError(KindInvalidFormat, message, err)
}

func TooManySlidesError(count, max int) *Error {
	return NewError(KindTooManySlides,
		fmt.Sprintf("presentation has %d slides, maximum is %d", count, max), nil)
}

func FileTooLargeError(size, max int64) *Error {
	return NewError(KindFileTooLarge,
		fmt.Sprintf("file size %d bytes exceeds maximum of %d bytes", size, max), nil)
}

func ProviderError(message string, err error) *Error {
	return NewError(KindProvider, message, err)
}

func SlideCountMismatchError(got, want int) *Error {
	return NewError(KindSlideCountMismatch,
		fmt.Sprintf("model returned %d narrations for %d slides", got, want), nil)
}

func EmptyInstructionError() *Error {
	return NewError(KindEmptyInstruction, "refinement instruction is blank", nil)
}

func SourceDeckUnavailableError(runID string) *Error {
	return NewError(KindSourceDeckUnavailable,
		fmt.Sprintf("original deck for run %s is no longer available, re-upload to export", runID), nil)
}

func RunNotFoundError(runID string) *Error {
	return NewError(KindRunNotFound, fmt.Sprintf("run %s not found", runID), nil)
}

func InternalError(message string, err error) *Error {
	return NewError(KindInternal, message, err)
}

// KindOf extracts the classification of err, or KindInternal for unclassified
// errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Retryable reports whether retrying the failed operation may help. Only
// transient provider failures qualify; validation and logic-guard errors are
// surfaced verbatim.
func Retryable(err error) bool {
	return KindOf(err) == KindProvider
}
