package faq

import (
	"errors"
	"fmt"
)

// ErrorType classifies domain errors.
type ErrorType string

const (
	ErrorTypeInput    ErrorType = "input"
	ErrorTypeScoring  ErrorType = "scoring"
	ErrorTypeCorpus   ErrorType = "corpus"
	ErrorTypeFeedback ErrorType = "feedback"
)

// Sentinel errors checked with errors.Is.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrCorpusUnavailable = errors.New("faq corpus unavailable")
	ErrFeedbackWrite     = errors.New("feedback write failed")
	ErrScoring           = errors.New("similarity scoring failed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the error type.
func (e *DomainError) Is(target error) bool {
	switch e.Type {
	case ErrorTypeInput:
		return target == ErrInvalidInput
	case ErrorTypeCorpus:
		return target == ErrCorpusUnavailable
	case ErrorTypeFeedback:
		return target == ErrFeedbackWrite
	case ErrorTypeScoring:
		return target == ErrScoring
	}
	return false
}

// NewError creates a new domain error.
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// CorpusError reports that the FAQ corpus could not be loaded.
func CorpusError(message string, err error) *DomainError {
	return NewError(ErrorTypeCorpus, message, err)
}

// FeedbackError reports a failed counter write.
func FeedbackError(message string, err error) *DomainError {
	return NewError(ErrorTypeFeedback, message, err)
}

// ScoringError reports a failed similarity computation for one candidate.
func ScoringError(message string, err error) *DomainError {
	return NewError(ErrorTypeScoring, message, err)
}

// InputError reports malformed caller input.
func InputError(message string, err error) *DomainError {
	return NewError(ErrorTypeInput, message, err)
}
