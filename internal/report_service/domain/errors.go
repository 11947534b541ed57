package domain

import (
	"errors"
	"fmt"
)

// Report error kinds. Use errors.Is(err, ErrPollTimeout) and friends to classify a
// *ReportError returned by the poller.
var (
	ErrInvalidRange      = errors.New("invalid range")
	ErrSubmissionFailed  = errors.New("submission failed")
	ErrRemote            = errors.New("remote error")
	ErrReportCancelled   = errors.New("report cancelled")
	ErrPollTimeout       = errors.New("poll timeout")
	ErrMissingDocumentID = errors.New("missing document id")
	ErrEmptyDocument     = errors.New("empty document")
	ErrCancelled         = errors.New("cancelled")
)

var (
	// ErrNotFound indicates that a report job record does not exist or has expired.
	ErrNotFound = errors.New("resource not found")
	// ErrUnknownVariant indicates a variant name that is not configured.
	ErrUnknownVariant = errors.New("unknown report variant")
	// ErrQueueFull indicates that the background queue cannot accept more jobs.
	ErrQueueFull = errors.New("report queue is full")
)

// ReportError is the structured failure of one FetchReport call.
type ReportError struct {
	Kind       error
	ReportID   string
	LastStatus ProcessingStatus
	Err        error
}

func (e *ReportError) Error() string {
	msg := e.Kind.Error()
	if e.ReportID != "" {
		msg += fmt.Sprintf(" (report %s", e.ReportID)
		if e.LastStatus != "" {
			msg += fmt.Sprintf(", status %s", e.LastStatus)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error kind, so errors.Is(err, ErrPollTimeout) works on a wrapped *ReportError.
func (e *ReportError) Is(target error) bool {
	return target == e.Kind
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the same request.
func (e *ReportError) Retryable() bool {
	switch e.Kind {
	case ErrSubmissionFailed, ErrRemote, ErrPollTimeout, ErrCancelled:
		return true
	}
	return false
}

// KindName is the stable, machine readable name of the kind.
func (e *ReportError) KindName() string {
	return KindName(e.Kind)
}

// KindName maps a kind sentinel to its wire name.
func KindName(kind error) string {
	switch kind {
	case ErrInvalidRange:
		return "InvalidRange"
	case ErrSubmissionFailed:
		return "SubmissionFailed"
	case ErrRemote:
		return "RemoteError"
	case ErrReportCancelled:
		return "ReportCancelled"
	case ErrPollTimeout:
		return "PollTimeout"
	case ErrMissingDocumentID:
		return "MissingDocumentId"
	case ErrEmptyDocument:
		return "EmptyDocument"
	case ErrCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// TemporaryError is implemented by client errors that know whether a retry can help.
type TemporaryError interface {
	Temporary() bool
}
