package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportError_IsKind(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("fetching orders: %w", &ReportError{Kind: ErrRemote, ReportID: "R1", Err: cause})

	assert.True(t, errors.Is(err, ErrRemote))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrPollTimeout))

	var re *ReportError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "R1", re.ReportID)
	assert.Equal(t, "RemoteError", re.KindName())
}

func TestReportError_Message(t *testing.T) {
	err := &ReportError{Kind: ErrReportCancelled, ReportID: "R9", LastStatus: StatusFatal}
	assert.Equal(t, "report cancelled (report R9, status FATAL)", err.Error())

	assert.Equal(t, "invalid range", (&ReportError{Kind: ErrInvalidRange}).Error())
}

func TestReportError_Retryable(t *testing.T) {
	retryable := []error{ErrSubmissionFailed, ErrRemote, ErrPollTimeout, ErrCancelled}
	final := []error{ErrInvalidRange, ErrReportCancelled, ErrMissingDocumentID, ErrEmptyDocument}

	for _, k := range retryable {
		assert.True(t, (&ReportError{Kind: k}).Retryable(), k.Error())
	}
	for _, k := range final {
		assert.False(t, (&ReportError{Kind: k}).Retryable(), k.Error())
	}
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "PollTimeout", KindName(ErrPollTimeout))
	assert.Equal(t, "MissingDocumentId", KindName(ErrMissingDocumentID))
	assert.Equal(t, "Unknown", KindName(errors.New("other")))
}
