package domain

import (
	"context"
	"time"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
)

// ProcessingStatus is the server-reported lifecycle stage of a report job.
type ProcessingStatus string

const (
	StatusInQueue    ProcessingStatus = "IN_QUEUE"
	StatusInProgress ProcessingStatus = "IN_PROGRESS"
	StatusDone       ProcessingStatus = "DONE"
	StatusCancelled  ProcessingStatus = "CANCELLED"
	StatusFatal      ProcessingStatus = "FATAL"
)

// IsTerminal reports whether no further transitions can happen.
// Unknown values are not terminal.
func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case StatusDone, StatusCancelled, StatusFatal:
		return true
	}
	return false
}

// IsKnown reports whether s is one of the documented statuses.
func (s ProcessingStatus) IsKnown() bool {
	switch s {
	case StatusInQueue, StatusInProgress, StatusDone, StatusCancelled, StatusFatal:
		return true
	}
	return false
}

// ReportRequest describes one report to generate. It is not modified after submission.
type ReportRequest struct {
	ReportType     string
	DataStartTime  time.Time
	DataEndTime    time.Time
	MarketplaceIDs []string
}

// ReportJob is the remote job as last observed by a status poll.
type ReportJob struct {
	ReportID         string
	ProcessingStatus ProcessingStatus
	ReportDocumentID string // only set when ProcessingStatus is DONE
}

// ReportPreview is what the poller returns to callers.
type ReportPreview struct {
	ReportID    string `json:"report_id"`
	DocumentID  string `json:"document_id"`
	TotalLength int    `json:"total_length"`
	Preview     string `json:"preview"`
}

// PollOptions bounds one FetchReport call. Zero values mean "use the poller default".
type PollOptions struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// ReportJobClient is the remote report API.
type ReportJobClient interface {
	SubmitReport(ctx context.Context, req ReportRequest) (reportID string, err error)
	GetReportStatus(ctx context.Context, reportID string) (*ReportJob, error)
	GetReportDocument(ctx context.Context, documentID string) ([]byte, error)
}

// ReportClientFactory builds a client bound to one credential.
type ReportClientFactory interface {
	ForCredential(cred core_domain.SellerCredential) ReportJobClient
}

// ReportClientFactoryFunc adapts a function to ReportClientFactory.
type ReportClientFactoryFunc func(cred core_domain.SellerCredential) ReportJobClient

func (f ReportClientFactoryFunc) ForCredential(cred core_domain.SellerCredential) ReportJobClient {
	return f(cred)
}
