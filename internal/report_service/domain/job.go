package domain

import (
	"context"
	"time"
)

// JobStatus is the lifecycle of a background report job run by this service.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// ReportJobRecord is the persisted state of a background report job.
type ReportJobRecord struct {
	ID         string         `json:"id"`
	SellerID   string         `json:"seller_id"`
	Variant    string         `json:"variant"`
	ReportType string         `json:"report_type"`
	Status     JobStatus      `json:"status"`
	Result     *ReportPreview `json:"result,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	Retryable  bool           `json:"retryable,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Done reports whether the job has reached a final state.
func (r *ReportJobRecord) Done() bool {
	return r.Status == JobSucceeded || r.Status == JobFailed
}

// JobStore persists job records. Get returns ErrNotFound for unknown or expired ids.
type JobStore interface {
	Save(ctx context.Context, rec *ReportJobRecord) error
	Get(ctx context.Context, id string) (*ReportJobRecord, error)
}

// ReportCompletedEvent is published once a background job finishes.
type ReportCompletedEvent struct {
	JobID      string    `json:"job_id"`
	SellerID   string    `json:"seller_id"`
	Variant    string    `json:"variant"`
	ReportType string    `json:"report_type"`
	Status     JobStatus `json:"status"`
	ReportID   string    `json:"report_id,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
