package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/platform/messagebroker"
	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SubjectReportJobCompleted carries a domain.ReportCompletedEvent.
const SubjectReportJobCompleted = "reports.job.completed"

// VariantFetcher is satisfied by *ReportService.
type VariantFetcher interface {
	Variant(name string) (domain.ReportVariant, error)
	FetchVariant(ctx context.Context, sellerID, name string) (*domain.ReportPreview, error)
}

// JobRunnerConfig holds configuration specific to the JobRunner.
type JobRunnerConfig struct {
	Workers   int `mapstructure:"REPORT_WORKERS"`
	QueueSize int `mapstructure:"REPORT_QUEUE_SIZE"`
}

// JobRunner runs report fetches in the background on a fixed pool of workers.
type JobRunner struct {
	reports   VariantFetcher
	store     domain.JobStore
	publisher messagebroker.Publisher
	logger    *slog.Logger
	config    JobRunnerConfig
	queue     chan *domain.ReportJobRecord
	now       func() time.Time
}

// NewJobRunner creates a new JobRunner. Call Run to start the workers.
func NewJobRunner(reports VariantFetcher, store domain.JobStore, publisher messagebroker.Publisher, logger *slog.Logger, cfg JobRunnerConfig) *JobRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &JobRunner{
		reports:   reports,
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "report_job_runner"),
		config:    cfg,
		queue:     make(chan *domain.ReportJobRecord, cfg.QueueSize),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a queued job and hands it to the workers. It returns
// domain.ErrQueueFull when no queue slot is free; the record is then stored as failed.
func (r *JobRunner) Submit(ctx context.Context, sellerID, variantName string) (*domain.ReportJobRecord, error) {
	variant, err := r.reports.Variant(variantName)
	if err != nil {
		return nil, err
	}

	now := r.now()
	rec := &domain.ReportJobRecord{
		ID:         uuid.NewString(),
		SellerID:   sellerID,
		Variant:    variant.Name,
		ReportType: variant.ReportType,
		Status:     domain.JobQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing queued report job: %w", err)
	}

	queued := *rec
	select {
	case r.queue <- &queued:
		reportQueueDepthGauge.Inc()
	default:
		rec.Status = domain.JobFailed
		rec.ErrorKind = "QueueFull"
		rec.Error = domain.ErrQueueFull.Error()
		rec.Retryable = true
		rec.UpdatedAt = r.now()
		if err := r.store.Save(ctx, rec); err != nil {
			r.logger.ErrorContext(ctx, "Failed to mark rejected job", "job_id", rec.ID, "error", err)
		}
		return rec, domain.ErrQueueFull
	}

	r.logger.InfoContext(ctx, "Report job queued", "job_id", rec.ID, "variant", rec.Variant, "seller_id", sellerID)
	return rec, nil
}

// Get returns the job record or domain.ErrNotFound.
func (r *JobRunner) Get(ctx context.Context, id string) (*domain.ReportJobRecord, error) {
	return r.store.Get(ctx, id)
}

// Run starts the workers and blocks until ctx is cancelled. Jobs still queued at
// shutdown are left in the store as queued.
func (r *JobRunner) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < r.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			r.logger.InfoContext(gCtx, "Report worker started", "worker_id", workerID)
			for {
				select {
				case <-gCtx.Done():
					r.logger.InfoContext(gCtx, "Report worker stopping", "worker_id", workerID)
					return nil
				case rec := <-r.queue:
					reportQueueDepthGauge.Dec()
					r.process(gCtx, rec)
				}
			}
		})
	}
	return g.Wait()
}

func (r *JobRunner) process(ctx context.Context, rec *domain.ReportJobRecord) {
	logger := r.logger.With("job_id", rec.ID, "variant", rec.Variant, "seller_id", rec.SellerID)

	// Outcomes must be stored even when the worker is being shut down.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	rec.Status = domain.JobRunning
	rec.UpdatedAt = r.now()
	if err := r.store.Save(saveCtx, rec); err != nil {
		logger.ErrorContext(ctx, "Failed to mark job running", "error", err)
	}

	preview, err := r.reports.FetchVariant(ctx, rec.SellerID, rec.Variant)
	rec.UpdatedAt = r.now()
	if err != nil {
		rec.Status = domain.JobFailed
		rec.ErrorKind, rec.Retryable = classifyJobError(err)
		rec.Error = err.Error()
		logger.WarnContext(ctx, "Report job failed", "error_kind", rec.ErrorKind, "error", err)
	} else {
		rec.Status = domain.JobSucceeded
		rec.Result = preview
		logger.InfoContext(ctx, "Report job succeeded", "report_id", preview.ReportID, "total_length", preview.TotalLength)
	}
	reportJobsCounter.WithLabelValues(rec.Variant, string(rec.Status)).Inc()

	if err := r.store.Save(saveCtx, rec); err != nil {
		logger.ErrorContext(ctx, "Failed to store job outcome", "error", err)
	}
	r.publishCompleted(saveCtx, logger, rec)
}

func (r *JobRunner) publishCompleted(ctx context.Context, logger *slog.Logger, rec *domain.ReportJobRecord) {
	event := domain.ReportCompletedEvent{
		JobID:      rec.ID,
		SellerID:   rec.SellerID,
		Variant:    rec.Variant,
		ReportType: rec.ReportType,
		Status:     rec.Status,
		ErrorKind:  rec.ErrorKind,
		FinishedAt: rec.UpdatedAt,
	}
	if rec.Result != nil {
		event.ReportID = rec.Result.ReportID
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal job completed event", "error", err)
		return
	}
	if err := r.publisher.Publish(ctx, SubjectReportJobCompleted, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish job completed event", "subject", SubjectReportJobCompleted, "error", err)
	}
}

// classifyJobError returns the wire kind name and whether a retry may help.
func classifyJobError(err error) (string, bool) {
	var re *domain.ReportError
	switch {
	case errors.As(err, &re):
		return re.KindName(), re.Retryable()
	case errors.Is(err, core_domain.ErrCredentialNotFound):
		return "NotFound", false
	case errors.Is(err, domain.ErrUnknownVariant):
		return "UnknownVariant", false
	}
	return "Internal", true
}
