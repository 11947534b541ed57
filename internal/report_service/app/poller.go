package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
)

// PollerConfig holds defaults for FetchReport calls.
type PollerConfig struct {
	PollInterval     time.Duration `mapstructure:"REPORT_POLL_INTERVAL"`
	MaxWait          time.Duration `mapstructure:"REPORT_MAX_WAIT"`
	StatusRetries    int           `mapstructure:"REPORT_STATUS_RETRIES"`
	StatusRetryDelay time.Duration `mapstructure:"REPORT_STATUS_RETRY_DELAY"`
}

// Poller drives one report through submit, status polling and document retrieval.
// It keeps no state between calls and is safe for concurrent use.
type Poller struct {
	clients domain.ReportClientFactory
	logger  *slog.Logger
	config  PollerConfig
}

// NewPoller creates a new Poller instance.
func NewPoller(clients domain.ReportClientFactory, logger *slog.Logger, cfg PollerConfig) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Minute
	}
	if cfg.StatusRetries < 0 {
		cfg.StatusRetries = 0
	}
	if cfg.StatusRetryDelay <= 0 {
		cfg.StatusRetryDelay = time.Second
	}
	return &Poller{
		clients: clients,
		logger:  logger.With("component", "report_poller"),
		config:  cfg,
	}
}

// FetchReport submits req, waits for the report to finish and returns a preview of its
// document. Every failure is a *domain.ReportError.
func (p *Poller) FetchReport(ctx context.Context, cred core_domain.SellerCredential, req domain.ReportRequest, opts domain.PollOptions) (preview *domain.ReportPreview, err error) {
	started := time.Now()
	defer func() {
		outcome := "success"
		var re *domain.ReportError
		if errors.As(err, &re) {
			outcome = re.KindName()
		}
		reportFetchesCounter.WithLabelValues(req.ReportType, outcome).Inc()
		if err == nil {
			reportFetchDurationHist.WithLabelValues(req.ReportType).Observe(time.Since(started).Seconds())
		}
	}()

	if !req.DataStartTime.Before(req.DataEndTime) {
		return nil, &domain.ReportError{
			Kind: domain.ErrInvalidRange,
			Err:  fmt.Errorf("start %s is not before end %s", req.DataStartTime.Format(time.RFC3339), req.DataEndTime.Format(time.RFC3339)),
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &domain.ReportError{Kind: domain.ErrCancelled, Err: ctxErr}
	}

	interval, maxWait := p.config.PollInterval, p.config.MaxWait
	if opts.PollInterval > 0 {
		interval = opts.PollInterval
	}
	if opts.MaxWait > 0 {
		maxWait = opts.MaxWait
	}

	client := p.clients.ForCredential(cred)
	logger := p.logger.With("report_type", req.ReportType, "partner_id", cred.PartnerID)

	reportID, err := client.SubmitReport(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &domain.ReportError{Kind: domain.ErrCancelled, Err: ctxErr}
		}
		logger.ErrorContext(ctx, "Report submission failed", "error", err)
		return nil, &domain.ReportError{Kind: domain.ErrRemote, Err: fmt.Errorf("create report: %w", err)}
	}
	if reportID == "" {
		logger.ErrorContext(ctx, "Report submission returned no report id")
		return nil, &domain.ReportError{Kind: domain.ErrSubmissionFailed}
	}
	logger = logger.With("report_id", reportID)
	logger.InfoContext(ctx, "Report submitted", "poll_interval", interval, "max_wait", maxWait)

	job, err := p.awaitTerminal(ctx, logger, client, reportID, interval, maxWait)
	if err != nil {
		return nil, err
	}

	raw, err := client.GetReportDocument(ctx, job.ReportDocumentID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &domain.ReportError{Kind: domain.ErrCancelled, ReportID: reportID, LastStatus: job.ProcessingStatus, Err: ctxErr}
		}
		logger.ErrorContext(ctx, "Report document retrieval failed", "document_id", job.ReportDocumentID, "error", err)
		return nil, &domain.ReportError{Kind: domain.ErrRemote, ReportID: reportID, LastStatus: job.ProcessingStatus, Err: fmt.Errorf("get report document: %w", err)}
	}
	if len(raw) == 0 {
		return nil, &domain.ReportError{Kind: domain.ErrEmptyDocument, ReportID: reportID, LastStatus: job.ProcessingStatus}
	}

	preview = domain.NewReportPreview(reportID, job.ReportDocumentID, raw)
	logger.InfoContext(ctx, "Report fetched", "document_id", job.ReportDocumentID, "total_length", preview.TotalLength, "elapsed", time.Since(started))
	return preview, nil
}

// awaitTerminal polls until DONE, CANCELLED or FATAL. It returns the DONE job; any other
// outcome is a *domain.ReportError.
func (p *Poller) awaitTerminal(ctx context.Context, logger *slog.Logger, client domain.ReportJobClient, reportID string, interval, maxWait time.Duration) (*domain.ReportJob, error) {
	pollCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	var last domain.ProcessingStatus
	for polls := 1; ; polls++ {
		if pollCtx.Err() != nil {
			return nil, p.stopped(ctx, reportID, last)
		}

		job, err := p.getStatus(pollCtx, logger, client, reportID)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, p.stopped(ctx, reportID, last)
			}
			logger.ErrorContext(ctx, "Report status poll failed", "error", err, "polls", polls)
			return nil, &domain.ReportError{Kind: domain.ErrRemote, ReportID: reportID, LastStatus: last, Err: fmt.Errorf("get report: %w", err)}
		}
		last = job.ProcessingStatus
		reportStatusPollsCounter.WithLabelValues(string(last)).Inc()

		switch last {
		case domain.StatusDone:
			if job.ReportDocumentID == "" {
				return nil, &domain.ReportError{Kind: domain.ErrMissingDocumentID, ReportID: reportID, LastStatus: last}
			}
			logger.DebugContext(ctx, "Report done", "polls", polls, "document_id", job.ReportDocumentID)
			return job, nil
		case domain.StatusCancelled, domain.StatusFatal:
			logger.WarnContext(ctx, "Report ended without a document", "status", last, "polls", polls)
			return nil, &domain.ReportError{Kind: domain.ErrReportCancelled, ReportID: reportID, LastStatus: last}
		case domain.StatusInQueue, domain.StatusInProgress:
			logger.DebugContext(ctx, "Report pending", "status", last, "polls", polls)
		default:
			logger.WarnContext(ctx, "Unknown processing status, treating as pending", "status", last, "polls", polls)
		}

		if polls > 1 {
			timer.Reset(interval)
		}
		select {
		case <-pollCtx.Done():
			return nil, p.stopped(ctx, reportID, last)
		case <-timer.C:
		}
	}
}

// stopped classifies an interrupted wait: caller cancellation or our own deadline.
func (p *Poller) stopped(ctx context.Context, reportID string, last domain.ProcessingStatus) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &domain.ReportError{Kind: domain.ErrCancelled, ReportID: reportID, LastStatus: last, Err: ctxErr}
	}
	p.logger.WarnContext(ctx, "Report did not finish in time", "report_id", reportID, "status", last)
	return &domain.ReportError{Kind: domain.ErrPollTimeout, ReportID: reportID, LastStatus: last}
}

// getStatus retries transient status failures with a constant delay.
func (p *Poller) getStatus(ctx context.Context, logger *slog.Logger, client domain.ReportJobClient, reportID string) (*domain.ReportJob, error) {
	var job *domain.ReportJob
	op := func() error {
		j, err := client.GetReportStatus(ctx, reportID)
		if err != nil {
			var te domain.TemporaryError
			if errors.As(err, &te) && !te.Temporary() {
				return backoff.Permanent(err)
			}
			return err
		}
		if j == nil {
			return backoff.Permanent(errors.New("empty status response"))
		}
		job = j
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.config.StatusRetryDelay), uint64(p.config.StatusRetries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "Retrying report status poll", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return job, nil
}
