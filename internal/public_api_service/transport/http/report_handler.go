package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
)

// ReportQuerier is implemented by *app.ReportService.
type ReportQuerier interface {
	Variants() []domain.ReportVariant
	FetchVariant(ctx context.Context, sellerID, name string) (*domain.ReportPreview, error)
}

// ReportJobQueue is implemented by *app.JobRunner.
type ReportJobQueue interface {
	Submit(ctx context.Context, sellerID, variantName string) (*domain.ReportJobRecord, error)
	Get(ctx context.Context, id string) (*domain.ReportJobRecord, error)
}

// ReportHandler exposes the report variants over HTTP, both synchronously and as background jobs.
type ReportHandler struct {
	reports  ReportQuerier
	jobs     ReportJobQueue
	logger   *slog.Logger
	validate *validator.Validate
}

func NewReportHandler(reports ReportQuerier, jobs ReportJobQueue, logger *slog.Logger, validate *validator.Validate) *ReportHandler {
	return &ReportHandler{
		reports:  reports,
		jobs:     jobs,
		logger:   logger.With("component", "report_handler"),
		validate: validate,
	}
}

func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports", h.ListVariants)
	r.Get("/reports/jobs/{jobID}", h.GetJob)
	r.Get("/reports/{variant}", h.FetchReport)
	r.Post("/reports/{variant}/jobs", h.SubmitJob)
}

func (h *ReportHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	variants := h.reports.Variants()
	resp := ListVariantsResponse{Variants: make([]ReportVariantDTO, 0, len(variants))}
	for _, v := range variants {
		resp.Variants = append(resp.Variants, ReportVariantDTO{
			Name:        v.Name,
			ReportType:  v.ReportType,
			Window:      string(v.Window.Kind),
			Days:        v.Window.Days,
			Description: v.Description,
		})
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// FetchReport blocks until the report is available or fails.
func (h *ReportHandler) FetchReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	variant := chi.URLParam(r, "variant")
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "variant", variant)

	q := SellerQuery{SellerID: r.URL.Query().Get("seller_id")}
	if err := h.validate.StructCtx(ctx, q); err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing or invalid seller_id param")
		return
	}

	preview, err := h.reports.FetchVariant(ctx, q.SellerID, variant)
	if err != nil {
		status := reportErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "Report fetch failed", "seller_id", q.SellerID, "error", err)
		} else {
			logger.WarnContext(ctx, "Report fetch rejected", "seller_id", q.SellerID, "error", err)
		}
		respondWithReportError(w, err)
		return
	}

	logger.InfoContext(ctx, "Report fetched", "seller_id", q.SellerID, "report_id", preview.ReportID, "total_length", preview.TotalLength)
	respondWithJSON(w, http.StatusOK, ReportPreviewResponse{SellerID: q.SellerID, Variant: variant, ReportPreview: preview})
}

func (h *ReportHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	variant := chi.URLParam(r, "variant")
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "variant", variant)

	q := SellerQuery{SellerID: r.URL.Query().Get("seller_id")}
	if err := h.validate.StructCtx(ctx, q); err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing or invalid seller_id param")
		return
	}

	rec, err := h.jobs.Submit(ctx, q.SellerID, variant)
	if err != nil {
		logger.WarnContext(ctx, "Report job not accepted", "seller_id", q.SellerID, "error", err)
		respondWithReportError(w, err)
		return
	}

	statusURL := "/reports/jobs/" + rec.ID
	w.Header().Set("Location", statusURL)
	respondWithJSON(w, http.StatusAccepted, JobAcceptedResponse{
		JobID:     rec.ID,
		Status:    rec.Status,
		StatusURL: statusURL,
		CreatedAt: rec.CreatedAt,
	})
}

func (h *ReportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	rec, err := h.jobs.Get(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Report job not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load report job", "request_id", chi_middleware.GetReqID(ctx), "job_id", jobID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load report job")
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}
