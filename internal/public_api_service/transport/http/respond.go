package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
)

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to write JSON response", "error", err)
		}
	}
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, GenericErrorResponse{Error: message})
}

// reportErrorStatus maps a report error kind to the HTTP status returned to callers.
func reportErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, core_domain.ErrCredentialNotFound),
		errors.Is(err, domain.ErrUnknownVariant),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrReportCancelled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPollTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrSubmissionFailed),
		errors.Is(err, domain.ErrRemote),
		errors.Is(err, domain.ErrMissingDocumentID),
		errors.Is(err, domain.ErrEmptyDocument):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, domain.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondWithReportError(w http.ResponseWriter, err error) {
	resp := ReportErrorResponse{Error: err.Error(), Kind: "Internal"}
	var re *domain.ReportError
	switch {
	case errors.As(err, &re):
		resp.Kind = re.KindName()
		resp.ReportID = re.ReportID
		resp.LastStatus = string(re.LastStatus)
		resp.Retryable = re.Retryable()
	case errors.Is(err, core_domain.ErrCredentialNotFound):
		resp.Kind = "NotFound"
	case errors.Is(err, domain.ErrUnknownVariant):
		resp.Kind = "UnknownVariant"
	case errors.Is(err, domain.ErrQueueFull):
		resp.Kind = "QueueFull"
		resp.Retryable = true
	}
	respondWithJSON(w, reportErrorStatus(err), resp)
}
