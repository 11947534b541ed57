package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	sellerApp "github.com/cohortanalysis/golang_services/internal/seller_service/app"
	sellerDomain "github.com/cohortanalysis/golang_services/internal/seller_service/domain"
)

// Authorizer is implemented by *app.AuthorizationService.
type Authorizer interface {
	SellerConsentURL(ctx context.Context) (string, error)
	AdvertiserConsentURL(ctx context.Context, advertiserID string) (string, error)
	CompleteSellerAuthorization(ctx context.Context, code, sellingPartnerID, state string) (string, error)
	CompleteAdvertiserAuthorization(ctx context.Context, code, state string) (string, error)
}

// OAuthHandler serves the consent redirects and the OAuth callbacks.
type OAuthHandler struct {
	auth     Authorizer
	logger   *slog.Logger
	validate *validator.Validate
}

func NewOAuthHandler(auth Authorizer, logger *slog.Logger, validate *validator.Validate) *OAuthHandler {
	return &OAuthHandler{
		auth:     auth,
		logger:   logger.With("component", "oauth_handler"),
		validate: validate,
	}
}

func (h *OAuthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/start", h.SellerStart)
	r.Get("/callback", h.SellerCallback)
	r.Get("/ads/start", h.AdvertiserStart)
	r.Get("/ads/callback", h.AdvertiserCallback)
}

func (h *OAuthHandler) SellerStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentURL, err := h.auth.SellerConsentURL(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to build seller consent URL", "request_id", chi_middleware.GetReqID(ctx), "error", err)
		http.Error(w, "Failed to start authorization", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// SellerCallback accepts the code as spapi_oauth_code (Seller Central) or authorization_code.
func (h *OAuthHandler) SellerCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()
	q := SellerCallbackQuery{
		Code:             params.Get("spapi_oauth_code"),
		SellingPartnerID: params.Get("selling_partner_id"),
		State:            params.Get("state"),
	}
	if q.Code == "" {
		q.Code = params.Get("authorization_code")
	}
	if q.Code == "" {
		http.Error(w, "Missing authorization_code", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, q); err != nil {
		http.Error(w, "Invalid callback parameters", http.StatusBadRequest)
		return
	}

	partnerID, err := h.auth.CompleteSellerAuthorization(ctx, q.Code, q.SellingPartnerID, q.State)
	if err != nil {
		h.callbackError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Authorized seller %s. You can close this window.", partnerID)
}

func (h *OAuthHandler) AdvertiserStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := AdvertiserQuery{AdvertiserID: r.URL.Query().Get("advertiser_id")}
	if err := h.validate.StructCtx(ctx, q); err != nil {
		http.Error(w, "Missing advertiser_id param", http.StatusBadRequest)
		return
	}
	consentURL, err := h.auth.AdvertiserConsentURL(ctx, q.AdvertiserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to build advertiser consent URL", "request_id", chi_middleware.GetReqID(ctx), "error", err)
		http.Error(w, "Failed to start authorization", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, consentURL, http.StatusFound)
}

func (h *OAuthHandler) AdvertiserCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := AdvertiserCallbackQuery{Code: r.URL.Query().Get("code"), State: r.URL.Query().Get("state")}
	if q.Code == "" {
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, q); err != nil {
		http.Error(w, "Invalid callback parameters", http.StatusBadRequest)
		return
	}

	advertiserID, err := h.auth.CompleteAdvertiserAuthorization(ctx, q.Code, q.State)
	if err != nil {
		h.callbackError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Authorized advertiser %s. You can close this window.", advertiserID)
}

func (h *OAuthHandler) callbackError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "path", r.URL.Path)
	if !sellerApp.IsClientError(err) {
		logger.ErrorContext(ctx, "Authorization callback failed", "error", err)
		http.Error(w, "Failed to complete authorization", http.StatusInternalServerError)
		return
	}
	logger.WarnContext(ctx, "Authorization callback rejected", "error", err)
	switch {
	case errors.Is(err, sellerDomain.ErrInvalidState):
		http.Error(w, "Invalid or expired state", http.StatusBadRequest)
	case errors.Is(err, sellerDomain.ErrNoRefreshToken):
		http.Error(w, "No refresh token returned", http.StatusBadRequest)
	case errors.Is(err, sellerDomain.ErrExchangeFailed):
		http.Error(w, "Error exchanging code: "+err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
