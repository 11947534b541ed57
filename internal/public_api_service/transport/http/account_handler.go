package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/cohortanalysis/golang_services/internal/amazon/ads"
	"github.com/cohortanalysis/golang_services/internal/amazon/spapi"
	"github.com/cohortanalysis/golang_services/internal/core_domain"
	sellerApp "github.com/cohortanalysis/golang_services/internal/seller_service/app"
)

// AccountAPI is implemented by *app.AccountService.
type AccountAPI interface {
	MarketplaceParticipations(ctx context.Context, sellerID string) ([]spapi.MarketplaceParticipation, error)
	RecentOrders(ctx context.Context, sellerID string, days int) (*spapi.OrdersPage, error)
	Profiles(ctx context.Context, advertiserID string) ([]ads.Profile, error)
}

// AccountHandler serves direct SP-API and Advertising API calls for stored partners.
type AccountHandler struct {
	accounts AccountAPI
	logger   *slog.Logger
	validate *validator.Validate
}

func NewAccountHandler(accounts AccountAPI, logger *slog.Logger, validate *validator.Validate) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger.With("component", "account_handler"),
		validate: validate,
	}
}

func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/test_sp_api", h.MarketplaceParticipations)
	r.Get("/sp/orders", h.Orders)
	r.Get("/ads/profiles", h.Profiles)
}

func (h *AccountHandler) MarketplaceParticipations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := SellerQuery{SellerID: r.URL.Query().Get("seller_id")}
	if err := h.validate.StructCtx(ctx, q); err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing seller_id param")
		return
	}

	participations, err := h.accounts.MarketplaceParticipations(ctx, q.SellerID)
	if err != nil {
		h.upstreamError(w, r, q.SellerID, err)
		return
	}
	respondWithJSON(w, http.StatusOK, MarketplaceParticipationResponse{
		SellerID:                 q.SellerID,
		MarketplaceParticipation: participations,
	})
}

func (h *AccountHandler) Orders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := OrdersQuery{SellerID: r.URL.Query().Get("seller_id")}
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		q.Days = days
	}
	if err := h.validate.StructCtx(ctx, q); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid query parameters: "+err.Error())
		return
	}

	page, err := h.accounts.RecentOrders(ctx, q.SellerID, q.Days)
	if err != nil {
		h.upstreamError(w, r, q.SellerID, err)
		return
	}
	days := q.Days
	if days == 0 {
		days = sellerApp.DefaultOrdersLookbackDays
	}
	orders := page.Orders
	if orders == nil {
		orders = []spapi.Order{}
	}
	respondWithJSON(w, http.StatusOK, OrdersResponse{SellerID: q.SellerID, Days: days, Orders: orders, NextToken: page.NextToken})
}

func (h *AccountHandler) Profiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := AdvertiserQuery{AdvertiserID: r.URL.Query().Get("advertiser_id")}
	if err := h.validate.StructCtx(ctx, q); err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing advertiser_id param")
		return
	}

	profiles, err := h.accounts.Profiles(ctx, q.AdvertiserID)
	if err != nil {
		h.upstreamError(w, r, q.AdvertiserID, err)
		return
	}
	if profiles == nil {
		profiles = []ads.Profile{}
	}
	respondWithJSON(w, http.StatusOK, ProfilesResponse{AdvertiserID: q.AdvertiserID, Profiles: profiles})
}

// upstreamError writes 404 for unknown partners and 400 {error} for Amazon API failures.
func (h *AccountHandler) upstreamError(w http.ResponseWriter, r *http.Request, partnerID string, err error) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "partner_id", partnerID, "path", r.URL.Path)
	if errors.Is(err, core_domain.ErrCredentialNotFound) {
		logger.WarnContext(ctx, "No refresh token stored")
		respondWithError(w, http.StatusNotFound, "No refresh token found for "+partnerID)
		return
	}
	logger.ErrorContext(ctx, "Amazon API call failed", "error", err)
	respondWithError(w, http.StatusBadRequest, err.Error())
}
