package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cohortanalysis/golang_services/internal/amazon/ads"
	"github.com/cohortanalysis/golang_services/internal/amazon/spapi"
	"github.com/cohortanalysis/golang_services/internal/core_domain"
)

const DefaultOrdersLookbackDays = 7

var ErrInvalidLookback = errors.New("lookback days must be between 1 and 365")

// SellerAPI is the SP-API surface used for account checks. *spapi.Client implements it.
type SellerAPI interface {
	GetMarketplaceParticipations(ctx context.Context) ([]spapi.MarketplaceParticipation, error)
	GetOrders(ctx context.Context, createdAfter time.Time, marketplaceIDs []string) (*spapi.OrdersPage, error)
}

// SellerAPIFactory builds a SellerAPI bound to one credential.
type SellerAPIFactory func(cred core_domain.SellerCredential) SellerAPI

// AdvertisingAPI is implemented by *ads.Client.
type AdvertisingAPI interface {
	GetProfiles(ctx context.Context, cred core_domain.SellerCredential) ([]ads.Profile, error)
}

type PartnerResolver interface {
	ResolveCredential(ctx context.Context, partnerID string) (core_domain.SellerCredential, error)
}

// AccountService makes direct, non-report calls on behalf of a stored seller or advertiser.
type AccountService struct {
	sellers        PartnerResolver
	advertisers    PartnerResolver
	sellerAPI      SellerAPIFactory
	adsAPI         AdvertisingAPI
	marketplaceIDs []string
	logger         *slog.Logger
	now            func() time.Time
}

func NewAccountService(sellers, advertisers PartnerResolver, sellerAPI SellerAPIFactory, adsAPI AdvertisingAPI, marketplaceIDs []string, logger *slog.Logger) *AccountService {
	return &AccountService{
		sellers:        sellers,
		advertisers:    advertisers,
		sellerAPI:      sellerAPI,
		adsAPI:         adsAPI,
		marketplaceIDs: marketplaceIDs,
		logger:         logger.With("component", "account_service"),
		now:            time.Now,
	}
}

func (s *AccountService) MarketplaceParticipations(ctx context.Context, sellerID string) ([]spapi.MarketplaceParticipation, error) {
	cred, err := s.sellers.ResolveCredential(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return s.sellerAPI(cred).GetMarketplaceParticipations(ctx)
}

// RecentOrders returns orders created in the last days days. Zero means the default lookback.
func (s *AccountService) RecentOrders(ctx context.Context, sellerID string, days int) (*spapi.OrdersPage, error) {
	if days == 0 {
		days = DefaultOrdersLookbackDays
	}
	if days < 1 || days > 365 {
		return nil, ErrInvalidLookback
	}
	cred, err := s.sellers.ResolveCredential(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	s.logger.DebugContext(ctx, "Listing orders", "seller_id", sellerID, "created_after", since)
	return s.sellerAPI(cred).GetOrders(ctx, since, s.marketplaceIDs)
}

func (s *AccountService) Profiles(ctx context.Context, advertiserID string) ([]ads.Profile, error) {
	cred, err := s.advertisers.ResolveCredential(ctx, advertiserID)
	if err != nil {
		return nil, err
	}
	return s.adsAPI.GetProfiles(ctx, cred)
}
