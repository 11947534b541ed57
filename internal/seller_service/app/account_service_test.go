package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cohortanalysis/golang_services/internal/amazon/ads"
	"github.com/cohortanalysis/golang_services/internal/amazon/spapi"
	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/seller_service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPartnerResolver struct {
	mock.Mock
}

func (m *MockPartnerResolver) ResolveCredential(ctx context.Context, partnerID string) (core_domain.SellerCredential, error) {
	args := m.Called(ctx, partnerID)
	return args.Get(0).(core_domain.SellerCredential), args.Error(1)
}

type MockSellerAPI struct {
	mock.Mock
}

func (m *MockSellerAPI) GetMarketplaceParticipations(ctx context.Context) ([]spapi.MarketplaceParticipation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]spapi.MarketplaceParticipation), args.Error(1)
}

func (m *MockSellerAPI) GetOrders(ctx context.Context, createdAfter time.Time, marketplaceIDs []string) (*spapi.OrdersPage, error) {
	args := m.Called(ctx, createdAfter, marketplaceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*spapi.OrdersPage), args.Error(1)
}

type MockAdvertisingAPI struct {
	mock.Mock
}

func (m *MockAdvertisingAPI) GetProfiles(ctx context.Context, cred core_domain.SellerCredential) ([]ads.Profile, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ads.Profile), args.Error(1)
}

type accountTestComponents struct {
	svc         *AccountService
	sellers     *MockPartnerResolver
	advertisers *MockPartnerResolver
	sellerAPI   *MockSellerAPI
	adsAPI      *MockAdvertisingAPI
	boundTo     []core_domain.SellerCredential
}

func setupAccountTest() *accountTestComponents {
	c := &accountTestComponents{
		sellers:     new(MockPartnerResolver),
		advertisers: new(MockPartnerResolver),
		sellerAPI:   new(MockSellerAPI),
		adsAPI:      new(MockAdvertisingAPI),
	}
	factory := func(cred core_domain.SellerCredential) SellerAPI {
		c.boundTo = append(c.boundTo, cred)
		return c.sellerAPI
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c.svc = NewAccountService(c.sellers, c.advertisers, factory, c.adsAPI, []string{"ATVPDKIKX0DER"}, logger)
	c.svc.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestAccountService_MarketplaceParticipations(t *testing.T) {
	c := setupAccountTest()
	cred := core_domain.SellerCredential{PartnerID: "A1", RefreshToken: "Atzr|r"}
	want := []spapi.MarketplaceParticipation{{Marketplace: spapi.Marketplace{ID: "ATVPDKIKX0DER"}}}
	c.sellers.On("ResolveCredential", mock.Anything, "A1").Return(cred, nil).Once()
	c.sellerAPI.On("GetMarketplaceParticipations", mock.Anything).Return(want, nil).Once()

	got, err := c.svc.MarketplaceParticipations(context.Background(), "A1")

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []core_domain.SellerCredential{cred}, c.boundTo)
}

func TestAccountService_MarketplaceParticipations_NotFound(t *testing.T) {
	c := setupAccountTest()
	c.sellers.On("ResolveCredential", mock.Anything, "nobody").Return(core_domain.SellerCredential{}, domain.ErrNotFound).Once()

	_, err := c.svc.MarketplaceParticipations(context.Background(), "nobody")

	assert.ErrorIs(t, err, core_domain.ErrCredentialNotFound)
	assert.Empty(t, c.boundTo)
}

func TestAccountService_RecentOrders(t *testing.T) {
	c := setupAccountTest()
	c.sellers.On("ResolveCredential", mock.Anything, "A1").Return(core_domain.SellerCredential{PartnerID: "A1"}, nil).Twice()
	page := &spapi.OrdersPage{Orders: []spapi.Order{{AmazonOrderID: "111-1"}}}

	defaultSince := time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)
	c.sellerAPI.On("GetOrders", mock.Anything, defaultSince, []string{"ATVPDKIKX0DER"}).Return(page, nil).Once()
	got, err := c.svc.RecentOrders(context.Background(), "A1", 0)
	require.NoError(t, err)
	assert.Equal(t, page, got)

	c.sellerAPI.On("GetOrders", mock.Anything, time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), mock.Anything).Return(page, nil).Once()
	_, err = c.svc.RecentOrders(context.Background(), "A1", 1)
	require.NoError(t, err)

	c.sellerAPI.AssertExpectations(t)
}

func TestAccountService_RecentOrders_InvalidLookback(t *testing.T) {
	c := setupAccountTest()
	for _, days := range []int{-1, 366} {
		_, err := c.svc.RecentOrders(context.Background(), "A1", days)
		assert.ErrorIs(t, err, ErrInvalidLookback)
	}
	c.sellers.AssertNotCalled(t, "ResolveCredential", mock.Anything, mock.Anything)
}

func TestAccountService_Profiles(t *testing.T) {
	c := setupAccountTest()
	cred := core_domain.SellerCredential{PartnerID: "ADV1", AppID: "amzn1.ads.client"}
	c.advertisers.On("ResolveCredential", mock.Anything, "ADV1").Return(cred, nil).Once()
	c.adsAPI.On("GetProfiles", mock.Anything, cred).Return([]ads.Profile{{ProfileID: 42}}, nil).Once()

	got, err := c.svc.Profiles(context.Background(), "ADV1")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0].ProfileID)
	c.sellers.AssertNotCalled(t, "ResolveCredential", mock.Anything, mock.Anything)
}

func TestAccountService_Profiles_Error(t *testing.T) {
	c := setupAccountTest()
	c.advertisers.On("ResolveCredential", mock.Anything, "ADV1").Return(core_domain.SellerCredential{}, nil).Once()
	apiErr := &ads.APIError{StatusCode: 401, Code: "UNAUTHORIZED"}
	c.adsAPI.On("GetProfiles", mock.Anything, mock.Anything).Return(nil, apiErr).Once()

	_, err := c.svc.Profiles(context.Background(), "ADV1")

	var target *ads.APIError
	assert.True(t, errors.As(err, &target))
}
