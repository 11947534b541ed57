// Package ads is a minimal Amazon Advertising API client.
package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
)

// DefaultEndpoint is the North America Advertising API host.
const DefaultEndpoint = "https://advertising-api.amazon.com"

// TokenProvider yields LWA access tokens. *lwa.Client implements it.
type TokenProvider interface {
	AccessToken(ctx context.Context, cred core_domain.SellerCredential) (string, error)
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *slog.Logger
}

func NewClient(endpoint string, httpClient *http.Client, tokens TokenProvider, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger.With("client", "ads_api"),
	}
}

type AccountInfo struct {
	MarketplaceStringID string `json:"marketplaceStringId"`
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Name                string `json:"name"`
	ValidPaymentMethod  bool   `json:"validPaymentMethod"`
}

// Profile is an advertising profile the access token can manage.
type Profile struct {
	ProfileID    int64       `json:"profileId"`
	CountryCode  string      `json:"countryCode"`
	CurrencyCode string      `json:"currencyCode"`
	DailyBudget  float64     `json:"dailyBudget,omitempty"`
	Timezone     string      `json:"timezone"`
	AccountInfo  AccountInfo `json:"accountInfo"`
}

// APIError is a non-2xx Advertising API response.
type APIError struct {
	StatusCode int
	Code       string
	Details    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ads api error: status %d, code %s: %s", e.StatusCode, e.Code, e.Details)
	}
	return fmt.Sprintf("ads api error: status %d", e.StatusCode)
}

func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// GetProfiles lists the advertising profiles for cred.
func (c *Client) GetProfiles(ctx context.Context, cred core_domain.SellerCredential) ([]Profile, error) {
	accessToken, err := c.tokens.AccessToken(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("obtaining access token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v2/profiles", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request for profiles: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Amazon-Advertising-API-ClientId", cred.AppID)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to ads api: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: httpResp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
		var parsed struct {
			Code    string `json:"code"`
			Details string `json:"details"`
		}
		if json.Unmarshal(raw, &parsed) == nil {
			apiErr.Code, apiErr.Details = parsed.Code, parsed.Details
		}
		c.logger.WarnContext(ctx, "Ads API profiles request failed", "status_code", httpResp.StatusCode, "partner_id", cred.PartnerID, "code", apiErr.Code)
		return nil, apiErr
	}

	var profiles []Profile
	if err := json.NewDecoder(httpResp.Body).Decode(&profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return profiles, nil
}
