// Package spapi is a client for the subset of the Selling Partner API used by the
// connector: reports, sellers and orders.
package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
)

// DefaultEndpoint is the North America SP-API host.
const DefaultEndpoint = "https://sellingpartnerapi-na.amazon.com"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// TokenProvider yields LWA access tokens. *lwa.Client implements it.
type TokenProvider interface {
	AccessToken(ctx context.Context, cred core_domain.SellerCredential) (string, error)
}

// Client calls SP-API on behalf of one seller.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenProvider
	cred       core_domain.SellerCredential
	logger     *slog.Logger
}

func NewClient(endpoint string, httpClient *http.Client, tokens TokenProvider, cred core_domain.SellerCredential, logger *slog.Logger) *Client {
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
		cred:       cred,
		logger:     logger.With("client", "spapi", "partner_id", cred.PartnerID),
	}
}

// ClientFactory builds per-seller clients sharing one HTTP client and token cache.
type ClientFactory struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *slog.Logger
}

func NewClientFactory(endpoint string, httpClient *http.Client, tokens TokenProvider, logger *slog.Logger) *ClientFactory {
	return &ClientFactory{endpoint: endpoint, httpClient: httpClient, tokens: tokens, logger: logger}
}

// Client returns the concrete client for cred.
func (f *ClientFactory) Client(cred core_domain.SellerCredential) *Client {
	return NewClient(f.endpoint, f.httpClient, f.tokens, cred, f.logger)
}

// ForCredential implements domain.ReportClientFactory.
func (f *ClientFactory) ForCredential(cred core_domain.SellerCredential) domain.ReportJobClient {
	return f.Client(cred)
}

// ErrorDetail is one entry of the SP-API error list.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// APIError is a non-2xx SP-API response.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
	RawBody    string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		first := e.Errors[0]
		return fmt.Sprintf("sp-api error: status %d, code %s: %s", e.StatusCode, first.Code, first.Message)
	}
	if e.RawBody != "" && len(e.RawBody) < 200 {
		return fmt.Sprintf("sp-api error: status %d, raw_body: %s", e.StatusCode, e.RawBody)
	}
	return fmt.Sprintf("sp-api error: status %d", e.StatusCode)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// do sends an authenticated request. query and body may be nil; out may be nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	accessToken, err := c.tokens.AccessToken(ctx, c.cred)
	if err != nil {
		return fmt.Errorf("obtaining access token: %w", err)
	}

	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reqBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request for %s: %w", path, err)
		}
		reader = bytes.NewReader(reqBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request for %s: %w", path, err)
	}
	httpReq.Header.Set("x-amz-access-token", accessToken)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "Sending SP-API request", "method", method, "path", path)
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return c.decodeError(ctx, path, httpResp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) decodeError(ctx context.Context, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var parsed struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 {
		apiErr.Errors = parsed.Errors
	} else {
		apiErr.RawBody = string(raw)
	}
	c.logger.WarnContext(ctx, "SP-API request failed", "path", path, "status_code", resp.StatusCode, "error", apiErr)
	return apiErr
}
