// Package lwa talks to Login with Amazon, the OAuth2 authorization server shared by
// the Selling Partner API and the Advertising API.
package lwa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"
)

// DefaultTokenURL is the LWA token endpoint for all regions.
const DefaultTokenURL = "https://api.amazon.com/auth/o2/token"

// Client exchanges authorization codes and refreshes access tokens.
// Access tokens are cached per credential and reused until they expire.
type Client struct {
	tokenURL   string
	httpClient *http.Client

	mu     sync.Mutex
	tokens *expirable.LRU[string, *cachedToken]
}

// cachedToken holds one credential's access token. sem admits a single refresh at a time.
type cachedToken struct {
	sem *semaphore.Weighted
	tok *oauth2.Token
}

func NewClient(tokenURL string, httpClient *http.Client) *Client {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		tokenURL:   tokenURL,
		httpClient: httpClient,
		tokens:     expirable.NewLRU[string, *cachedToken](1024, nil, 12*time.Hour),
	}
}

func (c *Client) config(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// Exchange trades an authorization code for tokens (grant_type=authorization_code).
func (c *Client) Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*oauth2.Token, error) {
	tok, err := c.config(clientID, clientSecret, redirectURI).Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("lwa code exchange: %w", describe(err))
	}
	return tok, nil
}

// AccessToken returns a valid access token for cred, refreshing it on the caller's
// context when the cached one has expired.
func (c *Client) AccessToken(ctx context.Context, cred core_domain.SellerCredential) (string, error) {
	entry := c.entry(cacheKey(cred))
	if err := entry.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("lwa token refresh: %w", err)
	}
	defer entry.sem.Release(1)

	if entry.tok.Valid() {
		return entry.tok.AccessToken, nil
	}
	src := c.config(cred.AppID, cred.AppSecret, "").TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("lwa token refresh: %w", ctxErr)
		}
		return "", fmt.Errorf("lwa token refresh: %w", describe(err))
	}
	entry.tok = tok
	return tok.AccessToken, nil
}

func (c *Client) entry(key string) *cachedToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.tokens.Get(key); ok {
		return e
	}
	e := &cachedToken{sem: semaphore.NewWeighted(1)}
	c.tokens.Add(key, e)
	return e
}

func cacheKey(cred core_domain.SellerCredential) string {
	sum := sha256.Sum256([]byte(cred.AppID + "\x00" + cred.AppSecret + "\x00" + cred.RefreshToken))
	return hex.EncodeToString(sum[:])
}

// describe keeps the LWA error code and description and drops the raw body,
// which may echo client credentials.
func describe(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		if re.ErrorCode != "" {
			return &Error{StatusCode: status, Code: re.ErrorCode, Description: re.ErrorDescription}
		}
		return &Error{StatusCode: status, Code: "unknown_error"}
	}
	return err
}

// Error is an OAuth2 error response from LWA.
type Error struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s (http %d)", e.Code, e.Description, e.StatusCode)
	}
	return fmt.Sprintf("%s (http %d)", e.Code, e.StatusCode)
}

// Temporary reports whether a retry can help. invalid_grant and friends are final.
func (e *Error) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
