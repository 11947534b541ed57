package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/platform/messagebroker"
	"github.com/cohortanalysis/golang_services/internal/seller_service/domain"
	"golang.org/x/oauth2"
)

const (
	SubjectSellerAuthorized     = "seller.authorized"
	SubjectAdvertiserAuthorized = "advertiser.authorized"
)

// CodeExchanger trades an authorization code for tokens. *lwa.Client implements it.
type CodeExchanger interface {
	Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*oauth2.Token, error)
}

// AppCredentialSource yields the application client id and secret. *CredentialResolver implements it.
type AppCredentialSource interface {
	AppCredential(ctx context.Context) (core_domain.SellerCredential, error)
}

// AuthorizationConfig holds the consent endpoints and redirect URIs.
type AuthorizationConfig struct {
	SPAPIConsentURL    string `mapstructure:"SPAPI_CONSENT_URL"`
	SPAPIApplicationID string `mapstructure:"SPAPI_APPLICATION_ID"`
	SPAPIRedirectURI   string `mapstructure:"SPAPI_REDIRECT_URI"`
	AdsConsentURL      string `mapstructure:"ADS_CONSENT_URL"`
	AdsRedirectURI     string `mapstructure:"ADS_REDIRECT_URI"`
	AdsScope           string `mapstructure:"ADS_SCOPE"`
}

// AuthorizationService runs the OAuth consent flows for sellers and advertisers.
type AuthorizationService struct {
	config      AuthorizationConfig
	state       *StateSigner
	exchanger   CodeExchanger
	spApp       AppCredentialSource
	adsApp      AppCredentialSource
	sellers     domain.TokenRepository
	advertisers domain.TokenRepository
	publisher   messagebroker.Publisher
	logger      *slog.Logger
}

func NewAuthorizationService(
	cfg AuthorizationConfig,
	state *StateSigner,
	exchanger CodeExchanger,
	spApp, adsApp AppCredentialSource,
	sellers, advertisers domain.TokenRepository,
	publisher messagebroker.Publisher,
	logger *slog.Logger,
) *AuthorizationService {
	return &AuthorizationService{
		config:      cfg,
		state:       state,
		exchanger:   exchanger,
		spApp:       spApp,
		adsApp:      adsApp,
		sellers:     sellers,
		advertisers: advertisers,
		publisher:   publisher,
		logger:      logger.With("component", "authorization_service"),
	}
}

// SellerConsentURL builds the Seller Central consent URL.
func (s *AuthorizationService) SellerConsentURL(ctx context.Context) (string, error) {
	appID := s.config.SPAPIApplicationID
	if appID == "" {
		app, err := s.spApp.AppCredential(ctx)
		if err != nil {
			return "", err
		}
		appID = app.AppID
	}
	state, err := s.state.Issue(domain.APISellingPartner, "")
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("application_id", appID)
	params.Set("redirect_uri", s.config.SPAPIRedirectURI)
	params.Set("state", state)
	return s.config.SPAPIConsentURL + "?" + params.Encode(), nil
}

// AdvertiserConsentURL builds the LWA consent URL for the Advertising API.
func (s *AuthorizationService) AdvertiserConsentURL(ctx context.Context, advertiserID string) (string, error) {
	if advertiserID == "" {
		return "", domain.ErrMissingPartnerID
	}
	app, err := s.adsApp.AppCredential(ctx)
	if err != nil {
		return "", err
	}
	state, err := s.state.Issue(domain.APIAdvertising, advertiserID)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("client_id", app.AppID)
	params.Set("scope", s.config.AdsScope)
	params.Set("response_type", "code")
	params.Set("redirect_uri", s.config.AdsRedirectURI)
	params.Set("state", state)
	return s.config.AdsConsentURL + "?" + params.Encode(), nil
}

// CompleteSellerAuthorization verifies the state, exchanges the code and stores the
// refresh token. It returns the partner id the token was stored under.
func (s *AuthorizationService) CompleteSellerAuthorization(ctx context.Context, code, sellingPartnerID, state string) (string, error) {
	if _, err := s.state.Verify(state, domain.APISellingPartner); err != nil {
		s.logger.WarnContext(ctx, "Rejected seller callback state", "error", err)
		return "", err
	}
	if sellingPartnerID == "" {
		sellingPartnerID = domain.DefaultPartnerID
	}
	if err := s.complete(ctx, s.spApp, s.sellers, code, s.config.SPAPIRedirectURI, sellingPartnerID); err != nil {
		return "", err
	}
	s.publish(ctx, SubjectSellerAuthorized, domain.AuthorizedEvent{API: domain.APISellingPartner, PartnerID: sellingPartnerID})
	return sellingPartnerID, nil
}

// CompleteAdvertiserAuthorization is the Advertising API counterpart; the advertiser
// id comes from the state issued by AdvertiserConsentURL.
func (s *AuthorizationService) CompleteAdvertiserAuthorization(ctx context.Context, code, state string) (string, error) {
	claims, err := s.state.Verify(state, domain.APIAdvertising)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected advertiser callback state", "error", err)
		return "", err
	}
	if claims.AdvertiserID == "" {
		return "", fmt.Errorf("%w: state carries no advertiser id", domain.ErrInvalidState)
	}
	if err := s.complete(ctx, s.adsApp, s.advertisers, code, s.config.AdsRedirectURI, claims.AdvertiserID); err != nil {
		return "", err
	}
	s.publish(ctx, SubjectAdvertiserAuthorized, domain.AuthorizedEvent{API: domain.APIAdvertising, PartnerID: claims.AdvertiserID})
	return claims.AdvertiserID, nil
}

func (s *AuthorizationService) complete(ctx context.Context, src AppCredentialSource, repo domain.TokenRepository, code, redirectURI, partnerID string) error {
	if code == "" {
		return domain.ErrMissingCode
	}
	app, err := src.AppCredential(ctx)
	if err != nil {
		return err
	}
	tok, err := s.exchanger.Exchange(ctx, app.AppID, app.AppSecret, code, redirectURI)
	if err != nil {
		s.logger.ErrorContext(ctx, "Authorization code exchange failed", "partner_id", partnerID, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrExchangeFailed, err)
	}
	if tok.RefreshToken == "" {
		return domain.ErrNoRefreshToken
	}
	if err := repo.Upsert(ctx, partnerID, tok.RefreshToken); err != nil {
		return fmt.Errorf("storing refresh token: %w", err)
	}
	s.logger.InfoContext(ctx, "Stored refresh token", "partner_id", partnerID)
	return nil
}

func (s *AuthorizationService) publish(ctx context.Context, subject string, event domain.AuthorizedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal authorization event", "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish authorization event", "subject", subject, "error", err)
	}
}

// IsClientError reports whether err is caused by the callback request itself.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrMissingCode) ||
		errors.Is(err, domain.ErrMissingPartnerID) ||
		errors.Is(err, domain.ErrNoRefreshToken) ||
		errors.Is(err, domain.ErrExchangeFailed)
}
