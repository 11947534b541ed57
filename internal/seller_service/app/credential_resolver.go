package app

import (
	"context"
	"fmt"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/platform/secrets"
	"github.com/cohortanalysis/golang_services/internal/seller_service/domain"
)

// CredentialResolver combines the application secret with a stored refresh token.
// Results are not cached; secrets caching happens in the secrets provider.
type CredentialResolver struct {
	api        domain.APIKind
	secrets    secrets.Provider
	secretName string
	tokens     domain.TokenRepository
}

func NewCredentialResolver(api domain.APIKind, provider secrets.Provider, secretName string, tokens domain.TokenRepository) *CredentialResolver {
	return &CredentialResolver{api: api, secrets: provider, secretName: secretName, tokens: tokens}
}

// AppCredential returns the application part of the credential, without a refresh token.
func (r *CredentialResolver) AppCredential(ctx context.Context) (core_domain.SellerCredential, error) {
	switch r.api {
	case domain.APISellingPartner:
		var sc secrets.SPAPICredentials
		if err := secrets.GetJSON(ctx, r.secrets, r.secretName, &sc); err != nil {
			return core_domain.SellerCredential{}, fmt.Errorf("loading sp-api app credentials: %w", err)
		}
		return core_domain.SellerCredential{
			AppID:           sc.ClientID,
			AppSecret:       sc.ClientSecret,
			AccessKeyID:     sc.AWSAccessKeyID,
			SecretAccessKey: sc.AWSSecretAccessKey,
		}, nil
	case domain.APIAdvertising:
		var ac secrets.AdsCredentials
		if err := secrets.GetJSON(ctx, r.secrets, r.secretName, &ac); err != nil {
			return core_domain.SellerCredential{}, fmt.Errorf("loading ads app credentials: %w", err)
		}
		return core_domain.SellerCredential{AppID: ac.ClientID, AppSecret: ac.ClientSecret}, nil
	}
	return core_domain.SellerCredential{}, fmt.Errorf("unknown api kind %q", r.api)
}

// ResolveCredential returns domain.ErrNotFound (which matches
// core_domain.ErrCredentialNotFound) when no token is stored for partnerID.
func (r *CredentialResolver) ResolveCredential(ctx context.Context, partnerID string) (core_domain.SellerCredential, error) {
	token, err := r.tokens.GetRefreshToken(ctx, partnerID)
	if err != nil {
		return core_domain.SellerCredential{}, err
	}
	cred, err := r.AppCredential(ctx)
	if err != nil {
		return core_domain.SellerCredential{}, err
	}
	cred.PartnerID = partnerID
	cred.RefreshToken = token
	return cred, nil
}
