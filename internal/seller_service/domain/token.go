package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
)

// APIKind identifies which Amazon API a refresh token belongs to.
type APIKind string

const (
	APISellingPartner APIKind = "sp"
	APIAdvertising    APIKind = "ads"
)

// DefaultPartnerID is stored when the SP-API callback carries no selling_partner_id.
const DefaultPartnerID = "UNKNOWN_PARTNER"

var (
	// ErrNotFound also matches core_domain.ErrCredentialNotFound.
	ErrNotFound = fmt.Errorf("refresh token %w", core_domain.ErrCredentialNotFound)

	ErrInvalidState     = errors.New("invalid or expired oauth state")
	ErrMissingCode      = errors.New("authorization code missing")
	ErrNoRefreshToken   = errors.New("token response has no refresh token")
	ErrExchangeFailed   = errors.New("authorization code exchange failed")
	ErrMissingPartnerID = errors.New("partner id missing")
)

// TokenRepository stores one refresh token per partner id; the latest write wins.
type TokenRepository interface {
	Upsert(ctx context.Context, partnerID, refreshToken string) error
	GetRefreshToken(ctx context.Context, partnerID string) (string, error)
}

// AuthorizedEvent is published after a refresh token has been stored.
type AuthorizedEvent struct {
	API       APIKind `json:"api"`
	PartnerID string  `json:"partner_id"`
}
