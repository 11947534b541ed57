package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/cohortanalysis/golang_services/internal/seller_service/domain"
	"github.com/golang-jwt/jwt/v5"
)

const stateIssuer = "connector-oauth"

// StateClaims travel through the consent page in the OAuth state parameter.
type StateClaims struct {
	API          domain.APIKind `json:"api"`
	AdvertiserID string         `json:"advertiser_id,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner issues and verifies short-lived HS256 state tokens.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStateSigner(secret string, ttl time.Duration) (*StateSigner, error) {
	if len(secret) < 16 {
		return nil, errors.New("oauth state secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *StateSigner) Issue(api domain.APIKind, advertiserID string) (string, error) {
	now := s.now()
	claims := StateClaims{
		API:          api,
		AdvertiserID: advertiserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing oauth state: %w", err)
	}
	return token, nil
}

// Verify returns domain.ErrInvalidState unless raw is a valid, unexpired state for api.
func (s *StateSigner) Verify(raw string, api domain.APIKind) (*StateClaims, error) {
	if raw == "" {
		return nil, domain.ErrInvalidState
	}
	var claims StateClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
	}
	if claims.API != api {
		return nil, fmt.Errorf("%w: issued for %q", domain.ErrInvalidState, claims.API)
	}
	return &claims, nil
}
