package core_domain

import (
	"errors"
	"log/slog"
)

// SellerCredential bundles everything needed to call an Amazon API on behalf of one
// seller or advertiser. Consumers other than the API clients treat it as opaque.
type SellerCredential struct {
	PartnerID       string // selling partner id or advertiser id the refresh token belongs to
	AppID           string // LWA client id
	AppSecret       string // LWA client secret
	RefreshToken    string
	AccessKeyID     string // IAM access key pair, SP-API only
	SecretAccessKey string
}

// String never prints secret material.
func (c SellerCredential) String() string {
	return "SellerCredential{partner=" + c.PartnerID + "}"
}

// LogValue keeps credentials out of structured logs.
func (c SellerCredential) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// ErrCredentialNotFound is returned when no refresh token is stored for a partner id.
var ErrCredentialNotFound = errors.New("credential not found")
