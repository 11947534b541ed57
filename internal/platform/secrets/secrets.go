package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrSecretNotFound = errors.New("secret not found")

// Provider returns the raw string value of a named secret.
type Provider interface {
	GetSecretString(ctx context.Context, name string) (string, error)
}

// SPAPICredentials is the JSON layout of the "sp-api-credentials" secret.
type SPAPICredentials struct {
	ClientID           string `json:"CLIENT_ID"`
	ClientSecret       string `json:"CLIENT_SECRET"`
	AWSAccessKeyID     string `json:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `json:"AWS_SECRET_ACCESS_KEY"`
}

// AdsCredentials is the JSON layout of the "ads-api-credentials" secret.
type AdsCredentials struct {
	ClientID     string `json:"ADS_CLIENT_ID"`
	ClientSecret string `json:"ADS_CLIENT_SECRET"`
}

// GetJSON fetches a secret and decodes its JSON value into out.
func GetJSON(ctx context.Context, p Provider, name string, out any) error {
	raw, err := p.GetSecretString(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decoding secret %s: %w", name, err)
	}
	return nil
}

// StaticProvider serves secrets from memory, keyed by secret name. Used for local runs and tests.
type StaticProvider map[string]string

func (p StaticProvider) GetSecretString(_ context.Context, name string) (string, error) {
	v, ok := p[name]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return v, nil
}

// SecretsManagerAPI is the part of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads secrets from AWS Secrets Manager.
type AWSProvider struct {
	api SecretsManagerAPI
}

// NewAWSProvider loads the default AWS configuration for region.
func NewAWSProvider(ctx context.Context, region string) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &AWSProvider{api: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewAWSProviderWithAPI wraps an existing client.
func NewAWSProviderWithAPI(api SecretsManagerAPI) *AWSProvider {
	return &AWSProvider{api: api}
}

func (p *AWSProvider) GetSecretString(ctx context.Context, name string) (string, error) {
	out, err := p.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("get secret value %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("%w: %s has no string value", ErrSecretNotFound, name)
	}
	return *out.SecretString, nil
}

// CachingProvider keeps secret values for ttl so a request does not hit the vault every time.
type CachingProvider struct {
	next  Provider
	cache *expirable.LRU[string, string]
}

func NewCachingProvider(next Provider, size int, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (p *CachingProvider) GetSecretString(ctx context.Context, name string) (string, error) {
	if v, ok := p.cache.Get(name); ok {
		return v, nil
	}
	v, err := p.next.GetSecretString(ctx, name)
	if err != nil {
		return "", err
	}
	p.cache.Add(name, v)
	return v, nil
}
