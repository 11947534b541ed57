package app

import (
	"context"
	"time"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
)

// CredentialResolver yields the credential for a stored seller.
// It returns core_domain.ErrCredentialNotFound for unknown sellers.
type CredentialResolver interface {
	ResolveCredential(ctx context.Context, sellerID string) (core_domain.SellerCredential, error)
}

// ReportFetcher is satisfied by *Poller.
type ReportFetcher interface {
	FetchReport(ctx context.Context, cred core_domain.SellerCredential, req domain.ReportRequest, opts domain.PollOptions) (*domain.ReportPreview, error)
}

// ReportService runs configured report variants for stored sellers.
type ReportService struct {
	fetcher        ReportFetcher
	creds          CredentialResolver
	variants       *domain.VariantCatalog
	marketplaceIDs []string
	pollOpts       domain.PollOptions
	now            func() time.Time
}

// NewReportService creates a new ReportService. Zero pollOpts fall back to the poller defaults.
func NewReportService(fetcher ReportFetcher, creds CredentialResolver, variants *domain.VariantCatalog, marketplaceIDs []string, pollOpts domain.PollOptions) *ReportService {
	return &ReportService{
		fetcher:        fetcher,
		creds:          creds,
		variants:       variants,
		marketplaceIDs: marketplaceIDs,
		pollOpts:       pollOpts,
		now:            time.Now,
	}
}

func (s *ReportService) Variants() []domain.ReportVariant {
	return s.variants.List()
}

func (s *ReportService) Variant(name string) (domain.ReportVariant, error) {
	return s.variants.Get(name)
}

// FetchVariant resolves the seller credential and the variant window at call time,
// then fetches the report synchronously.
func (s *ReportService) FetchVariant(ctx context.Context, sellerID, name string) (*domain.ReportPreview, error) {
	variant, err := s.variants.Get(name)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.ResolveCredential(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	req, err := variant.Request(s.now(), s.marketplaceIDs)
	if err != nil {
		return nil, err
	}
	return s.fetcher.FetchReport(ctx, cred, req, s.pollOpts)
}
