package http

import (
	"time"

	"github.com/cohortanalysis/golang_services/internal/amazon/ads"
	"github.com/cohortanalysis/golang_services/internal/amazon/spapi"
	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
)

// GenericErrorResponse for API errors
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SellerQuery is the common ?seller_id= parameter.
type SellerQuery struct {
	SellerID string `validate:"required,max=100"`
}

type OrdersQuery struct {
	SellerID string `validate:"required,max=100"`
	Days     int    `validate:"gte=0,lte=365"`
}

type AdvertiserQuery struct {
	AdvertiserID string `validate:"required,max=100"`
}

type SellerCallbackQuery struct {
	Code             string `validate:"required"`
	SellingPartnerID string `validate:"max=100"`
	State            string `validate:"required"`
}

type AdvertiserCallbackQuery struct {
	Code  string `validate:"required"`
	State string `validate:"required"`
}

type ReportVariantDTO struct {
	Name        string `json:"name"`
	ReportType  string `json:"report_type"`
	Window      string `json:"window"`
	Days        int    `json:"days,omitempty"`
	Description string `json:"description,omitempty"`
}

type ListVariantsResponse struct {
	Variants []ReportVariantDTO `json:"variants"`
}

// ReportErrorResponse is written for failed report fetches.
type ReportErrorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	ReportID   string `json:"report_id,omitempty"`
	LastStatus string `json:"last_status,omitempty"`
	Retryable  bool   `json:"retryable"`
}

type ReportPreviewResponse struct {
	SellerID string `json:"seller_id"`
	Variant  string `json:"variant"`
	*domain.ReportPreview
}

type JobAcceptedResponse struct {
	JobID     string           `json:"job_id"`
	Status    domain.JobStatus `json:"status"`
	StatusURL string           `json:"status_url"`
	CreatedAt time.Time        `json:"created_at"`
}

type MarketplaceParticipationResponse struct {
	SellerID                 string                           `json:"seller_id"`
	MarketplaceParticipation []spapi.MarketplaceParticipation `json:"marketplace_participation"`
}

type OrdersResponse struct {
	SellerID  string        `json:"seller_id"`
	Days      int           `json:"days"`
	Orders    []spapi.Order `json:"orders"`
	NextToken string        `json:"next_token,omitempty"`
}

type ProfilesResponse struct {
	AdvertiserID string        `json:"advertiser_id"`
	Profiles     []ads.Profile `json:"profiles"`
}
