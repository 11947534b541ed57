package spapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Marketplace struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	CountryCode         string `json:"countryCode"`
	DefaultCurrencyCode string `json:"defaultCurrencyCode"`
	DefaultLanguageCode string `json:"defaultLanguageCode"`
	DomainName          string `json:"domainName"`
}

type Participation struct {
	IsParticipating      bool `json:"isParticipating"`
	HasSuspendedListings bool `json:"hasSuspendedListings"`
}

type MarketplaceParticipation struct {
	Marketplace   Marketplace   `json:"marketplace"`
	Participation Participation `json:"participation"`
}

// GetMarketplaceParticipations lists the marketplaces the seller can sell in.
func (c *Client) GetMarketplaceParticipations(ctx context.Context) ([]MarketplaceParticipation, error) {
	var resp struct {
		Payload []MarketplaceParticipation `json:"payload"`
	}
	if err := c.do(ctx, http.MethodGet, "/sellers/v1/marketplaceParticipations", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

type Money struct {
	CurrencyCode string `json:"CurrencyCode"`
	Amount       string `json:"Amount"`
}

// Order carries the commonly used fields of an SP-API order.
type Order struct {
	AmazonOrderID          string `json:"AmazonOrderId"`
	PurchaseDate           string `json:"PurchaseDate"`
	LastUpdateDate         string `json:"LastUpdateDate"`
	OrderStatus            string `json:"OrderStatus"`
	FulfillmentChannel     string `json:"FulfillmentChannel,omitempty"`
	SalesChannel           string `json:"SalesChannel,omitempty"`
	MarketplaceID          string `json:"MarketplaceId"`
	OrderTotal             *Money `json:"OrderTotal,omitempty"`
	NumberOfItemsShipped   int    `json:"NumberOfItemsShipped"`
	NumberOfItemsUnshipped int    `json:"NumberOfItemsUnshipped"`
}

type OrdersPage struct {
	Orders        []Order `json:"Orders"`
	NextToken     string  `json:"NextToken,omitempty"`
	CreatedBefore string  `json:"CreatedBefore,omitempty"`
}

// GetOrders returns the first page of orders created after createdAfter.
func (c *Client) GetOrders(ctx context.Context, createdAfter time.Time, marketplaceIDs []string) (*OrdersPage, error) {
	q := url.Values{}
	q.Set("MarketplaceIds", strings.Join(marketplaceIDs, ","))
	q.Set("CreatedAfter", createdAfter.UTC().Format(time.RFC3339))

	var resp struct {
		Payload OrdersPage `json:"payload"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/v0/orders", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Payload, nil
}
