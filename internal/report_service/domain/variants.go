package domain

import (
	"fmt"
	"sort"
	"time"
)

// WindowKind selects how a variant's data window is computed.
type WindowKind string

const (
	WindowRelative      WindowKind = "relative"       // Days before now until now
	WindowPreviousMonth WindowKind = "previous_month" // whole previous calendar month
	WindowMonthToDate   WindowKind = "month_to_date"  // first of this month until now
)

// WindowPolicy is configuration data; Resolve turns it into concrete timestamps.
type WindowPolicy struct {
	Kind WindowKind `json:"kind"`
	Days int        `json:"days,omitempty"`
}

// Resolve returns [start, end) for now. Calendar windows are computed in UTC.
func (w WindowPolicy) Resolve(now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	switch w.Kind {
	case WindowRelative:
		if w.Days <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("relative window needs a positive day count, got %d", w.Days)
		}
		return now.AddDate(0, 0, -w.Days), now, nil
	case WindowPreviousMonth:
		return monthStart.AddDate(0, -1, 0), monthStart, nil
	case WindowMonthToDate:
		return monthStart, now, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown window kind %q", w.Kind)
}

// ReportVariant binds an HTTP-facing name to a report type and window.
type ReportVariant struct {
	Name        string       `json:"name"`
	ReportType  string       `json:"report_type"`
	Window      WindowPolicy `json:"window"`
	Description string       `json:"description"`
}

// Request builds the ReportRequest for this variant at time now.
func (v ReportVariant) Request(now time.Time, marketplaceIDs []string) (ReportRequest, error) {
	start, end, err := v.Window.Resolve(now)
	if err != nil {
		return ReportRequest{}, fmt.Errorf("variant %s: %w", v.Name, err)
	}
	return ReportRequest{
		ReportType:     v.ReportType,
		DataStartTime:  start,
		DataEndTime:    end,
		MarketplaceIDs: append([]string(nil), marketplaceIDs...),
	}, nil
}

// VariantCatalog is the lookup table used by the route dispatcher.
type VariantCatalog struct {
	variants map[string]ReportVariant
}

func NewVariantCatalog(variants ...ReportVariant) *VariantCatalog {
	c := &VariantCatalog{variants: make(map[string]ReportVariant, len(variants))}
	for _, v := range variants {
		c.variants[v.Name] = v
	}
	return c
}

func (c *VariantCatalog) Get(name string) (ReportVariant, error) {
	v, ok := c.variants[name]
	if !ok {
		return ReportVariant{}, fmt.Errorf("%w: %s", ErrUnknownVariant, name)
	}
	return v, nil
}

// List returns the variants sorted by name.
func (c *VariantCatalog) List() []ReportVariant {
	out := make([]ReportVariant, 0, len(c.variants))
	for _, v := range c.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultVariants are the SP-API report endpoints exposed by the public API.
func DefaultVariants() []ReportVariant {
	return []ReportVariant{
		{
			Name:        "orders",
			ReportType:  "GET_FLAT_FILE_ALL_ORDERS_DATA_BY_ORDER_DATE_GENERAL",
			Window:      WindowPolicy{Kind: WindowRelative, Days: 30},
			Description: "All orders by order date, last 30 days",
		},
		{
			Name:        "orders_last_7_days",
			ReportType:  "GET_FLAT_FILE_ALL_ORDERS_DATA_BY_ORDER_DATE_GENERAL",
			Window:      WindowPolicy{Kind: WindowRelative, Days: 7},
			Description: "All orders by order date, last 7 days",
		},
		{
			Name:        "sales_traffic",
			ReportType:  "GET_SALES_AND_TRAFFIC_REPORT",
			Window:      WindowPolicy{Kind: WindowRelative, Days: 30},
			Description: "Sales and traffic business report, last 30 days",
		},
		{
			Name:        "inventory",
			ReportType:  "GET_FBA_MYI_UNSUPPRESSED_INVENTORY_DATA",
			Window:      WindowPolicy{Kind: WindowRelative, Days: 1},
			Description: "FBA manage inventory snapshot",
		},
		{
			Name:        "returns",
			ReportType:  "GET_FBA_FULFILLMENT_CUSTOMER_RETURNS_DATA",
			Window:      WindowPolicy{Kind: WindowPreviousMonth},
			Description: "FBA customer returns for the previous calendar month",
		},
		{
			Name:        "listings",
			ReportType:  "GET_MERCHANT_LISTINGS_ALL_DATA",
			Window:      WindowPolicy{Kind: WindowMonthToDate},
			Description: "All listings, month to date",
		},
	}
}
