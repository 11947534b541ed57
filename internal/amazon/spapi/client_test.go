package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cohortanalysis/golang_services/internal/amazon/lwa"
	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(context.Context, core_domain.SellerCredential) (string, error) {
	return s.token, s.err
}

var testCred = core_domain.SellerCredential{PartnerID: "A1SELLER", AppID: "app", AppSecret: "secret", RefreshToken: "Atzr|x"}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewClientFactory(server.URL, server.Client(), staticTokens{token: "Atza|access"}, logger)
	return factory.Client(testCred), server
}

func TestClient_SubmitReport(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reports/2021-06-30/reports", r.URL.Path)
		assert.Equal(t, "Atza|access", r.Header.Get("x-amz-access-token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "GET_MERCHANT_LISTINGS_ALL_DATA", body["reportType"])
		assert.Equal(t, []any{"ATVPDKIKX0DER"}, body["marketplaceIds"])
		assert.Equal(t, "2024-03-01T00:00:00Z", body["dataStartTime"])
		assert.Equal(t, "2024-03-15T12:00:00Z", body["dataEndTime"])

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"reportId":"50039018869"}`))
	}))

	id, err := client.SubmitReport(context.Background(), domain.ReportRequest{
		ReportType:     "GET_MERCHANT_LISTINGS_ALL_DATA",
		DataStartTime:  time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		DataEndTime:    time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
		MarketplaceIDs: []string{"ATVPDKIKX0DER"},
	})

	require.NoError(t, err)
	assert.Equal(t, "50039018869", id)
}

func TestClient_SubmitReport_APIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"code":"Unauthorized","message":"Access to requested resource is denied.","details":""}]}`))
	}))

	_, err := client.SubmitReport(context.Background(), domain.ReportRequest{ReportType: "X"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Unauthorized", apiErr.Errors[0].Code)
	assert.False(t, apiErr.Temporary())
	assert.Contains(t, err.Error(), "Access to requested resource is denied.")
}

func TestClient_GetReportStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reports/2021-06-30/reports/R1", r.URL.Path)
		w.Write([]byte(`{"reportId":"R1","reportType":"GET_MERCHANT_LISTINGS_ALL_DATA","processingStatus":"DONE","reportDocumentId":"amzn1.spdoc.1"}`))
	}))

	job, err := client.GetReportStatus(context.Background(), "R1")

	require.NoError(t, err)
	assert.Equal(t, &domain.ReportJob{ReportID: "R1", ProcessingStatus: domain.StatusDone, ReportDocumentID: "amzn1.spdoc.1"}, job)
}

func TestClient_GetReportStatus_Throttled(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"errors":[{"code":"QuotaExceeded","message":"You exceeded your quota for the requested resource."}]}`))
	}))

	_, err := client.GetReportStatus(context.Background(), "R1")

	var te domain.TemporaryError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Temporary())
}

func TestClient_GetReportDocument(t *testing.T) {
	const content = "sku\tprice\nA-1\t9.99\n"

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name        string
		compression string
		payload     []byte
	}{
		{"plain", "", []byte(content)},
		{"gzip", "GZIP", gz.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			client, server := newTestClient(t, mux)
			mux.HandleFunc("/reports/2021-06-30/documents/D1", func(w http.ResponseWriter, r *http.Request) {
				resp := map[string]string{"reportDocumentId": "D1", "url": server.URL + "/s3/doc"}
				if tt.compression != "" {
					resp["compressionAlgorithm"] = tt.compression
				}
				json.NewEncoder(w).Encode(resp)
			})
			mux.HandleFunc("/s3/doc", func(w http.ResponseWriter, r *http.Request) {
				assert.Empty(t, r.Header.Get("x-amz-access-token"))
				w.Write(tt.payload)
			})

			raw, err := client.GetReportDocument(context.Background(), "D1")

			require.NoError(t, err)
			assert.Equal(t, content, string(raw))
		})
	}
}

func TestClient_GetReportDocument_Errors(t *testing.T) {
	t.Run("unsupported compression", func(t *testing.T) {
		mux := http.NewServeMux()
		client, server := newTestClient(t, mux)
		mux.HandleFunc("/reports/2021-06-30/documents/D1", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"reportDocumentId":"D1","url":"` + server.URL + `/s3/doc","compressionAlgorithm":"ZSTD"}`))
		})
		mux.HandleFunc("/s3/doc", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("x")) })

		_, err := client.GetReportDocument(context.Background(), "D1")
		assert.ErrorContains(t, err, "unsupported report compression")
	})

	t.Run("expired url", func(t *testing.T) {
		mux := http.NewServeMux()
		client, server := newTestClient(t, mux)
		mux.HandleFunc("/reports/2021-06-30/documents/D1", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"reportDocumentId":"D1","url":"` + server.URL + `/s3/doc"}`))
		})
		mux.HandleFunc("/s3/doc", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("<Error><Code>AccessDenied</Code></Error>"))
		})

		_, err := client.GetReportDocument(context.Background(), "D1")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})

	t.Run("empty document", func(t *testing.T) {
		mux := http.NewServeMux()
		client, server := newTestClient(t, mux)
		mux.HandleFunc("/reports/2021-06-30/documents/D1", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"reportDocumentId":"D1","url":"` + server.URL + `/s3/doc","compressionAlgorithm":"GZIP"}`))
		})
		mux.HandleFunc("/s3/doc", func(w http.ResponseWriter, r *http.Request) {})

		raw, err := client.GetReportDocument(context.Background(), "D1")
		require.NoError(t, err)
		assert.Empty(t, raw)
	})
}

func TestClient_TokenError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokenErr := errors.New("invalid_grant")
	client := NewClient("http://127.0.0.1:1", nil, staticTokens{err: tokenErr}, testCred, logger)

	_, err := client.GetReportStatus(context.Background(), "R1")
	assert.ErrorIs(t, err, tokenErr)
}

func TestClient_SubmitReport_SlowTokenRefreshHonoursDeadline(t *testing.T) {
	lwaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"Atza|late","token_type":"bearer","expires_in":3600}`))
	}))
	defer lwaServer.Close()

	var apiCalls atomic.Int32
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"reportId":"R1"}`))
	}))
	defer apiServer.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := lwa.NewClient(lwaServer.URL, lwaServer.Client())
	client := NewClientFactory(apiServer.URL, apiServer.Client(), tokens, logger).Client(testCred)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := client.SubmitReport(ctx, domain.ReportRequest{ReportType: "GET_MERCHANT_LISTINGS_ALL_DATA"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, apiCalls.Load())
}

func TestClient_GetMarketplaceParticipations(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sellers/v1/marketplaceParticipations", r.URL.Path)
		w.Write([]byte(`{"payload":[{"marketplace":{"id":"ATVPDKIKX0DER","name":"Amazon.com","countryCode":"US","defaultCurrencyCode":"USD","defaultLanguageCode":"en_US","domainName":"www.amazon.com"},"participation":{"isParticipating":true,"hasSuspendedListings":false}}]}`))
	}))

	got, err := client.GetMarketplaceParticipations(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ATVPDKIKX0DER", got[0].Marketplace.ID)
	assert.True(t, got[0].Participation.IsParticipating)
}

func TestClient_GetOrders(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/v0/orders", r.URL.Path)
		assert.Equal(t, "ATVPDKIKX0DER,A2EUQ1WTGCTBG2", r.URL.Query().Get("MarketplaceIds"))
		assert.Equal(t, "2024-03-08T00:00:00Z", r.URL.Query().Get("CreatedAfter"))
		w.Write([]byte(`{"payload":{"Orders":[{"AmazonOrderId":"113-1","PurchaseDate":"2024-03-09T10:00:00Z","OrderStatus":"Shipped","MarketplaceId":"ATVPDKIKX0DER","OrderTotal":{"CurrencyCode":"USD","Amount":"19.98"},"NumberOfItemsShipped":2}],"NextToken":"next"}}`))
	}))

	page, err := client.GetOrders(context.Background(), time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC), []string{"ATVPDKIKX0DER", "A2EUQ1WTGCTBG2"})

	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "113-1", page.Orders[0].AmazonOrderID)
	assert.Equal(t, "19.98", page.Orders[0].OrderTotal.Amount)
	assert.Equal(t, 2, page.Orders[0].NumberOfItemsShipped)
	assert.Equal(t, "next", page.NextToken)
}
