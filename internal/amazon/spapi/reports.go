package spapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
	"github.com/klauspost/compress/gzip"
)

const reportsPath = "/reports/2021-06-30"

// maxDocumentSize caps downloaded report documents after decompression.
const maxDocumentSize = 512 << 20

type createReportRequest struct {
	ReportType     string   `json:"reportType"`
	MarketplaceIDs []string `json:"marketplaceIds"`
	DataStartTime  string   `json:"dataStartTime"`
	DataEndTime    string   `json:"dataEndTime"`
}

type createReportResponse struct {
	ReportID string `json:"reportId"`
}

type reportResponse struct {
	ReportID         string `json:"reportId"`
	ReportType       string `json:"reportType"`
	ProcessingStatus string `json:"processingStatus"`
	ReportDocumentID string `json:"reportDocumentId"`
}

type reportDocumentResponse struct {
	ReportDocumentID     string `json:"reportDocumentId"`
	URL                  string `json:"url"`
	CompressionAlgorithm string `json:"compressionAlgorithm"`
}

// SubmitReport calls createReport. An empty id with a nil error means the API accepted
// the request without assigning a report.
func (c *Client) SubmitReport(ctx context.Context, req domain.ReportRequest) (string, error) {
	body := createReportRequest{
		ReportType:     req.ReportType,
		MarketplaceIDs: req.MarketplaceIDs,
		DataStartTime:  req.DataStartTime.UTC().Format(time.RFC3339),
		DataEndTime:    req.DataEndTime.UTC().Format(time.RFC3339),
	}
	var resp createReportResponse
	if err := c.do(ctx, http.MethodPost, reportsPath+"/reports", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.ReportID, nil
}

// GetReportStatus calls getReport.
func (c *Client) GetReportStatus(ctx context.Context, reportID string) (*domain.ReportJob, error) {
	var resp reportResponse
	if err := c.do(ctx, http.MethodGet, reportsPath+"/reports/"+url.PathEscape(reportID), nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.ReportID == "" {
		resp.ReportID = reportID
	}
	return &domain.ReportJob{
		ReportID:         resp.ReportID,
		ProcessingStatus: domain.ProcessingStatus(resp.ProcessingStatus),
		ReportDocumentID: resp.ReportDocumentID,
	}, nil
}

// GetReportDocument resolves the document download URL and returns the
// decompressed document bytes.
func (c *Client) GetReportDocument(ctx context.Context, documentID string) ([]byte, error) {
	var doc reportDocumentResponse
	if err := c.do(ctx, http.MethodGet, reportsPath+"/documents/"+url.PathEscape(documentID), nil, nil, &doc); err != nil {
		return nil, err
	}
	if doc.URL == "" {
		return nil, fmt.Errorf("report document %s has no download url", documentID)
	}
	return c.download(ctx, doc.URL, doc.CompressionAlgorithm)
}

// download fetches a pre-signed document URL. It must not carry the access token.
func (c *Client) download(ctx context.Context, rawURL, compression string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create document request: %w", err)
	}
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to download report document: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &APIError{StatusCode: httpResp.StatusCode, RawBody: string(raw)}
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read report document: %w", err)
	}
	if len(raw) > maxDocumentSize {
		return nil, fmt.Errorf("report document exceeds %d bytes", maxDocumentSize)
	}

	switch strings.ToUpper(compression) {
	case "":
		return raw, nil
	case "GZIP":
		return gunzip(raw)
	}
	return nil, fmt.Errorf("unsupported report compression %q", compression)
}

func gunzip(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening gzip report document: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing report document: %w", err)
	}
	if len(out) > maxDocumentSize {
		return nil, fmt.Errorf("report document exceeds %d bytes", maxDocumentSize)
	}
	return out, nil
}
