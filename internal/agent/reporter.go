package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lanwatch/internal/domain"
	"lanwatch/internal/service"
)

// ReportPath is the collector endpoint that accepts observation batches
const ReportPath = "/api/agent/report"

// DefaultSubmitTimeout bounds one HTTP submission
const DefaultSubmitTimeout = 10 * time.Second

const maxErrorBody = 512

// HTTPReporter posts batches to a remote collector
type HTTPReporter struct {
	url    string
	client *http.Client
}

// NewHTTPReporter creates a reporter for the collector at baseURL
func NewHTTPReporter(baseURL string, timeout time.Duration) *HTTPReporter {
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &HTTPReporter{
		url:    strings.TrimRight(baseURL, "/") + ReportPath,
		client: &http.Client{Timeout: timeout},
	}
}

// Report submits batch in a single request. Any transport failure or non-2xx
// response is returned wrapped in domain.ErrTransport.
func (r *HTTPReporter) Report(ctx context.Context, batch []domain.Observation) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: collector returned %d: %s",
			domain.ErrTransport, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LocalReporter submits batches to a ReportService in the same process
type LocalReporter struct {
	reports *service.ReportService
}

// NewLocalReporter creates a reporter backed by reports
func NewLocalReporter(reports *service.ReportService) *LocalReporter {
	return &LocalReporter{reports: reports}
}

// Report reconciles batch directly
func (r *LocalReporter) Report(ctx context.Context, batch []domain.Observation) error {
	_, err := r.reports.Submit(ctx, batch)
	return err
}
