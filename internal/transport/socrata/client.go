// Package socrata is a thin HTTP client for the Socrata Open Data API
// (SODA), which serves the SECOP procurement datasets.
package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
	"github.com/civica-cloud/secoql/internal/metrics"
)

const appTokenHeader = "X-App-Token"

// Client queries Socrata resource endpoints and decodes their JSON rows.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appToken   string
	logger     *zap.Logger
}

// Config holds the Socrata connection settings.
type Config struct {
	Domain   string
	AppToken string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// New creates a Socrata client for cfg.Domain.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := cfg.Domain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		appToken:   cfg.AppToken,
		logger:     cfg.Logger,
	}
}

// Query fetches rows from `/resource/{dataset}.json` with params as SoQL
// query parameters.
func (c *Client) Query(
	ctx context.Context, dataset string, params map[string]string,
) ([]domain.Row, error) {
	endpoint := fmt.Sprintf("%s/resource/%s.json", c.baseURL, url.PathEscape(dataset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	if c.appToken != "" {
		req.Header.Set(appTokenHeader, c.appToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("socrata request: %w", err)
	}
	defer resp.Body.Close()

	metrics.RemoteRequestDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		metrics.RemoteRequestsTotal.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("socrata status %d: %s", resp.StatusCode, body)
	}

	var rows []domain.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode socrata response: %w", err)
	}

	metrics.RemoteRequestsTotal.WithLabelValues("success").Inc()
	c.logger.Debug("Socrata query completed",
		zap.String("dataset", dataset),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// HealthCheck verifies the Socrata host is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/views/metadata/v1?limit=1", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.appToken != "" {
		req.Header.Set(appTokenHeader, c.appToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("socrata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("socrata status %d", resp.StatusCode)
	}
	return nil
}
