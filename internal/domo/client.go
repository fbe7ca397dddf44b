// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package domo is the client for the Domo Data API: OAuth
// client-credentials token exchange, dataset metadata (row counts),
// and bulk CSV export. All calls run behind a circuit breaker and a
// bounded exponential-backoff retry, since a full export can take
// minutes against a dataset of several hundred thousand rows.
package domo

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/stoagroup/leasing-backend/internal/config"
	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/metrics"
)

// Metadata is the cheap per-dataset descriptor used for change
// detection before committing to a full export.
type Metadata struct {
	RowCount    int64
	ColumnCount int
	UpdatedAt   time.Time
}

// apiRate paces outbound Domo calls. The Data API allows far more,
// but a sequential sync has no reason to burst.
const apiRate = rate.Limit(5)

// Client talks to the Domo Data API.
type Client struct {
	cfg        *config.DomoConfig
	httpClient *http.Client
	breaker    *breaker
	limiter    *rate.Limiter

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	retryAttempts int
	retryDelay    time.Duration
}

// NewClient creates a Domo API client.
func NewClient(cfg *config.DomoConfig, syncCfg *config.SyncConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			// Per-call deadlines come from contexts; the transport
			// timeout is a backstop for the longest allowed export.
			Timeout: cfg.ExportTimeout + time.Minute,
		},
		breaker:       newBreaker("domo-api"),
		limiter:       rate.NewLimiter(apiRate, 2),
		retryAttempts: syncCfg.RetryAttempts,
		retryDelay:    syncCfg.RetryDelay,
	}
}

// tokenResponse is the OAuth token exchange payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token, refreshing it via the
// client-credentials grant when missing or within a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TokenTimeout)
	defer cancel()

	u := c.cfg.BaseURL + "/oauth/token?" + url.Values{"grant_type": {"client_credentials"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("token").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	logging.Debug().Time("expires", c.tokenExpiry).Msg("Domo access token refreshed")
	return c.accessToken, nil
}

// datasetMetadataResponse is the subset of the dataset descriptor the
// sync path needs.
type datasetMetadataResponse struct {
	Rows      int64  `json:"rows"`
	Columns   int    `json:"columns"`
	UpdatedAt string `json:"updatedAt"`
}

// GetDatasetMetadata fetches the row count for a dataset. This is the
// cheap call the change detector uses to decide whether a full export
// is worth it.
func (c *Client) GetDatasetMetadata(ctx context.Context, datasetID string) (*Metadata, error) {
	var meta *Metadata
	err := c.retry(ctx, func() error {
		m, err := c.fetchMetadata(ctx, datasetID)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	return meta, err
}

func (c *Client) fetchMetadata(ctx context.Context, datasetID string) (*Metadata, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.MetadataTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/v1/datasets/%s", c.cfg.BaseURL, url.PathEscape(datasetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	start := time.Now()
	resp, err := c.do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("metadata").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request for %s returned %d", datasetID, resp.StatusCode)
	}

	var dm datasetMetadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dm); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}

	meta := &Metadata{RowCount: dm.Rows, ColumnCount: dm.Columns}
	if dm.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, dm.UpdatedAt); err == nil {
			meta.UpdatedAt = t
		}
	}
	return meta, nil
}

// ExportRows exports a full dataset as CSV and parses it into untyped
// rows keyed by the header names. The Data API exports CSV; JSON
// export is not reliably supported.
func (c *Client) ExportRows(ctx context.Context, datasetID string) ([]map[string]string, error) {
	var rows []map[string]string
	err := c.retry(ctx, func() error {
		r, err := c.fetchExport(ctx, datasetID)
		if err != nil {
			return err
		}
		rows = r
		return nil
	})
	return rows, err
}

func (c *Client) fetchExport(ctx context.Context, datasetID string) ([]map[string]string, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExportTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/v1/datasets/%s/data?%s", c.cfg.BaseURL, url.PathEscape(datasetID),
		url.Values{"includeHeader": {"true"}, "format": {"csv"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build export request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	start := time.Now()
	resp, err := c.do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("export").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("export request failed: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export request for %s returned %d", datasetID, resp.StatusCode)
	}

	rows, err := ParseCSVRows(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export for %s: %w", datasetID, err)
	}
	return rows, nil
}

// ParseCSVRows parses a headered CSV stream into untyped rows. Short
// records pad with empty strings; the typed parse downstream treats
// those as NULLs.
func ParseCSVRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(rows)+2, err)
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// do executes an HTTP request, paced by the rate limiter and guarded
// by the circuit breaker.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.breaker.execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
}

// retry runs fn with exponential backoff, bounded by the configured
// attempt count. Context cancellation stops the retry loop.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.MaxInterval = 30 * time.Second

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err != nil && attempt < c.retryAttempts {
			logging.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", c.retryAttempts).Msg("Domo request retry")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retryAttempts-1)), ctx))
}

// closeBody drains and closes a response body so the connection can be
// reused.
func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
