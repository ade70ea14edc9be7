// Package backend is the HTTP client for the inventory and RAG backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/pkg/config"
	"github.com/ammerola/medboard/internal/pkg/logger"
	"github.com/ammerola/medboard/internal/pkg/metrics"
)

// Backend paths not covered by the query endpoints in ports.
const (
	pathInventory       = "/api/inventory"
	pathExpiring        = "/api/inventory/expiring"
	pathActivity        = "/api/activity"
	pathUpdateInventory = "/update_inventory"
	pathEstimate        = "/api/estimate"
	pathUpload          = "/upload"
	pathReset           = "/reset"
)

const maxErrorBody = 4 << 10

// Config holds backend client settings
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxIdleConns int
	// GetRetries is the number of extra attempts for idempotent reads.
	GetRetries uint64
}

// ConfigFrom maps application config onto client settings
func ConfigFrom(cfg config.BackendConfig) Config {
	return Config{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		MaxIdleConns: cfg.MaxIdleConns,
		GetRetries:   uint64(max(cfg.GetRetries, 0)),
	}
}

// Client implements ports.BackendClient over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	retries uint64
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ ports.BackendClient = (*Client)(nil)

// NewClient creates a backend client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		retries: cfg.GetRetries,
		logger:  logger.With(slog.String("component", "backend_client")),
	}
}

// WithMetrics records call counts and latency per endpoint
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

func (c *Client) FetchInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	if err := c.getJSON(ctx, pathInventory, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) FetchExpiring(ctx context.Context) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	if err := c.getJSON(ctx, pathExpiring, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) FetchActivity(ctx context.Context) ([]domain.ActivityEntry, error) {
	var entries []domain.ActivityEntry
	if err := c.getJSON(ctx, pathActivity, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) UpdateQuantity(ctx context.Context, id int64, quantity int) error {
	body := map[string]any{"id": id, "quantity": quantity}
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.postJSON(ctx, pathUpdateInventory, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "update was not acknowledged"
		}
		return &domain.BackendError{Endpoint: pathUpdateInventory, Message: msg}
	}
	return nil
}

// answer is the {result}|{error} envelope of the query endpoints.
type answer struct {
	Result *string `json:"result"`
	Error  string  `json:"error"`
}

func (a answer) text(endpoint string) (string, error) {
	if a.Error != "" {
		return "", &domain.BackendError{Endpoint: endpoint, Message: a.Error}
	}
	if a.Result == nil {
		return "", &domain.BackendError{Endpoint: endpoint, Message: "response has neither result nor error"}
	}
	return *a.Result, nil
}

func (c *Client) Query(ctx context.Context, query string) (string, error) {
	var resp answer
	if err := c.postJSON(ctx, ports.EndpointQuery, map[string]string{"query": query}, &resp); err != nil {
		return "", err
	}
	return resp.text(ports.EndpointQuery)
}

func (c *Client) MedicalQuery(ctx context.Context, req domain.QueryRequest) (string, error) {
	body := map[string]string{
		"queryType":      string(req.QueryType),
		"symptoms":       req.Symptoms,
		"patientDetails": req.PatientDetails,
	}
	var resp answer
	if err := c.postJSON(ctx, ports.EndpointMedicalQuery, body, &resp); err != nil {
		return "", err
	}
	return resp.text(ports.EndpointMedicalQuery)
}

func (c *Client) Estimate(ctx context.Context, req domain.EstimateRequest) (*domain.EstimateResult, error) {
	var raw json.RawMessage
	if err := c.postJSON(ctx, pathEstimate, req, &raw); err != nil {
		return nil, err
	}
	var result domain.EstimateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &domain.BackendError{Endpoint: pathEstimate, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	result.Raw = raw
	return &result, nil
}

// UploadDocument posts r as the multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, filename string, r io.Reader) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathUpload, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req, pathUpload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) ResetDocuments(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathReset, nil)
	if err != nil {
		return fmt.Errorf("failed to build reset request: %w", err)
	}
	resp, err := c.do(req, pathReset)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// getJSON retries transport failures and 5xx responses with exponential
// backoff; 4xx and decode failures are permanent.
func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.do(req, path)
		if err != nil {
			var netErr *domain.NetworkError
			if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.StatusCode >= 400 && netErr.StatusCode < 500) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		return backoff.Permanent(decode(resp.Body, path, dest))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.retries), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "Retrying backend read",
			slog.String("endpoint", path),
			slog.Duration("wait", wait),
			logger.Err(err))
	})
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}

func (c *Client) postJSON(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp.Body, path, dest)
}

// do sends req and maps transport failures and non-2xx statuses to
// *domain.NetworkError. A client-side deadline becomes *domain.TimeoutError.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isClientTimeout(err) && req.Context().Err() == nil {
			c.metrics.ObserveBackend(endpoint, metrics.OutcomeTimeout, elapsed)
			return nil, &domain.TimeoutError{Endpoint: endpoint, After: c.http.Timeout}
		}
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		c.metrics.ObserveBackend(endpoint, outcome, elapsed)
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: err}
	}

	c.logger.DebugContext(req.Context(), "Backend call",
		slog.String("method", req.Method),
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", elapsed))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveBackend(endpoint, metrics.OutcomeError, elapsed)
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.NetworkError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(snippet))),
		}
	}
	c.metrics.ObserveBackend(endpoint, metrics.OutcomeSuccess, elapsed)
	return resp, nil
}

func isClientTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func decode(r io.Reader, endpoint string, dest any) error {
	if err := json.NewDecoder(r).Decode(dest); err != nil {
		return &domain.BackendError{Endpoint: endpoint, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}
