package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"agent-performance-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPSource implements Source over the activity indexer's REST API.
type HTTPSource struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// SourceOption configures HTTPSource.
type SourceOption func(*HTTPSource)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) SourceOption {
	return func(s *HTTPSource) {
		s.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) SourceOption {
	return func(s *HTTPSource) {
		s.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) SourceOption {
	return func(s *HTTPSource) {
		s.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// NewHTTPSource creates a new activity source client.
func NewHTTPSource(endpoint string, opts ...SourceOption) *HTTPSource {
	s := &HTTPSource{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// txResponse is the indexer's wire format for one transaction.
type txResponse struct {
	Signature string `json:"signature"`
	Action    string `json:"action"`
	Success   bool   `json:"success"`
	NetUSD    int64  `json:"net_usd_micro"`
	GrossUSD  int64  `json:"gross_usd_micro"`
	Timestamp int64  `json:"timestamp_ms"`
}

// Transactions fetches wallet history with retries and exponential backoff.
func (s *HTTPSource) Transactions(ctx context.Context, wallet string, limit int) ([]domain.WalletTransaction, error) {
	endpoint := fmt.Sprintf("%s/v1/wallets/%s/transactions?limit=%d", s.endpoint, url.PathEscape(wallet), limit)

	delay := s.retryDelay
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * s.backoffMult)
			if delay > s.maxDelay {
				delay = s.maxDelay
			}
		}

		txs, err := s.fetch(ctx, endpoint)
		if err == nil {
			return txs, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch transactions for %s after %d attempts: %w", wallet, s.maxRetries+1, lastErr)
}

// fetch performs one request against the indexer.
func (s *HTTPSource) fetch(ctx context.Context, endpoint string) ([]domain.WalletTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var wire struct {
		Transactions []txResponse `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	txs := make([]domain.WalletTransaction, 0, len(wire.Transactions))
	for _, t := range wire.Transactions {
		txs = append(txs, domain.WalletTransaction{
			Signature: t.Signature,
			Action:    domain.Action(t.Action),
			Success:   t.Success,
			NetUSD:    t.NetUSD,
			GrossUSD:  t.GrossUSD,
			Timestamp: t.Timestamp,
		})
	}
	return txs, nil
}

// FinalizedHeight fetches the indexer's finalized chain height, letting
// the source double as the pipeline's height source.
func (s *HTTPSource) FinalizedHeight(ctx context.Context) (int64, error) {
	endpoint := s.endpoint + "/v1/height"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var wire struct {
		FinalizedHeight int64 `json:"finalized_height"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return wire.FinalizedHeight, nil
}

// Verify interface compliance at compile time.
var _ Source = (*HTTPSource)(nil)
