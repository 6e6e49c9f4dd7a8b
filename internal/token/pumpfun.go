package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrRejected is returned when the launch service rejects a request.
// Rejections are not retried.
var ErrRejected = errors.New("launch service rejected request")

// PumpFunClient implements Launcher against a pump.fun-compatible launch
// service HTTP API.
type PumpFunClient struct {
	endpoint    string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

var _ Launcher = (*PumpFunClient)(nil)

// ClientOption configures PumpFunClient.
type ClientOption func(*PumpFunClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *PumpFunClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *PumpFunClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *PumpFunClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *PumpFunClient) {
		c.client = client
	}
}

// NewPumpFunClient creates a launch service client.
func NewPumpFunClient(endpoint, apiKey string, opts ...ClientOption) *PumpFunClient {
	c := &PumpFunClient{
		endpoint:    endpoint,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateToken mints a new token and buys the initial supply with the
// dev-buy amount. Creation is NOT idempotent on the service side, so only
// transport-level failures before a response are retried.
func (c *PumpFunClient) CreateToken(ctx context.Context, params CreateTokenParams) (*CreateTokenResult, error) {
	if params.Name == "" || params.Symbol == "" {
		return nil, fmt.Errorf("%w: name and symbol required", ErrRejected)
	}

	body := map[string]interface{}{
		"name":           params.Name,
		"symbol":         params.Symbol,
		"devBuyLamports": params.DevBuyLamports,
	}
	if params.MetadataRef != "" {
		body["metadataUri"] = params.MetadataRef
	}

	raw, err := c.post(ctx, "/api/tokens", body, false)
	if err != nil {
		return nil, err
	}

	mint := gjson.GetBytes(raw, "mint")
	sig := gjson.GetBytes(raw, "signature")
	supply := gjson.GetBytes(raw, "tokensReceived")
	if !mint.Exists() || !sig.Exists() {
		return nil, fmt.Errorf("create token: malformed response: %s", truncate(raw))
	}

	return &CreateTokenResult{
		Mint:            mint.String(),
		ConfirmedSupply: supply.Int(),
		TxRef:           sig.String(),
	}, nil
}

// Transfer sends amount raw token units to toAddress.
func (c *PumpFunClient) Transfer(ctx context.Context, mint, toAddress string, amount int64) (string, error) {
	if err := ValidateWalletAddress(toAddress); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("%w: non-positive amount %d", ErrRejected, amount)
	}

	body := map[string]interface{}{
		"mint":   mint,
		"to":     toAddress,
		"amount": amount,
	}

	raw, err := c.post(ctx, "/api/transfers", body, true)
	if err != nil {
		return "", err
	}

	sig := gjson.GetBytes(raw, "signature")
	if !sig.Exists() {
		return "", fmt.Errorf("transfer: malformed response: %s", truncate(raw))
	}
	return sig.String(), nil
}

// post performs a JSON POST with retries and exponential backoff. 4xx
// responses are rejections and are never retried. Transport errors (the
// request never produced a response) are always retried; 429 and 5xx are
// retried only when retryResponses is set. Creation passes false: the
// service is not idempotent, and a 5xx does not prove the request failed.
func (c *PumpFunClient) post(ctx context.Context, path string, payload map[string]interface{}, retryResponses bool) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if !retryResponses {
				return nil, lastErr
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			if !retryResponses {
				return nil, lastErr
			}
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			msg := gjson.GetBytes(respBody, "error").String()
			if msg == "" {
				msg = string(respBody)
			}
			return nil, fmt.Errorf("%w: %s (status %d)", ErrRejected, msg, resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody))
			if !retryResponses {
				return nil, lastErr
			}
			continue
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
