package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrRateLimited is returned when the RPC endpoint answers 429.
var ErrRateLimited = errors.New("rate limited (429)")

// RPCError is a JSON-RPC 2.0 error response from the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// IsPreflightFailure reports whether the error came from preflight
// transaction simulation.
func (e *RPCError) IsPreflightFailure() bool {
	// -32002: SendTransactionPreflightFailure
	return e.Code == -32002
}

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
//
// Idempotent read methods retry transient failures with exponential
// backoff. SendTransaction never retries: one call is one submission.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	commitment  Commitment
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithCommitment sets the commitment level used for reads and preflight.
func WithCommitment(commitment Commitment) ClientOption {
	return func(c *HTTPClient) {
		c.commitment = commitment
	}
}

// WithMaxRetries sets maximum retry attempts for idempotent reads.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		commitment:  CommitmentConfirmed,
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

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// callOnce performs a single JSON-RPC call with no retries.
func (c *HTTPClient) callOnce(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", method, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// callIdempotent performs a JSON-RPC call with retries and exponential
// backoff. Only safe for read methods.
func (c *HTTPClient) callIdempotent(ctx context.Context, method string, params []interface{}, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := c.callOnce(ctx, method, params, result)
		if err == nil {
			return nil
		}
		// RPC-level errors are definitive, not transient.
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetLatestBlockhash retrieves a fresh blockhash and its validity window.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	params := []interface{}{
		map[string]interface{}{"commitment": string(c.commitment)},
	}

	var result struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.callIdempotent(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}
	if result.Value.Blockhash == "" {
		return nil, fmt.Errorf("empty blockhash in response")
	}

	return &Blockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// SendTransaction submits a base64-encoded signed transaction.
// Never retried here; preflight simulation always on; the node's own
// rebroadcast loop is disabled via maxRetries 0.
func (c *HTTPClient) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	params := []interface{}{
		txBase64,
		map[string]interface{}{
			"encoding":            "base64",
			"skipPreflight":       false,
			"preflightCommitment": string(c.commitment),
			"maxRetries":          0,
		},
	}

	var signature string
	if err := c.callOnce(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	if signature == "" {
		return "", fmt.Errorf("empty signature in sendTransaction response")
	}
	return signature, nil
}

// GetSignatureStatuses retrieves confirmation status for signatures.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	params := []interface{}{
		signatures,
		map[string]interface{}{"searchTransactionHistory": false},
	}

	var result struct {
		Value []*struct {
			Slot               int64       `json:"slot"`
			Confirmations      *int        `json:"confirmations"`
			Err                interface{} `json:"err"`
			ConfirmationStatus string      `json:"confirmationStatus"`
		} `json:"value"`
	}
	if err := c.callIdempotent(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}

	statuses := make([]*SignatureStatus, len(result.Value))
	for i, v := range result.Value {
		if v == nil {
			continue
		}
		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			Err:                v.Err,
			ConfirmationStatus: Commitment(v.ConfirmationStatus),
		}
	}
	return statuses, nil
}

// GetBlockHeight retrieves the current block height.
func (c *HTTPClient) GetBlockHeight(ctx context.Context) (uint64, error) {
	params := []interface{}{
		map[string]interface{}{"commitment": string(c.commitment)},
	}

	var height uint64
	if err := c.callIdempotent(ctx, "getBlockHeight", params, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// GetBalance retrieves the lamport balance of an account.
func (c *HTTPClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{"commitment": string(c.commitment)},
	}

	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.callIdempotent(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

var _ RPCClient = (*HTTPClient)(nil)
