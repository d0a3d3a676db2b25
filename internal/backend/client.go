// Package backend is the HTTP client for the remote instruction
// service that describes the on-chain operations funding a deposit.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-deposit-pipeline/internal/domain"
)

// DefaultTimeout bounds one fetch round trip.
const DefaultTimeout = 30 * time.Second

// Client calls the instruction service. It never retries; retry policy
// is a whole-pipeline restart owned by the orchestrator.
type Client struct {
	endpoint string
	client   *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates an instruction service client for the endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetchRequest is the wire form of the deposit parameters.
type fetchRequest struct {
	WalletAddress   string  `json:"walletAddress"`
	ContentID       string  `json:"contentId"`
	SizeBytes       int64   `json:"sizeBytes"`
	DurationSeconds int64   `json:"durationSeconds"`
	DepositAmount   float64 `json:"depositAmount"`
}

// fetchResponse is the service's success envelope.
type fetchResponse struct {
	Instructions []domain.InstructionDescriptor `json:"instructions"`
}

// errorResponse is the service's failure envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// FetchInstructions asks the service to describe the instructions for
// one deposit. Returns a non-empty descriptor list or a *FetchError.
func (c *Client) FetchInstructions(ctx context.Context, req *domain.DepositRequest) ([]domain.InstructionDescriptor, error) {
	body, err := json.Marshal(fetchRequest{
		WalletAddress:   req.WalletAddress,
		ContentID:       req.ContentID,
		SizeBytes:       req.SizeBytes,
		DurationSeconds: req.DurationSeconds,
		DepositAmount:   req.DepositAmount,
	})
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Detail: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Detail: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Detail: fmt.Sprintf("http request: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Detail: fmt.Sprintf("read response: %v", err), HTTPStatus: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Kind:       FetchBackendRejected,
			Detail:     backendErrorDetail(respBody),
			HTTPStatus: resp.StatusCode,
		}
	}

	var parsed fetchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &FetchError{
			Kind:       FetchBackendRejected,
			Detail:     fmt.Sprintf("malformed success response: %v", err),
			HTTPStatus: resp.StatusCode,
		}
	}

	if len(parsed.Instructions) == 0 {
		return nil, &FetchError{
			Kind:       FetchEmptyResponse,
			Detail:     "service returned no instructions for this deposit",
			HTTPStatus: resp.StatusCode,
		}
	}

	return parsed.Instructions, nil
}

// backendErrorDetail extracts the machine-readable error message from a
// failure body, synthesizing a generic detail when the body is not the
// documented envelope.
func backendErrorDetail(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return "unknown backend error"
}
