// Package stub provides in-memory solana collaborators for testing.
package stub

import (
	"context"
	"errors"
	"sync"

	"solana-deposit-pipeline/internal/solana"
)

// ErrNoBlockhash is returned when the stub has no blockhash scripted.
var ErrNoBlockhash = errors.New("stub: no blockhash scripted")

// RPCClient implements solana.RPCClient for testing.
//
// Behavior is scripted by populating the exported fields; every call is
// appended to Calls so tests can assert ordering.
type RPCClient struct {
	mu    sync.Mutex
	Calls []string

	// Blockhashes are returned by GetLatestBlockhash in order; the last
	// one repeats once the script is exhausted.
	Blockhashes []*solana.Blockhash

	// SendResult / SendErr script SendTransaction.
	SendResult string
	SendErr    error

	// Statuses are returned by GetSignatureStatuses in order; the last
	// entry repeats. Each element is the per-signature status (single
	// signature assumed).
	Statuses   []*solana.SignatureStatus
	StatusErr  error
	statusIdx  int
	blockIdx   int
	heightIdx  int

	// BlockHeights are returned by GetBlockHeight in order; last repeats.
	BlockHeights []uint64

	// Balance is returned by GetBalance.
	Balance uint64
}

// NewRPCClient creates a new stub RPC client with a single usable
// blockhash scripted.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Blockhashes: []*solana.Blockhash{
			{Hash: "GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W", LastValidBlockHeight: 1000},
		},
		SendResult:   "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
		BlockHeights: []uint64{100},
	}
}

func (c *RPCClient) record(call string) {
	c.mu.Lock()
	c.Calls = append(c.Calls, call)
	c.mu.Unlock()
}

// CallNames returns a snapshot of the recorded call sequence.
func (c *RPCClient) CallNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.Calls))
	copy(out, c.Calls)
	return out
}

// CountCalls returns how many times the named method was called.
func (c *RPCClient) CountCalls(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.Calls {
		if call == name {
			n++
		}
	}
	return n
}

// GetLatestBlockhash returns the next scripted blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.record("getLatestBlockhash")
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Blockhashes) == 0 {
		return nil, ErrNoBlockhash
	}
	i := c.blockIdx
	if i >= len(c.Blockhashes) {
		i = len(c.Blockhashes) - 1
	}
	c.blockIdx++
	bh := *c.Blockhashes[i]
	return &bh, nil
}

// SendTransaction returns the scripted result or error.
func (c *RPCClient) SendTransaction(_ context.Context, _ string) (string, error) {
	c.record("sendTransaction")
	if c.SendErr != nil {
		return "", c.SendErr
	}
	return c.SendResult, nil
}

// GetSignatureStatuses returns the next scripted status for each signature.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.record("getSignatureStatuses")
	if c.StatusErr != nil {
		return nil, c.StatusErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var status *solana.SignatureStatus
	if len(c.Statuses) > 0 {
		i := c.statusIdx
		if i >= len(c.Statuses) {
			i = len(c.Statuses) - 1
		}
		c.statusIdx++
		status = c.Statuses[i]
	}

	out := make([]*solana.SignatureStatus, len(signatures))
	for i := range signatures {
		out[i] = status
	}
	return out, nil
}

// GetBlockHeight returns the next scripted block height.
func (c *RPCClient) GetBlockHeight(_ context.Context) (uint64, error) {
	c.record("getBlockHeight")
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.BlockHeights) == 0 {
		return 0, nil
	}
	i := c.heightIdx
	if i >= len(c.BlockHeights) {
		i = len(c.BlockHeights) - 1
	}
	c.heightIdx++
	return c.BlockHeights[i], nil
}

// GetBalance returns the scripted balance.
func (c *RPCClient) GetBalance(_ context.Context, _ string) (uint64, error) {
	c.record("getBalance")
	return c.Balance, nil
}

var _ solana.RPCClient = (*RPCClient)(nil)
