// Package broadcast owns the sign-then-send step: it requests the
// wallet signature and submits the signed transaction exactly once.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log"

	"solana-deposit-pipeline/internal/solana"
	"solana-deposit-pipeline/internal/txn"
	"solana-deposit-pipeline/internal/wallet"
)

// BroadcastKind classifies submission failures.
type BroadcastKind string

const (
	// BroadcastSimulationFailed means preflight simulation rejected the
	// transaction before it reached the network.
	BroadcastSimulationFailed BroadcastKind = "SIMULATION_FAILED"

	// BroadcastRateLimited means the RPC endpoint refused the request
	// with 429.
	BroadcastRateLimited BroadcastKind = "RATE_LIMITED"

	// BroadcastNetwork is any other transport or node failure.
	BroadcastNetwork BroadcastKind = "NETWORK"
)

// BroadcastError is the classified failure of one submission.
type BroadcastError struct {
	Kind   BroadcastKind
	Detail string
	err    error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast transaction: %s: %s", e.Kind, e.Detail)
}

func (e *BroadcastError) Unwrap() error {
	return e.err
}

// Broadcaster signs and submits transactions.
type Broadcaster struct {
	rpc solana.RPCClient
}

// NewBroadcaster creates a broadcaster over the RPC client.
func NewBroadcaster(rpc solana.RPCClient) *Broadcaster {
	return &Broadcaster{rpc: rpc}
}

// SignAndSend requests the wallet signature for the transaction and
// submits the signed form. Returns the transaction signature, a
// *wallet.SignError, or a *BroadcastError.
func (b *Broadcaster) SignAndSend(ctx context.Context, unsigned *txn.UnsignedTransaction, signer wallet.Signer) (string, error) {
	signed, err := signer.SignTransaction(ctx, unsigned)
	if err != nil {
		return "", err
	}
	return b.Send(ctx, signed)
}

// Send submits a signed transaction. Exactly one network submission: a
// failed send is never resubmitted here, the caller restarts the whole
// pipeline with a fresh blockhash instead.
func (b *Broadcaster) Send(ctx context.Context, signed *txn.SignedTransaction) (string, error) {
	sig, err := b.rpc.SendTransaction(ctx, signed.Base64())
	if err != nil {
		return "", classify(err)
	}

	if sig != signed.ID() {
		// Both derive from the fee payer signature; a mismatch means
		// the node echoed a different transaction.
		log.Printf("[broadcast] signature mismatch: node=%s local=%s", sig, signed.ID())
	}
	return sig, nil
}

// classify maps an RPC send failure onto the broadcast taxonomy.
func classify(err error) *BroadcastError {
	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) && rpcErr.IsPreflightFailure() {
		return &BroadcastError{
			Kind:   BroadcastSimulationFailed,
			Detail: rpcErr.Message,
			err:    err,
		}
	}
	if errors.Is(err, solana.ErrRateLimited) {
		return &BroadcastError{
			Kind:   BroadcastRateLimited,
			Detail: "RPC endpoint rate limited the submission",
			err:    err,
		}
	}
	return &BroadcastError{
		Kind:   BroadcastNetwork,
		Detail: err.Error(),
		err:    err,
	}
}
