// Package confirm tracks broadcast transactions to a terminal state:
// confirmed at the target commitment, definitively failed on chain, or
// expired past the blockhash validity window.
package confirm

import (
	"context"
	"log"
	"time"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/solana"
)

// DefaultPollInterval is the status polling cadence.
const DefaultPollInterval = 2 * time.Second

// Watcher polls getSignatureStatuses until the transaction reaches a
// terminal state. Transient RPC failures are tolerated; the poll just
// runs again. The caller bounds total waiting through ctx.
type Watcher struct {
	rpc          solana.RPCClient
	commitment   solana.Commitment
	pollInterval time.Duration
}

// WatcherOption configures Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets the status polling cadence.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithCommitment sets the commitment level treated as confirmed.
func WithCommitment(c solana.Commitment) WatcherOption {
	return func(w *Watcher) {
		w.commitment = c
	}
}

// NewWatcher creates a polling confirmation watcher.
func NewWatcher(rpc solana.RPCClient, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		rpc:          rpc,
		commitment:   solana.CommitmentConfirmed,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AwaitFinality blocks until the signature reaches a terminal state.
// The blockhash the transaction was built with bounds the wait: once
// the chain's block height passes its validity window without a
// confirmation, the outcome is EXPIRED, not FAILED. An expired
// transaction may still have landed; the caller should direct the user
// to an explorer rather than resubmit.
func (w *Watcher) AwaitFinality(ctx context.Context, signature string, blockhash solana.Blockhash) (*domain.TransactionOutcome, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		outcome, err := w.checkOnce(ctx, signature, blockhash)
		if err != nil {
			return nil, err
		}
		if outcome != nil {
			return outcome, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkOnce performs one status poll. Returns a terminal outcome, or
// nil to keep polling. Only ctx errors abort the watch.
func (w *Watcher) checkOnce(ctx context.Context, signature string, blockhash solana.Blockhash) (*domain.TransactionOutcome, error) {
	statuses, err := w.rpc.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[confirm] status poll failed, will retry: %v", err)
		return nil, nil
	}

	var status *solana.SignatureStatus
	if len(statuses) > 0 {
		status = statuses[0]
	}

	if status.Failed() {
		return &domain.TransactionOutcome{
			Signature: signature,
			Finality:  domain.FinalityFailed,
			Slot:      status.Slot,
			ErrDetail: status.ErrDetail(),
		}, nil
	}
	if status != nil && status.ConfirmationStatus.AtLeast(w.commitment) {
		return &domain.TransactionOutcome{
			Signature: signature,
			Finality:  domain.FinalityConfirmed,
			Slot:      status.Slot,
		}, nil
	}

	height, err := w.rpc.GetBlockHeight(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[confirm] block height poll failed, will retry: %v", err)
		return nil, nil
	}
	if height > blockhash.LastValidBlockHeight {
		return &domain.TransactionOutcome{
			Signature: signature,
			Finality:  domain.FinalityExpired,
		}, nil
	}

	return nil, nil
}
