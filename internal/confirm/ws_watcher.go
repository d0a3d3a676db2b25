package confirm

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/solana"
)

// expiryCheckInterval is how often the WS watcher re-checks the
// blockhash validity window while waiting for the push notification.
const expiryCheckInterval = 5 * time.Second

// WSWatcher waits for a signatureSubscribe push instead of polling.
// The subscription only fires once the target commitment is reached,
// so expiry still has to be detected by periodic block height checks.
// On any subscription problem it falls back to the polling watcher.
type WSWatcher struct {
	ws       solana.WSClient
	rpc      solana.RPCClient
	fallback *Watcher
}

// NewWSWatcher creates a push-based confirmation watcher with a polling
// fallback.
func NewWSWatcher(ws solana.WSClient, rpc solana.RPCClient, opts ...WatcherOption) *WSWatcher {
	return &WSWatcher{
		ws:       ws,
		rpc:      rpc,
		fallback: NewWatcher(rpc, opts...),
	}
}

// AwaitFinality blocks until the signature reaches a terminal state,
// with the same semantics as the polling watcher.
func (w *WSWatcher) AwaitFinality(ctx context.Context, signature string, blockhash solana.Blockhash) (*domain.TransactionOutcome, error) {
	ch, err := w.ws.SubscribeSignature(ctx, signature, w.fallback.commitment)
	if err != nil {
		log.Printf("[confirm] signature subscription failed, falling back to polling: %v", err)
		return w.fallback.AwaitFinality(ctx, signature, blockhash)
	}

	ticker := time.NewTicker(expiryCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case note, ok := <-ch:
			if !ok {
				// Connection dropped before the notification arrived.
				log.Printf("[confirm] subscription channel closed, falling back to polling")
				return w.fallback.AwaitFinality(ctx, signature, blockhash)
			}
			if note.Err != nil {
				return &domain.TransactionOutcome{
					Signature: signature,
					Finality:  domain.FinalityFailed,
					Slot:      note.Slot,
					ErrDetail: fmt.Sprintf("%v", note.Err),
				}, nil
			}
			return &domain.TransactionOutcome{
				Signature: signature,
				Finality:  domain.FinalityConfirmed,
				Slot:      note.Slot,
			}, nil

		case <-ticker.C:
			height, err := w.rpc.GetBlockHeight(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Printf("[confirm] block height check failed, will retry: %v", err)
				continue
			}
			if height > blockhash.LastValidBlockHeight {
				return &domain.TransactionOutcome{
					Signature: signature,
					Finality:  domain.FinalityExpired,
				}, nil
			}
		}
	}
}
