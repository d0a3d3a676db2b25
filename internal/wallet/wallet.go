// Package wallet defines the signer capability the pipeline depends
// on. The pipeline never holds key material: a Signer is injected by
// the caller (browser wallet adapter, local keypair, test double).
package wallet

import (
	"context"
	"fmt"

	"solana-deposit-pipeline/internal/txn"
)

// SignKind classifies signer failures.
type SignKind string

const (
	// SignUserRejected means the user declined the signature prompt.
	// Retriable by the user without re-fetching instructions.
	SignUserRejected SignKind = "USER_REJECTED"

	// SignWalletUnavailable means no signer is connected or it stopped
	// responding.
	SignWalletUnavailable SignKind = "WALLET_UNAVAILABLE"
)

// SignError is the classified failure of one signature request.
type SignError struct {
	Kind   SignKind
	Detail string
}

func (e *SignError) Error() string {
	return fmt.Sprintf("sign transaction: %s: %s", e.Kind, e.Detail)
}

// Signer is the connected wallet capability.
type Signer interface {
	// PublicKey returns the wallet address, or ok=false when no wallet
	// is connected.
	PublicKey() (address string, ok bool)

	// SignTransaction signs the transaction's message and returns the
	// signed form. Fails with *SignError when the signer refuses or is
	// absent. The request may block until the user responds; it honors
	// ctx cancellation.
	SignTransaction(ctx context.Context, unsigned *txn.UnsignedTransaction) (*txn.SignedTransaction, error)
}
