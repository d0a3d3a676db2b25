package solana

import "context"

// Commitment is a Solana confirmation level.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// AtLeast reports whether c is at or above the target level.
func (c Commitment) AtLeast(target Commitment) bool {
	return rank(c) >= rank(target)
}

func rank(c Commitment) int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// RPCClient defines the ledger RPC surface the deposit pipeline needs.
type RPCClient interface {
	// GetLatestBlockhash retrieves a fresh blockhash and its validity window.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SendTransaction submits a base64-encoded signed transaction.
	// Preflight simulation is always enabled and the node is told not to
	// resubmit internally. Exactly one network submission per call.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	// Result entries are nil for unknown signatures, positionally matching
	// the input.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetBlockHeight retrieves the current block height.
	GetBlockHeight(ctx context.Context) (uint64, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}
