package solana

import "fmt"

// Blockhash is the freshness token required to build a transaction.
// It expires once the chain's block height passes LastValidBlockHeight.
type Blockhash struct {
	Hash                 string // base58-encoded 32 bytes
	LastValidBlockHeight uint64
}

// SignatureStatus is one entry from getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int
	Err                interface{} // on-chain error, nil if none
	ConfirmationStatus Commitment  // processed | confirmed | finalized
}

// Failed reports whether the transaction was definitively rejected
// on chain.
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != nil
}

// ErrDetail renders the on-chain error for user-facing reporting.
func (s *SignatureStatus) ErrDetail() string {
	if s == nil || s.Err == nil {
		return ""
	}
	return fmt.Sprintf("%v", s.Err)
}
