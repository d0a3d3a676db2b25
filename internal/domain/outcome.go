package domain

// Finality represents the confirmation state of a broadcast transaction.
type Finality string

const (
	FinalityPending   Finality = "PENDING"
	FinalityConfirmed Finality = "CONFIRMED"
	FinalityFailed    Finality = "FAILED"
	// FinalityExpired means the blockhash validity window elapsed before
	// confirmation. The transaction may still land; the user should check
	// an explorer. Deliberately distinct from FinalityFailed.
	FinalityExpired Finality = "EXPIRED"
)

// String returns the string representation of Finality.
func (f Finality) String() string {
	return string(f)
}

// IsTerminal reports whether the state is final.
func (f Finality) IsTerminal() bool {
	return f == FinalityConfirmed || f == FinalityFailed || f == FinalityExpired
}

// TransactionOutcome tracks one broadcast transaction to its terminal
// state. Created PENDING at broadcast; mutated only by the confirmation
// watcher.
type TransactionOutcome struct {
	Signature string   // transaction id, base58
	Finality  Finality // PENDING | CONFIRMED | FAILED | EXPIRED
	Slot      int64    // slot of confirmation, 0 if not confirmed
	ErrDetail string   // on-chain error detail for FAILED, empty otherwise
}
