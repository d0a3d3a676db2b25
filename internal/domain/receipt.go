package domain

// DepositReceipt is the persisted terminal record of one deposit
// attempt. Corresponds to deposit_receipts table in PostgreSQL.
type DepositReceipt struct {
	AttemptID       string // PRIMARY KEY, deterministic hash
	WalletAddress   string // fee payer
	ContentID       string // content identifier
	SizeBytes       int64
	DurationSeconds int64
	DepositAmount   float64

	EstimatedCost float64 // display-only estimate, never reconciled
	Signature     string  // transaction id, empty if never broadcast
	Finality      Finality
	FailedStage   string // stage name for FAILED, empty otherwise
	FailureDetail string // classified error detail, empty on success

	StartedAt  int64 // Unix timestamp in milliseconds
	FinishedAt int64 // Unix timestamp in milliseconds
}
