package domain

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// DepositRequest describes one storage deposit the user wants to fund.
// Immutable once handed to the pipeline; created by the UI shell from
// form state.
type DepositRequest struct {
	WalletAddress   string  // fee payer, base58-encoded 32-byte key
	ContentID       string  // content identifier on the storage network
	SizeBytes       int64   // content size, >= 0
	DurationSeconds int64   // retention duration, > 0
	DepositAmount   float64 // SOL to deposit, >= 0
}

// ValidationError reports a bad user input, caught before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the request against the pipeline's input constraints.
// Returns nil if the request may enter the pipeline.
func (r *DepositRequest) Validate() error {
	if r.WalletAddress == "" {
		return &ValidationError{Field: "walletAddress", Reason: "missing"}
	}
	if err := ValidateAddress(r.WalletAddress); err != nil {
		return &ValidationError{Field: "walletAddress", Reason: err.Error()}
	}
	if r.ContentID == "" {
		return &ValidationError{Field: "contentId", Reason: "missing"}
	}
	if r.SizeBytes < 0 {
		return &ValidationError{Field: "sizeBytes", Reason: "must be >= 0"}
	}
	if r.DurationSeconds <= 0 {
		return &ValidationError{Field: "durationSeconds", Reason: "must be > 0"}
	}
	if r.DepositAmount < 0 {
		return &ValidationError{Field: "depositAmount", Reason: "must be >= 0"}
	}
	return nil
}

// ValidateAddress checks that s is a syntactically valid Solana address:
// base58, decoding to exactly 32 bytes.
func ValidateAddress(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("not base58: %v", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("decodes to %d bytes, want 32", len(raw))
	}
	return nil
}
