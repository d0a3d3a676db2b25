// Package decode converts backend instruction descriptors into the
// native instruction representation. Decoding is pure and strict:
// malformed fields are rejected, never coerced or dropped.
package decode

import (
	"encoding/base64"
	"fmt"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/txn"
)

// DecodeError reports a structural violation in a descriptor. A decode
// failure means the backend broke its contract; it is not retriable.
type DecodeError struct {
	Index  int    // descriptor position within the response
	Field  string // offending field, e.g. "programAddress", "accounts[2].address"
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("instruction %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Instruction decodes a single descriptor. idx is only used for error
// reporting.
func Instruction(desc domain.InstructionDescriptor, idx int) (txn.Instruction, error) {
	if err := domain.ValidateAddress(desc.ProgramAddress); err != nil {
		return txn.Instruction{}, &DecodeError{Index: idx, Field: "programAddress", Reason: err.Error()}
	}

	accounts := make([]txn.AccountMeta, len(desc.Accounts))
	for i, acc := range desc.Accounts {
		if err := domain.ValidateAddress(acc.Address); err != nil {
			return txn.Instruction{}, &DecodeError{
				Index:  idx,
				Field:  fmt.Sprintf("accounts[%d].address", i),
				Reason: err.Error(),
			}
		}
		accounts[i] = txn.AccountMeta{
			PublicKey:  acc.Address,
			IsSigner:   acc.IsSigner,
			IsWritable: acc.IsWritable,
		}
	}

	data, err := base64.StdEncoding.DecodeString(desc.Payload)
	if err != nil {
		return txn.Instruction{}, &DecodeError{Index: idx, Field: "payload", Reason: fmt.Sprintf("not base64: %v", err)}
	}

	return txn.Instruction{
		ProgramID: desc.ProgramAddress,
		Accounts:  accounts,
		Data:      data,
	}, nil
}

// Instructions decodes a descriptor list preserving order. The first
// malformed descriptor fails the whole batch.
func Instructions(descs []domain.InstructionDescriptor) ([]txn.Instruction, error) {
	out := make([]txn.Instruction, 0, len(descs))
	for i, desc := range descs {
		ins, err := Instruction(desc, i)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, nil
}
