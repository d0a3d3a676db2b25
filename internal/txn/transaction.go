package txn

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-deposit-pipeline/internal/solana"
)

// UnsignedTransaction is a compiled legacy transaction awaiting
// signatures. The blockhash it carries must have been fetched after
// decoding and immediately before Build; it must not be reused across
// runs once expired.
type UnsignedTransaction struct {
	FeePayer     string
	Blockhash    solana.Blockhash
	Instructions []Instruction

	message []byte
	signers []string
}

// Build assembles decoded instructions, a fee payer and a fresh
// blockhash into an unsigned transaction. Instruction order is
// preserved exactly; identical inputs produce identical message bytes.
func Build(instructions []Instruction, feePayer string, blockhash *solana.Blockhash) (*UnsignedTransaction, error) {
	if len(instructions) == 0 {
		return nil, buildErr(ErrEmptyInstructionSet, "no instructions to include")
	}
	if blockhash == nil || blockhash.Hash == "" {
		return nil, buildErr(nil, "missing blockhash")
	}
	if err := validateFeePayer(feePayer); err != nil {
		return nil, buildErr(nil, "fee payer %s: %v", feePayer, err)
	}

	msg, signers, err := compileMessage(instructions, feePayer, blockhash.Hash)
	if err != nil {
		return nil, buildErr(nil, "%v", err)
	}

	ins := make([]Instruction, len(instructions))
	copy(ins, instructions)

	return &UnsignedTransaction{
		FeePayer:     feePayer,
		Blockhash:    *blockhash,
		Instructions: ins,
		message:      msg,
		signers:      signers,
	}, nil
}

// validateFeePayer requires a base58 32-byte key on the ed25519 curve:
// the fee payer must be able to produce a signature, so a program
// derived address can never pay fees.
func validateFeePayer(feePayer string) error {
	raw, err := base58.Decode(feePayer)
	if err != nil {
		return fmt.Errorf("not base58: %v", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("decodes to %d bytes, want 32", len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("not an on-curve key")
	}
	return nil
}

// Message returns a copy of the serialized message bytes to sign.
func (t *UnsignedTransaction) Message() []byte {
	out := make([]byte, len(t.message))
	copy(out, t.message)
	return out
}

// SignerAddresses returns the ordered addresses whose signatures the
// message requires. The fee payer is always first.
func (t *UnsignedTransaction) SignerAddresses() []string {
	out := make([]string, len(t.signers))
	copy(out, t.signers)
	return out
}

// SignedTransaction is an unsigned transaction plus signatures bound to
// its signer set. Never mutated after creation; owned by the broadcast
// step.
type SignedTransaction struct {
	unsigned   *UnsignedTransaction
	signatures [][]byte
}

// NewSignedTransaction binds signatures to the transaction. Signatures
// must match the required signer order and count, and each must verify
// against the message.
func NewSignedTransaction(unsigned *UnsignedTransaction, signatures [][]byte) (*SignedTransaction, error) {
	if len(signatures) != len(unsigned.signers) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSignatureCount, len(signatures), len(unsigned.signers))
	}
	sigs := make([][]byte, len(signatures))
	for i, sig := range signatures {
		if len(sig) != ed25519.SignatureSize {
			return nil, fmt.Errorf("signature %d: %d bytes, want %d", i, len(sig), ed25519.SignatureSize)
		}
		pub, err := base58.Decode(unsigned.signers[i])
		if err != nil {
			return nil, fmt.Errorf("signer %d: %v", i, err)
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), unsigned.message, sig) {
			return nil, fmt.Errorf("signature %d does not verify for %s", i, unsigned.signers[i])
		}
		s := make([]byte, len(sig))
		copy(s, sig)
		sigs[i] = s
	}
	return &SignedTransaction{unsigned: unsigned, signatures: sigs}, nil
}

// Serialize returns the wire form: compact-u16 signature count, the
// 64-byte signatures in signer order, then the message.
func (t *SignedTransaction) Serialize() []byte {
	var out []byte
	out = appendCompactU16(out, len(t.signatures))
	for _, sig := range t.signatures {
		out = append(out, sig...)
	}
	out = append(out, t.unsigned.message...)
	return out
}

// Base64 returns the wire form base64-encoded for sendTransaction.
func (t *SignedTransaction) Base64() string {
	return base64.StdEncoding.EncodeToString(t.Serialize())
}

// ID returns the transaction id: the fee payer signature, base58.
func (t *SignedTransaction) ID() string {
	return base58.Encode(t.signatures[0])
}

// FeePayer returns the fee payer address.
func (t *SignedTransaction) FeePayer() string {
	return t.unsigned.FeePayer
}

// Blockhash returns the freshness token the transaction was built with.
func (t *SignedTransaction) Blockhash() solana.Blockhash {
	return t.unsigned.Blockhash
}
