package txn

// AccountMeta names one account an instruction touches and the
// privileges the transaction must grant it.
type AccountMeta struct {
	PublicKey  string // base58-encoded 32 bytes
	IsSigner   bool
	IsWritable bool
}

// Instruction is the native representation of one on-chain operation,
// produced by the decoder from a backend descriptor. Data stays opaque.
type Instruction struct {
	ProgramID string // base58-encoded 32 bytes
	Accounts  []AccountMeta
	Data      []byte
}
