package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-deposit-pipeline/internal/txn"
)

// Keypair is a local ed25519 signer, used by the CLI and by tests.
// Not a custody solution; real deployments inject a wallet adapter.
type Keypair struct {
	priv    ed25519.PrivateKey
	address string
}

// NewKeypair wraps an ed25519 private key.
func NewKeypair(priv ed25519.PrivateKey) (*Keypair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	pub := priv.Public().(ed25519.PublicKey)
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("public key is not on the ed25519 curve")
	}
	return &Keypair{priv: priv, address: base58.Encode(pub)}, nil
}

// LoadKeypairFile reads a Solana CLI keypair file: a JSON array of 64
// bytes (32-byte seed followed by the 32-byte public key).
func LoadKeypairFile(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}

	var bytes []byte
	if err := json.Unmarshal(raw, &bytes); err != nil {
		return nil, fmt.Errorf("parse keypair file: %w", err)
	}
	if len(bytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair file holds %d bytes, want %d", len(bytes), ed25519.PrivateKeySize)
	}

	return NewKeypair(ed25519.PrivateKey(bytes))
}

// PublicKey returns the wallet address. A loaded keypair is always
// connected.
func (k *Keypair) PublicKey() (string, bool) {
	return k.address, true
}

// SignTransaction signs the message with the keypair. Fails with
// *SignError{WalletUnavailable} if the transaction requires a signer
// this keypair cannot satisfy.
func (k *Keypair) SignTransaction(ctx context.Context, unsigned *txn.UnsignedTransaction) (*txn.SignedTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signers := unsigned.SignerAddresses()
	msg := unsigned.Message()

	sigs := make([][]byte, len(signers))
	for i, addr := range signers {
		if addr != k.address {
			return nil, &SignError{
				Kind:   SignWalletUnavailable,
				Detail: fmt.Sprintf("transaction requires signer %s, wallet holds %s", addr, k.address),
			}
		}
		sigs[i] = ed25519.Sign(k.priv, msg)
	}

	signed, err := txn.NewSignedTransaction(unsigned, sigs)
	if err != nil {
		return nil, &SignError{Kind: SignWalletUnavailable, Detail: err.Error()}
	}
	return signed, nil
}

var _ Signer = (*Keypair)(nil)
