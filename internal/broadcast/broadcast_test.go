package broadcast

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"

	"solana-deposit-pipeline/internal/solana"
	"solana-deposit-pipeline/internal/solana/stub"
	"solana-deposit-pipeline/internal/txn"
	"solana-deposit-pipeline/internal/wallet"
)

func testSigned(t *testing.T) *txn.SignedTransaction {
	t.Helper()

	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, 32))
	feePayer := base58.Encode(priv.Public().(ed25519.PublicKey))
	program := base58.Encode(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{6}, 32)).Public().(ed25519.PublicKey))

	unsigned, err := txn.Build([]txn.Instruction{
		{ProgramID: program, Data: []byte{1, 2, 3}},
	}, feePayer, &solana.Blockhash{
		Hash:                 base58.Encode(bytes.Repeat([]byte{9}, 32)),
		LastValidBlockHeight: 1000,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	signed, err := txn.NewSignedTransaction(unsigned, [][]byte{ed25519.Sign(priv, unsigned.Message())})
	if err != nil {
		t.Fatalf("NewSignedTransaction() error = %v", err)
	}
	return signed
}

func TestSend(t *testing.T) {
	rpc := stub.NewRPCClient()
	signed := testSigned(t)
	rpc.SendResult = signed.ID()

	sig, err := NewBroadcaster(rpc).Send(context.Background(), signed)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if sig != signed.ID() {
		t.Errorf("signature = %s, want %s", sig, signed.ID())
	}
	if rpc.CountCalls("sendTransaction") != 1 {
		t.Errorf("sendTransaction called %d times, want exactly 1", rpc.CountCalls("sendTransaction"))
	}
}

func TestSend_SimulationFailed(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SendErr = &solana.RPCError{Code: -32002, Message: "Transaction simulation failed: custom program error: 0x1"}

	_, err := NewBroadcaster(rpc).Send(context.Background(), testSigned(t))

	var bErr *BroadcastError
	if !errors.As(err, &bErr) {
		t.Fatalf("error type = %T, want *BroadcastError", err)
	}
	if bErr.Kind != BroadcastSimulationFailed {
		t.Errorf("Kind = %s, want %s", bErr.Kind, BroadcastSimulationFailed)
	}
	if bErr.Detail != "Transaction simulation failed: custom program error: 0x1" {
		t.Errorf("Detail = %q, want the node's simulation message", bErr.Detail)
	}
}

func TestSend_RateLimited(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SendErr = fmt.Errorf("sendTransaction: %w", solana.ErrRateLimited)

	_, err := NewBroadcaster(rpc).Send(context.Background(), testSigned(t))

	var bErr *BroadcastError
	if !errors.As(err, &bErr) {
		t.Fatalf("error type = %T, want *BroadcastError", err)
	}
	if bErr.Kind != BroadcastRateLimited {
		t.Errorf("Kind = %s, want %s", bErr.Kind, BroadcastRateLimited)
	}
	if !errors.Is(err, solana.ErrRateLimited) {
		t.Error("BroadcastError should unwrap to ErrRateLimited")
	}
}

func TestSend_NetworkError(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SendErr = errors.New("connection reset by peer")

	_, err := NewBroadcaster(rpc).Send(context.Background(), testSigned(t))

	var bErr *BroadcastError
	if !errors.As(err, &bErr) {
		t.Fatalf("error type = %T, want *BroadcastError", err)
	}
	if bErr.Kind != BroadcastNetwork {
		t.Errorf("Kind = %s, want %s", bErr.Kind, BroadcastNetwork)
	}
	if rpc.CountCalls("sendTransaction") != 1 {
		t.Errorf("sendTransaction called %d times, want exactly 1 (no resubmission)", rpc.CountCalls("sendTransaction"))
	}
}

type rejectingSigner struct{}

func (rejectingSigner) PublicKey() (string, bool) { return "", false }

func (rejectingSigner) SignTransaction(context.Context, *txn.UnsignedTransaction) (*txn.SignedTransaction, error) {
	return nil, &wallet.SignError{Kind: wallet.SignUserRejected, Detail: "user closed the prompt"}
}

func TestSignAndSend_SignErrorPassesThrough(t *testing.T) {
	rpc := stub.NewRPCClient()
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, 32))
	feePayer := base58.Encode(priv.Public().(ed25519.PublicKey))
	program := base58.Encode(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{6}, 32)).Public().(ed25519.PublicKey))

	unsigned, err := txn.Build([]txn.Instruction{
		{ProgramID: program, Data: []byte{1}},
	}, feePayer, &solana.Blockhash{
		Hash:                 base58.Encode(bytes.Repeat([]byte{9}, 32)),
		LastValidBlockHeight: 1000,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	_, err = NewBroadcaster(rpc).SignAndSend(context.Background(), unsigned, rejectingSigner{})

	var signErr *wallet.SignError
	if !errors.As(err, &signErr) {
		t.Fatalf("error type = %T, want *wallet.SignError", err)
	}
	if signErr.Kind != wallet.SignUserRejected {
		t.Errorf("Kind = %s, want %s", signErr.Kind, wallet.SignUserRejected)
	}
	if rpc.CountCalls("sendTransaction") != 0 {
		t.Error("nothing may reach the network after a rejected signature")
	}
}
