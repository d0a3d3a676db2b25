package confirm

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/solana"
	"solana-deposit-pipeline/internal/solana/stub"
)

const testSignature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

func testWindow() solana.Blockhash {
	return solana.Blockhash{Hash: "GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W", LastValidBlockHeight: 1000}
}

func TestAwaitFinality_Confirmed(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Statuses = []*solana.SignatureStatus{
		nil, // not yet seen by the node
		{Slot: 500, ConfirmationStatus: solana.CommitmentProcessed},
		{Slot: 500, ConfirmationStatus: solana.CommitmentConfirmed},
	}

	w := NewWatcher(rpc, WithPollInterval(time.Millisecond))
	outcome, err := w.AwaitFinality(context.Background(), testSignature, testWindow())
	if err != nil {
		t.Fatalf("AwaitFinality() error = %v", err)
	}

	if outcome.Finality != domain.FinalityConfirmed {
		t.Errorf("Finality = %s, want %s", outcome.Finality, domain.FinalityConfirmed)
	}
	if outcome.Slot != 500 {
		t.Errorf("Slot = %d, want 500", outcome.Slot)
	}
	if outcome.Signature != testSignature {
		t.Errorf("Signature = %s, want the watched signature", outcome.Signature)
	}
	if rpc.CountCalls("getSignatureStatuses") != 3 {
		t.Errorf("polled %d times, want 3", rpc.CountCalls("getSignatureStatuses"))
	}
}

func TestAwaitFinality_FinalizedCommitment(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Statuses = []*solana.SignatureStatus{
		{Slot: 500, ConfirmationStatus: solana.CommitmentConfirmed},
		{Slot: 500, ConfirmationStatus: solana.CommitmentFinalized},
	}

	w := NewWatcher(rpc, WithPollInterval(time.Millisecond), WithCommitment(solana.CommitmentFinalized))
	outcome, err := w.AwaitFinality(context.Background(), testSignature, testWindow())
	if err != nil {
		t.Fatalf("AwaitFinality() error = %v", err)
	}

	if outcome.Finality != domain.FinalityConfirmed {
		t.Errorf("Finality = %s, want %s", outcome.Finality, domain.FinalityConfirmed)
	}
	// Confirmed is below the finalized target, so the first poll must
	// not terminate the watch.
	if rpc.CountCalls("getSignatureStatuses") != 2 {
		t.Errorf("polled %d times, want 2", rpc.CountCalls("getSignatureStatuses"))
	}
}

func TestAwaitFinality_Failed(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Statuses = []*solana.SignatureStatus{
		{Slot: 600, Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
	}

	w := NewWatcher(rpc, WithPollInterval(time.Millisecond))
	outcome, err := w.AwaitFinality(context.Background(), testSignature, testWindow())
	if err != nil {
		t.Fatalf("AwaitFinality() error = %v", err)
	}

	if outcome.Finality != domain.FinalityFailed {
		t.Errorf("Finality = %s, want %s", outcome.Finality, domain.FinalityFailed)
	}
	if outcome.Slot != 600 {
		t.Errorf("Slot = %d, want 600", outcome.Slot)
	}
	if outcome.ErrDetail == "" {
		t.Error("ErrDetail should carry the on-chain error")
	}
}

func TestAwaitFinality_Expired(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Statuses = nil // never seen
	rpc.BlockHeights = []uint64{900, 1000, 1001}

	w := NewWatcher(rpc, WithPollInterval(time.Millisecond))
	outcome, err := w.AwaitFinality(context.Background(), testSignature, testWindow())
	if err != nil {
		t.Fatalf("AwaitFinality() error = %v", err)
	}

	if outcome.Finality != domain.FinalityExpired {
		t.Errorf("Finality = %s, want %s", outcome.Finality, domain.FinalityExpired)
	}
	// Height 1000 equals the last valid height and must not expire the
	// watch; only 1001 does.
	if rpc.CountCalls("getBlockHeight") != 3 {
		t.Errorf("checked height %d times, want 3", rpc.CountCalls("getBlockHeight"))
	}
}

// flakyRPC fails the first status polls, then delegates to the stub.
type flakyRPC struct {
	*stub.RPCClient
	failures int
	polls    int
}

func (f *flakyRPC) GetSignatureStatuses(ctx context.Context, sigs []string) ([]*solana.SignatureStatus, error) {
	f.polls++
	if f.polls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.RPCClient.GetSignatureStatuses(ctx, sigs)
}

func TestAwaitFinality_TransientErrorRetried(t *testing.T) {
	inner := stub.NewRPCClient()
	inner.Statuses = []*solana.SignatureStatus{
		{Slot: 700, ConfirmationStatus: solana.CommitmentConfirmed},
	}
	rpc := &flakyRPC{RPCClient: inner, failures: 3}

	w := NewWatcher(rpc, WithPollInterval(time.Millisecond))
	outcome, err := w.AwaitFinality(context.Background(), testSignature, testWindow())
	if err != nil {
		t.Fatalf("AwaitFinality() error = %v", err)
	}
	if outcome.Finality != domain.FinalityConfirmed {
		t.Errorf("Finality = %s, want %s", outcome.Finality, domain.FinalityConfirmed)
	}
	if rpc.polls != 4 {
		t.Errorf("polled %d times, want 4 (three failures then success)", rpc.polls)
	}
}

func TestAwaitFinality_ContextCanceled(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Statuses = nil
	rpc.BlockHeights = []uint64{100}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w := NewWatcher(rpc, WithPollInterval(time.Millisecond))
	_, err := w.AwaitFinality(ctx, testSignature, testWindow())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}
