// Package orchestrator drives one deposit attempt end to end.
// Flow: fetch instructions → decode → build → sign → broadcast → confirm
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"solana-deposit-pipeline/internal/backend"
	"solana-deposit-pipeline/internal/broadcast"
	"solana-deposit-pipeline/internal/cost"
	"solana-deposit-pipeline/internal/decode"
	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/idhash"
	"solana-deposit-pipeline/internal/observability"
	"solana-deposit-pipeline/internal/solana"
	"solana-deposit-pipeline/internal/storage"
	"solana-deposit-pipeline/internal/txn"
	"solana-deposit-pipeline/internal/wallet"
)

// Pipeline stage names, in execution order.
const (
	StageFetching          = "FETCHING"
	StageDecoding          = "DECODING"
	StageBuilding          = "BUILDING"
	StageAwaitingSignature = "AWAITING_SIGNATURE"
	StageBroadcasting      = "BROADCASTING"
	StageConfirming        = "CONFIRMING"
)

// Stage update states.
const (
	StateStarted = "STARTED"
	StateOK      = "OK"
	StateFailed  = "FAILED"
)

// ErrRunInFlight is returned when Run is called while another run on
// the same orchestrator has not finished.
var ErrRunInFlight = errors.New("deposit run already in flight")

// StageUpdate is one entry of a run's append-only status log. Updates
// for a stage are emitted before its I/O starts, so an observer always
// knows which stage an attempt died in.
type StageUpdate struct {
	Stage  string
	State  string
	Detail string
	At     time.Time
}

// RunReport is the full record of one deposit attempt.
type RunReport struct {
	AttemptID     string
	EstimatedCost float64
	Signature     string
	Updates       []StageUpdate
	Outcome       *domain.TransactionOutcome
}

// InstructionFetcher retrieves instruction descriptors for a deposit.
// Implemented by backend.Client.
type InstructionFetcher interface {
	FetchInstructions(ctx context.Context, req *domain.DepositRequest) ([]domain.InstructionDescriptor, error)
}

// FinalityWatcher tracks a broadcast signature to a terminal state.
// Implemented by confirm.Watcher and confirm.WSWatcher.
type FinalityWatcher interface {
	AwaitFinality(ctx context.Context, signature string, blockhash solana.Blockhash) (*domain.TransactionOutcome, error)
}

// Orchestrator coordinates one deposit attempt at a time. Each run uses
// a fresh blockhash and produces a fresh signature; nothing from a
// previous run is ever reused.
type Orchestrator struct {
	fetcher     InstructionFetcher
	rpc         solana.RPCClient
	broadcaster *broadcast.Broadcaster
	watcher     FinalityWatcher
	signer      wallet.Signer
	estimator   *cost.Estimator

	// Optional stores; nil disables persistence.
	receiptStore storage.ReceiptStore
	eventStore   storage.StageEventStore

	// Optional status callback, invoked synchronously on every update.
	onStatus func(StageUpdate)

	verbose  bool
	inFlight atomic.Bool
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Fetcher     InstructionFetcher
	RPC         solana.RPCClient
	Broadcaster *broadcast.Broadcaster
	Watcher     FinalityWatcher
	Signer      wallet.Signer

	// Optional
	Estimator    *cost.Estimator
	ReceiptStore storage.ReceiptStore
	EventStore   storage.StageEventStore
	OnStatus     func(StageUpdate)
	Verbose      bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	estimator := opts.Estimator
	if estimator == nil {
		estimator = cost.NewEstimator(0)
	}
	return &Orchestrator{
		fetcher:      opts.Fetcher,
		rpc:          opts.RPC,
		broadcaster:  opts.Broadcaster,
		watcher:      opts.Watcher,
		signer:       opts.Signer,
		estimator:    estimator,
		receiptStore: opts.ReceiptStore,
		eventStore:   opts.EventStore,
		onStatus:     opts.OnStatus,
		verbose:      opts.Verbose,
	}
}

// run carries the mutable state of one attempt.
type run struct {
	req       *domain.DepositRequest
	report    *RunReport
	startedAt time.Time
}

// Run executes one deposit attempt. Exactly one run may be in flight
// per orchestrator; concurrent calls fail fast with ErrRunInFlight.
//
// Errors come back classified and unmodified: *domain.ValidationError,
// *backend.FetchError, *decode.DecodeError, *txn.BuildError,
// *wallet.SignError or *broadcast.BroadcastError, each still matching
// errors.As from the caller. A FAILED or EXPIRED confirmation is an
// outcome in the report, not an error.
func (o *Orchestrator) Run(ctx context.Context, req *domain.DepositRequest) (*RunReport, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRunInFlight
	}
	defer o.inFlight.Store(false)

	observability.DefaultMetrics.RunsInFlight.Inc()
	defer observability.DefaultMetrics.RunsInFlight.Dec()

	startedAt := time.Now()

	walletAddr, connected := o.signer.PublicKey()
	if !connected {
		return nil, &wallet.SignError{Kind: wallet.SignWalletUnavailable, Detail: "no wallet connected"}
	}

	reqCopy := *req
	if reqCopy.WalletAddress == "" {
		reqCopy.WalletAddress = walletAddr
	} else if reqCopy.WalletAddress != walletAddr {
		return nil, &domain.ValidationError{
			Field:  "walletAddress",
			Reason: fmt.Sprintf("does not match connected wallet %s", walletAddr),
		}
	}
	if err := reqCopy.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		req:       &reqCopy,
		startedAt: startedAt,
		report: &RunReport{
			AttemptID: idhash.ComputeAttemptID(
				reqCopy.WalletAddress, reqCopy.ContentID,
				reqCopy.SizeBytes, reqCopy.DurationSeconds,
				startedAt.UnixMilli(),
			),
			EstimatedCost: o.estimator.Estimate(reqCopy.SizeBytes, reqCopy.DurationSeconds),
		},
	}

	o.log("attempt %s: deposit %s for wallet %s (estimated cost %.6f SOL)",
		r.report.AttemptID, reqCopy.ContentID, reqCopy.WalletAddress, r.report.EstimatedCost)

	o.checkBalance(ctx, r)

	err := o.execute(ctx, r)
	o.finish(ctx, r, err)
	return r.report, err
}

// execute runs the staged pipeline, returning the first classified
// failure.
func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	// Stage 1: fetch instruction descriptors.
	o.emit(r, StageFetching, StateStarted, "")
	stageStart := time.Now()
	descs, err := o.fetcher.FetchInstructions(ctx, r.req)
	observability.DefaultMetrics.FetchLatency.Observe(time.Since(stageStart).Seconds())
	if err != nil {
		var fetchErr *backend.FetchError
		if errors.As(err, &fetchErr) {
			observability.DefaultMetrics.FetchErrors.WithLabelValues(string(fetchErr.Kind)).Inc()
		}
		return o.fail(r, StageFetching, err)
	}
	o.stageOK(r, StageFetching, stageStart, fmt.Sprintf("%d instructions", len(descs)))

	// Stage 2: decode descriptors. Pure, no I/O.
	o.emit(r, StageDecoding, StateStarted, "")
	stageStart = time.Now()
	instructions, err := decode.Instructions(descs)
	if err != nil {
		return o.fail(r, StageDecoding, err)
	}
	o.stageOK(r, StageDecoding, stageStart, "")

	// Stage 3: fetch a fresh blockhash and compile the transaction.
	// The blockhash is fetched here, never earlier, so its validity
	// window starts as close to broadcast as possible.
	o.emit(r, StageBuilding, StateStarted, "")
	stageStart = time.Now()
	blockhash, err := o.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return o.fail(r, StageBuilding, &txn.BuildError{Reason: fmt.Sprintf("fetch blockhash: %v", err)})
	}
	unsigned, err := txn.Build(instructions, r.req.WalletAddress, blockhash)
	if err != nil {
		return o.fail(r, StageBuilding, err)
	}
	o.stageOK(r, StageBuilding, stageStart, fmt.Sprintf("blockhash %s", blockhash.Hash))

	// Stage 4: wallet signature. May block on the user.
	o.emit(r, StageAwaitingSignature, StateStarted, "")
	stageStart = time.Now()
	signed, err := o.signer.SignTransaction(ctx, unsigned)
	if err != nil {
		return o.fail(r, StageAwaitingSignature, err)
	}
	o.stageOK(r, StageAwaitingSignature, stageStart, "")

	// Stage 5: submit, exactly once.
	o.emit(r, StageBroadcasting, StateStarted, "")
	stageStart = time.Now()
	sig, err := o.broadcaster.Send(ctx, signed)
	if err != nil {
		observability.RecordBroadcast("error")
		return o.fail(r, StageBroadcasting, err)
	}
	observability.RecordBroadcast("sent")
	r.report.Signature = sig
	o.stageOK(r, StageBroadcasting, stageStart, fmt.Sprintf("signature %s", sig))

	// Stage 6: track to a terminal state. FAILED and EXPIRED are
	// outcomes here, not errors.
	o.emit(r, StageConfirming, StateStarted, "")
	stageStart = time.Now()
	outcome, err := o.watcher.AwaitFinality(ctx, sig, unsigned.Blockhash)
	if err != nil {
		return o.fail(r, StageConfirming, err)
	}
	r.report.Outcome = outcome
	observability.DefaultMetrics.ConfirmationLatency.Observe(time.Since(stageStart).Seconds())

	switch outcome.Finality {
	case domain.FinalityConfirmed:
		o.stageOK(r, StageConfirming, stageStart, fmt.Sprintf("slot %d", outcome.Slot))
		observability.DefaultMetrics.LastSuccessfulDeposit.SetToCurrentTime()
	case domain.FinalityFailed:
		o.emit(r, StageConfirming, StateFailed, outcome.ErrDetail)
		observability.RecordStageFailure(StageConfirming, string(domain.FinalityFailed))
	case domain.FinalityExpired:
		o.emit(r, StageConfirming, StateFailed, "blockhash expired before confirmation; check an explorer before retrying")
		observability.RecordStageFailure(StageConfirming, string(domain.FinalityExpired))
	}
	return nil
}

// checkBalance warns when the wallet balance looks short of the deposit
// amount. Advisory only: the preflight simulation is what actually
// rejects an underfunded transaction.
func (o *Orchestrator) checkBalance(ctx context.Context, r *run) {
	const lamportsPerSOL = 1_000_000_000

	balance, err := o.rpc.GetBalance(ctx, r.req.WalletAddress)
	if err != nil {
		o.log("attempt %s: balance check skipped: %v", r.report.AttemptID, err)
		return
	}
	needed := uint64(r.req.DepositAmount * lamportsPerSOL)
	if balance < needed {
		log.Printf("[orchestrator] attempt %s: wallet balance %d lamports below deposit amount %d",
			r.report.AttemptID, balance, needed)
	}
}

// fail records a stage failure and passes the classified error through
// unmodified.
func (o *Orchestrator) fail(r *run, stage string, err error) error {
	o.emit(r, stage, StateFailed, err.Error())
	observability.RecordStageFailure(stage, errorKind(err))
	return err
}

// stageOK records a successful stage and its duration.
func (o *Orchestrator) stageOK(r *run, stage string, start time.Time, detail string) {
	o.emit(r, stage, StateOK, detail)
	observability.RecordStage(stage, time.Since(start).Seconds())
}

// emit appends to the run's status log and notifies the observer.
func (o *Orchestrator) emit(r *run, stage, state, detail string) {
	update := StageUpdate{Stage: stage, State: state, Detail: detail, At: time.Now()}
	r.report.Updates = append(r.report.Updates, update)
	if o.onStatus != nil {
		o.onStatus(update)
	}
	o.log("attempt %s: %s %s %s", r.report.AttemptID, stage, state, detail)
}

// finish records metrics and persists the receipt and stage events.
// Persistence is best-effort; a storage failure never changes the
// attempt's outcome.
func (o *Orchestrator) finish(ctx context.Context, r *run, runErr error) {
	// The run's ctx may already be canceled; persistence gets its own
	// deadline so a canceled attempt still leaves a receipt.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	finishedAt := time.Now()
	outcome := terminalOutcome(r, runErr)
	observability.RecordDepositRun(outcome, finishedAt.Sub(r.startedAt).Seconds())

	receipt := &domain.DepositReceipt{
		AttemptID:       r.report.AttemptID,
		WalletAddress:   r.req.WalletAddress,
		ContentID:       r.req.ContentID,
		SizeBytes:       r.req.SizeBytes,
		DurationSeconds: r.req.DurationSeconds,
		DepositAmount:   r.req.DepositAmount,
		EstimatedCost:   r.report.EstimatedCost,
		Signature:       r.report.Signature,
		Finality:        domain.Finality(outcome),
		StartedAt:       r.startedAt.UnixMilli(),
		FinishedAt:      finishedAt.UnixMilli(),
	}
	if runErr != nil {
		receipt.FailedStage = lastFailedStage(r.report.Updates)
		receipt.FailureDetail = runErr.Error()
	} else if r.report.Outcome != nil && r.report.Outcome.Finality == domain.FinalityFailed {
		receipt.FailedStage = StageConfirming
		receipt.FailureDetail = r.report.Outcome.ErrDetail
	}

	if o.receiptStore != nil {
		start := time.Now()
		err := o.receiptStore.Insert(ctx, receipt)
		observability.RecordDBQuery("postgres", "insert_receipt", time.Since(start).Seconds(), err)
		if err != nil {
			log.Printf("[orchestrator] attempt %s: persist receipt: %v", r.report.AttemptID, err)
		}
	}
	if o.eventStore != nil {
		events := make([]*domain.StageEvent, len(r.report.Updates))
		for i, u := range r.report.Updates {
			events[i] = &domain.StageEvent{
				AttemptID: r.report.AttemptID,
				Seq:       int32(i),
				Stage:     u.Stage,
				State:     u.State,
				Detail:    u.Detail,
				At:        u.At.UnixMilli(),
			}
		}
		start := time.Now()
		err := o.eventStore.InsertBulk(ctx, events)
		observability.RecordDBQuery("clickhouse", "insert_stage_events", time.Since(start).Seconds(), err)
		if err != nil {
			log.Printf("[orchestrator] attempt %s: persist stage events: %v", r.report.AttemptID, err)
		}
	}

	o.log("attempt %s: finished %s in %s", r.report.AttemptID, outcome, finishedAt.Sub(r.startedAt))
}

// terminalOutcome maps a run's end state onto a metrics label and
// receipt finality. A run canceled after broadcast has an unknown
// outcome: the transaction was submitted and the watcher was abandoned,
// so the receipt stays PENDING rather than claiming failure.
func terminalOutcome(r *run, runErr error) string {
	if r.report.Outcome != nil {
		return string(r.report.Outcome.Finality)
	}
	if runErr != nil {
		if r.report.Signature != "" &&
			(errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)) {
			return string(domain.FinalityPending)
		}
		return string(domain.FinalityFailed)
	}
	return string(domain.FinalityConfirmed)
}

// lastFailedStage returns the stage of the last FAILED update.
func lastFailedStage(updates []StageUpdate) string {
	for i := len(updates) - 1; i >= 0; i-- {
		if updates[i].State == StateFailed {
			return updates[i].Stage
		}
	}
	return ""
}

// errorKind extracts the taxonomy label of a classified error for
// metrics.
func errorKind(err error) string {
	var validationErr *domain.ValidationError
	var fetchErr *backend.FetchError
	var decodeErr *decode.DecodeError
	var buildErr *txn.BuildError
	var signErr *wallet.SignError
	var broadcastErr *broadcast.BroadcastError

	switch {
	case errors.As(err, &validationErr):
		return "VALIDATION"
	case errors.As(err, &fetchErr):
		return string(fetchErr.Kind)
	case errors.As(err, &decodeErr):
		return "DECODE"
	case errors.As(err, &buildErr):
		return "BUILD"
	case errors.As(err, &signErr):
		return string(signErr.Kind)
	case errors.As(err, &broadcastErr):
		return string(broadcastErr.Kind)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[orchestrator] "+format, args...)
	}
}
