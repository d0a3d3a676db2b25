// Package main provides the deposit service: an HTTP API that runs the
// deposit pipeline on request and serves receipts, health and metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-deposit-pipeline/internal/backend"
	"solana-deposit-pipeline/internal/broadcast"
	"solana-deposit-pipeline/internal/confirm"
	"solana-deposit-pipeline/internal/cost"
	"solana-deposit-pipeline/internal/decode"
	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/observability"
	"solana-deposit-pipeline/internal/orchestrator"
	"solana-deposit-pipeline/internal/solana"
	"solana-deposit-pipeline/internal/storage"
	chstore "solana-deposit-pipeline/internal/storage/clickhouse"
	"solana-deposit-pipeline/internal/storage/memory"
	"solana-deposit-pipeline/internal/storage/migrations"
	pgstore "solana-deposit-pipeline/internal/storage/postgres"
	"solana-deposit-pipeline/internal/txn"
	"solana-deposit-pipeline/internal/wallet"
)

// Server holds the deposit service components.
type Server struct {
	orch         *orchestrator.Orchestrator
	receiptStore storage.ReceiptStore
	eventStore   storage.StageEventStore
	runTimeout   time.Duration
	logger       *log.Logger
	started      time.Time
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	backendEndpoint := flag.String("backend-endpoint", os.Getenv("BACKEND_ENDPOINT"), "Instruction service HTTP endpoint")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional)")
	keypairPath := flag.String("keypair", os.Getenv("SOLANA_KEYPAIR"), "Path to Solana CLI keypair file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	commitment := flag.String("commitment", "confirmed", "Commitment level treated as confirmed")
	rate := flag.Float64("rate", 0, "Storage rate in SOL per GB-month for cost estimates (0 = default)")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP listen address")
	runTimeout := flag.Duration("run-timeout", 2*time.Minute, "Per-deposit attempt timeout")
	verbose := flag.Bool("verbose", false, "Verbose orchestrator logging")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *backendEndpoint == "" {
		logger.Fatal("--backend-endpoint is required")
	}
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *keypairPath == "" {
		logger.Fatal("--keypair is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signer, err := wallet.LoadKeypairFile(*keypairPath)
	if err != nil {
		logger.Fatalf("Failed to load keypair: %v", err)
	}
	walletAddr, _ := signer.PublicKey()
	logger.Printf("Fee payer wallet: %s", walletAddr)

	receiptStore, eventStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	rpc := solana.NewHTTPClient(*rpcEndpoint,
		solana.WithCommitment(solana.Commitment(*commitment)),
	)

	var watcher orchestrator.FinalityWatcher
	if *wsEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, *wsEndpoint, nil)
		if err != nil {
			logger.Printf("WebSocket connect failed, using polling confirmation: %v", err)
			watcher = confirm.NewWatcher(rpc, confirm.WithCommitment(solana.Commitment(*commitment)))
		} else {
			defer ws.Close()
			watcher = confirm.NewWSWatcher(ws, rpc, confirm.WithCommitment(solana.Commitment(*commitment)))
		}
	} else {
		watcher = confirm.NewWatcher(rpc, confirm.WithCommitment(solana.Commitment(*commitment)))
	}

	server := &Server{
		orch: orchestrator.New(orchestrator.Options{
			Fetcher:      backend.NewClient(*backendEndpoint),
			RPC:          rpc,
			Broadcaster:  broadcast.NewBroadcaster(rpc),
			Watcher:      watcher,
			Signer:       signer,
			Estimator:    cost.NewEstimator(*rate),
			ReceiptStore: receiptStore,
			EventStore:   eventStore,
			Verbose:      *verbose,
		}),
		receiptStore: receiptStore,
		eventStore:   eventStore,
		runTimeout:   *runTimeout,
		logger:       logger,
		started:      time.Now(),
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the receipt and stage event stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.ReceiptStore, storage.StageEventStore, func(), error) {
	if useMemory {
		return memory.NewReceiptStore(), memory.NewStageEventStore(), func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return pgstore.NewReceiptStore(pool), chstore.NewStageEventStore(chConn), cleanup, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /deposits", s.handleCreateDeposit)
	mux.HandleFunc("GET /deposits/{id}", s.handleGetDeposit)
	mux.HandleFunc("GET /deposits/{id}/events", s.handleGetDepositEvents)
	mux.HandleFunc("GET /wallets/{address}/deposits", s.handleListWalletDeposits)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	return mux
}

// depositRequestBody is the JSON body of POST /deposits.
type depositRequestBody struct {
	ContentID       string  `json:"contentId"`
	SizeBytes       int64   `json:"sizeBytes"`
	DurationSeconds int64   `json:"durationSeconds"`
	DepositAmount   float64 `json:"depositAmount"`
}

// stageUpdateBody is one status log entry in a deposit response.
type stageUpdateBody struct {
	Stage  string    `json:"stage"`
	State  string    `json:"state"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// depositResponseBody is the JSON response of POST /deposits.
type depositResponseBody struct {
	AttemptID     string            `json:"attemptId"`
	EstimatedCost float64           `json:"estimatedCost"`
	Signature     string            `json:"signature,omitempty"`
	Finality      string            `json:"finality"`
	Slot          int64             `json:"slot,omitempty"`
	ErrDetail     string            `json:"errDetail,omitempty"`
	Stages        []stageUpdateBody `json:"stages"`
}

// handleCreateDeposit runs one deposit attempt synchronously.
func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	var body depositRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed body: %v", err))
		return
	}

	req := &domain.DepositRequest{
		ContentID:       body.ContentID,
		SizeBytes:       body.SizeBytes,
		DurationSeconds: body.DurationSeconds,
		DepositAmount:   body.DepositAmount,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	report, err := s.orch.Run(ctx, req)
	if err != nil {
		s.writeRunError(w, report, err)
		return
	}

	resp := reportToBody(report)
	status := http.StatusOK
	if report.Outcome != nil && report.Outcome.Finality != domain.FinalityConfirmed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// writeRunError maps a classified pipeline error onto an HTTP status.
func (s *Server) writeRunError(w http.ResponseWriter, report *orchestrator.RunReport, err error) {
	var validationErr *domain.ValidationError
	var fetchErr *backend.FetchError
	var decodeErr *decode.DecodeError
	var buildErr *txn.BuildError
	var signErr *wallet.SignError
	var broadcastErr *broadcast.BroadcastError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrRunInFlight):
		status = http.StatusConflict
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &fetchErr), errors.As(err, &decodeErr), errors.As(err, &buildErr):
		status = http.StatusBadGateway
	case errors.As(err, &signErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &broadcastErr):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	resp := map[string]interface{}{"error": err.Error()}
	if report != nil {
		resp["attemptId"] = report.AttemptID
		resp["report"] = reportToBody(report)
	}
	writeJSON(w, status, resp)
}

// handleGetDeposit serves a persisted receipt.
func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.receiptStore.GetByAttemptID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such deposit attempt")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetDepositEvents serves the stage journal of an attempt.
func (s *Server) handleGetDepositEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.eventStore.GetByAttemptID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleListWalletDeposits serves all receipts of a wallet.
func (s *Server) handleListWalletDeposits(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.receiptStore.GetByWallet(r.Context(), r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status: "running",
		Uptime: time.Since(s.started).String(),
	})
}

func reportToBody(report *orchestrator.RunReport) depositResponseBody {
	resp := depositResponseBody{
		AttemptID:     report.AttemptID,
		EstimatedCost: report.EstimatedCost,
		Signature:     report.Signature,
	}
	if report.Outcome != nil {
		resp.Finality = string(report.Outcome.Finality)
		resp.Slot = report.Outcome.Slot
		resp.ErrDetail = report.Outcome.ErrDetail
	} else {
		resp.Finality = string(domain.FinalityFailed)
	}
	for _, u := range report.Updates {
		resp.Stages = append(resp.Stages, stageUpdateBody{
			Stage: u.Stage, State: u.State, Detail: u.Detail, At: u.At,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
