// Package main provides a one-shot CLI that funds a single storage
// deposit: fetch instructions → decode → build → sign → broadcast →
// confirm, printing each stage transition as it happens.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-deposit-pipeline/internal/backend"
	"solana-deposit-pipeline/internal/broadcast"
	"solana-deposit-pipeline/internal/confirm"
	"solana-deposit-pipeline/internal/cost"
	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/orchestrator"
	"solana-deposit-pipeline/internal/solana"
	"solana-deposit-pipeline/internal/wallet"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	backendEndpoint := flag.String("backend-endpoint", os.Getenv("BACKEND_ENDPOINT"), "Instruction service HTTP endpoint")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional, enables push confirmation)")
	keypairPath := flag.String("keypair", os.Getenv("SOLANA_KEYPAIR"), "Path to Solana CLI keypair file")
	contentID := flag.String("content-id", "", "Content identifier to fund")
	sizeBytes := flag.Int64("size-bytes", 0, "Content size in bytes")
	durationSeconds := flag.Int64("duration-seconds", 0, "Retention duration in seconds")
	depositAmount := flag.Float64("amount", 0, "Deposit amount in SOL")
	commitment := flag.String("commitment", "confirmed", "Commitment level treated as confirmed (processed|confirmed|finalized)")
	rate := flag.Float64("rate", 0, "Storage rate in SOL per GB-month for the cost estimate (0 = default)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall attempt timeout")
	verbose := flag.Bool("verbose", false, "Verbose orchestrator logging")

	flag.Parse()

	logger := log.New(os.Stderr, "[deposit] ", log.LstdFlags)

	if *backendEndpoint == "" {
		logger.Fatal("--backend-endpoint is required")
	}
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *keypairPath == "" {
		logger.Fatal("--keypair is required")
	}
	if *contentID == "" {
		logger.Fatal("--content-id is required")
	}

	signer, err := wallet.LoadKeypairFile(*keypairPath)
	if err != nil {
		logger.Fatalf("Failed to load keypair: %v", err)
	}
	walletAddr, _ := signer.PublicKey()

	rpc := solana.NewHTTPClient(*rpcEndpoint,
		solana.WithCommitment(solana.Commitment(*commitment)),
	)

	var watcher orchestrator.FinalityWatcher
	if *wsEndpoint != "" {
		ws, err := solana.NewWSClient(context.Background(), *wsEndpoint, nil)
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

	orch := orchestrator.New(orchestrator.Options{
		Fetcher:     backend.NewClient(*backendEndpoint),
		RPC:         rpc,
		Broadcaster: broadcast.NewBroadcaster(rpc),
		Watcher:     watcher,
		Signer:      signer,
		Estimator:   cost.NewEstimator(*rate),
		OnStatus: func(u orchestrator.StageUpdate) {
			fmt.Printf("%-19s %-7s %s\n", u.Stage, u.State, u.Detail)
		},
		Verbose: *verbose,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Cancel on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, canceling...", sig)
		cancel()
	}()

	req := &domain.DepositRequest{
		WalletAddress:   walletAddr,
		ContentID:       *contentID,
		SizeBytes:       *sizeBytes,
		DurationSeconds: *durationSeconds,
		DepositAmount:   *depositAmount,
	}

	report, err := orch.Run(ctx, req)
	if err != nil {
		logger.Fatalf("Deposit failed: %v", err)
	}

	switch report.Outcome.Finality {
	case domain.FinalityConfirmed:
		fmt.Printf("\nConfirmed in slot %d\nSignature: %s\n", report.Outcome.Slot, report.Signature)
	case domain.FinalityFailed:
		fmt.Printf("\nTransaction failed on chain: %s\nSignature: %s\n", report.Outcome.ErrDetail, report.Signature)
		os.Exit(1)
	case domain.FinalityExpired:
		fmt.Printf("\nBlockhash expired before confirmation.\n"+
			"The transaction may still have landed. Check an explorer for signature %s before retrying.\n",
			report.Signature)
		os.Exit(1)
	}
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
