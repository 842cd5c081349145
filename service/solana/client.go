package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spoutfi/rwa-relayer/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransaction(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchHistory bool,
		sigs ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetAccountInfo(
		ctx context.Context,
		account solana.PublicKey,
	) (*rpc.GetAccountInfoResult, error)
}

// Client provides methods for polling program transactions and submitting
// settlement transactions. It wraps the RPC client with domain-specific
// operations, structured logging, and metrics.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If m is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// GetProgramTransactionsParams contains parameters for fetching recent
// program transactions.
type GetProgramTransactionsParams struct {
	Program            solana.PublicKey
	Limit              int
	Until              *solana.Signature // exclusive lower bound (the watermark)
	ExistingSignatures []string          // already-processed signatures to skip
}

// GetProgramTransactions fetches the most recent transaction signatures for
// the program address (a bounded lookback window, newest first) and the log
// messages of each. Signatures in ExistingSignatures are skipped without an
// extra RPC round trip. A fetch failure for one signature is logged and does
// not abort the remaining signatures.
func (c *Client) GetProgramTransactions(
	ctx context.Context,
	params GetProgramTransactionsParams,
) ([]*ProgramTransaction, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit: &params.Limit,
	}
	if params.Until != nil {
		opts.Until = *params.Until
	}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"program", params.Program.String(),
		"limit", params.Limit,
		"until", params.Until,
		"existing_sigs_count", len(params.ExistingSignatures),
	)

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, params.Program, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"program", params.Program.String(),
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetSignaturesForAddress", status, c.endpoint, duration)
		if err == nil {
			c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(signatures)))
		}
	}

	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"program", params.Program.String(),
		"count", len(signatures),
	)

	// Lookup map for already-processed signatures.
	existingSigs := make(map[string]struct{})
	for _, sig := range params.ExistingSignatures {
		existingSigs[sig] = struct{}{}
	}

	transactions := make([]*ProgramTransaction, 0, len(signatures))
	for _, sig := range signatures {
		if _, exists := existingSigs[sig.Signature.String()]; exists {
			c.logger.DebugContext(ctx, "skipping already processed transaction",
				"signature", sig.Signature.String(),
			)
			if c.metrics != nil {
				c.metrics.RecordSignatureSkipped(params.Program.String(), "already_processed")
			}
			continue
		}

		// Failed transactions emit no events worth settling.
		if sig.Err != nil {
			c.logger.DebugContext(ctx, "skipping failed transaction",
				"signature", sig.Signature.String(),
			)
			if c.metrics != nil {
				c.metrics.RecordSignatureSkipped(params.Program.String(), "on_chain_failure")
			}
			continue
		}

		txn, err := c.getTransactionLogs(ctx, sig)
		if err != nil {
			// Log warning but continue with other transactions.
			// The signature stays unprocessed and is retried next tick
			// while it remains inside the lookback window.
			c.logger.WarnContext(ctx, "failed to get transaction logs, skipping",
				"signature", sig.Signature.String(),
				"error", err,
			)
			if c.metrics != nil {
				c.metrics.RecordSignatureSkipped(params.Program.String(), "fetch_error")
			}
			continue
		}

		transactions = append(transactions, txn)
	}

	c.logger.InfoContext(ctx, "fetched program transactions",
		"program", params.Program.String(),
		"count", len(transactions),
	)

	return transactions, nil
}

// getTransactionLogs fetches a single transaction and extracts its log messages.
// Retries with exponential backoff on rate limiting and transient errors.
func (c *Client) getTransactionLogs(ctx context.Context, sig *rpc.TransactionSignature) (*ProgramTransaction, error) {
	var result *rpc.GetTransactionResult
	var err error

	const maxAttempts = 3
	for attempt := range maxAttempts {
		txnOpts := &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &[]uint64{0}[0],
		}
		txnStart := time.Now()
		result, err = c.rpc.GetTransaction(ctx, sig.Signature, txnOpts)
		txnDuration := time.Since(txnStart).Seconds()

		txnStatus := "success"
		if err != nil {
			txnStatus = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall("GetTransaction", txnStatus, c.endpoint, txnDuration)
		}

		if err == nil {
			break
		}

		// Rate limiting (429 Too Many Requests) gets a longer backoff.
		if strings.Contains(err.Error(), "429") {
			backoff := time.Duration(2<<uint(attempt)) * time.Second
			c.logger.WarnContext(ctx, "rate limited, sleeping before retry",
				"signature", sig.Signature.String(),
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.endpoint)
				c.metrics.RecordRPCRetry("GetTransaction", "rate_limit")
			}
			time.Sleep(backoff)
			continue
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		c.logger.WarnContext(ctx, "failed to get transaction on attempt",
			"signature", sig.Signature.String(),
			"attempt", attempt+1,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)
		if c.metrics != nil {
			c.metrics.RecordRPCRetry("GetTransaction", "timeout_or_error")
		}
		time.Sleep(backoff)
	}

	if err != nil {
		return nil, err
	}

	txn := &ProgramTransaction{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
	}
	if sig.BlockTime != nil {
		txn.BlockTime = sig.BlockTime.Time()
	}
	if result != nil && result.Meta != nil {
		txn.Logs = result.Meta.LogMessages
	}
	return txn, nil
}

// AccountExists reports whether the account is present on the ledger.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	start := time.Now()
	result, err := c.rpc.GetAccountInfo(ctx, account)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil && !errors.Is(err, rpc.ErrNotFound) {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetAccountInfo", status, c.endpoint, duration)
	}

	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get account info for %s: %w", account, err)
	}
	return result != nil && result.Value != nil, nil
}

// SendAndConfirm builds a transaction from the instructions, signs it with
// the signer (which also pays fees), submits it, and polls until the cluster
// reports at least "confirmed" commitment. Each call is one independent
// ledger transaction; there is no atomicity across calls.
func (c *Client) SendAndConfirm(
	ctx context.Context,
	instructions []solana.Instruction,
	signer Signer,
) (solana.Signature, error) {
	blockhashStart := time.Now()
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if c.metrics != nil {
		blockhashStatus := "success"
		if err != nil {
			blockhashStatus = "error"
		}
		c.metrics.RecordRPCCall("GetLatestBlockhash", blockhashStatus, c.endpoint, time.Since(blockhashStart).Seconds())
	}
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	if err := signer.SignTransaction(tx); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sendStart := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if c.metrics != nil {
		sendStatus := "success"
		if err != nil {
			sendStatus = "error"
		}
		c.metrics.RecordRPCCall("SendTransaction", sendStatus, c.endpoint, time.Since(sendStart).Seconds())
	}
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.DebugContext(ctx, "transaction submitted, awaiting confirmation",
		"signature", sig.String(),
	)

	if err := c.confirmSignature(ctx, sig); err != nil {
		return sig, err
	}

	c.logger.InfoContext(ctx, "transaction confirmed", "signature", sig.String())
	return sig, nil
}

// confirmSignature polls signature statuses until the transaction reaches
// confirmed commitment, errors on-chain, or the wait times out.
func (c *Client) confirmSignature(ctx context.Context, sig solana.Signature) error {
	const (
		pollInterval = time.Second
		maxWait      = 60 * time.Second
	)

	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}

		statusStart := time.Now()
		statuses, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if c.metrics != nil {
			statusStatus := "success"
			if err != nil {
				statusStatus = "error"
			}
			c.metrics.RecordRPCCall("GetSignatureStatuses", statusStatus, c.endpoint, time.Since(statusStart).Seconds())
		}
		if err != nil {
			c.logger.WarnContext(ctx, "failed to get signature status",
				"signature", sig.String(),
				"error", err,
			)
			continue
		}

		if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			continue
		}

		st := statuses.Value[0]
		if st.Err != nil {
			return fmt.Errorf("transaction %s failed on-chain: %v", sig, st.Err)
		}
		switch st.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			return nil
		}
	}

	return fmt.Errorf("timed out waiting for confirmation of %s", sig)
}
