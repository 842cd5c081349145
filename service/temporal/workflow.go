package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/spoutfi/rwa-relayer/service/db"
)

// SettleSellInput contains input for the sell settlement workflow.
type SettleSellInput struct {
	SettlementID int64  `json:"settlement_id"`
	Signature    string `json:"signature"`
	LogIndex     int    `json:"log_index"`
}

// SettleSellResult contains the result of the sell settlement workflow.
type SettleSellResult struct {
	SettlementID    int64   `json:"settlement_id"`
	BurnSignature   *string `json:"burn_signature,omitempty"`
	PayoutSignature *string `json:"payout_signature,omitempty"`
	Status          string  `json:"status"`
	Error           *string `json:"error,omitempty"`
}

// SettleSellWorkflow settles a sell order in two phases: burn the asset,
// then pay out the stable asset. The phases are separate ledger transactions
// with no atomicity between them, which is exactly why this runs as a
// durable workflow: a crash between burn and payout resumes at the payout.
//
// The payout is never attempted before the burn activity succeeds. A burn
// failure marks the settlement burn_failed and ends the workflow; nothing
// was debited. A payout failure after retries leaves the settlement in
// payout_pending so the recovery sweep can start a fresh run later.
func SettleSellWorkflow(ctx workflow.Context, input SettleSellInput) (*SettleSellResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SettleSellWorkflow started",
		"settlement_id", input.SettlementID,
		"signature", input.Signature,
		"log_index", input.LogIndex,
	)

	result := &SettleSellResult{
		SettlementID: input.SettlementID,
	}

	// Phase 1: burn. Short retry schedule; a burn that keeps failing is
	// usually a hard rejection (expired attestation, drained account).
	burnCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var burnResult *BurnAssetResult
	err := workflow.ExecuteActivity(burnCtx, "BurnAsset", BurnAssetInput{
		SettlementID: input.SettlementID,
	}).Get(burnCtx, &burnResult)
	if err != nil {
		logger.Error("burn failed", "settlement_id", input.SettlementID, "error", err)
		markBurnFailure(ctx, input.SettlementID, err)

		errMsg := fmt.Sprintf("burn failed: %v", err)
		result.Error = &errMsg
		result.Status = db.StatusBurnFailed
		return result, fmt.Errorf("burn failed: %w", err)
	}

	result.BurnSignature = &burnResult.BurnSignature
	logger.Info("asset burned", "burn_signature", burnResult.BurnSignature)

	// Phase 2: payout. The asset is gone, so retry hard before giving up.
	// On exhaustion the row stays payout_pending and the recovery sweep
	// starts a fresh run; the money owed is never silently dropped.
	payoutCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    10,
		},
	})

	var payoutResult *PayoutUsdcResult
	err = workflow.ExecuteActivity(payoutCtx, "PayoutUsdc", PayoutUsdcInput{
		SettlementID: input.SettlementID,
	}).Get(payoutCtx, &payoutResult)
	if err != nil {
		logger.Error("payout failed after retries",
			"settlement_id", input.SettlementID,
			"error", err,
		)
		errMsg := fmt.Sprintf("payout failed: %v", err)
		result.Error = &errMsg
		result.Status = db.StatusPayoutPending
		return result, fmt.Errorf("payout failed: %w", err)
	}

	result.PayoutSignature = &payoutResult.PayoutSignature
	result.Status = db.StatusPaid
	logger.Info("SettleSellWorkflow completed",
		"settlement_id", input.SettlementID,
		"payout_signature", payoutResult.PayoutSignature,
	)
	return result, nil
}

// markBurnFailure records the burn failure on the settlement row. Best
// effort: the workflow is failing anyway, a marking error is only logged.
func markBurnFailure(ctx workflow.Context, settlementID int64, cause error) {
	logger := workflow.GetLogger(ctx)

	markCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	err := workflow.ExecuteActivity(markCtx, "MarkSettlementFailed", MarkSettlementFailedInput{
		SettlementID: settlementID,
		Status:       db.StatusBurnFailed,
		Reason:       cause.Error(),
	}).Get(markCtx, nil)
	if err != nil {
		logger.Error("failed to mark settlement burn_failed",
			"settlement_id", settlementID,
			"error", err,
		)
	}
}
