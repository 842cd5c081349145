package temporal

import (
	"context"
	"log/slog"
	"time"

	"github.com/spoutfi/rwa-relayer/service/metrics"
)

// BurnAssetInput contains parameters for the BurnAsset activity.
type BurnAssetInput struct {
	SettlementID int64 `json:"settlement_id"`
}

// BurnAssetResult contains the result of the BurnAsset activity.
type BurnAssetResult struct {
	BurnSignature string `json:"burn_signature"`
}

// PayoutUsdcInput contains parameters for the PayoutUsdc activity.
type PayoutUsdcInput struct {
	SettlementID int64 `json:"settlement_id"`
}

// PayoutUsdcResult contains the result of the PayoutUsdc activity.
type PayoutUsdcResult struct {
	PayoutSignature string `json:"payout_signature"`
}

// MarkSettlementFailedInput contains parameters for the MarkSettlementFailed activity.
type MarkSettlementFailedInput struct {
	SettlementID int64  `json:"settlement_id"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
}

// SettlerInterface defines the settlement operations needed by activities.
// This allows for easy mocking in tests.
type SettlerInterface interface {
	BurnAsset(ctx context.Context, settlementID int64) (string, error)
	PayoutUsdc(ctx context.Context, settlementID int64) (string, error)
	MarkSettlementFailed(ctx context.Context, settlementID int64, status, reason string) error
}

// Activities holds the dependencies for settlement activities.
type Activities struct {
	settler SettlerInterface
	metrics *metrics.Metrics // Optional: if nil, no metrics will be recorded
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with the given dependencies.
func NewActivities(settler SettlerInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		settler: settler,
		metrics: m,
		logger:  logger,
	}
}

// BurnAsset burns the sold asset from the user's token account. The settler
// skips the on-chain submission when the burn is already recorded, so a
// retried activity run is safe.
func (a *Activities) BurnAsset(ctx context.Context, input BurnAssetInput) (*BurnAssetResult, error) {
	start := time.Now()

	sig, err := a.settler.BurnAsset(ctx, input.SettlementID)
	if a.metrics != nil {
		a.metrics.RecordActivityDuration("BurnAsset", time.Since(start).Seconds())
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "burn activity failed",
			"settlement_id", input.SettlementID,
			"error", err,
		)
		return nil, err
	}

	return &BurnAssetResult{BurnSignature: sig}, nil
}

// PayoutUsdc delivers the stable-asset payout for a burned settlement.
func (a *Activities) PayoutUsdc(ctx context.Context, input PayoutUsdcInput) (*PayoutUsdcResult, error) {
	start := time.Now()

	sig, err := a.settler.PayoutUsdc(ctx, input.SettlementID)
	if a.metrics != nil {
		a.metrics.RecordActivityDuration("PayoutUsdc", time.Since(start).Seconds())
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "payout activity failed",
			"settlement_id", input.SettlementID,
			"error", err,
		)
		return nil, err
	}

	return &PayoutUsdcResult{PayoutSignature: sig}, nil
}

// MarkSettlementFailed records a terminal failure on the settlement row.
func (a *Activities) MarkSettlementFailed(ctx context.Context, input MarkSettlementFailedInput) error {
	return a.settler.MarkSettlementFailed(ctx, input.SettlementID, input.Status, input.Reason)
}
