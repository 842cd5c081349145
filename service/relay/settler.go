package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sol "github.com/gagliardetto/solana-go"

	"github.com/spoutfi/rwa-relayer/service/db"
	"github.com/spoutfi/rwa-relayer/service/metrics"
	"github.com/spoutfi/rwa-relayer/service/nats"
	"github.com/spoutfi/rwa-relayer/service/solana"
)

// usdcDecimals is the decimal count of the stable-asset mint, validated
// on-chain by TransferChecked.
const usdcDecimals = 6

// SettlementStore is the subset of the database store the settler needs.
type SettlementStore interface {
	CreateSettlement(ctx context.Context, params db.CreateSettlementParams) (*db.Settlement, bool, error)
	GetSettlementByID(ctx context.Context, id int64) (*db.Settlement, error)
	MarkMinted(ctx context.Context, id int64, mintSignature string) error
	MarkBurned(ctx context.Context, id int64, burnSignature string) error
	MarkPayoutPending(ctx context.Context, id int64) error
	MarkPaid(ctx context.Context, id int64, payoutSignature string) error
	MarkFailed(ctx context.Context, id int64, status, lastError string) error
	ListSettlementsByStatus(ctx context.Context, status string, limit int) ([]*db.Settlement, error)
}

// LedgerClient is the subset of the Solana client the settler needs.
type LedgerClient interface {
	AccountExists(ctx context.Context, account sol.PublicKey) (bool, error)
	SendAndConfirm(ctx context.Context, instructions []sol.Instruction, signer solana.Signer) (sol.Signature, error)
}

// WorkflowStarter hands a sell settlement to the durable execution layer.
// Starting is idempotent per settlement: a duplicate start for the same
// settlement must not spawn a second execution.
type WorkflowStarter interface {
	StartSellSettlement(ctx context.Context, settlementID int64, signature string, logIndex int) error
}

// Addresses holds the fixed on-chain addresses settlement transactions are
// built against.
type Addresses struct {
	OrderProgram sol.PublicKey
	SASProgram   sol.PublicKey
	Credential   sol.PublicKey
	Schema       sol.PublicKey
	Config       sol.PublicKey
	AssetMint    sol.PublicKey
	USDCMint     sol.PublicKey
}

// Settler converts decoded order events into settlement transactions. Buys
// settle inline; sells are handed to the workflow layer because the
// burn-then-payout sequence must survive a process crash between phases.
type Settler struct {
	ledger    LedgerClient
	store     SettlementStore
	publisher nats.Publisher
	workflows WorkflowStarter
	addrs     Addresses
	issuer    solana.Signer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewSettler creates a Settler. The metrics handle may be nil.
func NewSettler(
	ledger LedgerClient,
	store SettlementStore,
	publisher nats.Publisher,
	workflows WorkflowStarter,
	addrs Addresses,
	issuer solana.Signer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Settler {
	return &Settler{
		ledger:    ledger,
		store:     store,
		publisher: publisher,
		workflows: workflows,
		addrs:     addrs,
		issuer:    issuer,
		metrics:   m,
		logger:    logger,
	}
}

// Settle records the event in the settlement ledger and performs (or
// schedules) the on-chain work. The insert is the dedup gate: if a row for
// this (signature, log index) already exists, the event was processed before
// and Settle returns without side effects.
func (s *Settler) Settle(ctx context.Context, event *OrderEvent) error {
	settlement, inserted, err := s.store.CreateSettlement(ctx, db.CreateSettlementParams{
		Signature:       event.Signature,
		LogIndex:        event.LogIndex,
		Kind:            string(event.Kind),
		UserAddress:     event.User.String(),
		Ticker:          event.Ticker,
		UsdcAmount:      int64(event.UsdcAmount),
		AssetAmount:     int64(event.AssetAmount),
		Price:           int64(event.Price),
		OracleTimestamp: int64(event.OracleTimestamp),
	})
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	if !inserted {
		s.logger.DebugContext(ctx, "settlement already recorded, skipping",
			"signature", event.Signature,
			"log_index", event.LogIndex,
		)
		return nil
	}

	s.logger.InfoContext(ctx, "settlement recorded",
		"id", settlement.ID,
		"kind", event.Kind,
		"user", event.User.String(),
		"ticker", event.Ticker,
		"asset_amount", event.AssetAmount,
		"usdc_amount", event.UsdcAmount,
	)

	switch event.Kind {
	case OrderKindBuy:
		return s.settleBuy(ctx, settlement, event)
	case OrderKindSell:
		return s.startSell(ctx, settlement)
	default:
		return fmt.Errorf("unknown order kind %q", event.Kind)
	}
}

// settleBuy mints the asset to the buyer. The flow is: derive addresses,
// ensure the recipient's token account exists, submit the mint, await
// confirmation. The on-chain program re-validates the buyer's attestation;
// we only supply the correct addresses.
func (s *Settler) settleBuy(ctx context.Context, settlement *db.Settlement, event *OrderEvent) error {
	start := time.Now()

	mintSig, err := s.mintAsset(ctx, event.User, uint64(settlement.AssetAmount))
	if err != nil {
		s.logger.ErrorContext(ctx, "buy settlement failed",
			"id", settlement.ID,
			"user", event.User.String(),
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.RecordSettlementPhaseFailure("buy", "mint")
			s.metrics.RecordSettlement("buy", "failed", time.Since(start).Seconds())
		}
		if markErr := s.store.MarkFailed(ctx, settlement.ID, db.StatusFailed, err.Error()); markErr != nil {
			s.logger.ErrorContext(ctx, "failed to mark settlement failed", "id", settlement.ID, "error", markErr)
		}
		s.publishStatus(ctx, settlement.ID)
		return err
	}

	if err := s.store.MarkMinted(ctx, settlement.ID, mintSig); err != nil {
		return fmt.Errorf("mint confirmed but status update failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSettlement("buy", "minted", time.Since(start).Seconds())
	}
	s.publishStatus(ctx, settlement.ID)

	s.logger.InfoContext(ctx, "buy settled",
		"id", settlement.ID,
		"mint_signature", mintSig,
	)
	return nil
}

// mintAsset ensures the recipient's asset token account exists and submits
// the mint instruction.
func (s *Settler) mintAsset(ctx context.Context, user sol.PublicKey, amount uint64) (string, error) {
	attestation, err := solana.DeriveAttestationAddress(s.addrs.Credential, s.addrs.Schema, user, s.addrs.SASProgram)
	if err != nil {
		return "", err
	}
	authority, err := solana.DeriveProgramAuthorityAddress(s.addrs.AssetMint, s.addrs.OrderProgram)
	if err != nil {
		return "", err
	}
	recipientATA, err := solana.DeriveAssociatedTokenAddress(user, s.addrs.AssetMint)
	if err != nil {
		return "", err
	}

	if err := s.ensureTokenAccount(ctx, recipientATA, user, s.addrs.AssetMint); err != nil {
		return "", err
	}

	mintIx, err := solana.NewMintInstruction(s.addrs.OrderProgram, solana.MintParams{
		Issuer:                s.issuer.PublicKey(),
		Config:                s.addrs.Config,
		Mint:                  s.addrs.AssetMint,
		ProgramAuthority:      authority,
		RecipientTokenAccount: recipientATA,
		Recipient:             user,
		Schema:                s.addrs.Schema,
		Credential:            s.addrs.Credential,
		Attestation:           attestation,
		SASProgram:            s.addrs.SASProgram,
		Amount:                amount,
	})
	if err != nil {
		return "", err
	}

	sig, err := s.ledger.SendAndConfirm(ctx, []sol.Instruction{mintIx}, s.issuer)
	if err != nil {
		return "", fmt.Errorf("mint transaction failed: %w", err)
	}
	return sig.String(), nil
}

// ensureTokenAccount creates the associated token account if it is missing
// and waits for confirmation before returning. Creation is idempotent on
// chain, so a concurrent create is harmless.
func (s *Settler) ensureTokenAccount(ctx context.Context, ata, owner, mint sol.PublicKey) error {
	exists, err := s.ledger.AccountExists(ctx, ata)
	if err != nil {
		return fmt.Errorf("failed to check token account %s: %w", ata, err)
	}
	if exists {
		return nil
	}

	s.logger.InfoContext(ctx, "creating associated token account",
		"account", ata.String(),
		"owner", owner.String(),
		"mint", mint.String(),
	)

	createIx, err := solana.NewCreateATAIdempotentInstruction(s.issuer.PublicKey(), owner, mint)
	if err != nil {
		return err
	}
	if _, err := s.ledger.SendAndConfirm(ctx, []sol.Instruction{createIx}, s.issuer); err != nil {
		return fmt.Errorf("failed to create token account %s: %w", ata, err)
	}
	return nil
}

// startSell hands the sell to the workflow layer. The settlement row stays
// "pending" until the workflow's burn activity advances it, so a failed
// start is retried by the recovery sweep.
func (s *Settler) startSell(ctx context.Context, settlement *db.Settlement) error {
	if err := s.workflows.StartSellSettlement(ctx, settlement.ID, settlement.Signature, settlement.LogIndex); err != nil {
		s.logger.ErrorContext(ctx, "failed to start sell settlement workflow",
			"id", settlement.ID,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.RecordSettlementPhaseFailure("sell", "start")
		}
		return err
	}

	s.logger.InfoContext(ctx, "sell settlement workflow started", "id", settlement.ID)
	return nil
}

// BurnAsset executes the burn phase of a sell settlement. If the burn was
// already confirmed in a previous attempt the recorded signature is returned
// without resubmitting, which makes workflow retries and recovery restarts
// safe.
func (s *Settler) BurnAsset(ctx context.Context, settlementID int64) (string, error) {
	settlement, err := s.store.GetSettlementByID(ctx, settlementID)
	if err != nil {
		return "", err
	}

	switch settlement.Status {
	case db.StatusBurned, db.StatusPayoutPending, db.StatusPaid:
		if settlement.BurnSignature == nil {
			return "", fmt.Errorf("settlement %d is %s but has no burn signature", settlementID, settlement.Status)
		}
		return *settlement.BurnSignature, nil
	case db.StatusPending:
		// proceed
	default:
		return "", fmt.Errorf("settlement %d is %s, cannot burn", settlementID, settlement.Status)
	}

	user, err := sol.PublicKeyFromBase58(settlement.UserAddress)
	if err != nil {
		return "", fmt.Errorf("invalid user address %q: %w", settlement.UserAddress, err)
	}

	attestation, err := solana.DeriveAttestationAddress(s.addrs.Credential, s.addrs.Schema, user, s.addrs.SASProgram)
	if err != nil {
		return "", err
	}
	authority, err := solana.DeriveProgramAuthorityAddress(s.addrs.AssetMint, s.addrs.OrderProgram)
	if err != nil {
		return "", err
	}
	ownerATA, err := solana.DeriveAssociatedTokenAddress(user, s.addrs.AssetMint)
	if err != nil {
		return "", err
	}

	burnIx, err := solana.NewBurnInstruction(s.addrs.OrderProgram, solana.BurnParams{
		Issuer:            s.issuer.PublicKey(),
		Config:            s.addrs.Config,
		Mint:              s.addrs.AssetMint,
		ProgramAuthority:  authority,
		OwnerTokenAccount: ownerATA,
		Schema:            s.addrs.Schema,
		Credential:        s.addrs.Credential,
		Attestation:       attestation,
		SASProgram:        s.addrs.SASProgram,
		Amount:            uint64(settlement.AssetAmount),
	})
	if err != nil {
		return "", err
	}

	sig, err := s.ledger.SendAndConfirm(ctx, []sol.Instruction{burnIx}, s.issuer)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSettlementPhaseFailure("sell", "burn")
		}
		return "", fmt.Errorf("burn transaction failed: %w", err)
	}

	if err := s.store.MarkBurned(ctx, settlementID, sig.String()); err != nil {
		return "", fmt.Errorf("burn confirmed but status update failed: %w", err)
	}
	s.publishStatus(ctx, settlementID)

	s.logger.InfoContext(ctx, "asset burned",
		"id", settlementID,
		"burn_signature", sig.String(),
	)
	return sig.String(), nil
}

// PayoutUsdc executes the payout phase of a sell settlement. Must only run
// after BurnAsset succeeded. Like BurnAsset it is a no-op when the payout is
// already recorded.
func (s *Settler) PayoutUsdc(ctx context.Context, settlementID int64) (string, error) {
	settlement, err := s.store.GetSettlementByID(ctx, settlementID)
	if err != nil {
		return "", err
	}

	switch settlement.Status {
	case db.StatusPaid:
		if settlement.PayoutSignature == nil {
			return "", fmt.Errorf("settlement %d is paid but has no payout signature", settlementID)
		}
		return *settlement.PayoutSignature, nil
	case db.StatusBurned, db.StatusPayoutPending:
		// proceed
	default:
		return "", fmt.Errorf("settlement %d is %s, cannot pay out before burn", settlementID, settlement.Status)
	}

	if err := s.store.MarkPayoutPending(ctx, settlementID); err != nil {
		return "", err
	}

	user, err := sol.PublicKeyFromBase58(settlement.UserAddress)
	if err != nil {
		return "", fmt.Errorf("invalid user address %q: %w", settlement.UserAddress, err)
	}

	sourceATA, err := solana.DeriveAssociatedTokenAddress(s.issuer.PublicKey(), s.addrs.USDCMint)
	if err != nil {
		return "", err
	}
	destATA, err := solana.DeriveAssociatedTokenAddress(user, s.addrs.USDCMint)
	if err != nil {
		return "", err
	}

	// The create is idempotent, so it can ride in the same transaction as
	// the transfer instead of a separate round trip.
	createIx, err := solana.NewCreateATAIdempotentInstruction(s.issuer.PublicKey(), user, s.addrs.USDCMint)
	if err != nil {
		return "", err
	}
	payoutIx := solana.NewPayoutInstruction(
		uint64(settlement.UsdcAmount),
		usdcDecimals,
		sourceATA,
		s.addrs.USDCMint,
		destATA,
		s.issuer.PublicKey(),
	)

	sig, err := s.ledger.SendAndConfirm(ctx, []sol.Instruction{createIx, payoutIx}, s.issuer)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSettlementPhaseFailure("sell", "payout")
		}
		return "", fmt.Errorf("payout transaction failed: %w", err)
	}

	if err := s.store.MarkPaid(ctx, settlementID, sig.String()); err != nil {
		return "", fmt.Errorf("payout confirmed but status update failed: %w", err)
	}
	s.publishStatus(ctx, settlementID)

	s.logger.InfoContext(ctx, "payout delivered",
		"id", settlementID,
		"payout_signature", sig.String(),
	)
	return sig.String(), nil
}

// MarkSettlementFailed records a terminal failure and publishes the status
// change. Called by the workflow layer when retries are exhausted.
func (s *Settler) MarkSettlementFailed(ctx context.Context, settlementID int64, status, reason string) error {
	if err := s.store.MarkFailed(ctx, settlementID, status, reason); err != nil {
		return err
	}
	s.publishStatus(ctx, settlementID)
	return nil
}

// RecoverPending restarts the sell workflow for settlements stranded by a
// crash or a failed workflow start. Workflow-level dedup makes restarting a
// live settlement harmless, and the burn/payout activities skip phases that
// already completed.
func (s *Settler) RecoverPending(ctx context.Context, limit int) error {
	recovered := 0
	for _, status := range []string{db.StatusPending, db.StatusBurned, db.StatusPayoutPending} {
		settlements, err := s.store.ListSettlementsByStatus(ctx, status, limit)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordRecoverySweep("error")
			}
			return fmt.Errorf("recovery sweep failed listing %s settlements: %w", status, err)
		}

		for _, settlement := range settlements {
			if settlement.Kind != string(OrderKindSell) {
				continue
			}
			if err := s.workflows.StartSellSettlement(ctx, settlement.ID, settlement.Signature, settlement.LogIndex); err != nil {
				s.logger.WarnContext(ctx, "recovery restart failed",
					"id", settlement.ID,
					"status", status,
					"error", err,
				)
				continue
			}
			recovered++
		}
	}

	if recovered > 0 {
		s.logger.InfoContext(ctx, "recovery sweep restarted settlements", "count", recovered)
	}
	if s.metrics != nil {
		s.metrics.RecordRecoverySweep("success")
	}
	return nil
}

// publishStatus publishes the settlement's current state to NATS. Publish
// failures are logged, never propagated: the settlement ledger is the source
// of truth and consumers can re-read it.
func (s *Settler) publishStatus(ctx context.Context, settlementID int64) {
	if s.publisher == nil {
		return
	}

	settlement, err := s.store.GetSettlementByID(ctx, settlementID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load settlement for publishing", "id", settlementID, "error", err)
		return
	}

	if err := s.publisher.PublishSettlement(ctx, nats.FromSettlement(settlement)); err != nil {
		s.logger.WarnContext(ctx, "failed to publish settlement event",
			"id", settlementID,
			"status", settlement.Status,
			"error", err,
		)
	}
}
