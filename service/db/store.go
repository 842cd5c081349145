package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Settlement statuses. A settlement row is created as soon as an order event
// is observed; the status then tracks the on-chain work.
const (
	StatusPending       = "pending"        // event observed, nothing submitted yet
	StatusMinted        = "minted"         // buy: mint confirmed, terminal
	StatusBurned        = "burned"         // sell: burn confirmed, payout not yet attempted
	StatusPayoutPending = "payout_pending" // sell: payout submitted or retrying
	StatusPaid          = "paid"           // sell: payout confirmed, terminal
	StatusBurnFailed    = "burn_failed"    // sell: burn failed, nothing debited
	StatusFailed        = "failed"         // buy: mint failed
)

// ErrSettlementNotFound is returned when a settlement lookup matches no row.
var ErrSettlementNotFound = errors.New("settlement not found")

// Settlement is one observed order event and its settlement progress.
// (Signature, LogIndex) identifies the event uniquely across the ledger.
type Settlement struct {
	ID              int64
	Signature       string
	LogIndex        int
	Kind            string // "buy" or "sell"
	UserAddress     string
	Ticker          string
	UsdcAmount      int64
	AssetAmount     int64
	Price           int64
	OracleTimestamp int64
	Status          string
	MintSignature   *string
	BurnSignature   *string
	PayoutSignature *string
	LastError       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Watermark records the newest processed transaction signature per program,
// used as the exclusive lower bound for the next poll.
type Watermark struct {
	ProgramAddress string
	Signature      string
	UpdatedAt      time.Time
}

// Store provides access to the settlement database.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateSettlementParams contains the fields for recording a new settlement.
type CreateSettlementParams struct {
	Signature       string
	LogIndex        int
	Kind            string
	UserAddress     string
	Ticker          string
	UsdcAmount      int64
	AssetAmount     int64
	Price           int64
	OracleTimestamp int64
}

const settlementColumns = `
	id, signature, log_index, kind, user_address, ticker,
	usdc_amount, asset_amount, price, oracle_timestamp,
	status, mint_signature, burn_signature, payout_signature,
	last_error, created_at, updated_at`

// CreateSettlement inserts a settlement row in status "pending". If a row for
// (signature, log_index) already exists the insert is a no-op and inserted is
// false. This insert-if-absent is the dedup gate: whoever wins the insert
// owns the settlement.
func (s *Store) CreateSettlement(ctx context.Context, params CreateSettlementParams) (*Settlement, bool, error) {
	query := `
		INSERT INTO settlements (
			signature, log_index, kind, user_address, ticker,
			usdc_amount, asset_amount, price, oracle_timestamp, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (signature, log_index) DO NOTHING
		RETURNING ` + settlementColumns

	row := s.pool.QueryRow(ctx, query,
		params.Signature,
		params.LogIndex,
		params.Kind,
		params.UserAddress,
		params.Ticker,
		params.UsdcAmount,
		params.AssetAmount,
		params.Price,
		params.OracleTimestamp,
		StatusPending,
	)

	settlement, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict: the row already exists.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to create settlement: %w", err)
	}
	return settlement, true, nil
}

// GetSettlement fetches a settlement by its event identity.
func (s *Store) GetSettlement(ctx context.Context, signature string, logIndex int) (*Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE signature = $1 AND log_index = $2`

	settlement, err := scanSettlement(s.pool.QueryRow(ctx, query, signature, logIndex))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// GetSettlementByID fetches a settlement by its row ID.
func (s *Store) GetSettlementByID(ctx context.Context, id int64) (*Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`

	settlement, err := scanSettlement(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("failed to get settlement by id: %w", err)
	}
	return settlement, nil
}

// MarkMinted records a confirmed mint and moves the settlement to "minted".
func (s *Store) MarkMinted(ctx context.Context, id int64, mintSignature string) error {
	return s.updatePhase(ctx, id, StatusMinted, "mint_signature", mintSignature)
}

// MarkBurned records a confirmed burn and moves the settlement to "burned".
// The payout has not been attempted yet at this point.
func (s *Store) MarkBurned(ctx context.Context, id int64, burnSignature string) error {
	return s.updatePhase(ctx, id, StatusBurned, "burn_signature", burnSignature)
}

// MarkPayoutPending moves a burned settlement into the payout phase.
func (s *Store) MarkPayoutPending(ctx context.Context, id int64) error {
	return s.updateStatus(ctx, id, StatusPayoutPending, nil)
}

// MarkPaid records a confirmed payout and moves the settlement to "paid".
func (s *Store) MarkPaid(ctx context.Context, id int64, payoutSignature string) error {
	return s.updatePhase(ctx, id, StatusPaid, "payout_signature", payoutSignature)
}

// MarkFailed records a failure with the given terminal status and error text.
func (s *Store) MarkFailed(ctx context.Context, id int64, status string, lastError string) error {
	return s.updateStatus(ctx, id, status, &lastError)
}

func (s *Store) updatePhase(ctx context.Context, id int64, status, sigColumn, sig string) error {
	query := fmt.Sprintf(`
		UPDATE settlements
		SET status = $1, %s = $2, last_error = NULL, updated_at = NOW()
		WHERE id = $3`, sigColumn)

	tag, err := s.pool.Exec(ctx, query, status, sig, id)
	if err != nil {
		return fmt.Errorf("failed to update settlement %d to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

func (s *Store) updateStatus(ctx context.Context, id int64, status string, lastError *string) error {
	query := `
		UPDATE settlements
		SET status = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3`

	tag, err := s.pool.Exec(ctx, query, status, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to update settlement %d to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

// ListSettlementsByStatus returns settlements in the given status, oldest first.
func (s *Store) ListSettlementsByStatus(ctx context.Context, status string, limit int) ([]*Settlement, error) {
	query := `SELECT ` + settlementColumns + `
		FROM settlements
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by status: %w", err)
	}
	defer rows.Close()

	var settlements []*Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	return settlements, rows.Err()
}

// GetRecentSettlementSignatures returns the transaction signatures of the most
// recently observed settlements. The watcher passes these to the RPC layer so
// already-processed transactions are skipped without refetching their logs.
func (s *Store) GetRecentSettlementSignatures(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT signature
		FROM settlements
		WHERE created_at > NOW() - INTERVAL '1 day'
		ORDER BY signature
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent settlement signatures: %w", err)
	}
	defer rows.Close()

	var signatures []string
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		signatures = append(signatures, sig)
	}
	return signatures, rows.Err()
}

// GetWatermark returns the poll watermark for the program, or nil if no tick
// has completed yet.
func (s *Store) GetWatermark(ctx context.Context, programAddress string) (*Watermark, error) {
	query := `SELECT program_address, signature, updated_at FROM watermarks WHERE program_address = $1`

	var w Watermark
	err := s.pool.QueryRow(ctx, query, programAddress).Scan(&w.ProgramAddress, &w.Signature, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}
	return &w, nil
}

// SetWatermark upserts the poll watermark for the program.
func (s *Store) SetWatermark(ctx context.Context, programAddress, signature string) error {
	query := `
		INSERT INTO watermarks (program_address, signature, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (program_address)
		DO UPDATE SET signature = EXCLUDED.signature, updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, programAddress, signature)
	if err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanSettlement(row pgx.Row) (*Settlement, error) {
	var st Settlement
	err := row.Scan(
		&st.ID,
		&st.Signature,
		&st.LogIndex,
		&st.Kind,
		&st.UserAddress,
		&st.Ticker,
		&st.UsdcAmount,
		&st.AssetAmount,
		&st.Price,
		&st.OracleTimestamp,
		&st.Status,
		&st.MintSignature,
		&st.BurnSignature,
		&st.PayoutSignature,
		&st.LastError,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
