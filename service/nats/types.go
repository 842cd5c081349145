package nats

import (
	"time"

	"github.com/spoutfi/rwa-relayer/service/db"
)

// SettlementEvent represents a settlement status change published to NATS.
// Events are published to the subject "settlements.{status}" in JetStream so
// downstream consumers (accounting, notifications) can subscribe selectively.
type SettlementEvent struct {
	// Event identity on the ledger
	Signature string `json:"signature"`
	LogIndex  int    `json:"log_index"`

	// Order details
	Kind        string `json:"kind"` // "buy" or "sell"
	UserAddress string `json:"user_address"`
	Ticker      string `json:"ticker"`
	UsdcAmount  int64  `json:"usdc_amount"`
	AssetAmount int64  `json:"asset_amount"`
	Price       int64  `json:"price"`

	// Settlement progress
	Status          string  `json:"status"`
	MintSignature   *string `json:"mint_signature,omitempty"`
	BurnSignature   *string `json:"burn_signature,omitempty"`
	PayoutSignature *string `json:"payout_signature,omitempty"`
	LastError       *string `json:"last_error,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromSettlement converts a database settlement to a SettlementEvent for publishing.
func FromSettlement(st *db.Settlement) *SettlementEvent {
	return &SettlementEvent{
		Signature:       st.Signature,
		LogIndex:        st.LogIndex,
		Kind:            st.Kind,
		UserAddress:     st.UserAddress,
		Ticker:          st.Ticker,
		UsdcAmount:      st.UsdcAmount,
		AssetAmount:     st.AssetAmount,
		Price:           st.Price,
		Status:          st.Status,
		MintSignature:   st.MintSignature,
		BurnSignature:   st.BurnSignature,
		PayoutSignature: st.PayoutSignature,
		LastError:       st.LastError,
		PublishedAt:     time.Now().UTC(),
	}
}
