package relay

import (
	"github.com/gagliardetto/solana-go"
)

// OrderKind distinguishes the two order event types.
type OrderKind string

const (
	OrderKindBuy  OrderKind = "buy"
	OrderKindSell OrderKind = "sell"
)

// OrderEvent is a strongly-typed order-creation event decoded from the order
// program's logs. It is identified by (Signature, LogIndex) and is immutable
// once decoded.
type OrderEvent struct {
	Kind            OrderKind
	User            solana.PublicKey
	Ticker          string
	UsdcAmount      uint64
	AssetAmount     uint64
	Price           uint64
	OracleTimestamp uint64

	// Provenance
	Signature string
	LogIndex  int
}

// ToMap renders the event as a plain map for jq filter evaluation. Amounts
// are emitted as ints because jq has no unsigned 64-bit type.
func (e *OrderEvent) ToMap() map[string]any {
	return map[string]any{
		"kind":             string(e.Kind),
		"user":             e.User.String(),
		"ticker":           e.Ticker,
		"usdc_amount":      int(e.UsdcAmount),
		"asset_amount":     int(e.AssetAmount),
		"price":            int(e.Price),
		"oracle_timestamp": int(e.OracleTimestamp),
		"signature":        e.Signature,
		"log_index":        e.LogIndex,
	}
}
