package relay

import (
	"math/big"
	"testing"

	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spoutfi/rwa-relayer/service/solana"
)

var testUser = sol.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

func buyRecord(fields map[string]any) solana.EventRecord {
	return solana.EventRecord{
		Name:     solana.EventBuyOrderCreated,
		Fields:   fields,
		LogIndex: 2,
	}
}

func TestDecodeOrderEvent_Buy(t *testing.T) {
	rec := buyRecord(map[string]any{
		"user":            testUser,
		"ticker":          "sLQD",
		"usdcAmount":      uint64(100_000_000),
		"assetAmount":     uint64(500_000),
		"price":           uint64(200_000_000),
		"oracleTimestamp": int64(1735689600),
	})

	event, err := DecodeOrderEvent(rec, "tx-sig")
	require.NoError(t, err)

	assert.Equal(t, OrderKindBuy, event.Kind)
	assert.Equal(t, testUser, event.User)
	assert.Equal(t, "sLQD", event.Ticker)
	assert.Equal(t, uint64(100_000_000), event.UsdcAmount)
	assert.Equal(t, uint64(500_000), event.AssetAmount)
	assert.Equal(t, uint64(200_000_000), event.Price)
	assert.Equal(t, uint64(1735689600), event.OracleTimestamp)
	assert.Equal(t, "tx-sig", event.Signature)
	assert.Equal(t, 2, event.LogIndex)
}

func TestDecodeOrderEvent_Sell(t *testing.T) {
	rec := solana.EventRecord{
		Name: solana.EventSellOrderCreated,
		Fields: map[string]any{
			"user":            testUser,
			"ticker":          "sTSLA",
			"usdcAmount":      uint64(1),
			"assetAmount":     uint64(2),
			"price":           uint64(3),
			"oracleTimestamp": int64(4),
		},
	}

	event, err := DecodeOrderEvent(rec, "tx-sig")
	require.NoError(t, err)
	assert.Equal(t, OrderKindSell, event.Kind)
}

func TestDecodeOrderEvent_SnakeCaseFields(t *testing.T) {
	rec := buyRecord(map[string]any{
		"user":             testUser,
		"ticker":           "sLQD",
		"usdc_amount":      uint64(10),
		"asset_amount":     uint64(20),
		"price":            uint64(30),
		"oracle_timestamp": int64(40),
	})

	event, err := DecodeOrderEvent(rec, "tx-sig")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), event.UsdcAmount)
	assert.Equal(t, uint64(20), event.AssetAmount)
	assert.Equal(t, uint64(40), event.OracleTimestamp)
}

func TestDecodeOrderEvent_CamelCaseTakesPrecedence(t *testing.T) {
	rec := buyRecord(map[string]any{
		"user":            testUser,
		"ticker":          "sLQD",
		"usdcAmount":      uint64(1),
		"usdc_amount":     uint64(999),
		"assetAmount":     uint64(2),
		"price":           uint64(3),
		"oracleTimestamp": int64(4),
	})

	event, err := DecodeOrderEvent(rec, "tx-sig")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), event.UsdcAmount)
}

func TestDecodeOrderEvent_NumericCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  uint64
	}{
		{"uint64", uint64(42), 42},
		{"int64", int64(42), 42},
		{"int", int(42), 42},
		{"string", "42", 42},
		{"big.Int", big.NewInt(42), 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := buyRecord(map[string]any{
				"user":            testUser,
				"ticker":          "sLQD",
				"usdcAmount":      tt.value,
				"assetAmount":     uint64(1),
				"price":           uint64(1),
				"oracleTimestamp": int64(1),
			})

			event, err := DecodeOrderEvent(rec, "tx-sig")
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.UsdcAmount)
		})
	}
}

func TestDecodeOrderEvent_RejectsNegativeNumbers(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"int64", int64(-1)},
		{"int", int(-1)},
		{"string", "-1"},
		{"big.Int", big.NewInt(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := buyRecord(map[string]any{
				"user":            testUser,
				"ticker":          "sLQD",
				"usdcAmount":      uint64(1),
				"assetAmount":     uint64(1),
				"price":           uint64(1),
				"oracleTimestamp": tt.value,
			})

			_, err := DecodeOrderEvent(rec, "tx-sig")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "oracleTimestamp")
		})
	}
}

func TestDecodeOrderEvent_UserAsBase58String(t *testing.T) {
	rec := buyRecord(map[string]any{
		"user":            testUser.String(),
		"ticker":          "sLQD",
		"usdcAmount":      uint64(1),
		"assetAmount":     uint64(1),
		"price":           uint64(1),
		"oracleTimestamp": int64(1),
	})

	event, err := DecodeOrderEvent(rec, "tx-sig")
	require.NoError(t, err)
	assert.Equal(t, testUser, event.User)
}

func TestDecodeOrderEvent_MissingField(t *testing.T) {
	rec := buyRecord(map[string]any{
		"user":            testUser,
		"ticker":          "sLQD",
		"assetAmount":     uint64(1),
		"price":           uint64(1),
		"oracleTimestamp": int64(1),
	})

	_, err := DecodeOrderEvent(rec, "tx-sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usdcAmount")
}

func TestDecodeOrderEvent_InvalidUser(t *testing.T) {
	rec := buyRecord(map[string]any{
		"user":            "not-an-address",
		"ticker":          "sLQD",
		"usdcAmount":      uint64(1),
		"assetAmount":     uint64(1),
		"price":           uint64(1),
		"oracleTimestamp": int64(1),
	})

	_, err := DecodeOrderEvent(rec, "tx-sig")
	require.Error(t, err)
}

func TestDecodeOrderEvent_UnknownEventName(t *testing.T) {
	rec := solana.EventRecord{Name: "SomethingElse", Fields: map[string]any{}}

	_, err := DecodeOrderEvent(rec, "tx-sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event name")
}
