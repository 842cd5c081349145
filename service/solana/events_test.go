package solana

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeOrderEvent builds the raw event payload by hand, independently of the
// borsh decoder under test: discriminator, then 32-byte user, u32-length
// ticker, three u64 amounts, i64 timestamp, all little-endian.
func encodeOrderEvent(t *testing.T, name string, user solana.PublicKey, ticker string, usdcAmount, assetAmount, price uint64, oracleTS int64) string {
	t.Helper()

	disc := EventDiscriminator(name)
	buf := make([]byte, 0, 8+32+4+len(ticker)+8*4)
	buf = append(buf, disc[:]...)
	buf = append(buf, user.Bytes()...)

	lenBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBytes, uint32(len(ticker)))
	buf = append(buf, lenBytes...)
	buf = append(buf, []byte(ticker)...)

	for _, v := range []uint64{usdcAmount, assetAmount, price, uint64(oracleTS)} {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		buf = append(buf, b...)
	}

	return eventLogPrefix + base64.StdEncoding.EncodeToString(buf)
}

func TestParseEvents_BuyOrder(t *testing.T) {
	user := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	logs := []string{
		"Program 11111111111111111111111111111111 invoke [1]",
		encodeOrderEvent(t, EventBuyOrderCreated, user, "sLQD", 100_000_000, 500_000, 200_000_000, 1735689600),
		"Program 11111111111111111111111111111111 success",
	}

	events, errs := ParseEvents(logs)
	require.Empty(t, errs)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, EventBuyOrderCreated, ev.Name)
	assert.Equal(t, 1, ev.LogIndex)
	assert.Equal(t, user, ev.Fields["user"])
	assert.Equal(t, "sLQD", ev.Fields["ticker"])
	assert.Equal(t, uint64(100_000_000), ev.Fields["usdcAmount"])
	assert.Equal(t, uint64(500_000), ev.Fields["assetAmount"])
	assert.Equal(t, uint64(200_000_000), ev.Fields["price"])
	assert.Equal(t, int64(1735689600), ev.Fields["oracleTimestamp"])
}

func TestParseEvents_SellOrder(t *testing.T) {
	user := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	logs := []string{
		encodeOrderEvent(t, EventSellOrderCreated, user, "sTSLA", 50_000_000, 250_000, 200_000_000, 1735689601),
	}

	events, errs := ParseEvents(logs)
	require.Empty(t, errs)
	require.Len(t, events, 1)
	assert.Equal(t, EventSellOrderCreated, events[0].Name)
	assert.Equal(t, uint64(250_000), events[0].Fields["assetAmount"])
}

func TestParseEvents_MultipleEventsInOneTransaction(t *testing.T) {
	user := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	logs := []string{
		encodeOrderEvent(t, EventBuyOrderCreated, user, "sLQD", 1, 2, 3, 4),
		"Program log: Instruction: Mint",
		encodeOrderEvent(t, EventSellOrderCreated, user, "sLQD", 5, 6, 7, 8),
	}

	events, errs := ParseEvents(logs)
	require.Empty(t, errs)
	require.Len(t, events, 2)
	assert.Equal(t, EventBuyOrderCreated, events[0].Name)
	assert.Equal(t, 0, events[0].LogIndex)
	assert.Equal(t, EventSellOrderCreated, events[1].Name)
	assert.Equal(t, 2, events[1].LogIndex)
}

func TestParseEvents_IgnoresUnknownDiscriminators(t *testing.T) {
	// Valid base64, valid length, unrecognized discriminator.
	payload := base64.StdEncoding.EncodeToString(make([]byte, 48))
	logs := []string{
		eventLogPrefix + payload,
		"Program log: something else entirely",
	}

	events, errs := ParseEvents(logs)
	assert.Empty(t, events)
	assert.Empty(t, errs)
}

func TestParseEvents_IgnoresMalformedBase64(t *testing.T) {
	logs := []string{eventLogPrefix + "!!!not-base64!!!"}

	events, errs := ParseEvents(logs)
	assert.Empty(t, events)
	assert.Empty(t, errs)
}

func TestParseEvents_TruncatedPayloadIsScopedError(t *testing.T) {
	user := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	// Known discriminator, truncated body.
	disc := EventDiscriminator(EventBuyOrderCreated)
	truncated := append(disc[:], 0x01, 0x02)
	logs := []string{
		eventLogPrefix + base64.StdEncoding.EncodeToString(truncated),
		encodeOrderEvent(t, EventSellOrderCreated, user, "sLQD", 9, 10, 11, 12),
	}

	events, errs := ParseEvents(logs)
	// The bad event errors; the sibling event still decodes.
	require.Len(t, errs, 1)
	require.Len(t, events, 1)
	assert.Equal(t, EventSellOrderCreated, events[0].Name)
}

func TestParseEvents_EmptyLogs(t *testing.T) {
	events, errs := ParseEvents(nil)
	assert.Empty(t, events)
	assert.Empty(t, errs)
}

func TestEventDiscriminator_Deterministic(t *testing.T) {
	a := EventDiscriminator(EventBuyOrderCreated)
	b := EventDiscriminator(EventBuyOrderCreated)
	c := EventDiscriminator(EventSellOrderCreated)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
