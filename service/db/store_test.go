package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettlementParams(signature string, logIndex int, kind string) CreateSettlementParams {
	return CreateSettlementParams{
		Signature:       signature,
		LogIndex:        logIndex,
		Kind:            kind,
		UserAddress:     "So11111111111111111111111111111111111111112",
		Ticker:          "sLQD",
		UsdcAmount:      100_000_000,
		AssetAmount:     500_000,
		Price:           200_000_000,
		OracleTimestamp: 1735689600,
	}
}

func TestCreateSettlement(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()

	settlement, inserted, err := ts.CreateSettlement(ctx, testSettlementParams("sig-1", 0, "buy"))
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotNil(t, settlement)

	assert.Equal(t, "sig-1", settlement.Signature)
	assert.Equal(t, 0, settlement.LogIndex)
	assert.Equal(t, "buy", settlement.Kind)
	assert.Equal(t, StatusPending, settlement.Status)
	assert.Nil(t, settlement.MintSignature)
	assert.NotZero(t, settlement.ID)
	assert.False(t, settlement.CreatedAt.IsZero())
}

func TestCreateSettlement_DuplicateIsNoOp(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()

	_, inserted, err := ts.CreateSettlement(ctx, testSettlementParams("sig-1", 0, "buy"))
	require.NoError(t, err)
	require.True(t, inserted)

	// Same event identity: not inserted, not an error.
	dup, inserted, err := ts.CreateSettlement(ctx, testSettlementParams("sig-1", 0, "buy"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Nil(t, dup)

	// Same transaction, different log index: a distinct event.
	_, inserted, err = ts.CreateSettlement(ctx, testSettlementParams("sig-1", 3, "sell"))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestSettlementBuyLifecycle(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()

	settlement, _, err := ts.CreateSettlement(ctx, testSettlementParams("sig-buy", 1, "buy"))
	require.NoError(t, err)

	require.NoError(t, ts.MarkMinted(ctx, settlement.ID, "mint-tx-sig"))

	got, err := ts.GetSettlement(ctx, "sig-buy", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusMinted, got.Status)
	require.NotNil(t, got.MintSignature)
	assert.Equal(t, "mint-tx-sig", *got.MintSignature)
}

func TestSettlementSellLifecycle(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()

	settlement, _, err := ts.CreateSettlement(ctx, testSettlementParams("sig-sell", 0, "sell"))
	require.NoError(t, err)

	require.NoError(t, ts.MarkBurned(ctx, settlement.ID, "burn-tx-sig"))

	got, err := ts.GetSettlementByID(ctx, settlement.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBurned, got.Status)

	require.NoError(t, ts.MarkPayoutPending(ctx, settlement.ID))
	require.NoError(t, ts.MarkPaid(ctx, settlement.ID, "payout-tx-sig"))

	got, err = ts.GetSettlementByID(ctx, settlement.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)
	require.NotNil(t, got.BurnSignature)
	assert.Equal(t, "burn-tx-sig", *got.BurnSignature)
	require.NotNil(t, got.PayoutSignature)
	assert.Equal(t, "payout-tx-sig", *got.PayoutSignature)
}

func TestMarkFailed(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()

	settlement, _, err := ts.CreateSettlement(ctx, testSettlementParams("sig-fail", 0, "sell"))
	require.NoError(t, err)

	require.NoError(t, ts.MarkFailed(ctx, settlement.ID, StatusBurnFailed, "insufficient balance"))

	got, err := ts.GetSettlementByID(ctx, settlement.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBurnFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "insufficient balance", *got.LastError)
}

func TestMarkMinted_NotFound(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	err := ts.MarkMinted(context.Background(), 999999, "sig")
	assert.ErrorIs(t, err, ErrSettlementNotFound)
}

func TestGetSettlement_NotFound(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	_, err := ts.GetSettlement(context.Background(), "no-such-sig", 0)
	assert.ErrorIs(t, err, ErrSettlementNotFound)
}

func TestListSettlementsByStatus(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()

	s1, _, err := ts.CreateSettlement(ctx, testSettlementParams("sig-a", 0, "sell"))
	require.NoError(t, err)
	s2, _, err := ts.CreateSettlement(ctx, testSettlementParams("sig-b", 0, "sell"))
	require.NoError(t, err)
	_, _, err = ts.CreateSettlement(ctx, testSettlementParams("sig-c", 0, "buy"))
	require.NoError(t, err)

	require.NoError(t, ts.MarkBurned(ctx, s1.ID, "burn-1"))
	require.NoError(t, ts.MarkBurned(ctx, s2.ID, "burn-2"))

	burned, err := ts.ListSettlementsByStatus(ctx, StatusBurned, 10)
	require.NoError(t, err)
	require.Len(t, burned, 2)
	// Oldest first.
	assert.Equal(t, s1.ID, burned[0].ID)
	assert.Equal(t, s2.ID, burned[1].ID)

	pending, err := ts.ListSettlementsByStatus(ctx, StatusPending, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestGetRecentSettlementSignatures(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()

	_, _, err := ts.CreateSettlement(ctx, testSettlementParams("sig-x", 0, "buy"))
	require.NoError(t, err)
	// Two events from one transaction produce one signature.
	_, _, err = ts.CreateSettlement(ctx, testSettlementParams("sig-x", 1, "sell"))
	require.NoError(t, err)
	_, _, err = ts.CreateSettlement(ctx, testSettlementParams("sig-y", 0, "buy"))
	require.NoError(t, err)

	sigs, err := ts.GetRecentSettlementSignatures(ctx, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sig-x", "sig-y"}, sigs)
}

func TestWatermark(t *testing.T) {
	SkipIfNoTestDB(t)

	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()
	program := "ordPrgm1111111111111111111111111111111111111"

	// No watermark yet.
	w, err := ts.GetWatermark(ctx, program)
	require.NoError(t, err)
	assert.Nil(t, w)

	require.NoError(t, ts.SetWatermark(ctx, program, "sig-1"))

	w, err = ts.GetWatermark(ctx, program)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "sig-1", w.Signature)

	// Upsert replaces.
	require.NoError(t, ts.SetWatermark(ctx, program, "sig-2"))

	w, err = ts.GetWatermark(ctx, program)
	require.NoError(t, err)
	assert.Equal(t, "sig-2", w.Signature)
}
