package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spoutfi/rwa-relayer/service/db"
)

// mockReader implements SettlementReader for handler tests.
type mockReader struct {
	settlements map[string]*db.Settlement // keyed by "sig:logIndex"
	listResult  []*db.Settlement
	listErr     error
	pingErr     error

	listStatus string
	listLimit  int
}

func (m *mockReader) GetSettlement(ctx context.Context, signature string, logIndex int) (*db.Settlement, error) {
	key := settlementKey(signature, logIndex)
	st, ok := m.settlements[key]
	if !ok {
		return nil, db.ErrSettlementNotFound
	}
	return st, nil
}

func (m *mockReader) ListSettlementsByStatus(ctx context.Context, status string, limit int) ([]*db.Settlement, error) {
	m.listStatus = status
	m.listLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

func (m *mockReader) Ping(ctx context.Context) error {
	return m.pingErr
}

func settlementKey(signature string, logIndex int) string {
	return signature + ":" + strconv.Itoa(logIndex)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSettlement() *db.Settlement {
	mintSig := "mint-sig"
	return &db.Settlement{
		ID:              1,
		Signature:       "tx-sig",
		LogIndex:        0,
		Kind:            "buy",
		UserAddress:     "user-address",
		Ticker:          "sLQD",
		UsdcAmount:      5_000_000,
		AssetAmount:     1_000_000_000,
		Price:           5_000_000,
		OracleTimestamp: 1756700000,
		Status:          db.StatusMinted,
		MintSignature:   &mintSig,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
}

func TestHandleGetSettlement(t *testing.T) {
	st := sampleSettlement()
	reader := &mockReader{settlements: map[string]*db.Settlement{
		settlementKey("tx-sig", 0): st,
	}}

	req := httptest.NewRequest("GET", "/api/v1/settlements/tx-sig/0", nil)
	req.SetPathValue("signature", "tx-sig")
	req.SetPathValue("log_index", "0")
	rec := httptest.NewRecorder()

	handleGetSettlement(reader, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got settlementResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "tx-sig", got.Signature)
	assert.Equal(t, db.StatusMinted, got.Status)
	require.NotNil(t, got.MintSignature)
	assert.Equal(t, "mint-sig", *got.MintSignature)
}

func TestHandleGetSettlement_NotFound(t *testing.T) {
	reader := &mockReader{settlements: map[string]*db.Settlement{}}

	req := httptest.NewRequest("GET", "/api/v1/settlements/unknown/0", nil)
	req.SetPathValue("signature", "unknown")
	req.SetPathValue("log_index", "0")
	rec := httptest.NewRecorder()

	handleGetSettlement(reader, testLogger())(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetSettlement_BadLogIndex(t *testing.T) {
	reader := &mockReader{}

	req := httptest.NewRequest("GET", "/api/v1/settlements/tx-sig/abc", nil)
	req.SetPathValue("signature", "tx-sig")
	req.SetPathValue("log_index", "abc")
	rec := httptest.NewRecorder()

	handleGetSettlement(reader, testLogger())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListSettlements(t *testing.T) {
	reader := &mockReader{listResult: []*db.Settlement{sampleSettlement()}}

	req := httptest.NewRequest("GET", "/api/v1/settlements?status=minted", nil)
	rec := httptest.NewRecorder()

	handleListSettlements(reader, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, db.StatusMinted, reader.listStatus)
	assert.Equal(t, defaultListLimit, reader.listLimit)

	var got struct {
		Settlements []settlementResponse `json:"settlements"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got.Settlements, 1)
	assert.Equal(t, "sLQD", got.Settlements[0].Ticker)
}

func TestHandleListSettlements_RequiresStatus(t *testing.T) {
	reader := &mockReader{}

	req := httptest.NewRequest("GET", "/api/v1/settlements", nil)
	rec := httptest.NewRecorder()

	handleListSettlements(reader, testLogger())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListSettlements_RejectsUnknownStatus(t *testing.T) {
	reader := &mockReader{}

	req := httptest.NewRequest("GET", "/api/v1/settlements?status=exploded", nil)
	rec := httptest.NewRecorder()

	handleListSettlements(reader, testLogger())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListSettlements_ClampsLimit(t *testing.T) {
	reader := &mockReader{}

	req := httptest.NewRequest("GET", "/api/v1/settlements?status=pending&limit=9999", nil)
	rec := httptest.NewRecorder()

	handleListSettlements(reader, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxListLimit, reader.listLimit)
}

func TestHandleListSettlements_StoreError(t *testing.T) {
	reader := &mockReader{listErr: errors.New("connection refused")}

	req := httptest.NewRequest("GET", "/api/v1/settlements?status=pending", nil)
	rec := httptest.NewRecorder()

	handleListSettlements(reader, testLogger())(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	reader := &mockReader{}

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	handleHealthz(reader)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "ok", got["status"])
}

func TestHandleHealthz_DatabaseDown(t *testing.T) {
	reader := &mockReader{pingErr: errors.New("dial tcp: connection refused")}

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	handleHealthz(reader)(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight should not reach the wrapped handler")
	}))

	req := httptest.NewRequest("OPTIONS", "/api/v1/settlements", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
