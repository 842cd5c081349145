package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/spoutfi/rwa-relayer/service/db"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SettlementReader is the read-only view of the settlement store the HTTP
// surface needs.
type SettlementReader interface {
	GetSettlement(ctx context.Context, signature string, logIndex int) (*db.Settlement, error)
	ListSettlementsByStatus(ctx context.Context, status string, limit int) ([]*db.Settlement, error)
	Ping(ctx context.Context) error
}

var validStatuses = map[string]bool{
	db.StatusPending:       true,
	db.StatusMinted:        true,
	db.StatusBurned:        true,
	db.StatusPayoutPending: true,
	db.StatusPaid:          true,
	db.StatusBurnFailed:    true,
	db.StatusFailed:        true,
}

// settlementResponse is the JSON shape of a settlement.
type settlementResponse struct {
	ID              int64     `json:"id"`
	Signature       string    `json:"signature"`
	LogIndex        int       `json:"log_index"`
	Kind            string    `json:"kind"`
	UserAddress     string    `json:"user_address"`
	Ticker          string    `json:"ticker"`
	UsdcAmount      int64     `json:"usdc_amount"`
	AssetAmount     int64     `json:"asset_amount"`
	Price           int64     `json:"price"`
	OracleTimestamp int64     `json:"oracle_timestamp"`
	Status          string    `json:"status"`
	MintSignature   *string   `json:"mint_signature,omitempty"`
	BurnSignature   *string   `json:"burn_signature,omitempty"`
	PayoutSignature *string   `json:"payout_signature,omitempty"`
	LastError       *string   `json:"last_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toSettlementResponse(st *db.Settlement) settlementResponse {
	return settlementResponse{
		ID:              st.ID,
		Signature:       st.Signature,
		LogIndex:        st.LogIndex,
		Kind:            st.Kind,
		UserAddress:     st.UserAddress,
		Ticker:          st.Ticker,
		UsdcAmount:      st.UsdcAmount,
		AssetAmount:     st.AssetAmount,
		Price:           st.Price,
		OracleTimestamp: st.OracleTimestamp,
		Status:          st.Status,
		MintSignature:   st.MintSignature,
		BurnSignature:   st.BurnSignature,
		PayoutSignature: st.PayoutSignature,
		LastError:       st.LastError,
		CreatedAt:       st.CreatedAt,
		UpdatedAt:       st.UpdatedAt,
	}
}

// handleListSettlements lists settlements in a given status.
// Query params: status (required), limit (optional, default 50, max 500).
func handleListSettlements(store SettlementReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		if status == "" {
			writeError(w, http.StatusBadRequest, "status query parameter is required")
			return
		}
		if !validStatuses[status] {
			writeError(w, http.StatusBadRequest, "unknown status: "+status)
			return
		}

		limit := defaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = parsed
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		settlements, err := store.ListSettlementsByStatus(r.Context(), status, limit)
		if err != nil {
			logger.Error("failed to list settlements", "status", status, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list settlements")
			return
		}

		response := make([]settlementResponse, 0, len(settlements))
		for _, st := range settlements {
			response = append(response, toSettlementResponse(st))
		}
		writeJSON(w, http.StatusOK, map[string]any{"settlements": response})
	}
}

// handleGetSettlement fetches a single settlement by its event identity,
// i.e. the transaction signature plus the event's log index.
func handleGetSettlement(store SettlementReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")
		logIndex, err := strconv.Atoi(r.PathValue("log_index"))
		if err != nil || logIndex < 0 {
			writeError(w, http.StatusBadRequest, "log_index must be a non-negative integer")
			return
		}

		settlement, err := store.GetSettlement(r.Context(), signature, logIndex)
		if err != nil {
			if errors.Is(err, db.ErrSettlementNotFound) {
				writeError(w, http.StatusNotFound, "settlement not found")
				return
			}
			logger.Error("failed to get settlement",
				"signature", signature,
				"log_index", logIndex,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "failed to get settlement")
			return
		}

		writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
	}
}

// handleHealthz reports process and database health.
func handleHealthz(store SettlementReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
