package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"

	"github.com/spoutfi/rwa-relayer/service/db"
	"github.com/spoutfi/rwa-relayer/service/metrics"
	"github.com/spoutfi/rwa-relayer/service/solana"
)

// maxExistingSignatures bounds the dedup list passed to the RPC layer.
const maxExistingSignatures = 1000

// WatcherStore is the subset of the database store the watcher needs.
type WatcherStore interface {
	GetWatermark(ctx context.Context, programAddress string) (*db.Watermark, error)
	SetWatermark(ctx context.Context, programAddress, signature string) error
	GetRecentSettlementSignatures(ctx context.Context, limit int) ([]string, error)
}

// TransactionFetcher is the subset of the Solana client the watcher needs.
type TransactionFetcher interface {
	GetProgramTransactions(ctx context.Context, params solana.GetProgramTransactionsParams) ([]*solana.ProgramTransaction, error)
}

// EventSettler consumes decoded order events.
type EventSettler interface {
	Settle(ctx context.Context, event *OrderEvent) error
}

// Watcher polls the ledger for new order program transactions and feeds
// decoded events to the settler. Ticks run sequentially on one goroutine, so
// a slow tick delays the next one instead of overlapping with it.
type Watcher struct {
	fetcher  TransactionFetcher
	store    WatcherStore
	settler  EventSettler
	program  sol.PublicKey
	interval time.Duration
	limit    int
	filter   *gojq.Code
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewWatcher creates a Watcher. filterJQ is an optional jq expression
// evaluated against each decoded event; an empty string disables filtering.
func NewWatcher(
	fetcher TransactionFetcher,
	store WatcherStore,
	settler EventSettler,
	program sol.PublicKey,
	interval time.Duration,
	limit int,
	filterJQ string,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Watcher, error) {
	var filter *gojq.Code
	if filterJQ != "" {
		query, err := gojq.Parse(filterJQ)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event filter %q: %w", filterJQ, err)
		}
		filter, err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile event filter %q: %w", filterJQ, err)
		}
	}

	return &Watcher{
		fetcher:  fetcher,
		store:    store,
		settler:  settler,
		program:  program,
		interval: interval,
		limit:    limit,
		filter:   filter,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Run polls until the context is canceled. The first tick fires immediately.
// A tick's failure is logged and never stops the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "watcher starting",
		"program", w.program.String(),
		"interval", w.interval.String(),
		"lookback_limit", w.limit,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Tick(ctx); err != nil {
			w.logger.ErrorContext(ctx, "poll tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "watcher stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one poll: fetch new program transactions inside the lookback
// window, decode their events, and hand each to the settler. Errors on one
// event are scoped to that event; errors fetching the window fail the tick.
func (w *Watcher) Tick(ctx context.Context) error {
	start := time.Now()

	watermark, err := w.store.GetWatermark(ctx, w.program.String())
	if err != nil {
		w.recordTick("error", start)
		return err
	}

	var until *sol.Signature
	if watermark != nil {
		sig, err := sol.SignatureFromBase58(watermark.Signature)
		if err != nil {
			// A corrupt watermark falls back to the bare lookback window.
			w.logger.WarnContext(ctx, "ignoring invalid watermark", "signature", watermark.Signature, "error", err)
		} else {
			until = &sig
		}
	}

	existing, err := w.store.GetRecentSettlementSignatures(ctx, maxExistingSignatures)
	if err != nil {
		w.recordTick("error", start)
		return err
	}

	txns, err := w.fetcher.GetProgramTransactions(ctx, solana.GetProgramTransactionsParams{
		Program:            w.program,
		Limit:              w.limit,
		Until:              until,
		ExistingSignatures: existing,
	})
	if err != nil {
		w.recordTick("error", start)
		return err
	}

	if len(txns) == 0 {
		w.logger.DebugContext(ctx, "no new transactions")
		w.recordTick("success", start)
		return nil
	}

	// Process oldest first so settlements roughly follow ledger order. The
	// watermark advances only across the contiguous oldest-first prefix of
	// transactions whose events all reached the settlement ledger. An event
	// whose settle call failed before its row was inserted has no record
	// anywhere, so the watermark must not move past it; holding it back
	// keeps the transaction inside the next tick's window.
	var newest string
	advancing := true
	for i := len(txns) - 1; i >= 0; i-- {
		if !w.processTransaction(ctx, txns[i]) {
			advancing = false
		} else if advancing {
			newest = txns[i].Signature
		}
	}

	if newest != "" {
		if err := w.store.SetWatermark(ctx, w.program.String(), newest); err != nil {
			w.logger.WarnContext(ctx, "failed to advance watermark", "signature", newest, "error", err)
		}
	}

	w.recordTick("success", start)
	return nil
}

// processTransaction decodes and settles every order event in one
// transaction's logs. Each event is handled independently. The return value
// reports whether every event reached the settlement ledger; undecodable
// payloads and filtered events count as handled because a retry cannot
// change their outcome.
func (w *Watcher) processTransaction(ctx context.Context, txn *solana.ProgramTransaction) bool {
	ok := true
	records, decodeErrs := solana.ParseEvents(txn.Logs)
	for _, err := range decodeErrs {
		w.logger.WarnContext(ctx, "undecodable event payload",
			"signature", txn.Signature,
			"error", err,
		)
		if w.metrics != nil {
			w.metrics.RecordDecodeFailure(w.program.String())
		}
	}

	for _, rec := range records {
		event, err := DecodeOrderEvent(rec, txn.Signature)
		if err != nil {
			w.logger.WarnContext(ctx, "failed to decode order event",
				"signature", txn.Signature,
				"log_index", rec.LogIndex,
				"error", err,
			)
			if w.metrics != nil {
				w.metrics.RecordDecodeFailure(w.program.String())
			}
			continue
		}

		if w.metrics != nil {
			w.metrics.RecordEventDecoded(w.program.String(), string(event.Kind))
		}

		if !w.passesFilter(ctx, event) {
			w.logger.DebugContext(ctx, "event rejected by filter",
				"signature", event.Signature,
				"log_index", event.LogIndex,
			)
			if w.metrics != nil {
				w.metrics.RecordEventFiltered(w.program.String())
			}
			continue
		}

		if err := w.settler.Settle(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "failed to settle event",
				"signature", event.Signature,
				"log_index", event.LogIndex,
				"kind", event.Kind,
				"error", err,
			)
			ok = false
		}
	}

	return ok
}

// passesFilter evaluates the jq filter against the event. No filter means
// everything passes. A filter error rejects the event.
func (w *Watcher) passesFilter(ctx context.Context, event *OrderEvent) bool {
	if w.filter == nil {
		return true
	}

	iter := w.filter.Run(event.ToMap())
	v, ok := iter.Next()
	if !ok {
		return false
	}
	if err, isErr := v.(error); isErr {
		w.logger.DebugContext(ctx, "event filter error", "error", err)
		return false
	}
	return isTruthy(v)
}

// isTruthy follows jq semantics: false and null are falsy, everything else
// is truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func (w *Watcher) recordTick(status string, start time.Time) {
	if w.metrics != nil {
		w.metrics.RecordPollTick(w.program.String(), status, time.Since(start).Seconds())
	}
}
