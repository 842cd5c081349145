package solana

import (
	"time"
)

// ProgramTransaction is a finalized transaction fetched for the order program.
// This is our domain model, independent of the RPC response format. Only the
// log messages matter downstream; the relayer never inspects instructions of
// transactions it did not build itself.
type ProgramTransaction struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Logs      []string
	Err       *string // nil if the transaction succeeded on-chain
}
