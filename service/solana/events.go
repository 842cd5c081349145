package solana

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Anchor programs emit events as base64 payloads in program log lines.
// The payload starts with an 8-byte discriminator derived from the event
// name, followed by the borsh-encoded event struct.
const eventLogPrefix = "Program data: "

// Event names emitted by the order program.
const (
	EventBuyOrderCreated  = "BuyOrderCreated"
	EventSellOrderCreated = "SellOrderCreated"
)

// EventRecord is a decoded event from a program log line. Fields is a
// loosely-typed bag keyed by the struct field names; the strongly-typed
// mapping happens downstream so decode failures can be scoped per event.
type EventRecord struct {
	Name     string
	Fields   map[string]any
	LogIndex int // position of the event within the transaction's log lines
}

// orderCreatedEvent is the borsh wire layout shared by BuyOrderCreated and
// SellOrderCreated. Field order must match the on-chain struct exactly.
type orderCreatedEvent struct {
	User            solana.PublicKey
	Ticker          string
	UsdcAmount      uint64
	AssetAmount     uint64
	Price           uint64
	OracleTimestamp int64
}

// EventDiscriminator computes the 8-byte Anchor event discriminator,
// sha256("event:<Name>")[0:8].
func EventDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var disc [8]byte
	copy(disc[:], sum[:8])
	return disc
}

var (
	buyOrderDiscriminator  = EventDiscriminator(EventBuyOrderCreated)
	sellOrderDiscriminator = EventDiscriminator(EventSellOrderCreated)
)

// ParseEvents scans the transaction log lines for order events and decodes
// every recognized one. Log lines that are not event payloads, events from
// other programs, and unknown discriminators are silently skipped. A payload
// that matches a known discriminator but fails borsh decoding is returned as
// an error alongside the events that did decode.
func ParseEvents(logs []string) ([]EventRecord, []error) {
	var events []EventRecord
	var errs []error

	for i, line := range logs {
		payload, ok := strings.CutPrefix(line, eventLogPrefix)
		if !ok {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Not every "Program data:" line is base64 we control.
			continue
		}
		if len(data) < 8 {
			continue
		}

		var name string
		switch {
		case bytes.Equal(data[:8], buyOrderDiscriminator[:]):
			name = EventBuyOrderCreated
		case bytes.Equal(data[:8], sellOrderDiscriminator[:]):
			name = EventSellOrderCreated
		default:
			continue
		}

		fields, err := decodeOrderCreated(data[8:])
		if err != nil {
			errs = append(errs, fmt.Errorf("log %d: decode %s: %w", i, name, err))
			continue
		}

		events = append(events, EventRecord{
			Name:     name,
			Fields:   fields,
			LogIndex: i,
		})
	}

	return events, errs
}

// decodeOrderCreated borsh-decodes the event body into a field bag.
func decodeOrderCreated(data []byte) (map[string]any, error) {
	var ev orderCreatedEvent
	decoder := bin.NewBorshDecoder(data)
	if err := decoder.Decode(&ev); err != nil {
		return nil, err
	}
	return map[string]any{
		"user":            ev.User,
		"ticker":          ev.Ticker,
		"usdcAmount":      ev.UsdcAmount,
		"assetAmount":     ev.AssetAmount,
		"price":           ev.Price,
		"oracleTimestamp": ev.OracleTimestamp,
	}, nil
}
