package relay

import (
	"fmt"
	"math/big"

	sol "github.com/gagliardetto/solana-go"

	"github.com/spoutfi/rwa-relayer/service/solana"
)

// DecodeOrderEvent maps a loosely-typed event record into an OrderEvent.
// Each numeric field is accepted under either camelCase or snake_case naming
// to tolerate drift between encoder versions. A missing or malformed field
// fails only this event; sibling events in the same transaction are
// unaffected because the caller decodes them independently.
func DecodeOrderEvent(rec solana.EventRecord, txSignature string) (*OrderEvent, error) {
	var kind OrderKind
	switch rec.Name {
	case solana.EventBuyOrderCreated:
		kind = OrderKindBuy
	case solana.EventSellOrderCreated:
		kind = OrderKindSell
	default:
		return nil, fmt.Errorf("unknown event name %q", rec.Name)
	}

	user, err := fieldPublicKey(rec.Fields, "user")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, err)
	}

	ticker, err := fieldString(rec.Fields, "ticker")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, err)
	}

	usdcAmount, err := fieldUint64(rec.Fields, "usdcAmount", "usdc_amount")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, err)
	}

	assetAmount, err := fieldUint64(rec.Fields, "assetAmount", "asset_amount")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, err)
	}

	price, err := fieldUint64(rec.Fields, "price")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, err)
	}

	oracleTimestamp, err := fieldUint64(rec.Fields, "oracleTimestamp", "oracle_timestamp")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, err)
	}

	return &OrderEvent{
		Kind:            kind,
		User:            user,
		Ticker:          ticker,
		UsdcAmount:      usdcAmount,
		AssetAmount:     assetAmount,
		Price:           price,
		OracleTimestamp: oracleTimestamp,
		Signature:       txSignature,
		LogIndex:        rec.LogIndex,
	}, nil
}

// lookupField probes the field bag under each accepted name in order.
func lookupField(fields map[string]any, names ...string) (any, bool) {
	for _, name := range names {
		if v, ok := fields[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func fieldPublicKey(fields map[string]any, names ...string) (sol.PublicKey, error) {
	v, ok := lookupField(fields, names...)
	if !ok {
		return sol.PublicKey{}, fmt.Errorf("missing required field %q", names[0])
	}

	switch val := v.(type) {
	case sol.PublicKey:
		return val, nil
	case string:
		pk, err := sol.PublicKeyFromBase58(val)
		if err != nil {
			return sol.PublicKey{}, fmt.Errorf("field %q: invalid address %q: %w", names[0], val, err)
		}
		return pk, nil
	case []byte:
		if len(val) != sol.PublicKeyLength {
			return sol.PublicKey{}, fmt.Errorf("field %q: invalid address length %d", names[0], len(val))
		}
		return sol.PublicKeyFromBytes(val), nil
	default:
		return sol.PublicKey{}, fmt.Errorf("field %q: unexpected type %T", names[0], v)
	}
}

func fieldString(fields map[string]any, names ...string) (string, error) {
	v, ok := lookupField(fields, names...)
	if !ok {
		return "", fmt.Errorf("missing required field %q", names[0])
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: unexpected type %T", names[0], v)
	}
	return s, nil
}

// fieldUint64 converts a numeric field to uint64 regardless of how the
// decoder represented it.
func fieldUint64(fields map[string]any, names ...string) (uint64, error) {
	v, ok := lookupField(fields, names...)
	if !ok {
		return 0, fmt.Errorf("missing required field %q", names[0])
	}

	switch val := v.(type) {
	case uint64:
		return val, nil
	case int64:
		if val < 0 {
			return 0, fmt.Errorf("field %q: value %d out of uint64 range", names[0], val)
		}
		return uint64(val), nil
	case int:
		if val < 0 {
			return 0, fmt.Errorf("field %q: value %d out of uint64 range", names[0], val)
		}
		return uint64(val), nil
	case uint:
		return uint64(val), nil
	case *big.Int:
		if !val.IsUint64() {
			return 0, fmt.Errorf("field %q: value %s out of uint64 range", names[0], val)
		}
		return val.Uint64(), nil
	case string:
		n, ok := new(big.Int).SetString(val, 10)
		if !ok {
			return 0, fmt.Errorf("field %q: invalid number %q", names[0], val)
		}
		if !n.IsUint64() {
			return 0, fmt.Errorf("field %q: value %s out of uint64 range", names[0], val)
		}
		return n.Uint64(), nil
	default:
		return 0, fmt.Errorf("field %q: unexpected type %T", names[0], v)
	}
}
