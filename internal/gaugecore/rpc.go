package gaugecore

import (
	"context"
	"math"
	"math/big"
	"strings"

	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

// RPCCall issues one JSON-RPC request through the gateway at the
// resolved target and returns the result payload.
func RPCCall(ctx context.Context, gw *seren.Client, target RPCTarget, methodName string, params []any) (any, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := gw.Call(ctx, target.Publisher, target.Method, target.Path, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  methodName,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	unwrapped, err := seren.Unwrap(payload, target.Publisher, target.Method, target.Path)
	if err != nil {
		return nil, err
	}
	obj, ok := unwrapped.(map[string]any)
	if !ok {
		return nil, faults.Publisherf("%s %s %s returned non-object RPC payload",
			target.Publisher, target.Method, seren.PathLabel(target.Path))
	}
	if rpcError, present := obj["error"]; present && !isEmptyRPCError(rpcError) {
		return nil, faults.Publisherf("%s RPC method %s failed: %s",
			target.Publisher, methodName, seren.Preview(rpcError))
	}
	result, present := obj["result"]
	if !present {
		return nil, faults.Publisherf("%s RPC method %s missing result", target.Publisher, methodName)
	}
	return result, nil
}

func isEmptyRPCError(value any) bool {
	if value == nil {
		return true
	}
	if m, ok := value.(map[string]any); ok {
		return len(m) == 0
	}
	return false
}

// parseQuantity converts JSON-RPC quantity results (0x-hex strings,
// decimal strings or plain numbers) into a big integer.
func parseQuantity(value any, field string) (*big.Int, error) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil, faults.Publisherf("RPC field '%s' was not an integer: %v", field, v)
		}
		return new(big.Int).SetInt64(int64(v)), nil
	case string:
		text := strings.TrimSpace(v)
		var parsed *big.Int
		var ok bool
		if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
			parsed, ok = new(big.Int).SetString(text[2:], 16)
		} else {
			parsed, ok = new(big.Int).SetString(text, 10)
		}
		if !ok {
			return nil, faults.Publisherf("RPC field '%s' was not numeric: %s", field, v)
		}
		return parsed, nil
	default:
		return nil, faults.Publisherf("RPC field '%s' was not numeric: %v", field, value)
	}
}

// parseQuantityUint64 narrows a quantity to uint64 (nonces, chain ids,
// gas values).
func parseQuantityUint64(value any, field string) (uint64, error) {
	parsed, err := parseQuantity(value, field)
	if err != nil {
		return 0, err
	}
	if !parsed.IsUint64() {
		return 0, faults.Publisherf("RPC field '%s' out of uint64 range: %s", field, parsed.String())
	}
	return parsed.Uint64(), nil
}
