package gaugecore

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/serenhq/curve-gauge-trader/internal/faults"
)

// EncodeCall builds raw calldata: the 4-byte selector (Keccak-256 of
// the canonical signature) followed by the ABI-encoded argument tuple.
func EncodeCall(signature string, argTypes []string, args []any) (string, error) {
	selector := crypto.Keccak256([]byte(signature))[:4]

	arguments := make(abi.Arguments, len(argTypes))
	for i, typeName := range argTypes {
		typ, err := abi.NewType(typeName, "", nil)
		if err != nil {
			return "", faults.ConfigWrap(err, "unsupported ABI type '%s' in %s: %v", typeName, signature, err)
		}
		arguments[i] = abi.Argument{Type: typ}
	}
	packed, err := arguments.Pack(args...)
	if err != nil {
		return "", faults.ConfigWrap(err, "ABI encode %s: %v", signature, err)
	}
	return "0x" + hex.EncodeToString(append(selector, packed...)), nil
}
