// Package gaugecore implements the yield-strategy execution planner:
// RPC discovery, capability probing, gauge selection, transaction
// building, gas/nonce resolution and gated signing.
package gaugecore

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/serenhq/curve-gauge-trader/internal/faults"
)

var (
	hexAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	hexBytesRe   = regexp.MustCompile(`^0x[a-fA-F0-9]*$`)

	// MaxUint256 is the unlimited-approval amount.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// RPCTarget pins one chain's JSON-RPC endpoint for the whole run:
// which publisher to route through and which path/method answered the
// capability probe. Immutable once resolved.
type RPCTarget struct {
	Publisher       string `json:"publisher"`
	Method          string `json:"method"`
	Path            string `json:"path"`
	PublisherSource string `json:"publisher_source"`
}

// TxCall is one logical operation of a trade: a label, a target
// contract and prebuilt calldata. Order within a batch matters.
type TxCall struct {
	Label    string   `json:"label"`
	To       string   `json:"to"`
	ValueWei *big.Int `json:"value_wei"`
	Data     string   `json:"data"`
}

// UnsignedTx is the legacy-format transaction handed to the signer.
type UnsignedTx struct {
	ChainID  uint64   `json:"chainId"`
	Nonce    uint64   `json:"nonce"`
	To       string   `json:"to"`
	Value    *big.Int `json:"value"`
	Data     string   `json:"data"`
	Gas      uint64   `json:"gas"`
	GasPrice *big.Int `json:"gasPrice"`
}

// PreparedTransaction pairs a TxCall with its resolved gas and nonce.
type PreparedTransaction struct {
	Label         string     `json:"label"`
	To            string     `json:"to"`
	ValueWei      string     `json:"value_wei"`
	EstimatedGas  uint64     `json:"estimated_gas"`
	GasLimit      uint64     `json:"gas_limit"`
	EstimateError string     `json:"estimate_error"`
	UnsignedTx    UnsignedTx `json:"unsigned_tx"`
}

// Preflight is the gas/nonce resolver output for one batch.
type Preflight struct {
	ChainID                uint64                `json:"chain_id"`
	NonceStart             uint64                `json:"nonce_start"`
	GasPriceWei            string                `json:"gas_price_wei"`
	TotalGasLimit          uint64                `json:"total_gas_limit"`
	TotalValueWei          string                `json:"total_value_wei"`
	EstimatedNetworkFeeWei string                `json:"estimated_network_fee_wei"`
	EstimationErrors       []string              `json:"estimation_errors"`
	Transactions           []PreparedTransaction `json:"transactions"`
}

// NormalizeAddress enforces the strict 20-byte hex shape and
// lower-cases the result. The field name is carried into the error.
func NormalizeAddress(value, field string) (string, error) {
	text := strings.TrimSpace(value)
	if !hexAddressRe.MatchString(text) {
		return "", faults.Configf("%s must be a 0x-prefixed 20-byte address.", field)
	}
	return strings.ToLower(text), nil
}

// NormalizeHexBytes validates 0x-prefixed hex payloads (calldata, raw
// transactions).
func NormalizeHexBytes(value, field string) (string, error) {
	text := strings.TrimSpace(value)
	if !hexBytesRe.MatchString(text) {
		return "", faults.Configf("%s must be 0x-prefixed hex bytes.", field)
	}
	return strings.ToLower(text), nil
}

func isHexAddress(value string) bool {
	return hexAddressRe.MatchString(strings.TrimSpace(value))
}

// toFloat mirrors lenient numeric coercion for upstream JSON payloads:
// numbers and numeric strings pass, everything else is nil.
func toFloat(value any) *float64 {
	switch v := value.(type) {
	case bool:
		return nil
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func asString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
