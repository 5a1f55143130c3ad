package gaugecore

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/serenhq/curve-gauge-trader/internal/config"
	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

const minGasLimit = 21_000

// ResolveGasPriceWei prefers the explicitly configured price; only
// when absent does it query eth_gasPrice and apply the multiplier.
func ResolveGasPriceWei(ctx context.Context, gw *seren.Client, target RPCTarget, tx *config.Tx) (*big.Int, error) {
	if tx.GasPriceWei.IsSet() {
		return tx.GasPriceWei.Int(), nil
	}
	result, err := RPCCall(ctx, gw, target, "eth_gasPrice", nil)
	if err != nil {
		return nil, err
	}
	base, err := parseQuantity(result, "eth_gasPrice")
	if err != nil {
		return nil, err
	}
	price := ceilMulBig(base, *tx.GasPriceMultiplier)
	if price.Sign() < 1 {
		price = big.NewInt(1)
	}
	return price, nil
}

// PrepareTransactions resolves chain id, the pending nonce and per-call
// gas for an ordered batch. Nonces are assigned sequentially from the
// single pending-nonce read; they are never re-queried mid-batch.
//
// Estimation failures are fatal only in strict mode (confirmed live
// execution); otherwise the fallback gas limit applies and the error
// is recorded for the report.
func PrepareTransactions(ctx context.Context, gw *seren.Client, target RPCTarget, signer Signer, calls []TxCall, gasPriceWei *big.Int, tx *config.Tx, strict bool) (Preflight, error) {
	chainIDResult, err := RPCCall(ctx, gw, target, "eth_chainId", nil)
	if err != nil {
		return Preflight{}, err
	}
	chainID, err := parseQuantityUint64(chainIDResult, "eth_chainId")
	if err != nil {
		return Preflight{}, err
	}
	nonceResult, err := RPCCall(ctx, gw, target, "eth_getTransactionCount", []any{signer.Address, "pending"})
	if err != nil {
		return Preflight{}, err
	}
	nonceStart, err := parseQuantityUint64(nonceResult, "eth_getTransactionCount")
	if err != nil {
		return Preflight{}, err
	}

	gasLimitMultiplier := *tx.GasLimitMultiplier
	fallbackGasLimit := tx.FallbackGasLimit.Int().Uint64()

	prepared := make([]PreparedTransaction, 0, len(calls))
	estimationErrors := []string{}
	nextNonce := nonceStart
	totalGasLimit := uint64(0)
	totalValueWei := big.NewInt(0)

	for _, call := range calls {
		value := call.ValueWei
		if value == nil {
			value = big.NewInt(0)
		}
		estimatePayload := map[string]any{
			"from":  signer.Address,
			"to":    call.To,
			"value": hexutil.EncodeBig(value),
			"data":  call.Data,
		}

		estimateError := ""
		var estimatedGas uint64
		estimateResult, err := RPCCall(ctx, gw, target, "eth_estimateGas", []any{estimatePayload})
		if err == nil {
			estimatedGas, err = parseQuantityUint64(estimateResult, "eth_estimateGas:"+call.Label)
		}
		if err != nil {
			if strict {
				return Preflight{}, faults.ConfigWrap(err, "Gas estimation failed for '%s' in live mode: %v", call.Label, err)
			}
			estimatedGas = fallbackGasLimit
			estimateError = err.Error()
			estimationErrors = append(estimationErrors, fmt.Sprintf("%s: %v", call.Label, err))
		}

		gasLimit := ceilMulUint64(estimatedGas, gasLimitMultiplier)
		if gasLimit < minGasLimit {
			gasLimit = minGasLimit
		}

		prepared = append(prepared, PreparedTransaction{
			Label:         call.Label,
			To:            call.To,
			ValueWei:      value.String(),
			EstimatedGas:  estimatedGas,
			GasLimit:      gasLimit,
			EstimateError: estimateError,
			UnsignedTx: UnsignedTx{
				ChainID:  chainID,
				Nonce:    nextNonce,
				To:       call.To,
				Value:    new(big.Int).Set(value),
				Data:     call.Data,
				Gas:      gasLimit,
				GasPrice: new(big.Int).Set(gasPriceWei),
			},
		})
		nextNonce++
		totalGasLimit += gasLimit
		totalValueWei.Add(totalValueWei, value)
	}

	networkFee := new(big.Int).Mul(new(big.Int).SetUint64(totalGasLimit), gasPriceWei)
	return Preflight{
		ChainID:                chainID,
		NonceStart:             nonceStart,
		GasPriceWei:            gasPriceWei.String(),
		TotalGasLimit:          totalGasLimit,
		TotalValueWei:          totalValueWei.String(),
		EstimatedNetworkFeeWei: networkFee.String(),
		EstimationErrors:       estimationErrors,
		Transactions:           prepared,
	}, nil
}

// ceilMulBig multiplies a big integer by a float multiplier, rounding
// up. Values within float64's exact integer range use float64 math so
// products like 1e9*1.1 land on the integer instead of a hair above
// it; larger values fall back to wide arithmetic.
func ceilMulBig(v *big.Int, multiplier float64) *big.Int {
	if f, acc := new(big.Float).SetInt(v).Float64(); acc == big.Exact {
		result, _ := new(big.Float).SetFloat64(math.Ceil(f * multiplier)).Int(nil)
		return result
	}
	product := new(big.Float).SetPrec(256).SetInt(v)
	product.Mul(product, big.NewFloat(multiplier))
	result, accuracy := product.Int(nil)
	if accuracy == big.Below {
		result.Add(result, big.NewInt(1))
	}
	return result
}

func ceilMulUint64(v uint64, multiplier float64) uint64 {
	return uint64(math.Ceil(float64(v) * multiplier))
}
