package gaugecore

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/serenhq/curve-gauge-trader/internal/config"
	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

// StrategyDetails summarizes what the builder decided, for the
// operator-facing report.
type StrategyDetails struct {
	Strategy         string `json:"strategy"`
	GaugeAddress     string `json:"gauge_address,omitempty"`
	LPTokenAddress   string `json:"lp_token_address,omitempty"`
	LPAmountWei      string `json:"lp_amount_wei,omitempty"`
	AllowanceWei     string `json:"allowance_wei,omitempty"`
	ApprovalRequired *bool  `json:"approval_required,omitempty"`
	To               string `json:"to,omitempty"`
	ValueWei         string `json:"value_wei,omitempty"`
	DataPreview      string `json:"data_preview,omitempty"`
}

// BuildTradeCalls turns the trade plan into an ordered batch of calls.
// For the staking strategy the approval, when required, always comes
// before the deposit.
func BuildTradeCalls(ctx context.Context, gw *seren.Client, target RPCTarget, signer Signer, plan TradePlan, exec *config.Execution) ([]TxCall, StrategyDetails, error) {
	if exec.Strategy == config.StrategyCustomTx {
		return buildCustomTxCalls(&exec.CustomTx)
	}
	return buildGaugeStakeCalls(ctx, gw, target, signer, plan, exec)
}

func buildGaugeStakeCalls(ctx context.Context, gw *seren.Client, target RPCTarget, signer Signer, plan TradePlan, exec *config.Execution) ([]TxCall, StrategyDetails, error) {
	stake := &exec.GaugeStakeLP

	gaugeRaw := stake.GaugeAddress
	if gaugeRaw == "" {
		gaugeRaw = plan.GaugeAddress
	}
	lpTokenRaw := stake.LPTokenAddress
	if lpTokenRaw == "" {
		lpTokenRaw = plan.LPTokenAddress
	}
	gauge, err := NormalizeAddress(gaugeRaw, "gauge_stake_lp.gauge_address")
	if err != nil {
		return nil, StrategyDetails{}, err
	}
	lpToken, err := NormalizeAddress(lpTokenRaw, "gauge_stake_lp.lp_token_address")
	if err != nil {
		return nil, StrategyDetails{}, err
	}

	var lpAmountWei *big.Int
	if stake.LPAmountWei.IsSet() {
		lpAmountWei = stake.LPAmountWei.Int()
	} else {
		lpAmountWei, err = deriveLPAmountWei(plan.AmountUSD, plan.LPTokenPriceUSD, *stake.LPTokenDecimals)
		if err != nil {
			return nil, StrategyDetails{}, err
		}
	}

	allowanceWei, err := erc20Allowance(ctx, gw, target, lpToken, signer.Address, gauge)
	if err != nil {
		return nil, StrategyDetails{}, err
	}

	var calls []TxCall
	approvalRequired := allowanceWei.Cmp(lpAmountWei) < 0
	if *stake.ApproveFirst && approvalRequired {
		approveAmount := lpAmountWei
		if *stake.ApproveMax {
			approveAmount = MaxUint256
		}
		approveData, err := EncodeCall("approve(address,uint256)", []string{"address", "uint256"},
			[]any{common.HexToAddress(gauge), approveAmount})
		if err != nil {
			return nil, StrategyDetails{}, err
		}
		calls = append(calls, TxCall{
			Label:    "approve_lp_token",
			To:       lpToken,
			ValueWei: big.NewInt(0),
			Data:     approveData,
		})
	}

	depositData, err := EncodeCall("deposit(uint256)", []string{"uint256"}, []any{lpAmountWei})
	if err != nil {
		return nil, StrategyDetails{}, err
	}
	calls = append(calls, TxCall{
		Label:    "deposit_to_gauge",
		To:       gauge,
		ValueWei: big.NewInt(0),
		Data:     depositData,
	})

	details := StrategyDetails{
		Strategy:         config.StrategyGaugeStakeLP,
		GaugeAddress:     gauge,
		LPTokenAddress:   lpToken,
		LPAmountWei:      lpAmountWei.String(),
		AllowanceWei:     allowanceWei.String(),
		ApprovalRequired: &approvalRequired,
	}
	return calls, details, nil
}

// deriveLPAmountWei converts USD capital into raw LP token units at
// the quoted LP price, truncating toward zero.
func deriveLPAmountWei(amountUSD float64, lpPriceUSD *float64, decimals int) (*big.Int, error) {
	if lpPriceUSD == nil || *lpPriceUSD <= 0 {
		return nil, faults.Configf(
			"Unable to derive LP amount from USD because lp_token_price_usd is missing/invalid. Set evm_execution.gauge_stake_lp.lp_amount_wei explicitly.")
	}
	if amountUSD <= 0 {
		return nil, faults.Configf("Trade plan amount_usd is invalid.")
	}
	tokens := new(big.Float).SetPrec(256).Quo(big.NewFloat(amountUSD), big.NewFloat(*lpPriceUSD))
	scale := new(big.Float).SetPrec(256).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	tokens.Mul(tokens, scale)
	wei, _ := tokens.Int(nil)
	if wei == nil || wei.Sign() <= 0 {
		return nil, faults.Configf("Derived LP amount is zero. Increase deposit_amount_usd or set lp_amount_wei.")
	}
	return wei, nil
}

func buildCustomTxCalls(custom *config.CustomTx) ([]TxCall, StrategyDetails, error) {
	to, err := NormalizeAddress(custom.To, "custom_tx.to")
	if err != nil {
		return nil, StrategyDetails{}, err
	}
	dataRaw := custom.Data
	if dataRaw == "" {
		dataRaw = "0x"
	}
	data, err := NormalizeHexBytes(dataRaw, "custom_tx.data")
	if err != nil {
		return nil, StrategyDetails{}, err
	}
	valueWei := big.NewInt(0)
	if custom.ValueWei.IsSet() {
		valueWei = custom.ValueWei.Int()
	}
	label := strings.TrimSpace(custom.Label)
	if label == "" {
		label = "custom_transaction"
	}

	calls := []TxCall{{Label: label, To: to, ValueWei: valueWei, Data: data}}
	preview := data
	if len(data) > 28 {
		preview = data[:18] + "..." + data[len(data)-8:]
	}
	details := StrategyDetails{
		Strategy:    config.StrategyCustomTx,
		To:          to,
		ValueWei:    valueWei.String(),
		DataPreview: preview,
	}
	return calls, details, nil
}
