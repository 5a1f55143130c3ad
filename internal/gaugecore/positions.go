package gaugecore

import (
	"context"

	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

// PositionSync is the pre-trade balance snapshot for the signer:
// native balance plus LP and staked balances when the plan carries
// valid contract addresses.
type PositionSync struct {
	Status           string `json:"status"`
	Address          string `json:"address,omitempty"`
	NativeBalanceWei string `json:"native_balance_wei,omitempty"`
	LPTokenAddress   string `json:"lp_token_address,omitempty"`
	LPBalanceWei     string `json:"lp_balance_wei,omitempty"`
	GaugeAddress     string `json:"gauge_address,omitempty"`
	StakedBalanceWei string `json:"staked_balance_wei,omitempty"`
	Error            string `json:"error,omitempty"`
}

// SyncPositions reads the signer's balances ahead of the trade.
func SyncPositions(ctx context.Context, gw *seren.Client, target RPCTarget, signer Signer, plan TradePlan) (PositionSync, error) {
	nativeResult, err := RPCCall(ctx, gw, target, "eth_getBalance", []any{signer.Address, "latest"})
	if err != nil {
		return PositionSync{}, err
	}
	nativeBalance, err := parseQuantity(nativeResult, "eth_getBalance")
	if err != nil {
		return PositionSync{}, err
	}

	positions := PositionSync{
		Status:           "ok",
		Address:          signer.Address,
		NativeBalanceWei: nativeBalance.String(),
	}

	if isHexAddress(plan.LPTokenAddress) {
		lpBalance, err := erc20BalanceOf(ctx, gw, target, plan.LPTokenAddress, signer.Address)
		if err != nil {
			return PositionSync{}, err
		}
		positions.LPTokenAddress = plan.LPTokenAddress
		positions.LPBalanceWei = lpBalance.String()
	}
	if isHexAddress(plan.GaugeAddress) {
		staked, err := erc20BalanceOf(ctx, gw, target, plan.GaugeAddress, signer.Address)
		if err != nil {
			return PositionSync{}, err
		}
		positions.GaugeAddress = plan.GaugeAddress
		positions.StakedBalanceWei = staked.String()
	}
	return positions, nil
}
