package gaugecore

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

// erc20Allowance reads allowance(owner, spender) on a token via
// eth_call through the gateway.
func erc20Allowance(ctx context.Context, gw *seren.Client, target RPCTarget, token, owner, spender string) (*big.Int, error) {
	data, err := EncodeCall("allowance(address,address)", []string{"address", "address"},
		[]any{common.HexToAddress(owner), common.HexToAddress(spender)})
	if err != nil {
		return nil, err
	}
	result, err := RPCCall(ctx, gw, target, "eth_call", []any{
		map[string]any{"to": token, "data": data},
		"latest",
	})
	if err != nil {
		return nil, err
	}
	return parseQuantity(result, "allowance")
}

// erc20BalanceOf reads balanceOf(owner) on a token or gauge contract.
func erc20BalanceOf(ctx context.Context, gw *seren.Client, target RPCTarget, token, owner string) (*big.Int, error) {
	data, err := EncodeCall("balanceOf(address)", []string{"address"},
		[]any{common.HexToAddress(owner)})
	if err != nil {
		return nil, err
	}
	result, err := RPCCall(ctx, gw, target, "eth_call", []any{
		map[string]any{"to": token, "data": data},
		"latest",
	})
	if err != nil {
		return nil, err
	}
	return parseQuantity(result, "balanceOf")
}
