package gaugecore

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenhq/curve-gauge-trader/internal/config"
	"github.com/serenhq/curve-gauge-trader/internal/faults"
)

func txConfig(t *testing.T, raw string) *config.Tx {
	cfg, err := config.Parse([]byte(raw))
	require.NoError(t, err)
	return &cfg.EVMExecution.Tx
}

func sampleCalls() []TxCall {
	return []TxCall{
		{Label: "approve_lp_token", To: lpAddrA, ValueWei: big.NewInt(0), Data: "0x095ea7b3"},
		{Label: "deposit_to_gauge", To: gaugeAddrA, ValueWei: big.NewInt(0), Data: "0xb6b55f25"},
	}
}

func TestResolveGasPriceWeiConfiguredWins(t *testing.T) {
	fg := newFakeGateway(t)
	tx := txConfig(t, `{"evm_execution": {"tx": {"gas_price_wei": "1000000000"}}}`)

	price, err := ResolveGasPriceWei(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"), tx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000), price)
	assert.Equal(t, 0, fg.calls("eth_gasPrice"))
}

func TestResolveGasPriceWeiAppliesMultiplier(t *testing.T) {
	fg := newFakeGateway(t)
	fg.gasPriceHex = "0x3b9aca00" // 1 gwei
	tx := txConfig(t, `{}`)

	price, err := ResolveGasPriceWei(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"), tx)
	require.NoError(t, err)
	// 1e9 * 1.1 default multiplier, rounded up.
	assert.Equal(t, big.NewInt(1_100_000_000), price)
	assert.Equal(t, 1, fg.calls("eth_gasPrice"))
}

func TestResolveGasPriceWeiFloorsAtOne(t *testing.T) {
	fg := newFakeGateway(t)
	fg.gasPriceHex = "0x0"
	tx := txConfig(t, `{}`)

	price, err := ResolveGasPriceWei(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"), tx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), price)
}

func TestPrepareTransactionsSequentialNonces(t *testing.T) {
	fg := newFakeGateway(t)
	fg.nonceHex = "0x7"
	fg.estimateHex = "0x186a0" // 100000
	tx := txConfig(t, `{}`)
	signer := Signer{Mode: SignerLocal, Address: signerAddr}

	preflight, err := PrepareTransactions(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"),
		signer, sampleCalls(), big.NewInt(2_000_000_000), tx, false)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), preflight.ChainID)
	assert.Equal(t, uint64(7), preflight.NonceStart)
	require.Len(t, preflight.Transactions, 2)
	assert.Equal(t, uint64(7), preflight.Transactions[0].UnsignedTx.Nonce)
	assert.Equal(t, uint64(8), preflight.Transactions[1].UnsignedTx.Nonce)

	// Nonce and chain id come from one read each, not one per call.
	assert.Equal(t, 1, fg.calls("eth_getTransactionCount"))
	assert.Equal(t, 1, fg.calls("eth_chainId"))
	assert.Equal(t, 2, fg.calls("eth_estimateGas"))

	// 100000 * 1.2 default limit multiplier.
	assert.Equal(t, uint64(120_000), preflight.Transactions[0].GasLimit)
	assert.Equal(t, uint64(240_000), preflight.TotalGasLimit)
	assert.Equal(t, "480000000000000", preflight.EstimatedNetworkFeeWei)
	assert.Equal(t, "2000000000", preflight.GasPriceWei)
	assert.Empty(t, preflight.EstimationErrors)
}

func TestPrepareTransactionsGasLimitFloor(t *testing.T) {
	fg := newFakeGateway(t)
	fg.estimateHex = "0x1"
	tx := txConfig(t, `{}`)
	signer := Signer{Mode: SignerLocal, Address: signerAddr}

	preflight, err := PrepareTransactions(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"),
		signer, sampleCalls()[:1], big.NewInt(1), tx, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(21_000), preflight.Transactions[0].GasLimit)
}

func TestPrepareTransactionsFallbackOnEstimateFailure(t *testing.T) {
	fg := newFakeGateway(t)
	fg.estimateErr = "execution reverted"
	tx := txConfig(t, `{}`)
	signer := Signer{Mode: SignerLocal, Address: signerAddr}

	preflight, err := PrepareTransactions(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"),
		signer, sampleCalls()[:1], big.NewInt(1), tx, false)
	require.NoError(t, err)

	prepared := preflight.Transactions[0]
	// Fallback 350000 * 1.2 default limit multiplier.
	assert.Equal(t, uint64(350_000), prepared.EstimatedGas)
	assert.Equal(t, uint64(420_000), prepared.GasLimit)
	assert.Contains(t, prepared.EstimateError, "execution reverted")
	require.Len(t, preflight.EstimationErrors, 1)
	assert.Contains(t, preflight.EstimationErrors[0], "approve_lp_token")
}

func TestPrepareTransactionsStrictEstimateFailureIsFatal(t *testing.T) {
	fg := newFakeGateway(t)
	fg.estimateErr = "execution reverted"
	tx := txConfig(t, `{}`)
	signer := Signer{Mode: SignerLocal, Address: signerAddr}

	_, err := PrepareTransactions(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"),
		signer, sampleCalls()[:1], big.NewInt(1), tx, true)
	require.Error(t, err)
	assert.True(t, faults.IsConfig(err))
	assert.Contains(t, err.Error(), "Gas estimation failed for 'approve_lp_token' in live mode")
}

func TestCeilMulBig(t *testing.T) {
	assert.Equal(t, big.NewInt(11), ceilMulBig(big.NewInt(10), 1.1))
	assert.Equal(t, big.NewInt(5), ceilMulBig(big.NewInt(3), 1.5))
	assert.Equal(t, big.NewInt(10), ceilMulBig(big.NewInt(10), 1.0))

	// Values past float64's integer range stay exact.
	huge, ok := new(big.Int).SetString("100000000000000000000", 10)
	require.True(t, ok)
	doubled := ceilMulBig(huge, 2.0)
	assert.Equal(t, "200000000000000000000", doubled.String())
}

func TestCeilMulUint64(t *testing.T) {
	assert.Equal(t, uint64(120_000), ceilMulUint64(100_000, 1.2))
	assert.Equal(t, uint64(2), ceilMulUint64(1, 1.2))
}
