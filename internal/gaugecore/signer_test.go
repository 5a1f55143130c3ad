package gaugecore

import (
	"context"
	"encoding/hex"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenhq/curve-gauge-trader/internal/config"
	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/wallet"
)

func newTestWallet(t *testing.T) (string, wallet.File) {
	path := filepath.Join(t.TempDir(), "wallet.local.json")
	w, err := wallet.Create(path)
	require.NoError(t, err)
	return path, w
}

func TestResolveSignerLocal(t *testing.T) {
	path, w := newTestWallet(t)

	signer, err := ResolveSigner("local", path, "")
	require.NoError(t, err)
	assert.Equal(t, SignerLocal, signer.Mode)
	assert.Equal(t, strings.ToLower(w.Address), signer.Address)
	assert.Equal(t, w.PrivateKeyHex, signer.privateKeyHex)
}

func TestResolveSignerLocalMissingWallet(t *testing.T) {
	_, err := ResolveSigner("local", filepath.Join(t.TempDir(), "absent.json"), "")
	require.Error(t, err)
	assert.True(t, faults.IsConfig(err))
	assert.Contains(t, err.Error(), "--init-wallet")
}

func TestResolveSignerLedger(t *testing.T) {
	signer, err := ResolveSigner("ledger", "", "0xABCD111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, SignerLedger, signer.Mode)
	assert.Equal(t, "0xabcd111111111111111111111111111111111111", signer.Address)
	assert.Empty(t, signer.privateKeyHex)

	_, err = ResolveSigner("ledger", "", "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger mode requires --ledger-address")
}

func TestSignRawTransactionRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	privateKeyHex := "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	unsigned := UnsignedTx{
		ChainID:  1,
		Nonce:    7,
		To:       gaugeAddrA,
		Value:    big.NewInt(12345),
		Data:     "0xb6b55f25",
		Gas:      120_000,
		GasPrice: big.NewInt(2_000_000_000),
	}

	rawHex, err := signRawTransaction(unsigned, privateKeyHex)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rawHex, "0x"))

	raw, err := hex.DecodeString(strings.TrimPrefix(rawHex, "0x"))
	require.NoError(t, err)
	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))

	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, big.NewInt(2_000_000_000), tx.GasPrice())
	assert.Equal(t, big.NewInt(12345), tx.Value())
	require.NotNil(t, tx.To())
	assert.Equal(t, gaugeAddrA, strings.ToLower(tx.To().Hex()))

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), &tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)
}

func TestSignRawTransactionBadKey(t *testing.T) {
	_, err := signRawTransaction(UnsignedTx{ChainID: 1, GasPrice: big.NewInt(1)}, "0xzz")
	require.Error(t, err)
	assert.True(t, faults.IsConfig(err))
}

func samplePreflight(n int) Preflight {
	txs := make([]PreparedTransaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, PreparedTransaction{
			Label:    "deposit_to_gauge",
			To:       gaugeAddrA,
			ValueWei: "0",
			GasLimit: 120_000,
			UnsignedTx: UnsignedTx{
				ChainID:  1,
				Nonce:    uint64(7 + i),
				To:       gaugeAddrA,
				Value:    big.NewInt(0),
				Data:     "0xb6b55f25",
				Gas:      120_000,
				GasPrice: big.NewInt(1_000_000_000),
			},
		})
	}
	return Preflight{ChainID: 1, NonceStart: 7, Transactions: txs}
}

func TestExecuteLiveLocalSignsAndSubmits(t *testing.T) {
	fg := newFakeGateway(t)
	path, _ := newTestWallet(t)
	signer, err := ResolveSigner("local", path, "")
	require.NoError(t, err)

	result, err := ExecuteLive(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"),
		signer, samplePreflight(2), config.Ledger{})
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "local_sign_and_submit", result.Mode)
	assert.Len(t, result.SubmittedTxHashes, 2)
	assert.Len(t, fg.submittedRaw(), 2)
	assert.Equal(t, 2, fg.calls("eth_sendRawTransaction"))
}

func TestExecuteLiveLedgerSubmitsPresigned(t *testing.T) {
	fg := newFakeGateway(t)
	signer := Signer{Mode: SignerLedger, Address: signerAddr}
	ledger := config.Ledger{SignedRawTransactions: []string{"0xf86b01", "0xf86b02"}}

	result, err := ExecuteLive(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"),
		signer, samplePreflight(2), ledger)
	require.NoError(t, err)

	assert.Equal(t, "ledger_external_sign_and_submit", result.Mode)
	assert.Equal(t, []string{"0xf86b01", "0xf86b02"}, fg.submittedRaw())
}

func TestExecuteLiveLedgerCountMismatch(t *testing.T) {
	fg := newFakeGateway(t)
	signer := Signer{Mode: SignerLedger, Address: signerAddr}

	_, err := ExecuteLive(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"),
		signer, samplePreflight(2), config.Ledger{SignedRawTransactions: []string{"0xf86b01"}})
	require.Error(t, err)
	assert.True(t, faults.IsConfig(err))
	assert.Contains(t, err.Error(), "one raw transaction per preflight transaction")
	assert.Empty(t, fg.submittedRaw())
}

func TestExecuteLiveEmptyBatch(t *testing.T) {
	fg := newFakeGateway(t)
	signer := Signer{Mode: SignerLedger, Address: signerAddr}

	_, err := ExecuteLive(context.Background(), fg.client(), testTarget("seren-ethereum-rpc"),
		signer, Preflight{}, config.Ledger{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not produce executable transactions")
}
