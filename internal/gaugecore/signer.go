package gaugecore

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/serenhq/curve-gauge-trader/internal/config"
	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
	"github.com/serenhq/curve-gauge-trader/internal/wallet"
)

const (
	SignerLocal  = "local"
	SignerLedger = "ledger"
)

// Signer is the run's signing identity. The private key, when present,
// stays in process memory and is never serialized or logged.
type Signer struct {
	Mode    string `json:"mode"`
	Address string `json:"address"`

	privateKeyHex string
}

// ResolveSigner loads the local wallet or binds a ledger address.
func ResolveSigner(walletMode, walletPath, ledgerAddress string) (Signer, error) {
	if walletMode == SignerLocal {
		w, err := wallet.Load(walletPath)
		if err != nil {
			return Signer{}, err
		}
		address, err := NormalizeAddress(w.Address, "wallet.address")
		if err != nil {
			return Signer{}, err
		}
		return Signer{Mode: SignerLocal, Address: address, privateKeyHex: w.PrivateKeyHex}, nil
	}

	if strings.TrimSpace(ledgerAddress) == "" {
		return Signer{}, faults.Configf("ledger mode requires --ledger-address or config.wallet.ledger_address.")
	}
	address, err := NormalizeAddress(ledgerAddress, "ledger_address")
	if err != nil {
		return Signer{}, err
	}
	return Signer{Mode: SignerLedger, Address: address}, nil
}

// ExecutionResult is the terminal artifact of a live run.
type ExecutionResult struct {
	Status            string   `json:"status"`
	Mode              string   `json:"mode"`
	SubmittedTxHashes []string `json:"submitted_tx_hashes"`
}

// signRawTransaction signs one prepared legacy transaction and returns
// the raw hex for eth_sendRawTransaction.
func signRawTransaction(unsigned UnsignedTx, privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return "", faults.ConfigWrap(err, "parse local signer private key: %v", err)
	}
	to := common.HexToAddress(unsigned.To)
	value := unsigned.Value
	if value == nil {
		value = big.NewInt(0)
	}
	chainID := new(big.Int).SetUint64(unsigned.ChainID)
	tx := &types.LegacyTx{
		Nonce:    unsigned.Nonce,
		GasPrice: new(big.Int).Set(unsigned.GasPrice),
		Gas:      unsigned.Gas,
		To:       &to,
		Value:    new(big.Int).Set(value),
		Data:     common.FromHex(unsigned.Data),
	}
	signed, err := types.SignNewTx(key, types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return "", faults.ConfigWrap(err, "sign transaction: %v", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", faults.ConfigWrap(err, "encode signed transaction: %v", err)
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// ExecuteLive signs (or accepts pre-signed) transactions and submits
// them in order. The first submission failure aborts the remainder of
// the batch; nothing is retried or resubmitted.
func ExecuteLive(ctx context.Context, gw *seren.Client, target RPCTarget, signer Signer, preflight Preflight, ledger config.Ledger) (ExecutionResult, error) {
	if len(preflight.Transactions) == 0 {
		return ExecutionResult{}, faults.Configf("Preflight did not produce executable transactions.")
	}

	var submitted []string
	if signer.Mode == SignerLocal {
		if strings.TrimSpace(signer.privateKeyHex) == "" {
			return ExecutionResult{}, faults.Configf("Local signer requires private_key_hex.")
		}
		for _, prepared := range preflight.Transactions {
			rawHex, err := signRawTransaction(prepared.UnsignedTx, signer.privateKeyHex)
			if err != nil {
				return ExecutionResult{}, err
			}
			hash, err := submitRaw(ctx, gw, target, rawHex)
			if err != nil {
				return ExecutionResult{}, err
			}
			submitted = append(submitted, hash)
		}
		return ExecutionResult{Status: "ok", Mode: "local_sign_and_submit", SubmittedTxHashes: submitted}, nil
	}

	signedRaw := ledger.SignedRawTransactions
	if len(signedRaw) != len(preflight.Transactions) {
		return ExecutionResult{}, faults.Configf(
			"Ledger live mode requires evm_execution.ledger.signed_raw_transactions with one raw transaction per preflight transaction.")
	}
	for i, raw := range signedRaw {
		rawHex, err := NormalizeHexBytes(raw, fmt.Sprintf("ledger.signed_raw_transactions[%d]", i))
		if err != nil {
			return ExecutionResult{}, err
		}
		hash, err := submitRaw(ctx, gw, target, rawHex)
		if err != nil {
			return ExecutionResult{}, err
		}
		submitted = append(submitted, hash)
	}
	return ExecutionResult{Status: "ok", Mode: "ledger_external_sign_and_submit", SubmittedTxHashes: submitted}, nil
}

func submitRaw(ctx context.Context, gw *seren.Client, target RPCTarget, rawHex string) (string, error) {
	result, err := RPCCall(ctx, gw, target, "eth_sendRawTransaction", []any{rawHex})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", result), nil
}
