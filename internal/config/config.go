// Package config loads and validates the runtime configuration file.
// All validation happens once at load time; downstream code can rely
// on defaults being filled in and every field being well-formed.
package config

import (
	"encoding/json"
	"math/big"
	"os"
	"strings"

	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/wallet"
)

const (
	StrategyGaugeStakeLP = "gauge_stake_lp"
	StrategyCustomTx     = "custom_tx"

	DefaultGasPriceMultiplier = 1.1
	DefaultGasLimitMultiplier = 1.2
	DefaultFallbackGasLimit   = 350_000
	DefaultLPTokenDecimals    = 18
)

// SupportedChains is the closed set of EVM chains the agent trades on.
var SupportedChains = map[string]bool{
	"ethereum":  true,
	"arbitrum":  true,
	"base":      true,
	"optimism":  true,
	"polygon":   true,
	"avalanche": true,
	"bsc":       true,
	"gnosis":    true,
	"zksync":    true,
	"scroll":    true,
}

type Config struct {
	DryRun        *bool             `json:"dry_run"`
	API           API               `json:"api"`
	Inputs        Inputs            `json:"inputs"`
	Wallet        Wallet            `json:"wallet"`
	EVMExecution  Execution         `json:"evm_execution"`
	RPCPublishers map[string]string `json:"rpc_publishers"`
	RPCCapability Capability        `json:"rpc_capability"`
	PositionSync  PositionSync      `json:"position_sync"`
}

type API struct {
	BaseURL string `json:"base_url"`
}

type Inputs struct {
	Chain            string   `json:"chain"`
	WalletMode       string   `json:"wallet_mode"`
	LiveMode         bool     `json:"live_mode"`
	DepositToken     string   `json:"deposit_token"`
	DepositAmountUSD *float64 `json:"deposit_amount_usd"`
	TopNGauges       *int     `json:"top_n_gauges"`
}

type Wallet struct {
	Path          string `json:"path"`
	LedgerAddress string `json:"ledger_address"`
}

type Execution struct {
	Strategy     string       `json:"strategy"`
	GaugeStakeLP GaugeStakeLP `json:"gauge_stake_lp"`
	CustomTx     CustomTx     `json:"custom_tx"`
	Tx           Tx           `json:"tx"`
	Ledger       Ledger       `json:"ledger"`
}

type GaugeStakeLP struct {
	GaugeAddress    string `json:"gauge_address"`
	LPTokenAddress  string `json:"lp_token_address"`
	LPAmountWei     Amount `json:"lp_amount_wei"`
	LPTokenDecimals *int   `json:"lp_token_decimals"`
	ApproveFirst    *bool  `json:"approve_first"`
	ApproveMax      *bool  `json:"approve_max"`
}

type CustomTx struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	ValueWei Amount `json:"value_wei"`
	Label    string `json:"label"`
}

type Tx struct {
	GasPriceWei        Amount   `json:"gas_price_wei"`
	GasPriceMultiplier *float64 `json:"gas_price_multiplier"`
	GasLimitMultiplier *float64 `json:"gas_limit_multiplier"`
	FallbackGasLimit   Amount   `json:"fallback_gas_limit"`
}

type Ledger struct {
	SignedRawTransactions []string `json:"signed_raw_transactions"`
}

type Capability struct {
	Required *bool   `json:"required"`
	Probes   []Probe `json:"probes"`
}

type Probe struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Body   map[string]any `json:"body"`
}

type PositionSync struct {
	Enabled *bool `json:"enabled"`
}

// Amount is a wei-scale integer that accepts JSON numbers as well as
// decimal or 0x-hex strings. Booleans and fractions are rejected.
type Amount struct {
	value *big.Int
}

func NewAmount(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{value: new(big.Int).Set(v)}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}
	if text == "true" || text == "false" {
		return faults.Configf("numeric config field must not be a bool")
	}
	if strings.HasPrefix(text, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		parsed, ok := parseIntText(s)
		if !ok {
			return faults.Configf("numeric config field must be numeric: %s", s)
		}
		a.value = parsed
		return nil
	}
	parsed, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return faults.Configf("numeric config field must be an integer: %s", text)
	}
	a.value = parsed
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.value == nil {
		return []byte("null"), nil
	}
	return []byte(a.value.String()), nil
}

func (a Amount) IsSet() bool { return a.value != nil }

func (a Amount) Int() *big.Int {
	if a.value == nil {
		return nil
	}
	return new(big.Int).Set(a.value)
}

func parseIntText(s string) (*big.Int, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return new(big.Int).SetString(s[2:], 16)
	}
	return new(big.Int).SetString(s, 10)
}

// Load reads, decodes and validates the config file in one pass.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, faults.Configf("Config file not found: %s", path)
		}
		return nil, faults.ConfigWrap(err, "read config %s: %v", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates raw config bytes.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, faults.ConfigWrap(err, "Invalid JSON config: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DryRun == nil {
		c.DryRun = boolPtr(true)
	}

	if c.Inputs.Chain == "" {
		c.Inputs.Chain = "ethereum"
	}
	if !SupportedChains[c.Inputs.Chain] {
		return faults.Configf("Unsupported chain '%s'.", c.Inputs.Chain)
	}
	if c.Inputs.WalletMode == "" {
		c.Inputs.WalletMode = "local"
	}
	if c.Inputs.WalletMode != "local" && c.Inputs.WalletMode != "ledger" {
		return faults.Configf("wallet_mode must be 'local' or 'ledger'.")
	}
	if c.Inputs.DepositToken == "" {
		c.Inputs.DepositToken = "USDC"
	}
	if c.Inputs.DepositAmountUSD == nil {
		c.Inputs.DepositAmountUSD = floatPtr(100)
	}
	if *c.Inputs.DepositAmountUSD <= 0 {
		return faults.Configf("deposit_amount_usd must be > 0.")
	}
	if c.Inputs.TopNGauges == nil {
		c.Inputs.TopNGauges = intPtr(3)
	}
	if *c.Inputs.TopNGauges < 1 {
		return faults.Configf("top_n_gauges must be >= 1.")
	}

	if c.Wallet.Path == "" {
		c.Wallet.Path = wallet.DefaultPath
	}

	if c.EVMExecution.Strategy == "" {
		c.EVMExecution.Strategy = StrategyGaugeStakeLP
	}
	c.EVMExecution.Strategy = strings.ToLower(strings.TrimSpace(c.EVMExecution.Strategy))
	if c.EVMExecution.Strategy != StrategyGaugeStakeLP && c.EVMExecution.Strategy != StrategyCustomTx {
		return faults.Configf("evm_execution.strategy must be 'gauge_stake_lp' or 'custom_tx'.")
	}

	stake := &c.EVMExecution.GaugeStakeLP
	if stake.LPTokenDecimals == nil {
		stake.LPTokenDecimals = intPtr(DefaultLPTokenDecimals)
	}
	if *stake.LPTokenDecimals < 0 || *stake.LPTokenDecimals > 36 {
		return faults.Configf("gauge_stake_lp.lp_token_decimals must be between 0 and 36.")
	}
	if stake.ApproveFirst == nil {
		stake.ApproveFirst = boolPtr(true)
	}
	if stake.ApproveMax == nil {
		stake.ApproveMax = boolPtr(true)
	}
	if stake.LPAmountWei.IsSet() && stake.LPAmountWei.Int().Sign() <= 0 {
		return faults.Configf("gauge_stake_lp.lp_amount_wei must be > 0.")
	}

	if c.EVMExecution.CustomTx.ValueWei.IsSet() && c.EVMExecution.CustomTx.ValueWei.Int().Sign() < 0 {
		return faults.Configf("custom_tx.value_wei must be >= 0.")
	}

	tx := &c.EVMExecution.Tx
	if tx.GasPriceWei.IsSet() && tx.GasPriceWei.Int().Sign() <= 0 {
		return faults.Configf("tx.gas_price_wei must be > 0.")
	}
	if tx.GasPriceMultiplier == nil {
		tx.GasPriceMultiplier = floatPtr(DefaultGasPriceMultiplier)
	}
	if *tx.GasPriceMultiplier <= 0 {
		return faults.Configf("tx.gas_price_multiplier must be > 0.")
	}
	if tx.GasLimitMultiplier == nil {
		tx.GasLimitMultiplier = floatPtr(DefaultGasLimitMultiplier)
	}
	if *tx.GasLimitMultiplier <= 0 {
		return faults.Configf("tx.gas_limit_multiplier must be > 0.")
	}
	if !tx.FallbackGasLimit.IsSet() {
		tx.FallbackGasLimit = NewAmount(big.NewInt(DefaultFallbackGasLimit))
	}
	if tx.FallbackGasLimit.Int().Sign() <= 0 {
		return faults.Configf("tx.fallback_gas_limit must be > 0.")
	}

	for chain, slug := range c.RPCPublishers {
		if !SupportedChains[chain] {
			return faults.Configf("rpc_publishers has unsupported chain key '%s'.", chain)
		}
		if strings.TrimSpace(slug) == "" {
			return faults.Configf("rpc_publishers['%s'] must be a non-empty string.", chain)
		}
		c.RPCPublishers[chain] = strings.TrimSpace(slug)
	}

	if c.RPCCapability.Required == nil {
		c.RPCCapability.Required = boolPtr(true)
	}
	if c.RPCCapability.Probes != nil && len(c.RPCCapability.Probes) == 0 {
		return faults.Configf("rpc_capability.probes must be a non-empty list.")
	}
	for i := range c.RPCCapability.Probes {
		probe := &c.RPCCapability.Probes[i]
		probe.Method = strings.ToUpper(strings.TrimSpace(probe.Method))
		if probe.Method == "" {
			probe.Method = "GET"
		}
		switch probe.Method {
		case "GET", "POST", "PUT", "PATCH", "DELETE":
		default:
			return faults.Configf("rpc_capability.probes[%d].method '%s' is not supported.", i, probe.Method)
		}
		probe.Path = strings.TrimSpace(probe.Path)
		if probe.Path != "" && !strings.HasPrefix(probe.Path, "/") {
			return faults.Configf("rpc_capability.probes[%d].path must be '' or start with '/'.", i)
		}
		if probe.Body == nil {
			probe.Body = map[string]any{}
		}
	}

	if c.PositionSync.Enabled == nil {
		c.PositionSync.Enabled = boolPtr(true)
	}
	return nil
}

func boolPtr(v bool) *bool        { return &v }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
