package gaugecore

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serenhq/curve-gauge-trader/internal/config"
	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

const dryRunWarning = "No live transaction submitted. Set inputs.live_mode=true and pass --yes-live " +
	"only after wallet funding and signer checks."

const blockedExecutionHandoff = "execution_handoff"

// Runner sequences one planning/execution run. The pipeline is
// synchronous: each stage blocks on its network round-trips and the
// next stage starts only after the previous one returned. Two
// concurrent runs against the same wallet and chain would observe the
// same pending nonce; the caller must serialize those.
type Runner struct {
	Client        *seren.Client
	Config        *config.Config
	YesLive       bool
	LedgerAddress string
	Log           zerolog.Logger
}

// PreflightReport wraps the resolver output with run context for the
// operator-facing JSON report.
type PreflightReport struct {
	Status        string          `json:"status"`
	ExecutionMode string          `json:"execution_mode"`
	Chain         string          `json:"chain"`
	SignerMode    string          `json:"signer_mode"`
	SignerAddress string          `json:"signer_address"`
	RPCPublisher  string          `json:"rpc_publisher"`
	RPCPath       string          `json:"rpc_path"`
	Strategy      StrategyDetails `json:"strategy"`
	Preflight
}

// RunReport is the single JSON object the agent prints for one run.
type RunReport struct {
	Status        string           `json:"status"`
	Mode          string           `json:"mode"`
	Warning       string           `json:"warning,omitempty"`
	BlockedAction string           `json:"blocked_action,omitempty"`
	Chain         string           `json:"chain"`
	SignerMode    string           `json:"signer_mode"`
	SignerAddress string           `json:"signer_address"`
	RPCCapability CapabilityResult `json:"rpc_capability"`
	PositionSync  PositionSync     `json:"position_sync"`
	TradePlan     TradePlan        `json:"trade_plan"`
	Preflight     PreflightReport  `json:"preflight"`
	LiveExecution *ExecutionResult `json:"live_execution,omitempty"`
}

// Run drives the full pipeline: resolve signer, discover and probe the
// chain's RPC publisher, pick the trade, build and preflight the
// transactions, then either report (dry-run / unconfirmed live) or
// sign and submit (confirmed live).
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	cfg := r.Config
	inputs := cfg.Inputs
	dryRun := *cfg.DryRun
	liveMode := inputs.LiveMode
	log := r.Log.With().Str("component", "runner").Str("chain", inputs.Chain).Logger()

	ledgerAddress := strings.TrimSpace(r.LedgerAddress)
	if ledgerAddress == "" {
		ledgerAddress = cfg.Wallet.LedgerAddress
	}
	signer, err := ResolveSigner(inputs.WalletMode, cfg.Wallet.Path, ledgerAddress)
	if err != nil {
		return nil, err
	}
	log.Info().Str("signer_mode", signer.Mode).Str("signer_address", signer.Address).Msg("inputs resolved")

	capability, err := CheckRPCCapability(ctx, r.Client, inputs.Chain, cfg)
	if err != nil {
		return nil, err
	}
	target := RPCTarget{
		Publisher:       capability.Publisher,
		Method:          http.MethodPost,
		Path:            "",
		PublisherSource: capability.PublisherSource,
	}
	if capability.RPCTarget != nil {
		target.Method = capability.RPCTarget.Method
		target.Path = capability.RPCTarget.Path
	}
	log.Info().Str("publisher", target.Publisher).Str("rpc_path", seren.PathLabel(target.Path)).
		Str("status", capability.Status).Msg("rpc target ready")

	gauges, err := FetchTopGauges(ctx, r.Client, inputs.Chain, *inputs.TopNGauges)
	if err != nil {
		return nil, err
	}
	plan, err := ChooseTradePlan(gauges, inputs.DepositToken, *inputs.DepositAmountUSD)
	if err != nil {
		return nil, err
	}
	log.Info().Str("gauge", plan.GaugeAddress).Str("gauge_name", plan.GaugeName).
		Int("candidates", gauges.TotalCandidates).Msg("trade plan selected")

	positions := PositionSync{Status: "skipped"}
	if *cfg.PositionSync.Enabled {
		positions, err = SyncPositions(ctx, r.Client, target, signer, plan)
		if err != nil {
			if faults.IsPublisher(err) && (dryRun || !liveMode) {
				positions = PositionSync{Status: "warning", Error: err.Error()}
			} else if faults.IsPublisher(err) {
				return nil, faults.ConfigWrap(err, "Position sync failed before live trade: %v", err)
			} else {
				return nil, err
			}
		}
	}

	// Strict estimation only for a confirmed live run: the system
	// aborts rather than submit with a guessed gas limit.
	strict := liveMode && !dryRun && r.YesLive

	calls, strategyDetails, err := BuildTradeCalls(ctx, r.Client, target, signer, plan, &cfg.EVMExecution)
	if err != nil {
		return nil, err
	}
	gasPriceWei, err := ResolveGasPriceWei(ctx, r.Client, target, &cfg.EVMExecution.Tx)
	if err != nil {
		return nil, err
	}
	preflight, err := PrepareTransactions(ctx, r.Client, target, signer, calls, gasPriceWei, &cfg.EVMExecution.Tx, strict)
	if err != nil {
		return nil, err
	}
	log.Info().Uint64("chain_id", preflight.ChainID).Uint64("nonce_start", preflight.NonceStart).
		Int("transactions", len(preflight.Transactions)).Bool("strict_estimation", strict).Msg("preflight done")

	report := &RunReport{
		Status:        "ok",
		Chain:         inputs.Chain,
		SignerMode:    signer.Mode,
		SignerAddress: signer.Address,
		RPCCapability: capability,
		PositionSync:  positions,
		TradePlan:     plan,
		Preflight: PreflightReport{
			Status:        "ok",
			ExecutionMode: "local_rpc",
			Chain:         inputs.Chain,
			SignerMode:    signer.Mode,
			SignerAddress: signer.Address,
			RPCPublisher:  target.Publisher,
			RPCPath:       seren.PathLabel(target.Path),
			Strategy:      strategyDetails,
			Preflight:     preflight,
		},
	}

	if dryRun || !liveMode {
		report.Mode = "dry-run"
		report.Warning = dryRunWarning
		log.Info().Msg("dry-run report, nothing submitted")
		return report, nil
	}

	if !r.YesLive {
		// Live mode in config alone is never sufficient to move
		// funds; the runtime confirmation flag is the second gate.
		report.Mode = "dry-run"
		report.Warning = dryRunWarning
		report.BlockedAction = blockedExecutionHandoff
		log.Warn().Msg("live mode configured but --yes-live missing, execution blocked")
		return report, nil
	}

	execution, err := ExecuteLive(ctx, r.Client, target, signer, preflight, cfg.EVMExecution.Ledger)
	if err != nil {
		return nil, err
	}
	report.Mode = "live"
	report.LiveExecution = &execution
	log.Info().Int("submitted", len(execution.SubmittedTxHashes)).Msg("live execution complete")
	return report, nil
}
