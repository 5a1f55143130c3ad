// gaugetrader plans and (after explicit confirmation) executes Curve
// gauge yield deposits through the Seren publisher gateway. Default
// mode is dry-run; output is a single JSON object on stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/serenhq/curve-gauge-trader/internal/config"
	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/gaugecore"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
	"github.com/serenhq/curve-gauge-trader/internal/wallet"
)

var (
	configPath    string
	initWallet    bool
	walletPath    string
	ledgerAddress string
	yesLive       bool
)

var rootCmd = &cobra.Command{
	Use:           "gaugetrader",
	Short:         "Curve gauge yield trader runtime. Default mode is dry-run.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if initWallet {
			return runInitWallet()
		}
		return runOnce(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.json", "Path to runtime config JSON")
	rootCmd.Flags().BoolVar(&initWallet, "init-wallet", false, "Generate a local wallet file for live trading mode")
	rootCmd.Flags().StringVar(&walletPath, "wallet-path", wallet.DefaultPath, "Path for local wallet metadata")
	rootCmd.Flags().StringVar(&ledgerAddress, "ledger-address", "", "Ledger EVM address to use when wallet_mode=ledger")
	rootCmd.Flags().BoolVar(&yesLive, "yes-live", false, "Required safety flag for live execution")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func runInitWallet() error {
	w, err := wallet.Create(walletPath)
	if err != nil {
		return err
	}
	printJSON(map[string]any{
		"status": "ok",
		"message": "Local wallet generated. Fund this wallet before live trading and keep " +
			"private key secure.",
		"wallet_path": walletPath,
		"address":     w.Address,
	})
	return nil
}

func runOnce(ctx context.Context) error {
	apiKey := strings.TrimSpace(os.Getenv("SEREN_API_KEY"))
	if apiKey == "" {
		return faults.Configf("SEREN_API_KEY is required in the environment.")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("SEREN_API_BASE_URL")
	}

	logger := newLogger()
	client := seren.NewClient(apiKey, baseURL, logger)
	runner := &gaugecore.Runner{
		Client:        client,
		Config:        cfg,
		YesLive:       yesLive,
		LedgerAddress: ledgerAddress,
		Log:           logger,
	}
	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	printJSON(report)
	return nil
}

func printJSON(v any) {
	encoded, err := json.Marshal(v)
	if err != nil {
		fmt.Println(`{"status":"error","error":"failed to encode result"}`)
		return
	}
	fmt.Println(string(encoded))
}

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		printJSON(map[string]any{"status": "error", "error": err.Error()})
		os.Exit(1)
	}
}
