package gaugecore

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

const (
	curvePublisher  = "curve-finance"
	curveGaugesPath = "/getGauges"
)

// curveChainAliases maps a requested chain to the blockchainId values
// the Curve API uses for it.
var curveChainAliases = map[string][]string{
	"ethereum":  {"ethereum"},
	"arbitrum":  {"arbitrum"},
	"base":      {"base"},
	"optimism":  {"optimism"},
	"polygon":   {"polygon"},
	"avalanche": {"avalanche"},
	"bsc":       {"bsc", "binance"},
	"gnosis":    {"gnosis", "xdai"},
	"zksync":    {"zksync"},
	"scroll":    {"scroll"},
}

// Gauge is one yield-bearing deposit target on the requested chain.
type Gauge struct {
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	PoolAddress     string   `json:"pool_address"`
	LPTokenAddress  string   `json:"lp_token_address"`
	LPTokenPriceUSD *float64 `json:"lp_token_price_usd"`
	RewardAPY       float64  `json:"reward_apy"`
	SourceChain     string   `json:"source_chain"`
}

// GaugesResponse carries the ranked shortlist plus provenance.
type GaugesResponse struct {
	Gauges          []Gauge `json:"gauges"`
	TotalCandidates int     `json:"total_candidates"`
	Source          string  `json:"source"`
}

func curveChainMatches(requested, source string) bool {
	aliases, ok := curveChainAliases[requested]
	if !ok {
		aliases = []string{requested}
	}
	source = strings.TrimSpace(strings.ToLower(source))
	for _, alias := range aliases {
		if source == alias {
			return true
		}
	}
	return false
}

// extractRewardAPY takes the max over the candidate reward-rate
// fields; some are lists per deposit tier, so the max spans all
// parseable entries.
func extractRewardAPY(gauge map[string]any) float64 {
	var candidates []float64
	for _, field := range []string{"gaugeFutureCrvApy", "gaugeCrvApy"} {
		switch raw := gauge[field].(type) {
		case []any:
			for _, item := range raw {
				if parsed := toFloat(item); parsed != nil {
					candidates = append(candidates, *parsed)
				}
			}
		default:
			if parsed := toFloat(raw); parsed != nil {
				candidates = append(candidates, *parsed)
			}
		}
	}
	if len(candidates) == 0 {
		return 0
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c > best {
			best = c
		}
	}
	return best
}

// FetchTopGauges pulls the Curve gauge catalog once, filters it down
// to the requested chain and returns the top candidates by reward APY.
func FetchTopGauges(ctx context.Context, gw *seren.Client, chain string, limit int) (GaugesResponse, error) {
	payload, err := gw.Call(ctx, curvePublisher, http.MethodGet, curveGaugesPath, nil)
	if err != nil {
		return GaugesResponse{}, err
	}
	body, err := seren.Unwrap(payload, curvePublisher, http.MethodGet, curveGaugesPath)
	if err != nil {
		return GaugesResponse{}, err
	}
	bodyObj, ok := body.(map[string]any)
	if !ok {
		return GaugesResponse{}, faults.Publisherf("curve-finance /getGauges returned non-object body")
	}
	data, ok := bodyObj["data"].(map[string]any)
	if !ok {
		return GaugesResponse{}, faults.Publisherf("curve-finance /getGauges response missing data object")
	}

	var gauges []Gauge
	for gaugeName, rawValue := range data {
		value, ok := rawValue.(map[string]any)
		if !ok {
			continue
		}
		sourceChain := strings.TrimSpace(strings.ToLower(asString(value["blockchainId"])))
		if !curveChainMatches(chain, sourceChain) {
			continue
		}
		gaugeAddress := strings.TrimSpace(asString(value["gauge"]))
		if !isHexAddress(gaugeAddress) {
			continue
		}
		lpToken := strings.TrimSpace(asString(value["swap_token"]))
		if !isHexAddress(lpToken) {
			lpToken = ""
		}
		gauges = append(gauges, Gauge{
			Name:            gaugeName,
			Address:         strings.ToLower(gaugeAddress),
			PoolAddress:     strings.ToLower(strings.TrimSpace(asString(value["poolAddress"]))),
			LPTokenAddress:  strings.ToLower(lpToken),
			LPTokenPriceUSD: toFloat(value["lpTokenPrice"]),
			RewardAPY:       extractRewardAPY(value),
			SourceChain:     sourceChain,
		})
	}

	// Map iteration order is randomized, so ties on APY need a
	// secondary key to keep the selected gauge stable across runs.
	sort.SliceStable(gauges, func(i, j int) bool {
		if gauges[i].RewardAPY != gauges[j].RewardAPY {
			return gauges[i].RewardAPY > gauges[j].RewardAPY
		}
		return gauges[i].Name < gauges[j].Name
	})
	top := gauges
	if len(top) > limit {
		top = top[:limit]
	}
	if len(top) == 0 {
		return GaugesResponse{}, faults.Configf(
			"Curve API returned no gauge candidates for chain '%s'. Verify chain support and publisher availability.", chain)
	}
	return GaugesResponse{
		Gauges:          top,
		TotalCandidates: len(gauges),
		Source:          curvePublisher + ":" + curveGaugesPath,
	}, nil
}
