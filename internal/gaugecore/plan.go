package gaugecore

import (
	"github.com/serenhq/curve-gauge-trader/internal/faults"
)

// TradePlan is the selected opportunity: the best-ranked gauge plus
// the operator's capital sizing. Immutable once chosen.
type TradePlan struct {
	Token           string   `json:"token"`
	AmountUSD       float64  `json:"amount_usd"`
	GaugeAddress    string   `json:"gauge_address"`
	ExpectedAPY     *float64 `json:"expected_reward_apy"`
	LPTokenAddress  string   `json:"lp_token_address"`
	LPTokenPriceUSD *float64 `json:"lp_token_price_usd"`
	PoolAddress     string   `json:"pool_address"`
	GaugeName       string   `json:"gauge_name"`
	Source          string   `json:"source"`
}

// ChooseTradePlan promotes the top-ranked gauge into the run's plan.
func ChooseTradePlan(resp GaugesResponse, token string, amountUSD float64) (TradePlan, error) {
	if len(resp.Gauges) == 0 {
		return TradePlan{}, faults.Configf("Unable to resolve a valid Curve gauge address from gauge data.")
	}
	top := resp.Gauges[0]
	if !isHexAddress(top.Address) {
		return TradePlan{}, faults.Configf("Unable to resolve a valid Curve gauge address from gauge data.")
	}
	apy := top.RewardAPY
	return TradePlan{
		Token:           token,
		AmountUSD:       amountUSD,
		GaugeAddress:    top.Address,
		ExpectedAPY:     &apy,
		LPTokenAddress:  top.LPTokenAddress,
		LPTokenPriceUSD: top.LPTokenPriceUSD,
		PoolAddress:     top.PoolAddress,
		GaugeName:       top.Name,
		Source:          resp.Source,
	}, nil
}
