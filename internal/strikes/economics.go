package strikes

import "math"

// Economics are the derived numbers for a credit spread: what it pays,
// what it risks, and the premium levels that trigger an exit. SLPremium and
// TargetPremium track the short leg's buy-back price only, since that is
// the leg being sold.
type Economics struct {
	NetCredit     float64
	MaxProfit     float64
	MaxLoss       float64
	RiskReward    float64
	SLPremium     float64
	TargetPremium float64
	SLPct         float64
	TargetPct     float64
}

// ComputeSpreadPnL derives the spread economics from leg premiums. Pure and
// side-effect free.
//
// Conservation law: MaxProfit/lot + MaxLoss/lot == spreadWidth.
func ComputeSpreadPnL(shortPremium, longPremium float64, lotSize int, spreadWidth, slPct, targetPct float64) Economics {
	netCredit := math.Max(0, shortPremium-longPremium)
	maxProfit := netCredit * float64(lotSize)
	maxLoss := (spreadWidth - netCredit) * float64(lotSize)

	riskReward := math.Inf(1)
	if maxLoss > 0 {
		riskReward = roundTo(maxProfit/maxLoss, 3)
	}

	return Economics{
		NetCredit:     round2(netCredit),
		MaxProfit:     round2(maxProfit),
		MaxLoss:       round2(maxLoss),
		RiskReward:    riskReward,
		SLPremium:     round2(shortPremium * (1 + slPct/100)),
		TargetPremium: round2(math.Max(0, shortPremium*(1-targetPct/100))),
		SLPct:         slPct,
		TargetPct:     targetPct,
	}
}

func round2(x float64) float64 {
	return roundTo(x, 2)
}

func roundTo(x float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(x*shift) / shift
}
