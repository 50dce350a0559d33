package simulation

import (
	"time"

	"qk-sims/internal/mathutil"
)

// Percentiles of the final bankroll distribution.
type Percentiles struct {
	Bottom1  float64 `json:"bottom1"`
	Bottom5  float64 `json:"bottom5"`
	Bottom10 float64 `json:"bottom10"`
	Top10    float64 `json:"top10"`
	Top5     float64 `json:"top5"`
	Top1     float64 `json:"top1"`
}

// Result aggregates a run. Simulations keeps the final bankroll of every
// trial in trial order; probabilities are fractions in [0,1].
type Result struct {
	ProbabilityOfProfit     float64     `json:"probabilityOfProfit"`
	ProfitProbabilityMargin float64     `json:"profitProbabilityMargin"`
	MeanFinalBankroll       float64     `json:"meanFinalBankroll"`
	MedianFinalBankroll     float64     `json:"medianFinalBankroll"`
	RiskOfRuin              float64     `json:"riskOfRuin"`
	CappedTrials            int         `json:"cappedTrials"` // trials frozen at MaxBankroll
	ConfidenceIntervals     Percentiles `json:"confidenceIntervals"`
	Simulations             []float64   `json:"simulations"`

	WinProbability   float64 `json:"winProbability"`
	PayoutMultiplier float64 `json:"payoutMultiplier"`
	PayoutOdds       int     `json:"payoutOdds,omitempty"`
	FullKelly        float64 `json:"fullKelly"`
	AppliedFraction  float64 `json:"appliedFraction"`
	EdgePercent      float64 `json:"edgePercent"`

	Seed           int64         `json:"seed"`
	NumSimulations int           `json:"numSimulations"`
	SampleSize     int           `json:"sampleSize"`
	Duration       time.Duration `json:"-"`
}

// profitConfidence is the confidence level of ProfitProbabilityMargin.
const profitConfidence = 0.95

func summarize(cfg Config, m Model, finals []float64, ruined, capped []bool) *Result {
	n := len(finals)
	var profitable, ruins, caps int
	for i, v := range finals {
		if v > cfg.StartingBankroll {
			profitable++
		}
		if ruined[i] {
			ruins++
		}
		if capped[i] {
			caps++
		}
	}

	sorted := mathutil.SortedCopy(finals)
	pProfit := float64(profitable) / float64(n)

	return &Result{
		ProbabilityOfProfit:     pProfit,
		ProfitProbabilityMargin: mathutil.ProportionMargin(pProfit, n, profitConfidence),
		MeanFinalBankroll:       mathutil.Mean(finals),
		MedianFinalBankroll:     mathutil.Median(sorted),
		RiskOfRuin:              float64(ruins) / float64(n),
		CappedTrials:            caps,
		ConfidenceIntervals: Percentiles{
			Bottom1:  mathutil.Percentile(sorted, 1),
			Bottom5:  mathutil.Percentile(sorted, 5),
			Bottom10: mathutil.Percentile(sorted, 10),
			Top10:    mathutil.Percentile(sorted, 90),
			Top5:     mathutil.Percentile(sorted, 95),
			Top1:     mathutil.Percentile(sorted, 99),
		},
		Simulations:      finals,
		WinProbability:   m.WinProbability,
		PayoutMultiplier: m.Payout,
		PayoutOdds:       m.PayoutOdds,
		FullKelly:        m.FullKelly,
		AppliedFraction:  m.AppliedFraction,
		EdgePercent:      m.EdgePercent,
		NumSimulations:   n,
		SampleSize:       cfg.SampleSize,
	}
}
