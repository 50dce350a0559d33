package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestRunTrialRuin(t *testing.T) {
	// Every bet loses half the bankroll: 50, 25, 12.5, 6.25, 3.125, 1.5625, 0.78125
	m := Model{WinProbability: 0, Payout: 1, AppliedFraction: 0.5}
	trial := RunTrial(TrialRand(1, 0), m, 100, 100, 1)

	if !trial.Ruined {
		t.Fatal("trial should be ruined")
	}
	if trial.BetsPlaced != 7 {
		t.Errorf("BetsPlaced = %d, want 7", trial.BetsPlaced)
	}
	if math.Abs(trial.FinalBankroll-0.78125) > 1e-12 {
		t.Errorf("FinalBankroll = %v, want 0.78125", trial.FinalBankroll)
	}
}

func TestRunTrialAlwaysWins(t *testing.T) {
	m := Model{WinProbability: 1, Payout: 1, AppliedFraction: 0.5}
	trial := RunTrial(TrialRand(1, 0), m, 4, 100, 1)

	if trial.Ruined || trial.BetsPlaced != 4 {
		t.Errorf("trial = %+v, want 4 bets without ruin", trial)
	}
	if want := 100 * math.Pow(1.5, 4); math.Abs(trial.FinalBankroll-want) > 1e-9 {
		t.Errorf("FinalBankroll = %v, want %v", trial.FinalBankroll, want)
	}
}

func TestRunTrialStakeCappedAtBankroll(t *testing.T) {
	m := Model{WinProbability: 0, Payout: 1, AppliedFraction: 3}
	trial := RunTrial(TrialRand(1, 0), m, 10, 100, 1)
	if trial.FinalBankroll != 0 || !trial.Ruined || trial.BetsPlaced != 1 {
		t.Errorf("trial = %+v, want bankroll 0 ruined after 1 bet", trial)
	}
}

func TestRunTrialFrozenAtMaxBankroll(t *testing.T) {
	// Doubling from 100 first reaches 1e250 on bet 824
	m := Model{WinProbability: 1, Payout: 1, AppliedFraction: 1}
	trial := RunTrial(TrialRand(1, 0), m, 2000, 100, 1)

	if !trial.Capped || trial.Ruined {
		t.Fatalf("trial = %+v, want capped", trial)
	}
	if trial.FinalBankroll != MaxBankroll {
		t.Errorf("FinalBankroll = %v, want %v", trial.FinalBankroll, MaxBankroll)
	}
	if trial.BetsPlaced != 824 {
		t.Errorf("BetsPlaced = %d, want 824", trial.BetsPlaced)
	}
}

func TestRunTrialRuinAtZero(t *testing.T) {
	m := Model{WinProbability: 0, Payout: 1, AppliedFraction: 0.5}
	trial := RunTrial(TrialRand(1, 0), m, 100, 100, 0)
	if trial.Ruined || trial.BetsPlaced != 100 || trial.FinalBankroll <= 0 {
		t.Errorf("trial = %+v, want 100 bets with a shrinking positive bankroll", trial)
	}

	m.AppliedFraction = 1
	trial = RunTrial(TrialRand(1, 0), m, 100, 100, 0)
	if !trial.Ruined || trial.BetsPlaced != 1 {
		t.Errorf("trial = %+v, want ruin at zero after 1 bet", trial)
	}
}

func TestTrialRandWinFrequency(t *testing.T) {
	const n = 20000
	wins := 0
	for i := 0; i < n; i++ {
		if TrialRand(7, i).Float64() < 0.55 {
			wins++
		}
	}
	if freq := float64(wins) / n; math.Abs(freq-0.55) > 0.02 {
		t.Errorf("win frequency = %v, want 0.55 +/- 0.02", freq)
	}
}

func TestSimulateSingleBetProfitProbability(t *testing.T) {
	// One bet per trial: profit iff the bet wins, so P(profit) estimates p = 0.55
	cfg := validEdge()
	cfg.SampleSize = 1
	cfg.NumSimulations = 20000
	cfg.Seed = 99

	res, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if math.Abs(res.ProbabilityOfProfit-0.55) > 0.02 {
		t.Errorf("ProbabilityOfProfit = %v, want 0.55 +/- 0.02", res.ProbabilityOfProfit)
	}
	if res.ProfitProbabilityMargin <= 0 || res.ProfitProbabilityMargin > 0.01 {
		t.Errorf("ProfitProbabilityMargin = %v, want (0, 0.01]", res.ProfitProbabilityMargin)
	}
	if len(res.Simulations) != cfg.NumSimulations {
		t.Errorf("len(Simulations) = %d, want %d", len(res.Simulations), cfg.NumSimulations)
	}
}

func TestSimulateDeterministicAcrossWorkers(t *testing.T) {
	cfg := validParlay()
	cfg.Seed = 42

	cfg.Workers = 1
	a, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	cfg.Workers = 8
	b, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	for i := range a.Simulations {
		if a.Simulations[i] != b.Simulations[i] {
			t.Fatalf("trial %d differs: %v vs %v", i, a.Simulations[i], b.Simulations[i])
		}
	}
	if a.Seed != 42 || a.ConfidenceIntervals != b.ConfidenceIntervals {
		t.Errorf("seed/percentiles differ: %d %+v %+v", a.Seed, a.ConfidenceIntervals, b.ConfidenceIntervals)
	}
}

func TestSimulateRandomSeedReported(t *testing.T) {
	cfg := validParlay()
	cfg.NumSimulations = 10
	res, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.Seed == 0 {
		t.Error("random seed should be reported")
	}
}

func TestSimulateAggregates(t *testing.T) {
	cfg := validEdge()
	cfg.Seed = 3
	cfg.NumSimulations = 2000
	cfg.SampleSize = 200

	res, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	ci := res.ConfidenceIntervals
	ordered := []float64{ci.Bottom1, ci.Bottom5, ci.Bottom10, res.MedianFinalBankroll, ci.Top10, ci.Top5, ci.Top1}
	for i := 1; i < len(ordered); i++ {
		if ordered[i] < ordered[i-1] {
			t.Errorf("percentiles out of order: %v", ordered)
			break
		}
	}
	if res.ProbabilityOfProfit < 0 || res.ProbabilityOfProfit > 1 || res.RiskOfRuin < 0 || res.RiskOfRuin > 1 {
		t.Errorf("probabilities out of range: profit=%v ruin=%v", res.ProbabilityOfProfit, res.RiskOfRuin)
	}
	// Half Kelly with a 10% edge grows the median bankroll
	if res.MedianFinalBankroll <= cfg.StartingBankroll {
		t.Errorf("MedianFinalBankroll = %v, want above %v", res.MedianFinalBankroll, cfg.StartingBankroll)
	}
}

func TestSimulateNoEdgeNeverStakes(t *testing.T) {
	cfg := validEdge()
	cfg.EstimatedEdge = -5
	cfg.Seed = 1

	res, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.AppliedFraction != 0 {
		t.Errorf("AppliedFraction = %v, want 0", res.AppliedFraction)
	}
	for _, v := range res.Simulations {
		if v != cfg.StartingBankroll {
			t.Fatalf("bankroll moved to %v without a stake", v)
		}
	}
	if res.ProbabilityOfProfit != 0 || res.RiskOfRuin != 0 {
		t.Errorf("profit=%v ruin=%v, want 0/0", res.ProbabilityOfProfit, res.RiskOfRuin)
	}
}

func TestSimulateOverBetRuins(t *testing.T) {
	// Kelly multiplier 3 on full Kelly 1/3 stakes the whole bankroll
	cfg := Config{
		StartingBankroll: 100,
		KellyFraction:    3,
		SampleSize:       10,
		NumSimulations:   4000,
		Mode:             ModeParlay,
		FairProbOneLeg:   50,
		NumberOfLegs:     1,
		TotalPayout:      300,
		Seed:             11,
	}

	res, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	want := 1 - math.Pow(0.5, 10)
	if math.Abs(res.RiskOfRuin-want) > 0.01 {
		t.Errorf("RiskOfRuin = %v, want ~%v", res.RiskOfRuin, want)
	}
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Simulate(ctx, validParlay())
	if res != nil {
		t.Error("cancelled run should not return a partial result")
	}
	var se *SimulationError
	if !errors.As(err, &se) || !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want SimulationError wrapping context.Canceled", err)
	}
}

func TestSimulateInvalidConfig(t *testing.T) {
	cfg := validParlay()
	cfg.SampleSize = 0
	var se *SimulationError
	if _, err := Simulate(context.Background(), cfg); !errors.As(err, &se) {
		t.Errorf("error = %v, want *SimulationError", err)
	}
}

func TestSimulateLongRunStaysFinite(t *testing.T) {
	sure := validParlay()
	sure.KellyFraction = 1
	sure.FairProbOneLeg = 100
	sure.NumberOfLegs = 1
	sure.TotalPayout = 100
	sure.SampleSize = 2000
	sure.NumSimulations = 10
	sure.Seed = 1

	edge := validEdge()
	edge.EstimatedEdge = 50
	edge.KellyFraction = 1
	edge.SampleSize = 20000
	edge.NumSimulations = 50
	edge.Seed = 1

	for name, cfg := range map[string]Config{"certain win": sure, "large edge": edge} {
		t.Run(name, func(t *testing.T) {
			res, err := Simulate(context.Background(), cfg)
			if err != nil {
				t.Fatalf("Simulate: %v", err)
			}

			ci := res.ConfidenceIntervals
			for _, v := range []float64{res.MeanFinalBankroll, res.MedianFinalBankroll,
				ci.Bottom1, ci.Bottom5, ci.Bottom10, ci.Top10, ci.Top5, ci.Top1} {
				if math.IsNaN(v) || math.IsInf(v, 0) || v > MaxBankroll {
					t.Fatalf("statistic %v is not a finite bankroll: %+v", v, ci)
				}
			}
			if res.CappedTrials == 0 {
				t.Error("CappedTrials = 0, want trials frozen at MaxBankroll")
			}
			if res.ProbabilityOfProfit < 0.9 {
				t.Errorf("ProbabilityOfProfit = %v, want capped trials counted as profitable", res.ProbabilityOfProfit)
			}
			if _, err := json.Marshal(res); err != nil {
				t.Errorf("result does not encode: %v", err)
			}
		})
	}
}

func TestSimulateExplicitZeroRuinThreshold(t *testing.T) {
	// Applied fraction 0.9: two losses leave 1% of the bankroll but never 0
	cfg := validEdge()
	cfg.KellyFraction = 9
	cfg.SampleSize = 2
	cfg.NumSimulations = 2000
	cfg.Seed = 5

	res, err := Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.RiskOfRuin == 0 {
		t.Error("default threshold should ruin trials that lose twice")
	}

	cfg.RuinThreshold = RuinAt(0)
	res, err = Simulate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.RiskOfRuin != 0 {
		t.Errorf("RiskOfRuin = %v, want 0 with ruin only at a zero bankroll", res.RiskOfRuin)
	}
}
