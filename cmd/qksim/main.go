package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"qk-sims/internal/analysis"
	"qk-sims/internal/odds"
	"qk-sims/internal/simulation"
)

const usage = `usage:
  qksim simulate -f scenario.yaml [-seed N] [-workers N] [-json]
  qksim calc -odds "-113/-113, 55" -final +300 -bankroll 100 [-kelly 0.25] [-method worst_case]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "qksim:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "simulate":
		return runSimulate(ctx, args[1:], out)
	case "calc":
		return runCalc(args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runSimulate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("f", "", "scenario YAML file")
	seed := fs.Int64("seed", 0, "override the scenario seed (0 keeps it)")
	workers := fs.Int("workers", 0, "worker goroutines (0 = one per CPU)")
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("simulate: -f scenario file is required")
	}

	sc, err := simulation.LoadScenario(*path)
	if err != nil {
		return err
	}
	cfg := sc.Simulation
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	res, err := simulation.Simulate(ctx, cfg)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if sc.Name != "" {
		fmt.Fprintf(out, "%s\n", sc.Name)
	}
	return renderSimulation(out, cfg, res)
}

func renderSimulation(out io.Writer, cfg simulation.Config, res *simulation.Result) error {
	ci := res.ConfidenceIntervals
	rows := [][]string{
		{"Win probability", pct(res.WinProbability)},
		{"Payout (b)", fmt.Sprintf("%.4f (%+d)", res.PayoutMultiplier, res.PayoutOdds)},
		{"Edge", fmt.Sprintf("%.2f%%", res.EdgePercent)},
		{"Stake per bet", pct(res.AppliedFraction) + " of bankroll"},
		{"Trials x bets", fmt.Sprintf("%d x %d", res.NumSimulations, res.SampleSize)},
		{"Seed", fmt.Sprintf("%d", res.Seed)},
		{"P(profit)", fmt.Sprintf("%s ± %s", pct(res.ProbabilityOfProfit), pct(res.ProfitProbabilityMargin))},
		{"Risk of ruin", pct(res.RiskOfRuin)},
		{"Starting bankroll", money(cfg.StartingBankroll)},
		{"Mean final", money(res.MeanFinalBankroll)},
		{"Median final", money(res.MedianFinalBankroll)},
		{"Bottom 1% / 5% / 10%", money(ci.Bottom1) + " / " + money(ci.Bottom5) + " / " + money(ci.Bottom10)},
		{"Top 10% / 5% / 1%", money(ci.Top10) + " / " + money(ci.Top5) + " / " + money(ci.Top1)},
	}

	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Value")
	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

func runCalc(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("calc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	input := fs.String("odds", "", `legs, e.g. "-113/-113, 55"`)
	final := fs.Int("final", 0, "American odds offered for the bet")
	bankroll := fs.Float64("bankroll", 0, "bankroll in dollars")
	kelly := fs.Float64("kelly", 0.25, "Kelly multiplier")
	method := fs.String("method", "", "devig method: worst_case, multiplicative, additive, power")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := odds.ParseMethod(*method)
	if err != nil {
		return err
	}
	legs, err := odds.ParseLegs(*input)
	if err != nil {
		return err
	}

	res, err := analysis.Calculate(analysis.BetRequest{
		Legs:          legs,
		FinalOdds:     *final,
		Bankroll:      *bankroll,
		KellyFraction: *kelly,
		Method:        m,
	})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("Leg", "Input", "Fair Prob", "Fair Odds", "Juice")
	for i, lr := range res.Legs {
		in, juice := fmt.Sprintf("%.4g%%", lr.FairProbability*100), "-"
		if lr.Pair != nil {
			in, juice = lr.Pair.String(), fmt.Sprintf("%.1f%%", lr.MarketJuice)
		}
		if err := table.Append(fmt.Sprintf("%d", i+1), in, pct(lr.FairProbability), fmt.Sprintf("%+d", lr.FairOdds), juice); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, line := range res.Lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}
