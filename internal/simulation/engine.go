package simulation

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// trialsPerClaim is how many consecutive trial indexes a worker claims at once.
const trialsPerClaim = 64

// MaxBankroll is the ceiling a bankroll path is frozen at. The sum of
// MaxNumSimulations bankrolls at the ceiling, and a full stake at any
// American payout, both stay finite.
const MaxBankroll = 1e250

// Trial is the outcome of one simulated bankroll path.
type Trial struct {
	FinalBankroll float64
	Ruined        bool
	Capped        bool
	BetsPlaced    int
}

// RunTrial plays up to sampleSize sequential bets from start, staking
// m.AppliedFraction of the current bankroll each time. The path stops early
// once the bankroll falls to ruinLevel or below, or reaches MaxBankroll.
func RunTrial(rng *rand.Rand, m Model, sampleSize int, start, ruinLevel float64) Trial {
	bankroll := start
	for i := 0; i < sampleSize; i++ {
		stake := math.Min(m.AppliedFraction*bankroll, bankroll)
		if rng.Float64() < m.WinProbability {
			bankroll += stake * m.Payout
		} else {
			bankroll -= stake
		}

		switch {
		case bankroll <= ruinLevel:
			return Trial{FinalBankroll: bankroll, Ruined: true, BetsPlaced: i + 1}
		case bankroll >= MaxBankroll:
			return Trial{FinalBankroll: MaxBankroll, Capped: true, BetsPlaced: i + 1}
		}
	}
	return Trial{FinalBankroll: bankroll, BetsPlaced: sampleSize}
}

// Simulate runs cfg.NumSimulations independent trials across cfg.Workers
// goroutines and aggregates the final bankrolls. Trial i draws from its own
// generator seeded from (seed, i), so results depend only on the seed and
// not on scheduling. A zero Seed is replaced by a random one, reported in
// the result.
func Simulate(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := BetModel(cfg)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		if seed, err = randomSeed(); err != nil {
			return nil, &SimulationError{Reason: "seeding", Err: err}
		}
	}

	n := cfg.NumSimulations
	finals := make([]float64, n)
	ruined := make([]bool, n)
	capped := make([]bool, n)
	ruinLevel := cfg.ruinFraction() * cfg.StartingBankroll

	workers := min(cfg.Workers, n)
	started := time.Now()

	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				hi := int(next.Add(trialsPerClaim))
				lo := hi - trialsPerClaim
				if lo >= n {
					return
				}
				hi = min(hi, n)

				for i := lo; i < hi; i++ {
					if ctx.Err() != nil {
						return
					}
					t := RunTrial(TrialRand(seed, i), model, cfg.SampleSize, cfg.StartingBankroll, ruinLevel)
					finals[i] = t.FinalBankroll
					ruined[i] = t.Ruined
				capped[i] = t.Capped
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &SimulationError{Reason: "cancelled", Err: err}
	}

	res := summarize(cfg, model, finals, ruined, capped)
	res.Seed = seed
	res.Duration = time.Since(started)
	return res, nil
}

// TrialRand returns the generator for trial i of a run seeded with seed.
func TrialRand(seed int64, trial int) *rand.Rand {
	s := splitmix64(uint64(seed) + uint64(trial))
	return rand.New(rand.NewPCG(s, splitmix64(s)))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func randomSeed() (int64, error) {
	var buf [8]byte
	for {
		if _, err := crand.Read(buf[:]); err != nil {
			return 0, err
		}
		if s := int64(binary.LittleEndian.Uint64(buf[:])); s != 0 {
			return s, nil
		}
	}
}
