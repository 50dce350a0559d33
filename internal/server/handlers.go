package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"qk-sims/internal/analysis"
	"qk-sims/internal/cache"
	"qk-sims/internal/history"
	"qk-sims/internal/odds"
	"qk-sims/internal/simulation"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
	maxBodyBytes     = 1 << 20
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": serviceName + " engine"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

// legView is the wire form of a parsed leg. Probabilities are percentages,
// matching how they are typed in.
type legView struct {
	Type  odds.LegKind `json:"type"`
	Odds1 int          `json:"odds1,omitempty"`
	Odds2 int          `json:"odds2,omitempty"`
	Value float64      `json:"value,omitempty"`
}

func viewLeg(leg odds.Leg) legView {
	v := legView{Type: leg.Kind()}
	switch v.Type {
	case odds.LegOdds:
		v.Odds1, v.Odds2 = leg.Pair.A, leg.Pair.B
	case odds.LegProbability:
		v.Value = math.Round(*leg.FairProbability*100*1e6) / 1e6
	case odds.LegEdge:
		v.Value = *leg.EdgePercent
	}
	return v
}

func (s *Server) handleParseOdds(w http.ResponseWriter, r *http.Request) {
	input := chi.URLParam(r, "*")
	leg, err := odds.ParseOddsEntry(input)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid odds format",
			"input": input,
		})
		return
	}
	respondJSON(w, http.StatusOK, viewLeg(leg))
}

// calculateParams is the calculator query as recorded in history.
type calculateParams struct {
	Input         string      `json:"input"`
	FinalOdds     int         `json:"finalOdds"`
	Bankroll      float64     `json:"bankroll"`
	KellyFraction float64     `json:"kellyFraction"`
	Method        odds.Method `json:"method"`
}

// handleCalculateBet serves
// GET /calculate-bet?input_str=&final_odds=&bankroll=&kelly_fraction=&devig_method=
func (s *Server) handleCalculateBet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := q.Get("input_str")
	fail := func(err error) {
		respondEngineError(w, err, map[string]any{"input": input})
	}

	params, err := s.parseCalculateQuery(q.Get, input)
	if err != nil {
		fail(err)
		return
	}

	legs, err := odds.ParseLegs(input)
	if err != nil {
		fail(err)
		return
	}

	started := time.Now()
	res, err := analysis.Calculate(analysis.BetRequest{
		Legs:          legs,
		FinalOdds:     params.FinalOdds,
		Bankroll:      params.Bankroll,
		KellyFraction: params.KellyFraction,
		Method:        params.Method,
	})
	if err != nil {
		fail(err)
		return
	}

	parsed := make([]legView, len(legs))
	for i, leg := range legs {
		parsed[i] = viewLeg(leg)
	}

	s.record(r, history.Run{
		Kind:           history.KindCalculation,
		Params:         mustJSON(params),
		WinProbability: res.CombinedProbability,
		EdgePercent:    res.Sizing.EdgePercent,
		Stake:          res.Sizing.Stake,
		DurationMs:     time.Since(started).Milliseconds(),
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"output":      res.Lines,
		"parsed_legs": parsed,
		"result":      res,
	})
}

func (s *Server) parseCalculateQuery(get func(string) string, input string) (calculateParams, error) {
	p := calculateParams{Input: input, KellyFraction: s.opts.DefaultKellyFraction}

	if input == "" {
		return p, &odds.ParseError{Reason: "input_str is required"}
	}

	finalOdds, err := strconv.Atoi(get("final_odds"))
	if err != nil {
		return p, &odds.ParseError{Input: get("final_odds"), Reason: "final_odds must be an integer American price"}
	}
	p.FinalOdds = finalOdds

	bankroll, err := strconv.ParseFloat(get("bankroll"), 64)
	if err != nil {
		return p, &analysis.SizingError{Field: "bankroll", Reason: "must be a number"}
	}
	p.Bankroll = bankroll

	if v := get("kelly_fraction"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, &analysis.SizingError{Field: "kellyFraction", Reason: "must be a number"}
		}
		p.KellyFraction = f
	}

	p.Method, err = odds.ParseMethod(get("devig_method"))
	return p, err
}

// simulateResponse is a simulation result tagged with its history id.
type simulateResponse struct {
	RunID      string `json:"runId,omitempty"`
	Cached     bool   `json:"cached"`
	DurationMs int64  `json:"durationMs"`
	*simulation.Result
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var cfg simulation.Config
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cfg); err != nil {
		respondEngineError(w, &simulation.SimulationError{Reason: "invalid request body", Err: err}, nil)
		return
	}

	cfg = s.applyDefaults(cfg)
	if cfg.NumSimulations > s.opts.MaxNumSimulations {
		respondEngineError(w, &simulation.SimulationError{
			Field:  "numSimulations",
			Reason: "must not exceed " + strconv.Itoa(s.opts.MaxNumSimulations),
		}, nil)
		return
	}
	if err := cfg.Validate(); err != nil {
		respondEngineError(w, err, nil)
		return
	}

	started := time.Now()

	// Only seeded runs are reproducible, so only they are cached. The cache
	// holds the bare result; every request gets its own run id and timing.
	var key string
	if cfg.Seed != 0 && s.opts.Cache != nil {
		k, err := cache.Key("sim", cfg)
		if err == nil {
			key = k
			var cached simulation.Result
			ok, err := cache.GetJSON(r.Context(), s.opts.Cache, key, &cached)
			if err != nil {
				s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
			}
			if ok {
				resp := s.recordSimulation(r, cfg, &cached, time.Since(started))
				resp.Cached = true
				respondJSON(w, http.StatusOK, resp)
				return
			}
		}
	}

	res, err := simulation.Simulate(r.Context(), cfg)
	if err != nil {
		respondEngineError(w, err, nil)
		return
	}

	s.log.Debug("simulation finished",
		zap.String("mode", string(cfg.Mode)),
		zap.Int("trials", cfg.NumSimulations),
		zap.Int("sample_size", cfg.SampleSize),
		zap.Int64("seed", res.Seed),
		zap.Int("capped_trials", res.CappedTrials),
		zap.Duration("duration", res.Duration),
	)

	if key != "" {
		if err := cache.SetJSON(r.Context(), s.opts.Cache, key, res); err != nil {
			s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	respondJSON(w, http.StatusOK, s.recordSimulation(r, cfg, res, time.Since(started)))
}

func (s *Server) recordSimulation(r *http.Request, cfg simulation.Config, res *simulation.Result, elapsed time.Duration) simulateResponse {
	resp := simulateResponse{DurationMs: elapsed.Milliseconds(), Result: res}
	resp.RunID = s.record(r, history.Run{
		Kind:                history.KindSimulation,
		Params:              mustJSON(cfg),
		Seed:                res.Seed,
		WinProbability:      res.WinProbability,
		EdgePercent:         res.EdgePercent,
		ProbabilityOfProfit: res.ProbabilityOfProfit,
		MeanFinalBankroll:   res.MeanFinalBankroll,
		MedianFinalBankroll: res.MedianFinalBankroll,
		RiskOfRuin:          res.RiskOfRuin,
		DurationMs:          resp.DurationMs,
	})
	return resp
}

func (s *Server) applyDefaults(cfg simulation.Config) simulation.Config {
	if cfg.NumSimulations == 0 {
		cfg.NumSimulations = s.opts.DefaultNumSimulations
	}
	if cfg.RuinThreshold == nil {
		cfg.RuinThreshold = simulation.RuinAt(s.opts.RuinThreshold)
	}
	cfg.Workers = s.opts.Workers
	return cfg.WithDefaults()
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		respondError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	var (
		runs []history.Run
		err  error
	)
	switch kind := history.Kind(r.URL.Query().Get("kind")); kind {
	case "":
		runs, err = s.opts.History.RecentRuns(r.Context(), limit)
	case history.KindSimulation, history.KindCalculation:
		runs, err = s.opts.History.RunsByKind(r.Context(), kind, limit)
	default:
		respondError(w, http.StatusBadRequest, "kind must be simulation or calculation")
		return
	}
	if err != nil {
		s.log.Error("listing runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		respondError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.opts.History.GetRun(r.Context(), id)
	if err != nil {
		s.log.Error("loading run failed", zap.String("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// record stores run in history when enabled and returns its id. Failures
// are only logged.
func (s *Server) record(r *http.Request, run history.Run) string {
	if s.opts.History == nil {
		return ""
	}
	id, err := s.opts.History.AddRun(r.Context(), run)
	if err != nil {
		s.log.Warn("recording run failed", zap.String("kind", string(run.Kind)), zap.Error(err))
		return ""
	}
	return id
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
