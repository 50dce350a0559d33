package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"qk-sims/internal/cache"
	"qk-sims/internal/config"
	"qk-sims/internal/history"
	"qk-sims/internal/simulation"
)

const serviceName = "qk-sims"

// RunStore records and lists request history.
type RunStore interface {
	AddRun(ctx context.Context, run history.Run) (string, error)
	GetRun(ctx context.Context, id string) (*history.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]history.Run, error)
	RunsByKind(ctx context.Context, kind history.Kind, limit int) ([]history.Run, error)
}

// Options configures a Server. Cache and History are optional.
type Options struct {
	Logger  *zap.Logger
	Cache   cache.Store
	History RunStore

	AllowedOrigins []string
	RequestTimeout time.Duration

	DefaultKellyFraction  float64
	DefaultNumSimulations int
	MaxNumSimulations     int
	Workers               int
	RuinThreshold         float64 // fraction of starting bankroll
}

// OptionsFromConfig maps application config onto server options.
func OptionsFromConfig(cfg config.Config, log *zap.Logger) Options {
	return Options{
		Logger:                log,
		AllowedOrigins:        cfg.AllowedOrigins,
		RequestTimeout:        cfg.RequestTimeout,
		DefaultKellyFraction:  cfg.KellyFraction,
		DefaultNumSimulations: cfg.NumSimulations,
		MaxNumSimulations:     cfg.MaxNumSimulations,
		Workers:               cfg.SimWorkers,
		RuinThreshold:         cfg.RuinThresholdPct / 100,
	}
}

// Server serves the calculator and simulator over HTTP.
type Server struct {
	opts Options
	log  *zap.Logger
}

// New creates a server, filling unset options with engine defaults.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = config.DefaultRequestTimeout
	}
	if opts.DefaultKellyFraction <= 0 {
		opts.DefaultKellyFraction = config.DefaultKellyFraction
	}
	if opts.DefaultNumSimulations <= 0 {
		opts.DefaultNumSimulations = simulation.DefaultNumSimulations
	}
	if opts.MaxNumSimulations <= 0 {
		opts.MaxNumSimulations = simulation.MaxNumSimulations
	}
	if opts.RuinThreshold <= 0 {
		opts.RuinThreshold = simulation.DefaultRuinThreshold
	}
	return &Server{opts: opts, log: opts.Logger}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	// Odds entries contain '/', so the whole remaining path is the entry
	r.Get("/parse-odds/*", s.handleParseOdds)
	r.Get("/calculate-bet", s.handleCalculateBet)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/simulate", s.handleSimulate)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
