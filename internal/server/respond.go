package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"qk-sims/internal/analysis"
	"qk-sims/internal/odds"
	"qk-sims/internal/simulation"
)

// respondJSON encodes data before writing the header, so a value that cannot
// be encoded turns into a 500 instead of an empty success.
func respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{
			"error": "failed to encode response: " + err.Error(),
			"kind":  "internal",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// errorKind classifies err into the engine's error taxonomy.
func errorKind(err error) string {
	var (
		pe *odds.ParseError
		de *odds.DevigError
		se *analysis.SizingError
		me *simulation.SimulationError
	)
	switch {
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &de):
		return "devig"
	case errors.As(err, &se):
		return "sizing"
	case errors.As(err, &me):
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "timeout"
		}
		return "simulation"
	default:
		return "internal"
	}
}

func statusFor(kind string) int {
	switch kind {
	case "parse", "devig", "sizing", "simulation":
		return http.StatusBadRequest
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondEngineError writes err with its kind; extra fields are merged in.
func respondEngineError(w http.ResponseWriter, err error, extra map[string]any) {
	kind := errorKind(err)
	body := map[string]any{
		"error": err.Error(),
		"kind":  kind,
	}
	for k, v := range extra {
		body[k] = v
	}
	respondJSON(w, statusFor(kind), body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
