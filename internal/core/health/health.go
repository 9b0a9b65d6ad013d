// Package health implements the Admin/Ops Surface's (P) liveness and
// readiness probes.
package health

import (
	"encoding/json"
	"net/http"
)

// Liveness always reports the process is up; it never checks dependencies.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Pinger is a dependency readiness needs to confirm before declaring the
// service ready to receive traffic.
type Pinger interface {
	Ping() error
}

// Readiness reports ready only when every named dependency pings
// successfully — per §4.P, spatial store and cache reachability.
func Readiness(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		out := resp{Status: "ready", Checks: map[string]string{}}
		for name, p := range deps {
			if err := p.Ping(); err != nil {
				out.Status = "not_ready"
				out.Checks[name] = err.Error()
			} else {
				out.Checks[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
