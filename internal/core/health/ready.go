package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessReporter is implemented by components the server waits on, such
// as the metadata invalidation consumer.
type ReadinessReporter interface {
	Ready() bool
}

// Readiness reports ready only when every named component is. A nil
// reporter is skipped.
func Readiness(components map[string]ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status  string   `json:"status"`
			Waiting []string `json:"waiting,omitempty"`
		}
		out := resp{Status: "ready"}
		for name, c := range components {
			if c != nil && !c.Ready() {
				out.Waiting = append(out.Waiting, name)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if len(out.Waiting) > 0 {
			out.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
