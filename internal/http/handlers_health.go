package httpx

import (
	"net/http"
)

// ConfigReport lists configuration problems by variable name only.
type ConfigReport struct {
	Missing []string `json:"missing"`
	Invalid []string `json:"invalid"`
}

// Complete reports whether nothing is missing or invalid.
func (c ConfigReport) Complete() bool {
	return len(c.Missing) == 0 && len(c.Invalid) == 0
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthHandlers serves liveness and the configuration report.
type HealthHandlers struct {
	Config ConfigReport
}

// Health returns {"status":"ok"}, or "degraded" when configuration is incomplete.
// The status code is 200 either way so the process is not restarted for a config gap.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.Config.Complete() {
		status = "degraded"
	}
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, healthResponse{Status: status})
}

// ConfigCheck handles GET /api/admin/config-check. The gate and route wiring
// require a session holding CONFIG:READ before this runs.
func (h *HealthHandlers) ConfigCheck(w http.ResponseWriter, r *http.Request) {
	report := h.Config
	if report.Missing == nil {
		report.Missing = []string{}
	}
	if report.Invalid == nil {
		report.Invalid = []string{}
	}
	WriteOK(w, r, map[string]any{
		"complete": h.Config.Complete(),
		"missing":  report.Missing,
		"invalid":  report.Invalid,
	})
}
