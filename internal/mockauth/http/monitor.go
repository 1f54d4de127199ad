package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
)

// MonitorHandler serves canned fleet data. It exists so clients have a
// protected resource to call.
type MonitorHandler struct {
	Servers int
	Now     func() time.Time
}

// Dashboard serves GET /monitor/dashboard.
func (h *MonitorHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}

	online := h.Servers - h.Servers/5
	data := authsdk.DashboardData{
		Stats: authsdk.SystemStats{
			TotalServers:   h.Servers,
			OnlineServers:  online,
			OfflineServers: h.Servers - online,
			Timestamp:      now,
		},
		Alerts: []authsdk.Alert{
			{ID: 1, Level: "warning", Message: "disk usage above 80% on web-02", Time: now.Add(-5 * time.Minute)},
			{ID: 2, Level: "info", Message: "nightly backup finished", Time: now.Add(-2 * time.Hour)},
		},
		RecentActivities: []authsdk.Activity{
			{ID: 1, Type: "deploy", Description: "api v1.4.2 rolled out", Status: "success", Time: now.Add(-30 * time.Minute)},
			{ID: 2, Type: "task", Description: "log rotation", Status: "running", Time: now.Add(-1 * time.Minute)},
		},
	}

	httpx.WriteEnvelope(w, http.StatusOK, "ok", data)
}

// LivezHandler always answers 200 while the process runs.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
