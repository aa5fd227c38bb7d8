package controlplane

import (
	"encoding/json"
	"net/http"

	"artemis-core/internal/prefixtree"
)

// Handler returns an http.Handler exposing the six routes of spec §6.
func (c *ControlPlane) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/config", c.handleConfig)
	mux.HandleFunc("/control", c.handleControl)
	mux.HandleFunc("/health", c.handleHealth)
	mux.HandleFunc("/monitors", c.handleMonitors)
	mux.HandleFunc("/configuredPrefixCount", c.handleConfiguredPrefixCount)
	mux.HandleFunc("/monitoredPrefixes", c.handleMonitoredPrefixes)
	return mux
}

func (c *ControlPlane) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var doc prefixtree.ConfigDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, prefixtree.CompileResult{Success: false, Message: "malformed configuration document"})
		return
	}
	writeJSON(w, c.Configure(doc))
}

type controlRequest struct {
	Command string `json:"command"`
}

type controlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *ControlPlane) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, controlResponse{Success: false, Message: "malformed control request"})
		return
	}

	switch req.Command {
	case "start":
		writeJSON(w, controlResponse{Success: true, Message: c.Start()})
	case "stop":
		writeJSON(w, controlResponse{Success: true, Message: c.Stop()})
	default:
		writeJSON(w, controlResponse{Success: false, Message: "unknown command"})
	}
}

func (c *ControlPlane) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": string(c.Status())})
}

func (c *ControlPlane) handleMonitors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"monitors": c.reg.Monitors()})
}

func (c *ControlPlane) handleConfiguredPrefixCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"configured_prefix_count": c.reg.ConfiguredPrefixCount()})
}

func (c *ControlPlane) handleMonitoredPrefixes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{"monitored_prefixes": c.reg.MonitoredPrefixes()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
