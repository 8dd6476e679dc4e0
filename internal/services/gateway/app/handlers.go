package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/settings"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Router mounts the dashboard API, the websocket feed and the operational endpoints.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", g.HandleReady)
	if g.cfg.Metrics != nil {
		r.Handle("/metrics", g.cfg.Metrics.Handler())
	}
	r.Get("/ws", g.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sensors", g.HandleSensors)
		r.Post("/device/connect", g.HandleConnect)
		r.Post("/device/disconnect", g.HandleDisconnect)
		r.Post("/session/reset", g.HandleReset)
		r.Get("/settings", g.HandleGetSettings)
		r.Patch("/settings", g.HandlePatchSettings)
		r.Get("/alerts", g.HandleAlerts)
		r.Get("/history/{kind}", func(w http.ResponseWriter, r *http.Request) {
			g.handleHistory(w, r, chi.URLParam(r, "kind"))
		})
		r.Get("/history/{kind}/export", func(w http.ResponseWriter, r *http.Request) {
			g.handleExport(w, r, chi.URLParam(r, "kind"))
		})
	})
	return r
}

func (g *Gateway) HandleReady(w http.ResponseWriter, _ *http.Request) {
	status := map[string]bool{}
	ready := true
	for name, probe := range g.deps.Probes {
		ok := probe()
		status[name] = ok
		ready = ready && ok
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{"ready": ready, "checks": status})
}

func (g *Gateway) HandleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.sensors())
}

func (g *Gateway) HandleConnect(w http.ResponseWriter, _ *http.Request) {
	changed := g.deps.Telemetry.Connect(g.cfg.LoopContext)
	writeJSON(w, http.StatusOK, DeviceResponse{Connected: g.deps.Telemetry.Connected(), Changed: changed})
}

func (g *Gateway) HandleDisconnect(w http.ResponseWriter, _ *http.Request) {
	changed := g.deps.Telemetry.Disconnect()
	writeJSON(w, http.StatusOK, DeviceResponse{Connected: g.deps.Telemetry.Connected(), Changed: changed})
}

func (g *Gateway) HandleReset(w http.ResponseWriter, _ *http.Request) {
	g.deps.Telemetry.Reset()
	writeJSON(w, http.StatusOK, g.sensors())
}

func (g *Gateway) HandleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.deps.Settings.Get())
}

func (g *Gateway) HandlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch entities.SettingsPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := g.deps.Settings.Update(r.Context(), patch)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidPatch) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// persisted copy is stale but the live record changed
		g.logger.Warn("gateway: settings not persisted", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, updated)
}

func (g *Gateway) HandleAlerts(w http.ResponseWriter, _ *http.Request) {
	keys := g.deps.Alerts.Notified()
	active := make([]string, 0, len(keys))
	for _, k := range keys {
		active = append(active, k.String())
	}
	writeJSON(w, http.StatusOK, AlertsResponse{Active: active, Recent: g.deps.Alerts.Recent()})
}

// HandleWebSocket upgrades, sends the current snapshot, then hands the client to the hub.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if g.deps.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live feed disabled")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}
	client := NewClient(g.deps.Hub, conn, g.logger)
	if b, err := json.Marshal(Envelope{Type: MessageSnapshot, Data: g.sensors()}); err == nil {
		client.Send <- b
	}
	g.deps.Hub.RegisterClient(client)

	go client.WritePump()
	go client.ReadPump()
}

func statusFor(err error) int {
	if errors.Is(err, entities.ErrUnknownKind) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
