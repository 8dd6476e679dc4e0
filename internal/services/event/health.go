package event

import (
	"encoding/json"
	"net/http"
	"time"
)

// Probe reports whether one dependency is usable. A nil Probe means the dependency is disabled.
type Probe func() bool

type healthHandler struct {
	mqtt   Probe
	influx Probe
	writer *Writer
}

func NewHealthHandler(mqtt, influx Probe, w *Writer) http.Handler {
	return &healthHandler{mqtt: mqtt, influx: influx, writer: w}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		MQTTConnected   *bool   `json:"mqtt_connected,omitempty"`
		InfluxOK        *bool   `json:"influx_ok,omitempty"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec,omitempty"`
	}
	st := status{Status: "ok"}
	degraded := false
	if h.mqtt != nil {
		ok := h.mqtt()
		st.MQTTConnected = &ok
		degraded = degraded || !ok
	}
	if h.influx != nil {
		ok := h.influx()
		st.InfluxOK = &ok
		degraded = degraded || !ok
	}
	if h.writer != nil {
		st.LastWriteErrorS = h.writer.LastErrorAge().Seconds()
		degraded = degraded || h.writer.LastErrorAge() < 30*time.Second
	}
	if degraded {
		st.Status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler answers 200 only when every enabled dependency is ok.
type readyHandler struct {
	mqtt     Probe
	influx   Probe
	writer   *Writer
	minError time.Duration
}

func NewReadyHandler(mqtt, influx Probe, w *Writer, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{mqtt: mqtt, influx: influx, writer: w, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := true
	if h.mqtt != nil && !h.mqtt() {
		ready = false
	}
	if h.influx != nil && !h.influx() {
		ready = false
	}
	if h.writer != nil && h.writer.LastErrorAge() <= h.minError {
		ready = false
	}
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}
