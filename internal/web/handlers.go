package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/logic/run"
)

// StatusSource reports the machine state. *run.Machine implements it.
type StatusSource interface {
	Status() run.Status
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster // nil when the log stream is off
	Console     *Console
	Source      StatusSource
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, console *Console, source StatusSource, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Console:     console,
		Source:      source,
		staticFS:    staticFS,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatus returns the machine snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Source.Status())
}

// HandleStart handles POST /start, the remote start-button press. It is
// only accepted while the robot is idle.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.request(w, run.Idle, "start", h.Console.RequestStart)
}

// HandleGo handles POST /go. It is only accepted while aligning.
func (h *Handlers) HandleGo(w http.ResponseWriter, r *http.Request) {
	h.request(w, run.Aligning, "go", h.Console.RequestGo)
}

func (h *Handlers) request(w http.ResponseWriter, want run.Phase, name string, queue func()) {
	st := h.Source.Status()
	if st.Phase != want.String() {
		http.Error(w, name+" not accepted while "+st.Phase, http.StatusConflict)
		return
	}
	queue()
	if h.Broadcaster != nil {
		h.Broadcaster.Broadcast("info", "Console: "+name+" requested")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "request": name})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
