package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// StatusEvent is one log line pushed to console clients.
type StatusEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// StatusBroadcaster fans log lines out to the SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	now     func() time.Time
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
		now:     time.Now,
	}
}

// Subscribe returns a channel of JSON events and its cleanup function,
// which must be called when the client goes away.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends one event to every subscriber. A client whose buffer is
// full misses the event.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	data, err := json.Marshal(StatusEvent{
		Time:  b.now().Format("15:04:05.000"),
		Level: level,
		Msg:   msg,
	})
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// BroadcastWriter adapts b to an io.Writer for debug.SetOutput. The level
// of each line is taken from its debug tag.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, l := range strings.Split(string(p), "\n") {
		msg := strings.TrimSpace(l)
		if msg != "" {
			w.b.Broadcast(levelOf(msg), msg)
		}
	}
	return len(p), nil
}

var levelTags = []struct{ tag, level string }{
	{"[ERROR]", "error"},
	{"[LIVE]", "live"},
	{"[VERBOSE]", "verbose"},
	{"[TRACE]", "trace"},
	{"[GPIO]", "trace"},
}

func levelOf(msg string) string {
	for _, t := range levelTags {
		if strings.Contains(msg, t.tag) {
			return t.level
		}
	}
	return "info"
}
