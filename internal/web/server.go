package web

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Server is the operator console.
type Server struct {
	addr     string
	handlers *Handlers
	accessW  io.Writer
}

// NewServer creates a console on addr. Access logs go to accessLog; nil
// disables them. A nil broadcaster leaves out the log stream.
func NewServer(addr string, broadcaster *StatusBroadcaster, console *Console, source StatusSource, accessLog io.Writer) (*Server, error) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}
	return &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster, console, source, subFS),
		accessW:  accessLog,
	}, nil
}

// Router returns the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/start", s.handlers.HandleStart).Methods(http.MethodPost)
	r.HandleFunc("/go", s.handlers.HandleGo).Methods(http.MethodPost)
	r.HandleFunc("/status", s.handlers.HandleStatus).Methods(http.MethodGet)
	if s.handlers.Broadcaster != nil {
		r.HandleFunc("/status/stream", s.handlers.HandleStatusStream).Methods(http.MethodGet)
	}
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	r.HandleFunc("/", s.handlers.ServeIndex).Methods(http.MethodGet)

	return r
}

// Handler returns the router wrapped with the access log.
func (s *Server) Handler() http.Handler {
	if s.accessW == nil {
		return s.Router()
	}
	return handlers.LoggingHandler(s.accessW, s.Router())
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Console listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
