// Package server provides the development HTTP server. It serves the
// compiled output directory with caching disabled so the live-reload poller
// always observes fresh Last-Modified headers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/conneroisu/hpy/internal/logging"
)

// DevServer serves a built site directory during development.
type DevServer struct {
	root string
	host string
	port int
	log  logging.Logger

	server *http.Server
}

// New creates a development server over the given output directory.
func New(root, host string, port int, log logging.Logger) *DevServer {
	if log == nil {
		log = logging.NopLogger()
	}
	return &DevServer{
		root: root,
		host: host,
		port: port,
		log:  log.WithComponent("server"),
	}
}

// URL returns the address clients should open.
func (s *DevServer) URL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)))
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *DevServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", noStore(http.FileServer(http.Dir(s.root))))

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)),
		Handler:           logRequests(s.log, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.server.Addr, err)
	}

	s.log.Info(ctx, "serving", "root", s.root, "url", s.URL())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// noStore disables client and proxy caching on every response. Served pages
// change on each rebuild and the reload poller depends on uncached
// Last-Modified values for the trigger file.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

func logRequests(log logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The reload poller fires every 1.5s; logging it would drown
		// everything else.
		if !strings.HasPrefix(r.URL.Path, "/.hpy_reload") {
			log.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

// OpenBrowser opens url in the platform browser, best effort.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
