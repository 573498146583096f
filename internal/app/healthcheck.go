package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/hcl/v2"
)

// buildStatus records the outcome of the last watch rebuild.
type buildStatus struct {
	mu     sync.RWMutex
	done   bool
	err    error
	errors int
	at     time.Time
}

func (s *buildStatus) set(res *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.err = err
	s.errors = 0
	s.at = time.Now()
	if res != nil {
		for _, d := range res.Diagnostics {
			if d.Severity == hcl.DiagError {
				s.errors++
			}
		}
	}
}

// healthHandler answers 200 while the last build succeeded and 503 before
// the first build or after a failed one.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)

	a.status.mu.RLock()
	defer a.status.mu.RUnlock()
	switch {
	case !a.status.done:
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "STARTING")
	case a.status.err != nil:
		w.WriteHeader(http.StatusServiceUnavailable)
		if a.status.errors > 0 {
			fmt.Fprintf(w, "FAILING: %s\n", plural(a.status.errors, "error"))
		} else {
			fmt.Fprintf(w, "FAILING: %v\n", a.status.err)
		}
	default:
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK %s\n", a.status.at.UTC().Format(time.RFC3339))
	}
}

// startHealthcheckServer runs the health check HTTP server in the background.
func (a *App) startHealthcheckServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
	return srv
}

func (a *App) closeHealthcheckServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.logger.Debug("Shutting down health check server...")
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("Health check server shutdown failed", "error", err)
	}
}
