package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"connectorctl/pkg/logging"
)

const readHeaderTimeout = 5 * time.Second

// StartServer serves handler on addr under /metrics until ctx is done.
// An empty addr, or "off", returns a nil server.
func StartServer(ctx context.Context, addr string, handler http.Handler) (*http.Server, <-chan error) {
	addr = strings.TrimSpace(addr)
	switch strings.ToLower(addr) {
	case "", "off", "disabled", "false":
		return nil, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Metrics", "Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv, errCh
}
