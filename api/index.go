package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/alfredjeanlab/kvcomments/internal/config"
	"github.com/alfredjeanlab/kvcomments/internal/server"
)

// defaultHandler is built on the first request so a cold start with a bad
// configuration still answers with an envelope instead of crashing.
var defaultHandler = sync.OnceValues(newHandler)

func newHandler() (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	app, err := server.NewApp(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return app.Handler(), nil
}

// Handler is the entry point for serverless Go runtimes.
func Handler(w http.ResponseWriter, r *http.Request) {
	serve(w, r, defaultHandler)
}

// serve runs the handler from build. When it cannot be built, preflights
// still get a 204 and every other request a 500 envelope, both with CORS
// headers.
func serve(w http.ResponseWriter, r *http.Request, build func() (http.Handler, error)) {
	h, err := build()
	if err != nil {
		slog.Error("comment service unavailable", "err", err)
		h = server.CORSMiddleware(fallbackOrigin(), unavailable(err))
	}
	h.ServeHTTP(w, r)
}

// fallbackOrigin is the CORS origin used when the configuration could not
// be loaded.
func fallbackOrigin() string {
	if o := os.Getenv("KVC_ALLOW_ORIGIN"); o != "" {
		return o
	}
	return "*"
}

func unavailable(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": http.StatusInternalServerError,
			"msg":  "comment service unavailable: " + err.Error(),
		})
	})
}
