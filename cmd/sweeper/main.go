package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/giftlist/backend/internal/app"
	"github.com/giftlist/backend/internal/config"
	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/services"
)

// The sweeper runs as a scheduler target: each POST /sweep removes the
// participants and gifts left behind by failed cascades.
func main() {
	logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("[Sweeper] invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	ctx := context.Background()
	fbApp, err := app.NewFirebaseApp(ctx, cfg)
	if err != nil {
		slog.Error("[Sweeper] firebase init failed", logging.Err(err))
		os.Exit(1)
	}
	store, err := app.OpenStore(ctx, cfg, fbApp)
	if err != nil {
		slog.Error("[Sweeper] store init failed", "driver", cfg.StoreDriver, logging.Err(err))
		os.Exit(1)
	}
	defer store.Close(ctx)

	sweeper := services.NewSweeper(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/sweep", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			slog.Warn("[Sweeper] rejected non-POST", "method", r.Method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		sweepCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		report, err := sweeper.Sweep(sweepCtx)
		if err != nil {
			slog.Error("[Sweeper] sweep failed", logging.Err(err))
			// Non-2xx lets the scheduler retry.
			http.Error(w, "sweep failed", http.StatusInternalServerError)
			return
		}
		slog.Info("[Sweeper] done", "participants", report.Participants, "gifts", report.Gifts)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	})

	addr := ":" + getEnv("PORT", "8080")
	slog.Info("[Sweeper] listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("[Sweeper] listen failed", logging.Err(err))
		os.Exit(1)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
