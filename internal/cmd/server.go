package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kreymann/resetwatch/internal/engine"
	"github.com/kreymann/resetwatch/internal/gateway"
	"github.com/kreymann/resetwatch/internal/timesync"
)

func setupServer(eng *engine.Engine, gw *gateway.Manager, ts *timesync.Handler, displayTZ string) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	mux.Handle("/ws", gw)
	mux.HandleFunc("GET /api/time", ts.ServeTime)
	mux.HandleFunc("POST /api/time/offset", ts.ServeOffset)
	mux.HandleFunc("GET /api/timers", handleTimers(eng, displayTZ))
	mux.HandleFunc("POST /api/recharge/sync", handleRechargeSync(eng))
	mux.HandleFunc("DELETE /api/recharge/sync", handleRechargeClear(eng))
	mux.HandleFunc("POST /api/spawns/toggle", handleSpawnToggle(eng))
	setupHealthCheck(mux)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func handleTimers(eng *engine.Engine, displayTZ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"timers":           eng.Snapshot(),
			"display_timezone": displayTZ,
		})
	}
}

func handleRechargeSync(eng *engine.Engine) http.HandlerFunc {
	type request struct {
		RemainingSeconds int64 `json:"remaining_seconds"`
		Persist          bool  `json:"persist"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.RemainingSeconds < 0 {
			http.Error(w, "remaining_seconds must be non-negative", http.StatusBadRequest)
			return
		}
		a, err := eng.ApplyRechargeSync(r.Context(), time.Duration(req.RemainingSeconds)*time.Second, req.Persist)
		if err != nil {
			// The in-memory anchor is set; only the write-through failed.
			log.Error().Err(err).Msg("recharge sync persistence failed")
		}
		writeJSON(w, map[string]any{"anchor": a.At})
	}
}

func handleRechargeClear(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := eng.ClearRechargeSync(r.Context()); err != nil {
			// The in-memory anchor is cleared; only the stored row remains.
			log.Error().Err(err).Msg("recharge anchor clear persistence failed")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSpawnToggle(eng *engine.Engine) http.HandlerFunc {
	type request struct {
		EntityID string `json:"entity_id"`
		Time     string `json:"time"`
		Enabled  bool   `json:"enabled"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if !eng.SetSpawnAlertEnabled(req.EntityID, req.Time, req.Enabled) {
			http.Error(w, "unknown spawn entity", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
