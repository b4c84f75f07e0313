package timesync

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kreymann/resetwatch/internal/clock"
)

// Handler serves the time-sync handshake. The dashboard reads server time,
// computes its local offset, and may report it back so the engine's corrected
// clock matches what the browser shows.
type Handler struct {
	clk *clock.Corrected
}

func NewHandler(clk *clock.Corrected) *Handler {
	return &Handler{clk: clk}
}

type timeResponse struct {
	ServerUnixMillis int64 `json:"server_unix_millis"`
	OffsetMillis     int64 `json:"offset_millis"`
}

type offsetRequest struct {
	OffsetMillis int64 `json:"offset_millis"`
}

// ServeTime handles GET /api/time.
func (h *Handler) ServeTime(w http.ResponseWriter, r *http.Request) {
	resp := timeResponse{
		ServerUnixMillis: h.clk.Now().UnixMilli(),
		OffsetMillis:     h.clk.Offset().Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to write time response")
	}
}

// ServeOffset handles POST /api/time/offset.
func (h *Handler) ServeOffset(w http.ResponseWriter, r *http.Request) {
	var req offsetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	h.clk.SetOffset(time.Duration(req.OffsetMillis) * time.Millisecond)
	log.Info().Int64("offset_millis", req.OffsetMillis).Msg("clock offset updated")
	w.WriteHeader(http.StatusNoContent)
}
