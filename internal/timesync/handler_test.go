package timesync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kreymann/resetwatch/internal/clock"
)

func TestServeTime(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewCorrected(clockwork.NewFakeClockAt(at))
	clk.SetOffset(1500 * time.Millisecond)
	h := NewHandler(clk)

	req := httptest.NewRequest(http.MethodGet, "/api/time", nil)
	rec := httptest.NewRecorder()
	h.ServeTime(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		ServerUnixMillis int64 `json:"server_unix_millis"`
		OffsetMillis     int64 `json:"offset_millis"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if want := at.UnixMilli() + 1500; resp.ServerUnixMillis != want {
		t.Fatalf("server time = %d, want %d", resp.ServerUnixMillis, want)
	}
	if resp.OffsetMillis != 1500 {
		t.Fatalf("offset = %d, want 1500", resp.OffsetMillis)
	}
}

func TestServeOffset(t *testing.T) {
	clk := clock.NewCorrected(clockwork.NewFakeClockAt(time.Now()))
	h := NewHandler(clk)

	req := httptest.NewRequest(http.MethodPost, "/api/time/offset",
		strings.NewReader(`{"offset_millis": -2500}`))
	rec := httptest.NewRecorder()
	h.ServeOffset(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := clk.Offset(); got != -2500*time.Millisecond {
		t.Fatalf("offset = %v, want -2.5s", got)
	}

	t.Run("rejects junk", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/time/offset", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		h.ServeOffset(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}
