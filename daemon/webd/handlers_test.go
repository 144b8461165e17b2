package webd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotblauer/catmotion/common"
	"github.com/tidwall/gjson"
)

var t0 = time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC)

func walkingSamplesNDJSON(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		ts := t0.Add(time.Duration(i) * 10 * time.Second).UnixMilli()
		fmt.Fprintf(&sb, `{"latitude":45,"longitude":-93,"timestamp":%d,"speed":0.5}`+"\n", ts)
	}
	return sb.String()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://catsonmaps.org"+target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func stopDaemon(t *testing.T, d *WebDaemon) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Error(err)
	}
}

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://catsonmaps.org/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func TestWebDaemon_statusReport(t *testing.T) {
	req := httptest.NewRequest("GET", "http://catsonmaps.org/status", nil)
	w := httptest.NewRecorder()
	d, teardown := newTestWebDaemon(t, "")
	defer teardown()
	d.statusReport(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	status := webDaemonStatus{}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if status.Uptime == "" {
		t.Fatal("uptime is empty")
	}
	if status.Tracking {
		t.Error("tracking before start")
	}
}

func TestWebDaemon_tracking(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d, teardown := newTestWebDaemon(t, "")
	defer teardown()
	router := d.NewRouter()
	defer stopDaemon(t, d)

	resp, _ := do(t, router, http.MethodPost, "/samples", walkingSamplesNDJSON(1))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("samples before start: have %d want %d", resp.StatusCode, http.StatusConflict)
	}

	resp, _ = do(t, router, http.MethodPost, "/tracking/start", `{"foreground":true,"background":false}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("start without background: have %d want %d", resp.StatusCode, http.StatusForbidden)
	}

	resp, body := do(t, router, http.MethodPost, "/tracking/start", `{"foreground":true,"background":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: have %d: %s", resp.StatusCode, body)
	}
	if !gjson.GetBytes(body, "tracking").Bool() {
		t.Errorf("not tracking: %s", body)
	}
	if have := gjson.GetBytes(body, "delivery.config.state").String(); have != "FAST_MOVING" {
		t.Errorf("have %s want FAST_MOVING", have)
	}

	resp, body = do(t, router, http.MethodPost, "/samples", walkingSamplesNDJSON(3))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("samples: have %d: %s", resp.StatusCode, body)
	}
	if have := gjson.GetBytes(body, "state").String(); have != "SLOW_MOVING" {
		t.Errorf("have %s want SLOW_MOVING", have)
	}

	_, body = do(t, router, http.MethodGet, "/delivery", "")
	if have := gjson.GetBytes(body, "config.state").String(); have != "SLOW_MOVING" {
		t.Errorf("delivery: have %s want SLOW_MOVING", have)
	}
	_, body = do(t, router, http.MethodGet, "/movement", "")
	if have := gjson.GetBytes(body, "state").String(); have != "SLOW_MOVING" {
		t.Errorf("movement: have %s want SLOW_MOVING", have)
	}

	_, body = do(t, router, http.MethodGet, "/locations/recent?limit=2", "")
	if have := len(gjson.ParseBytes(body).Array()); have != 2 {
		t.Errorf("recent: have %d want 2", have)
	}
	resp, body = do(t, router, http.MethodGet, "/locations/recent?limit=0&stream=true", "")
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type: %s", ct)
	}
	if have := len(strings.Split(strings.TrimSpace(string(body)), "\n")); have != 3 {
		t.Errorf("recent stream: have %d want 3", have)
	}

	resp, _ = do(t, router, http.MethodGet, "/visits/current", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("current visit: have %d want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp, body = do(t, router, http.MethodPost, "/tracking/stop", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: have %d: %s", resp.StatusCode, body)
	}
	if gjson.GetBytes(body, "tracking").Bool() {
		t.Errorf("still tracking: %s", body)
	}
}

func TestWebDaemon_token(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d, teardown := newTestWebDaemon(t, "")
	defer teardown()
	d.Config.Token = "secret"
	router := d.NewRouter()
	defer stopDaemon(t, d)

	resp, _ := do(t, router, http.MethodPost, "/tracking/stop", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("no token: have %d want %d", resp.StatusCode, http.StatusForbidden)
	}
	resp, _ = do(t, router, http.MethodPost, "/tracking/stop?api_token=secret", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("query token: have %d want %d", resp.StatusCode, http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodPost, "http://catsonmaps.org/tracking/stop", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("bearer token: have %d want %d", w.Code, http.StatusOK)
	}

	// Read-only routes are open.
	resp, _ = do(t, router, http.MethodGet, "/movement", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("movement: have %d want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestWebDaemon_samplesMalformed(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d, teardown := newTestWebDaemon(t, "")
	defer teardown()
	router := d.NewRouter()
	defer stopDaemon(t, d)

	for _, body := range []string{"malformed", `{"latitude":91,"longitude":0,"timestamp":1}`, ""} {
		resp, _ := do(t, router, http.MethodPost, "/samples", body)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("%q: have %d want %d", body, resp.StatusCode, http.StatusUnprocessableEntity)
		}
	}
}
