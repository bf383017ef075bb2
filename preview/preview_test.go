package preview_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uisynth/preview"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type frame struct {
	Type     string            `json:"type"`
	ID       string            `json:"id,omitempty"`
	Source   string            `json:"source,omitempty"`
	Valid    bool              `json:"valid,omitempty"`
	Artifact string            `json:"artifact,omitempty"`
	Progress *preview.Snapshot `json:"progress,omitempty"`
}

type fixture struct {
	hub *preview.Hub
	srv *httptest.Server
}

func newFixture(t *testing.T, options ...preview.HubOption) *fixture {
	t.Helper()
	hub := preview.NewHub(options...)
	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(preview.NewServer(hub, preview.WithGatherer(reg)).Handler())
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return &fixture{hub: hub, srv: srv}
}

// connect dials a previewer that handles frames with fn until the connection closes.
func (f *fixture) connect(t *testing.T, fn func(conn *websocket.Conn, in frame)) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	gt.NoError(t, err).Required()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var in frame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			fn(conn, in)
		}
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("previewer did not register")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRenderWithoutPreviewer(t *testing.T) {
	f := newFixture(t)
	res, err := f.hub.Render(t.Context(), "const x = 1;")
	gt.NoError(t, err).Required()
	gt.True(t, res.Unavailable)
	gt.Equal(t, res.String(), "preview unavailable")
	gt.Equal(t, f.hub.Latest(), "const x = 1;")
}

func TestRenderRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.connect(t, func(conn *websocket.Conn, in frame) {
		if in.Type != "render" {
			return
		}
		// an answer for some other request must be ignored
		_ = conn.WriteJSON(frame{Type: "rendered", ID: "unrelated", Valid: false})
		_ = conn.WriteJSON(frame{Type: "rendered", ID: in.ID, Valid: true, Artifact: "len=" + strconv.Itoa(len(in.Source))})
	})

	res, err := f.hub.Render(t.Context(), "abc")
	gt.NoError(t, err).Required()
	gt.False(t, res.Unavailable)
	gt.True(t, res.Valid)
	gt.Equal(t, res.Artifact, "len=3")
	gt.Equal(t, len(res.ID), 36)
}

func TestRenderTimeout(t *testing.T) {
	f := newFixture(t, preview.WithTimeout(50*time.Millisecond))
	f.connect(t, func(conn *websocket.Conn, in frame) {})

	start := time.Now()
	res, err := f.hub.Render(t.Context(), "abc")
	gt.NoError(t, err).Required()
	gt.True(t, res.Unavailable)
	gt.True(t, time.Since(start) < 2*time.Second)
}

func TestRenderCancelled(t *testing.T) {
	f := newFixture(t)
	f.connect(t, func(conn *websocket.Conn, in frame) {})

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()
	_, err := f.hub.Render(ctx, "abc")
	gt.Error(t, err)
}

func TestNotify(t *testing.T) {
	f := newFixture(t)
	got := make(chan *preview.Snapshot, 1)
	f.connect(t, func(conn *websocket.Conn, in frame) {
		if in.Type == "progress" {
			got <- in.Progress
		}
	})

	f.hub.Notify(t.Context(), &preview.Snapshot{Iteration: 4, Score: 0.25, LastAction: "submit"})

	select {
	case s := <-got:
		gt.Equal(t, s.Iteration, 4)
		gt.Equal(t, s.LastAction, "submit")
	case <-time.After(2 * time.Second):
		t.Fatal("progress not delivered")
	}
}

func TestServerRoutes(t *testing.T) {
	f := newFixture(t)
	_, _ = f.hub.Render(t.Context(), "function App() {}")

	get := func(path string) (int, string) {
		resp, err := http.Get(f.srv.URL + path)
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		gt.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/healthz")
	gt.Equal(t, code, http.StatusOK)
	var health map[string]any
	gt.NoError(t, json.Unmarshal([]byte(body), &health))
	gt.Equal(t, health["status"], any("ok"))

	code, body = get("/api/program")
	gt.Equal(t, code, http.StatusOK)
	gt.S(t, body).Contains("function App() {}")

	code, _ = get("/metrics")
	gt.Equal(t, code, http.StatusOK)
}

func TestNopRenderer(t *testing.T) {
	res, err := preview.NopRenderer{}.Render(t.Context(), "x")
	gt.NoError(t, err)
	gt.True(t, res.Unavailable)
}

func TestResultString(t *testing.T) {
	gt.Equal(t, (&preview.Result{Valid: true}).String(), "preview rendered")
	gt.Equal(t, (&preview.Result{Artifact: "TypeError: x is undefined"}).String(), "preview failed: TypeError: x is undefined")
}
