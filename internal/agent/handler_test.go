package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/trip-planner/internal/identity"
	"github.com/ashureev/trip-planner/internal/state"
	"github.com/ashureev/trip-planner/internal/store"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

func newTestServer(t *testing.T, proc Processor, rl *RateLimiter) *httptest.Server {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	h := newHarness(t, state.NewStore(), "", proc)
	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	NewHandler(HandlerConfig{Runtime: h.rt, RateLimiter: rl, IsDev: true}).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, srv *httptest.Server, sessionID, body string) (*http.Response, ChatResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/trip/chat", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(identity.SessionHeaderName, sessionID)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestHandleChat(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil, nil)

	resp, out := postChat(t, srv, "tab-1", `{"message": "Tokyo"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, out.Error)
	}
	if out.SessionID != "tab-1" || resp.Header.Get(identity.SessionHeaderName) != "tab-1" {
		t.Fatalf("unexpected session id %q", out.SessionID)
	}
	if out.Stage != state.StageHasDestinationNoVideos || !strings.Contains(out.Reply, "Great, Tokyo it is.") {
		t.Fatalf("unexpected turn result %+v", out.TurnResult)
	}
}

func TestHandleChatErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, stubProcessor{reply: "ok"}, nil)

	resp, out := postChat(t, srv, "tab-1", `{"message": ""}`)
	if resp.StatusCode != http.StatusBadRequest || out.Error != "message is required" {
		t.Fatalf("expected 400 for empty message, got %d %q", resp.StatusCode, out.Error)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/trip/chat", strings.NewReader("not json"))
	raw, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	_ = raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", raw.StatusCode)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, stubProcessor{reply: "ok"}, NewRateLimiter(1, time.Hour))

	// Replay the identity cookie so the second request comes from the same user.
	resp, _ := postChat(t, srv, "tab-1", `{"message": "hi"}`)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == identity.AnonCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected identity cookie")
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/trip/chat", strings.NewReader(`{"message": "again"}`))
	req.AddCookie(cookie)
	req.Header.Set(identity.SessionHeaderName, "tab-2")
	raw, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	_ = raw.Body.Close()
	if raw.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 across session ids, got %d", raw.StatusCode)
	}
}

func TestHandleWebSocket(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, stubProcessor{reply: "pong"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?session_id=ws-1"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	for i := 0; i < 2; i++ {
		if err := wsjson.Write(ctx, conn, ChatRequest{Message: "ping"}); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		var resp ChatResponse
		if err := wsjson.Read(ctx, conn, &resp); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if resp.Error != "" || resp.Reply != "pong" || resp.SessionID != "ws-1" {
			t.Fatalf("unexpected response %+v", resp)
		}
	}
}
