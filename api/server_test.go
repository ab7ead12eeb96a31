package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/scores"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/session"
	ws "github.com/wricardo/mcp-training/memorygame/transport/websocket"
)

type testEnv struct {
	server   *Server
	sessions *session.Manager
	hub      *ws.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	configs, err := config.NewManager("../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	store := scores.NewMemoryStore()
	sessions := session.NewManager()
	sessions.SetEngineFactory(service.NewEngineFactory(store, hub,
		engine.WithScheduler(&engine.ManualScheduler{})))
	svc := service.NewGameService(sessions, configs,
		service.WithScoreStore(store), service.WithNotifier(hub))

	return &testEnv{server: NewServer(svc, hub), sessions: sessions, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) createSession(t *testing.T, body any) *service.SessionInfo {
	t.Helper()
	rec := e.do(t, "POST", "/api/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create session returned %d: %s", rec.Code, rec.Body.String())
	}
	return decode[*service.SessionInfo](t, rec)
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantConfig string
		wantState  engine.RoundState
	}{
		{"default", nil, http.StatusCreated, "classic", engine.Idle},
		{"config_id", map[string]string{"config_id": "speedy"}, http.StatusCreated, "speedy", engine.Idle},
		{"legacy config_name", map[string]string{"config_name": "lithuanian"}, http.StatusCreated, "lithuanian", engine.Idle},
		{"with difficulty", map[string]string{"difficulty": "hard"}, http.StatusCreated, "classic", engine.InProgress},
		{"unknown config", map[string]string{"config_id": "nope"}, http.StatusNotFound, "", ""},
		{"bad difficulty", map[string]string{"difficulty": "extreme"}, http.StatusBadRequest, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/sessions", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				resp := decode[map[string]string](t, rec)
				if resp["error"] == "" {
					t.Error("Expected error message in body")
				}
				return
			}
			info := decode[service.SessionInfo](t, rec)
			if info.ConfigName != tt.wantConfig {
				t.Errorf("Expected config %s, got %s", tt.wantConfig, info.ConfigName)
			}
			if info.Round.State != tt.wantState {
				t.Errorf("Expected state %s, got %s", tt.wantState, info.Round.State)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	a := env.createSession(t, nil)
	time.Sleep(2 * time.Millisecond)
	b := env.createSession(t, nil)

	rec := env.do(t, "GET", "/api/sessions?sort=created&order=asc&limit=1", nil)
	list := decode[struct {
		Count    int                   `json:"count"`
		Total    int                   `json:"total"`
		Sessions []service.SessionInfo `json:"sessions"`
	}](t, rec)
	if list.Count != 1 || list.Total != 2 || list.Sessions[0].ID != a.ID {
		t.Errorf("Unexpected listing %+v", list)
	}

	if rec := env.do(t, "GET", "/api/sessions/"+b.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("Get session returned %d", rec.Code)
	}
	if rec := env.do(t, "DELETE", "/api/sessions/"+b.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("Delete session returned %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/sessions/"+b.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Deleted session should be 404, got %d", rec.Code)
	}
	if rec := env.do(t, "DELETE", "/api/sessions/"+b.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Second delete should be 404, got %d", rec.Code)
	}
}

func TestPlayRoundToWin(t *testing.T) {
	env := newTestEnv(t)
	info := env.createSession(t, nil)
	base := "/api/sessions/" + info.ID

	rec := env.do(t, "POST", base+"/round/start", map[string]string{"difficulty": "easy"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Start returned %d: %s", rec.Code, rec.Body.String())
	}
	round := decode[service.RoundView](t, rec)
	if len(round.Cards) != 12 {
		t.Fatalf("Expected 12 cards, got %d", len(round.Cards))
	}
	if strings.Contains(rec.Body.String(), `"value"`) {
		t.Error("Face-down values must not be sent to clients")
	}

	sess, err := env.sessions.Get(info.ID)
	if err != nil {
		t.Fatal(err)
	}
	pairs := make(map[string][]string)
	for _, c := range sess.Engine.Round().Cards {
		pairs[c.Value] = append(pairs[c.Value], c.ID)
	}

	var last service.RevealView
	for _, ids := range pairs {
		for _, id := range ids {
			rec := env.do(t, "POST", base+"/round/reveal", map[string]string{"card_id": id})
			if rec.Code != http.StatusOK {
				t.Fatalf("Reveal returned %d: %s", rec.Code, rec.Body.String())
			}
			last = decode[service.RevealView](t, rec)
		}
	}
	if last.Outcome != engine.OutcomeWin || last.Win == nil || !last.Win.IsNewRecord {
		t.Fatalf("Expected winning reveal, got %+v", last)
	}

	rec = env.do(t, "GET", "/api/best-scores", nil)
	best := decode[struct {
		Scores  []engine.BestScore `json:"scores"`
		Display map[string]string  `json:"display"`
	}](t, rec)
	if best.Display["easy"] != "6 moves" || best.Display["hard"] != "—" {
		t.Errorf("Unexpected best scores %+v", best.Display)
	}

	rec = env.do(t, "POST", base+"/round/reveal", map[string]string{"card_id": round.Cards[0].ID})
	if got := decode[service.RevealView](t, rec); got.Outcome != engine.OutcomeIgnored {
		t.Errorf("Reveal after win should be ignored, got %s", got.Outcome)
	}

	rec = env.do(t, "POST", base+"/round/restart", nil)
	if got := decode[service.RoundView](t, rec); got.State != engine.Idle || len(got.Cards) != 0 {
		t.Errorf("Restart should clear the board, got %+v", got)
	}

	if rec := env.do(t, "DELETE", "/api/best-scores/easy", nil); rec.Code != http.StatusOK {
		t.Errorf("Reset best score returned %d", rec.Code)
	}
	if rec := env.do(t, "DELETE", "/api/best-scores/medium", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Unknown difficulty reset should be 400, got %d", rec.Code)
	}
}

func TestRoundErrors(t *testing.T) {
	env := newTestEnv(t)
	info := env.createSession(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{"missing session round", "GET", "/api/sessions/zzzz/round", nil, http.StatusNotFound},
		{"bad difficulty", "POST", "/api/sessions/" + info.ID + "/round/start", map[string]string{"difficulty": "x"}, http.StatusBadRequest},
		{"reveal without card", "POST", "/api/sessions/" + info.ID + "/round/reveal", map[string]string{}, http.StatusBadRequest},
		{"reveal while idle", "POST", "/api/sessions/" + info.ID + "/round/reveal", map[string]string{"card_id": "c0"}, http.StatusOK},
		{"wrong method", "GET", "/api/sessions/" + info.ID + "/round/start", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, tt.method, tt.path, tt.body); rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDashboardEndpoints(t *testing.T) {
	env := newTestEnv(t)
	info := env.createSession(t, nil)
	base := "/api/sessions/" + info.ID + "/dashboard"

	rec := env.do(t, "POST", base+"/commands", map[string]any{"action": "ignition", "on": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("Command returned %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[service.DashboardResult](t, rec)
	if res.Message != "Ignition ON" || !res.Snapshot.State.Ignition {
		t.Errorf("Unexpected command result %+v", res)
	}

	if rec := env.do(t, "POST", base+"/commands", map[string]any{"action": "warp"}); rec.Code != http.StatusBadRequest {
		t.Errorf("Unknown action should be 400, got %d", rec.Code)
	}
	if rec := env.do(t, "POST", base+"/commands", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("Missing action should be 400, got %d", rec.Code)
	}

	rec = env.do(t, "GET", base, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Get dashboard returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Ignition ON") {
		t.Errorf("Expected log line in snapshot: %s", rec.Body.String())
	}
}

func TestContactEndpoints(t *testing.T) {
	env := newTestEnv(t)
	form := map[string]string{
		"first_name": "Rūta",
		"last_name":  "Jonaitė",
		"email":      "ruta@example.lt",
		"address":    "Vilniaus g. 5",
		"q1":         "10",
		"q2":         "9",
		"q3":         "8",
		"phone":      "+37061234567",
	}

	rec := env.do(t, "POST", "/api/contact/validate", form)
	if v := decode[service.ContactValidation](t, rec); !v.Valid {
		t.Errorf("Expected valid form, got %+v", v.Errors)
	}

	rec = env.do(t, "POST", "/api/contact/submit", form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Submit returned %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Rūta Jonaitė: 9.0") {
		t.Errorf("Unexpected submission %s", rec.Body.String())
	}

	form["q2"] = "11"
	rec = env.do(t, "POST", "/api/contact/submit", form)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Invalid submit should be 422, got %d", rec.Code)
	}
	if v := decode[service.ContactValidation](t, rec); v.Valid || v.Errors["q2"] == "" {
		t.Errorf("Expected q2 error, got %+v", v)
	}

	rec = env.do(t, "GET", "/api/contact/phone?raw=8612", nil)
	if got := decode[map[string]string](t, rec); got["formatted"] != "+370 861 2" {
		t.Errorf("Unexpected formatted phone %q", got["formatted"])
	}
}

func TestConfigEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/configs", nil)
	list := decode[struct {
		Count   int                   `json:"count"`
		Configs []*service.ConfigInfo `json:"configs"`
	}](t, rec)
	if list.Count < 3 {
		t.Errorf("Expected at least 3 configs, got %d", list.Count)
	}

	if rec := env.do(t, "GET", "/api/configs/speedy", nil); rec.Code != http.StatusOK {
		t.Errorf("Get config returned %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/configs/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Missing config should be 404, got %d", rec.Code)
	}
	if rec := env.do(t, "POST", "/api/configs", map[string]string{"description": "no name"}); rec.Code != http.StatusBadRequest {
		t.Errorf("Nameless config should be 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("Unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebSocketPush(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server)
	defer srv.Close()
	info := env.createSession(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil); err == nil {
		t.Error("Expected dial without session to fail")
	}

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?session="+info.ID, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.CloseNow()

	var ev service.Event
	for _, want := range []string{service.EventRender, service.EventStatus} {
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if ev.Type != want {
			t.Errorf("Expected initial %s event, got %s", want, ev.Type)
		}
	}

	rec := env.do(t, "POST", "/api/sessions/"+info.ID+"/round/start", map[string]string{"difficulty": "hard"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Start returned %d", rec.Code)
	}

	var render struct {
		Type string             `json:"type"`
		Data service.RenderData `json:"data"`
	}
	if err := wsjson.Read(ctx, conn, &render); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if render.Type != service.EventRender || len(render.Data.Cards) != 24 || render.Data.Columns != 6 {
		t.Errorf("Unexpected render push %+v", render)
	}
	for _, c := range render.Data.Cards {
		if c.Value != "" {
			t.Fatalf("Pushed render leaked value of %s", c.ID)
		}
	}
}
