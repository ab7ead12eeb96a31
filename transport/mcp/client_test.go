package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

func testRound() *service.RoundView {
	return &service.RoundView{
		Difficulty: engine.Easy,
		State:      engine.InProgress,
		PairCount:  6,
		Columns:    4,
		Rows:       3,
		Cards: []service.CardView{
			{ID: "c0", Value: "A", FaceUp: true},
			{ID: "c1"},
			{ID: "c2", Value: "B", Matched: true, FaceUp: true},
			{ID: "c3", Value: "B", Matched: true, FaceUp: true},
			{ID: "c4"}, {ID: "c5"}, {ID: "c6"}, {ID: "c7"},
			{ID: "c8"}, {ID: "c9"}, {ID: "c10"}, {ID: "c11"},
		},
		MatchesFound: 1,
		MovesMade:    3,
		Elapsed:      "00:07",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fakeAPI records the last request body per path.
type fakeAPI struct {
	bodies map[string]map[string]any
}

func newFakeAPI(t *testing.T) (*httptest.Server, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{bodies: map[string]map[string]any{}}
	mux := http.NewServeMux()

	record := func(r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		api.bodies[r.Method+" "+r.URL.Path] = body
	}

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		info := service.SessionInfo{ID: "ab12", ConfigName: "Classic", Round: &service.RoundView{State: engine.Idle}}
		if d, _ := api.bodies["POST /api/sessions"]["difficulty"].(string); d != "" {
			info.Round = testRound()
		}
		writeJSON(w, http.StatusCreated, info)
	})
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"count": 2,
			"sessions": []service.SessionInfo{
				{ID: "ab12", ConfigName: "Classic", CreatedAt: time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC), Round: testRound()},
				{ID: "cd34", ConfigName: "Speedy"},
			},
		})
	})
	mux.HandleFunc("GET /api/sessions/ab12", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, service.SessionInfo{
			ID:         "ab12",
			ConfigName: "Classic",
			Round:      testRound(),
			Dashboard:  &dashboard.State{Ignition: true, Running: true, RPM: 1200, Gear: dashboard.GearDrive},
		})
	})
	mux.HandleFunc("GET /api/sessions/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found: missing"})
	})
	mux.HandleFunc("DELETE /api/sessions/ab12", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Session ab12 deleted"})
	})
	mux.HandleFunc("POST /api/sessions/ab12/round/start", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if d, _ := api.bodies["POST /api/sessions/ab12/round/start"]["difficulty"].(string); d == "medium" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid difficulty: medium"})
			return
		}
		writeJSON(w, http.StatusOK, testRound())
	})
	mux.HandleFunc("POST /api/sessions/ab12/round/reveal", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		round := testRound()
		round.Cards[1] = service.CardView{ID: "c1", Value: "A", FaceUp: true, Matched: true}
		writeJSON(w, http.StatusOK, service.RevealView{Outcome: engine.OutcomeMatch, CardID: "c1", Round: round})
	})
	mux.HandleFunc("POST /api/sessions/ab12/round/restart", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, service.RoundView{State: engine.Idle, Elapsed: "00:00"})
	})
	mux.HandleFunc("GET /api/sessions/ab12/round", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, testRound())
	})
	mux.HandleFunc("GET /api/best-scores", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"scores": []engine.BestScore{
			{Difficulty: engine.Easy, Moves: 8, Recorded: true},
			{Difficulty: engine.Hard},
		}})
	})
	mux.HandleFunc("DELETE /api/best-scores/easy", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Best score for easy reset"})
	})
	mux.HandleFunc("POST /api/sessions/ab12/dashboard/commands", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		snap := dashboard.Snapshot{
			State:     dashboard.State{Ignition: true, Throttle: 40, Gear: dashboard.GearNeutral, Temp: 20},
			TargetRPM: 2800,
			Log:       []dashboard.LogLine{{At: time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC), Message: "Throttle 40%"}},
		}
		writeJSON(w, http.StatusOK, service.DashboardResult{Message: "Throttle 40%", Snapshot: &snap})
	})
	mux.HandleFunc("POST /api/contact/validate", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusOK, service.ContactValidation{Errors: map[string]string{"phone": "bad phone", "email": "bad email"}})
	})
	mux.HandleFunc("POST /api/contact/submit", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, service.ContactValidation{Errors: map[string]string{"q1": "out of range"}})
	})
	mux.HandleFunc("GET /api/configs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"configs": []service.ConfigInfo{
			{ConfigID: "classic", Name: "Classic", AlphabetSize: 12, MismatchDelayMS: 800, Description: "Letters"},
		}})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, api
}

func callTool(t *testing.T, c *Client, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("%s returned error: %v", name, err)
	}
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("%s returned empty result", name)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("%s content is %T, want mcp.TextContent", name, result.Content[0])
	}
	return text.Text, result.IsError
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server, _ := newFakeAPI(t)
	client := NewClient(server.URL)

	var round service.RoundView
	if err := client.apiCall(context.Background(), "GET", "/api/sessions/ab12/round", nil, &round); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if round.PairCount != 6 || len(round.Cards) != 12 {
		t.Errorf("Unexpected round: %+v", round)
	}
}

func TestClient_apiCall_Errors(t *testing.T) {
	server, _ := newFakeAPI(t)
	client := NewClient(server.URL)

	tests := []struct {
		name    string
		method  string
		path    string
		wantErr string
	}{
		{"error message", "GET", "/api/sessions/missing", "session not found: missing"},
		{"field errors", "POST", "/api/contact/submit", "q1: out of range"},
		{"bare status", "GET", "/nope", "API error: 404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.apiCall(context.Background(), tt.method, tt.path, nil, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	unreachable := NewClient("http://127.0.0.1:1")
	if err := unreachable.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestClient_SessionTools(t *testing.T) {
	server, api := newFakeAPI(t)
	client := NewClient(server.URL)

	text, isErr := callTool(t, client, client.handleCreateSession, "create_session", map[string]interface{}{
		"config_id":  "classic",
		"difficulty": "easy",
	})
	if isErr {
		t.Fatalf("create_session failed: %s", text)
	}
	if !strings.Contains(text, "Created session: ab12") || !strings.Contains(text, "Board:") {
		t.Errorf("Unexpected create_session output:\n%s", text)
	}
	if got := api.bodies["POST /api/sessions"]["config_id"]; got != "classic" {
		t.Errorf("Expected config_id forwarded, got %v", got)
	}

	text, _ = callTool(t, client, client.handleListSessions, "list_sessions", map[string]interface{}{})
	if !strings.Contains(text, "Active Sessions (2)") || !strings.Contains(text, "ab12 (Config: Classic, Round: in_progress") {
		t.Errorf("Unexpected list_sessions output:\n%s", text)
	}
	if !strings.Contains(text, "cd34 (Config: Speedy, Round: idle") {
		t.Errorf("Expected session without round reported idle:\n%s", text)
	}

	text, _ = callTool(t, client, client.handleGetSession, "get_session", map[string]interface{}{"session_id": "ab12"})
	if !strings.Contains(text, "Session: ab12") || !strings.Contains(text, "gear=D") {
		t.Errorf("Unexpected get_session output:\n%s", text)
	}

	text, isErr = callTool(t, client, client.handleGetSession, "get_session", map[string]interface{}{"session_id": "missing"})
	if !isErr || !strings.Contains(text, "session not found") {
		t.Errorf("Expected tool error for missing session, got %q", text)
	}

	text, isErr = callTool(t, client, client.handleGetSession, "get_session", map[string]interface{}{})
	if !isErr || text != "session_id is required" {
		t.Errorf("Expected session_id error, got %q", text)
	}

	text, _ = callTool(t, client, client.handleDeleteSession, "delete_session", map[string]interface{}{"session_id": "ab12"})
	if text != "Session ab12 deleted" {
		t.Errorf("Unexpected delete_session output: %q", text)
	}
}

func TestClient_RoundTools(t *testing.T) {
	server, api := newFakeAPI(t)
	client := NewClient(server.URL)

	text, isErr := callTool(t, client, client.handleStartRound, "start_round", map[string]interface{}{
		"session_id": "ab12",
		"difficulty": "easy",
	})
	if isErr {
		t.Fatalf("start_round failed: %s", text)
	}
	for _, want := range []string{"▶ IN PROGRESS", "Pairs: 1/6 | Moves: 3 | Time: 00:07", "[c0 A] [c1 ??] [c2 B✓] [c3 B✓]"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in start_round output:\n%s", want, text)
		}
	}
	if lines := strings.Count(text[strings.Index(text, "Board:"):], "\n"); lines != 4 {
		t.Errorf("Expected 3 board rows, got output:\n%s", text)
	}

	text, isErr = callTool(t, client, client.handleStartRound, "start_round", map[string]interface{}{
		"session_id": "ab12",
		"difficulty": "medium",
	})
	if !isErr || !strings.Contains(text, "invalid difficulty") {
		t.Errorf("Expected invalid difficulty error, got %q", text)
	}

	text, _ = callTool(t, client, client.handleRevealCard, "reveal_card", map[string]interface{}{
		"session_id": "ab12",
		"card_id":    "c1",
	})
	if !strings.Contains(text, "✓ Match! c1 = A") {
		t.Errorf("Unexpected reveal_card output:\n%s", text)
	}
	if got := api.bodies["POST /api/sessions/ab12/round/reveal"]["card_id"]; got != "c1" {
		t.Errorf("Expected card_id forwarded, got %v", got)
	}

	text, isErr = callTool(t, client, client.handleRevealCard, "reveal_card", map[string]interface{}{"session_id": "ab12"})
	if !isErr || text != "card_id is required" {
		t.Errorf("Expected card_id error, got %q", text)
	}

	text, _ = callTool(t, client, client.handleRestart, "restart_round", map[string]interface{}{"session_id": "ab12"})
	if !strings.Contains(text, "⏸ IDLE") {
		t.Errorf("Unexpected restart_round output:\n%s", text)
	}

	text, _ = callTool(t, client, client.handleRoundState, "round_state", map[string]interface{}{"session_id": "ab12"})
	if !strings.Contains(text, "Difficulty: easy") {
		t.Errorf("Unexpected round_state output:\n%s", text)
	}
}

func TestClient_BestScoreTools(t *testing.T) {
	server, _ := newFakeAPI(t)
	client := NewClient(server.URL)

	text, _ := callTool(t, client, client.handleBestScores, "best_scores", map[string]interface{}{})
	if !strings.Contains(text, "- easy: 8 moves") || !strings.Contains(text, "- hard: —") {
		t.Errorf("Unexpected best_scores output:\n%s", text)
	}

	text, _ = callTool(t, client, client.handleResetBestScore, "reset_best_score", map[string]interface{}{"difficulty": "easy"})
	if text != "Best score for easy reset" {
		t.Errorf("Unexpected reset_best_score output: %q", text)
	}

	_, isErr := callTool(t, client, client.handleResetBestScore, "reset_best_score", map[string]interface{}{})
	if !isErr {
		t.Error("Expected error without difficulty")
	}
}

func TestClient_DashboardCommand(t *testing.T) {
	server, api := newFakeAPI(t)
	client := NewClient(server.URL)

	text, isErr := callTool(t, client, client.handleDashboardCommand, "dashboard_command", map[string]interface{}{
		"session_id": "ab12",
		"action":     "throttle",
		"throttle":   float64(40),
	})
	if isErr {
		t.Fatalf("dashboard_command failed: %s", text)
	}
	body := api.bodies["POST /api/sessions/ab12/dashboard/commands"]
	if body["action"] != "throttle" || body["throttle"] != float64(40) {
		t.Errorf("Unexpected forwarded command: %v", body)
	}
	for _, want := range []string{"Ignition: ON | Engine: stopped | Gear: N", "target 2800", "10:30:00 Throttle 40%"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

func TestClient_ContactTools(t *testing.T) {
	server, api := newFakeAPI(t)
	client := NewClient(server.URL)

	text, _ := callTool(t, client, client.handleValidateContact, "validate_contact", map[string]interface{}{
		"first_name": "Rūta",
		"phone":      "861",
	})
	if !strings.HasPrefix(text, "✗ Invalid fields:\n- email: bad email\n- phone: bad phone") {
		t.Errorf("Expected sorted field errors, got:\n%s", text)
	}
	if got := api.bodies["POST /api/contact/validate"]["first_name"]; got != "Rūta" {
		t.Errorf("Expected first_name forwarded, got %v", got)
	}

	text, isErr := callTool(t, client, client.handleSubmitContact, "submit_contact", map[string]interface{}{})
	if !isErr || !strings.Contains(text, "q1: out of range") {
		t.Errorf("Expected field error from submit, got %q", text)
	}
}

func TestClient_ListConfigsAndInstructions(t *testing.T) {
	server, _ := newFakeAPI(t)
	client := NewClient(server.URL)

	text, _ := callTool(t, client, client.handleListConfigs, "list_configs", map[string]interface{}{})
	if !strings.Contains(text, "- classic: Classic (12 symbols, 800ms flip-back)") {
		t.Errorf("Unexpected list_configs output:\n%s", text)
	}

	text, _ = callTool(t, client, client.handleGameInstructions, "game_instructions", map[string]interface{}{})
	if !strings.Contains(text, "BEST SCORES") || !strings.Contains(text, "6 pairs on a 4x3 grid") {
		t.Errorf("Instructions missing sections:\n%s", text)
	}
}

func TestFormatReveal(t *testing.T) {
	best := 7
	tests := []struct {
		name string
		res  service.RevealView
		want []string
	}{
		{
			name: "ignored",
			res:  service.RevealView{Outcome: engine.OutcomeIgnored, Reason: "card already matched", CardID: "c2"},
			want: []string{"✗ Reveal ignored: card already matched"},
		},
		{
			name: "new record",
			res: service.RevealView{Outcome: engine.OutcomeWin, CardID: "c11",
				Win: &engine.WinReport{MovesMade: 6, Elapsed: "00:31", IsNewRecord: true}},
			want: []string{"🎉 Match! c11 - round won", "Moves: 6 | Time: 00:31", "🏆 New best score!"},
		},
		{
			name: "record stands",
			res: service.RevealView{Outcome: engine.OutcomeWin, CardID: "c11",
				Win: &engine.WinReport{MovesMade: 9, Elapsed: "00:40", PreviousBest: &best}},
			want: []string{"Best score stays at 7 moves"},
		},
		{
			name: "mismatch",
			res:  service.RevealView{Outcome: engine.OutcomeMismatch, CardID: "c4"},
			want: []string{"✗ No match: c4 - both cards will flip back"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatReveal(&tt.res)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Expected %q in:\n%s", w, got)
				}
			}
		})
	}
}

func TestFormatRound_Resolving(t *testing.T) {
	r := testRound()
	r.Resolving = true
	r.Message = "Not a pair"
	got := formatRound(r)
	if !strings.Contains(got, "reveals are ignored") || !strings.Contains(got, "Message: Not a pair") {
		t.Errorf("Unexpected round output:\n%s", got)
	}
}

func TestFormatRound_Won(t *testing.T) {
	r := testRound()
	r.State = engine.Won
	if got := formatRound(r); !strings.HasPrefix(got, "🎉 ALL PAIRS FOUND!") {
		t.Errorf("Unexpected banner:\n%s", got)
	}
}
