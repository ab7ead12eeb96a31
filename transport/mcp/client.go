package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/memorygame/game/contact"
	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Memory Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Memory Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Find every pair of matching cards in as few moves as possible.

AVAILABLE TOOLS:
- create_session: Create new game session (optionally dealing a board)
- get_session / list_sessions / delete_session: Session management
- start_round: Deal a new board (easy 4x3, hard 6x4)
- reveal_card: Flip one card by id
- restart_round: Clear the board
- round_state: Show the current board
- best_scores / reset_best_score: Shared records per difficulty
- dashboard_state / dashboard_command: Toy engine dashboard
- validate_contact / submit_contact: Contact form
- list_configs: List available configurations
- game_instructions: Full rules`),
	)

	c.registerTools()
}

func sessionProp() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

func difficultyProp(desc string) map[string]any {
	return map[string]any{
		"type":        "string",
		"enum":        []string{string(engine.Easy), string(engine.Hard)},
		"description": desc,
	}
}

func noArgs() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}}
}

func contactSchema() mcp.ToolInputSchema {
	props := make(map[string]any, len(contact.Fields))
	for _, f := range contact.Fields {
		props[f] = map[string]any{"type": "string", "description": "Contact form field " + f}
	}
	return mcp.ToolInputSchema{Type: "object", Properties: props}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"config_id": map[string]any{
					"type":        "string",
					"description": "ID of the config to use (optional, see list_configs)",
				},
				"difficulty": difficultyProp("Deal a board of this difficulty straight away (optional)"),
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: noArgs(),
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleDeleteSession)

	// Rounds
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_round",
		Description: "Deal a new shuffled board. Starting while a round is running restarts it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"difficulty": difficultyProp("easy = 6 pairs on 4x3, hard = 12 pairs on 6x4"),
			},
			Required: []string{"session_id"},
		},
	}, c.handleStartRound)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reveal_card",
		Description: "Flip a face-down card. Every second card of a pair counts as one move.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"card_id": map[string]any{
					"type":        "string",
					"description": "Card id as shown by round_state, e.g. c7",
				},
			},
			Required: []string{"session_id", "card_id"},
		},
	}, c.handleRevealCard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "restart_round",
		Description: "Clear the board and stop the timer",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleRestart)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "round_state",
		Description: "Show the board, counters and timer of the current round",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleRoundState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "best_scores",
		Description: "Fewest moves recorded per difficulty",
		InputSchema: noArgs(),
	}, c.handleBestScores)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_best_score",
		Description: "Forget the record of a difficulty",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"difficulty": difficultyProp("Difficulty to reset")},
			Required:   []string{"difficulty"},
		},
	}, c.handleResetBestScore)

	// Dashboard
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "dashboard_state",
		Description: "Read the dashboard gauges and event log",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleDashboardState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "dashboard_command",
		Description: "Operate the dashboard: ignition, throttle, start, stop, estop or shift",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"action": map[string]any{
					"type": "string",
					"enum": []string{"ignition", "throttle", "start", "stop", "estop", "shift"},
				},
				"on": map[string]any{
					"type":        "boolean",
					"description": "Ignition on/off (action=ignition)",
				},
				"throttle": map[string]any{
					"type":        "integer",
					"description": "Throttle 0-100 (action=throttle)",
				},
				"gear": map[string]any{
					"type":        "string",
					"enum":        []string{"P", "R", "N", "D"},
					"description": "Target gear (action=shift)",
				},
			},
			Required: []string{"session_id", "action"},
		},
	}, c.handleDashboardCommand)

	// Contact form
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "validate_contact",
		Description: "Check the contact form field by field",
		InputSchema: contactSchema(),
	}, c.handleValidateContact)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "submit_contact",
		Description: "Submit the contact form and get the rating summary",
		InputSchema: contactSchema(),
	}, c.handleSubmitContact)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available game configurations",
		InputSchema: noArgs(),
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions and rules",
		InputSchema: noArgs(),
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string            `json:"error"`
			Errors map[string]string `json:"errors"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		if len(errResp.Errors) > 0 {
			return fmt.Errorf("%s", formatFieldErrors(errResp.Errors))
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// arguments returns the tool arguments as a map.
func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	return args
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func sessionPath(args map[string]any, suffix string) (string, error) {
	id := stringArg(args, "session_id")
	if id == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(id) + suffix, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := map[string]string{}
	if v := stringArg(args, "config_id"); v != "" {
		body["config_id"] = v
	} else if v := stringArg(args, "config_name"); v != "" {
		body["config_id"] = v
	}
	if v := stringArg(args, "difficulty"); v != "" {
		body["difficulty"] = v
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n", session.ID, session.ConfigName)
	if session.Round != nil && session.Round.State == engine.InProgress {
		result += "\n" + formatRound(session.Round)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		state := "idle"
		if s.Round != nil {
			state = string(s.Round.State)
		}
		fmt.Fprintf(&b, "- %s (Config: %s, Round: %s, Created: %s)\n",
			s.ID, s.ConfigName, state, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp map[string]string
	if err := c.apiCall(ctx, "DELETE", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(resp["message"]), nil
}

func (c *Client) handleStartRound(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/round/start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var round service.RoundView
	body := map[string]string{"difficulty": stringArg(args, "difficulty")}
	if err := c.apiCall(ctx, "POST", path, body, &round); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRound(&round)), nil
}

func (c *Client) handleRevealCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/round/reveal")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cardID := stringArg(args, "card_id")
	if cardID == "" {
		return mcp.NewToolResultError("card_id is required"), nil
	}

	var res service.RevealView
	if err := c.apiCall(ctx, "POST", path, map[string]string{"card_id": cardID}, &res); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatReveal(&res)), nil
}

func (c *Client) handleRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/round/restart")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var round service.RoundView
	if err := c.apiCall(ctx, "POST", path, nil, &round); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRound(&round)), nil
}

func (c *Client) handleRoundState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/round")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var round service.RoundView
	if err := c.apiCall(ctx, "GET", path, nil, &round); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRound(&round)), nil
}

func (c *Client) handleBestScores(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Scores []engine.BestScore `json:"scores"`
	}
	if err := c.apiCall(ctx, "GET", "/api/best-scores", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Best scores:\n")
	for _, s := range resp.Scores {
		fmt.Fprintf(&b, "- %s: %s\n", s.Difficulty, s.String())
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleResetBestScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d := stringArg(arguments(request), "difficulty")
	if d == "" {
		return mcp.NewToolResultError("difficulty is required"), nil
	}

	var resp map[string]string
	if err := c.apiCall(ctx, "DELETE", "/api/best-scores/"+url.PathEscape(d), nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(resp["message"]), nil
}

func (c *Client) handleDashboardState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/dashboard")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap dashboard.Snapshot
	if err := c.apiCall(ctx, "GET", path, nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatDashboard(&snap)), nil
}

func (c *Client) handleDashboardCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/dashboard/commands")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cmd := dashboard.Command{Action: stringArg(args, "action")}
	cmd.On, _ = args["on"].(bool)
	if v, ok := args["throttle"].(float64); ok {
		cmd.Throttle = int(v)
	}
	cmd.Gear = dashboard.Gear(stringArg(args, "gear"))

	var res service.DashboardResult
	if err := c.apiCall(ctx, "POST", path, cmd, &res); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := res.Message + "\n"
	if res.Snapshot != nil {
		out += "\n" + formatDashboard(res.Snapshot)
	}
	return mcp.NewToolResultText(out), nil
}

func contactForm(args map[string]any) contact.Form {
	return contact.Form{
		FirstName: stringArg(args, contact.FieldFirstName),
		LastName:  stringArg(args, contact.FieldLastName),
		Email:     stringArg(args, contact.FieldEmail),
		Address:   stringArg(args, contact.FieldAddress),
		Q1:        stringArg(args, contact.FieldQ1),
		Q2:        stringArg(args, contact.FieldQ2),
		Q3:        stringArg(args, contact.FieldQ3),
		Phone:     stringArg(args, contact.FieldPhone),
	}
}

func (c *Client) handleValidateContact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var v service.ContactValidation
	if err := c.apiCall(ctx, "POST", "/api/contact/validate", contactForm(arguments(request)), &v); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v.Valid {
		return mcp.NewToolResultText("✓ All fields are valid"), nil
	}
	return mcp.NewToolResultText("✗ Invalid fields:\n" + formatFieldErrors(v.Errors)), nil
}

func (c *Client) handleSubmitContact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sub contact.Submission
	if err := c.apiCall(ctx, "POST", "/api/contact/submit", contactForm(arguments(request)), &sub); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Submitted %s\n%s\nPhone: %s", sub.ID, sub.Summary, sub.Phone)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Configs []service.ConfigInfo `json:"configs"`
	}
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, cfg := range response.Configs {
		fmt.Fprintf(&b, "- %s: %s (%d symbols, %dms flip-back)\n  %s\n",
			cfg.ConfigID, cfg.Name, cfg.AlphabetSize, cfg.MismatchDelayMS, cfg.Description)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `🃏 Memory Game - Complete Instructions

GAME OBJECTIVE:
Turn over cards two at a time and find every matching pair.

BOARD:
- easy: 6 pairs on a 4x3 grid
- hard: 12 pairs on a 6x4 grid
- Cards are shuffled on every start_round
- Face-down cards are shown as ?? with their id; only their id is known

TURNS:
1. reveal_card a first card: it stays face up
2. reveal_card a second card: this completes one move
   - same symbol: both cards stay face up as a matched pair
   - different symbol: both flip back after a short delay (800ms by default)
3. While the mismatched pair is flipping back, reveals are ignored

IGNORED REVEALS:
- revealing a matched card or a card that is already face up
- revealing while no round is in progress
- revealing during the flip-back delay

TIMER:
- starts when the board is dealt and shows mm:ss
- stops when the last pair is found

BEST SCORES:
- the fewest moves per difficulty is kept across sessions
- a result only counts as a new record when it is strictly lower

STRATEGY:
- remember every symbol you have seen and its card id
- when the first card shows a symbol you have already seen, reveal its partner
- otherwise reveal an unseen card to learn more

DASHBOARD:
Each session also has a toy engine dashboard: switch the ignition on,
start the engine, set the throttle and shift between P, R, N and D. Shifting
is blocked above 3000 rpm; overheating and low oil pressure raise faults.

SESSION MANAGEMENT:
- Multiple game sessions can run simultaneously
- Each session has a unique 4-character ID

Good luck and sharp memory! 🧠`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	out := fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nLast accessed: %s\n",
		session.ID, session.ConfigName,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339))
	if session.Round != nil {
		out += "\n" + formatRound(session.Round)
	}
	if session.Dashboard != nil {
		d := session.Dashboard
		out += fmt.Sprintf("\nDashboard: ignition=%v running=%v rpm=%.0f gear=%s\n", d.Ignition, d.Running, d.RPM, d.Gear)
	}
	return out
}

func roundBanner(r *service.RoundView) string {
	switch r.State {
	case engine.Won:
		return "🎉 ALL PAIRS FOUND!"
	case engine.InProgress:
		return "▶ IN PROGRESS"
	default:
		return "⏸ IDLE"
	}
}

func formatRound(r *service.RoundView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", roundBanner(r))
	if r.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", r.Difficulty)
	}
	fmt.Fprintf(&b, "Pairs: %d/%d | Moves: %d | Time: %s\n", r.MatchesFound, r.PairCount, r.MovesMade, r.Elapsed)
	if r.Resolving {
		b.WriteString("(mismatched pair is flipping back - reveals are ignored)\n")
	}
	if r.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", r.Message)
	}
	if len(r.Cards) > 0 {
		b.WriteString("\nBoard:\n")
		b.WriteString(formatBoard(r.Cards, r.Columns))
	}
	return b.String()
}

func formatBoard(cards []service.CardView, columns int) string {
	if columns <= 0 {
		columns = len(cards)
	}
	var b strings.Builder
	for i, card := range cards {
		if i > 0 && i%columns == 0 {
			b.WriteString("\n")
		}
		if i%columns != 0 {
			b.WriteString(" ")
		}
		b.WriteString(formatCard(card))
	}
	b.WriteString("\n")
	return b.String()
}

func formatCard(card service.CardView) string {
	switch {
	case card.Matched:
		return fmt.Sprintf("[%s %s✓]", card.ID, card.Value)
	case card.FaceUp:
		return fmt.Sprintf("[%s %s]", card.ID, card.Value)
	default:
		return fmt.Sprintf("[%s ??]", card.ID)
	}
}

func formatReveal(res *service.RevealView) string {
	var b strings.Builder
	switch res.Outcome {
	case engine.OutcomeIgnored:
		fmt.Fprintf(&b, "✗ Reveal ignored: %s\n", res.Reason)
	case engine.OutcomeFirst:
		fmt.Fprintf(&b, "✓ Revealed %s%s\n", res.CardID, cardValue(res))
	case engine.OutcomeMatch:
		fmt.Fprintf(&b, "✓ Match! %s%s\n", res.CardID, cardValue(res))
	case engine.OutcomeMismatch:
		fmt.Fprintf(&b, "✗ No match: %s%s - both cards will flip back\n", res.CardID, cardValue(res))
	case engine.OutcomeWin:
		fmt.Fprintf(&b, "🎉 Match! %s%s - round won\n", res.CardID, cardValue(res))
	}
	if w := res.Win; w != nil {
		fmt.Fprintf(&b, "Moves: %d | Time: %s\n", w.MovesMade, w.Elapsed)
		if w.IsNewRecord {
			b.WriteString("🏆 New best score!\n")
		} else if w.PreviousBest != nil {
			fmt.Fprintf(&b, "Best score stays at %d moves\n", *w.PreviousBest)
		}
	}
	if res.Round != nil {
		b.WriteString("\n")
		b.WriteString(formatRound(res.Round))
	}
	return b.String()
}

func cardValue(res *service.RevealView) string {
	if res.Round == nil {
		return ""
	}
	for _, c := range res.Round.Cards {
		if c.ID == res.CardID && c.Value != "" {
			return " = " + c.Value
		}
	}
	return ""
}

func formatDashboard(snap *dashboard.Snapshot) string {
	s := snap.State
	var b strings.Builder
	fmt.Fprintf(&b, "Ignition: %s | Engine: %s | Gear: %s\n", onOff(s.Ignition), runningText(s.Running), s.Gear)
	fmt.Fprintf(&b, "RPM: %.0f (target %.0f) | Throttle: %d%%\n", s.RPM, snap.TargetRPM, s.Throttle)
	fmt.Fprintf(&b, "Temp: %.1f°C | Oil: %.2f bar\n", s.Temp, s.Oil)
	if s.Fault != dashboard.FaultNone {
		fmt.Fprintf(&b, "⚠ Fault: %s\n", s.Fault)
	}
	if len(snap.Log) > 0 {
		b.WriteString("\nLog (newest first):\n")
		for _, l := range snap.Log {
			fmt.Fprintf(&b, "  %s %s\n", l.At.Format("15:04:05"), l.Message)
		}
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func runningText(v bool) string {
	if v {
		return "running"
	}
	return "stopped"
}

func formatFieldErrors(errs map[string]string) string {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s: %s\n", f, errs[f])
	}
	return b.String()
}
