package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/contact"
	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/transport/websocket"
	"k8s.io/klog/v2"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil, in which case /ws
// answers 503.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Rounds
	api.HandleFunc("/sessions/{id}/round", s.handleGetRound).Methods("GET")
	api.HandleFunc("/sessions/{id}/round/start", s.handleStartRound).Methods("POST")
	api.HandleFunc("/sessions/{id}/round/reveal", s.handleRevealCard).Methods("POST")
	api.HandleFunc("/sessions/{id}/round/restart", s.handleRestart).Methods("POST")

	// Best scores
	api.HandleFunc("/best-scores", s.handleBestScores).Methods("GET")
	api.HandleFunc("/best-scores/{difficulty}", s.handleResetBestScore).Methods("DELETE")

	// Dashboard
	api.HandleFunc("/sessions/{id}/dashboard", s.handleGetDashboard).Methods("GET")
	api.HandleFunc("/sessions/{id}/dashboard/commands", s.handleDashboardCommand).Methods("POST")

	// Contact form
	api.HandleFunc("/contact/validate", s.handleValidateContact).Methods("POST")
	api.HandleFunc("/contact/submit", s.handleSubmitContact).Methods("POST")
	api.HandleFunc("/contact/phone", s.handleFormatPhone).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Router exposes the underlying router so callers can mount extra handlers.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		klog.V(1).InfoS("Failed to write response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, config.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidDifficulty),
		errors.Is(err, service.ErrInvalidCommand),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrInvalidName):
		return http.StatusBadRequest
	}
	var fe contact.FieldErrors
	if errors.As(err, &fe) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeBody decodes an optional JSON body into v. An empty body is not an error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID   string `json:"config_id,omitempty"`
		ConfigName string `json:"config_name,omitempty"` // Deprecated, use config_id
		Difficulty string `json:"difficulty,omitempty"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	configID := req.ConfigID
	if configID == "" && req.ConfigName != "" {
		configID = req.ConfigName
	}

	session, err := s.service.CreateSession(r.Context(), configID, req.Difficulty)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if ti.Equal(tj) {
			return sessions[i].ID < sessions[j].ID
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Round Handlers

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.service.GetRound(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, round)
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Difficulty string `json:"difficulty"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = r.URL.Query().Get("difficulty")
	}

	round, err := s.service.StartRound(r.Context(), mux.Vars(r)["id"], req.Difficulty)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, round)
}

func (s *Server) handleRevealCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID string `json:"card_id"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.CardID == "" {
		respondError(w, http.StatusBadRequest, "card_id is required")
		return
	}

	res, err := s.service.RevealCard(r.Context(), mux.Vars(r)["id"], req.CardID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	round, err := s.service.Restart(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, round)
}

// Best Score Handlers

func (s *Server) handleBestScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.service.BestScores(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	display := make(map[string]string, len(scores))
	for _, b := range scores {
		display[string(b.Difficulty)] = b.String()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"scores":  scores,
		"display": display,
	})
}

func (s *Server) handleResetBestScore(w http.ResponseWriter, r *http.Request) {
	difficulty := mux.Vars(r)["difficulty"]
	if err := s.service.ResetBestScore(r.Context(), difficulty); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Best score for %s reset", strings.ToLower(difficulty)),
	})
}

// Dashboard Handlers

func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetDashboard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDashboardCommand(w http.ResponseWriter, r *http.Request) {
	var cmd dashboard.Command
	if err := decodeBody(w, r, &cmd); err != nil || cmd.Action == "" {
		respondError(w, http.StatusBadRequest, "action is required")
		return
	}

	res, err := s.service.DashboardCommand(r.Context(), mux.Vars(r)["id"], cmd)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Contact Handlers

func (s *Server) handleValidateContact(w http.ResponseWriter, r *http.Request) {
	var form contact.Form
	if err := decodeBody(w, r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, s.service.ValidateContact(r.Context(), form))
}

func (s *Server) handleSubmitContact(w http.ResponseWriter, r *http.Request) {
	var form contact.Form
	if err := decodeBody(w, r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := s.service.SubmitContact(r.Context(), form)
	if err != nil {
		var fe contact.FieldErrors
		if errors.As(err, &fe) {
			respondJSON(w, http.StatusUnprocessableEntity, service.ContactValidation{Valid: false, Errors: fe})
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleFormatPhone(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("raw")
	respondJSON(w, http.StatusOK, map[string]any{
		"formatted": contact.FormatPhone(raw),
		"error":     contact.ValidateField(contact.FieldPhone, raw),
	})
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(configs),
		"configs": configs,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.LoadConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id"`
		engine.GameConfig
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(req.Name), " ", "_"))
	}
	gameConfig := req.GameConfig
	if err := s.service.SaveConfig(r.Context(), configID, &gameConfig); err != nil {
		respondServiceError(w, fmt.Errorf("failed to save config: %w", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "websocket push disabled", http.StatusServiceUnavailable)
		return
	}

	round, err := s.service.GetRound(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	now := time.Now()
	s.hub.ServeWS(w, r, sessionID,
		service.Event{
			Type:      service.EventRender,
			SessionID: sessionID,
			Data:      service.RenderData{Cards: round.Cards, Columns: round.Columns},
			Timestamp: now,
		},
		service.Event{
			Type:      service.EventStatus,
			SessionID: sessionID,
			Data: engine.Status{
				MatchesFound: round.MatchesFound,
				PairCount:    round.PairCount,
				MovesMade:    round.MovesMade,
				Message:      round.Message,
			},
			Timestamp: now,
		},
	)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
