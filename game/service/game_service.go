package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/contact"
	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidCommand  = errors.New("invalid dashboard command")
	ErrConfigNotFound  = errors.New("configuration not found")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName, difficulty string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Rounds
	StartRound(ctx context.Context, sessionID, difficulty string) (*RoundView, error)
	RevealCard(ctx context.Context, sessionID, cardID string) (*RevealView, error)
	Restart(ctx context.Context, sessionID string) (*RoundView, error)
	GetRound(ctx context.Context, sessionID string) (*RoundView, error)
	BestScores(ctx context.Context) ([]engine.BestScore, error)
	ResetBestScore(ctx context.Context, difficulty string) error

	// Periodic drivers
	TickAll(ctx context.Context) int
	StepDashboards(ctx context.Context, dt float64) int

	// Dashboard
	DashboardCommand(ctx context.Context, sessionID string, cmd dashboard.Command) (*DashboardResult, error)
	GetDashboard(ctx context.Context, sessionID string) (*dashboard.Snapshot, error)

	// Contact form
	ValidateContact(ctx context.Context, form contact.Form) *ContactValidation
	SubmitContact(ctx context.Context, form contact.Form) (*contact.Submission, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// BestScoreResetter is implemented by score stores that can forget a record.
type BestScoreResetter interface {
	Reset(ctx context.Context, d engine.Difficulty) error
}

// Session represents an active game session
type Session struct {
	ID        string
	ConfigID  string
	Engine    *engine.GameEngine
	Dashboard *dashboard.Panel
	Config    *engine.GameConfig
	CreatedAt time.Time

	mu           sync.Mutex
	lastAccessed time.Time
}

// Touch records an access.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = t
}

// LastAccessedAt returns the time of the last access.
func (s *Session) LastAccessedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}
