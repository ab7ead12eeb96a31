package session

import (
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves the stored data of a session by ID
	Load(id string) (*PersistedSessionData, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions
type PersistedSessionData struct {
	ID             string           `json:"id"`
	ConfigName     string           `json:"config_name"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Round          *engine.Round    `json:"round"`
	Dashboard      *dashboard.State `json:"dashboard,omitempty"`
}

// snapshot captures the persistable parts of a session.
func snapshot(s *service.Session) PersistedSessionData {
	data := PersistedSessionData{
		ID:             s.ID,
		ConfigName:     s.ConfigID,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt(),
		Round:          s.Engine.Round(),
	}
	if data.ConfigName == "" && s.Config != nil {
		data.ConfigName = s.Config.Name
	}
	if s.Dashboard != nil {
		st := s.Dashboard.State()
		data.Dashboard = &st
	}
	return data
}
