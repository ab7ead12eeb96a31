package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"k8s.io/klog/v2"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Manager handles game session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	configs     service.ConfigManager
	factory     service.EngineFactory
	now         func() time.Time
	mu          sync.RWMutex
}

// NewManager creates a new in-memory session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*service.Session),
		factory:  service.DefaultEngineFactory,
		now:      time.Now,
	}
}

// NewManagerWithPersistence creates a new session manager with persistence.
// configs resolves the configuration of sessions loaded back from storage.
func NewManagerWithPersistence(persistence SessionPersistence, configs service.ConfigManager) *Manager {
	m := NewManager()
	m.persistence = persistence
	m.configs = configs
	return m
}

// SetEngineFactory replaces the engine factory used for new and restored sessions.
func (m *Manager) SetEngineFactory(f service.EngineFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f == nil {
		f = service.DefaultEngineFactory
	}
	m.factory = f
}

// Create creates a new session with the given ID and configuration
func (m *Manager) Create(id, configID string, config *engine.GameConfig) (*service.Session, error) {
	if id == "" {
		id = m.generateSessionID()
	} else if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	if config == nil {
		config = engine.DefaultConfig()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	eng, err := m.factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	now := m.now()
	session := &service.Session{
		ID:        id,
		ConfigID:  configID,
		Engine:    eng,
		Dashboard: dashboard.NewPanel(config.Dashboard),
		Config:    config,
		CreatedAt: now,
	}
	session.Touch(now)
	m.sessions[strings.ToLower(id)] = session

	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			klog.ErrorS(err, "Failed to persist session", "session", id)
		}
	}
	return session, nil
}

// Get retrieves a session by ID (case-insensitive), falling back to storage
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if exists {
		return session, nil
	}

	if m.persistence == nil || !m.persistence.Exists(id) {
		return nil, ErrSessionNotFound
	}
	data, err := m.persistence.Load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[strings.ToLower(id)]; ok {
		return existing, nil
	}
	session, err = m.restoreLocked(data)
	if err != nil {
		return nil, err
	}
	m.sessions[strings.ToLower(session.ID)] = session
	return session, nil
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id, configID string, config *engine.GameConfig) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, configID, config)
	}
	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// Delete removes a session from memory and storage
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	_, inMemory := m.sessions[key]
	delete(m.sessions, key)

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}
	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	if _, exists := m.sessions[key]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, key)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}
	session.Touch(m.now())
	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}
	return m.persistence.Save(session)
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the
// given duration. Stored copies are kept so they can be reloaded on demand.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for key, session := range m.sessions {
		if session.LastAccessedAt().Before(cutoff) {
			delete(m.sessions, key)
			removed++
		}
	}
	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists checks if a session exists (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

// restoreLocked rebuilds a live session from stored data. A missing or
// broken configuration falls back to the default one.
func (m *Manager) restoreLocked(data *PersistedSessionData) (*service.Session, error) {
	config := m.resolveConfig(data.ConfigName)

	eng, err := m.factory(data.ID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if data.Round != nil {
		if err := eng.Restore(data.Round); err != nil {
			return nil, fmt.Errorf("failed to restore round of session %s: %w", data.ID, err)
		}
	}

	panel := dashboard.NewPanel(config.Dashboard)
	if data.Dashboard != nil {
		panel = dashboard.RestorePanel(*data.Dashboard)
	}

	session := &service.Session{
		ID:        data.ID,
		ConfigID:  data.ConfigName,
		Engine:    eng,
		Dashboard: panel,
		Config:    config,
		CreatedAt: data.CreatedAt,
	}
	session.Touch(data.LastAccessedAt)
	return session, nil
}

func (m *Manager) resolveConfig(name string) *engine.GameConfig {
	if m.configs == nil {
		return engine.DefaultConfig()
	}
	if name != "" {
		config, err := m.configs.LoadConfig(name)
		if err == nil {
			return config
		}
		klog.V(1).InfoS("Stored session config unavailable, using default", "config", name, "err", err)
	}
	if config := m.configs.GetDefault(); config != nil {
		return config
	}
	return engine.DefaultConfig()
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		if _, exists := m.sessions[strings.ToLower(id)]; exists {
			continue
		}

		data, err := m.persistence.Load(id)
		if err != nil {
			klog.ErrorS(err, "Failed to load persisted session", "session", id)
			continue
		}
		session, err := m.restoreLocked(data)
		if err != nil {
			klog.ErrorS(err, "Failed to restore persisted session", "session", id)
			continue
		}

		m.sessions[strings.ToLower(session.ID)] = session
		loadedCount++
	}

	if loadedCount > 0 {
		klog.InfoS("Loaded persisted sessions", "count", loadedCount)
	}
	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	errorCount := 0
	for _, session := range m.List() {
		if err := m.persistence.Save(session); err != nil {
			klog.ErrorS(err, "Failed to save session", "session", session.ID)
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}
	return nil
}
