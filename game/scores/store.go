package scores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

const keyPrefix = "memory_best_"

var ErrUnknownBackend = errors.New("unknown score backend")

// Store is an engine.ScoreStore that owns a resource.
type Store interface {
	engine.ScoreStore
	// Set overwrites the best score for a difficulty.
	Set(ctx context.Context, d engine.Difficulty, moves int) error
	// All returns every recorded best keyed by difficulty.
	All(ctx context.Context) (map[engine.Difficulty]int, error)
	// Reset forgets the best score for a difficulty.
	Reset(ctx context.Context, d engine.Difficulty) error
	Close() error
}

// Key returns the storage key used for a difficulty.
func Key(d engine.Difficulty) string {
	return keyPrefix + string(d)
}

// parseKey is the inverse of Key.
func parseKey(key string) (engine.Difficulty, bool) {
	if !strings.HasPrefix(key, keyPrefix) {
		return "", false
	}
	d := engine.Difficulty(strings.TrimPrefix(key, keyPrefix))
	_, ok := engine.Layouts[d]
	return d, ok
}

// Open returns the store for backend. path is ignored by the memory backend.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func checkMoves(d engine.Difficulty, moves int) error {
	if _, ok := engine.Layouts[d]; !ok {
		return fmt.Errorf("%w: %q", engine.ErrInvalidDifficulty, d)
	}
	if moves <= 0 {
		return fmt.Errorf("moves must be positive, got %d", moves)
	}
	return nil
}

// MemoryStore keeps best scores in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	best map[engine.Difficulty]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{best: make(map[engine.Difficulty]int)}
}

func (m *MemoryStore) Get(ctx context.Context, d engine.Difficulty) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.best[d]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, d engine.Difficulty, moves int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkMoves(d, moves); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.best[d] = moves
	return nil
}

func (m *MemoryStore) SetIfLower(ctx context.Context, d engine.Difficulty, moves int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := checkMoves(d, moves); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.best[d]; ok && moves >= prev {
		return false, nil
	}
	m.best[d] = moves
	return true, nil
}

func (m *MemoryStore) All(ctx context.Context) (map[engine.Difficulty]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[engine.Difficulty]int, len(m.best))
	for d, v := range m.best {
		out[d] = v
	}
	return out, nil
}

func (m *MemoryStore) Reset(ctx context.Context, d engine.Difficulty) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.best, d)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
