package scores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"k8s.io/klog/v2"
)

// FileStore keeps best scores in one JSON object on disk, e.g.
//
//	{"memory_best_easy": 9, "memory_best_hard": 31}
//
// Values that are not positive integers are treated as absent, matching
// how the browser build read localStorage.
type FileStore struct {
	mu   sync.Mutex
	path string
	best map[engine.Difficulty]int
}

// NewFileStore opens (or creates on first write) the JSON file at path.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("score file path is required")
	}
	fs := &FileStore{path: filepath.Clean(path), best: make(map[engine.Difficulty]int)}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create score directory: %w", err)
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read score file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse score file '%s': %w", fs.path, err)
	}
	for key, value := range raw {
		d, ok := parseKey(key)
		if !ok {
			continue
		}
		var moves int
		if err := json.Unmarshal(value, &moves); err != nil || moves <= 0 {
			klog.V(1).InfoS("Ignoring unusable best score", "key", key, "value", string(value))
			continue
		}
		fs.best[d] = moves
	}
	return nil
}

// flush writes the file atomically: temp file in the same directory, then rename.
func (fs *FileStore) flush() error {
	out := make(map[string]int, len(fs.best))
	for d, v := range fs.best {
		out[Key(d)] = v
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".scores-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp score file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write score file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write score file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("failed to replace score file: %w", err)
	}
	return nil
}

func (fs *FileStore) Get(ctx context.Context, d engine.Difficulty) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, ok := fs.best[d]
	return v, ok, nil
}

func (fs *FileStore) Set(ctx context.Context, d engine.Difficulty, moves int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkMoves(d, moves); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.putLocked(d, moves)
}

func (fs *FileStore) SetIfLower(ctx context.Context, d engine.Difficulty, moves int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := checkMoves(d, moves); err != nil {
		return false, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if prev, ok := fs.best[d]; ok && moves >= prev {
		return false, nil
	}
	if err := fs.putLocked(d, moves); err != nil {
		return false, err
	}
	return true, nil
}

// putLocked updates the map and the file, rolling the map back if the
// write fails.
func (fs *FileStore) putLocked(d engine.Difficulty, moves int) error {
	prev, had := fs.best[d]
	fs.best[d] = moves
	if err := fs.flush(); err != nil {
		if had {
			fs.best[d] = prev
		} else {
			delete(fs.best, d)
		}
		return err
	}
	return nil
}

func (fs *FileStore) All(ctx context.Context) (map[engine.Difficulty]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make(map[engine.Difficulty]int, len(fs.best))
	for d, v := range fs.best {
		out[d] = v
	}
	return out, nil
}

func (fs *FileStore) Reset(ctx context.Context, d engine.Difficulty) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.best[d]; !ok {
		return nil
	}
	delete(fs.best, d)
	return fs.flush()
}

func (fs *FileStore) Close() error { return nil }
