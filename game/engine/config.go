package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
)

var (
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// DefaultAlphabet is the stock dataset of 12 unique symbols.
var DefaultAlphabet = []string{
	"🍎", "🚗", "🐶", "⚽️", "🎵", "🌟", "🍕", "📚", "🎲", "🌈", "🛩️", "🍀",
}

// Messages holds the user-facing texts of a config.
type Messages struct {
	Welcome   string `json:"welcome"`
	Status    string `json:"status"`     // %d matches, %d pairs, %d moves
	Won       string `json:"won"`        // shown when all pairs are found
	NewRecord string `json:"new_record"` // %d moves
	Restart   string `json:"restart"`
}

// GameConfig represents a named game configuration loaded from JSON.
type GameConfig struct {
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Alphabet        []string         `json:"alphabet"`
	MismatchDelayMS int              `json:"mismatch_delay_ms"`
	Messages        Messages         `json:"messages"`
	Dashboard       dashboard.Tuning `json:"dashboard"`
}

// MismatchDelay returns the flip-back delay for mismatched pairs.
func (c *GameConfig) MismatchDelay() time.Duration {
	if c == nil || c.MismatchDelayMS <= 0 {
		return DefaultMismatchMS * time.Millisecond
	}
	return time.Duration(c.MismatchDelayMS) * time.Millisecond
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *GameConfig {
	return &GameConfig{
		Name:            "classic",
		Description:     "Classic emoji memory game",
		Alphabet:        append([]string(nil), DefaultAlphabet...),
		MismatchDelayMS: DefaultMismatchMS,
		Messages: Messages{
			Welcome:   "Press start to deal a new board.",
			Status:    "Pairs found: %d / %d - Moves: %d",
			Won:       "Congratulations - all pairs found!",
			NewRecord: "New best score: %d moves",
			Restart:   "Board cleared. Press start to play again.",
		},
		Dashboard: dashboard.DefaultTuning(),
	}
}

// ApplyDefaults fills fields left out of a config file: the mismatch delay
// and any zero dashboard tuning value.
func (c *GameConfig) ApplyDefaults() {
	if c.MismatchDelayMS == 0 {
		c.MismatchDelayMS = DefaultMismatchMS
	}
	c.Dashboard = c.Dashboard.WithDefaults()
}

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Every difficulty must be dealable from the alphabet
	need := 0
	for _, l := range Layouts {
		need = max(need, l.Pairs)
	}
	if len(config.Alphabet) < max(need, MinAlphabetSize) {
		return fmt.Errorf("config validation: alphabet must have at least %d symbols, got %d",
			max(need, MinAlphabetSize), len(config.Alphabet))
	}
	seen := make(map[string]bool, len(config.Alphabet))
	for i, sym := range config.Alphabet {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("config validation: alphabet symbol %d is empty", i+1)
		}
		if seen[sym] {
			return fmt.Errorf("config validation: alphabet symbol %q is duplicated", sym)
		}
		seen[sym] = true
	}

	if config.MismatchDelayMS < MinMismatchDelayMS || config.MismatchDelayMS > MaxMismatchDelayMS {
		return fmt.Errorf("config validation: mismatch_delay_ms must be between %d and %d, got %d",
			MinMismatchDelayMS, MaxMismatchDelayMS, config.MismatchDelayMS)
	}

	if config.Messages.Won == "" {
		return fmt.Errorf("config validation: messages.won is required")
	}
	if strings.Count(config.Messages.Status, "%d") != 3 {
		return fmt.Errorf("config validation: messages.status must contain three %%d verbs (matches, pairs, moves)")
	}
	if config.Messages.NewRecord != "" && !strings.Contains(config.Messages.NewRecord, "%d") {
		return fmt.Errorf("config validation: messages.new_record must contain %%d for moves")
	}

	if err := config.Dashboard.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("config validation: %v", err)
	}

	return nil
}

// LoadGameConfig loads a game configuration from a JSON file
func LoadGameConfig(filename string) (*GameConfig, error) {
	data, err := os.ReadFile(filepath.Clean(filename))
	if err != nil {
		return nil, err
	}

	var config GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", filename, err)
	}

	config.ApplyDefaults()
	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
