package service

import (
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	Round          *RoundView         `json:"round"`
	Dashboard      *dashboard.State   `json:"dashboard,omitempty"`
	GameConfig     *engine.GameConfig `json:"game_config,omitempty"`
}

// CardView is a card as shown to players: the value of a face-down card is hidden.
type CardView struct {
	ID      string `json:"id"`
	Value   string `json:"value,omitempty"`
	FaceUp  bool   `json:"face_up"`
	Matched bool   `json:"matched"`
}

// RoundView is the player-visible round.
type RoundView struct {
	Difficulty     engine.Difficulty `json:"difficulty"`
	State          engine.RoundState `json:"state"`
	PairCount      int               `json:"pair_count"`
	Columns        int               `json:"columns"`
	Rows           int               `json:"rows"`
	Cards          []CardView        `json:"cards"`
	MatchesFound   int               `json:"matches_found"`
	MovesMade      int               `json:"moves_made"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Elapsed        string            `json:"elapsed"`
	TimerRunning   bool              `json:"timer_running"`
	Resolving      bool              `json:"resolving"`
	NewRecord      bool              `json:"new_record,omitempty"`
	Message        string            `json:"message"`
}

// RevealView is the result of a reveal.
type RevealView struct {
	Outcome engine.RevealOutcome `json:"outcome"`
	Reason  string               `json:"reason,omitempty"`
	CardID  string               `json:"card_id"`
	Round   *RoundView           `json:"round"`
	Win     *engine.WinReport    `json:"win,omitempty"`
}

// DashboardResult is returned from a dashboard command.
type DashboardResult struct {
	Message  string              `json:"message"`
	Snapshot *dashboard.Snapshot `json:"snapshot"`
}

// ContactValidation reports per-field contact form problems.
type ContactValidation struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename        string `json:"filename"`
	ConfigID        string `json:"config_id"` // The identifier to use for session creation
	Name            string `json:"name"`      // Display name
	Description     string `json:"description"`
	AlphabetSize    int    `json:"alphabet_size"`
	MismatchDelayMS int    `json:"mismatch_delay_ms"`
}

// MaskCards hides the values of face-down cards.
func MaskCards(cards []engine.Card) []CardView {
	out := make([]CardView, len(cards))
	for i, c := range cards {
		out[i] = CardView{ID: c.ID, FaceUp: c.FaceUp, Matched: c.Matched}
		if c.FaceUp || c.Matched {
			out[i].Value = c.Value
		}
	}
	return out
}

// NewRoundView builds the player-visible view of a round.
func NewRoundView(r *engine.Round) *RoundView {
	if r == nil {
		return nil
	}
	return &RoundView{
		Difficulty:     r.Difficulty,
		State:          r.State,
		PairCount:      r.PairCount,
		Columns:        r.Columns,
		Rows:           r.Rows,
		Cards:          MaskCards(r.Cards),
		MatchesFound:   r.MatchesFound,
		MovesMade:      r.MovesMade,
		ElapsedSeconds: r.ElapsedSeconds,
		Elapsed:        engine.FormatElapsed(r.ElapsedSeconds),
		TimerRunning:   r.TimerRunning,
		Resolving:      r.Resolving,
		NewRecord:      r.NewRecord,
		Message:        r.Message,
	}
}
