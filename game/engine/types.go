package engine

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty selects the board size of a round.
type Difficulty string

const (
	Easy Difficulty = "easy"
	Hard Difficulty = "hard"
)

// RoundState is the lifecycle position of a round.
type RoundState string

const (
	Idle       RoundState = "idle"
	InProgress RoundState = "in_progress"
	Won        RoundState = "won"
)

// Validation constants
const (
	MinAlphabetSize    = 12
	MinMismatchDelayMS = 50
	MaxMismatchDelayMS = 10000
	DefaultMismatchMS  = 800
	TickPeriod         = time.Second
)

// Layout describes the board for one difficulty.
type Layout struct {
	Pairs   int `json:"pairs"`
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Layouts maps every difficulty to its fixed board layout.
var Layouts = map[Difficulty]Layout{
	Easy: {Pairs: 6, Columns: 4, Rows: 3},
	Hard: {Pairs: 12, Columns: 6, Rows: 4},
}

// Difficulties lists the known difficulties in display order.
var Difficulties = []Difficulty{Easy, Hard}

// ParseDifficulty accepts "easy"/"hard" in any case. An empty string means Easy.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if d == "" {
		return Easy, nil
	}
	if _, ok := Layouts[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
	return d, nil
}

// Card is one physical card on the board.
type Card struct {
	ID      string `json:"id"`
	Value   string `json:"value"`
	FaceUp  bool   `json:"face_up"`
	Matched bool   `json:"matched"`
}

// Round is one play-through from start to win or restart.
type Round struct {
	Difficulty     Difficulty `json:"difficulty"`
	PairCount      int        `json:"pair_count"`
	Columns        int        `json:"columns"`
	Rows           int        `json:"rows"`
	Cards          []Card     `json:"cards"`
	MatchesFound   int        `json:"matches_found"`
	MovesMade      int        `json:"moves_made"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	State          RoundState `json:"state"`
	Message        string     `json:"message"`

	TimerRunning  bool     `json:"timer_running"`
	Resolving     bool     `json:"resolving"`
	PendingCardID string   `json:"pending_card_id,omitempty"`
	Flipping      []string `json:"flipping,omitempty"`
	NewRecord     bool     `json:"new_record,omitempty"`

	StartedAt  time.Time  `json:"started_at,omitzero"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Generation is bumped on every start and restart. Scheduled callbacks
	// carry the generation they were created for.
	Generation uint64 `json:"generation"`
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	c.Cards = append([]Card(nil), r.Cards...)
	c.Flipping = append([]string(nil), r.Flipping...)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// card returns a pointer to the card with the given id, or nil.
func (r *Round) card(id string) *Card {
	for i := range r.Cards {
		if r.Cards[i].ID == id {
			return &r.Cards[i]
		}
	}
	return nil
}

// FaceUpUnmatched counts face-up cards that are not matched yet.
func (r *Round) FaceUpUnmatched() int {
	n := 0
	for _, c := range r.Cards {
		if c.FaceUp && !c.Matched {
			n++
		}
	}
	return n
}

// RevealOutcome classifies what a reveal did.
type RevealOutcome string

const (
	OutcomeIgnored  RevealOutcome = "ignored"
	OutcomeFirst    RevealOutcome = "first"
	OutcomeMatch    RevealOutcome = "match"
	OutcomeMismatch RevealOutcome = "mismatch"
	OutcomeWin      RevealOutcome = "win"
)

// RevealResult is returned from RevealCard.
type RevealResult struct {
	Outcome RevealOutcome `json:"outcome"`
	Reason  string        `json:"reason,omitempty"`
	CardID  string        `json:"card_id"`
	Round   *Round        `json:"round"`
	Win     *WinReport    `json:"win,omitempty"`
}

// Status is reported after every change to the round.
type Status struct {
	MatchesFound int    `json:"matches_found"`
	PairCount    int    `json:"pair_count"`
	MovesMade    int    `json:"moves_made"`
	Message      string `json:"message"`
}

// WinReport is reported once when a round is won.
type WinReport struct {
	State          RoundState `json:"state"`
	Difficulty     Difficulty `json:"difficulty"`
	MovesMade      int        `json:"moves_made"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	Elapsed        string     `json:"elapsed"`
	IsNewRecord    bool       `json:"is_new_record"`
	PreviousBest   *int       `json:"previous_best,omitempty"`
	Message        string     `json:"message"`
}

// BestScore is the stored best for one difficulty. Moves is meaningful only
// when Recorded is true.
type BestScore struct {
	Difficulty Difficulty `json:"difficulty"`
	Moves      int        `json:"moves"`
	Recorded   bool       `json:"recorded"`
}

// String renders the best score the way the status bar shows it.
func (b BestScore) String() string {
	if !b.Recorded {
		return "—"
	}
	return fmt.Sprintf("%d moves", b.Moves)
}

// FormatElapsed renders seconds as mm:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
