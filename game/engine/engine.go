package engine

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

const storeTimeout = 2 * time.Second

// Engine defines the interface for matching-game operations
type Engine interface {
	StartRound(d Difficulty) (*Round, error)
	RevealCard(cardID string) RevealResult
	Restart() *Round
	Tick() (int, bool)
	Round() *Round
	Restore(r *Round) error
	BestScore(d Difficulty) BestScore
	BestScores() []BestScore
	GetConfig() *GameConfig
	SetObserver(o Observer)
}

var _ Engine = (*GameEngine)(nil)

// GameEngine runs matching-game rounds for one player.
//
// All methods are safe for concurrent use. Clicks, ticks and scheduled
// mismatch resolutions are serialised by an internal mutex; observer
// callbacks run after the mutex is released.
type GameEngine struct {
	mu        sync.Mutex
	config    *GameConfig
	round     *Round
	rng       *rand.Rand
	scheduler Scheduler
	store     ScoreStore
	observer  Observer
	resolve   Timer
	now       func() time.Time
}

// Option customises a GameEngine.
type Option func(*GameEngine)

// WithScheduler sets the scheduler used for mismatch resolution.
func WithScheduler(s Scheduler) Option {
	return func(e *GameEngine) { e.scheduler = s }
}

// WithScoreStore sets the best-score persistence collaborator.
func WithScoreStore(s ScoreStore) Option {
	return func(e *GameEngine) { e.store = s }
}

// WithObserver sets the render/status/win observer.
func WithObserver(o Observer) Option {
	return func(e *GameEngine) { e.observer = o }
}

// WithRand sets the random source used for dealing.
func WithRand(r *rand.Rand) Option {
	return func(e *GameEngine) { e.rng = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *GameEngine) { e.now = now }
}

// NewEngine creates a new game engine with the provided configuration.
// The engine starts with an idle round.
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{
		config:    config,
		scheduler: RealScheduler{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = newRand()
	}
	e.round = &Round{
		Difficulty: Easy,
		State:      Idle,
		Message:    config.Messages.Welcome,
	}
	return e, nil
}

// NewEngineWithDefaults creates a new game engine with the built-in configuration
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	e, err := NewEngine(DefaultConfig(), opts...)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return e
}

func newRand() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		klog.ErrorS(err, "Falling back to time-based seed")
		return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return rand.New(rand.NewChaCha8(seed))
}

// SetObserver replaces the observer.
func (e *GameEngine) SetObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = o
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// Round returns a snapshot of the current round.
func (e *GameEngine) Round() *Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round.Clone()
}

// StartRound deals a fresh board for the difficulty and starts the timer.
// Any round in progress is discarded along with its pending flip-back.
func (e *GameEngine) StartRound(d Difficulty) (*Round, error) {
	layout, ok := Layouts[d]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, d)
	}

	e.mu.Lock()
	cards, err := DealCards(e.rng, e.config.Alphabet, layout.Pairs)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.cancelResolutionLocked()

	e.round = &Round{
		Difficulty:   d,
		PairCount:    layout.Pairs,
		Columns:      layout.Columns,
		Rows:         layout.Rows,
		Cards:        cards,
		State:        InProgress,
		TimerRunning: true,
		StartedAt:    e.now(),
		Generation:   e.round.Generation + 1,
	}
	e.round.Message = e.statusMessageLocked()

	snapshot := e.round.Clone()
	notices := []notice{e.renderNoticeLocked(), e.statusNoticeLocked()}
	obs := e.observer
	e.mu.Unlock()

	dispatch(obs, notices)
	return snapshot, nil
}

// Restart moves the engine back to idle. A pending mismatch flip-back is
// cancelled and will not touch the next round.
func (e *GameEngine) Restart() *Round {
	e.mu.Lock()
	e.cancelResolutionLocked()
	e.round = &Round{
		Difficulty: e.round.Difficulty,
		State:      Idle,
		Message:    e.config.Messages.Restart,
		Generation: e.round.Generation + 1,
	}
	snapshot := e.round.Clone()
	notices := []notice{e.renderNoticeLocked(), e.statusNoticeLocked()}
	obs := e.observer
	e.mu.Unlock()

	dispatch(obs, notices)
	return snapshot
}

// RevealCard flips the card face up and evaluates the pair once two are up.
// Invalid reveals are ignored and reported with OutcomeIgnored.
func (e *GameEngine) RevealCard(cardID string) RevealResult {
	e.mu.Lock()
	r := e.round
	result := RevealResult{CardID: cardID, Outcome: OutcomeIgnored}

	if reason := e.rejectLocked(cardID); reason != "" {
		result.Reason = reason
		result.Round = r.Clone()
		e.mu.Unlock()
		return result
	}

	card := r.card(cardID)
	card.FaceUp = true
	notices := []notice{}

	switch {
	case r.PendingCardID == "":
		r.PendingCardID = cardID
		result.Outcome = OutcomeFirst

	default:
		first := r.card(r.PendingCardID)
		r.MovesMade++
		r.PendingCardID = ""

		if first.Value == card.Value {
			first.Matched = true
			card.Matched = true
			r.MatchesFound++
			result.Outcome = OutcomeMatch
		} else {
			r.Resolving = true
			r.Flipping = []string{first.ID, card.ID}
			gen := r.Generation
			e.resolve = e.scheduler.AfterFunc(e.config.MismatchDelay(), func() {
				e.resolveMismatch(gen)
			})
			result.Outcome = OutcomeMismatch
		}
	}

	r.Message = e.statusMessageLocked()
	notices = append(notices, e.renderNoticeLocked(), e.statusNoticeLocked())

	if win := e.checkWinLocked(); win != nil {
		result.Outcome = OutcomeWin
		result.Win = win
		report := *win
		notices = append(notices, func(o Observer) { o.OnWin(report) })
	}

	result.Round = r.Clone()
	obs := e.observer
	e.mu.Unlock()

	dispatch(obs, notices)
	return result
}

// rejectLocked returns why a reveal must be ignored, or "" if it is allowed.
func (e *GameEngine) rejectLocked(cardID string) string {
	r := e.round
	if r.State != InProgress {
		return "round not in progress"
	}
	if r.Resolving {
		return "mismatch resolution in progress"
	}
	card := r.card(cardID)
	switch {
	case card == nil:
		return "unknown card"
	case card.Matched:
		return "card already matched"
	case card.FaceUp:
		return "card already face up"
	}
	return ""
}

// checkWinLocked finishes the round once every pair is found.
func (e *GameEngine) checkWinLocked() *WinReport {
	r := e.round
	if r.State != InProgress || r.MatchesFound != r.PairCount {
		return nil
	}

	r.State = Won
	r.TimerRunning = false
	finished := e.now()
	r.FinishedAt = &finished

	report := &WinReport{
		State:          Won,
		Difficulty:     r.Difficulty,
		MovesMade:      r.MovesMade,
		ElapsedSeconds: r.ElapsedSeconds,
		Elapsed:        FormatElapsed(r.ElapsedSeconds),
	}

	prev := e.bestScoreLocked(r.Difficulty)
	if prev.Recorded {
		moves := prev.Moves
		report.PreviousBest = &moves
	}
	if r.MovesMade > 0 && (!prev.Recorded || r.MovesMade < prev.Moves) {
		report.IsNewRecord = e.recordBestLocked(r.Difficulty, r.MovesMade)
	}
	r.NewRecord = report.IsNewRecord

	msg := e.config.Messages.Won
	if report.IsNewRecord && e.config.Messages.NewRecord != "" {
		msg += " " + fmt.Sprintf(e.config.Messages.NewRecord, r.MovesMade)
	}
	r.Message = msg
	report.Message = msg
	return report
}

// resolveMismatch flips a mismatched pair back. Callbacks from an older
// generation are ignored.
func (e *GameEngine) resolveMismatch(gen uint64) {
	e.mu.Lock()
	r := e.round
	if r.Generation != gen || !r.Resolving {
		e.mu.Unlock()
		return
	}
	e.flipBackLocked()
	e.resolve = nil
	notices := []notice{e.renderNoticeLocked()}
	obs := e.observer
	e.mu.Unlock()

	dispatch(obs, notices)
}

func (e *GameEngine) flipBackLocked() {
	r := e.round
	for _, id := range r.Flipping {
		if c := r.card(id); c != nil && !c.Matched {
			c.FaceUp = false
		}
	}
	r.Flipping = nil
	r.Resolving = false
}

func (e *GameEngine) cancelResolutionLocked() {
	if e.resolve != nil {
		e.resolve.Stop()
		e.resolve = nil
	}
}

// Tick advances the round timer by one second. It reports the elapsed
// seconds and whether the timer was running.
func (e *GameEngine) Tick() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.round
	if r.State != InProgress || !r.TimerRunning {
		return r.ElapsedSeconds, false
	}
	r.ElapsedSeconds++
	return r.ElapsedSeconds, true
}

// Restore installs a previously persisted round. A flip-back that was
// pending when the round was saved is applied immediately.
func (e *GameEngine) Restore(r *Round) error {
	if err := ValidateRound(r); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelResolutionLocked()
	e.round = r.Clone()
	if e.round.Resolving {
		e.flipBackLocked()
	}
	return nil
}

// BestScore returns the stored best for a difficulty. Store failures are
// reported as "no best score".
func (e *GameEngine) BestScore(d Difficulty) BestScore {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bestScoreLocked(d)
}

// BestScores returns the stored best for every difficulty.
func (e *GameEngine) BestScores() []BestScore {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]BestScore, 0, len(Difficulties))
	for _, d := range Difficulties {
		out = append(out, e.bestScoreLocked(d))
	}
	return out
}

func (e *GameEngine) bestScoreLocked(d Difficulty) BestScore {
	best := BestScore{Difficulty: d}
	if e.store == nil {
		return best
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	moves, ok, err := e.store.Get(ctx, d)
	if err != nil {
		klog.ErrorS(err, "Best score read failed", "difficulty", d)
		return best
	}
	best.Moves, best.Recorded = moves, ok
	return best
}

// recordBestLocked offers moves to the store. Another session may have
// stored a better score since prev was read, so the store decides.
func (e *GameEngine) recordBestLocked(d Difficulty, moves int) bool {
	if e.store == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	recorded, err := e.store.SetIfLower(ctx, d, moves)
	if err != nil {
		klog.ErrorS(err, "Best score write failed", "difficulty", d, "moves", moves)
		return false
	}
	return recorded
}

func (e *GameEngine) statusMessageLocked() string {
	r := e.round
	return fmt.Sprintf(e.config.Messages.Status, r.MatchesFound, r.PairCount, r.MovesMade)
}

type notice func(Observer)

func (e *GameEngine) renderNoticeLocked() notice {
	cards := append([]Card(nil), e.round.Cards...)
	cols := e.round.Columns
	return func(o Observer) { o.OnRender(cards, cols) }
}

func (e *GameEngine) statusNoticeLocked() notice {
	r := e.round
	s := Status{
		MatchesFound: r.MatchesFound,
		PairCount:    r.PairCount,
		MovesMade:    r.MovesMade,
		Message:      r.Message,
	}
	return func(o Observer) { o.OnStatus(s) }
}

func dispatch(o Observer, notices []notice) {
	if o == nil {
		return
	}
	for _, n := range notices {
		n(o)
	}
}

// ValidateRound checks the structural invariants of a round.
func ValidateRound(r *Round) error {
	if r == nil {
		return fmt.Errorf("round cannot be nil")
	}
	if r.State == Idle {
		return nil
	}
	layout, ok := Layouts[r.Difficulty]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDifficulty, r.Difficulty)
	}
	if r.PairCount != layout.Pairs {
		return fmt.Errorf("round: pair_count %d does not match %s layout (%d)", r.PairCount, r.Difficulty, layout.Pairs)
	}
	if len(r.Cards) != r.PairCount*2 {
		return fmt.Errorf("round: expected %d cards, got %d", r.PairCount*2, len(r.Cards))
	}

	values := make(map[string]int, r.PairCount)
	ids := make(map[string]bool, len(r.Cards))
	matched := 0
	for _, c := range r.Cards {
		if ids[c.ID] {
			return fmt.Errorf("round: duplicate card id %q", c.ID)
		}
		ids[c.ID] = true
		values[c.Value]++
		if c.Matched {
			matched++
		}
	}
	for v, n := range values {
		if n != 2 {
			return fmt.Errorf("round: value %q appears %d times", v, n)
		}
	}
	if matched != r.MatchesFound*2 {
		return fmt.Errorf("round: %d matched cards but matches_found is %d", matched, r.MatchesFound)
	}
	if r.MatchesFound > r.PairCount {
		return fmt.Errorf("round: matches_found %d exceeds pair_count %d", r.MatchesFound, r.PairCount)
	}
	if (r.State == Won) != (r.MatchesFound == r.PairCount) {
		return fmt.Errorf("round: state %s inconsistent with %d/%d matches", r.State, r.MatchesFound, r.PairCount)
	}
	return validateSelection(r)
}

// validateSelection checks the pending card and the flip-back pair against
// the face-up cards of the board.
func validateSelection(r *Round) error {
	up := r.FaceUpUnmatched()
	if r.PendingCardID != "" {
		c := r.card(r.PendingCardID)
		if c == nil {
			return fmt.Errorf("round: pending card %q does not exist", r.PendingCardID)
		}
		if !c.FaceUp || c.Matched {
			return fmt.Errorf("round: pending card %q is not face up and unmatched", r.PendingCardID)
		}
	}
	for _, id := range r.Flipping {
		if r.card(id) == nil {
			return fmt.Errorf("round: flipping card %q does not exist", id)
		}
	}

	if r.Resolving {
		if r.PendingCardID != "" {
			return fmt.Errorf("round: pending card %q set while resolving", r.PendingCardID)
		}
		if len(r.Flipping) != 2 || up > 2 {
			return fmt.Errorf("round: resolving needs two flipping cards, got %d flipping and %d face up", len(r.Flipping), up)
		}
		return nil
	}

	want := 0
	if r.PendingCardID != "" {
		want = 1
	}
	if up != want {
		return fmt.Errorf("round: %d unmatched cards face up with pending card %q", up, r.PendingCardID)
	}
	return nil
}
