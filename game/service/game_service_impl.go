package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/contact"
	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

const tracerName = "github.com/wricardo/mcp-training/memorygame/game/service"

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	scores   engine.ScoreStore
	notifier Notifier
	tracer   trace.Tracer
	now      func() time.Time
}

// Option customises the game service.
type Option func(*gameServiceImpl)

// WithScoreStore sets the shared best-score store read by BestScores.
func WithScoreStore(store engine.ScoreStore) Option {
	return func(s *gameServiceImpl) { s.scores = store }
}

// WithNotifier sets the event sink for tick and dashboard events.
func WithNotifier(n Notifier) Option {
	return func(s *gameServiceImpl) { s.notifier = n }
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *gameServiceImpl) { s.tracer = t }
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gameServiceImpl) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "GameService."+name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *gameServiceImpl) session(id string) (*Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := s.sessions.UpdateLastAccessed(id); err != nil {
		klog.V(2).InfoS("Failed to update session access time", "session", id, "err", err)
	}
	return sess, nil
}

func (s *gameServiceImpl) save(id string) {
	if err := s.sessions.Save(id); err != nil {
		klog.ErrorS(err, "Failed to persist session", "session", id)
	}
}

func (s *gameServiceImpl) info(sess *Session) *SessionInfo {
	configID := sess.ConfigID
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	info := &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt(),
		Round:          NewRoundView(sess.Engine.Round()),
		GameConfig:     sess.Config,
	}
	if sess.Dashboard != nil {
		st := sess.Dashboard.State()
		info.Dashboard = &st
	}
	return info
}

// CreateSession creates a new game session. A non-empty difficulty deals
// the first round straight away.
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName, difficulty string) (*SessionInfo, error) {
	_, span := s.start(ctx, "CreateSession", attribute.String("config", configName), attribute.String("difficulty", difficulty))
	defer span.End()

	var d engine.Difficulty
	if difficulty != "" {
		var err error
		if d, err = engine.ParseDifficulty(difficulty); err != nil {
			return nil, fail(span, err)
		}
	}

	var config *engine.GameConfig
	configID := strings.TrimSuffix(configName, ".json")
	if configName != "" {
		var err error
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				var ids []string
				if available, listErr := s.configs.ListConfigs(); listErr == nil {
					for _, c := range available {
						ids = append(ids, c.ConfigID)
					}
				}
				if len(ids) > 0 {
					return nil, fail(span, fmt.Errorf("config '%s' not found. Available configs: %v: %w", configName, ids, err))
				}
				return nil, fail(span, fmt.Errorf("config '%s' not found. Use /api/configs to list available configurations: %w", configName, err))
			}
			return nil, fail(span, fmt.Errorf("failed to load config %s: %w", configName, err))
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.getConfigID(config.Name)
	}

	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to create session: %w", err))
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))

	if d != "" {
		if _, err := sess.Engine.StartRound(d); err != nil {
			return nil, fail(span, err)
		}
		s.save(sess.ID)
	}

	klog.InfoS("Session created", "session", sess.ID, "config", configID, "difficulty", d)
	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	_, span := s.start(ctx, "GetSession", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	return s.info(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	_, span := s.start(ctx, "ListSessions")
	defer span.End()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	_, span := s.start(ctx, "DeleteSession", attribute.String("session.id", sessionID))
	defer span.End()

	if err := s.sessions.Delete(sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return fail(span, err)
		}
		return fail(span, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID))
	}
	return nil
}

// StartRound deals a new board for the session
func (s *gameServiceImpl) StartRound(ctx context.Context, sessionID, difficulty string) (*RoundView, error) {
	_, span := s.start(ctx, "StartRound", attribute.String("session.id", sessionID), attribute.String("difficulty", difficulty))
	defer span.End()

	d, err := engine.ParseDifficulty(difficulty)
	if err != nil {
		return nil, fail(span, err)
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	round, err := sess.Engine.StartRound(d)
	if err != nil {
		return nil, fail(span, err)
	}
	s.save(sessionID)
	klog.V(2).InfoS("Round started", "session", sessionID, "difficulty", d)
	return NewRoundView(round), nil
}

// RevealCard flips a card in the session's round
func (s *gameServiceImpl) RevealCard(ctx context.Context, sessionID, cardID string) (*RevealView, error) {
	_, span := s.start(ctx, "RevealCard", attribute.String("session.id", sessionID), attribute.String("card.id", cardID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	res := sess.Engine.RevealCard(cardID)
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	if res.Outcome != engine.OutcomeIgnored {
		s.save(sessionID)
	}
	klog.V(2).InfoS("Card revealed", "session", sessionID, "card", cardID, "outcome", res.Outcome, "reason", res.Reason)
	if res.Win != nil {
		klog.InfoS("Round won", "session", sessionID, "difficulty", res.Win.Difficulty,
			"moves", res.Win.MovesMade, "elapsed", res.Win.Elapsed, "record", res.Win.IsNewRecord)
	}

	return &RevealView{
		Outcome: res.Outcome,
		Reason:  res.Reason,
		CardID:  res.CardID,
		Round:   NewRoundView(res.Round),
		Win:     res.Win,
	}, nil
}

// Restart returns the session's engine to idle
func (s *gameServiceImpl) Restart(ctx context.Context, sessionID string) (*RoundView, error) {
	_, span := s.start(ctx, "Restart", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	round := sess.Engine.Restart()
	s.save(sessionID)
	return NewRoundView(round), nil
}

// GetRound returns the session's current round
func (s *gameServiceImpl) GetRound(ctx context.Context, sessionID string) (*RoundView, error) {
	_, span := s.start(ctx, "GetRound", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	return NewRoundView(sess.Engine.Round()), nil
}

// BestScores returns the shared best score for every difficulty. Read
// failures are reported as no record.
func (s *gameServiceImpl) BestScores(ctx context.Context) ([]engine.BestScore, error) {
	ctx, span := s.start(ctx, "BestScores")
	defer span.End()

	out := make([]engine.BestScore, 0, len(engine.Difficulties))
	for _, d := range engine.Difficulties {
		best := engine.BestScore{Difficulty: d}
		if s.scores != nil {
			moves, ok, err := s.scores.Get(ctx, d)
			if err != nil {
				klog.ErrorS(err, "Best score read failed", "difficulty", d)
			} else {
				best.Moves, best.Recorded = moves, ok
			}
		}
		out = append(out, best)
	}
	return out, nil
}

// ResetBestScore forgets the record for a difficulty
func (s *gameServiceImpl) ResetBestScore(ctx context.Context, difficulty string) error {
	ctx, span := s.start(ctx, "ResetBestScore", attribute.String("difficulty", difficulty))
	defer span.End()

	d, err := engine.ParseDifficulty(difficulty)
	if err != nil {
		return fail(span, err)
	}
	resetter, ok := s.scores.(BestScoreResetter)
	if !ok {
		return fail(span, fmt.Errorf("score store does not support reset"))
	}
	if err := resetter.Reset(ctx, d); err != nil {
		return fail(span, fmt.Errorf("failed to reset best score: %w", err))
	}
	klog.InfoS("Best score reset", "difficulty", d)
	return nil
}

// TickAll advances the timer of every running round by one second and
// returns how many rounds ticked.
func (s *gameServiceImpl) TickAll(ctx context.Context) int {
	n := 0
	for _, sess := range s.sessions.List() {
		elapsed, ok := sess.Engine.Tick()
		if !ok {
			continue
		}
		n++
		s.publish(sess.ID, EventTick, TickData{ElapsedSeconds: elapsed, Elapsed: engine.FormatElapsed(elapsed)})
	}
	return n
}

// StepDashboards advances every dashboard by dt seconds and returns how
// many were pushed to subscribers.
func (s *gameServiceImpl) StepDashboards(ctx context.Context, dt float64) int {
	n := 0
	for _, sess := range s.sessions.List() {
		if sess.Dashboard == nil {
			continue
		}
		before := sess.Dashboard.State()
		after, faultChanged := sess.Dashboard.Advance(dt)
		if !faultChanged && !after.Ignition && before.RPM == 0 && after.RPM == 0 {
			continue
		}
		n++
		snap := sess.Dashboard.Snapshot()
		s.publish(sess.ID, EventDashboard, snap)
	}
	return n
}

// DashboardCommand applies a control action to the session's dashboard
func (s *gameServiceImpl) DashboardCommand(ctx context.Context, sessionID string, cmd dashboard.Command) (*DashboardResult, error) {
	_, span := s.start(ctx, "DashboardCommand", attribute.String("session.id", sessionID), attribute.String("action", cmd.Action))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	if sess.Dashboard == nil {
		return nil, fail(span, fmt.Errorf("session %s has no dashboard", sessionID))
	}

	msg, _, err := sess.Dashboard.Apply(cmd)
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: %v", ErrInvalidCommand, err))
	}
	s.save(sessionID)

	snap := sess.Dashboard.Snapshot()
	s.publish(sessionID, EventDashboard, snap)
	klog.V(2).InfoS("Dashboard command", "session", sessionID, "action", cmd.Action, "result", msg)
	return &DashboardResult{Message: msg, Snapshot: &snap}, nil
}

// GetDashboard returns the session's dashboard snapshot
func (s *gameServiceImpl) GetDashboard(ctx context.Context, sessionID string) (*dashboard.Snapshot, error) {
	_, span := s.start(ctx, "GetDashboard", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	if sess.Dashboard == nil {
		return nil, fail(span, fmt.Errorf("session %s has no dashboard", sessionID))
	}
	snap := sess.Dashboard.Snapshot()
	return &snap, nil
}

// ValidateContact checks the contact form field by field
func (s *gameServiceImpl) ValidateContact(ctx context.Context, form contact.Form) *ContactValidation {
	_, span := s.start(ctx, "ValidateContact")
	defer span.End()

	errs := contact.Validate(form)
	span.SetAttributes(attribute.Int("contact.invalid_fields", len(errs)))
	return &ContactValidation{Valid: len(errs) == 0, Errors: errs}
}

// SubmitContact validates the form and returns its summary
func (s *gameServiceImpl) SubmitContact(ctx context.Context, form contact.Form) (*contact.Submission, error) {
	_, span := s.start(ctx, "SubmitContact")
	defer span.End()

	sub, err := contact.Submit(form, s.now())
	if err != nil {
		return nil, fail(span, err)
	}
	klog.InfoS("Contact form submitted", "id", sub.ID, "summary", sub.Summary)
	return sub, nil
}

// ListConfigs returns all available configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a configuration by id
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig validates and stores a configuration
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

func (s *gameServiceImpl) publish(sessionID, kind string, data any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(Event{Type: kind, SessionID: sessionID, Data: data, Timestamp: s.now()})
}
