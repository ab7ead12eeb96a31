package service

import (
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// Event types pushed to subscribers.
const (
	EventRender    = "render"
	EventStatus    = "status"
	EventWin       = "win"
	EventTick      = "tick"
	EventDashboard = "dashboard"
)

// Event is a push notification for one session.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers events to the subscribers of a session.
type Notifier interface {
	Publish(event Event)
}

// RenderData carries the board after a change.
type RenderData struct {
	Cards   []CardView `json:"cards"`
	Columns int        `json:"columns"`
}

// TickData carries the elapsed round time.
type TickData struct {
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Elapsed        string `json:"elapsed"`
}

// EngineFactory builds the engine for a session.
type EngineFactory func(sessionID string, config *engine.GameConfig) (*engine.GameEngine, error)

// DefaultEngineFactory builds an engine with no store and no observer.
func DefaultEngineFactory(_ string, config *engine.GameConfig) (*engine.GameEngine, error) {
	return engine.NewEngine(config)
}

// NewEngineFactory returns a factory that shares store between all sessions
// and forwards engine callbacks to notifier.
func NewEngineFactory(store engine.ScoreStore, notifier Notifier, opts ...engine.Option) EngineFactory {
	return func(sessionID string, config *engine.GameConfig) (*engine.GameEngine, error) {
		all := []engine.Option{engine.WithScoreStore(store)}
		if notifier != nil {
			all = append(all, engine.WithObserver(sessionObserver{id: sessionID, notifier: notifier}))
		}
		all = append(all, opts...)
		return engine.NewEngine(config, all...)
	}
}

// sessionObserver turns engine callbacks into session events.
type sessionObserver struct {
	id       string
	notifier Notifier
}

func (o sessionObserver) publish(kind string, data any) {
	o.notifier.Publish(Event{Type: kind, SessionID: o.id, Data: data, Timestamp: time.Now()})
}

func (o sessionObserver) OnRender(cards []engine.Card, columns int) {
	o.publish(EventRender, RenderData{Cards: MaskCards(cards), Columns: columns})
}

func (o sessionObserver) OnStatus(status engine.Status) {
	o.publish(EventStatus, status)
}

func (o sessionObserver) OnWin(report engine.WinReport) {
	o.publish(EventWin, report)
}
