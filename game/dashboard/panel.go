package dashboard

import (
	"fmt"
	"sync"
	"time"
)

// MaxLogLines bounds the panel event log.
const MaxLogLines = 50

// LogLine is one timestamped panel event, newest first in Snapshot.
type LogLine struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Snapshot is a copy of the panel state and its log.
type Snapshot struct {
	State     State     `json:"state"`
	TargetRPM float64   `json:"target_rpm"`
	Log       []LogLine `json:"log"`
}

// Panel is a concurrency-safe dashboard: commands and steps are serialised.
type Panel struct {
	mu    sync.Mutex
	state State
	log   []LogLine
	now   func() time.Time
}

// NewPanel creates a panel for a switched-off vehicle.
func NewPanel(tuning Tuning) *Panel {
	return &Panel{state: NewState(tuning), now: time.Now}
}

// RestorePanel creates a panel from a saved state.
func RestorePanel(s State) *Panel {
	s.Tuning = s.Tuning.WithDefaults()
	if !s.Gear.Valid() {
		s.Gear = GearNeutral
	}
	return &Panel{state: s, now: time.Now}
}

// Apply executes a command and records its log line.
func (p *Panel) Apply(c Command) (string, State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, err := c.Apply(&p.state)
	if err != nil {
		return "", p.state, err
	}
	p.appendLocked(msg)
	return msg, p.state, nil
}

// Advance runs one Step of dt seconds. It reports the new state and whether
// the fault changed.
func (p *Panel) Advance(dt float64) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	before := p.state.Fault
	p.state = Step(p.state, dt)
	changed := p.state.Fault != before
	if changed && p.state.Fault != FaultNone {
		p.appendLocked(fmt.Sprintf("Fault: %s", p.state.Fault))
	}
	return p.state, changed
}

// State returns the current state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the state, target rpm and log, newest line first.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	lines := make([]LogLine, len(p.log))
	for i, l := range p.log {
		lines[len(p.log)-1-i] = l
	}
	return Snapshot{State: p.state, TargetRPM: p.state.TargetRPM(), Log: lines}
}

func (p *Panel) appendLocked(msg string) {
	p.log = append(p.log, LogLine{At: p.now(), Message: msg})
	if len(p.log) > MaxLogLines {
		p.log = p.log[len(p.log)-MaxLogLines:]
	}
}
