package engine

import (
	"context"
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler schedules delayed callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules callbacks with time.AfterFunc.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualScheduler queues callbacks until Fire is called. It lets simulations
// and tests step through mismatch resolution without sleeping.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// AfterFunc implements Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, delay: d, f: f}
	s.pending = append(s.pending, t)
	return t
}

// Pending returns the number of callbacks that have neither fired nor been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// LastDelay returns the delay of the most recently scheduled callback.
func (s *ManualScheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return 0
	}
	return s.pending[len(s.pending)-1].delay
}

// Fire runs every live callback in scheduling order and returns how many ran.
func (s *ManualScheduler) Fire() int {
	return s.fire(false)
}

// FireAll runs every queued callback, including stopped ones. It simulates a
// timer that fired concurrently with its Stop call.
func (s *ManualScheduler) FireAll() int {
	return s.fire(true)
}

func (s *ManualScheduler) fire(includeStopped bool) int {
	s.mu.Lock()
	var run []func()
	for _, t := range s.pending {
		if t.fired || (t.stopped && !includeStopped) {
			continue
		}
		t.fired = true
		run = append(run, t.f)
	}
	s.pending = nil
	s.mu.Unlock()

	for _, f := range run {
		f()
	}
	return len(run)
}

// ScoreStore persists best scores per difficulty. Stores are shared by
// every engine of a process.
type ScoreStore interface {
	Get(ctx context.Context, d Difficulty) (moves int, ok bool, err error)
	// SetIfLower stores moves only if no best exists or moves beats it.
	// The compare and the write are atomic.
	SetIfLower(ctx context.Context, d Difficulty, moves int) (recorded bool, err error)
}

// Observer receives render, status and win notifications. Callbacks run
// after the engine lock is released and must not block for long.
type Observer interface {
	OnRender(cards []Card, columns int)
	OnStatus(status Status)
	OnWin(report WinReport)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Render func(cards []Card, columns int)
	Status func(status Status)
	Win    func(report WinReport)
}

func (o ObserverFuncs) OnRender(cards []Card, columns int) {
	if o.Render != nil {
		o.Render(cards, columns)
	}
}

func (o ObserverFuncs) OnStatus(status Status) {
	if o.Status != nil {
		o.Status(status)
	}
}

func (o ObserverFuncs) OnWin(report WinReport) {
	if o.Win != nil {
		o.Win(report)
	}
}
