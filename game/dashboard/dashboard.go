// Package dashboard simulates a toy vehicle engine for the dashboard view.
//
// The simulation is a pure function: Step takes the current State and the
// elapsed time since the previous step and returns the next State. Nothing in
// this package owns a timer; callers drive Step from whatever scheduler they
// have (a ticker in the server, a loop in tests).
//
// Commands (ignition, throttle, start, stop, emergency stop, gear shifts)
// are methods on *State that mutate it in place and return a log line
// describing what happened, mirroring the event log shown next to the gauges.
package dashboard

import (
	"fmt"
	"math"
	"time"
)

// Fault is a condition reported on the dashboard.
type Fault string

const (
	FaultNone           Fault = ""
	FaultOverheat       Fault = "OVERHEAT"
	FaultLowOilPressure Fault = "LOW_OIL_PRESSURE"
	FaultShiftBlocked   Fault = "SHIFT_BLOCKED"
	FaultEmergencyStop  Fault = "EMERGENCY_STOP"
)

// Gear is a transmission position.
type Gear string

const (
	GearPark    Gear = "P"
	GearReverse Gear = "R"
	GearNeutral Gear = "N"
	GearDrive   Gear = "D"
)

// Simulation limits.
const (
	MinTemp           = 15.0
	MaxTemp           = 120.0
	AmbientTemp       = 20.0
	OverheatTemp      = 105.0
	MaxOilBar         = 5.0
	LowOilBar         = 0.3
	LowOilMinRPM      = 1000.0
	ShiftBlockRPM     = 3000.0
	CoolingPerTick    = 0.4
	HeatingPerTickMax = 0.5
)

// Tuning holds the configurable simulation parameters.
type Tuning struct {
	TickMS    int     `json:"tick_ms"`
	Smoothing float64 `json:"smoothing"`
	MaxRPM    float64 `json:"max_rpm"`
	IdleRPM   float64 `json:"idle_rpm"`
}

// DefaultTuning returns the stock parameters: 250ms tick, 0.12 smoothing,
// 7000 max rpm and 700 idle rpm.
func DefaultTuning() Tuning {
	return Tuning{
		TickMS:    250,
		Smoothing: 0.12,
		MaxRPM:    7000,
		IdleRPM:   700,
	}
}

// WithDefaults fills zero fields with the stock values.
func (t Tuning) WithDefaults() Tuning {
	d := DefaultTuning()
	if t.TickMS <= 0 {
		t.TickMS = d.TickMS
	}
	if t.Smoothing <= 0 {
		t.Smoothing = d.Smoothing
	}
	if t.MaxRPM <= 0 {
		t.MaxRPM = d.MaxRPM
	}
	if t.IdleRPM <= 0 {
		t.IdleRPM = d.IdleRPM
	}
	return t
}

// Validate checks the tuning for usable values.
func (t Tuning) Validate() error {
	if t.TickMS <= 0 {
		return fmt.Errorf("dashboard tick_ms must be positive, got %d", t.TickMS)
	}
	if t.Smoothing <= 0 || t.Smoothing > 1 {
		return fmt.Errorf("dashboard smoothing must be in (0,1], got %g", t.Smoothing)
	}
	if t.MaxRPM <= 0 {
		return fmt.Errorf("dashboard max_rpm must be positive, got %g", t.MaxRPM)
	}
	if t.IdleRPM <= 0 || t.IdleRPM >= t.MaxRPM {
		return fmt.Errorf("dashboard idle_rpm must be in (0,max_rpm), got %g", t.IdleRPM)
	}
	return nil
}

// Tick returns the tick period as a duration.
func (t Tuning) Tick() time.Duration {
	return time.Duration(t.TickMS) * time.Millisecond
}

// State is the full dashboard state.
type State struct {
	Running  bool    `json:"running"`
	Ignition bool    `json:"ignition"`
	Throttle int     `json:"throttle"`
	RPM      float64 `json:"rpm"`
	Temp     float64 `json:"temp"`
	Oil      float64 `json:"oil"`
	Fault    Fault   `json:"fault,omitempty"`
	Gear     Gear    `json:"gear"`

	Tuning Tuning `json:"tuning"`
}

// NewState returns a cold, switched-off vehicle in neutral.
func NewState(tuning Tuning) State {
	return State{
		Temp:   AmbientTemp,
		Gear:   GearNeutral,
		Tuning: tuning.WithDefaults(),
	}
}

// TargetRPM is the rpm the engine is settling towards.
func (s State) TargetRPM() float64 {
	t := s.Tuning.WithDefaults()
	if !s.Ignition {
		return 0
	}
	if !s.Running {
		return t.IdleRPM
	}
	return math.Max(t.IdleRPM, math.Round(float64(s.Throttle)/100*t.MaxRPM))
}

// Step advances the simulation by dt seconds. The smoothing factor and the
// per-tick heating/cooling rates are defined for one tick; other dt values
// are scaled so that two half ticks equal one full tick.
func Step(s State, dt float64) State {
	t := s.Tuning.WithDefaults()
	s.Tuning = t
	if dt <= 0 {
		return s
	}
	ticks := dt / (float64(t.TickMS) / 1000)

	target := s.TargetRPM()
	alpha := 1 - math.Pow(1-t.Smoothing, ticks)
	s.RPM += (target - s.RPM) * alpha
	if math.Abs(s.RPM-target) < 1 {
		s.RPM = target
	}

	if s.RPM > 0 {
		s.Temp += s.RPM / t.MaxRPM * HeatingPerTickMax * ticks
	} else {
		s.Temp -= CoolingPerTick * ticks
	}
	s.Temp = math.Max(MinTemp, math.Min(MaxTemp, s.Temp))

	s.Oil = math.Round(s.RPM/t.MaxRPM*MaxOilBar*100) / 100

	switch {
	case s.Temp > OverheatTemp:
		s.Fault = FaultOverheat
	case s.Oil < LowOilBar && s.RPM > LowOilMinRPM:
		s.Fault = FaultLowOilPressure
	default:
		s.Fault = FaultNone
	}
	return s
}

// SetIgnition switches the ignition. Turning it off also stops the engine.
func (s *State) SetIgnition(on bool) string {
	s.Ignition = on
	if !on {
		s.Running = false
		return "Ignition OFF"
	}
	return "Ignition ON"
}

// SetThrottle sets the throttle position, clamped to 0..100.
func (s *State) SetThrottle(pct int) string {
	s.Throttle = max(0, min(100, pct))
	return fmt.Sprintf("Throttle %d%%", s.Throttle)
}

// Start cranks the engine. It is refused without ignition.
func (s *State) Start() string {
	if !s.Ignition {
		return "Cannot start: ignition is off"
	}
	if s.Running {
		return "Engine already running"
	}
	s.Running = true
	return "Engine started"
}

// Stop stops a running engine.
func (s *State) Stop() string {
	if !s.Running {
		return "Engine not running"
	}
	s.Running = false
	return "Engine stopped"
}

// EmergencyStop kills everything at once and latches the EMERGENCY_STOP fault
// until the next Step clears it.
func (s *State) EmergencyStop() string {
	s.Running = false
	s.Ignition = false
	s.Throttle = 0
	s.RPM = 0
	s.Oil = 0
	s.Fault = FaultEmergencyStop
	s.Gear = GearNeutral
	return "EMERGENCY STOP executed"
}

// Shift changes gear. While the engine is running at or above the shift
// block rpm the shift is refused and SHIFT_BLOCKED is raised.
func (s *State) Shift(g Gear) (string, error) {
	if !g.Valid() {
		return "", fmt.Errorf("unknown gear %q", g)
	}
	if g == s.Gear {
		return fmt.Sprintf("Already in %s", g), nil
	}
	if s.Running && s.RPM >= ShiftBlockRPM {
		s.Fault = FaultShiftBlocked
		return fmt.Sprintf("Shift to %s blocked (RPM too high)", g), nil
	}
	s.Gear = g
	if s.Fault == FaultShiftBlocked {
		s.Fault = FaultNone
	}
	return fmt.Sprintf("Shifted to %s", g), nil
}

// Valid reports whether g is one of P, R, N, D.
func (g Gear) Valid() bool {
	switch g {
	case GearPark, GearReverse, GearNeutral, GearDrive:
		return true
	}
	return false
}
