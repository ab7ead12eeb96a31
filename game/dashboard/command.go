package dashboard

import (
	"fmt"
	"strings"
)

// Command is a serialisable dashboard control action.
type Command struct {
	Action   string `json:"action"` // ignition|throttle|start|stop|estop|shift
	On       bool   `json:"on,omitempty"`
	Throttle int    `json:"throttle,omitempty"`
	Gear     Gear   `json:"gear,omitempty"`
}

// Apply executes the command against s and returns the log line.
func (c Command) Apply(s *State) (string, error) {
	switch strings.ToLower(strings.TrimSpace(c.Action)) {
	case "ignition":
		return s.SetIgnition(c.On), nil
	case "throttle":
		return s.SetThrottle(c.Throttle), nil
	case "start":
		return s.Start(), nil
	case "stop":
		return s.Stop(), nil
	case "estop", "emergency_stop":
		return s.EmergencyStop(), nil
	case "shift":
		return s.Shift(Gear(strings.ToUpper(string(c.Gear))))
	default:
		return "", fmt.Errorf("unknown dashboard action %q", c.Action)
	}
}
