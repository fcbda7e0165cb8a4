package models

import "time"

// AutoScanPhase is the state of the periodic scan machine.
type AutoScanPhase string

const (
	PhaseDisabled AutoScanPhase = "disabled"
	PhaseArmed    AutoScanPhase = "armed"
	PhaseRunning  AutoScanPhase = "running"
)

// AutoScanState is a point-in-time view of the auto-scan machine.
type AutoScanState struct {
	Enabled   bool          `json:"enabled"`
	Phase     AutoScanPhase `json:"phase"`
	Interval  Duration      `json:"interval"`
	NextRunAt *time.Time    `json:"next_run_at,omitempty"`
	Countdown string        `json:"countdown,omitempty"` // HH:MM:SS
	InFlight  bool          `json:"in_flight"`
}

// Duration marshals as a Go duration string ("1h0m0s").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
