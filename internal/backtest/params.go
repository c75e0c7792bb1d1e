package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

// Mode selects the trigger detector
type Mode string

const (
	// ModeTrigger enters intraday when price crosses a move from the prior close
	ModeTrigger Mode = "trigger"
	// ModeWindow trades a fixed intraday time window every day
	ModeWindow Mode = "window"
	// ModeDaily works on daily bars with percentage moves from the prior close
	ModeDaily Mode = "daily"
)

// Intraday reports whether the mode consumes sub-daily bars
func (m Mode) Intraday() bool {
	return m == ModeTrigger || m == ModeWindow
}

// Params are the fixed rule evaluated by one run
type Params struct {
	Mode Mode `json:"mode"`
	// Threshold is the signed trigger move in percent (trigger and daily modes)
	Threshold float64   `json:"threshold"`
	Side      core.Side `json:"side"`
	// Start opens the window (window mode)
	Start series.Clock `json:"start"`
	// End is the exit time in trigger mode and closes the window in window mode
	End series.Clock `json:"end"`
	// Weekdays filters the full-history weekday table; empty keeps all days
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}

// Validate checks the parameters for contract errors.
// Rules that simply cannot trigger, like a zero threshold, are not errors.
func (p Params) Validate() error {
	switch p.Mode {
	case ModeTrigger, ModeWindow, ModeDaily:
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown mode %q", p.Mode))
	}
	if !p.Side.Valid() {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown side %q", p.Side))
	}
	for _, d := range p.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("weekday out of range: %d", d))
		}
	}
	return nil
}

// Interval is the bar interval the mode needs from a provider
func (p Params) Interval(intraday string) string {
	if p.Mode.Intraday() {
		return intraday
	}
	return core.IntervalDaily
}
