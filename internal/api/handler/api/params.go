package api

import (
	"strconv"
	"strings"

	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/config"
	"github.com/newthinker/triggerlab/internal/core"
)

// ParamsRequest carries run parameters. Empty fields fall back to the server defaults.
type ParamsRequest struct {
	Mode      string   `json:"mode,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Side      string   `json:"side,omitempty"`
	ExitTime  string   `json:"exit_time,omitempty"`
	StartTime string   `json:"start_time,omitempty"`
	EndTime   string   `json:"end_time,omitempty"`
	Weekdays  []string `json:"weekdays,omitempty"`
}

// resolve merges the request over defaults and validates the result
func (p ParamsRequest) resolve(defaults config.BacktestConfig) (backtest.Params, error) {
	cfg := defaults
	if p.Mode != "" {
		cfg.Mode = p.Mode
	}
	if p.Threshold != nil {
		cfg.Threshold = *p.Threshold
	}
	if p.Side != "" {
		cfg.Side = p.Side
	}
	if p.ExitTime != "" {
		cfg.ExitTime = p.ExitTime
	}
	if p.StartTime != "" {
		cfg.StartTime = p.StartTime
	}
	if p.EndTime != "" {
		cfg.EndTime = p.EndTime
	}
	if len(p.Weekdays) > 0 {
		cfg.Weekdays = p.Weekdays
	}
	return cfg.Params()
}

// paramsFromForm reads ParamsRequest fields from form values; weekdays are comma separated
func paramsFromForm(get func(string) string) (ParamsRequest, error) {
	p := ParamsRequest{
		Mode:      get("mode"),
		Side:      get("side"),
		ExitTime:  get("exit_time"),
		StartTime: get("start_time"),
		EndTime:   get("end_time"),
	}
	if s := strings.TrimSpace(get("threshold")); s != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return p, core.WrapError(core.ErrConfigInvalid, err)
		}
		p.Threshold = &v
	}
	if s := get("weekdays"); s != "" {
		p.Weekdays = strings.Split(s, ",")
	}
	return p, nil
}
