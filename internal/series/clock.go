package series

import (
	"fmt"
	"time"

	"github.com/newthinker/triggerlab/internal/core"
)

// Clock is a time of day with second resolution
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock accepts "15:04" or "15:04:05"
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return Clock{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("invalid time of day %q", s))
}

// MustClock parses s or panics
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf extracts the time of day from t
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// On places the clock on the given calendar day
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, date.Location())
}

func (c Clock) seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// Compare returns -1, 0 or +1
func (c Clock) Compare(o Clock) int {
	switch a, b := c.seconds(), o.seconds(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Within reports whether c lies in the closed interval [from, to]
func (c Clock) Within(from, to Clock) bool {
	return c.Compare(from) >= 0 && c.Compare(to) <= 0
}

func (c Clock) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MarshalText encodes the clock as "HH:MM[:SS]"
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes "HH:MM[:SS]"
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
