package taskpool

import "time"

// Countdown tracks a wall-clock timeout budget across a sequence of
// blocking sub-calls (used by Map/Starmap/Collect and friends). A nil
// timeout means "no deadline" throughout this package.
type Countdown struct {
	deadline time.Time
	has      bool
}

// NewCountdown starts a countdown. timeout == nil means no deadline is
// ever in effect; Check then always reports (nil, false).
func NewCountdown(timeout *time.Duration) *Countdown {
	if timeout == nil {
		return &Countdown{}
	}
	return &Countdown{deadline: time.Now().Add(*timeout), has: true}
}

// Check returns the remaining slice of the budget and whether a
// deadline is in effect at all. Once the deadline has elapsed it keeps
// returning (0, true) rather than going negative.
func (c *Countdown) Check() (*time.Duration, bool) {
	if !c.has {
		return nil, false
	}
	remaining := time.Until(c.deadline)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining, true
}
