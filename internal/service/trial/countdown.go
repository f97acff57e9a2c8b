package trial

import "fmt"

// DefaultSeconds is the length of a trial session.
const DefaultSeconds = 900

// Countdown is a whole-second timer that fires once when it reaches zero.
type Countdown struct {
	total     int
	remaining int
	active    bool
}

func NewCountdown(total int) *Countdown {
	if total <= 0 {
		total = DefaultSeconds
	}
	return &Countdown{total: total, remaining: total}
}

// Start restarts the countdown from the full duration.
func (c *Countdown) Start() {
	c.remaining = c.total
	c.active = true
}

// Tick removes one second while active. It returns true exactly once, on the
// tick that reaches zero, and deactivates the countdown.
func (c *Countdown) Tick() bool {
	if !c.active || c.remaining <= 0 {
		return false
	}
	c.remaining--
	if c.remaining == 0 {
		c.active = false
		return true
	}
	return false
}

// Reset stops the countdown and restores the full duration.
func (c *Countdown) Reset() {
	c.remaining = c.total
	c.active = false
}

func (c *Countdown) Remaining() int { return c.remaining }

func (c *Countdown) Active() bool { return c.active }

func (c *Countdown) Total() int { return c.total }

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
