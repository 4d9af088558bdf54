// Package sim drives the store simulation: the game clock, the customer
// spawner and the customer sessions themselves. Each customer runs as its
// own goroutine and owns its state machine; the shared pieces (catalog,
// checkout queue, ledger) are injected at construction.
package sim

import (
	"math"
	"time"
)

// Store opening hours. Customers only spawn while the store is open.
const (
	OpeningHour = 8.0
	ClosingHour = 22.0
)

// Clock maps wall-clock time onto game time. One game hour passes every
// RealSecondsPerHour wall seconds; the day wraps at 24.
type Clock struct {
	startHour          float64
	realSecondsPerHour float64
	started            time.Time
}

// NewClock starts a game clock at startHour.
func NewClock(startHour, realSecondsPerHour float64) *Clock {
	if realSecondsPerHour <= 0 {
		realSecondsPerHour = 10
	}
	return &Clock{startHour: startHour, realSecondsPerHour: realSecondsPerHour, started: time.Now()}
}

// Hour returns the current game hour in [0, 24).
func (c *Clock) Hour() float64 {
	elapsed := time.Since(c.started).Seconds() / c.realSecondsPerHour
	return math.Mod(c.startHour+elapsed, 24)
}

// IsOpen reports whether the store is currently open.
func (c *Clock) IsOpen() bool {
	h := c.Hour()
	return h >= OpeningHour && h < ClosingHour
}
