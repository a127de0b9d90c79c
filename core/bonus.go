package core

import (
	"time"

	"github.com/holiman/uint256"
)

// Default bonus schedule: contributions inside the first hour of the sale are
// credited an extra 15% of accounted value.
const (
	DefaultBonusPercent = 15
	DefaultBonusWindow  = time.Hour
)

// BonusAmount returns value*percent/100, the phantom value credited on top of
// a contribution. The bonus is accounted but never physically received.
func BonusAmount(value *uint256.Int, percent uint64) *uint256.Int {
	b := new(uint256.Int).Mul(value, uint256.NewInt(percent))
	return b.Div(b, uint256.NewInt(100))
}

// InBonusWindow reports whether a contribution at the given elapsed sale time
// qualifies for the early-contribution bonus. The boundary is exclusive: a
// contribution exactly at the window's end receives nothing.
func InBonusWindow(elapsed, window time.Duration) bool {
	return elapsed >= 0 && elapsed < window
}
