package core

import (
	"time"

	"github.com/holiman/uint256"
)

// Terms fixes the pricing geometry of a sale: the price curve, the token cap
// in indivisible parts, and the early-contribution bonus schedule.
type Terms struct {
	Curve        PriceCurve
	TokenCap     *uint256.Int
	BonusPercent uint64
	BonusWindow  time.Duration
}

// Deal is the outcome of admitting one contribution: the currency-equivalent
// value accepted (bonus included), the currency refunded to the contributor,
// the unit price applied, and the bonus portion of the accepted value.
type Deal struct {
	Accepted *uint256.Int
	Refund   *uint256.Int
	Price    *uint256.Int
	Bonus    *uint256.Int
}

// ZeroDeal is returned for contributions outside an active sale.
func ZeroDeal() Deal {
	return Deal{
		Accepted: new(uint256.Int),
		Refund:   new(uint256.Int),
		Price:    new(uint256.Int),
		Bonus:    new(uint256.Int),
	}
}

// TokensAvailable returns the indivisible token parts still unsold at the
// given unit price: tokenCap - totalAccounted/price, saturating at zero.
func TokensAvailable(totalAccounted, price, tokenCap *uint256.Int) *uint256.Int {
	if price.IsZero() {
		return new(uint256.Int)
	}
	sold := new(uint256.Int).Div(totalAccounted, price)
	if sold.Cmp(tokenCap) >= 0 {
		return new(uint256.Int)
	}
	return sold.Sub(tokenCap, sold)
}

// ComputeDeal prices one contribution of `value` wei made at the given elapsed
// sale time against the accounted total so far.
//
// The candidate accepted value is value plus any window bonus. If the tokens
// it would buy at the current price exceed the remaining supply, the accepted
// value is clipped to exactly the remaining supply's cost and any genuine
// currency beyond it (bonus excluded) is refunded. A contributor who triggers
// clipping therefore loses the marginal bonus silently; it is never refunded.
//
// Guarantees: Accepted <= value+Bonus and Accepted+Refund <= value+Bonus, so
// no sequence of deals can create value. All division truncates.
func ComputeDeal(value *uint256.Int, elapsed time.Duration, totalAccounted *uint256.Int, t Terms) Deal {
	price := t.Curve.PriceAt(elapsed)
	if price.IsZero() {
		return ZeroDeal()
	}

	bonus := new(uint256.Int)
	if InBonusWindow(elapsed, t.BonusWindow) {
		bonus = BonusAmount(value, t.BonusPercent)
	}

	accepted := new(uint256.Int).Add(value, bonus)
	refund := new(uint256.Int)

	available := TokensAvailable(totalAccounted, price, t.TokenCap)
	tokens := new(uint256.Int).Div(accepted, price)
	if tokens.Cmp(available) > 0 {
		accepted.Mul(available, price)
		if value.Cmp(accepted) > 0 {
			refund.Sub(value, accepted)
		}
	}

	return Deal{Accepted: accepted, Refund: refund, Price: price, Bonus: bonus}
}

// MaxPurchase returns the largest currency amount a single contribution can
// have fully accepted at the given elapsed time without triggering a refund.
func MaxPurchase(elapsed time.Duration, totalAccounted *uint256.Int, t Terms) *uint256.Int {
	price := t.Curve.PriceAt(elapsed)
	if price.IsZero() {
		return new(uint256.Int)
	}
	available := TokensAvailable(totalAccounted, price, t.TokenCap)
	return available.Mul(available, price)
}
