package sale

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/cloudx-io/opensale/core"
)

// Status is a consistent snapshot of the sale's observable state.
type Status struct {
	Active         bool
	Halted         bool
	Begin          time.Time
	End            time.Time
	EndPrice       *uint256.Int
	Era            uint64
	TotalReceived  *uint256.Int
	TotalAccounted *uint256.Int
	TotalFinalised *uint256.Int
	Participants   int
}

// Status returns a snapshot taken under the sale mutex.
func (s *Sale) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	return Status{
		Active:         s.activeAt(now),
		Halted:         s.halted,
		Begin:          s.cfg.Begin,
		End:            s.endTime,
		EndPrice:       new(uint256.Int).Set(s.endPrice),
		Era:            s.eraAt(now),
		TotalReceived:  new(uint256.Int).Set(s.totalReceived),
		TotalAccounted: new(uint256.Int).Set(s.totalAccounted),
		TotalFinalised: new(uint256.Int).Set(s.totalFinalised),
		Participants:   len(s.ledger),
	}
}

// CurrentPrice returns the wei cost of one indivisible token part right now,
// or zero when the sale is not active.
func (s *Sale) CurrentPrice() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !s.activeAt(now) {
		return new(uint256.Int)
	}
	return s.terms.Curve.PriceAt(now.Sub(s.cfg.Begin))
}

// TokensAvailable returns the indivisible parts still unsold at the current
// price, or zero when the sale is not active.
func (s *Sale) TokensAvailable() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !s.activeAt(now) {
		return new(uint256.Int)
	}
	price := s.terms.Curve.PriceAt(now.Sub(s.cfg.Begin))
	return core.TokensAvailable(s.totalAccounted, price, s.terms.TokenCap)
}

// MaxPurchase returns the largest contribution currently accepted without a
// refund, or zero when the sale is not active.
func (s *Sale) MaxPurchase() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !s.activeAt(now) {
		return new(uint256.Int)
	}
	return core.MaxPurchase(now.Sub(s.cfg.Begin), s.totalAccounted, s.terms)
}

// TheDeal previews admission of a contribution without admitting it. Returns
// the all-zero deal when the sale is not active.
func (s *Sale) TheDeal(value *uint256.Int) core.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !s.activeAt(now) {
		return core.ZeroDeal()
	}
	return core.ComputeDeal(value, now.Sub(s.cfg.Begin), s.totalAccounted, s.terms)
}

// Bonus returns the bonus a contribution of value would be granted right now:
// zero unless the sale is active and inside the bonus window.
func (s *Sale) Bonus(value *uint256.Int) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !s.activeAt(now) || !core.InBonusWindow(now.Sub(s.cfg.Begin), s.terms.BonusWindow) {
		return new(uint256.Int)
	}
	return core.BonusAmount(value, s.terms.BonusPercent)
}

// IsActive reports whether the current time is inside [begin, endTime).
func (s *Sale) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeAt(s.clock.Now())
}

// EndTime returns the currently projected end of the sale.
func (s *Sale) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// EndPrice returns the frozen clearing price, zero until the first
// finalisation after the sale ends.
func (s *Sale) EndPrice() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.endPrice)
}

// Participant returns a copy of who's ledger record; ok is false when the
// record does not exist, which includes both never-contributed and
// already-finalised participants.
func (s *Sale) Participant(who common.Address) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.ledger[who]
	if !ok {
		return Account{}, false
	}
	return Account{
		Value: new(uint256.Int).Set(acct.Value),
		Bonus: new(uint256.Int).Set(acct.Bonus),
	}, true
}

// Retired reports the terminal state: the clearing price is fixed and every
// participant's value has been finalised.
func (s *Sale) Retired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.endPrice.IsZero() && s.totalFinalised.Eq(s.totalAccounted)
}
