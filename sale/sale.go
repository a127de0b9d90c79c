// Package sale implements a modified descending-price token sale: a fixed
// pool of indivisible token parts is sold for a variable amount of currency,
// contributions are priced and partially refused against a hyperbolic price
// curve while the sale runs, and once it ends every participant's accounted
// value is converted to tokens at a single retroactive clearing price.
//
// All entry points run as atomic, serialized units: a sale carries one mutex,
// external transfers happen before any state is committed, and a refused
// transfer aborts the operation with no mutation and no observations.
package sale

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/cloudx-io/opensale/core"
	"github.com/cloudx-io/opensale/saleapi"
)

// DefaultEraPeriod is the width of the progress-checkpoint time bucket.
const DefaultEraPeriod = 5 * time.Minute

// DefaultDustLimit returns the minimum acceptable contribution, 5e15 wei.
func DefaultDustLimit() *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(5), uint256.NewInt(1e15))
}

// Account is one participant's ledger record: total currency-equivalent value
// accepted (bonus included) and the bonus portion granted. A record with zero
// value does not exist; absence and zero are the same state.
type Account struct {
	Value *uint256.Int
	Bonus *uint256.Int
}

// Config is the immutable construction-time configuration of a sale.
type Config struct {
	// Admin may halt the sale, drain residual funds, and record off-system
	// contributions.
	Admin common.Address

	// Treasury receives accepted currency and drained residue.
	Treasury common.Address

	// Begin is the sale start; the price curve and bonus window are indexed
	// from it.
	Begin time.Time

	// TokenCap is the supply for sale in whole tokens; it is converted to
	// indivisible parts through the curve divisor internally.
	TokenCap uint64

	// Curve overrides the default price curve when its USDWei is set.
	Curve core.PriceCurve

	// BonusPercent and BonusWindow override the default early-contribution
	// bonus schedule when nonzero.
	BonusPercent uint64
	BonusWindow  time.Duration

	// EraPeriod overrides the default checkpoint bucket width when nonzero.
	EraPeriod time.Duration

	// DustLimit overrides the default minimum contribution when non-nil.
	DustLimit *uint256.Int
}

// Dependencies are the external collaborators a sale operates against.
type Dependencies struct {
	Tokens    TokenVendor
	Certifier Certifier
	Accounts  AccountInspector
	Funds     FundMover
	Acks      AcknowledgmentVerifier

	// Sink receives observations; nil discards them.
	Sink Sink

	// Clock defaults to the wall clock.
	Clock clockwork.Clock
}

// Sale is the auction engine aggregate. All mutable state lives behind its
// mutex; nothing is reachable except through its methods.
type Sale struct {
	mu    sync.Mutex
	cfg   Config
	terms core.Terms

	tokens    TokenVendor
	certifier Certifier
	accounts  AccountInspector
	funds     FundMover
	acks      AcknowledgmentVerifier
	sink      Sink
	clock     clockwork.Clock

	ledger         map[common.Address]*Account
	totalReceived  *uint256.Int
	totalAccounted *uint256.Int
	totalFinalised *uint256.Int
	endTime        time.Time
	endPrice       *uint256.Int
	eraIndex       uint64
	halted         bool
	eraPeriod      time.Duration
	dustLimit      *uint256.Int
}

// New validates the configuration, applies defaults, and returns a sale in
// its initial state with the end time projected for an empty ledger.
func New(cfg Config, deps Dependencies) (*Sale, error) {
	if cfg.Admin == (common.Address{}) {
		return nil, errors.New("sale: config missing admin address")
	}
	if cfg.Treasury == (common.Address{}) {
		return nil, errors.New("sale: config missing treasury address")
	}
	if cfg.Begin.IsZero() {
		return nil, errors.New("sale: config missing begin time")
	}
	if cfg.TokenCap == 0 {
		return nil, errors.New("sale: config missing token cap")
	}
	if deps.Tokens == nil || deps.Certifier == nil || deps.Accounts == nil ||
		deps.Funds == nil || deps.Acks == nil {
		return nil, errors.New("sale: missing collaborator dependency")
	}

	curve := cfg.Curve
	if curve.USDWei == nil {
		curve = core.DefaultCurve()
	}
	bonusPercent := cfg.BonusPercent
	if bonusPercent == 0 {
		bonusPercent = core.DefaultBonusPercent
	}
	bonusWindow := cfg.BonusWindow
	if bonusWindow == 0 {
		bonusWindow = core.DefaultBonusWindow
	}
	eraPeriod := cfg.EraPeriod
	if eraPeriod == 0 {
		eraPeriod = DefaultEraPeriod
	}
	dustLimit := cfg.DustLimit
	if dustLimit == nil {
		dustLimit = DefaultDustLimit()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sink := deps.Sink
	if sink == nil {
		sink = discardSink{}
	}

	terms := core.Terms{
		Curve:        curve,
		TokenCap:     new(uint256.Int).Mul(uint256.NewInt(cfg.TokenCap), uint256.NewInt(curve.Divisor)),
		BonusPercent: bonusPercent,
		BonusWindow:  bonusWindow,
	}

	s := &Sale{
		cfg:            cfg,
		terms:          terms,
		tokens:         deps.Tokens,
		certifier:      deps.Certifier,
		accounts:       deps.Accounts,
		funds:          deps.Funds,
		acks:           deps.Acks,
		sink:           sink,
		clock:          clock,
		ledger:         make(map[common.Address]*Account),
		totalReceived:  new(uint256.Int),
		totalAccounted: new(uint256.Int),
		totalFinalised: new(uint256.Int),
		endPrice:       new(uint256.Int),
		eraPeriod:      eraPeriod,
		dustLimit:      dustLimit,
	}
	s.endTime = terms.Curve.EndTime(cfg.Begin, s.totalAccounted, terms.TokenCap)
	return s, nil
}

// Buyin admits a direct contribution of value wei from who, who must present
// a valid acknowledgment signature over the sale statement, be a plain
// account, and be certified. Accepted currency net of any refund is forwarded
// to the treasury and the refund returned, in one atomic disbursement, before
// the ledger is credited. Returns the applied deal.
func (s *Sale) Buyin(who common.Address, value *uint256.Int, sig []byte) (core.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return core.ZeroDeal(), ErrHalted
	}
	now := s.clock.Now()
	if !s.activeAt(now) {
		return core.ZeroDeal(), ErrInactive
	}
	if value.Cmp(s.dustLimit) < 0 {
		return core.ZeroDeal(), ErrBelowDust
	}
	if err := s.acks.Verify(who, sig); err != nil {
		return core.ZeroDeal(), fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !s.accounts.IsBasicAccount(who) {
		return core.ZeroDeal(), ErrContractAccount
	}
	if !s.certifier.Certified(who) {
		return core.ZeroDeal(), ErrNotCertified
	}

	deal := core.ComputeDeal(value, now.Sub(s.cfg.Begin), s.totalAccounted, s.terms)

	// The bonus is phantom: the caller is debited accepted-bonus, which is
	// exactly value-refund.
	received := new(uint256.Int).Sub(value, deal.Refund)
	var payments []Payment
	if received.Sign() > 0 {
		payments = append(payments, Payment{To: s.cfg.Treasury, Amount: new(uint256.Int).Set(received)})
	}
	if deal.Refund.Sign() > 0 {
		payments = append(payments, Payment{To: who, Amount: new(uint256.Int).Set(deal.Refund)})
	}
	if err := s.funds.Disburse(payments); err != nil {
		return core.ZeroDeal(), fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	events := s.creditLocked(now, who, received, deal)
	ev := saleapi.NewObservation(saleapi.KindBuyin, now)
	ev.Buyin = &saleapi.BuyinObservation{
		Who:      who.Hex(),
		Accepted: saleapi.Wei(deal.Accepted),
		Refund:   saleapi.Wei(deal.Refund),
		Price:    saleapi.Wei(deal.Price),
		Bonus:    saleapi.Wei(deal.Bonus),
	}
	s.emit(append(events, ev))

	log.Printf("INFO: buyin accepted: who=%s accepted=%s refund=%s price=%s bonus=%s",
		who.Hex(), deal.Accepted.Dec(), deal.Refund.Dec(), deal.Price.Dec(), deal.Bonus.Dec())
	return deal, nil
}

// Prepay records a contribution of value wei for who that was settled
// off-system; only the administrator may call it. Admission runs exactly as
// for Buyin, but no currency moves, so any deal that would compute a nonzero
// refund is rejected outright rather than silently dropping funds.
func (s *Sale) Prepay(caller, who common.Address, value *uint256.Int, sig []byte) (core.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.cfg.Admin {
		return core.ZeroDeal(), ErrNotAdmin
	}
	if s.halted {
		return core.ZeroDeal(), ErrHalted
	}
	now := s.clock.Now()
	if !s.activeAt(now) {
		return core.ZeroDeal(), ErrInactive
	}
	if value.Cmp(s.dustLimit) < 0 {
		return core.ZeroDeal(), ErrBelowDust
	}
	if err := s.acks.Verify(who, sig); err != nil {
		return core.ZeroDeal(), fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !s.accounts.IsBasicAccount(who) {
		return core.ZeroDeal(), ErrContractAccount
	}
	if !s.certifier.Certified(who) {
		return core.ZeroDeal(), ErrNotCertified
	}

	deal := core.ComputeDeal(value, now.Sub(s.cfg.Begin), s.totalAccounted, s.terms)
	if deal.Refund.Sign() > 0 {
		return core.ZeroDeal(), ErrRefundRequired
	}

	events := s.creditLocked(now, who, value, deal)
	ev := saleapi.NewObservation(saleapi.KindPrepaid, now)
	ev.Prepaid = &saleapi.PrepaidObservation{
		Who:    who.Hex(),
		Amount: saleapi.Wei(value),
		Price:  saleapi.Wei(deal.Price),
		Bonus:  saleapi.Wei(deal.Bonus),
	}
	s.emit(append(events, ev))

	log.Printf("INFO: prepaid buyin recorded: who=%s amount=%s bonus=%s",
		who.Hex(), value.Dec(), deal.Bonus.Dec())
	return deal, nil
}

// Inject credits value wei to who's record without signature, attestation, or
// activity checks; only the administrator may call it. The bonus applies
// unconditionally, regardless of the bonus window: this is a deliberate
// policy divergence from organic buy-in used for backfilling off-system
// sales. Admission clipping does not apply; it is a pure ledger credit.
func (s *Sale) Inject(caller, who common.Address, value *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.cfg.Admin {
		return ErrNotAdmin
	}
	if !s.accounts.IsBasicAccount(who) {
		return ErrContractAccount
	}

	now := s.clock.Now()
	bonus := core.BonusAmount(value, s.terms.BonusPercent)
	credit := core.Deal{
		Accepted: new(uint256.Int).Add(value, bonus),
		Refund:   new(uint256.Int),
		Price:    new(uint256.Int),
		Bonus:    bonus,
	}

	events := s.creditLocked(now, who, value, credit)
	ev := saleapi.NewObservation(saleapi.KindInjected, now)
	ev.Injected = &saleapi.InjectedObservation{
		Who:    who.Hex(),
		Amount: saleapi.Wei(value),
		Bonus:  saleapi.Wei(bonus),
	}
	s.emit(append(events, ev))

	log.Printf("INFO: injected contribution: who=%s amount=%s bonus=%s",
		who.Hex(), value.Dec(), bonus.Dec())
	return nil
}

// Finalise settles one participant after the sale has ended. The first call
// fixes the uniform clearing price totalAccounted/tokenCap for everyone; each
// call converts the participant's value to token parts at that price, deletes
// the record, and requests the external token transfer. Anyone may call it
// for any participant. A second call for the same participant finds no record
// and is rejected with no effect.
func (s *Sale) Finalise(who common.Address) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return nil, ErrHalted
	}
	now := s.clock.Now()
	if now.Before(s.endTime) {
		return nil, ErrNotEnded
	}
	acct, ok := s.ledger[who]
	if !ok {
		return nil, ErrNoContribution
	}

	price := s.endPrice
	first := price.IsZero()
	if first {
		price = new(uint256.Int).Div(s.totalAccounted, s.terms.TokenCap)
		if price.IsZero() {
			// A cap exceeding the accounted wei total truncates the uniform
			// price to zero; clamp to one wei per part so settlement
			// terminates with a fixed price.
			price = uint256.NewInt(1)
		}
	}
	tokens := new(uint256.Int).Div(acct.Value, price)

	if err := s.tokens.Transfer(who, tokens); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	var events []saleapi.Observation
	if first {
		s.endPrice = price
		ev := saleapi.NewObservation(saleapi.KindEnded, now)
		ev.Ended = &saleapi.EndedObservation{Price: saleapi.Wei(price)}
		events = append(events, ev)
		log.Printf("INFO: sale ended with clearing price %s", price.Dec())
	}

	s.totalFinalised.Add(s.totalFinalised, acct.Value)
	delete(s.ledger, who)

	ev := saleapi.NewObservation(saleapi.KindFinalised, now)
	ev.Finalised = &saleapi.FinalisedObservation{Who: who.Hex(), Tokens: tokens.Dec()}
	events = append(events, ev)

	if s.totalFinalised.Eq(s.totalAccounted) {
		ev := saleapi.NewObservation(saleapi.KindRetired, now)
		ev.Retired = &saleapi.RetiredObservation{}
		events = append(events, ev)
		log.Printf("INFO: sale retired: all participants finalised")
	}
	s.emit(events)

	log.Printf("INFO: finalised: who=%s tokens=%s", who.Hex(), tokens.Dec())
	return tokens, nil
}

// SetHalted toggles the administrative kill-switch gating all
// participant-facing operations.
func (s *Sale) SetHalted(caller common.Address, halted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.cfg.Admin {
		return ErrNotAdmin
	}
	s.halted = halted
	log.Printf("INFO: halted=%v", halted)
	return nil
}

// Drain sweeps any residual escrow balance to the treasury, recovering
// truncation remainders and accidental transfers.
func (s *Sale) Drain(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.cfg.Admin {
		return ErrNotAdmin
	}
	bal := s.funds.Balance()
	if bal.Sign() == 0 {
		return nil
	}
	if err := s.funds.Disburse([]Payment{{To: s.cfg.Treasury, Amount: bal}}); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	log.Printf("INFO: drained %s to treasury", bal.Dec())
	return nil
}

// creditLocked applies one accepted contribution to the ledger and totals,
// recomputes the end time, and ticks the era. Callers hold the mutex and have
// already completed every external transfer. Returns the era checkpoint
// observation, if the bucket advanced, carrying the pre-credit totals.
func (s *Sale) creditLocked(now time.Time, who common.Address, received *uint256.Int, deal core.Deal) []saleapi.Observation {
	var events []saleapi.Observation
	if era := s.eraAt(now); era > s.eraIndex {
		ev := saleapi.NewObservation(saleapi.KindTicked, now)
		ev.Ticked = &saleapi.TickedObservation{
			Era:       s.eraIndex,
			Received:  saleapi.Wei(s.totalReceived),
			Accounted: saleapi.Wei(s.totalAccounted),
		}
		events = append(events, ev)
		s.eraIndex = era
	}

	if deal.Accepted.Sign() > 0 {
		acct := s.ledger[who]
		if acct == nil {
			acct = &Account{Value: new(uint256.Int), Bonus: new(uint256.Int)}
			s.ledger[who] = acct
		}
		acct.Value.Add(acct.Value, deal.Accepted)
		acct.Bonus.Add(acct.Bonus, deal.Bonus)
	}
	s.totalReceived.Add(s.totalReceived, received)
	s.totalAccounted.Add(s.totalAccounted, deal.Accepted)
	s.endTime = s.terms.Curve.EndTime(s.cfg.Begin, s.totalAccounted, s.terms.TokenCap)
	return events
}

func (s *Sale) eraAt(now time.Time) uint64 {
	if now.Before(s.cfg.Begin) {
		return 0
	}
	return uint64(now.Sub(s.cfg.Begin) / s.eraPeriod)
}

func (s *Sale) activeAt(now time.Time) bool {
	return !now.Before(s.cfg.Begin) && now.Before(s.endTime)
}

// emit delivers buffered observations for a committed operation. Runs under
// the sale mutex; sinks must not call back into the engine.
func (s *Sale) emit(events []saleapi.Observation) {
	for _, ev := range events {
		s.sink.Observe(ev)
	}
}
