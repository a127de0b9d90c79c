package sale

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/opensale/core"
	"github.com/cloudx-io/opensale/saleapi"
)

var (
	admin    = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	treasury = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	carol    = common.HexToAddress("0x0000000000000000000000000000000000000b03")
)

// stubAcks accepts every signature, or fails with err when set.
type stubAcks struct {
	err error
}

func (a stubAcks) Verify(common.Address, []byte) error { return a.err }

// failingFunds refuses every disbursement.
type failingFunds struct{}

func (failingFunds) Disburse([]Payment) error { return errors.New("payment backend down") }
func (failingFunds) Balance() *uint256.Int    { return new(uint256.Int) }

// flakyMinter fails transfers while fail is set.
type flakyMinter struct {
	*MemoryMinter
	fail bool
}

func (m *flakyMinter) Transfer(to common.Address, parts *uint256.Int) error {
	if m.fail {
		return errors.New("token backend down")
	}
	return m.MemoryMinter.Transfer(to, parts)
}

type fixture struct {
	sale     *Sale
	vault    *MemoryVault
	minter   *flakyMinter
	cert     *AllowlistCertifier
	registry *BasicAccountRegistry
	acks     *stubAcks
	clock    *clockwork.FakeClock
	ring     *saleapi.Ring
	begin    time.Time
}

// newFixture builds a sale beginning at a fixed instant with the clock parked
// two minutes in, inside the bonus window and the first era.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	begin := time.Unix(1_700_000_000, 0)
	if cfg.Begin.IsZero() {
		cfg.Begin = begin
	}
	if cfg.Admin == (common.Address{}) {
		cfg.Admin = admin
	}
	if cfg.Treasury == (common.Address{}) {
		cfg.Treasury = treasury
	}
	if cfg.TokenCap == 0 {
		cfg.TokenCap = 20_000_000
	}

	f := &fixture{
		vault:    NewMemoryVault(),
		minter:   &flakyMinter{MemoryMinter: NewMemoryMinter()},
		cert:     NewAllowlistCertifier(alice, bob, carol),
		registry: NewBasicAccountRegistry(),
		acks:     &stubAcks{},
		clock:    clockwork.NewFakeClockAt(cfg.Begin.Add(2 * time.Minute)),
		ring:     saleapi.NewRing(64),
		begin:    cfg.Begin,
	}

	s, err := New(cfg, Dependencies{
		Tokens:    f.minter,
		Certifier: f.cert,
		Accounts:  f.registry,
		Funds:     f.vault,
		Acks:      f.acks,
		Sink:      f.ring,
		Clock:     f.clock,
	})
	assert.NoError(t, err)
	f.sale = s
	return f
}

// smallCapConfig gives a sale of exactly 1000 indivisible parts, making
// clipping and settlement arithmetic easy to pin down.
func smallCapConfig() Config {
	curve := core.DefaultCurve()
	curve.Divisor = 1
	return Config{TokenCap: 1000, Curve: curve}
}

// buyin escrows value with the vault and admits it.
func (f *fixture) buyin(who common.Address, value *uint256.Int) (core.Deal, error) {
	f.vault.Credit(value)
	return f.sale.Buyin(who, value, []byte("sig"))
}

func (f *fixture) kinds() []saleapi.Kind {
	tail := f.ring.Tail()
	kinds := make([]saleapi.Kind, len(tail))
	for i, o := range tail {
		kinds[i] = o.Kind
	}
	return kinds
}

func wei(n uint64, unit *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), unit)
}

func TestNew_ValidatesConfig(t *testing.T) {
	deps := Dependencies{
		Tokens:    NewMemoryMinter(),
		Certifier: NewAllowlistCertifier(),
		Accounts:  NewBasicAccountRegistry(),
		Funds:     NewMemoryVault(),
		Acks:      stubAcks{},
	}
	base := Config{
		Admin:    admin,
		Treasury: treasury,
		Begin:    time.Unix(1_700_000_000, 0),
		TokenCap: 1000,
	}

	_, err := New(base, deps)
	check.NoError(t, err)

	for name, mutate := range map[string]func(*Config, *Dependencies){
		"no admin":    func(c *Config, _ *Dependencies) { c.Admin = common.Address{} },
		"no treasury": func(c *Config, _ *Dependencies) { c.Treasury = common.Address{} },
		"no begin":    func(c *Config, _ *Dependencies) { c.Begin = time.Time{} },
		"no cap":      func(c *Config, _ *Dependencies) { c.TokenCap = 0 },
		"no tokens":   func(_ *Config, d *Dependencies) { d.Tokens = nil },
		"no funds":    func(_ *Config, d *Dependencies) { d.Funds = nil },
	} {
		t.Run(name, func(t *testing.T) {
			cfg, d := base, deps
			mutate(&cfg, &d)
			_, err := New(cfg, d)
			check.Error(t, err)
		})
	}
}

func TestBuyin_HappyPathWithBonus(t *testing.T) {
	f := newFixture(t, Config{})
	endBefore := f.sale.EndTime()

	value := uint256.NewInt(1e18)
	deal, err := f.buyin(alice, value)
	assert.NoError(t, err)

	wantBonus := core.BonusAmount(value, core.DefaultBonusPercent)
	check.Equal(t, wantBonus, deal.Bonus)
	check.Equal(t, new(uint256.Int).Add(value, wantBonus), deal.Accepted)
	check.True(t, deal.Refund.IsZero())

	acct, ok := f.sale.Participant(alice)
	assert.True(t, ok)
	check.Equal(t, deal.Accepted, acct.Value)
	check.Equal(t, wantBonus, acct.Bonus)

	st := f.sale.Status()
	check.Equal(t, value, st.TotalReceived)
	check.Equal(t, deal.Accepted, st.TotalAccounted)
	check.True(t, st.TotalFinalised.IsZero())
	check.Equal(t, 1, st.Participants)

	// The genuine currency went to the treasury; bonus was never received.
	check.Equal(t, value, f.vault.Paid(treasury))
	check.True(t, f.vault.Balance().IsZero())

	// Supply filled, so the projected end moved earlier.
	check.True(t, f.sale.EndTime().Before(endBefore))

	check.Equal(t, []saleapi.Kind{saleapi.KindBuyin}, f.kinds())
}

func TestBuyin_DustRejectedBeforePricing(t *testing.T) {
	f := newFixture(t, Config{})

	almost := new(uint256.Int).Sub(DefaultDustLimit(), uint256.NewInt(1))
	_, err := f.buyin(alice, almost)
	check.True(t, errors.Is(err, ErrBelowDust))

	st := f.sale.Status()
	check.True(t, st.TotalReceived.IsZero())
	check.True(t, st.TotalAccounted.IsZero())
	check.Equal(t, 0, st.Participants)
	check.True(t, f.vault.Paid(treasury).IsZero())
	check.Equal(t, 0, len(f.ring.Tail()))
}

func TestBuyin_PreconditionRejections(t *testing.T) {
	value := uint256.NewInt(1e18)

	t.Run("halted", func(t *testing.T) {
		f := newFixture(t, Config{})
		assert.NoError(t, f.sale.SetHalted(admin, true))
		_, err := f.buyin(alice, value)
		check.True(t, errors.Is(err, ErrHalted))
	})

	t.Run("before begin", func(t *testing.T) {
		f := newFixture(t, Config{Begin: time.Unix(1_700_000_000, 0).Add(time.Hour)})
		_, err := f.buyin(alice, value)
		check.True(t, errors.Is(err, ErrInactive))
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.acks.err = errors.New("recovered someone else")
		_, err := f.buyin(alice, value)
		check.True(t, errors.Is(err, ErrBadSignature))
	})

	t.Run("contract caller", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.registry.MarkContract(alice)
		_, err := f.buyin(alice, value)
		check.True(t, errors.Is(err, ErrContractAccount))
	})

	t.Run("uncertified", func(t *testing.T) {
		f := newFixture(t, Config{})
		other := common.HexToAddress("0x0000000000000000000000000000000000000bff")
		f.acks.err = nil
		_, err := f.buyin(other, value)
		check.True(t, errors.Is(err, ErrNotCertified))
	})

	// Every rejection leaves the ledger untouched and emits nothing.
	f := newFixture(t, Config{})
	f.acks.err = errors.New("bad")
	_, _ = f.buyin(alice, value)
	check.True(t, f.sale.Status().TotalAccounted.IsZero())
	check.Equal(t, 0, len(f.ring.Tail()))
}

func TestBuyin_FundTransferFailureRollsBack(t *testing.T) {
	f := newFixture(t, Config{})

	s, err := New(Config{
		Admin:    admin,
		Treasury: treasury,
		Begin:    f.begin,
		TokenCap: 20_000_000,
	}, Dependencies{
		Tokens:    f.minter,
		Certifier: f.cert,
		Accounts:  f.registry,
		Funds:     failingFunds{},
		Acks:      f.acks,
		Sink:      f.ring,
		Clock:     f.clock,
	})
	assert.NoError(t, err)

	_, err = s.Buyin(alice, uint256.NewInt(1e18), []byte("sig"))
	check.True(t, errors.Is(err, ErrTransferFailed))

	st := s.Status()
	check.True(t, st.TotalReceived.IsZero())
	check.True(t, st.TotalAccounted.IsZero())
	check.Equal(t, 0, st.Participants)
	check.Equal(t, 0, len(f.ring.Tail()))
}

func TestBuyin_EndTimeMonotone(t *testing.T) {
	f := newFixture(t, Config{})

	prev := f.sale.EndTime()
	for i := 0; i < 5; i++ {
		_, err := f.buyin(alice, wei(1000, uint256.NewInt(1e18)))
		assert.NoError(t, err)
		end := f.sale.EndTime()
		check.True(t, !end.After(prev))
		prev = end
	}
}

func TestBuyin_ClipsAtSupplyAndRefunds(t *testing.T) {
	f := newFixture(t, smallCapConfig())
	f.clock.Advance(2 * time.Hour) // outside the bonus window
	price := f.sale.CurrentPrice()
	assert.True(t, price.Sign() > 0)

	_, err := f.buyin(alice, wei(999, price))
	assert.NoError(t, err)

	deal, err := f.buyin(bob, wei(10, price))
	assert.NoError(t, err)

	// One part left: accept 1*p, refund 9*p.
	check.Equal(t, price, deal.Accepted)
	check.Equal(t, wei(9, price), deal.Refund)
	check.Equal(t, wei(9, price), f.vault.Paid(bob))

	st := f.sale.Status()
	check.Equal(t, wei(1000, price), st.TotalAccounted)
	// Supply exhausted: the end time collapsed to now and the sale is over.
	check.False(t, f.sale.IsActive())
	_, err = f.buyin(carol, wei(10, price))
	check.True(t, errors.Is(err, ErrInactive))
}

func TestBuyin_EraCheckpoints(t *testing.T) {
	f := newFixture(t, Config{})

	// First buy-in lands in era 0: no checkpoint.
	_, err := f.buyin(alice, uint256.NewInt(1e18))
	assert.NoError(t, err)
	check.Equal(t, []saleapi.Kind{saleapi.KindBuyin}, f.kinds())

	received := f.sale.Status().TotalReceived

	// Two eras later the next admitted operation emits one checkpoint
	// carrying the pre-operation totals and the era index that closed.
	f.clock.Advance(11 * time.Minute)
	_, err = f.buyin(bob, uint256.NewInt(1e18))
	assert.NoError(t, err)

	tail := f.ring.Tail()
	assert.Equal(t, 3, len(tail))
	check.Equal(t, saleapi.KindTicked, tail[1].Kind)
	assert.NotNil(t, tail[1].Ticked)
	check.Equal(t, uint64(0), tail[1].Ticked.Era)
	check.Equal(t, received.Dec(), tail[1].Ticked.Received)
	check.Equal(t, saleapi.KindBuyin, tail[2].Kind)
}

func TestPrepay(t *testing.T) {
	t.Run("admin only", func(t *testing.T) {
		f := newFixture(t, Config{})
		_, err := f.sale.Prepay(alice, alice, uint256.NewInt(1e18), []byte("sig"))
		check.True(t, errors.Is(err, ErrNotAdmin))
	})

	t.Run("records without moving funds", func(t *testing.T) {
		f := newFixture(t, Config{})
		value := uint256.NewInt(1e18)

		deal, err := f.sale.Prepay(admin, alice, value, []byte("sig"))
		assert.NoError(t, err)
		check.True(t, deal.Bonus.Sign() > 0)

		acct, ok := f.sale.Participant(alice)
		assert.True(t, ok)
		check.Equal(t, deal.Accepted, acct.Value)

		st := f.sale.Status()
		check.Equal(t, value, st.TotalReceived)
		check.Equal(t, deal.Accepted, st.TotalAccounted)
		check.True(t, f.vault.Paid(treasury).IsZero())
		check.Equal(t, []saleapi.Kind{saleapi.KindPrepaid}, f.kinds())
	})

	t.Run("rejects any clipping", func(t *testing.T) {
		f := newFixture(t, smallCapConfig())
		f.clock.Advance(2 * time.Hour)
		price := f.sale.CurrentPrice()

		_, err := f.buyin(alice, wei(999, price))
		assert.NoError(t, err)

		before := f.sale.Status()
		_, err = f.sale.Prepay(admin, bob, wei(10, price), []byte("sig"))
		check.True(t, errors.Is(err, ErrRefundRequired))

		after := f.sale.Status()
		check.Equal(t, before.TotalAccounted, after.TotalAccounted)
		_, ok := f.sale.Participant(bob)
		check.False(t, ok)
	})

	t.Run("eligibility checked for the participant", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.registry.MarkContract(alice)
		_, err := f.sale.Prepay(admin, alice, uint256.NewInt(1e18), []byte("sig"))
		check.True(t, errors.Is(err, ErrContractAccount))
	})
}

func TestInject(t *testing.T) {
	t.Run("admin only", func(t *testing.T) {
		f := newFixture(t, Config{})
		err := f.sale.Inject(bob, alice, uint256.NewInt(1e18))
		check.True(t, errors.Is(err, ErrNotAdmin))
	})

	t.Run("bonus applies outside the window", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.clock.Advance(3 * time.Hour)

		value := uint256.NewInt(1e18)
		assert.NoError(t, f.sale.Inject(admin, alice, value))

		wantBonus := core.BonusAmount(value, core.DefaultBonusPercent)
		acct, ok := f.sale.Participant(alice)
		assert.True(t, ok)
		check.Equal(t, new(uint256.Int).Add(value, wantBonus), acct.Value)
		check.Equal(t, wantBonus, acct.Bonus)

		st := f.sale.Status()
		check.Equal(t, value, st.TotalReceived)
	})

	t.Run("works before the sale begins", func(t *testing.T) {
		f := newFixture(t, Config{Begin: time.Unix(1_700_000_000, 0).Add(24 * time.Hour)})
		check.NoError(t, f.sale.Inject(admin, alice, uint256.NewInt(1e18)))
		_, ok := f.sale.Participant(alice)
		check.True(t, ok)
	})

	t.Run("rejects contract recipients", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.registry.MarkContract(alice)
		err := f.sale.Inject(admin, alice, uint256.NewInt(1e18))
		check.True(t, errors.Is(err, ErrContractAccount))
	})
}

func TestFinalise_FullSettlement(t *testing.T) {
	f := newFixture(t, smallCapConfig())
	f.clock.Advance(2 * time.Hour)
	price := f.sale.CurrentPrice()

	_, err := f.buyin(alice, wei(600, price))
	assert.NoError(t, err)
	_, err = f.buyin(bob, wei(300, price))
	assert.NoError(t, err)

	// Not ended yet.
	_, err = f.sale.Finalise(alice)
	check.True(t, errors.Is(err, ErrNotEnded))

	f.clock.Advance(f.sale.EndTime().Sub(f.clock.Now()) + time.Second)

	// First finalisation fixes endPrice = totalAccounted/tokenCap: 900p/1000.
	wantPrice := new(uint256.Int).Div(wei(900, price), uint256.NewInt(1000))
	got, err := f.sale.Finalise(carol)
	check.True(t, errors.Is(err, ErrNoContribution))
	check.Nil(t, got)
	// A rejected trigger does not price the sale.
	check.True(t, f.sale.EndPrice().IsZero())

	aliceTokens, err := f.sale.Finalise(alice)
	assert.NoError(t, err)
	check.Equal(t, wantPrice, f.sale.EndPrice())
	check.Equal(t, new(uint256.Int).Div(wei(600, price), wantPrice), aliceTokens)
	check.Equal(t, aliceTokens, f.minter.Minted(alice))

	// The record is destroyed: a second call is a rejected no-op.
	finalisedAfterAlice := f.sale.Status().TotalFinalised
	_, err = f.sale.Finalise(alice)
	check.True(t, errors.Is(err, ErrNoContribution))
	check.Equal(t, finalisedAfterAlice, f.sale.Status().TotalFinalised)
	check.Equal(t, aliceTokens, f.minter.Minted(alice))

	// The second participant settles at the identical frozen price.
	bobTokens, err := f.sale.Finalise(bob)
	assert.NoError(t, err)
	check.Equal(t, wantPrice, f.sale.EndPrice())
	check.Equal(t, new(uint256.Int).Div(wei(300, price), wantPrice), bobTokens)

	// Terminal state: everything finalised, retirement observed exactly once.
	st := f.sale.Status()
	check.Equal(t, st.TotalAccounted, st.TotalFinalised)
	check.Equal(t, 0, st.Participants)
	check.True(t, f.sale.Retired())

	var retirements, endings int
	for _, o := range f.ring.Tail() {
		switch o.Kind {
		case saleapi.KindRetired:
			retirements++
		case saleapi.KindEnded:
			endings++
		}
	}
	check.Equal(t, 1, retirements)
	check.Equal(t, 1, endings)
}

func TestFinalise_ClampsTruncatedZeroPrice(t *testing.T) {
	f := newFixture(t, smallCapConfig())

	// An accounted total below the cap in parts truncates the uniform price
	// totalAccounted/tokenCap to zero. Only an injection can leave the ledger
	// that small; organic buy-in is floored by the dust limit.
	assert.NoError(t, f.sale.Inject(admin, alice, uint256.NewInt(100)))
	acct, ok := f.sale.Participant(alice)
	assert.True(t, ok)
	check.Equal(t, uint256.NewInt(115), acct.Value)

	f.clock.Advance(f.sale.EndTime().Sub(f.clock.Now()) + time.Second)

	// The price is clamped to one wei per part so settlement terminates.
	tokens, err := f.sale.Finalise(alice)
	assert.NoError(t, err)
	check.Equal(t, uint256.NewInt(1), f.sale.EndPrice())
	check.Equal(t, uint256.NewInt(115), tokens)
	check.Equal(t, tokens, f.minter.Minted(alice))
	check.True(t, f.sale.Retired())
}

func TestFinalise_TokenTransferFailureRollsBack(t *testing.T) {
	f := newFixture(t, smallCapConfig())
	f.clock.Advance(2 * time.Hour)
	price := f.sale.CurrentPrice()

	_, err := f.buyin(alice, wei(600, price))
	assert.NoError(t, err)
	f.clock.Advance(f.sale.EndTime().Sub(f.clock.Now()) + time.Second)

	f.minter.fail = true
	_, err = f.sale.Finalise(alice)
	check.True(t, errors.Is(err, ErrTransferFailed))

	// Nothing committed: no price fixed, record intact, nothing minted.
	check.True(t, f.sale.EndPrice().IsZero())
	_, ok := f.sale.Participant(alice)
	check.True(t, ok)
	check.True(t, f.sale.Status().TotalFinalised.IsZero())

	// A retry after the backend recovers succeeds.
	f.minter.fail = false
	tokens, err := f.sale.Finalise(alice)
	assert.NoError(t, err)
	check.True(t, tokens.Sign() > 0)
}

func TestFinalise_HaltedRejected(t *testing.T) {
	f := newFixture(t, smallCapConfig())
	f.clock.Advance(2 * time.Hour)
	price := f.sale.CurrentPrice()
	_, err := f.buyin(alice, wei(600, price))
	assert.NoError(t, err)
	f.clock.Advance(f.sale.EndTime().Sub(f.clock.Now()) + time.Second)

	assert.NoError(t, f.sale.SetHalted(admin, true))
	_, err = f.sale.Finalise(alice)
	check.True(t, errors.Is(err, ErrHalted))

	assert.NoError(t, f.sale.SetHalted(admin, false))
	_, err = f.sale.Finalise(alice)
	check.NoError(t, err)
}

func TestSetHalted(t *testing.T) {
	f := newFixture(t, Config{})

	check.True(t, errors.Is(f.sale.SetHalted(alice, true), ErrNotAdmin))

	assert.NoError(t, f.sale.SetHalted(admin, true))
	_, err := f.buyin(alice, uint256.NewInt(1e18))
	check.True(t, errors.Is(err, ErrHalted))

	assert.NoError(t, f.sale.SetHalted(admin, false))
	_, err = f.buyin(alice, uint256.NewInt(1e18))
	check.NoError(t, err)
}

func TestDrain(t *testing.T) {
	f := newFixture(t, Config{})

	check.True(t, errors.Is(f.sale.Drain(alice), ErrNotAdmin))

	// An accidental transfer left residue in escrow.
	residue := uint256.NewInt(12345)
	f.vault.Credit(residue)

	assert.NoError(t, f.sale.Drain(admin))
	check.Equal(t, residue, f.vault.Paid(treasury))
	check.True(t, f.vault.Balance().IsZero())

	// Draining an empty escrow is a no-op.
	check.NoError(t, f.sale.Drain(admin))
}

func TestConservation(t *testing.T) {
	// sum(participant.value) == totalAccounted and received <= accounted at
	// every point before finalisation, across all three entry variants.
	f := newFixture(t, Config{})

	_, err := f.buyin(alice, uint256.NewInt(3e18))
	assert.NoError(t, err)
	_, err = f.sale.Prepay(admin, bob, uint256.NewInt(2e18), []byte("sig"))
	assert.NoError(t, err)
	assert.NoError(t, f.sale.Inject(admin, carol, uint256.NewInt(1e18)))
	f.clock.Advance(30 * time.Minute)
	_, err = f.buyin(alice, uint256.NewInt(1e18))
	assert.NoError(t, err)

	st := f.sale.Status()
	sum := new(uint256.Int)
	for _, who := range []common.Address{alice, bob, carol} {
		acct, ok := f.sale.Participant(who)
		assert.True(t, ok)
		sum.Add(sum, acct.Value)
	}
	check.Equal(t, st.TotalAccounted, sum)
	check.True(t, st.TotalReceived.Cmp(st.TotalAccounted) <= 0)
}

func TestViews_InactiveDefaults(t *testing.T) {
	f := newFixture(t, Config{Begin: time.Unix(1_700_000_000, 0).Add(time.Hour)})

	check.False(t, f.sale.IsActive())
	check.True(t, f.sale.CurrentPrice().IsZero())
	check.True(t, f.sale.TokensAvailable().IsZero())
	check.True(t, f.sale.MaxPurchase().IsZero())
	check.True(t, f.sale.Bonus(uint256.NewInt(1e18)).IsZero())
	check.Equal(t, core.ZeroDeal(), f.sale.TheDeal(uint256.NewInt(1e18)))
}

func TestViews_ActiveProjections(t *testing.T) {
	f := newFixture(t, smallCapConfig())
	f.clock.Advance(2 * time.Hour)
	price := f.sale.CurrentPrice()
	assert.True(t, price.Sign() > 0)

	check.Equal(t, uint256.NewInt(1000), f.sale.TokensAvailable())
	check.Equal(t, wei(1000, price), f.sale.MaxPurchase())

	// A max purchase previews as fully accepted.
	deal := f.sale.TheDeal(f.sale.MaxPurchase())
	check.True(t, deal.Refund.IsZero())
	check.Equal(t, wei(1000, price), deal.Accepted)

	// Bonus projection follows the window.
	check.True(t, f.sale.Bonus(uint256.NewInt(100)).IsZero())
}

func TestBonusWindowBoundary(t *testing.T) {
	f := newFixture(t, Config{})

	// One second before the window closes: bonus granted.
	f.clock.Advance(core.DefaultBonusWindow - 2*time.Minute - time.Second)
	deal, err := f.buyin(alice, uint256.NewInt(1e18))
	assert.NoError(t, err)
	check.True(t, deal.Bonus.Sign() > 0)

	// Exactly at the boundary: none.
	f.clock.Advance(time.Second)
	deal, err = f.buyin(bob, uint256.NewInt(1e18))
	assert.NoError(t, err)
	check.True(t, deal.Bonus.IsZero())
}

func TestStatusSnapshot(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.buyin(alice, uint256.NewInt(1e18))
	assert.NoError(t, err)

	st := f.sale.Status()
	check.True(t, st.Active)
	check.False(t, st.Halted)
	check.Equal(t, f.begin, st.Begin)
	check.Equal(t, uint64(0), st.Era)
	check.Equal(t, 1, st.Participants)

	// The snapshot is a copy: mutating it does not reach the sale.
	st.TotalAccounted.SetUint64(0)
	check.False(t, f.sale.Status().TotalAccounted.IsZero())
}

func ExampleSale_TheDeal() {
	begin := time.Unix(1_700_000_000, 0)
	curve := core.DefaultCurve()
	curve.Divisor = 1

	s, _ := New(Config{
		Admin:    admin,
		Treasury: treasury,
		Begin:    begin,
		TokenCap: 1000,
		Curve:    curve,
	}, Dependencies{
		Tokens:    NewMemoryMinter(),
		Certifier: NewAllowlistCertifier(alice),
		Accounts:  NewBasicAccountRegistry(),
		Funds:     NewMemoryVault(),
		Acks:      stubAcks{},
		Clock:     clockwork.NewFakeClockAt(begin.Add(2 * time.Hour)),
	})

	price := s.CurrentPrice()
	deal := s.TheDeal(new(uint256.Int).Mul(uint256.NewInt(10), price))
	fmt.Println(new(uint256.Int).Div(deal.Accepted, price).Uint64(), "parts")
	// Output: 10 parts
}
