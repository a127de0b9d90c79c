package sale

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MemoryVault is an in-memory FundMover: a single escrow pool with a balance
// per payee. Suitable for tests and local runs; a production deployment wires
// a transactional payment backend instead.
type MemoryVault struct {
	mu      sync.Mutex
	balance *uint256.Int
	paid    map[common.Address]*uint256.Int
}

// NewMemoryVault returns an empty vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		balance: new(uint256.Int),
		paid:    make(map[common.Address]*uint256.Int),
	}
}

// Credit adds escrowed currency to the pool, modeling an inbound payment.
func (v *MemoryVault) Credit(amount *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance.Add(v.balance, amount)
}

// Disburse applies all payments or none.
func (v *MemoryVault) Disburse(payments []Payment) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	total := new(uint256.Int)
	for _, p := range payments {
		total.Add(total, p.Amount)
	}
	if total.Cmp(v.balance) > 0 {
		return fmt.Errorf("vault: insufficient balance: have %s, need %s", v.balance.Dec(), total.Dec())
	}
	for _, p := range payments {
		v.balance.Sub(v.balance, p.Amount)
		got := v.paid[p.To]
		if got == nil {
			got = new(uint256.Int)
			v.paid[p.To] = got
		}
		got.Add(got, p.Amount)
	}
	return nil
}

// Balance returns the escrow pool balance.
func (v *MemoryVault) Balance() *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(uint256.Int).Set(v.balance)
}

// Paid returns the cumulative amount disbursed to one payee.
func (v *MemoryVault) Paid(to common.Address) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if got := v.paid[to]; got != nil {
		return new(uint256.Int).Set(got)
	}
	return new(uint256.Int)
}

// MemoryMinter is an in-memory TokenVendor recording minted token parts per
// recipient.
type MemoryMinter struct {
	mu     sync.Mutex
	minted map[common.Address]*uint256.Int
}

// NewMemoryMinter returns an empty minter.
func NewMemoryMinter() *MemoryMinter {
	return &MemoryMinter{minted: make(map[common.Address]*uint256.Int)}
}

// Transfer records parts as minted to the recipient.
func (m *MemoryMinter) Transfer(to common.Address, parts *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	got := m.minted[to]
	if got == nil {
		got = new(uint256.Int)
		m.minted[to] = got
	}
	got.Add(got, parts)
	return nil
}

// Minted returns the cumulative parts minted to one recipient.
func (m *MemoryMinter) Minted(to common.Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if got := m.minted[to]; got != nil {
		return new(uint256.Int).Set(got)
	}
	return new(uint256.Int)
}

// AllowlistCertifier is a Certifier backed by an explicit approval set.
type AllowlistCertifier struct {
	mu       sync.Mutex
	approved map[common.Address]bool
}

// NewAllowlistCertifier returns a certifier approving the given addresses.
func NewAllowlistCertifier(approved ...common.Address) *AllowlistCertifier {
	c := &AllowlistCertifier{approved: make(map[common.Address]bool)}
	for _, who := range approved {
		c.approved[who] = true
	}
	return c
}

// Approve adds an address to the approval set.
func (c *AllowlistCertifier) Approve(who common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approved[who] = true
}

// Certified reports whether the address has been approved.
func (c *AllowlistCertifier) Certified(who common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.approved[who]
}

// BasicAccountRegistry is an AccountInspector that treats every address as a
// plain account unless explicitly marked as contract-controlled.
type BasicAccountRegistry struct {
	mu        sync.Mutex
	contracts map[common.Address]bool
}

// NewBasicAccountRegistry returns a registry with no known contracts.
func NewBasicAccountRegistry() *BasicAccountRegistry {
	return &BasicAccountRegistry{contracts: make(map[common.Address]bool)}
}

// MarkContract flags an address as contract-controlled.
func (r *BasicAccountRegistry) MarkContract(who common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[who] = true
}

// IsBasicAccount reports whether the address is a plain account.
func (r *BasicAccountRegistry) IsBasicAccount(who common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.contracts[who]
}
