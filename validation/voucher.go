package validation

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/jonboulle/clockwork"
	"github.com/veraison/go-cose"
)

// voucherClaims is the CBOR payload of a participation voucher.
type voucherClaims struct {
	Participant string `cbor:"participant"`
	NotAfter    int64  `cbor:"not_after"`
}

// IssueVoucher signs a participation voucher for one address as a COSE_Sign1
// envelope. The issuer key is an ES256 (P-256) key; vouchers expire at
// notAfter and are rejected by the certifier afterwards.
func IssueVoucher(issuer *ecdsa.PrivateKey, participant common.Address, notAfter time.Time) ([]byte, error) {
	signer, err := cose.NewSigner(cose.AlgorithmES256, issuer)
	if err != nil {
		return nil, fmt.Errorf("voucher: create signer: %w", err)
	}

	payload, err := cbor.Marshal(voucherClaims{
		Participant: participant.Hex(),
		NotAfter:    notAfter.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("voucher: encode claims: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("voucher: sign: %w", err)
	}

	raw, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("voucher: encode envelope: %w", err)
	}
	return raw, nil
}

// VoucherCertifier approves participants who have registered a valid,
// unexpired voucher signed by the trusted issuer. It implements the sale
// engine's Certifier port.
type VoucherCertifier struct {
	mu       sync.Mutex
	verifier cose.Verifier
	clock    clockwork.Clock
	approved map[common.Address]time.Time
}

// NewVoucherCertifier returns a certifier trusting vouchers signed by the
// given issuer key. A nil clock selects the wall clock.
func NewVoucherCertifier(issuer *ecdsa.PublicKey, clock clockwork.Clock) (*VoucherCertifier, error) {
	verifier, err := cose.NewVerifier(cose.AlgorithmES256, issuer)
	if err != nil {
		return nil, fmt.Errorf("voucher: create verifier: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &VoucherCertifier{
		verifier: verifier,
		clock:    clock,
		approved: make(map[common.Address]time.Time),
	}, nil
}

// Register verifies a voucher envelope and records its participant as
// approved until the voucher expires. Returns the approved address.
func (c *VoucherCertifier) Register(raw []byte) (common.Address, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(raw); err != nil {
		return common.Address{}, fmt.Errorf("voucher: decode envelope: %w", err)
	}
	if err := msg.Verify(nil, c.verifier); err != nil {
		return common.Address{}, fmt.Errorf("voucher: verify signature: %w", err)
	}

	var claims voucherClaims
	if err := cbor.Unmarshal(msg.Payload, &claims); err != nil {
		return common.Address{}, fmt.Errorf("voucher: decode claims: %w", err)
	}
	if !common.IsHexAddress(claims.Participant) {
		return common.Address{}, fmt.Errorf("voucher: invalid participant address %q", claims.Participant)
	}
	notAfter := time.Unix(claims.NotAfter, 0)
	if !c.clock.Now().Before(notAfter) {
		return common.Address{}, fmt.Errorf("voucher: expired at %s", notAfter.UTC().Format(time.RFC3339))
	}

	who := common.HexToAddress(claims.Participant)
	c.mu.Lock()
	defer c.mu.Unlock()
	// Keep the later expiry if a voucher was registered twice.
	if existing, ok := c.approved[who]; !ok || notAfter.After(existing) {
		c.approved[who] = notAfter
	}
	return who, nil
}

// Certified reports whether the address holds an unexpired registered
// voucher.
func (c *VoucherCertifier) Certified(who common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	notAfter, ok := c.approved[who]
	return ok && c.clock.Now().Before(notAfter)
}
