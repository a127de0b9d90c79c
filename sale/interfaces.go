package sale

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/cloudx-io/opensale/saleapi"
)

// TokenVendor is the external token-transfer capability: it mints or transfers
// a number of indivisible token parts to a recipient. A returned error aborts
// the whole triggering operation.
type TokenVendor interface {
	Transfer(to common.Address, parts *uint256.Int) error
}

// Certifier is the external identity/attestation capability: it reports
// whether an address is approved to participate.
type Certifier interface {
	Certified(who common.Address) bool
}

// AccountInspector distinguishes plain accounts from contract-controlled ones;
// only plain accounts may participate.
type AccountInspector interface {
	IsBasicAccount(who common.Address) bool
}

// Payment is one outbound currency movement from the sale's escrow.
type Payment struct {
	To     common.Address
	Amount *uint256.Int
}

// FundMover holds and moves the currency escrowed with the sale. Disburse
// must apply all payments or none: the engine relies on that to keep ledger
// mutation and fund movement atomic per operation.
type FundMover interface {
	Disburse(payments []Payment) error
	Balance() *uint256.Int
}

// AcknowledgmentVerifier checks that a participant has signed the sale's fixed
// terms statement. A nil error means the signature recovers to the claimed
// participant.
type AcknowledgmentVerifier interface {
	Verify(who common.Address, sig []byte) error
}

// Sink receives the engine's observations. Observations for an operation are
// delivered only after the operation has committed; implementations must not
// call back into the engine.
type Sink interface {
	Observe(o saleapi.Observation)
}

// discardSink backs sales constructed without a sink.
type discardSink struct{}

func (discardSink) Observe(saleapi.Observation) {}
