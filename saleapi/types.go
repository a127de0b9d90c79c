package saleapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Kind identifies the type of a sale observation.
type Kind string

const (
	KindBuyin     Kind = "buyin"
	KindPrepaid   Kind = "prepaid"
	KindInjected  Kind = "injected"
	KindTicked    Kind = "ticked"
	KindEnded     Kind = "ended"
	KindFinalised Kind = "finalised"
	KindRetired   Kind = "retired"
)

// Observation is the envelope for everything the sale engine reports to
// external monitors. Exactly one payload pointer is set, matching Kind.
// Observations are strictly informational; the engine never consumes them.
type Observation struct {
	ID   string    `json:"id" cbor:"id"`
	Kind Kind      `json:"kind" cbor:"kind"`
	Time time.Time `json:"time" cbor:"time"`

	Buyin     *BuyinObservation     `json:"buyin,omitempty" cbor:"buyin,omitempty"`
	Prepaid   *PrepaidObservation   `json:"prepaid,omitempty" cbor:"prepaid,omitempty"`
	Injected  *InjectedObservation  `json:"injected,omitempty" cbor:"injected,omitempty"`
	Ticked    *TickedObservation    `json:"ticked,omitempty" cbor:"ticked,omitempty"`
	Ended     *EndedObservation     `json:"ended,omitempty" cbor:"ended,omitempty"`
	Finalised *FinalisedObservation `json:"finalised,omitempty" cbor:"finalised,omitempty"`
	Retired   *RetiredObservation   `json:"retired,omitempty" cbor:"retired,omitempty"`
}

// NewObservation builds an envelope with a fresh ID around one payload.
func NewObservation(kind Kind, at time.Time) Observation {
	return Observation{ID: uuid.NewString(), Kind: kind, Time: at}
}

// BuyinObservation reports an accepted direct contribution. Amounts are
// decimal wei strings.
type BuyinObservation struct {
	Who      string `json:"who" cbor:"who"`
	Accepted string `json:"accepted" cbor:"accepted"`
	Refund   string `json:"refund" cbor:"refund"`
	Price    string `json:"price" cbor:"price"`
	Bonus    string `json:"bonus" cbor:"bonus"`
}

// PrepaidObservation reports an admin-recorded contribution settled off-system.
type PrepaidObservation struct {
	Who    string `json:"who" cbor:"who"`
	Amount string `json:"amount" cbor:"amount"`
	Price  string `json:"price" cbor:"price"`
	Bonus  string `json:"bonus" cbor:"bonus"`
}

// InjectedObservation reports a pure ledger credit by the administrator.
type InjectedObservation struct {
	Who    string `json:"who" cbor:"who"`
	Amount string `json:"amount" cbor:"amount"`
	Bonus  string `json:"bonus" cbor:"bonus"`
}

// TickedObservation is the era checkpoint: the era just closed and the global
// totals at the moment the checkpoint was taken.
type TickedObservation struct {
	Era       uint64 `json:"era" cbor:"era"`
	Received  string `json:"received" cbor:"received"`
	Accounted string `json:"accounted" cbor:"accounted"`
}

// EndedObservation reports the sale's transition to the priced state with the
// retroactive uniform clearing price.
type EndedObservation struct {
	Price string `json:"price" cbor:"price"`
}

// FinalisedObservation reports one participant's settlement.
type FinalisedObservation struct {
	Who    string `json:"who" cbor:"who"`
	Tokens string `json:"tokens" cbor:"tokens"`
}

// RetiredObservation reports the terminal state: every participant finalised.
type RetiredObservation struct{}

// Wei renders an amount as a decimal wei string for wire use.
func Wei(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// Ether renders a wei amount as an ether-denominated decimal string, for
// human-facing surfaces only; settlement math never leaves integer wei.
func Ether(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -18).String()
}
