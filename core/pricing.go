package core

import (
	"time"

	"github.com/holiman/uint256"
)

// Default curve parameters. Prices are quoted in wei per indivisible token
// part; USD-denominated constants are converted through a fixed USD/wei ratio
// frozen at sale construction.
const (
	// DefaultDivisor is the number of indivisible token parts per whole token.
	DefaultDivisor = 1000

	// DefaultCurveNumerator and DefaultCurveOffset shape the hyperbolic decay;
	// DefaultCurveSubtrahend is the USD amount subtracted so the curve crosses
	// zero instead of flattening above it.
	DefaultCurveNumerator  = 40_000_000
	DefaultCurveOffset     = 80_400
	DefaultCurveSubtrahend = 5
)

// DefaultUSDWei is the fixed wei value of one USD used by the default curve.
func DefaultUSDWei() *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(3226), uint256.NewInt(1e12))
}

// PriceCurve describes the descending price of one indivisible token part as a
// function of elapsed sale time:
//
//	price(elapsed) = (USDWei*Numerator/(elapsed+Offset) - USDWei*Subtrahend) / Divisor
//
// with elapsed in seconds and the result clamped at zero. The curve depends on
// wall-clock time only; accounted funds never feed back into it.
type PriceCurve struct {
	// USDWei is the wei value of one USD, fixed for the life of the sale.
	USDWei *uint256.Int

	// Numerator, Offset and Subtrahend are the hyperbola parameters, with
	// Numerator and Offset in seconds and Subtrahend in USD.
	Numerator  uint64
	Offset     uint64
	Subtrahend uint64

	// Divisor scales whole-token USD pricing down to indivisible parts.
	Divisor uint64
}

// DefaultCurve returns the production curve parameters.
func DefaultCurve() PriceCurve {
	return PriceCurve{
		USDWei:     DefaultUSDWei(),
		Numerator:  DefaultCurveNumerator,
		Offset:     DefaultCurveOffset,
		Subtrahend: DefaultCurveSubtrahend,
		Divisor:    DefaultDivisor,
	}
}

// PriceAt returns the wei cost of one indivisible token part after the given
// elapsed sale time. Returns zero once the curve has decayed through zero;
// callers gate on sale activity separately.
func (c PriceCurve) PriceAt(elapsed time.Duration) *uint256.Int {
	if elapsed < 0 {
		elapsed = 0
	}
	secs := uint64(elapsed / time.Second)

	term := new(uint256.Int).Mul(c.USDWei, uint256.NewInt(c.Numerator))
	term.Div(term, uint256.NewInt(secs+c.Offset))

	sub := new(uint256.Int).Mul(c.USDWei, uint256.NewInt(c.Subtrahend))
	if term.Cmp(sub) <= 0 {
		return new(uint256.Int)
	}
	term.Sub(term, sub)
	return term.Div(term, uint256.NewInt(c.Divisor))
}

// EndTime solves the curve for the moment the token cap is exhausted at the
// prevailing price trajectory: the unique t with
//
//	totalAccounted / price(t-begin) == tokenCap.
//
// It is a pure function of the accounted total and the cap, recomputed from
// scratch after every accepted contribution so the projection never drifts.
// The result is monotonically non-increasing in totalAccounted; with nothing
// accounted it coincides with the moment the curve itself reaches zero.
func (c PriceCurve) EndTime(begin time.Time, totalAccounted, tokenCap *uint256.Int) time.Time {
	// factor = tokenCap*USDWei/Divisor, the wei-denominated cap geometry.
	factor := new(uint256.Int).Mul(tokenCap, c.USDWei)
	factor.Div(factor, uint256.NewInt(c.Divisor))

	den := new(uint256.Int).Mul(factor, uint256.NewInt(c.Subtrahend))
	den.Add(den, totalAccounted)
	if den.IsZero() {
		return begin
	}

	q := new(uint256.Int).Mul(factor, uint256.NewInt(c.Numerator))
	q.Div(q, den)
	if !q.IsUint64() || q.Uint64() <= c.Offset {
		return begin
	}
	return begin.Add(time.Duration(q.Uint64()-c.Offset) * time.Second)
}
