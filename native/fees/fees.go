package fees

import (
	"errors"

	"github.com/holiman/uint256"
)

// BasisPointsDenominator is the number of basis points in 100%.
const BasisPointsDenominator = 10_000

// ErrArithmeticOverflow is returned when a fee computation does not fit the
// 64-bit amount domain.
var ErrArithmeticOverflow = errors.New("fees: arithmetic overflow")

var denominator = uint256.NewInt(BasisPointsDenominator)

// Fee returns floor(amount * bps / 10000). The product is computed in 256-bit
// precision so only a result that itself exceeds 64 bits overflows, which can
// happen when bps is above 10000.
func Fee(amount uint64, bps uint16) (uint64, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	quotient := product.Div(product, denominator)
	if !quotient.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return quotient.Uint64(), nil
}

// TotalFee returns Fee(amount, bps) + fixed.
func TotalFee(amount uint64, bps uint16, fixed uint64) (uint64, error) {
	fee, err := Fee(amount, bps)
	if err != nil {
		return 0, err
	}
	return add(fee, fixed)
}

// TotalWithFee returns amount + TotalFee(amount, bps, fixed).
func TotalWithFee(amount uint64, bps uint16, fixed uint64) (uint64, error) {
	total, err := TotalFee(amount, bps, fixed)
	if err != nil {
		return 0, err
	}
	return add(amount, total)
}

// AmountLessFee returns amount - Fee(amount, bps).
func AmountLessFee(amount uint64, bps uint16) (uint64, error) {
	fee, err := Fee(amount, bps)
	if err != nil {
		return 0, err
	}
	diff, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(amount), uint256.NewInt(fee))
	if underflow {
		return 0, ErrArithmeticOverflow
	}
	return diff.Uint64(), nil
}

func add(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return sum.Uint64(), nil
}

// Schedule is the fee configuration carried by an escrow: a proportional part
// in basis points and a fixed part in base units.
type Schedule struct {
	Bps   uint16
	Fixed uint64
}

// Fee returns the proportional component for amount.
func (s Schedule) Fee(amount uint64) (uint64, error) { return Fee(amount, s.Bps) }

// Total returns the proportional and fixed components combined.
func (s Schedule) Total(amount uint64) (uint64, error) { return TotalFee(amount, s.Bps, s.Fixed) }

// TotalWithAmount returns what the payer must fund for amount.
func (s Schedule) TotalWithAmount(amount uint64) (uint64, error) {
	return TotalWithFee(amount, s.Bps, s.Fixed)
}
