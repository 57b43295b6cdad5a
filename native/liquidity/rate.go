package liquidity

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// maxRateBits bounds every stored numerator, denominator and balance so that
// amount*numerator always fits the 256-bit intermediate.
const maxRateBits = 128

// Rate is a rational number expressed as numerator/denominator. It is a plain
// value: copying a Rate copies both components.
type Rate struct {
	Numerator   uint256.Int
	Denominator uint256.Int
}

// NewRate builds a rate from machine integers.
func NewRate(numerator, denominator uint64) Rate {
	var r Rate
	r.Numerator.SetUint64(numerator)
	r.Denominator.SetUint64(denominator)
	return r
}

// ZeroRate is 0/1, the "no effect" value for additive adjustments.
func ZeroRate() Rate { return NewRate(0, 1) }

// OneRate is 1/1, the identity for conversions and limits.
func OneRate() Rate { return NewRate(1, 1) }

// IsZero reports whether applying the rate always yields zero.
func (r Rate) IsZero() bool {
	return r.Numerator.IsZero()
}

// Validate rejects zero denominators and components wider than 128 bits.
func (r Rate) Validate() error {
	if r.Denominator.IsZero() {
		return fmt.Errorf("%w: zero denominator", ErrInvalidRate)
	}
	if r.Numerator.BitLen() > maxRateBits || r.Denominator.BitLen() > maxRateBits {
		return fmt.Errorf("%w: components must fit %d bits", ErrInvalidRate, maxRateBits)
	}
	return nil
}

// Apply returns floor(amount * numerator / denominator). The product is formed
// in 512 bits so it cannot wrap; a zero denominator or a nil amount yields
// zero. Results that do not fit 256 bits are truncated, use ApplyChecked when
// that matters.
func (r Rate) Apply(amount *uint256.Int) *uint256.Int {
	out, _ := r.apply(amount)
	return out
}

// ApplyChecked is Apply that reports a result wider than 256 bits.
func (r Rate) ApplyChecked(amount *uint256.Int) (*uint256.Int, error) {
	out, overflow := r.apply(amount)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out, nil
}

func (r Rate) apply(amount *uint256.Int) (*uint256.Int, bool) {
	if amount == nil || amount.IsZero() || r.Numerator.IsZero() || r.Denominator.IsZero() {
		return new(uint256.Int), false
	}
	return new(uint256.Int).MulDivOverflow(amount, &r.Numerator, &r.Denominator)
}

// Inverse swaps numerator and denominator.
func (r Rate) Inverse() Rate {
	return Rate{Numerator: r.Denominator, Denominator: r.Numerator}
}

// String renders the rate as "numerator/denominator".
func (r Rate) String() string {
	return r.Numerator.Dec() + "/" + r.Denominator.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rate) UnmarshalText(text []byte) error {
	parsed, err := ParseRate(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRate accepts "n/d" or a bare integer "n" (meaning n/1). The format is
// checked; the value is not, so "1/0" parses and fails Validate.
func ParseRate(raw string) (Rate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Rate{}, fmt.Errorf("%w: empty rate", ErrInvalidRate)
	}
	chunks := strings.SplitN(trimmed, "/", 2)
	num, err := uint256.FromDecimal(strings.TrimSpace(chunks[0]))
	if err != nil {
		return Rate{}, fmt.Errorf("%w: numerator %q: %v", ErrInvalidRate, chunks[0], err)
	}
	out := Rate{Numerator: *num}
	if len(chunks) == 1 {
		out.Denominator.SetOne()
		return out, nil
	}
	den, err := uint256.FromDecimal(strings.TrimSpace(chunks[1]))
	if err != nil {
		return Rate{}, fmt.Errorf("%w: denominator %q: %v", ErrInvalidRate, chunks[1], err)
	}
	out.Denominator = *den
	return out, nil
}
