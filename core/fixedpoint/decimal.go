package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// Scale6 is the implied fractional resolution for point balances.
	Scale6 = 6
	// Scale18 is the wei-like resolution used for token amounts.
	Scale18 = 18
)

var (
	unitScale6 = big.NewInt(1_000_000)
	pow10      = [7]int64{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000}
)

// Dec6 is a signed decimal quantity carried as an integer number of
// millionths. The zero value is usable and equals zero.
type Dec6 struct {
	units *big.Int
}

// FromUnits wraps a raw unit count (millionths). The input is copied.
func FromUnits(units *big.Int) Dec6 {
	if units == nil {
		return Dec6{}
	}
	return Dec6{units: new(big.Int).Set(units)}
}

// FromInt builds a whole-number quantity.
func FromInt(v int64) Dec6 {
	return Dec6{units: new(big.Int).Mul(big.NewInt(v), unitScale6)}
}

// Zero returns the zero quantity.
func Zero() Dec6 {
	return Dec6{}
}

// Units returns a copy of the underlying millionth count.
func (d Dec6) Units() *big.Int {
	if d.units == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(d.units)
}

// Add returns d + other.
func (d Dec6) Add(other Dec6) Dec6 {
	sum := d.Units()
	sum.Add(sum, other.Units())
	return Dec6{units: sum}
}

// Sub returns d - other.
func (d Dec6) Sub(other Dec6) Dec6 {
	diff := d.Units()
	diff.Sub(diff, other.Units())
	return Dec6{units: diff}
}

// Cmp compares d against other with big.Int semantics.
func (d Dec6) Cmp(other Dec6) int {
	return d.Units().Cmp(other.Units())
}

// Sign reports the sign of the quantity.
func (d Dec6) Sign() int {
	if d.units == nil {
		return 0
	}
	return d.units.Sign()
}

// IsZero reports whether the quantity is exactly zero.
func (d Dec6) IsZero() bool {
	return d.Sign() == 0
}

// MulPercent returns d * pct / 100, truncating toward zero.
func (d Dec6) MulPercent(pct uint64) Dec6 {
	units := d.Units()
	units.Mul(units, new(big.Int).SetUint64(pct))
	units.Quo(units, big.NewInt(100))
	return Dec6{units: units}
}

// MulFrac returns d * num / den, truncating toward zero. A zero denominator
// yields zero rather than faulting.
func (d Dec6) MulFrac(num, den int64) Dec6 {
	if den == 0 {
		return Dec6{}
	}
	units := d.Units()
	units.Mul(units, big.NewInt(num))
	units.Quo(units, big.NewInt(den))
	return Dec6{units: units}
}

// String renders the canonical decimal form. Trailing fractional zeros are
// trimmed and whole numbers carry no decimal point.
func (d Dec6) String() string {
	units := d.Units()
	neg := units.Sign() < 0
	if neg {
		units.Neg(units)
	}
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(units, unitScale6, frac)
	out := whole.String()
	if frac.Sign() != 0 {
		digits := fmt.Sprintf("%06d", frac)
		digits = strings.TrimRight(digits, "0")
		out = out + "." + digits
	}
	if neg && (whole.Sign() != 0 || frac.Sign() != 0) {
		out = "-" + out
	}
	return out
}

// ParseDec6 converts decimal text into a Dec6, dropping (not rounding) any
// digits beyond six fractional places. Malformed input yields zero; callers
// that need hard failures use ParseDec6Strict.
func ParseDec6(text string) Dec6 {
	d, err := ParseDec6Strict(text)
	if err != nil {
		return Dec6{}
	}
	return d
}

// ParseDec6Strict converts decimal text into a Dec6 and reports malformed
// input instead of absorbing it.
func ParseDec6Strict(text string) (Dec6, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Dec6{}, fmt.Errorf("fixedpoint: empty input")
	}
	neg := false
	switch trimmed[0] {
	case '-':
		neg = true
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		return Dec6{}, fmt.Errorf("fixedpoint: bare sign")
	}
	wholePart := trimmed
	fracPart := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		wholePart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return Dec6{}, fmt.Errorf("fixedpoint: multiple decimal points")
		}
	}
	if wholePart == "" && fracPart == "" {
		return Dec6{}, fmt.Errorf("fixedpoint: no digits")
	}
	for _, part := range []string{wholePart, fracPart} {
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return Dec6{}, fmt.Errorf("fixedpoint: invalid digit %q", part[i])
			}
		}
	}
	units := new(big.Int)
	if wholePart != "" {
		if _, ok := units.SetString(wholePart, 10); !ok {
			return Dec6{}, fmt.Errorf("fixedpoint: invalid integer part %q", wholePart)
		}
		units.Mul(units, unitScale6)
	}
	if len(fracPart) > Scale6 {
		fracPart = fracPart[:Scale6]
	}
	if fracPart != "" {
		frac := new(big.Int)
		if _, ok := frac.SetString(fracPart, 10); !ok {
			return Dec6{}, fmt.Errorf("fixedpoint: invalid fractional part %q", fracPart)
		}
		frac.Mul(frac, big.NewInt(pow10[Scale6-len(fracPart)]))
		units.Add(units, frac)
	}
	if neg {
		units.Neg(units)
	}
	return Dec6{units: units}, nil
}

// ProportionalSplit allocates floor(weight * pool / totalWeight). A zero or
// nil total weight allocates nothing, matching the protocol's
// no-division-fault contract. Truncation is intentional: the sum of all
// shares can fall below the pool but never exceed it.
func ProportionalSplit(weight, totalWeight, pool *big.Int) *big.Int {
	if weight == nil || totalWeight == nil || pool == nil {
		return big.NewInt(0)
	}
	if totalWeight.Sign() == 0 || weight.Sign() <= 0 || pool.Sign() <= 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(weight, pool)
	share.Quo(share, totalWeight)
	return share
}
