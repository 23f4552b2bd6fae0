package eth

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/holiman/uint256"
)

// TokenDecimals is the number of decimals of the tokens handled here, the ERC-20 default.
const TokenDecimals = 18

var ErrInvalidAmount = errors.New("invalid token amount")

var decimalAmount = regexp.MustCompile(`^([0-9]+)(?:\.([0-9]+))?$`)

var unitsPerToken = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(TokenDecimals))

// TokenAmount is a token amount in the smallest unit, i.e. a whole token is 10^18.
// Like ETH, methods return new values and never mutate the receiver.
type TokenAmount uint256.Int

// ParseTokenAmount parses a decimal token amount such as "333" or "1.25" exactly.
// Signs, exponents, separators, more than 18 fractional digits and values
// that do not fit in 256 bits are rejected.
func ParseTokenAmount(s string) (TokenAmount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TokenAmount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	m := decimalAmount.FindStringSubmatch(s)
	if m == nil {
		return TokenAmount{}, fmt.Errorf("%w: %q is not a non-negative decimal number", ErrInvalidAmount, s)
	}
	whole, frac := m[1], m[2]
	if len(frac) > TokenDecimals {
		return TokenAmount{}, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, TokenDecimals)
	}
	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", TokenDecimals-len(frac)), "0")
	if digits == "" {
		return TokenAmount{}, nil
	}
	v, err := uint256.FromDecimal(digits)
	if err != nil {
		return TokenAmount{}, fmt.Errorf("%w: %q does not fit in 256 bits", ErrInvalidAmount, s)
	}
	return TokenAmount(*v), nil
}

// Tokens returns n whole tokens.
func Tokens(n uint64) TokenAmount {
	var x uint256.Int
	x.Mul(uint256.NewInt(n), unitsPerToken)
	return TokenAmount(x)
}

// TokenUnits returns n of the smallest unit.
func TokenUnits(n uint64) TokenAmount {
	return TokenAmount(*uint256.NewInt(n))
}

// TokenAmountFromBig converts a non-negative 256-bit integer, as returned by contract calls.
func TokenAmountFromBig(v *big.Int) (TokenAmount, error) {
	if v == nil || v.Sign() < 0 {
		return TokenAmount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, v)
	}
	var out uint256.Int
	if overflow := out.SetFromBig(v); overflow {
		return TokenAmount{}, fmt.Errorf("%w: %v does not fit in 256 bits", ErrInvalidAmount, v)
	}
	return TokenAmount(out), nil
}

// Decimal renders the amount in whole tokens, without trailing zeroes: "333", "1.5".
func (a TokenAmount) Decimal() string {
	var whole, rem uint256.Int
	whole.DivMod((*uint256.Int)(&a), unitsPerToken, &rem)
	if rem.IsZero() {
		return whole.Dec()
	}
	d := rem.Dec()
	frac := strings.TrimRight(strings.Repeat("0", TokenDecimals-len(d))+d, "0")
	return whole.Dec() + "." + frac
}

func (a TokenAmount) String() string {
	return a.Decimal()
}

// Units renders the amount in the smallest unit.
func (a TokenAmount) Units() string {
	return (*uint256.Int)(&a).Dec()
}

func (a TokenAmount) IsZero() bool {
	return (*uint256.Int)(&a).IsZero()
}

func (a TokenAmount) Lt(v TokenAmount) bool {
	return (*uint256.Int)(&a).Lt((*uint256.Int)(&v))
}

func (a TokenAmount) Cmp(v TokenAmount) int {
	return (*uint256.Int)(&a).Cmp((*uint256.Int)(&v))
}

// ToBig converts to *big.Int, in the smallest unit, for ABI encoding.
func (a TokenAmount) ToBig() *big.Int {
	return (*uint256.Int)(&a).ToBig()
}

// ToU256 returns a clone of the underlying integer.
func (a TokenAmount) ToU256() *uint256.Int {
	return (*uint256.Int)(&a).Clone()
}

// MarshalText encodes the amount in the smallest unit, so stored values round-trip exactly.
func (a TokenAmount) MarshalText() ([]byte, error) {
	return []byte(a.Units()), nil
}

// UnmarshalText decodes an amount in the smallest unit, as produced by MarshalText.
func (a *TokenAmount) UnmarshalText(data []byte) error {
	v, err := uint256.FromDecimal(string(data))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, data)
	}
	*a = TokenAmount(*v)
	return nil
}
