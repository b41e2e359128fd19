package codec

import (
	"encoding/binary"
	"math/big"

	"github.com/shopspring/decimal"
)

// NumericForm discriminates the finite and special forms a numeric value can
// take on the wire. NaN and the infinities are encoded inside the sign field
// of the binary header rather than as digits.
type NumericForm int8

const (
	Finite NumericForm = iota
	NaN
	PositiveInfinity
	NegativeInfinity
)

// Numeric is the host representation of the arbitrary precision NUMERIC type.
// The decimal value is only meaningful when the form is Finite.
type Numeric struct {
	Form NumericForm
	Dec  decimal.Decimal
}

// NumericFromDecimal wraps a finite decimal value.
func NumericFromDecimal(d decimal.Decimal) Numeric {
	return Numeric{Form: Finite, Dec: d}
}

// NumericFromInt wraps an integer value.
func NumericFromInt(v int64) Numeric {
	return Numeric{Form: Finite, Dec: decimal.NewFromInt(v)}
}

// NumericFromBigInt wraps an arbitrary precision integer value.
func NumericFromBigInt(v *big.Int) Numeric {
	return Numeric{Form: Finite, Dec: decimal.NewFromBigInt(v, 0)}
}

func (n Numeric) String() string {
	switch n.Form {
	case NaN:
		return "NaN"
	case PositiveInfinity:
		return "Infinity"
	case NegativeInfinity:
		return "-Infinity"
	default:
		return n.Dec.String()
	}
}

// Sign values of the binary numeric header. The special values are encoded
// inside the sign field, they are not a sign bit.
const (
	numericPos  = 0x0000
	numericNeg  = 0x4000
	numericNaN  = 0xC000
	numericPinf = 0xD000
	numericNinf = 0xF000
)

// decDigits is the number of decimal digits stored per base-10000 wire digit.
const decDigits = 4

var (
	bigTenThousand = big.NewInt(10_000)
	bigTen         = big.NewInt(10)
)

func appendNumericHead(buf []byte, ndigits int, weight int, sign uint16, dscale int) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(ndigits))
	buf = binary.BigEndian.AppendUint16(buf, uint16(int16(weight)))
	buf = binary.BigEndian.AppendUint16(buf, sign)
	return binary.BigEndian.AppendUint16(buf, uint16(dscale))
}

// AppendNumeric appends the binary wire representation of the given numeric
// value: a header of (ndigits, weight, sign, dscale) followed by ndigits
// base-10000 digit groups, most significant first.
func AppendNumeric(buf []byte, n Numeric) []byte {
	switch n.Form {
	case NaN:
		return appendNumericHead(buf, 0, 0, numericNaN, 0)
	case PositiveInfinity:
		return appendNumericHead(buf, 0, 0, numericPinf, 0)
	case NegativeInfinity:
		return appendNumericHead(buf, 0, 0, numericNinf, 0)
	}

	coef := new(big.Int).Set(n.Dec.Coefficient())
	exp := int(n.Dec.Exponent())

	sign := uint16(numericPos)
	if coef.Sign() < 0 {
		sign = numericNeg
		coef.Neg(coef)
	}

	// Fold a positive exponent into the coefficient so the value becomes
	// coef * 10^-dscale with dscale >= 0.
	if exp > 0 {
		coef.Mul(coef, new(big.Int).Exp(bigTen, big.NewInt(int64(exp)), nil))
		exp = 0
	}
	dscale := -exp

	if coef.Sign() == 0 {
		return appendNumericHead(buf, 0, 0, sign, dscale)
	}

	// Pad the fractional part to a whole number of base-10000 groups so the
	// group boundary aligns with the decimal point.
	pad := (decDigits - dscale%decDigits) % decDigits
	if pad != 0 {
		coef.Mul(coef, new(big.Int).Exp(bigTen, big.NewInt(int64(pad)), nil))
	}
	fracGroups := (dscale + pad) / decDigits

	var groups []uint16
	rem := new(big.Int)
	for coef.Sign() != 0 {
		coef.DivMod(coef, bigTenThousand, rem)
		groups = append(groups, uint16(rem.Int64()))
	}

	// groups is least significant first at this point.
	ndigits := len(groups)
	weight := ndigits - fracGroups - 1

	// Trailing zero groups (least significant) carry no information.
	trailing := 0
	for trailing < ndigits-1 && groups[trailing] == 0 {
		trailing++
	}

	buf = appendNumericHead(buf, ndigits-trailing, weight, sign, dscale)
	for i := ndigits - 1; i >= trailing; i-- {
		buf = binary.BigEndian.AppendUint16(buf, groups[i])
	}

	return buf
}

// DecodeNumeric decodes the binary wire representation of a numeric value.
// The value is reconstructed exactly at the scale reported by the header, no
// floating point is involved.
func DecodeNumeric(data []byte) (Numeric, error) {
	if len(data) < 8 {
		return Numeric{}, newDecodeErrorf(0, "numeric requires at least 8 bytes, got %d", len(data))
	}

	ndigits := int(binary.BigEndian.Uint16(data[0:2]))
	weight := int(int16(binary.BigEndian.Uint16(data[2:4])))
	sign := binary.BigEndian.Uint16(data[4:6])
	dscale := int(binary.BigEndian.Uint16(data[6:8]))

	switch sign {
	case numericNaN:
		return Numeric{Form: NaN}, nil
	case numericPinf:
		return Numeric{Form: PositiveInfinity}, nil
	case numericNinf:
		return Numeric{Form: NegativeInfinity}, nil
	case numericPos, numericNeg:
	default:
		return Numeric{}, newDecodeErrorf(4, "bad value for numeric sign: 0x%X", sign)
	}

	if len(data) < 8+ndigits*2 {
		return Numeric{}, newDecodeErrorf(8, "numeric digit groups truncated, want %d groups", ndigits)
	}

	acc := new(big.Int)
	for i := 0; i < ndigits; i++ {
		group := binary.BigEndian.Uint16(data[8+i*2 : 10+i*2])
		if group >= 10_000 {
			return Numeric{}, newDecodeErrorf(8+i*2, "numeric digit group out of range: %d", group)
		}
		acc.Mul(acc, bigTenThousand)
		acc.Add(acc, big.NewInt(int64(group)))
	}

	// acc * 10^shift is the value scaled to an integer, shift relative to the
	// least significant stored group.
	shift := decDigits*(weight-ndigits+1) + dscale
	if shift >= 0 {
		if shift > 0 {
			acc.Mul(acc, new(big.Int).Exp(bigTen, big.NewInt(int64(shift)), nil))
		}
	} else {
		// The stored groups carry more precision than dscale. Drop the excess
		// digits, the backend never sends non-zero digits beyond dscale.
		acc.Div(acc, new(big.Int).Exp(bigTen, big.NewInt(int64(-shift)), nil))
	}

	if sign == numericNeg {
		acc.Neg(acc)
	}

	return Numeric{Form: Finite, Dec: decimal.NewFromBigInt(acc, int32(-dscale))}, nil
}

// AppendNumericText appends the text representation of the given numeric
// value. The special values use the spelling expected by the backend.
func AppendNumericText(buf []byte, n Numeric) []byte {
	return append(buf, n.String()...)
}

// DecodeNumericText decodes the text representation of a numeric value.
func DecodeNumericText(data []byte) (Numeric, error) {
	switch string(data) {
	case "NaN":
		return Numeric{Form: NaN}, nil
	case "Infinity":
		return Numeric{Form: PositiveInfinity}, nil
	case "-Infinity":
		return Numeric{Form: NegativeInfinity}, nil
	}

	dec, err := decimal.NewFromString(string(data))
	if err != nil {
		return Numeric{}, newDecodeErrorf(0, "malformed numeric: %q", data)
	}

	return Numeric{Form: Finite, Dec: dec}, nil
}
