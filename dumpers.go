package pgcore

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/lib/pq/oid"
	"github.com/pgkit/pgcore/codes"
	psqlerr "github.com/pgkit/pgcore/errors"
	"github.com/pgkit/pgcore/pkg/codec"
	"github.com/pgkit/pgcore/pkg/types"
	"github.com/shopspring/decimal"
)

// dumpError reports a host value which cannot be adapted by the resolved
// dumper, a programming error rather than a backend failure.
func dumpError(format string, args ...any) error {
	return psqlerr.WithCode(fmt.Errorf(format, args...), codes.DatatypeMismatch)
}

// intAsWide widens any of the supported integer host types. Values beyond
// the int64 range are reported through the big return value.
func intAsWide(v any) (int64, *big.Int, error) {
	switch i := v.(type) {
	case int:
		return int64(i), nil, nil
	case int8:
		return int64(i), nil, nil
	case int16:
		return int64(i), nil, nil
	case int32:
		return int64(i), nil, nil
	case int64:
		return i, nil, nil
	case uint8:
		return int64(i), nil, nil
	case uint16:
		return int64(i), nil, nil
	case uint32:
		return int64(i), nil, nil
	case uint:
		if uint64(i) > math.MaxInt64 {
			return 0, new(big.Int).SetUint64(uint64(i)), nil
		}

		return int64(i), nil, nil
	case uint64:
		if i > math.MaxInt64 {
			return 0, new(big.Int).SetUint64(i), nil
		}

		return int64(i), nil, nil
	case *big.Int:
		if i.IsInt64() {
			return i.Int64(), nil, nil
		}

		return 0, i, nil
	default:
		return 0, nil, dumpError("cannot adapt %T as an integer", v)
	}
}

// Upgrade classes of the integer dumper, the first three match the byte
// width of the wire type.
const (
	intClassInt2    = 2
	intClassInt4    = 4
	intClassInt8    = 8
	intClassNumeric = 16
)

// intDumper adapts all integer host types, upgrading to the narrowest wire
// type which fits the value: int2, int4, int8 or numeric beyond 64 bits.
type intDumper struct {
	class int
	text  bool
}

func newIntDumper(*Transformer) Dumper {
	return intDumper{class: intClassInt8}
}

func newIntTextDumper(*Transformer) Dumper {
	return intDumper{class: intClassInt8, text: true}
}

func newInt2Dumper(*Transformer) Dumper { return intDumper{class: intClassInt2} }
func newInt4Dumper(*Transformer) Dumper { return intDumper{class: intClassInt4} }
func newInt8Dumper(*Transformer) Dumper { return intDumper{class: intClassInt8} }

func (d intDumper) OID() oid.Oid {
	switch d.class {
	case intClassInt2:
		return oid.T_int2
	case intClassInt4:
		return oid.T_int4
	case intClassNumeric:
		return oid.T_numeric
	default:
		return oid.T_int8
	}
}

func (d intDumper) Format() types.FormatCode {
	if d.text {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func (d intDumper) Key(v any) byte {
	wide, big, err := intAsWide(v)
	if err != nil || big != nil {
		return intClassNumeric
	}

	return byte(codec.IntWidth(wide))
}

func (d intDumper) Upgrade(v any) Dumper {
	return intDumper{class: int(d.Key(v)), text: d.text}
}

func (d intDumper) Dump(buf []byte, v any) ([]byte, error) {
	wide, bigint, err := intAsWide(v)
	if err != nil {
		return nil, err
	}

	if d.text {
		if bigint != nil {
			return append(buf, bigint.String()...), nil
		}

		return codec.AppendIntText(buf, wide), nil
	}

	switch d.class {
	case intClassInt2:
		if wide < math.MinInt16 || wide > math.MaxInt16 {
			return nil, dumpError("%d overflows int2", wide)
		}

		return codec.AppendInt2(buf, int16(wide)), nil
	case intClassInt4:
		if wide < math.MinInt32 || wide > math.MaxInt32 {
			return nil, dumpError("%d overflows int4", wide)
		}

		return codec.AppendInt4(buf, int32(wide)), nil
	case intClassNumeric:
		if bigint == nil {
			bigint = big.NewInt(wide)
		}

		return codec.AppendNumeric(buf, codec.NumericFromBigInt(bigint)), nil
	default:
		if bigint != nil {
			return nil, dumpError("%s overflows int8", bigint)
		}

		return codec.AppendInt8(buf, wide), nil
	}
}

func (d intDumper) Quote(buf []byte, v any) ([]byte, error) {
	wide, bigint, err := intAsWide(v)
	if err != nil {
		return nil, err
	}
	if bigint != nil {
		return append(buf, bigint.String()...), nil
	}

	return codec.AppendIntText(buf, wide), nil
}

type boolDumper struct {
	text bool
}

func newBoolDumper(*Transformer) Dumper     { return boolDumper{} }
func newBoolTextDumper(*Transformer) Dumper { return boolDumper{text: true} }

func (d boolDumper) OID() oid.Oid { return oid.T_bool }

func (d boolDumper) Format() types.FormatCode {
	if d.text {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func (d boolDumper) Dump(buf []byte, v any) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, dumpError("cannot adapt %T as bool", v)
	}

	if d.text {
		return codec.AppendBoolText(buf, b), nil
	}

	return codec.AppendBool(buf, b), nil
}

func (d boolDumper) Quote(buf []byte, v any) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, dumpError("cannot adapt %T as bool", v)
	}
	if b {
		return append(buf, "true"...), nil
	}

	return append(buf, "false"...), nil
}

// floatAsWide widens the float host types.
func floatAsWide(v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	default:
		return 0, dumpError("cannot adapt %T as float", v)
	}
}

type floatDumper struct {
	wide bool
	text bool
}

func newFloat4Dumper(*Transformer) Dumper    { return floatDumper{} }
func newFloat8Dumper(*Transformer) Dumper    { return floatDumper{wide: true} }
func newFloatTextDumper(*Transformer) Dumper { return floatDumper{wide: true, text: true} }

func (d floatDumper) OID() oid.Oid {
	if d.wide {
		return oid.T_float8
	}

	return oid.T_float4
}

func (d floatDumper) Format() types.FormatCode {
	if d.text {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func (d floatDumper) Dump(buf []byte, v any) ([]byte, error) {
	f, err := floatAsWide(v)
	if err != nil {
		return nil, err
	}

	switch {
	case d.text:
		return codec.AppendFloatText(buf, f), nil
	case d.wide:
		return codec.AppendFloat8(buf, f), nil
	default:
		return codec.AppendFloat4(buf, float32(f)), nil
	}
}

func (d floatDumper) Quote(buf []byte, v any) ([]byte, error) {
	f, err := floatAsWide(v)
	if err != nil {
		return nil, err
	}

	// The special values are not valid numeric literals without quotes.
	if math.IsInf(f, 0) || math.IsNaN(f) {
		buf = append(buf, '\'')
		buf = codec.AppendFloatText(buf, f)
		return append(buf, "'::float8"...), nil
	}

	return codec.AppendFloatText(buf, f), nil
}

type stringDumper struct{}

func newStringDumper(*Transformer) Dumper { return stringDumper{} }

func (stringDumper) OID() oid.Oid             { return oid.T_text }
func (stringDumper) Format() types.FormatCode { return types.BinaryFormat }

func (stringDumper) Dump(buf []byte, v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, dumpError("cannot adapt %T as text", v)
	}

	return append(buf, s...), nil
}

type byteaDumper struct {
	text bool
}

func newByteaDumper(*Transformer) Dumper     { return byteaDumper{} }
func newByteaTextDumper(*Transformer) Dumper { return byteaDumper{text: true} }

func (byteaDumper) OID() oid.Oid { return oid.T_bytea }

func (d byteaDumper) Format() types.FormatCode {
	if d.text {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func (d byteaDumper) Dump(buf []byte, v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, dumpError("cannot adapt %T as bytea", v)
	}

	if d.text {
		return codec.AppendByteaText(buf, b), nil
	}

	return append(buf, b...), nil
}

func (d byteaDumper) Quote(buf []byte, v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, dumpError("cannot adapt %T as bytea", v)
	}

	buf = append(buf, '\'')
	buf = codec.AppendByteaText(buf, b)
	return append(buf, "'::bytea"...), nil
}

// numericAsHost accepts both the wrapped Numeric host type and a plain
// decimal value.
func numericAsHost(v any) (codec.Numeric, error) {
	switch n := v.(type) {
	case codec.Numeric:
		return n, nil
	case decimal.Decimal:
		return codec.NumericFromDecimal(n), nil
	default:
		return codec.Numeric{}, dumpError("cannot adapt %T as numeric", v)
	}
}

type numericDumper struct {
	text bool
}

func newNumericDumper(*Transformer) Dumper     { return numericDumper{} }
func newNumericTextDumper(*Transformer) Dumper { return numericDumper{text: true} }

func (numericDumper) OID() oid.Oid { return oid.T_numeric }

func (d numericDumper) Format() types.FormatCode {
	if d.text {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func (d numericDumper) Dump(buf []byte, v any) ([]byte, error) {
	n, err := numericAsHost(v)
	if err != nil {
		return nil, err
	}

	if d.text {
		return codec.AppendNumericText(buf, n), nil
	}

	return codec.AppendNumeric(buf, n), nil
}

func (d numericDumper) Quote(buf []byte, v any) ([]byte, error) {
	n, err := numericAsHost(v)
	if err != nil {
		return nil, err
	}

	if n.Form != codec.Finite {
		buf = append(buf, '\'')
		buf = codec.AppendNumericText(buf, n)
		return append(buf, "'::numeric"...), nil
	}

	return codec.AppendNumericText(buf, n), nil
}

type timestampDumper struct {
	withZone bool
	text     bool
	tr       *Transformer
}

func newTimestampDumper(tr *Transformer) Dumper   { return timestampDumper{tr: tr} }
func newTimestamptzDumper(tr *Transformer) Dumper { return timestampDumper{tr: tr, withZone: true} }

func newTimestamptzTextDumper(tr *Transformer) Dumper {
	return timestampDumper{tr: tr, withZone: true, text: true}
}

func (d timestampDumper) OID() oid.Oid {
	if d.withZone {
		return oid.T_timestamptz
	}

	return oid.T_timestamp
}

func (d timestampDumper) Format() types.FormatCode {
	if d.text {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func (d timestampDumper) Dump(buf []byte, v any) ([]byte, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, dumpError("cannot adapt %T as timestamp", v)
	}

	if d.text {
		style, order := d.tr.dateStyle()
		return codec.AppendTimestampText(buf, t, style, order, d.withZone), nil
	}

	return codec.AppendTimestamp(buf, t), nil
}

func (d timestampDumper) Quote(buf []byte, v any) ([]byte, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, dumpError("cannot adapt %T as timestamp", v)
	}

	style, order := d.tr.dateStyle()
	buf = append(buf, '\'')
	buf = codec.AppendTimestampText(buf, t, style, order, d.withZone)
	if d.withZone {
		return append(buf, "'::timestamptz"...), nil
	}

	return append(buf, "'::timestamp"...), nil
}

type dateDumper struct {
	text bool
	tr   *Transformer
}

func newDateDumper(tr *Transformer) Dumper     { return dateDumper{tr: tr} }
func newDateTextDumper(tr *Transformer) Dumper { return dateDumper{tr: tr, text: true} }

func (dateDumper) OID() oid.Oid { return oid.T_date }

func (d dateDumper) Format() types.FormatCode {
	if d.text {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func dateAsTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case Date:
		return t.Time, nil
	case time.Time:
		return t, nil
	default:
		return time.Time{}, dumpError("cannot adapt %T as date", v)
	}
}

func (d dateDumper) Dump(buf []byte, v any) ([]byte, error) {
	t, err := dateAsTime(v)
	if err != nil {
		return nil, err
	}

	if d.text {
		style, order := d.tr.dateStyle()
		return codec.AppendDateText(buf, t, style, order), nil
	}

	return codec.AppendDate(buf, t), nil
}

func (d dateDumper) Quote(buf []byte, v any) ([]byte, error) {
	t, err := dateAsTime(v)
	if err != nil {
		return nil, err
	}

	style, order := d.tr.dateStyle()
	buf = append(buf, '\'')
	buf = codec.AppendDateText(buf, t, style, order)
	return append(buf, "'::date"...), nil
}

// intervalAsHost accepts both the wire shaped Interval host type and a
// plain duration, which carries no calendar components.
func intervalAsHost(v any) (codec.Interval, error) {
	switch i := v.(type) {
	case codec.Interval:
		return i, nil
	case time.Duration:
		return codec.Interval{Micros: i.Microseconds()}, nil
	default:
		return codec.Interval{}, dumpError("cannot adapt %T as interval", v)
	}
}

type intervalDumper struct {
	text bool
}

func newIntervalDumper(*Transformer) Dumper     { return intervalDumper{} }
func newIntervalTextDumper(*Transformer) Dumper { return intervalDumper{text: true} }

func (intervalDumper) OID() oid.Oid { return oid.T_interval }

func (d intervalDumper) Format() types.FormatCode {
	if d.text {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func (d intervalDumper) Dump(buf []byte, v any) ([]byte, error) {
	i, err := intervalAsHost(v)
	if err != nil {
		return nil, err
	}

	if d.text {
		return codec.AppendIntervalText(buf, i), nil
	}

	return codec.AppendInterval(buf, i), nil
}

func (d intervalDumper) Quote(buf []byte, v any) ([]byte, error) {
	i, err := intervalAsHost(v)
	if err != nil {
		return nil, err
	}

	buf = append(buf, '\'')
	buf = codec.AppendIntervalText(buf, i)
	return append(buf, "'::interval"...), nil
}

// arrayDumper adapts a typed slice as a one-dimensional array with a fixed
// element type.
type arrayDumper struct {
	tr   *Transformer
	arr  oid.Oid
	elem oid.Oid
}

func newArrayDumper(arr, elem oid.Oid) DumperFn {
	return func(tr *Transformer) Dumper {
		return arrayDumper{tr: tr, arr: arr, elem: elem}
	}
}

func (d arrayDumper) OID() oid.Oid             { return d.arr }
func (d arrayDumper) Format() types.FormatCode { return types.BinaryFormat }

func (d arrayDumper) Dump(buf []byte, v any) ([]byte, error) {
	elems, err := d.dumpElems(v)
	if err != nil {
		return nil, err
	}

	arr := codec.Array{
		Dims:    []codec.ArrayDim{{Length: int32(len(elems)), LowerBound: 1}},
		ElemOID: uint32(d.elem),
		Elems:   elems,
	}

	return codec.AppendArray(buf, arr), nil
}

func (d arrayDumper) dumpElems(v any) ([][]byte, error) {
	dumper, err := d.tr.GetDumperByOID(d.elem, types.BinaryFormat)
	if err != nil {
		return nil, err
	}

	var values []any
	switch slice := v.(type) {
	case []int16:
		values = genericSlice(slice)
	case []int32:
		values = genericSlice(slice)
	case []int64:
		values = genericSlice(slice)
	case []float32:
		values = genericSlice(slice)
	case []float64:
		values = genericSlice(slice)
	case []string:
		values = genericSlice(slice)
	case []bool:
		values = genericSlice(slice)
	case []time.Time:
		values = genericSlice(slice)
	case []any:
		values = slice
	default:
		return nil, dumpError("cannot adapt %T as array", v)
	}

	elems := make([][]byte, len(values))
	for i, value := range values {
		if value == nil {
			continue
		}

		elems[i], err = dumper.Dump(nil, value)
		if err != nil {
			return nil, err
		}

		if elems[i] == nil {
			elems[i] = []byte{}
		}
	}

	return elems, nil
}

func genericSlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}

	return out
}

// anyArrayDumper adapts a []any as an array, inferring the element type
// from the first non-nil element.
type anyArrayDumper struct {
	tr *Transformer
}

func newAnyArrayDumper(tr *Transformer) Dumper { return anyArrayDumper{tr: tr} }

func (anyArrayDumper) OID() oid.Oid             { return oid.T__text }
func (anyArrayDumper) Format() types.FormatCode { return types.BinaryFormat }

func (d anyArrayDumper) Dump(buf []byte, v any) ([]byte, error) {
	values, ok := v.([]any)
	if !ok {
		return nil, dumpError("cannot adapt %T as array", v)
	}

	elemOID := oid.T_text
	for _, value := range values {
		if value == nil {
			continue
		}

		dumper, err := d.tr.GetDumper(value, FormatBinary)
		if err != nil {
			return nil, err
		}

		elemOID = dumper.OID()
		break
	}

	arrOID, has := elemToArrayOIDs[elemOID]
	if !has {
		return nil, dumpError("no array type known for element oid %d", elemOID)
	}

	inner := arrayDumper{tr: d.tr, arr: arrOID, elem: elemOID}
	return inner.Dump(buf, values)
}

// rangeDumper adapts a RangeValue. The wire type follows the range oid
// carried by the value, resolved through the upgrade mechanism so every
// range type gets its own cached dumper.
type rangeDumper struct {
	tr *Transformer
	id oid.Oid
}

func newRangeDumper(tr *Transformer) Dumper { return rangeDumper{tr: tr} }

func (d rangeDumper) OID() oid.Oid             { return d.id }
func (d rangeDumper) Format() types.FormatCode { return types.BinaryFormat }

func (d rangeDumper) Key(v any) byte {
	rv, ok := v.(RangeValue)
	if !ok {
		return 0
	}

	return rangeOIDKeys[rv.OID]
}

func (d rangeDumper) Upgrade(v any) Dumper {
	rv, ok := v.(RangeValue)
	if !ok {
		return d
	}

	return rangeDumper{tr: d.tr, id: rv.OID}
}

func (d rangeDumper) Dump(buf []byte, v any) ([]byte, error) {
	rv, ok := v.(RangeValue)
	if !ok {
		return nil, dumpError("cannot adapt %T as range", v)
	}

	elemOID, has := rangeElemOIDs[rv.OID]
	if !has {
		return nil, dumpError("unsupported range oid %d", rv.OID)
	}

	wire := codec.Range{
		Empty:    rv.Empty,
		LowerInc: rv.LowerInc,
		UpperInc: rv.UpperInc,
		LowerInf: rv.LowerInf,
		UpperInf: rv.UpperInf,
	}

	if !rv.Empty {
		dumper, err := d.tr.GetDumperByOID(elemOID, types.BinaryFormat)
		if err != nil {
			return nil, err
		}

		if !rv.LowerInf {
			wire.Lower, err = dumper.Dump(nil, rv.Lower)
			if err != nil {
				return nil, err
			}
			wire.HasLower = true
		}
		if !rv.UpperInf {
			wire.Upper, err = dumper.Dump(nil, rv.Upper)
			if err != nil {
				return nil, err
			}
			wire.HasUpper = true
		}
	}

	return codec.AppendRange(buf, wire), nil
}

// compositeDumper adapts a Composite as an anonymous record.
type compositeDumper struct {
	tr *Transformer
}

func newCompositeDumper(tr *Transformer) Dumper { return compositeDumper{tr: tr} }

func (compositeDumper) OID() oid.Oid             { return oid.T_record }
func (compositeDumper) Format() types.FormatCode { return types.BinaryFormat }

func (d compositeDumper) Dump(buf []byte, v any) ([]byte, error) {
	record, ok := v.(Composite)
	if !ok {
		return nil, dumpError("cannot adapt %T as record", v)
	}
	if len(record.Fields) != len(record.FieldOIDs) {
		return nil, dumpError("composite has %d fields but %d field oids", len(record.Fields), len(record.FieldOIDs))
	}

	fields := make([]codec.CompositeField, len(record.Fields))
	for i, value := range record.Fields {
		fields[i].OID = uint32(record.FieldOIDs[i])
		if value == nil {
			continue
		}

		dumper, err := d.tr.GetDumperByOID(record.FieldOIDs[i], types.BinaryFormat)
		if err != nil {
			return nil, err
		}

		fields[i].Data, err = dumper.Dump(nil, value)
		if err != nil {
			return nil, err
		}

		if fields[i].Data == nil {
			fields[i].Data = []byte{}
		}
	}

	return codec.AppendComposite(buf, fields), nil
}
