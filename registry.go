package pgcore

import (
	"math/big"
	"reflect"
	"time"

	"github.com/lib/pq/oid"
	"github.com/pgkit/pgcore/pkg/codec"
	"github.com/pgkit/pgcore/pkg/types"
	"github.com/shopspring/decimal"
)

// Dumper converts host values of one type into their wire representation.
// A dumper instance is resolved once per host type and reused for every
// value of that type, it must not keep per-value state.
type Dumper interface {
	// OID returns the parameter type announced to the backend, zero leaves
	// the type unspecified for the backend to infer.
	OID() oid.Oid
	// Format returns the wire format produced by Dump.
	Format() types.FormatCode
	// Dump appends the wire representation of the value to buf.
	Dump(buf []byte, v any) ([]byte, error)
}

// Upgrader is implemented by dumpers whose wire type depends on the actual
// value, such as integers spilling from int2 up to numeric by magnitude.
// Key partitions values into classes, Upgrade returns the dumper for one
// class. Resolved upgrades are cached per class, never per value.
type Upgrader interface {
	Key(v any) byte
	Upgrade(v any) Dumper
}

// Quoter is implemented by dumpers which override the default single-quote
// escaping when a value is rendered as a SQL literal.
type Quoter interface {
	Quote(buf []byte, v any) ([]byte, error)
}

// Loader converts wire values of one (oid, format) pair into host values.
type Loader interface {
	Load(data []byte) (any, error)
}

// DumperFn constructs a dumper bound to the given transformer. Construction
// happens at most once per transformer and host type.
type DumperFn func(tr *Transformer) Dumper

// LoaderFn constructs a loader bound to the given transformer.
type LoaderFn func(tr *Transformer) Loader

type dumperRegKey struct {
	t      reflect.Type
	format Format
}

type oidFormatKey struct {
	id     oid.Oid
	format types.FormatCode
}

// Registry maps host types to dumper constructors and (oid, format) pairs
// to loader constructors. A registry is mutable while it is being composed
// and treated as immutable once a connection adopts it: connections clone
// the registry they are handed, later registrations on the original do not
// leak into live sessions.
type Registry struct {
	dumpers    map[dumperRegKey]DumperFn
	oidDumpers map[oidFormatKey]DumperFn
	loaders    map[oidFormatKey]LoaderFn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		dumpers:    make(map[dumperRegKey]DumperFn),
		oidDumpers: make(map[oidFormatKey]DumperFn),
		loaders:    make(map[oidFormatKey]LoaderFn),
	}
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	for key, fn := range r.dumpers {
		clone.dumpers[key] = fn
	}
	for key, fn := range r.oidDumpers {
		clone.oidDumpers[key] = fn
	}
	for key, fn := range r.loaders {
		clone.loaders[key] = fn
	}

	return clone
}

// RegisterDumper maps a host type to a dumper constructor for the given
// format request. Registering under FormatAuto serves both concrete formats
// unless a more specific registration exists.
func (r *Registry) RegisterDumper(t reflect.Type, format Format, fn DumperFn) {
	r.dumpers[dumperRegKey{t: t, format: format}] = fn
}

// RegisterOIDDumper maps a wire type to a dumper constructor, used when the
// target type is known upfront such as the bounds of a range or the fields
// of a composite.
func (r *Registry) RegisterOIDDumper(id oid.Oid, format types.FormatCode, fn DumperFn) {
	r.oidDumpers[oidFormatKey{id: id, format: format}] = fn
}

// RegisterLoader maps an (oid, format) pair to a loader constructor.
func (r *Registry) RegisterLoader(id oid.Oid, format types.FormatCode, fn LoaderFn) {
	r.loaders[oidFormatKey{id: id, format: format}] = fn
}

// resolveDumper looks up the dumper constructor for a host type. An auto
// request prefers the binary registration and falls back to text.
func (r *Registry) resolveDumper(t reflect.Type, format Format) DumperFn {
	if format == FormatAuto {
		for _, candidate := range []Format{FormatAuto, FormatBinary, FormatText} {
			if fn, has := r.dumpers[dumperRegKey{t: t, format: candidate}]; has {
				return fn
			}
		}

		return nil
	}

	if fn, has := r.dumpers[dumperRegKey{t: t, format: format}]; has {
		return fn
	}

	return r.dumpers[dumperRegKey{t: t, format: FormatAuto}]
}

// DefaultRegistry returns a registry covering the built-in Postgres types.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Integers share one upgrading dumper which picks the narrowest integer
	// type fitting the value, spilling into numeric beyond 64 bits.
	for _, t := range []reflect.Type{
		reflect.TypeOf(int(0)),
		reflect.TypeOf(int8(0)),
		reflect.TypeOf(int16(0)),
		reflect.TypeOf(int32(0)),
		reflect.TypeOf(int64(0)),
		reflect.TypeOf(uint8(0)),
		reflect.TypeOf(uint16(0)),
		reflect.TypeOf(uint32(0)),
	} {
		r.RegisterDumper(t, FormatBinary, newIntDumper)
		r.RegisterDumper(t, FormatText, newIntTextDumper)
	}

	for _, t := range []reflect.Type{
		reflect.TypeOf(uint(0)),
		reflect.TypeOf(uint64(0)),
		reflect.TypeOf((*big.Int)(nil)),
	} {
		r.RegisterDumper(t, FormatBinary, newIntDumper)
		r.RegisterDumper(t, FormatText, newIntTextDumper)
	}

	r.RegisterDumper(reflect.TypeOf(false), FormatBinary, newBoolDumper)
	r.RegisterDumper(reflect.TypeOf(false), FormatText, newBoolTextDumper)

	r.RegisterDumper(reflect.TypeOf(float32(0)), FormatBinary, newFloat4Dumper)
	r.RegisterDumper(reflect.TypeOf(float64(0)), FormatBinary, newFloat8Dumper)
	r.RegisterDumper(reflect.TypeOf(float32(0)), FormatText, newFloatTextDumper)
	r.RegisterDumper(reflect.TypeOf(float64(0)), FormatText, newFloatTextDumper)

	r.RegisterDumper(reflect.TypeOf(""), FormatAuto, newStringDumper)
	r.RegisterDumper(reflect.TypeOf([]byte(nil)), FormatBinary, newByteaDumper)
	r.RegisterDumper(reflect.TypeOf([]byte(nil)), FormatText, newByteaTextDumper)

	r.RegisterDumper(reflect.TypeOf(decimal.Decimal{}), FormatBinary, newNumericDumper)
	r.RegisterDumper(reflect.TypeOf(codec.Numeric{}), FormatBinary, newNumericDumper)
	r.RegisterDumper(reflect.TypeOf(decimal.Decimal{}), FormatText, newNumericTextDumper)
	r.RegisterDumper(reflect.TypeOf(codec.Numeric{}), FormatText, newNumericTextDumper)

	r.RegisterDumper(reflect.TypeOf(time.Time{}), FormatBinary, newTimestamptzDumper)
	r.RegisterDumper(reflect.TypeOf(time.Time{}), FormatText, newTimestamptzTextDumper)
	r.RegisterDumper(reflect.TypeOf(Date{}), FormatBinary, newDateDumper)
	r.RegisterDumper(reflect.TypeOf(Date{}), FormatText, newDateTextDumper)
	r.RegisterDumper(reflect.TypeOf(time.Duration(0)), FormatBinary, newIntervalDumper)
	r.RegisterDumper(reflect.TypeOf(codec.Interval{}), FormatBinary, newIntervalDumper)
	r.RegisterDumper(reflect.TypeOf(time.Duration(0)), FormatText, newIntervalTextDumper)
	r.RegisterDumper(reflect.TypeOf(codec.Interval{}), FormatText, newIntervalTextDumper)

	// Typed slices dump as one-dimensional arrays of their element type.
	r.RegisterDumper(reflect.TypeOf([]int16(nil)), FormatBinary, newArrayDumper(oid.T__int2, oid.T_int2))
	r.RegisterDumper(reflect.TypeOf([]int32(nil)), FormatBinary, newArrayDumper(oid.T__int4, oid.T_int4))
	r.RegisterDumper(reflect.TypeOf([]int64(nil)), FormatBinary, newArrayDumper(oid.T__int8, oid.T_int8))
	r.RegisterDumper(reflect.TypeOf([]float32(nil)), FormatBinary, newArrayDumper(oid.T__float4, oid.T_float4))
	r.RegisterDumper(reflect.TypeOf([]float64(nil)), FormatBinary, newArrayDumper(oid.T__float8, oid.T_float8))
	r.RegisterDumper(reflect.TypeOf([]string(nil)), FormatBinary, newArrayDumper(oid.T__text, oid.T_text))
	r.RegisterDumper(reflect.TypeOf([]bool(nil)), FormatBinary, newArrayDumper(oid.T__bool, oid.T_bool))
	r.RegisterDumper(reflect.TypeOf([]time.Time(nil)), FormatBinary, newArrayDumper(oid.T__timestamptz, oid.T_timestamptz))
	r.RegisterDumper(reflect.TypeOf([]any(nil)), FormatBinary, newAnyArrayDumper)

	r.RegisterDumper(reflect.TypeOf(RangeValue{}), FormatBinary, newRangeDumper)
	r.RegisterDumper(reflect.TypeOf(Composite{}), FormatBinary, newCompositeDumper)

	// Bound and field dumpers resolved by target oid rather than host type.
	r.RegisterOIDDumper(oid.T_bool, types.BinaryFormat, newBoolDumper)
	r.RegisterOIDDumper(oid.T_int2, types.BinaryFormat, newInt2Dumper)
	r.RegisterOIDDumper(oid.T_int4, types.BinaryFormat, newInt4Dumper)
	r.RegisterOIDDumper(oid.T_int8, types.BinaryFormat, newInt8Dumper)
	r.RegisterOIDDumper(oid.T_float4, types.BinaryFormat, newFloat4Dumper)
	r.RegisterOIDDumper(oid.T_float8, types.BinaryFormat, newFloat8Dumper)
	r.RegisterOIDDumper(oid.T_text, types.BinaryFormat, newStringDumper)
	r.RegisterOIDDumper(oid.T_bytea, types.BinaryFormat, newByteaDumper)
	r.RegisterOIDDumper(oid.T_numeric, types.BinaryFormat, newNumericDumper)
	r.RegisterOIDDumper(oid.T_date, types.BinaryFormat, newDateDumper)
	r.RegisterOIDDumper(oid.T_timestamp, types.BinaryFormat, newTimestampDumper)
	r.RegisterOIDDumper(oid.T_timestamptz, types.BinaryFormat, newTimestamptzDumper)
	r.RegisterOIDDumper(oid.T_interval, types.BinaryFormat, newIntervalDumper)

	registerDefaultLoaders(r)
	return r
}
