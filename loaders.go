package pgcore

import (
	"time"

	"github.com/lib/pq/oid"
	"github.com/pgkit/pgcore/pkg/codec"
	"github.com/pgkit/pgcore/pkg/types"
)

// registerDefaultLoaders wires the built-in wire types into a registry,
// text and binary format both.
func registerDefaultLoaders(r *Registry) {
	both := func(id oid.Oid, binary, text LoaderFn) {
		r.RegisterLoader(id, types.BinaryFormat, binary)
		r.RegisterLoader(id, types.TextFormat, text)
	}

	both(oid.T_bool, newBoolLoader, newBoolTextLoader)
	both(oid.T_bytea, newByteaLoader, newByteaTextLoader)
	both(oid.T_int2, newIntLoader(2), newIntTextLoader)
	both(oid.T_int4, newIntLoader(4), newIntTextLoader)
	both(oid.T_int8, newIntLoader(8), newIntTextLoader)
	both(oid.T_oid, newOidLoader, newIntTextLoader)
	both(oid.T_float4, newFloat4Loader, newFloatTextLoader)
	both(oid.T_float8, newFloat8Loader, newFloatTextLoader)
	both(oid.T_numeric, newNumericLoader, newNumericTextLoader)

	for _, id := range []oid.Oid{oid.T_text, oid.T_varchar, oid.T_bpchar, oid.T_name, oid.T_unknown} {
		both(id, newTextLoader, newTextLoader)
	}

	both(oid.T_date, newDateLoader, newDateTextLoader)
	both(oid.T_time, newTimeLoader, newTimeTextLoader)
	both(oid.T_timestamp, newTimestampLoader(false), newTimestampTextLoader(false))
	both(oid.T_timestamptz, newTimestampLoader(true), newTimestampTextLoader(true))
	both(oid.T_interval, newIntervalLoader, newIntervalTextLoader)

	arrays := map[oid.Oid]oid.Oid{
		oid.T__bool:        oid.T_bool,
		oid.T__int2:        oid.T_int2,
		oid.T__int4:        oid.T_int4,
		oid.T__int8:        oid.T_int8,
		oid.T__float4:      oid.T_float4,
		oid.T__float8:      oid.T_float8,
		oid.T__text:        oid.T_text,
		oid.T__bytea:       oid.T_bytea,
		oid.T__numeric:     oid.T_numeric,
		oid.T__date:        oid.T_date,
		oid.T__timestamp:   oid.T_timestamp,
		oid.T__timestamptz: oid.T_timestamptz,
		oid.T__interval:    oid.T_interval,
	}
	for arr, elem := range arrays {
		elem := elem
		r.RegisterLoader(arr, types.BinaryFormat, newArrayLoader(elem))
		r.RegisterLoader(arr, types.TextFormat, newArrayTextLoader(elem))
	}

	for id := range rangeElemOIDs {
		id := id
		r.RegisterLoader(id, types.BinaryFormat, newRangeLoader(id))
	}

	r.RegisterLoader(oid.T_record, types.BinaryFormat, newRecordLoader)
}

type loaderFunc func(data []byte) (any, error)

func (fn loaderFunc) Load(data []byte) (any, error) {
	return fn(data)
}

func newBoolLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeBool(data)
	})
}

func newBoolTextLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeBoolText(data)
	})
}

func newByteaLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	})
}

func newByteaTextLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeByteaText(data)
	})
}

// Integers of every width load as int64, mirroring how the dumpers accept
// any integer host type.
func newIntLoader(width int) LoaderFn {
	return func(*Transformer) Loader {
		return loaderFunc(func(data []byte) (any, error) {
			switch width {
			case 2:
				v, err := codec.DecodeInt2(data)
				return int64(v), err
			case 4:
				v, err := codec.DecodeInt4(data)
				return int64(v), err
			default:
				return codec.DecodeInt8(data)
			}
		})
	}
}

func newIntTextLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeIntText(data)
	})
}

func newOidLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		v, err := codec.DecodeUint32(data)
		return int64(v), err
	})
}

func newFloat4Loader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		v, err := codec.DecodeFloat4(data)
		return float64(v), err
	})
}

func newFloat8Loader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeFloat8(data)
	})
}

func newFloatTextLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeFloatText(data)
	})
}

func newNumericLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeNumeric(data)
	})
}

func newNumericTextLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeNumericText(data)
	})
}

func newTextLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return string(data), nil
	})
}

func newDateLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeDate(data)
	})
}

func newDateTextLoader(tr *Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		style, order := tr.dateStyle()
		return codec.DecodeDateText(data, style, order)
	})
}

func newTimeLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeTimeOfDay(data)
	})
}

func newTimeTextLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeTimeOfDayText(string(data))
	})
}

func newTimestampLoader(withZone bool) LoaderFn {
	return func(*Transformer) Loader {
		_ = withZone // binary timestamps are absolute either way
		return loaderFunc(func(data []byte) (any, error) {
			return codec.DecodeTimestamp(data)
		})
	}
}

func newTimestampTextLoader(withZone bool) LoaderFn {
	return func(tr *Transformer) Loader {
		return loaderFunc(func(data []byte) (any, error) {
			style, order := tr.dateStyle()
			loc := time.UTC
			if !withZone {
				loc = time.Local
			}

			return codec.DecodeTimestampText(data, style, order, loc)
		})
	}
}

func newIntervalLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeInterval(data)
	})
}

func newIntervalTextLoader(*Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		return codec.DecodeIntervalText(data)
	})
}

// newArrayLoader loads a binary array into nested []any slices following
// the wire dimensions. Elements convert through the loader of the element
// oid announced on the wire, falling back to the declared element oid for
// backends which announce zero.
func newArrayLoader(elem oid.Oid) LoaderFn {
	return func(tr *Transformer) Loader {
		return loaderFunc(func(data []byte) (any, error) {
			arr, err := codec.DecodeArray(data)
			if err != nil {
				return nil, err
			}

			elemOID := oid.Oid(arr.ElemOID)
			if elemOID == 0 {
				elemOID = elem
			}

			loader := tr.GetLoader(elemOID, types.BinaryFormat)
			values := make([]any, len(arr.Elems))
			for i, raw := range arr.Elems {
				if raw == nil {
					continue
				}

				values[i], err = loader.Load(raw)
				if err != nil {
					return nil, err
				}
			}

			return nestArray(values, arr.Dims), nil
		})
	}
}

// nestArray reshapes a flat, row-major element list into nested slices.
func nestArray(values []any, dims []codec.ArrayDim) []any {
	if len(dims) <= 1 {
		return values
	}

	chunk := chunkSize(dims[1:])
	out := make([]any, 0, dims[0].Length)
	for i := 0; i < int(dims[0].Length); i++ {
		out = append(out, nestArray(values[i*chunk:(i+1)*chunk], dims[1:]))
	}

	return out
}

func chunkSize(dims []codec.ArrayDim) int {
	size := 1
	for _, dim := range dims {
		size *= int(dim.Length)
	}

	return size
}

func newArrayTextLoader(elem oid.Oid) LoaderFn {
	return func(tr *Transformer) Loader {
		return loaderFunc(func(data []byte) (any, error) {
			raw, err := codec.DecodeArrayText(data, ',')
			if err != nil {
				return nil, err
			}

			loader := tr.GetLoader(elem, types.TextFormat)
			return loadNestedText(raw, loader)
		})
	}
}

// loadNestedText converts the nested raw elements of a parsed text array.
func loadNestedText(raw []any, loader Loader) ([]any, error) {
	out := make([]any, len(raw))
	for i, elem := range raw {
		switch v := elem.(type) {
		case nil:
		case []any:
			inner, err := loadNestedText(v, loader)
			if err != nil {
				return nil, err
			}

			out[i] = inner
		case []byte:
			loaded, err := loader.Load(v)
			if err != nil {
				return nil, err
			}

			out[i] = loaded
		}
	}

	return out, nil
}

// newRangeLoader loads a binary range into a RangeValue with converted
// bounds.
func newRangeLoader(id oid.Oid) LoaderFn {
	return func(tr *Transformer) Loader {
		return loaderFunc(func(data []byte) (any, error) {
			wire, err := codec.DecodeRange(data)
			if err != nil {
				return nil, err
			}

			out := RangeValue{
				OID:      id,
				Empty:    wire.Empty,
				LowerInc: wire.LowerInc,
				UpperInc: wire.UpperInc,
				LowerInf: wire.LowerInf,
				UpperInf: wire.UpperInf,
			}

			if wire.Empty {
				return out, nil
			}

			loader := tr.GetLoader(rangeElemOIDs[id], types.BinaryFormat)
			if wire.HasLower {
				out.Lower, err = loader.Load(wire.Lower)
				if err != nil {
					return nil, err
				}
			}
			if wire.HasUpper {
				out.Upper, err = loader.Load(wire.Upper)
				if err != nil {
					return nil, err
				}
			}

			return out, nil
		})
	}
}

// newRecordLoader loads a binary record into a Composite, converting every
// field through the loader of its announced oid.
func newRecordLoader(tr *Transformer) Loader {
	return loaderFunc(func(data []byte) (any, error) {
		fields, err := codec.DecodeComposite(data)
		if err != nil {
			return nil, err
		}

		out := Composite{
			FieldOIDs: make([]oid.Oid, len(fields)),
			Fields:    make([]any, len(fields)),
		}

		for i, field := range fields {
			out.FieldOIDs[i] = oid.Oid(field.OID)
			if field.Data == nil {
				continue
			}

			loader := tr.GetLoader(oid.Oid(field.OID), types.BinaryFormat)
			out.Fields[i], err = loader.Load(field.Data)
			if err != nil {
				return nil, err
			}
		}

		return out, nil
	})
}
