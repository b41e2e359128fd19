package pgcore

import (
	"fmt"
	"reflect"

	"github.com/lib/pq/oid"
	"github.com/pgkit/pgcore/codes"
	psqlerr "github.com/pgkit/pgcore/errors"
	"github.com/pgkit/pgcore/pkg/codec"
	"github.com/pgkit/pgcore/pkg/types"
)

type dumperCacheKey struct {
	t      reflect.Type
	format Format
	class  byte
}

// Transformer adapts host values to wire values and back for one session.
// Resolved converters are cached per host type and per wire type and never
// evicted, resolving a converter is pure lookup after the first value of a
// kind has been seen.
//
// A transformer is bound to its connection for session state such as the
// DateStyle, a transformer without a connection assumes the backend
// defaults. Like the connection it is not safe for concurrent use.
type Transformer struct {
	conn     *Conn
	registry *Registry

	dumpersByType map[dumperCacheKey]Dumper
	dumpersByOID  map[oidFormatKey]Dumper
	loaders       map[oidFormatKey]Loader

	rowLoaders []Loader
	rowColumns Columns
}

// NewTransformer returns a transformer bound to the given connection, which
// may be nil for standalone adaptation against backend defaults.
func NewTransformer(conn *Conn) *Transformer {
	tr := &Transformer{
		conn:          conn,
		dumpersByType: make(map[dumperCacheKey]Dumper),
		dumpersByOID:  make(map[oidFormatKey]Dumper),
		loaders:       make(map[oidFormatKey]Loader),
	}

	if conn != nil {
		tr.registry = conn.registry
	} else {
		tr.registry = DefaultRegistry()
	}

	return tr
}

// dateStyle returns the session date rendering style.
func (tr *Transformer) dateStyle() (codec.DateStyle, codec.DateOrder) {
	if tr.conn == nil {
		return codec.StyleISO, codec.OrderMDY
	}

	return tr.conn.dateStyle, tr.conn.dateOrder
}

// GetDumper resolves the dumper adapting the given value under the
// requested format. The resolution is cached by host type, value dependent
// upgrades are cached by upgrade class.
func (tr *Transformer) GetDumper(v any, format Format) (Dumper, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, psqlerr.WithCode(fmt.Errorf("cannot resolve a dumper for an untyped nil"), codes.IndeterminateDatatype)
	}

	base, has := tr.dumpersByType[dumperCacheKey{t: t, format: format}]
	if !has {
		fn := tr.registry.resolveDumper(t, format)
		if fn == nil {
			err := fmt.Errorf("no dumper registered for %s values in %s format", t, format)
			return nil, psqlerr.WithCode(err, codes.IndeterminateDatatype)
		}

		base = fn(tr)
		tr.dumpersByType[dumperCacheKey{t: t, format: format}] = base
	}

	upgrader, ok := base.(Upgrader)
	if !ok {
		return base, nil
	}

	class := upgrader.Key(v)
	if class == 0 {
		return base, nil
	}

	key := dumperCacheKey{t: t, format: format, class: class}
	dumper, has := tr.dumpersByType[key]
	if !has {
		dumper = upgrader.Upgrade(v)
		tr.dumpersByType[key] = dumper
	}

	return dumper, nil
}

// GetDumperByOID resolves a dumper by target wire type, used when the
// element type of a container is fixed upfront.
func (tr *Transformer) GetDumperByOID(id oid.Oid, format types.FormatCode) (Dumper, error) {
	key := oidFormatKey{id: id, format: format}
	if dumper, has := tr.dumpersByOID[key]; has {
		return dumper, nil
	}

	fn, has := tr.registry.oidDumpers[key]
	if !has {
		err := fmt.Errorf("no dumper registered for oid %d in %s format", id, format)
		return nil, psqlerr.WithCode(err, codes.IndeterminateDatatype)
	}

	dumper := fn(tr)
	tr.dumpersByOID[key] = dumper
	return dumper, nil
}

// GetLoader resolves the loader for an (oid, format) pair. Unknown wire
// types resolve to a fallback which surfaces the raw value: a string in
// text format, a copied byte slice in binary format.
func (tr *Transformer) GetLoader(id oid.Oid, format types.FormatCode) Loader {
	key := oidFormatKey{id: id, format: format}
	if loader, has := tr.loaders[key]; has {
		return loader
	}

	var loader Loader
	if fn, has := tr.registry.loaders[key]; has {
		loader = fn(tr)
	} else {
		loader = rawLoader{text: format == types.TextFormat}
	}

	tr.loaders[key] = loader
	return loader
}

// DumpParameters adapts a parameter list into its wire form. The formats
// slice requests a specific format per parameter, nil requests auto for
// all. A nil parameter travels as NULL with an unspecified type.
func (tr *Transformer) DumpParameters(args []any, formats []Format) (Params, error) {
	params := Params{
		Values:  make([][]byte, len(args)),
		OIDs:    make([]oid.Oid, len(args)),
		Formats: make([]types.FormatCode, len(args)),
	}

	for i, arg := range args {
		format := FormatAuto
		if formats != nil {
			format = formats[i]
		}

		if arg == nil {
			params.Formats[i] = types.TextFormat
			continue
		}

		dumper, err := tr.GetDumper(arg, format)
		if err != nil {
			return Params{}, err
		}

		value, err := dumper.Dump(nil, arg)
		if err != nil {
			return Params{}, fmt.Errorf("adapting parameter %d: %w", i+1, err)
		}

		if value == nil {
			value = []byte{}
		}

		params.Values[i] = value
		params.OIDs[i] = dumper.OID()
		params.Formats[i] = dumper.Format()
	}

	return params, nil
}

// BindColumns pins a loader per column of a row description. The loaders
// stay pinned until the next call, loading many rows of one result resolves
// every converter exactly once.
func (tr *Transformer) BindColumns(columns Columns) {
	tr.rowColumns = columns
	tr.rowLoaders = make([]Loader, len(columns))
	for i, column := range columns {
		tr.rowLoaders[i] = tr.GetLoader(column.Oid, column.Format)
	}
}

// LoadRow converts one row of wire values through the pinned loaders. NULL
// values load as nil.
func (tr *Transformer) LoadRow(values [][]byte) ([]any, error) {
	if len(values) != len(tr.rowLoaders) {
		err := fmt.Errorf("row has %d values but %d columns are bound", len(values), len(tr.rowLoaders))
		return nil, psqlerr.WithCode(err, codes.ProtocolViolation)
	}

	out := make([]any, len(values))
	for i, value := range values {
		if value == nil {
			continue
		}

		loaded, err := tr.rowLoaders[i].Load(value)
		if err != nil {
			return nil, fmt.Errorf("loading column %q: %w", tr.rowColumns[i].Name, err)
		}

		out[i] = loaded
	}

	return out, nil
}

// LoadResult converts every row of a result into host values.
func (tr *Transformer) LoadResult(result *Result) ([][]any, error) {
	tr.BindColumns(result.Columns)

	rows := make([][]any, result.Tuples())
	for i := range rows {
		row, err := tr.LoadRow(result.Row(i))
		if err != nil {
			return nil, err
		}

		rows[i] = row
	}

	return rows, nil
}

// rawLoader surfaces values of unknown wire types unconverted.
type rawLoader struct {
	text bool
}

func (l rawLoader) Load(data []byte) (any, error) {
	if l.text {
		return string(data), nil
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
