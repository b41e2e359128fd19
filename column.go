package pgcore

import (
	"github.com/lib/pq/oid"
	"github.com/pgkit/pgcore/pkg/buffer"
	"github.com/pgkit/pgcore/pkg/types"
)

// Columns represent a collection of columns inside a row description.
type Columns []Column

// Column represents a single column inside a RowDescription message: its
// name, origin, type and the wire format the backend will use for its values.
// https://www.postgresql.org/docs/current/protocol-message-formats.html
type Column struct {
	Table        int32  // table id
	Name         string // column name
	AttrNo       int16  // column attribute no (optional)
	Oid          oid.Oid
	Width        int16
	TypeModifier int32
	Format       types.FormatCode
}

// readColumns parses the body of a RowDescription message.
func readColumns(reader *buffer.Reader) (Columns, error) {
	count, err := reader.GetUint16()
	if err != nil {
		return nil, err
	}

	columns := make(Columns, 0, count)
	for i := uint16(0); i < count; i++ {
		var column Column

		column.Name, err = reader.GetString()
		if err != nil {
			return nil, err
		}

		column.Table, err = reader.GetInt32()
		if err != nil {
			return nil, err
		}

		column.AttrNo, err = reader.GetInt16()
		if err != nil {
			return nil, err
		}

		id, err := reader.GetUint32()
		if err != nil {
			return nil, err
		}
		column.Oid = oid.Oid(id)

		column.Width, err = reader.GetInt16()
		if err != nil {
			return nil, err
		}

		column.TypeModifier, err = reader.GetInt32()
		if err != nil {
			return nil, err
		}

		format, err := reader.GetInt16()
		if err != nil {
			return nil, err
		}
		column.Format = types.FormatCode(format)

		columns = append(columns, column)
	}

	return columns, nil
}
