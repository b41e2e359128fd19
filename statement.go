package pgcore

import (
	"github.com/lib/pq/oid"
	"github.com/pgkit/pgcore/pkg/types"
)

// Params carries the fully adapted parameter set of a single statement: the
// wire values with nil for NULL, the declared parameter oids and the format
// code of every value. All three slices share the same length.
type Params struct {
	Values  [][]byte
	OIDs    []oid.Oid
	Formats []types.FormatCode
}

// Statement describes a single extended-protocol round trip: a query with
// adapted parameters and the requested format of the result columns.
type Statement struct {
	Name         string
	Portal       string
	Query        string
	Params       Params
	ResultFormat types.FormatCode
}
