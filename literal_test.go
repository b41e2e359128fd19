package pgcore

import (
	"math"
	"testing"
	"time"

	"github.com/pgkit/pgcore/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAsLiteral verifies quoting, escaping and cast suffixes of standalone
// SQL literals.
func TestAsLiteral(t *testing.T) {
	t.Parallel()

	tr := NewTransformer(nil)

	tests := map[string]struct {
		value any
		want  string
	}{
		"null":          {nil, "NULL"},
		"int":           {int64(42), "42"},
		"negative":      {int64(-42), "-42"},
		"bool":          {true, "true"},
		"float":         {float64(1.5), "1.5"},
		"string":        {"plain", "'plain'"},
		"quote":         {"O'Brien", "'O''Brien'"},
		"backslash":     {`a\b`, `E'a\\b'`},
		"bytea":         {[]byte{0xab, 0xcd}, `'\xabcd'::bytea`},
		"numeric nan":   {codec.Numeric{Form: codec.NaN}, "'NaN'::numeric"},
		"float inf":     {math.Inf(1), "'Infinity'::float8"},
		"timestamp":     {time.Date(2003, 4, 12, 4, 5, 6, 0, time.UTC), "'2003-04-12 04:05:06+00'::timestamptz"},
		"date":          {NewDate(time.Date(2003, 4, 12, 10, 0, 0, 0, time.UTC)), "'2003-04-12'::date"},
		"interval":      {codec.Interval{Days: 2}, "'2 days 00:00:00'::interval"},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tr.AsLiteral(test.value)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}
