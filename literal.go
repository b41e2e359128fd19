package pgcore

import (
	"strings"
)

// AsLiteral renders a host value as a standalone SQL literal, for query
// composition paths which cannot use parameters such as COPY statements or
// DDL. Values quote through the resolved text dumper, types whose literal
// form is ambiguous carry an explicit cast.
func (tr *Transformer) AsLiteral(v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}

	dumper, err := tr.GetDumper(v, FormatText)
	if err != nil {
		return "", err
	}

	if quoter, ok := dumper.(Quoter); ok {
		out, err := quoter.Quote(nil, v)
		if err != nil {
			return "", err
		}

		return string(out), nil
	}

	raw, err := dumper.Dump(nil, v)
	if err != nil {
		return "", err
	}

	return quoteLiteral(string(raw)), nil
}

// quoteLiteral wraps a string in single quotes, doubling embedded quotes.
// Strings containing backslashes use the E'' form so the literal reads the
// same regardless of the standard_conforming_strings setting.
func quoteLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 3)

	escaped := strings.Contains(s, `\`)
	if escaped {
		b.WriteByte('E')
	}

	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(s[i])
		}
	}

	b.WriteByte('\'')
	return b.String()
}
