package codec

import (
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompositeRoundtrip verifies the record layout including a NULL field.
func TestCompositeRoundtrip(t *testing.T) {
	t.Parallel()

	in := []CompositeField{
		{OID: uint32(oid.T_int4), Data: AppendInt4(nil, 7)},
		{OID: uint32(oid.T_text), Data: []byte("seven")},
		{OID: uint32(oid.T_bool), Data: nil},
	}

	decoded, err := DecodeComposite(AppendComposite(nil, in))
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	assert.Equal(t, uint32(oid.T_int4), decoded[0].OID)
	assert.Equal(t, []byte("seven"), decoded[1].Data)
	assert.Nil(t, decoded[2].Data)
}

// TestCompositeTruncated verifies truncation is detected rather than read
// past the buffer.
func TestCompositeTruncated(t *testing.T) {
	t.Parallel()

	wire := AppendComposite(nil, []CompositeField{{OID: uint32(oid.T_text), Data: []byte("payload")}})
	_, err := DecodeComposite(wire[:len(wire)-3])
	require.Error(t, err)
}
