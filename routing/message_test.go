package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRoundTrip(t *testing.T) {
	buf := MarshalInit(7)
	require.Len(t, buf, 8)
	id, err := ParseInit(buf)
	require.NoError(t, err)
	assert.Equal(t, int32(7), id)
}

func TestCircuitDBRoundTrip(t *testing.T) {
	db := &CircuitDB{Links: []Link{{ID: 1, Cost: 10}, {ID: 4, Cost: 55}}}
	buf := MarshalCircuitDB(db)
	require.Len(t, buf, 24)

	got, err := ParseCircuitDB(buf)
	require.NoError(t, err)
	assert.Equal(t, db.Links, got.Links)
}

func TestLSARoundTrip(t *testing.T) {
	lsa := &LSA{SenderID: 1, SenderLinkID: 2, RouterID: 3, RouterLinkID: 4, RouterLinkCost: 5}
	buf := lsa.Marshal()
	require.Len(t, buf, 24)

	got, err := ParseLSA(buf)
	require.NoError(t, err)
	assert.Equal(t, lsa, got)
}

func TestParseRejectsMalformed(t *testing.T) {
	lsa := &LSA{SenderID: 1, SenderLinkID: 2, RouterID: 3, RouterLinkID: 4, RouterLinkCost: 5}

	_, err := ParseLSA(lsa.Marshal()[:20])
	assert.Error(t, err)

	_, err = ParseLSA(MarshalInit(1))
	assert.Error(t, err)

	_, err = ParseInit(lsa.Marshal())
	assert.Error(t, err)

	// Advertised link count larger than the payload.
	short := MarshalCircuitDB(&CircuitDB{Links: []Link{{ID: 1, Cost: 1}}})
	_, err = ParseCircuitDB(short[:12])
	assert.Error(t, err)

	_, err = MessageType(nil)
	assert.Error(t, err)
}
