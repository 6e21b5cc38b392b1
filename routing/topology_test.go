package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleJSON = `{
	"links": {
		"1": [["1", "2"], "1"],
		"2": [["2", "3"], "2"],
		"3": [["1", "3"], "4"]
	}
}`

func TestParseTopology(t *testing.T) {
	topo, err := ParseTopology([]byte(triangleJSON))
	require.NoError(t, err)

	assert.Equal(t, []int32{1, 2, 3}, topo.Routers())
	assert.Equal(t, TopoLink{ID: 2, Cost: 2, A: 2, B: 3}, topo.Links[2])

	db := topo.CircuitDB(1)
	assert.Equal(t, []Link{{ID: 1, Cost: 1}, {ID: 3, Cost: 4}}, db.Links)

	peer, ok := topo.PeerAcross(1, 1)
	require.True(t, ok)
	assert.Equal(t, int32(2), peer)
	peer, ok = topo.PeerAcross(3, 2)
	require.True(t, ok)
	assert.Equal(t, int32(2), peer)

	// Link 2 does not touch router 1.
	_, ok = topo.PeerAcross(1, 2)
	assert.False(t, ok)
	_, ok = topo.PeerAcross(1, 99)
	assert.False(t, ok)
}

func TestParseTopologyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"empty", `{"links": {}}`},
		{"self link", `{"links": {"1": [["1", "1"], "5"]}}`},
		{"two links between one pair", `{
			"links": {
				"1": [["1", "2"], "5"],
				"2": [["2", "1"], "7"]
			}
		}`},
		{"partitioned", `{
			"links": {
				"1": [["1", "2"], "5"],
				"2": [["3", "4"], "7"]
			}
		}`},
		{"bad cost", `{"links": {"1": [["1", "2"], "cheap"]}}`},
		{"bad shape", `{"links": {"1": ["1", "2"]}}`},
		{"not json", `links`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTopology([]byte(tc.json))
			assert.Error(t, err)
		})
	}
}
