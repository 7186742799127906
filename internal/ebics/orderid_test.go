package ebics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOrderID_FirstCharIsLetter(t *testing.T) {
	id, err := nextOrderID(0)
	require.NoError(t, err)
	assert.Len(t, id, 6)
	assert.True(t, id[0] >= 'A' && id[0] <= 'Z')
}

func TestNextOrderID_Deterministic(t *testing.T) {
	id1, err := nextOrderID(12345)
	require.NoError(t, err)
	id2, err := nextOrderID(12345)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestNextOrderID_Distinct(t *testing.T) {
	id1, err := nextOrderID(0)
	require.NoError(t, err)
	id2, err := nextOrderID(1)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestNextOrderID_ExhaustedAtUpperBound(t *testing.T) {
	_, err := nextOrderID(maxOrderIDSequence)
	assert.Error(t, err)
}

func TestNextOrderID_RejectsNegative(t *testing.T) {
	_, err := nextOrderID(-1)
	assert.Error(t, err)
}
