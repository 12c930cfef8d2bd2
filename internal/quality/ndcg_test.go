package quality

import (
	"math"
	"testing"

	"treeval/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDCG_IdealOrder(t *testing.T) {
	m := NewNDCG(0)
	require.NoError(t, m.ConsumeQuery([]float64{3, 2, 1}, [][]float64{{0.9, 0.5, 0.1}}))
	assert.Equal(t, []float64{1.0}, m.Result())
	assert.Equal(t, "NDCG", m.Name())
}

func TestNDCG_ReversedOrder(t *testing.T) {
	m := NewNDCG(0)
	require.NoError(t, m.ConsumeQuery([]float64{3, 2, 1}, [][]float64{{0.1, 0.5, 0.9}}))

	dcg := 1/math.Log2(2) + 2/math.Log2(3) + 3/math.Log2(4)
	idcg := 3/math.Log2(2) + 2/math.Log2(3) + 1/math.Log2(4)
	assert.InDelta(t, dcg/idcg, m.Final(), 1e-12)
}

func TestNDCG_Depth(t *testing.T) {
	m := NewNDCG(1)
	assert.Equal(t, "NDCG@1", m.Name())
	assert.Equal(t, 1, m.Depth())

	// Only the top document counts: label 2 against ideal 3.
	require.NoError(t, m.ConsumeQuery([]float64{3, 2}, [][]float64{{0, 1}}))
	assert.InDelta(t, 2.0/3.0, m.Final(), 1e-12)
}

func TestNDCG_DepthLargerThanQuery(t *testing.T) {
	m := NewNDCG(10)
	require.NoError(t, m.ConsumeQuery([]float64{1, 0}, [][]float64{{1, 0}}))
	assert.Equal(t, 1.0, m.Final())
}

func TestNDCG_AllZeroLabels(t *testing.T) {
	m := NewNDCG(0)
	require.NoError(t, m.ConsumeQuery([]float64{0, 0, 0}, [][]float64{{3, 2, 1}}))
	assert.Equal(t, []float64{0}, m.Result())
}

func TestNDCG_TiesKeepInputOrder(t *testing.T) {
	m := NewNDCG(1)
	// Equal scores: the first document ranks first.
	require.NoError(t, m.ConsumeQuery([]float64{1, 2}, [][]float64{{5, 5}}))
	assert.InDelta(t, 0.5, m.Final(), 1e-12)
}

func TestNDCG_PerGenerationAverage(t *testing.T) {
	m := NewNDCG(0)
	scores := [][]float64{{0.1, 0.9}, {0.9, 0.1}}
	require.NoError(t, m.ConsumeQuery([]float64{1, 0}, scores))
	require.NoError(t, m.ConsumeQuery([]float64{1, 0}, scores))

	res := m.Result()
	require.Len(t, res, 2)
	assert.InDelta(t, 1/math.Log2(3), res[0], 1e-12)
	assert.Equal(t, 1.0, res[1])
	assert.Equal(t, 2, m.Entries())
}

func TestNDCG_RaggedGeneration(t *testing.T) {
	m := NewNDCG(0)
	err := m.ConsumeQuery([]float64{1, 0}, [][]float64{{1}})
	assert.ErrorIs(t, err, common.ErrInvariant)
}
