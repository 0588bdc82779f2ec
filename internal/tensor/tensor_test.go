package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlice_ShapeMismatch(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, Shape{2, 2})
	require.Error(t, err)

	_, err = FromSlice([]float64{1}, Shape{0})
	require.Error(t, err)
}

func TestShape_Rows(t *testing.T) {
	assert.Equal(t, 1, Shape{}.Rows())
	assert.Equal(t, 4, Shape{4, 3}.Rows())
	assert.Equal(t, 3, Shape{4, 3}.RowSize())
	assert.Equal(t, 6, Shape{4, 3, 2}.RowSize())
	assert.Equal(t, Shape{2, 3}, Shape{4, 3}.WithRows(2))
}

func TestTensor_SliceAndGather(t *testing.T) {
	x := MustFromSlice([]float64{
		1, 2,
		3, 4,
		5, 6,
	}, Shape{3, 2})

	s := x.Slice(1, 3)
	assert.Equal(t, Shape{2, 2}, s.Shape())
	assert.Equal(t, []float64{3, 4, 5, 6}, s.Data())

	g := x.Gather([]int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, g.Data())

	// Slices are copies.
	s.Data()[0] = 100
	assert.Equal(t, 3.0, x.Data()[2])
}

func TestSoftmax_RowsSumToOne(t *testing.T) {
	x := MustFromSlice([]float64{
		1, 2, 3,
		1000, 1000, 1000,
	}, Shape{2, 3})

	p := Softmax(x)
	for i := 0; i < p.Rows(); i++ {
		var sum float64
		for _, v := range p.Row(i) {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
	assert.InDelta(t, 1.0/3, p.Row(1)[0], 1e-12)
}

func TestArgMaxAndGreater(t *testing.T) {
	x := MustFromSlice([]float64{
		0.1, 0.7, 0.2,
		0.9, 0.05, 0.05,
	}, Shape{2, 3})
	assert.Equal(t, []float64{1, 0}, ArgMax(x).Data())

	scores := Column(0.2, 0.5, 0.51)
	assert.Equal(t, []float64{0, 0, 1}, Greater(scores, 0.5).Data())
}

func TestSigmoid(t *testing.T) {
	y := Sigmoid(Vector(0))
	assert.InDelta(t, 0.5, y.Item(), 1e-12)
}
