package matrix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestSymmetrizeTo(t *testing.T) {
	assert := assert.New(t)

	m := mat.NewDense(2, 2, []float64{1.0, 2.0, 4.0, 3.0})
	dst := mat.NewSymDense(2, nil)

	SymmetrizeTo(dst, m)
	assert.Equal(1.0, dst.At(0, 0))
	assert.Equal(3.0, dst.At(0, 1))
	assert.Equal(3.0, dst.At(1, 0))
	assert.Equal(3.0, dst.At(1, 1))

	// should panic
	assert.Panics(func() { SymmetrizeTo(dst, mat.NewDense(3, 3, nil)) })
	assert.Panics(func() { SymmetrizeTo(dst, mat.NewDense(2, 3, nil)) })
}

func TestIsFinite(t *testing.T) {
	assert := assert.New(t)

	for _, test := range []struct {
		s  []float64
		ok bool
	}{
		{s: nil, ok: true},
		{s: []float64{0, 1.5, -2}, ok: true},
		{s: []float64{0, math.NaN()}, ok: false},
		{s: []float64{math.Inf(1), 0}, ok: false},
		{s: []float64{0, math.Inf(-1)}, ok: false},
	} {
		assert.Equal(test.ok, IsFinite(test.s), "%v", test.s)
	}
}

func TestDiagFinite(t *testing.T) {
	assert := assert.New(t)

	m := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	assert.True(DiagFinite(m))

	m.SetSym(0, 1, math.NaN())
	assert.True(DiagFinite(m))

	m.SetSym(1, 1, math.Inf(1))
	assert.False(DiagFinite(m))
}

func TestClamp(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.5, Clamp(0.5, -1, 1))
	assert.Equal(-1.0, Clamp(-3, -1, 1))
	assert.Equal(1.0, Clamp(math.Inf(1), -1, 1))
}
