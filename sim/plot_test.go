package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNew2DPlot(t *testing.T) {
	assert := assert.New(t)

	truth := mat.NewDense(3, 2, []float64{0, 0, 1, 1, 2, 2})
	measure := mat.NewDense(3, 2, []float64{0, 0.1, 1, 0.9, 2, 2.1})
	filter := mat.NewDense(3, 2, []float64{0, 0, 1, 1, 2, 2})

	plt, err := New2DPlot("ye", truth, measure, filter)
	assert.NotNil(plt)
	assert.NoError(err)
	assert.Equal("ye", plt.Title.Text)

	plt, err = New2DPlot("ye", nil, nil, nil)
	assert.Nil(plt)
	assert.Error(err)

	plt, err = New2DPlot("ye", truth, mat.NewDense(3, 1, nil), filter)
	assert.Nil(plt)
	assert.Error(err)
}
