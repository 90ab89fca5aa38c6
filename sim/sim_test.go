package sim

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjacobs/autorustler/model"
	"github.com/tjacobs/autorustler/noise"
	"github.com/tjacobs/autorustler/vision"
	"gonum.org/v1/gonum/mat"
)

const dt = 1.0 / 30.0

var (
	table    *vision.Table
	detector *vision.Detector
	zero     *noise.Zero
)

func setup() {
	var err error
	table, err = GroundTable(vision.DefaultFormat, 120)
	if err != nil {
		panic(err)
	}

	detector, err = vision.NewDetector(table, vision.DefaultConfig())
	if err != nil {
		panic(err)
	}

	zero, err = noise.NewZero(model.InertialDim)
	if err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestGroundTable(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(120*320, table.Len())
	assert.Equal(120, table.Top())

	bottom := table.At(239, 0)
	assert.InDelta(Near, bottom.V, 1e-12)
	assert.InDelta(-bottom.U, table.At(239, 319).U, 1e-12)
	assert.InDelta(Near+119*RowStep, table.At(120, 0).V, 1e-12)

	tbl, err := GroundTable(vision.DefaultFormat, 240)
	assert.Nil(tbl)
	assert.Error(err)

	tbl, err = GroundTable(vision.Format{Width: 5, Height: 4}, 0)
	assert.Nil(tbl)
	assert.Error(err)
}

func TestRender(t *testing.T) {
	assert := assert.New(t)

	r := NewRenderer(table)
	testCases := []struct {
		ye   float64
		psie float64
	}{
		{0.5, 0},
		{-0.3, 0.1},
		{0, -0.2},
	}

	var frame []byte
	for _, tc := range testCases {
		x := mat.VecDenseCopyOf(model.Prior().State())
		x.SetVec(model.YE, tc.ye)
		x.SetVec(model.PsiE, tc.psie)

		frame = r.Render(frame, x)
		assert.Equal(vision.DefaultFormat.Len(), len(frame))

		fit, err := detector.Detect(frame)
		require.NoError(t, err)
		assert.Greater(fit.N, 100)
		assert.InDelta(tc.ye/math.Cos(tc.psie), fit.Z.AtVec(0), 0.01)
		assert.InDelta(math.Tan(tc.psie), fit.Z.AtVec(1), 0.02)
	}

	// lane out of sight
	x := mat.VecDenseCopyOf(model.Prior().State())
	x.SetVec(model.YE, 5)
	fit, err := detector.Detect(r.Render(frame, x))
	assert.Nil(fit)
	assert.ErrorIs(err, vision.ErrTooFewPixels)
}

func TestNewCar(t *testing.T) {
	assert := assert.New(t)

	c, err := NewCar(model.Prior().State(), zero)
	assert.NotNil(c)
	assert.NoError(err)

	c, err = NewCar(mat.NewVecDense(2, nil), zero)
	assert.Nil(c)
	assert.Error(err)

	bad, err := noise.NewZero(2)
	require.NoError(t, err)
	c, err = NewCar(model.Prior().State(), bad)
	assert.Nil(c)
	assert.Error(err)
}

func TestCarStep(t *testing.T) {
	assert := assert.New(t)

	c, err := NewCar(model.Prior().State(), zero)
	require.NoError(t, err)

	// at rest with no commands nothing moves
	assert.NoError(c.Step(0, 0, dt))
	assert.True(mat.Equal(model.Prior().State(), c.State()))

	for i := 0; i < 30; i++ {
		assert.NoError(c.Step(0.2, 0.5, dt))
	}
	x := c.State()
	assert.Greater(x.AtVec(model.V), 0.0)
	assert.Greater(x.AtVec(model.W), 0.0)
	assert.Greater(x.AtVec(model.PsiE), 0.0)
	// parameters are constant
	assert.Equal(2.3, x.AtVec(model.Cv))
	assert.Equal(-1.2, x.AtVec(model.Cs))
}

func TestCarIMU(t *testing.T) {
	assert := assert.New(t)

	x0 := mat.VecDenseCopyOf(model.Prior().State())
	x0.SetVec(model.V, 1.5)
	x0.SetVec(model.W, 0.2)
	x0.SetVec(model.MuG, 0.01)
	x0.SetVec(model.MuAx, 0.05)

	c, err := NewCar(x0, zero)
	require.NoError(t, err)

	accel, gyro, err := c.IMU()
	assert.NoError(err)
	assert.InDelta(0.21, gyro.Z, 1e-12)
	assert.InDelta((1.5*0.2+0.05)/model.DefaultAccelScale, accel.X, 1e-12)
	// no throttle: the car coasts
	assert.InDelta(1.5/math.Exp(0)/model.DefaultAccelScale, accel.Y, 1e-12)
	assert.Equal(0.0, accel.Z)

	// readings convert back into the model measurement
	imu := model.NewInertial(model.DefaultAccelScale)
	z := mat.NewVecDense(model.InertialDim, nil)
	imu.Measurement(z, accel, gyro)
	assert.InDelta(1.5*0.2+0.05, z.AtVec(1), 1e-12)

	g, err := noise.NewSeededGaussian(make([]float64, model.InertialDim), mat.NewSymDense(model.InertialDim, []float64{
		1e-4, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}), 1)
	require.NoError(t, err)
	c, err = NewCar(x0, g)
	require.NoError(t, err)
	_, noisy, err := c.IMU()
	assert.NoError(err)
	assert.NotEqual(0.21, noisy.Z)
	assert.InDelta(0.21, noisy.Z, 0.1)
}
