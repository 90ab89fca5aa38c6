package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjacobs/autorustler/model"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func prior() []float64 {
	return mat.Col(nil, 0, model.Prior().State())
}

func TestConfig(t *testing.T) {
	assert := assert.New(t)

	c := DefaultConfig()
	assert.NoError(c.Validate())
	assert.Equal(0.05, c.Kpy)
	assert.Equal(0.4, c.Kvy)
	assert.Equal(2.5, c.TractionLimit)
	assert.Equal(1.0, c.MaxThrottle)
	assert.Equal(0.0, c.LaneOffset)

	testCases := []func(c *Config){
		func(c *Config) { c.TractionLimit = 0 },
		func(c *Config) { c.MaxThrottle = 1.5 },
		func(c *Config) { c.CurveMaxThrottle = -2 },
		func(c *Config) { c.MinSpeed = 0 },
		func(c *Config) { c.CurveK = -0.1 },
		func(c *Config) { c.Kpy = math.NaN() },
		func(c *Config) { c.LaneOffset = math.Inf(1) },
	}

	for _, tc := range testCases {
		c := DefaultConfig()
		tc(&c)
		assert.Error(c.Validate())

		ctrl, err := New(c)
		assert.Nil(ctrl)
		assert.Error(err)
	}

	ctrl, err := New(DefaultConfig())
	assert.NoError(err)
	assert.Equal(DefaultConfig(), ctrl.Config())
}

func TestControlAtRest(t *testing.T) {
	assert := assert.New(t)

	ctrl, err := New(DefaultConfig())
	require.NoError(t, err)

	// zero velocity is raised to the speed floor: on the centerline the target
	// yaw rate is zero so the steering bias is all that is left
	throttle, steering := ctrl.Control(prior())
	assert.Equal(0.2, steering)
	assert.Equal(1.0, throttle)
}

func TestControl(t *testing.T) {
	assert := assert.New(t)

	ctrl, err := New(DefaultConfig())
	require.NoError(t, err)

	x := prior()
	x[model.V] = 1.0
	x[model.YE] = 0.5

	ye, v := 0.5, 1.0
	eCs := math.Exp(-1.2)
	wTarget := v * (ye * 0.05)
	wantSteer := 0.2 + wTarget/(v*eCs)

	throttle, steering := ctrl.Control(x)
	assert.InDelta(wantSteer, steering, 1e-12)
	wantThrottle := math.Min(math.Abs(2.5/(eCs*(wantSteer-0.2)))/math.Exp(2.3), 1)
	assert.InDelta(wantThrottle, throttle, 1e-12)

	// right of the lane steers the other way
	x[model.YE] = -0.5
	_, steering = ctrl.Control(x)
	assert.InDelta(0.2-wTarget/(v*eCs), steering, 1e-12)

	// tracking the lane offset cancels the lateral error
	c := DefaultConfig()
	c.LaneOffset = -0.5
	ctrl, err = New(c)
	require.NoError(t, err)
	_, steering = ctrl.Control(x)
	assert.InDelta(0.2, steering, 1e-12)
}

func TestControlSaturation(t *testing.T) {
	assert := assert.New(t)

	ctrl, err := New(DefaultConfig())
	require.NoError(t, err)

	x := prior()
	x[model.V] = 3.0
	x[model.YE] = -10

	throttle, steering := ctrl.Control(x)
	assert.Equal(-1.0, steering)
	// full lock yaw rate: throttle slows the car to stay within the traction limit
	delta := math.Exp(-1.2) * math.Abs(-1-0.2)
	assert.InDelta(2.5/delta/math.Exp(2.3), throttle, 1e-12)
}

func TestControlCurveLimit(t *testing.T) {
	assert := assert.New(t)

	c := DefaultConfig()
	c.CurveK = 0.1
	ctrl, err := New(c)
	require.NoError(t, err)

	x := prior()
	x[model.V] = 0.5
	x[model.K] = 0.05
	throttle, _ := ctrl.Control(x)
	assert.Equal(1.0, throttle)

	x = prior()
	x[model.K] = 0.2
	throttle, _ = ctrl.Control(x)
	assert.LessOrEqual(throttle, 0.4)
}

func TestControlDegenerate(t *testing.T) {
	assert := assert.New(t)

	ctrl, err := New(DefaultConfig())
	require.NoError(t, err)

	// 1 - k*ye = 0
	x := prior()
	x[model.V] = 1.0
	x[model.K] = 0.25
	x[model.YE] = 4
	throttle, steering := ctrl.Control(x)
	assert.False(math.IsNaN(throttle))
	assert.False(math.IsNaN(steering))
	assert.True(steering >= -1 && steering <= 1)
	assert.True(throttle >= -1 && throttle <= 1)
}

func TestControlRange(t *testing.T) {
	assert := assert.New(t)

	ctrl, err := New(DefaultConfig())
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(42))
	x := make([]float64, model.StateDim)
	for i := 0; i < 10000; i++ {
		for j := range x {
			x[j] = (rnd.Float64() - 0.5) * 10
		}
		x[model.V] = rnd.Float64()*5 + 1e-3

		throttle, steering := ctrl.Control(x)
		assert.True(steering >= -1 && steering <= 1, "steering %v for %v", steering, x)
		assert.True(throttle >= -1 && throttle <= 1, "throttle %v for %v", throttle, x)
	}
}
