package control

import (
	"fmt"
	"math"

	"github.com/tjacobs/autorustler/matrix"
	"github.com/tjacobs/autorustler/model"
)

// Config holds the path tracking gains and actuator limits.
type Config struct {
	// Kpy is the lateral offset gain
	Kpy float64 `json:"kpy"`
	// Kvy is the heading error gain
	Kvy float64 `json:"kvy"`
	// TractionLimit is the largest v*w product the tyres can hold
	TractionLimit float64 `json:"traction_limit"`
	// MaxThrottle caps the throttle command
	MaxThrottle float64 `json:"max_throttle"`
	// LaneOffset is the lateral offset to track instead of the centerline
	LaneOffset float64 `json:"lane_offset"`
	// MinSpeed is the speed floor used in place of slower velocity estimates
	MinSpeed float64 `json:"min_speed"`
	// CurveK enables the curve throttle cap at curvatures of this magnitude; 0 disables it
	CurveK float64 `json:"curve_k"`
	// CurveMaxThrottle caps the throttle command in curves
	CurveMaxThrottle float64 `json:"curve_max_throttle"`
}

// DefaultConfig returns the gains the car was tuned with
func DefaultConfig() Config {
	return Config{
		Kpy:              0.05,
		Kvy:              0.4,
		TractionLimit:    2.5,
		MaxThrottle:      1.0,
		LaneOffset:       0,
		MinSpeed:         0.1,
		CurveK:           0,
		CurveMaxThrottle: 0.4,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	vals := map[string]float64{
		"kpy":                c.Kpy,
		"kvy":                c.Kvy,
		"traction_limit":     c.TractionLimit,
		"max_throttle":       c.MaxThrottle,
		"lane_offset":        c.LaneOffset,
		"min_speed":          c.MinSpeed,
		"curve_k":            c.CurveK,
		"curve_max_throttle": c.CurveMaxThrottle,
	}
	for name, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %v", name, v)
		}
	}

	if c.TractionLimit <= 0 {
		return fmt.Errorf("traction_limit must be positive, got %v", c.TractionLimit)
	}

	if c.MaxThrottle < -1 || c.MaxThrottle > 1 {
		return fmt.Errorf("max_throttle must be within [-1, 1], got %v", c.MaxThrottle)
	}

	if c.CurveMaxThrottle < -1 || c.CurveMaxThrottle > 1 {
		return fmt.Errorf("curve_max_throttle must be within [-1, 1], got %v", c.CurveMaxThrottle)
	}

	if c.MinSpeed <= 0 {
		return fmt.Errorf("min_speed must be positive, got %v", c.MinSpeed)
	}

	if c.CurveK < 0 {
		return fmt.Errorf("curve_k must be non-negative, got %v", c.CurveK)
	}

	return nil
}

// Controller implements the Micaelli-Samson path tracking law for unicycle type vehicles:
//
//	A. Micaelli, C. Samson. Trajectory tracking for unicycle-type and
//	two-steering-wheels mobile robots. INRIA RR-2097, 1993.
//
// The yaw rate target is turned into a steering command through the estimated steering
// actuator gain and the throttle is chosen to keep v*w within the traction limit.
type Controller struct {
	cfg Config
}

// New creates new controller and returns it
func New(c Config) (*Controller, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &Controller{cfg: c}, nil
}

// Config returns controller configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// Control returns throttle and steering commands for state estimate x.
// Steering is within [-1, 1] and throttle within [-1, MaxThrottle].
// Velocity estimates below MinSpeed are raised to MinSpeed, so a car at rest
// steers with the steering bias and applies full throttle.
func (c *Controller) Control(x []float64) (throttle, steering float64) {
	ye, psie, v, k := x[model.YE], x[model.PsiE], x[model.V], x[model.K]
	eCv, eCs := math.Exp(x[model.Cv]), math.Exp(x[model.Cs])
	muS := x[model.MuS]

	if v < c.cfg.MinSpeed {
		v = c.cfg.MinSpeed
	}

	sinPsi, cosPsi := math.Sincos(psie)
	dx := cosPsi / (1 - k*ye)

	wTarget := v * dx * ((ye-c.cfg.LaneOffset)*dx*c.cfg.Kpy*cosPsi + sinPsi*(k*sinPsi-c.cfg.Kvy*cosPsi) - k)

	steering = matrix.Clamp(muS+wTarget/(v*eCs), -1, 1)
	if math.IsNaN(steering) {
		return 0, matrix.Clamp(muS, -1, 1)
	}

	maxThrottle := c.cfg.MaxThrottle
	if c.cfg.CurveK > 0 && math.Abs(k) >= c.cfg.CurveK {
		maxThrottle = math.Min(maxThrottle, c.cfg.CurveMaxThrottle)
	}

	// yaw rate the clamped steering command actually produces
	delta := eCs * (steering - muS)
	vTarget := math.Abs(c.cfg.TractionLimit / delta)

	throttle = matrix.Clamp(vTarget/eCv, -1, maxThrottle)
	if math.IsNaN(throttle) {
		throttle = 0
	}

	return throttle, steering
}
