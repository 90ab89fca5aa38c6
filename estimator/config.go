package estimator

import (
	"fmt"
	"math"

	"github.com/tjacobs/autorustler/control"
	"github.com/tjacobs/autorustler/model"
	"github.com/tjacobs/autorustler/vision"
)

// Config configures the estimator and the controller it feeds.
type Config struct {
	// Vision configures lane detection
	Vision vision.Config
	// Step is the prediction time step in seconds
	Step float64
	// UseMeasuredStep predicts with the elapsed time passed to UpdateState instead of Step
	UseMeasuredStep bool
	// AccelScale converts accelerometer readings into model units
	AccelScale float64
	// MaxCurvature bounds the magnitude of the estimated path curvature
	MaxCurvature float64
	// Control configures the path tracking controller
	Control control.Config
}

// DefaultConfig returns the configuration the car runs with at 30 frames per second
func DefaultConfig() Config {
	return Config{
		Vision:       vision.DefaultConfig(),
		Step:         1.0 / 30.0,
		AccelScale:   model.DefaultAccelScale,
		MaxCurvature: 0.3,
		Control:      control.DefaultConfig(),
	}
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be positive and finite, got %v", name, v)
	}

	return nil
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := positive("step", c.Step); err != nil {
		return err
	}

	if err := positive("accel_scale", c.AccelScale); err != nil {
		return err
	}

	if err := positive("max_curvature", c.MaxCurvature); err != nil {
		return err
	}

	if err := c.Vision.Validate(); err != nil {
		return fmt.Errorf("invalid vision config: %v", err)
	}

	if err := c.Control.Validate(); err != nil {
		return fmt.Errorf("invalid control config: %v", err)
	}

	return nil
}
