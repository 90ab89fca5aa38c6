package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// InertialDim is the length of the inertial measurement vector
const InertialDim = 3

// DefaultAccelScale converts raw accelerometer readings into model units.
const DefaultAccelScale = 980. * 2.364 / 20.

// Inertial observes yaw rate and the two accelerometer axes.
//
//	gyro.Z  = w + mu_g
//	accel.X = v*w + mu_ax
//	accel.Y = -(exp(Cv)*u_accel - v)/exp(Tv) + mu_ay
type Inertial struct {
	// AccelScale converts accelerometer readings into model units
	AccelScale float64
	// GyroVar is the yaw rate measurement variance
	GyroVar float64
	// AccelVar is the accelerometer measurement variance in model units
	AccelVar float64
}

// NewInertial creates new inertial observer with the given accelerometer scale and returns it.
// Accelerometer noise variance is (scale/4)^2: accelerometer readings are hugely noisy.
func NewInertial(accelScale float64) *Inertial {
	return &Inertial{
		AccelScale: accelScale,
		GyroVar:    1e-4,
		AccelVar:   accelScale * accelScale / 16,
	}
}

// Dims returns state and output dimensions
func (o *Inertial) Dims() (int, int) {
	return StateDim, InertialDim
}

// Measurement converts accelerometer and gyroscope readings into the measurement vector.
func (o *Inertial) Measurement(dst *mat.VecDense, accel, gyro r3.Vec) {
	dst.SetVec(0, gyro.Z)
	dst.SetVec(1, accel.X*o.AccelScale)
	dst.SetVec(2, accel.Y*o.AccelScale)
}

// Noise returns the measurement noise covariance.
func (o *Inertial) Noise() *mat.SymDense {
	return mat.NewSymDense(InertialDim, []float64{
		o.GyroVar, 0, 0,
		0, o.AccelVar, 0,
		0, 0, o.AccelVar,
	})
}

func (o *Inertial) check(x, u mat.Vector) error {
	if x.Len() != StateDim {
		return fmt.Errorf("invalid state vector length: %d", x.Len())
	}

	if u.Len() != InputDim {
		return fmt.Errorf("invalid input vector length: %d", u.Len())
	}

	return nil
}

// Observe stores the expected inertial measurement for state x and input u in dst.
func (o *Inertial) Observe(dst *mat.VecDense, x, u mat.Vector) error {
	if err := o.check(x, u); err != nil {
		return err
	}

	w, v := x.AtVec(W), x.AtVec(V)
	eCv, eTv := math.Exp(x.AtVec(Cv)), math.Exp(x.AtVec(Tv))
	uAccel := u.AtVec(Throttle)

	dst.SetVec(0, w+x.AtVec(MuG))
	dst.SetVec(1, v*w+x.AtVec(MuAx))
	dst.SetVec(2, -(eCv*uAccel-v)/eTv+x.AtVec(MuAy))

	return nil
}

// Jacobian stores the derivative of Observe with respect to x in dst.
func (o *Inertial) Jacobian(dst *mat.Dense, x, u mat.Vector) error {
	if err := o.check(x, u); err != nil {
		return err
	}

	if r, c := dst.Dims(); r != InertialDim || c != StateDim {
		return fmt.Errorf("invalid jacobian dimensions: [%d x %d]", r, c)
	}

	w, v := x.AtVec(W), x.AtVec(V)
	cv, tv := x.AtVec(Cv), x.AtVec(Tv)
	uAccel := u.AtVec(Throttle)

	dst.Zero()
	dst.Set(0, W, 1)
	dst.Set(0, MuG, 1)

	dst.Set(1, W, v)
	dst.Set(1, V, w)
	dst.Set(1, MuAx, 1)

	dst.Set(2, V, math.Exp(-tv))
	dst.Set(2, Cv, -uAccel*math.Exp(cv-tv))
	dst.Set(2, Tv, (uAccel*math.Exp(cv)-v)*math.Exp(-tv))
	dst.Set(2, MuAy, 1)

	return nil
}
