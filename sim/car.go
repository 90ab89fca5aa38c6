package sim

import (
	"fmt"

	drive "github.com/tjacobs/autorustler"
	"github.com/tjacobs/autorustler/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Car is a simulated car driving along a lane.
// Its true state evolves through the same vehicle model the estimator uses,
// including the actuator parameters and sensor biases.
type Car struct {
	// m propagates the true state
	m *model.Vehicle
	// imu produces noiseless inertial readings
	imu *model.Inertial
	// noise is added to the inertial readings in model units
	noise drive.Noise
	// x is the true state
	x *mat.VecDense
	// u is the last applied input
	u *mat.VecDense
	// y is the inertial reading workspace
	y *mat.VecDense
}

// NewCar creates new simulated car starting at state x0 and returns it.
// imuNoise is added to every inertial reading and must be 3 dimensional.
// It returns error if either x0 or imuNoise dimensions are invalid.
func NewCar(x0 mat.Vector, imuNoise drive.Noise) (*Car, error) {
	if x0.Len() != model.StateDim {
		return nil, fmt.Errorf("invalid initial state length: %d", x0.Len())
	}

	if imuNoise == nil || len(imuNoise.Mean()) != model.InertialDim {
		return nil, fmt.Errorf("invalid inertial noise: %v", imuNoise)
	}

	x := mat.NewVecDense(model.StateDim, nil)
	x.CopyVec(x0)

	return &Car{
		m:     model.NewVehicle(),
		imu:   model.NewInertial(model.DefaultAccelScale),
		noise: imuNoise,
		x:     x,
		u:     mat.NewVecDense(model.InputDim, nil),
		y:     mat.NewVecDense(model.InertialDim, nil),
	}, nil
}

// Step drives the car for dt seconds with the given commands.
// The true curvature of the lane is held by the state and never changes.
func (c *Car) Step(throttle, steering, dt float64) error {
	c.u.SetVec(model.Throttle, throttle)
	c.u.SetVec(model.Steering, steering)

	return c.m.Propagate(c.x, c.x, c.u, dt)
}

// IMU returns accelerometer and gyroscope readings in sensor units for the current state
// and the last applied input.
func (c *Car) IMU() (accel, gyro r3.Vec, err error) {
	if err := c.imu.Observe(c.y, c.x, c.u); err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	c.y.AddVec(c.y, c.noise.Sample())

	gyro = r3.Vec{Z: c.y.AtVec(0)}
	accel = r3.Vec{
		X: c.y.AtVec(1) / c.imu.AccelScale,
		Y: c.y.AtVec(2) / c.imu.AccelScale,
	}

	return accel, gyro, nil
}

// State returns a copy of the true state
func (c *Car) State() mat.Vector {
	x := mat.NewVecDense(model.StateDim, nil)
	x.CopyVec(c.x)

	return x
}
