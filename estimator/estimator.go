// Package estimator fuses camera lane fits and inertial readings into a lane-relative
// vehicle state estimate and turns it into throttle and steering commands.
//
// Filter resets and malformed frames are reported on the ops log stream, which writes
// to stderr by default. SetLogWriters redirects or silences it and enables the diag
// and trace streams.
package estimator

import (
	"errors"
	"fmt"
	"math"

	"github.com/tjacobs/autorustler/control"
	"github.com/tjacobs/autorustler/estimate"
	"github.com/tjacobs/autorustler/kalman/ekf"
	"github.com/tjacobs/autorustler/matrix"
	"github.com/tjacobs/autorustler/model"
	"github.com/tjacobs/autorustler/vision"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mode is the estimator operating mode
type Mode int

const (
	// Tracking is normal filter operation
	Tracking Mode = iota
	// Reinitializing is entered when the filter diverges and left as soon as it is reset
	Reinitializing
)

// String implements the Stringer interface.
func (m Mode) String() string {
	switch m {
	case Tracking:
		return "Tracking"
	case Reinitializing:
		return "Reinitializing"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Estimator fuses lane detections and inertial readings into the vehicle state estimate
// and turns the estimate into throttle and steering commands.
//
// Estimator is not safe for concurrent use: UpdateState and GetControl must be
// called from a single control loop.
type Estimator struct {
	cfg      Config
	prior    *model.InitCond
	filter   *ekf.EKF
	detector *vision.Detector
	lane     *model.Lane
	imu      *model.Inertial
	ctrl     *control.Controller

	// u is the input vector
	u *mat.VecDense
	// z is the inertial measurement
	z *mat.VecDense
	// r is the inertial measurement noise
	r *mat.SymDense

	mode   Mode
	resets int
}

// New creates new estimator starting from the prior state and returns it.
// table maps the frames passed to UpdateState onto the ground plane.
// It returns error if the configuration is invalid or table is nil.
func New(c Config, table *vision.Table) (*Estimator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	detector, err := vision.NewDetector(table, c.Vision)
	if err != nil {
		return nil, err
	}

	prior := model.Prior()
	filter, err := ekf.New(model.NewVehicle(), prior)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter: %v", err)
	}

	ctrl, err := control.New(c.Control)
	if err != nil {
		return nil, err
	}

	imu := model.NewInertial(c.AccelScale)

	return &Estimator{
		cfg:      c,
		prior:    prior,
		filter:   filter,
		detector: detector,
		lane:     model.NewLane(),
		imu:      imu,
		ctrl:     ctrl,
		u:        mat.NewVecDense(model.InputDim, nil),
		z:        mat.NewVecDense(model.InertialDim, nil),
		r:        imu.Noise(),
		mode:     Tracking,
	}, nil
}

// Reset sets the state mean and covariance back to the prior.
func (e *Estimator) Reset() {
	if err := e.filter.Reset(e.prior); err != nil {
		// the prior always matches the vehicle model
		panic(err)
	}
}

func (e *Estimator) reinit() {
	e.mode = Reinitializing
	opsf("filter diverged to inf/NaN after %d resets, resetting: x=%v", e.resets, e.filter.RawState())
	e.Reset()
	e.resets++
	e.mode = Tracking
}

// UpdateState advances the estimate by one camera frame.
// throttle and steering are the commands applied since the previous frame, accel and gyro
// the latest inertial readings in sensor units and dt the time elapsed since the previous call.
//
// Unless UseMeasuredStep is set, the prediction uses the configured Step regardless of dt.
// Frames of unexpected length, frames without enough lane pixels and singular corrections
// are skipped. A diverged filter is reset to the prior before anything else.
func (e *Estimator) UpdateState(frame []byte, throttle, steering float64, accel, gyro r3.Vec, dt float64) {
	if e.filter.Diverged() {
		e.reinit()
	}

	e.u.SetVec(model.Throttle, throttle)
	e.u.SetVec(model.Steering, steering)

	step := e.cfg.Step
	if e.cfg.UseMeasuredStep && dt > 0 {
		step = dt
	}

	if err := e.filter.Predict(e.u, step); err != nil {
		opsf("prediction failed: %v", err)
	}

	e.updateCamera(frame)
	e.updateInertial(accel, gyro)

	x := e.filter.RawState()
	sanitize(x, e.cfg.MaxCurvature)

	if traceEnabled() {
		tracef("x %.4g", x)
		tracef("P %.4g", diag(e.filter.Cov()))
	}
}

func (e *Estimator) updateCamera(frame []byte) {
	fit, err := e.detector.Detect(frame)
	switch {
	case errors.Is(err, vision.ErrFrameLength):
		opsf("invalid frame: %v", err)
		return
	case err != nil:
		diagf("camera correction skipped: %v", err)
		return
	}

	if err := e.filter.Update(e.lane, e.u, fit.Z, fit.R); err != nil {
		diagf("camera correction skipped: %v", err)
		return
	}

	if traceEnabled() {
		tracef("lane fit %d pixels B=%.4g innovation=%.4g gain[ye]=%.4g", fit.N, fit.Z.RawVector().Data,
			mat.Col(nil, 0, e.filter.Innovation()), mat.Row(nil, model.YE, e.filter.Gain()))
	}
}

func (e *Estimator) updateInertial(accel, gyro r3.Vec) {
	e.imu.Measurement(e.z, accel, gyro)

	if err := e.filter.Update(e.imu, e.u, e.z, e.r); err != nil {
		diagf("inertial correction skipped: %v", err)
	}
}

// sanitize wraps heading error into [-pi/2, pi/2], folds velocity onto
// the non-negative half line and clamps curvature to [-maxK, maxK].
func sanitize(x []float64, maxK float64) {
	x[model.PsiE] = math.Remainder(x[model.PsiE], math.Pi)
	x[model.V] = math.Abs(x[model.V])
	x[model.K] = matrix.Clamp(x[model.K], -maxK, maxK)
}

func diag(m mat.Symmetric) []float64 {
	d := make([]float64, m.SymmetricDim())
	for i := range d {
		d[i] = m.At(i, i)
	}

	return d
}

// GetControl returns throttle and steering commands for the current estimate.
func (e *Estimator) GetControl() (throttle, steering float64) {
	throttle, steering = e.ctrl.Control(e.filter.RawState())
	tracef("throttle %.3f steering %.3f", throttle, steering)

	return throttle, steering
}

// State returns a copy of the state mean
func (e *Estimator) State() []float64 {
	x := make([]float64, model.StateDim)
	copy(x, e.filter.RawState())

	return x
}

// Cov returns a copy of the state covariance
func (e *Estimator) Cov() mat.Symmetric {
	return e.filter.Cov()
}

// Estimate returns a snapshot of the state mean and covariance
func (e *Estimator) Estimate() (*estimate.Base, error) {
	return e.filter.Estimate()
}

// Mode returns the estimator mode
func (e *Estimator) Mode() Mode {
	return e.mode
}

// Resets returns the number of times the filter diverged and was reset
func (e *Estimator) Resets() int {
	return e.resets
}

// Config returns estimator configuration
func (e *Estimator) Config() Config {
	return e.cfg
}
