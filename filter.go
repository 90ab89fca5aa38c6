package drive

import "gonum.org/v1/gonum/mat"

// Filter is a dynamical system filter.
type Filter interface {
	// Predict advances the internal state of the system by dt given input u
	Predict(u mat.Vector, dt float64) error
	// Update corrects the internal state using measurement z observed through o
	Update(o Observer, u, z mat.Vector, r mat.Symmetric) error
}

// Propagator propagates internal state of the system to the next step
type Propagator interface {
	// Propagate stores in dst the state x advanced by dt given input u
	Propagate(dst *mat.VecDense, x, u mat.Vector, dt float64) error
}

// Model is a model of a dynamical system
type Model interface {
	// Propagator is system propagator
	Propagator
	// Jacobian stores in dst the derivative of Propagate with respect to x
	Jacobian(dst *mat.Dense, x, u mat.Vector, dt float64) error
	// ProcessNoise stores in dst the diagonal of the process noise covariance
	ProcessNoise(dst []float64, x mat.Vector, dt float64)
	// Dims returns state and input dimensions of the model
	Dims() (nx int, nu int)
}

// Observer observes external state (output) of the system
type Observer interface {
	// Observe stores in dst the expected measurement given state x and input u
	Observe(dst *mat.VecDense, x, u mat.Vector) error
	// Jacobian stores in dst the derivative of Observe with respect to x
	Jacobian(dst *mat.Dense, x, u mat.Vector) error
	// Dims returns state and output dimensions of the observer
	Dims() (nx int, ny int)
}

// InitCond is initial state condition of the filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset() error
}

// FrameReceiver consumes frames delivered by a Camera
type FrameReceiver interface {
	// OnFrame is called once per captured frame. buf is only valid for the duration of the call.
	OnFrame(buf []byte)
}

// Camera is a frame source
type Camera interface {
	// Init configures the capture resolution and frame rate
	Init(width, height, fps int) error
	// StartRecord starts delivering frames to r
	StartRecord(r FrameReceiver) error
	// StopRecord stops frame delivery and waits for the in-flight frame to finish
	StopRecord()
}
