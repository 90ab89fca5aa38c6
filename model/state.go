package model

import (
	"gonum.org/v1/gonum/mat"
)

// State vector layout.
const (
	// YE is lateral offset from the lane centerline
	YE = iota
	// PsiE is heading error relative to the lane tangent
	PsiE
	// W is yaw rate
	W
	// V is longitudinal velocity
	V
	// K is path curvature
	K
	// Cv is log-gain of the throttle to velocity actuator
	Cv
	// Tv is log-time-constant of the throttle to velocity actuator
	Tv
	// Cs is log-gain of the steering to yaw rate actuator
	Cs
	// Ts is log-time-constant of the steering to yaw rate actuator
	Ts
	// MuS is steering command bias
	MuS
	// MuG is gyro bias
	MuG
	// MuAx is longitudinal accelerometer bias
	MuAx
	// MuAy is lateral accelerometer bias
	MuAy
	// StateDim is the length of the state vector
	StateDim
)

// Input vector layout.
const (
	// Throttle is the throttle command
	Throttle = iota
	// Steering is the steering command
	Steering
	// InputDim is the length of the input vector
	InputDim
)

var (
	priorState = []float64{
		0, 0, 0, 0, 0,
		2.3, 0, -1.2, -0.7, // Cv and Cs are w.r.t. 16-bit ints
		0.2, 0, 0, 0,
	}
	priorCovDiag = []float64{
		25, 1, 0.01, 0.01, 0.0001,
		1, 0.01, 0.01, 0.01,
		0.01, 0.0001, 0.0001, 0.0001,
	}
)

// InitCond implements drive.InitCond
type InitCond struct {
	state *mat.VecDense
	cov   *mat.SymDense
}

// NewInitCond creates new InitCond and returns it
func NewInitCond(state mat.Vector, cov mat.Symmetric) *InitCond {
	s := &mat.VecDense{}
	s.CloneFromVec(state)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &InitCond{
		state: s,
		cov:   c,
	}
}

// Prior returns the fixed initial condition the estimator starts from and resets to.
func Prior() *InitCond {
	state := mat.NewVecDense(StateDim, nil)
	cov := mat.NewSymDense(StateDim, nil)
	for i := 0; i < StateDim; i++ {
		state.SetVec(i, priorState[i])
		cov.SetSym(i, i, priorCovDiag[i])
	}

	return &InitCond{
		state: state,
		cov:   cov,
	}
}

// State returns initial state
func (c *InitCond) State() mat.Vector {
	state := mat.NewVecDense(c.state.Len(), nil)
	state.CopyVec(c.state)

	return state
}

// Cov returns initial covariance
func (c *InitCond) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.SymmetricDim(), nil)
	cov.CopySym(c.cov)

	return cov
}
