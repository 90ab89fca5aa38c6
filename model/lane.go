package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LaneDim is the length of the lane line measurement vector
const LaneDim = 2

// Lane observes the lane line as seen from the vehicle in ground plane coordinates.
// The line is parametrized by its intercept and slope: (ye/cos(psie), tan(psie)).
type Lane struct{}

// NewLane creates new lane line observer and returns it
func NewLane() *Lane {
	return &Lane{}
}

// Dims returns state and output dimensions
func (o *Lane) Dims() (int, int) {
	return StateDim, LaneDim
}

// Observe stores the expected lane line intercept and slope for state x in dst.
// The lane observation does not depend on the input u.
func (o *Lane) Observe(dst *mat.VecDense, x, u mat.Vector) error {
	if x.Len() != StateDim {
		return fmt.Errorf("invalid state vector length: %d", x.Len())
	}

	ye, psie := x.AtVec(YE), x.AtVec(PsiE)
	dst.SetVec(0, ye/math.Cos(psie))
	dst.SetVec(1, math.Tan(psie))

	return nil
}

// Jacobian stores the derivative of Observe with respect to x in dst.
func (o *Lane) Jacobian(dst *mat.Dense, x, u mat.Vector) error {
	if x.Len() != StateDim {
		return fmt.Errorf("invalid state vector length: %d", x.Len())
	}

	if r, c := dst.Dims(); r != LaneDim || c != StateDim {
		return fmt.Errorf("invalid jacobian dimensions: [%d x %d]", r, c)
	}

	ye, psie := x.AtVec(YE), x.AtVec(PsiE)
	tanPsi := math.Tan(psie)
	secPsi := 1 / math.Cos(psie)

	dst.Zero()
	dst.Set(0, YE, secPsi)
	dst.Set(0, PsiE, ye*tanPsi*secPsi)
	dst.Set(1, PsiE, secPsi*secPsi)

	return nil
}
