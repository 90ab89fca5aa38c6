package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vehicle is a unicycle model of a car in road aligned coordinates with first order
// lag dynamics from throttle to velocity and from steering to yaw rate.
// The actuator gains and time constants are part of the state and are estimated online.
//
//	ye'   = ye - dt*v*sin(psie)
//	psie' = psie + dt*(w + v*k*cos(psie)/(1 - k*ye))
//	w'    = w + dt*(v*exp(Cs)*(u_steer - mu_s) - w)/exp(Ts)
//	v'    = v + dt*(exp(Cv)*u_accel - v)/exp(Tv)
//
// All other state components are constant.
type Vehicle struct{}

// NewVehicle creates new vehicle model and returns it
func NewVehicle() *Vehicle {
	return &Vehicle{}
}

// Dims returns state and input dimensions
func (m *Vehicle) Dims() (int, int) {
	return StateDim, InputDim
}

func (m *Vehicle) check(x, u mat.Vector) error {
	if x.Len() != StateDim {
		return fmt.Errorf("invalid state vector length: %d", x.Len())
	}

	if u.Len() != InputDim {
		return fmt.Errorf("invalid input vector length: %d", u.Len())
	}

	return nil
}

// Propagate stores x advanced by dt given input u in dst. dst may be x.
func (m *Vehicle) Propagate(dst *mat.VecDense, x, u mat.Vector, dt float64) error {
	if err := m.check(x, u); err != nil {
		return err
	}

	ye, psie, w, v, k := x.AtVec(YE), x.AtVec(PsiE), x.AtVec(W), x.AtVec(V), x.AtVec(K)
	eCv, eTv := math.Exp(x.AtVec(Cv)), math.Exp(x.AtVec(Tv))
	eCs, eTs := math.Exp(x.AtVec(Cs)), math.Exp(x.AtVec(Ts))
	muS := x.AtVec(MuS)
	uAccel, uSteer := u.AtVec(Throttle), u.AtVec(Steering)

	if dst != x {
		dst.CopyVec(x)
	}

	dst.SetVec(YE, ye-dt*v*math.Sin(psie))
	dst.SetVec(PsiE, psie+dt*(w+v*k*math.Cos(psie)/(1-k*ye)))
	// TODO: clip yaw rate at the traction limit once it is part of the state
	dst.SetVec(W, w+dt*(v*eCs*(uSteer-muS)-w)/eTs)
	dst.SetVec(V, v+dt*(eCv*uAccel-v)/eTv)

	return nil
}

// Jacobian stores the derivative of Propagate with respect to the state x in dst.
// dst must be a StateDim x StateDim matrix.
func (m *Vehicle) Jacobian(dst *mat.Dense, x, u mat.Vector, dt float64) error {
	if err := m.check(x, u); err != nil {
		return err
	}

	if r, c := dst.Dims(); r != StateDim || c != StateDim {
		return fmt.Errorf("invalid jacobian dimensions: [%d x %d]", r, c)
	}

	ye, psie, w, v, k := x.AtVec(YE), x.AtVec(PsiE), x.AtVec(W), x.AtVec(V), x.AtVec(K)
	cv, tv, cs, ts := x.AtVec(Cv), x.AtVec(Tv), x.AtVec(Cs), x.AtVec(Ts)
	muS := x.AtVec(MuS)
	uAccel, uSteer := u.AtVec(Throttle), u.AtVec(Steering)

	sinPsi, cosPsi := math.Sincos(psie)
	kyem1 := k*ye - 1

	dst.Zero()
	for i := 0; i < StateDim; i++ {
		dst.Set(i, i, 1)
	}

	dst.Set(YE, PsiE, -dt*v*cosPsi)
	dst.Set(YE, V, -dt*sinPsi)

	dst.Set(PsiE, YE, dt*k*k*v*cosPsi/(kyem1*kyem1))
	dst.Set(PsiE, PsiE, (dt*k*v*sinPsi+kyem1)/kyem1)
	dst.Set(PsiE, W, dt)
	dst.Set(PsiE, V, -dt*k*cosPsi/kyem1)
	dst.Set(PsiE, K, dt*v*cosPsi/(kyem1*kyem1))

	dst.Set(W, W, 1-dt*math.Exp(-ts))
	dst.Set(W, V, -dt*(muS-uSteer)*math.Exp(cs-ts))
	dst.Set(W, Cs, -dt*v*(muS-uSteer)*math.Exp(cs-ts))
	dst.Set(W, Ts, dt*(v*(muS-uSteer)*math.Exp(cs)+w)*math.Exp(-ts))
	dst.Set(W, MuS, -dt*v*math.Exp(cs-ts))

	dst.Set(V, V, 1-dt*math.Exp(-tv))
	dst.Set(V, Cv, dt*uAccel*math.Exp(cv-tv))
	dst.Set(V, Tv, dt*(v-uAccel*math.Exp(cv))*math.Exp(-tv))

	return nil
}

// ProcessNoise stores the diagonal of the process noise covariance for state x in dst.
// Kinematic rows grow with speed; the remaining rows are undetermined constants.
func (m *Vehicle) ProcessNoise(dst []float64, x mat.Vector, dt float64) {
	vq := math.Abs(x.AtVec(V)) + 0.5

	dst[YE] = vq * dt * 0.1
	dst[PsiE] = vq * dt * 0.01
	dst[W] = vq * dt * 0.2
	dst[V] = dt * 0.001
	dst[K] = vq * dt * 0.001
	for i := Cv; i < StateDim; i++ {
		dst[i] = 1e-4
	}
}
