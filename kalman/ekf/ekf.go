package ekf

import (
	"errors"
	"fmt"

	"github.com/milosgajdos/matrix"
	drive "github.com/tjacobs/autorustler"
	"github.com/tjacobs/autorustler/estimate"
	mx "github.com/tjacobs/autorustler/matrix"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned by Update when the innovation covariance can not be inverted.
// The filter state is left unchanged.
var ErrSingular = errors.New("innovation covariance is not positive definite")

// EKF is Extended Kalman Filter.
// It owns the state mean and covariance and updates them in place.
// All matrices needed by Predict and Update are allocated up front, or on the first
// Update of a given measurement dimension, and reused afterwards.
type EKF struct {
	// m is EKF system model
	m drive.Model
	// x is the state mean
	x *mat.VecDense
	// xNext is the propagated state mean
	xNext *mat.VecDense
	// p is the EKF covariance matrix
	p *mat.SymDense
	// f is EKF propagation jacobian
	f *mat.Dense
	// q is the process noise covariance diagonal
	q []float64
	// eye is nx x nx identity
	eye mat.Matrix
	// fp, fpf are propagation workspaces
	fp, fpf *mat.Dense
	// kh, a, ap, apa, krk are covariance update workspaces
	kh, a, ap, apa, krk *mat.Dense
	// corr is state correction
	corr *mat.VecDense
	// ws are update workspaces keyed by measurement dimension
	ws map[int]*workspace
	// last is the workspace used by the last successful update
	last *workspace
}

type workspace struct {
	// y is the expected measurement
	y *mat.VecDense
	// inn is innovation vector
	inn *mat.VecDense
	// h is observation jacobian
	h *mat.Dense
	// hp is H*P
	hp *mat.Dense
	// hph is H*P*H'
	hph *mat.Dense
	// s is innovation covariance
	s *mat.SymDense
	// chol is Cholesky factorization of s
	chol mat.Cholesky
	// kt is transposed Kalman gain
	kt *mat.Dense
	// k is Kalman gain
	k *mat.Dense
	// kr is K*R
	kr *mat.Dense
}

func newWorkspace(nx, ny int) *workspace {
	return &workspace{
		y:   mat.NewVecDense(ny, nil),
		inn: mat.NewVecDense(ny, nil),
		h:   mat.NewDense(ny, nx, nil),
		hp:  mat.NewDense(ny, nx, nil),
		hph: mat.NewDense(ny, ny, nil),
		s:   mat.NewSymDense(ny, nil),
		kt:  mat.NewDense(ny, nx, nil),
		k:   mat.NewDense(nx, ny, nil),
		kr:  mat.NewDense(nx, ny, nil),
	}
}

// New creates new EKF and returns it.
// It accepts the following parameters:
//   - m:    dynamical system model
//   - init: initial condition of the filter
//
// It returns error if either of the following conditions is met:
//   - invalid model is given: model dimensions must be positive integers
//   - initial condition dimensions do not match the model
func New(m drive.Model, init drive.InitCond) (*EKF, error) {
	nx, nu := m.Dims()
	if nx <= 0 || nu < 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d x %d]", nx, nu)
	}

	if init.State().Len() != nx || init.Cov().SymmetricDim() != nx {
		return nil, fmt.Errorf("invalid initial condition dimensions: %d, %d", init.State().Len(), init.Cov().SymmetricDim())
	}

	eye, err := matrix.NewDenseValIdentity(nx, 1.0)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity matrix: %v", err)
	}

	k := &EKF{
		m:     m,
		x:     mat.NewVecDense(nx, nil),
		xNext: mat.NewVecDense(nx, nil),
		p:     mat.NewSymDense(nx, nil),
		f:     mat.NewDense(nx, nx, nil),
		q:     make([]float64, nx),
		eye:   eye,
		fp:    mat.NewDense(nx, nx, nil),
		fpf:   mat.NewDense(nx, nx, nil),
		kh:    mat.NewDense(nx, nx, nil),
		a:     mat.NewDense(nx, nx, nil),
		ap:    mat.NewDense(nx, nx, nil),
		apa:   mat.NewDense(nx, nx, nil),
		krk:   mat.NewDense(nx, nx, nil),
		corr:  mat.NewVecDense(nx, nil),
		ws:    make(map[int]*workspace),
	}

	if err := k.Reset(init); err != nil {
		return nil, err
	}

	return k, nil
}

// Reset sets the filter state and covariance to the initial condition init.
func (k *EKF) Reset(init drive.InitCond) error {
	state, cov := init.State(), init.Cov()
	if state.Len() != k.x.Len() || cov.SymmetricDim() != k.p.SymmetricDim() {
		return fmt.Errorf("invalid initial condition dimensions: %d, %d", state.Len(), cov.SymmetricDim())
	}

	k.x.CopyVec(state)
	k.p.CopySym(cov)
	k.last = nil

	return nil
}

// Predict propagates the filter state by dt given input u.
// The covariance is propagated through the model jacobian evaluated at the
// state before propagation: P = F*P*F' + Q.
func (k *EKF) Predict(u mat.Vector, dt float64) error {
	if err := k.m.Jacobian(k.f, k.x, u, dt); err != nil {
		return fmt.Errorf("failed to calculate propagation jacobian: %v", err)
	}

	if err := k.m.Propagate(k.xNext, k.x, u, dt); err != nil {
		return fmt.Errorf("system state propagation failed: %v", err)
	}
	k.x.CopyVec(k.xNext)

	// process noise grows with the propagated state
	k.m.ProcessNoise(k.q, k.x, dt)

	k.fp.Mul(k.f, k.p)
	k.fpf.Mul(k.fp, k.f.T())
	mx.SymmetrizeTo(k.p, k.fpf)

	for i, q := range k.q {
		k.p.SetSym(i, i, k.p.At(i, i)+q)
	}

	return nil
}

func (k *EKF) workspace(ny int) *workspace {
	w, ok := k.ws[ny]
	if !ok {
		w = newWorkspace(k.x.Len(), ny)
		k.ws[ny] = w
	}

	return w
}

// Update corrects the filter state using measurement z observed through o with measurement noise r.
// It returns ErrSingular if the innovation covariance is not positive definite and error if
// the supplied vectors do not match the observer dimensions. The filter is not modified when error is returned.
func (k *EKF) Update(o drive.Observer, u, z mat.Vector, r mat.Symmetric) error {
	nx, ny := o.Dims()
	if nx != k.x.Len() || ny <= 0 {
		return fmt.Errorf("invalid observer dimensions: [%d x %d]", nx, ny)
	}

	if z.Len() != ny {
		return fmt.Errorf("invalid measurement supplied: %v", z)
	}

	if r.SymmetricDim() != ny {
		return fmt.Errorf("invalid output noise dimension: %d", r.SymmetricDim())
	}

	w := k.workspace(ny)

	// observe system output
	if err := o.Observe(w.y, k.x, u); err != nil {
		return fmt.Errorf("failed to observe system output: %v", err)
	}

	// calculate observation Jacobian matrix
	if err := o.Jacobian(w.h, k.x, u); err != nil {
		return fmt.Errorf("failed to calculate observation jacobian: %v", err)
	}

	// H*P
	w.hp.Mul(w.h, k.p)
	// H*P*H'
	w.hph.Mul(w.hp, w.h.T())
	for i := 0; i < ny; i++ {
		for j := i; j < ny; j++ {
			w.s.SetSym(i, j, 0.5*(w.hph.At(i, j)+w.hph.At(j, i))+r.At(i, j))
		}
	}

	if ok := w.chol.Factorize(w.s); !ok {
		return ErrSingular
	}

	// K' = S^-1 * H*P, which is (P*H'*S^-1)' since P is symmetric
	if err := w.chol.SolveTo(w.kt, w.hp); err != nil {
		return ErrSingular
	}
	w.k.Copy(w.kt.T())

	// innovation vector
	w.inn.SubVec(z, w.y)

	// update state x
	k.corr.MulVec(w.k, w.inn)
	k.x.AddVec(k.x, k.corr)

	// Joseph form update: (I - K*H)*P*(I - K*H)' + K*R*K'
	k.kh.Mul(w.k, w.h)
	k.a.Sub(k.eye, k.kh)
	k.ap.Mul(k.a, k.p)
	k.apa.Mul(k.ap, k.a.T())
	w.kr.Mul(w.k, r)
	k.krk.Mul(w.kr, w.k.T())
	k.apa.Add(k.apa, k.krk)
	mx.SymmetrizeTo(k.p, k.apa)

	k.last = w

	return nil
}

// Diverged returns true if the state mean or the covariance diagonal is not finite.
func (k *EKF) Diverged() bool {
	return !mx.IsFinite(k.x.RawVector().Data) || !mx.DiagFinite(k.p)
}

// State returns a copy of the EKF state mean
func (k *EKF) State() mat.Vector {
	x := mat.NewVecDense(k.x.Len(), nil)
	x.CopyVec(k.x)

	return x
}

// RawState returns the backing slice of the EKF state mean.
// Changes to its elements are reflected in the filter.
func (k *EKF) RawState() []float64 {
	return k.x.RawVector().Data
}

// Estimate returns a snapshot of the current state mean and covariance
func (k *EKF) Estimate() (*estimate.Base, error) {
	return estimate.NewBaseWithCov(k.x, k.p)
}

// Cov returns EKF covariance
func (k *EKF) Cov() mat.Symmetric {
	cov := mat.NewSymDense(k.p.SymmetricDim(), nil)
	cov.CopySym(k.p)

	return cov
}

// SetCov sets EKF covariance matrix to cov.
// It returns error if either cov is nil or its dimensions are not the same as EKF covariance dimensions.
func (k *EKF) SetCov(cov mat.Symmetric) error {
	if cov == nil {
		return fmt.Errorf("invalid covariance matrix: %v", cov)
	}

	if cov.SymmetricDim() != k.p.SymmetricDim() {
		return fmt.Errorf("invalid covariance matrix dims: [%d x %d]", cov.SymmetricDim(), cov.SymmetricDim())
	}

	k.p.CopySym(cov)

	return nil
}

// Gain returns Kalman gain of the last successful update.
// It returns empty matrix if no update has been done since the last reset.
func (k *EKF) Gain() mat.Matrix {
	gain := &mat.Dense{}
	if k.last != nil {
		gain.CloneFrom(k.last.k)
	}

	return gain
}

// Innovation returns innovation vector of the last successful update.
// It returns empty vector if no update has been done since the last reset.
func (k *EKF) Innovation() mat.Vector {
	inn := &mat.VecDense{}
	if k.last != nil {
		inn.CloneFromVec(k.last.inn)
	}

	return inn
}
