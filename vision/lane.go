package vision

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrFrameLength is returned when the frame size does not match the table format.
	ErrFrameLength = errors.New("unexpected frame length")
	// ErrTooFewPixels is returned when the frame does not contain enough lane evidence.
	ErrTooFewPixels = errors.New("not enough lane pixels")
	// ErrSingularFit is returned when the lane pixels do not determine a line.
	ErrSingularFit = errors.New("lane fit normal equations are singular")
)

// MaxCond is the largest condition number of the normal equations accepted by Detect
const MaxCond = 1e12

// Config configures lane detection.
type Config struct {
	// Threshold marks chroma U samples strictly below it as lane marking
	Threshold uint8
	// MinPixels is the minimum number of lane pixels needed to fit a line
	MinPixels int
	// SlopeNoise is added to the variance of the fitted slope
	SlopeNoise float64
}

// DefaultConfig returns the detection settings tuned for yellow tape on a grey floor
func DefaultConfig() Config {
	return Config{
		Threshold:  112,
		MinPixels:  20,
		SlopeNoise: 0.01,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.MinPixels < 2 {
		return fmt.Errorf("invalid minimum pixel count: %d", c.MinPixels)
	}

	if c.SlopeNoise < 0 || math.IsNaN(c.SlopeNoise) || math.IsInf(c.SlopeNoise, 0) {
		return fmt.Errorf("invalid slope noise: %v", c.SlopeNoise)
	}

	return nil
}

// Fit is a line U = B0 + B1*V fitted to the lane pixels in ground plane coordinates.
type Fit struct {
	// Z holds the intercept B0 and the slope B1
	Z *mat.VecDense
	// R is the covariance of Z
	R *mat.SymDense
	// N is the number of lane pixels in the fit
	N int
	// RSS is the residual sum of squares
	RSS float64
}

// Detector fits the lane line in camera frames.
// The returned Fit is owned by the Detector and overwritten by the next call to Detect.
type Detector struct {
	table *Table
	cfg   Config

	xtx  *mat.SymDense
	xty  *mat.VecDense
	chol mat.Cholesky
	inv  *mat.SymDense
	fit  Fit
}

// NewDetector creates new lane detector for frames described by table and returns it.
func NewDetector(table *Table, c Config) (*Detector, error) {
	if table == nil {
		return nil, fmt.Errorf("invalid reprojection table: %v", table)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &Detector{
		table: table,
		cfg:   c,
		xtx:   mat.NewSymDense(2, nil),
		xty:   mat.NewVecDense(2, nil),
		inv:   mat.NewSymDense(2, nil),
		fit: Fit{
			Z: mat.NewVecDense(2, nil),
			R: mat.NewSymDense(2, nil),
		},
	}, nil
}

// Detect fits the lane line in frame.
// It returns ErrFrameLength, ErrTooFewPixels or ErrSingularFit when no line can be fitted.
func (d *Detector) Detect(frame []byte) (*Fit, error) {
	f := d.table.Format()
	if len(frame) != f.Len() {
		return nil, fmt.Errorf("%w: %d, expected %d", ErrFrameLength, len(frame), f.Len())
	}

	// least squares sums for design vector (1, v) and target u
	var n, sv, svv, su, suv, suu float64
	cw := f.ChromaWidth()
	uplane := frame[f.UOffset():]
	for row := d.table.Top(); row < f.ChromaHeight(); row++ {
		line := uplane[row*cw : (row+1)*cw]
		for col, u := range line {
			if u >= d.cfg.Threshold {
				continue
			}

			p := d.table.At(row, col)
			n++
			sv += p.V
			svv += p.V * p.V
			su += p.U
			suv += p.U * p.V
			suu += p.U * p.U
		}
	}

	d.fit.N = int(n)
	if d.fit.N < d.cfg.MinPixels {
		return nil, fmt.Errorf("%w: %d", ErrTooFewPixels, d.fit.N)
	}

	d.xtx.SetSym(0, 0, n)
	d.xtx.SetSym(0, 1, sv)
	d.xtx.SetSym(1, 1, svv)
	d.xty.SetVec(0, su)
	d.xty.SetVec(1, suv)

	if ok := d.chol.Factorize(d.xtx); !ok {
		return nil, ErrSingularFit
	}

	if c := d.chol.Cond(); c > MaxCond || math.IsNaN(c) {
		return nil, fmt.Errorf("%w: condition number %g", ErrSingularFit, c)
	}

	if err := d.chol.SolveVecTo(d.fit.Z, d.xty); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularFit, err)
	}

	if err := d.chol.InverseTo(d.inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularFit, err)
	}

	b := d.fit.Z
	r2 := mat.Inner(b, d.xtx, b) - 2*mat.Dot(b, d.xty) + suu
	if r2 < 0 {
		r2 = 0
	}
	d.fit.RSS = r2

	d.fit.R.ScaleSym(r2, d.inv)
	d.fit.R.SetSym(1, 1, d.fit.R.At(1, 1)+d.cfg.SlopeNoise)

	return &d.fit, nil
}

// Table returns the reprojection table used by the detector
func (d *Detector) Table() *Table {
	return d.table
}
