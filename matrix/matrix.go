package matrix

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SymmetrizeTo stores (m + m')/2 in dst.
// It panics if m is not square or its size differs from dst.
func SymmetrizeTo(dst *mat.SymDense, m mat.Matrix) {
	n := dst.SymmetricDim()
	if r, c := m.Dims(); r != n || c != n {
		panic(mat.ErrShape)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
}

// IsFinite returns true if none of the values in s is NaN or infinite.
func IsFinite(s []float64) bool {
	if floats.HasNaN(s) {
		return false
	}

	for _, v := range s {
		if math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

// DiagFinite returns true if every diagonal element of m is finite.
func DiagFinite(m mat.Symmetric) bool {
	for i := 0; i < m.SymmetricDim(); i++ {
		v := m.At(i, i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

// Clamp returns v limited to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
