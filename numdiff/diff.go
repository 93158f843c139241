// Package numdiff estimates Jacobians of vector functions by finite
// differences. It backs descriptor construction when analytic derivative
// blocks are not supplied.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

// Func evaluates 𝒇 : ℝⁿ → ℝᵐ at x and writes the result into dst (length M).
type Func func(dst, x *mat.VecDense)

// Spec represents a numerical differentiation of a vector function.
type Spec struct {
	N, M int
	// Function of which to estimate the derivatives.
	Func Func
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute absolute step size.
	// The absolute step size is computed as h = RelStep * sign(x0) * abs(x0).
	// When neither RelStep nor AbsStep is provided it defaults to
	// h = eps^(1/2 or 1/3) * sign(x0) * max(1, abs(x0)).
	RelStep float64
	// Absolute step size to use. Takes precedence over RelStep.
	AbsStep float64
}

func (s *Spec) check(dst *mat.Dense, x *mat.VecDense) error {
	switch {
	case s.N <= 0 || s.M <= 0:
		return errors.New("numdiff: non-positive dimensions")
	case s.Method != Forward && s.Method != Central:
		return errors.New("numdiff: unknown method")
	case s.Func == nil:
		return errors.New("numdiff: function is required")
	case x.Len() != s.N:
		return errors.New("numdiff: invalid x0 dimension")
	}
	if r, c := dst.Dims(); r != s.M || c != s.N {
		return errors.New("numdiff: invalid jacobian dimension")
	}
	return nil
}

// Jacobian approximates the M×N derivative matrix of Func at x0 and writes it
// into dst. x0 is left unchanged on return.
func (s *Spec) Jacobian(dst *mat.Dense, x0 *mat.VecDense) error {

	if err := s.check(dst, x0); err != nil {
		return err
	}

	x := mat.NewVecDense(s.N, nil)
	x.CopyVec(x0)

	if s.Method == Central {
		s.approxCentral(dst, x)
	} else {
		s.approxForward(dst, x)
	}
	return nil
}

func (s *Spec) step(v float64) float64 {
	eps := sqrtEps
	if s.Method == Central {
		eps = cubeEps
	}
	h := s.AbsStep
	if h == 0 && s.RelStep != 0 {
		h = math.Copysign(s.RelStep, v) * math.Abs(v)
	}
	if d := (v + h) - v; h == 0 || d == 0 {
		h = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
	}
	return h
}

func (s *Spec) approxForward(dst *mat.Dense, x *mat.VecDense) {
	f0 := mat.NewVecDense(s.M, nil)
	fx := mat.NewVecDense(s.M, nil)
	s.Func(f0, x)
	for i := 0; i < s.N; i++ {
		t := x.AtVec(i)
		h := s.step(t)
		x.SetVec(i, t+h)
		s.Func(fx, x)
		d := 1.0 / h
		for j := 0; j < s.M; j++ {
			dst.Set(j, i, (fx.AtVec(j)-f0.AtVec(j))*d)
		}
		x.SetVec(i, t)
	}
}

func (s *Spec) approxCentral(dst *mat.Dense, x *mat.VecDense) {
	f1 := mat.NewVecDense(s.M, nil)
	f2 := mat.NewVecDense(s.M, nil)
	for i := 0; i < s.N; i++ {
		t := x.AtVec(i)
		h := math.Abs(s.step(t))
		x.SetVec(i, t-h)
		s.Func(f1, x)
		x.SetVec(i, t+h)
		s.Func(f2, x)
		d := 1.0 / (2 * h)
		for j := 0; j < s.M; j++ {
			dst.Set(j, i, (f2.AtVec(j)-f1.AtVec(j))*d)
		}
		x.SetVec(i, t)
	}
}
