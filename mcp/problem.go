// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/complementarity/numdiff"
)

// BlockFunc evaluates one block function (𝐆 or 𝐇) at (𝐱,𝐲,𝛉) and writes the
// result into dst. theta may be nil when the problem carries no parameters.
type BlockFunc func(dst *mat.VecDense, x, y, theta *mat.VecDense)

// BlockJacobian evaluates a derivative matrix of one block and writes it into
// dst: either the derivative with respect to the stacked (𝐱,𝐲) (dim×(n+m))
// or with respect to 𝛉 (dim×p).
type BlockJacobian func(dst *mat.Dense, x, y, theta *mat.VecDense)

// Block specifies one of the two problem blocks as callables.
type Block struct {
	// Eval evaluates the block function. Required.
	Eval BlockFunc
	// Jac evaluates the block derivative with respect to (𝐱,𝐲).
	// When nil the derivative is approximated by finite differences.
	Jac BlockJacobian
	// JacTheta evaluates the block derivative with respect to 𝛉.
	// Only consulted when sensitivities are requested; when nil the
	// derivative is approximated by finite differences.
	JacTheta BlockJacobian
}

// Problem specifies an MCP instance for descriptor construction.
//
// Exactly one of the two forms must be used:
//   - block form: G and H given as callables, from which the augmented
//     residual 𝐅 and its Jacobians are assembled;
//   - raw form: Residual, StateJacobian and optionally ParamJacobian given
//     directly over the stacked state (e.g. produced by an external
//     symbolic-differentiation backend).
type Problem struct {
	UnconstrainedDim int // n : dimension of 𝐱 and codomain of 𝐆
	ConstrainedDim   int // m : dimension of 𝐲, 𝐬 and codomain of 𝐇
	ParamDim         int // p : dimension of 𝛉 (0 when the problem is unparameterized)

	// Block form.
	G *Block // equality block 𝐆(𝐱,𝐲) = 0
	H *Block // complementarity block 0 ≤ 𝐇(𝐱,𝐲) ⟂ 𝐲 ≥ 0

	// Raw form.
	Residual      Residual
	StateJacobian Jacobian
	ParamJacobian Jacobian

	// ComputeSensitivity enables the parameter Jacobian ∂𝐅/∂𝛉.
	ComputeSensitivity bool
	// Diff selects the finite-difference scheme for missing block Jacobians.
	Diff numdiff.Method
}

// New validates the problem and builds an immutable descriptor.
func (p *Problem) New() (*MCP, error) {

	n, m, pd := p.UnconstrainedDim, p.ConstrainedDim, p.ParamDim
	raw := p.Residual != nil || p.StateJacobian != nil || p.ParamJacobian != nil
	blocks := p.G != nil || p.H != nil

	switch {
	case n <= 0:
		return nil, invalidArg("UnconstrainedDim", n, "must be greater than 0")
	case m <= 0:
		return nil, invalidArg("ConstrainedDim", m, "must be greater than 0")
	case pd < 0:
		return nil, invalidArg("ParamDim", pd, "must not be negative")
	case p.ComputeSensitivity && pd == 0:
		return nil, invalidArg("ParamDim", pd, "sensitivity requires parameters")
	case raw && blocks:
		return nil, invalidArg("Problem", "G/H+raw", "block and raw callables are exclusive")
	case !raw && !blocks:
		return nil, invalidArg("Problem", nil, "either block or raw callables are required")
	}

	c := &MCP{n: n, m: m, p: pd}
	if raw {
		switch {
		case p.Residual == nil || p.StateJacobian == nil:
			return nil, invalidArg("Problem", nil, "raw form requires residual and state jacobian")
		case p.ComputeSensitivity && p.ParamJacobian == nil:
			return nil, invalidArg("ParamJacobian", nil, "required when sensitivity is requested")
		}
		c.residual = p.Residual
		c.jacState = p.StateJacobian
		if p.ComputeSensitivity {
			c.jacParam = p.ParamJacobian
		}
	} else {
		if p.G == nil || p.G.Eval == nil || p.H == nil || p.H.Eval == nil {
			return nil, invalidArg("Problem", nil, "block form requires G and H evaluations")
		}
		p.assemble(c)
	}

	if err := probe(c); err != nil {
		return nil, err
	}
	return c, nil
}

// assemble builds the augmented residual
//
//	𝐅(𝐳;𝛉,ϵ) = [ 𝐆(𝐱,𝐲) ; 𝐇(𝐱,𝐲) - 𝐬 ; 𝐲∘𝐬 - ϵ𝟏 ]
//
// and its block Jacobians
//
//	∂𝐅/∂𝐳 = ⎡ 𝐆𝐱  𝐆𝐲  O       ⎤    ∂𝐅/∂𝛉 = ⎡ 𝐆𝛉 ⎤
//	        ⎢ 𝐇𝐱  𝐇𝐲  -𝐈      ⎥            ⎢ 𝐇𝛉 ⎥
//	        ⎣ O  diag(𝐬) diag(𝐲) ⎦          ⎣ O  ⎦
//
// from the user blocks. All closures allocate their own scratch so the
// descriptor stays safe for concurrent use.
func (p *Problem) assemble(c *MCP) {

	n, m, pd := c.n, c.m, c.p
	gEval, hEval := p.G.Eval, p.H.Eval

	gJac := p.G.Jac
	if gJac == nil {
		gJac = stateFallback(gEval, n, n, m, p.Diff)
	}
	hJac := p.H.Jac
	if hJac == nil {
		hJac = stateFallback(hEval, m, n, m, p.Diff)
	}

	c.residual = func(f, z, theta *mat.VecDense, eps float64) {
		x, y, s := SplitZ(n, m, z)
		gEval(f.SliceVec(0, n).(*mat.VecDense), x, y, theta)
		hEval(f.SliceVec(n, n+m).(*mat.VecDense), x, y, theta)
		for i := 0; i < m; i++ {
			f.SetVec(n+i, f.AtVec(n+i)-s.AtVec(i))
			f.SetVec(n+m+i, y.AtVec(i)*s.AtVec(i)-eps)
		}
	}

	c.jacState = func(dst *mat.Dense, z, theta *mat.VecDense, eps float64) {
		x, y, s := SplitZ(n, m, z)
		dst.Zero()
		gJac(dst.Slice(0, n, 0, n+m).(*mat.Dense), x, y, theta)
		hJac(dst.Slice(n, n+m, 0, n+m).(*mat.Dense), x, y, theta)
		for i := 0; i < m; i++ {
			dst.Set(n+i, n+m+i, -1)
			dst.Set(n+m+i, n+i, s.AtVec(i))
			dst.Set(n+m+i, n+m+i, y.AtVec(i))
		}
	}

	if !p.ComputeSensitivity {
		return
	}

	gTheta := p.G.JacTheta
	if gTheta == nil {
		gTheta = paramFallback(gEval, n, pd, p.Diff)
	}
	hTheta := p.H.JacTheta
	if hTheta == nil {
		hTheta = paramFallback(hEval, m, pd, p.Diff)
	}

	c.jacParam = func(dst *mat.Dense, z, theta *mat.VecDense, eps float64) {
		x, y, _ := SplitZ(n, m, z)
		dst.Zero()
		gTheta(dst.Slice(0, n, 0, pd).(*mat.Dense), x, y, theta)
		hTheta(dst.Slice(n, n+m, 0, pd).(*mat.Dense), x, y, theta)
	}
}

// stateFallback approximates a block derivative with respect to the stacked
// (𝐱,𝐲) by finite differences.
func stateFallback(eval BlockFunc, dim, n, m int, method numdiff.Method) BlockJacobian {
	return func(dst *mat.Dense, x, y, theta *mat.VecDense) {
		v := mat.NewVecDense(n+m, nil)
		v.SliceVec(0, n).(*mat.VecDense).CopyVec(x)
		v.SliceVec(n, n+m).(*mat.VecDense).CopyVec(y)
		spec := numdiff.Spec{
			N: n + m, M: dim, Method: method,
			Func: func(out, v *mat.VecDense) {
				vx := v.SliceVec(0, n).(*mat.VecDense)
				vy := v.SliceVec(n, n+m).(*mat.VecDense)
				eval(out, vx, vy, theta)
			},
		}
		if err := spec.Jacobian(dst, v); err != nil {
			panic(err)
		}
	}
}

// paramFallback approximates a block derivative with respect to 𝛉 by finite
// differences.
func paramFallback(eval BlockFunc, dim, pd int, method numdiff.Method) BlockJacobian {
	return func(dst *mat.Dense, x, y, theta *mat.VecDense) {
		spec := numdiff.Spec{
			N: pd, M: dim, Method: method,
			Func: func(out, t *mat.VecDense) {
				eval(out, x, y, t)
			},
		}
		if err := spec.Jacobian(dst, theta); err != nil {
			panic(err)
		}
	}
}

// probe evaluates the assembled callables once at a canonical interior point,
// turning evaluation panics (wrong output dimensions, nil derivative slots)
// into configuration errors at construction time.
func probe(c *MCP) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = invalidArg("Problem", r, "evaluation failed at construction probe")
		}
	}()

	n, m, pd := c.n, c.m, c.p
	z := mat.NewVecDense(n+2*m, nil)
	for i := 0; i < 2*m; i++ {
		z.SetVec(n+i, 1)
	}
	var theta *mat.VecDense
	if pd > 0 {
		theta = mat.NewVecDense(pd, nil)
	}

	f := mat.NewVecDense(n+2*m, nil)
	c.residual(f, z, theta, 1)

	jac := mat.NewDense(n+2*m, n+2*m, nil)
	c.jacState(jac, z, theta, 1)

	if c.jacParam != nil {
		jt := mat.NewDense(n+2*m, pd, nil)
		c.jacParam(jt, z, theta, 1)
	}
	return
}
