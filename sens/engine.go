// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sens differentiates converged MCP solutions with respect to the
// problem parameters 𝛉 through the implicit function theorem: at a solution
// 𝐅(𝐳;𝛉,ϵ) = 0, so
//
//	∂𝐳/∂𝛉 = -(∂𝐅/∂𝐳)⁻¹ ∂𝐅/∂𝛉
//
// evaluated at (𝐳,𝛉,ϵ). The engine exposes this as the raw Jacobian, as a
// reverse-mode pullback around the solve operation, and as a forward-mode
// dual-valued solve, so the solver composes as a differentiable layer inside
// a surrounding optimization or learning pipeline.
package sens

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/complementarity/ipm"
	"github.com/curioloop/complementarity/mcp"
)

const one = 1.0

// Engine computes solution sensitivities. The zero value is ready to use.
type Engine struct {
	// Linear selects the factorization of the sensitivity system (LU).
	Linear ipm.LinearSolver
}

func (e Engine) linear() ipm.LinearSolver {
	if e.Linear == nil {
		return ipm.LU{}
	}
	return e.Linear
}

// jacobians evaluates ∂𝐅/∂𝐳 and ∂𝐅/∂𝛉 at the converged solution.
func jacobians(c *mcp.MCP, r *ipm.Result, theta *mat.VecDense) (jz, jt *mat.Dense, err error) {
	if !c.HasParamJacobian() {
		return nil, nil, errors.WithStack(mcp.ErrNoSensitivity)
	}
	if !r.Status.OK() {
		return nil, nil, errors.Errorf("sens: cannot differentiate a %s solution", r.Status)
	}
	_, _, p := c.Dims()
	if theta == nil {
		theta = mat.NewVecDense(p, nil)
	} else if theta.Len() != p {
		return nil, nil, errors.Errorf("sens: theta dimension %d does not match descriptor %d", theta.Len(), p)
	}

	z := mcp.JoinZ(r.X, r.Y, r.S)
	sz := c.Size()
	jz = mat.NewDense(sz, sz, nil)
	c.StateJacobian(jz, z, theta, r.Eps)
	jt = mat.NewDense(sz, p, nil)
	if err := c.ParamJacobian(jt, z, theta, r.Eps); err != nil {
		return nil, nil, err
	}
	return jz, jt, nil
}

// Jacobian computes ∂𝐳/∂𝛉 at the converged solution r for parameter value
// theta, via one factorization and a multi-column solve. The result is a
// fresh (n+2m)×p matrix; nothing is cached in the descriptor or the result.
func (e Engine) Jacobian(c *mcp.MCP, r *ipm.Result, theta *mat.VecDense) (*mat.Dense, error) {
	jz, jt, err := jacobians(c, r, theta)
	if err != nil {
		return nil, err
	}
	_, _, p := c.Dims()
	dst := mat.NewDense(c.Size(), p, nil)
	if err := e.linear().SolveTo(dst, jz, false, jt); err != nil {
		return nil, errors.Wrap(err, "sens: state jacobian singular at solution")
	}
	dst.Scale(-one, dst)
	return dst, nil
}

// Pullback returns the reverse-mode rule for the solve operation: applied to
// a downstream gradient 𝐳̄ = [∂loss/∂𝐱; ∂loss/∂𝐲; ∂loss/∂𝐬], it yields
//
//	𝛉̄ = (∂𝐳/∂𝛉)ᵀ 𝐳̄ = -(∂𝐅/∂𝛉)ᵀ (∂𝐅/∂𝐳)⁻ᵀ 𝐳̄
//
// through a single transpose solve, without materializing ∂𝐳/∂𝛉 and without
// re-running the iterative solver.
func (e Engine) Pullback(c *mcp.MCP, r *ipm.Result, theta *mat.VecDense) (func(zbar *mat.VecDense) (*mat.VecDense, error), error) {
	jz, jt, err := jacobians(c, r, theta)
	if err != nil {
		return nil, err
	}
	sz := c.Size()
	_, _, p := c.Dims()
	lin := e.linear()

	return func(zbar *mat.VecDense) (*mat.VecDense, error) {
		if zbar.Len() != sz {
			return nil, errors.Errorf("sens: gradient dimension %d does not match state %d", zbar.Len(), sz)
		}
		w := mat.NewVecDense(sz, nil)
		if err := lin.SolveVecTo(w, jz, true, zbar); err != nil {
			return nil, errors.Wrap(err, "sens: state jacobian singular at solution")
		}
		thetaBar := mat.NewVecDense(p, nil)
		thetaBar.MulVec(jt.T(), w)
		thetaBar.ScaleVec(-one, thetaBar)
		return thetaBar, nil
	}, nil
}

// SolveWithPullback runs the forward solve and, when it converges, attaches
// the reverse-mode rule for it. The forward pass is an ordinary solver call.
func (e Engine) SolveWithPullback(m ipm.Method, c *mcp.MCP, in *ipm.Input) (*ipm.Result, func(zbar *mat.VecDense) (*mat.VecDense, error), error) {
	if in == nil {
		in = &ipm.Input{}
	}
	r, err := ipm.Solve(m, c, in)
	if err != nil {
		return nil, nil, err
	}
	if !r.Status.OK() {
		return r, nil, errors.Errorf("sens: solve terminated with status %s", r.Status)
	}
	pb, err := e.Pullback(c, r, in.Theta)
	if err != nil {
		return r, nil, err
	}
	return r, pb, nil
}
