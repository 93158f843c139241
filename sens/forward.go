// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sens

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"

	"github.com/curioloop/complementarity/ipm"
	"github.com/curioloop/complementarity/mcp"
)

// SolveTangents is the forward-mode solve over an explicit set of tangent
// directions: it solves at the primal parameter value theta, evaluates
// ∂𝐳/∂𝛉 at the solution, and propagates every column of thetaDot (p×k)
// through it. The returned matrix holds the k propagated state tangents
// ((n+2m)×k).
func (e Engine) SolveTangents(m ipm.Method, c *mcp.MCP, theta *mat.VecDense, thetaDot *mat.Dense, in *ipm.Input) (*ipm.Result, *mat.Dense, error) {
	if thetaDot == nil {
		return nil, nil, errors.New("sens: tangent directions are required")
	}
	_, _, p := c.Dims()
	if rows, _ := thetaDot.Dims(); rows != p {
		return nil, nil, errors.Errorf("sens: tangent rows %d do not match parameter dimension %d", rows, p)
	}

	if in == nil {
		in = &ipm.Input{}
	}
	primal := *in
	primal.Theta = theta

	r, err := ipm.Solve(m, c, &primal)
	if err != nil {
		return nil, nil, err
	}
	if !r.Status.OK() {
		return r, nil, errors.Errorf("sens: solve terminated with status %s", r.Status)
	}

	jac, err := e.Jacobian(c, r, theta)
	if err != nil {
		return r, nil, err
	}
	_, k := thetaDot.Dims()
	zDot := mat.NewDense(c.Size(), k, nil)
	zDot.Mul(jac, thetaDot)
	return r, zDot, nil
}

// DualResult is a dual-valued solution: each block carries the primal value
// and the tangent propagated from the dual parameter vector.
type DualResult struct {
	X, Y, S []dual.Number
	Primal  *ipm.Result
}

// SolveDual is the forward-mode solve over dual-number parameters: the
// tangent parts of theta are stripped, the ordinary solver runs at the primal
// value, and the tangent direction is pushed through ∂𝐳/∂𝛉, which is exactly
// the forward-mode composition rule for the solve operation.
func (e Engine) SolveDual(m ipm.Method, c *mcp.MCP, theta []dual.Number, in *ipm.Input) (*DualResult, error) {
	_, _, p := c.Dims()
	if len(theta) != p {
		return nil, errors.Errorf("sens: theta dimension %d does not match descriptor %d", len(theta), p)
	}

	primal := mat.NewVecDense(p, nil)
	tangent := mat.NewDense(p, 1, nil)
	for i, t := range theta {
		primal.SetVec(i, t.Real)
		tangent.Set(i, 0, t.Emag)
	}

	r, zDot, err := e.SolveTangents(m, c, primal, tangent, in)
	if err != nil {
		return nil, err
	}

	n, m2, _ := c.Dims()
	lift := func(v *mat.VecDense, off int) []dual.Number {
		out := make([]dual.Number, v.Len())
		for i := range out {
			out[i] = dual.Number{Real: v.AtVec(i), Emag: zDot.At(off+i, 0)}
		}
		return out
	}
	return &DualResult{
		X:      lift(r.X, 0),
		Y:      lift(r.Y, n),
		S:      lift(r.S, n+m2),
		Primal: r,
	}, nil
}
