// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mcp describes MCP (Mixed Complementarity Problem) instances:
// find (𝐱,𝐲) such that
//   - 𝐆(𝐱,𝐲) = 0
//   - 0 ≤ 𝐇(𝐱,𝐲) ⟂ 𝐲 ≥ 0
//
// The complementarity block is rewritten into equality form by introducing a
// slack variable 𝐬 = 𝐇(𝐱,𝐲) and relaxing the pointwise product with a barrier
// parameter ϵ, which yields the augmented residual over the stacked state
// 𝐳 = [𝐱;𝐲;𝐬]:
//
//	𝐅(𝐳;𝛉,ϵ) = [ 𝐆(𝐱,𝐲) ; 𝐇(𝐱,𝐲) - 𝐬 ; 𝐲∘𝐬 - ϵ𝟏 ]
//
// A descriptor bundles 𝐅, its Jacobian with respect to 𝐳 and, when sensitivity
// support is requested, its Jacobian with respect to the parameter vector 𝛉.
// Descriptors are immutable and stateless: the bundled callables must be pure,
// which makes one descriptor safe to share across concurrent solves.
package mcp

import (
	"gonum.org/v1/gonum/mat"
)

// Residual evaluates 𝐅(𝐳;𝛉,ϵ) and writes the result into f (length n+2m).
// theta may be nil when the problem carries no parameters.
type Residual func(f, z, theta *mat.VecDense, eps float64)

// Jacobian evaluates a derivative matrix of 𝐅 and writes it into dst:
// either ∂𝐅/∂𝐳 ((n+2m)×(n+2m)) or ∂𝐅/∂𝛉 ((n+2m)×p).
// Implementations must fully overwrite dst.
type Jacobian func(dst *mat.Dense, z, theta *mat.VecDense, eps float64)

// MCP is an immutable problem descriptor produced by Problem.New.
type MCP struct {
	n, m, p  int
	residual Residual
	jacState Jacobian
	jacParam Jacobian // nil unless built with ComputeSensitivity
}

// Dims returns the unconstrained, constrained and parameter dimensions.
func (c *MCP) Dims() (n, m, p int) { return c.n, c.m, c.p }

// Size returns the stacked state dimension n+2m.
func (c *MCP) Size() int { return c.n + 2*c.m }

// Residual evaluates the augmented residual 𝐅(𝐳;𝛉,ϵ) into f.
func (c *MCP) Residual(f, z, theta *mat.VecDense, eps float64) {
	c.residual(f, z, theta, eps)
}

// StateJacobian evaluates ∂𝐅/∂𝐳 at (𝐳,𝛉,ϵ) into dst.
// The residual and the Jacobian must be evaluated at consistent arguments.
func (c *MCP) StateJacobian(dst *mat.Dense, z, theta *mat.VecDense, eps float64) {
	c.jacState(dst, z, theta, eps)
}

// HasParamJacobian reports whether the descriptor supports sensitivities.
func (c *MCP) HasParamJacobian() bool { return c.jacParam != nil }

// ParamJacobian evaluates ∂𝐅/∂𝛉 at (𝐳,𝛉,ϵ) into dst.
// It fails with ErrNoSensitivity when the descriptor was built without
// ComputeSensitivity.
func (c *MCP) ParamJacobian(dst *mat.Dense, z, theta *mat.VecDense, eps float64) error {
	if c.jacParam == nil {
		return ErrNoSensitivity
	}
	c.jacParam(dst, z, theta, eps)
	return nil
}

// SplitZ views the stacked state 𝐳 as its 𝐱 (length n), 𝐲 (length m) and
// 𝐬 (length m) blocks. The returned vectors alias z.
func SplitZ(n, m int, z *mat.VecDense) (x, y, s *mat.VecDense) {
	x = z.SliceVec(0, n).(*mat.VecDense)
	y = z.SliceVec(n, n+m).(*mat.VecDense)
	s = z.SliceVec(n+m, n+2*m).(*mat.VecDense)
	return
}

// JoinZ stacks 𝐱, 𝐲 and 𝐬 into a freshly allocated state vector.
func JoinZ(x, y, s *mat.VecDense) *mat.VecDense {
	n, m := x.Len(), y.Len()
	z := mat.NewVecDense(n+2*m, nil)
	z.SliceVec(0, n).(*mat.VecDense).CopyVec(x)
	z.SliceVec(n, n+m).(*mat.VecDense).CopyVec(y)
	z.SliceVec(n+m, n+2*m).(*mat.VecDense).CopyVec(s)
	return z
}
