// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"

	"github.com/curioloop/complementarity/ipm"
	"github.com/curioloop/complementarity/mcp"
)

// quadraticMCP builds the MCP of the parametric quadratic program
//
//	minimize ½𝐱ᵀ𝐌𝐱 - 𝛉ᵀ𝐱 subject to 𝐀𝐱 ⪰ 𝐛
//
// through its KKT system: 𝐆(𝐱,𝐲,𝛉) = 𝐌𝐱 - 𝛉 - 𝐀ᵀ𝐲 and 𝐇(𝐱,𝐲) = 𝐀𝐱 - 𝐛.
func quadraticMCP(t *testing.T, M, A *mat.Dense, b *mat.VecDense, sensitivity bool) *mcp.MCP {
	t.Helper()
	n, _ := M.Dims()
	m, _ := A.Dims()

	g := &mcp.Block{
		Eval: func(dst *mat.VecDense, x, y, theta *mat.VecDense) {
			dst.MulVec(M, x)
			aty := mat.NewVecDense(n, nil)
			aty.MulVec(A.T(), y)
			dst.SubVec(dst, aty)
			dst.SubVec(dst, theta)
		},
		Jac: func(dst *mat.Dense, x, y, theta *mat.VecDense) {
			dst.Slice(0, n, 0, n).(*mat.Dense).Copy(M)
			dst.Slice(0, n, n, n+m).(*mat.Dense).Scale(-1, A.T())
		},
		JacTheta: func(dst *mat.Dense, x, y, theta *mat.VecDense) {
			dst.Zero()
			for i := 0; i < n; i++ {
				dst.Set(i, i, -1)
			}
		},
	}
	h := &mcp.Block{
		Eval: func(dst *mat.VecDense, x, y, theta *mat.VecDense) {
			dst.MulVec(A, x)
			dst.SubVec(dst, b)
		},
		Jac: func(dst *mat.Dense, x, y, theta *mat.VecDense) {
			dst.Zero()
			dst.Slice(0, m, 0, n).(*mat.Dense).Copy(A)
		},
		JacTheta: func(dst *mat.Dense, x, y, theta *mat.VecDense) {
			dst.Zero()
		},
	}

	c, err := (&mcp.Problem{
		UnconstrainedDim: n, ConstrainedDim: m, ParamDim: n,
		G: g, H: h, ComputeSensitivity: sensitivity,
	}).New()
	require.NoError(t, err)
	return c
}

func testQP(t *testing.T, sensitivity bool) *mcp.MCP {
	M := mat.NewDense(2, 2, []float64{2, 0.5, 0.5, 1})
	A := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	b := mat.NewVecDense(2, []float64{0, 0})
	return quadraticMCP(t, M, A, b, sensitivity)
}

func solveQP(t *testing.T, c *mcp.MCP, theta *mat.VecDense) *ipm.Result {
	t.Helper()
	ip, err := ipm.Options{Tolerance: 1e-8}.New()
	require.NoError(t, err)
	r, err := ipm.Solve(ip, c, &ipm.Input{Theta: theta})
	require.NoError(t, err)
	require.True(t, r.Status.OK(), "status: %s", r.Status)
	return r
}

// First-order correctness of the implicit-function-theorem derivative:
// z(θ+δθ) - z(θ) - (∂z/∂θ)·δθ must vanish to second order in δθ.
func TestJacobianAgainstFiniteDifference(t *testing.T) {
	c := testQP(t, true)
	theta := mat.NewVecDense(2, []float64{2, 1})
	r := solveQP(t, c, theta)

	jac, err := Engine{}.Jacobian(c, r, theta)
	require.NoError(t, err)

	delta := mat.NewVecDense(2, []float64{1e-4, -5e-5})
	shifted := mat.NewVecDense(2, nil)
	shifted.AddVec(theta, delta)
	r2 := solveQP(t, c, shifted)

	z1 := mcp.JoinZ(r.X, r.Y, r.S)
	z2 := mcp.JoinZ(r2.X, r2.Y, r2.S)
	predict := mat.NewVecDense(c.Size(), nil)
	predict.MulVec(jac, delta)

	for i := 0; i < c.Size(); i++ {
		diff := z2.AtVec(i) - z1.AtVec(i) - predict.AtVec(i)
		assert.InDelta(t, 0, diff, 1e-6, "component %d", i)
	}
}

func TestPullbackMatchesJacobian(t *testing.T) {
	c := testQP(t, true)
	theta := mat.NewVecDense(2, []float64{2, 1})
	r := solveQP(t, c, theta)

	e := Engine{}
	jac, err := e.Jacobian(c, r, theta)
	require.NoError(t, err)
	pb, err := e.Pullback(c, r, theta)
	require.NoError(t, err)

	zbar := mat.NewVecDense(c.Size(), []float64{1, -2, 0.5, 0.25, -1, 3})
	got, err := pb(zbar)
	require.NoError(t, err)

	want := mat.NewVecDense(2, nil)
	want.MulVec(jac.T(), zbar)
	for i := 0; i < 2; i++ {
		assert.InDelta(t, want.AtVec(i), got.AtVec(i), 1e-8)
	}
}

func TestSolveTangents(t *testing.T) {
	c := testQP(t, true)
	theta := mat.NewVecDense(2, []float64{2, 1})
	ip, err := ipm.Options{Tolerance: 1e-8}.New()
	require.NoError(t, err)

	eye := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	r, zDot, err := Engine{}.SolveTangents(ip, c, theta, eye, nil)
	require.NoError(t, err)
	require.True(t, r.Status.OK())

	// propagating the identity tangents reproduces ∂z/∂θ itself
	jac, err := Engine{}.Jacobian(c, r, theta)
	require.NoError(t, err)
	for i := 0; i < c.Size(); i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, jac.At(i, j), zDot.At(i, j), 1e-12)
		}
	}
}

func TestSolveDual(t *testing.T) {
	c := testQP(t, true)
	ip, err := ipm.Options{Tolerance: 1e-8}.New()
	require.NoError(t, err)

	// θ carrying the tangent direction e₀
	theta := []dual.Number{{Real: 2, Emag: 1}, {Real: 1, Emag: 0}}
	dr, err := Engine{}.SolveDual(ip, c, theta, nil)
	require.NoError(t, err)
	require.True(t, dr.Primal.Status.OK())

	jac, err := Engine{}.Jacobian(c, dr.Primal, mat.NewVecDense(2, []float64{2, 1}))
	require.NoError(t, err)

	n, m, _ := c.Dims()
	for i := 0; i < n; i++ {
		assert.Equal(t, dr.Primal.X.AtVec(i), dr.X[i].Real)
		assert.InDelta(t, jac.At(i, 0), dr.X[i].Emag, 1e-12)
	}
	for i := 0; i < m; i++ {
		assert.InDelta(t, jac.At(n+i, 0), dr.Y[i].Emag, 1e-12)
		assert.InDelta(t, jac.At(n+m+i, 0), dr.S[i].Emag, 1e-12)
	}
}

func TestSolveWithPullback(t *testing.T) {
	c := testQP(t, true)
	theta := mat.NewVecDense(2, []float64{2, 1})
	ip, err := ipm.Options{Tolerance: 1e-8}.New()
	require.NoError(t, err)

	r, pb, err := Engine{}.SolveWithPullback(ip, c, &ipm.Input{Theta: theta})
	require.NoError(t, err)
	require.True(t, r.Status.OK())

	// gradient of loss = x₀ with respect to θ
	zbar := mat.NewVecDense(c.Size(), nil)
	zbar.SetVec(0, 1)
	grad, err := pb(zbar)
	require.NoError(t, err)
	require.Equal(t, 2, grad.Len())

	jac, err := Engine{}.Jacobian(c, r, theta)
	require.NoError(t, err)
	for j := 0; j < 2; j++ {
		assert.InDelta(t, jac.At(0, j), grad.AtVec(j), 1e-8)
	}
}

func TestConfigurationErrors(t *testing.T) {
	plain := testQP(t, false)
	theta := mat.NewVecDense(2, []float64{2, 1})
	r := solveQP(t, plain, theta)

	_, err := Engine{}.Jacobian(plain, r, theta)
	assert.ErrorIs(t, err, mcp.ErrNoSensitivity)
	_, err = Engine{}.Pullback(plain, r, theta)
	assert.ErrorIs(t, err, mcp.ErrNoSensitivity)

	// a failed solve must be refused
	c := testQP(t, true)
	failed := &ipm.Result{
		X: r.X, Y: r.Y, S: r.S,
		Status: ipm.SearchFailed,
	}
	_, err = Engine{}.Jacobian(c, failed, theta)
	assert.Error(t, err)

	// mismatched theta dimension
	_, err = Engine{}.Jacobian(c, r, mat.NewVecDense(3, nil))
	assert.Error(t, err)

	// a nil tangent matrix is a configuration error, not a panic
	ip, err := ipm.Options{}.New()
	require.NoError(t, err)
	_, _, err = Engine{}.SolveTangents(ip, c, theta, nil, nil)
	assert.Error(t, err)
}
