// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStepToBoundaryFullStep(t *testing.T) {
	v := mat.NewVecDense(3, []float64{1, 2, 3})
	d := mat.NewVecDense(3, []float64{1, 0, -0.5})
	alpha, ok := StepToBoundary(v, d, defTau, defDecay, defMinStep)
	require.True(t, ok)
	assert.Equal(t, 1.0, alpha)
}

func TestStepToBoundaryBacktracks(t *testing.T) {
	v := mat.NewVecDense(1, []float64{1})
	d := mat.NewVecDense(1, []float64{-2})
	// admissible αs satisfy 1-2α ≥ 0.005, so the backtracking sequence
	// {1, 0.5, 0.25, …} first admits 0.25
	alpha, ok := StepToBoundary(v, d, defTau, defDecay, defMinStep)
	require.True(t, ok)
	assert.Equal(t, 0.25, alpha)
}

func TestStepToBoundaryFailure(t *testing.T) {
	v := mat.NewVecDense(2, []float64{1, 1})
	d := mat.NewVecDense(2, []float64{-1e9, 0})
	alpha, ok := StepToBoundary(v, d, defTau, defDecay, 1e-3)
	assert.False(t, ok)
	assert.Equal(t, 0.0, alpha)
}

// For any positive v and direction d, an accepted step keeps every component
// on the interior side of the scaled boundary and lies in (0, 1].
func TestStepToBoundaryProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(6)
		v := mat.NewVecDense(n, nil)
		d := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			v.SetVec(i, rng.Float64()*10+1e-6)
			d.SetVec(i, (rng.Float64()-0.5)*20)
		}
		alpha, ok := StepToBoundary(v, d, defTau, defDecay, defMinStep)
		if !ok {
			continue
		}
		require.Greater(t, alpha, 0.0)
		require.LessOrEqual(t, alpha, 1.0)
		for i := 0; i < n; i++ {
			next := v.AtVec(i) + alpha*d.AtVec(i)
			require.GreaterOrEqual(t, next, (1-defTau)*v.AtVec(i))
			require.Greater(t, next, 0.0)
		}
	}
}
