// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"gonum.org/v1/gonum/mat"
)

// StepToBoundary finds the largest damping factor α in the geometric
// backtracking sequence {1, decay, decay², …} such that
//
//	𝐯 + α𝛅 ⪰ (1-τ)𝐯 componentwise
//
// for a strictly positive 𝐯. This is a backtracking approximation of the
// fraction-to-the-boundary rule: the accepted update stays bounded away from
// the zero boundary by the fraction (1-τ) of the current value, so a positive
// vector can never reach zero in one step.
//
// It reports ok=false when no α ≥ minStep satisfies the constraint.
func StepToBoundary(v, d mat.Vector, tau, decay, minStep float64) (alpha float64, ok bool) {
	for alpha = one; alpha >= minStep; alpha *= decay {
		if boundaryAdmissible(v, d, alpha, tau) {
			return alpha, true
		}
	}
	return zero, false
}

func boundaryAdmissible(v, d mat.Vector, alpha, tau float64) bool {
	for i := 0; i < v.Len(); i++ {
		vi := v.AtVec(i)
		if vi+alpha*d.AtVec(i) < (one-tau)*vi {
			return false
		}
	}
	return true
}
