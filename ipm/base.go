// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ipm solves MCP descriptors with a primal-dual interior-point method:
// a damped Newton iteration on the barrier-relaxed residual 𝐅(𝐳;𝛉,ϵ), nested
// inside an outer loop that drives the barrier parameter ϵ to zero.
package ipm

const (
	zero = 0.0
	one  = 1.0
)

const (
	// defTolerance is the default KKT tolerance of the solve.
	defTolerance = 1e-4
	// defInitialEps is the initial barrier parameter.
	defInitialEps = 10.0
	// defTau is the fraction-to-the-boundary parameter.
	defTau = 0.995
	// defDecay is the backtracking decay factor of the line search.
	defDecay = 0.5
	// defMinStep is the smallest admissible line-search step.
	defMinStep = 1e-12
	// defMaxInner caps the Newton iterations per barrier value.
	defMaxInner = 200
	// defMaxOuter caps the barrier updates.
	defMaxOuter = 100
)

// SolveStatus reports the terminal state of a solve.
type SolveStatus int

const (
	// Solved both the KKT error and the barrier parameter reached the tolerance.
	Solved SolveStatus = iota
	// SearchFailed the line search found no admissible step for 𝐲 or 𝐬.
	SearchFailed
	// SingularSystem the regularized Newton system was singular or
	// ill-conditioned, or the iteration produced non-finite values.
	SingularSystem
	// ExceedMaxIter an iteration safety cap was reached before convergence.
	ExceedMaxIter
)

// OK reports whether the solve converged.
func (s SolveStatus) OK() bool { return s == Solved }

func (s SolveStatus) String() string {
	switch s {
	case Solved:
		return "solved"
	case SearchFailed:
		return "search failed"
	case SingularSystem:
		return "singular system"
	case ExceedMaxIter:
		return "exceed max iterations"
	}
	return "unknown"
}
