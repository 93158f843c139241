// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/complementarity/mcp"
)

// Options specifies the interior-point iteration. The zero value of every
// field selects its default.
type Options struct {
	// Tolerance is the KKT tolerance declaring the solve converged (1e-4).
	Tolerance float64
	// InitialEps is the starting barrier parameter (10.0).
	InitialEps float64
	// Tau is the fraction-to-the-boundary parameter of the line search (0.995).
	Tau float64
	// Decay is the backtracking decay factor of the line search (0.5).
	Decay float64
	// MinStep is the smallest admissible line-search step (1e-12).
	MinStep float64
	// MaxInner caps the Newton iterations per barrier value (200).
	MaxInner int
	// MaxOuter caps the barrier updates (100).
	// Both caps are safety bounds: the base algorithm has no termination
	// guarantee on pathological (e.g. infeasible) inputs.
	MaxOuter int
	// Linear selects the factorization of the Newton system (LU).
	Linear LinearSolver
	// Log receives a per-iteration trace at debug level when non-nil.
	Log *logrus.Logger
}

// New validates the options and builds an interior-point solver.
func (o Options) New() (*InteriorPoint, error) {
	if o.Tolerance == zero {
		o.Tolerance = defTolerance
	}
	if o.InitialEps == zero {
		o.InitialEps = defInitialEps
	}
	if o.Tau == zero {
		o.Tau = defTau
	}
	if o.Decay == zero {
		o.Decay = defDecay
	}
	if o.MinStep == zero {
		o.MinStep = defMinStep
	}
	if o.MaxInner == 0 {
		o.MaxInner = defMaxInner
	}
	if o.MaxOuter == 0 {
		o.MaxOuter = defMaxOuter
	}
	if o.Linear == nil {
		o.Linear = LU{}
	}

	switch {
	case o.Tolerance <= zero:
		return nil, errors.New("ipm: tolerance must be greater than 0")
	case o.InitialEps <= o.Tolerance:
		return nil, errors.New("ipm: initial barrier must be greater than tolerance")
	case o.Tau <= zero || o.Tau >= one:
		return nil, errors.New("ipm: tau must be in (0,1)")
	case o.Decay <= zero || o.Decay >= one:
		return nil, errors.New("ipm: decay must be in (0,1)")
	case o.MinStep <= zero || o.MinStep > one:
		return nil, errors.New("ipm: min step must be in (0,1]")
	case o.MaxInner < 0 || o.MaxOuter < 0:
		return nil, errors.New("ipm: iteration caps must be positive")
	}
	return &InteriorPoint{opts: o}, nil
}

// InteriorPoint is the primal-dual interior-point solver variant.
type InteriorPoint struct {
	opts Options
}

// Method is a solver variant consuming an MCP descriptor. InteriorPoint is
// the only variant today; the indirection keeps the Solve call shape stable
// when further algorithms are added.
type Method interface {
	Solve(c *mcp.MCP, in *Input) (*Result, error)
}

// Input carries the per-solve arguments. A nil field selects its default:
// 𝛉 = 0, 𝐱₀ = 0, 𝐲₀ = 𝟏 and the solver tolerance.
type Input struct {
	Theta *mat.VecDense
	X0    *mat.VecDense
	Y0    *mat.VecDense
	Tol   float64
}

// Result is the outcome of one solve. It is created fresh per call and never
// mutated after return. On a non-OK status it carries the best iterate found
// so far, which must be treated as unreliable.
type Result struct {
	X, Y, S  *mat.VecDense // solution blocks (𝐲 and 𝐬 strictly positive)
	Eps      float64       // final barrier value
	KKTError float64       // max-abs residual component at the reported iterate
	Status   SolveStatus
	NumIter  int // total Newton iterations
	NumOuter int // barrier updates
}

// ipState is the mutable per-solve state. It is local to one Solve call, so
// one solver may run concurrent solves over a shared descriptor.
type ipState struct {
	c     *mcp.MCP
	theta *mat.VecDense
	tol   float64

	z   *mat.VecDense // current iterate [𝐱;𝐲;𝐬]
	f   *mat.VecDense // residual 𝐅(𝐳;𝛉,ϵ)
	rhs *mat.VecDense // -𝐅
	dz  *mat.VecDense // Newton direction
	jac *mat.Dense    // ∂𝐅/∂𝐳
	a   *mat.Dense    // ∂𝐅/∂𝐳 + ϵ𝐈

	eps  float64
	kkt  float64     // loop convergence measure, +Inf before the first step
	fail SolveStatus // cause recorded by a step that reports !ok

	best     *mat.VecDense // lowest-residual iterate seen
	bestKKT  float64
	bestEps  float64
	numIter  int
	numOuter int
}

// Solve runs the solver variant m on descriptor c.
func Solve(m Method, c *mcp.MCP, in *Input) (*Result, error) {
	return m.Solve(c, in)
}

// Solve runs the interior-point iteration. A failed line search, a singular
// Newton system or an exhausted iteration cap terminate with the matching
// non-OK status rather than an error; errors are reserved for invalid inputs
// and panicking descriptor callables.
func (ip *InteriorPoint) Solve(c *mcp.MCP, in *Input) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, errors.Errorf("ipm: descriptor evaluation failed: %v", r)
		}
	}()

	st, err := ip.newState(c, in)
	if err != nil {
		return nil, err
	}

	status := ip.mainLoop(st)

	// A converged solve reports the final iterate; a failed one falls back
	// to the lowest-residual iterate seen, flagged by its status.
	z, kkt, eps := st.best, st.bestKKT, st.bestEps
	if status.OK() {
		z, kkt, eps = st.z, st.kkt, st.eps
	}

	n, m, _ := c.Dims()
	x, y, s := mcp.SplitZ(n, m, z)
	out := func(v *mat.VecDense) *mat.VecDense {
		o := mat.NewVecDense(v.Len(), nil)
		o.CopyVec(v)
		return o
	}
	return &Result{
		X: out(x), Y: out(y), S: out(s),
		Eps:      eps,
		KKTError: kkt,
		Status:   status,
		NumIter:  st.numIter,
		NumOuter: st.numOuter,
	}, nil
}

func (ip *InteriorPoint) newState(c *mcp.MCP, in *Input) (*ipState, error) {
	if in == nil {
		in = &Input{}
	}
	n, m, p := c.Dims()
	sz := c.Size()

	tol := in.Tol
	if tol == zero {
		tol = ip.opts.Tolerance
	}
	if tol <= zero {
		return nil, errors.New("ipm: tolerance must be greater than 0")
	}

	theta := in.Theta
	switch {
	case theta == nil && p > 0:
		theta = mat.NewVecDense(p, nil)
	case theta != nil && theta.Len() != p:
		return nil, errors.Errorf("ipm: theta dimension %d does not match descriptor %d", theta.Len(), p)
	}

	z := mat.NewVecDense(sz, nil)
	x, y, s := mcp.SplitZ(n, m, z)
	if in.X0 != nil {
		if in.X0.Len() != n {
			return nil, errors.Errorf("ipm: x0 dimension %d does not match descriptor %d", in.X0.Len(), n)
		}
		x.CopyVec(in.X0)
	}
	if in.Y0 != nil {
		if in.Y0.Len() != m {
			return nil, errors.Errorf("ipm: y0 dimension %d does not match descriptor %d", in.Y0.Len(), m)
		}
		y.CopyVec(in.Y0)
		for i := 0; i < m; i++ {
			if y.AtVec(i) <= zero {
				return nil, errors.New("ipm: y0 must be strictly positive")
			}
		}
	} else {
		for i := 0; i < m; i++ {
			y.SetVec(i, one)
		}
	}
	for i := 0; i < m; i++ {
		s.SetVec(i, one)
	}

	st := &ipState{
		c: c, theta: theta, tol: tol,
		z:   z,
		f:   mat.NewVecDense(sz, nil),
		rhs: mat.NewVecDense(sz, nil),
		dz:  mat.NewVecDense(sz, nil),
		jac: mat.NewDense(sz, sz, nil),
		a:   mat.NewDense(sz, sz, nil),
		eps: ip.opts.InitialEps,
		kkt: math.Inf(1),
	}

	// Seed the reported iterate with the initial point so kkt_error is
	// defined even when the very first step fails.
	st.c.Residual(st.f, st.z, st.theta, st.eps)
	st.best = mat.NewVecDense(sz, nil)
	st.best.CopyVec(st.z)
	st.bestKKT = floats.Norm(st.f.RawVector().Data, math.Inf(1))
	st.bestEps = st.eps
	return st, nil
}

// mainLoop drives the barrier parameter: at each level the residual is
// re-measured at the current ϵ, the inner Newton loop converges it below ϵ,
// and ϵ then shrinks by 1-e⁻ᵏ where k is the number of inner iterations just
// taken. Few inner iterations mean the barrier is easy at this level and
// trigger a more aggressive shrink; a level satisfied without any iteration
// shrinks as if one had been taken, so ϵ stays strictly positive.
//
// The solve is declared converged only once the inner loop has converged at
// a barrier level ϵ ≤ tol, so a solved result always satisfies the
// complementarity bound 𝐲∘𝐬 ≈ ϵ ≤ tol.
func (ip *InteriorPoint) mainLoop(st *ipState) SolveStatus {
	for outer := 0; ; outer++ {
		if outer >= ip.opts.MaxOuter {
			return ExceedMaxIter
		}

		// Measure the residual at the current barrier level: the value
		// carried over from the previous level was taken at the old ϵ.
		st.c.Residual(st.f, st.z, st.theta, st.eps)
		if !finite(st.f) {
			return SingularSystem
		}
		st.kkt = floats.Norm(st.f.RawVector().Data, math.Inf(1))

		iters := 0
		for st.kkt > st.eps {
			if iters >= ip.opts.MaxInner {
				return ExceedMaxIter
			}
			if !ip.newtonStep(st) {
				return st.fail
			}
			iters++
			st.numIter++
		}
		if st.eps <= st.tol {
			return Solved
		}

		st.numOuter++
		next := st.eps * (one - math.Exp(-float64(max(iters, 1))))
		if ip.opts.Log != nil {
			ip.opts.Log.WithFields(logrus.Fields{
				"outer": st.numOuter, "inner": iters,
				"eps": st.eps, "eps_next": next, "kkt": st.kkt,
			}).Debug("barrier update")
		}
		st.eps = next
	}
}

// newtonStep performs one damped Newton iteration at the current barrier
// value: solve (∂𝐅/∂𝐳 + ϵ𝐈)𝛅𝐳 = -𝐅, damp 𝛅𝐳 by the fraction-to-the-boundary
// rule for both 𝐲 and 𝐬, and advance the full direction by the shared step
// α = min(α_s, α_y). When the step cannot be taken it reports false and
// records the cause in st.fail.
func (ip *InteriorPoint) newtonStep(st *ipState) bool {
	o := &ip.opts
	n, m, _ := st.c.Dims()
	sz := st.c.Size()

	st.c.Residual(st.f, st.z, st.theta, st.eps)
	st.c.StateJacobian(st.jac, st.z, st.theta, st.eps)

	// The ϵ𝐈 term damps the step near the barrier limit and guards
	// against a singular Jacobian.
	st.a.Copy(st.jac)
	for i := 0; i < sz; i++ {
		st.a.Set(i, i, st.a.At(i, i)+st.eps)
	}
	st.rhs.ScaleVec(-one, st.f)
	if err := o.Linear.SolveVecTo(st.dz, st.a, false, st.rhs); err != nil {
		if o.Log != nil {
			o.Log.WithError(err).Debug("newton system not solvable")
		}
		st.fail = SingularSystem
		return false
	}
	// A NaN in the system slips past the factorization's condition estimate,
	// so a non-finite direction must be caught here.
	if !finite(st.dz) {
		if o.Log != nil {
			o.Log.Debug("newton direction not finite")
		}
		st.fail = SingularSystem
		return false
	}

	_, y, s := mcp.SplitZ(n, m, st.z)
	dy := st.dz.SliceVec(n, n+m).(*mat.VecDense)
	ds := st.dz.SliceVec(n+m, sz).(*mat.VecDense)

	alphaS, okS := StepToBoundary(s, ds, o.Tau, o.Decay, o.MinStep)
	alphaY, okY := StepToBoundary(y, dy, o.Tau, o.Decay, o.MinStep)
	if !okS || !okY {
		st.fail = SearchFailed
		return false
	}
	alpha := math.Min(alphaS, alphaY)

	st.z.AddScaledVec(st.z, alpha, st.dz)
	st.c.Residual(st.f, st.z, st.theta, st.eps)
	if !finite(st.f) {
		st.fail = SingularSystem
		return false
	}
	st.kkt = floats.Norm(st.f.RawVector().Data, math.Inf(1))

	if st.kkt < st.bestKKT {
		st.best.CopyVec(st.z)
		st.bestKKT = st.kkt
		st.bestEps = st.eps
	}

	if o.Log != nil {
		o.Log.WithFields(logrus.Fields{
			"eps": st.eps, "kkt": st.kkt, "alpha": alpha,
			"min_y": floats.Min(y.RawVector().Data),
			"min_s": floats.Min(s.RawVector().Data),
		}).Debug("newton step")
	}
	return true
}

// finite reports whether every component of v is a finite number. The ∞-norm
// used as the convergence measure skips NaN components, so a corrupted vector
// would otherwise read as converged.
func finite(v *mat.VecDense) bool {
	for _, x := range v.RawVector().Data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
