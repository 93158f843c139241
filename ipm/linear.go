// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LinearSolver abstracts the factorization behind the Newton and sensitivity
// solves, so the strategy (dense LU, QR, or an external sparse backend) can be
// swapped without touching the iteration logic.
//
// Both methods must report a singular or ill-conditioned system as a non-nil
// error instead of propagating NaNs.
type LinearSolver interface {
	// SolveVecTo solves a·x = b (or aᵀ·x = b when trans) into dst.
	SolveVecTo(dst *mat.VecDense, a *mat.Dense, trans bool, b *mat.VecDense) error
	// SolveTo solves a·X = B (or aᵀ·X = B when trans) into dst.
	SolveTo(dst *mat.Dense, a *mat.Dense, trans bool, b mat.Matrix) error
}

// LU solves through a dense LU factorization with partial pivoting.
// This is the default strategy.
type LU struct{}

func (LU) SolveVecTo(dst *mat.VecDense, a *mat.Dense, trans bool, b *mat.VecDense) error {
	var lu mat.LU
	lu.Factorize(a)
	if err := lu.SolveVecTo(dst, trans, b); err != nil {
		return errors.Wrap(err, "ipm: lu solve")
	}
	return nil
}

func (LU) SolveTo(dst *mat.Dense, a *mat.Dense, trans bool, b mat.Matrix) error {
	var lu mat.LU
	lu.Factorize(a)
	if err := lu.SolveTo(dst, trans, b); err != nil {
		return errors.Wrap(err, "ipm: lu solve")
	}
	return nil
}

// QR solves through a dense QR factorization. Slower than LU but better
// behaved on nearly rank-deficient systems.
type QR struct{}

func (QR) SolveVecTo(dst *mat.VecDense, a *mat.Dense, trans bool, b *mat.VecDense) error {
	var qr mat.QR
	qr.Factorize(a)
	if err := qr.SolveVecTo(dst, trans, b); err != nil {
		return errors.Wrap(err, "ipm: qr solve")
	}
	return nil
}

func (QR) SolveTo(dst *mat.Dense, a *mat.Dense, trans bool, b mat.Matrix) error {
	var qr mat.QR
	qr.Factorize(a)
	if err := qr.SolveTo(dst, trans, b); err != nil {
		return errors.Wrap(err, "ipm: qr solve")
	}
	return nil
}
