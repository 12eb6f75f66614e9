// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgrad

import (
	"fmt"

	"github.com/gomlx/opgrad/opdef"
)

// Wrapper abstracts over dense and sparse gradients for one blob slot.
//
// A dense gradient is a single blob, recorded in Dense. A sparse gradient is an
// (indices, values) blob pair, recorded in Indices and Values. A slot with none of the
// fields set received no gradient at all.
//
// The predicates are derived from field occupancy on every call, so a Wrapper can never
// report a state inconsistent with its fields.
type Wrapper struct {
	Dense   string
	Indices string
	Values  string
}

// Dense returns a wrapper holding a dense gradient blob name.
func Dense(name string) Wrapper { return Wrapper{Dense: name} }

// Sparse returns a wrapper holding a sparse gradient (indices, values) blob pair.
func Sparse(indices, values string) Wrapper { return Wrapper{Indices: indices, Values: values} }

// IsDense reports whether the slot holds a dense gradient.
func (w Wrapper) IsDense() bool { return w.Dense != "" }

// IsSparse reports whether the slot holds a sparse gradient.
func (w Wrapper) IsSparse() bool { return w.Indices != "" || w.Values != "" }

// IsEmpty reports whether the slot received no gradient.
func (w Wrapper) IsEmpty() bool { return !w.IsDense() && !w.IsSparse() }

// String returns a short description of the wrapper state.
func (w Wrapper) String() string {
	switch {
	case w.IsDense() && w.IsSparse():
		return fmt.Sprintf("invalid(dense=%q, indices=%q, values=%q)", w.Dense, w.Indices, w.Values)
	case w.IsDense():
		return fmt.Sprintf("dense(%s)", w.Dense)
	case w.IsSparse():
		return fmt.Sprintf("sparse(indices=%s, values=%s)", w.Indices, w.Values)
	default:
		return "none"
	}
}

// OpsMeta is the result of one gradient synthesis: the backward operator definitions
// plus the gradient mapping for every forward input.
//
// It is constructed once by a maker's Get and owned by the caller afterwards; the
// synthesis engine never mutates it again.
type OpsMeta struct {
	// Ops are the synthesized backward definitions, ordered so that each definition's
	// inputs are available when it runs.
	Ops []*opdef.OperatorDef

	// Input holds one Wrapper per forward input, index-aligned with the forward
	// operator's input list. Inputs that receive no gradient keep an empty Wrapper, so
	// len(Input) always equals the forward input count.
	Input []Wrapper
}
