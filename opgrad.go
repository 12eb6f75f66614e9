// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opgrad synthesizes backward (gradient) operator definitions from forward
// operator definitions, one operator at a time.
//
// Given a forward opdef.OperatorDef and the gradient wrappers of its outputs,
// GetGradientForOp builds the gradient maker registered for the operator type, runs
// it and returns an OpsMeta: the backward definitions plus, for every forward input,
// a Wrapper describing how (if at all) its gradient is produced. Dense gradients are
// single blobs named "<input>_grad"; sparse gradients are (indices, values) blob
// pairs named "<input>_grad_indices" and "<input>_grad_values".
//
// Gradient rules for the standard operator set live in package gradops and are
// registered by importing it for side effects:
//
//	import _ "github.com/gomlx/opgrad/gradops"
//
// Assembling per-operator results into the backward half of a whole network lives in
// package netgrad.
//
// Errors: the accessors rules use to wire blob names (Base.I, Base.GO, Base.GI, ...)
// panic with an error on contract violations (see github.com/gomlx/exceptions);
// makers recover the panic, and Get and GetGradientForOp only ever return ordinary
// errors. A failed synthesis never returns partial results.
package opgrad

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/opgrad/opdef"
)

var (
	// ErrNotImplemented tags synthesis failures for operators without a backward
	// definitions generator, including those registered with
	// GradientNotImplementedYet.
	ErrNotImplemented = errors.New("gradient not implemented")

	// ErrGradientForbidden tags synthesis failures for operators registered with
	// ForbidGradient.
	ErrGradientForbidden = errors.New("gradient must not be taken for this operator")

	// ErrNotRegistered tags GetGradientForOp failures for operator types with no
	// registered gradient maker.
	ErrNotRegistered = errors.New("no gradient maker registered")
)

// GetGradientForOp synthesizes the backward operator definitions for def, given the
// gradient wrappers of its outputs. gOutput is index-aligned with def.Outputs; use
// empty wrappers for outputs whose gradient is not needed.
//
// On success the returned OpsMeta holds the backward definitions, already marked as
// gradient operations and carrying def's device option, engine and arguments where
// the maker's copy policies allow, plus one gradient Wrapper per forward input.
//
// Synthesis is stateless across calls: concurrent calls on independent definitions
// need no coordination.
func GetGradientForOp(def *opdef.OperatorDef, gOutput []Wrapper) (*OpsMeta, error) {
	maker, found := Construct(def, gOutput)
	if !found {
		return nil, errors.Wrapf(ErrNotRegistered,
			"operator type %q, cannot synthesize the gradient of %s", def.Type, def)
	}
	meta, err := maker.Get()
	if err != nil {
		return nil, errors.WithMessagef(err, "GetGradientForOp(%q)", def.Type)
	}

	// Inherit the forward operator's device option, engine and arguments, as advised
	// by the maker.
	if maker.CopyDeviceOption() && def.Device != nil {
		for _, g := range meta.Ops {
			g.Device = def.Device.Clone()
		}
	}
	if maker.CopyEngine() && def.Engine != "" {
		for _, g := range meta.Ops {
			g.Engine = def.Engine
		}
	}
	if maker.CopyArguments() && len(def.Args) > 0 {
		for _, g := range meta.Ops {
			for _, arg := range def.Args {
				g.Args = append(g.Args, arg.Clone())
			}
		}
	}

	// A maker accounts for every forward input, and each input gradient is dense or
	// sparse, never both.
	if len(meta.Input) != len(def.Inputs) {
		return nil, errors.Errorf(
			"gradient maker for operator type %q recorded %d input gradients, but the operator has %d inputs",
			def.Type, len(meta.Input), len(def.Inputs))
	}
	for ii, w := range meta.Input {
		if w.IsDense() && w.IsSparse() {
			return nil, errors.Errorf(
				"gradient maker for operator type %q recorded both dense and sparse gradients for input %q",
				def.Type, def.Inputs[ii])
		}
	}

	if klog.V(1).Enabled() {
		for _, g := range meta.Ops {
			klog.Infof("gradient of %q: generated %s", def.Type, g)
		}
	}
	return meta, nil
}
