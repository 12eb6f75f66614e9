// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package netgrad assembles the backward half of a whole network from the
// per-operator synthesis of package opgrad.
//
// Build walks the forward operators in reverse, seeds the gradient of each requested
// loss blob with a constant one, synthesizes every reached operator's backward
// definitions and accumulates gradients where one blob feeds several consumers.
// Gradient rules come from the opgrad registry, so callers normally also import
// package gradops for its side effects.
package netgrad

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
)

// gradState tracks the gradient of one forward blob while the backward pass is being
// assembled.
type gradState struct {
	wrapper opgrad.Wrapper

	// group is the id of the backward group that wrote the dense gradient blob, or -1
	// when the wrapper aliases a blob written elsewhere.
	group int

	// splits counts the autosplit names consumed for this blob so far.
	splits int
}

type builder struct {
	net       *opdef.NetDef
	writtenBy map[string]int      // forward blob name to the operator index writing it
	forward   map[string]struct{} // every blob name the forward network mentions
	grads     []*opdef.OperatorDef
	states    map[string]*gradState
	groups    int
}

// Build assembles the backward pass of net for the given loss blobs.
//
// It returns the backward operator definitions in execution order, starting with the
// constant-one seeds of the loss gradients, and the mapping from forward blobs to the
// gradients they end up with. Blobs with no path to any loss appear with no entry;
// parameters reached through sparse access (Gather and friends) map to sparse
// wrappers.
//
// net.Ops must be in execution order and single-assignment: each blob written by at
// most one operator, and operators on a differentiated path must not run in place.
// Operators whose outputs carry no gradient are skipped; every other operator must
// have a registered gradient maker.
func Build(net *opdef.NetDef, lossBlobs ...string) ([]*opdef.OperatorDef, map[string]opgrad.Wrapper, error) {
	b, err := newBuilder(net)
	if err != nil {
		return nil, nil, err
	}
	if len(lossBlobs) == 0 {
		return nil, nil, errors.New("netgrad.Build: at least one loss blob is required")
	}
	seen := make(map[string]struct{}, len(lossBlobs))
	for _, loss := range lossBlobs {
		if _, dup := seen[loss]; dup {
			return nil, nil, errors.Errorf("netgrad.Build: loss blob %q given twice", loss)
		}
		seen[loss] = struct{}{}
		if err := b.seed(loss); err != nil {
			return nil, nil, err
		}
	}
	for idx := len(net.Ops) - 1; idx >= 0; idx-- {
		if err := b.processOp(idx); err != nil {
			return nil, nil, err
		}
	}
	gradients := make(map[string]opgrad.Wrapper, len(b.states))
	for blob, st := range b.states {
		gradients[blob] = st.wrapper
	}
	if klog.V(1).Enabled() {
		klog.Infof("netgrad: assembled %s backward operators for %s forward operators and %d losses",
			humanize.Comma(int64(len(b.grads))), humanize.Comma(int64(len(net.Ops))), len(lossBlobs))
	}
	return b.grads, gradients, nil
}

func newBuilder(net *opdef.NetDef) (*builder, error) {
	if net == nil || len(net.Ops) == 0 {
		return nil, errors.New("netgrad.Build: the network has no operators")
	}
	b := &builder{
		net:       net,
		writtenBy: make(map[string]int),
		forward:   make(map[string]struct{}),
		states:    make(map[string]*gradState),
	}
	for idx, op := range net.Ops {
		for _, in := range op.Inputs {
			b.forward[in] = struct{}{}
		}
		for _, out := range op.Outputs {
			if prev, written := b.writtenBy[out]; written {
				return nil, errors.Errorf(
					"netgrad.Build: blob %q is written by operators #%d and #%d, the backward builder requires single-assignment networks",
					out, prev, idx)
			}
			b.writtenBy[out] = idx
			b.forward[out] = struct{}{}
		}
	}
	for _, in := range net.ExternalInputs {
		b.forward[in] = struct{}{}
	}
	for _, out := range net.ExternalOutputs {
		b.forward[out] = struct{}{}
	}
	return b, nil
}

// seed emits the constant-one fill starting the gradient of one loss blob. The fill
// takes the loss blob itself as input so the output copies its shape.
func (b *builder) seed(loss string) error {
	if _, produced := b.writtenBy[loss]; !produced {
		return errors.Errorf("netgrad.Build: loss blob %q is not produced by the network", loss)
	}
	def := opdef.New("ConstantFill", "",
		[]string{loss}, []string{opgrad.GradientName(loss)},
		opdef.Float("value", 1))
	def.IsGradientOp = true
	group := []*opdef.OperatorDef{def}
	gid, err := b.appendGroup(group)
	if err != nil {
		return err
	}
	return b.accumulate(loss, opgrad.Dense(opgrad.GradientName(loss)), gid, group)
}

func (b *builder) processOp(idx int) error {
	op := b.net.Ops[idx]
	gOutput := make([]opgrad.Wrapper, len(op.Outputs))
	flowing := false
	for i, out := range op.Outputs {
		if st, ok := b.states[out]; ok {
			gOutput[i] = st.wrapper
			flowing = flowing || !st.wrapper.IsEmpty()
		}
	}
	if !flowing {
		// Nothing differentiable depends on this operator.
		return nil
	}
	for _, in := range op.Inputs {
		for _, out := range op.Outputs {
			if in == out {
				return errors.Errorf(
					"netgrad.Build: forward operator #%d runs in place on blob %q, in-place operators on a differentiated path are not supported",
					idx, in)
			}
		}
	}
	meta, err := opgrad.GetGradientForOp(op, gOutput)
	if err != nil {
		return errors.WithMessagef(err, "assembling the backward pass at forward operator #%d", idx)
	}
	gid, err := b.appendGroup(meta.Ops)
	if err != nil {
		return err
	}
	for i, w := range meta.Input {
		if w.IsEmpty() {
			continue
		}
		if err := b.accumulate(op.Inputs[i], w, gid, meta.Ops); err != nil {
			return errors.WithMessagef(err,
				"accumulating the gradient of input %q of forward operator #%d", op.Inputs[i], idx)
		}
	}
	return nil
}

// appendGroup adds one batch of backward definitions generated together and returns
// its group id. Backward blobs must not shadow forward ones.
func (b *builder) appendGroup(defs []*opdef.OperatorDef) (int, error) {
	for _, def := range defs {
		for _, out := range def.Outputs {
			if _, clash := b.forward[out]; clash {
				return 0, errors.Errorf(
					"netgrad.Build: backward blob %q collides with a blob of the forward network, in %s",
					out, def)
			}
		}
	}
	gid := b.groups
	b.groups++
	b.grads = append(b.grads, defs...)
	return gid, nil
}

// accumulate merges one gradient contribution for a forward blob into the running
// state. When a blob collects gradients from several consumers the later contribution
// is renamed to an autosplit blob and summed into the canonical gradient, in place
// whenever one side already is the canonical blob.
func (b *builder) accumulate(blob string, w opgrad.Wrapper, gid int, group []*opdef.OperatorDef) error {
	st, found := b.states[blob]
	if !found {
		st = &gradState{wrapper: w, group: -1}
		if w.IsDense() && groupWrites(group, w.Dense) {
			st.group = gid
		}
		b.states[blob] = st
		return nil
	}

	if w.IsSparse() || st.wrapper.IsSparse() {
		if w.IsSparse() && st.wrapper.IsSparse() {
			return errors.Errorf(
				"blob %q receives sparse gradients from more than one operator, accumulating sparse gradients is not supported",
				blob)
		}
		return errors.Errorf(
			"blob %q receives both dense and sparse gradients, accumulating mixed representations is not supported",
			blob)
	}

	canonical := opgrad.GradientName(blob)
	existing := st.wrapper.Dense
	contributed := w.Dense
	if contributed == existing && groupWrites(group, contributed) {
		if st.group == gid {
			return errors.Errorf(
				"gradient blob %q is generated twice by the same backward group, likely because blob %q fills several input slots of one operator; insert an explicit Copy to disambiguate",
				contributed, blob)
		}
		// The usual fan-out collision: another consumer already produced the
		// canonical blob, so this group's copy moves to an autosplit name. The
		// rename must honor the same no-shadowing rule appendGroup checks, so
		// names the forward network already uses are skipped.
		var renamed string
		for {
			renamed = fmt.Sprintf("%s_autosplit_%d", canonical, st.splits)
			st.splits++
			if _, taken := b.forward[renamed]; !taken {
				break
			}
		}
		renameBlob(group, contributed, renamed)
		contributed = renamed
	}

	inputs := []string{existing, contributed}
	if contributed == canonical {
		inputs = []string{contributed, existing}
	}
	sum := opdef.New("Sum", "", inputs, []string{canonical})
	sum.IsGradientOp = true
	sumGid, err := b.appendGroup([]*opdef.OperatorDef{sum})
	if err != nil {
		return err
	}
	st.wrapper = opgrad.Dense(canonical)
	st.group = sumGid
	return nil
}

// renameBlob rewrites every use of a blob name inside one backward group, keeping
// in-place chains within the group consistent.
func renameBlob(defs []*opdef.OperatorDef, from, to string) {
	for _, def := range defs {
		for i, name := range def.Inputs {
			if name == from {
				def.Inputs[i] = to
			}
		}
		for i, name := range def.Outputs {
			if name == from {
				def.Outputs[i] = to
			}
		}
	}
}

func groupWrites(defs []*opdef.OperatorDef, name string) bool {
	for _, def := range defs {
		for _, out := range def.Outputs {
			if out == name {
				return true
			}
		}
	}
	return false
}
