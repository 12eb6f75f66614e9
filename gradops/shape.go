// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradops

import (
	"github.com/gomlx/exceptions"

	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
	"github.com/gomlx/opgrad/schema"
)

func init() {
	schema.Register(schema.New("Reshape").
		Doc("Reshapes a tensor without changing its data. The second output records the original shape.").
		NumInputsRange(1, 2).NumOutputs(2).
		Arg("shape", "The target shape; alternatively pass it as a second input tensor."))
	schema.Register(schema.New("Transpose").
		Doc("Permutes the axes of a tensor.").
		NumInputs(1).NumOutputs(1).
		Arg("axes", "The permutation to apply; when omitted, reverses all axes."))
	schema.Register(schema.New("Concat").
		Doc("Concatenates tensors along an axis. The second output records the per-input sizes along that axis.").
		NumInputsRange(1, schema.Unlimited).NumOutputs(2).
		Arg("axis", "Axis to concatenate along.").
		Arg("add_axis", "Set to a non-zero value to stack along a fresh axis instead.").
		Arg("order", "Alternatively, an NCHW/NHWC order string selecting the axis."))
	schema.Register(schema.New("Split").
		Doc("Splits a tensor into pieces along an axis.").
		NumInputsRange(1, 2).NumOutputsRange(1, schema.Unlimited).
		Arg("axis", "Axis to split along.").
		Arg("split", "Sizes of the pieces; alternatively pass them as a second input tensor.").
		Arg("add_axis", "Set to a non-zero value to drop the split axis from the pieces.").
		Arg("order", "Alternatively, an NCHW/NHWC order string selecting the axis."))
	schema.Register(schema.New("Flatten").
		Doc("Flattens a tensor into a 2-D matrix around the given axis.").
		NumInputs(1).NumOutputs(1).
		Arg("axis", "Axes up to here form the first output dimension, the rest the second."))
	schema.Register(schema.New("ResizeLike").
		Doc("Reshapes the first operand to the shape of the second, keeping its data.").
		NumInputs(2).NumOutputs(1))

	// The "shape" argument means nothing in the backward direction; the old-shape
	// output recorded by the forward operator drives the backward reshape instead.
	opgrad.Register("Reshape", opgrad.Defs(reshapeGradient, opgrad.WithoutArgumentCopy()))
	// The backward permutation is the inverse of the forward one, synthesized below.
	opgrad.Register("Transpose", opgrad.Defs(transposeGradient, opgrad.WithoutArgumentCopy()))
	opgrad.Register("Concat", opgrad.Defs(concatGradient))
	opgrad.Register("Split", opgrad.Defs(splitGradient))
	opgrad.Register("Flatten", opgrad.Defs(flattenGradient))
}

func reshapeGradient(g *opgrad.Base) []*opdef.OperatorDef {
	gradIn := g.GI(0)
	// The second output of the backward Reshape is a throwaway shape recording.
	return g.SingleGradientDef("Reshape", "",
		[]string{g.GO(0), g.O(1)},
		[]string{gradIn, "_" + gradIn + "_dims"})
}

func transposeGradient(g *opgrad.Base) []*opdef.OperatorDef {
	def := g.Def()
	arg, found := def.Arg("axes")
	if !found {
		// Reversing all axes is its own inverse.
		return g.SingleGradientDef("Transpose", "", []string{g.GO(0)}, []string{g.GI(0)})
	}
	axes := arg.Ints
	inverse := make([]int64, len(axes))
	seen := make([]bool, len(axes))
	for pos, axis := range axes {
		if axis < 0 || axis >= int64(len(axes)) || seen[axis] {
			exceptions.Panicf("Transpose axes must form a permutation of [0, %d), got axis %d in %s",
				len(axes), axis, def)
		}
		seen[axis] = true
		inverse[axis] = int64(pos)
	}
	return g.SingleGradientDef("Transpose", "",
		[]string{g.GO(0)}, []string{g.GI(0)},
		opdef.IntList("axes", inverse...))
}

// concatGradient splits the output gradient back into one piece per input, using the
// sizes the forward operator recorded in its second output. The axis arguments carry
// over by argument copying.
func concatGradient(g *opgrad.Base) []*opdef.OperatorDef {
	gradInputs := make([]string, len(g.Def().Inputs))
	for i := range g.Def().Inputs {
		gradInputs[i] = g.GI(i)
	}
	return g.SingleGradientDef("Split", "",
		[]string{g.GO(0), g.O(1)}, gradInputs)
}

// splitGradient concatenates the output gradients back together. Unless every piece
// has a dense gradient the input gradient cannot be assembled, and is left unset.
func splitGradient(g *opgrad.Base) []*opdef.OperatorDef {
	gradOuts := make([]string, 0, len(g.Def().Outputs))
	for i := range g.Def().Outputs {
		if !g.GradOut(i).IsDense() {
			return nil
		}
		gradOuts = append(gradOuts, g.GO(i))
	}
	gradIn := g.GI(0)
	return g.SingleGradientDef("Concat", "",
		gradOuts,
		[]string{gradIn, "_" + gradIn + "_split"})
}

func flattenGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("ResizeLike", "",
		[]string{g.GO(0), g.I(0)}, []string{g.GI(0)})
}
