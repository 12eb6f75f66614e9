// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradops

import (
	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
	"github.com/gomlx/opgrad/schema"
)

func init() {
	schema.Register(schema.New("MatMul").
		Doc("Matrix multiplication of two 2-D tensors, either of which may be transposed first.").
		NumInputs(2).NumOutputs(1).
		Arg("trans_a", "Set to a non-zero value to transpose the first operand.").
		Arg("trans_b", "Set to a non-zero value to transpose the second operand."))
	schema.Register(schema.New("FC").
		Doc("Fully connected layer: Y = X W^T + b.").
		NumInputs(3).NumOutputs(1).
		Arg("axis", "First axis of X to treat as the feature dimension, defaults to 1.").
		Arg("axis_w", "First axis of W to treat as the feature dimension, defaults to 1."))
	schema.Register(schema.New("FCGradient").
		Doc("Backward of FC, computing the weight and bias gradients and optionally the input gradient.").
		NumInputs(3).NumOutputsRange(2, 3).
		Arg("axis", "Matches the forward axis argument.").
		Arg("axis_w", "Matches the forward axis_w argument."))

	// MatMul synthesizes backward operators with transpose flags of their own, derived
	// below, so the forward flags must not be copied on top of them.
	opgrad.Register("MatMul", opgrad.Defs(matMulGradient, opgrad.WithoutArgumentCopy()))
	opgrad.Register("FC", opgrad.Defs(fcGradient))
}

// matMulGradient emits one backward MatMul per operand. Writing Y = op(A) op(B) with
// op the optional transpose, the four flag combinations give:
//
//	Y = A B:     dA = dY B^T,   dB = A^T dY
//	Y = A^T B:   dA = B dY^T,   dB = A dY
//	Y = A B^T:   dA = dY B,     dB = dY^T A
//	Y = A^T B^T: dA = B^T dY^T, dB = dY^T A^T
func matMulGradient(g *opgrad.Base) []*opdef.OperatorDef {
	def := g.Def()
	transA := def.GetIntArg("trans_a", 0) != 0
	transB := def.GetIntArg("trans_b", 0) != 0
	a, b, gradOut := g.I(0), g.I(1), g.GO(0)
	switch {
	case !transA && !transB:
		return []*opdef.OperatorDef{
			opdef.New("MatMul", "", []string{gradOut, b}, []string{g.GI(0)},
				opdef.Int("trans_b", 1)),
			opdef.New("MatMul", "", []string{a, gradOut}, []string{g.GI(1)},
				opdef.Int("trans_a", 1)),
		}
	case transA && !transB:
		return []*opdef.OperatorDef{
			opdef.New("MatMul", "", []string{b, gradOut}, []string{g.GI(0)},
				opdef.Int("trans_b", 1)),
			opdef.New("MatMul", "", []string{a, gradOut}, []string{g.GI(1)}),
		}
	case !transA && transB:
		return []*opdef.OperatorDef{
			opdef.New("MatMul", "", []string{gradOut, b}, []string{g.GI(0)}),
			opdef.New("MatMul", "", []string{gradOut, a}, []string{g.GI(1)},
				opdef.Int("trans_a", 1)),
		}
	default:
		return []*opdef.OperatorDef{
			opdef.New("MatMul", "", []string{b, gradOut}, []string{g.GI(0)},
				opdef.Int("trans_a", 1), opdef.Int("trans_b", 1)),
			opdef.New("MatMul", "", []string{gradOut, a}, []string{g.GI(1)},
				opdef.Int("trans_a", 1), opdef.Int("trans_b", 1)),
		}
	}
}

// fcGradient emits the fused backward operator computing the weight, bias and input
// gradients together. The axis arguments carry over by argument copying.
func fcGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("FCGradient", "",
		[]string{g.I(0), g.I(1), g.GO(0)},
		[]string{g.GI(1), g.GI(2), g.GI(0)})
}
