// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradops

import (
	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
	"github.com/gomlx/opgrad/schema"
)

func init() {
	schema.Register(schema.New("Relu").
		Doc("Rectified linear unit, applied elementwise.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Sigmoid").
		Doc("Logistic sigmoid, applied elementwise.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Tanh").
		Doc("Hyperbolic tangent, applied elementwise.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Exp").
		Doc("Natural exponential, applied elementwise.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Log").
		Doc("Natural logarithm, applied elementwise.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Sqrt").
		Doc("Square root, applied elementwise.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Softmax").
		Doc("Softmax normalization over the given axis.").
		NumInputs(1).NumOutputs(1).
		Arg("axis", "Axis to normalize over, defaults to the last."))
	schema.Register(schema.New("ReluGradient").
		Doc("Backward of Relu, masking the output gradient by the sign of the forward output.").
		NumInputs(2).NumOutputs(1))
	schema.Register(schema.New("SigmoidGradient").
		Doc("Backward of Sigmoid, computed from the forward output.").
		NumInputs(2).NumOutputs(1))
	schema.Register(schema.New("TanhGradient").
		Doc("Backward of Tanh, computed from the forward output.").
		NumInputs(2).NumOutputs(1))
	schema.Register(schema.New("SoftmaxGradient").
		Doc("Backward of Softmax, computed from the forward output.").
		NumInputs(2).NumOutputs(1).
		Arg("axis", "Axis the forward normalized over."))

	opgrad.Register("Relu", opgrad.Defs(reluGradient))
	opgrad.Register("Sigmoid", opgrad.Defs(sigmoidGradient))
	opgrad.Register("Tanh", opgrad.Defs(tanhGradient))
	opgrad.Register("Exp", opgrad.Defs(expGradient))
	opgrad.Register("Log", opgrad.Defs(logGradient))
	opgrad.Register("Sqrt", opgrad.Defs(sqrtGradient))
	opgrad.Register("Softmax", opgrad.Defs(softmaxGradient))
}

// The saturating activations recover their derivative from the forward output alone,
// so none of them keeps the forward input alive.

func reluGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("ReluGradient", "",
		[]string{g.O(0), g.GO(0)}, []string{g.GI(0)})
}

func sigmoidGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("SigmoidGradient", "",
		[]string{g.O(0), g.GO(0)}, []string{g.GI(0)})
}

func tanhGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("TanhGradient", "",
		[]string{g.O(0), g.GO(0)}, []string{g.GI(0)})
}

// expGradient uses d/dx exp(x) = exp(x), already available as the forward output.
func expGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("Mul", "",
		[]string{g.O(0), g.GO(0)}, []string{g.GI(0)})
}

func logGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("Div", "",
		[]string{g.GO(0), g.I(0)}, []string{g.GI(0)})
}

// sqrtGradient computes d/dx sqrt(x) = 1/(2 sqrt(x)) from the forward output: divide
// the output gradient by it, then halve in place.
func sqrtGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return []*opdef.OperatorDef{
		opdef.New("Div", "", []string{g.GO(0), g.O(0)}, []string{g.GI(0)}),
		opdef.New("Scale", "", []string{g.GI(0)}, []string{g.GI(0)},
			opdef.Float("scale", 0.5)),
	}
}

func softmaxGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("SoftmaxGradient", "",
		[]string{g.O(0), g.GO(0)}, []string{g.GI(0)})
}
