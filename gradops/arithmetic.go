// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradops

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
	"github.com/gomlx/opgrad/schema"
)

func init() {
	schema.Register(schema.New("Add").
		Doc("Elementwise binary addition, with optional broadcasting of the second operand.").
		NumInputs(2).NumOutputs(1).
		Arg("broadcast", "Set to a non-zero value to broadcast the second operand over the first.").
		Arg("axis", "Axis of the first operand to start broadcasting from."))
	schema.Register(schema.New("Sub").
		Doc("Elementwise binary subtraction, with optional broadcasting of the second operand.").
		NumInputs(2).NumOutputs(1).
		Arg("broadcast", "Set to a non-zero value to broadcast the second operand over the first.").
		Arg("axis", "Axis of the first operand to start broadcasting from."))
	schema.Register(schema.New("Mul").
		Doc("Elementwise binary multiplication, with optional broadcasting of the second operand.").
		NumInputs(2).NumOutputs(1).
		Arg("broadcast", "Set to a non-zero value to broadcast the second operand over the first.").
		Arg("axis", "Axis of the first operand to start broadcasting from."))
	schema.Register(schema.New("Div").
		Doc("Elementwise binary division, with optional broadcasting of the second operand.").
		NumInputs(2).NumOutputs(1).
		Arg("broadcast", "Set to a non-zero value to broadcast the second operand over the first.").
		Arg("axis", "Axis of the first operand to start broadcasting from."))
	schema.Register(schema.New("Neg").
		Doc("Elementwise numerical negation.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Scale").
		Doc("Multiplies the input tensor by a scalar constant.").
		NumInputs(1).NumOutputs(1).
		Arg("scale", "The scalar multiplier, defaults to 1.0."))
	schema.Register(schema.New("Sum").
		Doc("Elementwise sum of an arbitrary number of same-shaped tensors. May run in place on the first operand.").
		NumInputsRange(1, schema.Unlimited).NumOutputs(1))
	schema.Register(schema.New("SumReduceLike").
		Doc("Sum-reduces the first operand down to the shape of the second, undoing a broadcast.").
		NumInputs(2).NumOutputs(1).
		Arg("broadcast", "Matches the broadcast argument of the forward operator.").
		Arg("axis", "Axis the forward broadcast started from."))
	schema.Register(schema.New("DivGradient").
		Doc("Computes both operand gradients of an elementwise division from the divisor, the forward output and the output gradient.").
		NumInputs(3).NumOutputs(2))

	opgrad.Register("Add", opgrad.Defs(addGradient))
	opgrad.Register("Sub", opgrad.Defs(subGradient))
	opgrad.Register("Mul", opgrad.Defs(mulGradient))
	opgrad.Register("Div", opgrad.Defs(divGradient))
	opgrad.Register("Neg", opgrad.Defs(negGradient))
	opgrad.Register("Scale", opgrad.Defs(scaleGradient))
	opgrad.Register("Sum", opgrad.Defs(sumGradient))
}

// addGradient passes the output gradient through to both addends without any backward
// operator: the input gradients alias the output gradient blob. With broadcasting the
// second operand's gradient must first be sum-reduced back down to its shape.
func addGradient(g *opgrad.Base) []*opdef.OperatorDef {
	g.SetDense(0, g.GO(0))
	if !g.Def().HasArg("broadcast") {
		g.SetDense(1, g.GO(0))
		return nil
	}
	return g.SingleGradientDef("SumReduceLike", "",
		[]string{g.GO(0), g.I(1)}, []string{g.GI(1)})
}

func subGradient(g *opgrad.Base) []*opdef.OperatorDef {
	if g.Def().HasArg("broadcast") {
		panic(errors.Wrapf(opgrad.ErrNotImplemented, "Sub gradient with broadcast"))
	}
	g.SetDense(0, g.GO(0))
	return g.SingleGradientDef("Neg", "", []string{g.GO(0)}, []string{g.GI(1)})
}

func mulGradient(g *opgrad.Base) []*opdef.OperatorDef {
	def := g.Def()
	if def.HasArg("broadcast") {
		panic(errors.Wrapf(opgrad.ErrNotImplemented, "Mul gradient with broadcast"))
	}
	if def.Inputs[0] == def.Outputs[0] || def.Inputs[1] == def.Outputs[0] {
		exceptions.Panicf("gradient computation cannot be carried out if Mul runs in place: %s", def)
	}
	return []*opdef.OperatorDef{
		opdef.New("Mul", "", []string{g.GO(0), g.I(1)}, []string{g.GI(0)}),
		opdef.New("Mul", "", []string{g.GO(0), g.I(0)}, []string{g.GI(1)}),
	}
}

// divGradient reuses the forward output: d(A/B)/dA = 1/B and d(A/B)/dB = -C/B, both
// computed by the fused DivGradient operator.
func divGradient(g *opgrad.Base) []*opdef.OperatorDef {
	if g.Def().HasArg("broadcast") {
		panic(errors.Wrapf(opgrad.ErrNotImplemented, "Div gradient with broadcast"))
	}
	return g.SingleGradientDef("DivGradient", "",
		[]string{g.I(1), g.O(0), g.GO(0)},
		[]string{g.GI(0), g.GI(1)})
}

func negGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("Neg", "", []string{g.GO(0)}, []string{g.GI(0)})
}

// scaleGradient leans on argument copying to carry the "scale" argument over to the
// backward operator.
func scaleGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("Scale", "", []string{g.GO(0)}, []string{g.GI(0)})
}

// sumGradient fans the output gradient out to every addend, no backward operator
// needed.
func sumGradient(g *opgrad.Base) []*opdef.OperatorDef {
	for i := range g.Def().Inputs {
		g.SetDense(i, g.GO(0))
	}
	return nil
}
