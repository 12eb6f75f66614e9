// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradops

import (
	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
	"github.com/gomlx/opgrad/schema"
)

func init() {
	schema.Register(schema.New("ReduceSum").
		Doc("Sums a tensor over the given axes.").
		NumInputs(1).NumOutputs(1).
		Arg("axes", "Axes to reduce over; when omitted, reduces over all of them.").
		Arg("keepdims", "Set to a non-zero value to keep the reduced axes with size one."))
	schema.Register(schema.New("ReduceMean").
		Doc("Averages a tensor over the given axes.").
		NumInputs(1).NumOutputs(1).
		Arg("axes", "Axes to reduce over; when omitted, reduces over all of them.").
		Arg("keepdims", "Set to a non-zero value to keep the reduced axes with size one."))
	schema.Register(schema.New("ReduceSumGradient").
		Doc("Backward of ReduceSum, broadcasting the output gradient back to the input shape.").
		NumInputs(2).NumOutputs(1).
		Arg("axes", "Matches the forward axes argument.").
		Arg("keepdims", "Matches the forward keepdims argument."))
	schema.Register(schema.New("ReduceMeanGradient").
		Doc("Backward of ReduceMean, spreading the output gradient evenly over the reduced elements.").
		NumInputs(2).NumOutputs(1).
		Arg("axes", "Matches the forward axes argument.").
		Arg("keepdims", "Matches the forward keepdims argument."))

	opgrad.Register("ReduceSum", opgrad.Defs(reduceSumGradient))
	opgrad.Register("ReduceMean", opgrad.Defs(reduceMeanGradient))
}

// The backward operators take the forward input along to recover the pre-reduction
// shape; the axes arguments carry over by argument copying.

func reduceSumGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("ReduceSumGradient", "",
		[]string{g.GO(0), g.I(0)}, []string{g.GI(0)})
}

func reduceMeanGradient(g *opgrad.Base) []*opdef.OperatorDef {
	return g.SingleGradientDef("ReduceMeanGradient", "",
		[]string{g.GO(0), g.I(0)}, []string{g.GI(0)})
}
