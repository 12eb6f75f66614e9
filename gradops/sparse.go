// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradops

import (
	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
	"github.com/gomlx/opgrad/schema"
)

func init() {
	schema.Register(schema.New("Gather").
		Doc("Gathers rows of the first operand selected by the index tensor.").
		NumInputs(2).NumOutputs(1))
	schema.Register(schema.New("SparseLengthsSum").
		Doc("Gathers rows of the first operand by index and sums them in segments given by the lengths tensor.").
		NumInputs(3).NumOutputs(1))
	schema.Register(schema.New("SparseLengthsSumGradient").
		Doc("Backward of SparseLengthsSum: one value row per gathered index, to be paired with the forward indices.").
		NumInputs(2).NumOutputs(1))

	opgrad.Register("Gather", opgrad.Defs(gatherGradient))
	opgrad.Register("SparseLengthsSum", opgrad.Defs(sparseLengthsSumGradient))
}

// gatherGradient needs no backward operator at all: only the gathered rows have a
// non-zero gradient, so the data gradient is sparse with the forward index tensor as
// rows and the output gradient as values. The index input itself gets no gradient.
func gatherGradient(g *opgrad.Base) []*opdef.OperatorDef {
	g.SetSparse(0, g.I(1), g.GO(0))
	return nil
}

// sparseLengthsSumGradient segments the output gradient back into one value row per
// gathered index; those rows paired with the forward indices form the sparse data
// gradient.
func sparseLengthsSumGradient(g *opgrad.Base) []*opdef.OperatorDef {
	values := opgrad.GradientSliceValues(g.I(0))
	g.SetSparse(0, g.I(1), values)
	return g.SingleGradientDef("SparseLengthsSumGradient", "",
		[]string{g.GO(0), g.I(2)}, []string{values})
}
