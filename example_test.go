// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgrad_test

import (
	"fmt"

	"github.com/janpfeifer/must"

	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
)

// ExampleDefs registers a gradient rule for a made-up "Square" operator and runs one
// synthesis: with y = x*x, the rule computes dx = 2*x*dy.
func ExampleDefs() {
	opgrad.Register("Square", opgrad.Defs(func(g *opgrad.Base) []*opdef.OperatorDef {
		mul := opdef.New("Mul", "", []string{g.I(0), g.GO(0)}, []string{g.GI(0)})
		double := opdef.New("Scale", "", []string{g.GI(0)}, []string{g.GI(0)},
			opdef.Float("scale", 2))
		return []*opdef.OperatorDef{mul, double}
	}))

	def := opdef.New("Square", "", []string{"x"}, []string{"y"})
	meta := must.M1(opgrad.GetGradientForOp(def, []opgrad.Wrapper{opgrad.Dense("y_grad")}))
	for _, grad := range meta.Ops {
		fmt.Println(grad)
	}
	fmt.Printf("dx: %s\n", meta.Input[0])

	// Output:
	// Mul(x, y_grad) -> (x_grad) [gradient]
	// Scale(x_grad) -> (x_grad) {scale=2} [gradient]
	// dx: dense(x_grad)
}
