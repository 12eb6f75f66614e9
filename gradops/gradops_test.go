// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradops_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/opdef"
	"github.com/gomlx/opgrad/schema"

	_ "github.com/gomlx/opgrad/gradops"
)

// gradDef builds the expected form of a synthesized backward definition.
func gradDef(opType string, inputs, outputs []string, args ...*opdef.Argument) *opdef.OperatorDef {
	def := opdef.New(opType, "", inputs, outputs, args...)
	def.IsGradientOp = true
	return def
}

func synthesize(t *testing.T, def *opdef.OperatorDef, gOutput ...opgrad.Wrapper) *opgrad.OpsMeta {
	meta, err := opgrad.GetGradientForOp(def, gOutput)
	require.NoError(t, err)
	return meta
}

func TestAdd(t *testing.T) {
	{
		// Without broadcasting both input gradients alias the output gradient.
		def := opdef.New("Add", "", []string{"A", "B"}, []string{"C"})
		meta := synthesize(t, def, opgrad.Dense("C_grad"))
		require.Empty(t, meta.Ops)
		require.Equal(t, []opgrad.Wrapper{opgrad.Dense("C_grad"), opgrad.Dense("C_grad")}, meta.Input)
	}
	{
		// With broadcasting the second operand's gradient must be sum-reduced back.
		def := opdef.New("Add", "", []string{"A", "b"}, []string{"C"},
			opdef.Int("broadcast", 1), opdef.Int("axis", 1))
		meta := synthesize(t, def, opgrad.Dense("C_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("SumReduceLike", []string{"C_grad", "b"}, []string{"b_grad"},
				opdef.Int("broadcast", 1), opdef.Int("axis", 1)),
		}, meta.Ops)
		require.Equal(t, []opgrad.Wrapper{opgrad.Dense("C_grad"), opgrad.Dense("b_grad")}, meta.Input)
	}
}

func TestSub(t *testing.T) {
	def := opdef.New("Sub", "", []string{"A", "B"}, []string{"C"})
	meta := synthesize(t, def, opgrad.Dense("C_grad"))
	require.Equal(t, []*opdef.OperatorDef{
		gradDef("Neg", []string{"C_grad"}, []string{"B_grad"}),
	}, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{opgrad.Dense("C_grad"), opgrad.Dense("B_grad")}, meta.Input)

	broadcast := opdef.New("Sub", "", []string{"A", "b"}, []string{"C"}, opdef.Int("broadcast", 1))
	_, err := opgrad.GetGradientForOp(broadcast, []opgrad.Wrapper{opgrad.Dense("C_grad")})
	require.ErrorIs(t, err, opgrad.ErrNotImplemented)
	require.ErrorContains(t, err, "broadcast")
}

func TestMul(t *testing.T) {
	def := opdef.New("Mul", "", []string{"A", "B"}, []string{"C"})
	meta := synthesize(t, def, opgrad.Dense("C_grad"))
	require.Equal(t, []*opdef.OperatorDef{
		gradDef("Mul", []string{"C_grad", "B"}, []string{"A_grad"}),
		gradDef("Mul", []string{"C_grad", "A"}, []string{"B_grad"}),
	}, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{opgrad.Dense("A_grad"), opgrad.Dense("B_grad")}, meta.Input)

	inPlace := opdef.New("Mul", "", []string{"A", "B"}, []string{"A"})
	_, err := opgrad.GetGradientForOp(inPlace, []opgrad.Wrapper{opgrad.Dense("A_grad")})
	require.ErrorContains(t, err, "runs in place")

	broadcast := opdef.New("Mul", "", []string{"A", "b"}, []string{"C"}, opdef.Int("broadcast", 1))
	_, err = opgrad.GetGradientForOp(broadcast, []opgrad.Wrapper{opgrad.Dense("C_grad")})
	require.ErrorIs(t, err, opgrad.ErrNotImplemented)
}

func TestDiv(t *testing.T) {
	def := opdef.New("Div", "", []string{"A", "B"}, []string{"C"})
	meta := synthesize(t, def, opgrad.Dense("C_grad"))
	require.Equal(t, []*opdef.OperatorDef{
		gradDef("DivGradient", []string{"B", "C", "C_grad"}, []string{"A_grad", "B_grad"}),
	}, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{opgrad.Dense("A_grad"), opgrad.Dense("B_grad")}, meta.Input)
}

func TestNegAndScale(t *testing.T) {
	{
		def := opdef.New("Neg", "", []string{"X"}, []string{"Y"})
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("Neg", []string{"Y_grad"}, []string{"X_grad"}),
		}, meta.Ops)
	}
	{
		// The backward Scale multiplies by the same constant, carried over by
		// argument copying.
		def := opdef.New("Scale", "", []string{"X"}, []string{"Y"}, opdef.Float("scale", 3))
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("Scale", []string{"Y_grad"}, []string{"X_grad"}, opdef.Float("scale", 3)),
		}, meta.Ops)
	}
}

func TestSum(t *testing.T) {
	def := opdef.New("Sum", "", []string{"A", "B", "C"}, []string{"S"})
	meta := synthesize(t, def, opgrad.Dense("S_grad"))
	require.Empty(t, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{
		opgrad.Dense("S_grad"), opgrad.Dense("S_grad"), opgrad.Dense("S_grad"),
	}, meta.Input)
}

func TestActivations(t *testing.T) {
	// These recover their derivative from the forward output through a dedicated
	// backward operator.
	for _, opType := range []string{"Relu", "Sigmoid", "Tanh"} {
		def := opdef.New(opType, "", []string{"X"}, []string{"Y"})
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef(opType+"Gradient", []string{"Y", "Y_grad"}, []string{"X_grad"}),
		}, meta.Ops, "gradient of %s", opType)
		require.Equal(t, []opgrad.Wrapper{opgrad.Dense("X_grad")}, meta.Input)
	}

	{
		def := opdef.New("Softmax", "", []string{"X"}, []string{"Y"}, opdef.Int("axis", 1))
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("SoftmaxGradient", []string{"Y", "Y_grad"}, []string{"X_grad"},
				opdef.Int("axis", 1)),
		}, meta.Ops)
	}
}

func TestElementwiseMath(t *testing.T) {
	{
		// d/dx exp(x) is the forward output itself.
		def := opdef.New("Exp", "", []string{"X"}, []string{"Y"})
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("Mul", []string{"Y", "Y_grad"}, []string{"X_grad"}),
		}, meta.Ops)
	}
	{
		def := opdef.New("Log", "", []string{"X"}, []string{"Y"})
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("Div", []string{"Y_grad", "X"}, []string{"X_grad"}),
		}, meta.Ops)
	}
	{
		// Divide by the forward output, then halve in place.
		def := opdef.New("Sqrt", "", []string{"X"}, []string{"Y"})
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("Div", []string{"Y_grad", "Y"}, []string{"X_grad"}),
			gradDef("Scale", []string{"X_grad"}, []string{"X_grad"}, opdef.Float("scale", 0.5)),
		}, meta.Ops)
	}
}

func TestMatMul(t *testing.T) {
	cases := []struct {
		name    string
		fwdArgs []*opdef.Argument
		want    []*opdef.OperatorDef
	}{
		{
			name: "no transposes",
			want: []*opdef.OperatorDef{
				gradDef("MatMul", []string{"Y_grad", "B"}, []string{"A_grad"}, opdef.Int("trans_b", 1)),
				gradDef("MatMul", []string{"A", "Y_grad"}, []string{"B_grad"}, opdef.Int("trans_a", 1)),
			},
		},
		{
			name:    "trans_a",
			fwdArgs: []*opdef.Argument{opdef.Int("trans_a", 1)},
			want: []*opdef.OperatorDef{
				gradDef("MatMul", []string{"B", "Y_grad"}, []string{"A_grad"}, opdef.Int("trans_b", 1)),
				gradDef("MatMul", []string{"A", "Y_grad"}, []string{"B_grad"}),
			},
		},
		{
			name:    "trans_b",
			fwdArgs: []*opdef.Argument{opdef.Int("trans_b", 1)},
			want: []*opdef.OperatorDef{
				gradDef("MatMul", []string{"Y_grad", "B"}, []string{"A_grad"}),
				gradDef("MatMul", []string{"Y_grad", "A"}, []string{"B_grad"}, opdef.Int("trans_a", 1)),
			},
		},
		{
			name:    "both transposed",
			fwdArgs: []*opdef.Argument{opdef.Int("trans_a", 1), opdef.Int("trans_b", 1)},
			want: []*opdef.OperatorDef{
				gradDef("MatMul", []string{"B", "Y_grad"}, []string{"A_grad"},
					opdef.Int("trans_a", 1), opdef.Int("trans_b", 1)),
				gradDef("MatMul", []string{"Y_grad", "A"}, []string{"B_grad"},
					opdef.Int("trans_a", 1), opdef.Int("trans_b", 1)),
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			def := opdef.New("MatMul", "", []string{"A", "B"}, []string{"Y"}, c.fwdArgs...)
			meta := synthesize(t, def, opgrad.Dense("Y_grad"))
			// The forward transpose flags must not leak into the backward
			// definitions, which carry flags of their own.
			require.Equal(t, c.want, meta.Ops)
			require.Equal(t, []opgrad.Wrapper{opgrad.Dense("A_grad"), opgrad.Dense("B_grad")}, meta.Input)
		})
	}
}

func TestFC(t *testing.T) {
	def := opdef.New("FC", "", []string{"X", "W", "b"}, []string{"Y"}, opdef.Int("axis", 2))
	meta := synthesize(t, def, opgrad.Dense("Y_grad"))
	require.Equal(t, []*opdef.OperatorDef{
		gradDef("FCGradient", []string{"X", "W", "Y_grad"},
			[]string{"W_grad", "b_grad", "X_grad"}, opdef.Int("axis", 2)),
	}, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{
		opgrad.Dense("X_grad"), opgrad.Dense("W_grad"), opgrad.Dense("b_grad"),
	}, meta.Input)
}

func TestReshape(t *testing.T) {
	def := opdef.New("Reshape", "", []string{"X"}, []string{"Y", "X_old_shape"},
		opdef.IntList("shape", 4, -1))
	meta := synthesize(t, def, opgrad.Dense("Y_grad"), opgrad.Wrapper{})
	// The backward reshape targets the recorded old shape; the forward "shape"
	// argument must not be copied over.
	require.Equal(t, []*opdef.OperatorDef{
		gradDef("Reshape", []string{"Y_grad", "X_old_shape"}, []string{"X_grad", "_X_grad_dims"}),
	}, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{opgrad.Dense("X_grad")}, meta.Input)
}

func TestTranspose(t *testing.T) {
	{
		def := opdef.New("Transpose", "", []string{"X"}, []string{"Y"})
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("Transpose", []string{"Y_grad"}, []string{"X_grad"}),
		}, meta.Ops)
	}
	{
		// The backward permutation is the inverse of the forward one.
		def := opdef.New("Transpose", "", []string{"X"}, []string{"Y"},
			opdef.IntList("axes", 1, 2, 0))
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("Transpose", []string{"Y_grad"}, []string{"X_grad"},
				opdef.IntList("axes", 2, 0, 1)),
		}, meta.Ops)
	}
	{
		def := opdef.New("Transpose", "", []string{"X"}, []string{"Y"},
			opdef.IntList("axes", 0, 3, 1))
		_, err := opgrad.GetGradientForOp(def, []opgrad.Wrapper{opgrad.Dense("Y_grad")})
		require.ErrorContains(t, err, "permutation")
	}
	{
		// A repeated axis is no permutation either, even with every axis in range.
		def := opdef.New("Transpose", "", []string{"X"}, []string{"Y"},
			opdef.IntList("axes", 1, 1, 0))
		_, err := opgrad.GetGradientForOp(def, []opgrad.Wrapper{opgrad.Dense("Y_grad")})
		require.ErrorContains(t, err, "permutation")
	}
}

func TestConcat(t *testing.T) {
	def := opdef.New("Concat", "", []string{"A", "B", "C"}, []string{"Y", "Y_split_info"},
		opdef.Int("axis", 1))
	meta := synthesize(t, def, opgrad.Dense("Y_grad"), opgrad.Wrapper{})
	require.Equal(t, []*opdef.OperatorDef{
		gradDef("Split", []string{"Y_grad", "Y_split_info"},
			[]string{"A_grad", "B_grad", "C_grad"}, opdef.Int("axis", 1)),
	}, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{
		opgrad.Dense("A_grad"), opgrad.Dense("B_grad"), opgrad.Dense("C_grad"),
	}, meta.Input)
}

func TestSplit(t *testing.T) {
	def := opdef.New("Split", "", []string{"X"}, []string{"A", "B"}, opdef.Int("axis", 0))
	{
		meta := synthesize(t, def, opgrad.Dense("A_grad"), opgrad.Dense("B_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef("Concat", []string{"A_grad", "B_grad"},
				[]string{"X_grad", "_X_grad_split"}, opdef.Int("axis", 0)),
		}, meta.Ops)
		require.Equal(t, []opgrad.Wrapper{opgrad.Dense("X_grad")}, meta.Input)
	}
	{
		// With any piece's gradient missing the input gradient cannot be assembled.
		meta := synthesize(t, def, opgrad.Dense("A_grad"), opgrad.Wrapper{})
		require.Empty(t, meta.Ops)
		require.True(t, meta.Input[0].IsEmpty())
	}
}

func TestFlatten(t *testing.T) {
	def := opdef.New("Flatten", "", []string{"X"}, []string{"Y"}, opdef.Int("axis", 1))
	meta := synthesize(t, def, opgrad.Dense("Y_grad"))
	require.Equal(t, []*opdef.OperatorDef{
		gradDef("ResizeLike", []string{"Y_grad", "X"}, []string{"X_grad"}, opdef.Int("axis", 1)),
	}, meta.Ops)
}

func TestReductions(t *testing.T) {
	for opType, gradType := range map[string]string{
		"ReduceSum":  "ReduceSumGradient",
		"ReduceMean": "ReduceMeanGradient",
	} {
		def := opdef.New(opType, "", []string{"X"}, []string{"S"},
			opdef.IntList("axes", 0), opdef.Int("keepdims", 0))
		meta := synthesize(t, def, opgrad.Dense("S_grad"))
		require.Equal(t, []*opdef.OperatorDef{
			gradDef(gradType, []string{"S_grad", "X"}, []string{"X_grad"},
				opdef.IntList("axes", 0), opdef.Int("keepdims", 0)),
		}, meta.Ops, "gradient of %s", opType)
		require.Equal(t, []opgrad.Wrapper{opgrad.Dense("X_grad")}, meta.Input)
	}
}

func TestGather(t *testing.T) {
	def := opdef.New("Gather", "", []string{"DATA", "ids"}, []string{"Y"})
	meta := synthesize(t, def, opgrad.Dense("Y_grad"))
	// No backward operator at all: the data gradient is the forward index tensor
	// paired with the output gradient as values.
	require.Empty(t, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{opgrad.Sparse("ids", "Y_grad"), {}}, meta.Input)
}

func TestSparseLengthsSum(t *testing.T) {
	def := opdef.New("SparseLengthsSum", "", []string{"DATA", "ids", "lengths"}, []string{"Y"})
	meta := synthesize(t, def, opgrad.Dense("Y_grad"))
	require.Equal(t, []*opdef.OperatorDef{
		gradDef("SparseLengthsSumGradient", []string{"Y_grad", "lengths"},
			[]string{"DATA_grad_values"}),
	}, meta.Ops)
	require.Equal(t, []opgrad.Wrapper{
		opgrad.Sparse("ids", "DATA_grad_values"), {}, {},
	}, meta.Input)
}

func TestNonDifferentiable(t *testing.T) {
	{
		def := opdef.New("Shape", "", []string{"X"}, []string{"dims"})
		meta := synthesize(t, def, opgrad.Dense("dims_grad"))
		require.Empty(t, meta.Ops)
		require.Equal(t, []opgrad.Wrapper{{}}, meta.Input)
	}
	{
		def := opdef.New("StopGradient", "", []string{"X"}, []string{"Y"})
		meta := synthesize(t, def, opgrad.Dense("Y_grad"))
		require.Empty(t, meta.Ops)
		require.Equal(t, []opgrad.Wrapper{{}}, meta.Input)
	}
	{
		def := opdef.New("Assert", "", []string{"cond"}, nil)
		_, err := opgrad.GetGradientForOp(def, nil)
		require.ErrorIs(t, err, opgrad.ErrGradientForbidden)
	}
	{
		def := opdef.New("TopK", "", []string{"X"}, []string{"vals", "ids"}, opdef.Int("k", 5))
		_, err := opgrad.GetGradientForOp(def, []opgrad.Wrapper{opgrad.Dense("vals_grad"), {}})
		require.ErrorIs(t, err, opgrad.ErrNotImplemented)
	}
}

func TestSchemasRegistered(t *testing.T) {
	for _, opType := range []string{"Add", "MatMul", "FC", "Reshape", "Gather", "TopK"} {
		require.True(t, schema.Contains(opType), "missing schema for %s", opType)
		require.True(t, opgrad.Contains(opType), "missing gradient maker for %s", opType)
	}

	// Schema violations of the forward definition fail synthesis up front.
	def := opdef.New("Add", "", []string{"A"}, []string{"C"})
	_, err := opgrad.GetGradientForOp(def, []opgrad.Wrapper{opgrad.Dense("C_grad")})
	require.ErrorIs(t, err, schema.ErrInvalidOpDef)
	require.ErrorContains(t, err, "takes 2 inputs, got 1")

	withUnknownArg := opdef.New("Add", "", []string{"A", "B"}, []string{"C"}, opdef.Float("alpha", 1))
	_, err = opgrad.GetGradientForOp(withUnknownArg, []opgrad.Wrapper{opgrad.Dense("C_grad")})
	require.ErrorContains(t, err, `does not accept argument "alpha"`)

	missingRequired := opdef.New("TopK", "", []string{"X"}, []string{"vals", "ids"})
	require.ErrorContains(t, schema.Lookup("TopK").Verify(missingRequired), `requires argument "k"`)
}
