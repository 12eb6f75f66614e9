// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradops

import (
	"github.com/gomlx/opgrad"
	"github.com/gomlx/opgrad/schema"
)

func init() {
	schema.Register(schema.New("Shape").
		Doc("Returns the shape of the input as a 1-D integer tensor.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Size").
		Doc("Returns the total number of elements of the input as a scalar.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("ConstantFill").
		Doc("Fills a tensor with a constant. The shape comes from an argument or from the optional input tensor.").
		NumInputsRange(0, 1).NumOutputs(1).
		Arg("shape", "Shape of the output, when no input tensor gives it.").
		Arg("value", "The fill value, defaults to 0.").
		Arg("dtype", "Element type of the output.").
		Arg("input_as_shape", "Set to a non-zero value to read the shape from the input's data instead."))
	schema.Register(schema.New("Iter").
		Doc("Maintains and returns a monotonically increasing iteration counter.").
		NumInputsRange(0, 1).NumOutputs(1))
	schema.Register(schema.New("Accuracy").
		Doc("Fraction of rows whose top prediction matches the label.").
		NumInputsRange(2, 3).NumOutputs(1).
		Arg("top_k", "Count a row as correct when the label lands in its top k predictions."))
	schema.Register(schema.New("Print").
		Doc("Logs the content of the input tensor.").
		NumInputs(1).NumOutputs(0).
		Arg("every_n", "Only log every n-th invocation."))
	schema.Register(schema.New("StopGradient").
		Doc("Identity in the forward direction that blocks the backward flow entirely.").
		NumInputs(1).NumOutputs(1))
	schema.Register(schema.New("Assert").
		Doc("Fails the run when the input tensor contains a zero element.").
		NumInputs(1).NumOutputs(0).
		Arg("error_msg", "Message to fail with."))
	schema.Register(schema.New("TopK").
		Doc("Returns the k largest elements along the last axis, their indices, and optionally flattened indices.").
		NumInputs(1).NumOutputsRange(2, 3).
		RequiredArg("k", "How many elements to return."))
	schema.Register(schema.New("ArgMax").
		Doc("Returns the index of the largest element along an axis.").
		NumInputs(1).NumOutputs(1).
		Arg("axis", "Axis to reduce, defaults to the last.").
		Arg("keepdims", "Set to a non-zero value to keep the reduced axis with size one."))

	// Purely observational operators and counters have nothing to backpropagate;
	// StopGradient blocks the flow on purpose.
	opgrad.RegisterNoGradient(
		"Shape", "Size", "ConstantFill", "Iter", "Accuracy", "Print", "StopGradient")

	// Assertions must never end up on a differentiated path.
	opgrad.RegisterForbidGradient("Assert")

	// Subgradients through the selection exist but nobody wrote them so far.
	opgrad.RegisterNotImplementedYet("TopK", "ArgMax")
}
