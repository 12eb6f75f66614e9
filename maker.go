// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgrad

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/gomlx/opgrad/opdef"
	"github.com/gomlx/opgrad/schema"
)

// Maker synthesizes the backward definitions for one forward operator. A Maker is
// built by a Constructor for a single (definition, output gradients) pair, used once
// and discarded.
//
// Most gradient rules are plain functions adapted with Defs; implementing Maker
// directly, embedding Base, is only needed for rules that replace the whole synthesis
// sequence.
type Maker interface {
	// Verify checks the forward definition against its registered schema, if any.
	Verify() error

	// GradientDefs generates the backward operator definitions. The default from Base
	// fails with ErrNotImplemented.
	GradientDefs() ([]*opdef.OperatorDef, error)

	// Get runs the synthesis: verify the forward definition, generate the backward
	// definitions, mark them as gradient operations and bundle them with the gradient
	// wrappers of the forward inputs.
	Get() (*OpsMeta, error)

	// CopyDeviceOption, CopyEngine and CopyArguments report whether GetGradientForOp
	// should propagate the forward operator's device option, engine and arguments to
	// every synthesized definition. Base defaults all three to true.
	CopyDeviceOption() bool
	CopyEngine() bool
	CopyArguments() bool
}

// Constructor builds the Maker for one forward operator definition and the gradient
// wrappers of its outputs, index-aligned with def.Outputs.
type Constructor func(def *opdef.OperatorDef, gOutput []Wrapper) Maker

// Base carries the bookkeeping shared by every gradient maker: the forward definition,
// the gradient wrappers of its outputs, and the input gradient wrappers being filled
// in. Concrete makers embed it and use its accessors to wire blob names.
//
// The accessors panic (with an error, see package exceptions) on contract violations
// such as reading a dense gradient for a sparse output; Get recovers the panic and
// returns it as an ordinary error.
type Base struct {
	def     *opdef.OperatorDef
	gOutput []Wrapper
	gInput  []Wrapper
}

// MakeBase initializes the bookkeeping for one synthesis request. def and gOutput are
// borrowed read-only for the lifetime of the maker; the input gradient wrappers start
// all empty, one per forward input.
func MakeBase(def *opdef.OperatorDef, gOutput []Wrapper) Base {
	return Base{
		def:     def,
		gOutput: gOutput,
		gInput:  make([]Wrapper, len(def.Inputs)),
	}
}

// Def returns the forward operator definition the maker was built for.
func (b *Base) Def() *opdef.OperatorDef { return b.def }

// Verify checks the forward definition against the schema registered for its operator
// type. Types without a schema pass trivially.
func (b *Base) Verify() error {
	s := schema.Lookup(b.def.Type)
	if s == nil {
		return nil
	}
	return s.Verify(b.def)
}

// GradientDefs fails with ErrNotImplemented. Concrete makers provide their own
// generator (usually through Defs) or replace Get entirely.
func (b *Base) GradientDefs() ([]*opdef.OperatorDef, error) {
	return nil, errors.Wrapf(ErrNotImplemented,
		"no backward definitions generator for operator type %q", b.def.Type)
}

// CopyDeviceOption reports that synthesized definitions inherit the forward
// operator's device option.
func (b *Base) CopyDeviceOption() bool { return true }

// CopyEngine reports that synthesized definitions inherit the forward operator's
// engine.
func (b *Base) CopyEngine() bool { return true }

// CopyArguments reports that synthesized definitions inherit the forward operator's
// arguments.
func (b *Base) CopyArguments() bool { return true }

func (b *Base) inputName(i int) string {
	if i < 0 || i >= len(b.def.Inputs) {
		exceptions.Panicf("input index %d out of range for %s", i, b.def)
	}
	return b.def.Inputs[i]
}

func (b *Base) outputName(i int) string {
	if i < 0 || i >= len(b.def.Outputs) {
		exceptions.Panicf("output index %d out of range for %s", i, b.def)
	}
	return b.def.Outputs[i]
}

func (b *Base) gradOut(i int) Wrapper {
	if i < 0 || i >= len(b.gOutput) {
		exceptions.Panicf("output gradient index %d out of range, %d output gradients given for %s",
			i, len(b.gOutput), b.def)
	}
	return b.gOutput[i]
}

// I returns the name of the i-th forward input.
func (b *Base) I(i int) string { return b.inputName(i) }

// O returns the name of the i-th forward output.
func (b *Base) O(i int) string { return b.outputName(i) }

// GO returns the dense gradient blob name supplied for the i-th forward output. It
// panics if that gradient is sparse or was not provided: rules that can consume a
// sparse or missing output gradient must check GradOut first.
func (b *Base) GO(i int) string {
	name := b.outputName(i)
	w := b.gradOut(i)
	if !w.IsDense() {
		if w.IsSparse() {
			exceptions.Panicf("gradient of output %q is sparse (expected dense), cannot run the gradient of %s",
				name, b.def)
		}
		exceptions.Panicf("gradient of output %q is not provided, cannot run the gradient of %s",
			name, b.def)
	}
	return w.Dense
}

// GOIndices returns the indices blob name of the sparse gradient supplied for the
// i-th forward output. It panics if that gradient is dense or was not provided.
func (b *Base) GOIndices(i int) string {
	name := b.outputName(i)
	w := b.gradOut(i)
	if !w.IsSparse() {
		if w.IsDense() {
			exceptions.Panicf("gradient of output %q is dense (expected sparse), cannot run the gradient of %s",
				name, b.def)
		}
		exceptions.Panicf("gradient of output %q is not provided, cannot run the gradient of %s",
			name, b.def)
	}
	return w.Indices
}

// GOValues returns the values blob name of the sparse gradient supplied for the i-th
// forward output. It panics if that gradient is dense or was not provided.
func (b *Base) GOValues(i int) string {
	name := b.outputName(i)
	w := b.gradOut(i)
	if !w.IsSparse() {
		if w.IsDense() {
			exceptions.Panicf("gradient of output %q is dense (expected sparse), cannot run the gradient of %s",
				name, b.def)
		}
		exceptions.Panicf("gradient of output %q is not provided, cannot run the gradient of %s",
			name, b.def)
	}
	return w.Values
}

// GradOut returns the raw gradient wrapper supplied for the i-th forward output,
// without any representation check. Rules use it to branch on dense vs sparse vs
// absent output gradients.
func (b *Base) GradOut(i int) Wrapper { return b.gradOut(i) }

// SetDense records name as the dense gradient blob of the i-th forward input, for
// rules that use non-canonical gradient names. It panics if the input gradient was
// already recorded as sparse: a gradient is dense or sparse, never both.
func (b *Base) SetDense(i int, name string) {
	input := b.inputName(i)
	if b.gInput[i].IsSparse() {
		exceptions.Panicf("input %q already set to sparse, cannot also set its dense gradient %q",
			input, name)
	}
	b.gInput[i].Dense = name
}

// SetSparse records the (indices, values) pair as the sparse gradient of the i-th
// forward input. It panics if the input gradient was already recorded as dense.
func (b *Base) SetSparse(i int, indices, values string) {
	input := b.inputName(i)
	if b.gInput[i].IsDense() {
		exceptions.Panicf("input %q already set to dense, cannot also set its sparse gradient (%q, %q)",
			input, indices, values)
	}
	b.gInput[i].Indices = indices
	b.gInput[i].Values = values
}

// GI derives, records and returns the canonical dense gradient blob name of the i-th
// forward input: the input name suffixed with "_grad". It panics if the input gradient
// was already recorded as sparse.
//
// Reading GI for the same input repeatedly is fine, the same name is derived and
// recorded every time.
func (b *Base) GI(i int) string {
	grad := GradientName(b.inputName(i))
	b.SetDense(i, grad)
	return grad
}

// GIIndices derives, records and returns the canonical indices blob name of the i-th
// forward input's sparse gradient. It panics if the input gradient was already
// recorded as dense.
func (b *Base) GIIndices(i int) string {
	input := b.inputName(i)
	if b.gInput[i].IsDense() {
		exceptions.Panicf("input %q already set to dense, cannot also set its sparse gradient indices",
			input)
	}
	b.gInput[i].Indices = GradientSliceIndices(input)
	return b.gInput[i].Indices
}

// GIValues derives, records and returns the canonical values blob name of the i-th
// forward input's sparse gradient. It panics if the input gradient was already
// recorded as dense.
func (b *Base) GIValues(i int) string {
	input := b.inputName(i)
	if b.gInput[i].IsDense() {
		exceptions.Panicf("input %q already set to dense, cannot also set its sparse gradient values",
			input)
	}
	b.gInput[i].Values = GradientSliceValues(input)
	return b.gInput[i].Values
}

// InputGradients returns the input gradient wrappers recorded so far, index-aligned
// with the forward inputs. The returned slice is the live backing store, callers must
// not hold on to it past the maker's lifetime.
func (b *Base) InputGradients() []Wrapper { return b.gInput }

// SingleGradientDef builds the one-element definition list for the common case of a
// single backward operator.
func (b *Base) SingleGradientDef(opType, name string, inputs, outputs []string, args ...*opdef.Argument) []*opdef.OperatorDef {
	return []*opdef.OperatorDef{opdef.New(opType, name, inputs, outputs, args...)}
}

// Meta assembles the synthesis result: it marks every definition as a gradient
// operation and bundles them with the input gradient wrappers recorded so far.
func (b *Base) Meta(defs []*opdef.OperatorDef) *OpsMeta {
	for _, def := range defs {
		def.IsGradientOp = true
	}
	return &OpsMeta{Ops: defs, Input: b.gInput}
}

// DefaultGet runs the standard synthesis sequence on behalf of a maker embedding
// base: Verify the forward definition, GradientDefs, then Meta. Makers that only
// customize GradientDefs implement Get by delegating here.
func DefaultGet(m Maker, base *Base) (*OpsMeta, error) {
	if err := m.Verify(); err != nil {
		return nil, err
	}
	defs, err := m.GradientDefs()
	if err != nil {
		return nil, err
	}
	return base.Meta(defs), nil
}

// DefsFunc generates the backward definitions for the forward operator wrapped by g.
// Implementations wire blob names with the accessors on g (I, O, GO, GI, ...), which
// panic on contract violations; the panic is recovered by the enclosing maker and
// reported as an error from Get.
type DefsFunc func(g *Base) []*opdef.OperatorDef

// DefsOption configures the maker built by Defs.
type DefsOption func(m *defsMaker)

// WithoutDeviceCopy makes the rule's backward definitions not inherit the forward
// operator's device option.
func WithoutDeviceCopy() DefsOption {
	return func(m *defsMaker) { m.copyDevice = false }
}

// WithoutEngineCopy makes the rule's backward definitions not inherit the forward
// operator's engine.
func WithoutEngineCopy() DefsOption {
	return func(m *defsMaker) { m.copyEngine = false }
}

// WithoutArgumentCopy makes the rule's backward definitions not inherit the forward
// operator's arguments. Use it when the backward operators take arguments of their
// own that the forward arguments would clash with.
func WithoutArgumentCopy() DefsOption {
	return func(m *defsMaker) { m.copyArgs = false }
}

// Defs adapts a plain generator function into a gradient maker Constructor running
// the standard synthesis sequence. This is the way most gradient rules are written:
//
//	opgrad.Register("Exp", opgrad.Defs(func(g *opgrad.Base) []*opdef.OperatorDef {
//		return g.SingleGradientDef("Mul", "",
//			[]string{g.O(0), g.GO(0)}, []string{g.GI(0)})
//	}))
func Defs(fn DefsFunc, opts ...DefsOption) Constructor {
	return func(def *opdef.OperatorDef, gOutput []Wrapper) Maker {
		m := &defsMaker{
			Base:       MakeBase(def, gOutput),
			fn:         fn,
			copyDevice: true,
			copyEngine: true,
			copyArgs:   true,
		}
		for _, opt := range opts {
			opt(m)
		}
		return m
	}
}

type defsMaker struct {
	Base
	fn         DefsFunc
	copyDevice bool
	copyEngine bool
	copyArgs   bool
}

// GradientDefs runs the generator function, converting its panics to errors.
func (m *defsMaker) GradientDefs() (defs []*opdef.OperatorDef, err error) {
	err = exceptions.TryCatch[error](func() {
		defs = m.fn(&m.Base)
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// Get runs the standard synthesis sequence.
func (m *defsMaker) Get() (*OpsMeta, error) {
	return DefaultGet(m, &m.Base)
}

func (m *defsMaker) CopyDeviceOption() bool { return m.copyDevice }
func (m *defsMaker) CopyEngine() bool       { return m.copyEngine }
func (m *defsMaker) CopyArguments() bool    { return m.copyArgs }
