// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opdef defines the operator-definition IR manipulated by the gradient
// synthesis engine: a named operator type, its ordered input and output blob names,
// optional typed arguments, device placement and engine selection.
//
// An OperatorDef is a pure description of a computation node -- no tensor data and no
// execution is attached to it. Networks (NetDef) are flat ordered lists of such
// definitions, where blobs are connected purely by name. This mirrors the usual
// serialized graph formats (Caffe2 NetDef, ONNX GraphProto) without committing to any
// particular wire encoding.
package opdef

import (
	"fmt"
	"slices"
	"strings"
)

// DeviceType enumerates the device kinds an operator can be placed on.
type DeviceType int

const (
	// CPU is the default placement when no device option is given.
	CPU DeviceType = iota

	// CUDA places the operator on a GPU, selected by DeviceOption.Ordinal.
	CUDA
)

// String returns the lowercase name of the device type.
func (t DeviceType) String() string {
	switch t {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	default:
		return "unknown"
	}
}

// DeviceOption selects the device an operator should run on.
type DeviceOption struct {
	Type    DeviceType
	Ordinal int
}

// Clone returns a copy of the device option, or nil for a nil receiver.
func (d *DeviceOption) Clone() *DeviceOption {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// String returns "cpu" or "cuda:<ordinal>".
func (d *DeviceOption) String() string {
	if d == nil || d.Type == CPU {
		return "cpu"
	}
	return fmt.Sprintf("%s:%d", d.Type, d.Ordinal)
}

// OperatorDef describes one operator instance: which operation to run (Type), the named
// blobs it reads (Inputs) and writes (Outputs), and optional attributes.
//
// The zero value is a valid, empty definition. Definitions are plain data: they can be
// freely constructed, copied (see Clone) and compared field by field.
type OperatorDef struct {
	// Name optionally identifies this instance, e.g. for debugging. Most definitions
	// leave it empty.
	Name string

	// Type is the operator type name, e.g. "MatMul". It keys both the schema registry
	// and the gradient registry.
	Type string

	// Inputs and Outputs are ordered blob names. The same name may appear in both for
	// in-place operations.
	Inputs  []string
	Outputs []string

	// Args are the operator attributes, e.g. an "axis" for Concat.
	Args []*Argument

	// Device optionally pins the operator to a device. A nil Device means the runtime
	// default placement.
	Device *DeviceOption

	// Engine optionally selects a specific implementation, e.g. "CUDNN".
	Engine string

	// IsGradientOp marks definitions synthesized by the gradient engine.
	IsGradientOp bool
}

// New creates an OperatorDef of the given type and name, with copies of the given input
// and output names and the given arguments.
//
// It is the definition-construction helper used by gradient rules; device, engine and
// argument inheritance from a forward operator is handled separately by the synthesis
// driver, so New leaves those fields unset.
func New(opType, name string, inputs, outputs []string, args ...*Argument) *OperatorDef {
	return &OperatorDef{
		Name:    name,
		Type:    opType,
		Inputs:  slices.Clone(inputs),
		Outputs: slices.Clone(outputs),
		Args:    slices.Clone(args),
	}
}

// Clone returns a deep copy of the definition: argument and device values are copied,
// not shared. It returns nil for a nil receiver.
func (def *OperatorDef) Clone() *OperatorDef {
	if def == nil {
		return nil
	}
	c := &OperatorDef{
		Name:         def.Name,
		Type:         def.Type,
		Inputs:       slices.Clone(def.Inputs),
		Outputs:      slices.Clone(def.Outputs),
		Device:       def.Device.Clone(),
		Engine:       def.Engine,
		IsGradientOp: def.IsGradientOp,
	}
	if len(def.Args) > 0 {
		c.Args = make([]*Argument, len(def.Args))
		for ii, arg := range def.Args {
			c.Args[ii] = arg.Clone()
		}
	}
	return c
}

// String returns a compact single-line dump of the definition, e.g.:
//
//	FC(X, W, b) -> (Y) {axis=1} [engine=CUDNN] [cuda:0] [gradient]
//
// It is used in error messages and logging; the format is for humans and not meant to
// be parsed.
func (def *OperatorDef) String() string {
	if def == nil {
		return "OperatorDef(nil)"
	}
	var sb strings.Builder
	if def.Name != "" {
		_, _ = fmt.Fprintf(&sb, "%s:", def.Name)
	}
	opType := def.Type
	if opType == "" {
		opType = "<?>"
	}
	_, _ = fmt.Fprintf(&sb, "%s(%s) -> (%s)", opType,
		strings.Join(def.Inputs, ", "), strings.Join(def.Outputs, ", "))
	if len(def.Args) > 0 {
		parts := make([]string, len(def.Args))
		for ii, arg := range def.Args {
			parts[ii] = arg.String()
		}
		_, _ = fmt.Fprintf(&sb, " {%s}", strings.Join(parts, ", "))
	}
	if def.Engine != "" {
		_, _ = fmt.Fprintf(&sb, " [engine=%s]", def.Engine)
	}
	if def.Device != nil {
		_, _ = fmt.Fprintf(&sb, " [%s]", def.Device)
	}
	if def.IsGradientOp {
		sb.WriteString(" [gradient]")
	}
	return sb.String()
}

// NetDef is an ordered list of operator definitions making up one network. Operators
// are connected by blob name only; the list order is assumed to be a valid topological
// order of the implied DAG (an operator's inputs are produced by earlier operators or
// are external inputs).
type NetDef struct {
	Name string
	Ops  []*OperatorDef

	// ExternalInputs are blobs the network expects to pre-exist (parameters and data);
	// ExternalOutputs are the blobs it promises to the caller.
	ExternalInputs  []string
	ExternalOutputs []string
}

// Clone returns a deep copy of the network definition.
func (net *NetDef) Clone() *NetDef {
	if net == nil {
		return nil
	}
	c := &NetDef{
		Name:            net.Name,
		ExternalInputs:  slices.Clone(net.ExternalInputs),
		ExternalOutputs: slices.Clone(net.ExternalOutputs),
	}
	if len(net.Ops) > 0 {
		c.Ops = make([]*OperatorDef, len(net.Ops))
		for ii, op := range net.Ops {
			c.Ops[ii] = op.Clone()
		}
	}
	return c
}

// String returns a multi-line dump: the net name followed by one indented line per
// operator.
func (net *NetDef) String() string {
	if net == nil {
		return "NetDef(nil)"
	}
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "NetDef %q: %d ops\n", net.Name, len(net.Ops))
	for _, op := range net.Ops {
		_, _ = fmt.Fprintf(&sb, "\t%s\n", op)
	}
	return sb.String()
}
