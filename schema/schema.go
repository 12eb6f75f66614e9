// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package schema holds declarative operator schemas and their registry.
//
// A schema describes the legal shape of an OperatorDef for one operator type: how many
// inputs and outputs it takes and which arguments it accepts. Schemas are registered
// once at initialization time (usually from an init function next to the operator's
// gradient rule) and consulted read-only afterwards, in particular by the gradient
// synthesis engine before it generates backward definitions.
//
// Schema presence is optional: operator types without a registered schema simply skip
// verification.
package schema

import (
	"math"
	"strconv"

	"github.com/gomlx/opgrad/opdef"
	"github.com/pkg/errors"
)

// Unlimited can be given as the max of NumInputsRange or NumOutputsRange for operators
// taking any number of inputs/outputs (e.g. Sum, Concat).
const Unlimited = math.MaxInt

// ErrInvalidOpDef is wrapped by all verification failures.
var ErrInvalidOpDef = errors.New("operator definition failed schema checking")

// OpSchema declares the legal shape of one operator type's definitions. Create it with
// New and configure it with the chainable setters:
//
//	schema.Register(schema.New("Concat").
//		NumInputsRange(1, schema.Unlimited).
//		NumOutputs(1).
//		Arg("axis", "axis to concatenate along, defaults to the last"))
type OpSchema struct {
	opType string
	doc    string

	minInputs, maxInputs   int
	minOutputs, maxOutputs int

	// args maps known argument names to their one-line doc. nil means the argument set
	// was never declared and any argument is accepted.
	args         map[string]string
	argsOrder    []string
	requiredArgs []string
}

// New creates a schema for the given operator type with unconstrained inputs, outputs
// and arguments.
func New(opType string) *OpSchema {
	return &OpSchema{
		opType:     opType,
		maxInputs:  Unlimited,
		maxOutputs: Unlimited,
	}
}

// OpType returns the operator type this schema describes.
func (s *OpSchema) OpType() string { return s.opType }

// Doc sets a free-form description of the operator. It returns s for chaining.
func (s *OpSchema) Doc(doc string) *OpSchema {
	s.doc = doc
	return s
}

// GetDoc returns the description set with Doc.
func (s *OpSchema) GetDoc() string { return s.doc }

// NumInputs constrains the definition to exactly n inputs. It returns s for chaining.
func (s *OpSchema) NumInputs(n int) *OpSchema {
	return s.NumInputsRange(n, n)
}

// NumInputsRange constrains the number of inputs to [min, max]. Use Unlimited for an
// open upper bound. It returns s for chaining.
func (s *OpSchema) NumInputsRange(min, max int) *OpSchema {
	s.minInputs, s.maxInputs = min, max
	return s
}

// NumOutputs constrains the definition to exactly n outputs. It returns s for chaining.
func (s *OpSchema) NumOutputs(n int) *OpSchema {
	return s.NumOutputsRange(n, n)
}

// NumOutputsRange constrains the number of outputs to [min, max]. Use Unlimited for an
// open upper bound. It returns s for chaining.
func (s *OpSchema) NumOutputsRange(min, max int) *OpSchema {
	s.minOutputs, s.maxOutputs = min, max
	return s
}

// Arg declares an accepted argument. Once any argument is declared the set becomes
// closed: definitions carrying undeclared arguments fail verification. It returns s
// for chaining.
func (s *OpSchema) Arg(name, doc string) *OpSchema {
	if s.args == nil {
		s.args = make(map[string]string)
	}
	if _, present := s.args[name]; !present {
		s.argsOrder = append(s.argsOrder, name)
	}
	s.args[name] = doc
	return s
}

// RequiredArg declares an argument that must be present on every definition. It
// implies Arg(name, doc). It returns s for chaining.
func (s *OpSchema) RequiredArg(name, doc string) *OpSchema {
	s.Arg(name, doc)
	s.requiredArgs = append(s.requiredArgs, name)
	return s
}

// Args returns the declared argument names in declaration order. It returns nil when
// the argument set is open.
func (s *OpSchema) Args() []string { return s.argsOrder }

// Verify checks def against the schema. It returns nil if the definition is legal;
// otherwise an error wrapping ErrInvalidOpDef that includes the full definition dump.
func (s *OpSchema) Verify(def *opdef.OperatorDef) error {
	if def.Type != s.opType {
		return errors.Wrapf(ErrInvalidOpDef, "schema for %q cannot verify definition of type %q: %s",
			s.opType, def.Type, def)
	}
	if n := len(def.Inputs); n < s.minInputs || n > s.maxInputs {
		return errors.Wrapf(ErrInvalidOpDef, "operator %q takes %s inputs, got %d: %s",
			s.opType, rangeStr(s.minInputs, s.maxInputs), n, def)
	}
	if n := len(def.Outputs); n < s.minOutputs || n > s.maxOutputs {
		return errors.Wrapf(ErrInvalidOpDef, "operator %q produces %s outputs, got %d: %s",
			s.opType, rangeStr(s.minOutputs, s.maxOutputs), n, def)
	}
	seen := make(map[string]bool, len(def.Args))
	for _, arg := range def.Args {
		if seen[arg.Name] {
			return errors.Wrapf(ErrInvalidOpDef, "operator %q has duplicated argument %q: %s",
				s.opType, arg.Name, def)
		}
		seen[arg.Name] = true
		if s.args != nil {
			if _, known := s.args[arg.Name]; !known {
				return errors.Wrapf(ErrInvalidOpDef, "operator %q does not accept argument %q: %s",
					s.opType, arg.Name, def)
			}
		}
	}
	for _, name := range s.requiredArgs {
		if !seen[name] {
			return errors.Wrapf(ErrInvalidOpDef, "operator %q requires argument %q: %s",
				s.opType, name, def)
		}
	}
	return nil
}

// rangeStr pretty-prints an inclusive count range for error messages.
func rangeStr(min, max int) string {
	if min == max {
		return strconv.Itoa(min)
	}
	if max == Unlimited {
		return "at least " + strconv.Itoa(min)
	}
	return "between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)
}
