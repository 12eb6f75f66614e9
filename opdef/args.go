// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opdef

import (
	"fmt"
	"slices"
	"strings"
)

// ArgKind discriminates which value field of an Argument is set.
type ArgKind int

const (
	ArgFloat ArgKind = iota
	ArgInt
	ArgString
	ArgFloats
	ArgInts
	ArgStrings
)

// String returns the name of the argument kind.
func (k ArgKind) String() string {
	switch k {
	case ArgFloat:
		return "float"
	case ArgInt:
		return "int"
	case ArgString:
		return "string"
	case ArgFloats:
		return "floats"
	case ArgInts:
		return "ints"
	case ArgStrings:
		return "strings"
	default:
		return "unknown"
	}
}

// Argument is one named operator attribute. Exactly one value field is meaningful,
// selected by Kind. Use the constructors (Float, Int, String, ...) rather than filling
// the struct directly.
type Argument struct {
	Name string
	Kind ArgKind

	F float64
	I int64
	S string

	Floats  []float64
	Ints    []int64
	Strings []string
}

// Float creates a float-valued argument.
func Float(name string, value float64) *Argument {
	return &Argument{Name: name, Kind: ArgFloat, F: value}
}

// Int creates an int-valued argument.
func Int(name string, value int64) *Argument {
	return &Argument{Name: name, Kind: ArgInt, I: value}
}

// String creates a string-valued argument.
func String(name, value string) *Argument {
	return &Argument{Name: name, Kind: ArgString, S: value}
}

// FloatList creates a repeated-float argument.
func FloatList(name string, values ...float64) *Argument {
	return &Argument{Name: name, Kind: ArgFloats, Floats: values}
}

// IntList creates a repeated-int argument.
func IntList(name string, values ...int64) *Argument {
	return &Argument{Name: name, Kind: ArgInts, Ints: values}
}

// StringList creates a repeated-string argument.
func StringList(name string, values ...string) *Argument {
	return &Argument{Name: name, Kind: ArgStrings, Strings: values}
}

// Clone returns a copy of the argument with its own backing slices.
func (arg *Argument) Clone() *Argument {
	if arg == nil {
		return nil
	}
	c := *arg
	c.Floats = slices.Clone(arg.Floats)
	c.Ints = slices.Clone(arg.Ints)
	c.Strings = slices.Clone(arg.Strings)
	return &c
}

// String returns "name=value" with strings quoted and lists bracketed.
func (arg *Argument) String() string {
	if arg == nil {
		return "<nil>"
	}
	switch arg.Kind {
	case ArgFloat:
		return fmt.Sprintf("%s=%g", arg.Name, arg.F)
	case ArgInt:
		return fmt.Sprintf("%s=%d", arg.Name, arg.I)
	case ArgString:
		return fmt.Sprintf("%s=%q", arg.Name, arg.S)
	case ArgFloats:
		return fmt.Sprintf("%s=%v", arg.Name, arg.Floats)
	case ArgInts:
		return fmt.Sprintf("%s=%v", arg.Name, arg.Ints)
	case ArgStrings:
		parts := make([]string, len(arg.Strings))
		for ii, s := range arg.Strings {
			parts[ii] = fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%s=[%s]", arg.Name, strings.Join(parts, " "))
	default:
		return fmt.Sprintf("%s=?", arg.Name)
	}
}

// Arg returns the first argument with the given name, or (nil, false) if absent.
func (def *OperatorDef) Arg(name string) (*Argument, bool) {
	for _, arg := range def.Args {
		if arg.Name == name {
			return arg, true
		}
	}
	return nil, false
}

// HasArg reports whether an argument with the given name is present.
func (def *OperatorDef) HasArg(name string) bool {
	_, found := def.Arg(name)
	return found
}

// GetIntArg returns the named int argument, or defaultValue if it is absent or not
// int-valued.
func (def *OperatorDef) GetIntArg(name string, defaultValue int64) int64 {
	if arg, found := def.Arg(name); found && arg.Kind == ArgInt {
		return arg.I
	}
	return defaultValue
}

// GetFloatArg returns the named float argument, or defaultValue if it is absent or not
// float-valued.
func (def *OperatorDef) GetFloatArg(name string, defaultValue float64) float64 {
	if arg, found := def.Arg(name); found && arg.Kind == ArgFloat {
		return arg.F
	}
	return defaultValue
}

// GetStringArg returns the named string argument, or defaultValue if it is absent or
// not string-valued.
func (def *OperatorDef) GetStringArg(name, defaultValue string) string {
	if arg, found := def.Arg(name); found && arg.Kind == ArgString {
		return arg.S
	}
	return defaultValue
}
