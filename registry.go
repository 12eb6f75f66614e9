// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgrad

import (
	"sort"

	"github.com/gomlx/exceptions"
	"golang.org/x/exp/maps"
	"k8s.io/klog/v2"

	"github.com/gomlx/opgrad/opdef"
)

// registeredMakers maps operator type names to their gradient maker constructors.
// It is written from init functions only (see package gradops) and read-only during
// synthesis, so concurrent GetGradientForOp calls need no locking.
var registeredMakers = make(map[string]Constructor)

// Register associates a gradient maker constructor with an operator type.
//
// To be safe, only call Register during initialization time, before synthesis starts.
// Re-registering a type overrides the previous constructor with a warning, which is
// occasionally useful to specialize a built-in rule.
func Register(opType string, constructor Constructor) {
	if opType == "" {
		exceptions.Panicf("opgrad.Register: gradient maker with empty operator type")
	}
	if _, found := registeredMakers[opType]; found {
		klog.Warningf("opgrad.Register: overriding the gradient maker registered for operator type %q", opType)
	}
	registeredMakers[opType] = constructor
}

// RegisterNoGradient registers the NoGradient maker for the given operator types,
// declaring they need no gradient computation.
func RegisterNoGradient(opTypes ...string) {
	for _, opType := range opTypes {
		Register(opType, NoGradient)
	}
}

// RegisterForbidGradient registers the ForbidGradient maker for the given operator
// types, declaring that taking their gradient is an error.
func RegisterForbidGradient(opTypes ...string) {
	for _, opType := range opTypes {
		Register(opType, ForbidGradient)
	}
}

// RegisterNotImplementedYet registers the GradientNotImplementedYet placeholder for
// the given operator types.
func RegisterNotImplementedYet(opTypes ...string) {
	for _, opType := range opTypes {
		Register(opType, GradientNotImplementedYet)
	}
}

// Construct builds the gradient maker registered for def's operator type, with the
// given output gradient wrappers. It returns false if no maker is registered for the
// type.
func Construct(def *opdef.OperatorDef, gOutput []Wrapper) (Maker, bool) {
	constructor, found := registeredMakers[def.Type]
	if !found {
		return nil, false
	}
	return constructor(def, gOutput), true
}

// Contains reports whether a gradient maker is registered for the operator type.
func Contains(opType string) bool {
	_, found := registeredMakers[opType]
	return found
}

// RegisteredTypes returns the sorted list of operator types with a registered
// gradient maker.
func RegisteredTypes() []string {
	types := maps.Keys(registeredMakers)
	sort.Strings(types)
	return types
}
