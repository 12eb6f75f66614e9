// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package schema

import (
	"sort"

	"github.com/gomlx/exceptions"
	"golang.org/x/exp/maps"
)

// The registry is populated during initialization of the packages that define
// operators, and is read-only afterwards.
var registeredSchemas = make(map[string]*OpSchema)

// Register adds s to the registry, keyed by its operator type.
//
// To be safe, call Register during initialization of a package. Registering the same
// operator type twice panics: duplicated schemas are registration bugs.
func Register(s *OpSchema) *OpSchema {
	if s.opType == "" {
		exceptions.Panicf("schema.Register: schema with empty operator type")
	}
	if _, found := registeredSchemas[s.opType]; found {
		exceptions.Panicf("schema.Register: operator type %q already has a registered schema", s.opType)
	}
	registeredSchemas[s.opType] = s
	return s
}

// Lookup returns the schema registered for the operator type, or nil if there is none.
func Lookup(opType string) *OpSchema {
	return registeredSchemas[opType]
}

// Contains reports whether a schema is registered for the operator type.
func Contains(opType string) bool {
	_, found := registeredSchemas[opType]
	return found
}

// RegisteredTypes returns the sorted list of operator types with registered schemas.
func RegisteredTypes() []string {
	types := maps.Keys(registeredSchemas)
	sort.Strings(types)
	return types
}
