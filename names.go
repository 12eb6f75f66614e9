// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgrad

import (
	"strings"

	"github.com/gomlx/opgrad/opdef"
)

// Gradient blob naming convention. The exact suffixes are load-bearing: tooling
// downstream (parameter matching, checkpointing, net assembly) recognizes gradient
// blobs by them.
const (
	gradientSuffix      = "_grad"
	sparseIndicesSuffix = gradientSuffix + "_indices"
	sparseValuesSuffix  = gradientSuffix + "_values"
)

// GradientName returns the canonical dense gradient blob name for a forward blob.
func GradientName(name string) string { return name + gradientSuffix }

// GradientSliceIndices returns the indices blob name of a sparse gradient.
func GradientSliceIndices(name string) string { return name + sparseIndicesSuffix }

// GradientSliceValues returns the values blob name of a sparse gradient.
func GradientSliceValues(name string) string { return name + sparseValuesSuffix }

// IsGradientBlob reports whether name follows the dense gradient naming convention.
// The name must be strictly longer than the suffix: a blob named just "_grad" is not a
// gradient of anything.
func IsGradientBlob(name string) bool {
	return len(name) > len(gradientSuffix) && strings.HasSuffix(name, gradientSuffix)
}

// GradientNameToParam returns the forward blob name a gradient blob name was derived
// from. It assumes IsGradientBlob(name).
func GradientNameToParam(name string) string {
	return strings.TrimSuffix(name, gradientSuffix)
}

// MatchGradsToParams maps each output of def recognized as a gradient blob to the
// parameter name it was derived from. Outputs not following the gradient naming
// convention are skipped.
//
// This is a pure name heuristic: it does not verify that the parameter blob exists,
// nor that the operator semantically produces its gradient.
func MatchGradsToParams(def *opdef.OperatorDef) map[string]string {
	matched := make(map[string]string)
	for _, out := range def.Outputs {
		if IsGradientBlob(out) {
			matched[out] = GradientNameToParam(out)
		}
	}
	return matched
}
