// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gradops registers the gradient rules and operator schemas of the standard
// operator set. It is imported for its side effects only:
//
//	import _ "github.com/gomlx/opgrad/gradops"
//
// Operators are grouped by family, one file each: arithmetic, activations, linear
// algebra, shape manipulation, reductions, sparse access, and the declarations of
// operators with no gradient at all.
package gradops
