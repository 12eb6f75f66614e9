// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgrad

import (
	"github.com/pkg/errors"

	"github.com/gomlx/opgrad/opdef"
)

type noGradient struct{ Base }

func (m *noGradient) GradientDefs() ([]*opdef.OperatorDef, error) {
	return nil, nil
}

func (m *noGradient) Get() (*OpsMeta, error) {
	return DefaultGet(m, &m.Base)
}

// NoGradient is the Constructor for operators that need no gradient computation, such
// as shape queries or counters: Get succeeds with no backward definitions and an
// all-empty input gradient mapping.
var NoGradient Constructor = func(def *opdef.OperatorDef, gOutput []Wrapper) Maker {
	return &noGradient{MakeBase(def, gOutput)}
}

type forbidGradient struct{ Base }

func (m *forbidGradient) Get() (*OpsMeta, error) {
	return nil, errors.Wrapf(ErrGradientForbidden,
		"one should not call the gradient of operator type %q", m.Def().Type)
}

// ForbidGradient is the Constructor for operators designed to have no gradient:
// Get always fails with ErrGradientForbidden. Distinct from GradientNotImplementedYet,
// which marks a gradient that exists but was never written.
var ForbidGradient Constructor = func(def *opdef.OperatorDef, gOutput []Wrapper) Maker {
	return &forbidGradient{MakeBase(def, gOutput)}
}

type gradientNotImplementedYet struct{ Base }

func (m *gradientNotImplementedYet) Get() (*OpsMeta, error) {
	return nil, errors.Wrapf(ErrNotImplemented,
		"operator type %q should have a gradient but it is not implemented yet", m.Def().Type)
}

// GradientNotImplementedYet is the placeholder Constructor for operators whose
// gradient exists mathematically but has no rule written yet: Get always fails with
// ErrNotImplemented.
var GradientNotImplementedYet Constructor = func(def *opdef.OperatorDef, gOutput []Wrapper) Maker {
	return &gradientNotImplementedYet{MakeBase(def, gOutput)}
}
