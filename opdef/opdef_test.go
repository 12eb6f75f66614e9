// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opdef

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceOption(t *testing.T) {
	var nilOpt *DeviceOption
	require.Nil(t, nilOpt.Clone())
	require.Equal(t, "cpu", nilOpt.String())

	cpu := &DeviceOption{Type: CPU}
	require.Equal(t, "cpu", cpu.String())

	gpu := &DeviceOption{Type: CUDA, Ordinal: 1}
	require.Equal(t, "cuda:1", gpu.String())

	clone := gpu.Clone()
	clone.Ordinal = 3
	require.Equal(t, 1, gpu.Ordinal)
}

func TestNewClonesSlices(t *testing.T) {
	inputs := []string{"X", "W"}
	outputs := []string{"Y"}
	def := New("MatMul", "mm", inputs, outputs)
	inputs[0] = "mutated"
	outputs[0] = "mutated"
	require.Equal(t, []string{"X", "W"}, def.Inputs)
	require.Equal(t, []string{"Y"}, def.Outputs)
	require.Equal(t, "MatMul", def.Type)
	require.Equal(t, "mm", def.Name)
	require.Nil(t, def.Device)
	require.Empty(t, def.Engine)
	require.False(t, def.IsGradientOp)
}

func TestOperatorDefClone(t *testing.T) {
	def := New("FC", "fc1", []string{"X", "W", "b"}, []string{"Y"}, Int("axis", 1))
	def.Device = &DeviceOption{Type: CUDA, Ordinal: 0}
	def.Engine = "CUDNN"
	def.IsGradientOp = true

	clone := def.Clone()
	require.Equal(t, def, clone)

	clone.Inputs[0] = "mutated"
	clone.Args[0].I = 7
	clone.Device.Ordinal = 9
	require.Equal(t, "X", def.Inputs[0])
	require.Equal(t, int64(1), def.Args[0].I)
	require.Equal(t, 0, def.Device.Ordinal)

	var nilDef *OperatorDef
	require.Nil(t, nilDef.Clone())
}

func TestOperatorDefString(t *testing.T) {
	{
		def := New("FC", "", []string{"X", "W", "b"}, []string{"Y"})
		require.Equal(t, "FC(X, W, b) -> (Y)", def.String())
	}
	{
		def := New("FC", "fc1", []string{"X", "W", "b"}, []string{"Y"}, Int("axis", 1))
		def.Engine = "CUDNN"
		def.Device = &DeviceOption{Type: CUDA}
		def.IsGradientOp = true
		require.Equal(t, "fc1:FC(X, W, b) -> (Y) {axis=1} [engine=CUDNN] [cuda:0] [gradient]", def.String())
	}
	{
		var nilDef *OperatorDef
		require.Equal(t, "OperatorDef(nil)", nilDef.String())
	}
}

func TestNetDef(t *testing.T) {
	net := &NetDef{
		Name: "mlp",
		Ops: []*OperatorDef{
			New("FC", "", []string{"X", "W", "b"}, []string{"Y"}),
			New("Relu", "", []string{"Y"}, []string{"A"}),
		},
		ExternalInputs:  []string{"X", "W", "b"},
		ExternalOutputs: []string{"A"},
	}

	clone := net.Clone()
	require.Equal(t, net, clone)
	clone.Ops[0].Inputs[0] = "mutated"
	clone.ExternalInputs[0] = "mutated"
	require.Equal(t, "X", net.Ops[0].Inputs[0])
	require.Equal(t, "X", net.ExternalInputs[0])

	require.Equal(t, "NetDef \"mlp\": 2 ops\n\tFC(X, W, b) -> (Y)\n\tRelu(Y) -> (A)\n", net.String())

	var nilNet *NetDef
	require.Nil(t, nilNet.Clone())
	require.Equal(t, "NetDef(nil)", nilNet.String())
}
