// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgrad

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/opgrad/opdef"
)

func TestGradientNames(t *testing.T) {
	require.Equal(t, "W_grad", GradientName("W"))
	require.Equal(t, "W_grad_indices", GradientSliceIndices("W"))
	require.Equal(t, "W_grad_values", GradientSliceValues("W"))
	require.Equal(t, "W", GradientNameToParam("W_grad"))
}

func TestIsGradientBlob(t *testing.T) {
	require.True(t, IsGradientBlob("W_grad"))
	require.True(t, IsGradientBlob("a_grad"))
	require.False(t, IsGradientBlob("Wgrad"))
	require.False(t, IsGradientBlob("W"))
	require.False(t, IsGradientBlob(""))
	// The bare suffix is not the gradient of anything.
	require.False(t, IsGradientBlob("_grad"))
	// Sparse component blobs do not follow the dense convention.
	require.False(t, IsGradientBlob("W_grad_indices"))
}

func TestMatchGradsToParams(t *testing.T) {
	def := opdef.New("Adagrad", "",
		[]string{"W", "moment", "W_grad", "lr"},
		[]string{"W_grad", "b_grad", "moment", "_grad"})
	require.Equal(t, map[string]string{
		"W_grad": "W",
		"b_grad": "b",
	}, MatchGradsToParams(def))

	require.Empty(t, MatchGradsToParams(opdef.New("Momentum", "", nil, []string{"param", "mom"})))
}
