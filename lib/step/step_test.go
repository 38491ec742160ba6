// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package step

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLadder(t *testing.T) {
	m := Magnitudes()
	require.Len(t, m, 11)
	require.Equal(t, 1.0, m[0])
	require.Equal(t, 1e10, m[10])
	for i := 1; i < len(m); i++ {
		require.Equal(t, m[i-1]*10, m[i])
	}
	require.Equal(t, "1e+00 Hz", Label(0))
	require.Equal(t, "1e+04 Hz", Label(4))
	require.Equal(t, "1e+10 Hz", Label(10))
	require.Empty(t, Label(11))

	m[0] = 42
	require.Equal(t, 1.0, Magnitudes()[0])
}

func TestNewDefaults(t *testing.T) {
	s := New(DefaultIndex)
	require.Equal(t, 0, s.Offset())
	require.Equal(t, 1e4, s.Magnitude())
	require.Equal(t, "1e+04 Hz", s.Label())

	require.Equal(t, DefaultIndex, New(-1).Index())
	require.Equal(t, DefaultIndex, New(11).Index())
	require.Equal(t, 7, New(7).Index())
}

func TestSetClamps(t *testing.T) {
	s := New(DefaultIndex)
	require.Equal(t, 3, s.Set(3))
	require.Equal(t, 30000.0, s.Delta())
	require.Equal(t, MaxOffset, s.Set(25))
	require.Equal(t, MinOffset, s.Set(-11))
	require.Equal(t, MinOffset, s.Move(-1))
	require.Equal(t, MinOffset+1, s.Move(1))
	s.Reset()
	require.Equal(t, 0, s.Offset())
	require.Equal(t, 0.0, s.Delta())
}

func TestSelectResetsOffset(t *testing.T) {
	s := New(DefaultIndex)
	s.Set(5)
	require.NoError(t, s.Select(2))
	require.Equal(t, 0, s.Offset())
	require.Equal(t, 100.0, s.Magnitude())

	s.Set(-4)
	require.Error(t, s.Select(11))
	require.Equal(t, -4, s.Offset())
	require.Equal(t, 2, s.Index())
}

func TestCoarserFiner(t *testing.T) {
	s := New(9)
	s.Set(2)
	s.Coarser()
	require.Equal(t, 10, s.Index())
	require.Equal(t, 0, s.Offset())
	s.Coarser()
	require.Equal(t, 10, s.Index())

	s = New(1)
	s.Set(-2)
	s.Finer()
	require.Equal(t, 0, s.Index())
	require.Equal(t, 0, s.Offset())
	s.Finer()
	require.Equal(t, 0, s.Index())
}
