// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestFieldDirtyTracking(t *testing.T) {
	f := newField("Power", "dBm", "dBm")
	require.False(t, f.Dirty())

	f.Confirm(-10)
	require.Equal(t, "-10", f.Value())
	require.False(t, f.Dirty())

	f.Focus()
	f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(".5")})
	require.Equal(t, "-10.5", f.Value())
	require.True(t, f.Dirty())

	f.Revert()
	require.False(t, f.Dirty())

	f, _ = f.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("0")})
	require.False(t, f.Dirty(), "typing the confirmed text back is not an edit")

	f.Clear()
	require.Equal(t, "", f.Value())
	require.False(t, f.Dirty())
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "2500000000", formatValue(2.5e9))
	require.Equal(t, "-135", formatValue(-135))
	require.Equal(t, "0.125", formatValue(0.125))
}
