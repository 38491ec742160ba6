// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// field is an editable number. Text that differs from the last confirmed
// value is a pending edit and marks the field dirty.
type field struct {
	label     string
	unit      string
	input     textinput.Model
	confirmed string
}

func newField(label, unit, placeholder string) field {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.CharLimit = 32
	ti.Width = 24
	ti.Cursor.SetMode(cursor.CursorStatic)
	return field{label: label, unit: unit, input: ti}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Dirty reports whether the text holds a pending edit.
func (f field) Dirty() bool { return f.input.Value() != f.confirmed }

func (f field) Value() string { return f.input.Value() }

// Confirm shows v as the confirmed value, discarding any pending edit.
func (f *field) Confirm(v float64) {
	f.confirmed = formatValue(v)
	f.input.SetValue(f.confirmed)
	f.input.CursorEnd()
}

// Clear forgets the confirmed value.
func (f *field) Clear() {
	f.confirmed = ""
	f.input.SetValue("")
}

// Revert drops the pending edit.
func (f *field) Revert() {
	f.input.SetValue(f.confirmed)
	f.input.CursorEnd()
}

func (f *field) Focus() { f.input.Focus() }
func (f *field) Blur()  { f.input.Blur() }

func (f field) Update(msg tea.Msg) (field, tea.Cmd) {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

func (f field) View(focused bool) string {
	style := fieldStyle
	if f.Dirty() {
		style = dirtyStyle
	}
	if focused {
		style = style.BorderForeground(accentColor)
	}
	return style.Render(f.input.View())
}
