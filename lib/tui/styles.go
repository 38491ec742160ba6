// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("12")
	mutedColor  = lipgloss.Color("8")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	labelStyle  = lipgloss.NewStyle().Width(16)
	dimStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	focusStyle  = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	fieldStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true).
			BorderForeground(mutedColor).
			Padding(0, 1)
	// Pending edits are shown in reverse video.
	dirtyStyle = fieldStyle.Reverse(true)

	consoleStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)
