// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package tui is the terminal front end of the synthesizer controller.
package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gotmc/freqsynth"
	"github.com/gotmc/freqsynth/lib/step"
)

const (
	Title       = "E8257D Freq. Controller"
	Placeholder = "Select GPIB Instrument"
	freqHint    = "select GPIB # and input/scroll to desired freq"
)

// Synth is the controller the UI drives.
type Synth interface {
	Discover() []string
	Connect(address string) (freqsynth.Session, error)
	Disconnect() error
	SetFrequency(text string) (float64, error)
	SetPower(text string) (float64, error)
	AdjustFrequencyByStep(offset int, magnitude float64) (float64, error)
	SetOutputEnabled(enabled bool) error
	State() freqsynth.State
}

// Console provides recent instrument traffic, rendered one entry per line.
type Console interface {
	Lines(n int) []string
}

type focus int

const (
	focusSelector focus = iota
	focusFrequency
	focusPower
	focusOutput
	focusSlider
	numFocus
)

// Messages carrying the results of instrument I/O back to Update.
type (
	discoveredMsg []string

	connectedMsg struct {
		session freqsynth.Session
		state   freqsynth.State
		err     error
	}

	disconnectedMsg struct{ err error }

	valueMsg struct {
		seq   int
		which focus
		value float64
		err   error
	}

	outputMsg struct {
		enabled bool
		err     error
	}
)

// Model is the bubbletea model for the controller window.
type Model struct {
	synth   Synth
	console Console

	addrs     []string // addrs[0] is the placeholder
	sel       int
	session   freqsynth.Session
	connected bool
	state     freqsynth.State

	freq   field
	power  field
	output bool
	slider *step.Slider

	// issued numbers value requests; appliedFreq and appliedPower hold
	// the newest one shown for each quantity.
	issued       int
	appliedFreq  int
	appliedPower int

	focus     focus
	status    string
	statusErr bool
	quitting  bool
	width     int
}

// Option configures the Model.
type Option func(*Model)

// WithConsole shows recent instrument traffic below the controls.
func WithConsole(c Console) Option { return func(m *Model) { m.console = c } }

// WithStepIndex selects the initial step size.
func WithStepIndex(i int) Option { return func(m *Model) { m.slider = step.New(i) } }

// WithAddress preselects address in the instrument list.
func WithAddress(address string) Option {
	return func(m *Model) {
		for i, a := range m.addrs {
			if a == address {
				m.sel = i
				return
			}
		}
	}
}

// NewModel builds the UI and discovers the available instruments.
func NewModel(s Synth, opts ...Option) Model {
	m := Model{
		synth:  s,
		freq:   newField("Frequency", "Hz", freqHint),
		power:  newField("Power", "dBm", "dBm"),
		slider: step.New(step.DefaultIndex),
	}
	m.setAddresses(s.Discover())
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m *Model) setAddresses(addrs []string) {
	prev := m.selected()
	m.addrs = append([]string{Placeholder}, addrs...)
	m.sel = 0
	for i, a := range m.addrs {
		if a == prev && i > 0 {
			m.sel = i
		}
	}
}

// selected returns the chosen address, or "" for the placeholder.
func (m Model) selected() string {
	if m.sel <= 0 || m.sel >= len(m.addrs) {
		return ""
	}
	return m.addrs[m.sel]
}

func (m Model) Init() tea.Cmd { return nil }

func discoverCmd(s Synth) tea.Cmd {
	return func() tea.Msg { return discoveredMsg(s.Discover()) }
}

func connectCmd(s Synth, address string) tea.Cmd {
	return func() tea.Msg {
		sess, err := s.Connect(address)
		return connectedMsg{session: sess, state: s.State(), err: err}
	}
}

func disconnectCmd(s Synth) tea.Cmd {
	return func() tea.Msg { return disconnectedMsg{err: s.Disconnect()} }
}

func setCmd(s Synth, seq int, which focus, text string) tea.Cmd {
	return func() tea.Msg {
		var v float64
		var err error
		if which == focusPower {
			v, err = s.SetPower(text)
		} else {
			v, err = s.SetFrequency(text)
		}
		return valueMsg{seq: seq, which: which, value: v, err: err}
	}
}

func stepCmd(s Synth, seq int, offset int, magnitude float64) tea.Cmd {
	return func() tea.Msg {
		v, err := s.AdjustFrequencyByStep(offset, magnitude)
		return valueMsg{seq: seq, which: focusSlider, value: v, err: err}
	}
}

func outputCmd(s Synth, enabled bool) tea.Cmd {
	return func() tea.Msg { return outputMsg{enabled: enabled, err: s.SetOutputEnabled(enabled)} }
}

func (m *Model) setStatus(format string, a ...any) {
	m.status = fmt.Sprintf(format, a...)
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.statusErr = true
	switch {
	case errors.Is(err, freqsynth.ErrNotConnected):
		m.status = "not connected: " + Placeholder
	default:
		m.status = err.Error()
	}
}

// clearInstrument forgets everything shown for the last instrument.
func (m *Model) clearInstrument() {
	m.connected = false
	m.session = freqsynth.Session{}
	m.state = freqsynth.State{}
	m.output = false
	m.freq.Clear()
	m.power.Clear()
}

func (m *Model) setFocus(f focus) {
	m.focus = (f + numFocus) % numFocus
	m.freq.Blur()
	m.power.Blur()
	switch m.focus {
	case focusFrequency:
		m.freq.Focus()
	case focusPower:
		m.power.Focus()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case discoveredMsg:
		m.setAddresses(msg)
		m.setStatus("found %d instrument(s)", len(msg))

	case connectedMsg:
		if msg.err != nil {
			// A failed connect has already released the previous instrument.
			m.clearInstrument()
			m.setError(msg.err)
			return m, nil
		}
		m.connected = true
		m.session = msg.session
		m.state = msg.state
		m.freq.Confirm(msg.state.Frequency)
		m.power.Confirm(msg.state.Power)
		// Reflect the device; this is not a toggle request.
		m.output = msg.state.OutputEnabled
		m.setStatus("connected to %s", msg.session.Address)

	case disconnectedMsg:
		m.clearInstrument()
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("disconnected")
		}

	case valueMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		// Results can arrive out of order; never show an older one.
		applied := &m.appliedFreq
		if msg.which == focusPower {
			applied = &m.appliedPower
		}
		if msg.seq <= *applied {
			return m, nil
		}
		*applied = msg.seq
		if msg.which == focusPower {
			m.state.Power = msg.value
			m.power.Confirm(msg.value)
			m.setStatus("power %s dBm", formatValue(msg.value))
		} else {
			m.state.Frequency = msg.value
			m.freq.Confirm(msg.value)
			m.setStatus("frequency %s Hz", formatValue(msg.value))
		}

	case outputMsg:
		if msg.err != nil {
			m.output = !msg.enabled
			m.setError(msg.err)
			return m, nil
		}
		m.setStatus("output %s", onOff(msg.enabled))
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		m.setFocus(m.focus + 1)
		return m, nil
	case "shift+tab":
		m.setFocus(m.focus - 1)
		return m, nil
	}

	switch m.focus {
	case focusSelector:
		return m.handleSelector(msg)
	case focusFrequency, focusPower:
		return m.handleField(msg)
	case focusOutput:
		switch msg.String() {
		case " ", "enter":
			m.output = !m.output
			return m, outputCmd(m.synth, m.output)
		}
	case focusSlider:
		return m.handleSlider(msg)
	}
	return m, nil
}

func (m Model) handleSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		m.sel = (m.sel - 1 + len(m.addrs)) % len(m.addrs)
	case "right", "l":
		m.sel = (m.sel + 1) % len(m.addrs)
	case "enter":
		addr := m.selected()
		if addr == "" {
			m.statusErr = true
			m.status = Placeholder
			return m, nil
		}
		m.setStatus("connecting to %s...", addr)
		return m, connectCmd(m.synth, addr)
	case "r":
		return m, discoverCmd(m.synth)
	case "d":
		return m, disconnectCmd(m.synth)
	}
	return m, nil
}

func (m Model) handleField(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.freq
	if m.focus == focusPower {
		f = &m.power
	}
	switch msg.String() {
	case "enter":
		m.issued++
		return m, setCmd(m.synth, m.issued, m.focus, f.Value())
	case "esc":
		f.Revert()
		return m, nil
	}
	var cmd tea.Cmd
	*f, cmd = f.Update(msg)
	return m, cmd
}

func (m Model) handleSlider(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var delta int
	switch msg.String() {
	case "left", "h":
		delta = -1
	case "right", "l":
		delta = 1
	case "shift+left", "H":
		delta = -10
	case "shift+right", "L":
		delta = 10
	case "up", "k":
		m.slider.Coarser()
		return m, nil
	case "down", "j":
		m.slider.Finer()
		return m, nil
	default:
		return m, nil
	}
	m.slider.Move(delta)
	offset, magnitude := m.slider.Offset(), m.slider.Magnitude()
	// The slider is a momentary nudge: it springs back once the step is sent.
	m.slider.Reset()
	m.issued++
	return m, stepCmd(m.synth, m.issued, offset, magnitude)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (m Model) label(f focus, text string) string {
	if m.focus == f {
		return labelStyle.Inherit(focusStyle).Render("> " + text)
	}
	return labelStyle.Render("  " + text)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	title := Title
	if m.connected {
		title += "  " + dimStyle.Render(m.session.ID)
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	b.WriteString(m.label(focusSelector, "Instrument") + "< " + m.addrs[m.sel] + " >")
	if m.connected {
		b.WriteString("  " + valueStyle.Render("connected "+m.session.Address))
	}
	b.WriteString("\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		m.label(focusFrequency, "Frequency [Hz]"), m.freq.View(m.focus == focusFrequency),
		"  ", m.confirmed(m.state.Frequency, "Hz")) + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		m.label(focusPower, "Power [dBm]"), m.power.View(m.focus == focusPower),
		"  ", m.confirmed(m.state.Power, "dBm")) + "\n")

	box := "[ ]"
	if m.output {
		box = "[x]"
	}
	b.WriteString(m.label(focusOutput, "RF output") + box + "\n")
	b.WriteString(m.label(focusSlider, "Step") + sliderView(m.slider) + "  " + m.slider.Label() + "\n\n")

	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status) + "\n")
	}
	if m.console != nil {
		if lines := m.console.Lines(8); len(lines) > 0 {
			b.WriteString(consoleStyle.Render(strings.Join(lines, "\n")) + "\n")
		}
	}
	b.WriteString(dimStyle.Render("tab:focus  ←/→:select/nudge  enter:connect/commit  esc:revert  " +
		"↑/↓:step size  r:rescan  d:disconnect  ctrl+c:quit"))
	return b.String()
}

func (m Model) confirmed(v float64, unit string) string {
	if !m.connected {
		return dimStyle.Render("--")
	}
	return valueStyle.Render(formatValue(v) + " " + unit)
}

func sliderView(s *step.Slider) string {
	var b strings.Builder
	for i := step.MinOffset; i <= step.MaxOffset; i++ {
		switch {
		case i == s.Offset():
			b.WriteRune('●')
		case i == 0:
			b.WriteRune('|')
		default:
			b.WriteRune('·')
		}
	}
	return fmt.Sprintf("%+d %s %+d", step.MinOffset, b.String(), step.MaxOffset)
}

// Quitting reports whether the user asked to quit.
func (m Model) Quitting() bool { return m.quitting }
