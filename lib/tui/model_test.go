// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/gotmc/freqsynth"
	"github.com/gotmc/freqsynth/lib/sim"
	"github.com/gotmc/freqsynth/lib/step"
)

const addr = "SIM0::19::INSTR"

func newTestModel(t *testing.T, opts ...Option) (Model, *sim.Manager) {
	t.Helper()
	mgr := sim.NewManager(addr)
	return NewModel(freqsynth.New(mgr), opts...), mgr
}

// send delivers msg and then runs the resulting command chain to completion,
// as the bubbletea runtime would.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	for msg != nil {
		if _, ok := msg.(tea.QuitMsg); ok {
			return m
		}
		next, cmd := m.Update(msg)
		m = next.(Model)
		if cmd == nil {
			return m
		}
		msg = cmd()
	}
	return m
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	return send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func connect(t *testing.T, m Model) Model {
	t.Helper()
	m = send(t, m, key(tea.KeyRight))
	m = send(t, m, key(tea.KeyEnter))
	require.True(t, m.connected, m.status)
	return m
}

func TestNewModelStartsWithPlaceholder(t *testing.T) {
	m, _ := newTestModel(t)
	require.Equal(t, []string{Placeholder, addr}, m.addrs)
	require.Equal(t, "", m.selected())
	require.False(t, m.connected)
	require.Contains(t, m.View(), Title)
	require.Contains(t, m.View(), Placeholder)

	m = send(t, m, key(tea.KeyEnter))
	require.False(t, m.connected)
	require.True(t, m.statusErr)
}

func TestConnectFillsFields(t *testing.T) {
	m, mgr := newTestModel(t)
	inst, err := mgr.Open(addr)
	require.NoError(t, err)
	require.NoError(t, inst.Command(":OUTPUT ON"))
	require.NoError(t, inst.Close())

	m = connect(t, m)
	require.Contains(t, m.session.ID, "E8257D")
	require.Equal(t, "1000000000", m.freq.Value())
	require.Equal(t, "-20", m.power.Value())
	require.False(t, m.freq.Dirty())
	require.True(t, m.output)
	require.Contains(t, m.View(), m.session.ID)
}

func TestFieldCommit(t *testing.T) {
	m, mgr := newTestModel(t)
	m = connect(t, m)

	m = send(t, m, key(tea.KeyTab))
	require.Equal(t, focusFrequency, m.focus)
	m = send(t, m, key(tea.KeyCtrlU))
	m = typeText(t, m, "2.5e9")
	require.True(t, m.freq.Dirty())

	m = send(t, m, key(tea.KeyEnter))
	require.False(t, m.freq.Dirty())
	require.Equal(t, "2500000000", m.freq.Value())
	require.Equal(t, 2.5e9, m.state.Frequency)
	require.Equal(t, 2.5e9, mgr.Synth(addr).Frequency())
}

func TestInvalidInputKeepsFieldDirty(t *testing.T) {
	m, mgr := newTestModel(t)
	m = connect(t, m)
	m = send(t, m, key(tea.KeyTab))
	m = send(t, m, key(tea.KeyTab))
	require.Equal(t, focusPower, m.focus)

	m = send(t, m, key(tea.KeyCtrlU))
	m = typeText(t, m, "abc")
	m = send(t, m, key(tea.KeyEnter))
	require.True(t, m.statusErr)
	require.True(t, m.power.Dirty())
	require.Equal(t, -20.0, mgr.Synth(addr).Power())

	m = send(t, m, key(tea.KeyEsc))
	require.False(t, m.power.Dirty())
	require.Equal(t, "-20", m.power.Value())
}

func TestCommitWhileDisconnected(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(t, m, key(tea.KeyTab))
	m = typeText(t, m, "1e9")
	m = send(t, m, key(tea.KeyEnter))
	require.True(t, m.statusErr)
	require.Contains(t, m.status, "not connected")
	require.True(t, m.freq.Dirty())
}

func TestOutputToggle(t *testing.T) {
	m, mgr := newTestModel(t)
	m = connect(t, m)
	m = send(t, m, key(tea.KeyShiftTab))
	m = send(t, m, key(tea.KeyShiftTab))
	require.Equal(t, focusOutput, m.focus)

	m = send(t, m, key(tea.KeySpace))
	require.True(t, m.output)
	require.True(t, mgr.Synth(addr).Output())

	m = send(t, m, key(tea.KeyEnter))
	require.False(t, m.output)
	require.False(t, mgr.Synth(addr).Output())
}

func TestSliderNudges(t *testing.T) {
	m, mgr := newTestModel(t, WithStepIndex(6))
	m = connect(t, m)
	m = send(t, m, key(tea.KeyShiftTab))
	require.Equal(t, focusSlider, m.focus)

	m = send(t, m, key(tea.KeyRight))
	require.Equal(t, 0, m.slider.Offset())
	require.Equal(t, 1.001e9, mgr.Synth(addr).Frequency())

	m = send(t, m, key(tea.KeyShiftLeft))
	require.Equal(t, 0.991e9, mgr.Synth(addr).Frequency())
	require.Equal(t, "991000000", m.freq.Value())

	history := len(mgr.Synth(addr).History())
	m = send(t, m, key(tea.KeyUp))
	require.Equal(t, 7, m.slider.Index())
	m = send(t, m, key(tea.KeyDown))
	m = send(t, m, key(tea.KeyDown))
	require.Equal(t, 5, m.slider.Index())
	require.Len(t, mgr.Synth(addr).History(), history, "changing the step size talks to nobody")
	require.Contains(t, m.View(), step.Label(5))
}

func TestDisconnectAndRediscover(t *testing.T) {
	m, mgr := newTestModel(t)
	m = connect(t, m)
	m = typeText(t, m, "d")
	require.False(t, m.connected)
	require.False(t, mgr.Synth(addr).IsOpen())
	require.False(t, mgr.Synth(addr).Output())
	require.Equal(t, "", m.freq.Value())

	m = typeText(t, m, "r")
	require.Equal(t, addr, m.selected(), "selection survives rediscovery")
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)
	next, cmd := m.Update(key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	require.True(t, next.(Model).Quitting())
	require.Empty(t, next.View())
}

func TestWithAddressPreselects(t *testing.T) {
	m, _ := newTestModel(t, WithAddress(addr))
	require.Equal(t, addr, m.selected())
	m = send(t, m, key(tea.KeyEnter))
	require.True(t, m.connected)
}

func TestFailedConnectClearsFields(t *testing.T) {
	const busy = "SIM0::20::INSTR"
	mgr := sim.NewManager(addr, busy)
	// Someone else holds the second instrument.
	_, err := mgr.Open(busy)
	require.NoError(t, err)
	m := NewModel(freqsynth.New(mgr))

	m = connect(t, m)
	m = send(t, m, key(tea.KeyShiftTab))
	m = send(t, m, key(tea.KeyShiftTab))
	m = send(t, m, key(tea.KeySpace))
	require.True(t, m.output)
	require.True(t, mgr.Synth(addr).Output())

	m = send(t, m, key(tea.KeyTab))
	m = send(t, m, key(tea.KeyTab))
	require.Equal(t, focusSelector, m.focus)
	m = send(t, m, key(tea.KeyRight))
	require.Equal(t, busy, m.selected())
	m = send(t, m, key(tea.KeyEnter))

	require.False(t, m.connected)
	require.True(t, m.statusErr)
	require.False(t, m.output)
	require.Equal(t, "", m.freq.Value())
	require.False(t, m.freq.Dirty())
	require.Equal(t, "", m.power.Value())
	require.NotContains(t, m.View(), "connected "+addr)
	require.False(t, mgr.Synth(addr).IsOpen())
	require.False(t, mgr.Synth(addr).Output())
}

func TestOlderValueResultIsIgnored(t *testing.T) {
	m, _ := newTestModel(t)
	m = connect(t, m)

	m = send(t, m, valueMsg{seq: 2, which: focusFrequency, value: 2e9})
	m = send(t, m, valueMsg{seq: 1, which: focusSlider, value: 1.001e9})
	require.Equal(t, "2000000000", m.freq.Value())
	require.Equal(t, 2e9, m.state.Frequency)

	// Power is tracked on its own, so an earlier power result still lands.
	m = send(t, m, valueMsg{seq: 1, which: focusPower, value: -5})
	require.Equal(t, "-5", m.power.Value())
	require.Equal(t, -5.0, m.state.Power)
}

func TestValueRequestsAreNumbered(t *testing.T) {
	m, _ := newTestModel(t)
	m = connect(t, m)
	m = send(t, m, key(tea.KeyTab))
	m = send(t, m, key(tea.KeyCtrlU))
	m = typeText(t, m, "3e9")

	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(Model)
	require.NotNil(t, cmd)
	msg, ok := cmd().(valueMsg)
	require.True(t, ok)
	require.Equal(t, 1, msg.seq)
	require.Equal(t, 1, m.issued)
}
