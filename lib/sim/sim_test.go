// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package sim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotmc/freqsynth"
	"github.com/gotmc/freqsynth/lib/sim"
)

const addr = "GPIB0::19::INSTR"

func TestSynthCommands(t *testing.T) {
	m := sim.NewManager(addr)
	inst, err := m.Open(addr)
	require.NoError(t, err)

	require.NoError(t, inst.Command(":FREQ:FIXED %s; *WAI", "2.5e9"))
	resp, err := inst.Query(":FREQ:FIXED?")
	require.NoError(t, err)
	require.Equal(t, "2.50000000000E+09", resp)

	require.NoError(t, inst.Command(":POW -7.5; *WAI"))
	resp, err = inst.Query(":POW?")
	require.NoError(t, err)
	require.Equal(t, "-7.50000000000E+00", resp)

	require.NoError(t, inst.Command(":OUTPUT ON; *WAI"))
	resp, err = inst.Query(":OUTPUT?")
	require.NoError(t, err)
	require.Equal(t, "1", resp)

	require.Error(t, inst.Command(":BOGUS 1"))
	_, err = inst.Query(":BOGUS?")
	require.Error(t, err)
}

func TestSynthClampsToLimits(t *testing.T) {
	m := sim.NewManager(addr)
	inst, err := m.Open(addr)
	require.NoError(t, err)
	require.NoError(t, inst.Command(":FREQ:FIXED 1e12; *WAI"))
	require.NoError(t, inst.Command(":POW 99; *WAI"))
	s := m.Synth(addr)
	require.Equal(t, sim.MaxFrequency, s.Frequency())
	require.Equal(t, sim.MaxPower, s.Power())
}

func TestSynthSessionLifecycle(t *testing.T) {
	m := sim.NewManager(addr)
	inst, err := m.Open(addr)
	require.NoError(t, err)
	_, err = m.Open(addr)
	require.Error(t, err)

	require.NoError(t, inst.Close())
	require.ErrorIs(t, inst.Command("*WAI"), sim.ErrClosed)
	_, err = inst.Query("*IDN?")
	require.ErrorIs(t, err, sim.ErrClosed)
	require.ErrorIs(t, inst.Close(), sim.ErrClosed)

	_, err = m.Open("GPIB0::1::INSTR")
	require.Error(t, err)
}

func TestManagerListsSorted(t *testing.T) {
	m := sim.NewManager("SIM0::20::INSTR", "SIM0::3::INSTR")
	addrs, err := m.ListResources()
	require.NoError(t, err)
	require.Equal(t, []string{"SIM0::20::INSTR", "SIM0::3::INSTR"}, addrs)
}

func TestControllerAgainstSimulator(t *testing.T) {
	m := sim.NewManager(addr)
	s := freqsynth.New(m)
	require.Equal(t, []string{addr}, s.Discover())

	sess, err := s.Connect(addr)
	require.NoError(t, err)
	require.Contains(t, sess.ID, "E8257D")
	require.Equal(t, freqsynth.State{Frequency: 1e9, Power: -20}, s.State())

	v, err := s.SetFrequency("2.5e9")
	require.NoError(t, err)
	require.Equal(t, 2.5e9, v)

	v, err = s.AdjustFrequencyByStep(-3, 1e4)
	require.NoError(t, err)
	require.Equal(t, 2.49997e9, v)

	v, err = s.SetPower("-10")
	require.NoError(t, err)
	require.Equal(t, -10.0, v)

	require.NoError(t, s.SetOutputEnabled(true))
	synth := m.Synth(addr)
	require.True(t, synth.Output())

	require.NoError(t, s.Disconnect())
	require.False(t, synth.Output())
	require.False(t, synth.IsOpen())

	h := synth.History()
	require.Equal(t, ":OUTPUT OFF; *WAI", h[len(h)-1])
}
