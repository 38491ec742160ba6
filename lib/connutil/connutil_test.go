// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package connutil

import (
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gotmc/freqsynth"
	"github.com/gotmc/freqsynth/lib/config"
)

func parse(t *testing.T, args ...string) *Conn {
	t.Helper()
	var c Conn
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return &c
}

func TestFlagDefaults(t *testing.T) {
	c := parse(t)
	require.Equal(t, -1, c.GpibPAD)
	require.Equal(t, "", c.Address())
	require.False(t, c.Sim)
}

func TestAddressFromFlags(t *testing.T) {
	require.Equal(t, "GPIB0::19::INSTR", parse(t, "-pad", "19").Address())
	require.Equal(t, "GPIB0::4::101::INSTR", parse(t, "-pad", "4", "-sad", "101").Address())
}

func TestSetupListsResources(t *testing.T) {
	c := parse(t, "-pad", "7", "-sim", "-port", "/dev/ttyUSB3", "-delay", "50ms")
	cfg := config.DefaultConfig()
	m, err := c.Setup(cfg, zerolog.Nop())
	require.NoError(t, err)

	names, err := m.ListResources()
	require.NoError(t, err)
	require.Equal(t, []string{"GPIB0::7::INSTR", "GPIB0::19::INSTR", SimAddress}, names)

	s := freqsynth.New(m)
	sess, err := s.Connect(SimAddress)
	require.NoError(t, err)
	require.Contains(t, sess.ID, "E8257D")
	require.NoError(t, s.Disconnect())
}

func TestSetupRejectsBadPAD(t *testing.T) {
	c := parse(t, "-pad", "40")
	_, err := c.Setup(config.DefaultConfig(), zerolog.Nop())
	require.ErrorContains(t, err, "-pad/-sad")
}

func TestLoadConfigMissingFile(t *testing.T) {
	c := parse(t, "-config", filepath.Join(t.TempDir(), "none.yaml"))
	cfg, err := c.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.GPIB[0].ReadTimeout.Duration)
}
