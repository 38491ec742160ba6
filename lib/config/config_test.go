// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gotmc/freqsynth/lib/visa"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
  file: /tmp/fs.log
gpib:
  - board: 0
    port: /dev/ttyUSB0
    ar488: true
    write_delay: 100ms
    read_timeout: 1500ms
instruments:
  - GPIB0::19::INSTR
  - TCPIP0::192.168.1.20::5025::SOCKET
scan_serial: true
step:
  default_index: 6
telemetry:
  listen: ":9100"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.True(t, cfg.ScanSerial)
	require.Equal(t, 6, cfg.Step.DefaultIndex)
	require.Equal(t, ":9100", cfg.Telemetry.Listen)
	require.Len(t, cfg.Instruments, 2)

	require.Equal(t, []visa.Board{{
		Index:       0,
		Port:        "/dev/ttyUSB0",
		AR488:       true,
		WriteDelay:  100 * time.Millisecond,
		ReadTimeout: 1500 * time.Millisecond,
	}}, cfg.Boards())

	logFile, err := cfg.LogFile()
	require.NoError(t, err)
	require.Equal(t, "/tmp/fs.log", logFile)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, "scan_serial: true\n"))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, DefaultConfig().Step, cfg.Step)
	require.Equal(t, []string{"GPIB0::19::INSTR"}, cfg.Instruments)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"syntax":   "gpib: [",
		"duration": "gpib:\n  - board: 0\n    read_timeout: soon\n",
		"timeout":  "gpib:\n  - board: 0\n    read_timeout: 10s\n",
		"twice":    "gpib:\n  - board: 1\n  - board: 1\n",
		"resource": "instruments: [USB0::1::INSTR]\n",
		"step":     "step: {default_index: 11}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.GPIB[0].WriteDelay = Duration{50 * time.Millisecond}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
