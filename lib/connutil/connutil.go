// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package connutil holds the command line flags shared by the freqsynth
// programs and turns them, together with the config file, into a resource
// manager.
package connutil

import (
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gotmc/freqsynth/lib/config"
	"github.com/gotmc/freqsynth/lib/sim"
	"github.com/gotmc/freqsynth/lib/visa"
)

// SimAddress is the simulated E8257D served with -sim.
const SimAddress = "SIM0::19::INSTR"

// Conn holds the connection flags shared by the commands.
type Conn struct {
	ConfigPath string
	SerialPort string
	GpibPAD    int
	GpibSAD    int
	Delay      time.Duration
	Diag       bool
	Sim        bool
}

// AddFlags is to be called before [flag.Parse].
func (c *Conn) AddFlags(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	if c.ConfigPath == "" {
		if p, err := config.Path(); err == nil {
			c.ConfigPath = p
		}
	}
	if c.GpibPAD == 0 {
		c.GpibPAD = -1
	}
	if c.GpibSAD == 0 {
		c.GpibSAD = visa.NoSecondary
	}

	fs.StringVar(&c.ConfigPath, "config", c.ConfigPath, "path of the YAML config file")
	// Get Virtual COM Port (VCP) serial port for Prologix.
	fs.StringVar(&c.SerialPort, "port", c.SerialPort,
		"Serial port for Prologix VCP GPIB controller (default: auto-detect)")
	fs.IntVar(&c.GpibPAD, "pad", c.GpibPAD, "GPIB primary address for the device (-1: only configured instruments)")
	fs.IntVar(&c.GpibSAD, "sad", c.GpibSAD, "GPIB secondary address for the device (-1: none)")
	fs.DurationVar(&c.Delay, "delay", c.Delay, "delay between adapter writes")
	fs.BoolVar(&c.Diag, "diag", c.Diag, "print adapter diagnostics and exit")
	fs.BoolVar(&c.Sim, "sim", c.Sim, "serve a simulated E8257D at "+SimAddress)
}

// LoadConfig loads the config file named by -config.
func (c *Conn) LoadConfig() (*config.Config, error) {
	return config.Load(c.ConfigPath)
}

// Address returns the GPIB resource selected with -pad and -sad, or "" when
// -pad was not given.
func (c *Conn) Address() string {
	if c.GpibPAD < 0 {
		return ""
	}
	r := visa.Resource{Kind: visa.GPIB, Primary: c.GpibPAD, Secondary: c.GpibSAD}
	return r.String()
}

// Setup is to be called after [flag.Parse]. Flags override the matching
// settings of board 0 in cfg.
func (c *Conn) Setup(cfg *config.Config, logger zerolog.Logger) (*visa.Manager, error) {
	boards := cfg.Boards()
	idx := -1
	for i, b := range boards {
		if b.Index == 0 {
			idx = i
		}
	}
	if idx < 0 && (c.SerialPort != "" || c.Delay > 0) {
		boards = append(boards, visa.Board{Index: 0})
		idx = len(boards) - 1
	}
	if c.SerialPort != "" {
		boards[idx].Port = c.SerialPort
	}
	if c.Delay > 0 {
		boards[idx].WriteDelay = c.Delay
	}

	resources := append([]string(nil), cfg.Instruments...)
	if addr := c.Address(); addr != "" {
		if _, err := visa.Parse(addr); err != nil {
			return nil, fmt.Errorf("-pad/-sad: %w", err)
		}
		resources = append([]string{addr}, resources...)
	}

	opts := []visa.Option{
		visa.WithLogger(logger),
		visa.WithResources(resources...),
		visa.WithSerialScan(cfg.ScanSerial),
	}
	for _, b := range boards {
		if b.Port != "" {
			logger.Info().Int("board", b.Index).Str("port", b.Port).Msg("GPIB adapter configured")
		}
		opts = append(opts, visa.WithBoard(b))
	}
	if c.Sim {
		opts = append(opts, visa.WithSimulator(sim.NewManager(SimAddress)))
	}
	return visa.NewManager(opts...)
}
