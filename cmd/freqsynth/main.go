// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Command freqsynth is a terminal front panel for an E8257D signal generator.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/gotmc/freqsynth"
	"github.com/gotmc/freqsynth/lib/cmdlog"
	"github.com/gotmc/freqsynth/lib/config"
	"github.com/gotmc/freqsynth/lib/connutil"
	"github.com/gotmc/freqsynth/lib/logging"
	"github.com/gotmc/freqsynth/lib/telemetry"
	"github.com/gotmc/freqsynth/lib/tui"
	"github.com/gotmc/freqsynth/lib/visa"
)

func main() {
	var conn connutil.Conn
	conn.AddFlags(nil)
	writeConfig := flag.Bool("write-config", false, "write the effective config to the -config path and exit")
	flag.Parse()

	if err := run(&conn, *writeConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(conn *connutil.Conn, writeConfig bool) error {
	cfg, err := conn.LoadConfig()
	if err != nil {
		return err
	}
	if writeConfig {
		if err := cfg.Save(conn.ConfigPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", conn.ConfigPath)
		return nil
	}

	logFile, err := cfg.LogFile()
	if err != nil {
		return err
	}
	logger, cleanup, err := logging.Setup(cfg.Logging, logFile)
	if err != nil {
		return err
	}
	defer cleanup()
	logger.Info().Str("config", conn.ConfigPath).Msg("starting")

	rm, err := conn.Setup(cfg, logger)
	if err != nil {
		return err
	}
	if conn.Diag {
		return diagnose(rm, conn, cfg)
	}

	var collector telemetry.Collector = telemetry.Noop()
	if cfg.Telemetry.Listen != "" {
		pc, err := telemetry.NewPrometheusCollector(nil)
		if err != nil {
			return err
		}
		srv, err := telemetry.Serve(cfg.Telemetry.Listen, nil, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
		collector = pc
	}

	rec := cmdlog.New(rm, 200, logger)
	synth := freqsynth.New(rec, freqsynth.WithLogger(logger), freqsynth.WithCollector(collector))
	defer disconnect(synth, logger)

	opts := []tui.Option{tui.WithConsole(rec), tui.WithStepIndex(cfg.Step.DefaultIndex)}
	switch {
	case conn.Address() != "":
		opts = append(opts, tui.WithAddress(conn.Address()))
	case conn.Sim:
		opts = append(opts, tui.WithAddress(connutil.SimAddress))
	}

	p := tea.NewProgram(tui.NewModel(synth, opts...), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// disconnect leaves the instrument with its output off.
func disconnect(s *freqsynth.Synthesizer, logger zerolog.Logger) {
	if err := s.Disconnect(); err != nil {
		logger.Error().Err(err).Msg("disconnect on exit")
		fmt.Fprintf(os.Stderr, "disconnect: %v\n", err)
	}
}

func diagnose(rm *visa.Manager, conn *connutil.Conn, cfg *config.Config) error {
	addr := conn.Address()
	for _, name := range cfg.Instruments {
		if addr != "" {
			break
		}
		if r, err := visa.Parse(name); err == nil && r.Kind == visa.GPIB {
			addr = r.String()
		}
	}
	if addr == "" {
		return errors.New("-diag needs -pad or a configured GPIB instrument")
	}
	report, err := rm.Diagnose(addr)
	if err != nil {
		return err
	}
	fmt.Println(report)
	return nil
}
