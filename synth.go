// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package freqsynth controls a SCPI signal generator such as the Keysight
// E8257D: it owns the single connection to the instrument, turns frequency,
// power and output requests into instrument commands, and keeps the values
// the instrument last confirmed.
package freqsynth

// Instrument is an open connection to one addressable instrument. Command
// writes a command without reading a response; Query writes a query and
// returns the instrument's response with the terminator removed. The
// prologix.Controller satisfies the first two methods as is.
type Instrument interface {
	Command(format string, a ...any) error
	Query(cmd string) (string, error)
	Close() error
}

// ResourceManager locates and opens instruments by VISA resource name.
type ResourceManager interface {
	ListResources() ([]string, error)
	Open(address string) (Instrument, error)
}

// Session describes the open connection.
type Session struct {
	Address string
	ID      string // response to *IDN?
}

// State holds the values last confirmed by the instrument.
type State struct {
	Frequency     float64 // Hz
	Power         float64 // dBm
	OutputEnabled bool
}

// SCPI commands understood by the E8257D family.
const (
	cmdSetFrequency = ":FREQ:FIXED %s; *WAI"
	qryFrequency    = ":FREQ:FIXED?"
	cmdSetPower     = ":POW %s; *WAI"
	qryPower        = ":POW?"
	cmdOutputOn     = ":OUTPUT ON; *WAI"
	cmdOutputOff    = ":OUTPUT OFF; *WAI"
	qryOutput       = ":OUTPUT?"
	qryIdentify     = "*IDN?"
)

// quantity ties a settable value to its write command and confirmation query.
type quantity struct {
	name  string
	set   string
	get   string
	store func(*State, float64)
}

var (
	frequency = quantity{
		name:  "frequency",
		set:   cmdSetFrequency,
		get:   qryFrequency,
		store: func(s *State, v float64) { s.Frequency = v },
	}
	power = quantity{
		name:  "power",
		set:   cmdSetPower,
		get:   qryPower,
		store: func(s *State, v float64) { s.Power = v },
	}
)
