// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package sim provides in-process stand-ins for E8257D signal generators, so
// the controller and the terminal UI can run without GPIB hardware.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gotmc/freqsynth"
)

// ErrClosed is returned by a Synth that is not open.
var ErrClosed = errors.New("sim: instrument closed")

// Limits of the simulated instrument; set values are clamped to them.
const (
	MinFrequency = 250e3
	MaxFrequency = 67e9
	MinPower     = -135.0
	MaxPower     = 25.0
)

// Synth simulates the subset of the E8257D command set the controller uses.
type Synth struct {
	mu        sync.Mutex
	id        string
	frequency float64
	power     float64
	output    bool
	open      bool
	history   []string
}

// NewSynth returns a closed simulated instrument answering *IDN? with id.
func NewSynth(id string) *Synth {
	return &Synth{id: id, frequency: 1e9, power: -20}
}

// Command executes semicolon separated SCPI commands.
func (s *Synth) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}
	s.history = append(s.history, cmd)
	for _, part := range strings.Split(cmd, ";") {
		if err := s.exec(strings.TrimSpace(part)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synth) exec(cmd string) error {
	if cmd == "" {
		return nil
	}
	header, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)
	switch normalize(header) {
	case "*WAI", "*CLS":
		return nil
	case "*RST":
		s.frequency, s.power, s.output = 1e9, -20, false
		return nil
	case "FREQ:FIXED", "FREQ", "FREQ:CW":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("sim: bad frequency %q: %w", arg, err)
		}
		s.frequency = clamp(v, MinFrequency, MaxFrequency)
		return nil
	case "POW", "POW:LEV":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("sim: bad power %q: %w", arg, err)
		}
		s.power = clamp(v, MinPower, MaxPower)
		return nil
	case "OUTPUT", "OUTP":
		switch strings.ToUpper(arg) {
		case "ON", "1":
			s.output = true
		case "OFF", "0":
			s.output = false
		default:
			return fmt.Errorf("sim: bad output state %q", arg)
		}
		return nil
	}
	return fmt.Errorf("sim: undefined header %q", header)
}

// Query answers the identification, frequency, power and output queries.
func (s *Synth) Query(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return "", ErrClosed
	}
	s.history = append(s.history, cmd)
	switch normalize(strings.TrimSpace(cmd)) {
	case "*IDN?":
		return s.id, nil
	case "FREQ:FIXED?", "FREQ?", "FREQ:CW?":
		return formatReading(s.frequency), nil
	case "POW?", "POW:LEV?":
		return formatReading(s.power), nil
	case "OUTPUT?", "OUTP?":
		if s.output {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("sim: undefined query %q", cmd)
}

// Close ends the session. The simulated settings survive for the next one.
func (s *Synth) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}
	s.open = false
	return nil
}

// Output reports whether the simulated RF output is on.
func (s *Synth) Output() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// Frequency returns the simulated frequency in Hz.
func (s *Synth) Frequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frequency
}

// Power returns the simulated power in dBm.
func (s *Synth) Power() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}

// IsOpen reports whether a session is open.
func (s *Synth) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// History returns every command and query received, oldest first.
func (s *Synth) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// Manager is a freqsynth.ResourceManager over simulated instruments.
type Manager struct {
	mu     sync.Mutex
	synths map[string]*Synth
}

// NewManager creates one simulated E8257D per address.
func NewManager(addrs ...string) *Manager {
	m := &Manager{synths: make(map[string]*Synth, len(addrs))}
	for i, addr := range addrs {
		m.synths[addr] = NewSynth(fmt.Sprintf("Agilent Technologies, E8257D, SIM%05d, C.06.10", i+1))
	}
	return m
}

// ListResources returns the simulated addresses in sorted order.
func (m *Manager) ListResources() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addrs := make([]string, 0, len(m.synths))
	for addr := range m.synths {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs, nil
}

// Open opens a session to the simulated instrument at address.
func (m *Manager) Open(address string) (freqsynth.Instrument, error) {
	s := m.Synth(address)
	if s == nil {
		return nil, fmt.Errorf("sim: no instrument at %s", address)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil, fmt.Errorf("sim: %s already open", address)
	}
	s.open = true
	return s, nil
}

// Synth returns the simulated instrument at address, or nil.
func (m *Manager) Synth(address string) *Synth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synths[address]
}

func normalize(header string) string {
	return strings.TrimPrefix(strings.ToUpper(header), ":")
}

func clamp(v, lo, hi float64) float64 { return max(lo, min(hi, v)) }

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'E', 11, 64)
}
