// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package freqsynth

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gotmc/query"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/gotmc/freqsynth/lib/telemetry"
)

// Synthesizer controls one signal generator at a time. All instrument I/O
// is serialized: at most one command is in flight, and connect/disconnect
// never interleave with a command.
type Synthesizer struct {
	mu      sync.Mutex
	rm      ResourceManager
	inst    Instrument // nil when disconnected
	session Session
	state   State
	logger  zerolog.Logger
	metrics telemetry.Collector
}

// Option applies an option to the Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger used for command and error diagnostics.
func WithLogger(l zerolog.Logger) Option { return func(s *Synthesizer) { s.logger = l } }

// WithCollector reports command and failure counts to c.
func WithCollector(c telemetry.Collector) Option {
	return func(s *Synthesizer) {
		if c != nil {
			s.metrics = c
		}
	}
}

// New creates a disconnected Synthesizer that opens instruments through rm.
func New(rm ResourceManager, opts ...Option) *Synthesizer {
	s := Synthesizer{
		rm:      rm,
		logger:  zerolog.Nop(),
		metrics: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &s
}

// Discover lists the addresses of the instruments currently visible. It never
// fails: discovery errors are logged, and whatever was found before the error,
// possibly nothing, is returned.
func (s *Synthesizer) Discover() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs, err := s.rm.ListResources()
	if err != nil {
		s.logger.Warn().Err(err).Int("found", len(addrs)).Msg("instrument discovery incomplete")
	}
	if addrs == nil {
		addrs = []string{}
	}
	s.logger.Debug().Strs("addresses", addrs).Msg("discovered instruments")
	return addrs
}

// Connect closes any open session, opens the instrument at address and reads
// its identification, frequency, power and output state. On failure the
// Synthesizer is left disconnected.
func (s *Synthesizer) Connect(address string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inst != nil {
		prev := s.session.Address
		if err := s.disconnect(); err != nil {
			s.logger.Warn().Err(err).Str("address", prev).Msg("error closing previous session")
		}
	}

	inst, err := s.rm.Open(address)
	if err != nil {
		s.metrics.IncFailure("connect")
		s.logger.Error().Err(err).Str("address", address).Msg("open failed")
		return Session{}, &ConnectError{Address: address, Err: err}
	}
	s.inst = inst

	id, err := s.query(qryIdentify)
	if err == nil {
		var state State
		state, err = s.readState()
		if err == nil {
			s.session = Session{Address: address, ID: id}
			s.state = state
			s.metrics.SetConnected(true)
			s.logger.Info().
				Str("address", address).
				Str("idn", id).
				Float64("frequency", state.Frequency).
				Float64("power", state.Power).
				Bool("output", state.OutputEnabled).
				Msg("connected")
			return s.session, nil
		}
	}

	// Drop the half-open handle; no partial session is kept.
	err = multierr.Append(err, inst.Close())
	s.inst = nil
	s.metrics.IncFailure("connect")
	s.logger.Error().Err(err).Str("address", address).Msg("connect failed")
	return Session{}, &ConnectError{Address: address, Err: err}
}

// Disconnect turns the RF output off and closes the session. It does nothing
// when no session is open.
func (s *Synthesizer) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnect()
}

func (s *Synthesizer) disconnect() error {
	if s.inst == nil {
		return nil
	}
	addr := s.session.Address
	err := s.write(cmdOutputOff)
	err = multierr.Append(err, s.inst.Close())
	s.inst = nil
	s.session = Session{}
	s.state = State{}
	s.metrics.SetConnected(false)
	if err != nil {
		s.logger.Warn().Err(err).Str("address", addr).Msg("disconnected with errors")
	} else {
		s.logger.Info().Str("address", addr).Msg("disconnected")
	}
	return err
}

// SetFrequency sends text as the new fixed frequency in Hz and returns the
// frequency the instrument reports afterwards.
func (s *Synthesizer) SetFrequency(text string) (float64, error) {
	return s.set(frequency, text)
}

// SetPower sends text as the new output power in dBm and returns the power the
// instrument reports afterwards.
func (s *Synthesizer) SetPower(text string) (float64, error) {
	return s.set(power, text)
}

// AdjustFrequencyByStep moves the frequency by offset*magnitude Hz relative
// to the last confirmed frequency.
func (s *Synthesizer) AdjustFrequencyByStep(offset int, magnitude float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst == nil {
		return 0, ErrNotConnected
	}
	text, err := stepValue(s.state.Frequency, offset, magnitude)
	if err != nil {
		return 0, err
	}
	s.logger.Debug().
		Float64("from", s.state.Frequency).
		Int("offset", offset).
		Float64("magnitude", magnitude).
		Str("to", text).
		Msg("frequency step")
	return s.apply(frequency, text)
}

// SetOutputEnabled switches the RF output. No confirmation read is made, so
// State().OutputEnabled keeps the value last read from the instrument.
func (s *Synthesizer) SetOutputEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst == nil {
		return ErrNotConnected
	}
	cmd := cmdOutputOff
	if enabled {
		cmd = cmdOutputOn
	}
	return s.write("%s", cmd)
}

// State returns the values last confirmed by the instrument.
func (s *Synthesizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns the open session, if any.
func (s *Synthesizer) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.inst != nil
}

// Connected reports whether a session is open.
func (s *Synthesizer) Connected() bool {
	_, ok := s.Session()
	return ok
}

func (s *Synthesizer) set(q quantity, text string) (float64, error) {
	value, err := parseValue(text)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst == nil {
		return 0, ErrNotConnected
	}
	return s.apply(q, value)
}

// apply writes an already validated value, then reads it back. The caller
// holds s.mu and has checked the session.
func (s *Synthesizer) apply(q quantity, value string) (float64, error) {
	if err := s.write(q.set, value); err != nil {
		return 0, err
	}
	v, err := s.readNumber(q.get)
	if err != nil {
		return 0, err
	}
	q.store(&s.state, v)
	s.logger.Info().Str(q.name, value).Float64("confirmed", v).Msg("set " + q.name)
	return v, nil
}

func (s *Synthesizer) readState() (State, error) {
	var st State
	var err error
	if st.Frequency, err = s.readNumber(qryFrequency); err != nil {
		return State{}, err
	}
	if st.Power, err = s.readNumber(qryPower); err != nil {
		return State{}, err
	}
	out, err := s.query(qryOutput)
	if err != nil {
		return State{}, err
	}
	st.OutputEnabled = out == "1"
	return st, nil
}

func (s *Synthesizer) write(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	s.metrics.IncCommand("write")
	if err := s.inst.Command(format, a...); err != nil {
		s.metrics.IncFailure("write")
		s.logger.Error().Err(err).Str("cmd", cmd).Msg("write failed")
		return &TransportError{Op: "write", Command: cmd, Err: err}
	}
	s.logger.Debug().Str("cmd", cmd).Msg("write")
	return nil
}

func (s *Synthesizer) query(cmd string) (string, error) {
	s.metrics.IncCommand("query")
	resp, err := query.String(s.inst, cmd)
	if err != nil {
		s.metrics.IncFailure("query")
		s.logger.Error().Err(err).Str("cmd", cmd).Msg("query failed")
		return "", &TransportError{Op: "query", Command: cmd, Err: err}
	}
	resp = strings.TrimSpace(resp)
	s.logger.Debug().Str("cmd", cmd).Str("resp", resp).Msg("query")
	return resp, nil
}

func (s *Synthesizer) readNumber(cmd string) (float64, error) {
	resp, err := s.query(cmd)
	if err != nil {
		return 0, err
	}
	v, err := parseResponse(resp)
	if err != nil {
		s.metrics.IncFailure("query")
		return 0, &TransportError{Op: "query", Command: cmd, Err: fmt.Errorf("parse response: %w", err)}
	}
	return v, nil
}
