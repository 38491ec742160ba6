// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visa

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrTimeout is returned when an instrument does not answer a query in time.
var ErrTimeout = errors.New("read timeout")

// streamInstrument speaks newline terminated SCPI over a byte stream, as
// raw socket and serial instruments do.
type streamInstrument struct {
	rwc     io.ReadWriteCloser
	br      *bufio.Reader
	timeout time.Duration
}

func newStreamInstrument(rwc io.ReadWriteCloser, timeout time.Duration) *streamInstrument {
	return &streamInstrument{rwc: rwc, br: bufio.NewReader(rwc), timeout: timeout}
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type inputResetter interface {
	ResetInputBuffer() error
}

// drainWait bounds how long a socket is read for leftovers before a query.
const drainWait = 10 * time.Millisecond

// discard drops input left over from an earlier query, such as a reply that
// arrived after its read timed out, so it cannot answer the next query.
func (s *streamInstrument) discard() error {
	s.br.Reset(s.rwc)
	switch r := s.rwc.(type) {
	case inputResetter:
		return r.ResetInputBuffer()
	case readDeadliner:
		if err := r.SetReadDeadline(time.Now().Add(drainWait)); err != nil {
			return err
		}
		// Reads until the deadline; the timeout error is expected.
		_, _ = io.Copy(io.Discard, s.rwc)
		return r.SetReadDeadline(time.Time{})
	}
	return nil
}

func (s *streamInstrument) arm() error {
	if d, ok := s.rwc.(deadliner); ok && s.timeout > 0 {
		return d.SetDeadline(time.Now().Add(s.timeout))
	}
	return nil
}

func (s *streamInstrument) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	if err := s.arm(); err != nil {
		return err
	}
	_, err := io.WriteString(s.rwc, strings.TrimSpace(cmd)+"\n")
	return err
}

func (s *streamInstrument) Query(cmd string) (string, error) {
	if err := s.discard(); err != nil {
		return "", fmt.Errorf("discard stale input: %w", err)
	}
	if err := s.Command("%s", cmd); err != nil {
		return "", err
	}
	line, err := s.br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *streamInstrument) Close() error { return s.rwc.Close() }

// timeoutPort turns the empty reads a serial port returns on timeout into
// ErrTimeout.
type timeoutPort struct {
	port
}

func (p timeoutPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && err == nil && len(b) > 0 {
		return 0, ErrTimeout
	}
	return n, err
}
