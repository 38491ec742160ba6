// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package freqsynth

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a command is attempted without an open
// session. The command is aborted before anything is sent.
var ErrNotConnected = errors.New("not connected")

// ErrInvalidInput is returned when a value cannot be parsed as a number.
var ErrInvalidInput = errors.New("invalid numeric input")

// ConnectError is returned when an instrument could not be opened or did not
// identify itself. No session is retained after a ConnectError.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TransportError is returned when a write or query fails on an open session.
// The session stays open; the caller may try again.
type TransportError struct {
	Op      string // "write" or "query"
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Command, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
