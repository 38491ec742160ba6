// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package visa resolves VISA resource names to open instrument connections.
// GPIB resources are reached through a Prologix compatible USB adapter; raw
// TCP sockets, serial lines and simulated instruments are also supported.
package visa

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Kind is the transport a resource name selects.
type Kind int

const (
	GPIB Kind = iota
	Socket
	Serial
	Simulated
)

func (k Kind) String() string {
	switch k {
	case GPIB:
		return "GPIB"
	case Socket:
		return "TCPIP"
	case Serial:
		return "ASRL"
	case Simulated:
		return "SIM"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// NoSecondary marks a GPIB resource without secondary address.
const NoSecondary = -1

// ErrResourceName wraps every resource name Parse rejects.
var ErrResourceName = errors.New("invalid resource name")

// Resource is a parsed VISA resource name.
type Resource struct {
	Kind      Kind
	Board     int
	Primary   int // GPIB and SIM
	Secondary int // GPIB, NoSecondary if absent
	Host      string
	Port      int    // TCPIP socket port
	Device    string // serial device path
}

// String returns the canonical resource name.
func (r Resource) String() string {
	switch r.Kind {
	case GPIB:
		if r.Secondary != NoSecondary {
			return fmt.Sprintf("GPIB%d::%d::%d::INSTR", r.Board, r.Primary, r.Secondary)
		}
		return fmt.Sprintf("GPIB%d::%d::INSTR", r.Board, r.Primary)
	case Socket:
		return fmt.Sprintf("TCPIP%d::%s::%d::SOCKET", r.Board, r.Host, r.Port)
	case Serial:
		return fmt.Sprintf("ASRL%s::INSTR", r.Device)
	case Simulated:
		return fmt.Sprintf("SIM%d::%d::INSTR", r.Board, r.Primary)
	}
	return ""
}

// Parse parses a resource name. Prefixes and resource classes are matched
// without regard to case; the board number may be omitted and defaults to 0.
//
//	GPIB[board]::primary[::secondary][::INSTR]
//	TCPIP[board]::host::port::SOCKET
//	ASRL<device or number>[::INSTR]
//	SIM[board]::primary[::INSTR]
func Parse(name string) (Resource, error) {
	parts := strings.Split(strings.TrimSpace(name), "::")
	bad := func(format string, a ...any) (Resource, error) {
		return Resource{}, fmt.Errorf("%w %q: %s", ErrResourceName, name, fmt.Sprintf(format, a...))
	}
	head := parts[0]
	upper := strings.ToUpper(head)

	switch {
	case strings.HasPrefix(upper, "GPIB"), strings.HasPrefix(upper, "SIM"):
		kind, prefix := GPIB, "GPIB"
		if strings.HasPrefix(upper, "SIM") {
			kind, prefix = Simulated, "SIM"
		}
		board, err := boardNumber(head[len(prefix):])
		if err != nil {
			return bad("board: %v", err)
		}
		rest := trimClass(parts[1:], "INSTR")
		maxFields := 2
		if kind == Simulated {
			maxFields = 1
		}
		if len(rest) == 0 || len(rest) > maxFields {
			return bad("want %s[board]::primary::INSTR", prefix)
		}
		r := Resource{Kind: kind, Board: board, Secondary: NoSecondary}
		if r.Primary, err = strconv.Atoi(rest[0]); err != nil || r.Primary < 0 || r.Primary > 30 {
			return bad("primary address %q", rest[0])
		}
		if len(rest) == 2 {
			if r.Secondary, err = strconv.Atoi(rest[1]); err != nil || r.Secondary < 96 || r.Secondary > 126 {
				return bad("secondary address %q", rest[1])
			}
		}
		return r, nil

	case strings.HasPrefix(upper, "TCPIP"):
		board, err := boardNumber(head[len("TCPIP"):])
		if err != nil {
			return bad("board: %v", err)
		}
		if len(parts) != 4 || !strings.EqualFold(parts[3], "SOCKET") {
			return bad("only TCPIP[board]::host::port::SOCKET is supported")
		}
		port, err := strconv.Atoi(parts[2])
		if err != nil || port <= 0 || port > 65535 {
			return bad("port %q", parts[2])
		}
		if parts[1] == "" {
			return bad("empty host")
		}
		return Resource{Kind: Socket, Board: board, Host: parts[1], Port: port, Secondary: NoSecondary}, nil

	case strings.HasPrefix(upper, "ASRL"):
		rest := trimClass(parts[1:], "INSTR")
		if len(rest) != 0 {
			return bad("want ASRL<device>::INSTR")
		}
		dev := head[len("ASRL"):]
		if dev == "" {
			return bad("missing serial device")
		}
		return Resource{Kind: Serial, Device: dev, Secondary: NoSecondary}, nil
	}
	return bad("unknown interface type")
}

// SerialDevice maps the device of an ASRL resource to a port name. Numeric
// devices follow the COM port numbering.
func (r Resource) SerialDevice() string {
	n, err := strconv.Atoi(r.Device)
	if err != nil {
		return r.Device
	}
	if runtime.GOOS == "windows" {
		return "COM" + r.Device
	}
	return "/dev/ttyS" + strconv.Itoa(n-1)
}

func boardNumber(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q is not a board number", s)
	}
	return n, nil
}

func trimClass(parts []string, class string) []string {
	if len(parts) > 0 && strings.EqualFold(parts[len(parts)-1], class) {
		return parts[:len(parts)-1]
	}
	return parts
}
