// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package prologix drives a Prologix GPIB-USB controller, or an AR488 clone,
// as GPIB controller-in-charge for a single instrument address.
package prologix

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Controller models a GPIB controller-in-charge.
type Controller struct {
	rw               io.ReadWriter
	br               *bufio.Reader
	primaryAddr      int
	hasSecondaryAddr bool
	secondaryAddr    int
	auto             bool
	eoi              bool
	usbTerm          byte
	eotChar          byte
	readTimeout      time.Duration
	writeDelay       time.Duration
	logger           zerolog.Logger
	ar488            bool // compatibility with Arduino AR488 - see WithAR488 documentation for details.
}

// ControllerOption applies an option to the controller.
type ControllerOption func(*Controller)

// NewController creates a GPIB controller-in-charge at the given address
// talking to the Prologix adapter over rw, which is normally a serial port.
// Enable clear to send the Selected Device Clear (SDC) message to the GPIB
// address. Optionally controller configuration can be included using a
// ControllerOption.
func NewController(
	rw io.ReadWriter,
	addr int,
	clear bool,
	opts ...ControllerOption,
) (*Controller, error) {
	c := Controller{
		rw:               rw,
		br:               bufio.NewReader(rw),
		primaryAddr:      addr,
		hasSecondaryAddr: false,
		auto:             false,
		eoi:              true,
		usbTerm:          '\n',
		eotChar:          '\n',
		readTimeout:      500 * time.Millisecond,
		logger:           zerolog.Nop(),
	}

	// Apply options using the functional option pattern.
	for _, opt := range opts {
		opt(&c)
	}

	if !isPrimaryAddressValid(c.primaryAddr) {
		return nil, fmt.Errorf("invalid primary address %d (must be 0-30)", c.primaryAddr)
	}

	addrCmd := fmt.Sprintf("addr %d", c.primaryAddr)
	if c.hasSecondaryAddr {
		if !isSecondaryAddressValid(c.secondaryAddr) {
			return nil, fmt.Errorf("invalid secondary address %d (must be 96-126)", c.secondaryAddr)
		}
		addrCmd = fmt.Sprintf("addr %d %d", c.primaryAddr, c.secondaryAddr)
	}
	cmds := []string{}
	if !c.ar488 {
		cmds = append(cmds,
			"verbose 0", // turn off verbosity if on
			"savecfg 0", // Disable saving of configuration parameters in EPROM
		)
	}
	cmds = append(cmds,
		addrCmd,  // Set the primary address.
		"mode 1", // Switch to controller mode.
		"auto 0", // Turn off read-after-write and address instrument to listen.
		"eoi 1",  // Enable EOI assertion with last character.
		"eos 0",  // Set GPIB termination.
		fmt.Sprintf("read_tmo_ms %d", c.readTimeout.Milliseconds()),
		fmt.Sprintf("eot_char %d", c.eotChar),
		"eot_enable 1", // Append character when EOI detected?
	)
	if clear {
		cmds = append(cmds, "clr")
	}
	for _, cmd := range cmds {
		if err := c.CommandController(cmd); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// WithSecondaryAddress sets a secondary address, which must be in the range of
// 96 and 126, inclusive.
func WithSecondaryAddress(addr int) ControllerOption {
	return func(c *Controller) {
		c.hasSecondaryAddr = true
		c.secondaryAddr = addr
	}
}

// WithLogger causes commands and responses to be logged at debug level.
func WithLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithAR488 slightly alters the init commands, for compatibility with the
// Arduino-based AR488. Specifically, we do not emit 'verbose 0', nor do
// we toggle savecfg.
func WithAR488() ControllerOption { return func(c *Controller) { c.ar488 = true } }

// WithWriteDelay waits d before each controller (++) command. Some AR488
// builds drop commands that arrive back to back.
func WithWriteDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.writeDelay = d }
}

// WithReadTimeout sets the adapter's GPIB read timeout, 1 ms to 3 s.
func WithReadTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.readTimeout = min(max(d, time.Millisecond), 3*time.Second)
	}
}

// Write writes the given data to the instrument at the currently assigned GPIB
// address.
func (c *Controller) Write(p []byte) (n int, err error) {
	return c.rw.Write(p)
}

// Read reads from the instrument at the currently assigned GPIB address into
// the given byte slice.
func (c *Controller) Read(p []byte) (n int, err error) {
	return c.br.Read(p)
}

// Command formats according to a format specifier if provided and sends a
// SCPI/ASCII command to the instrument at the currently assigned GPIB address.
// All leading and trailing whitespace is removed before appending the USB
// terminator to the command sent to the Prologix.
func (c *Controller) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = fmt.Sprintf("%s%c", strings.TrimSpace(cmd), c.usbTerm)
	c.logger.Debug().Str("cmd", cmd).Msg("prologix command")
	_, err := io.WriteString(c.rw, cmd)
	return err
}

// Query queries the instrument at the currently assigned GPIB using the given
// SCPI/ASCII command and returns the response without the EOT character. The
// cmd string does not need to include a new line character. When read-after-
// write is disabled the Prologix is told to read until EOI. Input left over
// from earlier queries is discarded first.
func (c *Controller) Query(cmd string) (string, error) {
	if err := c.discard(); err != nil {
		return "", fmt.Errorf("error discarding stale input: %w", err)
	}
	cmd = fmt.Sprintf("%s%c", strings.TrimSpace(cmd), c.usbTerm)
	c.logger.Debug().Str("cmd", cmd).Msg("prologix query")
	if _, err := io.WriteString(c.rw, cmd); err != nil {
		return "", fmt.Errorf("error writing command: %w", err)
	}
	if !c.auto {
		readCmd := "++read eoi"
		if _, err := fmt.Fprintf(c.rw, "%s%c", readCmd, c.usbTerm); err != nil {
			return "", fmt.Errorf("error sending `%s` command: %w", readCmd, err)
		}
	}
	return c.readLine()
}

// QueryController sends the given command to the Prologix controller and
// returns its response as a string.
func (c *Controller) QueryController(cmd string) (string, error) {
	if err := c.CommandController(cmd); err != nil {
		return "", err
	}
	return c.readLine()
}

// CommandController sends the given command to the Prologix controller. To
// indicate this is a command for the Prologix controller, thereby not
// transmitting to the instrument over GPIB, two plus signs `++` are prepended.
// Additionally, a new line is appended to act as the USB termination character.
func (c *Controller) CommandController(cmd string) error {
	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}
	cmd = fmt.Sprintf("++%s%c", strings.ToLower(strings.TrimSpace(cmd)), c.usbTerm)
	c.logger.Debug().Str("cmd", cmd).Msg("prologix controller command")
	_, err := io.WriteString(c.rw, cmd)
	return err
}

// discard drops unread input, such as the late reply to a query that timed
// out. The serial port's own buffer is flushed when rw can do so.
func (c *Controller) discard() error {
	c.br.Reset(c.rw)
	if r, ok := c.rw.(interface{ ResetInputBuffer() error }); ok {
		return r.ResetInputBuffer()
	}
	return nil
}

func (c *Controller) readLine() (string, error) {
	s, err := c.br.ReadString(c.eotChar)
	c.logger.Debug().Str("resp", s).Msg("prologix read")
	if err == io.EOF && s != "" {
		// No terminator before the port timed out; keep what was read.
		err = nil
	}
	return strings.TrimRight(s, "\r\n"), err
}

// FrontPanel returns the instrument to local front-panel control when local
// is true, and locks the front panel out otherwise.
func (c *Controller) FrontPanel(local bool) error {
	if local {
		return c.CommandController("loc")
	}
	return c.CommandController("llo")
}

// ClearDevice sends the Selected Device Clear (SDC) message.
func (c *Controller) ClearDevice() error {
	return c.CommandController("clr")
}

// Version returns the adapter's firmware version string.
func (c *Controller) Version() (string, error) {
	return c.QueryController("ver")
}

// InstrumentAddress queries the GPIB address the adapter is talking to.
// secondary is -1 when none is set.
func (c *Controller) InstrumentAddress() (primary, secondary int, err error) {
	s, err := c.QueryController("addr")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("empty address response")
	}
	if primary, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, fmt.Errorf("parse primary address %q: %w", fields[0], err)
	}
	secondary = -1
	if len(fields) > 1 {
		if secondary, err = strconv.Atoi(fields[1]); err != nil {
			return 0, 0, fmt.Errorf("parse secondary address %q: %w", fields[1], err)
		}
	}
	return primary, secondary, nil
}

// GpibTerm provides the type for the available GPIB terminators.
type GpibTerm int

// Available GPIB terminators for the Prologix Controller.
const (
	AppendCRLF GpibTerm = iota
	AppendCR
	AppendLF
	AppendNothing
)

var gpibTermDesc = map[GpibTerm]string{
	AppendCRLF:    `Append CR+LF (\r\n) to instrument commands`,
	AppendCR:      `Append CR (\r) to instrument commands`,
	AppendLF:      `Append LF (\n) to instrument commands`,
	AppendNothing: `Do not append anything to instrument commands`,
}

func (term GpibTerm) String() string {
	return gpibTermDesc[term]
}

// GPIBTermination queries the terminator appended to instrument commands.
func (c *Controller) GPIBTermination() (GpibTerm, error) {
	s, err := c.QueryController("eos")
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < int(AppendCRLF) || v > int(AppendNothing) {
		return 0, fmt.Errorf("invalid eos response %q", s)
	}
	return GpibTerm(v), nil
}

// isPrimaryAddressValid checks that the primary GPIB address is between 0 and
// 30, inclusive.
func isPrimaryAddressValid(addr int) bool {
	return addr >= 0 && addr <= 30
}

// isSecondaryAddressValid checks that the secondary GPIB address is between 96
// and 126, inclusive.
func isSecondaryAddressValid(addr int) bool {
	return addr >= 96 && addr <= 126
}
