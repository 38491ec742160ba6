// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visa

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"go.uber.org/multierr"

	"github.com/gotmc/freqsynth"
	"github.com/gotmc/freqsynth/lib/find"
	"github.com/gotmc/freqsynth/lib/prologix"
)

// Board configures the USB GPIB adapter serving one GPIB board number.
type Board struct {
	Index       int
	Port        string // serial device; empty to search for an adapter
	Baud        int
	AR488       bool
	WriteDelay  time.Duration
	ReadTimeout time.Duration
	Clear       bool // send Selected Device Clear on open
}

const (
	defaultBaud    = 115200
	defaultTimeout = 2 * time.Second
)

// port is the part of a serial port the manager uses.
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

func openSerial(name string, baud int) (port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Manager lists and opens instruments. It implements
// freqsynth.ResourceManager.
type Manager struct {
	mu        sync.Mutex
	boards    map[int]Board
	busy      map[int]bool
	resources []string
	scan      bool
	sim       freqsynth.ResourceManager
	timeout   time.Duration
	logger    zerolog.Logger

	openPort    func(name string, baud int) (port, error)
	dial        func(network, address string, timeout time.Duration) (net.Conn, error)
	listPorts   func() ([]string, error)
	findAdapter func() (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithBoard configures a GPIB board. Board 0 is available without
// configuration and uses the first adapter found.
func WithBoard(b Board) Option {
	return func(m *Manager) { m.boards[b.Index] = b }
}

// WithResources adds instruments that are always listed, such as socket
// instruments which cannot be discovered.
func WithResources(names ...string) Option {
	return func(m *Manager) { m.resources = append(m.resources, names...) }
}

// WithSerialScan lists every serial port as an ASRL resource.
func WithSerialScan(scan bool) Option {
	return func(m *Manager) { m.scan = scan }
}

// WithSimulator serves SIM resources from rm.
func WithSimulator(rm freqsynth.ResourceManager) Option {
	return func(m *Manager) { m.sim = rm }
}

// WithTimeout bounds socket and serial reads.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger used for opens and discovery.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager. Configured resource names are validated and
// stored in canonical form.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		boards:      map[int]Board{},
		busy:        map[int]bool{},
		timeout:     defaultTimeout,
		logger:      zerolog.Nop(),
		openPort:    openSerial,
		dial:        net.DialTimeout,
		listPorts:   serial.GetPortsList,
		findAdapter: func() (string, error) { return find.Find(find.AdapterFilter) },
	}
	for _, opt := range opts {
		opt(m)
	}
	var err error
	for i, name := range m.resources {
		r, perr := Parse(name)
		if perr != nil {
			err = multierr.Append(err, perr)
			continue
		}
		m.resources[i] = r.String()
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListResources returns configured resources, then serial ports if scanning
// is enabled, then simulated instruments. Listing errors are combined; the
// resources found so far are returned with them.
func (m *Manager) ListResources() ([]string, error) {
	seen := map[string]bool{}
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, n := range m.resources {
		add(n)
	}

	var err error
	if m.scan {
		ports, perr := m.listPorts()
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("list serial ports: %w", perr))
		}
		adapters := m.adapterPorts()
		for _, p := range ports {
			if !adapters[p] {
				add(Resource{Kind: Serial, Device: p}.String())
			}
		}
	}
	if m.sim != nil {
		sims, serr := m.sim.ListResources()
		if serr != nil {
			err = multierr.Append(err, fmt.Errorf("list simulated instruments: %w", serr))
		}
		for _, n := range sims {
			add(n)
		}
	}
	m.logger.Debug().Strs("resources", names).Msg("listed resources")
	return names, err
}

func (m *Manager) adapterPorts() map[string]bool {
	ports := map[string]bool{}
	for _, b := range m.boards {
		if b.Port != "" {
			ports[b.Port] = true
		}
	}
	return ports
}

// Open opens the instrument named by address.
func (m *Manager) Open(address string) (freqsynth.Instrument, error) {
	r, err := Parse(address)
	if err != nil {
		return nil, err
	}
	m.logger.Debug().Str("resource", r.String()).Msg("opening")
	switch r.Kind {
	case GPIB:
		return m.openGPIB(r)
	case Socket:
		addr := net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
		conn, err := m.dial("tcp", addr, m.timeout)
		if err != nil {
			return nil, err
		}
		return newStreamInstrument(conn, m.timeout), nil
	case Serial:
		p, err := m.openPort(r.SerialDevice(), defaultBaud)
		if err != nil {
			return nil, err
		}
		if err := p.SetReadTimeout(m.timeout); err != nil {
			return nil, multierr.Append(err, p.Close())
		}
		return newStreamInstrument(timeoutPort{p}, 0), nil
	case Simulated:
		if m.sim == nil {
			return nil, fmt.Errorf("%s: simulator not enabled", r)
		}
		return m.sim.Open(r.String())
	}
	return nil, fmt.Errorf("%s: unsupported resource", address)
}

func (m *Manager) openGPIB(r Resource) (freqsynth.Instrument, error) {
	b, ok := m.boards[r.Board]
	if !ok {
		if r.Board != 0 {
			return nil, fmt.Errorf("GPIB board %d is not configured", r.Board)
		}
		b = Board{}
	}
	if b.Baud == 0 {
		b.Baud = defaultBaud
	}
	if b.ReadTimeout == 0 {
		b.ReadTimeout = 500 * time.Millisecond
	}

	m.mu.Lock()
	if m.busy[r.Board] {
		m.mu.Unlock()
		return nil, fmt.Errorf("GPIB board %d is in use", r.Board)
	}
	m.busy[r.Board] = true
	m.mu.Unlock()
	release := func() {
		m.mu.Lock()
		delete(m.busy, r.Board)
		m.mu.Unlock()
	}

	name := b.Port
	if name == "" {
		var err error
		if name, err = m.findAdapter(); err != nil {
			release()
			return nil, fmt.Errorf("locate GPIB adapter: %w", err)
		}
	}
	p, err := m.openPort(name, b.Baud)
	if err != nil {
		release()
		return nil, err
	}
	// The adapter gives up on the bus after ReadTimeout; allow for USB latency
	// on top of that.
	err = multierr.Append(p.SetReadTimeout(b.ReadTimeout+time.Second), p.ResetInputBuffer())
	if err != nil {
		release()
		return nil, multierr.Append(err, p.Close())
	}

	opts := []prologix.ControllerOption{
		prologix.WithLogger(m.logger),
		prologix.WithReadTimeout(b.ReadTimeout),
	}
	if b.AR488 {
		opts = append(opts, prologix.WithAR488())
	}
	if b.WriteDelay > 0 {
		opts = append(opts, prologix.WithWriteDelay(b.WriteDelay))
	}
	if r.Secondary != NoSecondary {
		opts = append(opts, prologix.WithSecondaryAddress(r.Secondary))
	}
	ctrl, err := prologix.NewController(timeoutPort{p}, r.Primary, b.Clear, opts...)
	if err != nil {
		release()
		return nil, multierr.Append(err, p.Close())
	}
	m.logger.Info().Str("port", name).Str("resource", r.String()).Msg("GPIB adapter ready")
	return &gpibInstrument{Controller: ctrl, port: p, release: release}, nil
}

// Diagnose opens the adapter of a GPIB resource and reports its firmware
// version, the GPIB address it was set to and its bus termination.
func (m *Manager) Diagnose(address string) (string, error) {
	r, err := Parse(address)
	if err != nil {
		return "", err
	}
	if r.Kind != GPIB {
		return "", fmt.Errorf("%s: not a GPIB resource", r)
	}
	inst, err := m.openGPIB(r)
	if err != nil {
		return "", err
	}
	g := inst.(*gpibInstrument)
	ver, err := g.Version()
	if err != nil {
		return "", multierr.Append(err, g.Close())
	}
	pad, sad, err := g.InstrumentAddress()
	if err != nil {
		return "", multierr.Append(err, g.Close())
	}
	term, err := g.GPIBTermination()
	if err != nil {
		return "", multierr.Append(err, g.Close())
	}
	report := fmt.Sprintf("%s: adapter %s, address %d", r, ver, pad)
	if sad >= 0 {
		report += fmt.Sprintf(" %d", sad)
	}
	report += ", termination " + term.String()
	return report, g.Close()
}
