// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package cmdlog records the traffic between the program and its
// instruments, for display in a console and for the log.
package cmdlog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/gotmc/freqsynth"
)

func isAscii(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r < 7:
			return true
		case r > 6 && r < 14:
			return false
		case r > 13 && r < 32:
			return true
		case r > 127:
			return true
		}
		return false
	})
}

var (
	CmdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	R1Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	R2Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type Kind int

const (
	Command Kind = iota
	Query
	Open
	Close
)

// Entry is one exchange with an instrument.
type Entry struct {
	Time    time.Time
	Address string
	Kind    Kind
	Cmd     string
	Resp    string
	Err     error
}

// Render formats the entry for the console.
func (e Entry) Render() string {
	ts := e.Time.Format("15:04:05.000")
	cmd := CmdStyle.Render(e.Cmd)
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s", ts, cmd, ErrStyle.Render("error "+e.Err.Error()))
	}
	switch e.Kind {
	case Open:
		return fmt.Sprintf("%s %s", ts, R2Style.Render("open "+e.Address))
	case Close:
		return fmt.Sprintf("%s %s", ts, R2Style.Render("close "+e.Address))
	case Command:
		return fmt.Sprintf("%s %s()", ts, cmd)
	}

	a := strings.TrimSuffix(e.Resp, "\n")
	switch {
	case len(a) == 0:
		return fmt.Sprintf("%s %s: %s", ts, cmd, R1Style.Render("<no response>"))
	case isAscii(a):
		return fmt.Sprintf("%s %s: [%d] %s", ts, cmd, len(a), R2Style.Render(fmt.Sprintf("%q", a)))
	case len(a) < 32:
		return fmt.Sprintf("%s %s: [%d] %q (% 2x)", ts, cmd, len(a), a, []byte(a))
	}
	return fmt.Sprintf("%s %s: [%d] % 2x", ts, cmd, len(a), []byte(a))
}

// Recorder wraps a resource manager; every instrument it opens reports its
// commands and responses to the recorder. The most recent entries are kept.
type Recorder struct {
	rm     freqsynth.ResourceManager
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []Entry
	limit   int
}

// New returns a recorder keeping up to limit entries.
func New(rm freqsynth.ResourceManager, limit int, logger zerolog.Logger) *Recorder {
	if limit <= 0 {
		limit = 1
	}
	return &Recorder{rm: rm, logger: logger, now: time.Now, limit: limit}
}

func (r *Recorder) ListResources() ([]string, error) { return r.rm.ListResources() }

func (r *Recorder) Open(address string) (freqsynth.Instrument, error) {
	inst, err := r.rm.Open(address)
	r.add(Entry{Address: address, Kind: Open, Cmd: "open", Err: err})
	if err != nil {
		return nil, err
	}
	return &instrument{inst: inst, address: address, rec: r}, nil
}

func (r *Recorder) add(e Entry) {
	e.Time = r.now()
	ev := r.logger.Debug()
	if e.Err != nil {
		ev = r.logger.Warn().Err(e.Err)
	}
	ev.Str("address", e.Address).Str("cmd", e.Cmd).Str("resp", e.Resp).Msg("instrument traffic")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if n := len(r.entries) - r.limit; n > 0 {
		r.entries = append(r.entries[:0:0], r.entries[n:]...)
	}
}

// Entries returns the recorded entries, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Lines renders the last n entries, oldest first.
func (r *Recorder) Lines(n int) []string {
	entries := r.Entries()
	if n >= 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Render())
	}
	return lines
}

type instrument struct {
	inst    freqsynth.Instrument
	address string
	rec     *Recorder
}

func (i *instrument) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	err := i.inst.Command(format, a...)
	i.rec.add(Entry{Address: i.address, Kind: Command, Cmd: cmd, Err: err})
	return err
}

func (i *instrument) Query(cmd string) (string, error) {
	resp, err := i.inst.Query(cmd)
	i.rec.add(Entry{Address: i.address, Kind: Query, Cmd: cmd, Resp: resp, Err: err})
	return resp, err
}

func (i *instrument) Close() error {
	err := i.inst.Close()
	i.rec.add(Entry{Address: i.address, Kind: Close, Cmd: "close", Err: err})
	return err
}
