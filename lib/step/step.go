// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package step implements the frequency nudge slider: a momentary integer
// offset in [MinOffset, MaxOffset] multiplied by a power-of-ten step size.
package step

import "fmt"

// Slider bounds and the default step size index (1e+04 Hz).
const (
	MinOffset    = -10
	MaxOffset    = 10
	DefaultIndex = 4
)

var magnitudes = [...]float64{1e0, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10}

// Magnitudes returns the selectable step sizes in Hz, smallest first.
func Magnitudes() []float64 {
	m := make([]float64, len(magnitudes))
	copy(m, magnitudes[:])
	return m
}

// Label formats the step size at index i, e.g. "1e+04 Hz".
func Label(i int) string {
	if !validIndex(i) {
		return ""
	}
	return fmt.Sprintf("%1.0e Hz", magnitudes[i])
}

func validIndex(i int) bool { return i >= 0 && i < len(magnitudes) }

// Slider holds the selected step size and the pending offset.
type Slider struct {
	offset int
	index  int
}

// New returns a slider at offset 0 with the step size at index selected.
// An out of range index selects DefaultIndex.
func New(index int) *Slider {
	if !validIndex(index) {
		index = DefaultIndex
	}
	return &Slider{index: index}
}

// Set moves the slider to v, clamped to [MinOffset, MaxOffset], and returns
// the resulting offset.
func (s *Slider) Set(v int) int {
	s.offset = max(MinOffset, min(MaxOffset, v))
	return s.offset
}

// Move shifts the slider by delta and returns the resulting offset.
func (s *Slider) Move(delta int) int { return s.Set(s.offset + delta) }

// Reset returns the slider to 0. Callers reset after the command for the
// current offset has been issued.
func (s *Slider) Reset() { s.offset = 0 }

// Offset returns the pending offset in steps.
func (s *Slider) Offset() int { return s.offset }

// Index returns the index of the selected step size.
func (s *Slider) Index() int { return s.index }

// Magnitude returns the selected step size in Hz.
func (s *Slider) Magnitude() float64 { return magnitudes[s.index] }

// Label returns the selected step size formatted for display.
func (s *Slider) Label() string { return Label(s.index) }

// Delta returns offset times the selected step size, in Hz.
func (s *Slider) Delta() float64 { return float64(s.offset) * s.Magnitude() }

// Select chooses the step size at index i and resets the offset.
func (s *Slider) Select(i int) error {
	if !validIndex(i) {
		return fmt.Errorf("step index %d out of range [0, %d]", i, len(magnitudes)-1)
	}
	s.index = i
	s.offset = 0
	return nil
}

// Coarser selects the next larger step size, if any, and resets the offset.
func (s *Slider) Coarser() {
	if s.index < len(magnitudes)-1 {
		s.index++
	}
	s.offset = 0
}

// Finer selects the next smaller step size, if any, and resets the offset.
func (s *Slider) Finer() {
	if s.index > 0 {
		s.index--
	}
	s.offset = 0
}
