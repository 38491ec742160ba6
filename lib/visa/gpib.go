// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visa

import (
	"go.uber.org/multierr"

	"github.com/gotmc/freqsynth/lib/prologix"
)

// gpibInstrument is one GPIB device behind an adapter. The adapter's serial
// port belongs to the instrument and is closed with it.
type gpibInstrument struct {
	*prologix.Controller
	port    interface{ Close() error }
	release func()
}

// Close returns the instrument to front panel control and releases the
// adapter.
func (g *gpibInstrument) Close() error {
	err := g.FrontPanel(true)
	err = multierr.Append(err, g.port.Close())
	if g.release != nil {
		g.release()
	}
	return err
}
