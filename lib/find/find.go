// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package find locates USB serial adapters, such as a Prologix GPIB-USB
// controller or an Arduino running AR488.
package find

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

type FilterFn func(*Usbtty) bool

// PrologixFilter matches Prologix GPIB-USB controllers. They enumerate as
// FTDI devices whose serial numbers start with "PX".
func PrologixFilter(ut *Usbtty) bool {
	return strings.Contains(ut.Prod, "Prologix") ||
		(strings.EqualFold(ut.IDv, "0403") && strings.HasPrefix(ut.Serial, "PX"))
}

func ArduinoFilter(ut *Usbtty) bool {
	return strings.Contains(ut.Prod, "Arduino") || strings.EqualFold(ut.IDv, "2341")
}

func PiPicoFilter(ut *Usbtty) bool {
	return strings.EqualFold(ut.IDv, "2e8a")
}

func SerialFilter(s string) func(ut *Usbtty) bool {
	return func(ut *Usbtty) bool { return ut.Serial == s }
}

// AdapterFilter matches anything that can act as a GPIB controller.
func AdapterFilter(ut *Usbtty) bool {
	return PrologixFilter(ut) || ArduinoFilter(ut)
}

// Find searches for a usb serial device. If filter is not nil,
// it is used to narrow choices down. The first device for which
// it returns true (if any) is chosen.
func Find(filter FilterFn) (string, error) {
	ttys, err := AllUsbTtys()
	if err != nil {
		return "", err
	}
	return pick(ttys, filter)
}

func pick(ttys Usbttys, filter FilterFn) (string, error) {
	if filter != nil {
		var matched Usbttys
		for i := range ttys {
			if filter(&ttys[i]) {
				matched = Usbttys{ttys[i]}
				break
			}
		}
		ttys = matched
	}

	if len(ttys) == 0 {
		return "", fmt.Errorf("no matching ttys found")
	}
	if len(ttys) == 1 {
		return ttys[0].Dev, nil
	}
	return "", fmt.Errorf("multiple ttys:\n%s", ttys)
}

type Usbtty struct {
	Dev      string
	IDp, IDv string
	Prod     string
	Serial   string
}

func (u Usbtty) String() string {
	return fmt.Sprintf("dev %s pid/vid %s/%s prod %s serial %s", u.Dev, u.IDp, u.IDv, u.Prod, u.Serial)
}

type Usbttys []Usbtty

func (uts Usbttys) String() string {
	s := make([]string, 0, len(uts))
	for _, ut := range uts {
		s = append(s, ut.String())
	}
	return strings.Join(s, "\n")
}

var enumerate = enumerator.GetDetailedPortsList

// AllUsbTtys lists the serial ports that sit on a USB device.
func AllUsbTtys() (Usbttys, error) {
	ports, err := enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	var devs Usbttys
	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		devs = append(devs, Usbtty{
			Dev:    p.Name,
			IDp:    p.PID,
			IDv:    p.VID,
			Prod:   p.Product,
			Serial: p.SerialNumber,
		})
	}
	return devs, nil
}
