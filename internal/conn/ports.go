// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package conn

import (
	"fmt"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port detected on the system.
type PortInfo struct {
	Device       string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// String renders the port the way pickers show it.
func (p PortInfo) String() string {
	if p.IsUSB && p.Product != "" {
		return fmt.Sprintf("%s (%s)", p.Device, p.Product)
	}
	return p.Device
}

// ListPorts enumerates serial ports with USB metadata where available.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerating serial ports: %w", err)
	}
	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{
			Device:       p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}
