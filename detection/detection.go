// Copyright 2026 The VEBus Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package detection discovers MK3-USB interface cables among the serial
// ports present on the system. The cable enumerates as an FTDI USB
// serial device, so USB vendor/product IDs are the primary signal and
// anything that merely looks like a USB serial port is a weaker
// fallback.
package detection

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoDevicesFound is returned when no candidate ports are present
var ErrNoDevicesFound = errors.New("no MK3-USB devices found")

// FTDI vendor ID and the product IDs used by Victron interface cables.
// The MK3-USB ships with an FT232R or FT231X bridge.
const (
	ftdiVID      = "0403"
	ft232ProdID  = "6001"
	ft231xProdID = "6015"
)

// DeviceInfo describes a detected candidate port
type DeviceInfo struct {
	// Path is the serial device path, e.g. /dev/ttyUSB0 or COM3
	Path string
	// SerialNumber is the USB serial number, if available
	SerialNumber string
	// Product is the USB product string, if available
	Product string
	// VID and PID are the USB vendor and product IDs in hex
	VID string
	PID string
	// Likely is true when the VID/PID matches a known MK3 cable
	Likely bool
}

// Options controls detection behavior
type Options struct {
	// IncludeAll returns every USB serial port, not only those whose
	// VID/PID matches a known MK3 cable
	IncludeAll bool
}

// Detect enumerates USB serial ports and returns candidate MK3-USB
// devices, known cables first.
func Detect(opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		opts = &Options{}
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var likely, fallback []DeviceInfo
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		info := DeviceInfo{
			Path:         port.Name,
			SerialNumber: port.SerialNumber,
			Product:      port.Product,
			VID:          strings.ToLower(port.VID),
			PID:          strings.ToLower(port.PID),
			Likely:       IsLikelyMK3(port.VID, port.PID),
		}
		if info.Likely {
			likely = append(likely, info)
		} else if opts.IncludeAll {
			fallback = append(fallback, info)
		}
	}

	devices := append(likely, fallback...)
	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

// IsLikelyMK3 reports whether a USB VID/PID pair matches the FTDI
// bridges used in MK3-USB cables.
func IsLikelyMK3(vid, pid string) bool {
	if !strings.EqualFold(vid, ftdiVID) {
		return false
	}
	return strings.EqualFold(pid, ft232ProdID) || strings.EqualFold(pid, ft231xProdID)
}
