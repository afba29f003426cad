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

// mk3set writes a single setting on a Victron Multi/Quattro over the
// MK3-USB cable: read the current value, write the new one persistently,
// read it back for confirmation.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	mk3 "github.com/VEBusProject/go-mk3"
	"github.com/VEBusProject/go-mk3/detection"
	"github.com/VEBusProject/go-mk3/transport/serial"
)

type config struct {
	devicePath string
	settingID  int
	rawValue   int
	voltage    float64
	debug      bool
}

// Package-level flag variables
var (
	flagDevicePath string
	flagSettingID  int
	flagRawValue   int
	flagVoltage    float64
	flagAbsorption bool
	flagFloat      bool
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Serial device path (auto-detect if empty)")
	flag.IntVar(&flagSettingID, "id", -1, "Setting ID to write (0-255)")
	flag.IntVar(&flagRawValue, "value", -1, "Raw 16-bit value to write")
	flag.Float64Var(&flagVoltage, "voltage", 0, "Voltage to write, scaled x100 (e.g. 55.8)")
	flag.BoolVar(&flagAbsorption, "absorption", false, "Target the absorption voltage setting")
	flag.BoolVar(&flagFloat, "float", false, "Target the float voltage setting")
	flag.BoolVar(&flagDebug, "debug", false, "Dump TX/RX hex traffic to stderr")
}

func parseConfig() (*config, error) {
	cfg := &config{
		devicePath: flagDevicePath,
		settingID:  flagSettingID,
		rawValue:   flagRawValue,
		voltage:    flagVoltage,
		debug:      flagDebug,
	}

	if flagAbsorption {
		cfg.settingID = int(mk3.SettingAbsorptionVoltage)
	}
	if flagFloat {
		cfg.settingID = int(mk3.SettingFloatVoltage)
	}
	if cfg.settingID < 0 || cfg.settingID > 255 {
		return nil, errors.New("a setting ID is required: -id, -absorption or -float")
	}

	if cfg.voltage > 0 {
		cfg.rawValue = int(cfg.voltage*100 + 0.5)
	}
	if cfg.rawValue < 0 || cfg.rawValue > 0xFFFF {
		return nil, errors.New("a value is required: -value (raw) or -voltage (volts)")
	}
	return cfg, nil
}

func openDevice(cfg *config) (*mk3.Device, error) {
	path := cfg.devicePath
	if path == "" {
		devices, err := detection.Detect(nil)
		if err != nil {
			return nil, fmt.Errorf("auto-detection failed: %w", err)
		}
		path = devices[0].Path
		_, _ = fmt.Printf("Using %s (%s)\n", path, devices[0].Product)
	}

	port, err := serial.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	opts := []mk3.Option{}
	if cfg.debug {
		opts = append(opts, mk3.WithTrace(os.Stderr))
	}
	device, err := mk3.New(port, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return device, nil
}

func run(cfg *config) error {
	device, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	if err := device.SetAddress(); err != nil {
		return fmt.Errorf("failed to address device: %w", err)
	}

	id := byte(cfg.settingID)
	value := uint16(cfg.rawValue)

	before, err := device.ReadSetting(id)
	switch {
	case err != nil:
		_, _ = fmt.Printf("Setting %d: current value unreadable (%v)\n", id, err)
	case before == mk3.SentinelUnsupported:
		return fmt.Errorf("setting %d: device reports the ID as unsupported", id)
	default:
		_, _ = fmt.Printf("Setting %d: current value %d (0x%04X)\n", id, before, before)
	}

	_, _ = fmt.Printf("Writing %d (0x%04X), persisted to EEPROM and RAM...\n", value, value)
	if err := device.WriteSetting(id, mk3.WriteFlagPersist, value); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	// The device does not echo the written value; confirm by reading back
	after, err := device.ReadSetting(id)
	if err != nil {
		return fmt.Errorf("write sent but read-back failed: %w", err)
	}
	if after != value {
		return fmt.Errorf("write sent but device reads back %d (0x%04X), wanted %d",
			after, after, value)
	}
	_, _ = fmt.Printf("Confirmed: setting %d is now %d (0x%04X)\n", id, after, after)
	return nil
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		return 2
	}

	if err := run(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
