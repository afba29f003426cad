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

// Package mk3 talks the Winmon serial sub-protocol to a Victron
// Multi/Quattro inverter/charger behind an MK3-USB interface: reading
// live RAM variables, reading and writing settings, fetching setting
// metadata, and sweeping the 0-255 ID space to discover which IDs a
// device supports.
package mk3

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/VEBusProject/go-mk3/internal/frame"
)

// DeviceConfig contains configuration options for the Device.
// The trace writer is threaded explicitly rather than held in package
// state, so two devices can trace independently.
type DeviceConfig struct {
	// Retry configures the per-command retry behavior
	Retry *RetryConfig
	// TraceWriter receives TX/RX hex lines when non-nil
	TraceWriter io.Writer
	// Slot is the Winmon routing byte for the addressed sub-device
	Slot byte
	// StrictChecksum rejects response frames that do not sum to zero.
	// Off by default: observed hardware occasionally sends frames with
	// bad checksums that are otherwise usable.
	StrictChecksum bool
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Retry: DefaultRetryConfig(),
		Slot:  DefaultSlot,
	}
}

// Option configures a Device
type Option func(*Device) error

// WithRetryConfig sets the per-command retry configuration
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(d *Device) error {
		if cfg == nil {
			return fmt.Errorf("%w: nil retry config", ErrInvalidParameter)
		}
		d.config.Retry = cfg
		return nil
	}
}

// WithTrace routes a hex dump of every TX/RX exchange to w
func WithTrace(w io.Writer) Option {
	return func(d *Device) error {
		d.config.TraceWriter = w
		return nil
	}
}

// WithSlot overrides the Winmon slot byte. The Multi/Quattro class
// answers on the default 0x58.
func WithSlot(slot byte) Option {
	return func(d *Device) error {
		d.config.Slot = slot
		return nil
	}
}

// WithStrictChecksum enables checksum validation on received frames.
// A frame failing validation is treated like a missing response and
// consumes a retry attempt.
func WithStrictChecksum() Option {
	return func(d *Device) error {
		d.config.StrictChecksum = true
		return nil
	}
}

// Device represents a Multi/Quattro reached over a Port.
//
// Thread safety: Device is NOT thread-safe. The device itself is a
// single-endpoint half-duplex link that cannot process overlapping
// requests, so all methods must be called from a single goroutine.
type Device struct {
	port   Port
	config *DeviceConfig
}

// New creates a new Device on the given port
func New(port Port, opts ...Option) (*Device, error) {
	if port == nil {
		return nil, fmt.Errorf("%w: nil port", ErrInvalidParameter)
	}
	device := &Device{
		port:   port,
		config: DefaultDeviceConfig(),
	}
	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}
	return device, nil
}

// Close closes the underlying port
func (d *Device) Close() error {
	if err := d.port.Close(); err != nil {
		return fmt.Errorf("failed to close port: %w", err)
	}
	return nil
}

// Port returns the underlying port
func (d *Device) Port() Port {
	return d.port
}

// SetAddress sends the out-of-band addressing command that selects the
// device for the session. It must be sent once before any Winmon
// command; the reply, if any, is drained and discarded.
func (d *Device) SetAddress() error {
	d.tracef(TraceTX, setAddressFrame, "set address")
	if err := d.port.Write(setAddressFrame); err != nil {
		return fmt.Errorf("set address: %w", err)
	}
	time.Sleep(d.config.Retry.SettleDelay)
	if buf, err := d.port.ReadAvailable(); err == nil && len(buf) > 0 {
		d.tracef(TraceRX, buf, "set address reply")
	}
	return nil
}

// ReadRAMVar reads a live RAM variable (runtime telemetry such as
// voltage, current or state) by ID.
//
// A value of 0xFFFF is returned as-is: it is the protocol-level
// sentinel for "ID not implemented", interpreted by the sweep layer,
// not here.
func (d *Device) ReadRAMVar(id byte) (uint16, error) {
	return d.readValue(cmdReadRAMVar, respReadRAMVar, id)
}

// ReadSetting reads a persisted configuration setting by ID. The 0xFFFF
// sentinel is passed through exactly as for ReadRAMVar.
func (d *Device) ReadSetting(id byte) (uint16, error) {
	return d.readValue(cmdReadSetting, respReadSetting, id)
}

// readValue issues a single-ID read command and extracts the
// little-endian 16-bit value from the response payload.
func (d *Device) readValue(subcmd, respSubcmd, id byte) (uint16, error) {
	req := frame.Encode(d.config.Slot, subcmd, []byte{id})
	resp, err := d.exchange(req, respSubcmd, frame.MinFrameLength,
		fmt.Sprintf("read 0x%02X id %d", subcmd, id))
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(resp[frame.PayloadOffset:]), nil
}

// SettingInfo fetches the metadata response for a setting ID and returns
// its payload as raw bytes. The payload layout is not decoded: the
// format has not been confirmed against enough captured samples, so it
// is passed through opaquely.
func (d *Device) SettingInfo(id byte) ([]byte, error) {
	req := frame.Encode(d.config.Slot, cmdGetSettingInfo, []byte{id})
	resp, err := d.exchange(req, respGetSettingInfo, frame.PayloadOffset+1,
		fmt.Sprintf("setting info id %d", id))
	if err != nil {
		return nil, err
	}
	payload := make([]byte, len(resp)-frame.PayloadOffset)
	copy(payload, resp[frame.PayloadOffset:])
	return payload, nil
}

// WriteSetting writes a 16-bit value to a setting via its ID. The flags
// byte selects the target copy; WriteFlagPersist writes both EEPROM and
// RAM so the value survives power cycles.
//
// Success means the device sent something back within the retry budget.
// The written value is not read back and verified; callers that need
// confirmation should follow up with ReadSetting.
func (d *Device) WriteSetting(id, flags byte, value uint16) error {
	payload := []byte{flags, id, byte(value), byte(value >> 8)}
	req := frame.Encode(d.config.Slot, cmdWriteViaID, payload)

	tb := NewTraceBuffer(d.portName(), 16)
	retry := d.config.Retry

	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		d.tracef(TraceTX, req, "")
		tb.RecordTX(req, "")
		if err := d.port.Write(req); err != nil {
			return tb.WrapError(fmt.Errorf("write setting %d: %w", id, err))
		}

		time.Sleep(retry.SettleDelay)

		buf, err := d.port.ReadAvailable()
		if err != nil {
			return tb.WrapError(fmt.Errorf("write setting %d: %w", id, err))
		}
		if len(buf) > 0 {
			d.tracef(TraceRX, buf, "")
			tb.RecordRX(buf, "")
			return nil
		}
		tb.RecordTimeout("no reply to write")

		if attempt < retry.MaxAttempts-1 {
			time.Sleep(retry.Backoff)
		}
	}

	return tb.WrapError(fmt.Errorf("write setting %d: %w", id, ErrNoResponse))
}

// exchange runs the bounded retry loop for one command: write the frame,
// settle, read all buffered bytes, scan for the expected response
// sub-command. A matched frame shorter than minLen, or one that fails
// the strict checksum check, does not satisfy the attempt: it is
// recorded and the loop retries, so a single corrupt length byte cannot
// fail a command that a later attempt would answer cleanly.
func (d *Device) exchange(req []byte, respSubcmd byte, minLen int, note string) ([]byte, error) {
	tb := NewTraceBuffer(d.portName(), 16)
	retry := d.config.Retry
	sawBytes := false
	var rejected error

	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		d.tracef(TraceTX, req, note)
		tb.RecordTX(req, note)
		if err := d.port.Write(req); err != nil {
			return nil, tb.WrapError(fmt.Errorf("%s: %w", note, err))
		}

		time.Sleep(retry.SettleDelay)

		buf, err := d.port.ReadAvailable()
		if err != nil {
			return nil, tb.WrapError(fmt.Errorf("%s: %w", note, err))
		}
		if len(buf) > 0 {
			sawBytes = true
			d.tracef(TraceRX, buf, note)
			tb.RecordRX(buf, note)

			if resp := frame.ScanResponse(buf, respSubcmd); resp != nil {
				switch {
				case len(resp) < minLen:
					tb.RecordRX(resp, "frame too short, discarded")
					rejected = fmt.Errorf("%w: %d bytes", ErrResponseTooShort, len(resp))
				case d.config.StrictChecksum && !frame.Valid(resp):
					tb.RecordRX(resp, "checksum mismatch, discarded")
					rejected = ErrChecksumMismatch
				default:
					return resp, nil
				}
			}
		} else {
			tb.RecordTimeout(note)
		}

		if attempt < retry.MaxAttempts-1 {
			time.Sleep(retry.Backoff)
		}
	}

	// The most specific failure wins: a discarded frame over raw bytes
	// without a frame boundary, that over pure silence. Sweeps treat all
	// three as "no answer for this ID".
	if rejected != nil {
		return nil, tb.WrapError(fmt.Errorf("%s: %w", note, rejected))
	}
	if sawBytes {
		return nil, tb.WrapError(fmt.Errorf("%s: %w", note, ErrMalformedFrame))
	}
	return nil, tb.WrapError(fmt.Errorf("%s: %w", note, ErrNoResponse))
}

// tracef writes one TX/RX hex line to the configured trace writer
func (d *Device) tracef(dir TraceDirection, data []byte, note string) {
	if d.config.TraceWriter == nil {
		return
	}
	if note != "" {
		_, _ = fmt.Fprintf(d.config.TraceWriter, "%s: %s (%s)\n", dir, formatHexBytes(data), note)
		return
	}
	_, _ = fmt.Fprintf(d.config.TraceWriter, "%s: %s\n", dir, formatHexBytes(data))
}

func (d *Device) portName() string {
	return string(d.port.Type())
}
