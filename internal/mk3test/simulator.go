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

// Package mk3test provides a wire-level Multi/Quattro simulator for
// tests. VirtualMulti implements the mk3.Port interface and answers
// Winmon command frames the way captured hardware does: a little-endian
// 16-bit value for known IDs, the 0xFFFF sentinel for IDs the device
// does not implement, and silence for IDs configured as unresponsive.
package mk3test

import (
	"bytes"
	"time"

	mk3 "github.com/VEBusProject/go-mk3"
	"github.com/VEBusProject/go-mk3/internal/frame"
	"github.com/VEBusProject/go-mk3/internal/syncutil"
)

// Winmon sub-command bytes, mirrored here so the simulator does not
// depend on unexported constants of the root package.
const (
	cmdReadRAMVar     = 0x30
	cmdReadSetting    = 0x31
	cmdWriteViaID     = 0x37
	cmdGetSettingInfo = 0x3C

	respReadRAMVar     = 0x85
	respReadSetting    = 0x86
	respWriteAck       = 0x87
	respGetSettingInfo = 0x89
)

var setAddressFrame = []byte{0x04, 0xFF, 0x41, 0x01, 0x00, 0xBB}

// VirtualMulti simulates a Multi/Quattro behind an MK3-USB link.
// The zero value is not usable; create instances with NewVirtualMulti.
type VirtualMulti struct {
	ram         map[byte]uint16
	settings    map[byte]uint16
	info        map[byte][]byte
	silentRAM   map[byte]bool
	silentSet   map[byte]bool
	pending     []byte
	noise       []byte
	writes      [][]byte
	slot        byte
	mu          syncutil.Mutex
	connected   bool
	addressed   bool
	corruptSums bool
	mute        bool
}

// NewVirtualMulti creates a simulator with no supported IDs. Every read
// answers the 0xFFFF sentinel until values are configured.
func NewVirtualMulti() *VirtualMulti {
	return &VirtualMulti{
		ram:       make(map[byte]uint16),
		settings:  make(map[byte]uint16),
		info:      make(map[byte][]byte),
		silentRAM: make(map[byte]bool),
		silentSet: make(map[byte]bool),
		slot:      0x58,
		connected: true,
	}
}

// SetRAMVar configures a supported RAM variable value
func (v *VirtualMulti) SetRAMVar(id byte, value uint16) {
	v.mu.Lock()
	v.ram[id] = value
	v.mu.Unlock()
}

// SetSetting configures a supported setting value
func (v *VirtualMulti) SetSetting(id byte, value uint16) {
	v.mu.Lock()
	v.settings[id] = value
	v.mu.Unlock()
}

// Setting returns the current value of a setting and whether it exists.
// Used to assert on the effect of write commands.
func (v *VirtualMulti) Setting(id byte) (uint16, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	val, ok := v.settings[id]
	return val, ok
}

// SetSettingInfo configures the raw metadata payload for a setting
func (v *VirtualMulti) SetSettingInfo(id byte, payload []byte) {
	v.mu.Lock()
	v.info[id] = append([]byte{}, payload...)
	v.mu.Unlock()
}

// SilenceRAMVar makes the device ignore reads of a RAM variable ID
func (v *VirtualMulti) SilenceRAMVar(id byte) {
	v.mu.Lock()
	v.silentRAM[id] = true
	v.mu.Unlock()
}

// SilenceSetting makes the device ignore reads of a setting ID
func (v *VirtualMulti) SilenceSetting(id byte) {
	v.mu.Lock()
	v.silentSet[id] = true
	v.mu.Unlock()
}

// SetMute silences the device entirely when on
func (v *VirtualMulti) SetMute(mute bool) {
	v.mu.Lock()
	v.mute = mute
	v.mu.Unlock()
}

// SetNoise prepends junk bytes to every response, simulating echo and
// stale data on the half-duplex line.
func (v *VirtualMulti) SetNoise(noise []byte) {
	v.mu.Lock()
	v.noise = append([]byte{}, noise...)
	v.mu.Unlock()
}

// SetCorruptChecksums makes every response frame checksum to a wrong
// value, for exercising strict mode.
func (v *VirtualMulti) SetCorruptChecksums(corrupt bool) {
	v.mu.Lock()
	v.corruptSums = corrupt
	v.mu.Unlock()
}

// Addressed reports whether the set-address preamble has been received
func (v *VirtualMulti) Addressed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.addressed
}

// Writes returns copies of all frames received so far
func (v *VirtualMulti) Writes() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.writes))
	copy(out, v.writes)
	return out
}

// Write implements mk3.Port: the simulator decodes the host frame and
// queues its reply for the next ReadAvailable call.
func (v *VirtualMulti) Write(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.connected {
		return mk3.ErrTransportClosed
	}

	in := append([]byte{}, data...)
	v.writes = append(v.writes, in)

	if bytes.Equal(in, setAddressFrame) {
		v.addressed = true
		return nil
	}
	if v.mute {
		return nil
	}
	// Ignore anything that is not a complete, verifiable command frame
	if len(in) < frame.MinFrameLength || in[1] != 0xFF || in[2] != v.slot || !frame.Valid(in) {
		return nil
	}

	subcmd := in[3]
	switch subcmd {
	case cmdReadRAMVar:
		id := in[4]
		if v.silentRAM[id] {
			return nil
		}
		v.queueValue(respReadRAMVar, v.lookup(v.ram, id))
	case cmdReadSetting:
		id := in[4]
		if v.silentSet[id] {
			return nil
		}
		v.queueValue(respReadSetting, v.lookup(v.settings, id))
	case cmdGetSettingInfo:
		id := in[4]
		payload, ok := v.info[id]
		if !ok {
			return nil
		}
		v.queue(respGetSettingInfo, payload)
	case cmdWriteViaID:
		if len(in) < 9 {
			return nil
		}
		id := in[5]
		value := uint16(in[6]) | uint16(in[7])<<8
		v.settings[id] = value
		v.queueValue(respWriteAck, value)
	}
	return nil
}

// lookup returns the stored value or the unsupported sentinel
func (*VirtualMulti) lookup(m map[byte]uint16, id byte) uint16 {
	if val, ok := m[id]; ok {
		return val
	}
	return 0xFFFF
}

// queueValue queues a two-byte little-endian value response
func (v *VirtualMulti) queueValue(subcmd byte, value uint16) {
	v.queue(subcmd, []byte{byte(value), byte(value >> 8)})
}

// queue builds a response frame and appends it, with noise, to the
// pending buffer.
func (v *VirtualMulti) queue(subcmd byte, payload []byte) {
	f := frame.Encode(v.slot, subcmd, payload)
	if v.corruptSums {
		f[len(f)-1] ^= 0xA5
	}
	v.pending = append(v.pending, v.noise...)
	v.pending = append(v.pending, f...)
}

// ReadAvailable implements mk3.Port
func (v *VirtualMulti) ReadAvailable() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.connected {
		return nil, mk3.ErrTransportClosed
	}
	out := v.pending
	v.pending = nil
	return out, nil
}

// SetReadTimeout implements mk3.Port; the simulator answers instantly
func (*VirtualMulti) SetReadTimeout(_ time.Duration) error {
	return nil
}

// Close implements mk3.Port
func (v *VirtualMulti) Close() error {
	v.mu.Lock()
	v.connected = false
	v.mu.Unlock()
	return nil
}

// IsConnected implements mk3.Port
func (v *VirtualMulti) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

// Type implements mk3.Port
func (*VirtualMulti) Type() mk3.PortType {
	return mk3.PortMock
}
