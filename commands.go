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

package mk3

// Winmon sub-command bytes sent to the device
const (
	cmdReadRAMVar     = 0x30
	cmdReadSetting    = 0x31
	cmdWriteViaID     = 0x37
	cmdGetSettingInfo = 0x3C
)

// Winmon response sub-command bytes
const (
	respReadRAMVar     = 0x85
	respReadSetting    = 0x86
	respGetSettingInfo = 0x89
)

// DefaultSlot is the routing byte for the Multi/Quattro device class.
// It is fixed for the session.
const DefaultSlot = 0x58

// setAddressFrame is the out-of-band addressing command sent once per
// session before any Winmon command. It does not use the slot byte and
// its checksum is part of the captured sequence.
var setAddressFrame = []byte{0x04, 0xFF, 0x41, 0x01, 0x00, 0xBB}

// Write flags for WriteSetting. Only the persist flag has been confirmed
// against hardware captures; it writes both the EEPROM and RAM copies so
// the value survives power cycles.
const (
	// WriteFlagPersist writes the setting to EEPROM and RAM
	WriteFlagPersist byte = 0x01
)
