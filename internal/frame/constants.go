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

// Package frame implements the Winmon frame codec: outgoing frame
// construction, checksum computation and inbound response scanning.
//
// A Winmon frame is laid out as
//
//	[length, 0xFF, slot, subcmd, payload..., checksum]
//
// where length counts the bytes from the 0xFF marker through the last
// payload byte (total frame size minus 2) and checksum makes the sum of
// all frame bytes equal 0 modulo 256.
package frame

// Frame markers and layout offsets
const (
	// StartMarker follows the length byte in every Winmon frame
	StartMarker = 0xFF

	// MinFrameLength is the smallest complete frame:
	// len + marker + slot + subcmd + one payload byte + checksum
	MinFrameLength = 6

	// PayloadOffset is the index of the first payload byte in a frame
	PayloadOffset = 4
)

// Slot marker bytes observed in device responses. The Multi/Quattro
// answers on 0x58 but related sub-devices use the neighbouring values,
// so the scanner accepts all of them.
var slotMarkers = [...]byte{0x57, 0x58, 0x59, 0x5A}

// isSlotMarker reports whether b is a known response slot byte.
func isSlotMarker(b byte) bool {
	for _, m := range slotMarkers {
		if b == m {
			return true
		}
	}
	return false
}
