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

package frame

import "testing"

// Fuzz tests guard the scanner against panics on malformed input. The
// half-duplex link delivers echo, stale and truncated bytes routinely,
// so every slice below is something the hardware could plausibly send.
//
// Run with: go test -fuzz=FuzzScanResponse -fuzztime=30s ./internal/frame/

// FuzzScanResponse feeds arbitrary buffers to the scanner. Any returned
// frame must lie fully within the input and start at a marker match.
func FuzzScanResponse(f *testing.F) {
	// Valid response frames
	f.Add([]byte{0x05, 0xFF, 0x58, 0x85, 0x70, 0x17, 0x98}, byte(0x85))
	f.Add([]byte{0x05, 0xFF, 0x58, 0x86, 0xB4, 0x89, 0x00}, byte(0x86))
	f.Add([]byte{0x0E, 0xFF, 0x58, 0x89, 0x01, 0x00, 0x00, 0x00, 0xB4, 0x89, 0x00, 0x00, 0xFC, 0x6F, 0x00, 0x00}, byte(0x89))

	// Edge cases
	f.Add([]byte{}, byte(0x85))
	f.Add([]byte{0xFF}, byte(0x85))
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, byte(0x85))
	f.Add([]byte{0x00, 0xFF, 0x58, 0x85}, byte(0x85))
	f.Add([]byte{0xFF, 0xFF, 0x58, 0x85, 0x00, 0x00}, byte(0x85))

	// Oversized claimed length
	f.Add([]byte{0xFE, 0xFF, 0x58, 0x85, 0x00, 0x00, 0x00}, byte(0x85))

	f.Fuzz(func(t *testing.T, buf []byte, subcmd byte) {
		got := ScanResponse(buf, subcmd)
		if got == nil {
			return
		}
		if len(got) > len(buf) {
			t.Errorf("returned frame longer than input: %d > %d", len(got), len(buf))
		}
		if len(got) < 4 {
			t.Errorf("returned frame too short to contain markers: % 02X", got)
		} else if got[1] != StartMarker || got[3] != subcmd {
			t.Errorf("returned frame does not match markers: % 02X", got)
		}
	})
}

// FuzzEncode checks that encoding is deterministic and always produces a
// frame that checksums to zero.
func FuzzEncode(f *testing.F) {
	f.Add(byte(0x58), byte(0x30), []byte{0x05})
	f.Add(byte(0x58), byte(0x37), []byte{0x01, 0x02, 0xE0, 0x15})
	f.Add(byte(0x41), byte(0x01), []byte{0x00})
	f.Add(byte(0x00), byte(0x00), []byte{})

	f.Fuzz(func(t *testing.T, slot, subcmd byte, payload []byte) {
		if len(payload) > 252 {
			// Length byte cannot span more payload than this
			return
		}
		got := Encode(slot, subcmd, payload)
		if !Valid(got) {
			t.Errorf("Encode produced frame with nonzero sum: % 02X", got)
		}
		if int(got[0]) != len(got)-2 {
			t.Errorf("length byte %d does not span frame of %d bytes", got[0], len(got))
		}
	})
}
