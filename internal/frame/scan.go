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

// ScanResponse scans buf left to right for the first well-formed Winmon
// response frame carrying the expected sub-command byte and returns it,
// or nil if no complete frame is present.
//
// A candidate starts at offset i when buf[i+1] is the 0xFF marker,
// buf[i+2] is a known slot byte and buf[i+3] equals subcmd. The frame
// spans buf[i : i+buf[i]+2]; candidates whose claimed length runs past
// the end of buf are skipped. The half-duplex link routinely prepends
// echo and stale bytes, which is why the scan cannot assume the frame
// starts at offset 0.
//
// The checksum of the returned frame is intentionally not verified;
// observed hardware occasionally sends frames that do not sum to zero
// and rejecting them loses otherwise good reads. Callers wanting strict
// behavior apply Valid separately.
func ScanResponse(buf []byte, subcmd byte) []byte {
	if len(buf) < MinFrameLength-1 {
		return nil
	}
	for i := 0; i < len(buf)-4; i++ {
		if buf[i+1] != StartMarker || !isSlotMarker(buf[i+2]) || buf[i+3] != subcmd {
			continue
		}
		end := i + int(buf[i]) + 2
		if end <= len(buf) {
			return buf[i:end]
		}
	}
	return nil
}
