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

// Checksum computes the Winmon checksum for a partial frame.
// The returned byte, appended to data, makes the total sum 0 mod 256.
func Checksum(data []byte) byte {
	sum := byte(0)
	for _, b := range data {
		sum += b
	}
	return -sum
}

// Valid reports whether a complete frame checksums to 0 mod 256.
// The device is tolerated when it sends a bad checksum (see ScanResponse),
// so this is only consulted in strict mode.
func Valid(f []byte) bool {
	if len(f) == 0 {
		return false
	}
	sum := byte(0)
	for _, b := range f {
		sum += b
	}
	return sum == 0
}
