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

// Encode builds a complete outgoing Winmon frame for the given slot,
// sub-command and payload, including the trailing checksum. The length
// byte covers the marker, slot, sub-command and payload (3 + payload).
func Encode(slot, subcmd byte, payload []byte) []byte {
	f := make([]byte, 0, 5+len(payload))
	f = append(f, byte(3+len(payload)), StartMarker, slot, subcmd)
	f = append(f, payload...)
	return append(f, Checksum(f))
}
