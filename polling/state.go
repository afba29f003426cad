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

package polling

import "time"

// Sample is one successful read of one RAM variable during a poll cycle
type Sample struct {
	// Time is when the read completed
	Time time.Time
	// Value is the raw 16-bit value from the device
	Value uint16
	// ID is the RAM variable ID
	ID byte
}

// VarState tracks the last observed state of one polled RAM variable
type VarState struct {
	// LastSeen is when this variable last answered
	LastSeen time.Time
	// LastValue is the most recent value read
	LastValue uint16
	// Misses counts consecutive cycles where this variable gave no answer
	Misses int
	// Seen is false until the first successful read
	Seen bool
}

// observe folds a successful sample into the state and reports whether
// the value differs from the previously seen one.
func (vs *VarState) observe(s Sample) bool {
	changed := vs.Seen && vs.LastValue != s.Value
	vs.LastValue = s.Value
	vs.LastSeen = s.Time
	vs.Misses = 0
	vs.Seen = true
	return changed
}

// miss records a cycle in which this variable did not answer
func (vs *VarState) miss() {
	vs.Misses++
}
