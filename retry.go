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

import "time"

// RetryConfig configures per-command retry behavior. The link is slow
// (2400 baud) and half-duplex, so the executor writes a frame, sleeps
// SettleDelay to let the device answer, and reads back whatever arrived.
// Failed attempts are separated by Backoff.
type RetryConfig struct {
	// MaxAttempts is the number of write/read attempts per command
	MaxAttempts int
	// SettleDelay is the pause between writing a frame and reading the
	// buffered response
	SettleDelay time.Duration
	// Backoff is the pause between failed attempts
	Backoff time.Duration
}

// DefaultRetryConfig returns the retry configuration proven against
// Multi/Quattro hardware: 3 attempts, 100ms settle, 50ms backoff.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		SettleDelay: 100 * time.Millisecond,
		Backoff:     50 * time.Millisecond,
	}
}
