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

// FastRetryConfig returns a retry configuration with near-zero delays.
// It keeps the hardware-proven attempt count but makes tests that
// exercise the full retry budget complete quickly.
func FastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		SettleDelay: time.Millisecond,
		Backoff:     time.Millisecond,
	}
}
