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

// RecoveryConfig configures automatic recovery after the MK3-USB link
// drops, as happens on cable re-plugs and host sleep/wake cycles.
type RecoveryConfig struct {
	// Enabled enables recovery attempts on fatal link errors
	Enabled bool

	// TimeDiscontinuityThreshold is the minimum elapsed time beyond the
	// expected poll interval that indicates the host slept. A detected
	// sleep triggers a recovery pass before the next poll. Default: 2s
	TimeDiscontinuityThreshold time.Duration

	// MaxAttempts is the number of recovery attempts before the session
	// gives up and returns the error. Default: 3
	MaxAttempts int

	// Backoff is the delay between recovery attempts
	Backoff time.Duration
}

// DefaultRecoveryConfig returns sensible defaults for link recovery
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Enabled:                    true,
		TimeDiscontinuityThreshold: 2 * time.Second,
		MaxAttempts:                3,
		Backoff:                    500 * time.Millisecond,
	}
}

// DetectSleep checks if the elapsed time since the last poll indicates a
// host sleep. Returns true if elapsed exceeds pollInterval plus the
// configured threshold.
func (cfg RecoveryConfig) DetectSleep(elapsed, pollInterval time.Duration) bool {
	if !cfg.Enabled {
		return false
	}
	return elapsed > pollInterval+cfg.TimeDiscontinuityThreshold
}

// Config holds telemetry polling configuration
type Config struct {
	// IDs are the RAM variable IDs polled each cycle, in order
	IDs []byte
	// PollInterval separates poll cycles. The Multi settles noticeably
	// between commands at 2400 baud, so intervals under ~500ms gain
	// nothing. Default: 1s
	PollInterval time.Duration
	// MaxConsecutiveFailures is how many whole-cycle failures are
	// tolerated before a recovery pass is forced. Default: 3
	MaxConsecutiveFailures int
	// Recovery configures link recovery behavior
	Recovery RecoveryConfig
}

// DefaultConfig returns the default polling configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:           time.Second,
		MaxConsecutiveFailures: 3,
		Recovery:               DefaultRecoveryConfig(),
	}
}
