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

// Package polling provides continuous telemetry monitoring on top of the
// mk3 command layer: a Session reads a fixed set of RAM variable IDs on
// an interval, reports values and changes through callbacks, and
// recovers the link when the MK3-USB cable drops or the host sleeps.
package polling

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	mk3 "github.com/VEBusProject/go-mk3"
	"github.com/VEBusProject/go-mk3/internal/syncutil"
)

// Session handles continuous RAM variable monitoring.
//
// Callbacks run on the polling goroutine; a slow callback delays the
// next cycle. Set them before calling Start.
type Session struct {
	// OnSample is called for every successful read
	OnSample func(s Sample)
	// OnChange is called when a variable's value differs from its
	// previously seen value
	OnChange func(id byte, previous, current uint16)
	// OnError is called for per-cycle, non-fatal errors (unanswered IDs,
	// failed recovery attempts that will be retried)
	OnError func(err error)

	device    *mk3.Device
	config    *Config
	recoverer DeviceRecoverer
	vars      map[byte]*VarState
	lastPoll  time.Time
	failures  int
	mu        syncutil.RWMutex
	closed    atomic.Bool
}

// NewSession creates a monitoring session for the given device.
// A nil config selects DefaultConfig.
func NewSession(device *mk3.Device, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	vars := make(map[byte]*VarState, len(config.IDs))
	for _, id := range config.IDs {
		vars[id] = &VarState{}
	}
	return &Session{
		device: device,
		config: config,
		vars:   vars,
	}
}

// SetRecoverer installs the link recoverer used on fatal errors and
// detected sleeps. Without one, fatal errors end the session.
func (s *Session) SetRecoverer(r DeviceRecoverer) {
	s.mu.Lock()
	s.recoverer = r
	s.mu.Unlock()
}

// GetDevice returns the device currently in use. After a successful
// reconnection this may differ from the device passed to NewSession.
func (s *Session) GetDevice() *mk3.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.recoverer != nil {
		return s.recoverer.GetDevice()
	}
	return s.device
}

// State returns a copy of the tracked state for one variable
func (s *Session) State(id byte) (VarState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs, ok := s.vars[id]
	if !ok {
		return VarState{}, false
	}
	return *vs, true
}

// Close stops the session. A Start call in progress returns after its
// current cycle.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Start runs the polling loop until ctx is cancelled, Close is called,
// or an unrecoverable link error occurs. The device must already be
// addressed.
func (s *Session) Start(ctx context.Context) error {
	if len(s.config.IDs) == 0 {
		return fmt.Errorf("polling: %w: no IDs configured", mk3.ErrInvalidParameter)
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.mu.Lock()
	s.lastPoll = time.Now()
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if s.closed.Load() {
				return nil
			}
			if err := s.cycle(ctx, now); err != nil {
				return err
			}
		}
	}
}

// cycle runs one poll pass over all configured IDs
func (s *Session) cycle(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	elapsed := now.Sub(s.lastPoll)
	s.lastPoll = now
	s.mu.Unlock()

	if s.config.Recovery.DetectSleep(elapsed, s.config.PollInterval) {
		if err := s.recover(ctx, fmt.Errorf("time discontinuity of %v", elapsed)); err != nil {
			return err
		}
	}

	device := s.GetDevice()
	answered := 0

	for _, id := range s.config.IDs {
		value, err := device.ReadRAMVar(id)
		if err != nil {
			if mk3.IsFatal(err) {
				if rerr := s.recover(ctx, err); rerr != nil {
					return rerr
				}
				// Restart the cycle on the recovered device next tick
				return nil
			}
			s.recordMiss(id)
			s.reportError(fmt.Errorf("poll id %d: %w", id, err))
			continue
		}
		answered++
		s.recordSample(Sample{ID: id, Value: value, Time: now})
	}

	if answered == 0 {
		s.mu.Lock()
		s.failures++
		failures := s.failures
		s.mu.Unlock()
		if failures >= s.config.MaxConsecutiveFailures {
			return s.recover(ctx, fmt.Errorf("%d consecutive empty poll cycles", failures))
		}
		return nil
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
	return nil
}

// recover runs the configured recoverer, resetting the failure counter
// on success. The triggering cause is reported through OnError either
// way.
func (s *Session) recover(ctx context.Context, cause error) error {
	s.reportError(cause)

	s.mu.RLock()
	recoverer := s.recoverer
	s.mu.RUnlock()

	if !s.config.Recovery.Enabled || recoverer == nil {
		return fmt.Errorf("polling: link lost: %w", cause)
	}
	if err := recoverer.AttemptRecovery(ctx); err != nil {
		return fmt.Errorf("polling: recovery failed: %w", err)
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
	return nil
}

func (s *Session) recordSample(sample Sample) {
	s.mu.Lock()
	vs, ok := s.vars[sample.ID]
	if !ok {
		vs = &VarState{}
		s.vars[sample.ID] = vs
	}
	previous := vs.LastValue
	changed := vs.observe(sample)
	s.mu.Unlock()

	if s.OnSample != nil {
		s.OnSample(sample)
	}
	if changed && s.OnChange != nil {
		s.OnChange(sample.ID, previous, sample.Value)
	}
}

func (s *Session) recordMiss(id byte) {
	s.mu.Lock()
	if vs, ok := s.vars[id]; ok {
		vs.miss()
	}
	s.mu.Unlock()
}

func (s *Session) reportError(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}
