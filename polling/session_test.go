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

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mk3 "github.com/VEBusProject/go-mk3"
	"github.com/VEBusProject/go-mk3/internal/mk3test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(ids ...byte) *Config {
	return &Config{
		IDs:                    ids,
		PollInterval:           2 * time.Millisecond,
		MaxConsecutiveFailures: 3,
		Recovery:               DefaultRecoveryConfig(),
	}
}

func newPollingDevice(t *testing.T, sim *mk3test.VirtualMulti) *mk3.Device {
	t.Helper()
	device, err := mk3.New(sim, mk3.WithRetryConfig(mk3.FastRetryConfig()))
	require.NoError(t, err)
	return device
}

func TestSessionRequiresIDs(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	session := NewSession(newPollingDevice(t, sim), fastConfig())

	err := session.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, mk3.ErrInvalidParameter)
}

func TestSessionDeliversSamples(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetRAMVar(5, 0x1770)
	session := NewSession(newPollingDevice(t, sim), fastConfig(5))

	samples := make(chan Sample, 16)
	session.OnSample = func(s Sample) {
		select {
		case samples <- s:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Start(ctx) }()

	select {
	case s := <-samples:
		assert.Equal(t, byte(5), s.ID)
		assert.Equal(t, uint16(0x1770), s.Value)
	case <-time.After(time.Second):
		t.Fatal("no sample delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	vs, ok := session.State(5)
	require.True(t, ok)
	assert.True(t, vs.Seen)
	assert.Equal(t, uint16(0x1770), vs.LastValue)
}

func TestSessionReportsChanges(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetRAMVar(0, 2300)
	session := NewSession(newPollingDevice(t, sim), fastConfig(0))

	type change struct {
		previous, current uint16
	}
	changes := make(chan change, 4)
	session.OnChange = func(_ byte, previous, current uint16) {
		select {
		case changes <- change{previous, current}:
		default:
		}
	}
	// Flip the value once the first sample landed
	first := make(chan struct{}, 1)
	session.OnSample = func(Sample) {
		select {
		case first <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Start(ctx) }()

	select {
	case <-first:
		sim.SetRAMVar(0, 2310)
	case <-time.After(time.Second):
		t.Fatal("no initial sample")
	}

	select {
	case c := <-changes:
		assert.Equal(t, uint16(2300), c.previous)
		assert.Equal(t, uint16(2310), c.current)
	case <-time.After(time.Second):
		t.Fatal("change never reported")
	}

	cancel()
	<-done
}

func TestSessionTracksMisses(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetRAMVar(0, 1)
	sim.SilenceRAMVar(9)
	session := NewSession(newPollingDevice(t, sim), fastConfig(0, 9))

	errs := make(chan error, 16)
	session.OnError = func(err error) {
		select {
		case errs <- err:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Start(ctx) }()

	select {
	case err := <-errs:
		assert.True(t, mk3.IsNoAnswer(err))
	case <-time.After(time.Second):
		t.Fatal("silent ID never reported")
	}

	cancel()
	<-done

	vs, ok := session.State(9)
	require.True(t, ok)
	assert.False(t, vs.Seen)
	assert.Positive(t, vs.Misses)
}

func TestSessionCloseStopsLoop(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetRAMVar(0, 1)
	session := NewSession(newPollingDevice(t, sim), fastConfig(0))

	done := make(chan error, 1)
	go func() { done <- session.Start(context.Background()) }()

	require.NoError(t, session.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session did not stop after Close")
	}
}

// stubRecoverer counts recovery attempts and swaps in a replacement
// device on success, mirroring what a real reconnection does
type stubRecoverer struct {
	current     *mk3.Device
	replacement *mk3.Device
	err         error
	attempts    chan struct{}
	mu          sync.Mutex
}

func (r *stubRecoverer) AttemptRecovery(context.Context) error {
	select {
	case r.attempts <- struct{}{}:
	default:
	}
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	if r.replacement != nil {
		r.current = r.replacement
	}
	r.mu.Unlock()
	return nil
}

func (r *stubRecoverer) GetDevice() *mk3.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func TestSessionRecoversFatalError(t *testing.T) {
	t.Parallel()

	// The broken device fails fatally; the recoverer hands out a healthy one
	broken := mk3test.NewVirtualMulti()
	require.NoError(t, broken.Close())

	healthy := mk3test.NewVirtualMulti()
	healthy.SetRAMVar(0, 7)

	brokenDevice := newPollingDevice(t, broken)
	session := NewSession(brokenDevice, fastConfig(0))
	recoverer := &stubRecoverer{
		current:     brokenDevice,
		replacement: newPollingDevice(t, healthy),
		attempts:    make(chan struct{}, 4),
	}
	session.SetRecoverer(recoverer)

	samples := make(chan Sample, 4)
	session.OnSample = func(s Sample) {
		select {
		case samples <- s:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Start(ctx) }()

	select {
	case <-recoverer.attempts:
	case <-time.After(time.Second):
		t.Fatal("recovery never attempted")
	}
	select {
	case s := <-samples:
		assert.Equal(t, uint16(7), s.Value, "samples flow from the recovered device")
	case <-time.After(time.Second):
		t.Fatal("no sample after recovery")
	}

	// Callers that defer a close via GetDevice must see the replacement,
	// not the device the session started on
	assert.Same(t, recoverer.replacement, session.GetDevice())

	cancel()
	<-done
}

func TestSessionFailsWithoutRecoverer(t *testing.T) {
	t.Parallel()

	broken := mk3test.NewVirtualMulti()
	require.NoError(t, broken.Close())
	session := NewSession(newPollingDevice(t, broken), fastConfig(0))

	done := make(chan error, 1)
	go func() { done <- session.Start(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "link lost")
	case <-time.After(time.Second):
		t.Fatal("session did not fail")
	}
}

func TestSessionFailedRecoveryEndsSession(t *testing.T) {
	t.Parallel()

	broken := mk3test.NewVirtualMulti()
	require.NoError(t, broken.Close())
	brokenDevice := newPollingDevice(t, broken)
	session := NewSession(brokenDevice, fastConfig(0))
	session.SetRecoverer(&stubRecoverer{
		current:  brokenDevice,
		err:      errors.New("cable still gone"),
		attempts: make(chan struct{}, 4),
	})

	done := make(chan error, 1)
	go func() { done <- session.Start(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recovery failed")
	case <-time.After(time.Second):
		t.Fatal("session did not fail")
	}
}

func TestDetectSleep(t *testing.T) {
	t.Parallel()

	cfg := DefaultRecoveryConfig()
	assert.False(t, cfg.DetectSleep(time.Second, time.Second))
	assert.True(t, cfg.DetectSleep(10*time.Second, time.Second))

	cfg.Enabled = false
	assert.False(t, cfg.DetectSleep(time.Hour, time.Second))
}
