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

package mk3_test

import (
	"context"
	"testing"
	"time"

	mk3 "github.com/VEBusProject/go-mk3"
	"github.com/VEBusProject/go-mk3/internal/mk3test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVirtualDevice(t *testing.T, sim *mk3test.VirtualMulti, opts ...mk3.Option) *mk3.Device {
	t.Helper()
	opts = append([]mk3.Option{mk3.WithRetryConfig(mk3.FastRetryConfig())}, opts...)
	device, err := mk3.New(sim, opts...)
	require.NoError(t, err)
	return device
}

func fastOpts() *mk3.SweepOptions {
	return &mk3.SweepOptions{
		FirstID:     0,
		LastID:      7,
		ReadsPerID:  2,
		ReadSpacing: time.Nanosecond,
	}
}

func TestVirtualAddressing(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	device := newVirtualDevice(t, sim)

	assert.False(t, sim.Addressed())
	require.NoError(t, device.SetAddress())
	assert.True(t, sim.Addressed())
}

func TestVirtualReads(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetRAMVar(5, 0x1770)
	sim.SetSetting(mk3.SettingAbsorptionVoltage, 5580)
	device := newVirtualDevice(t, sim)
	require.NoError(t, device.SetAddress())

	value, err := device.ReadRAMVar(5)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1770), value)

	value, err = device.ReadSetting(mk3.SettingAbsorptionVoltage)
	require.NoError(t, err)
	assert.Equal(t, uint16(5580), value)

	// An unconfigured ID answers the protocol sentinel, not an error
	value, err = device.ReadRAMVar(200)
	require.NoError(t, err)
	assert.Equal(t, mk3.SentinelUnsupported, value)
}

func TestVirtualSilentIDExhaustsRetries(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SilenceRAMVar(9)
	device := newVirtualDevice(t, sim)

	_, err := device.ReadRAMVar(9)
	require.Error(t, err)
	assert.True(t, mk3.IsNoAnswer(err))

	// Three read attempts for ID 9, nothing else
	assert.Len(t, sim.Writes(), 3)
}

func TestVirtualWriteRoundTrip(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetSetting(mk3.SettingFloatVoltage, 5400)
	device := newVirtualDevice(t, sim)

	err := device.WriteSetting(mk3.SettingFloatVoltage, mk3.WriteFlagPersist, 5520)
	require.NoError(t, err)

	stored, ok := sim.Setting(mk3.SettingFloatVoltage)
	require.True(t, ok)
	assert.Equal(t, uint16(5520), stored)

	// Read back through the device too
	value, err := device.ReadSetting(mk3.SettingFloatVoltage)
	require.NoError(t, err)
	assert.Equal(t, uint16(5520), value)
}

func TestVirtualSettingInfo(t *testing.T) {
	t.Parallel()

	payload := []byte{0x01, 0x00, 0x00, 0x00, 0xB4, 0x89, 0x00, 0x00, 0xFC, 0x6F, 0x00}
	sim := mk3test.NewVirtualMulti()
	sim.SetSetting(0, 1)
	sim.SetSettingInfo(0, payload)
	device := newVirtualDevice(t, sim)

	info, err := device.SettingInfo(0)
	require.NoError(t, err)
	// Raw payload plus the frame checksum byte
	require.GreaterOrEqual(t, len(info), len(payload))
	assert.Equal(t, payload, info[:len(payload)])
}

func TestVirtualSweepSettings(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetSetting(2, 5580)
	sim.SetSetting(3, 5520)
	sim.SetSettingInfo(2, []byte{0x01, 0x02, 0x03})
	sim.SilenceSetting(4)
	device := newVirtualDevice(t, sim)
	require.NoError(t, device.SetAddress())

	opts := fastOpts()
	opts.FetchInfo = true
	results, err := device.SweepSettings(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, results, 8)

	assert.Equal(t, mk3.Supported, results[2].Classification)
	assert.Equal(t, []uint16{5580, 5580}, results[2].Values)
	assert.NotEmpty(t, results[2].Info)

	assert.Equal(t, mk3.Supported, results[3].Classification)
	// ID 3 has no metadata configured; the sweep carries on regardless
	assert.Nil(t, results[3].Info)

	assert.Equal(t, mk3.NoResponse, results[4].Classification)

	supported, unsupported, noResponse := mk3.CountByClassification(results)
	assert.Equal(t, 2, supported)
	assert.Equal(t, 5, unsupported)
	assert.Equal(t, 1, noResponse)
}

func TestVirtualSweepRAMVarsWithNoise(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetRAMVar(0, 2300)
	sim.SetRAMVar(4, 5000)
	sim.SetNoise([]byte{0x00, 0xFF, 0x19})
	device := newVirtualDevice(t, sim)

	results, err := device.SweepRAMVars(context.Background(), fastOpts())
	require.NoError(t, err)

	assert.Equal(t, mk3.Supported, results[0].Classification)
	assert.Equal(t, []uint16{2300, 2300}, results[0].Values)
	assert.Equal(t, mk3.Supported, results[4].Classification)
	assert.Equal(t, mk3.UnsupportedSentinel, results[1].Classification)
}

func TestVirtualCorruptChecksums(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetRAMVar(0, 1234)
	sim.SetCorruptChecksums(true)

	// Default mode shrugs off the bad sums
	device := newVirtualDevice(t, sim)
	value, err := device.ReadRAMVar(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), value)

	// Strict mode refuses them
	strict := newVirtualDevice(t, sim, mk3.WithStrictChecksum())
	_, err = strict.ReadRAMVar(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, mk3.ErrChecksumMismatch)
	assert.True(t, mk3.IsNoAnswer(err))
}

func TestVirtualMutedDeviceSweep(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetMute(true)
	device := newVirtualDevice(t, sim)

	opts := fastOpts()
	opts.LastID = 2
	results, err := device.SweepRAMVars(context.Background(), opts)
	require.NoError(t, err, "a dead-silent device is a classification outcome, not a failure")

	_, _, noResponse := mk3.CountByClassification(results)
	assert.Equal(t, 3, noResponse)
}

func TestVirtualClosedPortAbortsSweep(t *testing.T) {
	t.Parallel()

	sim := mk3test.NewVirtualMulti()
	sim.SetRAMVar(0, 1)
	device := newVirtualDevice(t, sim)
	require.NoError(t, sim.Close())

	_, err := device.SweepRAMVars(context.Background(), fastOpts())
	require.Error(t, err)
	assert.True(t, mk3.IsFatal(err))
}
