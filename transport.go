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

import (
	"errors"
	"sync"
	"time"
)

// Port defines the interface to the half-duplex byte stream behind an
// MK3-USB interface. The serial backend lives in transport/serial; tests
// use MockPort or the simulator in internal/mk3test.
//
// The link cannot process overlapping requests, so a Port is driven by
// exactly one Device at a time: write a frame, wait, read whatever the
// device buffered.
type Port interface {
	// Write sends raw frame bytes to the device
	Write(data []byte) error

	// ReadAvailable returns all currently buffered bytes from the device,
	// or nil if nothing arrived within the configured read timeout
	ReadAvailable() ([]byte, error)

	// SetReadTimeout sets the read timeout for ReadAvailable
	SetReadTimeout(timeout time.Duration) error

	// Close closes the port connection
	Close() error

	// IsConnected returns true if the port is open
	IsConnected() bool

	// Type returns the port type
	Type() PortType
}

// PortType represents the type of port backend
type PortType string

const (
	// PortSerial represents a real serial port (MK3-USB cable).
	PortSerial PortType = "serial"
	// PortMock represents a mock port for testing
	PortMock PortType = "mock"
)

// MockPort provides a scripted implementation of Port for testing.
// A handler function maps each written frame to the bytes the next
// ReadAvailable call will return; nil means the device stays silent.
type MockPort struct {
	handler    func(frame []byte) []byte
	writeErr   error
	readErr    error
	pending    []byte
	writes     [][]byte
	timeout    time.Duration
	mu         sync.Mutex
	connected  bool
	writeCount int
}

// NewMockPort creates a new mock port
func NewMockPort() *MockPort {
	return &MockPort{
		connected: true,
		timeout:   500 * time.Millisecond,
	}
}

// SetHandler installs the frame handler deciding each response
func (m *MockPort) SetHandler(handler func(frame []byte) []byte) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// SetResponse configures a fixed response for every written frame
func (m *MockPort) SetResponse(response []byte) {
	m.SetHandler(func([]byte) []byte { return response })
}

// SetWriteError injects an error returned by Write
func (m *MockPort) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// SetReadError injects an error returned by ReadAvailable
func (m *MockPort) SetReadError(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// Write implements Port
func (m *MockPort) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrTransportClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}

	frame := make([]byte, len(data))
	copy(frame, data)
	m.writes = append(m.writes, frame)
	m.writeCount++

	if m.handler != nil {
		if resp := m.handler(frame); resp != nil {
			m.pending = append(m.pending, resp...)
		}
	}
	return nil
}

// ReadAvailable implements Port
func (m *MockPort) ReadAvailable() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrTransportClosed
	}
	if m.readErr != nil {
		return nil, m.readErr
	}

	out := m.pending
	m.pending = nil
	return out, nil
}

// SetReadTimeout implements Port
func (m *MockPort) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Close implements Port
func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errors.New("already closed")
	}
	m.connected = false
	return nil
}

// IsConnected implements Port
func (m *MockPort) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type implements Port
func (*MockPort) Type() PortType {
	return PortMock
}

// Test helper methods

// WriteCount returns how many frames have been written
func (m *MockPort) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeCount
}

// Writes returns copies of all frames written so far
func (m *MockPort) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// Reset clears the write log and reopens the port
func (m *MockPort) Reset() {
	m.mu.Lock()
	m.writes = nil
	m.writeCount = 0
	m.pending = nil
	m.connected = true
	m.mu.Unlock()
}
