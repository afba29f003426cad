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

// Package serial implements the mk3.Port interface on a real serial
// port, typically the FTDI device exposed by an MK3-USB interface cable.
// The Winmon side of the link runs at 2400 baud, 8 data bits, no parity,
// one stop bit.
package serial

import (
	"fmt"
	"time"

	mk3 "github.com/VEBusProject/go-mk3"
	"github.com/VEBusProject/go-mk3/internal/syncutil"
	"go.bug.st/serial"
)

const (
	baudRate = 2400

	// defaultReadTimeout bounds the first read of a response
	defaultReadTimeout = 500 * time.Millisecond

	// drainTimeout bounds follow-up reads that collect bytes already in
	// flight once the first chunk has arrived. At 2400 baud a byte takes
	// about 4ms on the wire, so 50ms covers any inter-byte gap.
	drainTimeout = 50 * time.Millisecond
)

// Port implements mk3.Port over a serial device
type Port struct {
	port     serial.Port
	portName string
	timeout  time.Duration
	mu       syncutil.Mutex
}

// New opens the named serial port with Winmon framing. An open failure
// is permanent: the caller should surface it immediately rather than
// retry.
func New(portName string) (*Port, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, mk3.NewTransportError(
			"open", portName,
			fmt.Errorf("%w: %w", mk3.ErrPortUnavailable, err),
			mk3.ErrorTypePermanent,
		)
	}

	if err := port.SetReadTimeout(defaultReadTimeout); err != nil {
		_ = port.Close()
		return nil, mk3.NewTransportError(
			"open", portName,
			fmt.Errorf("set read timeout: %w", err),
			mk3.ErrorTypePermanent,
		)
	}

	return &Port{
		port:     port,
		portName: portName,
		timeout:  defaultReadTimeout,
	}, nil
}

// Write sends raw frame bytes and waits for the output buffer to drain,
// so the settle delay that follows measures from the last byte on the
// wire rather than from the write syscall.
func (p *Port) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return mk3.NewTransportError("write", p.portName, mk3.ErrTransportClosed, mk3.ErrorTypePermanent)
	}

	n, err := p.port.Write(data)
	if err != nil {
		return mk3.NewTransportError("write", p.portName,
			fmt.Errorf("%w: %w", mk3.ErrTransportWrite, err), mk3.ErrorTypeTransient)
	}
	if n != len(data) {
		return mk3.NewTransportError("write", p.portName,
			fmt.Errorf("%w: short write %d of %d bytes", mk3.ErrTransportWrite, n, len(data)),
			mk3.ErrorTypeTransient)
	}

	if err := p.port.Drain(); err != nil {
		return mk3.NewTransportError("drain", p.portName,
			fmt.Errorf("%w: %w", mk3.ErrTransportWrite, err), mk3.ErrorTypeTransient)
	}
	return nil
}

// ReadAvailable reads everything the device has sent. The first read
// blocks up to the configured timeout; once bytes arrive, short
// follow-up reads collect the rest of the burst until the line goes
// quiet. Returns nil without error when the device stays silent.
func (p *Port) ReadAvailable() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return nil, mk3.NewTransportError("read", p.portName, mk3.ErrTransportClosed, mk3.ErrorTypePermanent)
	}

	chunk := make([]byte, 64)
	n, err := p.port.Read(chunk)
	if err != nil {
		return nil, mk3.NewTransportError("read", p.portName,
			fmt.Errorf("%w: %w", mk3.ErrTransportRead, err), mk3.ErrorTypeTransient)
	}
	if n == 0 {
		// Timeout with no data
		return nil, nil
	}

	buf := append([]byte{}, chunk[:n]...)

	// Collect the remainder of the burst with a short timeout, then
	// restore the configured one.
	if err := p.port.SetReadTimeout(drainTimeout); err == nil {
		for {
			n, err = p.port.Read(chunk)
			if err != nil || n == 0 {
				break
			}
			buf = append(buf, chunk[:n]...)
		}
		_ = p.port.SetReadTimeout(p.timeout)
	}

	return buf, nil
}

// SetReadTimeout sets the timeout for the first read of a response
func (p *Port) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return mk3.NewTransportError("set timeout", p.portName, mk3.ErrTransportClosed, mk3.ErrorTypePermanent)
	}
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return mk3.NewTransportError("set timeout", p.portName, err, mk3.ErrorTypeTransient)
	}
	p.timeout = timeout
	return nil
}

// Close closes the port. Safe to call once; the handle is nilled so
// later operations fail with ErrTransportClosed instead of touching a
// released descriptor.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	if err != nil {
		return mk3.NewTransportError("close", p.portName, err, mk3.ErrorTypePermanent)
	}
	return nil
}

// IsConnected returns true if the port is open
func (p *Port) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port != nil
}

// Type returns the port type
func (*Port) Type() mk3.PortType {
	return mk3.PortSerial
}

// Name returns the underlying device path
func (p *Port) Name() string {
	return p.portName
}
