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

import (
	"bytes"
	"testing"
)

func TestScanResponse(t *testing.T) {
	t.Parallel()

	// 05 FF 58 85 <lo> <hi> <chk> — a ReadRAMVar response carrying 0x1770
	ramVarResp := []byte{0x05, 0xFF, 0x58, 0x85, 0x70, 0x17, 0x98}

	tests := []struct {
		name   string
		buf    []byte
		want   []byte
		subcmd byte
	}{
		{
			name:   "frame at offset zero",
			buf:    ramVarResp,
			subcmd: 0x85,
			want:   ramVarResp,
		},
		{
			name:   "frame after leading noise",
			buf:    append([]byte{0x00, 0x12, 0xAB}, ramVarResp...),
			subcmd: 0x85,
			want:   ramVarResp,
		},
		{
			name:   "frame followed by trailing bytes",
			buf:    append(append([]byte{}, ramVarResp...), 0x00, 0x00),
			subcmd: 0x85,
			want:   ramVarResp,
		},
		{
			name:   "wrong subcmd only",
			buf:    ramVarResp,
			subcmd: 0x86,
			want:   nil,
		},
		{
			name:   "alternate slot marker accepted",
			buf:    []byte{0x05, 0xFF, 0x5A, 0x86, 0x34, 0x12, 0x00},
			subcmd: 0x86,
			want:   []byte{0x05, 0xFF, 0x5A, 0x86, 0x34, 0x12, 0x00},
		},
		{
			name:   "unknown slot marker rejected",
			buf:    []byte{0x05, 0xFF, 0x41, 0x85, 0x34, 0x12, 0x00},
			subcmd: 0x85,
			want:   nil,
		},
		{
			name:   "truncated frame skipped",
			buf:    []byte{0x05, 0xFF, 0x58, 0x85, 0x70},
			subcmd: 0x85,
			want:   nil,
		},
		{
			name:   "claimed length past buffer end",
			buf:    []byte{0x20, 0xFF, 0x58, 0x85, 0x70, 0x17, 0x98},
			subcmd: 0x85,
			want:   nil,
		},
		{
			name:   "empty buffer",
			buf:    nil,
			subcmd: 0x85,
			want:   nil,
		},
		{
			name:   "buffer shorter than minimum",
			buf:    []byte{0x05, 0xFF, 0x58, 0x85},
			subcmd: 0x85,
			want:   nil,
		},
		{
			name: "first of two frames returned",
			buf: append(append([]byte{}, ramVarResp...),
				0x05, 0xFF, 0x58, 0x85, 0x01, 0x00, 0x00),
			subcmd: 0x85,
			want:   ramVarResp,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ScanResponse(tt.buf, tt.subcmd)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ScanResponse() = % 02X, want % 02X", got, tt.want)
			}
		})
	}
}

// The scanner must tolerate a bad checksum: the frame boundary is decided
// by the markers and length byte alone.
func TestScanResponseIgnoresChecksum(t *testing.T) {
	t.Parallel()
	corrupt := []byte{0x05, 0xFF, 0x58, 0x85, 0x70, 0x17, 0x00}
	got := ScanResponse(corrupt, 0x85)
	if !bytes.Equal(got, corrupt) {
		t.Errorf("ScanResponse() = % 02X, want the corrupt frame back", got)
	}
	if Valid(got) {
		t.Error("test frame unexpectedly has a valid checksum")
	}
}
