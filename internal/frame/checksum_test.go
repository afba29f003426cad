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

import "testing"

func TestChecksum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0,
		},
		{
			name: "single byte",
			data: []byte{0x01},
			want: 0xFF,
		},
		{
			name: "sum already zero",
			data: []byte{0x80, 0x80},
			want: 0x00,
		},
		{
			name: "read ram var frame",
			data: []byte{0x04, 0xFF, 0x58, 0x30, 0x05},
			want: 0x70,
		},
		{
			name: "set address frame",
			data: []byte{0x04, 0xFF, 0x41, 0x01, 0x00},
			want: 0xBB,
		},
		{
			name: "overflow wraps mod 256",
			data: []byte{0xFF, 0xFF, 0x03},
			want: 0xFF,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		frame []byte
		want  bool
	}{
		{
			name:  "empty frame",
			frame: nil,
			want:  false,
		},
		{
			name:  "well formed frame",
			frame: []byte{0x04, 0xFF, 0x58, 0x30, 0x05, 0x70},
			want:  true,
		},
		{
			name:  "corrupted byte",
			frame: []byte{0x04, 0xFF, 0x58, 0x30, 0x06, 0x70},
			want:  false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Valid(tt.frame); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
