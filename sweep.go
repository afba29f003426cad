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
	"context"
	"errors"
	"fmt"
	"time"
)

// SentinelUnsupported is the protocol-level value meaning "ID not
// implemented by this device". It is a valid answer, not an error.
const SentinelUnsupported uint16 = 0xFFFF

// Classification is the per-ID outcome of a sweep
type Classification int

const (
	// Supported means at least one read returned a live value
	Supported Classification = iota
	// UnsupportedSentinel means every successful read returned 0xFFFF
	UnsupportedSentinel
	// NoResponse means no read produced a response frame
	NoResponse
)

// String returns the classification name used in reports
func (c Classification) String() string {
	switch c {
	case Supported:
		return "supported"
	case UnsupportedSentinel:
		return "unsupported"
	case NoResponse:
		return "no_response"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// Classify maps the ordered sequence of successful reads for one ID to
// its Classification. It is a pure function: no reads means no response;
// all-sentinel reads mean the device answered "not implemented"; any
// other value makes the ID supported even if some reads were transient
// sentinels.
func Classify(values []uint16) Classification {
	if len(values) == 0 {
		return NoResponse
	}
	for _, v := range values {
		if v != SentinelUnsupported {
			return Supported
		}
	}
	return UnsupportedSentinel
}

// SweepResult is the per-ID outcome of a sweep pass. It is created once
// during the pass and never mutated afterwards. Values carries the full
// ordered read sequence for supported IDs, including any transient
// 0xFFFF outliers, so callers can analyse variance. Info holds the raw
// GetSettingInfo payload for supported settings when requested.
type SweepResult struct {
	Name           string
	Values         []uint16
	Info           []byte
	ID             byte
	Classification Classification
}

// Changed reports whether repeated reads observed different values,
// which marks live-changing telemetry.
func (r SweepResult) Changed() bool {
	if len(r.Values) < 2 {
		return false
	}
	for _, v := range r.Values[1:] {
		if v != r.Values[0] {
			return true
		}
	}
	return false
}

// Latest returns the most recent read value for a supported ID
func (r SweepResult) Latest() uint16 {
	if len(r.Values) == 0 {
		return 0
	}
	return r.Values[len(r.Values)-1]
}

// SweepOptions configures a sweep over the 0-255 ID space
type SweepOptions struct {
	// Progress, when non-nil, is called after each ID is classified
	Progress func(result SweepResult)
	// ReadsPerID is the number of independent reads per ID (default 1).
	// More than one read catches live-changing values.
	ReadsPerID int
	// ReadSpacing separates repeated reads of the same ID (default 200ms)
	ReadSpacing time.Duration
	// FirstID and LastID bound the swept ID range, inclusive. The zero
	// values select the full 0-255 space.
	FirstID byte
	LastID  byte
	// FetchInfo attaches the raw GetSettingInfo payload to supported
	// settings. Ignored for RAM variable sweeps.
	FetchInfo bool
}

func (o *SweepOptions) withDefaults() SweepOptions {
	out := SweepOptions{}
	if o != nil {
		out = *o
	}
	if out.ReadsPerID <= 0 {
		out.ReadsPerID = 1
	}
	if out.ReadSpacing <= 0 {
		out.ReadSpacing = 200 * time.Millisecond
	}
	if out.LastID == 0 {
		out.LastID = 0xFF
	}
	return out
}

// SweepRAMVars reads every RAM variable ID from 0 through 255 and
// classifies each as supported, unsupported or unresponsive. Per-ID
// failures never abort the sweep; ctx cancellation and a vanished port
// do.
func (d *Device) SweepRAMVars(ctx context.Context, opts *SweepOptions) (map[byte]SweepResult, error) {
	return d.sweep(ctx, opts, d.ReadRAMVar, nil, KnownRAMVarNames)
}

// SweepSettings reads every setting ID from 0 through 255 and classifies
// each. With FetchInfo set, supported IDs additionally get their raw
// GetSettingInfo payload attached; metadata failures are non-fatal and
// leave Info nil.
func (d *Device) SweepSettings(ctx context.Context, opts *SweepOptions) (map[byte]SweepResult, error) {
	o := opts.withDefaults()
	var info func(id byte) ([]byte, error)
	if o.FetchInfo {
		info = d.SettingInfo
	}
	return d.sweep(ctx, &o, d.ReadSetting, info, KnownSettingNames)
}

// sweep is the orchestration shared by RAM variable and setting sweeps,
// parameterized by the per-ID read function. IDs are visited in
// ascending order; order matters only for progress reporting.
func (d *Device) sweep(
	ctx context.Context,
	opts *SweepOptions,
	read func(id byte) (uint16, error),
	info func(id byte) ([]byte, error),
	names map[byte]string,
) (map[byte]SweepResult, error) {
	o := opts.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	results := make(map[byte]SweepResult, int(o.LastID)-int(o.FirstID)+1)

	for id := int(o.FirstID); id <= int(o.LastID); id++ {
		select {
		case <-ctx.Done():
			return results, fmt.Errorf("sweep aborted at id %d: %w", id, ctx.Err())
		default:
		}

		values := make([]uint16, 0, o.ReadsPerID)
		for n := 0; n < o.ReadsPerID; n++ {
			if n > 0 {
				time.Sleep(o.ReadSpacing)
			}
			value, err := read(byte(id))
			if err != nil {
				if IsFatal(err) {
					return results, fmt.Errorf("sweep aborted at id %d: %w", id, err)
				}
				// No frame for this read; the ID may still answer later
				continue
			}
			values = append(values, value)
		}

		result := SweepResult{
			ID:             byte(id),
			Classification: Classify(values),
		}
		if result.Classification == Supported {
			result.Values = values
			result.Name = names[byte(id)]
			if info != nil {
				if raw, err := info(byte(id)); err == nil {
					result.Info = raw
				} else if IsFatal(err) {
					results[byte(id)] = result
					return results, fmt.Errorf("sweep aborted at id %d: %w", id, err)
				}
				// Metadata failures are non-fatal; Info stays nil
			}
		}
		results[byte(id)] = result

		if o.Progress != nil {
			o.Progress(result)
		}
	}

	return results, nil
}

// CountByClassification tallies a result map for summary reporting
func CountByClassification(results map[byte]SweepResult) (supported, unsupported, noResponse int) {
	for _, r := range results {
		switch r.Classification {
		case Supported:
			supported++
		case UnsupportedSentinel:
			unsupported++
		case NoResponse:
			noResponse++
		}
	}
	return supported, unsupported, noResponse
}

// IsNoAnswer reports whether err is one of the per-ID outcomes a sweep
// records as NoResponse: silence, bytes without a frame boundary, or a
// retry budget spent on discarded frames. None of these are
// distinguished at the classification level.
func IsNoAnswer(err error) bool {
	return errors.Is(err, ErrNoResponse) ||
		errors.Is(err, ErrMalformedFrame) ||
		errors.Is(err, ErrResponseTooShort) ||
		errors.Is(err, ErrChecksumMismatch)
}
