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

// Package interp guesses what a raw 16-bit Winmon value might represent.
// It is a stateless best-effort annotator with no protocol semantics:
// each guess is a tagged candidate carrying the unit, the scaled value
// and a display label, so reporting layers can format the candidates
// however they like. A value can plausibly match several units at once
// and the package makes no attempt to pick a winner.
package interp

import "fmt"

// Unit tags a candidate interpretation
type Unit string

// Units a raw value is tested against. Scales follow the conventions
// observed on Victron equipment: centivolts for battery voltage,
// deciamps for current, centihertz for frequency, kelvin times 100 for
// temperature.
const (
	UnitBatteryVolts Unit = "V"
	UnitAmps         Unit = "A"
	UnitPercent      Unit = "%"
	UnitCelsius      Unit = "degC"
	UnitHertz        Unit = "Hz"
	UnitACVolts      Unit = "Vac"
	UnitWatts        Unit = "W"
)

// Candidate is one possible reading of a raw value
type Candidate struct {
	// Unit is the guessed physical unit
	Unit Unit
	// Label is a short human-readable rendering, e.g. "54.20V?"
	Label string
	// Value is the scaled reading in Unit
	Value float64
}

// Signed reinterprets a raw 16-bit value as two's-complement
func Signed(value uint16) int16 {
	return int16(value)
}

// Guess returns the plausible interpretations of a raw value, most
// specific ranges first. There is always at least one candidate: small
// values read as percentages and large unmatched ones as watts.
func Guess(value uint16) []Candidate {
	var out []Candidate
	signed := Signed(value)

	// 48V battery voltage range, 0.01V units (40.00V - 65.00V)
	if value >= 4000 && value <= 6500 {
		out = appendCandidate(out, UnitBatteryVolts, float64(value)/100, "%.2fV?")
	}

	// Current in 0.1A units; skip tiny integers that are more likely
	// enumerations than currents
	if value > 5 && value <= 5000 {
		out = appendCandidate(out, UnitAmps, float64(value)/10, "%.1fA?")
	}

	// Signed current: charging positive, discharging negative
	if signed < 0 && signed >= -5000 {
		out = appendCandidate(out, UnitAmps, float64(signed)/10, "%.1fA?")
	}

	// Percentage
	if value <= 100 {
		out = appendCandidate(out, UnitPercent, float64(value), "%.0f%%?")
	}

	// Temperature as kelvin * 100
	if value >= 27000 && value <= 32000 {
		out = appendCandidate(out, UnitCelsius, float64(value)/100-273.15, "%.1fdegC?")
	}

	// Mains/inverter frequency, 0.01Hz units (49.00 - 61.00 Hz)
	if value >= 4900 && value <= 6100 {
		out = appendCandidate(out, UnitHertz, float64(value)/100, "%.2fHz?")
	}

	// AC voltage at either scale
	if value >= 2100 && value <= 2500 {
		out = appendCandidate(out, UnitACVolts, float64(value)/10, "%.1fVac?")
	}
	if value >= 21000 && value <= 25000 {
		out = appendCandidate(out, UnitACVolts, float64(value)/100, "%.1fVac?")
	}

	// Power in watts, only when nothing better matched
	if value > 100 && len(out) == 0 {
		out = appendCandidate(out, UnitWatts, float64(value), "%.0fW?")
	}

	return out
}

func appendCandidate(out []Candidate, unit Unit, value float64, format string) []Candidate {
	return append(out, Candidate{
		Unit:  unit,
		Value: value,
		Label: fmt.Sprintf(format, value),
	})
}
