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

// KnownRAMVarNames labels the RAM variable IDs seen polled by
// VEConfigure in protocol captures. Their meaning is still being
// reverse engineered, hence the placeholder names.
var KnownRAMVarNames = map[byte]string{
	0:  "Unknown0 (polled)",
	1:  "Unknown1 (polled)",
	2:  "Unknown2 (polled)",
	4:  "Unknown4 (polled)",
	5:  "Unknown5 (polled)",
	6:  "Unknown6 (polled)",
	7:  "Unknown7 (polled)",
	8:  "Unknown8 (polled)",
	9:  "Unknown9 (polled)",
	11: "Unknown11 (polled)",
	12: "Unknown12 (polled)",
	13: "Unknown13 (polled)",
}

// KnownSettingNames labels setting IDs identified so far. 2 and 3 are
// the charger voltage setpoints confirmed by write captures.
var KnownSettingNames = map[byte]string{
	0:  "Flags/AdaptiveCharge",
	2:  "UBatAbsorption",
	3:  "UBatFloat",
	9:  "AbsorpTime/ChargeParam",
	10: "ChargeCharacteristic",
	60: "Unknown60",
	65: "Unknown65",
	72: "Unknown72",
}

// Well-known setting IDs used by the CLI shortcuts
const (
	// SettingAbsorptionVoltage is the absorption charge voltage, 0.01V units
	SettingAbsorptionVoltage byte = 2
	// SettingFloatVoltage is the float charge voltage, 0.01V units
	SettingFloatVoltage byte = 3
)
