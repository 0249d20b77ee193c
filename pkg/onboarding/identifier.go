/*
 * Copyright 2026 JegHealth, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package onboarding

import "strings"

// StableIdentifier derives the globally unique profile identifier from the
// device's hardware addresses. The derivation is deterministic so that
// re-onboarding the same physical device, even across sessions, collides at
// the identifier level.
func StableIdentifier(macAddress, bluetoothAddress string) string {
	mac := normalizeAddress(macAddress)
	bt := normalizeAddress(bluetoothAddress)

	switch {
	case mac == "" && bt == "":
		return ""
	case mac == "":
		return "dev_" + bt
	case bt == "" || bt == mac:
		return "dev_" + mac
	default:
		return "dev_" + mac + "_" + bt
	}
}

func normalizeAddress(addr string) string {
	addr = strings.ToLower(addr)
	addr = strings.ReplaceAll(addr, ":", "")
	addr = strings.ReplaceAll(addr, "-", "")

	return strings.TrimSpace(addr)
}
