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

package classify

import (
	"encoding/json"
	"fmt"
	"os"
)

// Ruleset is the static, versionable classification data: vendor name
// variants, product-name patterns, hardware address prefixes, and the marker
// prefix some providers attach to device type hints. It can be replaced from
// configuration without touching orchestration code.
type Ruleset struct {
	Version         string   `json:"version"`
	Manufacturers   []string `json:"manufacturers"`
	NamePatterns    []string `json:"name_patterns"`
	AddressPrefixes []string `json:"address_prefixes"`
	TypeHintMarker  string   `json:"type_hint_marker"`
}

// LoadRuleset reads a ruleset from a JSON file.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset file: %w", err)
	}

	var rs Ruleset
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset file: %w", err)
	}

	return &rs, nil
}

// DefaultRuleset targets the Apple device ecosystem.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		Version: "2026-01",
		Manufacturers: []string{
			"Apple, Inc.",
			"Apple Inc.",
			"Apple",
		},
		NamePatterns: []string{
			"iPhone",
			"iPad",
			"iPod",
			"Apple Watch",
			"AirPods",
		},
		// Organizationally-unique identifier (OUI) prefixes registered to
		// the vendor. A weak signal: spoofable and randomized on modern
		// devices, hence the lower confidence.
		AddressPrefixes: []string{
			"00:03:93", "00:05:02", "00:0a:27", "00:0a:95", "00:0d:93",
			"00:11:24", "00:14:51", "00:16:cb", "00:17:f2", "00:19:e3",
			"00:1b:63", "00:1c:b3", "00:1e:c2", "00:21:e9", "00:22:41",
			"00:23:12", "00:23:df", "00:25:00", "00:25:4b", "00:25:bc",
			"00:26:08", "00:26:4a", "00:26:bb", "04:0c:ce", "04:15:52",
			"04:1e:64", "04:26:65", "04:48:9a", "04:4b:ed", "04:52:c7",
			"04:54:53", "04:69:f8", "04:7f:0e", "04:81:d4", "04:8d:38",
			"04:90:a5", "04:98:f3", "04:db:56", "04:e5:36", "04:f1:3e",
			"04:f7:e4", "08:00:07", "08:6d:41", "08:74:02", "08:96:d7",
			"08:9e:08", "0c:14:20", "0c:1d:af", "0c:30:21", "0c:4d:e9",
			"0c:5b:8f", "0c:71:33", "0c:74:c2", "0c:77:1a", "0c:d2:92",
			"0c:f0:90",
		},
		TypeHintMarker: "IOS_",
	}
}
