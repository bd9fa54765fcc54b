// Copyright 2026 Lectern Authors
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

package enrich

import "strings"

// IntentUnknown is returned when no indicator list matches.
const IntentUnknown = "unknown"

// intentRules are checked in order; the first hit wins.
var intentRules = []struct {
	intent     string
	indicators []string
}{
	{"tutorial", []string{
		"step by step", "how to", "exercise", "try it", "walkthrough",
		"follow along", "your turn", "hands-on",
	}},
	{"reference", []string{
		"syntax", "parameters", "returns", "api", "specification",
		"see also", "defined as", "signature",
	}},
	{"overview", []string{
		"introduction", "overview", "summary", "in this lecture",
		"learning objectives", "agenda", "outline",
	}},
}

// Intent classifies the instructional intent of text, IntentUnknown
// when nothing matches.
func Intent(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		for _, ind := range rule.indicators {
			if strings.Contains(lower, ind) {
				return rule.intent
			}
		}
	}
	return IntentUnknown
}
