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

import "sort"

// minTopicDensity is the indicator hits per word below which a topic
// does not fire.
const minTopicDensity = 0.01

// topicIndicators maps each topic to the terms that signal it.
var topicIndicators = map[string][]string{
	"introduction":    {"introduction", "overview", "welcome", "outline", "syllabus", "objectives"},
	"concepts":        {"concept", "definition", "theory", "principle", "fundamental", "terminology"},
	"tutorial":        {"tutorial", "exercise", "practice", "walkthrough", "hands-on", "lab", "worksheet"},
	"reference":       {"reference", "api", "specification", "documentation", "glossary", "appendix"},
	"best_practices":  {"best", "practice", "guideline", "recommendation", "convention", "pattern"},
	"troubleshooting": {"error", "debug", "troubleshoot", "fix", "problem", "issue", "pitfall"},
	"architecture":    {"architecture", "design", "component", "structure", "layer", "module"},
	"security":        {"security", "authentication", "encryption", "vulnerability", "attack", "threat"},
	"performance":     {"performance", "optimization", "latency", "throughput", "benchmark", "scaling"},
	"testing":         {"test", "testing", "assertion", "coverage", "mock", "validation"},
	"deployment":      {"deploy", "deployment", "release", "container", "pipeline", "rollout"},
	"configuration":   {"configuration", "config", "setting", "environment", "parameter", "setup"},
	"data":            {"data", "database", "query", "schema", "storage", "dataset"},
	"networking":      {"network", "protocol", "socket", "routing", "packet", "bandwidth"},
	"algorithms":      {"algorithm", "complexity", "sorting", "recursion", "graph", "optimization"},
}

// indicatorTopics is the reverse index, term to topics.
var indicatorTopics = func() map[string][]string {
	idx := make(map[string][]string)
	for topic, terms := range topicIndicators {
		for _, t := range terms {
			idx[t] = append(idx[t], topic)
		}
	}
	return idx
}()

// Topics returns up to max topics whose indicator density in the text
// reaches the floor, strongest first.
func Topics(text string, max int) []string {
	words := tokenize(text)
	if len(words) == 0 {
		return nil
	}

	hits := make(map[string]int)
	for _, w := range words {
		for _, topic := range indicatorTopics[w] {
			hits[topic]++
		}
	}

	type scored struct {
		topic   string
		density float64
	}
	var candidates []scored
	for topic, n := range hits {
		density := float64(n) / float64(len(words))
		if density >= minTopicDensity {
			candidates = append(candidates, scored{topic, density})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].density != candidates[j].density {
			return candidates[i].density > candidates[j].density
		}
		return candidates[i].topic < candidates[j].topic
	})

	if len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.topic
	}
	return out
}
