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

package vector

import (
	"fmt"

	"github.com/lectern-ai/lectern/pkg/config"
)

// NewProvider creates a vector provider from config.
func NewProvider(cfg config.VectorStoreConfig) (Provider, error) {
	switch cfg.Type {
	case "chromem":
		return NewChromemProvider(cfg.PersistPath)
	case "qdrant":
		return NewQdrantProvider(QdrantConfig{
			Host:   cfg.Host,
			Port:   cfg.Port,
			APIKey: cfg.APIKey,
			UseTLS: cfg.UseTLS,
		})
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}
