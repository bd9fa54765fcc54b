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

// Package config defines the YAML configuration for the whole system.
// Every section implements SetDefaults and Validate; loading fails fast
// on any invalid value.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
//
// Example:
//
//	source:
//	  path: ./materials
//	chunking:
//	  target_tokens: 500
//	retrieval:
//	  vector_weight: 0.7
//	  bm25_weight: 0.3
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Source      SourceConfig      `yaml:"source"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Lexical     LexicalConfig     `yaml:"lexical"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Scope       ScopeConfig       `yaml:"scope"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Server      ServerConfig      `yaml:"server"`
}

// SetDefaults applies defaults to all sections.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Source.SetDefaults()
	c.Chunking.SetDefaults()
	c.Enrichment.SetDefaults()
	c.Dedup.SetDefaults()
	c.Embedder.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Lexical.SetDefaults()
	c.Retrieval.SetDefaults()
	c.Scope.SetDefaults()
	c.Ingest.SetDefaults()
	c.Recognition.SetDefaults()
	c.Server.SetDefaults()
}

// Validate checks all sections.
func (c *Config) Validate() error {
	validators := []struct {
		name string
		fn   func() error
	}{
		{"logging", c.Logging.Validate},
		{"source", c.Source.Validate},
		{"chunking", c.Chunking.Validate},
		{"enrichment", c.Enrichment.Validate},
		{"dedup", c.Dedup.Validate},
		{"embedder", c.Embedder.Validate},
		{"vector_store", c.VectorStore.Validate},
		{"lexical", c.Lexical.Validate},
		{"retrieval", c.Retrieval.Validate},
		{"scope", c.Scope.Validate},
		{"ingest", c.Ingest.Validate},
		{"recognition", c.Recognition.Validate},
		{"server", c.Server.Validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	return nil
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}

// SourceConfig describes where course materials live on disk.
type SourceConfig struct {
	Path            string   `yaml:"path"`
	IncludePatterns []string `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
	MaxFileSize     int64    `yaml:"max_file_size"` // bytes
}

func (c *SourceConfig) SetDefaults() {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 200 * 1024 * 1024
	}
	if len(c.ExcludePatterns) == 0 {
		c.ExcludePatterns = []string{"**/.git/**", "**/tmp/**"}
	}
}

func (c *SourceConfig) Validate() error {
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size cannot be negative")
	}
	return nil
}

// ChunkingConfig holds the token-bound knobs.
type ChunkingConfig struct {
	TargetTokens  int    `yaml:"target_tokens"`
	MaxTokens     int    `yaml:"max_tokens"`
	MinTokens     int    `yaml:"min_tokens"`
	OverlapTokens int    `yaml:"overlap_tokens"`
	Encoding      string `yaml:"encoding"`
}

func (c *ChunkingConfig) SetDefaults() {
	if c.TargetTokens == 0 {
		c.TargetTokens = 500
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.MinTokens == 0 {
		c.MinTokens = 100
	}
	if c.OverlapTokens == 0 {
		c.OverlapTokens = 50
	}
	if c.Encoding == "" {
		c.Encoding = "cl100k_base"
	}
}

func (c *ChunkingConfig) Validate() error {
	if c.MinTokens <= 0 || c.TargetTokens <= 0 || c.MaxTokens <= 0 {
		return fmt.Errorf("token bounds must be positive")
	}
	if c.MinTokens > c.TargetTokens || c.TargetTokens > c.MaxTokens {
		return fmt.Errorf("token bounds must satisfy min <= target <= max (got %d/%d/%d)",
			c.MinTokens, c.TargetTokens, c.MaxTokens)
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.TargetTokens {
		return fmt.Errorf("overlap_tokens must be in [0, target_tokens)")
	}
	return nil
}

// EnrichmentConfig controls the enrichment worker pool.
type EnrichmentConfig struct {
	Enabled     *bool `yaml:"enabled,omitempty"`
	Workers     int   `yaml:"workers"`
	MaxKeywords int   `yaml:"max_keywords"`
	MaxTopics   int   `yaml:"max_topics"`
}

func (c *EnrichmentConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.MaxKeywords == 0 {
		c.MaxKeywords = 10
	}
	if c.MaxTopics == 0 {
		c.MaxTopics = 5
	}
}

func (c *EnrichmentConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// DedupConfig holds thresholds for both dedup stages.
type DedupConfig struct {
	NumPermutations int     `yaml:"num_permutations"`
	ShingleSize     int     `yaml:"shingle_size"`
	IngestThreshold float64 `yaml:"ingest_threshold"`
	QueryThreshold  float64 `yaml:"query_threshold"`
}

func (c *DedupConfig) SetDefaults() {
	if c.NumPermutations == 0 {
		c.NumPermutations = 128
	}
	if c.ShingleSize == 0 {
		c.ShingleSize = 3
	}
	if c.IngestThreshold == 0 {
		c.IngestThreshold = 0.92
	}
	if c.QueryThreshold == 0 {
		c.QueryThreshold = 0.85
	}
}

func (c *DedupConfig) Validate() error {
	if c.NumPermutations < 16 {
		return fmt.Errorf("num_permutations must be at least 16")
	}
	if c.ShingleSize < 1 {
		return fmt.Errorf("shingle_size must be positive")
	}
	for name, v := range map[string]float64{
		"ingest_threshold": c.IngestThreshold,
		"query_threshold":  c.QueryThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1]", name)
		}
	}
	return nil
}

// EmbedderConfig selects and configures the embedding client.
type EmbedderConfig struct {
	Type      string        `yaml:"type"` // openai or ollama
	Host      string        `yaml:"host"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxChars  int           `yaml:"max_chars"`
	Retry     RetryConfig   `yaml:"retry"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Host == "" {
		if c.Type == "ollama" {
			c.Host = "http://localhost:11434"
		} else {
			c.Host = "https://api.openai.com"
		}
	}
	if c.Model == "" {
		c.Model = "mxbai-embed-large"
	}
	if c.Dimension == 0 {
		c.Dimension = 1024
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxChars == 0 {
		c.MaxChars = 25000
	}
	c.Retry.SetDefaults()
}

func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Type)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	return c.Retry.Validate()
}

// RetryConfig controls retry with exponential backoff.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

func (c *RetryConfig) SetDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 1 * time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 10 * time.Second
	}
}

func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.BaseDelay <= 0 || c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("delays must satisfy 0 < base_delay <= max_delay")
	}
	return nil
}

// VectorStoreConfig selects the dense vector provider.
type VectorStoreConfig struct {
	Type       string `yaml:"type"` // chromem or qdrant
	Collection string `yaml:"collection"`

	// Chromem settings.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Qdrant settings.
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Collection == "" {
		c.Collection = "course_materials"
	}
	if c.Type == "chromem" && c.PersistPath == "" {
		c.PersistPath = "./data/vectors"
	}
	if c.Type == "qdrant" && c.Port == 0 {
		c.Port = 6334
	}
}

func (c *VectorStoreConfig) Validate() error {
	switch c.Type {
	case "chromem":
		return nil
	case "qdrant":
		if c.Host == "" {
			return fmt.Errorf("qdrant host is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown vector store type %q", c.Type)
	}
}

// LexicalConfig configures the BM25 side of the hybrid store.
type LexicalConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

func (c *LexicalConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "./data/lexical.db"
	}
}

func (c *LexicalConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// RetrievalConfig holds fusion weights and result limits.
type RetrievalConfig struct {
	TopK         int     `yaml:"top_k"`
	VectorWeight float64 `yaml:"vector_weight"`
	BM25Weight   float64 `yaml:"bm25_weight"`
}

func (c *RetrievalConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.VectorWeight == 0 && c.BM25Weight == 0 {
		c.VectorWeight = 0.7
		c.BM25Weight = 0.3
	}
}

func (c *RetrievalConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	if c.VectorWeight < 0 || c.VectorWeight > 1 {
		return fmt.Errorf("vector_weight must be in [0, 1]")
	}
	if c.BM25Weight < 0 || c.BM25Weight > 1 {
		return fmt.Errorf("bm25_weight must be in [0, 1]")
	}
	if c.VectorWeight+c.BM25Weight == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	return nil
}

// ScopeConfig configures the out-of-scope predicate.
type ScopeConfig struct {
	BlocklistKeywords  []string `yaml:"blocklist_keywords,omitempty"`
	InScopeIndicators  []string `yaml:"in_scope_indicators,omitempty"`
	IndicatorThreshold float64  `yaml:"indicator_threshold"`
	DefaultThreshold   float64  `yaml:"default_threshold"`
	ProbeTopK          int      `yaml:"probe_top_k"`
}

func (c *ScopeConfig) SetDefaults() {
	if c.IndicatorThreshold == 0 {
		c.IndicatorThreshold = 0.3
	}
	if c.DefaultThreshold == 0 {
		c.DefaultThreshold = 0.5
	}
	if c.ProbeTopK == 0 {
		c.ProbeTopK = 3
	}
}

func (c *ScopeConfig) Validate() error {
	if c.IndicatorThreshold < 0 || c.IndicatorThreshold > 1 {
		return fmt.Errorf("indicator_threshold must be in [0, 1]")
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return fmt.Errorf("default_threshold must be in [0, 1]")
	}
	return nil
}

// IngestConfig controls pipeline concurrency and batching.
type IngestConfig struct {
	Workers      int  `yaml:"workers"`
	BatchSize    int  `yaml:"batch_size"`
	WatchEnabled bool `yaml:"watch_enabled"`
}

func (c *IngestConfig) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
}

func (c *IngestConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	return nil
}

// RecognitionConfig configures the optional text recognition service used
// for scanned PDF pages. Disabled when host is empty.
type RecognitionConfig struct {
	Host           string        `yaml:"host,omitempty"`
	Timeout        time.Duration `yaml:"timeout"`
	MinConfidence  float64       `yaml:"min_confidence"`
	ScannedTextMin int           `yaml:"scanned_text_min"`
	Retry          RetryConfig   `yaml:"retry"`
}

func (c *RecognitionConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.5
	}
	if c.ScannedTextMin == 0 {
		c.ScannedTextMin = 32
	}
	c.Retry.SetDefaults()
}

func (c *RecognitionConfig) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0, 1]")
	}
	return c.Retry.Validate()
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535]")
	}
	return nil
}

// BoolPtr returns a pointer to the given bool, for optional flags.
func BoolPtr(b bool) *bool {
	return &b
}
