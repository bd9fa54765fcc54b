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

package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lectern-ai/lectern/pkg/config"
)

// Recognizer is an HTTP client for the text recognition service that
// handles scanned PDF pages.
type Recognizer struct {
	host          string
	minConfidence float64
	retry         config.RetryConfig
	client        *http.Client
}

// NewRecognizer creates a recognizer from config, or nil when no host
// is configured.
func NewRecognizer(cfg config.RecognitionConfig) *Recognizer {
	if cfg.Host == "" {
		return nil
	}
	return &Recognizer{
		host:          cfg.Host,
		minConfidence: cfg.MinConfidence,
		retry:         cfg.Retry,
		client:        &http.Client{Timeout: cfg.Timeout},
	}
}

type recognizeRequest struct {
	FilePath string `json:"file_path"`
	Page     int    `json:"page"`
}

type recognizeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RecognizePage requests recognized text for one page, retrying with
// exponential backoff. It returns the text and the service's reported
// confidence; results below the confidence floor return empty.
func (r *Recognizer) RecognizePage(ctx context.Context, filePath string, page int) (string, float64, error) {
	body, err := json.Marshal(recognizeRequest{FilePath: filePath, Page: page})
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.retry.BaseDelay << (attempt - 1)
			if delay > r.retry.MaxDelay {
				delay = r.retry.MaxDelay
			}
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := r.recognizeOnce(ctx, body)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Confidence < r.minConfidence {
			return "", resp.Confidence, nil
		}
		return resp.Text, resp.Confidence, nil
	}
	return "", 0, fmt.Errorf("recognition failed after %d attempts: %w", r.retry.MaxAttempts, lastErr)
}

func (r *Recognizer) recognizeOnce(ctx context.Context, body []byte) (*recognizeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.host+"/v1/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("recognition service returned %d: %s", resp.StatusCode, string(data))
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
