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

package chunker

import "fmt"

// ChunkingError represents an error during document chunking.
type ChunkingError struct {
	Strategy   string // Chunking strategy
	DocumentID string // Document ID
	Message    string // Error message
	Err        error  // Underlying error
}

// Error implements the error interface.
func (e *ChunkingError) Error() string {
	msg := fmt.Sprintf("[%s] chunking failed for %s: %s", e.Strategy, e.DocumentID, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ChunkingError) Unwrap() error {
	return e.Err
}

// NewChunkingError creates a new ChunkingError.
func NewChunkingError(strategy, documentID, message string, err error) *ChunkingError {
	return &ChunkingError{
		Strategy:   strategy,
		DocumentID: documentID,
		Message:    message,
		Err:        err,
	}
}
