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

import "fmt"

// ParserError represents an error during content extraction.
type ParserError struct {
	Parser   string // Parser name
	FilePath string // File path
	Message  string // Error message
	Err      error  // Underlying error
}

// Error implements the error interface.
func (e *ParserError) Error() string {
	msg := fmt.Sprintf("[%s] extraction failed for %s: %s", e.Parser, e.FilePath, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ParserError) Unwrap() error {
	return e.Err
}

// NewParserError creates a new ParserError.
func NewParserError(parser, filePath, message string, err error) *ParserError {
	return &ParserError{
		Parser:   parser,
		FilePath: filePath,
		Message:  message,
		Err:      err,
	}
}
