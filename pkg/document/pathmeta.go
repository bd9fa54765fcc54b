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

package document

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	weekRe = regexp.MustCompile(`(?i)week\s*(\d+)`)
	yearRe = regexp.MustCompile(`^(20\d{2})(-\d{2})?$`)
)

// genericDirs are path components that never name a course module.
var genericDirs = map[string]bool{
	"data":      true,
	"documents": true,
	"files":     true,
	"content":   true,
}

// PathMeta derives week number, module name, and academic year from a
// path relative to the source root. Components are inspected left to
// right; the file name itself participates in week matching only.
//
// A week-matched directory names the module ("Week 2/content/x.pdf"
// gives module "Week 2"); the first non-generic directory is the
// fallback for week-less paths.
func PathMeta(relPath string) (week int, module, year string) {
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	for i, part := range parts {
		if part == "" {
			continue
		}
		isFile := i == len(parts)-1

		if week == 0 {
			if m := weekRe.FindStringSubmatch(part); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					week = n
					if !isFile {
						module = part
					}
				}
				continue
			}
		}
		if isFile {
			continue
		}
		if year == "" && yearRe.MatchString(part) {
			year = part
			continue
		}
		if module == "" && !genericDirs[strings.ToLower(part)] {
			module = part
		}
	}
	return week, module, year
}

// ApplyPathMeta fills the derived path fields on a Meta from its
// relative path under the source root.
func ApplyPathMeta(m *Meta, root string) {
	rel, err := filepath.Rel(root, m.FilePath)
	if err != nil {
		rel = m.FilePath
	}
	m.WeekNumber, m.ModuleName, m.AcademicYear = PathMeta(rel)
}

// FileTypeFor maps a file extension to its FileType, reporting whether
// the extension is supported.
func FileTypeFor(path string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FileTypePDF, true
	case ".pptx":
		return FileTypePPTX, true
	case ".docx":
		return FileTypeDOCX, true
	case ".ppt":
		return FileTypePPT, true
	case ".doc":
		return FileTypeDOC, true
	default:
		return "", false
	}
}
