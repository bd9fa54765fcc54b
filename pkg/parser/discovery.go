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
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
)

// FileFilter decides which discovered paths enter the pipeline.
type FileFilter interface {
	ShouldInclude(path string) bool
	ShouldExclude(path string) bool
}

// PatternFilter implements FileFilter with include/exclude patterns.
// Directory names ("tmp"), extensions ("*.pdf"), and simple globs
// ("**/drafts/**") are all accepted.
type PatternFilter struct {
	root         string
	dirExcludes  map[string]bool
	extExcludes  map[string]bool
	dirIncludes  map[string]bool
	extIncludes  map[string]bool
	globExcludes []string
	globIncludes []string
	includeCount int
}

// NewPatternFilter builds a filter rooted at root.
func NewPatternFilter(root string, include, exclude []string) *PatternFilter {
	pf := &PatternFilter{
		root:         root,
		dirExcludes:  make(map[string]bool),
		extExcludes:  make(map[string]bool),
		dirIncludes:  make(map[string]bool),
		extIncludes:  make(map[string]bool),
		includeCount: len(include),
	}
	pf.globExcludes = pf.index(exclude, pf.dirExcludes, pf.extExcludes)
	pf.globIncludes = pf.index(include, pf.dirIncludes, pf.extIncludes)
	return pf
}

// index sorts patterns into the fast-path maps, returning the leftover
// glob patterns.
func (pf *PatternFilter) index(patterns []string, dirs, exts map[string]bool) []string {
	var globs []string
	for _, pattern := range patterns {
		p := filepath.ToSlash(pattern)
		switch {
		case p == "":
		case strings.HasPrefix(p, "**/") && strings.HasSuffix(p, "/**"):
			dirs[strings.Trim(p, "*/")] = true
		case strings.HasPrefix(p, "*."):
			exts[strings.TrimPrefix(p, "*")] = true
		case strings.HasPrefix(p, ".") && !strings.Contains(p, "/"):
			exts[p] = true
		case !strings.Contains(p, "*"):
			dirs[p] = true
		default:
			globs = append(globs, p)
		}
	}
	return globs
}

func (pf *PatternFilter) rel(path string) string {
	relPath, err := filepath.Rel(pf.root, path)
	if err != nil {
		relPath = path
	}
	return filepath.ToSlash(relPath)
}

// ShouldInclude checks the include patterns; an empty include set
// accepts everything.
func (pf *PatternFilter) ShouldInclude(path string) bool {
	if pf.includeCount == 0 {
		return true
	}
	return pf.matches(pf.rel(path), pf.dirIncludes, pf.extIncludes, pf.globIncludes)
}

// ShouldExclude checks the exclude patterns.
func (pf *PatternFilter) ShouldExclude(path string) bool {
	return pf.matches(pf.rel(path), pf.dirExcludes, pf.extExcludes, pf.globExcludes)
}

func (pf *PatternFilter) matches(relPath string, dirs, exts map[string]bool, globs []string) bool {
	if ext := filepath.Ext(relPath); ext != "" && exts[ext] {
		return true
	}
	for _, part := range strings.Split(relPath, "/") {
		if dirs[part] {
			return true
		}
	}
	for _, pattern := range globs {
		if pattern == "*" {
			return true
		}
		if ok, err := filepath.Match(pattern, relPath); err == nil && ok {
			return true
		}
		if simple, found := strings.CutPrefix(pattern, "**/"); found {
			if ok, err := filepath.Match(simple, filepath.Base(relPath)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// Discover walks the source root and returns metadata for every
// ingestible file: supported type, within the size cap, passing the
// pattern filter. Hidden files and directories are skipped.
func Discover(ctx context.Context, cfg config.SourceConfig) ([]document.Meta, error) {
	filter := NewPatternFilter(cfg.Path, cfg.IncludePatterns, cfg.ExcludePatterns)

	var metas []document.Meta
	err := filepath.WalkDir(cfg.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") && path != cfg.Path {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if filter.ShouldExclude(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if filter.ShouldExclude(path) || !filter.ShouldInclude(path) {
			return nil
		}

		ft, ok := document.FileTypeFor(path)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if cfg.MaxFileSize > 0 && info.Size() > cfg.MaxFileSize {
			slog.Warn("Skipping oversized file", "path", path, "size", info.Size())
			return nil
		}

		meta := document.Meta{
			FilePath:   path,
			FileType:   ft,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		}
		document.ApplyPathMeta(&meta, cfg.Path)
		metas = append(metas, meta)
		return nil
	})
	if err != nil {
		return nil, NewParserError("discovery", cfg.Path, "walk failed", err)
	}
	return metas, nil
}
