// Package ingest discovers receipt images on the local filesystem for batch
// submission.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// WalkError records an entry that could not be read.
type WalkError struct {
	Path string
	Err  error
}

type Walker struct {
	logger *slog.Logger
}

func NewWalker(logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{logger: logger}
}

// Collect walks root and returns every supported image file in lexical
// order, skipping hidden files and directories if requested. Unreadable
// entries are reported and the walk continues.
func (w *Walker) Collect(root string, skipHidden bool) ([]string, DirStats, []WalkError, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, nil, errors.New("root path is required")
	}

	var (
		paths  []string
		stats  DirStats
		failed []WalkError
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			w.logger.Warn("ingest.walk.error", "path", path, "error", walkErr)
			failed = append(failed, WalkError{Path: path, Err: walkErr})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			stats.Skipped++
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, failed, fmt.Errorf("walk: %w", err)
	}
	sort.Strings(paths)

	w.logger.Info("ingest.walk.done", "root", root, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
	return paths, stats, failed, nil
}
