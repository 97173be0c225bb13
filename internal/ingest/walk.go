package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

// WalkDirectory walks root, skips hidden entries if requested, and calls fn
// for each file with an allowed extension. Directories listed in exclude are
// not descended into. fn errors are recorded per file and do not stop the
// walk; a cancelled ctx does.
func WalkDirectory(ctx context.Context, root string, skipHidden bool, fn PathFunc, logger *slog.Logger, exclude ...string) ([]FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats
	excluded := newExcludedDirs(exclude)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if excluded.contains(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
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
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		if err := fn(ctx, path); err != nil {
			logger.Warn("file failed", "path", path, "error", err)
			results = append(results, FileResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, FileResult{SourcePath: path})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
