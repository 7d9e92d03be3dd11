package legacy

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ConsolidateStats tallies one consolidation pass over the two legacy
// directories.
type ConsolidateStats struct {
	Moved       int
	Duplicates  int
	NeedsReview int
	Errors      int
}

// Consolidate reconciles the on-disk legacy prompt directories. Files that
// exist only in oldDir move to newDir. When both directories hold the same
// filename: byte-identical copies lose the old one; differing copies are
// both kept, with the old file renamed "<base>_REVIEW.json" for manual
// reconciliation. Per-file problems are logged and counted, never fatal.
func Consolidate(oldDir, newDir string, logger *zap.Logger) (*ConsolidateStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	stats := &ConsolidateStats{}
	entries, err := os.ReadDir(oldDir)
	if errors.Is(err, fs.ErrNotExist) {
		return stats, nil // nothing left to consolidate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy directory %s: %w", oldDir, err)
	}
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", newDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		// Leftovers from an earlier pass stay where they are.
		if strings.HasSuffix(name, "_REVIEW.json") {
			continue
		}

		oldPath := filepath.Join(oldDir, name)
		newPath := filepath.Join(newDir, name)

		newData, err := os.ReadFile(newPath)
		if errors.Is(err, fs.ErrNotExist) {
			if err := os.Rename(oldPath, newPath); err != nil {
				logger.Warn("failed to move prompt file", zap.String("file", name), zap.Error(err))
				stats.Errors++
				continue
			}
			logger.Info("moved prompt file", zap.String("file", name))
			stats.Moved++
			continue
		}
		if err != nil {
			logger.Warn("failed to read prompt file", zap.String("path", newPath), zap.Error(err))
			stats.Errors++
			continue
		}

		oldData, err := os.ReadFile(oldPath)
		if err != nil {
			logger.Warn("failed to read prompt file", zap.String("path", oldPath), zap.Error(err))
			stats.Errors++
			continue
		}

		if bytes.Equal(oldData, newData) {
			if err := os.Remove(oldPath); err != nil {
				logger.Warn("failed to remove duplicate prompt file", zap.String("file", name), zap.Error(err))
				stats.Errors++
				continue
			}
			logger.Info("removed identical duplicate", zap.String("file", name))
			stats.Duplicates++
			continue
		}

		reviewName := strings.TrimSuffix(name, ".json") + "_REVIEW.json"
		if err := os.Rename(oldPath, filepath.Join(oldDir, reviewName)); err != nil {
			logger.Warn("failed to mark prompt file for review", zap.String("file", name), zap.Error(err))
			stats.Errors++
			continue
		}
		logger.Warn("conflicting prompt file kept for review",
			zap.String("file", name), zap.String("review", reviewName))
		stats.NeedsReview++
	}
	return stats, nil
}
