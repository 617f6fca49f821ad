package backup

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/rowjay/docbackup/internal/lock"
	"github.com/rowjay/docbackup/internal/storage"
	"github.com/rowjay/docbackup/internal/util"
)

const day = 24 * time.Hour

// PruneExpired deletes backups older than the retention window and returns
// how many were removed. Age is counted in whole days, so a backup is removed
// once it is at least RetentionDays+1 days old; it may outlive
// now-RetentionDays by up to one day. Backups still being written are
// skipped, and a failure on one directory does not stop the others.
func (m *Manager) PruneExpired(ctx context.Context) (int, error) {
	if m.cfg.RetentionDays == 0 {
		m.log.Debug().Msg("retention disabled, nothing pruned")
		return 0, nil
	}
	dirs, err := m.store.ListDirs(ctx)
	if err != nil {
		return 0, opError("prune", "", "", err)
	}

	now := m.now()
	removed := 0
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return removed, opError("prune", "", "", err)
		}
		if !m.expired(dir.Modified, now) {
			continue
		}
		logger := m.log.With().Str("backup", dir.Key).Time("modified", dir.Modified).Logger()
		held, err := lock.Held(m.markerPath(dir.Key))
		if err != nil {
			logger.Warn().Err(err).Msg("cannot inspect in-progress marker, skipping")
			continue
		}
		if held {
			logger.Info().Msg("backup in progress, skipping")
			continue
		}
		if err := m.store.RemoveAll(ctx, dir.Key); err != nil {
			logger.Error().Err(err).Msg("failed to remove expired backup")
			continue
		}
		removed++
		logger.Info().Msg("expired backup removed")
	}
	m.removeStaleMarkers()
	return removed, nil
}

// expired reports whether a backup modified at mod is more than
// RetentionDays whole days old.
func (m *Manager) expired(mod, now time.Time) bool {
	return int(now.Sub(mod)/day) > m.cfg.RetentionDays
}

// removeStaleMarkers deletes in-progress markers left behind by crashed runs.
// A marker is only removed while this process holds its lock.
func (m *Manager) removeStaleMarkers() {
	matches, err := filepath.Glob(filepath.Join(m.cfg.Root, ".*"+markerSuffix))
	if err != nil {
		return
	}
	for _, marker := range matches {
		held, err := lock.Acquire(marker)
		if err != nil {
			if !errors.Is(err, lock.ErrLocked) {
				m.log.Warn().Err(err).Str("marker", marker).Msg("cannot lock stale marker")
			}
			continue
		}
		if err := held.ReleaseAndRemove(); err != nil {
			m.log.Warn().Err(err).Str("marker", marker).Msg("failed to remove stale marker")
		}
	}
}

// DeleteBackup removes a single backup regardless of its age.
func (m *Manager) DeleteBackup(ctx context.Context, name string) error {
	if err := util.ValidateName(name); err != nil {
		return opError("delete", name, "", err)
	}
	info, err := m.store.Stat(ctx, name)
	if err != nil {
		if storage.IsNotExist(err) {
			return opError("delete", name, "", ErrBackupNotFound)
		}
		return opError("delete", name, "", err)
	}
	if !info.IsDir {
		return opError("delete", name, "", ErrBackupNotFound)
	}
	held, err := lock.Held(m.markerPath(name))
	if err != nil {
		return opError("delete", name, "", err)
	}
	if held {
		return opError("delete", name, "", errBackupInProgress)
	}
	if err := m.store.RemoveAll(ctx, name); err != nil {
		return opError("delete", name, "", err)
	}
	m.log.Info().Str("backup", name).Msg("backup deleted")
	return nil
}
