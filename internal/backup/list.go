package backup

import (
	"context"
	"path"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Summary describes one entry of the backup root. Error is set instead of
// the counters when the backup has no readable manifest.
type Summary struct {
	Name        string `json:"name"`
	Timestamp   string `json:"timestamp,omitempty"`
	Collections int    `json:"collections"`
	Documents   int    `json:"documents"`
	Size        int64  `json:"size"`
	Error       string `json:"error,omitempty"`
}

// MarshalJSON reports invalid backups as just {name, error}.
func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Error != "" {
		return json.Marshal(struct {
			Name  string `json:"name"`
			Error string `json:"error"`
		}{s.Name, s.Error})
	}
	type summary Summary
	return json.Marshal(summary(s))
}

const invalidBackup = "Invalid backup"

// ListBackups summarizes every directory under the backup root, newest first.
// Unreadable backups are reported with Error set rather than skipped.
func (m *Manager) ListBackups(ctx context.Context) ([]Summary, error) {
	dirs, err := m.store.ListDirs(ctx)
	if err != nil {
		return nil, opError("list", "", "", err)
	}

	summaries := make([]Summary, 0, len(dirs))
	times := make(map[string]time.Time, len(dirs))
	for _, dir := range dirs {
		data, err := m.store.Get(ctx, path.Join(dir.Key, ManifestFile))
		if err != nil {
			m.log.Debug().Err(err).Str("backup", dir.Key).Msg("manifest unreadable")
			summaries = append(summaries, Summary{Name: dir.Key, Error: invalidBackup})
			continue
		}
		manifest, err := ParseManifest(data)
		if err != nil {
			m.log.Debug().Err(err).Str("backup", dir.Key).Msg("manifest invalid")
			summaries = append(summaries, Summary{Name: dir.Key, Error: invalidBackup})
			continue
		}
		if ts, ok := manifest.Time(); ok {
			times[dir.Key] = ts
		}
		summaries = append(summaries, Summary{
			Name:        dir.Key,
			Timestamp:   manifest.Timestamp,
			Collections: len(manifest.Collections),
			Documents:   manifest.TotalDocuments,
			Size:        manifest.TotalSize,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		ti, iok := times[summaries[i].Name]
		tj, jok := times[summaries[j].Name]
		switch {
		case iok && jok && !ti.Equal(tj):
			return ti.After(tj)
		case iok != jok:
			return iok
		default:
			return summaries[i].Name < summaries[j].Name
		}
	})
	return summaries, nil
}
