package backup

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/rowjay/docbackup/internal/compress"
	"github.com/rowjay/docbackup/internal/datastore"
	"github.com/rowjay/docbackup/internal/document"
	"github.com/rowjay/docbackup/internal/lock"
)

// Restore replaces the contents of every collection recorded in the backup
// (or only the named ones) and returns the number of documents restored.
//
// Collections are replaced one at a time. With Preflight enabled every
// artifact is decoded first, so a corrupt backup never touches ds; a
// datastore failure during replacement still leaves earlier collections
// replaced.
func (m *Manager) Restore(ctx context.Context, ds datastore.Datastore, name string, only ...string) (int, error) {
	op, err := lock.Acquire(m.lockPath())
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			err = fmt.Errorf("another backup or restore is running: %w", err)
		}
		return 0, opError("restore", name, "", err)
	}
	defer op.Release()

	manifest, err := m.loadManifest(ctx, name)
	if err != nil {
		return 0, opError("restore", name, "", err)
	}
	entries, err := selectCollections(manifest, only)
	if err != nil {
		return 0, opError("restore", name, "", err)
	}
	key, err := m.artifactKey(manifest)
	if err != nil {
		return 0, opError("restore", name, "", err)
	}

	logger := m.log.With().Str("backup", name).Logger()
	if m.cfg.Preflight {
		for _, entry := range entries {
			if _, err := m.readCollection(ctx, name, manifest, entry, key); err != nil {
				return 0, opError("restore", name, entry.Name, err)
			}
		}
		logger.Debug().Int("collections", len(entries)).Msg("restore preflight passed")
	}

	total := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return total, opError("restore", name, entry.Name, err)
		}
		docs, err := m.readCollection(ctx, name, manifest, entry, key)
		if err != nil {
			return total, opError("restore", name, entry.Name, err)
		}
		if err := ds.DeleteAllDocuments(ctx, entry.Name); err != nil {
			return total, opError("restore", name, entry.Name, datastoreError("delete documents", err))
		}
		// Called for empty collections too so the datastore keeps the collection.
		if err := ds.InsertMany(ctx, entry.Name, docs); err != nil {
			return total, opError("restore", name, entry.Name, datastoreError("insert documents", err))
		}
		total += len(docs)
		logger.Info().Str("collection", entry.Name).Int("documents", len(docs)).Msg("collection restored")
	}
	logger.Info().Int("collections", len(entries)).Int("documents", total).Msg("restore completed")
	return total, nil
}

func selectCollections(manifest *Manifest, only []string) ([]CollectionEntry, error) {
	if len(only) == 0 {
		return manifest.Collections, nil
	}
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = false
	}
	var entries []CollectionEntry
	for _, entry := range manifest.Collections {
		if _, ok := wanted[entry.Name]; ok {
			wanted[entry.Name] = true
			entries = append(entries, entry)
		}
	}
	for _, name := range only {
		if !wanted[name] {
			return nil, fmt.Errorf("collection %q is not part of this backup", name)
		}
	}
	return entries, nil
}

// readCollection loads, checks and decodes one artifact.
func (m *Manager) readCollection(ctx context.Context, name string, manifest *Manifest, entry CollectionEntry, key []byte) ([]document.Document, error) {
	file, err := m.locateArtifact(ctx, name, manifest, entry.Name)
	if err != nil {
		return nil, err
	}
	data, err := m.store.Get(ctx, path.Join(name, file))
	if err != nil {
		return nil, corrupt("read artifact %s: %v", file, err)
	}
	if int64(len(data)) != entry.Size {
		return nil, corrupt("artifact %s is %d bytes, manifest records %d", file, len(data), entry.Size)
	}
	if entry.Checksum != "" && checksum(data) != entry.Checksum {
		return nil, corrupt("artifact %s checksum mismatch", file)
	}
	plain, err := decode(data, manifest, key)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", file, err)
	}
	docs, err := document.Deserialize(plain)
	if err != nil {
		return nil, corrupt("artifact %s: %v", file, err)
	}
	return docs, nil
}

// locateArtifact finds the artifact of a collection by probing every suffix
// combination, and fails when the one on disk disagrees with the manifest.
func (m *Manager) locateArtifact(ctx context.Context, name string, manifest *Manifest, collection string) (string, error) {
	expected := manifest.ArtifactName(collection)
	ok, err := m.store.Exists(ctx, path.Join(name, expected))
	if err != nil {
		return "", err
	}
	if ok {
		return expected, nil
	}
	for _, kind := range []string{compress.TypeNone, compress.TypeGzip, compress.TypeZstd} {
		for _, encrypted := range []bool{false, true} {
			candidate := artifactName(collection, compress.Suffix(kind), encrypted)
			if candidate == expected {
				continue
			}
			found, err := m.store.Exists(ctx, path.Join(name, candidate))
			if err != nil {
				return "", err
			}
			if found {
				return "", corrupt("artifact %s does not match manifest (expected %s)", candidate, expected)
			}
		}
	}
	return "", corrupt("artifact %s is missing", expected)
}
