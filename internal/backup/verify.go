package backup

import (
	"context"
	"path"
)

type VerifyResult struct {
	Valid    bool
	Manifest *Manifest
	Err      error
}

// VerifyBackup checks that the backup directory, its manifest and every
// artifact the manifest names exist. With deep set it also decodes each
// artifact and compares checksums, sizes and document counts.
func (m *Manager) VerifyBackup(ctx context.Context, name string, deep bool) VerifyResult {
	manifest, err := m.loadManifest(ctx, name)
	if err != nil {
		return VerifyResult{Err: opError("verify", name, "", err)}
	}
	for _, entry := range manifest.Collections {
		file := manifest.ArtifactName(entry.Name)
		ok, err := m.store.Exists(ctx, path.Join(name, file))
		if err != nil {
			return VerifyResult{Manifest: manifest, Err: opError("verify", name, entry.Name, err)}
		}
		if !ok {
			return VerifyResult{Manifest: manifest, Err: opError("verify", name, entry.Name, corrupt("artifact %s is missing", file))}
		}
	}
	if !deep {
		return VerifyResult{Valid: true, Manifest: manifest}
	}

	key, err := m.artifactKey(manifest)
	if err != nil {
		return VerifyResult{Manifest: manifest, Err: opError("verify", name, "", err)}
	}
	for _, entry := range manifest.Collections {
		docs, err := m.readCollection(ctx, name, manifest, entry, key)
		if err != nil {
			return VerifyResult{Manifest: manifest, Err: opError("verify", name, entry.Name, err)}
		}
		if len(docs) != entry.Documents {
			err := corrupt("found %d documents, manifest records %d", len(docs), entry.Documents)
			return VerifyResult{Manifest: manifest, Err: opError("verify", name, entry.Name, err)}
		}
	}
	return VerifyResult{Valid: true, Manifest: manifest}
}
