package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestVerifyBackup(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{Compression: true, Encryption: true, EncryptionKey: testKey})
	if _, err := m.CreateBackup(ctx, seededStore(), "v"); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, deep := range []bool{false, true} {
		res := m.VerifyBackup(ctx, "v", deep)
		if !res.Valid || res.Err != nil || res.Manifest == nil {
			t.Fatalf("deep=%v: expected valid, got %+v", deep, res)
		}
	}

	if res := m.VerifyBackup(ctx, "missing", false); res.Valid || !errors.Is(res.Err, ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %+v", res)
	}
}

func TestVerifyBackupMissingArtifact(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{Compression: true})
	if _, err := m.CreateBackup(ctx, seededStore(), "v"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.Remove(filepath.Join(m.Root(), "v", "customers.json.gz")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	res := m.VerifyBackup(ctx, "v", false)
	if res.Valid || !errors.Is(res.Err, ErrCorruptBackup) {
		t.Fatalf("expected ErrCorruptBackup, got %+v", res)
	}
	if res.Manifest == nil {
		t.Fatalf("manifest should be reported when it parsed")
	}
}

func TestVerifyDeepCatchesContentProblems(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{Compression: true})
	manifest, err := m.CreateBackup(ctx, seededStore(), "v")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rewriteManifest(t, m, "v", func(man *Manifest) { man.Collections[2].Documents = 99 })
	if res := m.VerifyBackup(ctx, "v", false); !res.Valid {
		t.Fatalf("structural check should pass: %v", res.Err)
	}
	if res := m.VerifyBackup(ctx, "v", true); res.Valid || !errors.Is(res.Err, ErrCorruptBackup) {
		t.Fatalf("deep check should fail on document count, got %+v", res)
	}

	rewriteManifest(t, m, "v", func(man *Manifest) { man.Collections[2].Documents = 3 })
	flipByte(t, filepath.Join(m.Root(), "v", manifest.ArtifactName("orders")), 15)
	if res := m.VerifyBackup(ctx, "v", false); !res.Valid {
		t.Fatalf("structural check should pass: %v", res.Err)
	}
	if res := m.VerifyBackup(ctx, "v", true); res.Valid || !errors.Is(res.Err, ErrCorruptBackup) {
		t.Fatalf("deep check should fail on content, got %+v", res)
	}
}
