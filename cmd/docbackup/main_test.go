package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rowjay/docbackup/internal/backup"
	"github.com/rowjay/docbackup/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{LogLevel: "info", LogFormat: "JSON"},
		Backup: config.BackupConfig{Destination: "/backups", RetentionDays: 30, CompressionAlgorithm: "gzip", Cipher: "DARE"},
	}
	root := &rootFlags{LogLevel: "debug"}
	overrides := &overrideFlags{
		Destination:   "/srv/backups",
		EncryptionKey: "secret",
		Compression:   "ZSTD",
		Encrypt:       true,
		RetentionDays: 0,
		Parallelism:   4,
	}
	applyOverrides(cfg, root, overrides)

	if cfg.Global.LogLevel != "debug" || cfg.Global.LogFormat != "json" {
		t.Fatalf("unexpected global config: %+v", cfg.Global)
	}
	b := cfg.Backup
	if b.Destination != "/srv/backups" || b.EncryptionKey != "secret" || !b.Encryption {
		t.Fatalf("unexpected backup config: %+v", b)
	}
	if !b.Compression || b.CompressionAlgorithm != "zstd" || b.Cipher != "dare" {
		t.Fatalf("unexpected transforms: %+v", b)
	}
	if b.RetentionDays != 0 || b.Parallelism != 4 {
		t.Fatalf("unexpected retention/parallelism: %+v", b)
	}
}

func TestApplyOverridesKeepsUnsetValues(t *testing.T) {
	cfg := &config.Config{Backup: config.BackupConfig{Compression: true, RetentionDays: 30, Parallelism: 2}}
	applyOverrides(cfg, &rootFlags{}, &overrideFlags{RetentionDays: -1})
	if !cfg.Backup.Compression || cfg.Backup.RetentionDays != 30 || cfg.Backup.Parallelism != 2 {
		t.Fatalf("unset flags changed config: %+v", cfg.Backup)
	}

	applyOverrides(cfg, &rootFlags{}, &overrideFlags{RetentionDays: -1, Compression: "none"})
	if cfg.Backup.Compression {
		t.Fatalf("--compression none should disable compression")
	}
}

func TestPrintSummaries(t *testing.T) {
	var buf bytes.Buffer
	err := printSummaries(&buf, []backup.Summary{
		{Name: "b2", Timestamp: "2024-06-02T03:00:00.000Z", Collections: 2, Documents: 10, Size: 512},
		{Name: "broken", Error: "Invalid backup"},
	})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[1], "b2") || !strings.HasSuffix(lines[1], "ok") {
		t.Fatalf("unexpected table:\n%s", buf.String())
	}
	if !strings.HasSuffix(lines[2], "Invalid backup") {
		t.Fatalf("invalid backup row missing status:\n%s", buf.String())
	}
}
