package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCBACKUP_CONFIG", "")
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backup.Destination != "/backups" || cfg.Backup.RetentionDays != 30 {
		t.Fatalf("unexpected backup defaults: %+v", cfg.Backup)
	}
	if cfg.Backup.Compression || cfg.Backup.Encryption || !cfg.Backup.RestorePreflight {
		t.Fatalf("unexpected flags: %+v", cfg.Backup)
	}
	if cfg.Schedule.Expression != "0 3 * * *" || cfg.Global.OperationTimeout != 2*time.Hour {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Schedule, cfg.Global)
	}
	if cfg.Mongo.Host != "mongodb" || cfg.Mongo.Port != 27017 || cfg.Mongo.Database != "document_processing" {
		t.Fatalf("unexpected mongo defaults: %+v", cfg.Mongo)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("BACKUP_DESTINATION", "/srv/backups")
	t.Setenv("BACKUP_COMPRESSION", "true")
	t.Setenv("BACKUP_ENCRYPTION", "true")
	t.Setenv("ENCRYPTION_KEY", "s3cret")
	t.Setenv("BACKUP_RETENTION_DAYS", "7")
	t.Setenv("BACKUP_SCHEDULE", "30 2 * * *")
	t.Setenv("DB_MONGODB_PORT", "27018")
	t.Setenv("NOTIFY_WEBHOOK_URL", "http://hooks.local/backup")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	mc := cfg.ManagerConfig()
	if mc.Root != "/srv/backups" || !mc.Compression || !mc.Encryption || mc.EncryptionKey != "s3cret" || mc.RetentionDays != 7 || !mc.Preflight {
		t.Fatalf("unexpected manager config: %+v", mc)
	}
	if cfg.Schedule.Expression != "30 2 * * *" || cfg.Mongo.Port != 27018 {
		t.Fatalf("env not applied: %+v %+v", cfg.Schedule, cfg.Mongo)
	}
	if cfg.Notifications.WebhookURL != "http://hooks.local/backup" {
		t.Fatalf("webhook not applied: %+v", cfg.Notifications)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	t.Setenv("DOCBACKUP_TEST_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "docbackup.yaml")
	content := `
backup:
  destination: /data/backups
  compression: true
  compression_algorithm: zstd
  encryption: true
  encryption_key: ${DOCBACKUP_TEST_KEY}
  parallelism: 4
notifications:
  webhooks:
    - name: ops
      url: http://ops.local/hook
      headers:
        X-Token: abc
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BACKUP_RETENTION_DAYS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backup.CompressionAlgorithm != "zstd" || cfg.Backup.Parallelism != 4 || cfg.Backup.EncryptionKey != "from-env" {
		t.Fatalf("file not applied: %+v", cfg.Backup)
	}
	if cfg.Backup.RetentionDays != 3 {
		t.Fatalf("env should override file defaults: %d", cfg.Backup.RetentionDays)
	}
	if len(cfg.Notifications.Webhooks) != 1 || cfg.Notifications.Webhooks[0].URL != "http://ops.local/hook" {
		t.Fatalf("webhooks not decoded: %+v", cfg.Notifications)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := map[string]func(*Config){
		"ENCRYPTION_KEY":               func(c *Config) { c.Backup.Encryption = true },
		"BACKUP_RETENTION_DAYS":        func(c *Config) { c.Backup.RetentionDays = -1 },
		"BACKUP_PARALLELISM":           func(c *Config) { c.Backup.Parallelism = 0 },
		"BACKUP_COMPRESSION_ALGORITHM": func(c *Config) { c.Backup.CompressionAlgorithm = "lz4" },
		"BACKUP_CIPHER":                func(c *Config) { c.Backup.Cipher = "des" },
		"BACKUP_SCHEDULE":              func(c *Config) { c.Schedule.Expression = "*/5 * * * *" },
		"BACKUP_TIMEZONE":              func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" },
		"LOG_FORMAT":                   func(c *Config) { c.Global.LogFormat = "xml" },
		"BACKUP_DESTINATION":           func(c *Config) { c.Backup.Destination = "" },
	}
	for want, mutate := range cases {
		cfg := *base
		mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s error, got %v", want, err)
		}
	}
}
