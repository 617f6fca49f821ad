package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rowjay/docbackup/internal/backup"
	"github.com/rowjay/docbackup/internal/compress"
	"github.com/rowjay/docbackup/internal/cryptoutil"
	"github.com/rowjay/docbackup/internal/util"
)

const (
	envPrefix = "DOCBACKUP"
)

// envBindings maps config keys to the environment variables operators
// already use for the backup service.
var envBindings = map[string]string{
	"backup.destination":           "BACKUP_DESTINATION",
	"backup.compression":           "BACKUP_COMPRESSION",
	"backup.compression_algorithm": "BACKUP_COMPRESSION_ALGORITHM",
	"backup.encryption":            "BACKUP_ENCRYPTION",
	"backup.encryption_key":        "ENCRYPTION_KEY",
	"backup.cipher":                "BACKUP_CIPHER",
	"backup.retention_days":        "BACKUP_RETENTION_DAYS",
	"backup.parallelism":           "BACKUP_PARALLELISM",
	"backup.restore_preflight":     "BACKUP_RESTORE_PREFLIGHT",
	"schedule.expression":          "BACKUP_SCHEDULE",
	"schedule.timezone":            "BACKUP_TIMEZONE",
	"datastore.path":               "DATASTORE_PATH",
	"mongo.host":                   "DB_MONGODB_HOST",
	"mongo.port":                   "DB_MONGODB_PORT",
	"mongo.database":               "DB_MONGODB_DATABASE",
	"mongo.username":               "DB_MONGODB_USERNAME",
	"mongo.password":               "DB_MONGODB_PASSWORD",
	"global.log_level":             "LOG_LEVEL",
	"global.log_format":            "LOG_FORMAT",
	"global.operation_timeout":     "OPERATION_TIMEOUT",
	"notifications.webhook_url":    "NOTIFY_WEBHOOK_URL",
	"metrics.textfile":             "METRICS_TEXTFILE",
}

// Load reads configuration from a file, env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	for key, env := range envBindings {
		if err := vp.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	setDefaults(vp)

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		vp.SetConfigFile(resolved)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}
	if envPath := os.Getenv("DOCBACKUP_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		"docbackup.yaml",
		"docbackup.yml",
		"docbackup.toml",
		"docbackup.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "docbackup")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", nil
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "json")
	vp.SetDefault("global.operation_timeout", "2h")
	vp.SetDefault("backup.destination", "/backups")
	vp.SetDefault("backup.compression", false)
	vp.SetDefault("backup.compression_algorithm", compress.TypeGzip)
	vp.SetDefault("backup.encryption", false)
	vp.SetDefault("backup.cipher", cryptoutil.CipherDARE)
	vp.SetDefault("backup.retention_days", 30)
	vp.SetDefault("backup.parallelism", 1)
	vp.SetDefault("backup.restore_preflight", true)
	vp.SetDefault("datastore.path", "./data")
	vp.SetDefault("mongo.host", "mongodb")
	vp.SetDefault("mongo.port", 27017)
	vp.SetDefault("mongo.database", "document_processing")
	vp.SetDefault("notifications.retry_count", 3)
	vp.SetDefault("notifications.retry_backoff", "5s")
	vp.SetDefault("schedule.expression", "0 3 * * *")
	vp.SetDefault("schedule.timezone", "")
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = 2 * time.Hour
	}
	if cfg.Notifications.RetryBackoff == 0 {
		cfg.Notifications.RetryBackoff = 5 * time.Second
	}
}

func expandEnv(cfg *Config) {
	cfg.Backup.Destination = os.ExpandEnv(cfg.Backup.Destination)
	cfg.Backup.EncryptionKey = os.ExpandEnv(cfg.Backup.EncryptionKey)
	cfg.Mongo.Username = os.ExpandEnv(cfg.Mongo.Username)
	cfg.Mongo.Password = os.ExpandEnv(cfg.Mongo.Password)
	cfg.Notifications.WebhookURL = os.ExpandEnv(cfg.Notifications.WebhookURL)
	for i := range cfg.Notifications.Webhooks {
		cfg.Notifications.Webhooks[i].URL = os.ExpandEnv(cfg.Notifications.Webhooks[i].URL)
	}
}

// Validate rejects configurations that would fail later or silently
// weaken a backup.
func (c *Config) Validate() error {
	var errs []error
	if c.Backup.Destination == "" {
		errs = append(errs, errors.New("BACKUP_DESTINATION must not be empty"))
	}
	if c.Backup.Encryption && c.Backup.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY must be set when BACKUP_ENCRYPTION is enabled"))
	}
	if c.Backup.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative: %d", c.Backup.RetentionDays))
	}
	if c.Backup.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("BACKUP_PARALLELISM must be at least 1: %d", c.Backup.Parallelism))
	}
	if algo := c.Backup.CompressionAlgorithm; algo == compress.TypeNone || !compress.Valid(algo) {
		errs = append(errs, fmt.Errorf("unsupported BACKUP_COMPRESSION_ALGORITHM: %s", algo))
	}
	if !cryptoutil.ValidCipher(c.Backup.Cipher) {
		errs = append(errs, fmt.Errorf("unsupported BACKUP_CIPHER: %s", c.Backup.Cipher))
	}
	if _, err := util.ParseDailySchedule(c.Schedule.Expression); err != nil {
		errs = append(errs, fmt.Errorf("BACKUP_SCHEDULE: %w", err))
	}
	if _, err := util.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("BACKUP_TIMEZONE: %w", err))
	}
	switch strings.ToLower(c.Global.LogFormat) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unsupported LOG_FORMAT: %s", c.Global.LogFormat))
	}
	return errors.Join(errs...)
}

// ManagerConfig builds the backup manager configuration.
func (c *Config) ManagerConfig() backup.Config {
	return backup.Config{
		Root:                 c.Backup.Destination,
		Compression:          c.Backup.Compression,
		CompressionAlgorithm: c.Backup.CompressionAlgorithm,
		Encryption:           c.Backup.Encryption,
		EncryptionKey:        c.Backup.EncryptionKey,
		Cipher:               c.Backup.Cipher,
		RetentionDays:        c.Backup.RetentionDays,
		Parallelism:          c.Backup.Parallelism,
		Preflight:            c.Backup.RestorePreflight,
	}
}
