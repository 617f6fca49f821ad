package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global        GlobalConfig        `mapstructure:"global"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Restore       RestoreConfig       `mapstructure:"restore"`
	Datastore     DatastoreConfig     `mapstructure:"datastore"`
	Mongo         MongoConfig         `mapstructure:"mongo"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
}

type GlobalConfig struct {
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"` // json or console
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

type BackupConfig struct {
	Destination          string `mapstructure:"destination"`
	Compression          bool   `mapstructure:"compression"`
	CompressionAlgorithm string `mapstructure:"compression_algorithm"` // gzip, zstd
	Encryption           bool   `mapstructure:"encryption"`
	EncryptionKey        string `mapstructure:"encryption_key"`
	Cipher               string `mapstructure:"cipher"` // dare, aes-256-cbc
	RetentionDays        int    `mapstructure:"retention_days"`
	Parallelism          int    `mapstructure:"parallelism"`
	RestorePreflight     bool   `mapstructure:"restore_preflight"`
}

type RestoreConfig struct {
	Collections []string `mapstructure:"collections"`
}

type DatastoreConfig struct {
	Path string `mapstructure:"path"` // badger directory; empty means in-memory
}

type MongoConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type NotificationsConfig struct {
	WebhookURL   string          `mapstructure:"webhook_url"`
	Webhooks     []WebhookConfig `mapstructure:"webhooks"`
	RetryCount   int             `mapstructure:"retry_count"`
	RetryBackoff time.Duration   `mapstructure:"retry_backoff"`
}

type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type ScheduleConfig struct {
	Expression string `mapstructure:"expression"` // "M H * * *"
	Timezone   string `mapstructure:"timezone"`
}
