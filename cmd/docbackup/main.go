package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rowjay/docbackup/internal/app"
	"github.com/rowjay/docbackup/internal/backup"
	"github.com/rowjay/docbackup/internal/config"
	"github.com/rowjay/docbackup/internal/logging"
	"github.com/rowjay/docbackup/internal/scheduler"
	"github.com/rowjay/docbackup/internal/util"
	"github.com/rowjay/docbackup/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	Destination   string
	DatastorePath string
	EncryptionKey string
	Compression   string
	Encrypt       bool
	RetentionDays int
	Parallelism   int
}

func main() {
	root := &rootFlags{}
	overrides := &overrideFlags{RetentionDays: -1}

	rootCmd := &cobra.Command{
		Use:           "docbackup",
		Short:         "Backup and restore for the document datastore",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	rootCmd.PersistentFlags().StringVar(&overrides.Destination, "destination", "", "Backup root directory")
	rootCmd.PersistentFlags().StringVar(&overrides.DatastorePath, "datastore-path", "", "Datastore directory")
	rootCmd.PersistentFlags().StringVar(&overrides.EncryptionKey, "encryption-key", "", "Encryption passphrase")
	rootCmd.PersistentFlags().StringVar(&overrides.Compression, "compression", "", "Compression algorithm (none, gzip, zstd)")
	rootCmd.PersistentFlags().BoolVar(&overrides.Encrypt, "encrypt", false, "Encrypt new backups")
	rootCmd.PersistentFlags().IntVar(&overrides.RetentionDays, "retention-days", -1, "Retention in days (0 keeps everything)")
	rootCmd.PersistentFlags().IntVar(&overrides.Parallelism, "parallelism", 0, "Collections processed concurrently during backup")

	rootCmd.AddCommand(newBackupCmd(root, overrides))
	rootCmd.AddCommand(newRestoreCmd(root, overrides))
	rootCmd.AddCommand(newListCmd(root, overrides))
	rootCmd.AddCommand(newVerifyCmd(root, overrides))
	rootCmd.AddCommand(newPruneCmd(root, overrides))
	rootCmd.AddCommand(newDeleteCmd(root, overrides))
	rootCmd.AddCommand(newScheduleCmd(root, overrides))
	rootCmd.AddCommand(newMongoDumpCmd(root, overrides))
	rootCmd.AddCommand(newMongoRestoreCmd(root, overrides))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runWithApp loads configuration, opens the datastore and hands fn a context
// bounded by the operation timeout.
func runWithApp(root *rootFlags, overrides *overrideFlags, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(root, overrides)
	if err != nil {
		return err
	}
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	a, closeStore, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn().Err(err).Msg("failed to close datastore")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Global.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Global.OperationTimeout)
		defer cancel()
	}
	return fn(ctx, a)
}

func newBackupCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(root, overrides, func(ctx context.Context, a *app.App) error {
				manifest, err := a.Backup(ctx, name)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), manifest.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Backup name (default: timestamp based)")
	return cmd
}

func newRestoreCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var name string
	var collections []string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace datastore collections with the contents of a backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return runWithApp(root, overrides, func(ctx context.Context, a *app.App) error {
				if len(collections) == 0 {
					collections = a.Cfg.Restore.Collections
				}
				n, err := a.Restore(ctx, name, collections)
				if err != nil {
					return err
				}
				a.Log.Info().Str("backup", name).Int("documents", n).Msg("restore completed")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Backup to restore")
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "Restore only these collections")
	return cmd
}

func newListCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(root, overrides, func(ctx context.Context, a *app.App) error {
				items, err := a.List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(items)
				}
				return printSummaries(cmd.OutOrStdout(), items)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printSummaries(out io.Writer, items []backup.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTIMESTAMP\tCOLLECTIONS\tDOCUMENTS\tSIZE\tSTATUS")
	for _, item := range items {
		status := "ok"
		if item.Error != "" {
			status = item.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", item.Name, item.Timestamp, item.Collections, item.Documents, item.Size, status)
	}
	return tw.Flush()
}

func newVerifyCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var name string
	var deep bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a backup is complete and readable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return runWithApp(root, overrides, func(ctx context.Context, a *app.App) error {
				res := a.Verify(ctx, name, deep)
				if !res.Valid {
					return fmt.Errorf("backup %s is invalid: %w", name, res.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d collections, %d documents)\n",
					name, len(res.Manifest.Collections), res.Manifest.TotalDocuments)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Backup to verify")
	cmd.Flags().BoolVar(&deep, "deep", false, "Decrypt and decode every artifact")
	return cmd
}

func newPruneCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(root, overrides, func(ctx context.Context, a *app.App) error {
				n, err := a.Prune(ctx)
				if err != nil {
					return err
				}
				a.Log.Info().Int("pruned", n).Msg("prune completed")
				return nil
			})
		},
	}
}

func newDeleteCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a single backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return runWithApp(root, overrides, func(ctx context.Context, a *app.App) error {
				return a.Delete(ctx, name)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Backup to delete")
	return cmd
}

func newScheduleCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily backup and retention job until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, overrides)
			if err != nil {
				return err
			}
			logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
			a, closeStore, err := app.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					logger.Warn().Err(err).Msg("failed to close datastore")
				}
			}()
			return runScheduler(cfg, a, logger)
		},
	}
}

func runScheduler(cfg *config.Config, a *app.App, logger zerolog.Logger) error {
	loc, err := util.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(cfg.Schedule.Expression, loc, a.ScheduledBackup, cfg.Global.OperationTimeout, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

func newMongoDumpCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "mongodump",
		Short: "Dump the configured MongoDB database with mongodump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			return runWithApp(root, overrides, func(ctx context.Context, a *app.App) error {
				return a.MongoDump(ctx, out)
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output directory")
	return cmd
}

func newMongoRestoreCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "mongorestore",
		Short: "Load a mongodump directory with mongorestore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return fmt.Errorf("--dir is required")
			}
			return runWithApp(root, overrides, func(ctx context.Context, a *app.App) error {
				return a.MongoRestore(ctx, dir)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Dump directory")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docbackup %s\n", version.String())
		},
	}
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, root, overrides)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.Destination != "" {
		cfg.Backup.Destination = overrides.Destination
	}
	if overrides.DatastorePath != "" {
		cfg.Datastore.Path = overrides.DatastorePath
	}
	if overrides.EncryptionKey != "" {
		cfg.Backup.EncryptionKey = overrides.EncryptionKey
	}
	if overrides.Compression != "" {
		if strings.EqualFold(overrides.Compression, "none") {
			cfg.Backup.Compression = false
		} else {
			cfg.Backup.Compression = true
			cfg.Backup.CompressionAlgorithm = overrides.Compression
		}
	}
	if overrides.Encrypt {
		cfg.Backup.Encryption = true
	}
	if overrides.RetentionDays >= 0 {
		cfg.Backup.RetentionDays = overrides.RetentionDays
	}
	if overrides.Parallelism > 0 {
		cfg.Backup.Parallelism = overrides.Parallelism
	}

	cfg.Global.LogFormat = strings.ToLower(cfg.Global.LogFormat)
	cfg.Backup.CompressionAlgorithm = strings.ToLower(cfg.Backup.CompressionAlgorithm)
	cfg.Backup.Cipher = strings.ToLower(cfg.Backup.Cipher)
}
