// Package dump shells out to the MongoDB database tools for whole-database
// dumps that sit alongside the collection-level backups.
package dump

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rowjay/docbackup/internal/config"
	"github.com/rowjay/docbackup/internal/util"
)

const maxLogLine = 1024 * 1024

type Mongo struct {
	cfg config.MongoConfig
	log zerolog.Logger
}

func NewMongo(cfg config.MongoConfig, log zerolog.Logger) *Mongo {
	return &Mongo{cfg: cfg, log: log.With().Str("component", "dump").Logger()}
}

// Dump runs mongodump for the configured database into outDir.
func (m *Mongo) Dump(ctx context.Context, outDir string) error {
	if outDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if err := m.run(ctx, "mongodump", m.dumpArgs(outDir)); err != nil {
		return err
	}
	m.log.Info().Str("database", m.cfg.Database).Str("out", outDir).Msg("database dumped")
	return nil
}

// Restore runs mongorestore against a directory produced by Dump.
func (m *Mongo) Restore(ctx context.Context, dir string) error {
	if dir == "" {
		return fmt.Errorf("dump directory is required")
	}
	if err := m.run(ctx, "mongorestore", m.restoreArgs(dir)); err != nil {
		return err
	}
	m.log.Info().Str("dir", dir).Msg("database restored")
	return nil
}

func (m *Mongo) dumpArgs(outDir string) []string {
	args := []string{"--host", m.address(), "--db", m.cfg.Database, "--out", outDir}
	return append(args, m.credentialArgs()...)
}

func (m *Mongo) restoreArgs(dir string) []string {
	args := []string{"--host", m.address()}
	args = append(args, m.credentialArgs()...)
	return append(args, dir)
}

func (m *Mongo) address() string {
	if m.cfg.Port == 0 {
		return m.cfg.Host
	}
	return m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
}

// Credentials are only passed when both parts are set.
func (m *Mongo) credentialArgs() []string {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return nil
	}
	return []string{"--username", m.cfg.Username, "--password", m.cfg.Password}
}

func (m *Mongo) run(ctx context.Context, name string, args []string) error {
	if err := util.RequireBinary(name); err != nil {
		return err
	}
	cmd := util.Command(ctx, name, args, nil)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	m.log.Debug().Str("tool", name).Msg("starting")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	var eg errgroup.Group
	eg.Go(func() error { return m.forward(name, stdout) })
	eg.Go(func() error { return m.forward(name, stderr) })
	pipeErr := eg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return pipeErr
}

// forward copies tool output into the log line by line. Lines longer than
// maxLogLine end the logging but the pipe is still drained so the tool
// never blocks on a full pipe.
func (m *Mongo) forward(tool string, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		m.log.Info().Str("tool", tool).Msg(scanner.Text())
	}
	err := scanner.Err()
	if _, drainErr := io.Copy(io.Discard, r); err == nil {
		err = drainErr
	}
	if err != nil {
		return fmt.Errorf("read %s output: %w", tool, err)
	}
	return nil
}
