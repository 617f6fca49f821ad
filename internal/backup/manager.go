// Package backup creates, restores, lists, verifies and prunes point-in-time
// snapshots of a document datastore.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rowjay/docbackup/internal/compress"
	"github.com/rowjay/docbackup/internal/cryptoutil"
	"github.com/rowjay/docbackup/internal/datastore"
	"github.com/rowjay/docbackup/internal/document"
	"github.com/rowjay/docbackup/internal/lock"
	"github.com/rowjay/docbackup/internal/storage"
	"github.com/rowjay/docbackup/internal/util"
	"github.com/rowjay/docbackup/internal/version"
)

const (
	lockFile     = ".docbackup.lock"
	markerSuffix = ".inprogress"
)

// Config is everything the manager needs; nothing is read from the
// environment after construction.
type Config struct {
	Root                 string
	Compression          bool
	CompressionAlgorithm string
	Encryption           bool
	EncryptionKey        string
	Cipher               string
	RetentionDays        int
	Parallelism          int
	// Preflight decodes every artifact before the first collection is replaced.
	Preflight bool
}

type Manager struct {
	cfg   Config
	store *storage.Local
	log   zerolog.Logger
	now   func() time.Time
}

func NewManager(cfg Config, log zerolog.Logger) (*Manager, error) {
	if cfg.Root == "" {
		return nil, errors.New("backup root is required")
	}
	if cfg.CompressionAlgorithm == "" {
		cfg.CompressionAlgorithm = compress.TypeGzip
	}
	if cfg.Compression && (cfg.CompressionAlgorithm == compress.TypeNone || !compress.Valid(cfg.CompressionAlgorithm)) {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", cfg.CompressionAlgorithm)
	}
	if cfg.Cipher == "" {
		cfg.Cipher = cryptoutil.CipherDARE
	}
	if !cryptoutil.ValidCipher(cfg.Cipher) {
		return nil, fmt.Errorf("unsupported cipher: %s", cfg.Cipher)
	}
	if cfg.Encryption && cfg.EncryptionKey == "" {
		return nil, errors.New("encryption is enabled but no encryption key is configured")
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("retention days must not be negative: %d", cfg.RetentionDays)
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Manager{
		cfg:   cfg,
		store: storage.NewLocal(cfg.Root),
		log:   log.With().Str("component", "backup").Logger(),
		now:   time.Now,
	}, nil
}

func (m *Manager) Root() string { return m.cfg.Root }

// CreateBackup snapshots every collection of ds into a new backup directory.
// An empty name selects the timestamp-based default. On failure the
// directory is left behind without a manifest.
func (m *Manager) CreateBackup(ctx context.Context, ds datastore.Datastore, name string) (*Manifest, error) {
	started := m.now().UTC()
	if name == "" {
		name = util.BackupName(started)
	}
	if err := util.ValidateName(name); err != nil {
		return nil, opError("create", name, "", err)
	}

	op, err := lock.AcquireShared(m.lockPath())
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			err = fmt.Errorf("restore in progress: %w", err)
		}
		return nil, opError("create", name, "", err)
	}
	defer op.Release()

	marker, err := lock.Acquire(m.markerPath(name))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, opError("create", name, "", ErrBackupExists)
		}
		return nil, opError("create", name, "", err)
	}
	defer func() {
		if err := marker.ReleaseAndRemove(); err != nil {
			m.log.Warn().Err(err).Str("backup", name).Msg("failed to remove in-progress marker")
		}
	}()

	if err := m.store.CreateDir(ctx, name); err != nil {
		if errors.Is(err, storage.ErrExist) {
			return nil, opError("create", name, "", ErrBackupExists)
		}
		return nil, opError("create", name, "", fmt.Errorf("create backup directory: %w", err))
	}

	manifest := &Manifest{
		Name:        name,
		Timestamp:   started.Format(timestampLayout),
		Collections: []CollectionEntry{},
		Compressed:  m.cfg.Compression,
		Encrypted:   m.cfg.Encryption,
		ToolVersion: version.Version,
	}
	if m.cfg.Compression {
		manifest.Compression = m.cfg.CompressionAlgorithm
	}
	var key []byte
	if m.cfg.Encryption {
		params, err := cryptoutil.NewKDFParams()
		if err != nil {
			return nil, opError("create", name, "", err)
		}
		key, err = cryptoutil.DeriveKey(m.cfg.EncryptionKey, params)
		if err != nil {
			return nil, opError("create", name, "", err)
		}
		manifest.Encryption = newEncryptionInfo(m.cfg.Cipher, params)
	}

	logger := m.log.With().Str("backup", name).Logger()
	logger.Info().
		Bool("compressed", manifest.Compressed).
		Bool("encrypted", manifest.Encrypted).
		Msg("backup started")

	collections, err := ds.ListCollections(ctx)
	if err != nil {
		return nil, opError("create", name, "", datastoreError("list collections", err))
	}
	for _, coll := range collections {
		if err := datastore.ValidateCollectionName(coll); err != nil {
			return nil, opError("create", name, coll, err)
		}
	}

	entries := make([]CollectionEntry, len(collections))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.cfg.Parallelism)
	for i, coll := range collections {
		group.Go(func() error {
			entry, err := m.backupCollection(groupCtx, ds, name, coll, manifest, key)
			if err != nil {
				return opError("create", name, coll, err)
			}
			entries[i] = entry
			logger.Info().
				Str("collection", coll).
				Int("documents", entry.Documents).
				Int64("size", entry.Size).
				Msg("collection backed up")
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("backup failed")
		return nil, err
	}

	for _, entry := range entries {
		manifest.Collections = append(manifest.Collections, entry)
		manifest.TotalDocuments += entry.Documents
		manifest.TotalSize += entry.Size
	}

	encoded, err := encodeManifest(manifest)
	if err != nil {
		return nil, opError("create", name, "", fmt.Errorf("encode manifest: %w", err))
	}
	if _, err := m.store.Put(ctx, path.Join(name, ManifestFile), encoded); err != nil {
		return nil, opError("create", name, "", fmt.Errorf("write manifest: %w", err))
	}

	logger.Info().
		Int("collections", len(manifest.Collections)).
		Int("documents", manifest.TotalDocuments).
		Int64("size", manifest.TotalSize).
		Dur("duration", m.now().Sub(started)).
		Msg("backup completed")
	return manifest, nil
}

func (m *Manager) backupCollection(ctx context.Context, ds datastore.Datastore, name, coll string, manifest *Manifest, key []byte) (CollectionEntry, error) {
	if err := ctx.Err(); err != nil {
		return CollectionEntry{}, err
	}
	docs, err := ds.GetAllDocuments(ctx, coll)
	if err != nil {
		return CollectionEntry{}, datastoreError("read documents", err)
	}
	data, err := document.Serialize(docs)
	if err != nil {
		return CollectionEntry{}, err
	}
	data, err = encode(data, manifest, key)
	if err != nil {
		return CollectionEntry{}, err
	}
	size, err := m.store.Put(ctx, path.Join(name, manifest.ArtifactName(coll)), data)
	if err != nil {
		return CollectionEntry{}, fmt.Errorf("write artifact: %w", err)
	}
	return CollectionEntry{Name: coll, Documents: len(docs), Size: size, Checksum: checksum(data)}, nil
}

// encode applies compression then encryption.
func encode(data []byte, manifest *Manifest, key []byte) ([]byte, error) {
	var err error
	if manifest.Compressed {
		if data, err = compress.Compress(manifest.CompressionKind(), data); err != nil {
			return nil, err
		}
	}
	if manifest.Encrypted {
		if data, err = cryptoutil.Encrypt(manifest.CipherKind(), data, key); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// decode reverses encode. Every failure is reported as ErrCorruptBackup.
func decode(data []byte, manifest *Manifest, key []byte) ([]byte, error) {
	var err error
	if manifest.Encrypted {
		if data, err = cryptoutil.Decrypt(manifest.CipherKind(), data, key); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBackup, err)
		}
	}
	if manifest.Compressed {
		if data, err = compress.Decompress(manifest.CompressionKind(), data); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptBackup, err)
		}
	}
	return data, nil
}

// artifactKey derives the key an existing backup was encrypted with.
func (m *Manager) artifactKey(manifest *Manifest) ([]byte, error) {
	if !manifest.Encrypted {
		return nil, nil
	}
	if m.cfg.EncryptionKey == "" {
		return nil, errors.New("backup is encrypted but no encryption key is configured")
	}
	info := manifest.Encryption
	if info == nil || info.KDF == cryptoutil.KDFLegacy {
		return cryptoutil.LegacyKey(m.cfg.EncryptionKey), nil
	}
	params, err := info.kdfParams()
	if err != nil {
		return nil, corrupt("%v", err)
	}
	return cryptoutil.DeriveKey(m.cfg.EncryptionKey, params)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (m *Manager) lockPath() string {
	return filepath.Join(m.cfg.Root, lockFile)
}

func (m *Manager) markerPath(name string) string {
	return filepath.Join(m.cfg.Root, "."+name+markerSuffix)
}

// loadManifest resolves a backup directory and parses its manifest.
func (m *Manager) loadManifest(ctx context.Context, name string) (*Manifest, error) {
	if err := util.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackupNotFound, err)
	}
	info, err := m.store.Stat(ctx, name)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, ErrBackupNotFound
		}
		return nil, err
	}
	if !info.IsDir {
		return nil, ErrBackupNotFound
	}
	data, err := m.store.Get(ctx, path.Join(name, ManifestFile))
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, corrupt("manifest %s is missing", ManifestFile)
		}
		return nil, corrupt("read manifest: %v", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	manifest.Name = name
	return manifest, nil
}
