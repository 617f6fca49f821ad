package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Local is a backup root directory on the local filesystem. Keys are
// slash-separated paths relative to BasePath.
type Local struct {
	BasePath string
}

func NewLocal(path string) *Local {
	return &Local{BasePath: path}
}

func (l *Local) Path(key string) string {
	return filepath.Join(l.BasePath, filepath.FromSlash(key))
}

// CreateDir creates the directory key, creating BasePath if needed. It never
// reuses an existing directory: a collision returns an error wrapping ErrExist.
func (l *Local) CreateDir(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := os.MkdirAll(l.BasePath, 0o750); err != nil {
		return fmt.Errorf("create backup root: %w", err)
	}
	if err := os.Mkdir(l.Path(key), 0o750); err != nil {
		return err
	}
	return nil
}

// Put writes data to key through a temporary file and a rename, so readers
// never observe a partially written object. It returns the bytes written.
func (l *Local) Put(ctx context.Context, key string, data []byte) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	target := l.Path(key)
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (l *Local) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return os.ReadFile(l.Path(key))
}

func (l *Local) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return ObjectInfo{}, ctx.Err()
	default:
	}
	info, err := os.Stat(l.Path(key))
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: info.Size(), Modified: info.ModTime(), IsDir: info.IsDir()}, nil
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	_, err := os.Stat(l.Path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ListDirs returns the immediate subdirectories of BasePath sorted by name.
// A missing BasePath yields an empty list.
func (l *Local) ListDirs(ctx context.Context) ([]ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	entries, err := os.ReadDir(l.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []ObjectInfo{}, nil
		}
		return nil, err
	}
	infos := []ObjectInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, ObjectInfo{Key: entry.Name(), Modified: stat.ModTime(), IsDir: true})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// RemoveAll deletes key and everything below it.
func (l *Local) RemoveAll(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return os.RemoveAll(l.Path(key))
}
