package storage

import (
	"errors"
	"io/fs"
	"time"
)

// ErrExist is returned by CreateDir when the target already exists.
var ErrExist = fs.ErrExist

type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
	IsDir    bool
}

// IsNotExist reports whether err means the object is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
