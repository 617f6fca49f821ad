package backup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBackupExists   = errors.New("backup already exists")
	ErrBackupNotFound = errors.New("backup not found")
	ErrCorruptBackup  = errors.New("corrupt backup")
	ErrDatastore      = errors.New("datastore error")

	errBackupInProgress = errors.New("backup is still being written")
)

// OpError records the operation, backup and collection an error occurred in.
type OpError struct {
	Op         string
	Backup     string
	Collection string
	Err        error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Backup != "" {
		fmt.Fprintf(&b, " backup %q", e.Backup)
	}
	if e.Collection != "" {
		fmt.Fprintf(&b, " collection %q", e.Collection)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op, backup, collection string, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, Backup: backup, Collection: collection, Err: err}
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptBackup, fmt.Sprintf(format, args...))
}

func datastoreError(phase string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDatastore, phase, err)
}
