package util

import (
	"fmt"
	"strings"
	"time"
)

var nameReplacer = strings.NewReplacer(":", "-", ".", "-")

// BackupName builds the default backup name for when: "backup-" followed by
// the UTC ISO-8601 timestamp with ':' and '.' made filesystem safe.
func BackupName(when time.Time) string {
	return "backup-" + nameReplacer.Replace(when.UTC().Format("2006-01-02T15:04:05.000Z"))
}

// ValidateName rejects backup names that are not a single, visible path element.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("backup name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid backup name: %q", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("invalid backup name %q: must not start with '.'", name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("invalid backup name %q: must not contain path separators", name)
	}
	return nil
}
