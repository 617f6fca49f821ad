package util

import (
	"testing"
	"time"
)

func TestBackupName(t *testing.T) {
	when := time.Date(2024, 6, 1, 3, 0, 0, 250*int(time.Millisecond), time.UTC)
	if got := BackupName(when); got != "backup-2024-06-01T03-00-00-250Z" {
		t.Fatalf("unexpected name: %s", got)
	}
	if err := ValidateName(BackupName(when)); err != nil {
		t.Fatalf("default name should be valid: %v", err)
	}
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "../etc", "a/b", `a\b`, ".hidden"} {
		if err := ValidateName(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if err := ValidateName("nightly-2024"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
