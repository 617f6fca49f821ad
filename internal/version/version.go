package version

// Set via -ldflags "-X github.com/rowjay/docbackup/internal/version.Version=..." at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns a one-line build description.
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}
