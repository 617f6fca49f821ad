package backup

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/rowjay/docbackup/internal/compress"
	"github.com/rowjay/docbackup/internal/cryptoutil"
	"github.com/rowjay/docbackup/internal/datastore"
)

// ManifestFile is written last into every backup directory; its presence
// marks the backup as complete.
const ManifestFile = "backup-info.json"

const timestampLayout = "2006-01-02T15:04:05.000Z"

type CollectionEntry struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
	Size      int64  `json:"size"`
	Checksum  string `json:"checksum,omitempty"`
}

// EncryptionInfo records how the artifact key was derived. Manifests
// without it were written with the legacy padded key and AES-256-CBC.
type EncryptionInfo struct {
	Cipher  string `json:"cipher"`
	KDF     string `json:"kdf"`
	Salt    string `json:"salt,omitempty"`
	Time    uint32 `json:"time,omitempty"`
	Memory  uint32 `json:"memory,omitempty"`
	Threads uint8  `json:"threads,omitempty"`
}

type Manifest struct {
	// Name is the backup directory; it is not stored in the file.
	Name string `json:"-"`

	Timestamp      string            `json:"timestamp"`
	Collections    []CollectionEntry `json:"collections"`
	TotalDocuments int               `json:"totalDocuments"`
	TotalSize      int64             `json:"totalSize"`
	Compressed     bool              `json:"compressed"`
	Encrypted      bool              `json:"encrypted"`
	Compression    string            `json:"compression,omitempty"`
	Encryption     *EncryptionInfo   `json:"encryption,omitempty"`
	ToolVersion    string            `json:"toolVersion,omitempty"`
}

// Time parses Timestamp. The second result is false when it is missing or
// malformed.
func (m *Manifest) Time() (time.Time, bool) {
	if m == nil || m.Timestamp == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// CompressionKind returns the compression algorithm applied to every
// artifact, or compress.TypeNone.
func (m *Manifest) CompressionKind() string {
	if !m.Compressed {
		return compress.TypeNone
	}
	if m.Compression == "" {
		return compress.TypeGzip
	}
	return m.Compression
}

// CipherKind returns the cipher applied to every artifact, or "".
func (m *Manifest) CipherKind() string {
	if !m.Encrypted {
		return ""
	}
	if m.Encryption == nil || m.Encryption.Cipher == "" {
		return cryptoutil.CipherCBC
	}
	return m.Encryption.Cipher
}

// ArtifactName is the file name of a collection's artifact:
// <collection>.json[.gz|.zst][.enc].
func (m *Manifest) ArtifactName(collection string) string {
	return artifactName(collection, compress.Suffix(m.CompressionKind()), m.Encrypted)
}

func artifactName(collection, compressSuffix string, encrypted bool) string {
	name := collection + ".json" + compressSuffix
	if encrypted {
		name += ".enc"
	}
	return name
}

func (m *Manifest) validate() error {
	if m.Collections == nil {
		return fmt.Errorf("manifest has no collections list")
	}
	seen := make(map[string]struct{}, len(m.Collections))
	for _, entry := range m.Collections {
		if err := datastore.ValidateCollectionName(entry.Name); err != nil {
			return err
		}
		if _, dup := seen[entry.Name]; dup {
			return fmt.Errorf("collection %q listed twice", entry.Name)
		}
		seen[entry.Name] = struct{}{}
		if entry.Documents < 0 || entry.Size < 0 {
			return fmt.Errorf("collection %q has negative counters", entry.Name)
		}
	}
	if m.Compressed && !compress.Valid(m.CompressionKind()) {
		return fmt.Errorf("unknown compression %q", m.Compression)
	}
	if m.Encrypted {
		if !cryptoutil.ValidCipher(m.CipherKind()) {
			return fmt.Errorf("unknown cipher %q", m.CipherKind())
		}
		if info := m.Encryption; info != nil {
			switch info.KDF {
			case cryptoutil.KDFArgon2id:
				if _, err := info.kdfParams(); err != nil {
					return err
				}
			case cryptoutil.KDFLegacy:
			default:
				return fmt.Errorf("unknown kdf %q", info.KDF)
			}
		}
	}
	return nil
}

func (e *EncryptionInfo) kdfParams() (cryptoutil.KDFParams, error) {
	salt, err := base64.StdEncoding.DecodeString(e.Salt)
	if err != nil {
		return cryptoutil.KDFParams{}, fmt.Errorf("decode kdf salt: %w", err)
	}
	if len(salt) == 0 || e.Time == 0 || e.Memory == 0 || e.Threads == 0 {
		return cryptoutil.KDFParams{}, fmt.Errorf("incomplete kdf parameters")
	}
	return cryptoutil.KDFParams{Salt: salt, Time: e.Time, Memory: e.Memory, Threads: e.Threads}, nil
}

func newEncryptionInfo(cipher string, p cryptoutil.KDFParams) *EncryptionInfo {
	return &EncryptionInfo{
		Cipher:  cipher,
		KDF:     cryptoutil.KDFArgon2id,
		Salt:    base64.StdEncoding.EncodeToString(p.Salt),
		Time:    p.Time,
		Memory:  p.Memory,
		Threads: p.Threads,
	}
}

// ParseManifest decodes and validates a backup-info.json document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

func encodeManifest(m *Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
