package cryptoutil

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	KeySize  = 32
	saltSize = 16

	KDFArgon2id = "argon2id"
	KDFLegacy   = "legacy"
)

// KDFParams are the Argon2id parameters recorded alongside a backup so the
// same key can be derived again at restore time.
type KDFParams struct {
	Salt    []byte
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// NewKDFParams returns default Argon2id parameters with a fresh random salt.
func NewKDFParams() (KDFParams, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return KDFParams{}, fmt.Errorf("generate salt: %w", err)
	}
	return KDFParams{Salt: salt, Time: 1, Memory: 64 * 1024, Threads: 4}, nil
}

// DeriveKey stretches an operator secret into a 32-byte key with Argon2id.
func DeriveKey(secret string, p KDFParams) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("encryption key is empty")
	}
	if len(p.Salt) == 0 {
		return nil, errors.New("kdf salt is empty")
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return nil, fmt.Errorf("invalid kdf parameters (time=%d memory=%d threads=%d)", p.Time, p.Memory, p.Threads)
	}
	return argon2.IDKey([]byte(secret), p.Salt, p.Time, p.Memory, p.Threads, KeySize), nil
}

// LegacyKey reproduces the key scheme of backups that carry no KDF record:
// the secret is right-padded with '0' characters or truncated to 32 bytes.
// It is not a key derivation function and is only used to read such backups.
func LegacyKey(secret string) []byte {
	key := make([]byte, KeySize)
	n := copy(key, secret)
	for i := n; i < KeySize; i++ {
		key[i] = '0'
	}
	return key
}
