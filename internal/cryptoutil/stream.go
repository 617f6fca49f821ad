package cryptoutil

import (
	"bytes"
	"fmt"

	"github.com/minio/sio"
)

const (
	CipherDARE = "dare"
	CipherCBC  = "aes-256-cbc"
)

// Seal encrypts plain using DARE (authenticated, sio).
func Seal(plain, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: %d (expected %d bytes)", len(key), KeySize)
	}
	var out bytes.Buffer
	if _, err := sio.Encrypt(&out, bytes.NewReader(plain), sio.Config{Key: key}); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return out.Bytes(), nil
}

// Open decrypts and authenticates a DARE payload.
func Open(data, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: %d (expected %d bytes)", len(key), KeySize)
	}
	var out bytes.Buffer
	if _, err := sio.Decrypt(&out, bytes.NewReader(data), sio.Config{Key: key}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return out.Bytes(), nil
}

// Encrypt dispatches to the named cipher.
func Encrypt(kind string, plain, key []byte) ([]byte, error) {
	switch kind {
	case "", CipherDARE:
		return Seal(plain, key)
	case CipherCBC:
		return EncryptCBC(plain, key)
	default:
		return nil, fmt.Errorf("unsupported cipher: %s", kind)
	}
}

// Decrypt dispatches to the named cipher.
func Decrypt(kind string, data, key []byte) ([]byte, error) {
	switch kind {
	case "", CipherDARE:
		return Open(data, key)
	case CipherCBC:
		return DecryptCBC(data, key)
	default:
		return nil, fmt.Errorf("unsupported cipher: %s", kind)
	}
}

// ValidCipher reports whether kind names a supported cipher.
func ValidCipher(kind string) bool {
	return kind == CipherDARE || kind == CipherCBC
}
