package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Field encrypts individual column values with AES-256-GCM. Without a key it
// stores values as plain bytes, which is only acceptable outside production.
type Field struct {
	aead cipher.AEAD
}

var ErrCiphertextTooShort = errors.New("ciphertext too short")

func NewField(key string) (*Field, error) {
	if key == "" {
		return &Field{}, nil
	}
	decoded := decodeKey(key)
	if len(decoded) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be 32 bytes after decoding, got %d", len(decoded))
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Field{aead: aead}, nil
}

func (f *Field) Configured() bool {
	return f != nil && f.aead != nil
}

// Seal returns nonce||ciphertext.
func (f *Field) Seal(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, nil
	}
	if !f.Configured() {
		return plain, nil
	}
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return f.aead.Seal(nonce, nonce, plain, nil), nil
}

func (f *Field) Open(sealed []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	if !f.Configured() {
		return sealed, nil
	}
	size := f.aead.NonceSize()
	if len(sealed) < size {
		return nil, ErrCiphertextTooShort
	}
	return f.aead.Open(nil, sealed[:size], sealed[size:], nil)
}

func (f *Field) SealString(value string) ([]byte, error) {
	return f.Seal([]byte(value))
}

func (f *Field) OpenString(sealed []byte) (string, error) {
	plain, err := f.Open(sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// decodeKey accepts hex (64 chars), standard base64 with or without padding,
// or a raw 32-byte string.
func decodeKey(raw string) []byte {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(raw); err == nil && len(decoded) == 32 {
			return decoded
		}
	}
	return []byte(raw)
}
