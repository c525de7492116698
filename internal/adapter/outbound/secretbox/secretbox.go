// Package secretbox seals secret values for at-rest storage. The key is
// derived with Argon2id from a machine-bound identity and a random salt
// kept next to the database, so blobs copied to another machine do not
// open. This is obfuscation against casual file access, not protection
// from an attacker running as the same user.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/argon2"

	"github.com/Geo-fs/NeroAI/internal/domain/secret"
)

const (
	blobVersion = "v1"
	saltFile    = "secret.salt"
	saltLen     = 16
	keyLen      = 32
)

// Box seals and opens secret blobs with AES-256-GCM.
type Box struct {
	aead cipher.AEAD
}

// New derives the sealing key from the local machine identity and the
// salt stored under dataDir, creating the salt on first use.
func New(dataDir string) (*Box, error) {
	salt, err := loadOrCreateSalt(filepath.Join(dataDir, saltFile))
	if err != nil {
		return nil, err
	}

	p := argon2id.DefaultParams
	key := argon2.IDKey(machineIdentity(), salt, p.Iterations, p.Memory, p.Parallelism, keyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext into a v1 blob: version prefix plus
// base64(nonce || ciphertext).
func (b *Box) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, plaintext, nil)
	return blobVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal.
func (b *Box) Open(blob string) ([]byte, error) {
	version, encoded, ok := strings.Cut(blob, ":")
	if !ok || version != blobVersion {
		return nil, fmt.Errorf("unsupported blob format")
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode blob: %w", err)
	}
	if len(sealed) < b.aead.NonceSize() {
		return nil, fmt.Errorf("blob too short")
	}
	nonce, ciphertext := sealed[:b.aead.NonceSize()], sealed[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return plaintext, nil
}

// loadOrCreateSalt reads the salt file, generating it on first use.
func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltLen {
		return salt, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	salt = make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	return salt, nil
}

// machineIdentity combines a machine id with the current username. Every
// component is best-effort; a stable non-empty identity is all the KDF
// needs.
func machineIdentity() []byte {
	var parts []string
	if id, err := os.ReadFile("/etc/machine-id"); err == nil {
		parts = append(parts, strings.TrimSpace(string(id)))
	}
	if host, err := os.Hostname(); err == nil {
		parts = append(parts, host)
	}
	if u, err := user.Current(); err == nil {
		parts = append(parts, u.Username)
	}
	if len(parts) == 0 {
		parts = append(parts, "nero-local")
	}
	return []byte(strings.Join(parts, "|"))
}

var _ secret.Cipher = (*Box)(nil)
