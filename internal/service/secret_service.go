package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/secret"
)

// SecretService seals values before they reach the store and opens them
// on the way out. Plaintext never appears in logs or audit payloads.
type SecretService struct {
	store  secret.Store
	cipher secret.Cipher
	logger *slog.Logger
}

// NewSecretService creates a SecretService. logger may be nil.
func NewSecretService(store secret.Store, cipher secret.Cipher, logger *slog.Logger) *SecretService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecretService{store: store, cipher: cipher, logger: logger}
}

// Set seals and stores one secret.
func (s *SecretService) Set(ctx context.Context, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return fault.Validation("secret name is required")
	}
	if value == "" {
		return fault.Validation("secret value is required")
	}
	blob, err := s.cipher.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}
	if err := s.store.Put(ctx, name, blob); err != nil {
		return err
	}
	s.logger.Info("secret stored", "name", name)
	return nil
}

// Get opens one secret's value.
func (s *SecretService) Get(ctx context.Context, name string) (string, error) {
	blob, err := s.store.Get(ctx, name)
	if err != nil {
		return "", err
	}
	plaintext, err := s.cipher.Open(blob)
	if err != nil {
		return "", fmt.Errorf("open secret %q: %w", name, err)
	}
	return string(plaintext), nil
}

// Delete removes one secret.
func (s *SecretService) Delete(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("secret deleted", "name", name)
	return nil
}

// List returns secret names and update times, never values.
func (s *SecretService) List(ctx context.Context) ([]secret.Meta, error) {
	return s.store.List(ctx)
}
