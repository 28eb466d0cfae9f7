package security

import (
	"path/filepath"
	"testing"
)

// NewTestKeyManager generates a fresh keypair under t.TempDir(). For tests only.
func NewTestKeyManager(t testing.TB) *KeyManager {
	t.Helper()
	dir := t.TempDir()
	km, err := NewKeyManager(KeyConfig{
		PrivateKeyPath: filepath.Join(dir, "keys", "private.pem"),
		PublicKeyPath:  filepath.Join(dir, "keys", "public.pem"),
	})
	if err != nil {
		t.Fatalf("NewKeyManager: %v", err)
	}
	return km
}

// NewTestTokenService returns a TokenService over a fresh test keypair with default TTLs.
func NewTestTokenService(t testing.TB) *TokenService {
	t.Helper()
	ts, err := NewTokenService(NewTestKeyManager(t), TokenConfig{})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}
