package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func keyPaths(t *testing.T) KeyConfig {
	t.Helper()
	dir := t.TempDir()
	return KeyConfig{
		PrivateKeyPath: filepath.Join(dir, "nested", "keys", "private.pem"),
		PublicKeyPath:  filepath.Join(dir, "nested", "keys", "public.pem"),
	}
}

func TestNewKeyManager_GeneratesWhenMissing(t *testing.T) {
	cfg := keyPaths(t)
	km, err := NewKeyManager(cfg)
	if err != nil {
		t.Fatalf("NewKeyManager: %v", err)
	}
	if km.State() != KeysGenerated {
		t.Errorf("State = %v, want generated", km.State())
	}
	if km.PrivateKey() == nil || km.PublicKey() == nil {
		t.Fatal("keys not set")
	}
	if km.PrivateKey().N.BitLen() != 2048 {
		t.Errorf("key size = %d, want 2048", km.PrivateKey().N.BitLen())
	}
	if km.KeyID() == "" {
		t.Error("KeyID empty")
	}

	privInfo, err := os.Stat(cfg.PrivateKeyPath)
	if err != nil {
		t.Fatalf("private key not written: %v", err)
	}
	if perm := privInfo.Mode().Perm(); perm != 0o600 {
		t.Errorf("private key perm = %o, want 600", perm)
	}
	pubBytes, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		t.Fatalf("public key not written: %v", err)
	}
	if string(pubBytes) != km.PublicKeyPEM() {
		t.Error("PublicKeyPEM differs from file on disk")
	}
}

func TestNewKeyManager_LoadsExisting(t *testing.T) {
	cfg := keyPaths(t)
	first, err := NewKeyManager(cfg)
	if err != nil {
		t.Fatalf("first NewKeyManager: %v", err)
	}
	second, err := NewKeyManager(cfg)
	if err != nil {
		t.Fatalf("second NewKeyManager: %v", err)
	}
	if second.State() != KeysLoaded {
		t.Errorf("State = %v, want loaded", second.State())
	}
	if !second.PublicKey().Equal(first.PublicKey()) {
		t.Error("loaded key differs from generated key")
	}
	if second.KeyID() != first.KeyID() {
		t.Error("KeyID changed across restarts")
	}
}

func TestNewKeyManager_RegeneratesWhenOneFileMissing(t *testing.T) {
	cfg := keyPaths(t)
	first, err := NewKeyManager(cfg)
	if err != nil {
		t.Fatalf("NewKeyManager: %v", err)
	}
	if err := os.Remove(cfg.PublicKeyPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	second, err := NewKeyManager(cfg)
	if err != nil {
		t.Fatalf("NewKeyManager: %v", err)
	}
	if second.State() != KeysGenerated {
		t.Errorf("State = %v, want generated", second.State())
	}
	if second.PublicKey().Equal(first.PublicKey()) {
		t.Error("expected a fresh keypair")
	}
	if _, err := os.Stat(cfg.PublicKeyPath); err != nil {
		t.Errorf("public key not rewritten: %v", err)
	}
}

func TestNewKeyManager_CorruptFile(t *testing.T) {
	cfg := keyPaths(t)
	if _, err := NewKeyManager(cfg); err != nil {
		t.Fatalf("NewKeyManager: %v", err)
	}
	if err := os.WriteFile(cfg.PrivateKeyPath, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := NewKeyManager(cfg)
	var kme *KeyMaterialError
	if !errors.As(err, &kme) {
		t.Fatalf("want *KeyMaterialError, got %v", err)
	}
	if kme.Op != "parse" || kme.Path != cfg.PrivateKeyPath {
		t.Errorf("got Op=%q Path=%q", kme.Op, kme.Path)
	}
}

func TestNewKeyManager_MismatchedPair(t *testing.T) {
	a := keyPaths(t)
	b := keyPaths(t)
	if _, err := NewKeyManager(a); err != nil {
		t.Fatalf("NewKeyManager a: %v", err)
	}
	if _, err := NewKeyManager(b); err != nil {
		t.Fatalf("NewKeyManager b: %v", err)
	}
	mixed := KeyConfig{PrivateKeyPath: a.PrivateKeyPath, PublicKeyPath: b.PublicKeyPath}
	_, err := NewKeyManager(mixed)
	var kme *KeyMaterialError
	if !errors.As(err, &kme) {
		t.Fatalf("want *KeyMaterialError for mismatched pair, got %v", err)
	}
}

func TestNewKeyManager_EmptyPaths(t *testing.T) {
	_, err := NewKeyManager(KeyConfig{PublicKeyPath: "x"})
	var kme *KeyMaterialError
	if !errors.As(err, &kme) || kme.Op != "config" {
		t.Errorf("empty private path: got %v", err)
	}
	_, err = NewKeyManager(KeyConfig{PrivateKeyPath: "x"})
	if !errors.As(err, &kme) || kme.Op != "config" {
		t.Errorf("empty public path: got %v", err)
	}
}

func TestNewVerifierKeys(t *testing.T) {
	km := NewTestKeyManager(t)
	vk, err := NewVerifierKeys(km.PublicKeyPEM())
	if err != nil {
		t.Fatalf("NewVerifierKeys: %v", err)
	}
	if vk.PrivateKey() != nil {
		t.Error("verifier keys should have no private key")
	}
	if vk.KeyID() != km.KeyID() {
		t.Error("verifier KeyID differs")
	}
	if _, err := NewVerifierKeys("nope"); err == nil {
		t.Error("NewVerifierKeys should reject garbage")
	}
}
