package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const rsaKeyBits = 2048

// KeyState records how a KeyManager obtained its keys. It never changes after construction.
type KeyState int

const (
	KeysLoaded KeyState = iota + 1
	KeysGenerated
)

func (s KeyState) String() string {
	switch s {
	case KeysLoaded:
		return "loaded"
	case KeysGenerated:
		return "generated"
	default:
		return "uninitialized"
	}
}

// KeyConfig locates the PEM files backing the signing keypair.
type KeyConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
}

// KeySource supplies key material to a TokenService. Either key may be nil: a verify-only
// service has no private key, and signing then fails with ErrMissingPrivateKey.
type KeySource interface {
	PrivateKey() *rsa.PrivateKey
	PublicKey() *rsa.PublicKey
	KeyID() string
}

// KeyManager owns the process-wide RSA signing keypair. Construct it once at startup and pass
// it by reference; it is read-only afterwards and safe for concurrent use.
type KeyManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	publicPEM  []byte
	keyID      string
	state      KeyState
}

// NewKeyManager loads the keypair from cfg's paths. If either file is absent, a fresh RSA-2048
// keypair is generated and both files are (re)written, creating parent directories as needed.
// Any I/O or parse failure is returned as a *KeyMaterialError.
func NewKeyManager(cfg KeyConfig) (*KeyManager, error) {
	if strings.TrimSpace(cfg.PrivateKeyPath) == "" {
		return nil, &KeyMaterialError{Op: "config", Err: errors.New("private key path is required")}
	}
	if strings.TrimSpace(cfg.PublicKeyPath) == "" {
		return nil, &KeyMaterialError{Op: "config", Err: errors.New("public key path is required")}
	}

	privPEM, err := readKeyFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	pubPEM, err := readKeyFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	if privPEM != nil && pubPEM != nil {
		return loadKeys(cfg, privPEM, pubPEM)
	}
	return generateKeys(cfg)
}

// readKeyFile returns nil, nil when path does not exist.
func readKeyFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &KeyMaterialError{Op: "read", Path: path, Err: err}
	}
	return b, nil
}

func loadKeys(cfg KeyConfig, privPEM, pubPEM []byte) (*KeyManager, error) {
	priv, err := ParsePrivateKey(privPEM)
	if err != nil {
		return nil, &KeyMaterialError{Op: "parse", Path: cfg.PrivateKeyPath, Err: err}
	}
	pub, err := ParsePublicKey(pubPEM)
	if err != nil {
		return nil, &KeyMaterialError{Op: "parse", Path: cfg.PublicKeyPath, Err: err}
	}
	if !priv.PublicKey.Equal(pub) {
		return nil, &KeyMaterialError{Op: "parse", Path: cfg.PublicKeyPath, Err: errors.New("public key does not match private key")}
	}
	return &KeyManager{
		privateKey: priv,
		publicKey:  pub,
		publicPEM:  pubPEM,
		keyID:      KeyID(pub),
		state:      KeysLoaded,
	}, nil
}

func generateKeys(cfg KeyConfig) (*KeyManager, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, &KeyMaterialError{Op: "generate", Err: err}
	}
	privPEM, err := EncodePrivateKey(priv)
	if err != nil {
		return nil, &KeyMaterialError{Op: "generate", Path: cfg.PrivateKeyPath, Err: err}
	}
	pubPEM, err := EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return nil, &KeyMaterialError{Op: "generate", Path: cfg.PublicKeyPath, Err: err}
	}
	if err := writeKeyFile(cfg.PrivateKeyPath, privPEM, 0o600); err != nil {
		return nil, err
	}
	if err := writeKeyFile(cfg.PublicKeyPath, pubPEM, 0o644); err != nil {
		return nil, err
	}
	return &KeyManager{
		privateKey: priv,
		publicKey:  &priv.PublicKey,
		publicPEM:  pubPEM,
		keyID:      KeyID(&priv.PublicKey),
		state:      KeysGenerated,
	}, nil
}

func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &KeyMaterialError{Op: "write", Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return &KeyMaterialError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func (m *KeyManager) PrivateKey() *rsa.PrivateKey { return m.privateKey }
func (m *KeyManager) PublicKey() *rsa.PublicKey   { return m.publicKey }
func (m *KeyManager) KeyID() string               { return m.keyID }
func (m *KeyManager) State() KeyState             { return m.state }

// PublicKeyPEM returns the SubjectPublicKeyInfo PEM other services use to verify tokens.
func (m *KeyManager) PublicKeyPEM() string { return string(m.publicPEM) }

// StaticKeys is a KeySource over keys already in memory. Leave Private nil for a verify-only source.
type StaticKeys struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

func (k StaticKeys) PrivateKey() *rsa.PrivateKey { return k.Private }

func (k StaticKeys) PublicKey() *rsa.PublicKey {
	if k.Public == nil && k.Private != nil {
		return &k.Private.PublicKey
	}
	return k.Public
}

func (k StaticKeys) KeyID() string { return KeyID(k.PublicKey()) }

// NewVerifierKeys parses a published public key PEM into a verify-only KeySource.
func NewVerifierKeys(publicPEM string) (StaticKeys, error) {
	pub, err := ParsePublicKey([]byte(publicPEM))
	if err != nil {
		return StaticKeys{}, &KeyMaterialError{Op: "parse", Err: err}
	}
	return StaticKeys{Public: pub}, nil
}
