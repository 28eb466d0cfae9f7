package security

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"
)

const (
	pemTypePKCS8Private = "PRIVATE KEY"
	pemTypePKCS1Private = "RSA PRIVATE KEY"
	pemTypePKIXPublic   = "PUBLIC KEY"
	pemTypePKCS1Public  = "RSA PUBLIC KEY"
)

// ParsePrivateKey parses a PEM-encoded RSA private key in PKCS8 or PKCS1 form.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case pemTypePKCS1Private:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case pemTypePKCS8Private:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrInvalidKey
		}
		return rsaKey, nil
	default:
		return nil, ErrInvalidKey
	}
}

// ParsePublicKey parses a PEM-encoded RSA public key in SubjectPublicKeyInfo or PKCS1 form.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case pemTypePKCS1Public:
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case pemTypePKIXPublic:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, ErrInvalidKey
		}
		return rsaKey, nil
	default:
		return nil, ErrInvalidKey
	}
}

// EncodePrivateKey returns the PKCS8 PEM encoding of key.
func EncodePrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePKCS8Private, Bytes: der}), nil
}

// EncodePublicKey returns the SubjectPublicKeyInfo PEM encoding of key.
func EncodePublicKey(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePKIXPublic, Bytes: der}), nil
}

// KeyID returns the RFC 7638 JWK thumbprint of an RSA public key, base64url without padding.
func KeyID(pub *rsa.PublicKey) string {
	if pub == nil {
		return ""
	}
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	// Members in lexicographic order, no whitespace.
	canonical := `{"e":"` + e + `","kty":"RSA","n":"` + n + `"}`
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
