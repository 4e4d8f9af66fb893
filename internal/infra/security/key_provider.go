package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrSigningKeyMissing  = errors.New("no private key available for signing")
	ErrNoVerificationKeys = errors.New("no verification keys loaded")
)

// KeyProvider resolves RSA keys by key id (kid).
type KeyProvider interface {
	SigningKey() (kid string, key *rsa.PrivateKey, err error)
	VerificationKey(kid string) (*rsa.PublicKey, error)
}

// FileKeyProvider loads PEM encoded RSA keys from a directory. The file name
// without extension becomes the kid. Private keys contribute their public half
// for verification; the lexically first private key is used for signing.
type FileKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKid string
	signingKey *rsa.PrivateKey
}

func NewFileKeyProvider(keyDir string) (*FileKeyProvider, error) {
	entries, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	provider := &FileKeyProvider{keys: make(map[string]*rsa.PublicKey)}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(keyDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}

		kid := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if err := provider.add(kid, data); err != nil {
			return nil, fmt.Errorf("load key %s: %w", path, err)
		}
	}

	if len(provider.keys) == 0 {
		return nil, ErrNoVerificationKeys
	}
	return provider, nil
}

func (p *FileKeyProvider) add(kid string, data []byte) error {
	block, _ := pem.Decode(data)
	if block == nil {
		return fmt.Errorf("decode PEM block")
	}

	if private, ok := parsePrivateKey(block.Bytes); ok {
		if p.signingKey == nil {
			p.signingKid = kid
			p.signingKey = private
		}
		p.keys[kid] = &private.PublicKey
		return nil
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		p.keys[kid] = key
		return nil
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			p.keys[kid] = rsaKey
			return nil
		}
	}

	return fmt.Errorf("unsupported key material")
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, bool) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, true
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, true
		}
	}
	return nil, false
}

func (p *FileKeyProvider) SigningKey() (string, *rsa.PrivateKey, error) {
	if p.signingKey == nil {
		return "", nil, ErrSigningKeyMissing
	}
	return p.signingKid, p.signingKey, nil
}

func (p *FileKeyProvider) VerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// StaticKeyProvider serves a single in-memory key pair.
type StaticKeyProvider struct {
	Kid string
	Key *rsa.PrivateKey
}

func (p StaticKeyProvider) SigningKey() (string, *rsa.PrivateKey, error) {
	if p.Key == nil {
		return "", nil, ErrSigningKeyMissing
	}
	return p.Kid, p.Key, nil
}

func (p StaticKeyProvider) VerificationKey(kid string) (*rsa.PublicKey, error) {
	if p.Key == nil || kid != p.Kid {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.Key.PublicKey, nil
}
