// Command devtoken mints an RS256 access token accepted by the directory API.
// It signs with the first private key found in the key directory and can
// generate one when the directory is empty.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arklim/workspace-directory/internal/infra/security"
)

func main() {
	var (
		keyDir   = flag.String("keys", envOr("DIRECTORY_JWT_KEY_DIRECTORY", "./keys"), "directory holding PEM keys")
		userID   = flag.String("user", "", "account id placed in the uid claim")
		roles    = flag.String("roles", "user", "comma separated system roles")
		issuer   = flag.String("issuer", os.Getenv("DIRECTORY_JWT_ISSUER"), "token issuer")
		audience = flag.String("audience", os.Getenv("DIRECTORY_JWT_AUDIENCE"), "token audience")
		ttl      = flag.Duration("ttl", time.Hour, "token lifetime")
		generate = flag.Bool("generate", false, "create a signing key if the directory has none")
	)
	flag.Parse()

	if err := run(*keyDir, *userID, *roles, *issuer, *audience, *ttl, *generate); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}

func run(keyDir, userID, roles, issuer, audience string, ttl time.Duration, generate bool) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("-user is required")
	}

	if generate {
		if err := ensureSigningKey(keyDir); err != nil {
			return err
		}
	}

	keys, err := security.NewFileKeyProvider(keyDir)
	if err != nil {
		return err
	}

	token, err := security.NewJWTManager(keys, issuer, audience).SignAccessToken(security.AccessTokenOptions{
		UserID: userID,
		Roles:  strings.Split(roles, ","),
		TTL:    ttl,
	})
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func ensureSigningKey(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.pem"))
	if err != nil {
		return err
	}
	if len(matches) > 0 {
		return nil
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	kid := "dev-" + time.Now().UTC().Format("20060102")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(dir, kid+".pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}

	fmt.Fprintf(os.Stderr, "generated signing key %s\n", path)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
