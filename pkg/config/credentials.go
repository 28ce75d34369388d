package config

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/snowflakedb/gosnowflake"
)

// LoadSnowflakePrivateKey reads and parses a PEM-encoded PKCS#8 private key
// from path, the way the teacher's streaming options load a key-pair
// credential (grounded on fearfates-connect's ClientOptions.PrivateKey).
// Key-pair credential loading is out of scope for the core per spec.md §1;
// this is the external loader's responsibility.
func LoadSnowflakePrivateKey(path, passphrase string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", path, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	der := block.Bytes
	if passphrase != "" {
		//nolint:staticcheck // x509.DecryptPEMBlock is deprecated but still the
		// straightforward way to decrypt a passphrase-protected PKCS#1/#8 key.
		decrypted, decErr := x509.DecryptPEMBlock(block, []byte(passphrase))
		if decErr != nil {
			return nil, fmt.Errorf("decrypting private key %s: %w", path, decErr)
		}
		der = decrypted
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", path, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key %s is not RSA", path)
	}
	return rsaKey, nil
}

// SnowflakeDSN builds a gosnowflake DSN from a ConnectionProfile, loading
// the key-pair credential from PrivateKeyPath. Used to construct the DSN
// string both CheckpointStore and IngestClient accept.
func SnowflakeDSN(p ConnectionProfile) (string, error) {
	key, err := LoadSnowflakePrivateKey(p.PrivateKeyPath, p.PrivateKeyPassphrase)
	if err != nil {
		return "", err
	}

	cfg := &gosnowflake.Config{
		Account:       p.Account,
		User:          p.User,
		Role:          p.Role,
		Warehouse:     p.Warehouse,
		Database:      p.Database,
		Schema:        p.Schema,
		Authenticator: gosnowflake.AuthTypeJwt,
		PrivateKey:    key,
	}
	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return "", fmt.Errorf("building Snowflake DSN: %w", err)
	}
	return dsn, nil
}
