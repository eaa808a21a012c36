package signature

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadPKCS8File loads an ECDSA private key from a PEM file, such as the
// .p8 file downloaded from App Store Connect.
//
// Parameters:
//
//	path: The file path to the PEM file.
func LoadPKCS8File(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}
	key, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("file %q: %w", path, err)
	}
	return key, nil
}

// ParsePrivateKeyPEM parses a P-256 private key from PEM data.
// Both PKCS#8 ("PRIVATE KEY") and SEC 1 ("EC PRIVATE KEY") blocks are accepted.
func ParsePrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("does not contain valid PEM data")
	}

	var privKey *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		privKey = key
	default:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		k, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not an ECDSA key (actual type: %T)", key)
		}
		privKey = k
	}

	if err := checkCurve(&privKey.PublicKey); err != nil {
		return nil, err
	}
	return privKey, nil
}

// ParsePublicKeyPEM parses a P-256 public key from a PKIX ("PUBLIC KEY") PEM block.
func ParsePublicKeyPEM(data []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("does not contain valid PEM data")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not an ECDSA key (actual type: %T)", key)
	}
	if err := checkCurve(pub); err != nil {
		return nil, err
	}
	return pub, nil
}
