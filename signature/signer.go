// Package signature builds and signs StoreKit subscription offer payloads.
package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
)

var (
	_ Signer   = &SignerECDSA{}
	_ Verifier = &VerifierECDSA{}
)

var (
	// ErrMissingPrivateKey is returned when a signer has no key configured.
	ErrMissingPrivateKey = errors.New("missing private key")
	// ErrUnsupportedCurve is returned for keys that are not on P-256.
	ErrUnsupportedCurve = errors.New("unsupported curve")
)

// Signer defines the interface for signing payload bytes.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// Verifier checks a signature produced by a Signer.
type Verifier interface {
	Verify(data, sig []byte) bool
}

// SignerECDSA implements the Signer interface using ECDSA.
// Signatures are ASN.1 DER encoded, as StoreKit expects.
type SignerECDSA struct {
	PrivateKey *ecdsa.PrivateKey // ECDSA private key
	Hash       crypto.Hash       // Hash algorithm used for signing
}

// Sign generates a DER-encoded ECDSA signature over the digest of data.
// It supports only 256-bit curves (P-256).
func (se *SignerECDSA) Sign(data []byte) ([]byte, error) {
	if se.PrivateKey == nil {
		return nil, ErrMissingPrivateKey
	}
	if err := checkCurve(&se.PrivateKey.PublicKey); err != nil {
		return nil, err
	}

	sig, err := ecdsa.SignASN1(rand.Reader, se.PrivateKey, digest(se.Hash, data))
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign failed: %w", err)
	}
	return sig, nil
}

// VerifierECDSA implements the Verifier interface using an ECDSA public key.
type VerifierECDSA struct {
	PublicKey *ecdsa.PublicKey
	Hash      crypto.Hash
}

// Verify reports whether sig is a valid DER-encoded signature of data.
func (ve *VerifierECDSA) Verify(data, sig []byte) bool {
	if ve.PublicKey == nil || checkCurve(ve.PublicKey) != nil {
		return false
	}
	return ecdsa.VerifyASN1(ve.PublicKey, digest(ve.Hash, data), sig)
}

func checkCurve(pub *ecdsa.PublicKey) error {
	if pub.Curve == nil {
		return fmt.Errorf("%w: key has no curve", ErrUnsupportedCurve)
	}
	if bits := pub.Curve.Params().BitSize; bits != 256 {
		return fmt.Errorf("%w: expected P-256, got %d bits", ErrUnsupportedCurve, bits)
	}
	return nil
}

// digest falls back to SHA-256 when h is unset or unavailable.
func digest(h crypto.Hash, data []byte) []byte {
	if !h.Available() {
		h = crypto.SHA256
	}
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}
