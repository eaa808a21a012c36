package signature

import (
	"crypto"
	"crypto/ecdsa"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrMissingField is returned when a required request field is empty.
var ErrMissingField = errors.New("missing required field")

// Offer is a signed offer ready to be handed to StoreKit.
type Offer struct {
	KeyID     string    // Key identifier the signature was made with
	Nonce     uuid.UUID // Single-use nonce embedded in the payload
	Timestamp time.Time // Millisecond precision creation time
	Signature string    // Base64 of the DER-encoded ECDSA signature
}

// Option represents a functional option for Generator configuration.
type Option func(*Generator)

// WithLogger sets a custom slog.Logger.
// If not set, logging is disabled (io.Discard).
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithSelfVerify makes the Generator verify every signature it produces
// against pub and log the result. The outcome never affects Generate.
func WithSelfVerify(pub *ecdsa.PublicKey) Option {
	return func(g *Generator) {
		if pub != nil {
			g.verifier = &VerifierECDSA{PublicKey: pub, Hash: crypto.SHA256}
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithNonceSource overrides the nonce source. The default is uuid.NewRandom.
func WithNonceSource(f func() (uuid.UUID, error)) Option {
	return func(g *Generator) {
		if f != nil {
			g.nonce = f
		}
	}
}

// Generator produces signed offers for a single signing key.
// It holds no mutable state and is safe for concurrent use.
type Generator struct {
	logger   *slog.Logger              // logger for structured output, can be overridden.
	signer   Signer                    // signer produces the DER signature.
	verifier Verifier                  // verifier is set only when self-verification is on.
	keyID    string                    // keyID is the App Store Connect key identifier.
	nonce    func() (uuid.UUID, error) // nonce returns a fresh UUID v4.
	now      func() time.Time          // now returns the current time.
}

// NewGenerator creates a new Generator.
// Logging is disabled by default unless WithLogger is specified.
//
// Parameters:
//
//	keyID: The subscription offer key identifier.
//	secret: The ECDSA private key for signing.
//	opts: Functional options to configure the Generator.
func NewGenerator(keyID string, secret *ecdsa.PrivateKey, opts ...Option) *Generator {
	g := &Generator{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		signer: &SignerECDSA{PrivateKey: secret, Hash: crypto.SHA256},
		keyID:  keyID,
		nonce:  uuid.NewRandom,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// KeyID returns the key identifier embedded in every payload.
func (g *Generator) KeyID() string {
	return g.keyID
}

// Generate builds the payload for f, signs it and returns the offer.
// No key material is touched when a field is missing.
func (g *Generator) Generate(f Fields) (*Offer, error) {
	if missing := f.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingField, missing)
	}

	nonce, err := g.nonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	ts := g.now().Truncate(time.Millisecond)

	payload := BuildPayload(f, g.keyID, nonce, ts).Bytes()
	sig, err := g.signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign offer payload: %w", err)
	}

	if g.verifier != nil {
		g.selfVerify(payload, sig)
	}

	return &Offer{
		KeyID:     g.keyID,
		Nonce:     nonce,
		Timestamp: ts,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

func (g *Generator) selfVerify(payload, sig []byte) {
	ok := g.verifier.Verify(payload, sig)
	g.logger.Info("Verification result", slog.Bool("verified", ok))
	if !ok {
		g.logger.Error("Offer signature self-verification failed", slog.String("keyID", g.keyID))
	}
}

// Verify checks o against pub by rebuilding the payload from f and the
// values carried in o.
func Verify(pub *ecdsa.PublicKey, f Fields, o *Offer) error {
	if o == nil {
		return errors.New("missing offer")
	}
	sig, err := base64.StdEncoding.DecodeString(o.Signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	v := &VerifierECDSA{PublicKey: pub, Hash: crypto.SHA256}
	if !v.Verify(BuildPayload(f, o.KeyID, o.Nonce, o.Timestamp).Bytes(), sig) {
		return errors.New("signature does not match payload")
	}
	return nil
}
