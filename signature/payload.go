package signature

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Separator is the INVISIBLE SEPARATOR (U+2063) that StoreKit places
// between payload fields.
const Separator = "\u2063"

// Fields are the client-supplied identifiers of an offer request.
type Fields struct {
	AppBundleID         string // Bundle ID of the app
	ProductIdentifier   string // Subscription product ID
	OfferIdentifier     string // Promotional offer ID from App Store Connect
	ApplicationUsername string // Opaque per-user identifier
}

// Missing returns the names of the fields that are empty, in payload order.
func (f Fields) Missing() []string {
	var missing []string
	for _, v := range []struct {
		name, value string
	}{
		{"appBundleID", f.AppBundleID},
		{"productID", f.ProductIdentifier},
		{"offerID", f.OfferIdentifier},
		{"applicationUsername", f.ApplicationUsername},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	return missing
}

// Payload is the full set of values that go into an offer signature.
type Payload struct {
	Fields
	KeyID     string
	Nonce     uuid.UUID
	Timestamp time.Time
}

// BuildPayload combines the request fields with the server-side values.
func BuildPayload(f Fields, keyID string, nonce uuid.UUID, ts time.Time) Payload {
	return Payload{
		Fields:    f,
		KeyID:     keyID,
		Nonce:     nonce,
		Timestamp: ts,
	}
}

// String returns the canonical payload string. Field order and separator
// must match what the App Store reconstructs on its side.
func (p Payload) String() string {
	return strings.Join([]string{
		p.AppBundleID,
		p.KeyID,
		p.ProductIdentifier,
		p.OfferIdentifier,
		p.ApplicationUsername,
		p.Nonce.String(),
		strconv.FormatInt(p.Timestamp.UnixMilli(), 10),
	}, Separator)
}

// Bytes returns the UTF-8 bytes that are signed.
func (p Payload) Bytes() []byte {
	return []byte(p.String())
}
