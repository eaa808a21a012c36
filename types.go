package offer

import (
	"fmt"

	"github.com/google/uuid"
)

// Error codes used in ErrorResponse.Error.
const (
	ErrorBadRequest          = "BadRequest"
	ErrorTooManyRequests     = "TooManyRequests"
	ErrorInternalServerError = "InternalServerError"
)

// Request is the body of POST /offer. It binds from JSON or
// form-encoded bodies.
type Request struct {
	AppBundleID         string `json:"appBundleID" form:"appBundleID" binding:"required"`
	ProductID           string `json:"productID" form:"productID" binding:"required"`
	OfferID             string `json:"offerID" form:"offerID" binding:"required"`
	ApplicationUsername string `json:"applicationUsername" form:"applicationUsername" binding:"required"`
}

// SignedOffer is the successful response of POST /offer. Its fields map
// one to one onto SKPaymentDiscount.
type SignedOffer struct {
	KeyID     string    `json:"keyID"`
	Nonce     uuid.UUID `json:"nonce"`
	Timestamp Timestamp `json:"timestamp"`
	Signature string    `json:"signature"`
}

// ErrorResponse is the error envelope returned for non-200 responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError is returned by Client when the service answers with an error.
type APIError struct {
	StatusCode int
	Response   ErrorResponse
}

func (e *APIError) Error() string {
	if e.Response.Error == "" {
		return fmt.Sprintf("offer service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("offer service returned %s (%d): %s", e.Response.Error, e.Response.Code, e.Response.Message)
}
