package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/takimoto3/appleapi-offer"
	"github.com/takimoto3/appleapi-offer/signature"
)

type offerHandler struct {
	signer OfferSigner
	logger *slog.Logger
}

// Create handles POST /offer.
func (h *offerHandler) Create(c *gin.Context) {
	log := h.logger.With(slog.String("requestID", c.GetString(requestIDKey)))
	log.Info("POST /offer")

	b, ok := requestBinding(c.ContentType())
	if !ok {
		log.Info("Unsupported content type", slog.String("contentType", c.ContentType()))
		badRequest(c, "Unsupported content type")
		return
	}
	var req offer.Request
	if err := c.ShouldBindWith(&req, b); err != nil {
		h.bindError(c, log, err)
		return
	}

	fields := signature.Fields{
		AppBundleID:         req.AppBundleID,
		ProductIdentifier:   req.ProductID,
		OfferIdentifier:     req.OfferID,
		ApplicationUsername: req.ApplicationUsername,
	}
	log.Info("Request",
		slog.String("appBundleID", fields.AppBundleID),
		slog.String("productIdentifier", fields.ProductIdentifier),
		slog.String("subscriptionOfferID", fields.OfferIdentifier),
		slog.String("applicationUsername", fields.ApplicationUsername),
	)

	o, err := h.signer.Generate(fields)
	if err != nil {
		if errors.Is(err, signature.ErrMissingField) {
			log.Info("Missing argument", slog.Any("err", err))
			badRequest(c, missingDataMessage(fields.Missing()))
			return
		}
		log.Error("Failed to sign offer", slog.Any("err", err))
		internalError(c, "Failed to sign offer")
		return
	}

	resp := offer.SignedOffer{
		KeyID:     o.KeyID,
		Nonce:     o.Nonce,
		Timestamp: offer.NewTimestamp(o.Timestamp),
		Signature: o.Signature,
	}
	c.JSON(http.StatusOK, resp)

	log.Info("Response",
		slog.String("keyID", resp.KeyID),
		slog.String("nonce", resp.Nonce.String()),
		slog.Int64("timestamp", resp.Timestamp.UnixMilli()),
		slog.String("signature", resp.Signature),
	)
}

// requestBinding accepts JSON and URL-encoded form bodies only.
func requestBinding(contentType string) (binding.Binding, bool) {
	switch contentType {
	case binding.MIMEJSON:
		return binding.JSON, true
	case binding.MIMEPOSTForm:
		return binding.Form, true
	}
	return nil, false
}

func (h *offerHandler) bindError(c *gin.Context, log *slog.Logger, err error) {
	var verrs validator.ValidationErrors
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &verrs):
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
		log.Info("Missing argument", slog.Any("fields", missing))
		badRequest(c, missingDataMessage(missing))
	case errors.Is(err, io.EOF):
		log.Info("Missing argument", slog.String("reason", "empty body"))
		badRequest(c, missingDataMessage(nil))
	case errors.As(err, &maxErr):
		log.Warn("Request body too large", slog.Int64("limit", maxErr.Limit))
		badRequest(c, "Request body too large")
	default:
		log.Info("Invalid request body", slog.Any("err", err))
		badRequest(c, "Invalid request body")
	}
}

func missingDataMessage(fields []string) string {
	if len(fields) == 0 {
		return "Missing data"
	}
	return "Missing data: " + strings.Join(fields, ", ")
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, offer.ErrorResponse{
		Error:   offer.ErrorBadRequest,
		Code:    http.StatusBadRequest,
		Message: msg,
	})
}

func internalError(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, offer.ErrorResponse{
		Error:   offer.ErrorInternalServerError,
		Code:    http.StatusInternalServerError,
		Message: msg,
	})
}
