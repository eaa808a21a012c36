// Package server exposes the offer signing endpoint over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/takimoto3/appleapi-offer"
	"github.com/takimoto3/appleapi-offer/signature"
)

func init() {
	// Report validation errors by their wire names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// OfferSigner produces signed offers. *signature.Generator implements it.
type OfferSigner interface {
	Generate(f signature.Fields) (*signature.Offer, error)
}

// Option represents a functional option for Server configuration.
type Option func(*Server)

// WithLogger sets a custom slog.Logger.
// If not set, logging is disabled (io.Discard).
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit limits POST /offer to rps requests per second per client IP.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int, ttl time.Duration) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		lim := tollbooth.NewLimiter(rps, &limiter.ExpirableOptions{DefaultExpirationTTL: ttl})
		lim.SetBurst(burst)
		lim.SetIPLookups([]string{"RemoteAddr"})
		s.limiter = lim
	}
}

// WithMaxBodyBytes caps the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithTimeouts sets the HTTP server timeouts. Zero values keep the defaults.
func WithTimeouts(read, write, idle, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// Server serves POST /offer.
type Server struct {
	logger          *slog.Logger
	signer          OfferSigner
	limiter         *limiter.Limiter
	maxBodyBytes    int64
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	engine          *gin.Engine
}

// New creates a Server that signs offers with signer.
func New(signer OfferSigner, opts ...Option) *Server {
	s := &Server{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		signer:          signer,
		maxBodyBytes:    16 << 10,
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		idleTimeout:     60 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(s.logger), recovery(s.logger))

	h := &offerHandler{signer: s.signer, logger: s.logger}
	chain := []gin.HandlerFunc{maxBody(s.maxBodyBytes)}
	if s.limiter != nil {
		chain = append(chain, rateLimit(s.limiter))
	}
	chain = append(chain, h.Create)
	r.POST(offer.OfferPath, chain...)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, offer.ErrorResponse{
			Error:   "NotFound",
			Code:    http.StatusNotFound,
			Message: "Not found",
		})
	})
	return r
}

// Handler returns the HTTP handler, accepting HTTP/1.1 and cleartext HTTP/2.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.engine, &http2.Server{IdleTimeout: s.idleTimeout})
}

// Run listens on addr and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
