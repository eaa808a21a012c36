// Package offer provides the wire types of the subscription offer
// signing service and a client for requesting signed offers from it.
package offer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// OfferPath is the path of the signing endpoint.
const OfferPath = "/offer"

// maxResponseBytes bounds how much of a response body the client reads.
const maxResponseBytes = 64 << 10

// OptionOrder defines the execution order for Client options.
// Options are applied in ascending order of these constants.
type OptionOrder int

const (
	Logger OptionOrder = iota + 1
	Transport
	ClientTimeout
	ClientTrace // Depends on Logger being already set
)

// HTTPClientInitializer is a function that returns a configured *http.Client.
type HTTPClientInitializer func() (*http.Client, error)

// DefaultHTTPClientInitializer returns a default HTTP client with HTTP/2 enabled over TLS.
func DefaultHTTPClientInitializer() HTTPClientInitializer {
	return func() (*http.Client, error) {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		tr.ForceAttemptHTTP2 = true
		return &http.Client{Transport: tr}, nil
	}
}

// ConfigureHTTPClientInitializer returns an HTTP client configured based on the given HTTPConfig.
func ConfigureHTTPClientInitializer(cfg *HTTPConfig) HTTPClientInitializer {
	return func() (*http.Client, error) {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.TLSConfig != nil {
			tr.TLSClientConfig = cfg.TLSConfig.Clone()
		}
		tr.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		tr.IdleConnTimeout = cfg.IdleConnTimeout
		tr.DialContext = (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext

		tr2, err := http2.ConfigureTransports(tr)
		if err != nil {
			return nil, err
		}
		tr2.ReadIdleTimeout = cfg.ReadIdleTimeout

		return &http.Client{Transport: tr, Timeout: cfg.HTTPTimeout}, nil
	}
}

// H2CHTTPClientInitializer returns a client that speaks HTTP/2 over
// cleartext TCP, matching a server started without TLS.
func H2CHTTPClientInitializer(cfg *HTTPConfig) HTTPClientInitializer {
	return func() (*http.Client, error) {
		dialer := &net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}
		tr := &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
			ReadIdleTimeout: cfg.ReadIdleTimeout,
		}
		return &http.Client{Transport: tr, Timeout: cfg.HTTPTimeout}, nil
	}
}

// Client requests signed offers from the signing service.
type Client struct {
	Host       string                 // Base URL of the signing service
	HTTPClient *http.Client           // Underlying HTTP client
	Logger     *slog.Logger           // Structured logger
	Trace      *httptrace.ClientTrace // HTTP request trace hooks
}

// Option defines a configurable option for Client, including its execution order.
type Option struct {
	f     func(*Client) // Actual option logic
	order OptionOrder   // Execution order key
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return Option{
		f: func(c *Client) {
			if c != nil && logger != nil {
				c.Logger = logger
			}
		},
		order: Logger,
	}
}

// WithTransport sets a custom HTTP transport.
func WithTransport(tr http.RoundTripper) Option {
	return Option{
		f: func(c *Client) {
			if c != nil && tr != nil {
				c.HTTPClient.Transport = tr
			}
		},
		order: Transport,
	}
}

// WithClientTimeout sets a custom HTTP client timeout.
func WithClientTimeout(timeout time.Duration) Option {
	return Option{
		f: func(c *Client) {
			if c != nil {
				c.HTTPClient.Timeout = timeout
			}
		},
		order: ClientTimeout,
	}
}

// WithClientTrace sets a custom HTTP trace function.
func WithClientTrace(f func(*slog.Logger) *httptrace.ClientTrace) Option {
	return Option{
		f: func(c *Client) {
			if c != nil {
				if tr := f(c.Logger); tr != nil {
					c.Trace = tr
				}
			}
		},
		order: ClientTrace,
	}
}

// NewClient creates a new Client with a custom HTTP initializer and options.
func NewClient(initializer HTTPClientInitializer, host string, opts ...Option) (*Client, error) {
	cli, err := initializer()
	if err != nil {
		return nil, err
	}
	c := &Client{
		Host:       strings.TrimRight(host, "/"),
		HTTPClient: cli,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	sort.SliceStable(opts, func(i, j int) bool {
		return opts[i].order < opts[j].order
	})
	for _, opt := range opts {
		opt.f(c)
	}

	return c, nil
}

// CloseIdleConnections closes idle connections in the HTTP client.
func (c *Client) CloseIdleConnections() {
	c.HTTPClient.CloseIdleConnections()
}

// RequestOffer posts req to the signing service and returns the signed offer.
// A non-200 answer is returned as *APIError.
func (c *Client) RequestOffer(ctx context.Context, req Request) (*SignedOffer, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer request: %w", err)
	}
	if c.Trace != nil {
		ctx = httptrace.WithClientTrace(ctx, c.Trace)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+OfferPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create offer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send offer request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read offer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// The body may not be an envelope, e.g. from a proxy.
		_ = json.Unmarshal(data, &apiErr.Response)
		c.Logger.Warn("Offer request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("error", apiErr.Response.Error),
			slog.String("message", apiErr.Response.Message),
		)
		return nil, apiErr
	}

	var out SignedOffer
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode offer response: %w", err)
	}
	c.Logger.Debug("Offer received", slog.String("keyID", out.KeyID), slog.String("nonce", out.Nonce.String()))
	return &out, nil
}
