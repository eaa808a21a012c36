// Command offerctl requests a signed subscription offer from an offerd
// instance and optionally verifies the returned signature.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http/httptrace"
	"os"
	"time"

	"github.com/takimoto3/appleapi-offer"
	"github.com/takimoto3/appleapi-offer/signature"
)

func main() {
	var (
		host    = flag.String("host", "http://localhost:3000", "base URL of the offer service")
		bundle  = flag.String("bundle", "", "app bundle ID")
		product = flag.String("product", "", "subscription product ID")
		offerID = flag.String("offer", "", "promotional offer ID")
		user    = flag.String("user", "", "application username")
		pubPath = flag.String("public-key", "", "PEM public key to verify the signature with")
		h2c     = flag.Bool("h2c", false, "use HTTP/2 over cleartext")
		trace   = flag.Bool("trace", false, "log connection trace events to stderr")
		timeout = flag.Duration("timeout", 10*time.Second, "request timeout")
	)
	flag.Parse()

	if err := run(*host, offer.Request{
		AppBundleID:         *bundle,
		ProductID:           *product,
		OfferID:             *offerID,
		ApplicationUsername: *user,
	}, *pubPath, *h2c, *trace, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "offerctl:", err)
		os.Exit(1)
	}
}

func run(host string, req offer.Request, pubPath string, useH2C, trace bool, timeout time.Duration) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	conf := offer.DefaultConfig()
	conf.HTTPTimeout = timeout
	initializer := offer.ConfigureHTTPClientInitializer(&conf)
	if useH2C {
		initializer = offer.H2CHTTPClientInitializer(&conf)
	}

	opts := []offer.Option{offer.WithLogger(logger)}
	if trace {
		opts = append(opts, offer.WithClientTrace(func(l *slog.Logger) *httptrace.ClientTrace {
			return offer.DefaultClientTrace(l, slog.LevelDebug)
		}))
	}
	client, err := offer.NewClient(initializer, host, opts...)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	got, err := client.RequestOffer(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(got); err != nil {
		return err
	}

	if pubPath == "" {
		return nil
	}
	data, err := os.ReadFile(pubPath)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	pub, err := signature.ParsePublicKeyPEM(data)
	if err != nil {
		return err
	}
	fields := signature.Fields{
		AppBundleID:         req.AppBundleID,
		ProductIdentifier:   req.ProductID,
		OfferIdentifier:     req.OfferID,
		ApplicationUsername: req.ApplicationUsername,
	}
	o := &signature.Offer{
		KeyID:     got.KeyID,
		Nonce:     got.Nonce,
		Timestamp: got.Timestamp.Time(),
		Signature: got.Signature,
	}
	if err := signature.Verify(pub, fields, o); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Fprintln(os.Stderr, "signature verified")
	return nil
}
