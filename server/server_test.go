package server_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/takimoto3/appleapi-offer"
	"github.com/takimoto3/appleapi-offer/server"
	"github.com/takimoto3/appleapi-offer/signature"
)

func TestServe_EndToEnd(t *testing.T) {
	priv := newKey(t)
	s := server.New(signature.NewGenerator(testKeyID, priv),
		server.WithTimeouts(time.Second, time.Second, time.Second, time.Second),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	conf := offer.DefaultConfig()
	client, err := offer.NewClient(offer.H2CHTTPClientInitializer(&conf), "http://"+ln.Addr().String())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	t.Run("signed offer", func(t *testing.T) {
		got, err := client.RequestOffer(context.Background(), exampleRequest)
		if err != nil {
			t.Fatalf("RequestOffer failed: %v", err)
		}
		o := &signature.Offer{KeyID: got.KeyID, Nonce: got.Nonce, Timestamp: got.Timestamp.Time(), Signature: got.Signature}
		if err := signature.Verify(&priv.PublicKey, fieldsOf(exampleRequest), o); err != nil {
			t.Errorf("verification failed: %v", err)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		req := exampleRequest
		req.ApplicationUsername = ""
		_, err := client.RequestOffer(context.Background(), req)

		var apiErr *offer.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *offer.APIError, got %v", err)
		}
		want := offer.ErrorResponse{Error: "BadRequest", Code: 400, Message: "Missing data: applicationUsername"}
		if diff := cmp.Diff(want, apiErr.Response); diff != "" {
			t.Errorf("error mismatch (-want +got):\n%s", diff)
		}
		if apiErr.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", apiErr.StatusCode)
		}
	})

	client.CloseIdleConnections()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	s := server.New(&mockSigner{})
	if err := s.Run(context.Background(), "256.0.0.1:bad"); err == nil {
		t.Fatal("expected listen error")
	}
}
