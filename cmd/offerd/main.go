// Command offerd serves signed subscription offers over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/takimoto3/appleapi-offer/config"
	"github.com/takimoto3/appleapi-offer/server"
	"github.com/takimoto3/appleapi-offer/signature"
)

func main() {
	cfg := config.MustLoad()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	key, err := cfg.SigningKey()
	if err != nil {
		logger.Error("Invalid signing key", slog.Any("err", err))
		os.Exit(1)
	}

	genOpts := []signature.Option{signature.WithLogger(logger)}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		genOpts = append(genOpts, signature.WithSelfVerify(&key.PublicKey))
	}
	gen := signature.NewGenerator(cfg.Key.KeyID, key, genOpts...)

	srv := server.New(gen,
		server.WithLogger(logger),
		server.WithMaxBodyBytes(cfg.HTTPServ.MaxBodyBytes),
		server.WithRateLimit(cfg.Limiter.RPS, cfg.Limiter.Burst, cfg.Limiter.TTL),
		server.WithTimeouts(
			cfg.HTTPServ.ReadTimeout,
			cfg.HTTPServ.WriteTimeout,
			cfg.HTTPServ.IdleTimeout,
			cfg.HTTPServ.ShutdownTimeout,
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Offer signing enabled",
		slog.String("keyID", cfg.Key.KeyID),
		slog.String("env", cfg.Env),
		slog.Bool("selfVerify", !cfg.IsProduction()),
	)
	if err := srv.Run(ctx, cfg.HTTPServ.ServerAddr); err != nil {
		logger.Error("Server stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
