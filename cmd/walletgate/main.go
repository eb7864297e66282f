package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/congo-pay/walletgate/internal/app"
	"github.com/congo-pay/walletgate/internal/config"
	"github.com/congo-pay/walletgate/internal/gate"
	"github.com/congo-pay/walletgate/internal/infra"
	"github.com/congo-pay/walletgate/internal/logging"
	"github.com/congo-pay/walletgate/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.WalletAddress == "" {
		logger.Error("WALLET_ADDRESS is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := infra.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open credential backend", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("close credential backend", "error", err)
		}
	}()

	nav := gate.NavigatorFunc(func(route string) {
		logger.Info("navigate", "route", route)
	})
	client := app.New(ctx, cfg, backend.KV, wallet.NewStaticSigner(cfg.WalletSignerKey), nav, nil, logger)
	client.Gate.OnPhase(func(_, next gate.Phase) {
		screen := client.Gate.Screen()
		logger.Info("screen", "phase", string(next), "title", screen.Title, "action", screen.Action)
	})
	client.Start(ctx)
	logger.Info("wallet gate started", "address", cfg.WalletAddress, "api", cfg.APIBaseURL, "dev_mode", cfg.DevMode)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	client.Close()
	logger.Info("wallet gate exited cleanly")
}
