package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polygonid/attestation-bridge/internal/config"
	"github.com/polygonid/attestation-bridge/internal/gateways"
	"github.com/polygonid/attestation-bridge/internal/log"
	"github.com/polygonid/attestation-bridge/internal/proxy"
)

func main() {
	cfg, err := config.Load(context.Background(), ".env")
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		os.Exit(1)
	}

	// Context with log
	ctx := log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout)
	if err := cfg.SanitizeProxy(); err != nil {
		log.Error(ctx, "invalid configuration", "err", err)
		os.Exit(1)
	}

	cli := gateways.NewCLIExecutor(cfg.Ledger.CLIPath, cfg.Ledger.CommandTimeout)
	if err := cli.Ping(ctx); err != nil {
		log.Warn(ctx, "ledger CLI not ready", "path", cfg.Ledger.CLIPath, "err", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ProxyPort),
		Handler:           proxy.NewServer(cli).Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(ctx, fmt.Sprintf("ledger proxy started on port:%d", cfg.ProxyPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "starting http server", "err", err)
		}
	}()

	<-quit
	log.Info(ctx, "Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		log.Error(ctx, "shutting down http server", "err", err)
	}
}
