package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/server"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "coinbook",
	})

	flags := pflag.NewFlagSet("coinbook-server", pflag.ExitOnError)
	cfgFile := flags.StringP("config", "c", "", "Config file (default is coinbook.yaml)")
	flags.String("addr", "", "Listen address")
	flags.String("log-level", "", "Log level")
	flags.Duration("debounce", 0, "Search debounce delay")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Build(*cfgFile, flags)
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logger)
	logger.Info("starting server", "addr", cfg.Server.Addr)
	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
