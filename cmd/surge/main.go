package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"surge/api"
	"surge/internal/config"
	"surge/pkg/coinbase"
	"surge/pkg/journal"
	"surge/pkg/trader"
)

var (
	cfgFile string
	logger  *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "surge",
		Short: "Momentum-chasing trading bot for Coinbase",
		Long:  `A polling trading bot that buys a single product on upward momentum and exits on trailing-stop, stop-loss or take-profit triggers`,
		Run:   runTrader,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runTrader(cmd *cobra.Command, args []string) {
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open log file")
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth, err := buildAuthenticator(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build authenticator")
	}
	exchange := coinbase.NewRESTClient(cfg.Coinbase.BaseURL, auth)

	jnl, err := journal.NewCSV(cfg.Journal.Dir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open journal")
	}
	defer jnl.Close()

	governor := trader.NewGovernor(cfg.RateLimitInterval())
	bot := trader.New(exchange, jnl, governor, trader.Config{
		SpendAmount:       cfg.SpendAmount(),
		PollInterval:      cfg.PollInterval(),
		ScanInterval:      cfg.ScanInterval(),
		CandleGranularity: cfg.CandleGranularity(),
	}, logger)

	if cfg.Coinbase.WebSocket.Enabled {
		wsClient := coinbase.NewWebSocketClient(
			cfg.Coinbase.WebSocket.URL,
			cfg.Coinbase.APIKey,
			cfg.Coinbase.APISecret,
			cfg.Coinbase.Passphrase,
			logger,
		)
		feed := coinbase.NewTickerFeed(
			wsClient,
			time.Duration(cfg.Coinbase.WebSocket.ReconnectDelay)*time.Second,
			cfg.Coinbase.WebSocket.MaxReconnects,
			logger,
		)
		if err := feed.Start(ctx, cfg.Coinbase.WebSocket.Products); err != nil {
			logger.WithError(err).Error("Ticker feed unavailable, polling only")
		} else {
			bot.SetTickerFeed(feed)
		}
	}

	go func() {
		if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Fatal("Trader stopped unexpectedly")
		}
	}()

	apiServer := api.NewServer(bot, logger, fmt.Sprintf("%d", cfg.Server.Port))
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start API server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Surge is running. Press Ctrl+C to stop.")

	<-sigChan
	logger.Info("Received shutdown signal")

	cancel()
	logger.Info("Surge stopped")
}

func buildAuthenticator(cfg *config.Config) (coinbase.Authenticator, error) {
	switch coinbase.AuthType(cfg.Coinbase.AuthType) {
	case coinbase.AuthTypeJWT:
		return coinbase.NewJWTAuthenticator(cfg.Coinbase.APIKeyName, cfg.Coinbase.PrivateKeyPEM)
	default:
		return coinbase.NewLegacyAuthenticator(
			cfg.Coinbase.APIKey,
			cfg.Coinbase.APISecret,
			cfg.Coinbase.Passphrase,
		), nil
	}
}
