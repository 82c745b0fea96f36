package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/recorder"
	"CryptoSentinel/internal/scheduler"
	"CryptoSentinel/internal/strategy"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	cfgPath := flag.String("config", defaultPath, "path to yaml config")
	once := flag.Bool("once", strings.EqualFold(os.Getenv("RUN_ONCE"), "true"), "run a single analysis and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Error("config validation", zap.Error(err))
		return 1
	}
	rules, err := cfg.RuleSet()
	if err != nil {
		logger.Error("config validation", zap.Error(err))
		return 1
	}
	if rules.ThresholdsOverlap() {
		logger.Warn("buy rsi threshold is not below sell rsi threshold; buy takes precedence",
			zap.Stringer("buy_rsi", rules.BuyRSIThreshold), zap.Stringer("sell_rsi", rules.SellRSIThreshold))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, err := collector.New(collector.Options{
		Provider: cfg.MarketData.Provider,
		Proxy:    cfg.Proxy,
		Binance: collector.BinanceOptions{
			BaseURL:   cfg.MarketData.Binance.BaseURL,
			APIKey:    cfg.MarketData.Binance.APIKey,
			SecretKey: cfg.MarketData.Binance.SecretKey,
		},
		CoinGecko: collector.CoinGeckoOptions{
			BaseURL: cfg.MarketData.CoinGecko.BaseURL,
			APIKey:  cfg.MarketData.CoinGecko.APIKey,
		},
	})
	if err != nil {
		logger.Error("init market data provider", zap.Error(err))
		return 1
	}
	logger.Info("market data provider", zap.String("provider", fetcher.Name()))

	engine := strategy.NewEngine(fetcher, rules,
		strategy.WithConcurrency(cfg.MarketData.Concurrency),
		strategy.WithHistoryLimit(cfg.MarketData.HistoryLimit),
		strategy.WithLogger(logger.Named("strategy")),
	)

	var emailSender, chatSender notifier.Sender
	if cfg.EmailEnabled() {
		emailSender = notifier.NewEmailSender(notifier.EmailOptions{
			Host:        cfg.Email.SMTPHost,
			Port:        cfg.Email.SMTPPort,
			From:        cfg.Email.From,
			To:          cfg.Email.To,
			AppPassword: cfg.Email.AppPassword,
		})
	}
	var telegram *notifier.TelegramSender
	if cfg.TelegramEnabled() {
		telegram, err = notifier.NewTelegramSender(notifier.TelegramOptions{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			Proxy:    cfg.Proxy,
		}, logger.Named("telegram"))
		if err != nil {
			logger.Error("init telegram", zap.Error(err))
			if emailSender == nil {
				return 1
			}
		} else {
			chatSender = telegram
		}
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			logger.Warn("create database directory", zap.Error(err))
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger.Named("recorder"))
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	sched := scheduler.NewScheduler(engine, scheduler.Options{
		Email:     emailSender,
		Chat:      chatSender,
		EmailMode: cfg.Email.Mode,
		Recorder:  rec,
		Logger:    logger.Named("scheduler"),
	})

	if *once {
		logger.Info("running single analysis", zap.Strings("symbols", rules.Symbols))
		if _, err := sched.RunOnce(ctx, scheduler.SourceOnce); err != nil {
			logger.Error("analysis run failed", zap.Error(err))
			return 1
		}
		return 0
	}

	if err := sched.Register(ctx, cfg.Schedule.Cron); err != nil {
		logger.Error("register cron task", zap.Error(err))
		return 1
	}
	sched.Start()
	defer sched.Stop()

	if telegram != nil {
		go telegram.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	logger.Info("CryptoSentinel is running", zap.String("cron", cfg.Schedule.Cron), zap.Strings("symbols", rules.Symbols))
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")
	return 0
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}
