package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"CryptoSentinel/internal/model"
)

// Email delivery modes for multi-symbol runs.
const (
	EmailModeConsolidated = "consolidated"
	EmailModeIndividual   = "individual"
)

// CronParser accepts six-field expressions with seconds, plus descriptors such as @hourly.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds all application configuration.
type Config struct {
	Rules struct {
		Symbols   []string `yaml:"symbols"`
		Symbol    string   `yaml:"symbol"`
		Timeframe string   `yaml:"timeframe"`
		RSIPeriod int      `yaml:"rsi_period"`
		// thresholds are kept as text and parsed into decimals by RuleSet
		BuyRSI  string `yaml:"buy_rsi"`
		SellRSI string `yaml:"sell_rsi"`
		DCADrop string `yaml:"dca_drop"`
	} `yaml:"rules"`
	MarketData struct {
		Provider     string `yaml:"provider"`
		HistoryLimit int    `yaml:"history_limit"`
		Concurrency  int    `yaml:"concurrency"`
		Binance      struct {
			BaseURL   string `yaml:"base_url"`
			APIKey    string `yaml:"api_key"`
			SecretKey string `yaml:"secret_key"`
		} `yaml:"binance"`
		CoinGecko struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"coingecko"`
	} `yaml:"market_data"`
	Email struct {
		SMTPHost    string `yaml:"smtp_host"`
		SMTPPort    int    `yaml:"smtp_port"`
		From        string `yaml:"from"`
		To          string `yaml:"to"`
		AppPassword string `yaml:"app_password"`
		Mode        string `yaml:"mode"`
	} `yaml:"email"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy    string `yaml:"proxy"`
	LogLevel string `yaml:"log_level"`
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are not an error; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "load %s", p)
		}
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read config")
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	// env symbols replace file symbols: RULES_SYMBOLS, then RULES_SYMBOL
	if symbols := SplitSymbols(os.Getenv("RULES_SYMBOLS")); len(symbols) > 0 {
		c.Rules.Symbols = symbols
	} else if v := strings.TrimSpace(os.Getenv("RULES_SYMBOL")); v != "" {
		c.Rules.Symbols = nil
		c.Rules.Symbol = v
	}
	setString(&c.Rules.Timeframe, "RULES_TIMEFRAME")
	setInt(&c.Rules.RSIPeriod, "RULES_RSI_PERIOD")
	setDecimal(&c.Rules.BuyRSI, "RULES_BUY_RSI")
	setDecimal(&c.Rules.SellRSI, "RULES_SELL_RSI")
	setDecimal(&c.Rules.DCADrop, "RULES_DCA_DROP")

	setString(&c.MarketData.Provider, "MARKET_DATA_PROVIDER")
	setString(&c.MarketData.Binance.BaseURL, "BINANCE_BASEURL")
	setString(&c.MarketData.Binance.APIKey, "BINANCE_APIKEY")
	setString(&c.MarketData.Binance.SecretKey, "BINANCE_SECRETKEY")
	setString(&c.MarketData.CoinGecko.BaseURL, "COINGECKO_BASEURL")
	setString(&c.MarketData.CoinGecko.APIKey, "COINGECKO_APIKEY")

	setString(&c.Email.From, "GMAIL_FROM")
	setString(&c.Email.To, "GMAIL_TO")
	setString(&c.Email.AppPassword, "GMAIL_APP_PASSWORD")
	setString(&c.Email.Mode, "EMAIL_MODE")

	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Schedule.Cron, "CRON_SCHEDULE")
	setString(&c.Database.SQLitePath, "SQLITE_PATH")
	setString(&c.Proxy, "HTTPS_PROXY")
	setString(&c.LogLevel, "LOG_LEVEL")
}

func (c *Config) applyDefaults() {
	if c.Rules.Timeframe == "" {
		c.Rules.Timeframe = "1h"
	}
	if c.Rules.RSIPeriod == 0 {
		c.Rules.RSIPeriod = 14
	}
	if c.Rules.BuyRSI == "" {
		c.Rules.BuyRSI = "30"
	}
	if c.Rules.SellRSI == "" {
		c.Rules.SellRSI = "70"
	}
	if c.Rules.DCADrop == "" {
		c.Rules.DCADrop = "3.0"
	}
	c.MarketData.Provider = strings.ToLower(strings.TrimSpace(c.MarketData.Provider))
	if c.MarketData.Provider == "" {
		c.MarketData.Provider = "coingecko"
	}
	if c.MarketData.HistoryLimit == 0 {
		c.MarketData.HistoryLimit = 200
	}
	if c.MarketData.Concurrency == 0 {
		c.MarketData.Concurrency = 4
	}
	if c.Email.SMTPHost == "" {
		c.Email.SMTPHost = "smtp.gmail.com"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	c.Email.Mode = strings.ToLower(strings.TrimSpace(c.Email.Mode))
	if c.Email.Mode == "" {
		c.Email.Mode = EmailModeConsolidated
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 0 * * * *"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/crypto_sentinel.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Symbols returns the symbols to monitor: the symbol list when set,
// else the single symbol, else BTCUSDT.
func (c *Config) Symbols() []string {
	var out []string
	for _, s := range c.Rules.Symbols {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	if s := strings.TrimSpace(c.Rules.Symbol); s != "" {
		return []string{s}
	}
	return []string{"BTCUSDT"}
}

// RuleSet builds the validated rule set.
func (c *Config) RuleSet() (model.RuleConfig, error) {
	buy, err := decimal.NewFromString(c.Rules.BuyRSI)
	if err != nil {
		return model.RuleConfig{}, errors.Wrapf(model.ErrInvalidConfig, "rules.buy_rsi %q is not a number", c.Rules.BuyRSI)
	}
	sell, err := decimal.NewFromString(c.Rules.SellRSI)
	if err != nil {
		return model.RuleConfig{}, errors.Wrapf(model.ErrInvalidConfig, "rules.sell_rsi %q is not a number", c.Rules.SellRSI)
	}
	drop, err := decimal.NewFromString(c.Rules.DCADrop)
	if err != nil {
		return model.RuleConfig{}, errors.Wrapf(model.ErrInvalidConfig, "rules.dca_drop %q is not a number", c.Rules.DCADrop)
	}

	rules := model.RuleConfig{
		Symbols:          c.Symbols(),
		Timeframe:        c.Rules.Timeframe,
		RSIPeriod:        c.Rules.RSIPeriod,
		BuyRSIThreshold:  buy,
		SellRSIThreshold: sell,
		DCADropPercent:   drop,
	}
	if err := rules.Validate(); err != nil {
		return model.RuleConfig{}, err
	}
	return rules, nil
}

// EmailEnabled reports whether all SMTP credentials are present.
func (c *Config) EmailEnabled() bool {
	return c.Email.From != "" && c.Email.To != "" && c.Email.AppPassword != ""
}

// TelegramEnabled reports whether the bot token and chat id are present.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if _, err := c.RuleSet(); err != nil {
		return err
	}
	switch c.MarketData.Provider {
	case "coingecko", "binance", "mock":
	default:
		return errors.Errorf("market_data.provider %q must be coingecko, binance or mock", c.MarketData.Provider)
	}
	if c.MarketData.HistoryLimit < 0 || c.MarketData.Concurrency < 0 {
		return errors.New("market_data.history_limit and market_data.concurrency must be positive")
	}

	emailPartial := c.Email.From != "" || c.Email.To != "" || c.Email.AppPassword != ""
	if emailPartial && !c.EmailEnabled() {
		return errors.New("email requires GMAIL_FROM, GMAIL_TO and GMAIL_APP_PASSWORD")
	}
	if !c.EmailEnabled() && !c.TelegramEnabled() {
		return errors.New("no delivery channel configured: set GMAIL_FROM, GMAIL_TO and GMAIL_APP_PASSWORD or TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	}
	if c.Email.Mode != EmailModeConsolidated && c.Email.Mode != EmailModeIndividual {
		return errors.Errorf("email.mode %q must be %s or %s", c.Email.Mode, EmailModeConsolidated, EmailModeIndividual)
	}
	if _, err := CronParser.Parse(c.Schedule.Cron); err != nil {
		return errors.Wrapf(err, "schedule.cron %q", c.Schedule.Cron)
	}
	return nil
}

// SplitSymbols parses a comma-separated symbol list, dropping blanks.
func SplitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt ignores values that do not parse.
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setDecimal(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		if _, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			*dst = strings.TrimSpace(v)
		}
	}
}
