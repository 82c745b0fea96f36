package notifier

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"CryptoSentinel/internal/platform/httpclient"
)

// TelegramOptions configures the Telegram sender.
type TelegramOptions struct {
	BotToken string
	ChatID   string
	Proxy    string
	// APIEndpoint overrides tgbotapi.APIEndpoint, mainly for tests.
	APIEndpoint string
	MaxRetries  uint64
	// RetryInterval is the initial backoff between attempts.
	RetryInterval time.Duration
}

// TelegramSender sends messages via the Telegram Bot API.
type TelegramSender struct {
	bot           *tgbotapi.BotAPI
	chatID        int64
	maxRetries    uint64
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewTelegramSender connects to the Bot API with optional proxy support.
// It fails when the token is rejected or the chat id is not numeric.
func NewTelegramSender(opts TelegramOptions, logger *zap.Logger) (*TelegramSender, error) {
	chatID, err := strconv.ParseInt(opts.ChatID, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "telegram: invalid chat id %q", opts.ChatID)
	}
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := &http.Client{Timeout: 35 * time.Second, Transport: httpclient.NewTransport(opts.Proxy)}
	bot, err := tgbotapi.NewBotAPIWithClient(opts.BotToken, endpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "telegram: authorize bot")
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("authorized on telegram", zap.String("username", bot.Self.UserName))
	return &TelegramSender{
		bot:           bot,
		chatID:        chatID,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		logger:        logger,
	}, nil
}

func (t *TelegramSender) Name() string { return "telegram" }

// Send posts msg.Text, falling back to the subject, to the configured chat.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	return t.sendText(ctx, t.chatID, text)
}

// sendText posts text in as many messages as the Bot API length limit requires.
func (t *TelegramSender) sendText(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageRunes) {
		if err := t.sendWithRetry(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// MaxMessageRunes keeps messages under Telegram's 4096 character limit,
// leaving room for characters that count twice in UTF-16.
const MaxMessageRunes = 3500

// SplitMessage splits text into chunks of at most limit runes, breaking at
// line boundaries so HTML tags opened on a line stay closed in the same chunk.
// A single line longer than limit is cut by runes.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if chunk := strings.TrimRight(cur.String(), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		cur.Reset()
		curLen = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		for n > limit {
			r := []rune(line)
			chunks = append(chunks, string(r[:limit]))
			line = string(r[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}

func (t *TelegramSender) sendWithRetry(ctx context.Context, chatID int64, text string) error {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	m.DisableWebPagePreview = true

	attempt := 0
	operation := func() error {
		attempt++
		_, err := t.bot.Send(m)
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.logger.Warn("telegram send failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = t.retryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(strategy, t.maxRetries), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return errors.Wrapf(err, "telegram: send after %d attempt(s)", attempt)
	}
	return nil
}
