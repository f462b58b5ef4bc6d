package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTelegramAPIBase is the public Bot API endpoint.
	DefaultTelegramAPIBase = "https://api.telegram.org"

	// Telegram rejects messages longer than 4096 characters.
	maxMessageLength = 4096
	truncationSuffix = "..."

	defaultRetryAfter = 5 * time.Second
)

// TelegramConfig contains configuration for Bot API notifications.
type TelegramConfig struct {
	// Token is the bot token issued by BotFather.
	Token string

	// APIBase overrides the Bot API root; empty means DefaultTelegramAPIBase.
	APIBase string

	// Timeout is the HTTP request timeout for one sendMessage call.
	Timeout time.Duration

	// MaxAttempts bounds sendMessage attempts per message (default 3).
	MaxAttempts int

	// BaseDelay is the linear backoff step for 5xx and network errors (default 2s).
	BaseDelay time.Duration
}

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	config      TelegramConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewTelegramNotifier creates a TelegramNotifier.
//
// Rate limits follow the Bot API guidance: about 30 messages per second
// overall and one per second to the same chat.
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	if config.APIBase == "" {
		config.APIBase = DefaultTelegramAPIBase
	}
	config.APIBase = strings.TrimRight(config.APIBase, "/")
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 2 * time.Second
	}

	return &TelegramNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(25, 5, 1, 3),
	}
}

// Name returns "telegram".
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// sendMessagePayload is the JSON body of a sendMessage call.
type sendMessagePayload struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool               `json:"ok"`
	ErrorCode   int                `json:"error_code"`
	Description string             `json:"description"`
	Parameters  responseParameters `json:"parameters"`
}

type responseParameters struct {
	RetryAfter int `json:"retry_after"` // seconds
}

func (t *TelegramNotifier) endpoint() string {
	return t.config.APIBase + "/bot" + t.config.Token + "/sendMessage"
}

// sendMessage performs one sendMessage call.
//
// Error types:
//   - 429: *RateLimitError carrying parameters.retry_after
//   - other 4xx, or ok=false: *ClientError (not retried)
//   - 5xx: *ServerError (retried)
//   - transport error: retried, with the token redacted from the URL
func (t *TelegramNotifier) sendMessage(ctx context.Context, chatID, text string) error {
	payload := sendMessagePayload{
		ChatID:                chatID,
		Text:                  truncateRunes(text, maxMessageLength, truncationSuffix),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(), bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", t.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", t.redact(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var apiResp apiResponse
	_ = json.Unmarshal(body, &apiResp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(body) > 0 && !apiResp.OK {
			return &ClientError{StatusCode: resp.StatusCode, Description: "message rejected: " + apiResp.Description}
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			RetryAfter:  extractRetryAfter(resp, apiResp),
			Description: apiResp.Description,
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{StatusCode: resp.StatusCode, Description: describe(apiResp, body)}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Description: describe(apiResp, body)}
	}

	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, describe(apiResp, body))
}

func describe(apiResp apiResponse, body []byte) string {
	if apiResp.Description != "" {
		return apiResp.Description
	}
	return string(body)
}

// extractRetryAfter prefers parameters.retry_after, then the Retry-After
// header, then defaultRetryAfter.
func extractRetryAfter(resp *http.Response, apiResp apiResponse) time.Duration {
	if apiResp.Parameters.RetryAfter > 0 {
		return time.Duration(apiResp.Parameters.RetryAfter) * time.Second
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return defaultRetryAfter
}

// redact strips the bot token from *url.Error messages.
func (t *TelegramNotifier) redact(err error) error {
	var urlErr *url.Error
	if t.config.Token != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, t.config.Token, "***")
	}
	return err
}

// sendWithRetry runs sendMessage up to MaxAttempts times. A 429 waits for
// the server supplied retry_after; 5xx and network errors back off linearly;
// other 4xx fail at once.
func (t *TelegramNotifier) sendWithRetry(ctx context.Context, chatID, text string) error {
	requestID := requestIDFrom(ctx)
	maxAttempts := t.config.MaxAttempts

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := t.sendMessage(ctx, chatID, text)
		if err == nil {
			slog.Info("Telegram notification sent",
				slog.String("request_id", requestID),
				slog.String("chat_id", chatID),
				slog.Int("attempt", attempt))
			return nil
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		if wait, ok := retryDelay(err); ok {
			slog.Warn("Telegram rate limit hit, backing off",
				slog.String("request_id", requestID),
				slog.String("chat_id", chatID),
				slog.Duration("retry_after", wait),
				slog.Int("attempt", attempt))

			if err := sleepCtx(ctx, wait); err != nil {
				return fmt.Errorf("context canceled during rate limit backoff: %w", err)
			}
			continue
		}

		if !retryable(err) {
			slog.Error("Telegram notification failed with non-retryable error",
				slog.String("request_id", requestID),
				slog.String("chat_id", chatID),
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return err
		}

		delay := t.config.BaseDelay * time.Duration(attempt)
		slog.Warn("Telegram API request failed, retrying",
			slog.String("request_id", requestID),
			slog.String("chat_id", chatID),
			slog.Any("error", err),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay))

		if err := sleepCtx(ctx, delay); err != nil {
			return fmt.Errorf("context canceled during retry backoff: %w", err)
		}
	}

	slog.Error("Telegram notification failed after all retries",
		slog.String("request_id", requestID),
		slog.String("chat_id", chatID),
		slog.Any("error", lastErr),
		slog.Int("max_attempts", maxAttempts))

	return fmt.Errorf("telegram notification failed after %d attempts: %w", maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers message to the chat identified by destination.
func (t *TelegramNotifier) Send(ctx context.Context, destination, message string) error {
	if t.config.Token == "" {
		return &ClientError{Description: "bot token is not configured"}
	}
	if destination == "" {
		return &ClientError{Description: "chat id is empty"}
	}

	requestID := requestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
		ctx = WithRequestID(ctx, requestID)
	}

	if err := t.rateLimiter.Wait(ctx, destination); err != nil {
		slog.Error("Rate limiter error",
			slog.String("request_id", requestID),
			slog.String("chat_id", destination),
			slog.Any("error", err))
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return t.sendWithRetry(ctx, destination, message)
}
