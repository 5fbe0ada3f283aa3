package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/chatbots/core/config"
	"github.com/m3rciful/chatbots/core/logger"
	"github.com/m3rciful/chatbots/core/telegram/netutil"
)

const (
	defaultLongPollTimeout   = 10 * time.Second
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryBackoff      = 2 * time.Second
)

// BuildPoller returns the webhook or long poller selected by cfg. Normalize
// must have run on cfg.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: longPollTimeout(cfg)}
}

func longPollTimeout(cfg *coreconfig.Config) time.Duration {
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return defaultLongPollTimeout
}

// BuildHTTPClient returns the client used for Telegram API calls. Transient
// transport failures are retried up to retries times. The client timeout
// leaves room for a full long-poll round.
func BuildHTTPClient(cfg *coreconfig.Config, retries int) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   longPollTimeout(cfg) + 20*time.Second,
		Transport: &retryTransport{base: transport, maxRetries: retries, backoff: defaultRetryBackoff},
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		curr := req
		if attempt > 1 {
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			curr = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			}
		}

		resp, err := base.RoundTrip(curr)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		delay := netutil.Backoff(t.backoff, attempt)
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelDebug, "http.retry",
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.Int64("backoff_ms", delay.Milliseconds()),
		)
		if err := netutil.Sleep(req.Context(), delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}
