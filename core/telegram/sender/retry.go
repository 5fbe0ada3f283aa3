package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/logger"
	"github.com/m3rciful/chatbots/core/telegram/netutil"
)

var (
	tokenRe  = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
	statusRe = regexp.MustCompile(`\((\d{3})\)\s*$`)
)

// Options controls retries of outbound calls.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single call.
	MaxDuration time.Duration
}

// Sender runs outbound Telegram calls on the caller's goroutine, retrying
// transient network failures with linear backoff.
type Sender struct {
	opts Options
	errs atomic.Uint64
}

// New returns a Sender with defaults for zeroed options.
func New(opts Options) *Sender {
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	return &Sender{opts: opts}
}

// ErrorCount returns the number of calls that failed for good.
func (s *Sender) ErrorCount() uint64 { return s.errs.Load() }

// Do runs fn until it succeeds, fails with a non-retryable error, runs out of
// attempts or exceeds MaxDuration. It returns the last error.
func (s *Sender) Do(ctx context.Context, action, endpoint string, fn func() error) error {
	if fn == nil {
		return errors.New("telegram sender: nil call")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := []slog.Attr{slog.String("op", action)}
	if endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", endpoint))
	}

	bounded, cancel := context.WithTimeout(ctx, s.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := s.opts.MaxRetries + 1
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success", append(attrs, slog.Int("attempts", attempt))...)
			}
			logger.Debug(ctx, "tg.sender", "send.success", append(attrs, slog.Duration("duration", time.Since(start)))...)
			return nil
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}
		delay := netutil.Backoff(s.opts.RetryBackoff, attempt)
		if serr := netutil.Sleep(bounded, delay); serr != nil {
			err = serr
			break
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			append(attrs, slog.Int("attempts", attempt), slog.Duration("backoff", delay))...)
	}

	s.errs.Add(1)
	logger.Error(ctx, "tg.sender", "send.fail", append(attrs,
		slog.String("status", "fail"),
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("cause", classifyError(err)),
		slog.Bool("retryable", netutil.ShouldRetry(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}

// classifyError names the failure class for the cause log field.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	var (
		dnsErr   *net.DNSError
		opErr    *net.OpError
		netErr   net.Error
		alertErr tls.AlertError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &alertErr):
		return "tls"
	}
	switch status := httpStatus(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage redacts bot tokens embedded in request URLs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

// httpStatus extracts the Bot API status from telebot errors, falling back to
// a trailing "(NNN)" in the message.
func httpStatus(err error) int {
	var (
		apiErr   *tele.Error
		floodErr tele.FloodError
		groupErr tele.GroupError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &floodErr):
		return http.StatusTooManyRequests
	case errors.As(err, &groupErr):
		return http.StatusBadRequest
	}
	if m := statusRe.FindStringSubmatch(strings.TrimSpace(err.Error())); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}
