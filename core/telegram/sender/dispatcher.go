// Package sender runs outbound Telegram calls on a bounded worker
// queue with transient-error retries, so slow API moments never block
// an inbound handler.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/core/telegram/netutil"
)

// ErrQueueClosed is returned once Close has been called.
var ErrQueueClosed = errors.New("telegram sender: queue closed")

// ErrQueueFull is returned when the queue cannot accept another task.
var ErrQueueFull = errors.New("telegram sender: queue full")

var botTokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Options tunes the dispatcher; zero values get defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps the total time spent on one task, retries included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type task struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound calls asynchronously.
type Dispatcher struct {
	opts  Options
	queue chan task
	done  chan struct{}

	closeOnce sync.Once
	workers   sync.WaitGroup
	failed    atomic.Uint64
}

// NewDispatcher builds the dispatcher and starts its workers.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		opts: opts.withDefaults(),
		done: make(chan struct{}),
	}
	d.queue = make(chan task, d.opts.QueueSize)

	d.workers.Add(d.opts.Workers)
	for i := 0; i < d.opts.Workers; i++ {
		go func() {
			defer d.workers.Done()
			for t := range d.queue {
				d.execute(t)
			}
		}()
	}
	return d
}

// Enqueue schedules run for asynchronous execution. The closure must
// be idempotent when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	select {
	case <-d.done:
		return ErrQueueClosed
	default:
	}

	select {
	case d.queue <- task{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount reports how many tasks exhausted their retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close drains the queue and stops the workers.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		close(d.queue)
		d.workers.Wait()
	})
}

func (d *Dispatcher) execute(t task) {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	maxAttempts := d.opts.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		lastErr = t.run()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success",
					append(t.attrs(ctx), slog.Int("attempt", attempt))...)
			}
			logger.Debug(ctx, "tg.sender", "send.success",
				append(t.attrs(ctx), slog.Int64("duration_ms", time.Since(start).Milliseconds()))...)
			return
		}

		if !netutil.ShouldRetry(lastErr) || attempt == maxAttempts {
			break
		}
		if !sleepCtx(ctx, d.opts.RetryBackoff*time.Duration(attempt)) {
			lastErr = ctx.Err()
			break
		}
	}

	d.failed.Add(1)
	logger.Error(ctx, "tg.sender", "send.fail", append(t.attrs(ctx),
		slog.String("err", redactToken(lastErr)),
		slog.String("err_code", errorCode(lastErr)),
		slog.Int("attempts", maxAttempts),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)...)
}

// sleepCtx waits for d or context cancellation; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (t task) attrs(ctx context.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", t.action)}
	if t.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", t.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	return attrs
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return "timeout"
		}
		if opErr.Op == "dial" {
			return "dial"
		}
	}
	return "unknown"
}

// redactToken strips bot tokens that Telegram client errors embed in
// request URLs.
func redactToken(err error) string {
	if err == nil {
		return ""
	}
	return logger.SanitizeLimit(botTokenRe.ReplaceAllString(err.Error(), "bot<redacted>"), 256)
}
