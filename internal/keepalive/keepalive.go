// Package keepalive pings a URL on a fixed interval so hosts that idle out
// inactive instances keep this one warm.
//
// There is exactly one ticker per Pinger and Start arms it at most once;
// request handlers never touch it.
package keepalive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	once sync.Once
	done chan struct{}
}

func New(url string, interval time.Duration, client *http.Client, logger *slog.Logger) *Pinger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Pinger{
		url:      url,
		interval: interval,
		client:   client,
		logger:   logger.With(slog.String("component", "keepalive")),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker goroutine. It returns false when the Pinger was
// already started or has no URL. The goroutine exits when ctx is done.
func (p *Pinger) Start(ctx context.Context) bool {
	if p.url == "" || p.interval <= 0 {
		return false
	}

	started := false
	p.once.Do(func() {
		started = true
		go p.run(ctx)
	})
	return started
}

// Done is closed once the ticker goroutine has exited.
func (p *Pinger) Done() <-chan struct{} {
	return p.done
}

func (p *Pinger) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("keepalive started",
		slog.String("url", p.url),
		slog.Duration("interval", p.interval),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("keepalive stopped")
			return
		case <-ticker.C:
			if err := p.Ping(ctx); err != nil {
				p.logger.Warn("keepalive ping failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Ping issues one GET and discards the body.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	p.logger.Debug("keepalive ping", slog.Int("status", resp.StatusCode))
	return nil
}
