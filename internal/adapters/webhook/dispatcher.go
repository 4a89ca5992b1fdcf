package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
)

type DeliveryRecorder interface {
	IncWebhookDelivery(result string)
}

type Options struct {
	Workers   int
	QueueSize int
	Attempts  uint
	Backoff   time.Duration
	Timeout   time.Duration
}

type job struct {
	url   string
	event domain.VoteReceivedEvent
}

// Dispatcher posts vote notifications from a bounded queue drained by a fixed
// set of workers. Enqueueing never blocks the caller.
type Dispatcher struct {
	opts    Options
	client  *http.Client
	queue   chan job
	metrics DeliveryRecorder
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewDispatcher(opts Options, metrics DeliveryRecorder, logger *slog.Logger) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		queue:   make(chan job, opts.QueueSize),
		metrics: metrics,
		logger:  logger,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}
}

// Stop waits for queued notifications to be sent or for ctx to expire,
// whichever comes first.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if d.cancel != nil {
			d.cancel()
		}
		<-done
	}
}

func (d *Dispatcher) NotifyVoteReceived(webhookURL string, event domain.VoteReceivedEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.record(ResultDropped)
		return
	}

	select {
	case d.queue <- job{url: webhookURL, event: event}:
	default:
		d.record(ResultDropped)
		d.logger.Warn("webhook queue full, dropping notification",
			"server_id", event.ServerID, "vote_id", event.VoteID)
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for j := range d.queue {
		if err := d.deliver(ctx, j); err != nil {
			d.record(ResultFailed)
			d.logger.Error("webhook delivery failed",
				"server_id", j.event.ServerID, "vote_id", j.event.VoteID, "error", err)
			continue
		}
		d.record(ResultDelivered)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) error {
	body, err := json.Marshal(VoteMessage(j.event))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to encode webhook payload: %w", err))
	}

	return retry.Do(func() error {
		return d.post(ctx, j.url, body)
	},
		retry.Context(ctx),
		retry.Attempts(d.opts.Attempts),
		retry.Delay(d.opts.Backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Warn("webhook attempt failed, retrying",
				"server_id", j.event.ServerID, "attempt", n+1, "error", err)
		}),
	)
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	default:
		// A 4xx other than 429 will not succeed on a retry.
		return retry.Unrecoverable(fmt.Errorf("webhook rejected request with status %d", resp.StatusCode))
	}
}

func (d *Dispatcher) record(result string) {
	if d.metrics != nil {
		d.metrics.IncWebhookDelivery(result)
	}
}
