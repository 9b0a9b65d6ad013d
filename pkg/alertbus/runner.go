package alertbus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aeris-platform/aeris/internal/core/httpclient"
)

// Runner drains the dispatch topic and POSTs each batch to the configured
// webhook, retrying with backoff on its own schedule so a slow or failing
// endpoint never blocks the alert pipeline that published the batch.
type Runner struct {
	log      *slog.Logger
	cfg      Config
	client   *http.Client
	ms       *metricSet
	seen     *seenRuns
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
	Client   *http.Client
}

func New(cfg Config, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Client == nil {
		opts.Client = httpclient.NewOutbound()
	}
	return &Runner{
		log:    opts.Logger,
		cfg:    cfg,
		client: opts.Client,
		ms:     newMetricSet(opts.Register),
		seen:   newSeenRuns(),
		assign: map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("alertbus runner disabled")
		return nil
	}
	if r.cfg.WebhookURL == "" {
		return errors.New("alertbus runner: webhook url is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_5_0_0
	scfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	scfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	scfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		scfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		scfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	scfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, scfg)
	if err != nil {
		return fmt.Errorf("alertbus: consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			claims := sess.Claims()
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range claims {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("alertbus consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("alertbus consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("alertbus group error", "err", err)
		}
	}()

	r.log.Info("alertbus dispatch runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("alertbus dispatch runner stopped")
}

func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if !msg.Timestamp.IsZero() {
		r.ms.setLag(int64(time.Since(msg.Timestamp).Seconds()))
	}

	var batch Batch
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		r.ms.incMsg("decode_error")
		return fmt.Errorf("alertbus: decode batch: %w", err)
	}

	if !r.seen.shouldDispatch(batch.RunID) {
		r.ms.incMsg("duplicate")
		return nil
	}

	if err := r.postWithRetry(ctx, batch); err != nil {
		r.ms.incMsg("dispatch_error")
		r.log.Error("alertbus webhook dispatch failed", "run_id", batch.RunID, "err", err)
		return err
	}

	r.ms.incMsg("ok")
	return nil
}

// postWithRetry performs the webhook POST, retrying transient failures with
// exponential backoff bounded by cfg.MaxRetries. A permanent decode/marshal
// failure is never retried.
func (r *Runner) postWithRetry(ctx context.Context, batch Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("alertbus: marshal webhook payload: %w", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(r.cfg.MaxRetries)), ctx)

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.WebhookURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("alertbus: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			r.ms.incDispatch("transport_error")
			return fmt.Errorf("alertbus: post webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			r.ms.incDispatch("server_error")
			return fmt.Errorf("alertbus: webhook returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			r.ms.incDispatch("client_error")
			return backoff.Permanent(fmt.Errorf("alertbus: webhook returned %d", resp.StatusCode))
		}
		r.ms.incDispatch("ok")
		return nil
	}

	return backoff.Retry(op, bo)
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
