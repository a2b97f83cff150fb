// Package eventrelay drains outbox_events into Pub/Sub.
//
// Rows are fetched in batches inside a transaction and each row ends the batch
// in one of three states: published, scheduled for retry, or parked after a
// non-retryable error or the last allowed attempt. Rows of a work order whose
// earlier event failed in the same batch are deferred so subscribers keep
// seeing one order's events in sequence.
package eventrelay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/angelmondragon/scrapfield-backend/pkg/metrics"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox/registry"
	"github.com/angelmondragon/scrapfield-backend/pkg/pubsub"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

const (
	reasonNonRetryable = "non_retryable"
	reasonMaxAttempts  = "max_attempts"
)

// Sink delivers one message and returns the broker's message id.
type Sink interface {
	Send(ctx context.Context, msg pubsub.Message) (string, error)
}

// Resolver validates a row and decides where it goes.
type Resolver interface {
	Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Store is the outbox persistence used by the relay.
type Store interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Check is a named dependency probe run before the relay starts.
type Check struct {
	Name string
	Ping func(context.Context) error
}

// Params configure a Relay. Zero numeric values fall back to defaults.
type Params struct {
	Logger         *logger.Logger
	Tx             txRunner
	Store          Store
	Resolver       Resolver
	Sink           Sink
	Metrics        *metrics.OutboxMetrics
	Checks         []Check
	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	PublishTimeout time.Duration
}

// BatchResult counts what happened to the rows of one batch.
type BatchResult struct {
	Fetched   int
	Published int
	Retried   int
	Parked    int
	Deferred  int
}

// Relay publishes outbox rows until its context ends.
type Relay struct {
	logg           *logger.Logger
	tx             txRunner
	store          Store
	resolver       Resolver
	sink           Sink
	metrics        *metrics.OutboxMetrics
	checks         []Check
	batchSize      int
	pollInterval   time.Duration
	maxAttempts    int
	publishTimeout time.Duration
}

func New(params Params) (*Relay, error) {
	switch {
	case params.Tx == nil:
		return nil, errors.New("transaction runner is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Resolver == nil:
		return nil, errors.New("event resolver is required")
	case params.Sink == nil:
		return nil, errors.New("message sink is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	r := &Relay{
		logg:           logg,
		tx:             params.Tx,
		store:          params.Store,
		resolver:       params.Resolver,
		sink:           params.Sink,
		metrics:        params.Metrics,
		checks:         params.Checks,
		batchSize:      params.BatchSize,
		pollInterval:   params.PollInterval,
		maxAttempts:    params.MaxAttempts,
		publishTimeout: params.PublishTimeout,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.publishTimeout <= 0 {
		r.publishTimeout = defaultPublishTimeout
	}
	return r, nil
}

// Run probes dependencies, then relays batches until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	for _, check := range r.checks {
		if err := check.Ping(ctx); err != nil {
			r.logg.Error(r.logg.WithField(ctx, "dependency", check.Name), "outbox.dependency_unavailable", err)
			return fmt.Errorf("%s ping failed: %w", check.Name, err)
		}
	}

	backoff := r.newBackoff()
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox.relay_stopped")
			return err
		}

		res, err := r.RelayBatch(ctx)
		wait := r.pollInterval
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = nextWait(backoff)
		case res.Retried > 0 || res.Deferred > 0:
			wait = nextWait(backoff)
		default:
			backoff = r.newBackoff()
			if res.Fetched >= r.batchSize {
				continue
			}
		}
		if err := sleep(ctx, wait); err != nil {
			r.logg.Info(ctx, "outbox.relay_stopped")
			return err
		}
	}
}

// RelayBatch publishes one batch inside a single transaction.
func (r *Relay) RelayBatch(ctx context.Context) (BatchResult, error) {
	var res BatchResult
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res = BatchResult{}
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		res.Fetched = len(events)

		blocked := map[uuid.UUID]struct{}{}
		for _, event := range events {
			if err := r.relayOne(ctx, tx, event, blocked, &res); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil && res.Fetched > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"fetched":   res.Fetched,
			"published": res.Published,
			"retried":   res.Retried,
			"parked":    res.Parked,
			"deferred":  res.Deferred,
		}), "outbox.batch_relayed")
	}
	return res, err
}

func (r *Relay) relayOne(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, blocked map[uuid.UUID]struct{}, res *BatchResult) error {
	resolved, err := r.resolver.Resolve(event)
	if err != nil {
		res.Parked++
		return r.park(ctx, tx, event, nil, reasonNonRetryable, err)
	}
	if _, ok := blocked[resolved.OrderID]; ok && resolved.OrderID != uuid.Nil {
		res.Deferred++
		return nil
	}

	msg := resolved.Message(event)
	logCtx := r.logg.WithFields(ctx, eventFields(event, msg))
	if err := r.publish(ctx, event, msg); err != nil {
		r.metrics.IncFailure(string(event.EventType))
		blocked[resolved.OrderID] = struct{}{}

		if registry.IsNonRetryable(err) {
			res.Parked++
			return r.park(ctx, tx, event, &msg, reasonNonRetryable, err)
		}
		attempt := event.AttemptCount + 1
		if attempt >= r.maxAttempts {
			res.Parked++
			return r.park(ctx, tx, event, &msg, reasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
		}

		res.Retried++
		r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		}), "outbox.publish_failed")
		if markErr := r.store.MarkFailedTx(tx, event.ID, err); markErr != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
		}
		return nil
	}

	if err := r.store.MarkPublishedTx(tx, event.ID); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	res.Published++
	r.metrics.IncSuccess(string(event.EventType))
	r.logg.Info(logCtx, "outbox.event_published")
	return nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, msg pubsub.Message) error {
	publishCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()
	started := time.Now()
	_, err := r.sink.Send(publishCtx, msg)
	r.metrics.ObserveDuration(string(event.EventType), time.Since(started))
	return err
}

// park stops retries for a row by pushing its attempt count to the ceiling.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, msg *pubsub.Message, reason string, cause error) error {
	fields := eventFields(event, pubsub.Message{})
	if msg != nil {
		fields = eventFields(event, *msg)
	}
	fields["terminal_reason"] = reason
	fields["error"] = cause.Error()
	r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox.event_parked")

	if err := r.store.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (r *Relay) newBackoff() retry.Backoff {
	b := retry.NewExponential(r.pollInterval)
	b = retry.WithCappedDuration(maxBackoff, b)
	return retry.WithJitter(jitterWindow, b)
}

func nextWait(b retry.Backoff) time.Duration {
	d, stop := b.Next()
	if stop {
		return maxBackoff
	}
	return d
}

func eventFields(event models.OutboxEvent, msg pubsub.Message) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if msg.Topic != "" {
		fields["topic"] = msg.Topic
	}
	if msg.OrderingKey != "" {
		fields["work_order_id"] = msg.OrderingKey
	}
	if id := msg.Attributes["event_id"]; id != "" {
		fields["event_id"] = id
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
