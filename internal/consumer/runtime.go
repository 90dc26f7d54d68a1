package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	engerrors "github.com/lattice-signal/telemetry-engine/pkg/errors"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
	"github.com/lattice-signal/telemetry-engine/pkg/hotlog"
	"github.com/lattice-signal/telemetry-engine/pkg/idempotency"
	"github.com/lattice-signal/telemetry-engine/pkg/metrics"
	"github.com/lattice-signal/telemetry-engine/pkg/resilience"
	"github.com/lattice-signal/telemetry-engine/pkg/transaction"
)

// HandlerBudget is the per-record deadline every handler invocation runs
// under (spec §4.1 "Fairness" / §5 "Cancellation & timeouts").
const HandlerBudget = 10 * time.Second

// DefaultPartitionBuffer sizes each partition's standing-in-for-fetch
// channel (SPEC_FULL.md §4.1A).
const DefaultPartitionBuffer = 256

// SubscriptionConfig is one row of the explicit subscription table spec §9
// calls for in place of annotation-driven wiring: topic, group,
// partition-concurrency, and the handler, plus the topic names its error
// paths route to.
type SubscriptionConfig struct {
	Topic                string
	Group                string
	PartitionConcurrency int
	Handler              Handler
	Decode               Decoder
	RetryTopic           string
	DLTTopic             string
	FallbackTopic        string
}

type subscription struct {
	cfg        SubscriptionConfig
	breaker    *resilience.CircuitBreaker
	partitions []chan *events.Envelope
	cancel     context.CancelFunc
}

// RuntimeOptions wires the Consumer Runtime's collaborators.
type RuntimeOptions struct {
	Log         *hotlog.Logger
	Metrics     *metrics.Metrics
	Idempotency *idempotency.Cache
	Store       Store
	Alerts      AlertSink
	Emitter     Emitter
	Retry       RetryPublisher
}

// Runtime bootstraps topic subscriptions and owns one goroutine per
// partition per subscription (spec §4.1, §5).
type Runtime struct {
	log         *hotlog.Logger
	metrics     *metrics.Metrics
	idempotency *idempotency.Cache
	store       Store
	alerts      AlertSink
	emitter     Emitter
	retry       RetryPublisher

	mu   sync.Mutex
	subs map[string]*subscription
	wg   sync.WaitGroup
}

// NewRuntime constructs a Runtime. A nil Log falls back to an info-level
// hotlog.Logger.
func NewRuntime(opts RuntimeOptions) *Runtime {
	if opts.Log == nil {
		opts.Log = hotlog.New("info")
	}
	return &Runtime{
		log:         opts.Log,
		metrics:     opts.Metrics,
		idempotency: opts.Idempotency,
		store:       opts.Store,
		alerts:      opts.Alerts,
		emitter:     opts.Emitter,
		retry:       opts.Retry,
		subs:        make(map[string]*subscription),
	}
}

// Subscribe registers a subscription's partition channels and per-family
// circuit breaker. Must be called before Start.
func (r *Runtime) Subscribe(cfg SubscriptionConfig) error {
	if cfg.Topic == "" {
		return errors.New("consumer: subscription topic is required")
	}
	if cfg.Handler == nil {
		return errors.New("consumer: subscription handler is required")
	}
	if cfg.PartitionConcurrency <= 0 {
		cfg.PartitionConcurrency = 1
	}
	if cfg.RetryTopic == "" {
		cfg.RetryTopic = cfg.Topic + ".retry"
	}
	if cfg.DLTTopic == "" {
		cfg.DLTTopic = cfg.Topic + ".dlt"
	}
	if cfg.FallbackTopic == "" {
		cfg.FallbackTopic = cfg.Topic + ".fallback"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[cfg.Topic]; exists {
		return fmt.Errorf("consumer: topic %q already subscribed", cfg.Topic)
	}

	partitions := make([]chan *events.Envelope, cfg.PartitionConcurrency)
	for i := range partitions {
		partitions[i] = make(chan *events.Envelope, DefaultPartitionBuffer)
	}

	r.subs[cfg.Topic] = &subscription{
		cfg:        cfg,
		breaker:    resilience.New(resilience.DefaultConfig()),
		partitions: partitions,
	}
	return nil
}

// Start launches every subscription's partition workers. ctx cancellation
// stops workers from picking up new records; in-flight records still run
// to completion or their own 10s deadline.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		subCtx, cancel := context.WithCancel(ctx)
		sub.cancel = cancel
		for _, ch := range sub.partitions {
			r.wg.Add(1)
			go r.worker(subCtx, sub, ch)
		}
	}
}

// Shutdown cancels every subscription's worker context and waits (bounded
// by ctx) for in-flight records to drain.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, sub := range r.subs {
		if sub.cancel != nil {
			sub.cancel()
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ingest decodes a raw wire record and submits it to its subscription,
// routing decode failures straight to the dead-letter topic (spec §4.1 step
// 1: "Parse envelope; reject malformed records to DLT with reason
// INVALID_FORMAT").
func (r *Runtime) Ingest(ctx context.Context, topic string, partition int32, offset int64, raw []byte) error {
	sub, err := r.subscriptionFor(topic)
	if err != nil {
		return err
	}
	if sub.cfg.Decode == nil {
		return fmt.Errorf("consumer: topic %q has no decoder configured", topic)
	}

	env, decodeErr := sub.cfg.Decode(raw, partition, offset)
	if decodeErr != nil {
		placeholder := &events.Envelope{
			Topic: topic, Partition: partition, Offset: offset, Raw: raw, Timestamp: time.Now(),
		}
		r.handleFailure(ctx, sub, placeholder, engerrors.Malformed("invalid format", decodeErr))
		return nil
	}
	return r.submitTo(ctx, sub, env)
}

// Submit enqueues an already-decoded envelope onto its subscription's
// partition channel. Exposed directly so tests can drive the runtime
// without a decoder (SPEC_FULL.md §4.1A: "tests feed the loop through this
// channel directly").
func (r *Runtime) Submit(ctx context.Context, topic string, env *events.Envelope) error {
	sub, err := r.subscriptionFor(topic)
	if err != nil {
		return err
	}
	return r.submitTo(ctx, sub, env)
}

func (r *Runtime) subscriptionFor(topic string) (*subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[topic]
	if !ok {
		return nil, fmt.Errorf("consumer: no subscription for topic %q", topic)
	}
	return sub, nil
}

func (r *Runtime) submitTo(ctx context.Context, sub *subscription, env *events.Envelope) error {
	idx := int(env.Partition) % len(sub.partitions)
	if idx < 0 {
		idx += len(sub.partitions)
	}
	select {
	case sub.partitions[idx] <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) worker(ctx context.Context, sub *subscription, ch chan *events.Envelope) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			r.process(context.Background(), sub, env)
		}
	}
}

// process runs the per-record lifecycle of spec §4.1: idempotency check,
// handler invocation under breaker + in-process retry + deadline, the
// persist/publish/commit transactional envelope, and idempotency-cache
// insertion on success.
func (r *Runtime) process(ctx context.Context, sub *subscription, env *events.Envelope) {
	start := time.Now()
	key := env.Key()

	if r.idempotency != nil {
		if _, seen := r.idempotency.Seen(ctx, key); seen {
			r.log.RecordSkippedIdempotent(sub.cfg.Topic, env.Partition, env.Offset, key)
			return
		}
	}

	handlerCtx, cancel := context.WithTimeout(ctx, HandlerBudget)
	outcome, err := r.invoke(handlerCtx, sub, env)
	cancel()
	if err != nil {
		r.handleFailure(ctx, sub, env, err)
		return
	}

	if err := r.commit(ctx, sub, env, outcome); err != nil {
		r.handleFailure(ctx, sub, env, err)
		return
	}

	if r.idempotency != nil {
		r.idempotency.MarkProcessed(ctx, key, time.Now())
	}
	r.applySideEffects(outcome)

	if r.metrics != nil {
		r.metrics.RecordProcessed(string(sub.cfg.Handler.Family()), string(env.Type), time.Since(start))
	}
	r.log.RecordProcessed(sub.cfg.Topic, env.Partition, env.Offset, string(env.Family), string(env.Type), env.CorrelationID)
}

// invoke wraps the handler call with the per-family circuit breaker and an
// in-process retry loop covering transient collaborator failures (spec
// §4.1: "a shorter in-process retry (3 attempts, same schedule) covers
// transient collaborator failures"). Non-retryable kinds (malformed,
// validation, permanent) return to the caller on the first attempt.
func (r *Runtime) invoke(ctx context.Context, sub *subscription, env *events.Envelope) (*Outcome, error) {
	var outcome *Outcome
	execErr := sub.breaker.Execute(ctx, func() error {
		cfg := resilience.InProcessRetryConfig()
		delay := cfg.InitialDelay
		var lastErr error
		for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
			o, herr := sub.cfg.Handler.Handle(ctx, env)
			if herr == nil {
				outcome = o
				return nil
			}
			lastErr = herr
			if !engerrors.KindOf(herr).Retryable() {
				return herr
			}
			if attempt < cfg.MaxAttempts-1 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
				delay *= 2
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			}
		}
		return lastErr
	})

	switch {
	case execErr == nil:
		return outcome, nil
	case errors.Is(execErr, resilience.ErrCircuitOpen), errors.Is(execErr, resilience.ErrTooManyRequests):
		return nil, engerrors.CircuitOpen(string(sub.cfg.Handler.Family()))
	case errors.Is(execErr, context.DeadlineExceeded):
		return nil, engerrors.DeadlineExceeded("10s")
	default:
		return nil, execErr
	}
}

// commit runs the exact three-step transactional envelope (SPEC_FULL.md
// §5A / pkg/transaction): persist the durable record, publish the
// outcome's outbox entries, then commit the offset.
func (r *Runtime) commit(ctx context.Context, sub *subscription, env *events.Envelope, outcome *Outcome) error {
	tx := transaction.NewRecordEnvelope(
		transaction.Step{
			Name: "persist",
			Action: func(ctx context.Context) error {
				if outcome == nil || outcome.Record == nil || r.store == nil {
					return nil
				}
				if err := r.store.Persist(ctx, sub.cfg.Handler.Family(), outcome.Record); err != nil {
					return engerrors.StoreFailure("persist", err)
				}
				return nil
			},
		},
		transaction.Step{
			Name: "publish_outbox",
			Action: func(ctx context.Context) error {
				if outcome == nil || r.emitter == nil {
					return nil
				}
				for _, d := range outcome.Derived {
					if err := r.emitter.Emit(ctx, d); err != nil {
						return engerrors.PublishFailure(d.Topic, err)
					}
				}
				return nil
			},
		},
		transaction.Step{
			Name: "commit_offset",
			Action: func(ctx context.Context) error {
				// Offset commit is delegated to the external message-log
				// client (spec §1); reaching this step with no error means
				// the runtime is clear to acknowledge.
				return nil
			},
		},
	)
	return tx.Execute(ctx)
}

func (r *Runtime) applySideEffects(outcome *Outcome) {
	if outcome == nil || r.alerts == nil {
		return
	}
	for _, a := range outcome.Alerts {
		r.alerts.Raise(a.Type, a.Severity, a.EntityID, a.Message)
	}
	for _, rr := range outcome.Resolved {
		r.alerts.Resolve(rr.Type, rr.EntityID)
	}
}

// handleFailure classifies err's Kind and routes the record to DLT, a
// retry topic, or the circuit-open fallback path per spec §7's policy
// table.
func (r *Runtime) handleFailure(ctx context.Context, sub *subscription, env *events.Envelope, err error) {
	kind := engerrors.KindOf(err)
	if r.metrics != nil {
		r.metrics.RecordError(string(sub.cfg.Handler.Family()), string(kind))
	}
	r.log.RecordFailed(sub.cfg.Topic, env.Partition, env.Offset, string(kind), err)

	switch kind {
	case engerrors.KindCircuitOpen:
		r.fallback(ctx, sub, env, err)
	case engerrors.KindTransientStoreFailure, engerrors.KindTransientPublishFailure,
		engerrors.KindTransientCollaboratorError, engerrors.KindDeadlineExceeded:
		r.routeToRetryTopic(ctx, sub, env, err)
	default:
		// MALFORMED_EVENT, VALIDATION_FAILURE, PERMANENT_FAILURE, and any
		// error kind this engine didn't classify all terminate at the DLT.
		r.deadLetter(ctx, sub, env, err)
	}
}

func (r *Runtime) routeToRetryTopic(ctx context.Context, sub *subscription, env *events.Envelope, cause error) {
	cfg := resilience.RetryTopicConfig()
	next := env.Attempt + 1
	if next > cfg.MaxAttempts {
		r.deadLetter(ctx, sub, env, cause)
		return
	}
	env.Attempt = next
	if r.retry != nil {
		if err := r.retry.PublishRetry(ctx, sub.cfg.RetryTopic, next, env); err != nil {
			r.log.RecordFailed(sub.cfg.Topic, env.Partition, env.Offset, "retry_publish_failed", err)
		}
	}
}

func (r *Runtime) fallback(ctx context.Context, sub *subscription, env *events.Envelope, cause error) {
	if r.retry != nil {
		_ = r.retry.PublishFallback(ctx, sub.cfg.FallbackTopic, env)
	}
	if r.alerts != nil {
		r.alerts.Raise("CIRCUIT_OPEN", alerts.High, env.EntityID,
			fmt.Sprintf("circuit open for family %s: %v", sub.cfg.Handler.Family(), cause))
	}
}

func (r *Runtime) deadLetter(ctx context.Context, sub *subscription, env *events.Envelope, cause error) {
	entry := DeadLetterEntry{
		Topic: sub.cfg.Topic, Partition: env.Partition, Offset: env.Offset,
		Reason: cause.Error(), Payload: env.Raw,
	}
	if r.store != nil {
		if err := r.store.RecordDeadLetter(ctx, entry); err != nil {
			r.log.RecordFailed(sub.cfg.Topic, env.Partition, env.Offset, "dlt_store_failed", err)
		}
	}
	if r.metrics != nil {
		r.metrics.RecordDLQ(string(sub.cfg.Handler.Family()), sub.cfg.DLTTopic)
	}
	if r.retry != nil {
		_ = r.retry.PublishDLT(ctx, sub.cfg.DLTTopic, env, entry)
	}
	if r.alerts != nil {
		r.alerts.Raise("DLT_EVENT", alerts.Critical, env.EntityID,
			fmt.Sprintf("record permanently failed: %v", cause))
	}
}
