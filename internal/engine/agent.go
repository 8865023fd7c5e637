// Package engine contains the admission worker: the control loop that
// sequences the winner memory, phase ramp, rate throttle and adaptive
// threshold around the blocking job queue.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"listgate/internal/images"
	"listgate/internal/memory"
	"listgate/internal/pricing"
	"listgate/internal/ramp"
	"listgate/internal/scoring"
	"listgate/internal/store"
	"listgate/internal/threshold"
	"listgate/internal/throttle"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is the terminal state of one processed queue item.
type Outcome string

const (
	OutcomeDroppedMalformed Outcome = "dropped_malformed"
	OutcomeDroppedLoser     Outcome = "dropped_loser"
	OutcomeRequeuedCap      Outcome = "requeued_daily_cap"
	OutcomeDroppedCap       Outcome = "dropped_daily_cap"
	OutcomeRejected         Outcome = "rejected_below_threshold"
	OutcomePublished        Outcome = "published"
	OutcomeRequeuedError    Outcome = "requeued_error"
	OutcomeDroppedError     Outcome = "dropped_error"
	OutcomeReturnedPaused   Outcome = "returned_paused"
)

// AgentConfig holds configuration for the admission worker.
type AgentConfig struct {
	PollInterval    time.Duration // base poll cadence (default: 1s)
	MaxBackoff      time.Duration // backoff ceiling on an empty queue (default: 30s)
	MaxAttempts     int           // claims per item before a forced drop (default: 2)
	DispatchTimeout time.Duration // per-collaborator call budget (default: 30s)
	RequeueDelay    time.Duration // delay before retrying a transient failure (default: 30s)
	PausedIdle      time.Duration // poll cadence while the kill switch is set (default: 5s)
}

func (c *AgentConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 30 * time.Second
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = 30 * time.Second
	}
	if c.PausedIdle <= 0 {
		c.PausedIdle = 5 * time.Second
	}
}

// Agent is the single logical consumer of the admission queue. The loop is
// strictly sequential per job: throttle spacing is defined relative to the
// last action time, which is only meaningful under one active timeline.
type Agent struct {
	queue     store.Queue
	switches  store.SwitchStore
	memory    *memory.Memory
	threshold *threshold.Controller
	ramp      *ramp.Scheduler
	throttle  *throttle.Throttle
	publisher Publisher
	enhancer  images.Enhancer
	pricing   pricing.Params
	scorer    func(store.Job) float64
	cfg       AgentConfig
	log       *slog.Logger
	decisions metric.Int64Counter
	done      chan struct{}
}

// New creates an admission worker agent.
func New(
	queue store.Queue,
	switches store.SwitchStore,
	mem *memory.Memory,
	thr *threshold.Controller,
	rmp *ramp.Scheduler,
	trt *throttle.Throttle,
	publisher Publisher,
	enhancer images.Enhancer,
	pricingParams pricing.Params,
	cfg AgentConfig,
	log *slog.Logger,
) *Agent {
	cfg.applyDefaults()
	if enhancer == nil {
		enhancer = images.Disabled{}
	}

	meter := otel.Meter("listgate/engine")
	decisions, err := meter.Int64Counter("listgate_admission_decisions_total",
		metric.WithDescription("Terminal outcomes of processed queue items"))
	if err != nil {
		log.Warn("failed to create decisions counter", "error", err)
	}

	return &Agent{
		queue:     queue,
		switches:  switches,
		memory:    mem,
		threshold: thr,
		ramp:      rmp,
		throttle:  trt,
		publisher: publisher,
		enhancer:  enhancer,
		pricing:   pricingParams,
		scorer:    scoring.Score,
		cfg:       cfg,
		log:       log,
		decisions: decisions,
		done:      make(chan struct{}),
	}
}

// Run starts the admission loop. It blocks until the context is cancelled.
// A single bad job never terminates the loop; every step logs and moves on.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("admission worker starting", "pollInterval", a.cfg.PollInterval)

	backoff := a.cfg.PollInterval
	for {
		select {
		case <-ctx.Done():
			a.log.Info("admission worker stopping")
			close(a.done)
			return ctx.Err()
		case <-time.After(backoff):
		}

		paused, err := a.switches.GetKillSwitch(ctx)
		if err != nil {
			a.log.Warn("kill switch unreadable, continuing", "error", err)
		}
		if paused {
			backoff = a.cfg.PausedIdle
			continue
		}

		item, err := a.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Empty queue: exponential backoff, capped.
				backoff = min(backoff*2, a.cfg.MaxBackoff)
				continue
			}
			a.log.Error("dequeue failed", "error", err)
			backoff = min(backoff*2, a.cfg.MaxBackoff)
			continue
		}

		outcome := a.process(ctx, item)
		a.count(ctx, outcome)

		// Work found: poll again promptly.
		backoff = a.cfg.PollInterval
	}
}

// Done returns a channel closed when the agent has fully stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

func (a *Agent) count(ctx context.Context, outcome Outcome) {
	if a.decisions != nil {
		a.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", string(outcome)),
		))
	}
}

// process runs one item through the gate sequence:
// LoserCheck -> CapacityCheck -> ThrottleWait -> ScoreGate -> Dispatch.
func (a *Agent) process(ctx context.Context, item *store.QueueItem) Outcome {
	var job store.Job
	if err := json.Unmarshal(item.Payload, &job); err != nil || job.Identity == "" {
		// Malformed payloads will never become valid; drop, never requeue.
		a.complete(ctx, item)
		a.log.Warn("dropped malformed job payload",
			"queueID", item.QueueID, "error", err)
		return OutcomeDroppedMalformed
	}

	tracer := otel.Tracer("listgate/engine")
	ctx, span := tracer.Start(ctx, "admit_job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.identity", job.Identity),
			attribute.Int("job.attempt", item.Attempt),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	log := a.log.With("identity", job.Identity, "jobID", job.ID)

	// LoserCheck: a permanent loser consumes no capacity and no throttle.
	switch a.memory.Classify(ctx, job.Identity) {
	case store.ClassLoser:
		a.complete(ctx, item)
		log.Info("dropped known loser")
		return OutcomeDroppedLoser
	case store.ClassWinner:
		// Priority framing only; winners still pass capacity and throttle.
		log.Info("known winner re-observed, processing with priority")
	}

	// CapacityCheck against the phase ramp's daily cap.
	phase, err := a.ramp.GetPhase(ctx)
	if err != nil {
		return a.retryTransient(ctx, item, log, "phase lookup failed", err)
	}
	accepted, err := a.ramp.AcceptedToday(ctx)
	if err != nil {
		return a.retryTransient(ctx, item, log, "accepted count unavailable", err)
	}
	if accepted >= phase.DailyCap {
		if item.Attempt >= a.cfg.MaxAttempts {
			a.complete(ctx, item)
			log.Warn("dropped job, daily cap exhausted and retries spent",
				"reason", throttle.ReasonDailyCap, "dailyCap", phase.DailyCap)
			return OutcomeDroppedCap
		}
		a.requeue(ctx, item, nextUTCDay(time.Now()))
		log.Info("requeued job until tomorrow, daily cap exhausted",
			"reason", throttle.ReasonDailyCap, "dailyCap", phase.DailyCap, "attempt", item.Attempt)
		return OutcomeRequeuedCap
	}

	// Operator pause: hand the job back untouched, never discard it.
	if paused, _ := a.switches.GetKillSwitch(ctx); paused {
		a.returnToHead(ctx, item)
		log.Info("kill switch set, job returned to queue head")
		return OutcomeReturnedPaused
	}

	// ThrottleWait: the only intentional suspension point in the loop.
	wait, err := a.throttle.WaitTurn(ctx)
	if err != nil {
		// Context cancelled mid-wait; preserve the job for the next run.
		a.returnToHead(ctx, item)
		return OutcomeReturnedPaused
	}
	if wait.WaitedMs > 0 {
		log.Debug("throttle wait complete", "waitedMs", wait.WaitedMs, "reason", wait.Reason)
	}

	// ScoreGate against the adaptive threshold.
	score := a.scoreOf(job)
	bar := a.threshold.GetThreshold(ctx)
	passed := score >= bar
	span.SetAttributes(
		attribute.Float64("job.score", score),
		attribute.Float64("threshold", bar),
		attribute.Bool("passed", passed),
	)

	if _, err := a.threshold.RecordSample(ctx, passed); err != nil {
		log.Warn("failed to record threshold sample", "error", err)
	}
	if _, _, err := a.threshold.MaybeAdjust(ctx); err != nil {
		log.Warn("threshold adjustment failed", "error", err)
	}

	if !passed {
		if err := a.memory.MarkLoser(ctx, job.Identity); err != nil {
			log.Warn("failed to record loser", "error", err)
		}
		a.complete(ctx, item)
		log.Info("rejected below threshold", "score", score, "threshold", bar)
		return OutcomeRejected
	}

	if err := a.memory.MarkWinner(ctx, job.Identity, int(score)); err != nil {
		log.Warn("failed to record winner", "error", err)
	}
	if _, err := a.ramp.ConsumeAccepted(ctx); err != nil {
		log.Warn("failed to count accepted job", "error", err)
	}

	// DownstreamDispatch with phase-gated annotations.
	listing := a.buildListing(ctx, job, score, phase)

	dispatchCtx, cancel := context.WithTimeout(ctx, a.cfg.DispatchTimeout)
	err = a.publisher.Publish(dispatchCtx, listing)
	cancel()
	if err != nil {
		span.RecordError(err)
		if terr := a.throttle.OnError(ctx); terr != nil {
			log.Warn("failed to apply throttle penalty", "error", terr)
		}
		if item.Attempt >= a.cfg.MaxAttempts {
			a.complete(ctx, item)
			log.Error("dropped job, dispatch failed and retries spent", "error", err)
			return OutcomeDroppedError
		}
		a.requeue(ctx, item, time.Now().Add(a.cfg.RequeueDelay))
		log.Warn("requeued job after dispatch failure", "error", err, "attempt", item.Attempt)
		return OutcomeRequeuedError
	}

	if err := a.throttle.OnSuccess(ctx); err != nil {
		log.Warn("failed to record throttle success", "error", err)
	}
	a.complete(ctx, item)
	log.Info("job published", "score", score, "phase", phase.Phase)
	return OutcomePublished
}

func (a *Agent) scoreOf(job store.Job) float64 {
	if job.Score != nil {
		return *job.Score
	}
	return a.scorer(job)
}

func (a *Agent) buildListing(ctx context.Context, job store.Job, score float64, phase store.PhaseInfo) *Listing {
	listing := &Listing{
		Job:        job,
		Score:      score,
		Phase:      phase,
		AcceptedAt: time.Now().UTC(),
	}

	if ramp.RepricingEnabled(phase) {
		quote := pricing.Reprice(job, a.pricing)
		listing.Repricing = &quote
		if quote.Enabled {
			listing.TargetPrice = &quote.TargetPrice
		}
	}

	if ramp.ImageEnhanceEnabled(phase) {
		enhanceCtx, cancel := context.WithTimeout(ctx, a.cfg.DispatchTimeout)
		result := a.enhancer.Enhance(enhanceCtx, job)
		cancel()
		listing.Images = &result
	}

	return listing
}

// retryTransient applies the bounded-requeue policy for infrastructure
// failures: one retry, then a logged drop. Never a silent loss.
func (a *Agent) retryTransient(ctx context.Context, item *store.QueueItem, log *slog.Logger, msg string, err error) Outcome {
	if terr := a.throttle.OnError(ctx); terr != nil {
		log.Warn("failed to apply throttle penalty", "error", terr)
	}
	if item.Attempt >= a.cfg.MaxAttempts {
		a.complete(ctx, item)
		log.Error("dropped job after transient failure, retries spent", "cause", msg, "error", err)
		return OutcomeDroppedError
	}
	a.requeue(ctx, item, time.Now().Add(a.cfg.RequeueDelay))
	log.Warn("requeued job after transient failure", "cause", msg, "error", err, "attempt", item.Attempt)
	return OutcomeRequeuedError
}

func (a *Agent) complete(ctx context.Context, item *store.QueueItem) {
	if err := a.queue.Complete(ctx, item.QueueID); err != nil {
		a.log.Error("failed to remove queue item", "queueID", item.QueueID, "error", err)
	}
}

func (a *Agent) requeue(ctx context.Context, item *store.QueueItem, visibleAfter time.Time) {
	if err := a.queue.Requeue(ctx, item.QueueID, visibleAfter); err != nil {
		a.log.Error("failed to requeue item", "queueID", item.QueueID, "error", err)
	}
}

func (a *Agent) returnToHead(ctx context.Context, item *store.QueueItem) {
	if err := a.queue.ReturnToHead(ctx, item.QueueID); err != nil {
		a.log.Error("failed to return item to queue head", "queueID", item.QueueID, "error", err)
	}
}

func nextUTCDay(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
