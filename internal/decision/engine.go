// Package decision orchestrates construction task decisions between a
// primary provider and a deterministic rule engine, caching results and
// guaranteeing an answer within the configured deadline.
package decision

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crewline/foreman/internal/events"
	"github.com/crewline/foreman/internal/model"
	"github.com/crewline/foreman/internal/rules"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

const (
	reasoningPrioritizePrimary  = "AI-powered task prioritization"
	reasoningPrioritizeFallback = "Rule-based prioritization (AI unavailable)"
	reasoningNextPrimary        = "AI-powered next task recommendation"
	reasoningNextFallback       = "Rule-based next task recommendation (AI unavailable)"
	reasoningNextNone           = "No eligible tasks available"
	reasoningPredictPrimary     = "AI-powered lifecycle prediction"
	reasoningPredictFallback    = "Rule-based lifecycle prediction (AI unavailable)"
	reasoningResolvePrimary     = "AI-powered conflict resolution"
	reasoningResolveFallback    = "Rule-based conflict resolution (AI unavailable)"
)

// Engine answers prioritization, recommendation, prediction, and conflict
// requests. Each operation tries the primary provider under a deadline and
// falls back to the rule engine, so callers always receive a decision
// unless their input is invalid.
type Engine struct {
	mu       sync.RWMutex
	cfg      Config
	provider Provider
	bus      *events.Bus
	journal  *events.Journal

	cache *Cache
	sf    singleflight.Group

	logger   *log.Logger
	logLevel atomic.Int32

	// epoch invalidates in-flight computations: a decision started under
	// an older epoch is served to its waiters but never cached.
	epoch atomic.Uint64

	primaryCalls  atomic.Uint64
	primaryErrors atomic.Uint64
	fallbackUses  atomic.Uint64
}

// New creates an engine from the given configuration. A nil logger
// discards output. Without a provider every decision comes from the
// rule engine.
func New(cfg Config, logger *log.Logger) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	e := &Engine{
		cfg:    cfg,
		cache:  NewCache(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSec)*time.Second),
		logger: logger,
	}
	e.logLevel.Store(int32(parseLogLevel(cfg.Logging.Level)))
	e.cache.SetEvictFunc(e.onCacheEvict)
	return e, nil
}

// SetProvider wires the primary decision provider. Must be called before
// serving requests that should reach it.
func (e *Engine) SetProvider(p Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provider = p
}

// SetBus wires an event bus for decision lifecycle events.
func (e *Engine) SetBus(b *events.Bus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bus = b
}

// SetJournal wires a journal that records every served decision.
func (e *Engine) SetJournal(j *events.Journal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.journal = j
}

// PrioritizeTasks orders tasks by urgency for the given site conditions.
func (e *Engine) PrioritizeTasks(ctx context.Context, tasks []model.Task, wctx model.WorkerContext) (*Decision, error) {
	if err := validateTasks(tasks); err != nil {
		return nil, err
	}

	key := prioritizeKey(tasks, wctx)
	if d := e.cached(key); d != nil {
		e.serve(d)
		return d, nil
	}

	v, _, _ := e.sf.Do(key, func() (interface{}, error) {
		epoch := e.epoch.Load()
		d := e.prioritizeUncached(ctx, tasks, wctx)
		e.cachePut(key, d, epoch)
		return d, nil
	})

	d := v.(*Decision)
	e.serve(d)
	return d, nil
}

// NextTask recommends the single task to work on now, or none when no
// task is eligible under the current conditions.
func (e *Engine) NextTask(ctx context.Context, tasks []model.Task, wctx model.WorkerContext) (*Decision, error) {
	if err := validateTasks(tasks); err != nil {
		return nil, err
	}

	key := nextKey(tasks, wctx)
	if d := e.cached(key); d != nil {
		e.serve(d)
		return d, nil
	}

	v, _, _ := e.sf.Do(key, func() (interface{}, error) {
		epoch := e.epoch.Load()
		d := e.nextUncached(ctx, tasks, wctx)
		e.cachePut(key, d, epoch)
		return d, nil
	})

	d := v.(*Decision)
	e.serve(d)
	return d, nil
}

// PredictLifecycle estimates when a task completes and what threatens it.
func (e *Engine) PredictLifecycle(ctx context.Context, task model.Task) (*Decision, error) {
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := predictKey(task)
	if d := e.cached(key); d != nil {
		e.serve(d)
		return d, nil
	}

	v, _, _ := e.sf.Do(key, func() (interface{}, error) {
		epoch := e.epoch.Load()
		d := e.predictUncached(ctx, task)
		e.cachePut(key, d, epoch)
		return d, nil
	})

	d := v.(*Decision)
	e.serve(d)
	return d, nil
}

// ResolveConflict merges two offline edits of the same task.
func (e *Engine) ResolveConflict(ctx context.Context, local, remote model.TaskPatch, original model.Task) (*Decision, error) {
	if original.ID == "" {
		return nil, fmt.Errorf("%w: original task id is required", ErrInvalidInput)
	}

	key := conflictKey(original.ID, local, remote)
	if d := e.cached(key); d != nil {
		e.serve(d)
		return d, nil
	}

	v, _, _ := e.sf.Do(key, func() (interface{}, error) {
		epoch := e.epoch.Load()
		d := e.resolveUncached(ctx, local, remote, original)
		e.cachePut(key, d, epoch)
		return d, nil
	})

	d := v.(*Decision)
	e.serve(d)
	return d, nil
}

// prioritizeUncached computes a fresh prioritization decision.
func (e *Engine) prioritizeUncached(ctx context.Context, tasks []model.Task, wctx model.WorkerContext) *Decision {
	ordered, fallbackUsed := e.orderedTasks(ctx, tasks, wctx, OpPrioritize)

	d := e.newDecision(OpPrioritize)
	d.Tasks = ordered
	d.FallbackUsed = fallbackUsed
	if fallbackUsed {
		d.Confidence = e.fallbackConfidence(OpPrioritize)
		d.Reasoning = reasoningPrioritizeFallback
	} else {
		d.Confidence = e.primaryConfidence()
		d.Reasoning = reasoningPrioritizePrimary
	}
	return d
}

// nextUncached computes a fresh recommendation decision.
func (e *Engine) nextUncached(ctx context.Context, tasks []model.Task, wctx model.WorkerContext) *Decision {
	ordered, fallbackUsed := e.orderedTasks(ctx, tasks, wctx, OpNextTask)

	d := e.newDecision(OpNextTask)
	d.FallbackUsed = fallbackUsed
	if fallbackUsed {
		d.Confidence = e.fallbackConfidence(OpNextTask)
		d.Reasoning = reasoningNextFallback
	} else {
		d.Confidence = e.primaryConfidence()
		d.Reasoning = reasoningNextPrimary
	}

	if next := rules.FirstEligible(ordered, wctx); next != nil {
		d.Tasks = []model.Task{*next}
	} else {
		d.Tasks = make([]model.Task, 0)
		d.Reasoning = reasoningNextNone
	}
	return d
}

// predictUncached computes a fresh lifecycle prediction decision.
func (e *Engine) predictUncached(ctx context.Context, task model.Task) *Decision {
	d := e.newDecision(OpPredict)

	if p := e.providerRef(); p != nil {
		e.primaryCalls.Add(1)
		v, err := e.callPrimary(ctx, func(pctx context.Context) (interface{}, error) {
			return p.PredictLifecycle(pctx, task)
		})
		if err == nil {
			// A zero answer counts as no answer.
			if pred := v.(model.TaskPrediction); pred.TaskID != "" {
				d.Prediction = &pred
				d.Confidence = e.primaryConfidence()
				d.Reasoning = reasoningPredictPrimary
				return d
			}
			err = ErrNoAnswer
		}
		e.primaryErrors.Add(1)
		e.log(LogLevelWarn, "primary provider failed op=%s err=%v", OpPredict, err)
	}

	e.fallbackUses.Add(1)
	pred := rules.PredictLifecycle(task, time.Now().UTC())
	d.Prediction = &pred
	d.FallbackUsed = true
	d.Confidence = e.fallbackConfidence(OpPredict)
	d.Reasoning = reasoningPredictFallback
	return d
}

// resolveUncached computes a fresh conflict resolution decision.
func (e *Engine) resolveUncached(ctx context.Context, local, remote model.TaskPatch, original model.Task) *Decision {
	d := e.newDecision(OpResolve)

	if p := e.providerRef(); p != nil {
		e.primaryCalls.Add(1)
		v, err := e.callPrimary(ctx, func(pctx context.Context) (interface{}, error) {
			return p.ResolveConflict(pctx, local, remote, original)
		})
		if err == nil {
			// A zero answer counts as no answer.
			if res := v.(model.ConflictResolution); res.Reasoning != "" {
				d.Resolution = &res
				d.Confidence = e.primaryConfidence()
				d.Reasoning = reasoningResolvePrimary
				return d
			}
			err = ErrNoAnswer
		}
		e.primaryErrors.Add(1)
		e.log(LogLevelWarn, "primary provider failed op=%s err=%v", OpResolve, err)
	}

	e.fallbackUses.Add(1)
	res := rules.ResolveConflict(local, remote, original)
	d.Resolution = &res
	d.FallbackUsed = true
	d.Confidence = e.fallbackConfidence(OpResolve)
	d.Reasoning = reasoningResolveFallback
	return d
}

// orderedTasks obtains a prioritized ordering from the primary provider,
// falling back to the deterministic comparator. The bool reports whether
// the fallback produced the order.
func (e *Engine) orderedTasks(ctx context.Context, tasks []model.Task, wctx model.WorkerContext, op string) ([]model.Task, bool) {
	if p := e.providerRef(); p != nil {
		e.primaryCalls.Add(1)
		v, err := e.callPrimary(ctx, func(pctx context.Context) (interface{}, error) {
			return p.PrioritizeTasks(pctx, tasks, wctx)
		})
		if err == nil {
			if proposed := v.([]model.Task); len(proposed) > 0 || len(tasks) == 0 {
				return reconcileOrder(tasks, proposed), false
			}
			err = ErrNoAnswer
		}
		e.primaryErrors.Add(1)
		e.log(LogLevelWarn, "primary provider failed op=%s err=%v", op, err)
	}

	e.fallbackUses.Add(1)
	return rules.Prioritize(tasks, wctx), true
}

// callPrimary invokes fn under the configured deadline. The result travels
// over a buffered channel so a late provider response is dropped instead
// of leaking the goroutine. Cancellation of the caller's context also
// counts as a primary failure.
func (e *Engine) callPrimary(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	timeout := e.primaryTimeout()
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		v, err := fn(pctx)
		ch <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-timer.C:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reconcileOrder maps the provider's proposed ID order onto the input
// tasks. Unknown and duplicate IDs are dropped, tasks the provider omitted
// are appended in input order, and task values always come from the input.
func reconcileOrder(input, proposed []model.Task) []model.Task {
	byID := make(map[string]model.Task, len(input))
	for _, t := range input {
		byID[t.ID] = t
	}

	ordered := make([]model.Task, 0, len(input))
	seen := make(map[string]bool, len(input))
	for _, t := range proposed {
		orig, ok := byID[t.ID]
		if !ok || seen[t.ID] {
			continue
		}
		ordered = append(ordered, orig)
		seen[t.ID] = true
	}
	for _, t := range input {
		if !seen[t.ID] {
			ordered = append(ordered, t)
			seen[t.ID] = true
		}
	}
	return ordered
}

// cached returns a cache hit suitable for short-circuiting. Fallback
// decisions never short-circuit, a later request must retry the primary.
func (e *Engine) cached(key string) *Decision {
	d := e.cache.Get(key)
	if d == nil || d.FallbackUsed {
		return nil
	}
	d.CacheHit = true
	return d
}

// cachePut stores a decision unless the engine was reconfigured while it
// was being computed.
func (e *Engine) cachePut(key string, d *Decision, epoch uint64) {
	if e.epoch.Load() != epoch {
		e.log(LogLevelDebug, "discarding stale decision op=%s key=%s", d.Operation, key)
		return
	}
	e.cache.Put(key, d)
}

// serve emits the events and journal entry for a decision about to be
// returned to the caller.
func (e *Engine) serve(d *Decision) {
	source := d.Source()
	e.log(LogLevelDebug, "decision served op=%s id=%s source=%s confidence=%.2f", d.Operation, d.ID, source, d.Confidence)

	event := events.Event{
		Type:       events.EventDecisionServed,
		Operation:  d.Operation,
		Source:     source,
		DecisionID: d.ID,
		Data: map[string]interface{}{
			"confidence": d.Confidence,
			"cache_hit":  d.CacheHit,
		},
	}

	if bus := e.busRef(); bus != nil {
		bus.Publish(event)
		if d.FallbackUsed && !d.CacheHit {
			bus.Publish(events.Event{
				Type:       events.EventFallbackUsed,
				Operation:  d.Operation,
				Source:     source,
				DecisionID: d.ID,
			})
		}
	}

	if j := e.journalRef(); j != nil {
		if err := j.Record(event); err != nil {
			e.log(LogLevelError, "journal write failed err=%v", err)
		}
	}
}

// Reconfigure applies new settings to a running engine. The cache is
// cleared and in-flight computations are barred from caching their
// results against the old settings.
func (e *Engine) Reconfigure(cfg Config) error {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	e.logLevel.Store(int32(parseLogLevel(cfg.Logging.Level)))
	e.epoch.Add(1)
	e.cache.Resize(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSec)*time.Second)
	e.cache.Clear()

	if bus := e.busRef(); bus != nil {
		bus.Publish(events.Event{
			Type: events.EventConfigReloaded,
			Data: map[string]interface{}{
				"primary_timeout_ms": cfg.Engine.PrimaryTimeoutMs,
				"cache_ttl_sec":      cfg.Cache.TTLSec,
				"cache_max_entries":  cfg.Cache.MaxEntries,
			},
		})
	}
	e.log(LogLevelInfo, "engine reconfigured timeout_ms=%d cache_ttl_sec=%d cache_max_entries=%d",
		cfg.Engine.PrimaryTimeoutMs, cfg.Cache.TTLSec, cfg.Cache.MaxEntries)
	return nil
}

// InvalidateCache drops all cached decisions.
func (e *Engine) InvalidateCache() {
	e.epoch.Add(1)
	e.cache.Clear()
	e.log(LogLevelInfo, "decision cache invalidated")
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// EngineStats aggregates runtime counters.
type EngineStats struct {
	Cache         CacheStats
	PrimaryCalls  uint64
	PrimaryErrors uint64
	FallbackUses  uint64
}

// Stats returns engine statistics.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Cache:         e.cache.Stats(),
		PrimaryCalls:  e.primaryCalls.Load(),
		PrimaryErrors: e.primaryErrors.Load(),
		FallbackUses:  e.fallbackUses.Load(),
	}
}

// newDecision allocates a decision envelope with a fresh ID.
func (e *Engine) newDecision(op string) *Decision {
	id, err := model.NewDecisionID()
	if err != nil {
		e.log(LogLevelWarn, "generate decision id err=%v", err)
	}
	return &Decision{
		ID:        id,
		Operation: op,
		CreatedAt: time.Now().UTC(),
	}
}

func (e *Engine) onCacheEvict(key, reason string) {
	e.log(LogLevelDebug, "cache evicted key=%s reason=%s", key, reason)
	if bus := e.busRef(); bus != nil {
		bus.Publish(events.Event{
			Type: events.EventCacheEvicted,
			Data: map[string]interface{}{"key": key, "reason": reason},
		})
	}
}

func (e *Engine) providerRef() Provider {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provider
}

func (e *Engine) busRef() *events.Bus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bus
}

func (e *Engine) journalRef() *events.Journal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.journal
}

func (e *Engine) primaryTimeout() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return time.Duration(e.cfg.Engine.PrimaryTimeoutMs) * time.Millisecond
}

func (e *Engine) primaryConfidence() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Engine.PrimaryConfidence
}

func (e *Engine) fallbackConfidence(op string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch op {
	case OpPredict:
		return e.cfg.Engine.FallbackConfidence.Predict
	case OpResolve:
		return e.cfg.Engine.FallbackConfidence.Conflict
	default:
		return e.cfg.Engine.FallbackConfidence.Prioritize
	}
}

func validateTasks(tasks []model.Task) error {
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return fmt.Errorf("%w: task %d: %v", ErrInvalidInput, i, err)
		}
	}
	return nil
}

func (e *Engine) log(level LogLevel, format string, args ...any) {
	if level < LogLevel(e.logLevel.Load()) {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	e.logger.Printf("%s %s engine: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
