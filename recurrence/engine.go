package recurrence

import (
	"io"
	"log/slog"
	"time"

	"github.com/samber/mo"
)

// Engine bundles a Generator and a Formatter for one zone, adds an optional
// cache in front of Take, and enforces a ceiling on materialized sequences.
type Engine struct {
	generator *Generator
	formatter *Formatter
	cache     *RecurrenceCache
	config    EngineConfig
	logger    *slog.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the logger used for cache and validation diagnostics
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a recurrence engine with the default configuration
func NewEngine(opts ...EngineOption) *Engine {
	engine, err := NewEngineWithConfig(DefaultEngineConfig, opts...)
	if err != nil {
		// DefaultEngineConfig names the embedded default zone.
		panic(err)
	}
	return engine
}

// NewEngineWithConfig creates a recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig, opts ...EngineOption) (*Engine, error) {
	zone, err := LoadZone(config.Zone)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		generator: NewGenerator(zone),
		formatter: NewFormatter(zone),
		config:    config,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(engine)
	}

	if config.CacheEnabled {
		engine.cache = NewRecurrenceCache(config.CacheConfig)
	}
	return engine, nil
}

// NewEngineWithoutCache creates an engine that always computes occurrences
func NewEngineWithoutCache(opts ...EngineOption) *Engine {
	engine, err := NewEngineWithConfig(DisabledCacheConfig, opts...)
	if err != nil {
		panic(err)
	}
	return engine
}

// Zone returns the civil timezone of the engine
func (e *Engine) Zone() *time.Location {
	return e.generator.Zone()
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Validate normalizes a rule, logging what the normalization changed.
func (e *Engine) Validate(r Rule) (Rule, error) {
	normalized, err := Validate(r)
	if err != nil {
		e.logger.Debug("rejected recurrence rule", "rule", r.String(), "error", err)
		return Rule{}, err
	}
	if !normalized.Equal(r) {
		e.logger.Debug("normalized recurrence rule", "from", r.String(), "to", normalized.String())
	}
	return normalized, nil
}

// Next returns the first occurrence strictly after the given instant.
func (e *Engine) Next(r Rule, anchor, after time.Time) (mo.Option[time.Time], error) {
	return e.generator.Next(r, anchor, after)
}

// Take returns at most maxCount occurrences strictly after the given instant,
// never more than the configured MaxTakeCount.
func (e *Engine) Take(r Rule, anchor, after time.Time, maxCount int) ([]time.Time, error) {
	if e.config.MaxTakeCount > 0 && maxCount > e.config.MaxTakeCount {
		e.logger.Debug("capping occurrence request", "requested", maxCount, "limit", e.config.MaxTakeCount)
		maxCount = e.config.MaxTakeCount
	}
	if maxCount <= 0 {
		return nil, nil
	}

	var key string
	if e.cache != nil {
		key = cacheKey("take", r, e.Zone(), anchor, after, maxCount)
		if cached, ok := e.cache.Get(key).Get(); ok {
			e.logger.Debug("occurrence cache hit", "rule", r.String())
			return cached, nil
		}
	}

	result, err := e.generator.Take(r, anchor, after, maxCount)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(key, result)
	}
	return result, nil
}

// Between returns the occurrences in the closed window [start, end], capped
// like Take.
func (e *Engine) Between(r Rule, anchor, start, end time.Time) ([]time.Time, error) {
	seq, err := e.generator.Occurrences(r, anchor, start.Add(-time.Nanosecond))
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for _, t := range seq {
		if t.After(end) {
			break
		}
		out = append(out, t)
		if e.config.MaxTakeCount > 0 && len(out) == e.config.MaxTakeCount {
			break
		}
	}
	return out, nil
}

// HasOccurrenceInRange reports whether any occurrence falls in [start, end]
// without materializing the window.
func (e *Engine) HasOccurrenceInRange(r Rule, anchor, start, end time.Time) (bool, error) {
	next, err := e.generator.Next(r, anchor, start.Add(-time.Nanosecond))
	if err != nil {
		return false, err
	}
	t, ok := next.Get()
	return ok && !t.After(end), nil
}

// Describe renders the rule in the given locale
func (e *Engine) Describe(r Rule, locale string) string {
	return e.formatter.Describe(r, locale)
}

// RRule renders the rule as an RRULE value anchored in the engine's zone
func (e *Engine) RRule(r Rule, anchor time.Time) (string, error) {
	return RRuleString(r, anchor, e.Zone())
}

// Close releases cache resources
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats returns cache statistics, or None when caching is disabled
func (e *Engine) CacheStats() mo.Option[CacheStats] {
	if e.cache == nil {
		return mo.None[CacheStats]()
	}
	return mo.Some(e.cache.Stats())
}
