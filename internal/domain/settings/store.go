package settings

import (
	"context"
	"sort"
	"sync"

	"pose-stream-server-go/internal/domain/eventbus"
	"pose-stream-server-go/internal/domain/registry"
	platformerrors "pose-stream-server-go/internal/platform/errors"
	"pose-stream-server-go/internal/platform/observability"
	"pose-stream-server-go/internal/utils"
)

const logTag = "Settings"

// Options wires a Store. Registry is required.
type Options struct {
	Registry  Registry
	Rebuilder Rebuilder
	Persister Persister
	Publisher eventbus.Publisher
	Logger    *utils.Logger
	Metrics   *observability.Metrics
}

// Store holds the single live Settings value. Update and Reset are serialized
// so a rebuild and the mutation that triggered it are never interleaved with
// another mutation.
type Store struct {
	reg       Registry
	persister Persister
	publisher eventbus.Publisher
	logger    *utils.Logger
	metrics   *observability.Metrics

	mutate sync.Mutex

	mu        sync.RWMutex
	current   Settings
	rebuilder Rebuilder
}

// New builds the store from a persisted snapshot when one loads, otherwise
// from the registry's optimal recommendation. Snapshot fields are validated
// with the same rules as Update.
func New(ctx context.Context, opts Options) *Store {
	s := &Store{
		reg:       opts.Registry,
		persister: opts.Persister,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		rebuilder: opts.Rebuilder,
	}
	if s.publisher == nil {
		s.publisher = eventbus.Nop{}
	}

	s.current = Optimal(s.reg)
	if s.persister != nil {
		snap, ok, err := s.persister.Load(ctx)
		switch {
		case err != nil:
			s.logger.WarnTag(logTag, "load persisted settings failed, using defaults: %v", err)
		case ok:
			next := s.current
			s.merge(toPartial(snap), &next)
			s.current = next
			s.logger.InfoTag(logTag, "restored persisted settings: model=%s device=%s", next.Model, next.Device)
		}
	}
	return s
}

// SetRebuilder attaches the engine owner after construction.
func (s *Store) SetRebuilder(r Rebuilder) {
	s.mu.Lock()
	s.rebuilder = r
	s.mu.Unlock()
}

// Current returns a copy of the live settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// EffectiveHalf is half precision as the engine will run it.
func (s *Store) EffectiveHalf(st Settings) bool {
	return st.HalfPrecision && s.deviceSupportsHalf(st.Device)
}

// EngineSpec describes the engine the current settings call for.
func (s *Store) EngineSpec() EngineSpec {
	return s.specFor(s.Current())
}

func (s *Store) specFor(st Settings) EngineSpec {
	return EngineSpec{
		Model:               st.Model,
		Device:              st.Device,
		Half:                s.EffectiveHalf(st),
		UseAlternateBackend: st.UseAlternateBackend,
	}
}

func (s *Store) deviceSupportsHalf(id string) bool {
	d, ok := s.reg.Device(id)
	return ok && d.HalfPrecision
}

// Update validates and merges partial. Invalid fields fall back per field;
// unknown keys are ignored. The returned error is non-nil only when a
// required engine rebuild failed; the new settings stay applied in that case.
func (s *Store) Update(ctx context.Context, partial map[string]interface{}) (Applied, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	prev := s.Current()
	next := prev

	for _, key := range unknownKeys(partial) {
		s.logger.WarnTag(logTag, "ignoring unknown setting %q", key)
	}
	s.merge(partial, &next)

	return s.commit(ctx, "update", eventbus.EventSettingsUpdated, prev, next)
}

// Reset applies the registry's current optimal settings.
func (s *Store) Reset(ctx context.Context) (Applied, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	prev := s.Current()
	s.reg.Refresh()
	return s.commit(ctx, "reset", eventbus.EventSettingsReset, prev, Optimal(s.reg))
}

// Refresh rescans the registry and publishes what changed.
func (s *Store) Refresh() registry.RefreshReport {
	report := s.reg.Refresh()
	s.metrics.ObserveSettingsChange("refresh")
	s.publisher.PublishAsync(eventbus.EventRegistryRefreshed, eventbus.RegistryEventData{Report: report})
	return report
}

func (s *Store) merge(partial map[string]interface{}, next *Settings) {
	for _, rule := range fieldRules {
		raw, present := partial[rule.name]
		if !present {
			continue
		}
		if valid, reason := rule.apply(s, raw, next); !valid {
			s.logger.WarnTag(logTag, "invalid %s (%s), using fallback: %v", rule.name, reason, ErrInvalidValue)
		}
	}
}

func (s *Store) commit(ctx context.Context, op, topic string, prev, next Settings) (Applied, error) {
	needsRebuild := prev.Model != next.Model ||
		prev.Device != next.Device ||
		s.EffectiveHalf(prev) != s.EffectiveHalf(next)

	if op == "update" {
		s.reg.Refresh()
	}

	s.mu.Lock()
	s.current = next
	rebuilder := s.rebuilder
	s.mu.Unlock()

	applied := Applied{Settings: next, NeedsRebuild: needsRebuild}
	s.metrics.ObserveSettingsChange(op)

	if needsRebuild && rebuilder != nil {
		s.logger.InfoTag(logTag, "rebuilding engine: model=%s device=%s", next.Model, next.Device)
		if err := rebuilder.Rebuild(ctx, s.specFor(next)); err != nil {
			return applied, platformerrors.Wrap(platformerrors.KindEngine, "settings."+op, "engine rebuild failed", err)
		}
	}

	if s.persister != nil {
		if err := s.persister.Save(ctx, next); err != nil {
			s.logger.WarnTag(logTag, "persist settings failed: %v", err)
		}
	}

	s.logger.InfoTag(logTag, "settings %s applied: %+v (rebuild=%v)", op, next, needsRebuild)
	s.publisher.PublishAsync(topic, eventbus.SettingsEventData{Op: op, Settings: next, NeedsRebuild: needsRebuild})
	return applied, nil
}

func unknownKeys(partial map[string]interface{}) []string {
	var out []string
	for k := range partial {
		if !knownField(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func toPartial(st Settings) map[string]interface{} {
	return map[string]interface{}{
		"model":         st.Model,
		"device":        st.Device,
		"confidence":    st.Confidence,
		"iou_threshold": st.IOUThreshold,
		"max_det":       st.MaxDetections,
		"verbose":       st.Verbose,
		"agnostic_nms":  st.ClassAgnosticNMS,
		"half":          st.HalfPrecision,
		"dnn":           st.UseAlternateBackend,
	}
}
