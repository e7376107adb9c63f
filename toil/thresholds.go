package toil

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/metrics"
)

// ThresholdStorageKey is where thresholds live in the KV store.
const ThresholdStorageKey = "toil_thresholds"

// Thresholds are the minimum hours worked, per category, before TOIL accrues.
type Thresholds struct {
	FullTime float64 `json:"fullTime"`
	PartTime float64 `json:"partTime"`
	Casual   float64 `json:"casual"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{FullTime: 8, PartTime: 6, Casual: 4}
}

func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{"fullTime": t.FullTime, "partTime": t.PartTime, "casual": t.Casual} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s = %v", generic.ErrInvalidThresholds, name, v)
		}
	}
	return nil
}

// For returns the minimum for category. Unknown categories use the full-time value.
func (t Thresholds) For(category EmploymentCategory) float64 {
	switch category {
	case PartTime:
		return t.PartTime
	case Casual:
		return t.Casual
	default:
		return t.FullTime
	}
}

// =============================================================================
// THRESHOLD SERVICE
// =============================================================================

// ThresholdService caches thresholds loaded from a KVStore.
// Reads never fail: a broken store yields defaults until it recovers.
type ThresholdService struct {
	kv  generic.KVStore
	log zerolog.Logger

	mu     sync.Mutex
	cached *Thresholds
}

func NewThresholdService(kv generic.KVStore, log zerolog.Logger) *ThresholdService {
	return &ThresholdService{kv: kv, log: log}
}

// Get returns the current thresholds. Nothing is cached after a failed read,
// so the next Get tries the store again.
func (s *ThresholdService) Get(ctx context.Context) Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached
	}

	t, err := s.load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("key", ThresholdStorageKey).Msg("TOIL thresholds unavailable, using defaults")
		metrics.IncThresholdFallback()
		return DefaultThresholds()
	}
	s.cached = &t
	return t
}

func (s *ThresholdService) load(ctx context.Context) (Thresholds, error) {
	raw, ok, err := s.kv.Get(ctx, ThresholdStorageKey)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds: %w", err)
	}
	if !ok {
		return DefaultThresholds(), nil
	}
	var t Thresholds
	if err := json.Unmarshal(raw, &t); err != nil {
		return Thresholds{}, fmt.Errorf("decode thresholds: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

// Set validates and persists t. The cached value changes only after the
// write succeeds.
func (s *ThresholdService) Set(ctx context.Context, t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode thresholds: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, ThresholdStorageKey, raw); err != nil {
		metrics.IncThresholdWriteFailure()
		s.log.Error().Err(err).Msg("failed to persist TOIL thresholds")
		return fmt.Errorf("write thresholds: %w", err)
	}
	s.cached = &t
	return nil
}

// ResetToDefault persists the defaults.
func (s *ThresholdService) ResetToDefault(ctx context.Context) error {
	return s.Set(ctx, DefaultThresholds())
}

// MinimumFor returns the category's threshold in hours.
func (s *ThresholdService) MinimumFor(ctx context.Context, category EmploymentCategory) decimal.Decimal {
	return decimal.NewFromFloat(s.Get(ctx).For(category))
}
