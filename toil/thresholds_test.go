package toil_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/generic/store"
	"github.com/warp/toil-engine/toil"
)

type mockKV struct {
	mock.Mock
}

func (m *mockKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *mockKV) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *mockKV) Delete(ctx context.Context, key string) error {
	return m.Called(key).Error(0)
}

func TestThresholds_DefaultsWhenAbsent(t *testing.T) {
	svc := toil.NewThresholdService(store.NewKV(), quietLogger())

	assert.Equal(t, toil.Thresholds{FullTime: 8, PartTime: 6, Casual: 4}, svc.Get(context.Background()))
	assert.Equal(t, "6", svc.MinimumFor(context.Background(), toil.PartTime).String())
}

func TestThresholds_SetRoundTrips(t *testing.T) {
	ctx := context.Background()
	kv := store.NewKV()
	svc := toil.NewThresholdService(kv, quietLogger())

	require.NoError(t, svc.Set(ctx, toil.Thresholds{FullTime: 7.5, PartTime: 5, Casual: 3}))

	raw, ok, err := kv.Get(ctx, toil.ThresholdStorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"fullTime":7.5,"partTime":5,"casual":3}`, string(raw))

	// A fresh service reads what the first one wrote.
	fresh := toil.NewThresholdService(kv, quietLogger())
	assert.Equal(t, 7.5, fresh.Get(ctx).FullTime)

	require.NoError(t, fresh.ResetToDefault(ctx))
	assert.Equal(t, toil.DefaultThresholds(), fresh.Get(ctx))
}

func TestThresholds_ReadFailureFallsBackAndRetries(t *testing.T) {
	// GIVEN: The store fails the first read, then recovers
	// THEN: First Get returns defaults, second Get returns stored values,
	//       third Get is served from cache

	kv := new(mockKV)
	kv.On("Get", toil.ThresholdStorageKey).Return(nil, false, errors.New("connection refused")).Once()
	kv.On("Get", toil.ThresholdStorageKey).Return([]byte(`{"fullTime":9,"partTime":6,"casual":4}`), true, nil).Once()
	svc := toil.NewThresholdService(kv, quietLogger())
	ctx := context.Background()

	assert.Equal(t, toil.DefaultThresholds(), svc.Get(ctx))
	assert.Equal(t, 9.0, svc.Get(ctx).FullTime)
	assert.Equal(t, 9.0, svc.Get(ctx).FullTime)

	kv.AssertNumberOfCalls(t, "Get", 2)
}

func TestThresholds_CorruptPayloadFallsBack(t *testing.T) {
	kv := new(mockKV)
	kv.On("Get", toil.ThresholdStorageKey).Return([]byte(`not json`), true, nil)
	svc := toil.NewThresholdService(kv, quietLogger())

	assert.Equal(t, toil.DefaultThresholds(), svc.Get(context.Background()))
}

func TestThresholds_FailedWriteLeavesMemoryUnchanged(t *testing.T) {
	// GIVEN: Cached thresholds of 8/6/4
	// WHEN: Set fails in the store
	// THEN: Error returned, Get still reports 8/6/4

	kv := new(mockKV)
	kv.On("Get", toil.ThresholdStorageKey).Return(nil, false, nil).Once()
	kv.On("Set", toil.ThresholdStorageKey, mock.Anything).Return(errors.New("disk full")).Once()
	svc := toil.NewThresholdService(kv, quietLogger())
	ctx := context.Background()

	require.Equal(t, toil.DefaultThresholds(), svc.Get(ctx))

	err := svc.Set(ctx, toil.Thresholds{FullTime: 10, PartTime: 6, Casual: 4})
	require.Error(t, err)
	assert.Equal(t, toil.DefaultThresholds(), svc.Get(ctx))
	kv.AssertExpectations(t)
}

func TestThresholds_ValidationRejectsBadValues(t *testing.T) {
	svc := toil.NewThresholdService(store.NewKV(), quietLogger())
	ctx := context.Background()

	for _, bad := range []toil.Thresholds{
		{FullTime: -1, PartTime: 6, Casual: 4},
		{FullTime: 8, PartTime: math.NaN(), Casual: 4},
		{FullTime: 8, PartTime: 6, Casual: math.Inf(1)},
	} {
		err := svc.Set(ctx, bad)
		assert.ErrorIs(t, err, generic.ErrInvalidThresholds)
	}
	assert.Equal(t, toil.DefaultThresholds(), svc.Get(ctx))
}

func TestParseCategory(t *testing.T) {
	c, err := toil.ParseCategory("Part_Time")
	require.NoError(t, err)
	assert.Equal(t, toil.PartTime, c)

	_, err = toil.ParseCategory("contractor")
	assert.ErrorIs(t, err, generic.ErrInvalidCategory)
}
