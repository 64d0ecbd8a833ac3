package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCacheManager[K comparable, V any] struct {
	mock.Mock
}

func (m *mockCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	args := m.Called(ctx, key)
	return args.Get(0).(V), args.Bool(1)
}

func (m *mockCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	args := m.Called(ctx, key, ttl)
	return args.Get(0).(V), args.Bool(1)
}

func (m *mockCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *mockCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockCacheManager[K, V]) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func lengthLoader(_ context.Context, input string) (int, error) {
	if input == "" {
		return 0, errors.New("empty input")
	}
	return len(input), nil
}

func TestReadThroughCache_SkipCacheBypassesManager(t *testing.T) {
	m := &mockCacheManager[string, int]{}
	rt := NewReadThroughCache[string, int, string](m, lengthLoader, true)

	got, err := rt.Get(context.Background(), "key", "abcd", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 4, got)

	got, err = rt.GetWithRefresh(context.Background(), "key", "ab", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, got)

	m.AssertExpectations(t)
	m.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestReadThroughCache_Get_Hit(t *testing.T) {
	m := &mockCacheManager[string, int]{}
	m.On("Get", mock.Anything, "key").Return(42, true)

	rt := NewReadThroughCache[string, int, string](m, lengthLoader, false)

	got, err := rt.Get(context.Background(), "key", "abcd", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 42, got)
	m.AssertExpectations(t)
}

func TestReadThroughCache_Get_MissStores(t *testing.T) {
	m := &mockCacheManager[string, int]{}
	m.On("Get", mock.Anything, "key").Return(0, false)
	m.On("Set", mock.Anything, "key", 4, time.Minute).Return()

	rt := NewReadThroughCache[string, int, string](m, lengthLoader, false)

	got, err := rt.Get(context.Background(), "key", "abcd", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 4, got)
	m.AssertExpectations(t)
}

func TestReadThroughCache_Get_LoaderErrorNotStored(t *testing.T) {
	m := &mockCacheManager[string, int]{}
	m.On("Get", mock.Anything, "key").Return(0, false)

	rt := NewReadThroughCache[string, int, string](m, lengthLoader, false)

	_, err := rt.Get(context.Background(), "key", "", time.Minute)
	require.Error(t, err)
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadThroughCache_GetWithRefresh_Hit(t *testing.T) {
	m := &mockCacheManager[string, int]{}
	m.On("GetWithRefresh", mock.Anything, "key", time.Minute).Return(7, true)

	rt := NewReadThroughCache[string, int, string](m, lengthLoader, false)

	got, err := rt.GetWithRefresh(context.Background(), "key", "abcd", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 7, got)
	m.AssertExpectations(t)
}

func TestReadThroughCache_WithInMemoryManager(t *testing.T) {
	calls := 0
	loader := func(ctx context.Context, input string) (int, error) {
		calls++
		return lengthLoader(ctx, input)
	}
	cache := NewInMemoryCacheManager[string, int]("lengths", DefaultExpiration, DefaultCleanupInterval)
	rt := NewReadThroughCache[string, int, string](cache, loader, false)

	for range 3 {
		got, err := rt.Get(context.Background(), "abc", "abc", NoExpiration)
		require.NoError(t, err)
		require.Equal(t, 3, got)
	}
	require.Equal(t, 1, calls)
}
