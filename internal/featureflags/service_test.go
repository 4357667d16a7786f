package featureflags_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwise/heatwise/internal/featureflags"
)

func newService(store featureflags.Store, clock clockwork.Clock) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Store:    store,
		Logger:   zerolog.Nop(),
		CacheTTL: time.Minute,
		Clock:    clock,
	})
}

func TestService_GetFlag_Default(t *testing.T) {
	svc := newService(featureflags.NewMemoryStore(), nil)

	flag := svc.GetFlag(context.Background(), featureflags.FlagDisableGreenspace)
	require.NotNil(t, flag)
	assert.Equal(t, featureflags.FlagDisableGreenspace, flag.Key)
	assert.False(t, flag.BoolValue(true))

	assert.Nil(t, svc.GetFlag(context.Background(), "no_such_flag"))
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc := newService(featureflags.NewMemoryStore(), nil)

	flags, err := svc.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: featureflags.FlagDisableGreenspace, Value: true}},
		Reason:  "overpass outage",
	})
	require.NoError(t, err)
	require.Len(t, flags, 3)

	assert.True(t, svc.IsEnabled(ctx, featureflags.FlagDisableGreenspace))
	assert.False(t, svc.IsEnabled(ctx, featureflags.FlagCachedOnlyWeather))
}

func TestService_Update_UnknownFlag(t *testing.T) {
	svc := newService(featureflags.NewMemoryStore(), nil)

	_, err := svc.Update(context.Background(), featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: "routing_bike_only", Value: true}},
	})
	assert.ErrorIs(t, err, featureflags.ErrUnknownFlag)
}

func TestService_ListFlags_Sorted(t *testing.T) {
	svc := newService(featureflags.NewMemoryStore(), nil)

	flags := svc.ListFlags(context.Background())
	require.Len(t, flags, 3)
	assert.Equal(t, featureflags.FlagCachedOnlyWeather, flags[0].Key)
	assert.Equal(t, featureflags.FlagDisableGreenspace, flags[1].Key)
	assert.Equal(t, featureflags.FlagDisableLookups, flags[2].Key)
}

func TestService_CacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := featureflags.NewMemoryStore()
	svc := newService(store, clock)

	require.NoError(t, store.Set(ctx, []*featureflags.Flag{{Key: featureflags.FlagDisableLookups, Value: true}}, "drill"))
	assert.True(t, svc.IsEnabled(ctx, featureflags.FlagDisableLookups))

	// A change behind the service's back is invisible until the cache expires.
	require.NoError(t, store.Set(ctx, []*featureflags.Flag{{Key: featureflags.FlagDisableLookups, Value: false}}, "drill over"))
	assert.True(t, svc.IsEnabled(ctx, featureflags.FlagDisableLookups))

	clock.Advance(2 * time.Minute)
	assert.False(t, svc.IsEnabled(ctx, featureflags.FlagDisableLookups))
}

func TestService_InvalidateCache(t *testing.T) {
	ctx := context.Background()
	store := featureflags.NewMemoryStore()
	svc := newService(store, nil)

	require.NoError(t, store.Set(ctx, []*featureflags.Flag{{Key: featureflags.FlagCachedOnlyWeather, Value: true}}, ""))
	assert.True(t, svc.IsEnabled(ctx, featureflags.FlagCachedOnlyWeather))

	require.NoError(t, store.Set(ctx, []*featureflags.Flag{{Key: featureflags.FlagCachedOnlyWeather, Value: false}}, ""))
	assert.True(t, svc.IsEnabled(ctx, featureflags.FlagCachedOnlyWeather))

	svc.InvalidateCache()
	assert.False(t, svc.IsEnabled(ctx, featureflags.FlagCachedOnlyWeather))
}

type failingStore struct{}

var errStorageDown = errors.New("storage down")

func (failingStore) Get(context.Context, string) (*featureflags.Flag, error) {
	return nil, errStorageDown
}

func (failingStore) All(context.Context) (map[string]*featureflags.Flag, error) {
	return nil, errStorageDown
}

func (failingStore) Set(context.Context, []*featureflags.Flag, string) error {
	return errStorageDown
}

func TestService_StoreErrorFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newService(failingStore{}, nil)

	assert.False(t, svc.IsEnabled(ctx, featureflags.FlagDisableGreenspace))
	assert.Len(t, svc.ListFlags(ctx), 3)
	assert.Nil(t, svc.History())

	_, err := svc.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: featureflags.FlagDisableGreenspace, Value: true}},
	})
	assert.ErrorIs(t, err, errStorageDown)
}

func TestService_History(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC))
	svc := newService(featureflags.NewMemoryStore(), clock)

	_, err := svc.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: featureflags.FlagDisableGreenspace, Value: true}},
		Reason:  "overpass outage",
	})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = svc.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: featureflags.FlagDisableGreenspace, Value: false}},
		Reason:  "recovered",
	})
	require.NoError(t, err)

	history := svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, "recovered", history[0].Reason)
	assert.Equal(t, false, history[0].Value)
	assert.Equal(t, "overpass outage", history[1].Reason)
	assert.True(t, history[0].At.After(history[1].At))
}

func TestService_NilIsDisabled(t *testing.T) {
	var svc *featureflags.Service
	assert.False(t, svc.IsEnabled(context.Background(), featureflags.FlagDisableLookups))
}

func TestService_Update_NonBooleanRejected(t *testing.T) {
	ctx := context.Background()
	store := featureflags.NewMemoryStore()
	svc := newService(store, nil)

	_, err := svc.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{
			{Key: featureflags.FlagDisableLookups, Value: true},
			{Key: featureflags.FlagDisableGreenspace, Value: "yes"},
		},
	})
	assert.ErrorIs(t, err, featureflags.ErrInvalidFlagValue)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "a rejected batch stores nothing")
}

func TestFlag_BoolValue(t *testing.T) {
	var nilFlag *featureflags.Flag
	assert.True(t, nilFlag.BoolValue(true))

	assert.True(t, (&featureflags.Flag{Value: true}).BoolValue(false))
	assert.False(t, (&featureflags.Flag{Value: false}).BoolValue(true))
	assert.True(t, (&featureflags.Flag{Value: 1.0}).BoolValue(true))
	assert.False(t, (&featureflags.Flag{Value: "yes"}).BoolValue(false))
}

func TestDefaultFlags_Fresh(t *testing.T) {
	a := featureflags.DefaultFlags()
	a[featureflags.FlagDisableLookups].Value = true

	b := featureflags.DefaultFlags()
	assert.False(t, b[featureflags.FlagDisableLookups].BoolValue(true))
	assert.Len(t, b, 3)
}
