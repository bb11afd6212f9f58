package manager

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/types"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/storage"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	cache   *Manager
	durable *storage.Memory
	clock   *scheduling.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := scheduling.NewManual(epoch)
	durable := storage.NewMemory(0)
	return &fixture{
		cache:   NewManager(durable, clock, logging.NewNopLogger(), 0),
		durable: durable,
		clock:   clock,
	}
}

type profile struct {
	Name  string         `json:"name"`
	Views map[string]int `json:"views"`
}

func TestSetThenGetReturnsValue(t *testing.T) {
	f := newFixture(t)

	for i, ttl := range []int{1, 5, 60, 24 * 60} {
		key := fmt.Sprintf("k%d", i)
		want := profile{Name: key, Views: map[string]int{"/a": i}}
		require.NoError(t, f.cache.Set(key, want, WithExpiryMinutes(ttl)))

		got, ok := Lookup[profile](f.cache, key)
		require.True(t, ok, key)
		assert.Equal(t, want, got)
	}
}

func TestExpiredEntryIsPurgedFromBothTiers(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.cache.Set("session", "abc", WithExpiryMinutes(5)))
	assert.Equal(t, types.Stats{MemoryItems: 1, DurableItems: 1}, f.cache.Stats())

	f.clock.Advance(5*time.Minute + time.Millisecond)

	_, ok := Lookup[string](f.cache, "session")
	assert.False(t, ok)
	assert.Equal(t, types.Stats{}, f.cache.Stats())
}

func TestDefaultExpiryIsSixtyMinutes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("k", 1))

	f.clock.Advance(59 * time.Minute)
	_, ok := Lookup[int](f.cache, "k")
	assert.True(t, ok)

	// valid only while now < expiresAt
	f.clock.Advance(time.Minute)
	_, ok = Lookup[int](f.cache, "k")
	assert.False(t, ok)
}

func TestWithoutExpiryNeverExpires(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("profile", profile{Name: "p"}, WithoutExpiry()))

	f.clock.Advance(10 * 365 * 24 * time.Hour)
	assert.Zero(t, f.cache.Cleanup())

	got, ok := Lookup[profile](f.cache, "profile")
	require.True(t, ok)
	assert.Equal(t, "p", got.Name)

	record, ok, err := f.durable.Read("cache_profile")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, record, `"expiresAt":null`)
}

func TestDurableHitIsWrittenBack(t *testing.T) {
	f := newFixture(t)

	entry := types.NewEntry(json.RawMessage(`{"name":"seeded"}`), epoch, time.Hour)
	record, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, f.durable.Write("cache_profile", string(record)))
	assert.Equal(t, 0, f.cache.Stats().MemoryItems)

	got, ok := Lookup[profile](f.cache, "profile")
	require.True(t, ok)
	assert.Equal(t, "seeded", got.Name)
	assert.Equal(t, 1, f.cache.Stats().MemoryItems)

	// with the durable tier gone the memory copy still serves the read
	f.durable.SetDisabled(true)
	got, ok = Lookup[profile](f.cache, "profile")
	require.True(t, ok)
	assert.Equal(t, "seeded", got.Name)
}

func TestWriteBackKeepsDurableExpiry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("k", "v", DurableOnly(), WithExpiryMinutes(10)))

	_, ok := Lookup[string](f.cache, "k")
	require.True(t, ok)

	f.clock.Advance(10 * time.Minute)
	_, ok = Lookup[string](f.cache, "k")
	assert.False(t, ok)
}

func TestStaleMemoryFallsBackToDurable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("k", "durable", DurableOnly(), WithExpiryMinutes(30)))
	require.NoError(t, f.cache.Set("k", "memory", MemoryOnly(), WithExpiryMinutes(1)))

	got, _ := Lookup[string](f.cache, "k")
	assert.Equal(t, "memory", got)

	f.clock.Advance(2 * time.Minute)
	got, ok := Lookup[string](f.cache, "k")
	require.True(t, ok)
	assert.Equal(t, "durable", got)
}

func TestMalformedDurableRecordIsDeleted(t *testing.T) {
	f := newFixture(t)

	for _, record := range []string{"not json", `{"createdAt":1}`, `[]`} {
		require.NoError(t, f.durable.Write("cache_bad", record))

		_, ok := Lookup[string](f.cache, "bad")
		assert.False(t, ok, record)

		_, exists, err := f.durable.Read("cache_bad")
		require.NoError(t, err)
		assert.False(t, exists, record)
	}
}

func TestValueOfWrongShapeIsRemoved(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("k", "a string"))

	_, ok := Lookup[profile](f.cache, "k")
	assert.False(t, ok)
	assert.Equal(t, types.Stats{}, f.cache.Stats())
}

func TestDurableWriteFailureDegradesToMemory(t *testing.T) {
	t.Run("quota exceeded", func(t *testing.T) {
		clock := scheduling.NewManual(epoch)
		durable := storage.NewMemory(16)
		cache := NewManager(durable, clock, logging.NewNopLogger(), 0)

		require.NoError(t, cache.Set("big", profile{Name: "far too large for the quota"}))

		got, ok := Lookup[profile](cache, "big")
		require.True(t, ok)
		assert.Equal(t, "far too large for the quota", got.Name)
		assert.Equal(t, 0, durable.Len())
	})

	t.Run("storage disabled", func(t *testing.T) {
		f := newFixture(t)
		f.durable.SetDisabled(true)

		require.NoError(t, f.cache.Set("k", 42))
		got, ok := Lookup[int](f.cache, "k")
		require.True(t, ok)
		assert.Equal(t, 42, got)

		f.cache.Remove("k")
		f.cache.Clear()
		assert.Equal(t, types.Stats{}, f.cache.Stats())
	})
}

func TestUnencodableValueIsReported(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.cache.Set("k", make(chan int)))
	assert.Equal(t, types.Stats{}, f.cache.Stats())
}

func TestRemoveDeletesBothTiers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("k", "v"))

	f.cache.Remove("k")
	_, ok := Lookup[string](f.cache, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, f.durable.Len())
}

func TestClearOnlyTouchesCacheNamespace(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("a", 1))
	require.NoError(t, f.cache.Set("b", 2, DurableOnly()))
	require.NoError(t, f.durable.Write("unrelated", "keep me"))

	f.cache.Clear()

	assert.Equal(t, types.Stats{}, f.cache.Stats())
	value, ok, err := f.durable.Read("unrelated")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "keep me", value)
}

func TestCleanupSweepsInvalidEntries(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("short", 1, WithExpiryMinutes(1)))
	require.NoError(t, f.cache.Set("durable-short", 2, DurableOnly(), WithExpiryMinutes(1)))
	require.NoError(t, f.cache.Set("long", 3, WithExpiryMinutes(60)))
	require.NoError(t, f.durable.Write("cache_garbage", "{"))
	require.NoError(t, f.durable.Write("unrelated", "{"))

	f.clock.Advance(2 * time.Minute)

	// short: memory + durable, durable-short: durable, garbage: durable
	assert.Equal(t, 4, f.cache.Cleanup())
	assert.Equal(t, types.Stats{MemoryItems: 1, DurableItems: 1}, f.cache.Stats())
	assert.Equal(t, 2, f.durable.Len())
}

func TestConcurrentReadsAndCleanupNeverServeStale(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, f.cache.Set(fmt.Sprintf("k%d", i), i, WithExpiryMinutes(1)))
	}
	f.clock.Advance(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, ok := Lookup[int](f.cache, fmt.Sprintf("k%d", i))
			assert.False(t, ok)
		}(i)
		go func() {
			defer wg.Done()
			f.cache.Cleanup()
		}()
	}
	wg.Wait()

	assert.Equal(t, types.Stats{}, f.cache.Stats())
}

// gatedPort holds every Read until release is closed.
type gatedPort struct {
	*storage.Memory
	entered chan struct{}
	release chan struct{}
}

func (p *gatedPort) Read(key string) (string, bool, error) {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-p.release
	return p.Memory.Read(key)
}

func TestReaderJoiningInFlightLoadRevalidates(t *testing.T) {
	clock := scheduling.NewManual(epoch)
	port := &gatedPort{
		Memory:  storage.NewMemory(0),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cache := NewManager(port, clock, logging.NewNopLogger(), 0)
	require.NoError(t, cache.Set("k", "v", DurableOnly(), WithExpiryMinutes(1)))

	results := make(chan bool, 2)
	go func() {
		_, ok := Lookup[string](cache, "k")
		results <- ok
	}()
	<-port.entered

	// the first reader validated the entry before the clock moved past expiry
	clock.Set(epoch.Add(2 * time.Minute))
	go func() {
		_, ok := Lookup[string](cache, "k")
		results <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	close(port.release)

	assert.False(t, <-results)
	assert.False(t, <-results)
	assert.Equal(t, 0, cache.Stats().MemoryItems)
}
