package services

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/domain/behavior"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/cookies"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/storage"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *scheduling.Manual
	durable *storage.Memory
	jar     *cookies.MemoryJar
	cookies *cookies.Store
	cache   *manager.Manager
	tracker *BehaviorTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := scheduling.NewManual(epoch)
	durable := storage.NewMemory(0)
	jar := cookies.NewMemoryJar(clock)
	return buildFixture(clock, durable, jar)
}

// buildFixture wires a fresh cache and tracker over existing storage, as a
// process restart would.
func buildFixture(clock *scheduling.Manual, durable *storage.Memory, jar *cookies.MemoryJar) *fixture {
	logger := logging.NewNopLogger()
	cache := manager.NewManager(durable, clock, logger, 0)
	store := cookies.NewStore(jar, clock, logger, cookies.WithPath("/"))
	return &fixture{
		clock:   clock,
		durable: durable,
		jar:     jar,
		cookies: store,
		cache:   cache,
		tracker: NewBehaviorTracker(cache, store, clock, DefaultTrackerConfig(), logger),
	}
}

func TestInitCreatesProfileAndSession(t *testing.T) {
	f := newFixture(t)
	_, ok := f.tracker.Profile()
	require.False(t, ok)

	f.tracker.Init()

	profile, ok := f.tracker.Profile()
	require.True(t, ok)
	assert.Equal(t, epoch.UnixMilli(), profile.SessionStartAt)
	assert.Empty(t, profile.PageViews)

	id, ok := f.tracker.SessionID()
	require.True(t, ok)
	cookie, ok := f.cookies.Get(SessionCookie)
	require.True(t, ok)
	assert.Equal(t, id, cookie)

	assert.NotNil(t, f.tracker.Observer())
	assert.Equal(t, 1, f.clock.Pending())
}

func TestInitTwicePreservesCounters(t *testing.T) {
	f := newFixture(t)
	f.tracker.Init()
	f.tracker.TrackPageView("/courses")
	f.tracker.TrackSearch("golang")
	f.tracker.TrackCourseInteraction("c1", "enroll")
	f.tracker.SavePreference("theme", "dark")
	before, _ := f.tracker.Profile()
	firstID, _ := f.tracker.SessionID()

	f.clock.Set(epoch.Add(2 * time.Hour))
	f.tracker.Init()

	after, ok := f.tracker.Profile()
	require.True(t, ok)
	assert.Equal(t, before.PageViews, after.PageViews)
	assert.Equal(t, before.SearchQueries, after.SearchQueries)
	assert.Equal(t, before.CourseInteractions, after.CourseInteractions)
	assert.Equal(t, before.Preferences, after.Preferences)
	assert.Equal(t, before.LastVisitAt, after.LastVisitAt)
	assert.Equal(t, epoch.Add(2*time.Hour).UnixMilli(), after.SessionStartAt)

	secondID, _ := f.tracker.SessionID()
	assert.Equal(t, firstID, secondID)
	assert.Equal(t, 1, f.clock.Pending(), "observer installed once")
}

func TestProfileSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	f.tracker.Init()
	f.tracker.TrackPageView("/a")
	f.tracker.TrackPageView("/a")
	id, _ := f.tracker.SessionID()
	f.tracker.Dispose()

	restarted := buildFixture(f.clock, f.durable, f.jar)
	restarted.tracker.Init()

	profile, ok := restarted.tracker.Profile()
	require.True(t, ok)
	assert.Equal(t, 2, profile.PageViews["/a"])

	restartedID, _ := restarted.tracker.SessionID()
	assert.Equal(t, id, restartedID)
}

func TestTrackPageView(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(epoch.Add(time.Minute))

	f.tracker.TrackPageView("/courses")
	f.tracker.TrackPageView("/courses")
	f.tracker.TrackPageView("/about")

	profile, ok := f.tracker.Profile()
	require.True(t, ok)
	assert.Equal(t, map[string]int{"/courses": 2, "/about": 1}, profile.PageViews)
	assert.Equal(t, epoch.Add(time.Minute).UnixMilli(), profile.LastVisitAt)

	lastVisit, ok := f.cookies.Get(LastVisitCookie)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(epoch.Add(time.Minute).UnixMilli(), 10), lastVisit)

	events := f.tracker.Events()
	require.Len(t, events, 3)
	assert.Equal(t, behavior.EventPageView, events[0].Type)
	assert.Equal(t, "/about", events[2].Payload["path"])
}

func TestTrackSearchKeepsLastFifty(t *testing.T) {
	f := newFixture(t)
	f.tracker.Init()

	for i := 0; i < 60; i++ {
		f.tracker.TrackSearch(fmt.Sprintf("q%02d", i))
	}

	profile, _ := f.tracker.Profile()
	require.Len(t, profile.SearchQueries, 50)
	for i, q := range profile.SearchQueries {
		assert.Equal(t, fmt.Sprintf("q%02d", i+10), q)
	}
}

func TestTrackSearchIgnoresBlank(t *testing.T) {
	f := newFixture(t)
	f.tracker.Init()

	f.tracker.TrackSearch("   ")
	f.tracker.TrackSearch("")

	profile, _ := f.tracker.Profile()
	assert.Empty(t, profile.SearchQueries)
	assert.Empty(t, f.tracker.Events())
}

func TestTrackCourseInteractionDefaultAction(t *testing.T) {
	f := newFixture(t)
	f.tracker.TrackCourseInteraction("course-7", "")
	f.tracker.TrackCourseInteraction("course-7", "view")

	profile, _ := f.tracker.Profile()
	assert.Equal(t, 2, profile.CourseInteractions["course-7_view"])

	events := f.tracker.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "view", events[0].Payload["action"])
}

func TestTrackTimeSpentIgnoresNonPositive(t *testing.T) {
	f := newFixture(t)
	f.tracker.Init()

	f.tracker.TrackTimeSpent("/a", 0)
	f.tracker.TrackTimeSpent("/a", -3)
	f.tracker.TrackTimeSpent("/a", 12)

	profile, _ := f.tracker.Profile()
	assert.Equal(t, map[string]int64{"/a": 12}, profile.TimeSpent)
	assert.Len(t, f.tracker.Events(), 1)
}

func TestPreferencesLastWriteWins(t *testing.T) {
	f := newFixture(t)

	_, ok := f.tracker.GetPreference("theme")
	assert.False(t, ok)

	f.tracker.SavePreference("theme", "light")
	f.tracker.SavePreference("theme", "dark")
	f.tracker.SavePreference("pageSize", 25)

	value, ok := f.tracker.GetPreference("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", value)

	size, ok := f.tracker.GetPreference("pageSize")
	require.True(t, ok)
	assert.Equal(t, float64(25), size)
}

func TestEventLogIsBounded(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 120; i++ {
		f.tracker.TrackCourseInteraction(fmt.Sprintf("c%03d", i), "view")
	}

	events := f.tracker.Events()
	require.Len(t, events, 100)
	assert.Equal(t, "c020", events[0].Payload["contentId"])
	assert.Equal(t, "c119", events[99].Payload["contentId"])
}

func TestAnalyticsDeterministicRanking(t *testing.T) {
	f := newFixture(t)
	f.tracker.Init()
	for path, n := range map[string]int{"/a": 5, "/b": 9, "/c": 2} {
		for i := 0; i < n; i++ {
			f.tracker.TrackPageView(path)
		}
	}
	f.tracker.TrackSearch("go")
	f.tracker.TrackSearch("sql")
	f.tracker.TrackSearch("go")
	f.tracker.TrackTimeSpent("/a", 20)
	f.tracker.TrackTimeSpent("/b", 5)

	f.clock.Set(epoch.Add(45 * time.Second))
	summary := f.tracker.Analytics()

	assert.Equal(t, []behavior.PageVisit{
		{Path: "/b", Visits: 9},
		{Path: "/a", Visits: 5},
		{Path: "/c", Visits: 2},
	}, summary.MostVisitedPages)
	assert.Equal(t, []behavior.SearchCount{{Query: "go", Count: 2}, {Query: "sql", Count: 1}}, summary.TopSearches)
	assert.Equal(t, int64(25), summary.TotalTimeSpent)
	assert.Equal(t, int64(45000), summary.SessionDuration)
}

func TestAnalyticsWithoutProfile(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, behavior.EmptySummary(), f.tracker.Analytics())
}

func TestClearAll(t *testing.T) {
	f := newFixture(t)
	f.tracker.Init()
	f.tracker.TrackPageView("/a")
	f.tracker.TrackSearch("go")
	require.NoError(t, f.durable.Write("unrelated", "keep"))
	f.clock.Set(epoch.Add(20 * time.Second))

	f.tracker.ClearAll()

	_, ok := f.tracker.Profile()
	assert.False(t, ok)
	assert.Equal(t, behavior.EmptySummary(), f.tracker.Analytics())
	assert.Empty(t, f.tracker.Events())
	assert.False(t, f.cookies.Exists(SessionCookie))
	assert.False(t, f.cookies.Exists(LastVisitCookie))
	_, ok = f.tracker.SessionID()
	assert.False(t, ok)

	_, ok, err := f.durable.Read(manager.DurablePrefix + ProfileCacheKey)
	require.NoError(t, err)
	assert.False(t, ok)
	value, ok, _ := f.durable.Read("unrelated")
	assert.True(t, ok)
	assert.Equal(t, "keep", value)

	// the 20s accrued before the clear are dropped
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, int64(10), f.tracker.Analytics().TotalTimeSpent)
}

func TestTrackingSurvivesDurableFailure(t *testing.T) {
	f := newFixture(t)
	f.durable.SetDisabled(true)

	f.tracker.Init()
	f.tracker.TrackPageView("/a")

	profile, ok := f.tracker.Profile()
	require.True(t, ok)
	assert.Equal(t, 1, profile.PageViews["/a"])
	assert.Zero(t, f.durable.Len())
}

func TestConcurrentTrackingDoesNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	f.tracker.Init()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				f.tracker.TrackCourseInteraction("c1", "view")
			}
		}()
	}
	wg.Wait()

	profile, _ := f.tracker.Profile()
	assert.Equal(t, 200, profile.CourseInteractions["c1_view"])
}
