package behavior

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func TestNewProfileStartsEmpty(t *testing.T) {
	p := NewProfile(epoch)

	assert.Empty(t, p.PageViews)
	assert.Empty(t, p.SearchQueries)
	assert.Empty(t, p.CourseInteractions)
	assert.Empty(t, p.TimeSpent)
	assert.Empty(t, p.Preferences)
	assert.Equal(t, epoch.UnixMilli(), p.LastVisitAt)
	assert.Equal(t, epoch.UnixMilli(), p.SessionStartAt)
}

func TestProfileJSONShape(t *testing.T) {
	raw, err := json.Marshal(NewProfile(epoch))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"pageViews", "searchQueries", "courseInteractions", "timeSpent", "preferences", "lastVisitAt", "sessionStartAt"} {
		assert.Contains(t, fields, key)
	}
}

func TestNormalizeFillsPartialRecord(t *testing.T) {
	var p Profile
	require.NoError(t, json.Unmarshal([]byte(`{"pageViews":{"/a":2}}`), &p))
	p.Normalize()

	p.RecordTimeSpent("/a", 3)
	p.SetPreference("theme", "dark")
	assert.Equal(t, 2, p.PageViews["/a"])
	assert.Equal(t, int64(3), p.TimeSpent["/a"])
	assert.NotNil(t, p.SearchQueries)
}

func TestRecordPageView(t *testing.T) {
	p := NewProfile(epoch)
	later := epoch.Add(time.Minute)

	p.RecordPageView("/courses", later)
	p.RecordPageView("/courses", later)

	assert.Equal(t, 2, p.PageViews["/courses"])
	assert.Equal(t, later.UnixMilli(), p.LastVisitAt)
	assert.Equal(t, epoch.UnixMilli(), p.SessionStartAt)
}

func TestRecordSearchKeepsMostRecent(t *testing.T) {
	p := NewProfile(epoch)
	for i := 0; i < 60; i++ {
		assert.True(t, p.RecordSearch(fmt.Sprintf("query-%02d", i), 50))
	}

	require.Len(t, p.SearchQueries, 50)
	for i, q := range p.SearchQueries {
		assert.Equal(t, fmt.Sprintf("query-%02d", i+10), q)
	}
}

func TestRecordSearchIgnoresBlank(t *testing.T) {
	p := NewProfile(epoch)
	assert.False(t, p.RecordSearch("", 50))
	assert.False(t, p.RecordSearch(" \t\n", 50))
	assert.Empty(t, p.SearchQueries)

	assert.True(t, p.RecordSearch("  go  ", 50))
	assert.Equal(t, []string{"  go  "}, p.SearchQueries)
}

func TestRecordInteractionDefaultsToView(t *testing.T) {
	p := NewProfile(epoch)

	assert.Equal(t, "c1_view", p.RecordInteraction("c1", ""))
	p.RecordInteraction("c1", "view")
	p.RecordInteraction("c1", "enroll")

	assert.Equal(t, map[string]int{"c1_view": 2, "c1_enroll": 1}, p.CourseInteractions)
}

func TestRecordTimeSpentIgnoresNonPositive(t *testing.T) {
	p := NewProfile(epoch)

	assert.False(t, p.RecordTimeSpent("/a", 0))
	assert.False(t, p.RecordTimeSpent("/a", -5))
	assert.True(t, p.RecordTimeSpent("/a", 7))
	assert.True(t, p.RecordTimeSpent("/a", 3))

	assert.Equal(t, map[string]int64{"/a": 10}, p.TimeSpent)
}

func TestAppendBounded(t *testing.T) {
	buf := []int{1, 2, 3}
	out := AppendBounded(buf, 4, 3)
	assert.Equal(t, []int{2, 3, 4}, out)
	assert.Equal(t, []int{1, 2, 3}, buf)

	assert.Equal(t, []int{1, 2, 3, 4}, AppendBounded([]int{1, 2, 3}, 4, 0))
}

func TestNewEventCarriesTimestamp(t *testing.T) {
	e := NewEvent(EventSearch, map[string]any{"query": "go"}, epoch)

	id, err := ulid.ParseStrict(e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(epoch.UnixMilli()), id.Time())
	assert.Equal(t, EventSearch, e.Type)
	assert.Equal(t, epoch.UnixMilli(), e.Timestamp)

	assert.NotEqual(t, e.ID, NewEvent(EventSearch, nil, epoch).ID)
}

func TestRankPagesByVisits(t *testing.T) {
	ranked := RankPages(map[string]int{"/a": 5, "/b": 9, "/c": 2}, 10)

	assert.Equal(t, []PageVisit{
		{Path: "/b", Visits: 9},
		{Path: "/a", Visits: 5},
		{Path: "/c", Visits: 2},
	}, ranked)
}

func TestRankPagesTieBreakAndLimit(t *testing.T) {
	views := map[string]int{"/z": 3, "/m": 3, "/a": 3, "/top": 4}
	assert.Equal(t, []PageVisit{
		{Path: "/top", Visits: 4},
		{Path: "/a", Visits: 3},
		{Path: "/m", Visits: 3},
	}, RankPages(views, 3))
}

func TestRankSearchesTieBreakFirstSeen(t *testing.T) {
	queries := []string{"rust", "go", "zig", "go", "rust", "ada"}

	assert.Equal(t, []SearchCount{
		{Query: "rust", Count: 2},
		{Query: "go", Count: 2},
		{Query: "zig", Count: 1},
		{Query: "ada", Count: 1},
	}, RankSearches(queries, 10))

	assert.Len(t, RankSearches(queries, 2), 2)
}

func TestSummarize(t *testing.T) {
	p := NewProfile(epoch)
	p.PageViews = map[string]int{"/a": 5, "/b": 9, "/c": 2}
	p.TimeSpent = map[string]int64{"/a": 30, "/b": 12}
	p.SearchQueries = []string{"go", "go", "sql"}

	summary := Summarize(p, epoch.Add(90*time.Second), 10)

	assert.Equal(t, "/b", summary.MostVisitedPages[0].Path)
	assert.Equal(t, []SearchCount{{Query: "go", Count: 2}, {Query: "sql", Count: 1}}, summary.TopSearches)
	assert.Equal(t, int64(42), summary.TotalTimeSpent)
	assert.Equal(t, int64(90000), summary.SessionDuration)
}

func TestSummarizeWithoutProfile(t *testing.T) {
	summary := Summarize(nil, epoch, 10)
	assert.Equal(t, EmptySummary(), summary)

	raw, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mostVisitedPages":[],"topSearches":[],"totalTimeSpent":0,"sessionDuration":0}`, string(raw))
}
