package behavior

import (
	"sort"
	"time"
)

// PageVisit is one row of the most-visited ranking.
type PageVisit struct {
	Path   string `json:"path"`
	Visits int    `json:"visits"`
}

// SearchCount is one row of the top-searches ranking.
type SearchCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// AnalyticsSummary is the derived view of a profile. TotalTimeSpent is in
// seconds and SessionDuration in milliseconds.
type AnalyticsSummary struct {
	MostVisitedPages []PageVisit   `json:"mostVisitedPages"`
	TopSearches      []SearchCount `json:"topSearches"`
	TotalTimeSpent   int64         `json:"totalTimeSpent"`
	SessionDuration  int64         `json:"sessionDuration"`
}

// EmptySummary is the summary reported when no profile exists.
func EmptySummary() AnalyticsSummary {
	return AnalyticsSummary{
		MostVisitedPages: []PageVisit{},
		TopSearches:      []SearchCount{},
	}
}

// Summarize derives analytics from p at now, keeping topN rows per ranking.
func Summarize(p *Profile, now time.Time, topN int) AnalyticsSummary {
	if p == nil {
		return EmptySummary()
	}

	var total int64
	for _, seconds := range p.TimeSpent {
		total += seconds
	}

	duration := now.UnixMilli() - p.SessionStartAt
	if duration < 0 {
		duration = 0
	}

	return AnalyticsSummary{
		MostVisitedPages: RankPages(p.PageViews, topN),
		TopSearches:      RankSearches(p.SearchQueries, topN),
		TotalTimeSpent:   total,
		SessionDuration:  duration,
	}
}

// RankPages orders paths by visits descending, breaking ties by path
// ascending, and keeps the first n.
func RankPages(pageViews map[string]int, n int) []PageVisit {
	ranked := make([]PageVisit, 0, len(pageViews))
	for path, visits := range pageViews {
		ranked = append(ranked, PageVisit{Path: path, Visits: visits})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Visits != ranked[j].Visits {
			return ranked[i].Visits > ranked[j].Visits
		}
		return ranked[i].Path < ranked[j].Path
	})
	return truncate(ranked, n)
}

// RankSearches tallies queries and orders them by count descending. Equal
// counts keep the order in which each query first appears in queries.
func RankSearches(queries []string, n int) []SearchCount {
	index := make(map[string]int)
	ranked := make([]SearchCount, 0)
	for _, q := range queries {
		if i, seen := index[q]; seen {
			ranked[i].Count++
			continue
		}
		index[q] = len(ranked)
		ranked = append(ranked, SearchCount{Query: q, Count: 1})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return truncate(ranked, n)
}

func truncate[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}
