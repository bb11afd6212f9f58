// Package services provides application-level orchestration services
package services

import (
	"strconv"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/domain/behavior"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/cookies"
	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
	"github.com/AtRiskMedia/tractstack-behavior/pkg/config"
	"github.com/oklog/ulid/v2"
)

const (
	// ProfileCacheKey holds the whole behavior profile.
	ProfileCacheKey = "behavior_profile"
	// EventsCacheKey holds the audit event ring buffer.
	EventsCacheKey = "behavior_events"

	// SessionCookie carries the session ID minted by Init.
	SessionCookie = "bt_session"
	// LastVisitCookie carries the Unix millisecond time of the last page view.
	LastVisitCookie = "bt_last_visit"

	lastVisitCookieDays = 365
)

// TrackerConfig holds the buffer caps and timings of the behavior tracker.
type TrackerConfig struct {
	SearchHistoryLimit int
	EventLogLimit      int
	AnalyticsTopN      int
	SessionCookieDays  float64
	DwellFlushInterval time.Duration
}

// NewTrackerConfig copies the tracker settings out of cfg.
func NewTrackerConfig(cfg *config.Config) *TrackerConfig {
	return &TrackerConfig{
		SearchHistoryLimit: cfg.SearchHistoryLimit,
		EventLogLimit:      cfg.EventLogLimit,
		AnalyticsTopN:      cfg.AnalyticsTopN,
		SessionCookieDays:  float64(cfg.SessionCookieDays),
		DwellFlushInterval: cfg.DwellFlushInterval,
	}
}

// DefaultTrackerConfig returns the stock caps: 50 searches, 100 events, top 10
// rankings, a one-day session cookie and a 30 second dwell flush.
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		SearchHistoryLimit: 50,
		EventLogLimit:      100,
		AnalyticsTopN:      10,
		SessionCookieDays:  1,
		DwellFlushInterval: 30 * time.Second,
	}
}

// BehaviorTracker owns the behavior profile of one client. Every mutation
// reads the whole profile, changes one field and writes the whole profile
// back through the cache while holding mu, so concurrent callers never
// interleave inside a read-mutate-write.
//
// Tracking never fails the caller: cache and cookie failures are logged.
type BehaviorTracker struct {
	mu        sync.Mutex
	cache     interfaces.Cache
	cookies   *cookies.Store
	scheduler scheduling.Scheduler
	config    *TrackerConfig
	logger    *logging.ChanneledLogger

	sessionID string
	observer  *DwellObserver
}

// NewBehaviorTracker creates a tracker. Nothing is read or written until Init
// or the first tracking call.
func NewBehaviorTracker(cache interfaces.Cache, cookieStore *cookies.Store, scheduler scheduling.Scheduler, config *TrackerConfig, logger *logging.ChanneledLogger) *BehaviorTracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &BehaviorTracker{
		cache:     cache,
		cookies:   cookieStore,
		scheduler: scheduler,
		config:    config,
		logger:    logger,
	}
}

// Init loads the profile, creating it when none exists, and restarts the
// session clock. Counters and history survive repeated calls. The first call
// installs the dwell observer; later calls resume it for the new page context.
func (t *BehaviorTracker) Init() {
	t.mu.Lock()
	now := t.scheduler.Now()

	profile, found := t.loadLocked()
	if found {
		profile.StartSession(now)
		t.logger.Analytics().Debug("Behavior profile reloaded", "pages", len(profile.PageViews))
	} else {
		profile = behavior.NewProfile(now)
		t.logger.Analytics().Info("Behavior profile created")
	}
	t.saveLocked(profile)

	if t.sessionID == "" {
		if existing, ok := t.cookies.Get(SessionCookie); ok && existing != "" {
			t.sessionID = existing
		} else {
			t.sessionID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
		}
	}
	sessionID := t.sessionID

	install := t.observer == nil
	if install {
		t.observer = NewDwellObserver(t, t.scheduler, t.config.DwellFlushInterval, t.logger)
	}
	observer := t.observer
	t.mu.Unlock()

	t.setCookie(SessionCookie, sessionID, cookies.WithExpiresInDays(t.config.SessionCookieDays))

	if install {
		observer.Start()
	} else {
		observer.Resume()
	}
}

// TrackPageView counts a visit to path and moves dwell accounting to it.
func (t *BehaviorTracker) TrackPageView(path string) {
	t.mu.Lock()
	now := t.scheduler.Now()
	profile := t.loadOrNewLocked(now)
	profile.RecordPageView(path, now)
	t.saveLocked(profile)
	t.appendEventLocked(behavior.EventPageView, map[string]any{"path": path}, now)
	observer := t.observer
	t.mu.Unlock()

	t.setCookie(LastVisitCookie, strconv.FormatInt(now.UnixMilli(), 10), cookies.WithExpiresInDays(lastVisitCookieDays))

	if observer != nil {
		observer.Navigate(path)
	}
}

// TrackSearch records query in the bounded search history. Blank queries are
// ignored.
func (t *BehaviorTracker) TrackSearch(query string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.scheduler.Now()
	profile := t.loadOrNewLocked(now)
	if !profile.RecordSearch(query, t.config.SearchHistoryLimit) {
		return
	}
	t.saveLocked(profile)
	t.appendEventLocked(behavior.EventSearch, map[string]any{"query": query}, now)
}

// TrackCourseInteraction counts action on contentID. An empty action counts
// as a view.
func (t *BehaviorTracker) TrackCourseInteraction(contentID, action string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if action == "" {
		action = behavior.DefaultAction
	}
	now := t.scheduler.Now()
	profile := t.loadOrNewLocked(now)
	profile.RecordInteraction(contentID, action)
	t.saveLocked(profile)
	t.appendEventLocked(behavior.EventCourseInteraction, map[string]any{"contentId": contentID, "action": action}, now)
}

// TrackTimeSpent adds seconds of dwell time to path. Non-positive amounts are
// ignored.
func (t *BehaviorTracker) TrackTimeSpent(path string, seconds int64) {
	if seconds <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.scheduler.Now()
	profile := t.loadOrNewLocked(now)
	profile.RecordTimeSpent(path, seconds)
	t.saveLocked(profile)
	t.appendEventLocked(behavior.EventTimeSpent, map[string]any{"path": path, "seconds": seconds}, now)
}

// SavePreference stores value under key, replacing any previous value.
func (t *BehaviorTracker) SavePreference(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.scheduler.Now()
	profile := t.loadOrNewLocked(now)
	profile.SetPreference(key, value)
	t.saveLocked(profile)
	t.appendEventLocked(behavior.EventPreferenceChange, map[string]any{"key": key, "value": value}, now)
}

// GetPreference returns the stored preference for key. Values come back in
// their JSON decoded form, so numbers are float64.
func (t *BehaviorTracker) GetPreference(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	profile, ok := t.loadLocked()
	if !ok {
		return nil, false
	}
	value, ok := profile.Preferences[key]
	return value, ok
}

// ClearAll deletes the profile and event log from every tier and removes the
// tracker's cookies. Dwell time accrued before the call is discarded.
func (t *BehaviorTracker) ClearAll() {
	t.mu.Lock()
	t.cache.Remove(ProfileCacheKey)
	t.cache.Remove(EventsCacheKey)
	t.sessionID = ""
	observer := t.observer
	t.mu.Unlock()

	for _, name := range []string{SessionCookie, LastVisitCookie} {
		if err := t.cookies.Remove(name); err != nil {
			t.logger.Cookies().Warn("Failed to remove tracker cookie", "name", name, "error", err.Error())
		}
	}

	if observer != nil {
		observer.Restart()
	}
	t.logger.Analytics().Info("Behavior data cleared")
}

// Observer returns the dwell observer installed by Init, or nil before Init.
func (t *BehaviorTracker) Observer() *DwellObserver {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observer
}

// Dispose flushes pending dwell time and stops the observer's tick.
func (t *BehaviorTracker) Dispose() {
	observer := t.Observer()
	if observer == nil {
		return
	}
	observer.Teardown()
	observer.Stop()
}

func (t *BehaviorTracker) loadLocked() (*behavior.Profile, bool) {
	var profile behavior.Profile
	if !t.cache.Get(ProfileCacheKey, &profile) {
		return nil, false
	}
	profile.Normalize()
	return &profile, true
}

func (t *BehaviorTracker) loadOrNewLocked(now time.Time) *behavior.Profile {
	if profile, ok := t.loadLocked(); ok {
		return profile
	}
	return behavior.NewProfile(now)
}

func (t *BehaviorTracker) saveLocked(profile *behavior.Profile) {
	if err := t.cache.Set(ProfileCacheKey, profile, manager.WithoutExpiry()); err != nil {
		t.logger.LogError(logging.ChannelAnalytics, "save_profile", err, nil)
	}
}

func (t *BehaviorTracker) appendEventLocked(eventType behavior.EventType, payload map[string]any, now time.Time) {
	var events []behavior.Event
	t.cache.Get(EventsCacheKey, &events)

	events = behavior.AppendBounded(events, behavior.NewEvent(eventType, payload, now), t.config.EventLogLimit)
	if err := t.cache.Set(EventsCacheKey, events, manager.WithoutExpiry()); err != nil {
		t.logger.LogError(logging.ChannelAnalytics, "append_event", err, map[string]any{"type": string(eventType)})
	}
}

func (t *BehaviorTracker) setCookie(name, value string, opts ...cookies.Option) {
	if err := t.cookies.Set(name, value, opts...); err != nil {
		t.logger.Cookies().Warn("Failed to mirror tracker cookie", "name", name, "error", err.Error())
	}
}
