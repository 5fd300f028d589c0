package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"traffic-analytics/internal/model"
)

// DocumentStore is the persistence boundary. Implementations swallow storage
// failures internally; Save returns the stored revision (0 when the write was
// lost), so analytics never treats persistence as critical path.
type DocumentStore interface {
	Load() *model.AnalyticsDocument
	Save(doc *model.AnalyticsDocument) int64
}

type Config struct {
	DedupWindow        time.Duration
	MaxIncidents       int
	MaxRecommendations int
	MaxEmergencyEvents int
	RetentionDays      int
}

func (c Config) withDefaults() Config {
	if c.DedupWindow <= 0 {
		c.DedupWindow = 5 * time.Minute
	}
	if c.MaxIncidents <= 0 {
		c.MaxIncidents = model.MaxIncidents
	}
	if c.MaxRecommendations <= 0 {
		c.MaxRecommendations = model.MaxRecommendations
	}
	if c.MaxEmergencyEvents <= 0 {
		c.MaxEmergencyEvents = model.MaxEmergencyEvents
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	return c
}

// Analytics owns the in-memory document and serializes every reader and
// writer through one mutex. Across processes the store is last-writer-wins;
// the watch loop provides eventual convergence, not merge.
type Analytics struct {
	mu    sync.Mutex
	doc   *model.AnalyticsDocument
	store DocumentStore
	cfg   Config
	log   zerolog.Logger

	now      func() time.Time
	onChange func()

	lastRevision atomic.Int64
}

func New(store DocumentStore, cfg Config, log zerolog.Logger) *Analytics {
	return &Analytics{
		doc:   store.Load(),
		store: store,
		cfg:   cfg.withDefaults(),
		log:   log,
		now:   time.Now,
	}
}

// SetNotifier registers a callback fired after every persisted mutation,
// used to push live updates to connected dashboards.
func (a *Analytics) SetNotifier(fn func()) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Reload replaces the in-memory document with the stored one. Called when the
// active identity changes or another writer modified the store.
func (a *Analytics) Reload() {
	a.mu.Lock()
	a.doc = a.store.Load()
	a.mu.Unlock()
}

// LastRevision reports the revision of this process's most recent save, so
// the watcher can tell local writes from external ones.
func (a *Analytics) LastRevision() int64 {
	return a.lastRevision.Load()
}

// ClearAnalytics resets the current identity's document to defaults.
func (a *Analytics) ClearAnalytics() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.doc = model.NewDocument()
	a.persist()
}

// UpdateSettings merges the given keys into the settings map, last write wins.
func (a *Analytics) UpdateSettings(updates map[string]any) {
	if len(updates) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, value := range updates {
		a.doc.Settings[key] = value
	}
	a.persist()
}

// Settings returns a copy of the settings map.
func (a *Analytics) Settings() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]any, len(a.doc.Settings))
	for key, value := range a.doc.Settings {
		out[key] = value
	}
	return out
}

// StartSession counts a dashboard session and points subsequent events at the
// given location.
func (a *Analytics) StartSession(locationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.doc.Totals.Sessions++
	a.ensureDaily(model.DayKey(a.now())).Sessions++
	a.doc.Session.CurrentLocationID = locationID
	a.doc.Session.LastActiveTimestamp = a.now()
	a.persist()
}

// SetLocationName records the display name for a location id.
func (a *Analytics) SetLocationName(locationID, name string) {
	if locationID == "" || name == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.doc.Locations[locationID] == name {
		return
	}
	a.doc.Locations[locationID] = name
	a.persist()
}

// persist writes the whole document and notifies listeners. Callers must hold
// the mutex. Storage failures have already been swallowed by the store; the
// in-memory document stays authoritative either way. The notifier runs on its
// own goroutine so a slow listener never blocks the document lock.
func (a *Analytics) persist() {
	if rev := a.store.Save(a.doc); rev > 0 {
		a.lastRevision.Store(rev)
	}
	if fn := a.onChange; fn != nil {
		go fn()
	}
}

func (a *Analytics) ensureDaily(day string) *model.DailyTotal {
	dt, ok := a.doc.DailyTotals[day]
	if !ok {
		dt = &model.DailyTotal{}
		a.doc.DailyTotals[day] = dt
	}
	return dt
}

func (a *Analytics) currentLocation() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc.Session.CurrentLocationID
}
