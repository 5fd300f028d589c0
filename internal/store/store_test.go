package store

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-analytics/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analytics.db")
	st, err := Open(path, "traffic_analytics", zerolog.Nop())
	require.NoError(t, err)
	return st
}

func TestLoadReturnsDefaultsWhenEmpty(t *testing.T) {
	st := newTestStore(t)

	doc := st.Load()

	require.NotNil(t, doc)
	assert.Zero(t, doc.Totals.Vehicles)
	assert.NotNil(t, doc.HourlyBuckets)
	assert.NotNil(t, doc.DailyTotals)
	assert.True(t, doc.SettingBool(model.SettingSaveHistoricalData, false))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := newTestStore(t)

	doc := model.NewDocument()
	doc.Totals.Vehicles = 42
	doc.HourlyBuckets[8] = &model.HourBucket{VehicleSum: 42, SampleCount: 3}
	doc.DailyTotals["2024-03-14"] = &model.DailyTotal{Vehicles: 42, Incidents: 1}

	rev := st.Save(doc)
	require.Greater(t, rev, int64(0))

	restored := st.Load()
	assert.Equal(t, float64(42), restored.Totals.Vehicles)
	assert.Equal(t, 42, restored.HourlyBuckets[8].VehicleSum)
	assert.Equal(t, 1, restored.DailyTotals["2024-03-14"].Incidents)
}

func TestRevisionIncrementsPerSave(t *testing.T) {
	st := newTestStore(t)
	doc := model.NewDocument()

	first := st.Save(doc)
	second := st.Save(doc)

	assert.Equal(t, first+1, second)
	assert.Equal(t, second, st.Revision())
}

// Interleaved saves from two handles on the same database must each report
// the revision of their own write, not whatever a later writer produced.
func TestSaveReturnsOwnRevisionAcrossWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.db")
	first, err := Open(path, "traffic_analytics", zerolog.Nop())
	require.NoError(t, err)
	second, err := Open(path, "traffic_analytics", zerolog.Nop())
	require.NoError(t, err)

	doc := model.NewDocument()

	assert.Equal(t, int64(1), first.Save(doc))
	assert.Equal(t, int64(2), second.Save(doc))
	assert.Equal(t, int64(3), first.Save(doc))
	assert.Equal(t, int64(3), second.Revision())
}

func TestNamespaceFollowsIdentity(t *testing.T) {
	st := newTestStore(t)

	assert.Equal(t, "traffic_analytics", st.Namespace())

	require.NoError(t, st.SetIdentity("operator@example.com"))
	assert.Equal(t, "traffic_analytics_operator@example.com", st.Namespace())

	require.NoError(t, st.ClearIdentity())
	assert.Equal(t, "traffic_analytics", st.Namespace())
}

func TestDocumentsIsolatedPerIdentity(t *testing.T) {
	st := newTestStore(t)

	shared := model.NewDocument()
	shared.Totals.Vehicles = 5
	st.Save(shared)

	require.NoError(t, st.SetIdentity("operator@example.com"))
	personal := st.Load()
	assert.Zero(t, personal.Totals.Vehicles)

	personal.Totals.Vehicles = 99
	st.Save(personal)

	require.NoError(t, st.ClearIdentity())
	assert.Equal(t, float64(5), st.Load().Totals.Vehicles)

	require.NoError(t, st.SetIdentity("operator@example.com"))
	assert.Equal(t, float64(99), st.Load().Totals.Vehicles)
}

// Identity is resolved fresh on every call, never cached: a save after a
// login lands in the new namespace even on a store handle opened earlier.
func TestIdentityResolvedPerCall(t *testing.T) {
	st := newTestStore(t)

	doc := st.Load()
	doc.Totals.Vehicles = 7

	require.NoError(t, st.SetIdentity("late@example.com"))
	st.Save(doc)

	require.NoError(t, st.ClearIdentity())
	assert.Zero(t, st.Load().Totals.Vehicles)

	require.NoError(t, st.SetIdentity("late@example.com"))
	assert.Equal(t, float64(7), st.Load().Totals.Vehicles)
}

func TestLoadRecoversFromCorruptDocument(t *testing.T) {
	st := newTestStore(t)

	err := st.db.Exec(
		`INSERT INTO analytics_documents (key, data, revision) VALUES (?, ?, 1)`,
		"traffic_analytics", []byte("{not json"),
	).Error
	require.NoError(t, err)

	doc := st.Load()
	require.NotNil(t, doc)
	assert.Zero(t, doc.Totals.Vehicles)
	assert.NotNil(t, doc.Incidents)
}

func TestLoadSanitizesDamagedTotals(t *testing.T) {
	st := newTestStore(t)

	// A writer in another language can serialize NaN as null.
	err := st.db.Exec(
		`INSERT INTO analytics_documents (key, data, revision) VALUES (?, ?, 1)`,
		"traffic_analytics", []byte(`{"totals":{"vehicles":null,"sessions":2}}`),
	).Error
	require.NoError(t, err)

	doc := st.Load()
	assert.Zero(t, doc.Totals.Vehicles)
	assert.Equal(t, 2, doc.Totals.Sessions)
}

func TestLoadDefaultsMissingSubtrees(t *testing.T) {
	st := newTestStore(t)

	err := st.db.Exec(
		`INSERT INTO analytics_documents (key, data, revision) VALUES (?, ?, 1)`,
		"traffic_analytics", []byte(`{"totals":{"vehicles":3,"sessions":1}}`),
	).Error
	require.NoError(t, err)

	doc := st.Load()
	assert.Equal(t, float64(3), doc.Totals.Vehicles)
	assert.NotNil(t, doc.QueueStats.ByHour)
	assert.NotNil(t, doc.LocationHourlyBuckets)
	assert.NotNil(t, doc.Recommendations)
}
