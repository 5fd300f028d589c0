package model

import (
	"math"
	"time"
)

// Bounded log sizes. Trimming always drops from the tail (oldest entries).
const (
	MaxIncidents       = 100
	MaxRecommendations = 50
	MaxEmergencyEvents = 50
)

// Settings keys understood by the dashboard. Settings is a flat last-write-wins
// map so new keys can be added without a schema change.
const (
	SettingSaveHistoricalData = "saveHistoricalData"
	SettingAudioAlerts        = "audioAlertsEnabled"
	SettingDataRetentionDays  = "dataRetentionDays"
	SettingFrameRate          = "frameRate"
)

type Totals struct {
	// Vehicles is a float so a document damaged by a bad writer (NaN, null)
	// can be detected and sanitized on load.
	Vehicles float64 `json:"vehicles"`
	Sessions int     `json:"sessions"`
}

type HourBucket struct {
	VehicleSum  int `json:"vehicleSum"`
	SampleCount int `json:"sampleCount"`
}

type DailyTotal struct {
	Vehicles  int `json:"vehicles"`
	Incidents int `json:"incidents"`
	Sessions  int `json:"sessions"`
}

type LocationStat struct {
	Vehicles       int `json:"vehicles"`
	AvgWaitSeconds int `json:"avgWaitSeconds"`
	SampleCount    int `json:"sampleCount"`
}

type QueueAccumulator struct {
	SumMeters float64 `json:"sumMeters"`
	Count     int     `json:"count"`
}

func (q QueueAccumulator) Average() float64 {
	if q.Count == 0 {
		return 0
	}
	return q.SumMeters / float64(q.Count)
}

type QueueStats struct {
	Global     QueueAccumulator            `json:"global"`
	ByHour     map[int]QueueAccumulator    `json:"byHour"`
	ByLocation map[string]QueueAccumulator `json:"byLocation"`
}

type SavingsStats struct {
	TimeSavedMinutes     float64 `json:"timeSavedMinutes"`
	CO2SavedKg           float64 `json:"co2SavedKg"`
	OptimizationsApplied int     `json:"optimizationsApplied"`
}

type Incident struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	LocationID  string    `json:"locationId"`
}

type Recommendation struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	LocationID string    `json:"locationId"`
}

type EmergencyEvent struct {
	ID                  string     `json:"id"`
	Type                string     `json:"type"`
	Lane                string     `json:"lane"`
	Direction           string     `json:"direction"`
	Timestamp           time.Time  `json:"timestamp"`
	LocationID          string     `json:"locationId"`
	ClearedAt           *time.Time `json:"clearedAt"`
	ResponseTimeSeconds *int       `json:"responseTimeSeconds"`
}

func (e *EmergencyEvent) Cleared() bool {
	return e.ClearedAt != nil
}

type SessionState struct {
	CurrentLocationID   string    `json:"currentLocationId"`
	LastActiveTimestamp time.Time `json:"lastActiveTimestamp"`
}

// AnalyticsDocument is the root persisted object, one per identity namespace.
// It is always written whole; readers of older documents get missing subtrees
// initialized by Normalize rather than a load failure.
type AnalyticsDocument struct {
	Settings              map[string]any                 `json:"settings"`
	Totals                Totals                         `json:"totals"`
	HourlyBuckets         map[int]*HourBucket            `json:"hourlyBuckets"`
	LocationHourlyBuckets map[string]map[int]*HourBucket `json:"locationHourlyBuckets"`
	DailyTotals           map[string]*DailyTotal         `json:"dailyTotals"`
	LocationStats         map[string]*LocationStat       `json:"locationStats"`
	QueueStats            QueueStats                     `json:"queueStats"`
	SavingsStats          SavingsStats                   `json:"savingsStats"`
	Incidents             []Incident                     `json:"incidents"`
	Recommendations       []Recommendation               `json:"recommendations"`
	EmergencyEvents       []*EmergencyEvent              `json:"emergencyEvents"`
	Locations             map[string]string              `json:"locations"`
	Session               SessionState                   `json:"session"`
}

func NewDocument() *AnalyticsDocument {
	doc := &AnalyticsDocument{
		Settings: map[string]any{
			SettingSaveHistoricalData: true,
			SettingAudioAlerts:        true,
			SettingDataRetentionDays:  30,
			SettingFrameRate:          10,
		},
	}
	doc.Normalize()
	return doc
}

// Normalize lazily initializes missing subtrees and sanitizes known-fragile
// fields so documents persisted by older versions stay readable.
func (d *AnalyticsDocument) Normalize() {
	if d.Settings == nil {
		d.Settings = make(map[string]any)
	}
	if d.HourlyBuckets == nil {
		d.HourlyBuckets = make(map[int]*HourBucket)
	}
	if d.LocationHourlyBuckets == nil {
		d.LocationHourlyBuckets = make(map[string]map[int]*HourBucket)
	}
	if d.DailyTotals == nil {
		d.DailyTotals = make(map[string]*DailyTotal)
	}
	if d.LocationStats == nil {
		d.LocationStats = make(map[string]*LocationStat)
	}
	if d.QueueStats.ByHour == nil {
		d.QueueStats.ByHour = make(map[int]QueueAccumulator)
	}
	if d.QueueStats.ByLocation == nil {
		d.QueueStats.ByLocation = make(map[string]QueueAccumulator)
	}
	if d.Incidents == nil {
		d.Incidents = []Incident{}
	}
	if d.Recommendations == nil {
		d.Recommendations = []Recommendation{}
	}
	if d.EmergencyEvents == nil {
		d.EmergencyEvents = []*EmergencyEvent{}
	}
	if d.Locations == nil {
		d.Locations = make(map[string]string)
	}
	if math.IsNaN(d.Totals.Vehicles) || math.IsInf(d.Totals.Vehicles, 0) {
		d.Totals.Vehicles = 0
	}
	for hour := range d.HourlyBuckets {
		if hour < 0 || hour > 23 {
			delete(d.HourlyBuckets, hour)
		}
	}
}

// SettingBool reads a boolean setting, tolerating absent or mistyped values.
func (d *AnalyticsDocument) SettingBool(key string, fallback bool) bool {
	v, ok := d.Settings[key]
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// SettingInt reads a numeric setting. JSON round trips store numbers as
// float64, so both forms are accepted.
func (d *AnalyticsDocument) SettingInt(key string, fallback int) int {
	switch v := d.Settings[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// DayKey formats a local calendar date the way dailyTotals is keyed. ISO date
// strings sort lexicographically by calendar order, which retention pruning
// relies on.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
