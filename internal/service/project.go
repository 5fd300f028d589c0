package service

import (
	"sort"

	"traffic-analytics/internal/model"
)

// Summary derives the headline dashboard figures from current state. With a
// locationID the totals are filtered to that location; savings are scaled by
// the location's share of all observed vehicles, an approximation rather than
// an exact attribution.
func (a *Analytics) Summary(locationID string) model.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	today := model.DayKey(a.now())

	var vehicles, incidents int
	if locationID == "" {
		if dt := a.doc.DailyTotals[today]; dt != nil {
			vehicles = dt.Vehicles
			incidents = dt.Incidents
		}
	} else {
		if stat := a.doc.LocationStats[locationID]; stat != nil {
			vehicles = stat.Vehicles
		}
		for _, incident := range a.doc.Incidents {
			if incident.LocationID == locationID && model.DayKey(incident.Timestamp) == today {
				incidents++
			}
		}
	}

	efficiency := 0
	if vehicles > 0 {
		efficiency = clamp(70, 99, 94-incidents*2)
	}

	queue := a.doc.QueueStats.Global
	if locationID != "" {
		queue = a.doc.QueueStats.ByLocation[locationID]
	}

	timeSaved := a.doc.SavingsStats.TimeSavedMinutes
	co2Saved := a.doc.SavingsStats.CO2SavedKg
	if locationID != "" && a.doc.Totals.Vehicles > 0 {
		share := float64(vehicles) / a.doc.Totals.Vehicles
		timeSaved *= share
		co2Saved *= share
	}

	return model.Summary{
		VehiclesToday:    vehicles,
		IncidentsToday:   incidents,
		FlowEfficiency:   efficiency,
		AvgQueueMeters:   queue.Average(),
		TimeSavedMinutes: timeSaved,
		CO2SavedKg:       co2Saved,
		CongestionLevel:  congestionLabel(vehicles, efficiency),
	}
}

// PeakHours ranks hour buckets by average vehicles per sample, top 5. Empty
// when no data exists; no synthetic placeholders.
func (a *Analytics) PeakHours(locationID string) []model.PeakHour {
	a.mu.Lock()
	defer a.mu.Unlock()

	buckets := a.doc.HourlyBuckets
	if locationID != "" {
		buckets = a.doc.LocationHourlyBuckets[locationID]
	}

	peaks := make([]model.PeakHour, 0, len(buckets))
	for hour, bucket := range buckets {
		if bucket.SampleCount == 0 {
			continue
		}
		peaks = append(peaks, model.PeakHour{
			Hour:        hour,
			AvgVehicles: float64(bucket.VehicleSum) / float64(bucket.SampleCount),
			Samples:     bucket.SampleCount,
		})
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].AvgVehicles != peaks[j].AvgVehicles {
			return peaks[i].AvgVehicles > peaks[j].AvgVehicles
		}
		return peaks[i].Hour < peaks[j].Hour
	})

	if len(peaks) > 5 {
		peaks = peaks[:5]
	}
	return peaks
}

// BusiestLocations ranks locations by total observed vehicles, top 4, with a
// fixed-threshold congestion tier.
func (a *Analytics) BusiestLocations() []model.BusiestLocation {
	a.mu.Lock()
	defer a.mu.Unlock()

	locations := make([]model.BusiestLocation, 0, len(a.doc.LocationStats))
	for id, stat := range a.doc.LocationStats {
		name := a.doc.Locations[id]
		if name == "" {
			name = id
		}
		locations = append(locations, model.BusiestLocation{
			LocationID: id,
			Name:       name,
			Vehicles:   stat.Vehicles,
			Congestion: model.BusyTier(stat.Vehicles),
		})
	}

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Vehicles != locations[j].Vehicles {
			return locations[i].Vehicles > locations[j].Vehicles
		}
		return locations[i].LocationID < locations[j].LocationID
	})

	if len(locations) > 4 {
		locations = locations[:4]
	}
	return locations
}

// HourlyData returns a copy of the raw hour buckets for charting. A location
// with no data of its own falls back to the global series. Callers compute
// per-hour averages themselves.
func (a *Analytics) HourlyData(locationID string) map[int]model.HourBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	buckets := a.doc.HourlyBuckets
	if locationID != "" {
		if locBuckets, ok := a.doc.LocationHourlyBuckets[locationID]; ok && len(locBuckets) > 0 {
			buckets = locBuckets
		}
	}

	out := make(map[int]model.HourBucket, len(buckets))
	for hour, bucket := range buckets {
		out[hour] = *bucket
	}
	return out
}

// DailyTotals returns a copy of the per-day aggregates for charting.
func (a *Analytics) DailyTotals() map[string]model.DailyTotal {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]model.DailyTotal, len(a.doc.DailyTotals))
	for day, dt := range a.doc.DailyTotals {
		out[day] = *dt
	}
	return out
}

// Incidents returns the newest N incidents.
func (a *Analytics) Incidents(limit int) []model.Incident {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := capLimit(limit, len(a.doc.Incidents))
	out := make([]model.Incident, n)
	copy(out, a.doc.Incidents[:n])
	return out
}

// Recommendations returns the newest N recommendations.
func (a *Analytics) Recommendations(limit int) []model.Recommendation {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := capLimit(limit, len(a.doc.Recommendations))
	out := make([]model.Recommendation, n)
	copy(out, a.doc.Recommendations[:n])
	return out
}

// EmergencyEvents returns copies of the newest N emergency events.
func (a *Analytics) EmergencyEvents(limit int) []model.EmergencyEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := capLimit(limit, len(a.doc.EmergencyEvents))
	out := make([]model.EmergencyEvent, 0, n)
	for _, event := range a.doc.EmergencyEvents[:n] {
		out = append(out, *event)
	}
	return out
}

// TopSuggestions ranks recommendation texts by how often they were logged.
func (a *Analytics) TopSuggestions(limit int) []model.SuggestionFrequency {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[string]int)
	for _, rec := range a.doc.Recommendations {
		counts[rec.Text]++
	}

	ranked := make([]model.SuggestionFrequency, 0, len(counts))
	for text, count := range counts {
		ranked = append(ranked, model.SuggestionFrequency{Text: text, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Text < ranked[j].Text
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func congestionLabel(vehicles, efficiency int) string {
	if vehicles == 0 {
		return model.CongestionLow
	}
	switch {
	case efficiency < 60:
		return model.CongestionHigh
	case efficiency < 85:
		return model.CongestionMedium
	default:
		return model.CongestionLow
	}
}

func clamp(low, high, value int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func capLimit(limit, available int) int {
	if limit <= 0 || limit > available {
		return available
	}
	return limit
}
