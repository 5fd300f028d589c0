package service

import (
	"math"

	"traffic-analytics/internal/metrics"
	"traffic-analytics/internal/model"
)

// Ingest dispatches one observation event to the aggregation and log
// surfaces. Each mutation persists the whole document, matching the
// persist-after-every-mutation lifecycle of the document.
func (a *Analytics) Ingest(obs model.Observation) {
	obs.Normalize()

	locationID := obs.LocationID
	if locationID == "" {
		locationID = a.currentLocation()
	}
	if obs.LocationName != "" {
		a.SetLocationName(locationID, obs.LocationName)
	}

	a.RecordObservation(obs.VehicleCounts(), obs.AvgWaitSeconds, locationID)

	if queue := obs.AvgQueueLengthMeters(); queue > 0 {
		a.RecordQueueLength(queue, locationID)
	}
	for _, alert := range obs.Alerts {
		a.RecordIncident(alert.Type, alert.Message, locationID)
	}
	for _, suggestion := range obs.OptimizationSuggestions {
		a.RecordRecommendation(suggestion, locationID)
	}
	for _, vehicle := range obs.EmergencyVehicles {
		a.RecordEmergencyEvent(vehicle.Type, vehicle.LaneID, vehicle.Direction, locationID)
	}

	metrics.ObservationsIngested.Inc()
}

// RecordObservation folds one measurement into the running aggregates. A
// no-op while the saveHistoricalData setting is off.
func (a *Analytics) RecordObservation(counts model.VehicleCounts, waitSeconds float64, locationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.doc.SettingBool(model.SettingSaveHistoricalData, true) {
		return
	}

	vehicleCount := counts.Total()
	now := a.now()
	hour := now.Hour()

	bumpHourBucket(a.doc.HourlyBuckets, hour, vehicleCount)
	if locationID != "" {
		locBuckets, ok := a.doc.LocationHourlyBuckets[locationID]
		if !ok {
			locBuckets = make(map[int]*model.HourBucket)
			a.doc.LocationHourlyBuckets[locationID] = locBuckets
		}
		bumpHourBucket(locBuckets, hour, vehicleCount)
	}

	a.ensureDaily(model.DayKey(now)).Vehicles += vehicleCount

	if locationID != "" {
		stat, ok := a.doc.LocationStats[locationID]
		if !ok {
			stat = &model.LocationStat{}
			a.doc.LocationStats[locationID] = stat
		}
		stat.Vehicles += vehicleCount
		if waitSeconds > 0 {
			// Cumulative mean: the new sample is weighted against the
			// pre-increment count.
			prior := float64(stat.SampleCount)
			stat.AvgWaitSeconds = int(math.Round((float64(stat.AvgWaitSeconds)*prior + waitSeconds) / (prior + 1)))
			stat.SampleCount++
		}
	}

	a.doc.Totals.Vehicles += float64(vehicleCount)
	metrics.VehiclesObserved.Add(float64(vehicleCount))

	a.persist()
}

// RecordQueueLength folds one queue-length measurement (meters) into the
// global, hour-keyed, and location-keyed accumulators. Negative values are
// rejected as a no-op.
func (a *Analytics) RecordQueueLength(meters float64, locationID string) {
	if meters < 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	qs := &a.doc.QueueStats
	qs.Global.SumMeters += meters
	qs.Global.Count++

	hour := a.now().Hour()
	hourAcc := qs.ByHour[hour]
	hourAcc.SumMeters += meters
	hourAcc.Count++
	qs.ByHour[hour] = hourAcc

	if locationID != "" {
		locAcc := qs.ByLocation[locationID]
		locAcc.SumMeters += meters
		locAcc.Count++
		qs.ByLocation[locationID] = locAcc
	}

	a.persist()
}

// RecordSavings accumulates estimated time and CO2 savings from one applied
// signal optimization. Missing values arrive as zero and accumulate as such.
func (a *Analytics) RecordSavings(timeSavedMinutes, co2SavedKg float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.doc.SavingsStats.TimeSavedMinutes += timeSavedMinutes
	a.doc.SavingsStats.CO2SavedKg += co2SavedKg
	a.doc.SavingsStats.OptimizationsApplied++

	a.persist()
}

// CleanupOldData drops daily totals and incidents older than retentionDays.
// ISO date keys sort lexicographically by calendar order, so the cutoff is a
// plain string compare. A full-document scan is fine at these sizes.
func (a *Analytics) CleanupOldData(retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = a.cfg.RetentionDays
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := model.DayKey(a.now().AddDate(0, 0, -retentionDays))

	for day := range a.doc.DailyTotals {
		if day < cutoff {
			delete(a.doc.DailyTotals, day)
		}
	}

	kept := a.doc.Incidents[:0]
	for _, incident := range a.doc.Incidents {
		if model.DayKey(incident.Timestamp) >= cutoff {
			kept = append(kept, incident)
		}
	}
	a.doc.Incidents = kept

	a.persist()
}

func bumpHourBucket(buckets map[int]*model.HourBucket, hour, vehicleCount int) {
	bucket, ok := buckets[hour]
	if !ok {
		bucket = &model.HourBucket{}
		buckets[hour] = bucket
	}
	bucket.VehicleSum += vehicleCount
	bucket.SampleCount++
}
