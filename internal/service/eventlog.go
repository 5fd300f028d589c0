package service

import (
	"math"

	"github.com/google/uuid"

	"traffic-analytics/internal/metrics"
	"traffic-analytics/internal/model"
)

// RecordIncident prepends an incident, trims the log to its cap, and counts
// it against today's daily totals.
func (a *Analytics) RecordIncident(incidentType, description, locationID string) {
	if incidentType == "" {
		incidentType = "general"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	incident := model.Incident{
		ID:          uuid.NewString(),
		Type:        incidentType,
		Description: description,
		Timestamp:   a.now(),
		LocationID:  locationID,
	}
	a.doc.Incidents = append([]model.Incident{incident}, a.doc.Incidents...)
	if len(a.doc.Incidents) > a.cfg.MaxIncidents {
		a.doc.Incidents = a.doc.Incidents[:a.cfg.MaxIncidents]
	}

	a.ensureDaily(model.DayKey(a.now())).Incidents++
	metrics.IncidentsRecorded.Inc()

	a.persist()
}

// RecordRecommendation prepends a recommendation unless an identical text was
// logged inside the dedup window: the model re-emits the same suggestion on
// every inference cycle, and a repeat of a standing recommendation is not a
// new event.
func (a *Analytics) RecordRecommendation(text, locationID string) {
	if text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for _, existing := range a.doc.Recommendations {
		if existing.Text == text && now.Sub(existing.Timestamp) < a.cfg.DedupWindow {
			metrics.RecommendationsDeduplicated.Inc()
			return
		}
	}

	rec := model.Recommendation{
		ID:         uuid.NewString(),
		Text:       text,
		Timestamp:  now,
		LocationID: locationID,
	}
	a.doc.Recommendations = append([]model.Recommendation{rec}, a.doc.Recommendations...)
	if len(a.doc.Recommendations) > a.cfg.MaxRecommendations {
		a.doc.Recommendations = a.doc.Recommendations[:a.cfg.MaxRecommendations]
	}

	a.persist()
}

// RecordEmergencyEvent logs a detected emergency vehicle and returns the
// event id so the caller can clear it once the vehicle has passed.
func (a *Analytics) RecordEmergencyEvent(vehicleType, lane, direction, locationID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	event := &model.EmergencyEvent{
		ID:         uuid.NewString(),
		Type:       vehicleType,
		Lane:       lane,
		Direction:  direction,
		Timestamp:  a.now(),
		LocationID: locationID,
	}
	a.doc.EmergencyEvents = append([]*model.EmergencyEvent{event}, a.doc.EmergencyEvents...)
	if len(a.doc.EmergencyEvents) > a.cfg.MaxEmergencyEvents {
		a.doc.EmergencyEvents = a.doc.EmergencyEvents[:a.cfg.MaxEmergencyEvents]
	}

	a.persist()
	return event.ID
}

// ClearEmergencyEvent marks the event cleared and derives the response time.
// Idempotent: unknown ids and already-cleared events report false without
// touching the document.
func (a *Analytics) ClearEmergencyEvent(eventID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, event := range a.doc.EmergencyEvents {
		if event.ID != eventID {
			continue
		}
		if event.Cleared() {
			return false
		}
		clearedAt := a.now()
		responseSeconds := int(math.Round(clearedAt.Sub(event.Timestamp).Seconds()))
		event.ClearedAt = &clearedAt
		event.ResponseTimeSeconds = &responseSeconds
		a.persist()
		return true
	}
	return false
}
