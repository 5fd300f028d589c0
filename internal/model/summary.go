package model

// Congestion labels derived from the flow-efficiency score.
const (
	CongestionHigh   = "High"
	CongestionMedium = "Medium"
	CongestionLow    = "Low"
)

// Busiest-location tiers by total observed vehicles.
const (
	busyHighThreshold   = 3000
	busyMediumThreshold = 1500
)

type Summary struct {
	VehiclesToday    int     `json:"vehicles_today"`
	IncidentsToday   int     `json:"incidents_today"`
	FlowEfficiency   int     `json:"flow_efficiency"`
	AvgQueueMeters   float64 `json:"avg_queue_meters"`
	TimeSavedMinutes float64 `json:"time_saved_minutes"`
	CO2SavedKg       float64 `json:"co2_saved_kg"`
	CongestionLevel  string  `json:"congestion_level"`
}

type PeakHour struct {
	Hour        int     `json:"hour"`
	AvgVehicles float64 `json:"avg_vehicles"`
	Samples     int     `json:"samples"`
}

type BusiestLocation struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	Vehicles   int    `json:"vehicles"`
	Congestion string `json:"congestion"`
}

// BusyTier classifies a location by its running vehicle total.
func BusyTier(vehicles int) string {
	switch {
	case vehicles > busyHighThreshold:
		return "high"
	case vehicles > busyMediumThreshold:
		return "medium"
	default:
		return "low"
	}
}

type SuggestionFrequency struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}
