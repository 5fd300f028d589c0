package model

import "encoding/json"

// VehicleCounts breaks one measurement down by vehicle class.
type VehicleCounts struct {
	Car        int `json:"car"`
	Truck      int `json:"truck"`
	Bus        int `json:"bus"`
	Motorcycle int `json:"motorcycle"`
}

func (v VehicleCounts) Total() int {
	return v.Car + v.Truck + v.Bus + v.Motorcycle
}

type LaneObservation struct {
	LaneID            string        `json:"lane_id"`
	Direction         string        `json:"direction"`
	VehicleCount      int           `json:"vehicle_count"`
	VehicleTypes      VehicleCounts `json:"vehicle_types"`
	QueueLengthMeters float64       `json:"queue_length_meters"`
	Congestion        string        `json:"congestion"`
}

// Alert is the canonical shape for pipeline alerts. The vision pipeline emits
// either a plain string or a {type,message} object per alert; both decode into
// this one form at the ingestion boundary.
type Alert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (a *Alert) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var message string
		if err := json.Unmarshal(data, &message); err != nil {
			return err
		}
		a.Type = "general"
		a.Message = message
		return nil
	}

	var structured struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	if structured.Type == "" {
		structured.Type = "general"
	}
	a.Type = structured.Type
	a.Message = structured.Message
	return nil
}

type EmergencyVehicle struct {
	Type      string `json:"type"`
	LaneID    string `json:"lane_id"`
	Direction string `json:"direction"`
}

// Observation is one inference cycle's worth of traffic state from the
// detection pipeline.
type Observation struct {
	LocationID              string             `json:"location_id"`
	LocationName            string             `json:"location_name,omitempty"`
	Lanes                   []LaneObservation  `json:"lanes"`
	Pedestrians             int                `json:"pedestrians"`
	AvgWaitSeconds          float64            `json:"avg_wait_seconds"`
	Alerts                  []Alert            `json:"alerts"`
	OptimizationSuggestions []string           `json:"optimization_suggestions"`
	EmergencyVehicles       []EmergencyVehicle `json:"emergency_vehicles"`
}

// Normalize defaults invalid fields to zero values instead of rejecting the
// event. Losing a field is acceptable; dropping the whole cycle is not.
func (o *Observation) Normalize() {
	if o.Pedestrians < 0 {
		o.Pedestrians = 0
	}
	if o.AvgWaitSeconds < 0 {
		o.AvgWaitSeconds = 0
	}
	for i := range o.Lanes {
		lane := &o.Lanes[i]
		if lane.VehicleCount < 0 {
			lane.VehicleCount = 0
		}
		if lane.QueueLengthMeters < 0 {
			lane.QueueLengthMeters = 0
		}
		if lane.VehicleTypes.Car < 0 {
			lane.VehicleTypes.Car = 0
		}
		if lane.VehicleTypes.Truck < 0 {
			lane.VehicleTypes.Truck = 0
		}
		if lane.VehicleTypes.Bus < 0 {
			lane.VehicleTypes.Bus = 0
		}
		if lane.VehicleTypes.Motorcycle < 0 {
			lane.VehicleTypes.Motorcycle = 0
		}
	}
}

// VehicleCounts sums the per-class counts across all lanes. Lanes that report
// only an untyped vehicle_count are counted as cars.
func (o Observation) VehicleCounts() VehicleCounts {
	var total VehicleCounts
	for _, lane := range o.Lanes {
		if lane.VehicleTypes.Total() == 0 && lane.VehicleCount > 0 {
			total.Car += lane.VehicleCount
			continue
		}
		total.Car += lane.VehicleTypes.Car
		total.Truck += lane.VehicleTypes.Truck
		total.Bus += lane.VehicleTypes.Bus
		total.Motorcycle += lane.VehicleTypes.Motorcycle
	}
	return total
}

// AvgQueueLengthMeters is the mean queue length across lanes reporting one.
func (o Observation) AvgQueueLengthMeters() float64 {
	var sum float64
	var count int
	for _, lane := range o.Lanes {
		if lane.QueueLengthMeters > 0 {
			sum += lane.QueueLengthMeters
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
