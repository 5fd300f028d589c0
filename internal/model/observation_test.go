package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertDecodesPlainString(t *testing.T) {
	var alert Alert
	require.NoError(t, json.Unmarshal([]byte(`"heavy congestion northbound"`), &alert))

	assert.Equal(t, "general", alert.Type)
	assert.Equal(t, "heavy congestion northbound", alert.Message)
}

func TestAlertDecodesStructuredForm(t *testing.T) {
	var alert Alert
	require.NoError(t, json.Unmarshal([]byte(`{"type":"accident","message":"stalled truck"}`), &alert))

	assert.Equal(t, "accident", alert.Type)
	assert.Equal(t, "stalled truck", alert.Message)
}

func TestAlertDefaultsMissingType(t *testing.T) {
	var alert Alert
	require.NoError(t, json.Unmarshal([]byte(`{"message":"unknown hazard"}`), &alert))

	assert.Equal(t, "general", alert.Type)
}

func TestObservationDecodesMixedAlerts(t *testing.T) {
	payload := `{
		"lanes": [{"lane_id": "n1", "vehicle_types": {"car": 3}}],
		"alerts": ["plain alert", {"type": "emergency", "message": "structured alert"}]
	}`

	var obs Observation
	require.NoError(t, json.Unmarshal([]byte(payload), &obs))

	require.Len(t, obs.Alerts, 2)
	assert.Equal(t, "plain alert", obs.Alerts[0].Message)
	assert.Equal(t, "emergency", obs.Alerts[1].Type)
}

func TestVehicleCountsSumAcrossLanes(t *testing.T) {
	obs := Observation{Lanes: []LaneObservation{
		{VehicleTypes: VehicleCounts{Car: 3, Truck: 1}},
		{VehicleTypes: VehicleCounts{Bus: 2, Motorcycle: 1}},
	}}

	total := obs.VehicleCounts()
	assert.Equal(t, VehicleCounts{Car: 3, Truck: 1, Bus: 2, Motorcycle: 1}, total)
	assert.Equal(t, 7, total.Total())
}

func TestUntypedLaneCountsAsCars(t *testing.T) {
	obs := Observation{Lanes: []LaneObservation{{VehicleCount: 5}}}
	assert.Equal(t, VehicleCounts{Car: 5}, obs.VehicleCounts())
}

func TestNormalizeDefaultsNegativeFields(t *testing.T) {
	obs := Observation{
		Pedestrians:    -3,
		AvgWaitSeconds: -10,
		Lanes: []LaneObservation{{
			VehicleCount:      -2,
			QueueLengthMeters: -7,
			VehicleTypes:      VehicleCounts{Car: -1, Truck: -1},
		}},
	}
	obs.Normalize()

	assert.Zero(t, obs.Pedestrians)
	assert.Zero(t, obs.AvgWaitSeconds)
	assert.Zero(t, obs.Lanes[0].VehicleCount)
	assert.Zero(t, obs.Lanes[0].QueueLengthMeters)
	assert.Zero(t, obs.Lanes[0].VehicleTypes.Car)
}

func TestAvgQueueLengthIgnoresEmptyLanes(t *testing.T) {
	obs := Observation{Lanes: []LaneObservation{
		{QueueLengthMeters: 30},
		{QueueLengthMeters: 0},
		{QueueLengthMeters: 10},
	}}

	assert.Equal(t, 20.0, obs.AvgQueueLengthMeters())
	assert.Zero(t, Observation{}.AvgQueueLengthMeters())
}
