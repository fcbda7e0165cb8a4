package models

import "time"

// NutrientValue pairs the processed value reported by a probe with its raw sensor count.
type NutrientValue struct {
	Value float64 `json:"value"`
	Raw   float64 `json:"raw"`
}

// SoilMoisture holds up to three probe percentages plus their average.
type SoilMoisture struct {
	Sensor1 *float64 `json:"sensor1,omitempty"`
	Sensor2 *float64 `json:"sensor2,omitempty"`
	Sensor3 *float64 `json:"sensor3,omitempty"`
	Average float64  `json:"average"`
}

// Sensors returns the probe values that are present, in probe order.
func (m SoilMoisture) Sensors() []float64 {
	out := make([]float64, 0, 3)
	for _, v := range []*float64{m.Sensor1, m.Sensor2, m.Sensor3} {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Reading is a snapshot of the soil and air sensors. A new Reading replaces the
// previous one wholesale.
type Reading struct {
	Nitrogen    NutrientValue `json:"nitrogen"`
	Phosphorus  NutrientValue `json:"phosphorus"`
	Potassium   NutrientValue `json:"potassium"`
	PH          NutrientValue `json:"ph"`
	Moisture    SoilMoisture  `json:"soil_moisture"`
	Humidity    float64       `json:"humidity"`    // %
	Temperature float64       `json:"temperature"` // °C
	CapturedAt  time.Time     `json:"captured_at"`
}
