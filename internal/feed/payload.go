// Package feed keeps the current sensor reading up to date from a push source.
package feed

import (
	"bytes"
	"encoding/json"
	"time"

	"harvest_monitor/internal/models"
)

// Payload is the nested document the sensor gateway publishes.
type Payload struct {
	NPK          NPKPayload      `json:"npk"`
	PH           NutrientPayload `json:"ph"`
	SoilMoisture MoisturePayload `json:"soil_moisture"`
	Humidity     float64         `json:"humidity"`
	Temperature  float64         `json:"temperature"`
}

type NPKPayload struct {
	Nitrogen   NutrientPayload `json:"nitrogen"`
	Phosphorus NutrientPayload `json:"phosphorus"`
	Potassium  NutrientPayload `json:"potassium"`
}

// NutrientPayload accepts either {"value":..,"raw":..} or a bare number.
type NutrientPayload struct {
	Value float64 `json:"value"`
	Raw   float64 `json:"raw"`
}

func (n *NutrientPayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] != '{' {
		return json.Unmarshal(b, &n.Value)
	}
	type plain NutrientPayload
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*n = NutrientPayload(p)
	return nil
}

type MoisturePayload struct {
	Sensor1 *float64 `json:"sensor1"`
	Sensor2 *float64 `json:"sensor2"`
	Sensor3 *float64 `json:"sensor3"`
	Average *float64 `json:"average"`
}

// ToReading maps the payload 1:1 onto a Reading stamped at. A missing moisture
// average is computed from the probes that reported.
func (p Payload) ToReading(at time.Time) models.Reading {
	m := models.SoilMoisture{
		Sensor1: p.SoilMoisture.Sensor1,
		Sensor2: p.SoilMoisture.Sensor2,
		Sensor3: p.SoilMoisture.Sensor3,
	}
	if p.SoilMoisture.Average != nil {
		m.Average = *p.SoilMoisture.Average
	} else if probes := m.Sensors(); len(probes) > 0 {
		var sum float64
		for _, v := range probes {
			sum += v
		}
		m.Average = sum / float64(len(probes))
	}

	return models.Reading{
		Nitrogen:    models.NutrientValue(p.NPK.Nitrogen),
		Phosphorus:  models.NutrientValue(p.NPK.Phosphorus),
		Potassium:   models.NutrientValue(p.NPK.Potassium),
		PH:          models.NutrientValue(p.PH),
		Moisture:    m,
		Humidity:    p.Humidity,
		Temperature: p.Temperature,
		CapturedAt:  at.UTC(),
	}
}
