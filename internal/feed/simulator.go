package feed

import (
	"context"
	"math/rand"
	"time"
)

// Random-walk bounds for the simulated probes.
const (
	simNutrientMin  = 10.0
	simNutrientMax  = 90.0
	simNutrientStep = 5.0
	simMoistureMin  = 10.0
	simMoistureMax  = 95.0
	simMoistureStep = 3.0
	simPHMin        = 4.5
	simPHMax        = 8.5
	simPHStep       = 0.2
	simRawPerUnit   = 10.0 // raw ADC counts per reported unit
)

// Simulator is a Source that random-walks plausible readings; used when no
// gateway is configured.
type Simulator struct {
	tick time.Duration
	rnd  *rand.Rand
	cur  simValues
}

type simValues struct {
	n, p, k, ph           float64
	m1, m2, m3            float64
	humidity, temperature float64
}

func NewSimulator(tick time.Duration, seed int64) *Simulator {
	if tick <= 0 {
		tick = 3 * time.Second
	}
	return &Simulator{
		tick: tick,
		rnd:  rand.New(rand.NewSource(seed)),
		cur: simValues{
			n: 35, p: 42, k: 28, ph: 6.5,
			m1: 63, m2: 65, m3: 67,
			humidity: 70, temperature: 27,
		},
	}
}

// Subscribe emits the starting values immediately, then a step per tick.
func (s *Simulator) Subscribe(ctx context.Context, emit func(Payload)) error {
	t := time.NewTicker(s.tick)
	defer t.Stop()

	emit(s.payload())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.step()
			emit(s.payload())
		}
	}
}

func (s *Simulator) step() {
	v := &s.cur
	v.n = s.walk(v.n, simNutrientStep, simNutrientMin, simNutrientMax)
	v.p = s.walk(v.p, simNutrientStep, simNutrientMin, simNutrientMax)
	v.k = s.walk(v.k, simNutrientStep, simNutrientMin, simNutrientMax)
	v.ph = s.walk(v.ph, simPHStep, simPHMin, simPHMax)
	v.m1 = s.walk(v.m1, simMoistureStep, simMoistureMin, simMoistureMax)
	v.m2 = s.walk(v.m2, simMoistureStep, simMoistureMin, simMoistureMax)
	v.m3 = s.walk(v.m3, simMoistureStep, simMoistureMin, simMoistureMax)
	v.humidity = s.walk(v.humidity, 2, 30, 100)
	v.temperature = s.walk(v.temperature, 0.5, 15, 40)
}

// walk moves v by up to ±step/2 and clamps it to [lo, hi].
func (s *Simulator) walk(v, step, lo, hi float64) float64 {
	return clamp(v+(s.rnd.Float64()-0.5)*step, lo, hi)
}

func (s *Simulator) payload() Payload {
	v := s.cur
	m1, m2, m3 := v.m1, v.m2, v.m3
	avg := (m1 + m2 + m3) / 3
	return Payload{
		NPK: NPKPayload{
			Nitrogen:   NutrientPayload{Value: v.n, Raw: v.n * simRawPerUnit},
			Phosphorus: NutrientPayload{Value: v.p, Raw: v.p * simRawPerUnit},
			Potassium:  NutrientPayload{Value: v.k, Raw: v.k * simRawPerUnit},
		},
		PH:           NutrientPayload{Value: v.ph, Raw: v.ph * simRawPerUnit},
		SoilMoisture: MoisturePayload{Sensor1: &m1, Sensor2: &m2, Sensor3: &m3, Average: &avg},
		Humidity:     v.humidity,
		Temperature:  v.temperature,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
