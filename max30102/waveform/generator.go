// Package waveform synthesizes PPG sample streams from the target vitals
// provided by the physiological model.
package waveform

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/alinrajpoot/max30102-simulator/max30102/model"
)

// Point is one generated data point: the raw PPG channel values plus the
// vitals derived from them. Field names match the streaming protocol.
type Point struct {
	Timestamp  float64 `json:"timestamp"`
	RedPPG     int     `json:"red_ppg"`
	IRPPG      int     `json:"ir_ppg"`
	HeartRate  float64 `json:"heart_rate"`
	SpO2       float64 `json:"spO2"`
	SampleRate int     `json:"sample_rate"`
	Activity   string  `json:"activity"`
	Condition  string  `json:"condition"`
}

// Generator produces a continuous PPG waveform: a sin^3 systolic peak
// with a diastolic notch, modulated by respiration and degraded by
// motion artifacts and sensor noise. Not safe for concurrent use.
type Generator struct {
	model *model.Model

	sampleRate int
	timeIndex  float64
	lastUpdate time.Time
	respPhase  float64

	motionActive   bool
	motionStart    float64
	motionDuration float64

	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Generator at construction.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// WithSeed makes the noise and artifact randomness reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a generator driven by the given model.
func New(m *model.Model, opts ...Option) *Generator {
	g := &Generator{
		model:      m,
		sampleRate: 1000,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(g.now().UnixNano()))
	}
	g.lastUpdate = g.now()
	return g
}

// SetSampleRate sets the nominal sample rate reported with each point.
func (g *Generator) SetSampleRate(rate int) {
	if rate <= 0 {
		rate = 1
	}
	g.sampleRate = rate
	g.logger.Info("sample rate set", "rate_hz", rate)
}

// Next generates one data point, advancing the waveform by the wall
// clock time elapsed since the previous call.
func (g *Generator) Next() Point {
	now := g.now()
	g.timeIndex += now.Sub(g.lastUpdate).Seconds()
	g.lastUpdate = now

	state := g.model.Snapshot()
	red, ir := g.ppg(state)
	red, ir = g.motionArtifacts(state, red, ir)
	red += g.sensorNoise(state)
	ir += g.sensorNoise(state)

	hr, spo2 := g.vitals(state)

	return Point{
		Timestamp:  float64(now.UnixNano()) / float64(time.Second),
		RedPPG:     int(red),
		IRPPG:      int(ir),
		HeartRate:  hr,
		SpO2:       spo2,
		SampleRate: g.sampleRate,
		Activity:   state.Activity,
		Condition:  state.Condition,
	}
}

// ppg synthesizes the synchronized red and infrared channel values.
func (g *Generator) ppg(state model.State) (float64, float64) {
	heartHz := state.HeartRateBPM / 60.0
	respHz := float64(state.RespiratoryRate) / 60.0

	g.respPhase += 2 * math.Pi * respHz / float64(g.sampleRate)
	g.respPhase = math.Mod(g.respPhase, 2*math.Pi)

	t := g.timeIndex * heartHz * 2 * math.Pi

	// Systolic peak plus a smaller diastolic notch.
	pulse := math.Pow(math.Sin(t), 3)
	notch := 0.3 * math.Pow(math.Sin(2*t-math.Pi/4), 2)
	cardiac := pulse + notch

	// Baseline wander from respiration.
	resp := 0.1 * math.Sin(g.respPhase)

	red := float64(state.BaselineRed) +
		float64(state.PulseAmplitudeRed)*cardiac*(1+0.05*resp)
	ir := float64(state.BaselineIR) +
		float64(state.PulseAmplitudeIR)*cardiac*(1+0.05*resp)*
			(1.0+0.02*math.Sin(t*0.5))

	return red, ir
}

// motionArtifacts occasionally superimposes a gross-movement plus tremor
// component on both channels.
func (g *Generator) motionArtifacts(state model.State, red, ir float64) (float64, float64) {
	if !g.motionActive && g.rng.Float64() < state.MotionArtifactProbability {
		g.motionActive = true
		g.motionStart = g.timeIndex
		g.motionDuration = 0.1 + g.rng.Float64()*1.9
	}

	if !g.motionActive {
		return red, ir
	}

	elapsed := g.timeIndex - g.motionStart
	if elapsed >= g.motionDuration {
		g.motionActive = false
		return red, ir
	}

	artifact := (0.7*math.Sin(2*math.Pi*2.0*elapsed) +
		0.3*math.Sin(2*math.Pi*8.0*elapsed)) *
		float64(state.PulseAmplitudeRed) * 0.5

	return red + artifact, ir + artifact*1.1
}

// sensorNoise models white noise, flicker noise and mains interference.
func (g *Generator) sensorNoise(state model.State) float64 {
	amplitude := float64(state.PulseAmplitudeRed)
	white := g.rng.NormFloat64() * state.NoiseLevel * amplitude
	flicker := g.rng.NormFloat64() * state.NoiseLevel * amplitude * 0.3
	mains := 0.05 * amplitude * math.Sin(2*math.Pi*50*g.timeIndex)
	return white + flicker + mains
}

// vitals derives the reported heart rate and SpO2. Heart rate carries a
// respiratory sinus arrhythmia wobble; SpO2 comes from the
// ratio-of-ratios of the AC and DC channel components.
func (g *Generator) vitals(state model.State) (float64, float64) {
	hr := state.HeartRateBPM +
		g.rng.NormFloat64() +
		2.0*math.Sin(2*math.Pi*float64(state.RespiratoryRate)/60*g.timeIndex)

	acRed := float64(state.PulseAmplitudeRed)
	acIR := float64(state.PulseAmplitudeIR)
	dcRed := float64(state.BaselineRed)
	dcIR := float64(state.BaselineIR)

	ratio := (acRed / dcRed) / (acIR / dcIR)
	spo2 := 110.0 - 25.0*ratio
	spo2 = math.Max(70.0, math.Min(100.0, spo2))
	spo2 += g.rng.NormFloat64() * 0.5

	return round1(hr), round1(spo2)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
