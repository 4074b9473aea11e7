// Package model computes target vital signs and waveform parameters from
// subject attributes, activity level and named medical conditions.
package model

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnknownScenario is returned when a scenario name has no entry in
// the scenario table.
var ErrUnknownScenario = errors.New("unknown scenario")

// State is the full physiological parameter set driving the waveform
// generator. Field names on the wire match the simulator protocol.
type State struct {
	Age          int     `json:"age"`
	Gender       string  `json:"gender"`
	WeightKg     float64 `json:"weight_kg"`
	HeightCm     float64 `json:"height_cm"`
	Activity     string  `json:"activity"`
	Condition    string  `json:"condition"`
	FitnessLevel string  `json:"fitness_level"`

	HeartRateBPM    float64 `json:"heart_rate_bpm"`
	SpO2Percent     float64 `json:"spo2_percent"`
	RespiratoryRate int     `json:"respiratory_rate"`

	PulseAmplitudeRed int     `json:"pulse_amplitude_red"`
	PulseAmplitudeIR  int     `json:"pulse_amplitude_ir"`
	BaselineRed       int     `json:"baseline_red"`
	BaselineIR        int     `json:"baseline_ir"`
	NoiseLevel        float64 `json:"noise_level"`

	MotionArtifactProbability float64 `json:"motion_artifact_probability"`
	MotionArtifactDuration    float64 `json:"motion_artifact_duration"`

	HeartRateVariability string `json:"heart_rate_variability"`
	PulseRhythm          string `json:"pulse_rhythm"`
	PulseQuality         string `json:"pulse_quality"`
}

func defaultState() State {
	return State{
		Age:                       30,
		Gender:                    "male",
		WeightKg:                  70.0,
		HeightCm:                  175.0,
		Activity:                  "resting",
		Condition:                 "normal",
		FitnessLevel:              "average",
		HeartRateBPM:              72.0,
		SpO2Percent:               98.0,
		RespiratoryRate:           16,
		PulseAmplitudeRed:         10000,
		PulseAmplitudeIR:          9500,
		BaselineRed:               50000,
		BaselineIR:                48000,
		NoiseLevel:                0.05,
		MotionArtifactProbability: 0.1,
		MotionArtifactDuration:    0.5,
		HeartRateVariability:      "normal",
		PulseRhythm:               "regular",
		PulseQuality:              "normal",
	}
}

type activityEffect struct {
	heartRateFactor   float64
	respiratoryFactor float64
	amplitudeFactor   float64
	noiseFactor       float64
}

var activityEffects = map[string]activityEffect{
	"resting":  {1.0, 1.0, 1.0, 0.2},
	"walking":  {1.3, 1.5, 1.2, 0.5},
	"running":  {1.9, 2.0, 1.5, 0.8},
	"sleeping": {0.8, 0.6, 0.7, 0.1},
}

type genderFactor struct {
	hrOffset        float64
	amplitudeFactor float64
}

var genderFactors = map[string]genderFactor{
	"male":   {0, 1.0},
	"female": {5, 0.9},
}

type fitnessEffect struct {
	hrFactor float64
	hrv      string
}

var fitnessEffects = map[string]fitnessEffect{
	"athletic":  {0.8, "high"},
	"average":   {1.0, "normal"},
	"sedentary": {1.1, "low"},
}

// conditionEffects are hard overrides applied for named medical
// conditions after the factor-based recalculation.
var conditionEffects = map[string]State{
	"heart_attack": {
		HeartRateBPM: 45, SpO2Percent: 85, RespiratoryRate: 8,
		PulseAmplitudeRed: 5000, PulseAmplitudeIR: 4500, NoiseLevel: 0.1,
		PulseRhythm: "irregular", PulseQuality: "weak",
	},
	"extreme_anxiety": {
		HeartRateBPM: 120, SpO2Percent: 95, RespiratoryRate: 25,
		PulseAmplitudeRed: 12000, PulseAmplitudeIR: 11500, NoiseLevel: 0.15,
		HeartRateVariability: "low",
	},
	"shock": {
		HeartRateBPM: 140, SpO2Percent: 82, RespiratoryRate: 35,
		PulseAmplitudeRed: 3000, PulseAmplitudeIR: 2800, NoiseLevel: 0.25,
		PulseQuality: "weak",
	},
	"fear": {
		HeartRateBPM: 110, SpO2Percent: 96, RespiratoryRate: 22,
		PulseAmplitudeRed: 11000, PulseAmplitudeIR: 10500, NoiseLevel: 0.12,
		HeartRateVariability: "very_low",
	},
}

// Model owns a physiological state and recomputes dependent vitals when
// inputs change. Not safe for concurrent use; the owner serializes
// access.
type Model struct {
	state  State
	logger *slog.Logger
}

// Option configures a Model at construction.
type Option func(*Model)

// WithLogger sets the logger used for parameter updates.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

// New creates a model with default resting parameters.
func New(opts ...Option) *Model {
	m := &Model{
		state:  defaultState(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns a copy of the current state.
func (m *Model) Snapshot() State {
	return m.state
}

// UpdateParameters applies the given parameter map and recalculates the
// dependent vitals. Keys are matched against the known parameter set;
// unrecognized keys are logged and skipped, never fatal. Numeric values
// are accepted as any JSON number type.
func (m *Model) UpdateParameters(params map[string]any) error {
	for key, value := range params {
		if !m.applyParameter(key, value) {
			m.logger.Warn("ignoring unknown parameter", "key", key)
		}
	}
	m.recalculate()
	m.logger.Info("updated parameters", "count", len(params))
	return nil
}

// applyParameter sets a single known parameter, reporting whether the
// key (with a convertible value) was recognized.
func (m *Model) applyParameter(key string, value any) bool {
	switch key {
	case "age":
		n, ok := asInt(value)
		if ok {
			m.state.Age = n
		}
		return ok
	case "gender":
		s, ok := value.(string)
		if ok {
			m.state.Gender = s
		}
		return ok
	case "weight_kg":
		f, ok := asFloat(value)
		if ok {
			m.state.WeightKg = f
		}
		return ok
	case "height_cm":
		f, ok := asFloat(value)
		if ok {
			m.state.HeightCm = f
		}
		return ok
	case "activity":
		s, ok := value.(string)
		if ok {
			m.state.Activity = s
		}
		return ok
	case "condition":
		s, ok := value.(string)
		if ok {
			m.state.Condition = s
		}
		return ok
	case "fitness_level":
		s, ok := value.(string)
		if ok {
			m.state.FitnessLevel = s
		}
		return ok
	case "heart_rate_bpm":
		f, ok := asFloat(value)
		if ok {
			m.state.HeartRateBPM = f
		}
		return ok
	case "spo2_percent":
		f, ok := asFloat(value)
		if ok {
			m.state.SpO2Percent = f
		}
		return ok
	case "respiratory_rate":
		n, ok := asInt(value)
		if ok {
			m.state.RespiratoryRate = n
		}
		return ok
	case "pulse_amplitude_red":
		n, ok := asInt(value)
		if ok {
			m.state.PulseAmplitudeRed = n
		}
		return ok
	case "pulse_amplitude_ir":
		n, ok := asInt(value)
		if ok {
			m.state.PulseAmplitudeIR = n
		}
		return ok
	case "baseline_red":
		n, ok := asInt(value)
		if ok {
			m.state.BaselineRed = n
		}
		return ok
	case "baseline_ir":
		n, ok := asInt(value)
		if ok {
			m.state.BaselineIR = n
		}
		return ok
	case "noise_level":
		f, ok := asFloat(value)
		if ok {
			m.state.NoiseLevel = f
		}
		return ok
	case "motion_artifact_probability":
		f, ok := asFloat(value)
		if ok {
			m.state.MotionArtifactProbability = f
		}
		return ok
	case "motion_artifact_duration":
		f, ok := asFloat(value)
		if ok {
			m.state.MotionArtifactDuration = f
		}
		return ok
	case "heart_rate_variability":
		s, ok := value.(string)
		if ok {
			m.state.HeartRateVariability = s
		}
		return ok
	case "pulse_rhythm":
		s, ok := value.(string)
		if ok {
			m.state.PulseRhythm = s
		}
		return ok
	case "pulse_quality":
		s, ok := value.(string)
		if ok {
			m.state.PulseQuality = s
		}
		return ok
	}
	return false
}

// SetScenario applies a named scenario from the scenario table.
func (m *Model) SetScenario(name string) error {
	scenario, ok := Scenarios[name]
	if !ok {
		m.logger.Error("scenario not found", "name", name)
		return fmt.Errorf("%q: %w", name, ErrUnknownScenario)
	}

	if err := m.UpdateParameters(scenario.Parameters); err != nil {
		return err
	}
	m.state.Condition = name
	if activity, ok := scenarioActivity(name); ok {
		m.state.Activity = activity
	}
	m.recalculate()

	m.logger.Info("applied scenario", "name", name)
	return nil
}

// Reset restores the default resting state.
func (m *Model) Reset() {
	m.state = defaultState()
	m.recalculate()
	m.logger.Info("reset to default physiological parameters")
}

// SimulateStress interpolates the vitals between a calm and a highly
// stressed profile. Level is clamped to [0, 1].
func (m *Model) SimulateStress(level float64) {
	level = clamp(level, 0.0, 1.0)
	m.state.HeartRateBPM = 72 + (120-72)*level
	m.state.RespiratoryRate = int(16 + (25-16)*level)
	m.state.NoiseLevel = 0.05 + (0.15-0.05)*level
	m.logger.Info("applied stress response", "level", level)
}

// recalculate derives the dependent vitals from the subject attributes,
// then applies condition overrides and physiological clamps.
func (m *Model) recalculate() {
	baseHR := 72 - float64(m.state.Age-30)*0.1
	baseRR := 16 - float64(m.state.Age-30)*0.02

	gender, ok := genderFactors[m.state.Gender]
	if !ok {
		gender = genderFactors["male"]
	}
	baseHR += gender.hrOffset

	activity, ok := activityEffects[m.state.Activity]
	if !ok {
		activity = activityEffects["resting"]
	}
	m.state.HeartRateBPM = baseHR * activity.heartRateFactor
	m.state.RespiratoryRate = int(baseRR * activity.respiratoryFactor)

	fitness, ok := fitnessEffects[m.state.FitnessLevel]
	if !ok {
		fitness = fitnessEffects["average"]
	}
	m.state.HeartRateBPM *= fitness.hrFactor
	m.state.HeartRateVariability = fitness.hrv

	m.state.PulseAmplitudeRed = int(10000 * activity.amplitudeFactor * gender.amplitudeFactor)
	m.state.PulseAmplitudeIR = int(float64(m.state.PulseAmplitudeRed) * 0.95)
	m.state.NoiseLevel = 0.05 * activity.noiseFactor

	m.applyConditionEffects()
	m.clampToPhysiologicalRanges()
}

func (m *Model) applyConditionEffects() {
	effects, ok := conditionEffects[m.state.Condition]
	if !ok {
		return
	}
	m.state.HeartRateBPM = effects.HeartRateBPM
	m.state.SpO2Percent = effects.SpO2Percent
	m.state.RespiratoryRate = effects.RespiratoryRate
	m.state.PulseAmplitudeRed = effects.PulseAmplitudeRed
	m.state.PulseAmplitudeIR = effects.PulseAmplitudeIR
	m.state.NoiseLevel = effects.NoiseLevel
	if effects.HeartRateVariability != "" {
		m.state.HeartRateVariability = effects.HeartRateVariability
	}
	if effects.PulseRhythm != "" {
		m.state.PulseRhythm = effects.PulseRhythm
	}
	if effects.PulseQuality != "" {
		m.state.PulseQuality = effects.PulseQuality
	}
}

func (m *Model) clampToPhysiologicalRanges() {
	m.state.HeartRateBPM = clamp(m.state.HeartRateBPM, 30, 220)
	m.state.SpO2Percent = clamp(m.state.SpO2Percent, 70, 100)
	m.state.RespiratoryRate = clampInt(m.state.RespiratoryRate, 6, 60)
	m.state.PulseAmplitudeRed = clampInt(m.state.PulseAmplitudeRed, 1000, 20000)
	m.state.PulseAmplitudeIR = clampInt(m.state.PulseAmplitudeIR, 1000, 20000)
	m.state.NoiseLevel = clamp(m.state.NoiseLevel, 0.01, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// asFloat accepts the numeric types a JSON decode or a caller may hand
// us for a floating point parameter.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// asInt accepts the numeric types a JSON decode or a caller may hand us
// for an integer parameter.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	}
	return 0, false
}
