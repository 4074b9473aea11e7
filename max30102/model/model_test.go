package model

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestModel() *Model {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestModelDefaults(t *testing.T) {
	m := newTestModel()
	state := m.Snapshot()

	assert.Equal(t, 30, state.Age)
	assert.Equal(t, "resting", state.Activity)
	assert.Equal(t, "normal", state.Condition)
	assert.Equal(t, 72.0, state.HeartRateBPM)
	assert.Equal(t, 98.0, state.SpO2Percent)
	assert.Equal(t, 10000, state.PulseAmplitudeRed)
}

func TestModelActivityEffects(t *testing.T) {
	tests := []struct {
		activity string
		wantHR   float64
	}{
		{"resting", 72.0},
		{"walking", 93.6},
		{"running", 136.8},
		{"sleeping", 57.6},
	}
	for _, tt := range tests {
		t.Run(tt.activity, func(t *testing.T) {
			m := newTestModel()
			assert.NoError(t, m.UpdateParameters(map[string]any{"activity": tt.activity}))
			assert.InDelta(t, tt.wantHR, m.Snapshot().HeartRateBPM, 0.01)
		})
	}
}

func TestModelUnknownParameterIgnored(t *testing.T) {
	m := newTestModel()
	err := m.UpdateParameters(map[string]any{
		"activity":      "walking",
		"blood_type":    "AB",
		"shoe_size_eu":  43,
		"noise_profile": map[string]any{},
	})

	assert.NoError(t, err, "unknown keys are reported, not fatal")
	assert.Equal(t, "walking", m.Snapshot().Activity)
}

func TestModelJSONNumericCoercion(t *testing.T) {
	m := newTestModel()
	// a JSON decode hands every number over as float64
	assert.NoError(t, m.UpdateParameters(map[string]any{"age": float64(60)}))
	assert.Equal(t, 60, m.Snapshot().Age)
}

func TestModelConditionOverrides(t *testing.T) {
	tests := []struct {
		condition string
		wantHR    float64
		wantSpO2  float64
	}{
		{"heart_attack", 45, 85},
		{"extreme_anxiety", 120, 95},
		{"shock", 140, 82},
		{"fear", 110, 96},
	}
	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			m := newTestModel()
			assert.NoError(t, m.SetScenario(tt.condition))

			state := m.Snapshot()
			assert.Equal(t, tt.condition, state.Condition)
			assert.Equal(t, tt.wantHR, state.HeartRateBPM)
			assert.Equal(t, tt.wantSpO2, state.SpO2Percent)
		})
	}
}

func TestModelScenarioActivity(t *testing.T) {
	m := newTestModel()
	assert.NoError(t, m.SetScenario("running"))

	state := m.Snapshot()
	assert.Equal(t, "running", state.Activity)
	assert.Equal(t, 0.3, state.MotionArtifactProbability)
}

func TestModelUnknownScenario(t *testing.T) {
	m := newTestModel()
	err := m.SetScenario("zero_gravity")
	assert.ErrorIs(t, err, ErrUnknownScenario)

	// state untouched on failure
	assert.Equal(t, "normal", m.Snapshot().Condition)
}

func TestModelReset(t *testing.T) {
	m := newTestModel()
	assert.NoError(t, m.SetScenario("shock"))

	m.Reset()

	state := m.Snapshot()
	assert.Equal(t, "normal", state.Condition)
	assert.Equal(t, "resting", state.Activity)
	assert.InDelta(t, 72.0, state.HeartRateBPM, 0.01)
}

func TestModelPhysiologicalClamps(t *testing.T) {
	m := newTestModel()
	// 20-year-old sedentary runner: raw HR would be 73*1.9*1.1 ≈ 152.6
	assert.NoError(t, m.UpdateParameters(map[string]any{
		"age":           20,
		"activity":      "running",
		"fitness_level": "sedentary",
	}))

	state := m.Snapshot()
	assert.LessOrEqual(t, state.HeartRateBPM, 220.0)
	assert.GreaterOrEqual(t, state.HeartRateBPM, 30.0)
	assert.GreaterOrEqual(t, state.NoiseLevel, 0.01)
	assert.LessOrEqual(t, state.NoiseLevel, 1.0)
	assert.GreaterOrEqual(t, state.PulseAmplitudeRed, 1000)
	assert.LessOrEqual(t, state.PulseAmplitudeRed, 20000)
}

func TestModelGenderAdjustment(t *testing.T) {
	m := newTestModel()
	assert.NoError(t, m.UpdateParameters(map[string]any{"gender": "female"}))

	state := m.Snapshot()
	assert.InDelta(t, 77.0, state.HeartRateBPM, 0.01)
	assert.Equal(t, 9000, state.PulseAmplitudeRed)
}

func TestModelSimulateStress(t *testing.T) {
	m := newTestModel()

	m.SimulateStress(1.0)
	assert.Equal(t, 120.0, m.Snapshot().HeartRateBPM)
	assert.Equal(t, 25, m.Snapshot().RespiratoryRate)

	m.SimulateStress(0.0)
	assert.Equal(t, 72.0, m.Snapshot().HeartRateBPM)

	m.SimulateStress(5.0) // clamped to 1.0
	assert.Equal(t, 120.0, m.Snapshot().HeartRateBPM)
}

func TestScenarioNames(t *testing.T) {
	names := ScenarioNames()
	assert.Contains(t, names, "normal_resting")
	assert.Contains(t, names, "heart_attack")
	assert.Equal(t, len(Scenarios), len(names))
}

func TestValidateParameters(t *testing.T) {
	violations := ValidateParameters(map[string]any{
		"heart_rate_bpm": 500.0,
		"spo2_percent":   95.0,
		"noise_level":    -2.0,
		"free_text":      "unchecked",
	})
	assert.Len(t, violations, 2)
}
