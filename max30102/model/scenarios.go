package model

import (
	"fmt"
	"sort"
	"strings"
)

// Scenario bundles a description with the parameter set it applies.
type Scenario struct {
	Description string
	Parameters  map[string]any
}

// Scenarios is the built-in scenario table, keyed by name. Activity
// scenarios adjust the subject's exertion level; emergency scenarios
// name a medical condition with hard vital-sign overrides.
var Scenarios = map[string]Scenario{
	"normal_resting": {
		Description: "Healthy adult at rest",
		Parameters: map[string]any{
			"activity":  "resting",
			"condition": "normal",
		},
	},
	"walking": {
		Description: "Light exercise, moderate heart rate elevation",
		Parameters: map[string]any{
			"activity":  "walking",
			"condition": "normal",
		},
	},
	"running": {
		Description: "Heavy exercise, high heart rate and motion noise",
		Parameters: map[string]any{
			"activity":                    "running",
			"condition":                   "normal",
			"motion_artifact_probability": 0.3,
		},
	},
	"sleeping": {
		Description: "Deep sleep, lowered heart and respiratory rate",
		Parameters: map[string]any{
			"activity":  "sleeping",
			"condition": "normal",
		},
	},
	"heart_attack": {
		Description: "Myocardial infarction: bradycardia, weak irregular pulse, desaturation",
		Parameters: map[string]any{
			"activity": "resting",
		},
	},
	"extreme_anxiety": {
		Description: "Panic response: tachycardia, rapid shallow breathing",
		Parameters: map[string]any{
			"activity": "resting",
		},
	},
	"shock": {
		Description: "Circulatory shock: very high heart rate, weak pulse, severe desaturation",
		Parameters: map[string]any{
			"activity": "resting",
		},
	},
	"fear": {
		Description: "Acute fear response: elevated heart rate, suppressed variability",
		Parameters: map[string]any{
			"activity": "resting",
		},
	},
}

// ScenarioNames returns the scenario names in sorted order.
func ScenarioNames() []string {
	names := make([]string, 0, len(Scenarios))
	for name := range Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scenarioActivity maps a scenario name to the activity it implies, if
// any. Activity scenarios are named after the activity itself.
func scenarioActivity(name string) (string, bool) {
	for activity := range activityEffects {
		if strings.HasPrefix(name, activity) {
			return activity, true
		}
	}
	return "", false
}

// parameterRanges bounds the parameters a scenario or client may set.
var parameterRanges = map[string][2]float64{
	"heart_rate_bpm":      {30, 220},
	"spo2_percent":        {70, 100},
	"respiratory_rate":    {6, 60},
	"pulse_amplitude_red": {1000, 20000},
	"pulse_amplitude_ir":  {1000, 20000},
	"noise_level":         {0.01, 1.0},
}

// ValidateParameters checks bounded parameters against their
// physiological ranges and returns one message per violation.
func ValidateParameters(params map[string]any) []string {
	var violations []string
	for key, value := range params {
		bounds, ok := parameterRanges[key]
		if !ok {
			continue
		}
		f, ok := asFloat(value)
		if !ok {
			continue
		}
		if f < bounds[0] || f > bounds[1] {
			violations = append(violations,
				fmt.Sprintf("%s value %v outside valid range [%v, %v]", key, value, bounds[0], bounds[1]))
		}
	}
	sort.Strings(violations)
	return violations
}
