package waveform

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alinrajpoot/max30102-simulator/max30102/model"
)

// fakeClock advances by a fixed step on every call.
func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(1700000000, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func newTestGenerator() *Generator {
	m := model.New(model.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(m,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSeed(42),
		WithClock(fakeClock(time.Millisecond)),
	)
}

func TestGeneratorPointFields(t *testing.T) {
	g := newTestGenerator()
	point := g.Next()

	assert.Equal(t, 1000, point.SampleRate)
	assert.Equal(t, "resting", point.Activity)
	assert.Equal(t, "normal", point.Condition)
	assert.Greater(t, point.Timestamp, 0.0)
	assert.Greater(t, point.RedPPG, 0)
	assert.Greater(t, point.IRPPG, 0)
}

func TestGeneratorVitalsNearModelTargets(t *testing.T) {
	g := newTestGenerator()

	for i := 0; i < 100; i++ {
		point := g.Next()
		// model target is 72 bpm; noise and respiratory wobble stay small
		assert.InDelta(t, 72.0, point.HeartRate, 10.0)
		assert.InDelta(t, 85.0, point.SpO2, 20.0)
	}
}

func TestGeneratorSignalStaysNearBaseline(t *testing.T) {
	g := newTestGenerator()

	for i := 0; i < 500; i++ {
		point := g.Next()
		// baseline 50000, amplitude ~10000, plus noise and artifacts
		assert.Greater(t, point.RedPPG, 20000)
		assert.Less(t, point.RedPPG, 100000)
	}
}

func TestGeneratorTimestampsMonotonic(t *testing.T) {
	g := newTestGenerator()

	prev := g.Next().Timestamp
	for i := 0; i < 10; i++ {
		current := g.Next().Timestamp
		assert.Greater(t, current, prev)
		prev = current
	}
}

func TestGeneratorDeterministicWithSeed(t *testing.T) {
	a := newTestGenerator()
	b := newTestGenerator()

	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestGeneratorSetSampleRate(t *testing.T) {
	g := newTestGenerator()

	g.SetSampleRate(400)
	assert.Equal(t, 400, g.Next().SampleRate)

	g.SetSampleRate(-5)
	assert.Equal(t, 1, g.Next().SampleRate)
}

func TestGeneratorTracksScenario(t *testing.T) {
	m := model.New(model.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	g := New(m, WithSeed(7), WithClock(fakeClock(time.Millisecond)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	assert.NoError(t, m.SetScenario("running"))
	point := g.Next()
	assert.Equal(t, "running", point.Activity)
	assert.Equal(t, "running", point.Condition)
}
