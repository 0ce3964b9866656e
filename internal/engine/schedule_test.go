package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/polywhaler/polywhaler/internal/engine"
)

func TestCallWindow_AdmitCapAndAging(t *testing.T) {
	var w engine.CallWindow
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	assert.True(t, w.Admit(base, 2))
	assert.True(t, w.Admit(base.Add(time.Minute), 2))
	// Tercera llamada dentro de la hora: rechazada y no registrada
	assert.False(t, w.Admit(base.Add(2*time.Minute), 2))
	assert.Equal(t, 2, w.Len())

	// Una hora después la primera entrada salió de la ventana rodante
	assert.True(t, w.Admit(base.Add(time.Hour+time.Second), 2))
	assert.Equal(t, 2, w.Len())
}

func TestCallWindow_CapZeroDisablesLimit(t *testing.T) {
	var w engine.CallWindow
	now := time.Now()
	for i := 0; i < 500; i++ {
		assert.True(t, w.Admit(now.Add(time.Duration(i)*time.Millisecond), 0))
	}
	assert.Equal(t, 500, w.Len())
}

func TestNextBackoff_DoublesUpToMax(t *testing.T) {
	var cur float64
	want := []float64{2, 4, 8, 16, 32, 64, 120, 120}
	for _, expected := range want {
		cur = engine.NextBackoff(cur, 2, 120)
		assert.Equal(t, expected, cur)
	}
}

func TestNextBackoff_DisabledBase(t *testing.T) {
	assert.Zero(t, engine.NextBackoff(16, 0, 120))
	assert.Zero(t, engine.NextBackoff(16, -1, 120))
}

func TestJitter_RatioZeroReturnsBase(t *testing.T) {
	assert.Equal(t, 20.0, engine.Jitter(20, 0))
	assert.Equal(t, 20.0, engine.Jitter(20, -0.5))
}

func TestJitter_StaysWithinBandWithFloor(t *testing.T) {
	for i := 0; i < 200; i++ {
		got := engine.Jitter(20, 0.2)
		assert.GreaterOrEqual(t, got, 16.0)
		assert.LessOrEqual(t, got, 24.0)
	}

	// Con base pequeña el piso de 1s domina
	for i := 0; i < 200; i++ {
		got := engine.Jitter(0.5, 0.2)
		assert.GreaterOrEqual(t, got, 1.0)
	}
}
