package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polywhaler/polywhaler/internal/domain"
)

func TestKellyFraction_InvalidPrice(t *testing.T) {
	// Precio fuera de (0, 1) → sin apuesta, sea cual sea la probabilidad
	for _, price := range []float64{0, 1, 1.5, -0.2} {
		assert.Zero(t, domain.KellyFraction(0.60, price), "price=%v", price)
	}
}

func TestKellyFraction_NoEdge(t *testing.T) {
	// p=0.50 a precio 0.50 → numerador exactamente 0
	assert.Zero(t, domain.KellyFraction(0.50, 0.50))
	// Precio por encima de la probabilidad → edge negativo
	assert.Zero(t, domain.KellyFraction(0.54, 0.60))
}

func TestKellyFraction_GradeA_EvenMoney(t *testing.T) {
	// price=0.50 → b=1.0; p=0.57 → num = 0.57 - 0.43 = 0.14 → f = 0.14
	got := domain.KellyFraction(domain.GradeProb("A"), 0.50)
	assert.InDelta(t, 0.14, got, 1e-9)
}

func TestGradeProb_Table(t *testing.T) {
	tests := []struct {
		grade string
		want  float64
	}{
		{"A+", 0.60},
		{"A", 0.57},
		{"B", 0.54},
		{"C", 0.52},
		{"D", 0.50},
		{"F", 0.50},
		{"", 0.50},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, domain.GradeProb(tt.grade), 1e-9, "grade=%q", tt.grade)
	}
}
