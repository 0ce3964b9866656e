package engine

// staking.go — pipeline de sizing sobre la matemática Kelly de domain.
//
// Orden del pipeline (importa):
//   1. rechazo por precio >= lowROIThreshold, ANTES de computar Kelly
//   2. rawStake = bankroll · kelly · kellyMultiplier
//   3. fixedStake > 0 reemplaza rawStake por completo
//   4. clamp al techo maxStake (sin piso en este paso)
//   5. rechazo si el resultado queda por debajo de minStake
//
// El fixed stake se salta la matemática Kelly pero sigue sujeto al clamp
// del máximo y al rechazo por mínimo.

import "github.com/polywhaler/polywhaler/internal/domain"

// StakePolicy son los parámetros de sizing configurados.
type StakePolicy struct {
	KellyMultiplier float64 // fracción del Kelly completo (p.ej. 0.25)
	MaxStake        float64
	MinStake        float64
	FixedStake      float64 // > 0 reemplaza el cálculo Kelly
	LowROIThreshold float64 // precios >= este umbral se descartan
}

// StakeReason clasifica por qué no se apostó.
type StakeReason string

const (
	StakeOK       StakeReason = ""
	StakeLowROI   StakeReason = "low_roi"
	StakeTooSmall StakeReason = "stake_below_min"
)

// SizeStake convierte un candidato graduado en un tamaño de apuesta.
// Devuelve (0, reason) cuando el candidato se descarta.
func SizeStake(bankroll float64, grade string, price float64, policy StakePolicy) (float64, StakeReason) {
	if price >= policy.LowROIThreshold {
		return 0, StakeLowROI
	}

	prob := domain.GradeProb(grade)
	stake := bankroll * domain.KellyFraction(prob, price) * policy.KellyMultiplier
	if policy.FixedStake > 0 {
		stake = policy.FixedStake
	}
	if stake > policy.MaxStake {
		stake = policy.MaxStake
	}
	if stake < policy.MinStake {
		return 0, StakeTooSmall
	}
	return stake, StakeOK
}
