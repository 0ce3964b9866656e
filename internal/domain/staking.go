package domain

// gradeProb mapea la letra de grade a la probabilidad de acierto asumida.
// Grades desconocidos usan el valor de "D" (sin edge).
var gradeProb = map[string]float64{
	"A+": 0.60,
	"A":  0.57,
	"B":  0.54,
	"C":  0.52,
	"D":  0.50,
}

// GradeProb devuelve la probabilidad asumida para un grade.
func GradeProb(grade string) float64 {
	if p, ok := gradeProb[grade]; ok {
		return p
	}
	return 0.50
}

// KellyFraction calcula la fracción de bankroll óptima para una apuesta
// binaria a precio `price` con probabilidad estimada `edgeProb`.
//
// Fórmula: f = (b*p - q) / b, con b = 1/price - 1 y q = 1 - p.
//
// Devuelve 0 si el precio es inválido (<= 0 o >= 1) o si no hay edge
// positivo (numerador <= 0).
func KellyFraction(edgeProb, price float64) float64 {
	if price <= 0 || price >= 1 {
		return 0
	}
	b := 1.0/price - 1.0
	q := 1.0 - edgeProb
	numerator := b*edgeProb - q
	if numerator <= 0 || b <= 0 {
		return 0
	}
	return numerator / b
}
