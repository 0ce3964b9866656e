package engine

// schedule.go — rate cap horario, backoff exponencial y jitter.
//
// El rate cap limita las llamadas salientes al scoring service en una
// ventana rodante de una hora. El backoff es un único escalar que se
// duplica en cada fallo de ciclo y se consume exactamente una vez al
// principio del ciclo siguiente.

import (
	"math/rand/v2"
	"time"
)

const rollingWindow = time.Hour

// CallWindow es la secuencia ordenada de timestamps de llamadas salientes.
// Solo vive en memoria; nunca se persiste.
type CallWindow struct {
	stamps []time.Time
}

// Admit descarta las entradas con más de una hora y admite la llamada si
// quedan menos de capPerHour. Un cap <= 0 desactiva el límite. Si se
// admite, el timestamp se registra.
func (w *CallWindow) Admit(now time.Time, capPerHour int) bool {
	kept := w.stamps[:0]
	for _, t := range w.stamps {
		if now.Sub(t) < rollingWindow {
			kept = append(kept, t)
		}
	}
	w.stamps = kept

	if capPerHour > 0 && len(w.stamps) >= capPerHour {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Len devuelve las llamadas registradas todavía dentro de la ventana.
func (w *CallWindow) Len() int {
	return len(w.stamps)
}

// NextBackoff calcula el backoff tras un fallo de ciclo: base en el primer
// fallo, el doble del actual después, con techo en max. Una base <= 0
// desactiva el backoff.
func NextBackoff(current, base, max float64) float64 {
	if base <= 0 {
		return 0
	}
	next := base
	if current > 0 {
		next = current * 2
	}
	if next > max {
		next = max
	}
	return next
}

// Jitter perturba un sleep con ruido uniforme ±base·ratio, con piso de 1s,
// para evitar sincronización thundering-herd contra el servicio externo.
// Con ratio <= 0 devuelve base sin tocar.
func Jitter(base, ratio float64) float64 {
	if ratio <= 0 {
		return base
	}
	delta := base * ratio
	jittered := base + (rand.Float64()*2-1)*delta
	if jittered < 1.0 {
		return 1.0
	}
	return jittered
}
