package engine

// window.go — run-window gate: restringe la actividad a un intervalo
// horario local configurado. Fuera de ventana el loop solo duerme: no
// consume rate budget ni muta el ledger.

import (
	"strconv"
	"strings"
	"time"
)

// Clock es una hora del día (HH:MM).
type Clock struct {
	Hour   int
	Minute int
}

// minuteOfDay convierte el Clock a minutos desde medianoche.
func (c Clock) minuteOfDay() int {
	return c.Hour*60 + c.Minute
}

// ParseClock acepta "HH:MM". Valores fuera de rango o texto malformado
// devuelven ok=false, lo que desactiva el gate (ambos extremos deben
// parsear para que la ventana esté activa).
func ParseClock(value string) (Clock, bool) {
	if value == "" {
		return Clock{}, false
	}
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return Clock{}, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, false
	}
	return Clock{Hour: hour, Minute: minute}, true
}

// WithinWindow compara minuto-del-día. Con start <= end la ventana es el
// intervalo inclusivo [start, end] del mismo día; con start > end la
// ventana cruza medianoche y se satisface con now >= start O now <= end.
func WithinWindow(nowHour, nowMinute int, start, end Clock) bool {
	now := nowHour*60 + nowMinute
	s, e := start.minuteOfDay(), end.minuteOfDay()
	if s <= e {
		return s <= now && now <= e
	}
	return now >= s || now <= e
}

// LocalClock devuelve hora y minuto actuales en la zona nombrada.
// Si la zona no resuelve, ok=false y el gate queda fail-open ese tick.
func LocalClock(tzName string, now time.Time) (hour, minute int, ok bool) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return 0, 0, false
	}
	local := now.In(loc)
	return local.Hour(), local.Minute(), true
}
