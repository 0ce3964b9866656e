package domain

import "encoding/json"

// Candidate es una oportunidad graduada devuelta por el scoring service.
// Es read-only dentro de un ciclo: el bot nunca la muta.
type Candidate struct {
	Entry Entry `json:"entry"`
	Grade Grade `json:"grade"`
}

// Entry describe el mercado binario y el lado favorecido.
type Entry struct {
	ConditionID string `json:"conditionId"`
	MarketTitle string `json:"marketTitle"`
	MarketSlug  string `json:"marketSlug"`
	EventTitle  string `json:"eventTitle"`
	EventSlug   string `json:"eventSlug"`
	// EventTime llega como epoch (segundos o milisegundos) o como texto
	// ISO-8601 según el feed. Se conserva tal cual y se parsea al usarla.
	EventTime      any      `json:"eventTime"`
	SharpSide      string   `json:"sharpSide"` // "A" | "B"
	SideA          Side     `json:"sideA"`
	SideB          Side     `json:"sideB"`
	SharpSidePrice *float64 `json:"sharpSidePrice"`
	// EdgeRating y ScoreDifferential vienen en el entry (no en el grade)
	// y se reenvían tal cual en el pick.
	EdgeRating        string   `json:"edgeRating"`
	ScoreDifferential *float64 `json:"scoreDifferential"`
}

// Side es un lado del mercado binario.
type Side struct {
	Label string `json:"label"`
}

// Grade es la clasificación de calidad de señal del candidato.
type Grade struct {
	Grade               string   `json:"grade"` // A+, A, B, C, D
	SignalScore         float64  `json:"signalScore"`
	EdgeRating          string   `json:"edgeRating"`
	MicrostructureScore float64  `json:"microstructureScore"`
	Warnings            []string `json:"warnings"`
}

// SharpLabel devuelve el label del lado favorecido, o "" si no hay lado.
func (e Entry) SharpLabel() string {
	switch e.SharpSide {
	case "A":
		return e.SideA.Label
	case "B":
		return e.SideB.Label
	}
	return ""
}

// EventLabel devuelve el mejor identificador humano del evento.
func (e Entry) EventLabel() string {
	for _, v := range []string{e.EventTitle, e.EventSlug, e.MarketSlug} {
		if v != "" {
			return v
		}
	}
	return "-"
}

// CandidateDebug son los contadores de diagnóstico del feed. Solo se
// loggean cuando el feed devuelve cero candidatos.
type CandidateDebug struct {
	Excluded        json.RawMessage `json:"excluded"`
	TotalEntries    int             `json:"totalEntries"`
	UpcomingEntries int             `json:"upcomingEntries"`
	DedupDropped    int             `json:"dedupDropped"`
	DedupReasons    json.RawMessage `json:"dedupReasons"`
}

// Pick es el payload que se reporta al scoring service tras colocar una
// apuesta. El POST es best-effort: su fallo nunca detiene el loop.
type Pick struct {
	ConditionID       string   `json:"conditionId"`
	MarketTitle       string   `json:"marketTitle"`
	EventTime         any      `json:"eventTime"`
	Grade             string   `json:"grade"`
	SignalScore       float64  `json:"signalScore"`
	EdgeRating        string   `json:"edgeRating"`
	ScoreDifferential *float64 `json:"scoreDifferential"`
	SharpSide         string   `json:"sharpSide"`
	Price             float64  `json:"price"`
}
