package domain

// PlacementRecord es la procedencia de una apuesta ya colocada.
// Se crea al colocar la orden y nunca se muta; solo se destruye al expirar.
type PlacementRecord struct {
	PlacedAt int64 `json:"placedAt"`
	// EventTime se conserva tal cual llegó del feed (epoch o texto ISO).
	// Si no parsea, la expiración degrada a la rama TTL.
	EventTime any `json:"eventTime"`
}

// BotState es el estado persistido del proceso: bankroll de simulación y
// el ledger de condition ids ya actuados.
type BotState struct {
	Bankroll float64
	Ledger   map[string]PlacementRecord
}

// StateDocument es la forma en disco del estado. Tolera dos formas legacy:
// una lista plana `placed` de condition ids, o el mapa `placedMeta` con
// procedencia. La migración ocurre solo al cargar; el archivo legacy no se
// reescribe hasta el siguiente save exitoso.
type StateDocument struct {
	Bankroll   *float64             `json:"bankroll,omitempty"`
	Placed     []string             `json:"placed"`
	PlacedMeta map[string]RawRecord `json:"placedMeta,omitempty"`
}

// RawRecord es una entrada de placedMeta sin validar: placedAt puede venir
// como número o string según la versión que escribió el archivo.
type RawRecord struct {
	PlacedAt  any `json:"placedAt"`
	EventTime any `json:"eventTime"`
}
