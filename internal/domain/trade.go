package domain

// TradeMode indica si la orden fue simulada o real.
type TradeMode string

const (
	ModePaper TradeMode = "paper"
	ModeLive  TradeMode = "live"
)

// Trade es el snapshot inmutable de una decisión de placement.
// Se escribe una vez en el trade log y nunca se actualiza.
type Trade struct {
	ID          string    `json:"id"`
	Timestamp   int64     `json:"timestamp"`
	ConditionID string    `json:"conditionId"`
	MarketTitle string    `json:"marketTitle"`
	SharpSide   string    `json:"sharpSide"`
	Price       float64   `json:"price"`
	Grade       string    `json:"grade"`
	SignalScore float64   `json:"signalScore"`
	Stake       float64   `json:"stake"`
	Mode        TradeMode `json:"mode"`

	// Solo en el path live.
	TokenID     string `json:"tokenId,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	OrderStatus string `json:"orderStatus,omitempty"`

	// Solo cuando la ejecución live falló y se degradó a paper.
	Error           string `json:"error,omitempty"`
	CloudflareRayID string `json:"cloudflareRayId,omitempty"`
}

// OrderRequest es una orden de mercado FOK a firmar y enviar al CLOB.
type OrderRequest struct {
	TokenID    string
	AmountUSDC float64
	// Price es el precio observado del lado favorecido; se usa para
	// construir los amounts de la orden firmada.
	Price float64
}

// PlacedOrder es la respuesta del CLOB a una orden aceptada.
type PlacedOrder struct {
	CLOBOrderID string
	Status      string
	TakenAmount float64
	MadeAmount  float64
}

// BalanceAllowance es el balance/allowance reportado por el CLOB para un
// asset (COLLATERAL o CONDITIONAL).
type BalanceAllowance struct {
	Balance   float64
	Allowance float64
}

// CycleSummary resume un ciclo del poll loop para el histórico.
type CycleSummary struct {
	RawCandidates           int
	SkippedAlreadyPlaced    int
	SkippedMissingCondition int
	NewPlaced               int
}
