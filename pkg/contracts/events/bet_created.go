package events

// Evento publicado no tópico "bet_created" após o commit de createBet.
type BetCreated struct {
	BetID     int64  `json:"bet_id"`
	Player    string `json:"player"`
	Chance    int    `json:"chance"`
	Amount    int64  `json:"amount"`
	Prize     int64  `json:"prize"` // prêmio calculado na criação (informativo)
	RequestID string `json:"request_id"`
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
