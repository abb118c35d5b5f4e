package events

// Evento publicado no tópico "bet_finalized" após o commit do fulfillment.
type BetFinalized struct {
	BetID     int64  `json:"bet_id"`
	RequestID string `json:"request_id"`
	Result    int    `json:"result"`
	Win       bool   `json:"win"`
	Payout    int64  `json:"payout,omitempty"` // zero quando a aposta perde
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
