package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Player: obrigatório para subscribe/unsubscribe; "*" assina todas as apostas
type ClientMsg struct {
	Type   string `json:"type"`   // subscribe | unsubscribe | ping
	Player string `json:"player"` // requerido em subscribe/unsubscribe
}

// BetUpdate representa uma atualização de aposta enviada para clientes WebSocket
type BetUpdate struct {
	BetID   int64       `json:"betId"`
	Player  string      `json:"player"`
	Payload interface{} `json:"payload"`
}
