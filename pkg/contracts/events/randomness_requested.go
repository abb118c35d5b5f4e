package events

// Evento consumido pelo vrf-simulator: um pedido de aleatoriedade pendente.
// O serviço externo responde chamando POST /oracle/fulfillments no consumer.
type RandomnessRequested struct {
	RequestID string `json:"request_id"`
	Consumer  string `json:"consumer"`
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
