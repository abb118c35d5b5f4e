package topics

const (
	// Ciclo de vida das apostas
	BetCreated   = "bet_created"
	BetFinalized = "bet_finalized"

	// Pedidos de aleatoriedade para o serviço VRF
	RandomnessRequested = "randomness_requested"

	// DLQs
	RandomnessRequestedDLQ = "randomness_requested_dlq"
	BetEventsDLQ           = "bet_events_dlq"
)
