package dto

type PlaceBetRequest struct {
	Player string `json:"player"`
	Chance int    `json:"chance"`
	Amount int64  `json:"amount"`
}

type ApproveRequest struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  int64  `json:"amount"`
}

// Callback do serviço de aleatoriedade
type FulfillmentRequest struct {
	RequestID  string `json:"request_id"`
	RandomWord uint64 `json:"random_word"`
}

// Admin
type MintRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type RegisterGameRequest struct {
	Game    string `json:"game"`
	Enabled bool   `json:"enabled"`
}

type RegisterConsumerRequest struct {
	Consumer string `json:"consumer"`
	Enabled  bool   `json:"enabled"`
}

type BurnPercentageRequest struct {
	Percentage int `json:"percentage"`
}

type WithdrawRequest struct {
	Amount int64 `json:"amount"`
}

type HouseEdgeRequest struct {
	HouseEdge int `json:"house_edge"`
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}

type OracleIdentityRequest struct {
	Identity string `json:"identity"`
}

type WithdrawTokenRequest struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}
