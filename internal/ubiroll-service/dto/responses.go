package dto

import "time"

type PlaceBetResponse struct {
	BetID     int64  `json:"bet_id"`
	RequestID string `json:"request_id"`
	Prize     int64  `json:"prize"`
	Status    string `json:"status"` // "PENDING"
}

type BetResponse struct {
	BetID     int64     `json:"bet_id"`
	Player    string    `json:"player"`
	Chance    int       `json:"chance"`
	Amount    int64     `json:"amount"`
	Prize     int64     `json:"prize"`
	RequestID string    `json:"request_id"`
	Result    *int      `json:"result,omitempty"`
	Win       *bool     `json:"win,omitempty"`
	Payout    int64     `json:"payout,omitempty"`
	Finished  bool      `json:"finished"`
	CreatedAt time.Time `json:"created_at"`
}

type BalanceResponse struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

type BurnResponse struct {
	Burned int64 `json:"burned"`
}

type WithdrawFeeResponse struct {
	Withdrawn int64 `json:"withdrawn"`
}
