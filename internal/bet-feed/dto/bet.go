package dto

// Bet é a visão pública de uma aposta servida pelo feed
type Bet struct {
	BetID       int64  `json:"betId"`
	Player      string `json:"player"`
	Chance      int    `json:"chance"`
	Amount      int64  `json:"amount"`
	Prize       int64  `json:"prize"`
	RequestID   string `json:"requestId"`
	Result      *int   `json:"result,omitempty"`
	Win         *bool  `json:"win,omitempty"`
	Payout      int64  `json:"payout,omitempty"`
	Finished    bool   `json:"finished"`
	CreatedTs   string `json:"createdTs,omitempty"`
	FinalizedTs string `json:"finalizedTs,omitempty"`
}

// Stats agrega o volume do feed de apostas
type Stats struct {
	TotalBets   int64 `json:"totalBets"`
	OpenBets    int64 `json:"openBets"`
	TotalWagers int64 `json:"totalWagers"`
	TotalPayout int64 `json:"totalPayout"`
	Wins        int64 `json:"wins"`
}
