package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/shenwilly/ubi-games/pkg/contracts/events"
)

// BetRow é a linha da projeção mantida pelo indexer. Campos de criação e de
// finalização podem chegar em qualquer ordem; a linha é o merge dos dois.
// As tags JSON seguem o shape público do bet-feed-service: o que vai para o
// cache Redis e para o broadcast é lido de lá como dto.Bet.
type BetRow struct {
	BetID       int64      `json:"betId"`
	Player      string     `json:"player"`
	Chance      int        `json:"chance"`
	Amount      int64      `json:"amount"`
	Prize       int64      `json:"prize"`
	RequestID   string     `json:"requestId"`
	Result      *int       `json:"result,omitempty"`
	Win         *bool      `json:"win,omitempty"`
	Payout      int64      `json:"payout,omitempty"`
	Finished    bool       `json:"finished"`
	CreatedTs   *time.Time `json:"createdTs,omitempty"`
	FinalizedTs *time.Time `json:"finalizedTs,omitempty"`
}

// Postgres implementa a projeção de apostas com upserts idempotentes
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// UpsertCreated aplica um BetCreated. Nunca toca nos campos de finalização:
// um BetFinalized que chegou antes não pode ser sobrescrito.
func (p *Postgres) UpsertCreated(ctx context.Context, e events.BetCreated) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bet_projection
		  (bet_id, player, chance, amount, prize, request_id, created_ts, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,NOW())
		ON CONFLICT (bet_id) DO UPDATE SET
		  player     = EXCLUDED.player,
		  chance     = EXCLUDED.chance,
		  amount     = EXCLUDED.amount,
		  prize      = EXCLUDED.prize,
		  request_id = EXCLUDED.request_id,
		  created_ts = EXCLUDED.created_ts,
		  updated_at = NOW()`,
		e.BetID, e.Player, e.Chance, e.Amount, e.Prize, e.RequestID,
		time.UnixMilli(e.TsUnixMs).UTC(),
	)
	return err
}

// UpsertFinalized aplica um BetFinalized, criando a linha se o BetCreated
// correspondente ainda não chegou
func (p *Postgres) UpsertFinalized(ctx context.Context, e events.BetFinalized) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bet_projection
		  (bet_id, request_id, result, win, payout, finished, finalized_ts, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,true,$6,NOW())
		ON CONFLICT (bet_id) DO UPDATE SET
		  result       = EXCLUDED.result,
		  win          = EXCLUDED.win,
		  payout       = EXCLUDED.payout,
		  finished     = true,
		  finalized_ts = EXCLUDED.finalized_ts,
		  updated_at   = NOW()`,
		e.BetID, e.RequestID, e.Result, e.Win, e.Payout,
		time.UnixMilli(e.TsUnixMs).UTC(),
	)
	return err
}

// Get retorna a linha corrente da projeção
func (p *Postgres) Get(ctx context.Context, betID int64) (*BetRow, error) {
	row := &BetRow{}
	var player, requestID sql.NullString
	var chance, result sql.NullInt64
	var amount, prize, payout sql.NullInt64
	var win sql.NullBool
	var createdTs, finalizedTs sql.NullTime

	err := p.db.QueryRowContext(ctx, `
		SELECT bet_id, player, chance, amount, prize, request_id,
		       result, win, payout, finished, created_ts, finalized_ts
		FROM bet_projection WHERE bet_id=$1`,
		betID).
		Scan(&row.BetID, &player, &chance, &amount, &prize, &requestID,
			&result, &win, &payout, &row.Finished, &createdTs, &finalizedTs)
	if err != nil {
		return nil, err
	}

	row.Player = player.String
	row.Chance = int(chance.Int64)
	row.Amount = amount.Int64
	row.Prize = prize.Int64
	row.RequestID = requestID.String
	row.Payout = payout.Int64
	if result.Valid {
		r := int(result.Int64)
		row.Result = &r
	}
	if win.Valid {
		w := win.Bool
		row.Win = &w
	}
	if createdTs.Valid {
		t := createdTs.Time
		row.CreatedTs = &t
	}
	if finalizedTs.Valid {
		t := finalizedTs.Time
		row.FinalizedTs = &t
	}
	return row, nil
}
