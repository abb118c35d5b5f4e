package repo

import (
	"context"
	"database/sql"

	"github.com/shenwilly/ubi-games/internal/bet-feed/dto"
)

type ReadRepo struct {
	DB *sql.DB
}

const betColumns = `
	bet_id, COALESCE(player,''), COALESCE(chance,0), COALESCE(amount,0),
	COALESCE(prize,0), COALESCE(request_id,''), result, win,
	COALESCE(payout,0), finished,
	COALESCE(to_char(created_ts AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), ''),
	COALESCE(to_char(finalized_ts AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), '')`

func (r *ReadRepo) GetBet(ctx context.Context, betID int64) (*dto.Bet, error) {
	const q = `SELECT ` + betColumns + ` FROM bet_projection WHERE bet_id = $1;`
	b, err := scanBet(r.DB.QueryRowContext(ctx, q, betID))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *ReadRepo) ListByPlayer(ctx context.Context, player string, limit int) ([]dto.Bet, error) {
	const q = `
		SELECT ` + betColumns + `
		FROM bet_projection
		WHERE player = $1
		ORDER BY bet_id DESC
		LIMIT $2;
	`
	rows, err := r.DB.QueryContext(ctx, q, player, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *ReadRepo) ListRecent(ctx context.Context, limit int) ([]dto.Bet, error) {
	const q = `
		SELECT ` + betColumns + `
		FROM bet_projection
		ORDER BY bet_id DESC
		LIMIT $1;
	`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *ReadRepo) Stats(ctx context.Context) (*dto.Stats, error) {
	const q = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE NOT finished),
		       COALESCE(SUM(amount), 0),
		       COALESCE(SUM(payout), 0),
		       COUNT(*) FILTER (WHERE win)
		FROM bet_projection;
	`
	var s dto.Stats
	err := r.DB.QueryRowContext(ctx, q).
		Scan(&s.TotalBets, &s.OpenBets, &s.TotalWagers, &s.TotalPayout, &s.Wins)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(row rowScanner) (*dto.Bet, error) {
	var b dto.Bet
	var result sql.NullInt64
	var win sql.NullBool
	err := row.Scan(&b.BetID, &b.Player, &b.Chance, &b.Amount, &b.Prize,
		&b.RequestID, &result, &win, &b.Payout, &b.Finished,
		&b.CreatedTs, &b.FinalizedTs)
	if err != nil {
		return nil, err
	}
	if result.Valid {
		v := int(result.Int64)
		b.Result = &v
	}
	if win.Valid {
		v := win.Bool
		b.Win = &v
	}
	return &b, nil
}
