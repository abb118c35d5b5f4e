package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shenwilly/ubi-games/internal/oracle"
	"github.com/shenwilly/ubi-games/internal/store"
	"github.com/shenwilly/ubi-games/internal/token"
	"github.com/shenwilly/ubi-games/internal/vault"
)

var (
	ErrGamePaused    = errors.New("game is paused")
	ErrInvalidAmount = errors.New("bet amount must be greater than 0")
	ErrInvalidChance = errors.New("winning chance must be greater than 0")
	ErrChanceTooHigh = errors.New("winning chance must be lower")
	ErrPrizeTooHigh  = errors.New("prize must be lower than maxPrize")
	ErrNotOracle     = errors.New("sender must be oracle")
	ErrNotOwner      = errors.New("caller is not the owner")

	// ErrBetNotFound sinaliza um fulfillment sem aposta aberta correspondente.
	// Nunca deve acontecer com o bookkeeping do oracle correto: indica bug de
	// correlação, e o fulfillment inteiro é abortado.
	ErrBetNotFound = errors.New("no open bet for request id")
)

// Bet é o registro de uma aposta. Result/Win só têm significado após Finished.
type Bet struct {
	ID        int64
	Player    string
	Chance    int
	Amount    int64
	Prize     int64 // calculado na criação, informativo
	RequestID string
	Result    *int
	Win       *bool
	Payout    int64
	Finished  bool
	CreatedAt time.Time
}

// Engine é a máquina de estados das apostas (Pending → Finalized): valida os
// parâmetros da aposta, movimenta fundos pelo Vault, pede aleatoriedade ao
// Oracle e finaliza quando a palavra aleatória chega.
type Engine struct {
	Owner    string // identidade admin
	Identity string // identidade do engine perante vault e oracle

	db     *sql.DB
	vault  *vault.Vault
	oracle *oracle.Oracle
	tokens *token.Ledger
}

func New(owner, identity string, db *sql.DB, v *vault.Vault, o *oracle.Oracle, t *token.Ledger) *Engine {
	return &Engine{
		Owner:    owner,
		Identity: identity,
		db:       db,
		vault:    v,
		oracle:   o,
		tokens:   t,
	}
}

// CalculatePrize calcula o prêmio de uma aposta: amount * (100 - houseEdge) / chance.
// Divisão inteira com truncamento; chance > 0 é garantido na criação.
func CalculatePrize(chance int, amount int64, houseEdge int) int64 {
	return amount * int64(100-houseEdge) / int64(chance)
}

// CreateBet valida, deposita a aposta no vault, pede aleatoriedade e grava a
// aposta pendente. Tudo em uma transação: qualquer falha desfaz inclusive o
// depósito no vault.
func (e *Engine) CreateBet(ctx context.Context, player string, chance int, amount int64) (*Bet, error) {
	bet := &Bet{Player: player, Chance: chance, Amount: amount}

	err := store.WithTx(ctx, e.db, func(q store.Queryable) error {
		st, err := e.loadState(ctx, q)
		if err != nil {
			return err
		}

		if st.paused {
			return ErrGamePaused
		}
		if amount <= 0 {
			return ErrInvalidAmount
		}
		if chance <= 0 {
			return ErrInvalidChance
		}
		if chance >= 100-st.houseEdge {
			return ErrChanceTooHigh
		}

		bet.Prize = CalculatePrize(chance, amount, st.houseEdge)
		maxPrize, err := e.MaxPrize(ctx, q)
		if err != nil {
			return err
		}
		if bet.Prize >= maxPrize {
			return ErrPrizeTooHigh
		}

		if err := e.vault.GameDeposit(ctx, q, e.Identity, player, amount); err != nil {
			return err
		}

		requestID, err := e.oracle.RequestRandomNumber(ctx, q, e.Identity)
		if err != nil {
			return err
		}
		bet.RequestID = requestID

		return q.QueryRowContext(ctx, `
			INSERT INTO bets (player, chance, amount, prize, request_id)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id, created_at`,
			player, chance, amount, bet.Prize, requestID).
			Scan(&bet.ID, &bet.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return bet, nil
}

// FinalizeRandomness implementa oracle.Consumer: chega aqui pelo fulfillment
// do oracle, dentro da transação dele
func (e *Engine) FinalizeRandomness(ctx context.Context, q store.Queryable, requestID string, randomWord uint64) error {
	_, err := e.finalizeBet(ctx, q, requestID, randomWord)
	return err
}

// FinalizeBet é a entrada direta equivalente: só a identidade do oracle pode
// chamar. Usada quando o fulfillment não passa pelo dispatch in-process.
func (e *Engine) FinalizeBet(ctx context.Context, caller, requestID string, randomWord uint64) (*Bet, error) {
	var bet *Bet
	err := store.WithTx(ctx, e.db, func(q store.Queryable) error {
		st, err := e.loadState(ctx, q)
		if err != nil {
			return err
		}
		if caller != st.oracleIdentity {
			return ErrNotOracle
		}
		bet, err = e.finalizeBet(ctx, q, requestID, randomWord)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bet, nil
}

// finalizeBet resolve a aposta aberta correlacionada: result = word mod 100,
// win = result <= chance. O payout usa o houseEdge corrente no momento da
// finalização, não o da criação; o campo prize guarda a cotação de criação.
func (e *Engine) finalizeBet(ctx context.Context, q store.Queryable, requestID string, randomWord uint64) (*Bet, error) {
	bet := &Bet{RequestID: requestID, Finished: true}
	err := q.QueryRowContext(ctx, `
		SELECT id, player, chance, amount, prize, created_at
		FROM bets WHERE request_id=$1 AND NOT finished
		FOR UPDATE`,
		requestID).
		Scan(&bet.ID, &bet.Player, &bet.Chance, &bet.Amount, &bet.Prize, &bet.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, err
	}

	result := int(randomWord % 100)
	win := result <= bet.Chance
	bet.Result = &result
	bet.Win = &win

	if win {
		st, err := e.loadState(ctx, q)
		if err != nil {
			return nil, err
		}
		bet.Payout = CalculatePrize(bet.Chance, bet.Amount, st.houseEdge)
		if err := e.vault.GameWithdraw(ctx, q, e.Identity, bet.Player, bet.Payout); err != nil {
			return nil, err
		}
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE bets SET result=$1, win=$2, payout=$3, finished=true WHERE id=$4`,
		result, win, bet.Payout, bet.ID); err != nil {
		return nil, err
	}
	return bet, nil
}

// MaxPrize é o teto dinâmico de prêmio: 1% do saldo corrente do vault,
// recalculado a cada chamada
func (e *Engine) MaxPrize(ctx context.Context, q store.Queryable) (int64, error) {
	balance, err := e.vault.UbiBalance(ctx, q)
	if err != nil {
		return 0, err
	}
	return balance / 100, nil
}

// GetBet busca uma aposta pelo id
func (e *Engine) GetBet(ctx context.Context, id int64) (*Bet, error) {
	return e.getBet(ctx, `WHERE id=$1`, id)
}

// GetBetByRequestID busca uma aposta pelo requestId de correlação
func (e *Engine) GetBetByRequestID(ctx context.Context, requestID string) (*Bet, error) {
	return e.getBet(ctx, `WHERE request_id=$1`, requestID)
}

func (e *Engine) getBet(ctx context.Context, where string, arg any) (*Bet, error) {
	bet := &Bet{}
	var result sql.NullInt64
	var win sql.NullBool
	err := e.db.QueryRowContext(ctx, `
		SELECT id, player, chance, amount, prize, request_id, result, win, payout, finished, created_at
		FROM bets `+where,
		arg).
		Scan(&bet.ID, &bet.Player, &bet.Chance, &bet.Amount, &bet.Prize, &bet.RequestID,
			&result, &win, &bet.Payout, &bet.Finished, &bet.CreatedAt)
	if err != nil {
		return nil, err
	}
	if result.Valid {
		r := int(result.Int64)
		bet.Result = &r
	}
	if win.Valid {
		w := win.Bool
		bet.Win = &w
	}
	return bet, nil
}

// OpenBetCount conta apostas ainda pendentes (exposto como gauge)
func (e *Engine) OpenBetCount(ctx context.Context) (int64, error) {
	var n int64
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bets WHERE NOT finished`).Scan(&n)
	return n, err
}

// HouseEdge retorna o houseEdge corrente
func (e *Engine) HouseEdge(ctx context.Context) (int, error) {
	var edge int
	err := e.db.QueryRowContext(ctx, `SELECT house_edge FROM engine_state WHERE id=1`).Scan(&edge)
	return edge, err
}

// SetOracle troca a identidade autorizada a finalizar apostas (admin)
func (e *Engine) SetOracle(ctx context.Context, caller, identity string) error {
	return e.adminSet(ctx, caller, `UPDATE engine_state SET oracle_identity=$1 WHERE id=1`, identity)
}

// SetHouseEdge ajusta a vantagem estrutural da casa (admin)
func (e *Engine) SetHouseEdge(ctx context.Context, caller string, houseEdge int) error {
	if houseEdge < 0 || houseEdge > 99 {
		return fmt.Errorf("house edge out of range: %d", houseEdge)
	}
	return e.adminSet(ctx, caller, `UPDATE engine_state SET house_edge=$1 WHERE id=1`, houseEdge)
}

// SetGamePause liga/desliga a criação de novas apostas (admin)
func (e *Engine) SetGamePause(ctx context.Context, caller string, paused bool) error {
	return e.adminSet(ctx, caller, `UPDATE engine_state SET paused=$1 WHERE id=1`, paused)
}

// SetUbi troca o símbolo do token legado gravado no estado do engine (admin)
func (e *Engine) SetUbi(ctx context.Context, caller, tokenSymbol string) error {
	return e.adminSet(ctx, caller, `UPDATE engine_state SET ubi_token=$1 WHERE id=1`, tokenSymbol)
}

// WithdrawToken varre tokens parados na conta do engine para o owner
// (escape hatch herdado da origem)
func (e *Engine) WithdrawToken(ctx context.Context, caller, tokenSymbol string, amount int64) error {
	if caller != e.Owner {
		return ErrNotOwner
	}
	return store.WithTx(ctx, e.db, func(q store.Queryable) error {
		return e.tokens.Transfer(ctx, q, tokenSymbol, e.Identity, e.Owner, amount)
	})
}

func (e *Engine) adminSet(ctx context.Context, caller, query string, arg any) error {
	if caller != e.Owner {
		return ErrNotOwner
	}
	return store.WithTx(ctx, e.db, func(q store.Queryable) error {
		_, err := q.ExecContext(ctx, query, arg)
		return err
	})
}

type engineState struct {
	houseEdge      int
	paused         bool
	oracleIdentity string
}

func (e *Engine) loadState(ctx context.Context, q store.Queryable) (engineState, error) {
	var st engineState
	err := q.QueryRowContext(ctx,
		`SELECT house_edge, paused, oracle_identity FROM engine_state WHERE id=1`).
		Scan(&st.houseEdge, &st.paused, &st.oracleIdentity)
	if err != nil {
		return engineState{}, fmt.Errorf("load engine state: %w", err)
	}
	return st, nil
}
