package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shenwilly/ubi-games/internal/store"
	"github.com/shenwilly/ubi-games/internal/token"
)

var (
	ErrUnauthorized   = errors.New("caller is not a registered game")
	ErrNotOwner       = errors.New("caller is not the owner")
	ErrNothingToBurn  = errors.New("nothing to burn")
	ErrInvalidPercent = errors.New("burn percentage must be between 0 and 100")
	ErrInvalidAmount  = errors.New("amount must be greater than 0")
)

// Vault é o custodiante do token de aposta: guarda o saldo apostado, autoriza
// jogos registrados a movimentar fundos e acumula a fração de burn de cada
// depósito. Não conhece apostas nem aleatoriedade.
type Vault struct {
	Owner    string // identidade admin
	Account  string // conta do vault no ledger de tokens
	BurnSink string // conta destino do burn

	tokens *token.Ledger
}

func New(owner string, tokens *token.Ledger) *Vault {
	return &Vault{
		Owner:    owner,
		Account:  "vault",
		BurnSink: "burn",
		tokens:   tokens,
	}
}

type state struct {
	ubiToken       string
	burnPercentage int
	pendingBurn    int64
}

// SetRegisteredGame liga/desliga a autorização de um jogo (admin)
func (v *Vault) SetRegisteredGame(ctx context.Context, q store.Queryable, caller, game string, enabled bool) error {
	if caller != v.Owner {
		return ErrNotOwner
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO vault_games (game, enabled) VALUES ($1,$2)
		ON CONFLICT (game) DO UPDATE SET enabled = EXCLUDED.enabled`,
		game, enabled)
	return err
}

// GameDeposit recebe a aposta de payer via transferFrom e acumula a fração de
// burn do depósito. O skim usa divisão inteira: o resto fica no saldo geral do
// vault, nunca no balde de burn.
func (v *Vault) GameDeposit(ctx context.Context, q store.Queryable, caller, payer string, amount int64) error {
	if err := v.requireRegistered(ctx, q, caller); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	st, err := v.lockState(ctx, q)
	if err != nil {
		return err
	}

	if err := v.tokens.TransferFrom(ctx, q, st.ubiToken, v.Account, payer, v.Account, amount); err != nil {
		return err
	}

	skim := amount * int64(st.burnPercentage) / 100
	if skim > 0 {
		if _, err := q.ExecContext(ctx,
			`UPDATE vault_state SET pending_burn = pending_burn + $1 WHERE id=1`, skim); err != nil {
			return err
		}
	}
	return nil
}

// GameWithdraw paga payee a partir do saldo do vault
func (v *Vault) GameWithdraw(ctx context.Context, q store.Queryable, caller, payee string, amount int64) error {
	if err := v.requireRegistered(ctx, q, caller); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	st, err := v.lockState(ctx, q)
	if err != nil {
		return err
	}
	return v.tokens.Transfer(ctx, q, st.ubiToken, v.Account, payee, amount)
}

// BurnUbi envia o acumulado de burn para o sink e zera o acumulador.
// Qualquer identidade pode disparar.
func (v *Vault) BurnUbi(ctx context.Context, q store.Queryable) (int64, error) {
	st, err := v.lockState(ctx, q)
	if err != nil {
		return 0, err
	}
	if st.pendingBurn == 0 {
		return 0, ErrNothingToBurn
	}

	if err := v.tokens.Transfer(ctx, q, st.ubiToken, v.Account, v.BurnSink, st.pendingBurn); err != nil {
		return 0, err
	}
	if _, err := q.ExecContext(ctx, `UPDATE vault_state SET pending_burn = 0 WHERE id=1`); err != nil {
		return 0, err
	}
	return st.pendingBurn, nil
}

// SetBurnPercentage ajusta a fração de burn dos próximos depósitos (admin)
func (v *Vault) SetBurnPercentage(ctx context.Context, q store.Queryable, caller string, percentage int) error {
	if caller != v.Owner {
		return ErrNotOwner
	}
	if percentage < 0 || percentage > 100 {
		return ErrInvalidPercent
	}
	_, err := q.ExecContext(ctx, `UPDATE vault_state SET burn_percentage = $1 WHERE id=1`, percentage)
	return err
}

// SetUbi troca o token custodiado (admin, escape hatch)
func (v *Vault) SetUbi(ctx context.Context, q store.Queryable, caller, tokenSymbol string) error {
	if caller != v.Owner {
		return ErrNotOwner
	}
	_, err := q.ExecContext(ctx, `UPDATE vault_state SET ubi_token = $1 WHERE id=1`, tokenSymbol)
	return err
}

// WithdrawUbi saca saldo do vault para o owner (admin, escape hatch)
func (v *Vault) WithdrawUbi(ctx context.Context, q store.Queryable, caller string, amount int64) error {
	if caller != v.Owner {
		return ErrNotOwner
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	st, err := v.lockState(ctx, q)
	if err != nil {
		return err
	}
	return v.tokens.Transfer(ctx, q, st.ubiToken, v.Account, v.Owner, amount)
}

// UbiBalance retorna o saldo custodiado corrente
func (v *Vault) UbiBalance(ctx context.Context, q store.Queryable) (int64, error) {
	st, err := v.readState(ctx, q)
	if err != nil {
		return 0, err
	}
	return v.tokens.Balance(ctx, q, st.ubiToken, v.Account)
}

// PendingBurn retorna o acumulador de burn corrente
func (v *Vault) PendingBurn(ctx context.Context, q store.Queryable) (int64, error) {
	st, err := v.readState(ctx, q)
	if err != nil {
		return 0, err
	}
	return st.pendingBurn, nil
}

// IsRegisteredGame consulta a autorização de um jogo
func (v *Vault) IsRegisteredGame(ctx context.Context, q store.Queryable, game string) (bool, error) {
	var enabled bool
	err := q.QueryRowContext(ctx, `SELECT enabled FROM vault_games WHERE game=$1`, game).Scan(&enabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return enabled, err
}

func (v *Vault) requireRegistered(ctx context.Context, q store.Queryable, caller string) error {
	ok, err := v.IsRegisteredGame(ctx, q, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (v *Vault) lockState(ctx context.Context, q store.Queryable) (state, error) {
	return v.loadState(ctx, q, true)
}

func (v *Vault) readState(ctx context.Context, q store.Queryable) (state, error) {
	return v.loadState(ctx, q, false)
}

func (v *Vault) loadState(ctx context.Context, q store.Queryable, lock bool) (state, error) {
	query := `SELECT ubi_token, burn_percentage, pending_burn FROM vault_state WHERE id=1`
	if lock {
		query += ` FOR UPDATE`
	}
	var st state
	if err := q.QueryRowContext(ctx, query).Scan(&st.ubiToken, &st.burnPercentage, &st.pendingBurn); err != nil {
		return state{}, fmt.Errorf("load vault state: %w", err)
	}
	return st, nil
}
