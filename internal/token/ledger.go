package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shenwilly/ubi-games/internal/store"
)

// Símbolos usados pela plataforma: UBI é o token de aposta,
// LINK é o token de fee do serviço de aleatoriedade
const (
	UBI  = "UBI"
	LINK = "LINK"
)

var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("amount must be greater than 0")
)

// Ledger implementa o sistema de transferência de tokens (papel do ERC20 na
// origem): saldos por (token, conta), allowances por (token, dono, gastador)
// e trilha de auditoria em token_ledger. Todas as operações recebem um
// Queryable para poderem participar da transação do chamador.
type Ledger struct{}

func NewLedger() *Ledger { return &Ledger{} }

// Balance retorna o saldo de uma conta (zero se a linha não existir)
func (l *Ledger) Balance(ctx context.Context, q store.Queryable, token, account string) (int64, error) {
	var bal int64
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM token_balances WHERE token=$1 AND account=$2`,
		token, account).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return bal, err
}

// Allowance retorna quanto spender ainda pode mover da conta owner
func (l *Ledger) Allowance(ctx context.Context, q store.Queryable, token, owner, spender string) (int64, error) {
	var amt int64
	err := q.QueryRowContext(ctx,
		`SELECT amount FROM token_allowances WHERE token=$1 AND owner_account=$2 AND spender=$3`,
		token, owner, spender).Scan(&amt)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return amt, err
}

// Mint credita saldo novo em uma conta (faucet/admin, equivale ao ERC20Mock.mint)
func (l *Ledger) Mint(ctx context.Context, q store.Queryable, token, account string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := l.credit(ctx, q, token, account, amount); err != nil {
		return err
	}
	return l.record(ctx, q, token, "", account, amount, "mint")
}

// Approve define a allowance de spender sobre a conta owner (sobrescreve)
func (l *Ledger) Approve(ctx context.Context, q store.Queryable, token, owner, spender string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO token_allowances (token, owner_account, spender, amount)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (token, owner_account, spender) DO UPDATE SET amount = EXCLUDED.amount`,
		token, owner, spender, amount)
	return err
}

// Transfer move saldo de from para to, falhando com ErrInsufficientFunds
// se o saldo não cobrir o valor. Lock pessimista na linha de origem.
func (l *Ledger) Transfer(ctx context.Context, q store.Queryable, token, from, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	bal, err := l.lockBalance(ctx, q, token, from)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientFunds
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE token_balances SET balance = balance - $1 WHERE token=$2 AND account=$3`,
		amount, token, from); err != nil {
		return err
	}
	if err := l.credit(ctx, q, token, to, amount); err != nil {
		return err
	}
	return l.record(ctx, q, token, from, to, amount, "transfer")
}

// TransferFrom move saldo de from para to consumindo a allowance de spender,
// falhando com ErrInsufficientAllowance quando ela não cobre o valor
func (l *Ledger) TransferFrom(ctx context.Context, q store.Queryable, token, spender, from, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	var allowed int64
	err := q.QueryRowContext(ctx,
		`SELECT amount FROM token_allowances WHERE token=$1 AND owner_account=$2 AND spender=$3 FOR UPDATE`,
		token, from, spender).Scan(&allowed)
	if err == sql.ErrNoRows {
		return ErrInsufficientAllowance
	}
	if err != nil {
		return err
	}
	if allowed < amount {
		return ErrInsufficientAllowance
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE token_allowances SET amount = amount - $1 WHERE token=$2 AND owner_account=$3 AND spender=$4`,
		amount, token, from, spender); err != nil {
		return err
	}
	return l.Transfer(ctx, q, token, from, to, amount)
}

// lockBalance garante que a linha exista e a trava para a transação corrente
func (l *Ledger) lockBalance(ctx context.Context, q store.Queryable, token, account string) (int64, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO token_balances (token, account, balance) VALUES ($1,$2,0)
		ON CONFLICT (token, account) DO NOTHING`,
		token, account); err != nil {
		return 0, err
	}
	var bal int64
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM token_balances WHERE token=$1 AND account=$2 FOR UPDATE`,
		token, account).Scan(&bal)
	if err != nil {
		return 0, fmt.Errorf("lock balance %s/%s: %w", token, account, err)
	}
	return bal, nil
}

func (l *Ledger) credit(ctx context.Context, q store.Queryable, token, account string, amount int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO token_balances (token, account, balance) VALUES ($1,$2,$3)
		ON CONFLICT (token, account) DO UPDATE SET balance = token_balances.balance + EXCLUDED.balance`,
		token, account, amount)
	return err
}

func (l *Ledger) record(ctx context.Context, q store.Queryable, token, from, to string, amount int64, desc string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO token_ledger (token, from_account, to_account, amount, description)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5)`,
		token, from, to, amount, desc)
	return err
}
