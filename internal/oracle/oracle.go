package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shenwilly/ubi-games/internal/store"
	"github.com/shenwilly/ubi-games/internal/token"
)

var (
	ErrUnauthorized     = errors.New("caller is not a registered consumer")
	ErrNotOwner         = errors.New("caller is not the owner")
	ErrOnlyService      = errors.New("only randomness service can fulfill")
	ErrInsufficientFee  = errors.New("not enough fee reserve")
	ErrUnknownRequest   = errors.New("unknown randomness request")
	ErrRequestSatisfied = errors.New("randomness request already satisfied")
)

// Consumer é o ponto de entrada fixo invocado quando a aleatoriedade chega.
// A chamada acontece dentro da mesma transação do fulfillment: se o consumer
// falhar, o flag satisfied também é revertido.
type Consumer interface {
	FinalizeRandomness(ctx context.Context, q store.Queryable, requestID string, randomWord uint64) error
}

// Oracle faz a ponte entre consumers registrados e o serviço externo de
// aleatoriedade: debita a fee, registra o pedido e, no callback do serviço,
// repassa a palavra aleatória ao consumer correlacionado pelo requestId.
type Oracle struct {
	Owner   string // identidade admin
	Account string // conta do oracle no ledger (reserva de fee)

	tokens    *token.Ledger
	consumers map[string]Consumer // identidade → binding in-process
}

func New(owner string, tokens *token.Ledger) *Oracle {
	return &Oracle{
		Owner:     owner,
		Account:   "oracle",
		tokens:    tokens,
		consumers: make(map[string]Consumer),
	}
}

// BindConsumer associa a identidade registrada de um consumer à sua
// implementação; feito no wiring do serviço
func (o *Oracle) BindConsumer(identity string, c Consumer) {
	o.consumers[identity] = c
}

// SetRegistered liga/desliga a autorização de um consumer (admin)
func (o *Oracle) SetRegistered(ctx context.Context, q store.Queryable, caller, consumer string, enabled bool) error {
	if caller != o.Owner {
		return ErrNotOwner
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO oracle_consumers (consumer, enabled) VALUES ($1,$2)
		ON CONFLICT (consumer) DO UPDATE SET enabled = EXCLUDED.enabled`,
		consumer, enabled)
	return err
}

// RequestRandomNumber debita a fee para o serviço externo e registra um novo
// pedido pendente, retornando o requestId de correlação
func (o *Oracle) RequestRandomNumber(ctx context.Context, q store.Queryable, caller string) (string, error) {
	registered, err := o.isRegistered(ctx, q, caller)
	if err != nil {
		return "", err
	}
	if !registered {
		return "", ErrUnauthorized
	}

	var fee int64
	var feeToken, service string
	if err := q.QueryRowContext(ctx,
		`SELECT fee, fee_token, service_identity FROM oracle_state WHERE id=1`).
		Scan(&fee, &feeToken, &service); err != nil {
		return "", fmt.Errorf("load oracle state: %w", err)
	}

	reserve, err := o.tokens.Balance(ctx, q, feeToken, o.Account)
	if err != nil {
		return "", err
	}
	if reserve < fee {
		return "", ErrInsufficientFee
	}
	if fee > 0 {
		if err := o.tokens.Transfer(ctx, q, feeToken, o.Account, service, fee); err != nil {
			return "", err
		}
	}

	requestID := uuid.NewString()
	if _, err := q.ExecContext(ctx,
		`INSERT INTO oracle_requests (request_id, consumer, satisfied) VALUES ($1,$2,false)`,
		requestID, caller); err != nil {
		return "", err
	}
	return requestID, nil
}

// FulfillRandomness marca o pedido como satisfeito e repassa a palavra ao
// consumer registrado. Um segundo fulfillment do mesmo requestId falha, o que
// impede payout duplo por replay.
func (o *Oracle) FulfillRandomness(ctx context.Context, q store.Queryable, caller, requestID string, randomWord uint64) error {
	var service string
	if err := q.QueryRowContext(ctx,
		`SELECT service_identity FROM oracle_state WHERE id=1`).Scan(&service); err != nil {
		return fmt.Errorf("load oracle state: %w", err)
	}
	if caller != service {
		return ErrOnlyService
	}

	var consumer string
	var satisfied bool
	err := q.QueryRowContext(ctx,
		`SELECT consumer, satisfied FROM oracle_requests WHERE request_id=$1 FOR UPDATE`,
		requestID).Scan(&consumer, &satisfied)
	if err == sql.ErrNoRows {
		return ErrUnknownRequest
	}
	if err != nil {
		return err
	}
	if satisfied {
		return ErrRequestSatisfied
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE oracle_requests SET satisfied = true WHERE request_id=$1`, requestID); err != nil {
		return err
	}

	c, ok := o.consumers[consumer]
	if !ok {
		return fmt.Errorf("no consumer bound for identity %q", consumer)
	}
	return c.FinalizeRandomness(ctx, q, requestID, randomWord)
}

// WithdrawFee saca a reserva de fee para o owner (admin)
func (o *Oracle) WithdrawFee(ctx context.Context, q store.Queryable, caller string) (int64, error) {
	if caller != o.Owner {
		return 0, ErrNotOwner
	}
	var feeToken string
	if err := q.QueryRowContext(ctx,
		`SELECT fee_token FROM oracle_state WHERE id=1`).Scan(&feeToken); err != nil {
		return 0, err
	}
	reserve, err := o.tokens.Balance(ctx, q, feeToken, o.Account)
	if err != nil {
		return 0, err
	}
	if reserve == 0 {
		return 0, nil
	}
	if err := o.tokens.Transfer(ctx, q, feeToken, o.Account, o.Owner, reserve); err != nil {
		return 0, err
	}
	return reserve, nil
}

func (o *Oracle) isRegistered(ctx context.Context, q store.Queryable, consumer string) (bool, error) {
	var enabled bool
	err := q.QueryRowContext(ctx,
		`SELECT enabled FROM oracle_consumers WHERE consumer=$1`, consumer).Scan(&enabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return enabled, err
}
