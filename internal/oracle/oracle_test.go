package oracle_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenwilly/ubi-games/internal/oracle"
	"github.com/shenwilly/ubi-games/internal/store"
	"github.com/shenwilly/ubi-games/internal/testutil"
	"github.com/shenwilly/ubi-games/internal/token"
)

const (
	owner      = "owner"
	consumer   = "ubiroll"
	vrfService = "vrf-coordinator"
)

// recordingConsumer captura o fulfillment entregue pelo oracle
type recordingConsumer struct {
	requestID string
	word      uint64
	fail      error
}

func (r *recordingConsumer) FinalizeRandomness(ctx context.Context, q store.Queryable, requestID string, word uint64) error {
	if r.fail != nil {
		return r.fail
	}
	r.requestID = requestID
	r.word = word
	return nil
}

type fixture struct {
	db       *sql.DB
	tokens   *token.Ledger
	oracle   *oracle.Oracle
	consumer *recordingConsumer
}

func setupOracle(t *testing.T) *fixture {
	t.Helper()
	td := testutil.SetupTestDatabase(t)

	tokens := token.NewLedger()
	o := oracle.New(owner, tokens)
	rec := &recordingConsumer{}
	o.BindConsumer(consumer, rec)

	ctx := context.Background()
	err := store.WithTx(ctx, td.DB, func(q store.Queryable) error {
		if err := o.SetRegistered(ctx, q, owner, consumer, true); err != nil {
			return err
		}
		return tokens.Mint(ctx, q, token.LINK, o.Account, 100)
	})
	require.NoError(t, err)

	return &fixture{db: td.DB, tokens: tokens, oracle: o, consumer: rec}
}

func (f *fixture) request(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	var requestID string
	err := store.WithTx(ctx, f.db, func(q store.Queryable) error {
		var err error
		requestID, err = f.oracle.RequestRandomNumber(ctx, q, consumer)
		return err
	})
	require.NoError(t, err)
	return requestID
}

func (f *fixture) balance(t *testing.T, account string) int64 {
	t.Helper()
	ctx := context.Background()
	var bal int64
	err := store.WithTx(ctx, f.db, func(q store.Queryable) error {
		var err error
		bal, err = f.tokens.Balance(ctx, q, token.LINK, account)
		return err
	})
	require.NoError(t, err)
	return bal
}

func TestRequestRandomNumber(t *testing.T) {
	f := setupOracle(t)

	id1 := f.request(t)
	id2 := f.request(t)
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)

	// fee seed = 10, debitada da reserva para o serviço a cada pedido
	assert.Equal(t, int64(80), f.balance(t, f.oracle.Account))
	assert.Equal(t, int64(20), f.balance(t, vrfService))
}

func TestRequestRequiresRegistration(t *testing.T) {
	f := setupOracle(t)
	ctx := context.Background()

	err := store.WithTx(ctx, f.db, func(q store.Queryable) error {
		_, err := f.oracle.RequestRandomNumber(ctx, q, "rogue")
		return err
	})
	require.ErrorIs(t, err, oracle.ErrUnauthorized)
}

func TestRequestFailsWithoutFeeReserve(t *testing.T) {
	f := setupOracle(t)
	ctx := context.Background()

	// Esgota a reserva: 100 / 10 = 10 pedidos
	for i := 0; i < 10; i++ {
		f.request(t)
	}

	err := store.WithTx(ctx, f.db, func(q store.Queryable) error {
		_, err := f.oracle.RequestRandomNumber(ctx, q, consumer)
		return err
	})
	require.ErrorIs(t, err, oracle.ErrInsufficientFee)
}

func TestFulfillDispatchesToConsumer(t *testing.T) {
	f := setupOracle(t)
	ctx := context.Background()

	requestID := f.request(t)
	err := store.WithTx(ctx, f.db, func(q store.Queryable) error {
		return f.oracle.FulfillRandomness(ctx, q, vrfService, requestID, 777)
	})
	require.NoError(t, err)

	assert.Equal(t, requestID, f.consumer.requestID)
	assert.Equal(t, uint64(777), f.consumer.word)
}

func TestFulfillConsumerFailureRevertsSatisfied(t *testing.T) {
	f := setupOracle(t)
	ctx := context.Background()

	requestID := f.request(t)
	f.consumer.fail = assert.AnError

	err := store.WithTx(ctx, f.db, func(q store.Queryable) error {
		return f.oracle.FulfillRandomness(ctx, q, vrfService, requestID, 777)
	})
	require.ErrorIs(t, err, assert.AnError)

	// O rollback também desfez o flag satisfied: o retry funciona
	f.consumer.fail = nil
	err = store.WithTx(ctx, f.db, func(q store.Queryable) error {
		return f.oracle.FulfillRandomness(ctx, q, vrfService, requestID, 777)
	})
	require.NoError(t, err)
}

func TestWithdrawFee(t *testing.T) {
	f := setupOracle(t)
	ctx := context.Background()

	var swept int64
	err := store.WithTx(ctx, f.db, func(q store.Queryable) error {
		var err error
		swept, err = f.oracle.WithdrawFee(ctx, q, owner)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), swept)
	assert.Equal(t, int64(100), f.balance(t, owner))

	// Reserva zerada: o sweep seguinte é um no-op
	err = store.WithTx(ctx, f.db, func(q store.Queryable) error {
		var err error
		swept, err = f.oracle.WithdrawFee(ctx, q, owner)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, swept)

	err = store.WithTx(ctx, f.db, func(q store.Queryable) error {
		_, err := f.oracle.WithdrawFee(ctx, q, consumer)
		return err
	})
	require.ErrorIs(t, err, oracle.ErrNotOwner)
}
