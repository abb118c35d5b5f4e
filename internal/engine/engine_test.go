package engine_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenwilly/ubi-games/internal/engine"
	"github.com/shenwilly/ubi-games/internal/oracle"
	"github.com/shenwilly/ubi-games/internal/store"
	"github.com/shenwilly/ubi-games/internal/testutil"
	"github.com/shenwilly/ubi-games/internal/token"
	"github.com/shenwilly/ubi-games/internal/vault"
)

const (
	owner      = "owner"
	game       = "ubiroll"
	vrfService = "vrf-coordinator"
	player     = "alice"

	vaultFunds  = int64(1_000_000)
	playerFunds = int64(1_000)
)

type fixture struct {
	db     *sql.DB
	tokens *token.Ledger
	vault  *vault.Vault
	oracle *oracle.Oracle
	engine *engine.Engine
}

// setupEngine sobe um banco efêmero com o jogo registrado, o vault bancado e
// o jogador com saldo e allowance prontos para apostar
func setupEngine(t *testing.T) *fixture {
	t.Helper()
	td := testutil.SetupTestDatabase(t)

	tokens := token.NewLedger()
	v := vault.New(owner, tokens)
	o := oracle.New(owner, tokens)
	eng := engine.New(owner, game, td.DB, v, o, tokens)
	o.BindConsumer(game, eng)

	ctx := context.Background()
	err := store.WithTx(ctx, td.DB, func(q store.Queryable) error {
		if err := v.SetRegisteredGame(ctx, q, owner, game, true); err != nil {
			return err
		}
		if err := o.SetRegistered(ctx, q, owner, game, true); err != nil {
			return err
		}
		if err := tokens.Mint(ctx, q, token.UBI, v.Account, vaultFunds); err != nil {
			return err
		}
		if err := tokens.Mint(ctx, q, token.LINK, o.Account, 1_000); err != nil {
			return err
		}
		if err := tokens.Mint(ctx, q, token.UBI, player, playerFunds); err != nil {
			return err
		}
		return tokens.Approve(ctx, q, token.UBI, player, v.Account, playerFunds)
	})
	require.NoError(t, err)

	return &fixture{db: td.DB, tokens: tokens, vault: v, oracle: o, engine: eng}
}

func (f *fixture) balance(t *testing.T, tok, account string) int64 {
	t.Helper()
	var bal int64
	err := store.WithTx(context.Background(), f.db, func(q store.Queryable) error {
		var err error
		bal, err = f.tokens.Balance(context.Background(), q, tok, account)
		return err
	})
	require.NoError(t, err)
	return bal
}

func (f *fixture) betCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM bets`).Scan(&n))
	return n
}

// fulfill simula o callback do serviço de aleatoriedade
func (f *fixture) fulfill(requestID string, word uint64) error {
	ctx := context.Background()
	return store.WithTx(ctx, f.db, func(q store.Queryable) error {
		return f.oracle.FulfillRandomness(ctx, q, vrfService, requestID, word)
	})
}

func TestCreateBet(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)

	assert.NotZero(t, bet.ID)
	assert.NotEmpty(t, bet.RequestID)
	assert.Equal(t, int64(198), bet.Prize) // 100 * 99 / 50
	assert.False(t, bet.Finished)

	// A aposta saiu do jogador e entrou no vault
	assert.Equal(t, playerFunds-100, f.balance(t, token.UBI, player))
	assert.Equal(t, vaultFunds+100, f.balance(t, token.UBI, f.vault.Account))

	// 25% do depósito vai para o balde de burn
	err = store.WithTx(ctx, f.db, func(q store.Queryable) error {
		pending, err := f.vault.PendingBurn(ctx, q)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(25), pending)
		return nil
	})
	require.NoError(t, err)

	// A fee do oracle foi paga ao serviço
	assert.Equal(t, int64(10), f.balance(t, token.LINK, vrfService))

	got, err := f.engine.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, bet.RequestID, got.RequestID)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Win)
}

func TestCreateBetValidation(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		chance  int
		amount  int64
		wantErr error
	}{
		{"zero amount", 50, 0, engine.ErrInvalidAmount},
		{"negative amount", 50, -5, engine.ErrInvalidAmount},
		{"zero chance", 0, 100, engine.ErrInvalidChance},
		{"chance at cap", 99, 100, engine.ErrChanceTooHigh}, // houseEdge 1 → cap 99
		{"chance above cap", 120, 100, engine.ErrChanceTooHigh},
		{"prize above vault cap", 1, 200, engine.ErrPrizeTooHigh}, // 19800 >= 10000
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateBet(ctx, player, tt.chance, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Nenhuma tentativa rejeitada deixou rastro
	assert.Equal(t, 0, f.betCount(t))
	assert.Equal(t, playerFunds, f.balance(t, token.UBI, player))
	assert.Equal(t, vaultFunds, f.balance(t, token.UBI, f.vault.Account))
}

func TestCreateBetWhilePaused(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, f.engine.SetGamePause(ctx, owner, true))
	_, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.ErrorIs(t, err, engine.ErrGamePaused)

	require.NoError(t, f.engine.SetGamePause(ctx, owner, false))
	_, err = f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)
}

func TestCreateBetRollsBackOnMissingAllowance(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	// Jogador sem allowance: o depósito falha depois das validações
	err := store.WithTx(ctx, f.db, func(q store.Queryable) error {
		return f.tokens.Approve(ctx, q, token.UBI, player, f.vault.Account, 0)
	})
	require.NoError(t, err)

	_, err = f.engine.CreateBet(ctx, player, 50, 100)
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	// Nada ficou para trás: nem aposta, nem pedido de aleatoriedade, nem fee
	assert.Equal(t, 0, f.betCount(t))
	var requests int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM oracle_requests`).Scan(&requests))
	assert.Equal(t, 0, requests)
	assert.Equal(t, int64(0), f.balance(t, token.LINK, vrfService))
	assert.Equal(t, playerFunds, f.balance(t, token.UBI, player))
}

func TestFinalizeWin(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, f.engine.SetHouseEdge(ctx, owner, 0))

	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)

	// result = 42 <= 50: vitória, payout = 100 * 100 / 50
	require.NoError(t, f.fulfill(bet.RequestID, 42))

	got, err := f.engine.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.True(t, got.Finished)
	require.NotNil(t, got.Result)
	require.NotNil(t, got.Win)
	assert.Equal(t, 42, *got.Result)
	assert.True(t, *got.Win)
	assert.Equal(t, int64(200), got.Payout)

	assert.Equal(t, playerFunds-100+200, f.balance(t, token.UBI, player))
}

func TestFinalizeLoss(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)

	// result = 99 > 50: derrota, a aposta fica no vault
	require.NoError(t, f.fulfill(bet.RequestID, 99))

	got, err := f.engine.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.True(t, got.Finished)
	assert.Equal(t, 99, *got.Result)
	assert.False(t, *got.Win)
	assert.Equal(t, int64(0), got.Payout)

	assert.Equal(t, playerFunds-100, f.balance(t, token.UBI, player))
	assert.Equal(t, vaultFunds+100, f.balance(t, token.UBI, f.vault.Account))
}

func TestFinalizeBoundaryResult(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	// result == chance ainda é vitória
	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)
	require.NoError(t, f.fulfill(bet.RequestID, 50))

	got, err := f.engine.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.True(t, *got.Win)
}

func TestFulfillReplayRejected(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)

	require.NoError(t, f.fulfill(bet.RequestID, 42))
	balanceAfterWin := f.balance(t, token.UBI, player)

	// Replay do mesmo requestId não paga duas vezes
	err = f.fulfill(bet.RequestID, 42)
	require.ErrorIs(t, err, oracle.ErrRequestSatisfied)
	assert.Equal(t, balanceAfterWin, f.balance(t, token.UBI, player))
}

func TestFulfillUnknownRequest(t *testing.T) {
	f := setupEngine(t)
	err := f.fulfill("deadbeef-0000-0000-0000-000000000000", 42)
	require.ErrorIs(t, err, oracle.ErrUnknownRequest)
}

func TestFulfillOnlyService(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)

	err = store.WithTx(ctx, f.db, func(q store.Queryable) error {
		return f.oracle.FulfillRandomness(ctx, q, "mallory", bet.RequestID, 42)
	})
	require.ErrorIs(t, err, oracle.ErrOnlyService)
}

func TestFinalizeBetRequiresOracleIdentity(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)

	_, err = f.engine.FinalizeBet(ctx, player, bet.RequestID, 42)
	require.ErrorIs(t, err, engine.ErrNotOracle)

	// A identidade configurada no estado do engine pode finalizar direto
	got, err := f.engine.FinalizeBet(ctx, "oracle", bet.RequestID, 42)
	require.NoError(t, err)
	assert.True(t, got.Finished)
}

// O payout usa o houseEdge corrente na finalização, não o da criação
func TestPayoutUsesCurrentHouseEdge(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(198), bet.Prize) // edge 1 na criação

	require.NoError(t, f.engine.SetHouseEdge(ctx, owner, 10))
	require.NoError(t, f.fulfill(bet.RequestID, 42))

	got, err := f.engine.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(198), got.Prize)    // cotação de criação preservada
	assert.Equal(t, int64(180), got.Payout)   // 100 * 90 / 50 com o edge novo
}

// Se o payout falhar, o fulfillment inteiro reverte: o pedido continua aberto
// e pode ser repetido depois
func TestFulfillRollsBackOnPayoutFailure(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	bet, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)

	// Esvazia o vault para o payout de 198 não ter cobertura
	err = store.WithTx(ctx, f.db, func(q store.Queryable) error {
		return f.vault.WithdrawUbi(ctx, q, owner, vaultFunds+50)
	})
	require.NoError(t, err)

	err = f.fulfill(bet.RequestID, 42)
	require.ErrorIs(t, err, token.ErrInsufficientFunds)

	// Nem o satisfied nem a aposta foram gravados
	var satisfied bool
	require.NoError(t, f.db.QueryRow(
		`SELECT satisfied FROM oracle_requests WHERE request_id=$1`, bet.RequestID).Scan(&satisfied))
	assert.False(t, satisfied)

	got, err := f.engine.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.False(t, got.Finished)

	// Com o vault refinanciado o retry passa
	err = store.WithTx(ctx, f.db, func(q store.Queryable) error {
		return f.tokens.Mint(ctx, q, token.UBI, f.vault.Account, vaultFunds)
	})
	require.NoError(t, err)
	require.NoError(t, f.fulfill(bet.RequestID, 42))
}

func TestOpenBetCount(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	n, err := f.engine.OpenBetCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	b1, err := f.engine.CreateBet(ctx, player, 50, 100)
	require.NoError(t, err)
	_, err = f.engine.CreateBet(ctx, player, 30, 100)
	require.NoError(t, err)

	n, err = f.engine.OpenBetCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, f.fulfill(b1.RequestID, 99))
	n, err = f.engine.OpenBetCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAdminRequiresOwner(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	require.ErrorIs(t, f.engine.SetHouseEdge(ctx, player, 5), engine.ErrNotOwner)
	require.ErrorIs(t, f.engine.SetGamePause(ctx, player, true), engine.ErrNotOwner)
	require.ErrorIs(t, f.engine.SetOracle(ctx, player, "other"), engine.ErrNotOwner)
	require.ErrorIs(t, f.engine.SetUbi(ctx, player, "OTHER"), engine.ErrNotOwner)
	require.ErrorIs(t, f.engine.WithdrawToken(ctx, player, token.UBI, 1), engine.ErrNotOwner)

	require.NoError(t, f.engine.SetUbi(ctx, owner, "OTHER"))
}
