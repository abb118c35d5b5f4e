package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenwilly/ubi-games/internal/bet-indexer/repo"
	"github.com/shenwilly/ubi-games/internal/testutil"
	"github.com/shenwilly/ubi-games/pkg/contracts/events"
)

func created(betID int64) events.BetCreated {
	return events.BetCreated{
		BetID:     betID,
		Player:    "alice",
		Chance:    50,
		Amount:    100,
		Prize:     198,
		RequestID: "req-1",
		TsUnixMs:  time.Now().UnixMilli(),
	}
}

func finalized(betID int64) events.BetFinalized {
	return events.BetFinalized{
		BetID:     betID,
		RequestID: "req-1",
		Result:    42,
		Win:       true,
		Payout:    198,
		TsUnixMs:  time.Now().UnixMilli(),
	}
}

func TestUpsertCreatedThenFinalized(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	p := repo.NewPostgres(td.DB)
	ctx := context.Background()

	require.NoError(t, p.UpsertCreated(ctx, created(1)))

	row, err := p.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", row.Player)
	assert.False(t, row.Finished)
	assert.Nil(t, row.Result)

	require.NoError(t, p.UpsertFinalized(ctx, finalized(1)))

	row, err = p.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, row.Finished)
	require.NotNil(t, row.Result)
	assert.Equal(t, 42, *row.Result)
	assert.Equal(t, int64(198), row.Payout)
	// Os campos de criação seguem intactos
	assert.Equal(t, "alice", row.Player)
	assert.Equal(t, int64(100), row.Amount)
}

// O finalized pode chegar antes do created; o created atrasado não pode
// regredir a finalização
func TestUpsertOutOfOrder(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	p := repo.NewPostgres(td.DB)
	ctx := context.Background()

	require.NoError(t, p.UpsertFinalized(ctx, finalized(7)))

	row, err := p.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, row.Finished)
	assert.Empty(t, row.Player) // criação ainda não chegou

	require.NoError(t, p.UpsertCreated(ctx, created(7)))

	row, err = p.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, row.Finished) // preservado
	require.NotNil(t, row.Result)
	assert.Equal(t, 42, *row.Result)
	assert.Equal(t, "alice", row.Player)
}

// Redelivery do Kafka: aplicar o mesmo evento duas vezes é um no-op
func TestUpsertIdempotent(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	p := repo.NewPostgres(td.DB)
	ctx := context.Background()

	require.NoError(t, p.UpsertCreated(ctx, created(3)))
	require.NoError(t, p.UpsertCreated(ctx, created(3)))
	require.NoError(t, p.UpsertFinalized(ctx, finalized(3)))
	require.NoError(t, p.UpsertFinalized(ctx, finalized(3)))

	var count int
	require.NoError(t, td.DB.QueryRow(`SELECT COUNT(*) FROM bet_projection`).Scan(&count))
	assert.Equal(t, 1, count)

	row, err := p.Get(ctx, 3)
	require.NoError(t, err)
	assert.True(t, row.Finished)
	assert.Equal(t, "alice", row.Player)
}
