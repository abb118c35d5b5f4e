package cache_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenwilly/ubi-games/internal/bet-feed/dto"
	"github.com/shenwilly/ubi-games/internal/bet-indexer/repo"
)

// O indexer grava repo.BetRow na chave bet:{id}; o feed lê a mesma chave como
// dto.Bet. Os dois shapes JSON precisam coincidir campo a campo, senão um hit
// de cache devolve uma aposta pela metade.
func TestIndexerCacheEntryReadsAsFeedBet(t *testing.T) {
	result := 42
	win := true
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finalized := created.Add(3 * time.Second)

	row := &repo.BetRow{
		BetID:       42,
		Player:      "alice",
		Chance:      50,
		Amount:      100,
		Prize:       198,
		RequestID:   "req-xyz",
		Result:      &result,
		Win:         &win,
		Payout:      198,
		Finished:    true,
		CreatedTs:   &created,
		FinalizedTs: &finalized,
	}

	b, err := json.Marshal(row)
	require.NoError(t, err)

	var bet dto.Bet
	require.NoError(t, json.Unmarshal(b, &bet))

	assert.Equal(t, int64(42), bet.BetID)
	assert.Equal(t, "alice", bet.Player)
	assert.Equal(t, 50, bet.Chance)
	assert.Equal(t, int64(100), bet.Amount)
	assert.Equal(t, int64(198), bet.Prize)
	assert.Equal(t, "req-xyz", bet.RequestID)
	require.NotNil(t, bet.Result)
	assert.Equal(t, 42, *bet.Result)
	require.NotNil(t, bet.Win)
	assert.True(t, *bet.Win)
	assert.Equal(t, int64(198), bet.Payout)
	assert.True(t, bet.Finished)
	assert.Equal(t, "2026-03-01T12:00:00Z", bet.CreatedTs)
	assert.Equal(t, "2026-03-01T12:00:03Z", bet.FinalizedTs)
}

// Uma linha ainda pendente não pode inventar result/win no shape público
func TestIndexerCacheEntryPendingFields(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := &repo.BetRow{
		BetID:     7,
		Player:    "bob",
		Chance:    30,
		Amount:    50,
		Prize:     165,
		RequestID: "req-7",
		CreatedTs: &created,
	}

	b, err := json.Marshal(row)
	require.NoError(t, err)

	var bet dto.Bet
	require.NoError(t, json.Unmarshal(b, &bet))

	assert.Equal(t, int64(7), bet.BetID)
	assert.Nil(t, bet.Result)
	assert.Nil(t, bet.Win)
	assert.False(t, bet.Finished)
	assert.Empty(t, bet.FinalizedTs)
}
