package repository_test

import (
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository"
	"github.com/rocketscienceinc/tictactoe-arena/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRepository_SaveAndGet(t *testing.T) {
	// Given: a redis-backed match repository
	ctx, s := suite.New(t)
	repo := repository.NewMatchRepository(s.Storage)

	state := entity.GameState{
		RoomID: "room-42",
		Status: entity.StatusEnded,
		Board:  [9]string{"X", "X", "X", "O", "O", "", "", "", ""},
		Result: "X_wins",
	}

	// When: a finished match is archived
	err := repo.Save(ctx, state)
	require.NoError(t, err)

	// Then: it can be read back with its result and board intact
	record, err := repo.GetByRoomID(ctx, "room-42")
	require.NoError(t, err)

	assert.Equal(t, "room-42", record.RoomID)
	assert.Equal(t, "X_wins", record.Result)
	assert.Equal(t, state.Board, record.Board)
	assert.WithinDuration(t, time.Now().UTC(), record.FinishedAt, time.Minute)
}

func TestMatchRepository_Overwrite(t *testing.T) {
	// Given: an archived abandonment
	ctx, s := suite.New(t)
	repo := repository.NewMatchRepository(s.Storage)

	first := entity.GameState{RoomID: "room-42", Status: entity.StatusEnded, Result: "O_disconnected"}
	require.NoError(t, repo.Save(ctx, first))

	// When: the same room is archived again
	second := entity.GameState{RoomID: "room-42", Status: entity.StatusEnded, Result: "O_disconnected"}
	require.NoError(t, repo.Save(ctx, second))

	// Then: the record is simply replaced
	record, err := repo.GetByRoomID(ctx, "room-42")
	require.NoError(t, err)
	assert.Equal(t, "O_disconnected", record.Result)
}

func TestMatchRepository_GetMissing(t *testing.T) {
	// Given: an empty archive
	ctx, s := suite.New(t)
	repo := repository.NewMatchRepository(s.Storage)

	// When: looking up a room that never finished
	_, err := repo.GetByRoomID(ctx, "missing")

	// Then: the lookup reports a distinct not-found error
	require.ErrorIs(t, err, repository.ErrMatchNotFound)
}
