package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/testing/suite"
)

func TestGameRepository_Create(t *testing.T) {
	t.Run("Reserves a free id", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Storage, time.Hour)

		// When: Create is called for a new id
		created, err := gameRepo.Create(ctx, "ABCDE", entity.NewGameState())

		// Then: the id is reserved
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("Refuses an id that is already taken", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Storage, time.Hour)

		// Given: a stored game
		created, err := gameRepo.Create(ctx, "ABCDE", entity.NewGameState())
		require.NoError(t, err)
		require.True(t, created)

		// When: another replica tries the same id
		created, err = gameRepo.Create(ctx, "ABCDE", entity.NewGameState())

		// Then: it is told the id is taken
		require.NoError(t, err)
		assert.False(t, created)
	})
}

func TestGameRepository_GetByID(t *testing.T) {
	t.Run("GetByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Storage, time.Hour)

		// Given: a saved snapshot with a winner
		state := &entity.GameState{
			Board:         entity.Board{entity.PlayerX, entity.PlayerX, entity.PlayerX, entity.PlayerO, entity.PlayerO},
			CurrentPlayer: entity.PlayerO,
			Winner:        entity.OutcomeFor(entity.PlayerX),
			WinningLine:   &entity.Line{0, 1, 2},
			PlayerJoined:  true,
			Scores:        &entity.Scores{X: 1},
		}
		require.NoError(t, gameRepo.Save(ctx, "ABCDE", state))

		// When: GetByID is called with the existing id
		retrieved, err := gameRepo.GetByID(ctx, "ABCDE")

		// Then: the retrieved snapshot matches the saved one
		require.NoError(t, err)
		assert.Equal(t, state, retrieved)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Storage, time.Hour)

		// When: GetByID is called with a non-existent id
		retrieved, err := gameRepo.GetByID(ctx, "ZZZZZ")

		// Then: ErrGameNotFound is returned
		require.ErrorIs(t, err, apperror.ErrGameNotFound)
		assert.Nil(t, retrieved)
	})

	t.Run("GetByID_Expired", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Storage, time.Minute)
		require.NoError(t, gameRepo.Save(ctx, "ABCDE", entity.NewGameState()))

		// When: the snapshot outlives its ttl
		st.FastForward(2 * time.Minute)

		// Then: it is gone
		_, err := gameRepo.GetByID(ctx, "ABCDE")
		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestGameRepository_DeleteByID(t *testing.T) {
	t.Run("DeleteByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Storage, 0)

		// Given: a stored game
		require.NoError(t, gameRepo.Save(ctx, "ABCDE", entity.NewGameState()))

		// When: DeleteByID is called
		err := gameRepo.DeleteByID(ctx, "ABCDE")

		// Then: the game is gone
		require.NoError(t, err)
		_, err = gameRepo.GetByID(ctx, "ABCDE")
		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("DeleteByID_Missing", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Storage, 0)

		// Deleting an unknown id is not an error
		require.NoError(t, gameRepo.DeleteByID(ctx, "ZZZZZ"))
	})
}
