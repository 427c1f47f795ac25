package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"soomhub/market/internal/utils"
)

// duplicateKeyError mimics the server error for a unique index violation.
func duplicateKeyError(index, key string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: soom.things index: %s dup key: { : \"%s\" }", index, key),
	}}}
}

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetries(context.Background(), func() error { calls++; return nil }, 3, IsIDCollision)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_FailureNotRetryable(t *testing.T) {
	calls := 0
	expected := errors.New("some other error")
	err := WithRetries(context.Background(), func() error { calls++; return expected }, 3, IsIDCollision)
	assert.ErrorIs(t, err, expected)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	calls := 0
	collidingID := utils.SixID{0, 0, 0, 0, 0, 1}
	err := WithRetries(context.Background(), func() error {
		calls++
		return duplicateKeyError("_id_", collidingID.String())
	}, 3, IsIDCollision)

	require.Error(t, err)
	assert.True(t, IsMongoDuplicateKeyError(err))
	assert.Equal(t, 4, calls)
}

func TestTry_DoesNotRetryOtherUniqueIndexes(t *testing.T) {
	calls := 0
	err := Try(context.Background(), func() error {
		calls++
		return duplicateKeyError("submission_id_1", "X")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsDuplicateOnIndex(err, "submission_id_1"))
	assert.False(t, IsIDCollision(err))
}

func TestWithRetries_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithRetries(ctx, func() error {
		calls++
		return duplicateKeyError("_id_", "X")
	}, 3, IsIDCollision)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_CollisionResolves(t *testing.T) {
	originalHook := utils.NewSixIDHook
	defer func() { utils.NewSixIDHook = originalHook }()

	id1 := utils.SixID{1, 2, 3, 4, 5, 1}
	id2 := utils.SixID{1, 2, 3, 4, 5, 2}
	idsToReturn := []utils.SixID{id1, id1, id2}
	hookCalls := 0
	utils.NewSixIDHook = func() (utils.SixID, bool) {
		if hookCalls < len(idsToReturn) {
			id := idsToReturn[hookCalls]
			hookCalls++
			return id, true
		}
		return utils.SixID{}, false
	}

	inserted := map[utils.SixID]bool{id1: true}
	calls := 0
	err := Try(context.Background(), func() error {
		calls++
		newID := utils.NewSixID()
		if inserted[newID] {
			return duplicateKeyError("_id_", newID.String())
		}
		inserted[newID] = true
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, hookCalls)
	assert.True(t, inserted[id2])
	assert.Len(t, inserted, 2)
}
