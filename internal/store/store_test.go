package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatline/chatline/internal/apperr"
	"github.com/chatline/chatline/internal/model"
	"github.com/chatline/chatline/internal/store"
	"github.com/chatline/chatline/internal/testutil"
)

func setup(t *testing.T) (context.Context, *store.Store, model.User, model.User) {
	t.Helper()

	db, dbForGoose, migDir := testutil.DbInit(t)
	testutil.DbGooseUp(t, dbForGoose, migDir)
	t.Cleanup(func() { testutil.DbCleanup(t, db, migDir) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	st := store.New(db)

	alice, err := st.CreateUser(ctx, "alice", "alice@test.com", "not-a-real-hash")
	require.NoError(t, err)
	bob, err := st.CreateUser(ctx, "bob", "bob@test.com", "not-a-real-hash")
	require.NoError(t, err)

	return ctx, st, alice, bob
}

func TestCreateValidation(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	var validationErr *apperr.ValidationError

	_, err := st.Create(ctx, alice.UserID, bob.UserID, "   ", false)
	require.ErrorAs(t, err, &validationErr)

	_, err = st.Create(ctx, uuid.Nil, bob.UserID, "hi", false)
	require.ErrorAs(t, err, &validationErr)

	_, err = st.Create(ctx, alice.UserID, uuid.Nil, "hi", false)
	require.ErrorAs(t, err, &validationErr)

	// Unknown recipient trips the foreign key, not a silent insert.
	var notFoundErr *apperr.NotFoundError
	_, err = st.Create(ctx, alice.UserID, uuid.New(), "hi", false)
	require.ErrorAs(t, err, &notFoundErr)

	msgs, err := st.Conversation(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "failed creates must leave the store unchanged")
}

func TestCreateOfflineAndOnline(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	offline, err := st.Create(ctx, alice.UserID, bob.UserID, "while you were out", false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, offline.Status)
	assert.False(t, offline.CreatedAt.IsZero())

	online, err := st.Create(ctx, alice.UserID, bob.UserID, "welcome back", true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, online.Status)
	assert.NotEqual(t, offline.ID, online.ID)
}

func TestConversationOrderedAscending(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	first, err := st.Create(ctx, alice.UserID, bob.UserID, "one", false)
	require.NoError(t, err)
	second, err := st.Create(ctx, bob.UserID, alice.UserID, "two", false)
	require.NoError(t, err)

	// Both directions belong to the same unordered conversation.
	msgs, err := st.Conversation(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)

	flipped, err := st.Conversation(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	require.Len(t, flipped, 2)
	assert.Equal(t, first.ID, flipped[0].ID)
}

func TestAdvanceSingleMessage(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	msg, err := st.Create(ctx, alice.UserID, bob.UserID, "hi", false)
	require.NoError(t, err)

	// Forward one step at a time.
	require.NoError(t, st.Advance(ctx, msg.ID, model.StatusDelivered))
	// Re-applying the same transition is a no-op.
	require.NoError(t, st.Advance(ctx, msg.ID, model.StatusDelivered))
	require.NoError(t, st.Advance(ctx, msg.ID, model.StatusRead))

	// Regressing is always an error.
	var transitionErr *apperr.InvalidTransitionError
	err = st.Advance(ctx, msg.ID, model.StatusDelivered)
	require.ErrorAs(t, err, &transitionErr)

	// Skipping a state is always an error.
	skip, err := st.Create(ctx, alice.UserID, bob.UserID, "skip me", false)
	require.NoError(t, err)
	err = st.Advance(ctx, skip.ID, model.StatusRead)
	require.ErrorAs(t, err, &transitionErr)

	// Unknown ids and unknown statuses are rejected.
	var notFoundErr *apperr.NotFoundError
	err = st.Advance(ctx, 999999, model.StatusDelivered)
	require.ErrorAs(t, err, &notFoundErr)

	var validationErr *apperr.ValidationError
	err = st.Advance(ctx, msg.ID, model.Status("seen"))
	require.ErrorAs(t, err, &validationErr)
}

func TestBulkAdvance(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	_, err := st.Create(ctx, alice.UserID, bob.UserID, "one", true)
	require.NoError(t, err)
	_, err = st.Create(ctx, alice.UserID, bob.UserID, "two", true)
	require.NoError(t, err)

	// Illegal step rejected before touching the store.
	var transitionErr *apperr.InvalidTransitionError
	err = st.BulkAdvance(ctx, model.StatusSent, model.StatusRead, alice.UserID, bob.UserID)
	require.ErrorAs(t, err, &transitionErr)

	require.NoError(t, st.BulkAdvance(ctx, model.StatusDelivered, model.StatusRead, alice.UserID, bob.UserID))

	// Zero matching rows is a successful no-op.
	require.NoError(t, st.BulkAdvance(ctx, model.StatusDelivered, model.StatusRead, alice.UserID, bob.UserID))

	count, err := st.UnreadCount(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenConversationMarksRead(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	// Alice writes while bob is offline: message stays "sent".
	_, err := st.Create(ctx, alice.UserID, bob.UserID, "hi", false)
	require.NoError(t, err)
	// And once more while he is connected: "delivered".
	_, err = st.Create(ctx, alice.UserID, bob.UserID, "you there?", true)
	require.NoError(t, err)

	count, err := st.UnreadCount(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only delivered messages count as unread")

	// Bob opens the thread: everything alice sent is now read.
	msgs, err := st.OpenConversation(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, model.StatusRead, m.Status)
	}

	count, err = st.UnreadCount(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Opening again changes nothing (idempotence).
	again, err := st.OpenConversation(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	require.Len(t, again, 2)
	for _, m := range again {
		assert.Equal(t, model.StatusRead, m.Status)
	}
}

func TestOpenConversationLeavesOwnMessagesAlone(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	// Bob's own outgoing message must not be touched when he opens
	// the thread.
	mine, err := st.Create(ctx, bob.UserID, alice.UserID, "mine", false)
	require.NoError(t, err)

	msgs, err := st.OpenConversation(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, mine.ID, msgs[0].ID)
	assert.Equal(t, model.StatusSent, msgs[0].Status)
}

func TestRoster(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	carol, err := st.CreateUser(ctx, "carol", "carol@test.com", "not-a-real-hash")
	require.NoError(t, err)

	_, err = st.Create(ctx, alice.UserID, bob.UserID, "one", true)
	require.NoError(t, err)
	_, err = st.Create(ctx, alice.UserID, bob.UserID, "two", true)
	require.NoError(t, err)
	_, err = st.Create(ctx, carol.UserID, bob.UserID, "three", false)
	require.NoError(t, err)

	entries, err := st.Roster(ctx, bob.UserID)
	require.NoError(t, err)
	require.Len(t, entries, 2, "the viewer is excluded from their own roster")

	byName := make(map[string]int64)
	for _, e := range entries {
		byName[e.Username] = e.UnreadChatCount
	}
	assert.Equal(t, int64(2), byName["alice"])
	assert.Equal(t, int64(0), byName["carol"], "carol's message is still sent, not delivered")

	// Alice has nothing unread from anyone.
	entries, err = st.Roster(ctx, alice.UserID)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Zero(t, e.UnreadChatCount)
	}
}

func TestConcurrentSubmitsBothDirections(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = st.Create(ctx, alice.UserID, bob.UserID, "x", true)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = st.Create(ctx, bob.UserID, alice.UserID, "y", true)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	msgs, err := st.Conversation(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestConcurrentSubmitAndOpen(t *testing.T) {
	ctx, st, alice, bob := setup(t)

	for i := 0; i < 5; i++ {
		_, err := st.Create(ctx, alice.UserID, bob.UserID, "backlog", true)
		require.NoError(t, err)
	}

	// A submission racing a mark-as-read must not corrupt counts:
	// afterwards every message is either read (pre-open) or
	// delivered (post-open), never half-transitioned.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = st.Create(ctx, alice.UserID, bob.UserID, "racer", true)
	}()
	go func() {
		defer wg.Done()
		_, _ = st.OpenConversation(ctx, bob.UserID, alice.UserID)
	}()
	wg.Wait()

	msgs, err := st.Conversation(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	for _, m := range msgs {
		assert.Contains(t, []model.Status{model.StatusDelivered, model.StatusRead}, m.Status)
	}

	count, err := st.UnreadCount(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	assert.LessOrEqual(t, count, int64(1))
}

func TestCreateUser(t *testing.T) {
	ctx, st, alice, _ := setup(t)

	var validationErr *apperr.ValidationError

	// Duplicate username or email is a client error.
	_, err := st.CreateUser(ctx, "alice", "other@test.com", "not-a-real-hash")
	require.ErrorAs(t, err, &validationErr)

	_, err = st.CreateUser(ctx, "", "empty@test.com", "not-a-real-hash")
	require.ErrorAs(t, err, &validationErr)

	got, err := st.GetUser(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	var notFoundErr *apperr.NotFoundError
	_, err = st.GetUser(ctx, uuid.New())
	require.ErrorAs(t, err, &notFoundErr)

	user, hash, err := st.Credentials(ctx, "alice@test.com")
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, user.UserID)
	assert.Equal(t, "not-a-real-hash", hash)

	_, _, err = st.Credentials(ctx, "nobody@test.com")
	require.ErrorAs(t, err, &notFoundErr)
}
