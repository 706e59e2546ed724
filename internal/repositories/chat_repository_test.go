package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDirectChat(t *testing.T) {
	database := testDB(t)
	users := NewUserRepo(database)
	chats := NewChatRepo(database)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	chat, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID}, "")
	require.NoError(t, err)
	assert.False(t, chat.IsGroup)
	assert.Nil(t, chat.Name)
	require.NotNil(t, chat.DirectKey)

	for _, id := range []string{alice.ID, bob.ID} {
		member, err := chats.IsParticipant(ctx, chat.ID, id)
		require.NoError(t, err)
		assert.True(t, member)
	}
}

func TestCreateDirectChatIsIdempotent(t *testing.T) {
	database := testDB(t)
	users := NewUserRepo(database)
	chats := NewChatRepo(database)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	first, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID}, "")
	require.NoError(t, err)

	// A second create for the same pair trips the unique direct key and is
	// resolved to the existing chat, whichever side initiates.
	second, err := chats.CreateChat(ctx, bob.ID, []string{alice.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	participants, err := chats.ListParticipants(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}

func TestFindDirectChatIsSymmetric(t *testing.T) {
	database := testDB(t)
	users := NewUserRepo(database)
	chats := NewChatRepo(database)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	chat, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID}, "")
	require.NoError(t, err)

	forward, err := chats.FindDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	reverse, err := chats.FindDirectChat(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, chat.ID, forward.ID)
	assert.Equal(t, chat.ID, reverse.ID)
}

func TestCreateGroupChat(t *testing.T) {
	database := testDB(t)
	users := NewUserRepo(database)
	chats := NewChatRepo(database)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")
	carol := createTestUser(t, users, "carol")

	chat, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID, carol.ID}, "project")
	require.NoError(t, err)
	assert.True(t, chat.IsGroup)
	require.NotNil(t, chat.Name)
	assert.Equal(t, "project", *chat.Name)
	assert.Nil(t, chat.DirectKey)

	participants, err := chats.ListParticipants(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 3)
}

func TestNamedPairChatIsGroup(t *testing.T) {
	database := testDB(t)
	users := NewUserRepo(database)
	chats := NewChatRepo(database)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	// Naming the chat makes it a group even with a single invitee, so two
	// of them can coexist for the same pair.
	chat, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID}, "named")
	require.NoError(t, err)
	assert.True(t, chat.IsGroup)
	assert.Nil(t, chat.DirectKey)

	again, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID}, "named")
	require.NoError(t, err)
	assert.NotEqual(t, chat.ID, again.ID)
}

func TestCreateChatUnknownParticipantRollsBack(t *testing.T) {
	database := testDB(t)
	users := NewUserRepo(database)
	chats := NewChatRepo(database)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	_, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID, "ghost"}, "team")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Nothing may survive the failed transaction.
	listed, err := chats.ListChatsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreateChatDeduplicatesParticipants(t *testing.T) {
	database := testDB(t)
	users := NewUserRepo(database)
	chats := NewChatRepo(database)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	chat, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID, bob.ID, alice.ID}, "dupes")
	require.NoError(t, err)

	participants, err := chats.ListParticipants(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}

func TestListChatsForUser(t *testing.T) {
	database := testDB(t)
	users := NewUserRepo(database)
	chats := NewChatRepo(database)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")
	carol := createTestUser(t, users, "carol")

	_, err := chats.CreateChat(ctx, alice.ID, []string{bob.ID}, "")
	require.NoError(t, err)
	_, err = chats.CreateChat(ctx, bob.ID, []string{carol.ID}, "")
	require.NoError(t, err)

	aliceChats, err := chats.ListChatsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, aliceChats, 1)

	bobChats, err := chats.ListChatsForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, bobChats, 2)
}

func TestGetChatNotFound(t *testing.T) {
	chats := NewChatRepo(testDB(t))

	_, err := chats.GetChat(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestFindDirectChatNotFound(t *testing.T) {
	chats := NewChatRepo(testDB(t))

	_, err := chats.FindDirectChat(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrChatNotFound)
}
