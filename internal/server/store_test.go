package server

import (
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T) (*UserStore, User, User, User) {
	t.Helper()
	users := NewUserStore()
	ana, err := users.Add("ana", "pw1")
	require.NoError(t, err)
	bruno, err := users.Add("bruno", "pw2")
	require.NoError(t, err)
	carla, err := users.Add("carla", "pw3")
	require.NoError(t, err)
	return users, ana, bruno, carla
}

func TestCreateDirectConversation(t *testing.T) {
	users, ana, bruno, _ := seedUsers(t)
	store := NewStore()

	conv, err := store.CreateConversation(models.KindDirect, "", ana.ID, []string{bruno.ID}, users)
	require.NoError(t, err)
	require.Len(t, conv.Members, 2)
	assert.Equal(t, models.RoleAdmin, conv.Members[0].Role)

	// Same pair again returns the existing conversation, even from the
	// other side.
	again, err := store.CreateConversation(models.KindDirect, "", bruno.ID, []string{ana.ID}, users)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	_, err = store.CreateConversation(models.KindDirect, "", ana.ID, nil, users)
	assert.ErrorIs(t, err, ErrDirectMemberPair)
}

func TestUnreadWatermark(t *testing.T) {
	users, ana, bruno, _ := seedUsers(t)
	store := NewStore()

	conv, err := store.CreateConversation(models.KindDirect, "", ana.ID, []string{bruno.ID}, users)
	require.NoError(t, err)

	_, err = store.AppendMessage(conv.ID, ana.ID, ana.Name, "one")
	require.NoError(t, err)
	_, err = store.AppendMessage(conv.ID, ana.ID, ana.Name, "two")
	require.NoError(t, err)

	// Bruno has two unread; Ana, the sender, none.
	fromBruno, err := store.Get(conv.ID, bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fromBruno.UnreadCount)
	assert.Equal(t, "two", fromBruno.LastMessage.Body)

	fromAna, err := store.Get(conv.ID, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fromAna.UnreadCount)

	require.NoError(t, store.MarkRead(conv.ID, bruno.ID, time.Now()))
	fromBruno, err = store.Get(conv.ID, bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fromBruno.UnreadCount)
}

func TestMembershipChecks(t *testing.T) {
	users, ana, bruno, carla := seedUsers(t)
	store := NewStore()

	conv, err := store.CreateConversation(models.KindDirect, "", ana.ID, []string{bruno.ID}, users)
	require.NoError(t, err)

	_, err = store.Messages(conv.ID, carla.ID)
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = store.AppendMessage(conv.ID, carla.ID, carla.Name, "hi")
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = store.AppendMessage(conv.ID, ana.ID, ana.Name, "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = store.Messages("ghost", ana.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthenticate(t *testing.T) {
	users, ana, _, _ := seedUsers(t)

	u, err := users.Authenticate("ana", "pw1")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, u.ID)

	_, err = users.Authenticate("ana", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = users.Authenticate("ghost", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = users.Add("ana", "again")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestTokenRoundTrip(t *testing.T) {
	_, ana, _, _ := seedUsers(t)

	tok, err := GenerateJWT(ana, "secret", time.Hour)
	require.NoError(t, err)

	id, name, err := ValidateToken(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, id)
	assert.Equal(t, "ana", name)

	_, _, err = ValidateToken(tok, "other-secret")
	assert.Error(t, err)
}
