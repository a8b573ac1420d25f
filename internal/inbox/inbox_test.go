package inbox

import (
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func conv(id string, createdAt time.Time, unread int) models.Conversation {
	return models.Conversation{
		ID:          id,
		Kind:        models.KindDirect,
		UnreadCount: unread,
		CreatedAt:   createdAt,
		Members: []models.Member{
			{UserID: "viewer", UserName: "ana"},
			{UserID: "u-" + id, UserName: "peer-" + id},
		},
	}
}

func incoming(convID, senderID string, at time.Time) models.Message {
	return models.Message{
		ID:             "m-" + convID + at.String(),
		ConversationID: convID,
		SenderID:       senderID,
		Body:           "hey",
		CreatedAt:      at,
	}
}

func TestApplyIncomingMessageMovesToTop(t *testing.T) {
	in := New("viewer")
	in.Load([]models.Conversation{
		conv("a", base.Add(3*time.Hour), 0),
		conv("b", base.Add(2*time.Hour), 2),
		conv("c", base.Add(1*time.Hour), 0),
	})

	// Conversation b has unreadCount=2; a newMessage event for b arrives.
	require.True(t, in.ApplyIncomingMessage(incoming("b", "u-b", base.Add(5*time.Hour))))

	convs := in.Conversations()
	assert.Equal(t, "b", convs[0].ID)
	assert.Equal(t, 3, convs[0].UnreadCount)
	assert.Equal(t, "hey", convs[0].LastMessage.Body)
}

func TestViewerMessagesDoNotCountUnread(t *testing.T) {
	in := New("viewer")
	in.Load([]models.Conversation{conv("a", base, 0)})

	in.ApplyIncomingMessage(incoming("a", "viewer", base.Add(time.Minute)))

	c, ok := in.Get("a")
	require.True(t, ok)
	assert.Equal(t, 0, c.UnreadCount)
	require.NotNil(t, c.LastMessage)
}

func TestUnreadIncrementsOncePerEvent(t *testing.T) {
	in := New("viewer")
	in.Load([]models.Conversation{conv("a", base, 0)})

	in.ApplyIncomingMessage(incoming("a", "u-a", base.Add(1*time.Minute)))
	in.ApplyIncomingMessage(incoming("a", "u-a", base.Add(2*time.Minute)))

	c, _ := in.Get("a")
	assert.Equal(t, 2, c.UnreadCount)
}

func TestMarkReadResetsToZeroAndKeepsOrder(t *testing.T) {
	in := New("viewer")
	in.Load([]models.Conversation{
		conv("a", base.Add(2*time.Hour), 4),
		conv("b", base.Add(1*time.Hour), 0),
	})

	in.MarkRead("a")
	in.MarkRead("a") // never below zero
	in.MarkRead("missing")

	convs := in.Conversations()
	assert.Equal(t, "a", convs[0].ID)
	assert.Equal(t, 0, convs[0].UnreadCount)
}

func TestApplyIncomingMessageUnknownConversation(t *testing.T) {
	in := New("viewer")
	assert.False(t, in.ApplyIncomingMessage(incoming("ghost", "u-1", base)))
}

func TestUpsertAddsAndReplaces(t *testing.T) {
	in := New("viewer")
	in.Load([]models.Conversation{conv("a", base, 0)})

	fresh := conv("b", base.Add(time.Hour), 0)
	in.Upsert(fresh)
	assert.Len(t, in.Conversations(), 2)
	assert.Equal(t, "b", in.Conversations()[0].ID)

	fresh.Subject = "renamed"
	in.Upsert(fresh)
	c, _ := in.Get("b")
	assert.Equal(t, "renamed", c.Subject)
	assert.Len(t, in.Conversations(), 2)
}

func TestSearchIsPureProjection(t *testing.T) {
	in := New("viewer")
	in.Load([]models.Conversation{
		conv("a", base.Add(2*time.Hour), 0), // peer-a
		conv("b", base.Add(1*time.Hour), 0), // peer-b
	})

	hits := in.Search("PEER-B")
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	assert.Len(t, in.Search(""), 2)
	assert.Empty(t, in.Search("nobody"))

	// Underlying list untouched.
	convs := in.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "a", convs[0].ID)
}
