package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConversationTitle(t *testing.T) {
	direct := Conversation{
		ID:   "c-1",
		Kind: KindDirect,
		Members: []Member{
			{UserID: "u-1", UserName: "ana"},
			{UserID: "u-2", UserName: "bruno"},
		},
	}
	assert.Equal(t, "bruno", direct.Title("u-1"))
	assert.Equal(t, "ana", direct.Title("u-2"))

	group := Conversation{
		ID:   "c-2",
		Kind: KindGroup,
		Members: []Member{
			{UserID: "u-1", UserName: "ana"},
			{UserID: "u-2", UserName: "bruno"},
			{UserID: "u-3", UserName: "carla"},
		},
	}
	assert.Equal(t, "bruno, carla", group.Title("u-1"))

	group.Subject = "Solar fund"
	assert.Equal(t, "Solar fund", group.Title("u-1"))
}

func TestConversationPreview(t *testing.T) {
	c := Conversation{}
	assert.Equal(t, "", c.Preview())

	c.LastMessage = &Message{Body: "hola"}
	assert.Equal(t, "hola", c.Preview())

	c.LastMessage = &Message{Attachments: []Attachment{{MIMEType: "image/png"}}}
	assert.Equal(t, "Photo", c.Preview())

	c.LastMessage = &Message{Attachments: []Attachment{{MIMEType: "application/pdf"}}}
	assert.Equal(t, "Document", c.Preview())
}

func TestConversationLastActivity(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := Conversation{CreatedAt: created}
	assert.Equal(t, created, c.LastActivity())

	later := created.Add(time.Hour)
	c.LastMessage = &Message{CreatedAt: later}
	assert.Equal(t, later, c.LastActivity())
}

func TestAttachmentKind(t *testing.T) {
	assert.Equal(t, AttachmentImage, Attachment{MIMEType: "image/jpeg"}.Kind())
	assert.Equal(t, AttachmentVideo, Attachment{MIMEType: "video/mp4"}.Kind())
	assert.Equal(t, AttachmentDocument, Attachment{MIMEType: "application/pdf"}.Kind())
	assert.Equal(t, AttachmentDocument, Attachment{}.Kind())
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "now", RelativeTime(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m", RelativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h", RelativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d", RelativeTime(now.Add(-48*time.Hour), now))
	assert.Equal(t, "Mar 1", RelativeTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), now))
}
