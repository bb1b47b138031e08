package notifications

import (
	"encoding/json"
	"time"
)

// Event types delivered to websocket clients.
const (
	EventPostCreated     = "post_created"
	EventPostLiked       = "post_liked"
	EventPostCommented   = "post_commented"
	EventProfileFollowed = "profile_followed"
)

// Event is a domain event fanned out to connected clients.
type Event struct {
	Type    string       `json:"type"`
	Payload EventPayload `json:"payload"`

	// RecipientID is the user the event is addressed to; 0 broadcasts.
	RecipientID uint `json:"-"`
}

// EventPayload carries the identifiers a client needs to refresh its view.
type EventPayload struct {
	ActorID   uint      `json:"actor_id"`
	Actor     string    `json:"actor,omitempty"`
	PostID    uint      `json:"post_id,omitempty"`
	CommentID uint      `json:"comment_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent stamps an event of the given type.
func NewEvent(eventType string, recipientID uint, payload EventPayload) Event {
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now().UTC()
	}
	return Event{Type: eventType, RecipientID: recipientID, Payload: payload}
}

// Encode returns the wire form sent over Redis, NATS and websockets.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
