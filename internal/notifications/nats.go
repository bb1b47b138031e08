package notifications

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "agora."

var eventSubjects = map[string]string{
	EventPostCreated:     subjectPrefix + "post.created",
	EventPostLiked:       subjectPrefix + "post.liked",
	EventPostCommented:   subjectPrefix + "post.commented",
	EventProfileFollowed: subjectPrefix + "profile.followed",
}

// SubjectFor returns the NATS subject an event type is mirrored to.
func SubjectFor(eventType string) (string, bool) {
	s, ok := eventSubjects[eventType]
	return s, ok
}

// Mirror republishes domain events onto NATS for out-of-process consumers.
type Mirror struct {
	conn *nats.Conn
}

// ConnectMirror dials the NATS server at url.
func ConnectMirror(url string) (*Mirror, error) {
	conn, err := nats.Connect(url,
		nats.Name("agora-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Mirror{conn: conn}, nil
}

// NewMirror wraps an existing connection.
func NewMirror(conn *nats.Conn) *Mirror {
	return &Mirror{conn: conn}
}

// Publish sends ev to its subject. Unknown event types are ignored.
func (m *Mirror) Publish(ev Event) error {
	if m == nil || m.conn == nil {
		return nil
	}
	subject, ok := SubjectFor(ev.Type)
	if !ok {
		return nil
	}
	data, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return m.conn.Publish(subject, data)
}

// Close drains pending messages and closes the connection.
func (m *Mirror) Close() error {
	if m == nil || m.conn == nil {
		return nil
	}
	return m.conn.Drain()
}
