package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserRegistered   Type = "user.registered"
	TypeUserLoggedIn     Type = "user.logged_in"
	TypeUserLoginFailed  Type = "user.login_failed"
	TypeUserLoggedOut    Type = "user.logged_out"
	TypeUserLoggedOutAll Type = "user.logged_out_all"
	TypeTokenRefreshed   Type = "token.refreshed"
	TypeUserBanned       Type = "user.banned"
	TypeUserUnbanned     Type = "user.unbanned"
)

// Payload is the auth-specific body of an event. It never carries passwords
// or token values.
type Payload struct {
	SubjectID string `json:"subjectId,omitempty"`
	Username  string `json:"username,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actorId,omitempty"` // who triggered the event
}

func New(t Type, actorID string, payload Payload) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // channel plus unsubscribe function
}
