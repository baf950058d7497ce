// Package notify defines the owner-notification events pushed to clients
// when another user touches one of their catalog records, and the Sink
// interface through which sessions receive them.
package notify

import "strings"

// Kind identifies what happened to the owner's record.
type Kind string

const (
	// KindOpened means another user opened the record.
	KindOpened Kind = "OPEN"

	// KindDeleted means another user deleted the record.
	KindDeleted Kind = "DELETE"

	// KindUpdated means another user updated the record's size.
	KindUpdated Kind = "UPDATE"
)

// separator splits the kind from the actor in the wire encoding. It is part
// of the protocol and must not change.
const separator = "##"

// Event is a notification destined for a record owner.
type Event struct {
	// Kind is what happened
	Kind Kind

	// Actor is the username that performed the operation
	Actor string
}

// Encode renders the event in its wire form, "KIND##actor".
func (e Event) Encode() string {
	return string(e.Kind) + separator + e.Actor
}

// Decode parses the wire form back into an Event.
//
// Unrecognized kinds are preserved as-is rather than rejected: receivers
// tolerate kinds they don't know so the server can grow new event types
// without breaking older clients. A payload with no separator decodes to an
// event whose Kind is the whole payload and whose Actor is empty.
func Decode(payload string) Event {
	kind, actor, found := strings.Cut(payload, separator)
	if !found {
		return Event{Kind: Kind(payload)}
	}
	return Event{Kind: Kind(kind), Actor: actor}
}

// Sink is a one-way delivery handle for events, typically backed by the
// network connection a session logged in over.
//
// Send failures are recoverable: callers log and move on, and the session
// owning the sink stays registered.
type Sink interface {
	Send(event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event Event) error

func (f SinkFunc) Send(event Event) error {
	return f(event)
}
