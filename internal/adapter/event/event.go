// Package event defines the EventAdapter abstraction used to invalidate
// the query result cache and notify watchers when entries, tags, or
// relations change. Two backends: localbus (in-process buffered-channel
// fan-out, lite profile) and redisbus (Redis pub/sub, standard profile).
// Grounded on the teacher's internal/realtime event bus: bounded
// per-subscriber channels, drop-and-count instead of blocking a
// publisher on a slow subscriber.
package event

import "context"

// Kind names what changed.
type Kind string

const (
	KindEntryCreated   Kind = "entry.created"
	KindEntryUpdated   Kind = "entry.updated"
	KindEntryDeleted   Kind = "entry.deleted"
	KindTagAttached    Kind = "tag.attached"
	KindTagDetached    Kind = "tag.detached"
	KindRelationAdded  Kind = "relation.added"
	KindRelationRemove Kind = "relation.removed"
	KindLockAcquired   Kind = "lock.acquired"
	KindLockReleased   Kind = "lock.released"
	KindGrantCreated   Kind = "grant.created"
	KindGrantRevoked   Kind = "grant.revoked"
)

// Event is the payload delivered to every subscriber.
type Event struct {
	Kind      Kind
	EntryID   string
	ScopeKind string
	ScopeID   string
	AgentID   string // set on grant/revoke events, empty otherwise
}

// Handler receives one event. It must not block for long: localbus
// calls it from a goroutine dedicated to its subscriber, while redisbus
// calls every handler in turn from the one goroutine reading its
// pub/sub channel.
type Handler func(Event)

// Unsubscribe stops a subscription when called.
type Unsubscribe func()

// Adapter is the narrow interface the query result cache and any future
// websocket watch endpoint depend on.
type Adapter interface {
	// Publish delivers evt to every current subscriber. Never blocks on a
	// slow subscriber; a full subscriber channel drops the event and
	// increments a dropped-event counter instead.
	Publish(ctx context.Context, evt Event) error

	// Subscribe registers h for every future Publish call and returns a
	// function to cancel the subscription.
	Subscribe(ctx context.Context, h Handler) (Unsubscribe, error)

	// Close releases background resources (goroutines, connections).
	Close() error
}
