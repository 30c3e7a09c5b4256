package player

import (
	"errors"
	"time"
)

// ErrAutoplayBlocked is returned by Element.Play when the environment
// refuses playback that was not initiated by a user gesture.
var ErrAutoplayBlocked = errors.New("autoplay blocked")

// EventType identifies a media element event.
type EventType int

const (
	EventCanPlay EventType = iota
	EventPlaying
	EventPaused
	EventTimeUpdate
	EventEnded
	EventStalled
)

// Event is one entry in an element's event stream. Position is meaningful
// for EventTimeUpdate only.
type Event struct {
	Type     EventType
	Position time.Duration
}

// Element abstracts a playable media element. Implementations wrap whatever
// the embedding environment provides; tests use a scripted fake. All methods
// are called from the scheduler's event loop.
type Element interface {
	ID() string

	// Play starts or resumes playback. Returns ErrAutoplayBlocked when the
	// environment rejects an automatic play attempt.
	Play() error
	Pause()

	Seek(position time.Duration)
	Position() time.Duration
	Duration() time.Duration

	SetVolume(v float64)
	Volume() float64

	// Subscribe attaches a listener to the element's event stream. The
	// returned func detaches it.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// ElementFactory creates media elements for queue items. Song items load the
// song audio endpoint, segment items the synthesized speech endpoint.
type ElementFactory interface {
	NewElement(itemID string, itemType string) (Element, error)
}
