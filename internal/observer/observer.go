// Package observer wraps one (element, notification) pair into a
// subscription that can be started and stopped.
package observer

import (
	"log/slog"

	"github.com/1broseidon/autumn/internal/platform"
)

// Poster moves work onto the coordination loop.
type Poster interface {
	Post(fn func()) bool
}

// Subscription delivers one kind of notification for one element to a
// handler running on the coordination loop.
type Subscription struct {
	source  platform.EventSource
	loop    Poster
	element platform.Element
	kind    platform.Notification
	handler func(platform.Element)
	logger  *slog.Logger

	token  platform.Token
	active bool
	// generation guards against deliveries queued before a Stop reaching the
	// handler after it (or after a later restart).
	generation uint64
}

// New creates an inactive subscription.
func New(source platform.EventSource, loop Poster, el platform.Element, kind platform.Notification, handler func(platform.Element), logger *slog.Logger) *Subscription {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscription{
		source:  source,
		loop:    loop,
		element: el,
		kind:    kind,
		handler: handler,
		logger:  logger,
	}
}

// Start registers with the event source. Calling it while active is a no-op.
// Registration failures (typically a process that already exited) are logged
// and swallowed; the subscription stays inactive.
func (s *Subscription) Start() {
	if s.active {
		return
	}

	s.generation++
	gen := s.generation
	tok, err := s.source.Observe(s.element, s.kind, func(target platform.Element) {
		s.loop.Post(func() {
			if !s.active || s.generation != gen {
				return
			}
			s.handler(target)
		})
	})
	if err != nil {
		s.logger.Debug("observe failed",
			"element", s.element,
			"notification", s.kind,
			"error", err)
		return
	}

	s.token = tok
	s.active = true
}

// Stop unregisters from the event source. Calling it while inactive is a no-op.
func (s *Subscription) Stop() {
	if !s.active {
		return
	}
	s.active = false
	s.generation++

	if err := s.source.Unobserve(s.token); err != nil {
		s.logger.Debug("unobserve failed",
			"element", s.element,
			"notification", s.kind,
			"error", err)
	}
	s.token = 0
}

// Active reports whether the subscription is registered.
func (s *Subscription) Active() bool { return s.active }

// Element returns the observed element.
func (s *Subscription) Element() platform.Element { return s.element }

// Kind returns the observed notification.
func (s *Subscription) Kind() platform.Notification { return s.kind }

// Set is a group of subscriptions started and stopped together.
type Set []*Subscription

func (set Set) Start() {
	for _, s := range set {
		s.Start()
	}
}

func (set Set) Stop() {
	for _, s := range set {
		s.Stop()
	}
}
