package broadcast

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cyberrange/simnet-backend/model"
)

// Broadcaster fans event envelopes out to every registered session whose
// subscription matches. Delivery to one session is isolated from every other:
// a closed socket or serialization failure is logged and the session torn
// down, never surfaced to the publisher.
type Broadcaster struct {
	registry *Registry
	logger   *zap.Logger
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{registry: registry, logger: logger}
}

// Registry exposes the underlying session registry for the connection layer.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// Subscribe stores a filter for the session, replacing any prior
// subscription. Unknown filter types are rejected with
// *InvalidFilterTypeError and nothing is stored.
func (b *Broadcaster) Subscribe(sessionID, filterType, filterValue string) error {
	ft, err := ParseFilterType(filterType)
	if err != nil {
		return err
	}
	sess := b.registry.Get(sessionID)
	if sess == nil {
		return fmt.Errorf("session %s is not registered", sessionID)
	}
	sess.setSubscription(&Subscription{Type: ft, Value: filterValue})
	b.logger.Debug("subscription stored",
		zap.String("session", sessionID),
		zap.String("filter", ft.String()),
		zap.String("value", filterValue))
	return nil
}

// Unsubscribe clears the session's subscription. Clearing a session without
// one is a no-op.
func (b *Broadcaster) Unsubscribe(sessionID string) error {
	sess := b.registry.Get(sessionID)
	if sess == nil {
		return fmt.Errorf("session %s is not registered", sessionID)
	}
	sess.setSubscription(nil)
	return nil
}

// Publish delivers the envelope to every live session that should receive it:
// sessions with no subscription get broadcast-all topics, ALL subscriptions
// get everything, and scoped subscriptions are matched against the event
// scope. Send failures are logged per session and the failing session is
// unregistered; the publish itself never fails.
func (b *Broadcaster) Publish(topic model.Topic, env model.Envelope, scope model.EventScope) {
	delivered := 0
	b.registry.ForEach(true, func(sess *Session) {
		if !b.shouldDeliver(sess, topic, scope) {
			return
		}
		if err := b.send(sess, env); err != nil {
			b.logger.Warn("broadcast delivery failed, dropping session",
				zap.String("session", sess.ID),
				zap.String("topic", string(topic)),
				zap.String("type", env.Type),
				zap.Error(err))
			b.registry.Unregister(sess.ID)
			return
		}
		delivered++
	})
	b.logger.Debug("event published",
		zap.String("topic", string(topic)),
		zap.String("type", env.Type),
		zap.Int("delivered", delivered))
}

// SendTo delivers a control envelope to a single session. Used for welcome,
// error and subscription confirmation messages, which must never broadcast.
func (b *Broadcaster) SendTo(sessionID string, env model.Envelope) error {
	sess := b.registry.Get(sessionID)
	if sess == nil {
		return fmt.Errorf("session %s is not registered", sessionID)
	}
	if err := b.send(sess, env); err != nil {
		b.logger.Warn("control message delivery failed",
			zap.String("session", sessionID),
			zap.String("type", env.Type),
			zap.Error(err))
		b.registry.Unregister(sessionID)
		return err
	}
	return nil
}

func (b *Broadcaster) shouldDeliver(sess *Session, topic model.Topic, scope model.EventScope) bool {
	sub := sess.Subscription()
	if sub == nil {
		return topic == model.TopicScenarioLifecycle
	}
	return sub.Matches(scope)
}

func (b *Broadcaster) send(sess *Session, env model.Envelope) (err error) {
	// A Conn implementation may panic on a closed socket; contain the
	// failure to this session.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panic: %v", r)
		}
	}()
	if sess.Conn == nil {
		return fmt.Errorf("session %s has no connection", sess.ID)
	}
	return sess.Conn.WriteJSON(env)
}
