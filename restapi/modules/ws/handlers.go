// Package ws implements the websocket endpoint that feeds live events to
// connected clients. Each connection becomes a broadcast session; the read
// loop only handles subscription control messages, all event traffic flows
// outbound through the broadcaster.
package ws

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyberrange/simnet-backend/broadcast"
	"github.com/cyberrange/simnet-backend/model"
)

// Upgrade rejects plain HTTP requests on the websocket route.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the websocket connection handler. The connection is
// registered under a fresh session id, greeted with a welcome envelope, and
// then served until the peer disconnects or a read fails.
func Handler(b *broadcast.Broadcaster, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return websocket.New(func(conn *websocket.Conn) {
		sessionID := uuid.New().String()
		b.Registry().Register(sessionID, conn)
		defer b.Registry().Unregister(sessionID)

		welcome := model.NewEnvelope(model.MessageTypeWelcome, map[string]interface{}{
			"session_id": sessionID,
		})
		if err := b.SendTo(sessionID, welcome); err != nil {
			logger.Warn("failed to send welcome", zap.String("session", sessionID), zap.Error(err))
			return
		}

		logger.Info("websocket session opened", zap.String("session", sessionID))

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				logger.Info("websocket session closed",
					zap.String("session", sessionID), zap.Error(err))
				return
			}

			handleClientMessage(b, sessionID, raw, logger)
		}
	})
}

// handleClientMessage dispatches one inbound control frame. Replies go only
// to the originating session.
func handleClientMessage(b *broadcast.Broadcaster, sessionID string, raw []byte, logger *zap.Logger) {
	var msg model.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		sendError(b, sessionID, "Malformed message: "+err.Error())
		return
	}

	switch msg.Type {
	case model.ClientMessageSubscribe:
		var payload model.SubscribePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				sendError(b, sessionID, "Malformed subscribe payload: "+err.Error())
				return
			}
		}

		if err := b.Subscribe(sessionID, payload.FilterType, payload.FilterValue); err != nil {
			sendError(b, sessionID, err.Error())
			return
		}

		confirm := model.NewEnvelope(model.MessageTypeSubscriptionConfirmed, map[string]interface{}{
			"filter_type":  payload.FilterType,
			"filter_value": payload.FilterValue,
		})
		if err := b.SendTo(sessionID, confirm); err != nil {
			logger.Warn("failed to confirm subscription",
				zap.String("session", sessionID), zap.Error(err))
		}

	case model.ClientMessageUnsubscribe:
		if err := b.Unsubscribe(sessionID); err != nil {
			sendError(b, sessionID, err.Error())
			return
		}

		confirm := model.NewEnvelope(model.MessageTypeUnsubscriptionConfirmed, nil)
		if err := b.SendTo(sessionID, confirm); err != nil {
			logger.Warn("failed to confirm unsubscription",
				zap.String("session", sessionID), zap.Error(err))
		}

	case model.ClientMessagePong:
		// Keepalive only, nothing to do.

	default:
		sendError(b, sessionID, "Unknown message type: "+msg.Type)
	}
}

func sendError(b *broadcast.Broadcaster, sessionID, message string) {
	env := model.NewEnvelope(model.MessageTypeError, map[string]interface{}{
		"message": message,
	})
	// Best effort; a dead session is cleaned up by the registry.
	_ = b.SendTo(sessionID, env)
}
