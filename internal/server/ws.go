package server

import (
	"log"
	"time"

	"chatsync/internal/models"
	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const pingInterval = 30 * time.Second

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT token before the request proceeds.
func (s *Server) AuthMiddleware(c *fiber.Ctx) error {
	// Token from query param `access_token` or Authorization header
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}

	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	userID, userName, err := ValidateToken(token, s.cfg.JWTSecret)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	c.Locals("user_id", userID)
	c.Locals("user_name", userName)
	return c.Next()
}

// wsHandler owns one push connection: greet, read commands, clean up.
func (s *Server) wsHandler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID := c.Locals("user_id").(string)
		userName := c.Locals("user_name").(string)

		connID := uuid.New().String()
		s.manager.Register(connID, userID, userName, c)

		defer func() {
			s.manager.Unregister(connID)
			c.Close()
		}()

		s.manager.SendTo(connID, models.Event{
			Event:  models.EventConnected,
			UserID: userID,
			Detail: "Welcome to the chat server",
		})

		// Keepalive. WriteControl is safe alongside the manager's writes.
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					deadline := time.Now().Add(5 * time.Second)
					if err := c.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
						return
					}
				}
			}
		}()

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("error: %v", err)
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}

			var ev models.Event
			if err := utils.SafeJSONParse(msg, &ev); err != nil {
				utils.LogError(err, "JSON Parse")
				continue
			}

			s.handleEvent(connID, userID, userName, ev)
		}
	})
}
