// Package server is the in-memory reference backend for the sync client: it
// implements the REST surface and push-channel protocol the client consumes,
// for local development and integration tests.
package server

import (
	"net"
	"time"

	"chatsync/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type Server struct {
	cfg     Config
	app     *fiber.App
	users   *UserStore
	store   *Store
	manager *Manager
}

func New(cfg Config) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "secret"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 72 * time.Hour
	}

	s := &Server{
		cfg:     cfg,
		users:   NewUserStore(),
		store:   NewStore(),
		manager: NewManager(),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")

	api.Post("/login", s.loginHandler)

	protected := api.Group("/")
	protected.Use(s.AuthMiddleware)
	protected.Get("/users", s.listUsersHandler)
	protected.Get("/conversations", s.listConversationsHandler)
	protected.Post("/conversations", s.createConversationHandler)
	protected.Get("/conversations/:id", s.getConversationHandler)
	protected.Get("/conversations/:id/messages", s.listMessagesHandler)
	protected.Post("/conversations/:id/messages", s.sendMessageHandler)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Middleware order matters: the upgrade check runs before token auth.
	app.Use("/ws", WSUpgradeMiddleware)
	app.Use("/ws", s.AuthMiddleware)
	app.Get("/ws", s.wsHandler())

	s.app = app
	return s
}

// Users exposes the registry for seeding.
func (s *Server) Users() *UserStore { return s.users }

// Store exposes the conversation store for seeding.
func (s *Server) Store() *Store { return s.store }

// Listen serves on the given address until Shutdown.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Serve serves on an existing listener; tests use this with a :0 listener.
func (s *Server) Serve(ln net.Listener) error { return s.app.Listener(ln) }

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) loginHandler(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	u, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	token, err := GenerateJWT(u, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.JSON(fiber.Map{
		"token":     token,
		"user_id":   u.ID,
		"user_name": u.Name,
	})
}

// listUsersHandler returns the user directory with live presence, excluding
// the requester.
func (s *Server) listUsersHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	resp := []fiber.Map{}
	for _, u := range s.users.List() {
		if u.ID == userID {
			continue
		}
		status := "offline"
		if s.manager.IsUserOnline(u.ID) {
			status = "online"
		}
		resp = append(resp, fiber.Map{
			"id":         u.ID,
			"name":       u.Name,
			"created_at": u.CreatedAt,
			"status":     status,
		})
	}
	return c.JSON(resp)
}

func (s *Server) listConversationsHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	convs := s.store.ListForUser(userID)
	if convs == nil {
		convs = []models.Conversation{}
	}
	return c.JSON(convs)
}

func (s *Server) createConversationHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Kind      models.ConversationKind `json:"kind"`
		Subject   string                  `json:"subject"`
		MemberIDs []string                `json:"member_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if req.Kind == "" {
		req.Kind = models.KindDirect
	}

	conv, err := s.store.CreateConversation(req.Kind, req.Subject, userID, req.MemberIDs, s.users)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	// Let the other members' clients pick up the new conversation.
	for _, m := range conv.Members {
		if m.UserID != userID {
			s.manager.SendToUser(m.UserID, models.Event{
				Event:          models.EventNewConversation,
				ConversationID: conv.ID,
			})
		}
	}

	return c.Status(201).JSON(conv)
}

func (s *Server) getConversationHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	conv, err := s.store.Get(c.Params("id"), userID)
	if err != nil {
		return s.storeError(c, err)
	}
	return c.JSON(conv)
}

func (s *Server) listMessagesHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	msgs, err := s.store.Messages(c.Params("id"), userID)
	if err != nil {
		return s.storeError(c, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return c.JSON(msgs)
}

// sendMessageHandler is the REST fallback send path; the confirmed message
// also fans out on the push channel exactly like a websocket send.
func (s *Server) sendMessageHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	userName := c.Locals("user_name").(string)

	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	msg, err := s.store.AppendMessage(c.Params("id"), userID, userName, req.Body)
	if err != nil {
		return s.storeError(c, err)
	}

	s.fanOutNewMessage(msg)
	return c.Status(201).JSON(msg)
}

func (s *Server) storeError(c *fiber.Ctx, err error) error {
	switch err {
	case ErrNotFound:
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case ErrNotMember:
		return c.Status(403).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
}
