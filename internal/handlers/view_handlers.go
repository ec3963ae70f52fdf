// Package handlers exposes the session core to the local view surfaces.
// Handlers stay thin: decode, call a contract method, encode. No
// conversation state lives here.
package handlers

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-chat-client.git/internal/api"
	"github.com/pelusa-v/pelusa-chat-client.git/internal/chat"
	"github.com/pelusa-v/pelusa-chat-client.git/internal/state"
)

type ViewHandlers struct {
	session  *chat.Session
	workflow *chat.Workflow
	client   *api.Client
	store    *state.Store
	relay    *LiveRelay
	log      *zap.Logger
}

func New(session *chat.Session, workflow *chat.Workflow, client *api.Client, store *state.Store, relay *LiveRelay, log *zap.Logger) *ViewHandlers {
	return &ViewHandlers{
		session:  session,
		workflow: workflow,
		client:   client,
		store:    store,
		relay:    relay,
		log:      log,
	}
}

// Register mounts all view routes on the app.
func (h *ViewHandlers) Register(app *fiber.App) {
	app.Post("/api/session", h.LoginHandler)
	app.Delete("/api/session", h.LogoutHandler)
	app.Post("/api/users", h.RegisterUserHandler)

	app.Get("/api/chats", h.ChatsHandler)
	app.Post("/api/chats", h.CreateDirectHandler)
	app.Post("/api/chats/:id/select", h.SelectChatHandler)
	app.Get("/api/chats/:id/messages", h.MessagesHandler)
	app.Post("/api/chats/:id/invite", h.InviteHandler)
	app.Delete("/api/chats/:id", h.LeaveChatHandler)

	app.Post("/api/groups", h.CreateGroupHandler)
	app.Post("/api/invitees", h.AddInviteeHandler)
	app.Delete("/api/invitees/:username", h.RemoveInviteeHandler)

	app.Get("/api/requests", h.RequestsHandler)
	app.Post("/api/requests/:id/accept", h.AcceptRequestHandler)
	app.Post("/api/requests/:id/reject", h.RejectRequestHandler)

	app.Get("/ws/live", websocket.New(h.LiveHandler))
}

// LoginHandler POST /api/session
func (h *ViewHandlers) LoginHandler(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil || body.Username == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if err := h.client.Login(c.Context(), body.Username, body.Password); err != nil {
		return failure(c, err)
	}
	h.session.SetUser(body.Username)
	if err := h.store.SaveSession(body.Username, h.client.SessionCookie()); err != nil {
		h.log.Warn("persist session failed", zap.Error(err))
	}
	return c.JSON(fiber.Map{"username": body.Username})
}

// LogoutHandler DELETE /api/session
func (h *ViewHandlers) LogoutHandler(c *fiber.Ctx) error {
	if err := h.client.Logout(c.Context()); err != nil {
		h.log.Warn("server logout failed", zap.Error(err))
	}
	if err := h.store.ClearSession(); err != nil {
		h.log.Warn("clear persisted session failed", zap.Error(err))
	}
	h.session.SetUser("")
	h.session.ClearFocus()
	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterUserHandler POST /api/users
func (h *ViewHandlers) RegisterUserHandler(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Name     string `json:"name"`
		Surname  string `json:"surname"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil || body.Username == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if err := h.client.Register(c.Context(), body.Username, body.Name, body.Surname, body.Password); err != nil {
		return failure(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// ChatsHandler GET /api/chats
// Roster view activation: settles handoff flags and refreshes. A failed
// refresh still answers with the empty state rather than an error.
func (h *ViewHandlers) ChatsHandler(c *fiber.Ctx) error {
	view, err := h.session.ActivateRosterView(c.Context())
	if err != nil {
		h.log.Warn("roster refresh failed", zap.Error(err))
	}
	return c.JSON(view)
}

// CreateDirectHandler POST /api/chats
func (h *ViewHandlers) CreateDirectHandler(c *fiber.Ctx) error {
	var body struct {
		OtherUsername string `json:"other_username"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	chatID, notice, err := h.workflow.CreateDirect(c.Context(), body.OtherUsername)
	if err != nil {
		return failureNotice(c, err, notice)
	}
	return c.JSON(fiber.Map{"chat_id": chatID, "notice": notice})
}

// SelectChatHandler POST /api/chats/:id/select
func (h *ViewHandlers) SelectChatHandler(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if err := h.session.Select(c.Context(), int64(chatID)); err != nil {
		h.log.Warn("history load failed", zap.Int("chat_id", chatID), zap.Error(err))
	}
	return c.JSON(h.session.Messages().History(int64(chatID)))
}

// MessagesHandler GET /api/chats/:id/messages
func (h *ViewHandlers) MessagesHandler(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	return c.JSON(h.session.Messages().History(int64(chatID)))
}

// InviteHandler POST /api/chats/:id/invite
// Submits the pending invitee list to an existing group.
func (h *ViewHandlers) InviteHandler(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	notice, werr := h.workflow.Invite(c.Context(), int64(chatID))
	if werr != nil {
		return failureNotice(c, werr, notice)
	}
	return c.JSON(fiber.Map{"notice": notice})
}

// LeaveChatHandler DELETE /api/chats/:id
func (h *ViewHandlers) LeaveChatHandler(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	notice, werr := h.workflow.Leave(c.Context(), int64(chatID))
	if werr != nil {
		return failureNotice(c, werr, notice)
	}
	return c.JSON(fiber.Map{"notice": notice})
}

// CreateGroupHandler POST /api/groups
// Creates a group from the pending invitee list.
func (h *ViewHandlers) CreateGroupHandler(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	chatID, notice, err := h.workflow.CreateGroup(c.Context(), body.Name)
	if err != nil {
		return failureNotice(c, err, notice)
	}
	return c.JSON(fiber.Map{"chat_id": chatID, "notice": notice})
}

// AddInviteeHandler POST /api/invitees
func (h *ViewHandlers) AddInviteeHandler(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	notice, err := h.workflow.AddInvitee(body.Username)
	if err != nil {
		return failureNotice(c, err, notice)
	}
	return c.JSON(fiber.Map{"invitees": h.workflow.Invitees()})
}

// RemoveInviteeHandler DELETE /api/invitees/:username
func (h *ViewHandlers) RemoveInviteeHandler(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	h.workflow.RemoveInvitee(username)
	return c.JSON(fiber.Map{"invitees": h.workflow.Invitees()})
}

// RequestsHandler GET /api/requests
func (h *ViewHandlers) RequestsHandler(c *fiber.Ctx) error {
	pending, err := h.workflow.PendingInvitations(c.Context())
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(pending)
}

// AcceptRequestHandler POST /api/requests/:id/accept
func (h *ViewHandlers) AcceptRequestHandler(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	notice, werr := h.workflow.Accept(c.Context(), int64(chatID))
	if werr != nil {
		return failureNotice(c, werr, notice)
	}
	return c.JSON(fiber.Map{"notice": notice})
}

// RejectRequestHandler POST /api/requests/:id/reject
func (h *ViewHandlers) RejectRequestHandler(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("id")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	notice, werr := h.workflow.Reject(c.Context(), int64(chatID))
	if werr != nil {
		return failureNotice(c, werr, notice)
	}
	return c.JSON(fiber.Map{"notice": notice})
}

// LiveHandler GET /ws/live attaches a view to the live relay.
func (h *ViewHandlers) LiveHandler(conn *websocket.Conn) {
	h.relay.Serve(conn)
}

func statusFromErr(err error) int {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, chat.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusBadGateway
	}
}

func failure(c *fiber.Ctx, err error) error {
	return c.Status(statusFromErr(err)).JSON(fiber.Map{"message": err.Error()})
}

func failureNotice(c *fiber.Ctx, err error, notice chat.Notice) error {
	return c.Status(statusFromErr(err)).JSON(fiber.Map{"notice": notice})
}
