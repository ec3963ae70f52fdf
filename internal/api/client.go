// Package api implements the pull side of the chat server protocol over
// fasthttp, plus the dialer for the push channel. The session cookie
// issued at login authenticates every subsequent call.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-chat-client.git/internal/chat"
)

const (
	sessionCookie  = "axum_session"
	defaultTimeout = 15 * time.Second
)

// Client talks to the chat server's HTTP API on behalf of one session.
type Client struct {
	base string
	http *fasthttp.Client
	log  *zap.Logger

	mu     sync.RWMutex
	cookie string
}

func NewClient(base string, log *zap.Logger) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &fasthttp.Client{Name: "pelusa-chat-client"},
		log:  log,
	}
}

// Authenticated reports whether a session cookie is held.
func (c *Client) Authenticated() bool {
	return c.SessionCookie() != ""
}

func (c *Client) SessionCookie() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cookie
}

// SetSessionCookie restores a persisted session, e.g. after a restart.
func (c *Client) SetSessionCookie(value string) {
	c.mu.Lock()
	c.cookie = value
	c.mu.Unlock()
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registration struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Password string `json:"password"`
}

// Login authenticates and captures the session cookie.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.do(ctx, fasthttp.MethodPost, "/login",
		credentials{Username: username, Password: password}, nil, true)
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, username, name, surname, password string) error {
	return c.do(ctx, fasthttp.MethodPost, "/users",
		registration{Username: username, Name: name, Surname: surname, Password: password}, nil, false)
}

// Logout ends the server session and forgets the cookie either way.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, fasthttp.MethodPost, "/logout", struct{}{}, nil, false)
	c.SetSessionCookie("")
	return err
}

// FetchConversations pulls the full conversation list.
func (c *Client) FetchConversations(ctx context.Context) ([]chat.Conversation, error) {
	var out []chat.Conversation
	if err := c.do(ctx, fasthttp.MethodGet, "/chats", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// messageRow is the server's message shape; Sender is mapped from
// from_user by the message store, not here.
type messageRow struct {
	ChatID   int64  `json:"chat_id"`
	FromUser string `json:"from_user"`
	Msg      string `json:"msg"`
	IsAuto   bool   `json:"is_auto"`
	SendAt   string `json:"send_at"`
}

// FetchHistory pulls the ordered message log of one conversation.
func (c *Client) FetchHistory(ctx context.Context, chatID int64) ([]chat.Message, error) {
	var rows []messageRow
	path := fmt.Sprintf("/chats/%d/messages", chatID)
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, &rows, false); err != nil {
		return nil, err
	}
	out := make([]chat.Message, len(rows))
	for i, r := range rows {
		out[i] = chat.Message{
			ChatID: r.ChatID,
			Sender: r.FromUser,
			Text:   r.Msg,
			SentAt: r.SendAt,
			IsAuto: r.IsAuto,
		}
	}
	return out, nil
}

// FetchPendingInvitations pulls the unresolved group invites.
func (c *Client) FetchPendingInvitations(ctx context.Context) ([]chat.PendingInvitation, error) {
	var out []chat.PendingInvitation
	if err := c.do(ctx, fasthttp.MethodGet, "/requests", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDirectConversation requests a private chat with username. The
// server reports whether one already existed instead of duplicating it.
func (c *Client) CreateDirectConversation(ctx context.Context, username string) (chat.DirectChatResult, error) {
	body := struct {
		OtherUsername string `json:"other_username"`
	}{username}
	var out chat.DirectChatResult
	if err := c.do(ctx, fasthttp.MethodPost, "/chats", body, &out, false); err != nil {
		return chat.DirectChatResult{}, err
	}
	return out, nil
}

// CreateGroupConversation creates a group and invites the given users.
func (c *Client) CreateGroupConversation(ctx context.Context, name string, invitees []string) (int64, error) {
	body := struct {
		Name         string   `json:"name"`
		IsGroup      bool     `json:"is_group"`
		Participants []string `json:"participants"`
	}{name, true, invitees}
	var out struct {
		ChatID int64 `json:"chat_id"`
	}
	if err := c.do(ctx, fasthttp.MethodPost, "/groups", body, &out, false); err != nil {
		return 0, err
	}
	return out.ChatID, nil
}

// InviteToGroup invites users to an existing group and returns the
// server's summary message.
func (c *Client) InviteToGroup(ctx context.Context, chatID int64, usernames []string) (string, error) {
	body := struct {
		To []string `json:"to"`
	}{usernames}
	var out struct {
		Message string `json:"message"`
	}
	path := fmt.Sprintf("/chats/%d/requests", chatID)
	if err := c.do(ctx, fasthttp.MethodPost, path, body, &out, false); err != nil {
		return "", err
	}
	return out.Message, nil
}

// RespondToInvitation accepts or rejects a pending invitation.
func (c *Client) RespondToInvitation(ctx context.Context, chatID int64, accept bool) error {
	if accept {
		body := struct {
			ChatID int64 `json:"chat_id"`
		}{chatID}
		path := fmt.Sprintf("/requests/%d/accept", chatID)
		return c.do(ctx, fasthttp.MethodPost, path, body, nil, false)
	}
	path := fmt.Sprintf("/requests/%d/delete", chatID)
	return c.do(ctx, fasthttp.MethodDelete, path, nil, nil, false)
}

// LeaveConversation leaves a group chat.
func (c *Client) LeaveConversation(ctx context.Context, chatID int64) error {
	path := fmt.Sprintf("/chats/%d", chatID)
	return c.do(ctx, fasthttp.MethodDelete, path, nil, nil, false)
}

// DialLive opens the push channel for the authenticated session.
func (c *Client) DialLive(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if ck := c.SessionCookie(); ck != "" {
		header.Set("Cookie", sessionCookie+"="+ck)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(c.base)+"/ws", header)
	if err != nil {
		return nil, fmt.Errorf("%w: dial live channel: %v", chat.ErrTransport, err)
	}
	return conn, nil
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, captureCookie bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + path)
	req.Header.SetMethod(method)
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}
	if ck := c.SessionCookie(); ck != "" {
		req.Header.SetCookie(sessionCookie, ck)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, defaultTimeout)
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", chat.ErrTransport, method, path, err)
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status))
		return remoteError(status, resp.Body())
	}

	if captureCookie {
		c.captureCookie(resp)
	}
	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("%w: decode %s response: %v", chat.ErrTransport, path, err)
		}
	}
	return nil
}

// remoteError maps HTTP status to the error taxonomy, keeping whatever
// message the server attached.
func remoteError(status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	kind := chat.ErrTransport
	switch status {
	case fasthttp.StatusNotFound:
		kind = chat.ErrNotFound
	case fasthttp.StatusConflict:
		kind = chat.ErrConflict
	}
	return &chat.RemoteError{Kind: kind, Status: status, Message: payload.Message}
}

func (c *Client) captureCookie(resp *fasthttp.Response) {
	ck := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(ck)
	ck.SetKey(sessionCookie)
	if resp.Header.Cookie(ck) {
		c.SetSessionCookie(string(ck.Value()))
	}
}
