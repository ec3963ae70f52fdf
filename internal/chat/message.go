package chat

// ChatKind distinguishes two-party chats from groups.
type ChatKind string

const (
	KindDirect ChatKind = "direct"
	KindGroup  ChatKind = "group"
)

// SenderSelf marks log entries written by the current user.
const SenderSelf = "self"

// Conversation is one roster entry. The wire shape matches the server's
// GET /chats response.
type Conversation struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"` // group's own name; empty for direct chats until derived
	IsGroup      bool     `json:"is_group"`
	CreatedAt    string   `json:"created_at"`
	Participants []string `json:"participants"` // excludes the current user
}

func (c Conversation) Kind() ChatKind {
	if c.IsGroup {
		return KindGroup
	}
	return KindDirect
}

// Message is one entry of a conversation log.
type Message struct {
	ChatID int64  `json:"chat_id"`
	Sender string `json:"sender"` // username, or SenderSelf for own messages
	Text   string `json:"text"`
	SentAt string `json:"send_at"` // ISO-8601, server-stamped
	IsAuto bool   `json:"is_auto"` // system notice (membership changes etc.)
}

// LiveEvent is one inbound frame of the push channel.
type LiveEvent struct {
	ChatID   int64  `json:"chat_id"`
	FromUser string `json:"from_user"`
	Text     string `json:"msg"`
	SentAt   string `json:"send_at"`
	IsAuto   bool   `json:"is_auto"`
}

// Message converts the event to a log entry, folding the current user
// into SenderSelf.
func (e LiveEvent) Message(currentUser string) Message {
	sender := e.FromUser
	if currentUser != "" && sender == currentUser {
		sender = SenderSelf
	}
	return Message{
		ChatID: e.ChatID,
		Sender: sender,
		Text:   e.Text,
		SentAt: e.SentAt,
		IsAuto: e.IsAuto,
	}
}

// OutboundMessage is the frame written to the push channel. SentAt stays
// null; the server stamps it.
type OutboundMessage struct {
	ChatID   int64   `json:"chat_id"`
	FromUser string  `json:"from_user"`
	Text     string  `json:"msg"`
	SentAt   *string `json:"send_at"`
}

// PendingInvitation is an unresolved group invite, shaped like one row
// of GET /requests. It is removed, never mutated, when resolved.
type PendingInvitation struct {
	ChatID    int64  `json:"chat_id"`
	Name      string `json:"name"`
	InvitedBy string `json:"from"`
}

// DirectChatResult is the server's answer to a private-chat creation:
// either a fresh chat or a redirect to the one that already existed.
type DirectChatResult struct {
	ChatID        int64 `json:"chat_id"`
	AlreadyExists bool  `json:"already_exists"`
}
