package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NoticeLevel classifies transient user-facing feedback.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeDanger  NoticeLevel = "danger"
)

// Notice is a self-dismissing message for whichever surface is showing
// the operation. Duration is a display hint, not enforced here.
type Notice struct {
	Level    NoticeLevel   `json:"level"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// Display pacing: redirects move fast, plain alerts linger.
const (
	alertDuration    = 3 * time.Second
	redirectDuration = 1500 * time.Millisecond
	acceptRedirect   = 800 * time.Millisecond
)

// WorkflowAPI is the request/response surface the workflow drives.
type WorkflowAPI interface {
	CreateDirectConversation(ctx context.Context, username string) (DirectChatResult, error)
	CreateGroupConversation(ctx context.Context, name string, invitees []string) (int64, error)
	InviteToGroup(ctx context.Context, chatID int64, usernames []string) (string, error)
	FetchPendingInvitations(ctx context.Context) ([]PendingInvitation, error)
	RespondToInvitation(ctx context.Context, chatID int64, accept bool) error
	LeaveConversation(ctx context.Context, chatID int64) error
}

// Workflow drives chat creation and invitation state transitions on top
// of the session. Failures never corrupt session state: they surface as
// a Notice and an error, and nothing is retried automatically.
type Workflow struct {
	mu       sync.Mutex
	api      WorkflowAPI
	session  *Session
	handoff  HandoffStore
	invitees []string
	pending  []PendingInvitation
	log      *zap.Logger
}

func NewWorkflow(api WorkflowAPI, session *Session, handoff HandoffStore, log *zap.Logger) *Workflow {
	return &Workflow{
		api:     api,
		session: session,
		handoff: handoff,
		log:     log,
	}
}

// CreateDirect asks the server for a private chat with username. The
// server answering "already exists" is not an error: the caller gets
// the existing id either way, just with redirect messaging instead of
// created messaging. No second create request is issued.
func (w *Workflow) CreateDirect(ctx context.Context, username string) (int64, Notice, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, Notice{NoticeDanger, "Please enter a username", alertDuration},
			fmt.Errorf("%w: username required", ErrConflict)
	}

	res, err := w.api.CreateDirectConversation(ctx, username)
	if err != nil {
		return 0, w.failureNotice(err,
			"User not found. Please check the username.",
			"Error creating private chat. Please try again."), err
	}

	go w.refreshRoster()
	if res.AlreadyExists {
		return res.ChatID, Notice{NoticeWarning,
			"A private chat with this user already exists. Redirecting...",
			redirectDuration}, nil
	}
	return res.ChatID, Notice{NoticeSuccess,
		"Private chat created successfully!", redirectDuration}, nil
}

// AddInvitee appends a username to the pending invite list. A username
// already in the list is rejected with a warning, not silently ignored.
// The same list feeds group creation and invite-to-existing-group.
func (w *Workflow) AddInvitee(username string) (Notice, error) {
	u := strings.TrimSpace(username)
	if u == "" {
		return Notice{}, fmt.Errorf("%w: empty username", ErrConflict)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, have := range w.invitees {
		if have == u {
			return Notice{NoticeWarning, "Username already added", alertDuration},
				fmt.Errorf("%w: %q already added", ErrConflict, u)
		}
	}
	w.invitees = append(w.invitees, u)
	return Notice{}, nil
}

func (w *Workflow) RemoveInvitee(username string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.invitees[:0]
	for _, have := range w.invitees {
		if have != username {
			kept = append(kept, have)
		}
	}
	w.invitees = kept
}

// Invitees returns a copy of the pending invite list.
func (w *Workflow) Invitees() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.invitees...)
}

func (w *Workflow) ResetInvitees() {
	w.mu.Lock()
	w.invitees = nil
	w.mu.Unlock()
}

// CreateGroup submits a new group with the current invite list. The
// name must be non-empty and at least one invitee must be listed;
// duplicates were already blocked at AddInvitee time.
func (w *Workflow) CreateGroup(ctx context.Context, name string) (int64, Notice, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, Notice{NoticeDanger, "Please enter a group name", alertDuration},
			fmt.Errorf("%w: group name required", ErrConflict)
	}
	invitees := w.Invitees()
	if len(invitees) == 0 {
		return 0, Notice{NoticeDanger, "Please add at least one username", alertDuration},
			fmt.Errorf("%w: at least one invitee required", ErrConflict)
	}

	chatID, err := w.api.CreateGroupConversation(ctx, name, invitees)
	if err != nil {
		return 0, w.failureNotice(err,
			"One or more users not found. Please check the usernames.",
			"Error creating group. Please try again."), err
	}

	w.ResetInvitees()
	go w.refreshRoster()
	return chatID, Notice{NoticeSuccess,
		fmt.Sprintf("Group %q created successfully!", name), redirectDuration}, nil
}

// Invite submits the current invite list to an existing group. The
// server's summary message (how many invited, who was missing) is
// surfaced as the notice.
func (w *Workflow) Invite(ctx context.Context, chatID int64) (Notice, error) {
	invitees := w.Invitees()
	if len(invitees) == 0 {
		return Notice{NoticeDanger, "Please add at least one username", alertDuration},
			fmt.Errorf("%w: at least one invitee required", ErrConflict)
	}

	msg, err := w.api.InviteToGroup(ctx, chatID, invitees)
	if err != nil {
		return w.failureNotice(err,
			"One or more users not found. Please check the usernames.",
			"Error inviting users. Please try again."), err
	}

	w.ResetInvitees()
	return Notice{NoticeSuccess, msg, alertDuration}, nil
}

// PendingInvitations pulls the unresolved invites and caches them
// locally for Accept/Reject to resolve against.
func (w *Workflow) PendingInvitations(ctx context.Context) ([]PendingInvitation, error) {
	list, err := w.api.FetchPendingInvitations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch pending invitations: %w", err)
	}
	w.mu.Lock()
	w.pending = append([]PendingInvitation(nil), list...)
	w.mu.Unlock()
	return append([]PendingInvitation(nil), list...), nil
}

// Pending returns a copy of the cached unresolved invites.
func (w *Workflow) Pending() []PendingInvitation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]PendingInvitation(nil), w.pending...)
}

// Accept resolves one invitation. The local entry is removed only on
// the success path, and the accepted chat is handed to the roster view
// through the handoff store so it auto-selects after the reload.
func (w *Workflow) Accept(ctx context.Context, chatID int64) (Notice, error) {
	if err := w.api.RespondToInvitation(ctx, chatID, true); err != nil {
		return w.failureNotice(err,
			"Invitation not found.",
			"Error accepting invitation. Please try again."), err
	}

	w.removePending(chatID)
	if err := w.handoff.SetRefreshOwed(); err != nil {
		w.log.Warn("set refresh flag failed", zap.Error(err))
	}
	if err := w.handoff.SetAutoSelect(chatID); err != nil {
		w.log.Warn("set auto-select failed", zap.Error(err))
	}
	return Notice{NoticeSuccess, "Invitation accepted successfully!", acceptRedirect}, nil
}

// Reject resolves one invitation without joining. Only the rejected
// entry disappears; the rest of the pending list is untouched.
func (w *Workflow) Reject(ctx context.Context, chatID int64) (Notice, error) {
	if err := w.api.RespondToInvitation(ctx, chatID, false); err != nil {
		return w.failureNotice(err,
			"Invitation not found.",
			"Error rejecting invitation. Please try again."), err
	}

	w.removePending(chatID)
	return Notice{NoticeInfo, "Invitation rejected successfully!", alertDuration}, nil
}

// Leave exits a group: the conversation disappears from the session
// (roster entry, log, counter) and focus clears if it pointed there.
func (w *Workflow) Leave(ctx context.Context, chatID int64) (Notice, error) {
	if err := w.api.LeaveConversation(ctx, chatID); err != nil {
		return w.failureNotice(err,
			"Conversation not found.",
			"Error leaving group"), err
	}

	w.session.Forget(chatID)
	go w.refreshRoster()
	return Notice{NoticeSuccess, "Successfully left the group", alertDuration}, nil
}

func (w *Workflow) removePending(chatID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := make([]PendingInvitation, 0, len(w.pending))
	for _, p := range w.pending {
		if p.ChatID != chatID {
			kept = append(kept, p)
		}
	}
	w.pending = kept
}

// failureNotice maps the error taxonomy to user feedback: NotFound shows
// the server's message verbatim when present, everything else falls back
// to the generic text for the operation.
func (w *Workflow) failureNotice(err error, notFoundFallback, fallback string) Notice {
	if errors.Is(err, ErrNotFound) {
		return Notice{NoticeDanger, serverMessage(err, notFoundFallback), alertDuration}
	}
	return Notice{NoticeDanger, serverMessage(err, fallback), alertDuration}
}

func (w *Workflow) refreshRoster() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	_ = w.session.Roster().Refresh(ctx)
}
