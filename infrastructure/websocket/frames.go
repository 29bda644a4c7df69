package websocket

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Inbound frame types.
const (
	TypeSendDirect     = "send_direct"
	TypeSendGroup      = "send_group"
	TypeJoinGroupRoom  = "join_group_room"
	TypeLeaveGroupRoom = "leave_group_room"
	TypeHistoryDirect  = "history_direct"
	TypeHistoryGroup   = "history_group"
	TypeCreateGroup    = "create_group"
	TypeJoinGroup      = "join_group"
	TypeLeaveGroup     = "leave_group"
	TypeAddMember      = "add_member"

	TypeListConversations = "list_conversations"
	TypeListGroups        = "list_groups"
	TypeGetGroup          = "get_group"
)

// Outbound frame types.
const (
	TypeConnected  = event.ConnectedName
	TypeNewMessage = event.NewMessageName
	TypeError      = "error"
	TypeHistory    = "history"
	TypeAck        = "ack"

	TypeConversations = "conversations"
	TypeGroups        = "groups"
	TypeGroup         = "group"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type SendDirectPayload struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type SendGroupPayload struct {
	GroupID string `json:"group_id"`
	Content string `json:"content"`
}

type GroupPayload struct {
	GroupID string `json:"group_id"`
}

type HistoryDirectPayload struct {
	UserID string  `json:"user_id"`
	Cursor *string `json:"cursor,omitempty"`
}

type HistoryGroupPayload struct {
	GroupID string  `json:"group_id"`
	Cursor  *string `json:"cursor,omitempty"`
}

type CreateGroupPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AddMemberPayload struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
}

type ConnectedPayload struct {
	ConnectionID string   `json:"connection_id"`
	UserID       string   `json:"user_id"`
	Rooms        []string `json:"rooms"`
}

type MessageView struct {
	ID         string    `json:"id"`
	Seq        uint64    `json:"seq"`
	Content    string    `json:"content"`
	SenderID   string    `json:"sender_id"`
	Kind       string    `json:"kind"`
	ReceiverID string    `json:"receiver_id,omitempty"`
	GroupID    string    `json:"group_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}

type NewMessagePayload struct {
	Message MessageView `json:"message"`
}

type GroupView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type HistoryPayload struct {
	Messages []MessageView `json:"messages"`
	Cursor   *string       `json:"cursor,omitempty"`
}

type AckPayload struct {
	Message *MessageView `json:"message,omitempty"`
	Group   *GroupView   `json:"group,omitempty"`
}

func toMessageView(m domain.Message) MessageView {
	return MessageView{
		ID:         m.ID.String(),
		Seq:        m.Seq,
		Content:    m.Content,
		SenderID:   string(m.SenderID),
		Kind:       string(m.Kind),
		ReceiverID: string(m.ReceiverID),
		GroupID:    string(m.GroupID),
		CreatedAt:  m.CreatedAt,
		IsRead:     m.IsRead,
	}
}

func toMessageViews(messages []domain.Message) []MessageView {
	return lo.Map(messages, func(m domain.Message, _ int) MessageView { return toMessageView(m) })
}

func toGroupView(g domain.Group) GroupView {
	return GroupView{
		ID:          string(g.ID),
		Name:        g.Name,
		Description: g.Description,
		CreatedBy:   string(g.CreatedBy),
		CreatedAt:   g.CreatedAt,
		IsActive:    g.IsActive,
	}
}

type ConversationView struct {
	Kind        string       `json:"kind"`
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	LastMessage *MessageView `json:"last_message"`
}

type ConversationsPayload struct {
	Conversations []ConversationView `json:"conversations"`
}

type GroupsPayload struct {
	Groups []GroupView `json:"groups"`
}

type GroupDetailsPayload struct {
	Group       GroupView `json:"group"`
	Members     []string  `json:"members"`
	MemberCount int       `json:"member_count"`
}

func toConversationViews(conversations []domain.Conversation) []ConversationView {
	return lo.Map(conversations, func(c domain.Conversation, _ int) ConversationView {
		view := ConversationView{Kind: string(c.Kind), ID: c.ID, Name: c.Name}
		if c.LastMessage != nil {
			last := toMessageView(*c.LastMessage)
			view.LastMessage = &last
		}
		return view
	})
}

func toGroupDetailsPayload(d domain.GroupDetails) GroupDetailsPayload {
	return GroupDetailsPayload{
		Group:       toGroupView(d.Group),
		Members:     lo.Map(d.Members, func(id domain.UserID, _ int) string { return string(id) }),
		MemberCount: len(d.Members),
	}
}

func encodeFrame(frameType, requestID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", frameType, err)
	}
	return json.Marshal(Frame{Type: frameType, RequestID: requestID, Payload: raw})
}

// encodeEvent turns an engine event into the frame pushed to one connection.
func encodeEvent(e event.DomainEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.Connected:
		return encodeFrame(TypeConnected, "", ConnectedPayload{
			ConnectionID: string(evt.ConnectionID),
			UserID:       string(evt.UserID),
			Rooms:        lo.Map(evt.Rooms, func(r domain.RoomID, _ int) string { return string(r) }),
		})
	case event.NewMessage:
		return encodeFrame(TypeNewMessage, "", NewMessagePayload{Message: toMessageView(evt.Message)})
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
	}
}

func errorPayload(err error) ErrorPayload {
	return ErrorPayload{
		Code:      errors.Code(err),
		Message:   err.Error(),
		Retryable: errors.Retryable(err),
	}
}

func decodePayload[T any](f Frame) (T, error) {
	var payload T
	if len(f.Payload) == 0 {
		return payload, fmt.Errorf("%w: %s frame without payload", errors.ErrValidation, f.Type)
	}
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		return payload, fmt.Errorf("%w: malformed %s payload: %v", errors.ErrValidation, f.Type, err)
	}
	return payload, nil
}
