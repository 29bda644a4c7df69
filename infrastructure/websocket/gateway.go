package websocket

import (
	"chat-fanout/auth"
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"chat-fanout/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	defaultSendBufferSize = 256
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxFrameSize   = 64 * 1024
)

type Config struct {
	SendBufferSize int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxFrameSize   int64
	// AllowedOrigins empty or containing "*" accepts any origin.
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = defaultMaxFrameSize
	}
	return c
}

// Gateway upgrades authenticated requests and translates frames into engine
// and service calls. It holds no live state of its own.
type Gateway struct {
	log      *slog.Logger
	engine   contract.IEngine
	chat     services.IChatService
	groups   services.IGroupService
	config   Config
	upgrader ws.Upgrader
}

func NewGateway(log *slog.Logger, engine contract.IEngine, chat services.IChatService,
	groups services.IGroupService, config Config) *Gateway {
	g := &Gateway{
		log:    log,
		engine: engine,
		chat:   chat,
		groups: groups,
		config: config.withDefaults(),
	}
	g.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.config.AllowedOrigins) == 0 || lo.Contains(g.config.AllowedOrigins, "*") {
		return true
	}
	return lo.Contains(g.config.AllowedOrigins, origin)
}

// ServeHTTP expects the identity set by auth.Middleware and serves the
// connection until the socket closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("Websocket upgrade failed", "user_id", userID, "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	ctx := r.Context()
	client := newClient(g.log, conn, userID, g.config)
	connection, err := g.engine.Connect(ctx, userID, client)
	if err != nil {
		g.log.Warn("Connection refused", "user_id", userID, "error", err)
		g.refuse(conn, err)
		return
	}
	client.connID = connection.ID

	go client.writePump()
	defer func() {
		g.engine.Disconnect(connection.ID)
		_ = client.Close()
	}()

	client.readPump(
		func(raw []byte) { g.handle(ctx, client, raw) },
		func() { g.engine.Touch(connection.ID) },
	)
}

// refuse runs before the write pump starts so it may write directly.
func (g *Gateway) refuse(conn *ws.Conn, cause error) {
	defer func() { _ = conn.Close() }()
	raw, err := encodeFrame(TypeError, "", errorPayload(cause))
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(g.config.WriteWait))
	if err = conn.WriteMessage(ws.TextMessage, raw); err != nil {
		return
	}
	_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.ClosePolicyViolation, errors.Code(cause)))
}

// handle answers errors to the originating connection only.
func (g *Gateway) handle(ctx context.Context, c *Client, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.replyError(ctx, "", fmt.Errorf("%w: malformed frame: %v", errors.ErrValidation, err))
		return
	}
	if err := g.dispatch(ctx, c, f); err != nil {
		g.log.Debug("Request failed", "connection_id", c.connID, "type", f.Type,
			"request_id", f.RequestID, "error", err)
		c.replyError(ctx, f.RequestID, err)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, f Frame) error {
	switch f.Type {
	case TypeSendDirect:
		return g.sendDirect(ctx, c, f)
	case TypeSendGroup:
		return g.sendGroup(ctx, c, f)
	case TypeJoinGroupRoom:
		p, err := decodePayload[GroupPayload](f)
		if err != nil {
			return err
		}
		if err = g.engine.JoinGroupRoom(ctx, c.userID, domain.GroupID(p.GroupID)); err != nil {
			return err
		}
		c.reply(ctx, TypeAck, f.RequestID, AckPayload{})
		return nil
	case TypeLeaveGroupRoom:
		p, err := decodePayload[GroupPayload](f)
		if err != nil {
			return err
		}
		g.engine.LeaveGroupRoom(c.userID, domain.GroupID(p.GroupID))
		c.reply(ctx, TypeAck, f.RequestID, AckPayload{})
		return nil
	case TypeHistoryDirect:
		p, err := decodePayload[HistoryDirectPayload](f)
		if err != nil {
			return err
		}
		messages, cursor, err := g.chat.DirectHistory(ctx, c.userID, domain.UserID(p.UserID), p.Cursor)
		if err != nil {
			return err
		}
		c.reply(ctx, TypeHistory, f.RequestID, HistoryPayload{Messages: toMessageViews(messages), Cursor: cursor})
		return nil
	case TypeHistoryGroup:
		p, err := decodePayload[HistoryGroupPayload](f)
		if err != nil {
			return err
		}
		messages, cursor, err := g.chat.GroupHistory(ctx, c.userID, domain.GroupID(p.GroupID), p.Cursor)
		if err != nil {
			return err
		}
		c.reply(ctx, TypeHistory, f.RequestID, HistoryPayload{Messages: toMessageViews(messages), Cursor: cursor})
		return nil
	case TypeCreateGroup, TypeJoinGroup, TypeLeaveGroup, TypeAddMember:
		return g.manageGroup(ctx, c, f)
	case TypeListConversations:
		conversations, err := g.chat.Conversations(ctx, c.userID)
		if err != nil {
			return err
		}
		c.reply(ctx, TypeConversations, f.RequestID, ConversationsPayload{Conversations: toConversationViews(conversations)})
		return nil
	case TypeListGroups:
		groups, err := g.groups.Groups(ctx, c.userID)
		if err != nil {
			return err
		}
		c.reply(ctx, TypeGroups, f.RequestID, GroupsPayload{Groups: lo.Map(groups, func(group domain.Group, _ int) GroupView {
			return toGroupView(group)
		})})
		return nil
	case TypeGetGroup:
		p, err := decodePayload[GroupPayload](f)
		if err != nil {
			return err
		}
		details, err := g.groups.Group(ctx, c.userID, domain.GroupID(p.GroupID))
		if err != nil {
			return err
		}
		c.reply(ctx, TypeGroup, f.RequestID, toGroupDetailsPayload(details))
		return nil
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownEvent, f.Type)
	}
}

// The sender receives the message through its own inbox, the ack only
// correlates the request.
func (g *Gateway) sendDirect(ctx context.Context, c *Client, f Frame) error {
	p, err := decodePayload[SendDirectPayload](f)
	if err != nil {
		return err
	}
	msg, err := g.engine.SendDirect(ctx, domain.SendDirectCommand{
		SenderID:   c.userID,
		ReceiverID: domain.UserID(p.ReceiverID),
		Content:    p.Content,
	})
	if err != nil {
		return err
	}
	view := toMessageView(msg)
	c.reply(ctx, TypeAck, f.RequestID, AckPayload{Message: &view})
	return nil
}

func (g *Gateway) sendGroup(ctx context.Context, c *Client, f Frame) error {
	p, err := decodePayload[SendGroupPayload](f)
	if err != nil {
		return err
	}
	msg, err := g.engine.SendGroup(ctx, domain.SendGroupCommand{
		SenderID: c.userID,
		GroupID:  domain.GroupID(p.GroupID),
		Content:  p.Content,
	})
	if err != nil {
		return err
	}
	view := toMessageView(msg)
	c.reply(ctx, TypeAck, f.RequestID, AckPayload{Message: &view})
	return nil
}

func (g *Gateway) manageGroup(ctx context.Context, c *Client, f Frame) error {
	var (
		group domain.Group
		err   error
	)
	switch f.Type {
	case TypeCreateGroup:
		var p CreateGroupPayload
		if p, err = decodePayload[CreateGroupPayload](f); err != nil {
			return err
		}
		group, err = g.groups.CreateGroup(ctx, domain.CreateGroupCommand{
			CreatorID:   c.userID,
			Name:        p.Name,
			Description: p.Description,
		})
	case TypeJoinGroup, TypeLeaveGroup:
		var p GroupPayload
		if p, err = decodePayload[GroupPayload](f); err != nil {
			return err
		}
		if f.Type == TypeJoinGroup {
			group, err = g.groups.JoinGroup(ctx, c.userID, domain.GroupID(p.GroupID))
		} else {
			group, err = g.groups.LeaveGroup(ctx, c.userID, domain.GroupID(p.GroupID))
		}
	case TypeAddMember:
		var p AddMemberPayload
		if p, err = decodePayload[AddMemberPayload](f); err != nil {
			return err
		}
		group, err = g.groups.AddMember(ctx, c.userID, domain.UserID(p.UserID), domain.GroupID(p.GroupID))
	}
	if err != nil {
		return err
	}
	view := toGroupView(group)
	c.reply(ctx, TypeAck, f.RequestID, AckPayload{Group: &view})
	return nil
}
