package websocket

import (
	"bytes"
	"chat-fanout/auth"
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"chat-fanout/repositories"
	"chat-fanout/runtime"
	"chat-fanout/runtime/workers"
	"chat-fanout/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	server *httptest.Server
	store  *repositories.Store
	engine *runtime.Engine
	tokens *auth.TokenVerifier
}

func newHarness(t *testing.T, config Config) *harness {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	store, err := repositories.Open(t.TempDir(), log, nil)
	require.NoError(t, err)

	engine := runtime.NewEngine(log, store, workers.NewSupervisor(log, 0), runtime.Config{
		PersistTimeout:   2 * time.Second,
		DeliveryTimeout:  time.Second,
		MaxContentLength: 500,
	})
	tokens := auth.NewTokenVerifier("gateway-test-secret", "chat-fanout-test", time.Hour)
	gateway := NewGateway(log, engine,
		services.NewChatService(store.Messages, store.Groups, store.Users),
		services.NewGroupService(log, store.Groups, engine),
		config)
	server := httptest.NewServer(NewRouter(log, gateway, services.NewAuthService(store.Users, tokens), tokens))

	t.Cleanup(func() {
		engine.Stop()
		server.Close()
		_ = store.Close()
	})
	return &harness{t: t, server: server, store: store, engine: engine, tokens: tokens}
}

func (h *harness) users(ids ...domain.UserID) {
	for _, id := range ids {
		_, err := h.store.Users.CreateUser(context.Background(), id, string(id), "")
		require.NoError(h.t, err)
	}
}

func (h *harness) wsURL() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
}

func (h *harness) dialRaw(header http.Header) (*ws.Conn, *http.Response, error) {
	conn, resp, err := ws.DefaultDialer.Dial(h.wsURL(), header)
	if conn != nil {
		h.t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

// dial opens a connection for userID and consumes its connected frame.
func (h *harness) dial(userID domain.UserID) (*ws.Conn, ConnectedPayload) {
	h.t.Helper()
	token, err := h.tokens.Issue(userID)
	require.NoError(h.t, err)
	conn, _, err := h.dialRaw(http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(h.t, err)

	f := readFrame(h.t, conn)
	require.Equal(h.t, TypeConnected, f.Type)
	var connected ConnectedPayload
	require.NoError(h.t, json.Unmarshal(f.Payload, &connected))
	return conn, connected
}

func send(t *testing.T, conn *ws.Conn, frameType, requestID string, payload any) {
	t.Helper()
	raw, err := encodeFrame(frameType, requestID, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, raw))
}

func readFrame(t *testing.T, conn *ws.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil skips frames of other types.
func readUntil(t *testing.T, conn *ws.Conn, frameType string) Frame {
	t.Helper()
	for {
		if f := readFrame(t, conn); f.Type == frameType {
			return f
		}
	}
}

func payloadOf[T any](t *testing.T, f Frame) T {
	t.Helper()
	var p T
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p
}

func requireSilent(t *testing.T, conn *ws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var f Frame
	err := conn.ReadJSON(&f)
	require.Error(t, err, "unexpected %s frame", f.Type)
}

func TestGateway_Rejects_Missing_Token(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})

	_, resp, err := h.dialRaw(nil)

	req.ErrorIs(err, ws.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_Rejects_Foreign_Origin(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{AllowedOrigins: []string{"https://chat.example"}})
	h.users("alice")
	token, err := h.tokens.Issue("alice")
	req.NoError(err)

	_, resp, err := h.dialRaw(http.Header{
		"Authorization": {"Bearer " + token},
		"Origin":        {"https://evil.example"},
	})

	req.ErrorIs(err, ws.ErrBadHandshake)
	req.Equal(http.StatusForbidden, resp.StatusCode)
	req.False(h.engine.IsOnline("alice"))
}

func TestGateway_Connect_Sends_Rooms(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})
	h.users("alice")

	_, connected := h.dial("alice")

	req.Equal("alice", connected.UserID)
	req.NotEmpty(connected.ConnectionID)
	req.Equal([]string{"user:alice"}, connected.Rooms)
	req.True(h.engine.IsOnline("alice"))
}

func TestGateway_Direct_Message_Scenario(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})
	h.users("alice", "bob")
	alice, _ := h.dial("alice")
	bob, _ := h.dial("bob")

	// When alice sends a direct message to bob
	send(t, alice, TypeSendDirect, "req-1", SendDirectPayload{ReceiverID: "bob", Content: "hi bob"})

	// Then bob receives it
	received := payloadOf[NewMessagePayload](t, readUntil(t, bob, TypeNewMessage))
	req.Equal("hi bob", received.Message.Content)
	req.Equal("alice", received.Message.SenderID)
	req.Equal("bob", received.Message.ReceiverID)

	// And alice gets her echo then the ack of her request
	echo := payloadOf[NewMessagePayload](t, readUntil(t, alice, TypeNewMessage))
	req.Equal(received.Message.ID, echo.Message.ID)
	ack := readUntil(t, alice, TypeAck)
	req.Equal("req-1", ack.RequestID)
	req.Equal(received.Message.ID, payloadOf[AckPayload](t, ack).Message.ID)

	// And the conversation is stored
	stored, err := h.store.ListDirectMessages(context.Background(), "bob", "alice")
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("hi bob", stored[0].Content)
}

func TestGateway_Group_Lifecycle(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})
	h.users("alice", "bob", "carol")
	alice, _ := h.dial("alice")
	bob, _ := h.dial("bob")
	carol, _ := h.dial("carol")

	// Given alice creates a group
	send(t, alice, TypeCreateGroup, "create", CreateGroupPayload{Name: "Climbing"})
	created := payloadOf[AckPayload](t, readUntil(t, alice, TypeAck))
	req.NotNil(created.Group)
	groupID := created.Group.ID
	req.Equal("alice", created.Group.CreatedBy)

	// And bob joins it
	send(t, bob, TypeJoinGroup, "join", GroupPayload{GroupID: groupID})
	joined := readUntil(t, bob, TypeAck)
	req.Equal("join", joined.RequestID)
	req.Contains(h.engine.RoomsOf("bob"), domain.GroupRoom(domain.GroupID(groupID)))

	// When alice writes to the group
	send(t, alice, TypeSendGroup, "say", SendGroupPayload{GroupID: groupID, Content: "crag at noon"})

	// Then both members receive it and carol does not
	for _, conn := range []*ws.Conn{alice, bob} {
		msg := payloadOf[NewMessagePayload](t, readUntil(t, conn, TypeNewMessage))
		req.Equal("crag at noon", msg.Message.Content)
		req.Equal(groupID, msg.Message.GroupID)
	}
	requireSilent(t, carol)

	// And bob reads the group history
	send(t, bob, TypeHistoryGroup, "history", HistoryGroupPayload{GroupID: groupID})
	history := payloadOf[HistoryPayload](t, readUntil(t, bob, TypeHistory))
	req.Len(history.Messages, 1)
	req.Equal("crag at noon", history.Messages[0].Content)
}

func TestGateway_Conversations_And_Groups(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})
	h.users("alice", "bob", "carol")
	alice, _ := h.dial("alice")
	bob, _ := h.dial("bob")
	carol, _ := h.dial("carol")

	// Given alice wrote to bob, then carol wrote to alice, then alice created a silent group
	send(t, alice, TypeSendDirect, "to-bob", SendDirectPayload{ReceiverID: "bob", Content: "hi bob"})
	readUntil(t, alice, TypeAck)
	send(t, carol, TypeSendDirect, "to-alice", SendDirectPayload{ReceiverID: "alice", Content: "hi alice"})
	readUntil(t, carol, TypeAck)
	send(t, alice, TypeCreateGroup, "create", CreateGroupPayload{Name: "Climbing"})
	groupID := payloadOf[AckPayload](t, readUntil(t, alice, TypeAck)).Group.ID

	// When alice lists her conversations
	send(t, alice, TypeListConversations, "list", nil)
	f := readUntil(t, alice, TypeConversations)

	// Then the most recent comes first and the group without messages comes last
	req.Equal("list", f.RequestID)
	conversations := payloadOf[ConversationsPayload](t, f).Conversations
	req.Len(conversations, 3)
	req.Equal([]string{"carol", "bob", groupID}, lo.Map(conversations, func(c ConversationView, _ int) string { return c.ID }))
	req.Equal("hi alice", conversations[0].LastMessage.Content)
	req.Equal("hi bob", conversations[1].LastMessage.Content)
	req.Equal("group", conversations[2].Kind)
	req.Equal("Climbing", conversations[2].Name)
	req.Nil(conversations[2].LastMessage)

	// And her groups list holds the new group
	send(t, alice, TypeListGroups, "groups", nil)
	groups := payloadOf[GroupsPayload](t, readUntil(t, alice, TypeGroups)).Groups
	req.Len(groups, 1)
	req.Equal(groupID, groups[0].ID)

	// And only members read the group details
	send(t, alice, TypeGetGroup, "details", GroupPayload{GroupID: groupID})
	details := payloadOf[GroupDetailsPayload](t, readUntil(t, alice, TypeGroup))
	req.Equal([]string{"alice"}, details.Members)
	req.Equal(1, details.MemberCount)

	send(t, bob, TypeGetGroup, "peek", GroupPayload{GroupID: groupID})
	refused := readUntil(t, bob, TypeError)
	req.Equal("peek", refused.RequestID)
	req.Equal(errors.CodeValidation, payloadOf[ErrorPayload](t, refused).Code)
}

func TestGateway_Errors_Go_To_The_Requester_Only(t *testing.T) {
	tests := []struct {
		name      string
		frameType string
		payload   any
		code      string
	}{
		{name: "unknown group", frameType: TypeSendGroup,
			payload: SendGroupPayload{GroupID: "nowhere", Content: "hello"}, code: errors.CodeNotFound},
		{name: "unknown receiver", frameType: TypeSendDirect,
			payload: SendDirectPayload{ReceiverID: "ghost", Content: "hello"}, code: errors.CodeNotFound},
		{name: "empty content", frameType: TypeSendDirect,
			payload: SendDirectPayload{ReceiverID: "bob", Content: "  "}, code: errors.CodeValidation},
		{name: "content too long", frameType: TypeSendDirect,
			payload: SendDirectPayload{ReceiverID: "bob", Content: strings.Repeat("a", 501)}, code: errors.CodeValidation},
		{name: "join room without membership", frameType: TypeJoinGroupRoom,
			payload: GroupPayload{GroupID: "nowhere"}, code: errors.CodeValidation},
		{name: "history with unknown user", frameType: TypeHistoryDirect,
			payload: HistoryDirectPayload{UserID: "ghost"}, code: errors.CodeNotFound},
		{name: "details of unknown group", frameType: TypeGetGroup,
			payload: GroupPayload{GroupID: "nowhere"}, code: errors.CodeNotFound},
		{name: "unknown frame type", frameType: "shout",
			payload: GroupPayload{}, code: errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			h := newHarness(t, Config{})
			h.users("alice", "bob")
			alice, _ := h.dial("alice")
			bob, _ := h.dial("bob")

			send(t, alice, tt.frameType, "req-err", tt.payload)

			f := readUntil(t, alice, TypeError)
			req.Equal("req-err", f.RequestID)
			req.Equal(tt.code, payloadOf[ErrorPayload](t, f).Code)
			requireSilent(t, bob)
		})
	}
}

func TestGateway_Malformed_Frame(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})
	h.users("alice")
	alice, _ := h.dial("alice")

	req.NoError(alice.WriteMessage(ws.TextMessage, []byte("{not json")))

	f := readUntil(t, alice, TypeError)
	payload := payloadOf[ErrorPayload](t, f)
	req.Equal(errors.CodeValidation, payload.Code)
	req.False(payload.Retryable)

	// And the connection keeps working
	send(t, alice, TypeSendDirect, "self", SendDirectPayload{ReceiverID: "alice", Content: "note"})
	req.Equal("self", readUntil(t, alice, TypeAck).RequestID)
}

func TestGateway_Partial_Disconnect(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})
	h.users("alice", "bob")
	phone, _ := h.dial("alice")
	laptop, _ := h.dial("alice")
	bob, _ := h.dial("bob")

	// When the phone goes away
	req.NoError(phone.Close())
	req.Eventually(func() bool { return h.engine.Stats().Connections == 2 }, 2*time.Second, 10*time.Millisecond)

	// Then the laptop still receives messages
	send(t, bob, TypeSendDirect, "dm", SendDirectPayload{ReceiverID: "alice", Content: "still there?"})
	msg := payloadOf[NewMessagePayload](t, readUntil(t, laptop, TypeNewMessage))
	req.Equal("still there?", msg.Message.Content)

	// And the last disconnect takes alice offline
	req.NoError(laptop.Close())
	req.Eventually(func() bool { return !h.engine.IsOnline("alice") }, 2*time.Second, 10*time.Millisecond)
	req.Empty(h.engine.RoomsOf("alice"))
}

func TestGateway_Engine_Stop_Closes_Sockets(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})
	h.users("alice")
	alice, _ := h.dial("alice")

	h.engine.Stop()

	req.NoError(alice.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := alice.ReadMessage()
	req.True(ws.IsCloseError(err, ws.CloseNormalClosure), "got %v", err)
}

func TestRouter_Register_Then_Login(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Config{})
	post := func(path string, body any) (*http.Response, map[string]any) {
		raw, err := json.Marshal(body)
		req.NoError(err)
		resp, err := http.Post(h.server.URL+path, "application/json", bytes.NewReader(raw))
		req.NoError(err)
		defer resp.Body.Close()
		var decoded map[string]any
		req.NoError(json.NewDecoder(resp.Body).Decode(&decoded))
		return resp, decoded
	}
	account := auth.RegisterRequest{UserID: "dana", Username: "Dana", Password: "Str0ng!Passw0rd"}

	// When dana registers
	resp, body := post("/register", account)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.NotEmpty(body["token"])

	// Then registering twice conflicts
	resp, _ = post("/register", account)
	req.Equal(http.StatusConflict, resp.StatusCode)

	// And a wrong password is refused
	resp, body = post("/login", auth.LoginRequest{UserID: "dana", Password: "wrong"})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Equal(errors.CodeUnauthorized, body["code"])

	// And the right one yields a token accepted by the gateway
	resp, body = post("/login", auth.LoginRequest{UserID: "dana", Password: account.Password})
	req.Equal(http.StatusOK, resp.StatusCode)
	token, ok := body["token"].(string)
	req.True(ok)
	conn, _, err := h.dialRaw(http.Header{"Authorization": {"Bearer " + token}})
	req.NoError(err)
	f := readFrame(t, conn)
	req.Equal(TypeConnected, f.Type)
}

func TestClient_Consume_Never_Blocks(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	client := newClient(slog.Default(), nil, "alice", Config{SendBufferSize: 1}.withDefaults())
	evt := event.Connected{ConnectionID: "c1", UserID: "alice"}

	// Given a queue holding one frame
	req.NoError(client.Consume(ctx, evt))

	// When another event arrives, it is refused instead of blocking
	req.ErrorIs(client.Consume(ctx, evt), errors.ErrSlowConsumer)

	// And the slow connection is closed so the client resyncs from history
	select {
	case <-client.done:
	default:
		req.Fail("slow consumer was not closed")
	}
	req.Equal(ws.CloseTryAgainLater, client.closeCode)

	// And after close every event fails as a delivery error
	req.NoError(client.Close())
	req.Equal(ws.CloseTryAgainLater, client.closeCode)
	err := client.Consume(ctx, evt)
	req.ErrorIs(err, errors.ErrConnectionClosed)
	req.ErrorIs(err, errors.ErrDelivery)
}

func TestClient_Slow_Consumer_Gets_Queued_Frames_Then_Close(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	config := Config{SendBufferSize: 1}.withDefaults()
	upgrader := ws.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := newClient(log, conn, "alice", config)
		ctx := context.Background()
		// The second event overflows the queue before anything is written
		_ = client.Consume(ctx, event.Connected{ConnectionID: "c1", UserID: "alice"})
		_ = client.Consume(ctx, event.Connected{ConnectionID: "c1", UserID: "alice"})
		client.writePump()
	}))
	defer server.Close()

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	req.NoError(err)
	defer func() { _ = conn.Close() }()
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	// Then the frame queued before the overflow is still delivered
	_, raw, err := conn.ReadMessage()
	req.NoError(err)
	var f Frame
	req.NoError(json.Unmarshal(raw, &f))
	req.Equal(TypeConnected, f.Type)

	// And the connection is closed asking the client to come back later
	_, _, err = conn.ReadMessage()
	req.True(ws.IsCloseError(err, ws.CloseTryAgainLater), "unexpected error: %v", err)
}

func TestEncodeEvent_Rejects_Unknown_Event(t *testing.T) {
	req := require.New(t)

	_, err := encodeEvent(unknownEvent{})

	req.ErrorIs(err, errors.ErrUnknownEvent)
}

type unknownEvent struct{}

func (unknownEvent) Name() string { return "unknown" }
