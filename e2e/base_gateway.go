package e2e

import (
	"bytes"
	"chat-fanout/auth"
	"chat-fanout/infrastructure/websocket"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const frameTimeout = 5 * time.Second

type BaseGatewaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration and skips without a server.
func (s *BaseGatewaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.GatewayAddr == "" {
		s.T().Skip("E2E_GATEWAY_ADDR not set")
	}
}

func (s *BaseGatewaySuite) step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// NewUserID avoids collisions with previous runs against the same database.
func (s *BaseGatewaySuite) NewUserID(name string) string {
	return name + "-" + uuid.NewString()[:8]
}

// Register creates an account and returns its token.
func (s *BaseGatewaySuite) Register(userID string) string {
	s.step("Register " + userID)
	body, err := json.Marshal(auth.RegisterRequest{UserID: userID, Username: userID, Password: "E2e!Passw0rd-" + userID})
	s.Require().NoError(err)
	resp, err := http.Post(strings.TrimSuffix(s.Config.GatewayAddr, "/")+"/register", "application/json",
		bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var token struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&token))
	return token.Token
}

// Dial opens a websocket with token and returns it with its connected payload.
func (s *BaseGatewaySuite) Dial(token string) (*ws.Conn, websocket.ConnectedPayload) {
	url := "ws" + strings.TrimPrefix(strings.TrimSuffix(s.Config.GatewayAddr, "/"), "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	s.Require().NoError(err, "Failed to connect to gateway at "+url)
	s.T().Cleanup(func() { _ = conn.Close() })

	f := s.ReadUntil(conn, websocket.TypeConnected)
	var connected websocket.ConnectedPayload
	s.Require().NoError(json.Unmarshal(f.Payload, &connected))
	return conn, connected
}

func (s *BaseGatewaySuite) Send(conn *ws.Conn, frameType, requestID string, payload any) {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	f := websocket.Frame{Type: frameType, RequestID: requestID, Payload: raw}
	s.debug("SEND", f)
	s.Require().NoError(conn.WriteJSON(f))
}

// ReadUntil skips frames of other types.
func (s *BaseGatewaySuite) ReadUntil(conn *ws.Conn, frameType string) websocket.Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(frameTimeout)))
	for {
		var f websocket.Frame
		s.Require().NoError(conn.ReadJSON(&f), "waiting for a %s frame", frameType)
		s.debug("RECV", f)
		if f.Type == frameType {
			return f
		}
	}
}

func (s *BaseGatewaySuite) debug(direction string, f websocket.Frame) {
	if !s.Config.DebugJSON {
		return
	}
	pretty, _ := json.MarshalIndent(f, "", "  ")
	s.T().Logf("%s %s\n%s", direction, f.Type, pretty)
}

// WithHealth provides a gRPC health client when E2E_HEALTH_ADDR is set.
func (s *BaseGatewaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("E2E_HEALTH_ADDR not set")
	}
	s.step(name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to health endpoint at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
