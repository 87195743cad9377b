package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adwski/lysn/backend/model"
	"github.com/adwski/lysn/backend/service"
	"github.com/adwski/lysn/backend/storage/memory"
	_switch "github.com/adwski/lysn/backend/switch"
	"github.com/adwski/lysn/backend/timing"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbound struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	store := memory.NewMemStore(memory.Config{})
	anchors := timing.NewCoordinator(0)
	svc := service.NewService(service.Config{
		RoomStore: store,
		Switch: _switch.NewSwitch(_switch.Config{
			Logger:  &logger,
			Members: store,
			Anchors: anchors,
		}),
		Anchors: anchors,
		Logger:  &logger,
	})
	srv := httptest.NewServer(NewHandler(Config{
		Logger:           &logger,
		SignalingService: svc,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = c.Close() })

	msg := read(t, c)
	require.Equal(t, model.TypeConnected, msg.Type)
	return c
}

func read(t *testing.T, c *websocket.Conn) inbound {
	t.Helper()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg inbound
	require.NoError(t, c.ReadJSON(&msg))
	return msg
}

func write(t *testing.T, c *websocket.Conn, typ string, data any) {
	t.Helper()

	require.NoError(t, c.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func TestHandler_RoomLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice, bob := dial(t, srv), dial(t, srv)

	write(t, alice, model.TypeCreateRoom, map[string]any{"displayName": "Alice"})
	created := read(t, alice)
	require.Equal(t, model.TypeRoomCreated, created.Type)
	var room model.RoomData
	require.NoError(t, json.Unmarshal(created.Data, &room))
	assert.Regexp(t, `^[A-Z]+[0-9]+$`, room.RoomCode)
	assert.True(t, room.Participants[room.ParticipantID].IsHost)

	write(t, bob, model.TypeJoinRoom, map[string]any{"displayName": "Bob", "roomCode": room.RoomCode})
	joined := read(t, bob)
	require.Equal(t, model.TypeRoomJoined, joined.Type)
	var bobRoom model.RoomData
	require.NoError(t, json.Unmarshal(joined.Data, &bobRoom))
	assert.Len(t, bobRoom.Participants, 2)

	assert.Equal(t, model.TypeUserJoined, read(t, alice).Type)

	write(t, bob, model.TypePing, map[string]any{"clientTimestamp": 17, "participantId": bobRoom.ParticipantID})
	pong := read(t, bob)
	require.Equal(t, model.TypePong, pong.Type)
	var pd model.PongData
	require.NoError(t, json.Unmarshal(pong.Data, &pd))
	assert.Equal(t, float64(17), pd.ClientTimestamp)
	assert.Equal(t, bobRoom.ParticipantID, pd.ParticipantID)

	// host drops the connection: bob becomes host
	require.NoError(t, alice.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	left := read(t, bob)
	require.Equal(t, model.TypeUserLeft, left.Type)
	var ld model.UserLeftData
	require.NoError(t, json.Unmarshal(left.Data, &ld))
	assert.Equal(t, room.ParticipantID, ld.ParticipantID)
	assert.True(t, ld.Participants[bobRoom.ParticipantID].IsHost)
	assert.Len(t, ld.Participants, 1)
}

func TestHandler_InvalidMessagesKeepConnection(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := read(t, c)
	assert.Equal(t, inbound{Type: model.TypeError, Message: "Invalid message format"}, msg)

	write(t, c, "shuffle", nil)
	msg = read(t, c)
	assert.Equal(t, inbound{Type: model.TypeError, Message: "Unknown message type"}, msg)

	write(t, c, model.TypeSyncRequest, map[string]any{"clientTimestamp": 5})
	assert.Equal(t, model.TypeSyncTimestamp, read(t, c).Type)
}
