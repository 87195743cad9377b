package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/adwski/lysn/backend/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultSendBufferSize = 64

	defaultWebsocketReadBufferSize     = 10000
	defaultWebsocketWriteBufferSize    = 10000
	defaultWebSocketMaxMessageSize     = 64 << 10
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second
)

type (
	SignalingService interface {
		Connect(conn *model.Conn)
		Handle(conn *model.Conn, raw []byte)
		Disconnect(conn *model.Conn)
	}

	Config struct {
		Logger           *zerolog.Logger
		SignalingService SignalingService
		SendBufferSize   int
	}

	// Handler upgrades requests to websocket connections and pumps
	// messages between them and the signaling service.
	Handler struct {
		svc SignalingService
		ws  *websocket.Upgrader

		sendBufferSize int
		logger         zerolog.Logger
	}
)

func NewHandler(cfg Config) *Handler {
	h := &Handler{
		logger:         cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:            cfg.SignalingService,
		sendBufferSize: cfg.SendBufferSize,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
	if h.sendBufferSize <= 0 {
		h.sendBufferSize = defaultSendBufferSize
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.ws.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := model.NewConn(uuid.NewString(), h.sendBufferSize)
	logger := h.logger.With().
		Str("connID", conn.ID).
		Str("remote", r.RemoteAddr).
		Logger()
	logger.Debug().Msg("new client connected")

	h.svc.Connect(conn)
	go h.handleWSConn(wsConn, conn, &logger)
}

func (h *Handler) handleWSConn(wsConn *websocket.Conn, conn *model.Conn, logger *zerolog.Logger) {
	var (
		wg          = &sync.WaitGroup{}
		ctx, cancel = context.WithCancel(context.Background())
	)
	defer cancel()

	wg.Add(2)
	go func() {
		h.webSocketReceiver(ctx, wg, wsConn, conn, logger)
		cancel()
	}()
	go func() {
		webSocketSender(ctx, wg, wsConn, conn, logger)
		cancel()
		// unblock the receiver
		if err := wsConn.SetReadDeadline(time.Now()); err != nil {
			logger.Debug().Err(err).Msg("failed to reset websocket read deadline")
		}
	}()

	wg.Wait()
	conn.Close()
	h.svc.Disconnect(conn)
	webSocketCloser(wsConn, logger)
	logger.Debug().Msg("signaling session ended")
}

func webSocketSender(
	ctx context.Context,
	wg *sync.WaitGroup,
	wsConn *websocket.Conn,
	conn *model.Conn,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-conn.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := wsConn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = wsConn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
				break SendLoop
			}
			logger.Trace().Msg("ping sent")

		case msg := <-conn.TX():
			b, wsErr := json.Marshal(&msg)
			if wsErr != nil {
				logger.Error().Err(wsErr).Str("type", msg.Type).Msg("failed to marshall outgoing message")
				continue
			}

			wsErr = wsConn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsW, wsErr := wsConn.NextWriter(websocket.TextMessage)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to get websocket text writer")
				break SendLoop
			}
			_, wsErr = wsW.Write(b)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing message")
				break SendLoop
			}
			wsErr = wsW.Close()
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to close websocket writer")
				break SendLoop
			}
		}
	}
}

// webSocketReceiver hands every inbound message to the service in arrival order.
func (h *Handler) webSocketReceiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	wsConn *websocket.Conn,
	conn *model.Conn,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	wsConn.SetReadLimit(defaultWebSocketMaxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return wsConn.SetReadDeadline(time.Now().Add(deadline))
	}
	wsConn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	err := readDeadLineFunc(defaultPongWait)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

RecvLoop:
	for {
		select {
		case <-ctx.Done():
			break RecvLoop
		default:
			_, msg, wsErr := wsConn.ReadMessage()
			if wsErr != nil {
				if websocket.IsCloseError(wsErr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway) {
					logger.Debug().Err(wsErr).Msg("connection closed")
				} else {
					logger.Warn().Err(wsErr).Msg("unexpected error during receive")
				}
				break RecvLoop
			}
			h.svc.Handle(conn, msg)
		}
	}
}

func webSocketCloser(wsConn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := wsConn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Debug().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = wsConn.WriteMessage(websocket.CloseMessage, []byte{})
		if wsErr != nil {
			logger.Debug().Err(wsErr).Msg("failed to send websocket close message")
		}
	}
	wsErr = wsConn.Close()
	if wsErr != nil {
		logger.Debug().Err(wsErr).Msg("failed to close websocket connection")
	}
}
