package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/adwski/lysn/backend/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

const (
	defaultShutdownDeadline  = 10 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second

	indexFile = "index.html"

	fallbackPage = `<html>
    <body>
        <h1>LYSN Server is Running!</h1>
        <p>But index.html file not found.</p>
        <p>WebSocket server is ready for connections</p>
    </body>
</html>
`
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type StatusProvider interface {
	Stats() model.Stats
}

type GenericResponse struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	logger    zerolog.Logger
	status    StatusProvider
	ws        http.Handler
	minifier  *minify.M
	staticDir string
	*http.Server
}

type Config struct {
	Logger           *zerolog.Logger
	Status           StatusProvider
	WebSocketHandler http.Handler
	ListenAddr       string
	StaticDir        string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:    cfg.Logger.With().Str("component", "http-server").Logger(),
		status:    cfg.Status,
		ws:        cfg.WebSocketHandler,
		minifier:  minify.New(),
		staticDir: cfg.StaticDir,
	}
	srv.minifier.AddFunc("text/html", html.Minify)

	r := http.NewServeMux()
	r.HandleFunc("GET /healthz", healthz)
	r.HandleFunc("GET /api/status", srv.stats)
	r.HandleFunc("GET /", srv.root)
	r.HandleFunc("OPTIONS /", corsHandler)

	srv.Server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	return srv
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeBytes(w, http.StatusOK, "text/plain", []byte("ok"))
}

// root hands websocket upgrades to the signaling handler and serves
// the player page for everything else.
func (srv *Server) root(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		srv.ws.ServeHTTP(w, r)
		return
	}
	setCORSHeaders(w)
	srv.logger.Trace().Str("method", r.Method).Str("url", r.URL.String()).Msg("request")

	if r.URL.Path != "/" && r.URL.Path != "/"+indexFile {
		writeBytes(w, http.StatusNotFound, "text/plain", []byte("Not found"))
		return
	}
	page, err := os.ReadFile(filepath.Join(srv.staticDir, indexFile))
	if err != nil {
		srv.logger.Warn().Err(err).Str("dir", srv.staticDir).Msg("failed to read index page")
		writeBytes(w, http.StatusNotFound, "text/html", []byte(fallbackPage))
		return
	}
	if out, mErr := srv.minifier.Bytes("text/html", page); mErr != nil {
		srv.logger.Debug().Err(mErr).Msg("index page minify failed, serving original")
	} else {
		page = out
	}
	writeBytes(w, http.StatusOK, "text/html", page)
}

func (srv *Server) stats(w http.ResponseWriter, _ *http.Request) {
	setCORSHeaders(w)
	b, err := json.Marshal(&GenericResponse{Data: srv.status.Stats()})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeBytes(w, http.StatusOK, "application/json", b)
}

func writeBytes(w http.ResponseWriter, code int, contentType string, b []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
