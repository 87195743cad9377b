package service

import (
	"context"
	"sync"
	"time"

	"github.com/adwski/lysn/backend/model"
	"github.com/adwski/lysn/backend/timing"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	defaultReconcileInterval = time.Second
	defaultCleanupInterval   = time.Hour
	defaultRoomMaxAge        = time.Hour
	defaultStatusInterval    = 30 * time.Second

	welcomeMessage = "Connected to LYSN server"
)

type (
	RoomStore interface {
		CreateRoom(displayName string, conn *model.Conn) (string, string, model.Roster, error)
		JoinRoom(roomCode, displayName string, conn *model.Conn) (string, model.Roster, error)
		RemoveConn(conn *model.Conn) (model.Removal, bool)
		RoomOf(conn *model.Conn) (string, bool)
		ParticipantID(roomCode string, conn *model.Conn) (string, bool)
		Roster(roomCode string) (model.Roster, error)
		SetAudioActive(roomCode string, active bool) error
		IsAudioActive(roomCode string) bool
		Rooms() []model.RoomInfo
		Stats() model.Stats
		DeleteStale(createdBefore time.Time) []string
	}

	Switch interface {
		Broadcast(roomCode string, msg model.Message, exclude *model.Conn) int
		Unicast(roomCode, participantID string, msg model.Message) bool
	}

	Anchors interface {
		Record(roomCode string, startTime float64, now time.Time) model.Anchor
		Get(roomCode string) (model.Anchor, bool)
		Current(roomCode string, now time.Time) (model.CurrentTiming, bool)
		Due(now time.Time) []timing.Due
		Delete(roomCode string)
		Len() int
	}

	Config struct {
		RoomStore RoomStore
		Switch    Switch
		Anchors   Anchors
		Logger    *zerolog.Logger
		Now       func() time.Time

		ReconcileInterval time.Duration
		CleanupInterval   time.Duration
		RoomMaxAge        time.Duration
		StatusInterval    time.Duration
	}

	// Service routes inbound messages and owns room and timing state changes.
	// All handlers and periodic jobs run under one lock, so each of them
	// observes and leaves the registries in a consistent state.
	Service struct {
		mx       *sync.Mutex
		store    RoomStore
		sw       Switch
		anchors  Anchors
		validate *validator.Validate
		now      func() time.Time
		logger   zerolog.Logger

		reconcileInterval time.Duration
		cleanupInterval   time.Duration
		roomMaxAge        time.Duration
		statusInterval    time.Duration
	}
)

func NewService(cfg Config) *Service {
	svc := &Service{
		mx:                &sync.Mutex{},
		store:             cfg.RoomStore,
		sw:                cfg.Switch,
		anchors:           cfg.Anchors,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		now:               cfg.Now,
		logger:            cfg.Logger.With().Str("component", "service").Logger(),
		reconcileInterval: orDefault(cfg.ReconcileInterval, defaultReconcileInterval),
		cleanupInterval:   orDefault(cfg.CleanupInterval, defaultCleanupInterval),
		roomMaxAge:        orDefault(cfg.RoomMaxAge, defaultRoomMaxAge),
		statusInterval:    orDefault(cfg.StatusInterval, defaultStatusInterval),
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Connect greets a freshly opened connection.
func (svc *Service) Connect(conn *model.Conn) {
	conn.Send(model.Message{
		Type:    model.TypeConnected,
		Message: welcomeMessage,
		Data:    model.ConnectedData{ServerTime: svc.now().UnixMilli()},
	})
	svc.logger.Debug().Str("connID", conn.ID).Msg("client connected")
}

// Disconnect removes the connection from its room. It must be called once
// the transport is done with the connection.
func (svc *Service) Disconnect(conn *model.Conn) {
	svc.mx.Lock()
	defer svc.mx.Unlock()

	svc.leave(conn)
	svc.logger.Debug().Str("connID", conn.ID).Msg("client disconnected")
}

// Handle processes one raw inbound message from conn.
func (svc *Service) Handle(conn *model.Conn, raw []byte) {
	req, err := decode(raw)
	if err == nil {
		err = svc.validateRequest(req)
	}
	if err == nil {
		svc.mx.Lock()
		err = svc.dispatch(conn, req)
		svc.mx.Unlock()
	}
	if err != nil {
		svc.replyError(conn, err)
	}
}

func (svc *Service) Stats() model.Stats {
	return svc.store.Stats()
}

// Run starts periodic jobs and blocks until ctx is done.
func (svc *Service) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer func() {
		svc.logger.Debug().Msg("periodic jobs stopped")
		wg.Done()
	}()

	jobs := &sync.WaitGroup{}
	jobs.Add(3)
	go timing.Every(ctx, jobs, svc.reconcileInterval, svc.Reconcile)
	go timing.Every(ctx, jobs, svc.cleanupInterval, svc.Cleanup)
	go timing.Every(ctx, jobs, svc.statusInterval, svc.ReportStatus)

	svc.logger.Info().
		Dur("reconcile", svc.reconcileInterval).
		Dur("cleanup", svc.cleanupInterval).
		Dur("status", svc.statusInterval).
		Msg("periodic jobs started")
	jobs.Wait()
}
