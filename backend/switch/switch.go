package _switch

import (
	"time"

	"github.com/adwski/lysn/backend/model"
	"github.com/rs/zerolog"
)

type (
	Members interface {
		Members(roomCode string) []model.Member
		Member(roomCode, participantID string) (model.Member, bool)
	}

	AnchorToucher interface {
		Touch(roomCode string, now time.Time)
	}

	Config struct {
		Logger  *zerolog.Logger
		Members Members
		Anchors AnchorToucher
		Now     func() time.Time
	}

	// Switch delivers outbound messages to room participants.
	Switch struct {
		logger  zerolog.Logger
		members Members
		anchors AnchorToucher
		now     func() time.Time
	}
)

func NewSwitch(cfg Config) *Switch {
	sw := &Switch{
		logger:  cfg.Logger.With().Str("component", "switch").Logger(),
		members: cfg.Members,
		anchors: cfg.Anchors,
		now:     cfg.Now,
	}
	if sw.now == nil {
		sw.now = time.Now
	}
	return sw
}

// Broadcast sends msg to every open connection in the room except exclude,
// which may be nil. It returns the number of connections reached.
func (sw *Switch) Broadcast(roomCode string, msg model.Message, exclude *model.Conn) int {
	msg = sw.stamp(roomCode, msg)

	var sent int
	for _, m := range sw.members.Members(roomCode) {
		if m.Conn == exclude {
			continue
		}
		if sw.send(m, msg) {
			sent++
		}
	}
	if sent == 0 {
		sw.logger.Debug().
			Str("room", roomCode).
			Str("type", msg.Type).
			Msg("broadcast did not reach anyone")
	}
	return sent
}

// Unicast sends msg to a single participant. Unknown participants are ignored.
func (sw *Switch) Unicast(roomCode, participantID string, msg model.Message) bool {
	m, ok := sw.members.Member(roomCode, participantID)
	if !ok {
		sw.logger.Debug().
			Str("room", roomCode).
			Str("type", msg.Type).
			Str("dst", participantID).
			Msg("cannot forward, dst not found")
		return false
	}
	return sw.send(m, sw.stamp(roomCode, msg))
}

// stamp puts the server time on timing messages right before they leave
// and records that time on the room's anchor.
func (sw *Switch) stamp(roomCode string, msg model.Message) model.Message {
	if msg.Type != model.TypeAudioStarted && msg.Type != model.TypeSyncUpdate {
		return msg
	}
	data, ok := msg.Data.(model.TimingData)
	if !ok {
		return msg
	}
	now := sw.now()
	data.ServerTime = now.UnixMilli()
	msg.Data = data
	sw.anchors.Touch(roomCode, now)
	return msg
}

func (sw *Switch) send(m model.Member, msg model.Message) bool {
	if m.Conn == nil || !m.Conn.IsOpen() {
		return false
	}
	if !m.Conn.Send(msg) {
		sw.logger.Error().
			Str("dst", m.ID).
			Str("type", msg.Type).
			Msg("dead endpoint, message dropped")
		return false
	}
	sw.logger.Trace().
		Str("dst", m.ID).
		Str("type", msg.Type).
		Msg("message is forwarded")
	return true
}
