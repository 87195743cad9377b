package _switch

import (
	"testing"
	"time"

	"github.com/adwski/lysn/backend/model"
	"github.com/adwski/lysn/backend/storage/memory"
	"github.com/adwski/lysn/backend/timing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	sw      *Switch
	store   *memory.MemStore
	anchors *timing.Coordinator
	code    string
	ids     []string
	conns   []*model.Conn
}

func newFixture(t *testing.T, n int, now time.Time) *fixture {
	t.Helper()

	logger := zerolog.Nop()
	f := &fixture{
		store:   memory.NewMemStore(memory.Config{RoomCode: func() string { return "ROOM1" }}),
		anchors: timing.NewCoordinator(0),
	}
	f.sw = NewSwitch(Config{
		Logger:  &logger,
		Members: f.store,
		Anchors: f.anchors,
		Now:     func() time.Time { return now },
	})

	for i := range n {
		conn := model.NewConn("c", 4)
		var (
			id  string
			err error
		)
		if i == 0 {
			f.code, id, _, err = f.store.CreateRoom("host", conn)
		} else {
			id, _, err = f.store.JoinRoom(f.code, "guest", conn)
		}
		require.NoError(t, err)
		f.ids = append(f.ids, id)
		f.conns = append(f.conns, conn)
	}
	return f
}

func drain(c *model.Conn) []model.Message {
	var msgs []model.Message
	for {
		select {
		case m := <-c.TX():
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func TestSwitch_BroadcastExcludes(t *testing.T) {
	f := newFixture(t, 4, time.UnixMilli(1000))
	f.conns[3].Close()

	msg := model.Message{Type: model.TypeUserJoined}
	sent := f.sw.Broadcast(f.code, msg, f.conns[1])
	assert.Equal(t, 2, sent)

	assert.Equal(t, []model.Message{msg}, drain(f.conns[0]))
	assert.Empty(t, drain(f.conns[1]))
	assert.Equal(t, []model.Message{msg}, drain(f.conns[2]))
	assert.Empty(t, drain(f.conns[3]))
}

func TestSwitch_BroadcastUnknownRoom(t *testing.T) {
	f := newFixture(t, 1, time.UnixMilli(1000))
	assert.Zero(t, f.sw.Broadcast("NOPE", model.Message{Type: model.TypeUserLeft}, nil))
}

func TestSwitch_BroadcastFullQueue(t *testing.T) {
	f := newFixture(t, 2, time.UnixMilli(1000))
	for range 4 {
		require.True(t, f.conns[1].Send(model.Message{Type: "filler"}))
	}
	assert.Zero(t, f.sw.Broadcast(f.code, model.Message{Type: model.TypeUserLeft}, f.conns[0]))
}

func TestSwitch_Unicast(t *testing.T) {
	f := newFixture(t, 3, time.UnixMilli(1000))
	msg := model.Message{Type: model.TypeWebRTCOffer}

	assert.True(t, f.sw.Unicast(f.code, f.ids[2], msg))
	assert.False(t, f.sw.Unicast(f.code, "ghost", msg))
	assert.False(t, f.sw.Unicast("NOPE", f.ids[2], msg))

	assert.Empty(t, drain(f.conns[0]))
	assert.Empty(t, drain(f.conns[1]))
	assert.Equal(t, []model.Message{msg}, drain(f.conns[2]))
}

func TestSwitch_StampsTimingMessages(t *testing.T) {
	now := time.UnixMilli(50_000)
	f := newFixture(t, 2, now)
	f.anchors.Record(f.code, 1000, time.UnixMilli(40_000))

	f.sw.Broadcast(f.code, model.Message{
		Type: model.TypeSyncUpdate,
		Data: model.TimingData{RoomCode: f.code, StartTime: 1000},
	}, f.conns[0])

	msgs := drain(f.conns[1])
	require.Len(t, msgs, 1)
	assert.Equal(t, model.TimingData{RoomCode: f.code, StartTime: 1000, ServerTime: 50_000}, msgs[0].Data)

	a, ok := f.anchors.Get(f.code)
	require.True(t, ok)
	assert.Equal(t, int64(50_000), a.LastUpdate)
	assert.Equal(t, int64(50_000), a.ServerTimeAtCapture)
}

func TestSwitch_DoesNotStampOtherMessages(t *testing.T) {
	f := newFixture(t, 2, time.UnixMilli(50_000))
	f.anchors.Record(f.code, 1000, time.UnixMilli(40_000))

	f.sw.Broadcast(f.code, model.Message{
		Type: model.TypeAudioStopped,
		Data: model.AudioStoppedData{RoomCode: f.code},
	}, nil)

	a, ok := f.anchors.Get(f.code)
	require.True(t, ok)
	assert.Equal(t, int64(40_000), a.LastUpdate)
}
