package service

import (
	"time"

	"github.com/adwski/lysn/backend/model"
)

func (svc *Service) audioStarted(conn *model.Conn, r model.AudioStartedRequest) error {
	if err := svc.store.SetAudioActive(r.RoomCode, true); err != nil {
		return svc.roomLookupError(err)
	}
	svc.anchors.Record(r.RoomCode, r.StartTime, svc.now())
	svc.sw.Broadcast(r.RoomCode, model.Message{
		Type: model.TypeAudioStarted,
		Data: model.TimingData{
			RoomCode:  r.RoomCode,
			StartTime: r.StartTime,
		},
	}, conn)
	svc.logger.Info().
		Str("room", r.RoomCode).
		Float64("startTime", r.StartTime).
		Msg("audio started")
	return nil
}

func (svc *Service) audioStopped(conn *model.Conn, r model.AudioStoppedRequest) error {
	if err := svc.store.SetAudioActive(r.RoomCode, false); err != nil {
		return svc.roomLookupError(err)
	}
	svc.anchors.Delete(r.RoomCode)
	svc.sw.Broadcast(r.RoomCode, model.Message{
		Type: model.TypeAudioStopped,
		Data: model.AudioStoppedData{RoomCode: r.RoomCode},
	}, conn)
	svc.logger.Info().Str("room", r.RoomCode).Msg("audio stopped")
	return nil
}

func (svc *Service) syncUpdate(conn *model.Conn, r model.SyncUpdateRequest) error {
	if _, err := svc.store.Roster(r.RoomCode); err != nil {
		return svc.roomLookupError(err)
	}
	if !svc.store.IsAudioActive(r.RoomCode) {
		svc.logger.Debug().Str("room", r.RoomCode).Msg("sync update ignored, audio is not active")
		return nil
	}
	svc.anchors.Record(r.RoomCode, r.StartTime, svc.now())
	svc.sw.Broadcast(r.RoomCode, model.Message{
		Type: model.TypeSyncUpdate,
		Data: model.TimingData{
			RoomCode:  r.RoomCode,
			StartTime: r.StartTime,
		},
	}, conn)
	return nil
}

func (svc *Service) syncRequest(conn *model.Conn, r model.SyncRequest) {
	conn.Send(model.Message{
		Type: model.TypeSyncTimestamp,
		Data: model.SyncTimestampData{
			RoomCode:        r.RoomCode,
			ServerTime:      svc.now().UnixMilli(),
			ClientTimestamp: r.ClientTimestamp,
		},
	})
}

func (svc *Service) ping(conn *model.Conn, r model.PingRequest) {
	conn.Send(model.Message{
		Type: model.TypePong,
		Data: model.PongData{
			ClientTimestamp: r.ClientTimestamp,
			ServerTime:      svc.now().UnixMilli(),
			ParticipantID:   r.ParticipantID,
		},
	})
}

// Reconcile re-broadcasts extrapolated anchors that have not been refreshed
// for longer than the stale threshold.
func (svc *Service) Reconcile(now time.Time) {
	svc.mx.Lock()
	defer svc.mx.Unlock()

	for _, due := range svc.anchors.Due(now) {
		if !svc.store.IsAudioActive(due.RoomCode) {
			continue
		}
		// re-anchor first: the broadcast moves serverTimeAtCapture to now
		svc.anchors.Record(due.RoomCode, due.StartTime, now)
		sent := svc.sw.Broadcast(due.RoomCode, model.Message{
			Type: model.TypeSyncUpdate,
			Data: model.TimingData{
				RoomCode:  due.RoomCode,
				StartTime: due.StartTime,
			},
		}, nil)
		svc.logger.Debug().
			Str("room", due.RoomCode).
			Float64("startTime", due.StartTime).
			Int("recipients", sent).
			Msg("sync update broadcast")
	}
}
