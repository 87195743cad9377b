package service

import "github.com/adwski/lysn/backend/model"

// relay forwards a WebRTC handshake message to its target. Messages for
// participants that are gone are dropped without telling the sender.
func (svc *Service) relay(conn *model.Conn, r model.SignalRequest) {
	logger := svc.logger.With().
		Str("room", r.RoomCode).
		Str("type", r.Kind).
		Str("dst", r.TargetParticipantID).
		Logger()

	from, ok := svc.store.ParticipantID(r.RoomCode, conn)
	if !ok {
		logger.Debug().Str("connID", conn.ID).Msg("sender is not in room, signal dropped")
		return
	}

	data := model.SignalData{
		FromParticipantID: from,
		Payload:           r.Payload,
		Timestamp:         svc.now().UnixMilli(),
	}
	if r.Kind == model.TypeWebRTCOffer {
		if a, ok := svc.anchors.Get(r.RoomCode); ok {
			data.SyncAnchor = &a
		}
	}
	if !svc.sw.Unicast(r.RoomCode, r.TargetParticipantID, model.Message{Type: r.Kind, Data: data}) {
		logger.Debug().Str("src", from).Msg("signal dropped")
		return
	}
	logger.Debug().Str("src", from).Msg("signal relayed")
}
