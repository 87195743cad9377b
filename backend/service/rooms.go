package service

import (
	"errors"

	"github.com/adwski/lysn/backend/model"
	"github.com/adwski/lysn/backend/storage/memory"
)

func (svc *Service) createRoom(conn *model.Conn, r model.CreateRoomRequest) error {
	// a connection belongs to at most one room
	svc.leave(conn)

	code, id, roster, err := svc.store.CreateRoom(r.DisplayName, conn)
	if err != nil {
		return errors.Join(ErrCreate, err)
	}
	conn.Send(model.Message{
		Type: model.TypeRoomCreated,
		Data: model.RoomData{
			RoomCode:      code,
			ParticipantID: id,
			Participants:  roster,
		},
	})
	svc.logger.Info().
		Str("room", code).
		Str("participantID", id).
		Msg("room created")
	return nil
}

func (svc *Service) joinRoom(conn *model.Conn, r model.JoinRoomRequest) error {
	if _, err := svc.store.Roster(r.RoomCode); err != nil {
		return svc.roomLookupError(err)
	}
	if current, ok := svc.store.RoomOf(conn); ok {
		if current == r.RoomCode {
			return svc.rejoin(conn, r.RoomCode)
		}
		svc.leave(conn)
	}

	id, roster, err := svc.store.JoinRoom(r.RoomCode, r.DisplayName, conn)
	if err != nil {
		return svc.roomLookupError(errors.Join(ErrJoin, err))
	}

	svc.sendJoined(conn, r.RoomCode, id, roster)
	svc.sw.Broadcast(r.RoomCode, model.Message{
		Type: model.TypeUserJoined,
		Data: model.UserJoinedData{
			Participant:  roster[id],
			Participants: roster,
		},
	}, conn)

	svc.logger.Info().
		Str("room", r.RoomCode).
		Str("participantID", id).
		Msg("participant joined")
	return nil
}

// rejoin answers a join for the room the connection is already in
// without creating a second participant.
func (svc *Service) rejoin(conn *model.Conn, roomCode string) error {
	id, _ := svc.store.ParticipantID(roomCode, conn)
	roster, err := svc.store.Roster(roomCode)
	if err != nil {
		return svc.roomLookupError(err)
	}
	svc.sendJoined(conn, roomCode, id, roster)
	return nil
}

func (svc *Service) sendJoined(conn *model.Conn, roomCode, id string, roster model.Roster) {
	data := model.RoomData{
		RoomCode:      roomCode,
		ParticipantID: id,
		Participants:  roster,
	}
	if svc.store.IsAudioActive(roomCode) {
		if cur, ok := svc.anchors.Current(roomCode, svc.now()); ok {
			data.CurrentTiming = &cur
		}
	}
	conn.Send(model.Message{
		Type: model.TypeRoomJoined,
		Data: data,
	})
}

// leave is the single cleanup path for leave-room and disconnects.
func (svc *Service) leave(conn *model.Conn) {
	rm, ok := svc.store.RemoveConn(conn)
	if !ok {
		return
	}
	logger := svc.logger.With().
		Str("room", rm.RoomCode).
		Str("participantID", rm.ParticipantID).
		Logger()

	if rm.Destroyed {
		svc.anchors.Delete(rm.RoomCode)
		logger.Info().Msg("room deleted (empty)")
		return
	}
	if rm.NewHostID != "" {
		logger.Info().Str("host", rm.NewHostID).Msg("new host assigned")
	}
	svc.sw.Broadcast(rm.RoomCode, model.Message{
		Type: model.TypeUserLeft,
		Data: model.UserLeftData{
			ParticipantID: rm.ParticipantID,
			Participants:  rm.Roster,
		},
	}, nil)
	logger.Info().Msg("participant left")
}

func (svc *Service) roomLookupError(err error) error {
	if errors.Is(err, memory.ErrRoomNotFound) {
		return errors.Join(newClientError(ErrNotFound, msgRoomNotFound), err)
	}
	return err
}
