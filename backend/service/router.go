package service

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/adwski/lysn/backend/model"
)

var requiredFieldsMessages = map[string]string{
	model.TypeCreateRoom:         "Display name is required",
	model.TypeJoinRoom:           "Display name and room code are required",
	model.TypeAudioStarted:       "Room code is required",
	model.TypeAudioStopped:       "Room code is required",
	model.TypeSyncUpdate:         "Room code is required",
	model.TypeWebRTCOffer:        "Room code and target participant are required",
	model.TypeWebRTCAnswer:       "Room code and target participant are required",
	model.TypeWebRTCIceCandidate: "Room code and target participant are required",
}

// legacyPayloadKeys are the per-kind keys older clients put signaling payloads under.
var legacyPayloadKeys = map[string]string{
	model.TypeWebRTCOffer:        "offer",
	model.TypeWebRTCAnswer:       "answer",
	model.TypeWebRTCIceCandidate: "candidate",
}

// decode turns raw bytes into one of the known requests.
func decode(raw []byte) (model.Request, error) {
	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Join(newClientError(ErrDecode, msgInvalidFormat), err)
	}

	var (
		req model.Request
		err error
	)
	switch env.Type {
	case model.TypeCreateRoom:
		var r model.CreateRoomRequest
		err = unmarshalData(env.Data, &r)
		req = r
	case model.TypeJoinRoom:
		var r model.JoinRoomRequest
		err = unmarshalData(env.Data, &r)
		req = r
	case model.TypeLeaveRoom:
		req = model.LeaveRoomRequest{}
	case model.TypeAudioStarted:
		var r model.AudioStartedRequest
		err = unmarshalData(env.Data, &r)
		req = r
	case model.TypeAudioStopped:
		var r model.AudioStoppedRequest
		err = unmarshalData(env.Data, &r)
		req = r
	case model.TypeSyncUpdate:
		var r model.SyncUpdateRequest
		err = unmarshalData(env.Data, &r)
		req = r
	case model.TypeWebRTCOffer, model.TypeWebRTCAnswer, model.TypeWebRTCIceCandidate:
		r := model.SignalRequest{Kind: env.Type}
		err = unmarshalSignal(env.Data, &r)
		req = r
	case model.TypeSyncRequest:
		var r model.SyncRequest
		err = unmarshalData(env.Data, &r)
		req = r
	case model.TypePing:
		var r model.PingRequest
		err = unmarshalData(env.Data, &r)
		req = r
	default:
		return nil, newClientError(ErrUnknownType, msgUnknownType)
	}
	if err != nil {
		return nil, errors.Join(newClientError(ErrDecode, msgInvalidFormat), err)
	}
	return req, nil
}

func unmarshalData(data json.RawMessage, dst any) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func unmarshalSignal(data json.RawMessage, r *model.SignalRequest) error {
	if err := unmarshalData(data, r); err != nil {
		return err
	}
	if len(r.Payload) > 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := unmarshalData(data, &fields); err != nil {
		return err
	}
	r.Payload = fields[legacyPayloadKeys[r.Kind]]
	return nil
}

func (svc *Service) validateRequest(req model.Request) error {
	msg, ok := requiredFieldsMessages[req.RequestType()]
	if !ok {
		return nil
	}
	if err := svc.validate.Struct(req); err != nil {
		return errors.Join(newClientError(ErrValidation, msg), err)
	}
	return nil
}

// dispatch must be called with svc.mx held.
func (svc *Service) dispatch(conn *model.Conn, req model.Request) error {
	svc.logger.Trace().
		Str("connID", conn.ID).
		Str("type", req.RequestType()).
		Msg("handling message")

	switch r := req.(type) {
	case model.CreateRoomRequest:
		return svc.createRoom(conn, r)
	case model.JoinRoomRequest:
		return svc.joinRoom(conn, r)
	case model.LeaveRoomRequest:
		svc.leave(conn)
		return nil
	case model.AudioStartedRequest:
		return svc.audioStarted(conn, r)
	case model.AudioStoppedRequest:
		return svc.audioStopped(conn, r)
	case model.SyncUpdateRequest:
		return svc.syncUpdate(conn, r)
	case model.SignalRequest:
		svc.relay(conn, r)
		return nil
	case model.SyncRequest:
		svc.syncRequest(conn, r)
		return nil
	case model.PingRequest:
		svc.ping(conn, r)
		return nil
	}
	return newClientError(ErrUnknownType, msgUnknownType)
}

func (svc *Service) replyError(conn *model.Conn, err error) {
	var ce *clientError
	if !errors.As(err, &ce) {
		svc.logger.Error().Err(err).Str("connID", conn.ID).Msg("failed to handle message")
		return
	}
	svc.logger.Debug().Err(err).Str("connID", conn.ID).Msg("message rejected")
	conn.Send(model.Message{
		Type:    model.TypeError,
		Message: ce.msg,
	})
}
